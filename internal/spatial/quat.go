package spatial

import "math"

// Quat is a unit quaternion, scalar first, rotating child-frame coordinates
// into parent-frame coordinates.
type Quat struct {
	W, X, Y, Z float64
}

func IdentityQuat() Quat {
	return Quat{W: 1}
}

func (q Quat) Norm() float64 {
	return math.Sqrt(q.W*q.W + q.X*q.X + q.Y*q.Y + q.Z*q.Z)
}

func (q Quat) Normalize() Quat {
	n := q.Norm()
	return Quat{q.W / n, q.X / n, q.Y / n, q.Z / n}
}

func (q Quat) RotMat() Mat3 {
	w, x, y, z := q.W, q.X, q.Y, q.Z
	return Mat3{
		{1 - 2*(y*y+z*z), 2 * (x*y - w*z), 2 * (x*z + w*y)},
		{2 * (x*y + w*z), 1 - 2*(x*x+z*z), 2 * (y*z - w*x)},
		{2 * (x*z - w*y), 2 * (y*z + w*x), 1 - 2*(x*x+y*y)},
	}
}

// Derivative returns qdot for body-frame angular velocity w:
// qdot = 1/2 * q ⊗ (0, w).
func (q Quat) Derivative(w Vec3) Quat {
	return Quat{
		W: 0.5 * (-q.X*w.X - q.Y*w.Y - q.Z*w.Z),
		X: 0.5 * (q.W*w.X + q.Y*w.Z - q.Z*w.Y),
		Y: 0.5 * (q.W*w.Y + q.Z*w.X - q.X*w.Z),
		Z: 0.5 * (q.W*w.Z + q.X*w.Y - q.Y*w.X),
	}
}
