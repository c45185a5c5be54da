package spatial

import (
	"math"
	"testing"
)

const tol = 1e-12

func vecNear(t *testing.T, name string, got, want Vec3) {
	t.Helper()
	if math.Abs(got.X-want.X) > tol || math.Abs(got.Y-want.Y) > tol || math.Abs(got.Z-want.Z) > tol {
		t.Errorf("%s = %v, want %v", name, got, want)
	}
}

func TestRotAxisKnownRotations(t *testing.T) {
	// quarter turn about Z takes x to y
	r := RotAxis(Vec3{Z: 1}, math.Pi/2)
	vecNear(t, "Rz(90)*x", r.MulVec(Vec3{X: 1}), Vec3{Y: 1})
	vecNear(t, "Rz(90)*y", r.MulVec(Vec3{Y: 1}), Vec3{X: -1})

	// rotation about an arbitrary axis leaves the axis fixed
	axis := Vec3{X: 1, Y: -2, Z: 0.5}.Normalize()
	r = RotAxis(axis, 1.234)
	vecNear(t, "R*axis", r.MulVec(axis), axis)
}

func TestSkewMatchesCross(t *testing.T) {
	a := Vec3{X: 0.3, Y: -1.1, Z: 2.0}
	b := Vec3{X: -0.7, Y: 0.2, Z: 0.9}
	vecNear(t, "skew(a)*b", Skew(a).MulVec(b), a.Cross(b))
}

func TestTransformComposeApply(t *testing.T) {
	x1 := Transform{R: RotAxis(Vec3{Z: 1}, 0.4), P: Vec3{X: 1, Y: 2}}
	x2 := Transform{R: RotAxis(Vec3{X: 1}, -0.9), P: Vec3{Z: 3}}
	p := Vec3{X: 0.5, Y: -0.5, Z: 1.5}
	vecNear(t, "compose", x1.Compose(x2).Apply(p), x1.Apply(x2.Apply(p)))
}

func TestMotionRoundTrip(t *testing.T) {
	x := Transform{R: RotAxis(Vec3{X: 1, Y: 1, Z: 1}.Normalize(), 0.77), P: Vec3{X: -1, Y: 0.5, Z: 2}}
	m := Motion{Ang: Vec3{X: 0.1, Y: -0.2, Z: 0.3}, Lin: Vec3{X: 1, Y: 2, Z: -3}}
	back := x.ToParentMotion(x.ToChildMotion(m))
	vecNear(t, "ang", back.Ang, m.Ang)
	vecNear(t, "lin", back.Lin, m.Lin)
}

func TestTransformPreservesPower(t *testing.T) {
	// f^T v is frame invariant: the force map is the transpose of the
	// inverse motion map
	x := Transform{R: RotAxis(Vec3{Y: 1}, -1.3), P: Vec3{X: 2, Z: -1}}
	v := Motion{Ang: Vec3{X: 0.4, Y: 0.1, Z: -0.6}, Lin: Vec3{X: -1, Y: 0.3, Z: 2}}
	f := Force{Ang: Vec3{X: 1.5, Y: -2, Z: 0.25}, Lin: Vec3{X: 0.7, Y: 0.7, Z: -0.1}}

	parentSide := Pair(x.ToParentForce(f), v)
	childSide := Pair(f, x.ToChildMotion(v))
	if math.Abs(parentSide-childSide) > tol {
		t.Errorf("power changed across frames: parent %v, child %v", parentSide, childSide)
	}
}

func TestCongruenceMatchesExplicitShift(t *testing.T) {
	// X^T M X applied to a parent motion must equal mapping the motion to
	// the child, applying M there, and mapping the force back
	x := Transform{R: RotAxis(Vec3{X: 0.2, Y: -1, Z: 0.4}.Normalize(), 2.1), P: Vec3{X: 0.3, Y: -0.8, Z: 1.1}}
	m := MassProperties{
		Mass:    2.5,
		COM:     Vec3{X: 0.1, Y: 0.2, Z: -0.3},
		Inertia: Diag3(0.4, 0.5, 0.6),
	}.SpatialInertia()

	v := Motion{Ang: Vec3{X: -0.5, Y: 0.9, Z: 0.2}, Lin: Vec3{X: 1.2, Y: 0, Z: -0.4}}
	direct := x.CongruenceToParent(m).MulMotion(v)
	viaChild := x.ToParentForce(m.MulMotion(x.ToChildMotion(v)))
	vecNear(t, "ang", direct.Ang, viaChild.Ang)
	vecNear(t, "lin", direct.Lin, viaChild.Lin)
}

func TestPointMassKineticEnergy(t *testing.T) {
	// point mass m at r, body spinning with w about the origin:
	// 1/2 v^T M v = 1/2 m |w x r|^2
	mass := 3.0
	r := Vec3{X: 0.5, Y: -0.25, Z: 1}
	// zero inertia about the com: a true point mass
	mp := MassProperties{Mass: mass, COM: r}

	w := Vec3{X: 0.3, Y: 1.1, Z: -0.7}
	v := Motion{Ang: w}
	ke := 0.5 * Pair(mp.SpatialInertia().MulMotion(v), v)
	want := 0.5 * mass * w.Cross(r).LengthSq()
	if math.Abs(ke-want) > tol {
		t.Errorf("kinetic energy = %v, want %v", ke, want)
	}
}

func TestSpatialMatScale(t *testing.T) {
	a := Force{Ang: Vec3{X: 0.3, Y: -1.1, Z: 2.0}, Lin: Vec3{X: -0.7, Y: 0.2, Z: 0.9}}
	b := Force{Ang: Vec3{X: 1.5, Y: 0.4, Z: -0.6}, Lin: Vec3{X: 0.8, Y: -2.0, Z: 0.1}}
	m := Motion{Ang: Vec3{X: 0.1, Y: -0.2, Z: 0.3}, Lin: Vec3{X: 1, Y: 2, Z: -3}}

	got := OuterForce(a, b).Scale(-2.5).MulMotion(m)
	want := OuterForce(a, b).MulMotion(m)
	vecNear(t, "ang", got.Ang, Vec3{X: -2.5 * want.Ang.X, Y: -2.5 * want.Ang.Y, Z: -2.5 * want.Ang.Z})
	vecNear(t, "lin", got.Lin, Vec3{X: -2.5 * want.Lin.X, Y: -2.5 * want.Lin.Y, Z: -2.5 * want.Lin.Z})
}

func TestCrossForceIsDualToCrossMotion(t *testing.T) {
	// (v x* f)^T m = -f^T (v x m)
	v := Motion{Ang: Vec3{X: 0.2, Y: -0.4, Z: 0.6}, Lin: Vec3{X: 1, Y: 0.5, Z: -0.25}}
	m := Motion{Ang: Vec3{X: -0.9, Y: 0.1, Z: 0.3}, Lin: Vec3{X: 0.4, Y: -1.2, Z: 0.8}}
	f := Force{Ang: Vec3{X: 0.6, Y: 0.7, Z: -0.5}, Lin: Vec3{X: -0.3, Y: 1.4, Z: 0.2}}

	lhs := Pair(CrossForce(v, f), m)
	rhs := -Pair(f, CrossMotion(v, m))
	if math.Abs(lhs-rhs) > tol {
		t.Errorf("duality violated: %v vs %v", lhs, rhs)
	}
}

func TestQuatRotMatMatchesRotAxis(t *testing.T) {
	axis := Vec3{X: 0.3, Y: 0.4, Z: -0.5}.Normalize()
	angle := 1.9
	q := Quat{
		W: math.Cos(angle / 2),
		X: axis.X * math.Sin(angle/2),
		Y: axis.Y * math.Sin(angle/2),
		Z: axis.Z * math.Sin(angle/2),
	}
	rq := q.RotMat()
	ra := RotAxis(axis, angle)
	p := Vec3{X: 1, Y: -2, Z: 0.5}
	vecNear(t, "quat vs axis-angle", rq.MulVec(p), ra.MulVec(p))
}

func TestQuatDerivativeSmallStep(t *testing.T) {
	// integrating qdot over a small step approximates the rotation
	w := Vec3{Z: 2.0}
	dt := 1e-6
	q := IdentityQuat()
	qd := q.Derivative(w)
	q = Quat{q.W + qd.W*dt, q.X + qd.X*dt, q.Y + qd.Y*dt, q.Z + qd.Z*dt}.Normalize()

	p := Vec3{X: 1}
	got := q.RotMat().MulVec(p)
	want := RotAxis(Vec3{Z: 1}, w.Z*dt).MulVec(p)
	if math.Abs(got.X-want.X) > 1e-10 || math.Abs(got.Y-want.Y) > 1e-10 {
		t.Errorf("small-step rotation mismatch: %v vs %v", got, want)
	}
}
