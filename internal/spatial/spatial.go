// Package spatial implements the fixed-size 3D and 6D (Plücker) quantities
// used by the multibody core: vectors, rotation matrices, rigid transforms,
// spatial motion/force vectors and 6x6 spatial operators.
//
// Spatial vectors follow the angular-on-top convention: a Motion is
// (angular velocity; linear velocity of the body-fixed point at the frame
// origin), a Force is (moment about the origin; linear force).
package spatial

// Motion is a spatial motion vector (velocity or acceleration).
type Motion struct {
	Ang, Lin Vec3
}

// Force is a spatial force vector (moment about the frame origin, force).
type Force struct {
	Ang, Lin Vec3
}

func (m Motion) Add(other Motion) Motion {
	return Motion{m.Ang.Add(other.Ang), m.Lin.Add(other.Lin)}
}

func (m Motion) Sub(other Motion) Motion {
	return Motion{m.Ang.Sub(other.Ang), m.Lin.Sub(other.Lin)}
}

func (m Motion) Scale(s float64) Motion {
	return Motion{m.Ang.Scale(s), m.Lin.Scale(s)}
}

func (f Force) Add(other Force) Force {
	return Force{f.Ang.Add(other.Ang), f.Lin.Add(other.Lin)}
}

func (f Force) Sub(other Force) Force {
	return Force{f.Ang.Sub(other.Ang), f.Lin.Sub(other.Lin)}
}

func (f Force) Scale(s float64) Force {
	return Force{f.Ang.Scale(s), f.Lin.Scale(s)}
}

// Pair is the duality pairing f^T m between a force and a motion.
// With both in the same Plücker frame this is the power (or, for a motion
// subspace column, a generalized force/speed projection).
func Pair(f Force, m Motion) float64 {
	return f.Ang.Dot(m.Ang) + f.Lin.Dot(m.Lin)
}

// CrossMotion is the spatial cross product v x m of two motion vectors.
func CrossMotion(v, m Motion) Motion {
	return Motion{
		Ang: v.Ang.Cross(m.Ang),
		Lin: v.Ang.Cross(m.Lin).Add(v.Lin.Cross(m.Ang)),
	}
}

// CrossForce is the spatial cross product v x* f of a motion and a force.
func CrossForce(v Motion, f Force) Force {
	return Force{
		Ang: v.Ang.Cross(f.Ang).Add(v.Lin.Cross(f.Lin)),
		Lin: v.Ang.Cross(f.Lin),
	}
}

// SpatialMat is a 6x6 spatial operator mapping motions to forces
// (an inertia-like matrix), stored as four 3x3 blocks:
//
//	[ AA AL ]   so that  (M m).Ang = AA*m.Ang + AL*m.Lin
//	[ LA LL ]            (M m).Lin = LA*m.Ang + LL*m.Lin
type SpatialMat struct {
	AA, AL, LA, LL Mat3
}

func (s SpatialMat) Add(other SpatialMat) SpatialMat {
	return SpatialMat{
		AA: s.AA.Add(other.AA),
		AL: s.AL.Add(other.AL),
		LA: s.LA.Add(other.LA),
		LL: s.LL.Add(other.LL),
	}
}

func (s SpatialMat) Sub(other SpatialMat) SpatialMat {
	return SpatialMat{
		AA: s.AA.Sub(other.AA),
		AL: s.AL.Sub(other.AL),
		LA: s.LA.Sub(other.LA),
		LL: s.LL.Sub(other.LL),
	}
}

func (s SpatialMat) Scale(x float64) SpatialMat {
	return SpatialMat{
		AA: s.AA.Scale(x),
		AL: s.AL.Scale(x),
		LA: s.LA.Scale(x),
		LL: s.LL.Scale(x),
	}
}

func (s SpatialMat) MulMotion(m Motion) Force {
	return Force{
		Ang: s.AA.MulVec(m.Ang).Add(s.AL.MulVec(m.Lin)),
		Lin: s.LA.MulVec(m.Ang).Add(s.LL.MulVec(m.Lin)),
	}
}

// OuterForce returns the rank-one operator a*b^T, which maps a motion m to
// the force a scaled by the pairing b^T m.
func OuterForce(a, b Force) SpatialMat {
	return SpatialMat{
		AA: Outer(a.Ang, b.Ang),
		AL: Outer(a.Ang, b.Lin),
		LA: Outer(a.Lin, b.Ang),
		LL: Outer(a.Lin, b.Lin),
	}
}

// MassProperties describes a rigid body: mass, center of mass offset in the
// body frame, and rotational inertia about the center of mass in body axes.
type MassProperties struct {
	Mass    float64
	COM     Vec3
	Inertia Mat3
}

// SpatialInertia returns the 6x6 rigid-body spatial inertia about the body
// frame origin, in body axes.
func (mp MassProperties) SpatialInertia() SpatialMat {
	c := Skew(mp.COM)
	// inertia about the origin: I_com - m*c*c (parallel axis, c skew-symmetric)
	return SpatialMat{
		AA: mp.Inertia.Sub(c.Mul(c).Scale(mp.Mass)),
		AL: c.Scale(mp.Mass),
		LA: c.Scale(-mp.Mass),
		LL: Identity3().Scale(mp.Mass),
	}
}
