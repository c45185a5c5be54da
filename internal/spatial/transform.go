package spatial

// Transform places a child frame in a parent frame: R rotates child-axis
// coordinates into parent-axis coordinates, P is the child origin measured
// in the parent frame.
type Transform struct {
	R Mat3
	P Vec3
}

func IdentityTransform() Transform {
	return Transform{R: Identity3()}
}

// Compose chains transforms: if t places B in A and other places C in B,
// the result places C in A.
func (t Transform) Compose(other Transform) Transform {
	return Transform{
		R: t.R.Mul(other.R),
		P: t.P.Add(t.R.MulVec(other.P)),
	}
}

// Apply maps a point from child coordinates to parent coordinates.
func (t Transform) Apply(p Vec3) Vec3 {
	return t.P.Add(t.R.MulVec(p))
}

// ToChildMotion re-expresses a spatial motion vector, given in the parent
// frame about the parent origin, in the child frame about the child origin.
func (t Transform) ToChildMotion(m Motion) Motion {
	return Motion{
		Ang: t.R.TransposeMulVec(m.Ang),
		Lin: t.R.TransposeMulVec(m.Lin.Add(m.Ang.Cross(t.P))),
	}
}

// ToParentMotion is the inverse of ToChildMotion.
func (t Transform) ToParentMotion(m Motion) Motion {
	ang := t.R.MulVec(m.Ang)
	return Motion{
		Ang: ang,
		Lin: t.R.MulVec(m.Lin).Sub(ang.Cross(t.P)),
	}
}

// ToParentForce re-expresses a spatial force, given in the child frame about
// the child origin, in the parent frame about the parent origin.
func (t Transform) ToParentForce(f Force) Force {
	lin := t.R.MulVec(f.Lin)
	return Force{
		Ang: t.R.MulVec(f.Ang).Add(t.P.Cross(lin)),
		Lin: lin,
	}
}

// CongruenceToParent computes X^T M X where X is the parent-to-child motion
// map of t. This shifts an articulated (motion-to-force) operator expressed
// at the child origin to the parent origin.
func (t Transform) CongruenceToParent(m SpatialMat) SpatialMat {
	rt := t.R.Transpose()
	ps := Skew(t.P)
	rtps := rt.Mul(ps)

	// MX blocks, X = [ R^T 0 ; -R^T*ps R^T ]
	mx11 := m.AA.Mul(rt).Sub(m.AL.Mul(rtps))
	mx12 := m.AL.Mul(rt)
	mx21 := m.LA.Mul(rt).Sub(m.LL.Mul(rtps))
	mx22 := m.LL.Mul(rt)

	// X^T = [ R ps*R ; 0 R ]
	psr := ps.Mul(t.R)
	return SpatialMat{
		AA: t.R.Mul(mx11).Add(psr.Mul(mx21)),
		AL: t.R.Mul(mx12).Add(psr.Mul(mx22)),
		LA: t.R.Mul(mx21),
		LL: t.R.Mul(mx22),
	}
}
