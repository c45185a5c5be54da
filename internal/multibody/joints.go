package multibody

import (
	"math"

	"github.com/mzeidler/mbd/internal/spatial"
)

// JointKind selects how a body moves relative to its parent. The set is
// closed; the Tree never inspects which kind a node holds.
type JointKind int

const (
	JointGround JointKind = iota // immovable base, no coordinates
	JointPin                     // one rotational freedom about an axis
	JointSlider                  // one translational freedom along an axis
	JointBall                    // three rotational freedoms, quaternion
	JointFree                    // six freedoms, quaternion plus translation
)

func (k JointKind) String() string {
	switch k {
	case JointGround:
		return "ground"
	case JointPin:
		return "pin"
	case JointSlider:
		return "slider"
	case JointBall:
		return "ball"
	case JointFree:
		return "free"
	}
	return "unknown"
}

func newJoint(kind JointKind, axis spatial.Vec3) joint {
	switch kind {
	case JointGround:
		return groundJoint{}
	case JointPin:
		return pinJoint{axis: axis}
	case JointSlider:
		return sliderJoint{axis: axis}
	case JointBall:
		return ballJoint{}
	case JointFree:
		return freeJoint{}
	}
	panic("multibody: unknown joint kind")
}

// quaternionJoint marks joints whose leading coordinates are a unit
// quaternion needing an identity seed and periodic renormalization.
type quaternionJoint interface {
	seedIdentity(q []float64)
}

type groundJoint struct{}

func (groundJoint) dof() int { return 0 }
func (groundJoint) nq() int  { return 0 }

func (groundJoint) transform(q []float64) spatial.Transform { return spatial.IdentityTransform() }
func (groundJoint) motionSubspace() []spatial.Motion        { return nil }
func (groundJoint) calcQDot(q, u, qdot []float64)           {}
func (groundJoint) enforce(q []float64)                     {}

type pinJoint struct {
	axis spatial.Vec3
}

func (pinJoint) dof() int { return 1 }
func (pinJoint) nq() int  { return 1 }

func (j pinJoint) transform(q []float64) spatial.Transform {
	return spatial.Transform{R: spatial.RotAxis(j.axis, q[0])}
}

func (j pinJoint) motionSubspace() []spatial.Motion {
	return []spatial.Motion{{Ang: j.axis}}
}

func (pinJoint) calcQDot(q, u, qdot []float64) { qdot[0] = u[0] }
func (pinJoint) enforce(q []float64)           {}

type sliderJoint struct {
	axis spatial.Vec3
}

func (sliderJoint) dof() int { return 1 }
func (sliderJoint) nq() int  { return 1 }

func (j sliderJoint) transform(q []float64) spatial.Transform {
	return spatial.Transform{R: spatial.Identity3(), P: j.axis.Scale(q[0])}
}

func (j sliderJoint) motionSubspace() []spatial.Motion {
	return []spatial.Motion{{Lin: j.axis}}
}

func (sliderJoint) calcQDot(q, u, qdot []float64) { qdot[0] = u[0] }
func (sliderJoint) enforce(q []float64)           {}

type ballJoint struct{}

func (ballJoint) dof() int { return 3 }
func (ballJoint) nq() int  { return 4 }

func (ballJoint) transform(q []float64) spatial.Transform {
	quat := spatial.Quat{W: q[0], X: q[1], Y: q[2], Z: q[3]}.Normalize()
	return spatial.Transform{R: quat.RotMat()}
}

func (ballJoint) motionSubspace() []spatial.Motion {
	return []spatial.Motion{
		{Ang: spatial.Vec3{X: 1}},
		{Ang: spatial.Vec3{Y: 1}},
		{Ang: spatial.Vec3{Z: 1}},
	}
}

func (ballJoint) calcQDot(q, u, qdot []float64) {
	quat := spatial.Quat{W: q[0], X: q[1], Y: q[2], Z: q[3]}
	qd := quat.Derivative(spatial.Vec3{X: u[0], Y: u[1], Z: u[2]})
	qdot[0], qdot[1], qdot[2], qdot[3] = qd.W, qd.X, qd.Y, qd.Z
}

func (ballJoint) enforce(q []float64) { normalizeQuatSlice(q) }

func (ballJoint) seedIdentity(q []float64) { seedQuatSlice(q) }

type freeJoint struct{}

func (freeJoint) dof() int { return 6 }
func (freeJoint) nq() int  { return 7 }

func (freeJoint) transform(q []float64) spatial.Transform {
	quat := spatial.Quat{W: q[0], X: q[1], Y: q[2], Z: q[3]}.Normalize()
	return spatial.Transform{
		R: quat.RotMat(),
		P: spatial.Vec3{X: q[4], Y: q[5], Z: q[6]},
	}
}

func (freeJoint) motionSubspace() []spatial.Motion {
	return []spatial.Motion{
		{Ang: spatial.Vec3{X: 1}},
		{Ang: spatial.Vec3{Y: 1}},
		{Ang: spatial.Vec3{Z: 1}},
		{Lin: spatial.Vec3{X: 1}},
		{Lin: spatial.Vec3{Y: 1}},
		{Lin: spatial.Vec3{Z: 1}},
	}
}

func (freeJoint) calcQDot(q, u, qdot []float64) {
	quat := spatial.Quat{W: q[0], X: q[1], Y: q[2], Z: q[3]}
	qd := quat.Derivative(spatial.Vec3{X: u[0], Y: u[1], Z: u[2]})
	qdot[0], qdot[1], qdot[2], qdot[3] = qd.W, qd.X, qd.Y, qd.Z
	// translation coordinates live in the joint frame
	pd := quat.Normalize().RotMat().MulVec(spatial.Vec3{X: u[3], Y: u[4], Z: u[5]})
	qdot[4], qdot[5], qdot[6] = pd.X, pd.Y, pd.Z
}

func (freeJoint) enforce(q []float64) { normalizeQuatSlice(q[:4]) }

func (freeJoint) seedIdentity(q []float64) { seedQuatSlice(q[:4]) }

func normalizeQuatSlice(q []float64) {
	n := math.Sqrt(q[0]*q[0] + q[1]*q[1] + q[2]*q[2] + q[3]*q[3])
	if n == 0 {
		q[0] = 1
		return
	}
	for i := range q[:4] {
		q[i] /= n
	}
}

func seedQuatSlice(q []float64) {
	if q[0] == 0 && q[1] == 0 && q[2] == 0 && q[3] == 0 {
		q[0] = 1
	}
}
