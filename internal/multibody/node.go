package multibody

import (
	"gonum.org/v1/gonum/mat"

	"github.com/mzeidler/mbd/internal/spatial"
)

// joint is the per-joint-kind capability: coordinate layout, the joint
// transform and motion subspace, the speed-to-coordinate-rate map, and any
// representation-internal constraint (quaternion normalization).
type joint interface {
	dof() int
	nq() int
	// transform builds the joint-frame-to-body-frame placement from this
	// joint's local coordinates.
	transform(q []float64) spatial.Transform
	// motionSubspace returns the columns of S in body coordinates. All
	// supported joints have S constant in the body frame.
	motionSubspace() []spatial.Motion
	calcQDot(q, u, qdot []float64)
	enforce(q []float64)
}

// NodeSpec describes a body and the joint connecting it to its parent.
type NodeSpec struct {
	Joint JointKind
	Axis  spatial.Vec3 // rotation/translation axis for pin and slider joints
	Mass  spatial.MassProperties
}

// Node is one tree element: a rigid body attached to its parent through a
// joint. Nodes are created and owned by a Tree; all per-step quantities are
// caches overwritten by the realization sweeps.
type Node struct {
	tree     *Tree
	parent   *Node
	children []*Node

	nodeNum int
	level   int
	qIx     int
	uIx     int

	jnt  joint
	ref  spatial.Transform // body reference frame in parent body frame
	mass spatial.MassProperties
	mSp  spatial.SpatialMat // rigid-body spatial inertia, body coordinates

	// configuration cache
	q    []float64         // local coordinates, exactly as realized
	xPar spatial.Transform // body frame in parent body frame
	pose spatial.Transform // body frame in ground
	s    []spatial.Motion  // motion subspace columns, body coordinates

	// velocity cache
	u    []float64
	v    spatial.Motion // spatial velocity, body coordinates
	cor  spatial.Motion // velocity-dependent (Coriolis) acceleration bias
	velG spatial.Motion // ground frame, linear part at the body origin

	// dynamics cache
	pArt     spatial.SpatialMat // articulated-body inertia P
	pProj    spatial.SpatialMat // P with this joint's freedom projected out
	sU       []spatial.Force    // U = P*S
	dLU      mat.LU             // factorization of D = S^T*P*S
	dDense   *mat.Dense
	z        spatial.Force // bias force Z
	eps      []float64     // joint force minus S^T*Z
	jointTau []float64     // prescribed generalized force at this joint
	udot     []float64
	a        spatial.Motion // spatial acceleration, body coordinates
	accG     spatial.Motion // ground frame, classical acceleration at the origin
	fInt     spatial.Force  // accumulator for the internal-force pass
	tau      []float64      // internal (hinge) forces from CalcTreeInternalForces
}

// Topology accessors.

func (n *Node) NodeNum() int  { return n.nodeNum }
func (n *Node) Level() int    { return n.level }
func (n *Node) Parent() *Node { return n.parent }
func (n *Node) DOF() int      { return n.jnt.dof() }
func (n *Node) MaxNQ() int    { return n.jnt.nq() }
func (n *Node) QIndex() int   { return n.qIx }
func (n *Node) UIndex() int   { return n.uIx }

// World-frame kinematics, consumed by stations and external callers.

// BodyRotation returns the rotation taking body-frame coordinates to ground.
func (n *Node) BodyRotation() spatial.Mat3 { return n.pose.R }

// BodyOrigin returns the body frame origin in the ground frame.
func (n *Node) BodyOrigin() spatial.Vec3 { return n.pose.P }

func (n *Node) SpatialAngVel() spatial.Vec3 { return n.velG.Ang }
func (n *Node) SpatialLinVel() spatial.Vec3 { return n.velG.Lin }
func (n *Node) SpatialAngAcc() spatial.Vec3 { return n.accG.Ang }

// SpatialLinAcc returns the classical acceleration of the body-fixed point at
// the body origin, in the ground frame.
func (n *Node) SpatialLinAcc() spatial.Vec3 { return n.accG.Lin }

// SetJointForces prescribes generalized forces (hinge torques) applied at this
// joint during dynamics. Applied in addition to the caller's spatial forces.
func (n *Node) SetJointForces(tau []float64) {
	if len(tau) != n.jnt.dof() {
		panic("multibody: joint force dimension mismatch")
	}
	copy(n.jointTau, tau)
}

func (n *Node) addChild(c *Node) {
	n.children = append(n.children, c)
}

func (n *Node) initSlices() {
	ndof := n.jnt.dof()
	n.mSp = n.mass.SpatialInertia()
	n.q = make([]float64, n.jnt.nq())
	n.u = make([]float64, ndof)
	n.s = n.jnt.motionSubspace()
	n.sU = make([]spatial.Force, ndof)
	n.eps = make([]float64, ndof)
	n.jointTau = make([]float64, ndof)
	n.udot = make([]float64, ndof)
	n.tau = make([]float64, ndof)
	if ndof > 0 {
		n.dDense = mat.NewDense(ndof, ndof, nil)
	}
}

// Staged realization.

func (n *Node) realizeModeling(s *State) {
	// Quaternion slots come up as all zeros; seed the identity so a caller
	// who never touches this joint still has a valid configuration.
	vars := s.Variables(n.tree)
	local := vars.Q[n.qIx : n.qIx+n.jnt.nq()]
	if qj, ok := n.jnt.(quaternionJoint); ok {
		qj.seedIdentity(local)
	}
}

func (n *Node) realizeParameters(s *State) {
	if n.level > 0 && n.mass.Mass < 0 {
		panic("multibody: negative body mass")
	}
}

func (n *Node) realizeConfiguration(q []float64) {
	copy(n.q, q[n.qIx:n.qIx+n.jnt.nq()])
	if n.level == 0 {
		n.pose = spatial.IdentityTransform()
		return
	}
	n.xPar = n.ref.Compose(n.jnt.transform(n.q))
	n.pose = n.parent.pose.Compose(n.xPar)
}

func (n *Node) realizeVelocity(u []float64) {
	copy(n.u, u[n.uIx:n.uIx+n.jnt.dof()])
	if n.level == 0 {
		n.v = spatial.Motion{}
		n.cor = spatial.Motion{}
		n.velG = spatial.Motion{}
		return
	}
	var vj spatial.Motion
	for k, col := range n.s {
		vj = vj.Add(col.Scale(n.u[k]))
	}
	n.v = n.xPar.ToChildMotion(n.parent.v).Add(vj)
	n.cor = spatial.CrossMotion(n.v, vj)
	n.velG = spatial.Motion{
		Ang: n.pose.R.MulVec(n.v.Ang),
		Lin: n.pose.R.MulVec(n.v.Lin),
	}
}

func (n *Node) enforceConstraints(q, u []float64) {
	n.jnt.enforce(q[n.qIx : n.qIx+n.jnt.nq()])
}

func (n *Node) calcQDot(u, qdot []float64) {
	n.jnt.calcQDot(n.q, u[n.uIx:n.uIx+n.jnt.dof()], qdot[n.qIx:n.qIx+n.jnt.nq()])
}

// Dynamics passes.

// calcP composes this node's articulated-body inertia from its rigid-body
// inertia and the children's already-projected articulated inertias, then
// factors the joint-space inertia D. Children must have run first.
func (n *Node) calcP() {
	n.pArt = n.mSp
	for _, c := range n.children {
		n.pArt = n.pArt.Add(c.xPar.CongruenceToParent(c.pProj))
	}

	ndof := n.jnt.dof()
	if ndof == 0 {
		n.pProj = n.pArt
		return
	}
	for k, col := range n.s {
		n.sU[k] = n.pArt.MulMotion(col)
	}
	for i := 0; i < ndof; i++ {
		for j := 0; j < ndof; j++ {
			n.dDense.Set(i, j, spatial.Pair(n.sU[j], n.s[i]))
		}
	}
	n.dLU.Factorize(n.dDense)

	// Project this joint's freedom out for the parent: P - U*D^-1*U^T.
	var dinv mat.Dense
	eye := identityDense(ndof)
	if err := n.dLU.SolveTo(&dinv, false, eye); err != nil {
		panic("multibody: singular joint-space inertia")
	}
	n.pProj = n.pArt
	for i := 0; i < ndof; i++ {
		for j := 0; j < ndof; j++ {
			n.pProj = n.pProj.Sub(spatial.OuterForce(n.sU[i], n.sU[j]).Scale(dinv.At(i, j)))
		}
	}
}

// calcZ composes the bias force from the gyroscopic term, the applied spatial
// force (ground frame, about this body's origin) and the children's bias
// forces. Children must have run first.
func (n *Node) calcZ(applied spatial.Force) {
	fb := spatial.Force{
		Ang: n.pose.R.TransposeMulVec(applied.Ang),
		Lin: n.pose.R.TransposeMulVec(applied.Lin),
	}
	n.z = spatial.CrossForce(n.v, n.mSp.MulMotion(n.v)).Sub(fb)
	for _, c := range n.children {
		n.z = n.z.Add(c.xPar.ToParentForce(c.zPlus()))
	}
	for k := range n.eps {
		n.eps[k] = n.jointTau[k] - spatial.Pair(n.z, n.s[k])
	}
}

// zPlus is the bias force this node hands to its parent: Z plus the projected
// inertia applied to the Coriolis bias plus the joint-force feedthrough.
func (n *Node) zPlus() spatial.Force {
	out := n.z.Add(n.pProj.MulMotion(n.cor))
	ndof := n.jnt.dof()
	if ndof == 0 {
		return out
	}
	var x mat.VecDense
	if err := n.dLU.SolveVecTo(&x, false, mat.NewVecDense(ndof, n.eps)); err != nil {
		panic("multibody: singular joint-space inertia")
	}
	for k := 0; k < ndof; k++ {
		out = out.Add(n.sU[k].Scale(x.AtVec(k)))
	}
	return out
}

// calcAccel computes the joint and spatial accelerations from the parent's
// already-computed spatial acceleration. Parents must have run first.
func (n *Node) calcAccel() {
	if n.level == 0 {
		n.a = spatial.Motion{}
		n.accG = spatial.Motion{}
		return
	}
	aFree := n.xPar.ToChildMotion(n.parent.a).Add(n.cor)
	ndof := n.jnt.dof()
	if ndof > 0 {
		rhs := make([]float64, ndof)
		for k := 0; k < ndof; k++ {
			rhs[k] = n.eps[k] - spatial.Pair(n.sU[k], aFree)
		}
		var x mat.VecDense
		if err := n.dLU.SolveVecTo(&x, false, mat.NewVecDense(ndof, rhs)); err != nil {
			panic("multibody: singular joint-space inertia")
		}
		n.a = aFree
		for k := 0; k < ndof; k++ {
			n.udot[k] = x.AtVec(k)
			n.a = n.a.Add(n.s[k].Scale(n.udot[k]))
		}
	} else {
		n.a = aFree
	}

	alphaG := n.pose.R.MulVec(n.a.Ang)
	aSpatialG := n.pose.R.MulVec(n.a.Lin)
	n.accG = spatial.Motion{
		Ang: alphaG,
		// classical point acceleration = spatial linear part + w x v
		Lin: aSpatialG.Add(n.velG.Ang.Cross(n.velG.Lin)),
	}
}

// calcInternalForce accumulates, tip to base, the spatial force transmitted
// through this joint under the applied forces alone (no inertia), and
// projects it onto the joint's motion subspace. Children must have run first.
func (n *Node) calcInternalForce(applied spatial.Force) {
	n.fInt = spatial.Force{
		Ang: n.pose.R.TransposeMulVec(applied.Ang),
		Lin: n.pose.R.TransposeMulVec(applied.Lin),
	}
	for _, c := range n.children {
		n.fInt = n.fInt.Add(c.xPar.ToParentForce(c.fInt))
	}
	for k, col := range n.s {
		n.tau[k] = spatial.Pair(n.fInt, col)
	}
}

// Vector scatter/gather.

func (n *Node) getPos(q []float64)    { copy(q[n.qIx:n.qIx+n.jnt.nq()], n.q) }
func (n *Node) getVel(u []float64)    { copy(u[n.uIx:n.uIx+n.jnt.dof()], n.u) }
func (n *Node) getAccel(ud []float64) { copy(ud[n.uIx:n.uIx+n.jnt.dof()], n.udot) }
func (n *Node) getInternalForce(t []float64) {
	copy(t[n.uIx:n.uIx+n.jnt.dof()], n.tau)
}

func identityDense(n int) *mat.Dense {
	d := mat.NewDense(n, n, nil)
	for i := 0; i < n; i++ {
		d.Set(i, i, 1)
	}
	return d
}
