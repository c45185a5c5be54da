// Package multibody maintains a tree of rigid bodies connected by joints,
// propagates configuration and motion through the tree in strict level
// order, and computes constrained forward dynamics with a recursive
// articulated-body algorithm plus holonomic distance (loop) constraints.
//
// Lifecycle is strictly staged: build topology (AddGroundNode, AddBodyNode,
// AddDistanceConstraint), lock it with RealizeConstruction, then per step
// RealizeConfiguration, RealizeVelocity, PrepareForDynamics and one of the
// forward-dynamics calls. Topology calls after the lock panic; they are
// caller bugs, not runtime conditions.
package multibody

import (
	"fmt"
	"strings"

	"github.com/mzeidler/mbd/internal/spatial"
)

type nodeRef struct {
	level  int
	offset int
}

// ConstraintSolver turns distance-constraint errors into corrective
// generalized forces and projects coordinates/speeds onto the constraint
// manifold. The Tree owns exactly one, created at construction lock.
type ConstraintSolver interface {
	// CalcConstraintForces inspects the acceleration errors left by the last
	// tree dynamics pass and reports whether a correction is needed.
	CalcConstraintForces() bool
	// AddInCorrectionForces adds the corrective spatial forces computed by
	// the last CalcConstraintForces call into the per-node force list.
	AddInCorrectionForces(forces []spatial.Force)
	// Enforce projects generalized coordinates and speeds onto the
	// constraint manifold.
	Enforce(q, u []float64) error
	// FixGradient corrects a raw internal-force vector for the gradient
	// contribution of the active constraints.
	FixGradient(tau []float64)
}

// Tree owns the nodes organized by level, the distance constraints and
// their runtime caches, and the constraint solver.
type Tree struct {
	levels    [][]*Node
	nodeIndex []nodeRef // nodeNum -> (level, offset)

	constraints []*DistanceConstraint
	dcRuntime   []DistanceConstraintRuntime
	solver      ConstraintSolver

	dofTotal   int
	sqDOFTotal int
	maxNQTotal int

	nextQ, nextU int
	constructed  bool
	parallel     bool

	// correctionPasses bounds loop-correction iterations per dynamics call.
	// The reference behavior is exactly one pass, with no claim that earlier
	// constraints stay satisfied after a correction; callers wanting
	// convergence opt in via SetCorrectionPasses.
	correctionPasses int
}

func NewTree() *Tree {
	return &Tree{correctionPasses: 1}
}

// SetCorrectionPasses sets the maximum number of loop-correction iterations
// performed by CalcLoopForwardDynamics. The default is 1.
func (t *Tree) SetCorrectionPasses(n int) {
	if n < 1 {
		panic("multibody: correction passes must be at least 1")
	}
	t.correctionPasses = n
}

// AddGroundNode creates the immovable base node at level 0, node number 0.
// It must be the first node added.
func (t *Tree) AddGroundNode() *Node {
	if len(t.nodeIndex) != 0 || len(t.levels) != 0 {
		panic("multibody: ground node must be the first node added")
	}
	n := &Node{
		tree: t,
		jnt:  groundJoint{},
	}
	n.initSlices()
	t.levels = append(t.levels, []*Node{n})
	t.nodeIndex = append(t.nodeIndex, nodeRef{0, 0})
	return n
}

// AddBodyNode creates a body attached to parent through the joint described
// by spec, with the body's reference frame placed at frameInParent. The new
// node lands one level below its parent and gets the next sequential number.
func (t *Tree) AddBodyNode(parent *Node, frameInParent spatial.Transform, spec NodeSpec) *Node {
	if t.constructed {
		panic("multibody: cannot add bodies after construction is locked")
	}
	if parent == nil || parent.tree != t {
		panic("multibody: parent node does not belong to this tree")
	}
	if spec.Joint == JointGround {
		panic("multibody: ground joint is reserved for the ground node")
	}
	n := &Node{
		tree:   t,
		parent: parent,
		level:  parent.level + 1,
		jnt:    newJoint(spec.Joint, spec.Axis),
		ref:    frameInParent,
		mass:   spec.Mass,
		qIx:    t.nextQ,
		uIx:    t.nextU,
	}
	n.initSlices()
	t.nextQ += n.jnt.nq()
	t.nextU += n.jnt.dof()

	for len(t.levels) <= n.level {
		t.levels = append(t.levels, nil)
	}
	n.nodeNum = len(t.nodeIndex)
	t.nodeIndex = append(t.nodeIndex, nodeRef{n.level, len(t.levels[n.level])})
	t.levels[n.level] = append(t.levels[n.level], n)

	parent.addChild(n)
	return n
}

// AddDistanceConstraint stores the constraint and assigns its runtime cache
// slot. The returned index equals the 0-based insertion order.
func (t *Tree) AddDistanceConstraint(s1, s2 Station, distance float64) int {
	if t.constructed {
		panic("multibody: cannot add constraints after construction is locked")
	}
	dc := newDistanceConstraint(s1, s2, distance)
	dc.runtimeIndex = len(t.dcRuntime)
	t.dcRuntime = append(t.dcRuntime, DistanceConstraintRuntime{})
	t.constraints = append(t.constraints, dc)
	return len(t.constraints) - 1
}

// RealizeConstruction locks the topology: no node or constraint may be added
// afterward. It accumulates the coordinate bookkeeping totals and builds the
// constraint solver with the given tolerance and verbosity.
func (t *Tree) RealizeConstruction(ctol float64, verbose int) {
	if t.constructed {
		panic("multibody: RealizeConstruction called twice")
	}
	if len(t.levels) == 0 {
		panic("multibody: construction requires a ground node")
	}
	t.dofTotal, t.sqDOFTotal, t.maxNQTotal = 0, 0, 0
	for _, level := range t.levels {
		for _, n := range level {
			ndof := n.jnt.dof()
			t.dofTotal += ndof
			t.sqDOFTotal += ndof * ndof
			t.maxNQTotal += n.jnt.nq()
		}
	}
	t.solver = newLoopSolver(t, ctol, verbose)
	t.constructed = true
}

// RealizeModeling locks per-node modeling choices into the state.
func (t *Tree) RealizeModeling(s *State) {
	t.sweepOut(func(n *Node) { n.realizeModeling(s) })
}

// RealizeParameters locks the parameterization, such as body masses.
func (t *Tree) RealizeParameters(s *State) {
	t.sweepOut(func(n *Node) { n.realizeParameters(s) })
}

// RealizeConfiguration sets generalized coordinates, sweeping base to tips,
// then refreshes every distance constraint's position error.
func (t *Tree) RealizeConfiguration(q []float64) {
	if len(q) != t.maxNQTotal && t.constructed {
		panic(fmt.Sprintf("multibody: coordinate vector has %d entries, want %d", len(q), t.maxNQTotal))
	}
	t.sweepOut(func(n *Node) { n.realizeConfiguration(q) })
	for _, dc := range t.constraints {
		dc.calcPosInfo(&t.dcRuntime[dc.runtimeIndex])
	}
}

// RealizeVelocity sets generalized speeds, sweeping base to tips, then
// refreshes every distance constraint's velocity error. The configuration
// must already be realized.
func (t *Tree) RealizeVelocity(u []float64) {
	if len(u) != t.dofTotal && t.constructed {
		panic(fmt.Sprintf("multibody: speed vector has %d entries, want %d", len(u), t.dofTotal))
	}
	t.sweepOut(func(n *Node) { n.realizeVelocity(u) })
	for _, dc := range t.constraints {
		dc.calcVelInfo(&t.dcRuntime[dc.runtimeIndex])
	}
}

// EnforceTreeConstraints asks each node to clamp or renormalize its own
// local coordinates (quaternion normalization). Order does not matter.
func (t *Tree) EnforceTreeConstraints(q, u []float64) {
	t.sweepOut(func(n *Node) { n.enforceConstraints(q, u) })
}

// EnforceConstraints projects the global coordinates and speeds onto the
// loop-closure manifold via the constraint solver.
func (t *Tree) EnforceConstraints(q, u []float64) error {
	return t.solver.Enforce(q, u)
}

// CalcQDot maps generalized speeds to coordinate rates at the current
// configuration, for an external integrator.
func (t *Tree) CalcQDot(u, qdot []float64) {
	t.sweepOut(func(n *Node) { n.calcQDot(u, qdot) })
}

// PrepareForDynamics computes the position-dependent articulated-body
// inertias. Must be called after each configuration change, before any
// forward-dynamics or correction call.
func (t *Tree) PrepareForDynamics() {
	t.calcP()
}

// CalcTreeForwardDynamics computes accelerations from the applied spatial
// forces, ignoring loop constraints, then refreshes every constraint's
// acceleration error. PrepareForDynamics must already have run for the
// current configuration; violating that yields dynamics against a stale
// inertia structure, undetected.
func (t *Tree) CalcTreeForwardDynamics(spatialForces []spatial.Force) {
	t.calcZ(spatialForces)
	t.calcTreeAccel()

	for _, dc := range t.constraints {
		dc.calcAccInfo(&t.dcRuntime[dc.runtimeIndex])
	}
}

// CalcLoopForwardDynamics computes accelerations resulting from the applied
// forces and enforcement of the acceleration-level loop constraints. If the
// solver reports an active correction, the corrected forces are applied and
// the tree dynamics recomputed once.
func (t *Tree) CalcLoopForwardDynamics(spatialForces []spatial.Force) {
	sFrc := make([]spatial.Force, len(spatialForces))
	copy(sFrc, spatialForces)
	t.CalcTreeForwardDynamics(sFrc)
	for pass := 0; pass < t.correctionPasses; pass++ {
		if !t.solver.CalcConstraintForces() {
			break
		}
		t.solver.AddInCorrectionForces(sFrc)
		t.CalcTreeForwardDynamics(sFrc)
	}
}

// calcP sweeps tip to base composing articulated-body inertias.
func (t *Tree) calcP() {
	t.sweepIn(func(n *Node) { n.calcP() })
}

// calcZ sweeps tip to base composing bias forces.
func (t *Tree) calcZ(spatialForces []spatial.Force) {
	t.checkForces(spatialForces)
	t.sweepIn(func(n *Node) { n.calcZ(spatialForces[n.nodeNum]) })
}

// calcTreeAccel sweeps base to tip propagating accelerations.
func (t *Tree) calcTreeAccel() {
	t.sweepOut(func(n *Node) { n.calcAccel() })
}

// CalcTreeInternalForces accumulates, tip to base, the joint-level forces
// implied by the applied spatial forces alone. No inertia is involved.
func (t *Tree) CalcTreeInternalForces(spatialForces []spatial.Force) {
	t.checkForces(spatialForces)
	t.sweepIn(func(n *Node) { n.calcInternalForce(spatialForces[n.nodeNum]) })
}

// InternalForces retrieves the result of CalcTreeInternalForces.
func (t *Tree) InternalForces(tau []float64) {
	t.sweepOut(func(n *Node) { n.getInternalForce(tau) })
}

// ConstraintCorrectedInternalForces additionally corrects the raw vector for
// the gradient contribution of the active loop constraints.
func (t *Tree) ConstraintCorrectedInternalForces(tau []float64) {
	t.InternalForces(tau)
	t.solver.FixGradient(tau)
}

// Pos writes the current generalized coordinates into q.
func (t *Tree) Pos(q []float64) {
	t.sweepOut(func(n *Node) { n.getPos(q) })
}

// Vel writes the current generalized speeds into u.
func (t *Tree) Vel(u []float64) {
	t.sweepOut(func(n *Node) { n.getVel(u) })
}

// Acc writes the accelerations from the last dynamics pass into udot.
func (t *Tree) Acc(udot []float64) {
	t.sweepOut(func(n *Node) { n.getAccel(udot) })
}

// ApplyJointForces distributes prescribed generalized forces to the nodes.
func (t *Tree) ApplyJointForces(tau []float64) {
	if len(tau) != t.dofTotal {
		panic("multibody: joint force vector dimension mismatch")
	}
	t.sweepOut(func(n *Node) {
		if n.jnt.dof() > 0 {
			n.SetJointForces(tau[n.uIx : n.uIx+n.jnt.dof()])
		}
	})
}

// Accessors.

func (t *Tree) NBodies() int    { return len(t.nodeIndex) }
func (t *Tree) NLevels() int    { return len(t.levels) }
func (t *Tree) DOFTotal() int   { return t.dofTotal }
func (t *Tree) SqDOFTotal() int { return t.sqDOFTotal }
func (t *Tree) MaxNQTotal() int { return t.maxNQTotal }

func (t *Tree) Node(nodeNum int) *Node {
	ref := t.nodeIndex[nodeNum]
	return t.levels[ref.level][ref.offset]
}

func (t *Tree) NConstraints() int { return len(t.constraints) }

func (t *Tree) Constraint(i int) *DistanceConstraint { return t.constraints[i] }

// ConstraintRuntime returns the runtime cache of constraint i as of the last
// realization or dynamics pass.
func (t *Tree) ConstraintRuntime(i int) *DistanceConstraintRuntime {
	return &t.dcRuntime[t.constraints[i].runtimeIndex]
}

// SetParallel enables per-level parallel sweeps. Nodes within a level never
// read each other's per-step results, so this changes no semantics.
func (t *Tree) SetParallel(on bool) { t.parallel = on }

// KineticEnergy returns the total kinetic energy at the realized velocities.
func (t *Tree) KineticEnergy() float64 {
	ke := 0.0
	for _, level := range t.levels[1:] {
		for _, n := range level {
			ke += 0.5 * spatial.Pair(n.mSp.MulMotion(n.v), n.v)
		}
	}
	return ke
}

// PotentialEnergy returns the gravitational potential at the realized
// configuration, zero at the ground origin plane.
func (t *Tree) PotentialEnergy(gravity spatial.Vec3) float64 {
	pe := 0.0
	for _, level := range t.levels[1:] {
		for _, n := range level {
			com := n.pose.Apply(n.mass.COM)
			pe -= n.mass.Mass * gravity.Dot(com)
		}
	}
	return pe
}

// GravityForces fills forces with the spatial force of uniform gravity on
// each body, about each body's origin, in the ground frame.
func (t *Tree) GravityForces(gravity spatial.Vec3, forces []spatial.Force) {
	t.checkForces(forces)
	t.sweepOut(func(n *Node) {
		f := gravity.Scale(n.mass.Mass)
		comG := n.pose.R.MulVec(n.mass.COM)
		forces[n.nodeNum] = spatial.Force{Ang: comG.Cross(f), Lin: f}
	})
}

func (t *Tree) checkForces(forces []spatial.Force) {
	if len(forces) != len(t.nodeIndex) {
		panic(fmt.Sprintf("multibody: force list has %d entries, want one per body (%d)", len(forces), len(t.nodeIndex)))
	}
}

// String renders the topology assignment for debugging: per node number the
// (level, offset) mapping, the values read back from the node itself, and
// its coordinate/speed slots.
func (t *Tree) String() string {
	var b strings.Builder
	fmt.Fprintf(&b, "Tree has %d bodies (incl. ground) in %d levels\n", t.NBodies(), t.NLevels())
	b.WriteString("nodeNum->level,offset;stored nodeNum,level (uIndex:dof,qIndex:nq)\n")
	for i, ref := range t.nodeIndex {
		n := t.Node(i)
		fmt.Fprintf(&b, "%d->%d,%d;%d,%d(u%d:%d,q%d:%d)\n",
			i, ref.level, ref.offset,
			n.nodeNum, n.level, n.uIx, n.jnt.dof(), n.qIx, n.jnt.nq())
	}
	return b.String()
}
