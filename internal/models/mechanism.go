// Package models builds ready-to-simulate multibody mechanisms and adapts
// them to the sim.System interface. The first-order state vector is the
// tree's generalized coordinates followed by its generalized speeds, and
// the control vector maps one-to-one onto the generalized joint forces.
package models

import (
	"math"

	"github.com/mzeidler/mbd/internal/multibody"
	"github.com/mzeidler/mbd/internal/sim"
	"github.com/mzeidler/mbd/internal/spatial"
)

// Mechanism wraps a realized multibody tree as a dynamical system. A
// Mechanism owns its tree's realization caches, so a single instance must
// not be shared between concurrent simulations.
type Mechanism struct {
	name    string
	tree    *multibody.Tree
	gravity spatial.Vec3

	nq, nu int
	forces []spatial.Force
	tau    []float64
}

func newMechanism(name string, tree *multibody.Tree, gravity spatial.Vec3) *Mechanism {
	return &Mechanism{
		name:    name,
		tree:    tree,
		gravity: gravity,
		nq:      tree.MaxNQTotal(),
		nu:      tree.DOFTotal(),
		forces:  make([]spatial.Force, tree.NBodies()),
		tau:     make([]float64, tree.DOFTotal()),
	}
}

func (m *Mechanism) Name() string          { return m.name }
func (m *Mechanism) Tree() *multibody.Tree { return m.tree }
func (m *Mechanism) Gravity() spatial.Vec3 { return m.gravity }
func (m *Mechanism) StateDim() int         { return m.nq + m.nu }
func (m *Mechanism) ControlDim() int       { return m.nu }

func (m *Mechanism) split(x sim.State) (q, u []float64) {
	return x[:m.nq], x[m.nq : m.nq+m.nu]
}

// DefaultState returns the state at the joints' reference configuration,
// with quaternion coordinates seeded to identity and zero speeds.
func (m *Mechanism) DefaultState() sim.State {
	var st multibody.State
	m.tree.RealizeModeling(&st)
	vars := st.Variables(m.tree)

	x := make(sim.State, m.nq+m.nu)
	copy(x[:m.nq], vars.Q)
	return x
}

// Derive implements sim.System by one forward-dynamics pass: realize the
// incoming state, apply gravity and the joint forces in u, solve for the
// accelerations (with loop correction when constraints are present), and
// report coordinate rates plus generalized accelerations.
func (m *Mechanism) Derive(x sim.State, u sim.Control, t float64) sim.State {
	q, uu := m.split(x)

	m.tree.RealizeConfiguration(q)
	m.tree.RealizeVelocity(uu)
	m.tree.PrepareForDynamics()

	for i := range m.tau {
		m.tau[i] = 0
	}
	copy(m.tau, u)
	m.tree.ApplyJointForces(m.tau)

	m.tree.GravityForces(m.gravity, m.forces)
	if m.tree.NConstraints() > 0 {
		m.tree.CalcLoopForwardDynamics(m.forces)
	} else {
		m.tree.CalcTreeForwardDynamics(m.forces)
	}

	xdot := make(sim.State, m.nq+m.nu)
	m.tree.CalcQDot(uu, xdot[:m.nq])
	m.tree.Acc(xdot[m.nq:])
	return xdot
}

// Energy implements sim.Hamiltonian.
func (m *Mechanism) Energy(x sim.State) float64 {
	q, uu := m.split(x)
	m.tree.RealizeConfiguration(q)
	m.tree.RealizeVelocity(uu)
	return m.tree.KineticEnergy() + m.tree.PotentialEnergy(m.gravity)
}

// KineticEnergy realizes x and returns the tree's kinetic energy.
func (m *Mechanism) KineticEnergy(x sim.State) float64 {
	q, uu := m.split(x)
	m.tree.RealizeConfiguration(q)
	m.tree.RealizeVelocity(uu)
	return m.tree.KineticEnergy()
}

// PotentialEnergy realizes the configuration in x and returns the
// gravitational potential energy.
func (m *Mechanism) PotentialEnergy(x sim.State) float64 {
	q, _ := m.split(x)
	m.tree.RealizeConfiguration(q)
	return m.tree.PotentialEnergy(m.gravity)
}

// Project implements sim.Projector: quaternion coordinates are
// renormalized after every step, and loop-closure constraints are enforced
// when the mechanism has any.
func (m *Mechanism) Project(x sim.State) error {
	q, uu := m.split(x)
	m.tree.EnforceTreeConstraints(q, uu)
	if m.tree.NConstraints() > 0 {
		return m.tree.EnforceConstraints(q, uu)
	}
	return nil
}

// ConstraintError returns the worst loop-closure position error at x.
func (m *Mechanism) ConstraintError(x sim.State) float64 {
	if m.tree.NConstraints() == 0 {
		return 0
	}
	q, _ := m.split(x)
	m.tree.RealizeConfiguration(q)
	worst := 0.0
	for i := 0; i < m.tree.NConstraints(); i++ {
		if e := math.Abs(m.tree.ConstraintRuntime(i).PosErr); e > worst {
			worst = e
		}
	}
	return worst
}

// BodyOrigins realizes the configuration in x and returns every body
// origin in ground coordinates, indexed by body number. Used by the
// terminal views to draw the linkage.
func (m *Mechanism) BodyOrigins(x sim.State) []spatial.Vec3 {
	q, _ := m.split(x)
	m.tree.RealizeConfiguration(q)
	origins := make([]spatial.Vec3, m.tree.NBodies())
	for i := range origins {
		origins[i] = m.tree.Node(i).BodyOrigin()
	}
	return origins
}

// BodyParents returns, per body number, the parent's body number (-1 for
// ground).
func (m *Mechanism) BodyParents() []int {
	parents := make([]int, m.tree.NBodies())
	for i := range parents {
		p := m.tree.Node(i).Parent()
		if p == nil {
			parents[i] = -1
		} else {
			parents[i] = p.NodeNum()
		}
	}
	return parents
}
