package multibody

import (
	"math"
	"testing"

	"github.com/mzeidler/mbd/internal/spatial"
)

var gravity = spatial.Vec3{Y: -9.81}

func TestFreeBodyGravityClosedForm(t *testing.T) {
	tree := NewTree()
	ground := tree.AddGroundNode()
	tree.AddBodyNode(ground, spatial.IdentityTransform(),
		NodeSpec{Joint: JointFree, Mass: spatial.MassProperties{Mass: 2, Inertia: spatial.Diag3(0.1, 0.2, 0.3)}})
	tree.RealizeConstruction(1e-9, 0)

	q := make([]float64, tree.MaxNQTotal())
	q[0] = 1 // identity quaternion
	u := make([]float64, tree.DOFTotal())
	tree.RealizeConfiguration(q)
	tree.RealizeVelocity(u)
	tree.PrepareForDynamics()

	forces := make([]spatial.Force, tree.NBodies())
	tree.GravityForces(gravity, forces)
	tree.CalcTreeForwardDynamics(forces)

	udot := make([]float64, tree.DOFTotal())
	tree.Acc(udot)
	want := []float64{0, 0, 0, 0, -9.81, 0}
	for i := range want {
		if math.Abs(udot[i]-want[i]) > 1e-9 {
			t.Errorf("udot[%d] = %v, want %v", i, udot[i], want[i])
		}
	}
}

func TestPendulumGravityClosedForm(t *testing.T) {
	length := 1.5
	m := 2.0
	tree := NewTree()
	ground := tree.AddGroundNode()
	tree.AddBodyNode(ground, spatial.IdentityTransform(),
		NodeSpec{Joint: JointPin, Axis: spatial.Vec3{Z: 1}, Mass: pointMass(m, spatial.Vec3{X: length})})
	tree.RealizeConstruction(1e-9, 0)

	tree.RealizeConfiguration([]float64{0})
	tree.RealizeVelocity([]float64{0})
	tree.PrepareForDynamics()

	forces := make([]spatial.Force, tree.NBodies())
	tree.GravityForces(gravity, forces)
	tree.CalcTreeForwardDynamics(forces)

	udot := make([]float64, 1)
	tree.Acc(udot)
	// horizontal point-mass pendulum: thetadd = -g/L
	want := -9.81 / length
	if math.Abs(udot[0]-want) > 1e-9 {
		t.Errorf("thetadd = %v, want %v", udot[0], want)
	}
}

func TestPrescribedJointForce(t *testing.T) {
	length := 1.0
	m := 1.0
	tree := NewTree()
	ground := tree.AddGroundNode()
	body := tree.AddBodyNode(ground, spatial.IdentityTransform(),
		NodeSpec{Joint: JointPin, Axis: spatial.Vec3{Z: 1}, Mass: pointMass(m, spatial.Vec3{X: length})})
	tree.RealizeConstruction(1e-9, 0)

	tree.RealizeConfiguration([]float64{0})
	tree.RealizeVelocity([]float64{0})
	tree.PrepareForDynamics()

	tau := 0.75
	body.SetJointForces([]float64{tau})
	tree.CalcTreeForwardDynamics(make([]spatial.Force, tree.NBodies()))

	udot := make([]float64, 1)
	tree.Acc(udot)
	want := tau / (m * length * length)
	if math.Abs(udot[0]-want) > 1e-9 {
		t.Errorf("thetadd = %v, want tau/(m L^2) = %v", udot[0], want)
	}
}

func TestLoopDynamicsMatchesTreeWithoutConstraints(t *testing.T) {
	build := func() *Tree {
		tree := NewTree()
		ground := tree.AddGroundNode()
		zAxis := spatial.Vec3{Z: 1}
		a := tree.AddBodyNode(ground, spatial.IdentityTransform(),
			NodeSpec{Joint: JointPin, Axis: zAxis, Mass: pointMass(1, spatial.Vec3{X: 1})})
		tree.AddBodyNode(a, spatial.Transform{R: spatial.Identity3(), P: spatial.Vec3{X: 1}},
			NodeSpec{Joint: JointPin, Axis: zAxis, Mass: pointMass(1, spatial.Vec3{X: 1})})
		tree.RealizeConstruction(1e-9, 0)
		return tree
	}
	q := []float64{0.4, -0.9}
	u := []float64{1.1, 0.3}

	run := func(tree *Tree, loop bool) []float64 {
		tree.RealizeConfiguration(q)
		tree.RealizeVelocity(u)
		tree.PrepareForDynamics()
		forces := make([]spatial.Force, tree.NBodies())
		tree.GravityForces(gravity, forces)
		if loop {
			tree.CalcLoopForwardDynamics(forces)
		} else {
			tree.CalcTreeForwardDynamics(forces)
		}
		udot := make([]float64, tree.DOFTotal())
		tree.Acc(udot)
		return udot
	}

	plain := run(build(), false)
	looped := run(build(), true)
	for i := range plain {
		if plain[i] != looped[i] {
			t.Errorf("udot[%d]: loop dynamics %v differs from tree dynamics %v with no constraints",
				i, looped[i], plain[i])
		}
	}
}

func TestLoopCorrectionReducesAccelerationError(t *testing.T) {
	tree, _ := buildTwoPinChain(t, 1.6)
	// a bent chain at rest: the unconstrained tip acceleration has a
	// component along the station separation
	q := []float64{0.3, -0.6}
	u := make([]float64, tree.DOFTotal())
	tree.RealizeConfiguration(q)
	tree.RealizeVelocity(u)
	tree.PrepareForDynamics()

	forces := make([]spatial.Force, tree.NBodies())
	tree.GravityForces(gravity, forces)

	tree.CalcTreeForwardDynamics(forces)
	before := math.Abs(tree.ConstraintRuntime(0).AccErr)

	tree.CalcLoopForwardDynamics(forces)
	after := math.Abs(tree.ConstraintRuntime(0).AccErr)

	if before < 1e-6 {
		t.Fatalf("test setup: unconstrained dynamics should violate the constraint, accErr = %v", before)
	}
	if after > 1e-6 {
		t.Errorf("constrained accErr = %v, want ~0 (was %v unconstrained)", after, before)
	}
}

func TestEnforceConstraintsProjects(t *testing.T) {
	tree, _ := buildTwoPinChain(t, 1.6)
	// perturb both joints off the manifold
	q := []float64{0.2, -0.35}
	u := []float64{0.5, 0.5}
	if err := tree.EnforceConstraints(q, u); err != nil {
		t.Fatalf("EnforceConstraints: %v", err)
	}

	tree.RealizeConfiguration(q)
	tree.RealizeVelocity(u)
	if perr := tree.ConstraintRuntime(0).PosErr; math.Abs(perr) > 1e-8 {
		t.Errorf("posErr after enforcement = %v", perr)
	}
	if verr := tree.ConstraintRuntime(0).VelErr; math.Abs(verr) > 1e-8 {
		t.Errorf("velErr after enforcement = %v", verr)
	}
}

func TestInternalForcesGravityTorque(t *testing.T) {
	length := 1.0
	m := 3.0
	tree := NewTree()
	ground := tree.AddGroundNode()
	tree.AddBodyNode(ground, spatial.IdentityTransform(),
		NodeSpec{Joint: JointPin, Axis: spatial.Vec3{Z: 1}, Mass: pointMass(m, spatial.Vec3{X: length})})
	tree.RealizeConstruction(1e-9, 0)

	tree.RealizeConfiguration([]float64{0})
	tree.RealizeVelocity([]float64{0})

	forces := make([]spatial.Force, tree.NBodies())
	tree.GravityForces(gravity, forces)
	tree.CalcTreeInternalForces(forces)

	tau := make([]float64, tree.DOFTotal())
	tree.InternalForces(tau)
	// gravity torque about the hinge, horizontal pendulum: -m g L
	want := -m * 9.81 * length
	if math.Abs(tau[0]-want) > 1e-9 {
		t.Errorf("internal force = %v, want %v", tau[0], want)
	}
}

func TestConstraintCorrectedInternalForces(t *testing.T) {
	tree, _ := buildTwoPinChain(t, 1.6)
	q := []float64{0.3, -0.6}
	u := make([]float64, tree.DOFTotal())
	tree.RealizeConfiguration(q)
	tree.RealizeVelocity(u)

	forces := make([]spatial.Force, tree.NBodies())
	tree.GravityForces(gravity, forces)
	tree.CalcTreeInternalForces(forces)

	raw := make([]float64, tree.DOFTotal())
	tree.InternalForces(raw)
	corrected := make([]float64, tree.DOFTotal())
	tree.ConstraintCorrectedInternalForces(corrected)

	// the corrected vector has no component along the constraint normal:
	// J * corrected = 0
	tree.RealizeVelocity(corrected)
	if g := tree.ConstraintRuntime(0).VelErr; math.Abs(g) > 1e-8 {
		t.Errorf("corrected internal forces retain constraint component %v", g)
	}
	same := true
	for i := range raw {
		if math.Abs(raw[i]-corrected[i]) > 1e-12 {
			same = false
		}
	}
	if same {
		t.Error("gradient correction changed nothing for an active constraint")
	}
}

func TestParallelSweepsMatchSerial(t *testing.T) {
	build := func(parallel bool) []float64 {
		tree := NewTree()
		ground := tree.AddGroundNode()
		zAxis := spatial.Vec3{Z: 1}
		// wide level: many siblings hanging off ground
		bodies := make([]*Node, 0, 12)
		for i := 0; i < 12; i++ {
			off := spatial.Transform{R: spatial.Identity3(), P: spatial.Vec3{X: float64(i)}}
			bodies = append(bodies, tree.AddBodyNode(ground, off,
				NodeSpec{Joint: JointPin, Axis: zAxis, Mass: pointMass(1, spatial.Vec3{X: 1})}))
		}
		for _, b := range bodies {
			tree.AddBodyNode(b, spatial.Transform{R: spatial.Identity3(), P: spatial.Vec3{X: 1}},
				NodeSpec{Joint: JointPin, Axis: zAxis, Mass: pointMass(1, spatial.Vec3{X: 1})})
		}
		tree.RealizeConstruction(1e-9, 0)
		tree.SetParallel(parallel)

		q := make([]float64, tree.MaxNQTotal())
		u := make([]float64, tree.DOFTotal())
		for i := range q {
			q[i] = 0.1 * float64(i+1)
		}
		for i := range u {
			u[i] = -0.05 * float64(i+1)
		}
		tree.RealizeConfiguration(q)
		tree.RealizeVelocity(u)
		tree.PrepareForDynamics()
		forces := make([]spatial.Force, tree.NBodies())
		tree.GravityForces(gravity, forces)
		tree.CalcTreeForwardDynamics(forces)
		udot := make([]float64, tree.DOFTotal())
		tree.Acc(udot)
		return udot
	}

	serial := build(false)
	parallel := build(true)
	for i := range serial {
		if serial[i] != parallel[i] {
			t.Errorf("udot[%d]: parallel %v != serial %v", i, parallel[i], serial[i])
		}
	}
}

func TestEnergyAccessors(t *testing.T) {
	length := 2.0
	m := 1.5
	tree := NewTree()
	ground := tree.AddGroundNode()
	tree.AddBodyNode(ground, spatial.IdentityTransform(),
		NodeSpec{Joint: JointPin, Axis: spatial.Vec3{Z: 1}, Mass: pointMass(m, spatial.Vec3{X: length})})
	tree.RealizeConstruction(1e-9, 0)

	omega := 0.8
	tree.RealizeConfiguration([]float64{0})
	tree.RealizeVelocity([]float64{omega})

	ke := tree.KineticEnergy()
	wantKE := 0.5 * m * length * length * omega * omega
	if math.Abs(ke-wantKE) > 1e-9 {
		t.Errorf("kinetic energy = %v, want %v", ke, wantKE)
	}
	pe := tree.PotentialEnergy(gravity)
	// com at (L, 0, 0): potential is zero on the ground plane
	if math.Abs(pe) > 1e-9 {
		t.Errorf("potential energy = %v, want 0 at height 0", pe)
	}
}
