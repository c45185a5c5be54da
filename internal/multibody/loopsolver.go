package multibody

import (
	"fmt"
	"math"
	"os"

	"gonum.org/v1/gonum/mat"

	"github.com/mzeidler/mbd/internal/spatial"
)

const maxEnforceIters = 20

// loopSolver is the default ConstraintSolver. It works entirely through the
// tree's own sweeps: the velocity-space Jacobian comes from unit test
// speeds, and the acceleration compliance matrix from unit test forces
// (tree dynamics are linear in applied force once the articulated inertias
// are in place).
type loopSolver struct {
	tree    *Tree
	tol     float64
	verbose int

	corrections []spatial.Force
	active      bool
}

func newLoopSolver(t *Tree, tol float64, verbose int) *loopSolver {
	ls := &loopSolver{
		tree:        t,
		tol:         tol,
		verbose:     verbose,
		corrections: make([]spatial.Force, t.NBodies()),
	}
	if verbose > 0 {
		fmt.Fprintf(os.Stderr, "loop solver: %d distance constraints over %d bodies, tol %g\n",
			len(t.constraints), t.NBodies(), tol)
	}
	return ls
}

// CalcConstraintForces probes the tree with unit forces along each
// constraint to build the compliance matrix, then solves for the multipliers
// that cancel the acceleration errors left by the last dynamics pass.
func (ls *loopSolver) CalcConstraintForces() bool {
	t := ls.tree
	m := len(t.constraints)
	if m == 0 {
		ls.active = false
		return false
	}

	base := make([]float64, m)
	worst := 0.0
	for i, dc := range t.constraints {
		base[i] = t.dcRuntime[dc.runtimeIndex].AccErr
		worst = math.Max(worst, math.Abs(base[i]))
	}
	if worst <= ls.tol {
		ls.active = false
		return false
	}

	// Unit force pair per constraint: pull the stations toward each other,
	// moments taken about each body's origin.
	nb := t.NBodies()
	unit := make([][]spatial.Force, m)
	for j, dc := range t.constraints {
		rt := &t.dcRuntime[dc.runtimeIndex]
		d := rt.UnitDirectionG
		unit[j] = make([]spatial.Force, nb)
		for i := 0; i <= 1; i++ {
			node := dc.stations[i].node
			f := d
			if i == 1 {
				f = d.Neg()
			}
			r := rt.Stations[i].PosG.Sub(node.BodyOrigin())
			add := spatial.Force{Ang: r.Cross(f), Lin: f}
			unit[j][node.nodeNum] = unit[j][node.nodeNum].Add(add)
		}
	}

	// Responses. Probing overwrites the tree's accelerations; the caller
	// re-runs the dynamics with the corrected forces immediately after, so
	// a correction (possibly zero) must always be reported past this point.
	zero := make([]spatial.Force, nb)
	t.CalcTreeForwardDynamics(zero)
	resp0 := make([]float64, m)
	for i, dc := range t.constraints {
		resp0[i] = t.dcRuntime[dc.runtimeIndex].AccErr
	}

	compliance := mat.NewDense(m, m, nil)
	for j := range t.constraints {
		t.CalcTreeForwardDynamics(unit[j])
		for i, dc := range t.constraints {
			compliance.Set(i, j, t.dcRuntime[dc.runtimeIndex].AccErr-resp0[i])
		}
	}

	for i := range ls.corrections {
		ls.corrections[i] = spatial.Force{}
	}
	negBase := make([]float64, m)
	for i := range base {
		negBase[i] = -base[i]
	}
	var lambda mat.VecDense
	if err := lambda.SolveVec(compliance, mat.NewVecDense(m, negBase)); err != nil {
		if ls.verbose > 0 {
			fmt.Fprintf(os.Stderr, "loop solver: %v, no correction applied\n", ErrSingularConstraints)
		}
		ls.active = true
		return true
	}
	for j := range t.constraints {
		lj := lambda.AtVec(j)
		for i := 0; i < nb; i++ {
			ls.corrections[i] = ls.corrections[i].Add(unit[j][i].Scale(lj))
		}
	}
	if ls.verbose > 1 {
		fmt.Fprintf(os.Stderr, "loop solver: worst accErr %g, multipliers %v\n", worst, lambda.RawVector().Data)
	}
	ls.active = true
	return true
}

func (ls *loopSolver) AddInCorrectionForces(forces []spatial.Force) {
	if !ls.active {
		return
	}
	for i := range forces {
		forces[i] = forces[i].Add(ls.corrections[i])
	}
}

// Enforce projects q onto the constraint manifold by Gauss-Newton in speed
// space (coordinate rates recovered through CalcQDot), then removes the
// constraint-normal component of u. The tree is left realized at the
// projected values.
func (ls *loopSolver) Enforce(q, u []float64) error {
	t := ls.tree
	m := len(t.constraints)
	if m == 0 {
		return nil
	}

	t.RealizeConfiguration(q)
	converged := false
	for iter := 0; iter < maxEnforceIters; iter++ {
		perr := make([]float64, m)
		worst := 0.0
		for i, dc := range t.constraints {
			perr[i] = t.dcRuntime[dc.runtimeIndex].PosErr
			worst = math.Max(worst, math.Abs(perr[i]))
		}
		if worst <= ls.tol {
			converged = true
			break
		}
		jac := ls.velJacobian()
		w, err := minNormSolve(jac, perr)
		if err != nil {
			return fmt.Errorf("%w: %v", ErrSingularConstraints, err)
		}
		qdot := make([]float64, len(q))
		t.CalcQDot(w, qdot)
		for i := range q {
			q[i] += qdot[i]
		}
		t.EnforceTreeConstraints(q, u)
		t.RealizeConfiguration(q)
	}
	if !converged {
		return ErrLoopNotConverged
	}

	t.RealizeVelocity(u)
	verr := make([]float64, m)
	worst := 0.0
	for i, dc := range t.constraints {
		verr[i] = t.dcRuntime[dc.runtimeIndex].VelErr
		worst = math.Max(worst, math.Abs(verr[i]))
	}
	if worst > ls.tol {
		jac := ls.velJacobian()
		w, err := minNormSolve(jac, verr)
		if err != nil {
			return fmt.Errorf("%w: %v", ErrSingularConstraints, err)
		}
		for i := range u {
			u[i] -= w[i]
		}
		t.RealizeVelocity(u)
	}
	return nil
}

// FixGradient removes the constraint-normal component from a raw
// internal-force vector.
func (ls *loopSolver) FixGradient(tau []float64) {
	t := ls.tree
	m := len(t.constraints)
	if m == 0 {
		return
	}
	jac := ls.velJacobian()
	g := make([]float64, m)
	for i := 0; i < m; i++ {
		row := 0.0
		for k := range tau {
			row += jac.At(i, k) * tau[k]
		}
		g[i] = row
	}
	w, err := minNormSolve(jac, g)
	if err != nil {
		if ls.verbose > 0 {
			fmt.Fprintf(os.Stderr, "loop solver: gradient fix skipped: %v\n", err)
		}
		return
	}
	for k := range tau {
		tau[k] -= w[k]
	}
}

// velJacobian assembles d(velErr)/du at the current configuration by
// realizing unit test speeds, one generalized speed at a time. The tree's
// realized velocities are restored before returning.
func (ls *loopSolver) velJacobian() *mat.Dense {
	t := ls.tree
	m := len(t.constraints)
	jac := mat.NewDense(m, t.dofTotal, nil)

	saved := make([]float64, t.dofTotal)
	t.Vel(saved)
	probe := make([]float64, t.dofTotal)
	for k := 0; k < t.dofTotal; k++ {
		probe[k] = 1
		t.RealizeVelocity(probe)
		for i, dc := range t.constraints {
			jac.Set(i, k, t.dcRuntime[dc.runtimeIndex].VelErr)
		}
		probe[k] = 0
	}
	t.RealizeVelocity(saved)
	return jac
}

// minNormSolve returns the minimum-norm w with jac*w = b.
func minNormSolve(jac *mat.Dense, b []float64) ([]float64, error) {
	m, ndof := jac.Dims()
	var jjt mat.Dense
	jjt.Mul(jac, jac.T())
	var y mat.VecDense
	if err := y.SolveVec(&jjt, mat.NewVecDense(m, b)); err != nil {
		return nil, err
	}
	var wv mat.VecDense
	wv.MulVec(jac.T(), &y)
	w := make([]float64, ndof)
	for k := range w {
		w[k] = wv.AtVec(k)
	}
	return w, nil
}
