package analysis

import (
	"math"

	"github.com/mzeidler/mbd/internal/sim"
)

// LyapunovExponent estimates the largest Lyapunov exponent by running
// two nearby trajectories and averaging the log of their separation
// growth, renormalizing whenever the separation gets large. Systems
// whose state lives on a manifold (sim.Projector) are projected after
// every step, so quaternion coordinates and loop closures do not leak
// fake divergence into the estimate.
func LyapunovExponent(
	dyn sim.System,
	integ sim.Integrator,
	x0 sim.State,
	dt, duration float64,
	perturbation float64,
) float64 {
	if len(x0) == 0 {
		return 0
	}

	x := x0.Clone()
	xp := x0.Clone()
	xp[0] += perturbation

	d0 := perturbation
	ctrl := make(sim.Control, dyn.ControlDim())
	proj, _ := dyn.(sim.Projector)
	t := 0.0

	sumLog := 0.0
	count := 0

	for t < duration {
		x = integ.Step(dyn, x, ctrl, t, dt)
		xp = integ.Step(dyn, xp, ctrl, t, dt)
		if proj != nil {
			if err := proj.Project(x); err != nil {
				break
			}
			if err := proj.Project(xp); err != nil {
				break
			}
		}
		t += dt

		sep := xp.Sub(x).Norm()

		if sep > 0 && d0 > 0 {
			sumLog += math.Log(sep / d0)
			count++
		}

		// renormalize to prevent overflow
		if sep > 1.0 {
			scale := d0 / sep
			for i := range xp {
				xp[i] = x[i] + (xp[i]-x[i])*scale
			}
		}
	}

	if count == 0 || t == 0 {
		return 0
	}

	return sumLog / (float64(count) * dt)
}
