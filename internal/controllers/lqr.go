package controllers

import "github.com/mzeidler/mbd/internal/sim"

// LQR applies a fixed gain matrix to the state error, u = -K (x - x*).
// K has one row per actuator and one column per state entry.
type LQR struct {
	K      [][]float64
	Target sim.State
}

func NewLQR(k [][]float64, target sim.State) *LQR {
	return &LQR{K: k, Target: target}
}

func (l *LQR) Compute(x sim.State, t float64) sim.Control {
	u := make(sim.Control, len(l.K))

	for i := range u {
		for j := range x {
			target := 0.0
			if j < len(l.Target) {
				target = l.Target[j]
			}
			u[i] -= l.K[i][j] * (x[j] - target)
		}
	}

	return u
}

// NewPendulumLQR stabilizes the single pendulum about its reference
// configuration. The state is [theta, omega].
func NewPendulumLQR() *LQR {
	k := [][]float64{
		{31.62, 10.0},
	}
	return NewLQR(k, sim.State{0, 0})
}
