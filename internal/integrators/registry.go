package integrators

import (
	"fmt"

	"github.com/mzeidler/mbd/internal/sim"
)

// New returns the named integrator.
func New(name string) (sim.Integrator, error) {
	switch name {
	case "euler":
		return NewEuler(), nil
	case "rk4", "":
		return NewRK4(), nil
	case "rk45":
		return NewRK45(), nil
	}
	return nil, fmt.Errorf("unknown integrator %q (available: euler, rk4, rk45)", name)
}
