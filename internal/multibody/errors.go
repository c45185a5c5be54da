package multibody

import "errors"

var (
	// ErrLoopNotConverged indicates the position projection onto the
	// loop-constraint manifold did not reach tolerance.
	ErrLoopNotConverged = errors.New("multibody: loop constraint projection did not converge")

	// ErrSingularConstraints indicates a redundant or degenerate constraint
	// set produced a singular projection system.
	ErrSingularConstraints = errors.New("multibody: singular loop constraint system")
)
