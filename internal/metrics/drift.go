package metrics

import (
	"math"

	"github.com/mzeidler/mbd/internal/models"
	"github.com/mzeidler/mbd/internal/sim"
)

// ConstraintDrift reports the worst loop-closure position error seen over
// a run. Zero for mechanisms without constraints.
type ConstraintDrift struct {
	name  string
	mech  *models.Mechanism
	worst float64
}

func NewConstraintDrift(mech *models.Mechanism) *ConstraintDrift {
	return &ConstraintDrift{
		name: "constraint_drift",
		mech: mech,
	}
}

func (c *ConstraintDrift) Name() string { return c.name }

func (c *ConstraintDrift) Observe(x sim.State, u sim.Control, t float64) {
	c.worst = math.Max(c.worst, c.mech.ConstraintError(x))
}

func (c *ConstraintDrift) Value() float64 {
	return c.worst
}

func (c *ConstraintDrift) Reset() {
	c.worst = 0
}
