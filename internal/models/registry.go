package models

import (
	"fmt"
	"sort"

	"github.com/mzeidler/mbd/internal/sim"
)

// Builder constructs a mechanism and its initial state from parameters.
type Builder func(p Params) (*Mechanism, sim.State, error)

var builders = map[string]Builder{
	"pendulum":        NewPendulum,
	"double_pendulum": NewDoublePendulum,
	"cart_pendulum":   NewCartPendulum,
	"top":             NewTop,
	"projectile":      NewProjectile,
	"fourbar":         NewFourBar,
}

// Build constructs the named model.
func Build(name string, p Params) (*Mechanism, sim.State, error) {
	b, ok := builders[name]
	if !ok {
		return nil, nil, fmt.Errorf("unknown model %q (available: %v)", name, Names())
	}
	return b(p)
}

// Names lists the registered models in stable order.
func Names() []string {
	names := make([]string, 0, len(builders))
	for name := range builders {
		names = append(names, name)
	}
	sort.Strings(names)
	return names
}
