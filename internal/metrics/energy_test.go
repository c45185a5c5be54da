package metrics

import (
	"math"
	"testing"

	"github.com/mzeidler/mbd/internal/sim"
)

// oscillator is a Hamiltonian test system with E = (x^2 + v^2) / 2.
type oscillator struct{}

func (oscillator) Energy(x sim.State) float64 {
	return 0.5 * (x[0]*x[0] + x[1]*x[1])
}

func TestEnergyMean(t *testing.T) {
	m := NewEnergy(oscillator{})

	m.Observe(sim.State{1, 0}, nil, 0)
	m.Observe(sim.State{0, 2}, nil, 0.1)

	want := (0.5 + 2.0) / 2
	if math.Abs(m.Value()-want) > 1e-12 {
		t.Errorf("mean energy = %v, want %v", m.Value(), want)
	}

	m.Reset()
	if m.Value() != 0 {
		t.Error("expected zero after reset")
	}
}

func TestEnergyDriftTracksWorstDeviation(t *testing.T) {
	m := NewEnergyDrift(oscillator{})

	m.Observe(sim.State{1, 0}, nil, 0)   // E = 0.5, baseline
	m.Observe(sim.State{1, 0.1}, nil, 1) // small rise
	m.Observe(sim.State{1, 1}, nil, 2)   // E = 1.0, 100% drift
	m.Observe(sim.State{1, 0}, nil, 3)   // back to baseline

	if math.Abs(m.Value()-1.0) > 1e-12 {
		t.Errorf("max drift = %v, want 1.0", m.Value())
	}

	m.Reset()
	m.Observe(sim.State{1, 0}, nil, 0)
	if m.Value() != 0 {
		t.Errorf("drift after reset and one sample = %v, want 0", m.Value())
	}
}
