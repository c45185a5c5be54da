package analysis

import (
	"math"
	"testing"

	"github.com/mzeidler/mbd/internal/integrators"
	"github.com/mzeidler/mbd/internal/sim"
)

func TestPowerSpectrumPeakBin(t *testing.T) {
	const n = 64
	const k = 5
	data := make([]float64, n)
	for i := range data {
		data[i] = math.Sin(2 * math.Pi * k * float64(i) / n)
	}

	ps := PowerSpectrum(data)

	peak := 0
	for i := range ps {
		if ps[i] > ps[peak] {
			peak = i
		}
	}
	if peak != k {
		t.Errorf("expected spectral peak at bin %d, got %d", k, peak)
	}
}

func TestFFTLinearity(t *testing.T) {
	a := []float64{1, 2, 3, 4}
	b := []float64{4, 3, 2, 1}
	sum := []float64{5, 5, 5, 5}

	fa := FFT(a)
	fb := FFT(b)
	fs := FFT(sum)

	for i := range fs {
		got := fa[i] + fb[i]
		if math.Abs(real(fs[i])-real(got)) > 1e-12 || math.Abs(imag(fs[i])-imag(got)) > 1e-12 {
			t.Fatalf("bin %d: FFT(a+b)=%v, FFT(a)+FFT(b)=%v", i, fs[i], got)
		}
	}
}

// linearSystem is xdot = rate*x, expanding for rate > 0.
type linearSystem struct {
	rate float64
}

func (l *linearSystem) Derive(x sim.State, u sim.Control, t float64) sim.State {
	xdot := make(sim.State, len(x))
	for i := range x {
		xdot[i] = l.rate * x[i]
	}
	return xdot
}

func (l *linearSystem) StateDim() int   { return 1 }
func (l *linearSystem) ControlDim() int { return 0 }

func TestLyapunovExponentSign(t *testing.T) {
	integ := integrators.NewRK4()
	x0 := sim.State{1.0}

	expanding := LyapunovExponent(&linearSystem{rate: 0.8}, integ, x0, 0.01, 5.0, 1e-8)
	if expanding <= 0 {
		t.Errorf("expanding system: expected positive exponent, got %f", expanding)
	}

	contracting := LyapunovExponent(&linearSystem{rate: -0.8}, integ, x0, 0.01, 5.0, 1e-8)
	if contracting >= 0 {
		t.Errorf("contracting system: expected negative exponent, got %f", contracting)
	}

	if expanding <= contracting {
		t.Errorf("expected expanding > contracting, got %f <= %f", expanding, contracting)
	}
}
