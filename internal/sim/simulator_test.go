package sim

import (
	"context"
	"math"
	"testing"
)

type testDynamics struct{}

func (t *testDynamics) Derive(x State, u Control, time float64) State {
	return State{-x[0]}
}

func (t *testDynamics) StateDim() int   { return 1 }
func (t *testDynamics) ControlDim() int { return 0 }

type testIntegrator struct{}

func (t *testIntegrator) Step(dyn System, x State, u Control, time float64, dt float64) State {
	dx := dyn.Derive(x, u, time)
	result := make(State, len(x))
	for i := range x {
		result[i] = x[i] + dt*dx[i]
	}
	return result
}

func TestSimulatorRun(t *testing.T) {
	s := New(&testDynamics{}, &testIntegrator{}, nil)

	cfg := Config{
		Dt:       0.1,
		Duration: 1.0,
	}

	x0 := State{1.0}
	result, err := s.Run(context.Background(), x0, cfg)
	if err != nil {
		t.Fatalf("run failed: %v", err)
	}

	if len(result.States) != 11 {
		t.Errorf("expected 11 states, got %d", len(result.States))
	}

	if len(result.Times) != 11 {
		t.Errorf("expected 11 times, got %d", len(result.Times))
	}

	finalState := result.States[len(result.States)-1][0]
	expected := 1.0 * math.Exp(-1.0)
	if math.Abs(finalState-expected) > 0.2 {
		t.Errorf("expected final state ~%.4f, got %.4f", expected, finalState)
	}
}

func TestSimulatorInvalidConfig(t *testing.T) {
	s := New(&testDynamics{}, &testIntegrator{}, nil)

	tests := []struct {
		name string
		cfg  Config
	}{
		{"zero dt", Config{Dt: 0, Duration: 1.0}},
		{"negative dt", Config{Dt: -0.1, Duration: 1.0}},
		{"zero duration", Config{Dt: 0.1, Duration: 0}},
		{"negative duration", Config{Dt: 0.1, Duration: -1.0}},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			x0 := State{1.0}
			_, err := s.Run(context.Background(), x0, tt.cfg)
			if err == nil {
				t.Error("expected error, got nil")
			}
		})
	}
}

type testMetric struct {
	count int
	sum   float64
}

func (t *testMetric) Name() string { return "test" }
func (t *testMetric) Observe(x State, u Control, time float64) {
	t.count++
	t.sum += x[0]
}
func (t *testMetric) Value() float64 {
	if t.count == 0 {
		return 0
	}
	return t.sum / float64(t.count)
}
func (t *testMetric) Reset() {
	t.count = 0
	t.sum = 0
}

func TestSimulatorMetrics(t *testing.T) {
	s := New(&testDynamics{}, &testIntegrator{}, nil)

	metric := &testMetric{}
	s.AddMetric(metric)

	cfg := Config{Dt: 0.1, Duration: 1.0}
	x0 := State{1.0}

	result, err := s.Run(context.Background(), x0, cfg)
	if err != nil {
		t.Fatalf("run failed: %v", err)
	}

	if _, ok := result.Metrics["test"]; !ok {
		t.Error("metric not found in result")
	}

	if metric.count != 10 {
		t.Errorf("expected 10 observations, got %d", metric.count)
	}
}

// projectingDynamics keeps x on the unit circle after each step.
type projectingDynamics struct {
	projected int
}

func (p *projectingDynamics) Derive(x State, u Control, t float64) State {
	return State{-x[1], x[0]}
}

func (p *projectingDynamics) StateDim() int   { return 2 }
func (p *projectingDynamics) ControlDim() int { return 0 }

func (p *projectingDynamics) Project(x State) error {
	n := math.Hypot(x[0], x[1])
	x[0] /= n
	x[1] /= n
	p.projected++
	return nil
}

func TestSimulatorProjectsAfterEachStep(t *testing.T) {
	dyn := &projectingDynamics{}
	s := New(dyn, &testIntegrator{}, nil)

	cfg := Config{Dt: 0.05, Duration: 1.0}
	result, err := s.Run(context.Background(), State{1, 0}, cfg)
	if err != nil {
		t.Fatalf("run failed: %v", err)
	}

	if dyn.projected != result.StepsTaken {
		t.Errorf("projected %d times over %d steps", dyn.projected, result.StepsTaken)
	}
	last := result.States[len(result.States)-1]
	if r := math.Hypot(last[0], last[1]); math.Abs(r-1) > 1e-12 {
		t.Errorf("final state off the manifold: |x| = %v", r)
	}
}

func TestStateHelpers(t *testing.T) {
	s := State{3, 4}
	if s.Norm() != 5 {
		t.Errorf("norm = %v, want 5", s.Norm())
	}
	c := s.Clone()
	c[0] = 0
	if s[0] != 3 {
		t.Error("clone aliases the original")
	}
	if !s.IsValid() {
		t.Error("finite state reported invalid")
	}
	if (State{math.NaN()}).IsValid() {
		t.Error("NaN state reported valid")
	}
}
