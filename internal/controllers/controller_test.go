package controllers

import (
	"testing"

	"github.com/mzeidler/mbd/internal/sim"
)

func TestNone(t *testing.T) {
	ctrl := NewNone(2)
	u := ctrl.Compute(sim.State{1.0, 2.0}, 0.0)

	if len(u) != 2 {
		t.Errorf("expected 2 controls, got %d", len(u))
	}
	for i, v := range u {
		if v != 0 {
			t.Errorf("control[%d] should be 0, got %f", i, v)
		}
	}
}

func TestPID(t *testing.T) {
	ctrl := NewPID(10.0, 0.1, 5.0, 0.0)
	u := ctrl.Compute(sim.State{1.0, 0.0}, 0.0)
	if len(u) != 1 {
		t.Fatalf("expected 1 control, got %d", len(u))
	}
	if u[0] >= 0 {
		t.Error("PID should output negative control for positive error")
	}
}

func TestPIDForJoint(t *testing.T) {
	// regulate theta (index 1) of a cart_pendulum style state
	// [pos, theta, vel, omega] through the cart actuator (slot 0)
	ctrl := NewPID(20.0, 0.0, 4.0, 0.0).ForJoint(1, 0, 2)

	u := ctrl.Compute(sim.State{0.0, 0.3, 0.0, 0.0}, 0.0)
	if len(u) != 2 {
		t.Fatalf("expected 2 controls, got %d", len(u))
	}
	if u[0] >= 0 {
		t.Errorf("expected negative force toward target, got %f", u[0])
	}
	if u[1] != 0 {
		t.Errorf("unactuated slot should stay 0, got %f", u[1])
	}
}

func TestPIDDerivativeDamps(t *testing.T) {
	ctrl := NewPID(0.0, 0.0, 2.0, 0.0)

	ctrl.Compute(sim.State{0.0, 0.0}, 0.0)
	u := ctrl.Compute(sim.State{0.1, 0.0}, 0.01)

	// error fell from 0 to -0.1, derivative term must oppose the motion
	if u[0] >= 0 {
		t.Errorf("expected negative derivative response, got %f", u[0])
	}
}

func TestLQR(t *testing.T) {
	k := [][]float64{{1.0, 2.0}}
	target := sim.State{0.0, 0.0}
	ctrl := NewLQR(k, target)

	u := ctrl.Compute(sim.State{0.0, 0.0}, 0.0)
	if u[0] != 0 {
		t.Errorf("expected zero control at target, got %f", u[0])
	}

	u = ctrl.Compute(sim.State{1.0, 0.0}, 0.0)
	if u[0] == 0 {
		t.Error("expected non-zero control away from target")
	}
}

func TestPendulumLQR(t *testing.T) {
	ctrl := NewPendulumLQR()
	u := ctrl.Compute(sim.State{0.1, 0.0}, 0.0)

	if len(u) != 1 {
		t.Fatalf("expected 1 control, got %d", len(u))
	}
	if u[0] == 0 {
		t.Error("pendulum LQR should output non-zero control for non-zero angle")
	}
}
