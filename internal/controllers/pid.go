// Package controllers implements sim.Controller policies that compute
// generalized joint forces from the mechanism state.
package controllers

import "github.com/mzeidler/mbd/internal/sim"

// PID regulates one generalized coordinate by driving one joint
// actuator. Coord selects the state entry being regulated, Actuator the
// control slot receiving the force, and Dim the control vector size.
type PID struct {
	Kp       float64
	Ki       float64
	Kd       float64
	Target   float64
	Coord    int
	Actuator int
	Dim      int

	integral float64
	prevErr  float64
	prevT    float64
	first    bool
}

// NewPID returns a controller regulating coordinate 0 through actuator 0
// of a single-dof mechanism. Use ForJoint to retarget it.
func NewPID(kp, ki, kd, target float64) *PID {
	return &PID{
		Kp:     kp,
		Ki:     ki,
		Kd:     kd,
		Target: target,
		Dim:    1,
		first:  true,
	}
}

// ForJoint points the controller at a coordinate and actuator of a
// multi-dof mechanism.
func (p *PID) ForJoint(coord, actuator, dim int) *PID {
	p.Coord = coord
	p.Actuator = actuator
	p.Dim = dim
	return p
}

func (p *PID) Compute(x sim.State, t float64) sim.Control {
	u := make(sim.Control, p.Dim)
	if p.Coord >= len(x) || p.Actuator >= p.Dim {
		return u
	}

	err := p.Target - x[p.Coord]

	if p.first {
		p.prevErr = err
		p.prevT = t
		p.first = false
		u[p.Actuator] = p.Kp * err
		return u
	}

	dt := t - p.prevT
	if dt > 0 {
		p.integral += err * dt
		derivative := (err - p.prevErr) / dt

		p.prevErr = err
		p.prevT = t

		u[p.Actuator] = p.Kp*err + p.Ki*p.integral + p.Kd*derivative
		return u
	}

	u[p.Actuator] = p.Kp * err
	return u
}
