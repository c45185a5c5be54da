package models

import (
	"math"

	"github.com/mzeidler/mbd/internal/multibody"
	"github.com/mzeidler/mbd/internal/sim"
	"github.com/mzeidler/mbd/internal/spatial"
)

// NewTop builds a symmetric spinning top on a ball joint at the ground
// origin. The symmetry axis is body Z, gravity acts along -Z, and the
// initial state tilts the top about X and spins it about its own axis.
//
// Params: mass, radius, height, gravity, tilt, spin.
func NewTop(p Params) (*Mechanism, sim.State, error) {
	mass := p.value("mass", 0.5)
	radius := p.value("radius", 0.08)
	height := p.value("height", 0.3)
	g := p.value("gravity", defaultGravity)
	tilt := p.value("tilt", 0.2)
	spin := p.value("spin", 120.0)

	// disc of the given radius at the top of a massless stem
	axial := 0.5 * mass * radius * radius
	transverse := 0.25 * mass * radius * radius
	tree := multibody.NewTree()
	ground := tree.AddGroundNode()
	tree.AddBodyNode(ground, spatial.IdentityTransform(), multibody.NodeSpec{
		Joint: multibody.JointBall,
		Mass: spatial.MassProperties{
			Mass:    mass,
			COM:     spatial.Vec3{Z: height},
			Inertia: spatial.Diag3(transverse, transverse, axial),
		},
	})
	tree.RealizeConstruction(constructionTol, 0)

	m := newMechanism("top", tree, spatial.Vec3{Z: -g})
	x := m.DefaultState()
	// tilt about X as a quaternion, spin about the body symmetry axis
	x[0] = math.Cos(tilt / 2)
	x[1] = math.Sin(tilt / 2)
	x[m.nq+2] = spin
	return m, x, nil
}

// NewProjectile builds a single unconstrained rigid body under -Y
// gravity, launched from the origin.
//
// Params: mass, gravity, vx, vy, spin.
func NewProjectile(p Params) (*Mechanism, sim.State, error) {
	mass := p.value("mass", 1.0)
	g := p.value("gravity", defaultGravity)

	tree := multibody.NewTree()
	ground := tree.AddGroundNode()
	tree.AddBodyNode(ground, spatial.IdentityTransform(), multibody.NodeSpec{
		Joint: multibody.JointFree,
		Mass: spatial.MassProperties{
			Mass:    mass,
			Inertia: spatial.Diag3(0.02, 0.02, 0.02),
		},
	})
	tree.RealizeConstruction(constructionTol, 0)

	m := newMechanism("projectile", tree, spatial.Vec3{Y: -g})
	x := m.DefaultState()
	x[m.nq+2] = p.value("spin", 2.0)
	x[m.nq+3] = p.value("vx", 3.0)
	x[m.nq+4] = p.value("vy", 4.0)
	return m, x, nil
}
