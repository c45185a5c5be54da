package models

import (
	"github.com/mzeidler/mbd/internal/multibody"
	"github.com/mzeidler/mbd/internal/sim"
	"github.com/mzeidler/mbd/internal/spatial"
)

// rod returns the mass properties of a uniform rod extending from the
// joint origin along +X.
func rod(mass, length float64) spatial.MassProperties {
	i := mass * length * length / 12
	return spatial.MassProperties{
		Mass:    mass,
		COM:     spatial.Vec3{X: length / 2},
		Inertia: spatial.Diag3(0, i, i),
	}
}

// NewPendulum builds a single rod hinged to ground, swinging in the XY
// plane under -Y gravity. The joint angle is measured from the +X axis.
//
// Params: mass, length, gravity, theta, omega.
func NewPendulum(p Params) (*Mechanism, sim.State, error) {
	mass := p.value("mass", 1.0)
	length := p.value("length", 1.0)
	g := p.value("gravity", defaultGravity)

	tree := multibody.NewTree()
	ground := tree.AddGroundNode()
	tree.AddBodyNode(ground, spatial.IdentityTransform(), multibody.NodeSpec{
		Joint: multibody.JointPin,
		Axis:  spatial.Vec3{Z: 1},
		Mass:  rod(mass, length),
	})
	tree.RealizeConstruction(constructionTol, 0)

	m := newMechanism("pendulum", tree, spatial.Vec3{Y: -g})
	x := m.DefaultState()
	x[0] = p.value("theta", 0.5)
	x[m.nq] = p.value("omega", 0)
	return m, x, nil
}

// NewDoublePendulum builds two rods in a chain, both hinged about Z.
//
// Params: mass, length (per link), gravity, theta, theta2, omega, omega2.
func NewDoublePendulum(p Params) (*Mechanism, sim.State, error) {
	mass := p.value("mass", 1.0)
	length := p.value("length", 1.0)
	g := p.value("gravity", defaultGravity)

	tree := multibody.NewTree()
	ground := tree.AddGroundNode()
	link := multibody.NodeSpec{
		Joint: multibody.JointPin,
		Axis:  spatial.Vec3{Z: 1},
		Mass:  rod(mass, length),
	}
	upper := tree.AddBodyNode(ground, spatial.IdentityTransform(), link)
	tree.AddBodyNode(upper, spatial.Transform{R: spatial.Identity3(), P: spatial.Vec3{X: length}}, link)
	tree.RealizeConstruction(constructionTol, 0)

	m := newMechanism("double_pendulum", tree, spatial.Vec3{Y: -g})
	x := m.DefaultState()
	x[0] = p.value("theta", 0.5)
	x[1] = p.value("theta2", 0.5)
	x[m.nq] = p.value("omega", 0)
	x[m.nq+1] = p.value("omega2", 0)
	return m, x, nil
}
