package models

import (
	"github.com/mzeidler/mbd/internal/multibody"
	"github.com/mzeidler/mbd/internal/sim"
	"github.com/mzeidler/mbd/internal/spatial"
)

// NewCartPendulum builds a cart sliding along X with a rod hinged to it.
// State q = [cart position, rod angle from +X].
//
// Params: cart_mass, mass, length, gravity, pos, vel, theta, omega.
func NewCartPendulum(p Params) (*Mechanism, sim.State, error) {
	cartMass := p.value("cart_mass", 5.0)
	mass := p.value("mass", 1.0)
	length := p.value("length", 1.0)
	g := p.value("gravity", defaultGravity)

	tree := multibody.NewTree()
	ground := tree.AddGroundNode()
	cart := tree.AddBodyNode(ground, spatial.IdentityTransform(), multibody.NodeSpec{
		Joint: multibody.JointSlider,
		Axis:  spatial.Vec3{X: 1},
		Mass: spatial.MassProperties{
			Mass:    cartMass,
			Inertia: spatial.Diag3(0.1, 0.1, 0.1),
		},
	})
	tree.AddBodyNode(cart, spatial.IdentityTransform(), multibody.NodeSpec{
		Joint: multibody.JointPin,
		Axis:  spatial.Vec3{Z: 1},
		Mass:  rod(mass, length),
	})
	tree.RealizeConstruction(constructionTol, 0)

	m := newMechanism("cart_pendulum", tree, spatial.Vec3{Y: -g})
	x := m.DefaultState()
	x[0] = p.value("pos", 0)
	x[1] = p.value("theta", 0.1)
	x[m.nq] = p.value("vel", 0)
	x[m.nq+1] = p.value("omega", 0)
	return m, x, nil
}
