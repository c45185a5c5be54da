package models

import (
	"github.com/mzeidler/mbd/internal/multibody"
	"github.com/mzeidler/mbd/internal/sim"
	"github.com/mzeidler/mbd/internal/spatial"
)

// NewFourBar builds a closed planar linkage: two pin-jointed rods with the
// tip of the second tied back to a ground anchor by a distance constraint
// acting as the fourth bar. The initial coordinates are projected onto the
// loop-closure manifold before the mechanism is returned.
//
// Params: mass, length (per link), coupler (constraint length),
// anchor_x (ground attachment), gravity, theta, theta2.
func NewFourBar(p Params) (*Mechanism, sim.State, error) {
	mass := p.value("mass", 1.0)
	length := p.value("length", 1.0)
	coupler := p.value("coupler", 1.2)
	anchorX := p.value("anchor_x", 1.5)
	g := p.value("gravity", defaultGravity)

	tree := multibody.NewTree()
	ground := tree.AddGroundNode()
	link := multibody.NodeSpec{
		Joint: multibody.JointPin,
		Axis:  spatial.Vec3{Z: 1},
		Mass:  rod(mass, length),
	}
	crank := tree.AddBodyNode(ground, spatial.IdentityTransform(), link)
	rocker := tree.AddBodyNode(crank,
		spatial.Transform{R: spatial.Identity3(), P: spatial.Vec3{X: length}}, link)

	tree.AddDistanceConstraint(
		multibody.NewStation(ground, spatial.Vec3{X: anchorX}),
		multibody.NewStation(rocker, spatial.Vec3{X: length}),
		coupler)
	tree.RealizeConstruction(constructionTol, 0)

	m := newMechanism("fourbar", tree, spatial.Vec3{Y: -g})
	x := m.DefaultState()
	x[0] = p.value("theta", 0.4)
	x[1] = p.value("theta2", -0.8)
	if err := m.Project(x); err != nil {
		return nil, nil, err
	}
	return m, x, nil
}
