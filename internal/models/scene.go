package models

import (
	"fmt"
	"os"

	"gopkg.in/yaml.v3"

	"github.com/mzeidler/mbd/internal/multibody"
	"github.com/mzeidler/mbd/internal/sim"
	"github.com/mzeidler/mbd/internal/spatial"
)

// Scene is a YAML-described mechanism: bodies attached by joints, plus
// optional distance constraints. Vectors are [x, y, z]; an omitted
// gravity defaults to -Y standard gravity.
type Scene struct {
	Name        string          `yaml:"name"`
	Gravity     []float64       `yaml:"gravity"`
	Bodies      []SceneBody     `yaml:"bodies"`
	Constraints []SceneDistance `yaml:"constraints"`
	Initial     SceneInitial    `yaml:"initial"`
}

type SceneBody struct {
	Name    string    `yaml:"name"`
	Parent  string    `yaml:"parent"` // "ground" or an earlier body name
	Joint   string    `yaml:"joint"`  // pin, slider, ball, free
	Axis    []float64 `yaml:"axis"`   // pin/slider axis in the joint frame
	Origin  []float64 `yaml:"origin"` // joint frame origin in the parent body frame
	Mass    float64   `yaml:"mass"`
	COM     []float64 `yaml:"com"`
	Inertia []float64 `yaml:"inertia"` // principal moments about the COM
}

type SceneDistance struct {
	Body1    string    `yaml:"body1"`
	Station1 []float64 `yaml:"station1"`
	Body2    string    `yaml:"body2"`
	Station2 []float64 `yaml:"station2"`
	Distance float64   `yaml:"distance"`
}

type SceneInitial struct {
	Q []float64 `yaml:"q"`
	U []float64 `yaml:"u"`
}

var jointKinds = map[string]multibody.JointKind{
	"pin":    multibody.JointPin,
	"slider": multibody.JointSlider,
	"ball":   multibody.JointBall,
	"free":   multibody.JointFree,
}

func vec3(v []float64, def spatial.Vec3) (spatial.Vec3, error) {
	if v == nil {
		return def, nil
	}
	if len(v) != 3 {
		return spatial.Vec3{}, fmt.Errorf("expected 3 components, got %d", len(v))
	}
	return spatial.Vec3{X: v[0], Y: v[1], Z: v[2]}, nil
}

// LoadScene reads a scene file and assembles it into a mechanism with
// its initial state.
func LoadScene(path string) (*Mechanism, sim.State, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, nil, err
	}

	var scene Scene
	if err := yaml.Unmarshal(data, &scene); err != nil {
		return nil, nil, fmt.Errorf("parse scene: %w", err)
	}
	return BuildScene(&scene)
}

// BuildScene assembles a parsed scene into a mechanism. Bodies must be
// declared parent-first; "ground" is always available.
func BuildScene(scene *Scene) (*Mechanism, sim.State, error) {
	if len(scene.Bodies) == 0 {
		return nil, nil, fmt.Errorf("scene has no bodies")
	}

	name := scene.Name
	if name == "" {
		name = "scene"
	}

	gravity, err := vec3(scene.Gravity, spatial.Vec3{Y: -defaultGravity})
	if err != nil {
		return nil, nil, fmt.Errorf("gravity: %w", err)
	}

	tree := multibody.NewTree()
	nodes := map[string]*multibody.Node{"ground": tree.AddGroundNode()}

	for i, b := range scene.Bodies {
		if b.Name == "" {
			return nil, nil, fmt.Errorf("body %d: missing name", i)
		}
		if _, dup := nodes[b.Name]; dup {
			return nil, nil, fmt.Errorf("body %q: duplicate name", b.Name)
		}

		parent, ok := nodes[b.Parent]
		if !ok {
			return nil, nil, fmt.Errorf("body %q: unknown parent %q", b.Name, b.Parent)
		}

		kind, ok := jointKinds[b.Joint]
		if !ok {
			return nil, nil, fmt.Errorf("body %q: unknown joint %q", b.Name, b.Joint)
		}

		axis, err := vec3(b.Axis, spatial.Vec3{Z: 1})
		if err != nil {
			return nil, nil, fmt.Errorf("body %q axis: %w", b.Name, err)
		}
		origin, err := vec3(b.Origin, spatial.Vec3{})
		if err != nil {
			return nil, nil, fmt.Errorf("body %q origin: %w", b.Name, err)
		}
		com, err := vec3(b.COM, spatial.Vec3{})
		if err != nil {
			return nil, nil, fmt.Errorf("body %q com: %w", b.Name, err)
		}
		inertia, err := vec3(b.Inertia, spatial.Vec3{})
		if err != nil {
			return nil, nil, fmt.Errorf("body %q inertia: %w", b.Name, err)
		}
		if b.Mass <= 0 {
			return nil, nil, fmt.Errorf("body %q: mass must be positive", b.Name)
		}

		frame := spatial.Transform{R: spatial.Identity3(), P: origin}
		nodes[b.Name] = tree.AddBodyNode(parent, frame, multibody.NodeSpec{
			Joint: kind,
			Axis:  axis,
			Mass: spatial.MassProperties{
				Mass:    b.Mass,
				COM:     com,
				Inertia: spatial.Diag3(inertia.X, inertia.Y, inertia.Z),
			},
		})
	}

	for i, c := range scene.Constraints {
		n1, ok := nodes[c.Body1]
		if !ok {
			return nil, nil, fmt.Errorf("constraint %d: unknown body %q", i, c.Body1)
		}
		n2, ok := nodes[c.Body2]
		if !ok {
			return nil, nil, fmt.Errorf("constraint %d: unknown body %q", i, c.Body2)
		}
		s1, err := vec3(c.Station1, spatial.Vec3{})
		if err != nil {
			return nil, nil, fmt.Errorf("constraint %d station1: %w", i, err)
		}
		s2, err := vec3(c.Station2, spatial.Vec3{})
		if err != nil {
			return nil, nil, fmt.Errorf("constraint %d station2: %w", i, err)
		}
		if c.Distance <= 0 {
			return nil, nil, fmt.Errorf("constraint %d: distance must be positive", i)
		}
		tree.AddDistanceConstraint(
			multibody.NewStation(n1, s1),
			multibody.NewStation(n2, s2),
			c.Distance,
		)
	}

	tree.RealizeConstruction(constructionTol, 0)

	m := newMechanism(name, tree, gravity)
	x := m.DefaultState()

	if len(scene.Initial.Q) > m.nq {
		return nil, nil, fmt.Errorf("initial q has %d entries, mechanism has %d coordinates", len(scene.Initial.Q), m.nq)
	}
	if len(scene.Initial.U) > m.nu {
		return nil, nil, fmt.Errorf("initial u has %d entries, mechanism has %d speeds", len(scene.Initial.U), m.nu)
	}
	copy(x[:m.nq], scene.Initial.Q)
	copy(x[m.nq:], scene.Initial.U)

	if tree.NConstraints() > 0 {
		if err := m.Project(x); err != nil {
			return nil, nil, fmt.Errorf("initial assembly: %w", err)
		}
	}

	return m, x, nil
}
