package models

import (
	"math"
	"os"
	"path/filepath"
	"testing"
)

const pendulumScene = `
name: scene_pendulum
gravity: [0, -9.81, 0]
bodies:
  - name: rod
    parent: ground
    joint: pin
    axis: [0, 0, 1]
    mass: 1.0
    com: [0.5, 0, 0]
    inertia: [0, 0.0833333333333333, 0.0833333333333333]
initial:
  q: [0.3]
`

func TestLoadSceneBuildsPendulum(t *testing.T) {
	path := filepath.Join(t.TempDir(), "pendulum.yaml")
	if err := os.WriteFile(path, []byte(pendulumScene), 0644); err != nil {
		t.Fatal(err)
	}

	mech, x, err := LoadScene(path)
	if err != nil {
		t.Fatalf("load failed: %v", err)
	}

	if mech.Name() != "scene_pendulum" {
		t.Errorf("expected name 'scene_pendulum', got %q", mech.Name())
	}
	if mech.StateDim() != 2 || mech.ControlDim() != 1 {
		t.Errorf("expected 1-dof mechanism, got statedim=%d controldim=%d", mech.StateDim(), mech.ControlDim())
	}
	if x[0] != 0.3 {
		t.Errorf("expected initial q=0.3, got %f", x[0])
	}

	// same rod as the registered pendulum: thetadd = -(3g/2L) cos(theta)
	x[0] = 0
	xdot := mech.Derive(x, nil, 0)
	want := -3.0 * 9.81 / 2.0
	if math.Abs(xdot[1]-want) > 1e-9 {
		t.Errorf("expected thetadd %f, got %f", want, xdot[1])
	}
}

const fourbarScene = `
name: scene_fourbar
bodies:
  - name: crank
    parent: ground
    joint: pin
    mass: 1.0
    com: [0.5, 0, 0]
    inertia: [0, 0.0833, 0.0833]
  - name: rocker
    parent: crank
    joint: pin
    origin: [1, 0, 0]
    mass: 1.0
    com: [0.5, 0, 0]
    inertia: [0, 0.0833, 0.0833]
constraints:
  - body1: ground
    station1: [1.5, 0, 0]
    body2: rocker
    station2: [1, 0, 0]
    distance: 1.2
initial:
  q: [0.4, -0.8]
`

func TestLoadSceneWithConstraintAssembles(t *testing.T) {
	path := filepath.Join(t.TempDir(), "fourbar.yaml")
	if err := os.WriteFile(path, []byte(fourbarScene), 0644); err != nil {
		t.Fatal(err)
	}

	mech, x, err := LoadScene(path)
	if err != nil {
		t.Fatalf("load failed: %v", err)
	}

	if mech.Tree().NConstraints() != 1 {
		t.Fatalf("expected 1 constraint, got %d", mech.Tree().NConstraints())
	}
	if e := mech.ConstraintError(x); e > 1e-8 {
		t.Errorf("initial state not assembled, posErr=%g", e)
	}
}

func TestBuildSceneRejectsBadInput(t *testing.T) {
	cases := []struct {
		name  string
		scene Scene
	}{
		{"no bodies", Scene{}},
		{"unknown parent", Scene{Bodies: []SceneBody{
			{Name: "a", Parent: "nope", Joint: "pin", Mass: 1},
		}}},
		{"unknown joint", Scene{Bodies: []SceneBody{
			{Name: "a", Parent: "ground", Joint: "helical", Mass: 1},
		}}},
		{"zero mass", Scene{Bodies: []SceneBody{
			{Name: "a", Parent: "ground", Joint: "pin"},
		}}},
		{"duplicate name", Scene{Bodies: []SceneBody{
			{Name: "a", Parent: "ground", Joint: "pin", Mass: 1},
			{Name: "a", Parent: "ground", Joint: "pin", Mass: 1},
		}}},
		{"bad vector", Scene{Bodies: []SceneBody{
			{Name: "a", Parent: "ground", Joint: "pin", Mass: 1, Axis: []float64{1, 0}},
		}}},
	}

	for _, tc := range cases {
		if _, _, err := BuildScene(&tc.scene); err == nil {
			t.Errorf("%s: expected error", tc.name)
		}
	}
}
