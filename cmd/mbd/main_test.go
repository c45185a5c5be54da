package main

import (
	"testing"

	"github.com/mzeidler/mbd/internal/controllers"
	"github.com/mzeidler/mbd/internal/models"
)

func TestBuildControllerSelection(t *testing.T) {
	pendulum, _, err := models.Build("pendulum", nil)
	if err != nil {
		t.Fatal(err)
	}
	double, _, err := models.Build("double_pendulum", nil)
	if err != nil {
		t.Fatal(err)
	}

	controller = "none"
	if c, err := buildController(pendulum); err != nil || c != nil {
		t.Errorf("none: got %v, %v", c, err)
	}

	controller = "pid"
	if c, err := buildController(pendulum); err != nil || c == nil {
		t.Errorf("pid: got %v, %v", c, err)
	}

	controller = "lqr"
	c, err := buildController(pendulum)
	if err != nil {
		t.Fatalf("lqr on pendulum: %v", err)
	}
	if _, ok := c.(*controllers.LQR); !ok {
		t.Errorf("lqr: got %T", c)
	}

	// gain matrix is 1x2, double pendulum is 2x4
	if _, err := buildController(double); err == nil {
		t.Error("lqr on double_pendulum: expected dimension error")
	}

	controller = "bogus"
	if _, err := buildController(pendulum); err == nil {
		t.Error("bogus: expected error")
	}
}
