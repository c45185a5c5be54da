package export

import (
	"strings"
	"testing"
)

func TestTrajectoryToSVG(t *testing.T) {
	points := []Point{{0, 0}, {1, 1}, {2, 0}}
	svg := TrajectoryToSVG(points, 400, 300, "#00ff00")

	if !strings.HasPrefix(svg, `<?xml version="1.0"`) {
		t.Error("missing xml header")
	}
	if !strings.Contains(svg, `width="400" height="300"`) {
		t.Error("missing viewport dimensions")
	}
	if !strings.Contains(svg, `stroke="#00ff00"`) {
		t.Error("missing stroke color")
	}
	if strings.Count(svg, " L") != len(points)-1 {
		t.Errorf("expected %d line segments, got %d", len(points)-1, strings.Count(svg, " L"))
	}
}

func TestTrajectoryToSVGDegenerate(t *testing.T) {
	if svg := TrajectoryToSVG([]Point{{1, 1}}, 100, 100, "#fff"); svg != "" {
		t.Error("expected empty output for a single point")
	}

	// constant trajectory must not divide by zero
	svg := TrajectoryToSVG([]Point{{1, 1}, {1, 1}}, 100, 100, "#fff")
	if !strings.Contains(svg, "<path") {
		t.Error("expected a path for a constant trajectory")
	}
}
