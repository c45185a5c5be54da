package tui

import (
	"fmt"
	"math"
	"strings"
	"time"

	"github.com/mzeidler/mbd/internal/models"
	"github.com/mzeidler/mbd/internal/sim"
)

const (
	width       = 70
	height      = 20
	clearScreen = "\033[2J\033[H"
	hideCursor  = "\033[?25l"
	showCursor  = "\033[?25h"
)

// LiveRenderer is a sim.Observer that draws the mechanism's linkage as
// ASCII while the simulation runs. Bodies are projected onto the plane
// spanned by the horizontal axis and the gravity axis, so planar
// mechanisms render true to shape and spatial ones as a side view.
type LiveRenderer struct {
	mech      *models.Mechanism
	frameRate int
	lastFrame time.Time
	canvas    [][]rune
	trail     []struct{ x, y int }
	ax, ay    int
	scale     float64
}

func NewLiveRenderer(mech *models.Mechanism, frameRate int) *LiveRenderer {
	canvas := make([][]rune, height)
	for i := range canvas {
		canvas[i] = make([]rune, width)
	}
	ax, ay := projectionAxes(mech)
	return &LiveRenderer{
		mech:      mech,
		frameRate: frameRate,
		canvas:    canvas,
		trail:     make([]struct{ x, y int }, 0, 50),
		ax:        ax,
		ay:        ay,
		scale:     1.0,
	}
}

// projectionAxes picks the two world axes to draw: the vertical is the
// axis gravity acts along, the horizontal is the first axis it does not.
func projectionAxes(mech *models.Mechanism) (ax, ay int) {
	g := mech.Gravity()
	comps := []float64{g.X, g.Y, g.Z}
	ay = 1
	for i, c := range comps {
		if math.Abs(c) > math.Abs(comps[ay]) {
			ay = i
		}
	}
	if ay == 0 {
		return 1, 0
	}
	return 0, ay
}

func (r *LiveRenderer) OnStep(x sim.State, u sim.Control, t float64) {
	elapsed := time.Since(r.lastFrame)
	if elapsed < time.Second/time.Duration(r.frameRate) {
		return
	}
	r.lastFrame = time.Now()

	r.clear()
	r.drawLinkage(x)
	r.render(x, t)
}

func (r *LiveRenderer) clear() {
	for y := range r.canvas {
		for x := range r.canvas[y] {
			r.canvas[y][x] = ' '
		}
	}
}

func (r *LiveRenderer) set(x, y int, c rune) {
	if x >= 0 && x < width && y >= 0 && y < height {
		r.canvas[y][x] = c
	}
}

func (r *LiveRenderer) line(x1, y1, x2, y2 int, c rune) {
	dx := abs(x2 - x1)
	dy := abs(y2 - y1)
	sx, sy := 1, 1
	if x1 > x2 {
		sx = -1
	}
	if y1 > y2 {
		sy = -1
	}
	err := dx - dy
	for {
		r.set(x1, y1, c)
		if x1 == x2 && y1 == y2 {
			break
		}
		e2 := 2 * err
		if e2 > -dy {
			err -= dy
			x1 += sx
		}
		if e2 < dx {
			err += dx
			y1 += sy
		}
	}
}

// toCanvas maps a world point to canvas coordinates. The scale is
// sticky: it only grows, so the view does not pump as the mechanism
// folds and unfolds.
func (r *LiveRenderer) toCanvas(h, v float64) (int, int) {
	if m := math.Max(math.Abs(h), math.Abs(v)); m > r.scale {
		r.scale = m
	}
	px := width/2 + int(h/r.scale*float64(width)*0.4)
	py := height/2 - int(v/r.scale*float64(height)*0.42)
	return px, py
}

func (r *LiveRenderer) drawLinkage(x sim.State) {
	origins := r.mech.BodyOrigins(x)
	parents := r.mech.BodyParents()
	if len(origins) == 0 {
		return
	}

	pts := make([]struct{ x, y int }, len(origins))
	for i, o := range origins {
		p := [3]float64{o.X, o.Y, o.Z}
		pts[i].x, pts[i].y = r.toCanvas(p[r.ax], p[r.ay])
	}

	tip := pts[len(pts)-1]
	r.trail = append(r.trail, tip)
	if len(r.trail) > 40 {
		r.trail = r.trail[1:]
	}
	for i, pt := range r.trail {
		if i < len(r.trail)/2 {
			r.set(pt.x, pt.y, '.')
		} else {
			r.set(pt.x, pt.y, 'o')
		}
	}

	for i := 1; i < len(pts); i++ {
		p := parents[i]
		if p < 0 {
			continue
		}
		r.line(pts[p].x, pts[p].y, pts[i].x, pts[i].y, '|')
	}
	for i, pt := range pts {
		switch {
		case i == 0:
			r.set(pt.x, pt.y, '+')
		case i == len(pts)-1:
			r.set(pt.x, pt.y, 'O')
		default:
			r.set(pt.x, pt.y, 'o')
		}
	}
}

func (r *LiveRenderer) render(x sim.State, t float64) {
	var b strings.Builder
	b.WriteString(clearScreen)
	b.WriteString(fmt.Sprintf("  %s  t=%.2fs\n", r.mech.Name(), t))
	b.WriteString("  " + strings.Repeat("-", width) + "\n")

	for _, row := range r.canvas {
		b.WriteString("  ")
		b.WriteString(string(row))
		b.WriteString("\n")
	}

	b.WriteString("  " + strings.Repeat("-", width) + "\n")

	stateStr := "  "
	for i, v := range x {
		if i >= 4 {
			break
		}
		stateStr += fmt.Sprintf("x%d=%.2f ", i, v)
	}
	b.WriteString(stateStr + fmt.Sprintf(" E=%.3f", r.mech.Energy(x)) + "\n")

	fmt.Print(b.String())
}

func (r *LiveRenderer) Start() { fmt.Print(hideCursor) }
func (r *LiveRenderer) Stop()  { fmt.Print(showCursor) }

func abs(x int) int {
	if x < 0 {
		return -x
	}
	return x
}
