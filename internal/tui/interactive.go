package tui

import (
	"fmt"
	"math"
	"strings"
	"time"

	tea "github.com/charmbracelet/bubbletea"
	"github.com/charmbracelet/lipgloss"
	"github.com/mzeidler/mbd/internal/integrators"
	"github.com/mzeidler/mbd/internal/models"
	"github.com/mzeidler/mbd/internal/sim"
)

var (
	cyan    = lipgloss.NewStyle().Foreground(lipgloss.Color("86"))
	white   = lipgloss.NewStyle().Foreground(lipgloss.Color("255"))
	dim     = lipgloss.NewStyle().Foreground(lipgloss.Color("242"))
	dimmer  = lipgloss.NewStyle().Foreground(lipgloss.Color("238"))
	green   = lipgloss.NewStyle().Foreground(lipgloss.Color("82"))
	yellow  = lipgloss.NewStyle().Foreground(lipgloss.Color("220"))
	red     = lipgloss.NewStyle().Foreground(lipgloss.Color("196"))
	magenta = lipgloss.NewStyle().Foreground(lipgloss.Color("213"))
)

var modelInfo = map[string]string{
	"pendulum":        "rigid rod on a pin",
	"double_pendulum": "chaotic two-link chain",
	"cart_pendulum":   "rod on a sliding cart",
	"top":             "spinning top on a ball joint",
	"projectile":      "free rigid body in flight",
	"fourbar":         "closed four-bar linkage",
}

var paramMenu = map[string][]string{
	"pendulum":        {"theta", "omega", "mass", "length", "dt", "duration"},
	"double_pendulum": {"theta", "theta2", "omega", "omega2", "length", "dt", "duration"},
	"cart_pendulum":   {"pos", "vel", "theta", "omega", "cart_mass", "dt", "duration"},
	"top":             {"tilt", "spin", "height", "radius", "dt", "duration"},
	"projectile":      {"vx", "vy", "spin", "dt", "duration"},
	"fourbar":         {"theta", "theta2", "coupler", "anchor_x", "dt", "duration"},
}

var paramDefaults = map[string]map[string]float64{
	"pendulum":        {"theta": 0.5, "omega": 0, "mass": 1, "length": 1},
	"double_pendulum": {"theta": 0.5, "theta2": 0.5, "omega": 0, "omega2": 0, "length": 1},
	"cart_pendulum":   {"pos": 0, "vel": 0, "theta": 0.1, "omega": 0, "cart_mass": 5},
	"top":             {"tilt": 0.2, "spin": 120, "height": 0.3, "radius": 0.08},
	"projectile":      {"vx": 3, "vy": 4, "spin": 2},
	"fourbar":         {"theta": 0.4, "theta2": -0.8, "coupler": 1.2, "anchor_x": 1.5},
}

type state int

const (
	stateMenu state = iota
	stateConfig
	stateSim
)

type model struct {
	state    state
	cursor   int
	models   []string
	selected string

	params      map[string]float64
	paramNames  []string
	paramCursor int
	editing     bool
	editBuf     string

	running    bool
	paused     bool
	mech       *models.Mechanism
	simState   sim.State
	simTime    float64
	buildErr   string
	integrator sim.Integrator
	dt         float64
	speed      float64
	trail      []trailPoint
	history    []float64
	lastFrame  time.Time
	fps        float64
	ax, ay     int
	scale      float64

	width  int
	height int
}

type trailPoint struct {
	x, y     float64
	velocity float64
}

func NewInteractiveApp() *model {
	return &model{
		state:      stateMenu,
		models:     models.Names(),
		params:     map[string]float64{"dt": 0.01, "duration": 30.0},
		integrator: integrators.NewRK4(),
		dt:         0.01,
		speed:      1.0,
		trail:      make([]trailPoint, 0, 100),
		history:    make([]float64, 0, 60),
		width:      80,
		height:     24,
	}
}

func (m model) Init() tea.Cmd { return nil }

type tickMsg time.Time

func tick() tea.Cmd {
	return tea.Tick(16*time.Millisecond, func(t time.Time) tea.Msg { return tickMsg(t) })
}

func (m model) Update(msg tea.Msg) (tea.Model, tea.Cmd) {
	switch msg := msg.(type) {
	case tea.KeyMsg:
		return m.handleKey(msg)
	case tea.WindowSizeMsg:
		m.width = msg.Width
		m.height = msg.Height
		return m, nil
	case tickMsg:
		if m.state != stateSim {
			return m, nil
		}
		if m.running && !m.paused && m.mech != nil && m.simState != nil {
			now := time.Now()
			if !m.lastFrame.IsZero() {
				dt := now.Sub(m.lastFrame).Seconds()
				if dt > 0 {
					m.fps = 1.0 / dt
				}
			}
			m.lastFrame = now
			steps := int(m.speed)
			if steps < 1 {
				steps = 1
			}
			for i := 0; i < steps; i++ {
				m.step()
			}
		}
		if m.running && m.state == stateSim {
			return m, tick()
		}
		return m, nil
	}
	return m, nil
}

func (m model) handleKey(msg tea.KeyMsg) (model, tea.Cmd) {
	switch m.state {
	case stateMenu:
		return m.menuKey(msg)
	case stateConfig:
		return m.configKey(msg)
	case stateSim:
		return m.simKey(msg)
	}
	return m, nil
}

func (m model) menuKey(msg tea.KeyMsg) (model, tea.Cmd) {
	switch msg.String() {
	case "q", "ctrl+c":
		return m, tea.Quit
	case "up", "k":
		if m.cursor > 0 {
			m.cursor--
		}
	case "down", "j":
		if m.cursor < len(m.models)-1 {
			m.cursor++
		}
	case "enter", " ":
		m.selected = m.models[m.cursor]
		m.state = stateConfig
		m.paramCursor = 0
		m.setParamsForModel()
	}
	return m, nil
}

func (m model) configKey(msg tea.KeyMsg) (model, tea.Cmd) {
	if m.editing {
		switch msg.String() {
		case "enter":
			var val float64
			fmt.Sscanf(m.editBuf, "%f", &val)
			m.params[m.paramNames[m.paramCursor]] = val
			m.editing = false
			m.editBuf = ""
		case "escape":
			m.editing = false
			m.editBuf = ""
		case "backspace":
			if len(m.editBuf) > 0 {
				m.editBuf = m.editBuf[:len(m.editBuf)-1]
			}
		default:
			if len(msg.String()) == 1 {
				c := msg.String()[0]
				if (c >= '0' && c <= '9') || c == '.' || c == '-' {
					m.editBuf += string(c)
				}
			}
		}
		return m, nil
	}

	switch msg.String() {
	case "q", "escape":
		m.state = stateMenu
	case "up", "k":
		if m.paramCursor > 0 {
			m.paramCursor--
		}
	case "down", "j":
		if m.paramCursor < len(m.paramNames)-1 {
			m.paramCursor++
		}
	case "enter", " ":
		m.editing = true
		m.editBuf = fmt.Sprintf("%.2f", m.params[m.paramNames[m.paramCursor]])
	case "s":
		m.start()
		m.state = stateSim
		return m, tea.Batch(tea.ClearScreen, tick())
	case "left", "h":
		m.params[m.paramNames[m.paramCursor]] -= 0.1
	case "right", "l":
		m.params[m.paramNames[m.paramCursor]] += 0.1
	}
	return m, nil
}

func (m model) simKey(msg tea.KeyMsg) (model, tea.Cmd) {
	switch msg.String() {
	case "q", "escape":
		m.running = false
		m.state = stateMenu
		m.reset()
		return m, tea.ClearScreen
	case " ", "p":
		m.paused = !m.paused
	case "r":
		m.start()
		return m, tea.ClearScreen
	case "c":
		m.running = false
		m.state = stateConfig
		m.reset()
		return m, tea.ClearScreen
	case "+", "=":
		m.speed = math.Min(m.speed*2, 16)
	case "-", "_":
		m.speed = math.Max(m.speed/2, 0.25)
	case "0":
		m.speed = 1.0
	}
	return m, nil
}

func (m *model) setParamsForModel() {
	m.paramNames = paramMenu[m.selected]
	for name, val := range paramDefaults[m.selected] {
		m.params[name] = val
	}
}

func (m *model) start() {
	if dt := m.params["dt"]; dt > 0 {
		m.dt = dt
	} else {
		m.dt = 0.01
	}
	m.trail = make([]trailPoint, 0, 100)
	m.history = make([]float64, 0, 60)
	m.simTime = 0
	m.speed = 1.0
	m.scale = 1.0
	m.lastFrame = time.Time{}
	m.buildErr = ""

	p := models.Params{}
	for _, name := range m.paramNames {
		if name == "dt" || name == "duration" {
			continue
		}
		p[name] = m.params[name]
	}

	mech, x0, err := models.Build(m.selected, p)
	if err != nil {
		m.buildErr = err.Error()
		m.running = false
		return
	}
	m.mech = mech
	m.simState = x0
	m.ax, m.ay = projectionAxes(mech)
	m.running = true
	m.paused = false
}

func (m *model) reset() {
	m.trail = nil
	m.history = nil
	m.mech = nil
	m.simState = nil
	m.simTime = 0
}

func (m *model) step() {
	if m.simTime >= m.params["duration"] {
		m.paused = true
		return
	}
	u := make(sim.Control, m.mech.ControlDim())
	m.simState = m.integrator.Step(m.mech, m.simState, u, m.simTime, m.dt)
	m.simTime += m.dt
	if err := m.mech.Project(m.simState); err != nil {
		m.buildErr = err.Error()
		m.paused = true
		return
	}

	origins := m.mech.BodyOrigins(m.simState)
	tip := origins[len(origins)-1]
	p := [3]float64{tip.X, tip.Y, tip.Z}
	tx, ty := p[m.ax], p[m.ay]

	vel := 0.0
	if n := len(m.trail); n > 0 {
		last := m.trail[n-1]
		vel = math.Hypot(tx-last.x, ty-last.y) / m.dt
	}
	m.trail = append(m.trail, trailPoint{tx, ty, vel})
	if len(m.trail) > 100 {
		m.trail = m.trail[1:]
	}
	m.history = append(m.history, m.simState[0])
	if len(m.history) > 60 {
		m.history = m.history[1:]
	}
}

func (m model) View() string {
	switch m.state {
	case stateMenu:
		return m.viewMenu()
	case stateConfig:
		return m.viewConfig()
	case stateSim:
		return m.viewSim()
	}
	return ""
}

func (m model) viewMenu() string {
	var b strings.Builder

	b.WriteString("\n")
	b.WriteString(dimmer.Render("    ╺━━━━━━━━━━━━━━━━━━━━━━━━╸") + "\n")
	b.WriteString("             " + cyan.Render("m b d") + "\n")
	b.WriteString(dimmer.Render("    ╺━━━━━━━━━━━━━━━━━━━━━━━━╸") + "\n")
	b.WriteString("\n")

	for i, name := range m.models {
		desc := modelInfo[name]
		if i == m.cursor {
			b.WriteString("      " + cyan.Render("▸ ") + white.Render(fmt.Sprintf("%-16s", name)) + dim.Render(desc) + "\n")
		} else {
			b.WriteString("        " + dim.Render(fmt.Sprintf("%-16s", name)) + dimmer.Render(desc) + "\n")
		}
	}

	b.WriteString("\n")
	b.WriteString(dim.Render("      ↑↓ select   enter start   q quit") + "\n")

	return b.String()
}

func (m model) viewConfig() string {
	var b strings.Builder

	b.WriteString("\n")
	b.WriteString("      " + cyan.Render(m.selected) + "  " + dim.Render(modelInfo[m.selected]) + "\n")
	b.WriteString(dimmer.Render("      "+strings.Repeat("─", 30)) + "\n\n")

	for i, name := range m.paramNames {
		val := fmt.Sprintf("%8.3f", m.params[name])
		if m.editing && i == m.paramCursor {
			val = fmt.Sprintf("%8s", m.editBuf+"▋")
		}
		if i == m.paramCursor {
			b.WriteString("      " + cyan.Render("▸ ") + white.Render(fmt.Sprintf("%-10s", name)) + magenta.Render(val) + "\n")
		} else {
			b.WriteString("        " + dim.Render(fmt.Sprintf("%-10s", name)) + dim.Render(val) + "\n")
		}
	}

	b.WriteString("\n")
	b.WriteString(dim.Render("      ↑↓ select  ←→ adjust  enter edit  s start  esc back") + "\n")

	return b.String()
}

func (m model) viewSim() string {
	if m.buildErr != "" && m.mech == nil {
		return "\n   " + red.Render("model error: "+m.buildErr) + "\n\n" +
			dim.Render("   c config  q quit") + "\n"
	}

	cw := m.width - 6
	ch := m.height - 12
	if cw < 50 {
		cw = 50
	}
	if ch < 12 {
		ch = 12
	}

	canvas := make([][]rune, ch)
	for i := range canvas {
		canvas[i] = make([]rune, cw)
		for j := range canvas[i] {
			canvas[i][j] = ' '
		}
	}

	m.drawLinkage(canvas, cw, ch)

	var b strings.Builder

	statusIcon := green.Render("●")
	statusText := green.Render("running")
	if m.paused {
		statusIcon = yellow.Render("○")
		statusText = yellow.Render("paused")
	}
	b.WriteString(fmt.Sprintf("\n   %s %s  %s\n",
		statusIcon, cyan.Render(m.selected), statusText))

	progress := m.simTime / m.params["duration"]
	if progress > 1 {
		progress = 1
	}
	barWidth := 36
	filled := int(progress * float64(barWidth))
	timeStr := fmt.Sprintf("%.1fs/%.0fs", m.simTime, m.params["duration"])
	bar := cyan.Render(strings.Repeat("━", filled)) + dimmer.Render(strings.Repeat("─", barWidth-filled))
	b.WriteString(fmt.Sprintf("   %s %s  %s\n\n", bar, dim.Render(timeStr), dim.Render(fmt.Sprintf("%.0ffps", m.fps))))

	for _, row := range canvas {
		b.WriteString("   " + string(row) + "\n")
	}

	if m.mech != nil && m.simState != nil {
		ke := m.mech.KineticEnergy(m.simState)
		pe := m.mech.PotentialEnergy(m.simState)
		mag := math.Abs(ke) + math.Abs(pe)
		if mag > 1e-12 {
			energyWidth := 20
			keBar := int(math.Abs(ke) / mag * float64(energyWidth))
			peBar := energyWidth - keBar
			b.WriteString(fmt.Sprintf("\n   energy %s%s  %s %.2f  %s %.2f\n",
				green.Render(strings.Repeat("█", keBar)),
				yellow.Render(strings.Repeat("█", peBar)),
				green.Render("KE"), ke,
				yellow.Render("PE"), pe))
		}

		var stateStr strings.Builder
		stateStr.WriteString("   ")
		for i := 0; i < len(m.simState) && i < 4; i++ {
			stateStr.WriteString(dim.Render(fmt.Sprintf("x%d=", i)))
			stateStr.WriteString(white.Render(fmt.Sprintf("%.2f", m.simState[i])))
			stateStr.WriteString("  ")
		}
		if ce := m.mech.ConstraintError(m.simState); ce > 0 {
			stateStr.WriteString(dim.Render("loop="))
			stateStr.WriteString(white.Render(fmt.Sprintf("%.1e", ce)))
		}
		b.WriteString(stateStr.String() + "\n")
	}

	if len(m.history) > 1 {
		spark := m.sparkline(m.history, 24)
		b.WriteString(fmt.Sprintf("   %s %s\n", dim.Render("q0"), cyan.Render(spark)))
	}

	if m.buildErr != "" {
		b.WriteString("   " + red.Render(m.buildErr) + "\n")
	}

	b.WriteString("\n" + dim.Render("   space pause  ±speed  r reset  c config  q quit") + "\n")

	return b.String()
}

func (m model) sparkline(data []float64, width int) string {
	if len(data) == 0 {
		return ""
	}
	chars := []rune{'▁', '▂', '▃', '▄', '▅', '▆', '▇', '█'}
	minVal, maxVal := data[0], data[0]
	for _, v := range data {
		if v < minVal {
			minVal = v
		}
		if v > maxVal {
			maxVal = v
		}
	}
	rang := maxVal - minVal
	if rang == 0 {
		rang = 1
	}
	step := len(data) / width
	if step < 1 {
		step = 1
	}
	var sb strings.Builder
	for i := 0; i < width && i*step < len(data); i++ {
		v := data[i*step]
		idx := int((v - minVal) / rang * 7)
		if idx > 7 {
			idx = 7
		}
		if idx < 0 {
			idx = 0
		}
		sb.WriteRune(chars[idx])
	}
	return sb.String()
}

func (m model) trailChar(velocity, maxVel float64) rune {
	if maxVel == 0 {
		return '·'
	}
	ratio := velocity / maxVel
	if ratio < 0.25 {
		return '·'
	} else if ratio < 0.5 {
		return '∘'
	} else if ratio < 0.75 {
		return '○'
	}
	return '●'
}

func (m model) maxTrailVelocity() float64 {
	maxV := 0.0
	for _, pt := range m.trail {
		if pt.velocity > maxV {
			maxV = pt.velocity
		}
	}
	return maxV
}

// drawLinkage projects every body origin onto the view plane and draws
// parent-child links, with a velocity-shaded trail behind the last body.
func (m *model) drawLinkage(canvas [][]rune, w, h int) {
	if m.mech == nil || m.simState == nil {
		return
	}

	origins := m.mech.BodyOrigins(m.simState)
	parents := m.mech.BodyParents()

	for _, o := range origins {
		p := [3]float64{o.X, o.Y, o.Z}
		if mag := math.Max(math.Abs(p[m.ax]), math.Abs(p[m.ay])); mag > m.scale {
			m.scale = mag
		}
	}

	toCanvas := func(hc, vc float64) (int, int) {
		return w/2 + int(hc/m.scale*float64(w)*0.4),
			h/2 - int(vc/m.scale*float64(h)*0.42)
	}

	maxV := m.maxTrailVelocity()
	for _, pt := range m.trail {
		tx, ty := toCanvas(pt.x, pt.y)
		if tx >= 0 && tx < w && ty >= 0 && ty < h {
			canvas[ty][tx] = m.trailChar(pt.velocity, maxV)
		}
	}

	pts := make([]struct{ x, y int }, len(origins))
	for i, o := range origins {
		p := [3]float64{o.X, o.Y, o.Z}
		pts[i].x, pts[i].y = toCanvas(p[m.ax], p[m.ay])
	}

	for i := 1; i < len(pts); i++ {
		pr := parents[i]
		if pr < 0 {
			continue
		}
		drawLine(canvas, w, h, pts[pr].x, pts[pr].y, pts[i].x, pts[i].y, '│')
	}
	for i, pt := range pts {
		switch {
		case i == 0:
			set(canvas, pt.x, pt.y, '▼', w, h)
		case i == len(pts)-1:
			set(canvas, pt.x, pt.y, '⬤', w, h)
		default:
			set(canvas, pt.x, pt.y, '●', w, h)
		}
	}
}

func set(canvas [][]rune, x, y int, c rune, w, h int) {
	if x >= 0 && x < w && y >= 0 && y < h {
		canvas[y][x] = c
	}
}

func drawLine(canvas [][]rune, w, h, x1, y1, x2, y2 int, c rune) {
	dx := intAbs(x2 - x1)
	dy := intAbs(y2 - y1)
	sx, sy := 1, 1
	if x1 > x2 {
		sx = -1
	}
	if y1 > y2 {
		sy = -1
	}
	err := dx - dy
	for {
		set(canvas, x1, y1, c, w, h)
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

func intAbs(x int) int {
	if x < 0 {
		return -x
	}
	return x
}

func RunInteractive() error {
	p := tea.NewProgram(NewInteractiveApp(), tea.WithAltScreen())
	_, err := p.Run()
	return err
}
