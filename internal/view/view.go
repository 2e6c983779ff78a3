package view

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"math"
	"strings"
	"sync"
	"time"

	"github.com/gdamore/tcell/v2"
	"github.com/go-gl/mathgl/mgl64"

	"github.com/Versifine/diver/internal/body"
	"github.com/Versifine/diver/internal/control"
	"github.com/Versifine/diver/internal/event"
)

// ErrQuit is returned by Run when the user asks to leave.
var ErrQuit = errors.New("view closed by user")

const (
	defaultPulse = 180 * time.Millisecond
	viewTop      = 12.0
	viewBottom   = -8.0
	hudRows      = 1

	sphereRune = '█'
	markerRune = '●'
	waterRune  = '~'
)

var (
	styleSky    = tcell.StyleDefault
	styleWater  = tcell.StyleDefault.Foreground(tcell.ColorDodgerBlue)
	styleSphere = tcell.StyleDefault.Foreground(tcell.ColorYellow)
	styleMarker = tcell.StyleDefault.Foreground(tcell.ColorRed).Background(tcell.ColorYellow)
	styleHUD    = tcell.StyleDefault.Foreground(tcell.ColorWhite).Reverse(true)
)

// Pulser holds a control key for a short window. Terminals never report
// key releases, so every press becomes a pulse.
type Pulser interface {
	Pulse(key control.Key, d time.Duration)
}

type Resetter interface {
	Reset()
}

// Mesh is the rendered diver. Its transform is copied from every frame.
type Mesh struct {
	Position    mgl64.Vec3
	Orientation mgl64.Quat
}

type Options struct {
	Pulse   time.Duration
	Surface float64
	Radius  float64
	Bus     *event.Bus
}

// TUI draws a side view of the diver and the water line and turns arrow keys
// into thrust pulses.
type TUI struct {
	screen   tcell.Screen
	pulser   Pulser
	resetter Resetter
	bus      *event.Bus
	pulse    time.Duration
	surface  float64
	radius   float64

	mu     sync.Mutex
	mesh   Mesh
	frame  body.Frame
	redraw chan struct{}
}

// New initialises screen and returns a view drawing onto it. Run finalises
// the screen on exit.
func New(screen tcell.Screen, pulser Pulser, resetter Resetter, opts Options) (*TUI, error) {
	if screen == nil {
		return nil, errors.New("view screen is nil")
	}
	if err := screen.Init(); err != nil {
		return nil, fmt.Errorf("init screen: %w", err)
	}
	if opts.Pulse <= 0 {
		opts.Pulse = defaultPulse
	}
	if opts.Radius <= 0 {
		opts.Radius = 1
	}
	screen.HideCursor()

	return &TUI{
		screen:   screen,
		pulser:   pulser,
		resetter: resetter,
		bus:      opts.Bus,
		pulse:    opts.Pulse,
		surface:  opts.Surface,
		radius:   opts.Radius,
		mesh:     Mesh{Orientation: mgl64.QuatIdent()},
		redraw:   make(chan struct{}, 1),
	}, nil
}

// Present copies the frame's transform into the mesh and schedules a redraw.
// It never blocks; frames arriving faster than the screen refreshes collapse
// into the latest one.
func (t *TUI) Present(frame body.Frame) {
	t.mu.Lock()
	t.frame = frame
	t.mesh.Position = frame.State.Position
	t.mesh.Orientation = frame.State.Orientation
	t.mu.Unlock()

	select {
	case t.redraw <- struct{}{}:
	default:
	}
}

func (t *TUI) Mesh() Mesh {
	t.mu.Lock()
	defer t.mu.Unlock()
	return t.mesh
}

func (t *TUI) Run(ctx context.Context) error {
	defer t.screen.Fini()

	events := make(chan tcell.Event, 64)
	quit := make(chan struct{})
	defer close(quit)
	go t.screen.ChannelEvents(events, quit)

	t.draw()
	for {
		select {
		case <-ctx.Done():
			return nil
		case ev, ok := <-events:
			if !ok {
				return nil
			}
			if !t.handleEvent(ev) {
				return ErrQuit
			}
		case <-t.redraw:
			t.draw()
		}
	}
}

func (t *TUI) handleEvent(ev tcell.Event) bool {
	switch ev := ev.(type) {
	case *tcell.EventKey:
		switch ev.Key() {
		case tcell.KeyEscape, tcell.KeyCtrlC:
			return false
		case tcell.KeyUp:
			t.pulseKey(control.KeyUp)
		case tcell.KeyDown:
			t.pulseKey(control.KeyDown)
		case tcell.KeyLeft:
			t.pulseKey(control.KeyLeft)
		case tcell.KeyRight:
			t.pulseKey(control.KeyRight)
		case tcell.KeyRune:
			switch ev.Rune() {
			case 'q', 'Q':
				return false
			case 'r', 'R':
				t.reset()
			}
		}
	case *tcell.EventResize:
		t.screen.Sync()
		t.draw()
	}
	return true
}

func (t *TUI) pulseKey(key control.Key) {
	if t.pulser != nil {
		t.pulser.Pulse(key, t.pulse)
	}
}

func (t *TUI) reset() {
	if t.resetter != nil {
		t.resetter.Reset()
	}
	if t.bus != nil {
		t.bus.Publish(event.EventReset, event.ResetEvent{Source: "tui"})
	}
	slog.Info("Diver reset from terminal view")
}

// projection maps world metres onto cells. Rows cover [viewBottom, viewTop];
// a cell is about twice as tall as it is wide, so columns are half as wide.
type projection struct {
	width, height int
	rowMetres     float64
	colMetres     float64
}

func newProjection(width, height int) projection {
	rows := height - hudRows
	if rows < 1 {
		rows = 1
	}
	rm := (viewTop - viewBottom) / float64(rows)
	return projection{width: width, height: height, rowMetres: rm, colMetres: rm / 2}
}

// cellCentre returns the world x and y at the centre of cell (col, row).
func (p projection) cellCentre(col, row int) (float64, float64) {
	x := (float64(col) + 0.5 - float64(p.width)/2) * p.colMetres
	y := viewTop - (float64(row-hudRows)+0.5)*p.rowMetres
	return x, y
}

func (p projection) cell(x, y float64) (int, int) {
	col := int(math.Floor(x/p.colMetres + float64(p.width)/2))
	row := int(math.Floor((viewTop-y)/p.rowMetres)) + hudRows
	return col, row
}

func (t *TUI) draw() {
	t.mu.Lock()
	mesh := t.mesh
	frame := t.frame
	t.mu.Unlock()

	w, h := t.screen.Size()
	if w <= 0 || h <= 0 {
		return
	}
	t.screen.Clear()
	p := newProjection(w, h)

	cx, cy := mesh.Position.X(), mesh.Position.Y()
	r2 := t.radius * t.radius
	for row := hudRows; row < h; row++ {
		for col := 0; col < w; col++ {
			x, y := p.cellCentre(col, row)
			dx, dy := x-cx, y-cy
			switch {
			case dx*dx+dy*dy <= r2:
				t.screen.SetContent(col, row, sphereRune, nil, styleSphere)
			case y <= t.surface:
				t.screen.SetContent(col, row, waterRune, nil, styleWater)
			default:
				t.screen.SetContent(col, row, ' ', nil, styleSky)
			}
		}
	}

	// Orientation marker: the body's local +x axis projected onto the view plane.
	axis := mesh.Orientation.Rotate(mgl64.Vec3{t.radius * 0.6, 0, 0})
	mc, mr := p.cell(cx+axis.X(), cy+axis.Y())
	if mc >= 0 && mc < w && mr >= hudRows && mr < h {
		t.screen.SetContent(mc, mr, markerRune, nil, styleMarker)
	}

	t.drawText(0, 0, hudLine(frame, w), styleHUD)
	t.screen.Show()
}

func (t *TUI) drawText(x, y int, s string, style tcell.Style) {
	for _, r := range s {
		t.screen.SetContent(x, y, r, nil, style)
		x++
	}
}

func hudLine(f body.Frame, width int) string {
	pos := f.State.Position
	var keys []string
	for _, k := range control.Keys {
		if f.Input.Held(k) {
			keys = append(keys, string(k))
		}
	}
	line := fmt.Sprintf(" t=%.2fs pos=(%.2f, %.2f, %.2f) depth=%.2f buoyancy=%.0fN keys=[%s] | arrows thrust, r reset, q quit",
		f.Time, pos.X(), pos.Y(), pos.Z(), f.Depth, f.Buoyancy, strings.Join(keys, ","))
	if len(line) < width {
		line += strings.Repeat(" ", width-len(line))
	}
	return line
}
