package debug

import (
	"bufio"
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"os"
	"strconv"
	"strings"
	"sync"
	"time"

	"github.com/go-gl/mathgl/mgl64"
	"golang.org/x/term"

	"github.com/Versifine/diver/internal/body"
	"github.com/Versifine/diver/internal/control"
	"github.com/Versifine/diver/internal/event"
	"github.com/Versifine/diver/internal/physics"
	"github.com/Versifine/diver/internal/world"
)

// ErrQuit is returned by Start when the user presses Ctrl-C or Ctrl-D. Raw
// mode swallows the terminal's own interrupt.
var ErrQuit = errors.New("console closed by user")

const (
	defaultMovePulse = 180 * time.Millisecond
	maxStepsPerCmd   = 6000
)

type ControlledBody interface {
	PhysicsState() physics.State
	SetLocalPosition(pos mgl64.Vec3)
	Reset()
}

type StateProvider interface {
	GetState() world.Snapshot
}

type InputController interface {
	Pulse(key control.Key, d time.Duration)
	Current() control.InputState
	Reset()
}

type LoopController interface {
	Step() (body.Frame, error)
	Pause()
	Resume()
	Paused() bool
}

type Console struct {
	body          ControlledBody
	stateProvider StateProvider
	input         InputController
	loop          LoopController
	bus           *event.Bus
	movePulse     time.Duration
	out           io.Writer

	mu          sync.Mutex
	commandMode bool
	commandBuf  []rune
	statusWidth int
	redraw      chan struct{}
}

func NewConsole(body ControlledBody, stateProvider StateProvider, input InputController, loop LoopController, bus *event.Bus) *Console {
	return &Console{
		body:          body,
		stateProvider: stateProvider,
		input:         input,
		loop:          loop,
		bus:           bus,
		movePulse:     defaultMovePulse,
		out:           os.Stdout,
		redraw:        make(chan struct{}, 1),
	}
}

func (c *Console) SetMovePulse(d time.Duration) {
	if d > 0 {
		c.movePulse = d
	}
}

// Present schedules a status line redraw for the new frame.
func (c *Console) Present(body.Frame) {
	select {
	case c.redraw <- struct{}{}:
	default:
	}
}

func (c *Console) Start(ctx context.Context) error {
	if c == nil {
		return fmt.Errorf("console is nil")
	}
	if c.body == nil {
		return fmt.Errorf("console body is nil")
	}
	if c.stateProvider == nil {
		return fmt.Errorf("console state provider is nil")
	}
	if c.input == nil {
		return fmt.Errorf("console input is nil")
	}

	fd := int(os.Stdin.Fd())
	oldState, err := term.MakeRaw(fd)
	if err != nil {
		return fmt.Errorf("set terminal raw mode: %w", err)
	}
	defer func() {
		_ = term.Restore(fd, oldState)
		fmt.Fprint(c.out, "\r\n")
	}()

	fmt.Fprint(c.out, "[debug] console started (W/A/S/D or arrows pulse thrust, X clear, : command, :help)\r\n")
	c.renderStatusLine()

	go c.renderLoop(ctx)

	// A blocked stdin read cannot be interrupted, so serve runs detached.
	errCh := make(chan error, 1)
	go func() { errCh <- c.serve(ctx, bufio.NewReader(os.Stdin)) }()
	select {
	case <-ctx.Done():
		return nil
	case err := <-errCh:
		return err
	}
}

func (c *Console) serve(ctx context.Context, reader *bufio.Reader) error {
	for {
		select {
		case <-ctx.Done():
			return nil
		default:
		}

		b, err := reader.ReadByte()
		if err != nil {
			if ctx.Err() != nil || err == io.EOF {
				return nil
			}
			return fmt.Errorf("read console input: %w", err)
		}
		if b == 3 || b == 4 { // Ctrl-C, Ctrl-D
			return ErrQuit
		}
		c.handleKey(reader, b)
	}
}

func (c *Console) renderLoop(ctx context.Context) {
	for {
		select {
		case <-ctx.Done():
			return
		case <-c.redraw:
			c.renderStatusLine()
		}
	}
}

func (c *Console) handleKey(reader *bufio.Reader, b byte) {
	if c.isCommandMode() {
		c.handleCommandByte(b)
		return
	}

	switch b {
	case ':':
		c.enterCommandMode()
		return
	case 'w', 'W':
		c.pulse(control.KeyUp)
	case 's', 'S':
		c.pulse(control.KeyDown)
	case 'a', 'A':
		c.pulse(control.KeyLeft)
	case 'd', 'D':
		c.pulse(control.KeyRight)
	case 'x', 'X':
		c.input.Reset()
	case 27: // ESC + arrow sequence
		next, err := reader.ReadByte()
		if err != nil || next != '[' {
			return
		}
		arrow, err := reader.ReadByte()
		if err != nil {
			return
		}
		switch arrow {
		case 'A':
			c.pulse(control.KeyUp)
		case 'B':
			c.pulse(control.KeyDown)
		case 'C':
			c.pulse(control.KeyRight)
		case 'D':
			c.pulse(control.KeyLeft)
		}
	}
	c.renderStatusLine()
}

func (c *Console) pulse(key control.Key) {
	c.input.Pulse(key, c.movePulse)
}

func (c *Console) enterCommandMode() {
	c.mu.Lock()
	c.commandMode = true
	c.commandBuf = c.commandBuf[:0]
	c.mu.Unlock()
	fmt.Fprint(c.out, "\r\n:")
}

func (c *Console) handleCommandByte(b byte) {
	switch b {
	case 13, 10: // Enter
		c.mu.Lock()
		cmd := strings.TrimSpace(string(c.commandBuf))
		c.commandMode = false
		c.commandBuf = c.commandBuf[:0]
		c.mu.Unlock()

		fmt.Fprint(c.out, "\r\n")
		if cmd != "" {
			c.executeCommand(cmd)
		}
		c.renderStatusLine()
		return
	case 27: // ESC cancel command mode
		c.mu.Lock()
		c.commandMode = false
		c.commandBuf = c.commandBuf[:0]
		c.mu.Unlock()
		fmt.Fprint(c.out, "\r\n[debug] command cancelled\r\n")
		c.renderStatusLine()
		return
	case 8, 127: // Backspace
		c.mu.Lock()
		if len(c.commandBuf) > 0 {
			c.commandBuf = c.commandBuf[:len(c.commandBuf)-1]
		}
		buf := string(c.commandBuf)
		c.mu.Unlock()
		fmt.Fprintf(c.out, "\r:%s ", buf)
		fmt.Fprintf(c.out, "\r:%s", buf)
		return
	default:
		if b < 32 || b > 126 {
			return
		}
		c.mu.Lock()
		c.commandBuf = append(c.commandBuf, rune(b))
		buf := string(c.commandBuf)
		c.mu.Unlock()
		fmt.Fprintf(c.out, "\r:%s", buf)
	}
}

func (c *Console) executeCommand(cmd string) {
	parts := strings.Fields(cmd)
	if len(parts) == 0 {
		return
	}

	switch parts[0] {
	case "help":
		c.printHelp()
	case "state":
		ps := c.body.PhysicsState()
		fmt.Fprintf(c.out, "[debug] physics pos=(%.3f,%.3f,%.3f) vel=(%.3f,%.3f,%.3f) rot=(%.3f,%.3f,%.3f,%.3f)\r\n",
			ps.Position.X(), ps.Position.Y(), ps.Position.Z(),
			ps.Velocity.X(), ps.Velocity.Y(), ps.Velocity.Z(),
			ps.Orientation.V.X(), ps.Orientation.V.Y(), ps.Orientation.V.Z(), ps.Orientation.W,
		)
	case "snap":
		fmt.Fprintf(c.out, "[debug] %s\r\n", c.stateProvider.GetState().String())
	case "tp":
		if len(parts) != 4 {
			fmt.Fprint(c.out, "[debug] usage: :tp <x> <y> <z>\r\n")
			return
		}
		x, err1 := strconv.ParseFloat(parts[1], 64)
		y, err2 := strconv.ParseFloat(parts[2], 64)
		z, err3 := strconv.ParseFloat(parts[3], 64)
		if err1 != nil || err2 != nil || err3 != nil {
			fmt.Fprint(c.out, "[debug] invalid tp args\r\n")
			return
		}
		c.body.SetLocalPosition(mgl64.Vec3{x, y, z})
		fmt.Fprintf(c.out, "[debug] local tp set to (%.3f, %.3f, %.3f)\r\n", x, y, z)
	case "reset":
		c.body.Reset()
		c.input.Reset()
		if c.bus != nil {
			c.bus.Publish(event.EventReset, event.ResetEvent{Source: "console"})
		}
		fmt.Fprint(c.out, "[debug] diver reset to spawn\r\n")
	case "pause":
		if c.loop == nil {
			fmt.Fprint(c.out, "[debug] no loop attached\r\n")
			return
		}
		c.loop.Pause()
		fmt.Fprint(c.out, "[debug] simulation paused\r\n")
	case "resume":
		if c.loop == nil {
			fmt.Fprint(c.out, "[debug] no loop attached\r\n")
			return
		}
		c.loop.Resume()
		fmt.Fprint(c.out, "[debug] simulation resumed\r\n")
	case "step":
		c.handleStepCommand(parts)
	default:
		fmt.Fprintf(c.out, "[debug] unknown command: %s\r\n", parts[0])
	}
}

func (c *Console) handleStepCommand(parts []string) {
	if c.loop == nil {
		fmt.Fprint(c.out, "[debug] no loop attached\r\n")
		return
	}
	if !c.loop.Paused() {
		fmt.Fprint(c.out, "[debug] :step needs a paused simulation (use :pause)\r\n")
		return
	}

	n := 1
	if len(parts) > 2 {
		fmt.Fprint(c.out, "[debug] usage: :step [n]\r\n")
		return
	}
	if len(parts) == 2 {
		v, err := strconv.Atoi(parts[1])
		if err != nil || v < 1 || v > maxStepsPerCmd {
			fmt.Fprintf(c.out, "[debug] invalid step count (1..%d)\r\n", maxStepsPerCmd)
			return
		}
		n = v
	}

	var frame body.Frame
	for i := 0; i < n; i++ {
		f, err := c.loop.Step()
		if err != nil {
			slog.Warn("debug step failed", "error", err)
			fmt.Fprintf(c.out, "[debug] step failed: %v\r\n", err)
			return
		}
		frame = f
	}
	pos := frame.State.Position
	fmt.Fprintf(c.out, "[debug] stepped %d frame(s) -> #%d pos=(%.3f,%.3f,%.3f) depth=%.3f\r\n",
		n, frame.Seq, pos.X(), pos.Y(), pos.Z(), frame.Depth)
}

func (c *Console) printHelp() {
	fmt.Fprint(c.out, "[debug] keys:\r\n")
	fmt.Fprint(c.out, "  W/S/A/D or arrows: pulse up/down/left/right thrust (~180ms)\r\n")
	fmt.Fprint(c.out, "  X: clear all input\r\n")
	fmt.Fprint(c.out, "  : enter command mode\r\n")
	fmt.Fprint(c.out, "  Ctrl-C/Ctrl-D: quit\r\n")
	fmt.Fprint(c.out, "[debug] commands:\r\n")
	fmt.Fprint(c.out, "  :tp <x> <y> <z>\r\n")
	fmt.Fprint(c.out, "  :reset\r\n")
	fmt.Fprint(c.out, "  :pause / :resume\r\n")
	fmt.Fprint(c.out, "  :step [n]\r\n")
	fmt.Fprint(c.out, "  :state\r\n")
	fmt.Fprint(c.out, "  :snap\r\n")
	fmt.Fprint(c.out, "  :help\r\n")
}

func (c *Console) renderStatusLine() {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.commandMode {
		return
	}

	input := c.input.Current()
	snap := c.stateProvider.GetState()
	p := snap.Transform.Position
	paused := c.loop != nil && c.loop.Paused()

	line := fmt.Sprintf(
		"[UP:%s DN:%s LT:%s RT:%s | X:%.2f Y:%.2f Z:%.2f depth:%.2f | paused:%t]",
		boolLabel(input.Up),
		boolLabel(input.Down),
		boolLabel(input.Left),
		boolLabel(input.Right),
		p.X, p.Y, p.Z,
		snap.Depth,
		paused,
	)

	padding := ""
	if c.statusWidth > len(line) {
		padding = strings.Repeat(" ", c.statusWidth-len(line))
	}
	fmt.Fprintf(c.out, "\r%s%s", line, padding)
	if len(line) > c.statusWidth {
		c.statusWidth = len(line)
	}
}

func (c *Console) isCommandMode() bool {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.commandMode
}

func boolLabel(v bool) string {
	if v {
		return "on"
	}
	return "off"
}
