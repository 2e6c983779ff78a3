package sim

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"sync"
	"sync/atomic"
	"time"

	"github.com/Versifine/diver/internal/body"
	"github.com/Versifine/diver/internal/event"
)

var ErrInvalidRate = errors.New("invalid frame rate")

type Stepper interface {
	Tick(input body.InputState) (body.Frame, error)
}

type InputSource interface {
	Drain() body.InputState
}

// Sink receives every frame after it is simulated. Present must not block.
type Sink interface {
	Present(frame body.Frame)
}

type SinkFunc func(frame body.Frame)

func (f SinkFunc) Present(frame body.Frame) { f(frame) }

// Loop runs the diver at a fixed frame rate: drain input, tick, present.
type Loop struct {
	body     Stepper
	input    InputSource
	bus      *event.Bus
	interval time.Duration

	mu    sync.RWMutex
	sinks []Sink

	paused atomic.Bool
	frames atomic.Uint64

	// Guarded by stepMu.
	stepMu        sync.Mutex
	primed        bool
	generation    uint64
	lastSubmerged bool
}

func New(b Stepper, input InputSource, bus *event.Bus, rateHz float64) (*Loop, error) {
	if rateHz <= 0 {
		return nil, fmt.Errorf("%w: %v", ErrInvalidRate, rateHz)
	}
	return &Loop{
		body:     b,
		input:    input,
		bus:      bus,
		interval: time.Duration(float64(time.Second) / rateHz),
	}, nil
}

func (l *Loop) Interval() time.Duration { return l.interval }
func (l *Loop) Frames() uint64          { return l.frames.Load() }

func (l *Loop) AddSink(s Sink) {
	if s == nil {
		return
	}
	l.mu.Lock()
	defer l.mu.Unlock()
	l.sinks = append(l.sinks, s)
}

func (l *Loop) Pause()       { l.paused.Store(true) }
func (l *Loop) Resume()      { l.paused.Store(false) }
func (l *Loop) Paused() bool { return l.paused.Load() }

// Step simulates exactly one frame regardless of the paused flag.
func (l *Loop) Step() (body.Frame, error) {
	l.stepMu.Lock()
	defer l.stepMu.Unlock()

	var input body.InputState
	if l.input != nil {
		input = l.input.Drain()
	}
	frame, err := l.body.Tick(input)
	if err != nil {
		return body.Frame{}, err
	}
	l.frames.Add(1)
	l.detectSurfaceCrossing(frame)

	l.mu.RLock()
	sinks := make([]Sink, len(l.sinks))
	copy(sinks, l.sinks)
	l.mu.RUnlock()
	for _, s := range sinks {
		s.Present(frame)
	}
	return frame, nil
}

// Run ticks until ctx is cancelled. While paused, input is still drained so
// the queue cannot back up, but the body is not stepped.
func (l *Loop) Run(ctx context.Context) error {
	slog.Info("Simulation loop started", "interval", l.interval)
	ticker := time.NewTicker(l.interval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			slog.Info("Simulation loop stopped", "frames", l.frames.Load())
			return nil
		case <-ticker.C:
			if l.paused.Load() {
				if l.input != nil {
					l.input.Drain()
				}
				continue
			}
			if _, err := l.Step(); err != nil {
				return fmt.Errorf("simulation step: %w", err)
			}
		}
	}
}

// detectSurfaceCrossing compares frame against the previous one. The first
// frame, and the first after a teleport or reset, only primes the state.
func (l *Loop) detectSurfaceCrossing(frame body.Frame) {
	submerged := frame.Submerged()
	prev := l.lastSubmerged
	primed := l.primed && l.generation == frame.Generation
	l.lastSubmerged = submerged
	l.generation = frame.Generation
	l.primed = true
	if !primed || prev == submerged {
		return
	}

	evt := event.SurfaceEvent{
		Frame:     frame.Seq,
		Submerged: submerged,
		Depth:     frame.Depth,
		Speed:     frame.State.Velocity.Len(),
	}
	slog.Debug("Diver crossed water surface", "frame", evt.Frame, "submerged", evt.Submerged, "speed", evt.Speed)
	if l.bus != nil {
		l.bus.Publish(event.EventSurface, evt)
	}
}
