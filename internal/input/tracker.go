package input

import (
	"sync"
	"time"

	"github.com/Versifine/diver/internal/control"
)

// Tracker folds queued key events into the held-key state once per frame.
type Tracker struct {
	queue *Queue
	now   func() time.Time

	mu     sync.Mutex
	held   control.InputState
	pulses map[control.Key]time.Time
}

func NewTracker(queue *Queue) *Tracker {
	return &Tracker{
		queue:  queue,
		now:    time.Now,
		pulses: make(map[control.Key]time.Time),
	}
}

// SetClock replaces the time source used to expire pulses.
func (t *Tracker) SetClock(now func() time.Time) {
	t.mu.Lock()
	defer t.mu.Unlock()
	t.now = now
}

// Pulse holds key until d has elapsed. Terminals report key presses but not
// releases, so their keys are held for a short window instead.
func (t *Tracker) Pulse(key control.Key, d time.Duration) {
	t.mu.Lock()
	defer t.mu.Unlock()
	t.held = t.held.With(key, true)
	t.pulses[key] = t.now().Add(d)
}

// Drain consumes every queued event in order and returns the resulting snapshot.
func (t *Tracker) Drain() control.InputState {
	t.mu.Lock()
	defer t.mu.Unlock()

	if t.queue != nil {
	loop:
		for {
			select {
			case evt := <-t.queue.ch:
				t.held = t.held.With(evt.Key, evt.Pressed)
				delete(t.pulses, evt.Key)
			default:
				break loop
			}
		}
	}

	now := t.now()
	for key, until := range t.pulses {
		if !now.Before(until) {
			t.held = t.held.With(key, false)
			delete(t.pulses, key)
		}
	}
	return t.held
}

// Current returns the last drained state without consuming events.
func (t *Tracker) Current() control.InputState {
	t.mu.Lock()
	defer t.mu.Unlock()
	return t.held
}

func (t *Tracker) Reset() {
	t.mu.Lock()
	defer t.mu.Unlock()
	t.held = control.InputState{}
	clear(t.pulses)
}
