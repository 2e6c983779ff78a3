package physics

import (
	"errors"
	"fmt"
	"math"

	"github.com/go-gl/mathgl/mgl64"
)

var ErrInvalidTimestep = errors.New("invalid timestep")

type World struct {
	gravity mgl64.Vec3
	bodies  []*Body
	time    float64
	steps   uint64
}

func NewWorld(gravity mgl64.Vec3) *World {
	return &World{gravity: gravity}
}

func (w *World) Gravity() mgl64.Vec3 { return w.gravity }
func (w *World) Time() float64       { return w.time }
func (w *World) Steps() uint64       { return w.steps }

func (w *World) AddBody(b *Body) {
	if b == nil {
		return
	}
	w.bodies = append(w.bodies, b)
}

func (w *World) Bodies() []*Body {
	return append([]*Body(nil), w.bodies...)
}

// Step advances every body by dt and clears their force accumulators.
func (w *World) Step(dt float64) error {
	if dt <= 0 || math.IsNaN(dt) || math.IsInf(dt, 0) {
		return fmt.Errorf("%w: %v", ErrInvalidTimestep, dt)
	}
	for _, b := range w.bodies {
		b.integrate(w.gravity, dt)
	}
	w.time += dt
	w.steps++
	return nil
}
