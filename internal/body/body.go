package body

import (
	"errors"
	"fmt"
	"sync"

	"github.com/go-gl/mathgl/mgl64"

	"github.com/Versifine/diver/internal/control"
	"github.com/Versifine/diver/internal/physics"
	"github.com/Versifine/diver/internal/world"
)

var ErrNilBody = errors.New("body is nil")

type StateUpdater interface {
	UpdateDiver(u world.DiverUpdate)
}

type Options struct {
	Timestep       float64
	Gravity        mgl64.Vec3
	Mass           float64
	Radius         float64
	Spawn          mgl64.Vec3
	LinearDamping  float64
	AngularDamping float64
	Constants      control.Constants
}

func DefaultOptions() Options {
	return Options{
		Timestep:       physics.DefaultTimestep,
		Gravity:        physics.DefaultGravity,
		Mass:           physics.DiverMass,
		Radius:         physics.DiverRadius,
		Spawn:          physics.DiverSpawn,
		LinearDamping:  physics.DefaultLinearDamping,
		AngularDamping: physics.DefaultAngularDamping,
		Constants:      control.DefaultConstants(),
	}
}

// Frame is the diver's state after one tick. Generation changes whenever the
// diver is moved outside the simulation (teleport or reset).
type Frame struct {
	Seq        uint64
	Generation uint64
	Time     float64
	State    physics.State
	Input    InputState
	Depth    float64
	Buoyancy float64
}

func (f Frame) Submerged() bool {
	return f.Depth > 0
}

// Body is the diver: one rigid sphere in its own physics world.
type Body struct {
	mu           sync.Mutex
	world        *physics.World
	rigid        *physics.Body
	timestep     float64
	spawn        mgl64.Vec3
	constants    control.Constants
	stateUpdater StateUpdater
	frame        uint64
	generation   uint64
}

func New(opts Options, stateUpdater StateUpdater) *Body {
	rigid := physics.NewBody(physics.BodyOptions{
		Mass:           opts.Mass,
		Radius:         opts.Radius,
		Position:       opts.Spawn,
		LinearDamping:  opts.LinearDamping,
		AngularDamping: opts.AngularDamping,
	})
	w := physics.NewWorld(opts.Gravity)
	w.AddBody(rigid)

	b := &Body{
		world:        w,
		rigid:        rigid,
		timestep:     opts.Timestep,
		spawn:        opts.Spawn,
		constants:    opts.Constants,
		stateUpdater: stateUpdater,
	}
	b.publish(b.snapshotLocked(InputState{}))
	return b
}

// Tick steps the world once, then applies this frame's control and buoyancy
// forces. Those forces act during the next step.
func (b *Body) Tick(input InputState) (Frame, error) {
	if b == nil {
		return Frame{}, ErrNilBody
	}

	b.mu.Lock()
	if err := b.world.Step(b.timestep); err != nil {
		b.mu.Unlock()
		return Frame{}, fmt.Errorf("step world: %w", err)
	}
	control.Update(input, b.rigid, b.constants)
	b.frame++
	frame := b.snapshotLocked(input)
	b.mu.Unlock()

	b.publish(frame)
	return frame, nil
}

func (b *Body) PhysicsState() physics.State {
	if b == nil {
		return physics.State{}
	}
	b.mu.Lock()
	defer b.mu.Unlock()
	return b.rigid.State()
}

func (b *Body) Constants() control.Constants {
	if b == nil {
		return control.Constants{}
	}
	return b.constants
}

func (b *Body) Timestep() float64 {
	if b == nil {
		return 0
	}
	return b.timestep
}

func (b *Body) Radius() float64 {
	if b == nil {
		return 0
	}
	return b.rigid.Radius()
}

// SetLocalPosition teleports the diver and stops it.
func (b *Body) SetLocalPosition(pos mgl64.Vec3) {
	if b == nil {
		return
	}
	b.mu.Lock()
	b.rigid.Teleport(pos)
	b.generation++
	frame := b.snapshotLocked(InputState{})
	b.mu.Unlock()
	b.publish(frame)
}

// Reset returns the diver to its spawn point at rest.
func (b *Body) Reset() {
	if b == nil {
		return
	}
	b.mu.Lock()
	b.rigid.ResetTo(b.spawn)
	b.generation++
	frame := b.snapshotLocked(InputState{})
	b.mu.Unlock()
	b.publish(frame)
}

func (b *Body) snapshotLocked(input InputState) Frame {
	state := b.rigid.State()
	y := state.Position.Y()
	return Frame{
		Seq:        b.frame,
		Generation: b.generation,
		Time:       b.world.Time(),
		State:      state,
		Input:      input,
		Depth:      control.Depth(y, b.constants),
		Buoyancy:   control.BuoyancyMagnitude(y, b.constants),
	}
}

func (b *Body) publish(f Frame) {
	if b.stateUpdater == nil {
		return
	}
	b.stateUpdater.UpdateDiver(world.DiverUpdate{
		Frame:     f.Seq,
		Time:      f.Time,
		Transform: ToTransform(f.State),
		Velocity:  toVec3(f.State.Velocity),
		Input:     f.Input,
		Depth:     f.Depth,
		Buoyancy:  f.Buoyancy,
	})
}

func ToTransform(s physics.State) world.Transform {
	q := s.Orientation
	return world.Transform{
		Position: toVec3(s.Position),
		Rotation: world.Quat{X: q.V.X(), Y: q.V.Y(), Z: q.V.Z(), W: q.W},
	}
}

func toVec3(v mgl64.Vec3) world.Vec3 {
	return world.Vec3{X: v.X(), Y: v.Y(), Z: v.Z()}
}
