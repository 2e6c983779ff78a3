package control

import (
	"math"

	"github.com/go-gl/mathgl/mgl64"
)

type Key string

const (
	KeyUp    Key = "up"
	KeyDown  Key = "down"
	KeyLeft  Key = "left"
	KeyRight Key = "right"
)

// Keys lists the recognised directional keys in the order thrust is applied.
var Keys = [...]Key{KeyUp, KeyDown, KeyLeft, KeyRight}

// InputState is a read-only snapshot of which directional keys are held.
type InputState struct {
	Up    bool `json:"up"`
	Down  bool `json:"down"`
	Left  bool `json:"left"`
	Right bool `json:"right"`
}

// Held reports whether key is held. Unknown keys are never held.
func (s InputState) Held(key Key) bool {
	switch key {
	case KeyUp:
		return s.Up
	case KeyDown:
		return s.Down
	case KeyLeft:
		return s.Left
	case KeyRight:
		return s.Right
	default:
		return false
	}
}

// With returns a copy of s with key set to held. Unknown keys leave s unchanged.
func (s InputState) With(key Key, held bool) InputState {
	switch key {
	case KeyUp:
		s.Up = held
	case KeyDown:
		s.Down = held
	case KeyLeft:
		s.Left = held
	case KeyRight:
		s.Right = held
	}
	return s
}

func (s InputState) Any() bool {
	return s.Up || s.Down || s.Left || s.Right
}

type Constants struct {
	WaterSurfaceHeight float64
	FluidDensity       float64
	Radius             float64
	Thrust             float64
}

func DefaultConstants() Constants {
	return Constants{
		WaterSurfaceHeight: 0,
		FluidDensity:       1000,
		Radius:             1,
		Thrust:             50,
	}
}

// Body is the force-application contract of the simulated diver.
type Body interface {
	Position() mgl64.Vec3
	ApplyForce(force, worldPoint mgl64.Vec3)
	ApplyLocalForce(force, localPoint mgl64.Vec3)
}

// Update applies this frame's buoyancy and thrust to body.
func Update(input InputState, body Body, c Constants) {
	ApplyBuoyancy(body, c)
	ApplyThrust(input, body, c)
}

// ApplyBuoyancy pushes body up by ρ·V·depth while its centre is below the
// surface. V is the full sphere volume regardless of how deep the body is.
func ApplyBuoyancy(body Body, c Constants) {
	pos := body.Position()
	depth := Depth(pos.Y(), c)
	if depth <= 0 {
		return
	}
	force := mgl64.Vec3{0, c.FluidDensity * SphereVolume(c.Radius) * depth, 0}
	body.ApplyForce(force, pos)
}

// ApplyThrust applies one local force per held key at the body origin.
// Opposing keys are both applied.
func ApplyThrust(input InputState, body Body, c Constants) {
	for _, key := range Keys {
		if !input.Held(key) {
			continue
		}
		body.ApplyLocalForce(ThrustVector(key, c.Thrust), mgl64.Vec3{})
	}
}

// ThrustVector maps key to its local-frame force: up/down along ∓Z, left/right along ∓X.
func ThrustVector(key Key, magnitude float64) mgl64.Vec3 {
	switch key {
	case KeyUp:
		return mgl64.Vec3{0, 0, -magnitude}
	case KeyDown:
		return mgl64.Vec3{0, 0, magnitude}
	case KeyLeft:
		return mgl64.Vec3{-magnitude, 0, 0}
	case KeyRight:
		return mgl64.Vec3{magnitude, 0, 0}
	default:
		return mgl64.Vec3{}
	}
}

func SphereVolume(radius float64) float64 {
	return 4.0 / 3.0 * math.Pi * radius * radius * radius
}

func Depth(y float64, c Constants) float64 {
	return c.WaterSurfaceHeight - y
}

// BuoyancyMagnitude is the upward force Update would apply at height y.
func BuoyancyMagnitude(y float64, c Constants) float64 {
	depth := Depth(y, c)
	if depth <= 0 {
		return 0
	}
	return c.FluidDensity * SphereVolume(c.Radius) * depth
}
