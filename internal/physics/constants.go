package physics

import "github.com/go-gl/mathgl/mgl64"

const (
	DefaultTimestep       = 1.0 / 60.0
	DefaultLinearDamping  = 0.01
	DefaultAngularDamping = 0.01

	DiverMass   = 75.0
	DiverRadius = 1.0

	// SphereInertiaFactor is k in I = k·m·r² for a solid sphere.
	SphereInertiaFactor = 2.0 / 5.0
)

var (
	DefaultGravity = mgl64.Vec3{0, -9.82, 0}
	DiverSpawn     = mgl64.Vec3{0, 10, 0}
)
