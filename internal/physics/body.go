package physics

import (
	"math"

	"github.com/go-gl/mathgl/mgl64"
)

type State struct {
	Position        mgl64.Vec3
	Velocity        mgl64.Vec3
	Orientation     mgl64.Quat
	AngularVelocity mgl64.Vec3
}

type BodyOptions struct {
	Mass           float64
	Radius         float64
	Position       mgl64.Vec3
	LinearDamping  float64
	AngularDamping float64
}

// Body is a rigid sphere. A zero mass makes it static.
type Body struct {
	state State

	mass           float64
	invMass        float64
	radius         float64
	invInertia     float64
	linearDamping  float64
	angularDamping float64

	force  mgl64.Vec3
	torque mgl64.Vec3
}

func NewBody(opts BodyOptions) *Body {
	b := &Body{
		state: State{
			Position:    opts.Position,
			Orientation: mgl64.QuatIdent(),
		},
		mass:           opts.Mass,
		radius:         opts.Radius,
		linearDamping:  clampDamping(opts.LinearDamping),
		angularDamping: clampDamping(opts.AngularDamping),
	}
	if opts.Mass > 0 {
		b.invMass = 1 / opts.Mass
		if inertia := SphereInertiaFactor * opts.Mass * opts.Radius * opts.Radius; inertia > 0 {
			b.invInertia = 1 / inertia
		}
	}
	return b
}

func (b *Body) Position() mgl64.Vec3 { return b.state.Position }
func (b *Body) State() State         { return b.state }
func (b *Body) Mass() float64        { return b.mass }
func (b *Body) Radius() float64      { return b.radius }
func (b *Body) IsStatic() bool       { return b.invMass == 0 }

// Force and Torque return what has been accumulated since the last step.
func (b *Body) Force() mgl64.Vec3  { return b.force }
func (b *Body) Torque() mgl64.Vec3 { return b.torque }

// ApplyForce accumulates force acting at worldPoint. A point away from the
// centre of mass also produces torque.
func (b *Body) ApplyForce(force, worldPoint mgl64.Vec3) {
	b.force = b.force.Add(force)
	r := worldPoint.Sub(b.state.Position)
	b.torque = b.torque.Add(r.Cross(force))
}

// ApplyLocalForce accumulates a force given in the body frame, acting at a
// point given in the body frame.
func (b *Body) ApplyLocalForce(localForce, localPoint mgl64.Vec3) {
	q := b.state.Orientation
	force := q.Rotate(localForce)
	r := q.Rotate(localPoint)
	b.force = b.force.Add(force)
	b.torque = b.torque.Add(r.Cross(force))
}

// Teleport moves the body and zeroes its motion and pending forces.
func (b *Body) Teleport(pos mgl64.Vec3) {
	b.state = State{
		Position:    pos,
		Orientation: b.state.Orientation,
	}
	b.clearForces()
}

// ResetTo places the body at pos with identity orientation and no motion.
func (b *Body) ResetTo(pos mgl64.Vec3) {
	b.state = State{
		Position:    pos,
		Orientation: mgl64.QuatIdent(),
	}
	b.clearForces()
}

func (b *Body) integrate(gravity mgl64.Vec3, dt float64) {
	if b.IsStatic() {
		b.clearForces()
		return
	}

	force := b.force.Add(gravity.Mul(b.mass))
	s := &b.state

	s.Velocity = s.Velocity.Add(force.Mul(b.invMass * dt))
	s.AngularVelocity = s.AngularVelocity.Add(b.torque.Mul(b.invInertia * dt))

	s.Velocity = s.Velocity.Mul(math.Pow(1-b.linearDamping, dt))
	s.AngularVelocity = s.AngularVelocity.Mul(math.Pow(1-b.angularDamping, dt))

	s.Position = s.Position.Add(s.Velocity.Mul(dt))
	s.Orientation = integrateOrientation(s.Orientation, s.AngularVelocity, dt)

	b.clearForces()
}

func (b *Body) clearForces() {
	b.force = mgl64.Vec3{}
	b.torque = mgl64.Vec3{}
}

// integrateOrientation advances q by dq/dt = ½·ω·q.
func integrateOrientation(q mgl64.Quat, omega mgl64.Vec3, dt float64) mgl64.Quat {
	if omega.Len() == 0 {
		return q
	}
	spin := mgl64.Quat{W: 0, V: omega}.Mul(q).Scale(0.5 * dt)
	return q.Add(spin).Normalize()
}

func clampDamping(d float64) float64 {
	if d < 0 {
		return 0
	}
	if d > 1 {
		return 1
	}
	return d
}
