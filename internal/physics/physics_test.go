package physics

import (
	"errors"
	"math"
	"testing"

	"github.com/go-gl/mathgl/mgl64"
)

func approxEqual(t *testing.T, got, want, tol float64, field string) {
	t.Helper()
	if math.Abs(got-want) > tol {
		t.Fatalf("%s = %.8f, want %.8f (tol=%.8f)", field, got, want, tol)
	}
}

func newDiver() *Body {
	return NewBody(BodyOptions{
		Mass:           DiverMass,
		Radius:         DiverRadius,
		Position:       DiverSpawn,
		LinearDamping:  DefaultLinearDamping,
		AngularDamping: DefaultAngularDamping,
	})
}

func TestWorldStep_FreeFallOneStep(t *testing.T) {
	w := NewWorld(DefaultGravity)
	b := newDiver()
	w.AddBody(b)

	if err := w.Step(DefaultTimestep); err != nil {
		t.Fatalf("Step: %v", err)
	}

	wantVy := -9.82 * DefaultTimestep * math.Pow(1-DefaultLinearDamping, DefaultTimestep)
	approxEqual(t, b.State().Velocity.Y(), wantVy, 1e-12, "velocity.y")
	approxEqual(t, b.Position().Y(), 10+wantVy*DefaultTimestep, 1e-12, "position.y")
	approxEqual(t, b.Position().X(), 0, 0, "position.x")
	approxEqual(t, w.Time(), DefaultTimestep, 1e-15, "time")
	if w.Steps() != 1 {
		t.Fatalf("steps = %d, want 1", w.Steps())
	}
}

func TestWorldStep_ClearsAccumulatedForces(t *testing.T) {
	w := NewWorld(mgl64.Vec3{})
	b := newDiver()
	w.AddBody(b)

	b.ApplyForce(mgl64.Vec3{75, 0, 0}, b.Position())
	if b.Force().X() != 75 {
		t.Fatalf("force.x = %.3f before step, want 75", b.Force().X())
	}
	if err := w.Step(1); err != nil {
		t.Fatalf("Step: %v", err)
	}
	if b.Force().Len() != 0 || b.Torque().Len() != 0 {
		t.Fatalf("accumulators not cleared: force=%v torque=%v", b.Force(), b.Torque())
	}

	vx := b.State().Velocity.X()
	if err := w.Step(1); err != nil {
		t.Fatalf("Step: %v", err)
	}
	if b.State().Velocity.X() > vx {
		t.Fatalf("velocity.x grew without force: %.6f -> %.6f", vx, b.State().Velocity.X())
	}
}

func TestWorldStep_RejectsInvalidTimestep(t *testing.T) {
	w := NewWorld(DefaultGravity)
	for _, dt := range []float64{0, -DefaultTimestep, math.NaN(), math.Inf(1)} {
		err := w.Step(dt)
		if !errors.Is(err, ErrInvalidTimestep) {
			t.Fatalf("Step(%v) error = %v, want ErrInvalidTimestep", dt, err)
		}
	}
	if w.Steps() != 0 {
		t.Fatalf("steps = %d after rejected steps, want 0", w.Steps())
	}
}

func TestWorldStep_StaticBodyDoesNotMove(t *testing.T) {
	w := NewWorld(DefaultGravity)
	b := NewBody(BodyOptions{Radius: 1, Position: mgl64.Vec3{1, 2, 3}})
	w.AddBody(b)

	b.ApplyForce(mgl64.Vec3{0, 1000, 0}, b.Position())
	for i := 0; i < 10; i++ {
		if err := w.Step(DefaultTimestep); err != nil {
			t.Fatalf("Step: %v", err)
		}
	}
	if b.Position() != (mgl64.Vec3{1, 2, 3}) {
		t.Fatalf("static body moved to %v", b.Position())
	}
	if !b.IsStatic() {
		t.Fatalf("IsStatic = false, want true")
	}
}

func TestApplyForce_AtCentreProducesNoTorque(t *testing.T) {
	b := newDiver()
	b.ApplyForce(mgl64.Vec3{0, 500, 0}, b.Position())
	if b.Torque().Len() != 0 {
		t.Fatalf("torque = %v, want zero", b.Torque())
	}
	approxEqual(t, b.Force().Y(), 500, 0, "force.y")
}

func TestApplyForce_OffsetProducesTorque(t *testing.T) {
	b := newDiver()
	b.ApplyForce(mgl64.Vec3{0, 10, 0}, b.Position().Add(mgl64.Vec3{1, 0, 0}))
	// r=(1,0,0), F=(0,10,0) → τ=(0,0,10)
	approxEqual(t, b.Torque().Z(), 10, 1e-12, "torque.z")
}

func TestApplyLocalForce_IdentityOrientation(t *testing.T) {
	b := newDiver()
	b.ApplyLocalForce(mgl64.Vec3{0, 0, -50}, mgl64.Vec3{})
	if b.Force() != (mgl64.Vec3{0, 0, -50}) {
		t.Fatalf("force = %v, want (0,0,-50)", b.Force())
	}
	if b.Torque().Len() != 0 {
		t.Fatalf("torque = %v, want zero", b.Torque())
	}
}

func TestApplyLocalForce_RotatedOrientation(t *testing.T) {
	b := newDiver()
	b.state.Orientation = mgl64.QuatRotate(math.Pi/2, mgl64.Vec3{0, 1, 0})

	b.ApplyLocalForce(mgl64.Vec3{0, 0, -50}, mgl64.Vec3{})

	approxEqual(t, b.Force().X(), -50, 1e-9, "force.x")
	approxEqual(t, b.Force().Y(), 0, 1e-9, "force.y")
	approxEqual(t, b.Force().Z(), 0, 1e-9, "force.z")
	if b.Torque().Len() > 1e-9 {
		t.Fatalf("torque = %v, want zero at local origin", b.Torque())
	}
}

func TestWorldStep_SpinKeepsOrientationNormalised(t *testing.T) {
	w := NewWorld(mgl64.Vec3{})
	b := newDiver()
	w.AddBody(b)
	b.state.AngularVelocity = mgl64.Vec3{0, 3, 0}

	for i := 0; i < 600; i++ {
		if err := w.Step(DefaultTimestep); err != nil {
			t.Fatalf("Step: %v", err)
		}
	}
	approxEqual(t, b.State().Orientation.Len(), 1, 1e-9, "|q|")
	if b.State().Orientation.ApproxEqual(mgl64.QuatIdent()) {
		t.Fatalf("orientation did not change under spin")
	}
}

func TestTeleport_ZeroesMotion(t *testing.T) {
	b := newDiver()
	b.state.Velocity = mgl64.Vec3{1, 2, 3}
	b.ApplyForce(mgl64.Vec3{0, 1, 0}, b.Position())

	b.Teleport(mgl64.Vec3{5, -1, 5})

	if b.Position() != (mgl64.Vec3{5, -1, 5}) {
		t.Fatalf("position = %v, want (5,-1,5)", b.Position())
	}
	if b.State().Velocity.Len() != 0 || b.Force().Len() != 0 {
		t.Fatalf("teleport left velocity=%v force=%v", b.State().Velocity, b.Force())
	}
}

func TestNewBody_ClampsDamping(t *testing.T) {
	b := NewBody(BodyOptions{Mass: 1, Radius: 1, LinearDamping: 2, AngularDamping: -1})
	approxEqual(t, b.linearDamping, 1, 0, "linearDamping")
	approxEqual(t, b.angularDamping, 0, 0, "angularDamping")
}
