// Package chassis implements the rigid body at the center of the vehicle
// core: semi-implicit Euler integration with a quaternion orientation
// update, force/torque accumulators cleared in a fixed order every tick.
package chassis

import (
	"math"

	"github.com/go-gl/mathgl/mgl64"
)

// Body is a single free rigid body, integrated once per fixed tick by its
// owning vehicle.Vehicle. Unlike a general-purpose physics body it carries
// no collision shape or sleep state: the chassis never rests, and ground
// contact is entirely the suspension/tire modules' concern.
type Body struct {
	Position mgl64.Vec3
	Rotation mgl64.Quat

	Velocity        mgl64.Vec3 // m/s, world space
	AngularVelocity mgl64.Vec3 // rad/s, world space

	mass           float64
	inertiaLocal   mgl64.Mat3
	invInertiaLoc  mgl64.Mat3
	invMass        float64

	accForce  mgl64.Vec3
	accTorque mgl64.Vec3
}

// NewBox builds a chassis Body with a box-shaped mass distribution: mass is
// density times the box volume, and the inertia tensor is the standard
// rectangular-prism formula about the center of mass.
func NewBox(position mgl64.Vec3, rotation mgl64.Quat, halfExtents mgl64.Vec3, density float64) *Body {
	volume := 8.0 * halfExtents.X() * halfExtents.Y() * halfExtents.Z()
	mass := density * volume

	x := halfExtents.X() * 2
	y := halfExtents.Y() * 2
	z := halfExtents.Z() * 2
	factor := mass / 12.0
	inertia := mgl64.Mat3{
		factor * (y*y + z*z), 0, 0,
		0, factor * (x*x + z*z), 0,
		0, 0, factor * (x*x + y*y),
	}

	b := &Body{
		Position:     position,
		Rotation:     rotation,
		mass:         mass,
		inertiaLocal: inertia,
	}
	if mass > 0 {
		b.invMass = 1.0 / mass
		b.invInertiaLoc = inertia.Inv()
	}
	return b
}

// Mass returns the body's mass in kg.
func (b *Body) Mass() float64 { return b.mass }

// AddForce accumulates a force applied through the center of mass, in N.
func (b *Body) AddForce(force mgl64.Vec3) {
	b.accForce = b.accForce.Add(force)
}

// AddForceAtPoint accumulates a force applied at a world-space point,
// splitting it into the equivalent center-of-mass force plus the induced
// torque τ += (p_world − p) × F.
func (b *Body) AddForceAtPoint(force mgl64.Vec3, pointWorld mgl64.Vec3) {
	b.accForce = b.accForce.Add(force)
	arm := pointWorld.Sub(b.Position)
	b.accTorque = b.accTorque.Add(arm.Cross(force))
}

// AddTorque accumulates a pure torque, in N·m.
func (b *Body) AddTorque(torque mgl64.Vec3) {
	b.accTorque = b.accTorque.Add(torque)
}

// VelocityAt returns the world-space velocity of the material point of the
// body currently located at pointWorld: v + ω × (p_world − p).
func (b *Body) VelocityAt(pointWorld mgl64.Vec3) mgl64.Vec3 {
	arm := pointWorld.Sub(b.Position)
	return b.Velocity.Add(b.AngularVelocity.Cross(arm))
}

// InverseInertiaWorld returns R · I_local⁻¹ · Rᵀ, the inverse inertia tensor
// rotated into world space.
func (b *Body) InverseInertiaWorld() mgl64.Mat3 {
	r := b.Rotation.Mat4().Mat3()
	return r.Mul3(b.invInertiaLoc).Mul3(r.Transpose())
}

// Integrate advances the body one fixed tick using semi-implicit Euler for
// linear motion and an explicit Euler solve of I ω̇ = τ − ω × (Iω) for
// angular motion, followed by a normalized quaternion update. It then
// clears the force and torque accumulators.
//
// The caller is responsible for accumulating every force and torque for
// the tick, in a fixed order, before calling Integrate: this body performs
// no sub-stepping of its own, and all stiff contact terms must already
// have been resolved by the suspension/tire/wheel modules.
func (b *Body) Integrate(dt float64) {
	if dt <= 0 {
		return
	}
	if b.mass <= 0 {
		b.accForce = mgl64.Vec3{}
		b.accTorque = mgl64.Vec3{}
		return
	}

	b.Velocity = b.Velocity.Add(b.accForce.Mul(b.invMass * dt))
	b.Position = b.Position.Add(b.Velocity.Mul(dt))

	iWorld := b.inertiaWorld()
	gyroscopic := b.AngularVelocity.Cross(iWorld.Mul3x1(b.AngularVelocity))
	angAccel := b.InverseInertiaWorld().Mul3x1(b.accTorque.Sub(gyroscopic))
	b.AngularVelocity = b.AngularVelocity.Add(angAccel.Mul(dt))

	omega := mgl64.Quat{V: b.AngularVelocity, W: 0}
	qDot := omega.Mul(b.Rotation).Scale(0.5)
	b.Rotation = quatAdd(b.Rotation, qDot.Scale(dt)).Normalize()

	b.accForce = mgl64.Vec3{}
	b.accTorque = mgl64.Vec3{}
}

func (b *Body) inertiaWorld() mgl64.Mat3 {
	r := b.Rotation.Mat4().Mat3()
	return r.Mul3(b.inertiaLocal).Mul3(r.Transpose())
}

func quatAdd(a, c mgl64.Quat) mgl64.Quat {
	return mgl64.Quat{
		W: a.W + c.W,
		V: a.V.Add(c.V),
	}
}

// Forward returns the body's local +Z axis rotated into world space.
func (b *Body) Forward() mgl64.Vec3 { return b.Rotation.Rotate(mgl64.Vec3{0, 0, 1}) }

// Right returns the body's local +X axis rotated into world space.
func (b *Body) Right() mgl64.Vec3 { return b.Rotation.Rotate(mgl64.Vec3{1, 0, 0}) }

// Up returns the body's local +Y axis rotated into world space.
func (b *Body) Up() mgl64.Vec3 { return b.Rotation.Rotate(mgl64.Vec3{0, 1, 0}) }

// IsFinite reports whether the body's pose and velocities are all finite.
// Used by the vehicle orchestrator's numerical-rollback error path.
func (b *Body) IsFinite() bool {
	vs := []float64{
		b.Position.X(), b.Position.Y(), b.Position.Z(),
		b.Rotation.W, b.Rotation.V.X(), b.Rotation.V.Y(), b.Rotation.V.Z(),
		b.Velocity.X(), b.Velocity.Y(), b.Velocity.Z(),
		b.AngularVelocity.X(), b.AngularVelocity.Y(), b.AngularVelocity.Z(),
	}
	for _, v := range vs {
		if math.IsNaN(v) || math.IsInf(v, 0) {
			return false
		}
	}
	return true
}

// Snapshot captures the pose and velocity state needed to roll a tick back.
type Snapshot struct {
	Position        mgl64.Vec3
	Rotation        mgl64.Quat
	Velocity        mgl64.Vec3
	AngularVelocity mgl64.Vec3
}

// Save captures the current state for a possible rollback.
func (b *Body) Save() Snapshot {
	return Snapshot{
		Position:        b.Position,
		Rotation:        b.Rotation,
		Velocity:        b.Velocity,
		AngularVelocity: b.AngularVelocity,
	}
}

// Restore reverts the body to a previously saved state and clears any
// accumulated forces from the rolled-back tick.
func (b *Body) Restore(s Snapshot) {
	b.Position = s.Position
	b.Rotation = s.Rotation
	b.Velocity = s.Velocity
	b.AngularVelocity = s.AngularVelocity
	b.accForce = mgl64.Vec3{}
	b.accTorque = mgl64.Vec3{}
}
