// Package suspension implements a single ray-cast spring/damper corner and
// the anti-roll coupling between left/right partners on an axle.
package suspension

import (
	"math"

	"github.com/go-gl/mathgl/mgl64"
	"github.com/jtothec67/racecore/raycast"
	"github.com/jtothec67/racecore/vehicle/chassis"
)

// Params are the tunable ride parameters of one corner.
type Params struct {
	RestLength float64 // L0, meters
	RideHeight float64 // h_r, target ride height used to derive the rest displacement
	TireRadius float64 // r_t
	TireWidth  float64 // w_t

	Stiffness float64 // k, N/m

	BumpStopStiffness float64 // k_bs
	BumpStopRange     float64 // Δ_bs, meters of remaining travel before the stop engages

	BumpDampLowSpeed    float64
	BumpDampHighSpeed   float64
	ReboundDampLowSpeed float64
	ReboundDampHighSpeed float64
	DampingThreshold    float64 // v_t, m/s

	AntiRollStiffness float64 // k_arb, N/m of cross-axle displacement difference
}

// Valid reports whether the parameter set is usable. A non-positive
// stiffness or a non-positive rest length are the conditions the unit
// treats as "not configured" and self-disables on, matching the teacher's
// construction-time sanity check.
func (p Params) Valid() bool {
	return p.Stiffness > 0 && p.RestLength > 0
}

// Unit is one ray-cast suspension corner: center + 4 offset corner rays
// sampled every early tick, a spring/bump-stop/damper force law applied
// every main tick, and an anti-roll coupling to an optional partner unit
// on the same axle.
type Unit struct {
	Params Params

	// AnchorOffset is this corner's mount point in the chassis' local
	// frame, relative to the body's center of mass.
	AnchorOffset mgl64.Vec3

	// SteeringAngle is the corner's steer angle in radians about the
	// anchor's up axis, set by the owning vehicle before EarlyTick runs.
	SteeringAngle float64

	// Partner is the opposite-side unit on the same axle, wired by the
	// owning vehicle. Reading Partner.Displacement() is only valid after
	// both units have completed EarlyTick for the current tick.
	Partner *Unit

	disabled   bool
	warnedOnce bool

	groundContact bool
	currentLength float64
	displacement  float64
	contactPoint  mgl64.Vec3
	surfaceNormal mgl64.Vec3

	anchorPos     mgl64.Vec3
	anchorUp      mgl64.Vec3
	anchorForward mgl64.Vec3
	anchorRight   mgl64.Vec3

	lastForce float64
}

// NewUnit constructs a suspension corner. If params is unconfigured
// (Params.Valid() == false) the unit is disabled from construction and
// contributes no force for the remainder of its lifetime;
// ConsumeSelfDisableWarning reports that condition once.
func NewUnit(params Params, anchorOffset mgl64.Vec3) *Unit {
	u := &Unit{Params: params, AnchorOffset: anchorOffset}
	if !params.Valid() {
		u.disabled = true
	}
	return u
}

// Disabled reports whether the unit has self-disabled due to missing ride
// parameters.
func (u *Unit) Disabled() bool { return u.disabled }

// ConsumeSelfDisableWarning returns true exactly once, the first time it is
// called on a disabled unit, so a caller can log the condition without
// spamming every tick.
func (u *Unit) ConsumeSelfDisableWarning() bool {
	if !u.disabled || u.warnedOnce {
		return false
	}
	u.warnedOnce = true
	return true
}

// Displacement returns the most recent tick's spring displacement Δ
// (positive means compressed relative to ride height).
func (u *Unit) Displacement() float64 { return u.displacement }

// GroundContact reports whether any of the 5 sampling rays found ground
// this tick.
func (u *Unit) GroundContact() bool { return u.groundContact }

// CurrentLength returns the mean ray-cast suspension length L for this
// tick.
func (u *Unit) CurrentLength() float64 { return u.currentLength }

var cornerOffsets = [5]struct{ latSign, lonSign float64 }{
	{0, 0},
	{1, 1},
	{1, -1},
	{-1, 1},
	{-1, -1},
}

// EarlyTick casts the 5 sampling rays and updates the unit's ground-contact
// state, current length, and displacement. body supplies the anchor's
// world pose; world answers the ray queries.
func (u *Unit) EarlyTick(body *chassis.Body, world raycast.Query) {
	if u.disabled {
		return
	}

	u.anchorPos = body.Position.Add(body.Rotation.Rotate(u.AnchorOffset))
	up := body.Up()
	forward := body.Forward()
	right := body.Right()

	if !finite3(up) || up.Len() < 1e-9 {
		// Degenerate axis: hold the previous frame's length/displacement
		// and keep the contact flag false.
		u.groundContact = false
		return
	}
	u.anchorUp = up.Normalize()

	steer := mgl64.QuatRotate(u.SteeringAngle, u.anchorUp)
	u.anchorForward = steer.Rotate(forward)
	u.anchorRight = steer.Rotate(right)

	rayLength := u.Params.RestLength + u.Params.TireRadius
	latOffset := 0.4 * u.Params.TireWidth
	lonOffset := 0.3 * u.Params.TireRadius

	var sumPoints, sumNormals mgl64.Vec3
	var sumLengths float64
	hits := 0

	for _, off := range cornerOffsets {
		origin := u.anchorPos.
			Add(u.anchorRight.Mul(off.latSign * latOffset)).
			Add(u.anchorForward.Mul(off.lonSign * lonOffset))
		hit, ok := world.Raycast(origin, u.anchorUp.Mul(-1), rayLength)
		if !ok {
			continue
		}
		hits++
		sumPoints = sumPoints.Add(hit.Point)
		sumNormals = sumNormals.Add(hit.Normal)
		sumLengths += hit.Distance - u.Params.TireRadius
	}

	if hits > 0 {
		u.groundContact = true
		inv := 1.0 / float64(hits)
		u.contactPoint = sumPoints.Mul(inv)
		n := sumNormals.Mul(inv)
		if l := n.Len(); l > 1e-12 {
			u.surfaceNormal = n.Mul(1.0 / l)
		} else {
			u.surfaceNormal = u.anchorUp
		}
		u.currentLength = sumLengths * inv
	} else {
		u.groundContact = false
		u.currentLength = u.Params.RestLength
	}

	target := clamp(u.Params.RideHeight+u.Params.TireRadius, 0, u.Params.RestLength)
	u.displacement = target - u.currentLength
}

// Result is one tick's spring/bump-stop/damper/anti-roll force law output.
// It is deliberately not applied to the body by Evaluate: the orchestrator
// must apply the tire's contact force before this corner's suspension
// force, so the force vector and application point are handed back instead.
type Result struct {
	Force        mgl64.Vec3 // to be applied at AnchorPos via body.AddForceAtPoint
	AnchorPos    mgl64.Vec3
	VerticalLoad float64 // tire F_z input, clamped to be non-negative
	ContactPoint mgl64.Vec3
	Normal       mgl64.Vec3
	Forward      mgl64.Vec3 // steered chassis-forward at this anchor, unprojected
	Grounded     bool
}

// Evaluate computes the spring/bump-stop/damper/anti-roll force law for
// this tick without applying it to body. When the corner is airborne or
// disabled the zero Result is returned: Grounded is false, the vertical
// load is zero and Force is the zero vector.
func (u *Unit) Evaluate(body *chassis.Body) Result {
	if u.disabled || !u.groundContact {
		u.lastForce = 0
		return Result{}
	}

	springForce := 0.0
	if u.currentLength >= 0 && u.currentLength <= u.Params.RestLength {
		springForce = math.Max(0, u.Params.Stiffness*u.displacement)
	}

	if u.currentLength < u.Params.BumpStopRange {
		compression := u.Params.BumpStopRange - u.currentLength
		springForce += u.Params.BumpStopStiffness * compression
	}
	if u.currentLength > u.Params.RestLength {
		overrun := u.currentLength - u.Params.RestLength
		if overrun < u.Params.BumpStopRange {
			springForce += u.Params.BumpStopStiffness * (u.Params.BumpStopRange - overrun)
		}
	}

	suspensionDir := u.anchorUp.Mul(-1)
	pointVel := body.VelocityAt(u.anchorPos)
	relVel := pointVel.Dot(suspensionDir)

	isRebound := relVel < 0
	isHighSpeed := math.Abs(relVel) > u.Params.DampingThreshold
	var dampCoef float64
	switch {
	case isRebound && isHighSpeed:
		dampCoef = u.Params.ReboundDampHighSpeed
	case isRebound && !isHighSpeed:
		dampCoef = u.Params.ReboundDampLowSpeed
	case !isRebound && isHighSpeed:
		dampCoef = u.Params.BumpDampHighSpeed
	default:
		dampCoef = u.Params.BumpDampLowSpeed
	}
	dampingForce := -dampCoef * relVel

	total := springForce - dampingForce

	if u.Partner != nil && !u.Partner.disabled {
		total += u.Params.AntiRollStiffness * (u.displacement - u.Partner.displacement)
	}

	force := suspensionDir.Mul(-total)
	u.lastForce = total

	return Result{
		Force:        force,
		AnchorPos:    u.anchorPos,
		VerticalLoad: math.Max(0, total),
		ContactPoint: u.contactPoint,
		Normal:       u.surfaceNormal,
		Forward:      u.anchorForward,
		Grounded:     true,
	}
}

// WheelPose returns the visual wheel position and orientation implied by
// this tick's suspension state: anchor offset along -up by max(L, r_t),
// rotated by the steering yaw.
func (u *Unit) WheelPose(body *chassis.Body) (mgl64.Vec3, mgl64.Quat) {
	wheelDist := math.Max(u.currentLength, u.Params.TireRadius)
	pos := u.anchorPos.Add(u.anchorUp.Mul(-wheelDist))
	yaw := mgl64.QuatRotate(u.SteeringAngle, mgl64.Vec3{0, 1, 0})
	rot := body.Rotation.Mul(yaw)
	return pos, rot
}

func clamp(v, lo, hi float64) float64 {
	if v < lo {
		return lo
	}
	if v > hi {
		return hi
	}
	return v
}

func finite3(v mgl64.Vec3) bool {
	for _, c := range []float64{v.X(), v.Y(), v.Z()} {
		if math.IsNaN(c) || math.IsInf(c, 0) {
			return false
		}
	}
	return true
}
