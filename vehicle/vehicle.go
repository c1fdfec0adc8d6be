// Package vehicle is the fixed-step orchestrator: it owns one chassis
// body, four corners (suspension + tire + wheel hub), one engine, one
// differential, and routes driver inputs through the early/main/late
// phase contract every tick — G→H→F→E→C→B, then aero, then integration.
package vehicle

import (
	"math"

	"github.com/go-gl/mathgl/mgl64"

	"github.com/jtothec67/racecore/raycast"
	"github.com/jtothec67/racecore/vehicle/chassis"
	"github.com/jtothec67/racecore/vehicle/powertrain"
)

// Vehicle is one drivable car: a chassis body, its four corners in the
// fixed FL/FR/RL/RR order, an engine and differential for the driven
// axle, and the aerodynamic loads applied alongside them.
type Vehicle struct {
	Body    *chassis.Body
	Corners [4]*Corner
	Engine  *powertrain.Engine
	Diff    powertrain.Differential
	Aero    AeroParams
	World   raycast.Query
	Events  *Events

	// Gravity is the constant linear acceleration applied to the chassis
	// every tick (m/s^2, world space). NewVehicle sets it to Earth gravity
	// (0, -9.81, 0); a zero value applies no gravity.
	Gravity mgl64.Vec3

	MaxSteerAngle float64 // radians, full-lock steer input maps to this
	NumGears      int

	shiftState    GearShiftState
	pendingInputs Inputs

	faultCount    int
	faultWindow   int // fault-free ticks since the last fault or window reset
	rateThrottled bool

	initial vehicleSnapshot
}

type vehicleSnapshot struct {
	body        chassis.Snapshot
	hubOmega    [4]float64
	engineRPM   float64
	engineGear  int
	engineClutch float64
}

// NewVehicle wires a constructed chassis/corners/engine/differential into
// an orchestrator. Callers normally reach this through
// vehicle/config.VehicleSpec.Build rather than directly.
func NewVehicle(body *chassis.Body, corners [4]*Corner, engine *powertrain.Engine, diff powertrain.Differential, aero AeroParams, world raycast.Query, maxSteerAngle float64, numGears int) *Vehicle {
	v := &Vehicle{
		Body:          body,
		Corners:       corners,
		Engine:        engine,
		Diff:          diff,
		Aero:          aero,
		World:         world,
		Events:        NewEvents(),
		Gravity:       mgl64.Vec3{0, -9.81, 0},
		MaxSteerAngle: maxSteerAngle,
		NumGears:      numGears,
	}
	v.initial = v.snapshot()
	return v
}

func (v *Vehicle) snapshot() vehicleSnapshot {
	s := vehicleSnapshot{
		body:         v.Body.Save(),
		engineRPM:    v.Engine.CurrentRPM,
		engineGear:   v.Engine.CurrentGear,
		engineClutch: v.Engine.Clutch,
	}
	for i, c := range v.Corners {
		s.hubOmega[i] = c.Hub.Omega
	}
	return s
}

// Reset restores the vehicle to the pose and drivetrain state captured at
// construction, the Go equivalent of the original demo's spacebar reset.
func (v *Vehicle) Reset() {
	v.restore(v.initial)
	v.faultCount = 0
	v.faultWindow = 0
	v.rateThrottled = false
	v.shiftState = ShiftIdle
}

func (v *Vehicle) restore(s vehicleSnapshot) {
	v.Body.Restore(s.body)
	v.Engine.CurrentRPM = s.engineRPM
	v.Engine.CurrentGear = s.engineGear
	v.Engine.Clutch = s.engineClutch
	for i, c := range v.Corners {
		c.Hub.Omega = s.hubOmega[i]
	}
}

// numericalFaultLimit rollbacks, with no run of numericalFaultWindow
// fault-free ticks between them, trigger fixed-step rate throttling; a run
// of numericalFaultWindow fault-free ticks clears the count and the
// throttle.
const (
	numericalFaultLimit  = 5
	numericalFaultWindow = 120
)

// Tick advances the vehicle one fixed step, running the early, main, and
// late phases in order with in as this step's driver inputs. It returns
// the dt actually integrated this step: normally dt unchanged, but halved
// once repeated numerical faults have tripped the rate throttle. Callers
// driving the vehicle directly (as opposed to through a session.Loop) can
// use this as the single entry point; it is equivalent to SetInputs
// followed by the three OnXFixedTick hooks.
func (v *Vehicle) Tick(dt float64, in Inputs) float64 {
	v.SetInputs(in)
	v.OnEarlyFixedTick(dt)
	used := v.OnFixedTick(dt)
	v.OnLateFixedTick(dt)
	return used
}

// SetInputs stores the driver inputs that OnFixedTick will consume the
// next time it runs. A session.Loop calls this once per fixed step,
// before OnEarlyFixedTick.
func (v *Vehicle) SetInputs(in Inputs) { v.pendingInputs = in }

// OnEarlyFixedTick runs the early phase: every corner's ray sampling,
// using the inputs most recently passed to SetInputs. Satisfies the
// session package's Tickable contract.
func (v *Vehicle) OnEarlyFixedTick(dt float64) {
	v.earlyPhase(v.pendingInputs)
}

// OnFixedTick runs the main phase and integration, including the
// numerical-rollback guard, and returns the dt actually integrated this
// step. Satisfies the session package's Tickable contract.
func (v *Vehicle) OnFixedTick(dt float64) float64 {
	if v.rateThrottled {
		dt *= 0.5
	}

	pre := v.Body.Save()

	v.mainPhase(dt, v.pendingInputs)
	v.Body.Integrate(dt)

	if !v.Body.IsFinite() {
		v.Body.Restore(pre)
		v.noteFault()
	} else {
		v.faultWindow++
		if v.faultWindow >= numericalFaultWindow {
			v.faultWindow = 0
			v.faultCount = 0
			v.rateThrottled = false
		}
	}

	return dt
}

// OnLateFixedTick clears per-tick flags and flushes the buffered event
// stream. Satisfies the session package's Tickable contract.
func (v *Vehicle) OnLateFixedTick(dt float64) {
	v.latePhase()
}

func (v *Vehicle) noteFault() {
	v.faultCount++
	v.faultWindow = 0
	v.Events.noteNumericalRollback()
	if v.faultCount >= numericalFaultLimit {
		v.rateThrottled = true
	}
}

// earlyPhase runs every corner's ray sampling before any force is applied,
// per the ordering contract: all four suspensions complete EarlyTick
// before main-phase force application begins.
func (v *Vehicle) earlyPhase(in Inputs) {
	steerAngle := in.Steer * v.MaxSteerAngle
	for _, c := range v.Corners {
		if c.Steered {
			c.Suspension.SteeringAngle = steerAngle
		} else {
			c.Suspension.SteeringAngle = 0
		}
	}
	for _, c := range v.Corners {
		c.Suspension.EarlyTick(v.Body, v.World)
	}
}

// mainPhase implements G→H→F→E→C→B for one tick: the engine consumes
// wheel speeds sampled at phase entry (a deliberate one-tick latency),
// torque is split to the driven corners, each hub is integrated against
// its tire's brush-model reaction and that force applied to the body,
// then the corner's own suspension force is applied, then aero.
func (v *Vehicle) mainPhase(dt float64, in Inputs) {
	leftIdx, rightIdx, haveDriveAxle := v.drivenPair()

	wheelRPM := 0.0
	if haveDriveAxle {
		leftOmega := v.Corners[leftIdx].Hub.Omega
		rightOmega := v.Corners[rightIdx].Hub.Omega
		avgOmega := 0.5 * (leftOmega + rightOmega)
		wheelRPM = avgOmega * 60.0 / (2 * math.Pi)
	}
	v.Engine.Update(in.Throttle, wheelRPM, dt)

	gearBefore := v.Engine.CurrentGear
	v.shiftState = noteShiftEdges(in.UpshiftEdge, in.DownshiftEdge)
	v.Engine.CurrentGear = applyShift(v.shiftState, v.Engine.CurrentGear, v.NumGears)
	if v.Engine.CurrentGear != gearBefore {
		v.Events.noteGearShift(v.Engine.CurrentGear)
	}
	v.Events.noteAntiStall(v.Engine.LaunchState == powertrain.Hold && v.Engine.Clutch == 0)

	totalWheelTorque := v.Engine.WheelTorque()

	var driveTorque [4]float64
	if haveDriveAxle {
		tl, tr := v.Diff.Split(totalWheelTorque, v.Corners[leftIdx].Hub.Omega, v.Corners[rightIdx].Hub.Omega)
		driveTorque[leftIdx] = tl
		driveTorque[rightIdx] = tr
	}

	for i, c := range v.Corners {
		susRes := c.Suspension.Evaluate(v.Body)

		var fx, fy, omega, vx, vy, slipAngle float64
		var stickActive bool
		if susRes.Grounded {
			contactVel := v.Body.VelocityAt(susRes.ContactPoint)
			forward, side := contactPlaneBasis(susRes.Forward, susRes.Normal)
			vx = contactVel.Dot(forward)
			vy = contactVel.Dot(side)

			brakeTorque := in.Brake * c.BrakeTorqueMax
			res := c.Hub.Integrate(dt, driveTorque[i], brakeTorque, true, vx, vy, susRes.VerticalLoad, c.Tire)
			fx = res.Fx + c.Tire.RollingResistance(vx, susRes.VerticalLoad)
			fy = res.Fy
			omega = res.Omega
			stickActive = res.StickActive
			slipAngle = c.Tire.SlipAngleTan(vx, vy)

			worldForce := forward.Mul(fx).Add(side.Mul(fy))
			v.Body.AddForceAtPoint(worldForce, susRes.ContactPoint)
		} else {
			res := c.Hub.Integrate(dt, driveTorque[i], in.Brake*c.BrakeTorqueMax, false, 0, 0, 0, c.Tire)
			omega = res.Omega
		}

		v.Body.AddForceAtPoint(susRes.Force, susRes.AnchorPos)

		c.Output = CornerOutput{
			ContactPoint: susRes.ContactPoint,
			Normal:       susRes.Normal,
			Grounded:     susRes.Grounded,
			VerticalLoad: susRes.VerticalLoad,
			Fx:           fx,
			Fy:           fy,
			WheelOmega:   omega,
			SteerAngle:   c.Suspension.SteeringAngle,
			SlipRatio:    c.Tire.SlipRatio(vx, omega),
			SlipAngle:    slipAngle,
			StickActive:  stickActive,
		}

		v.Events.noteGroundContact(i, susRes.Grounded)
		v.Events.noteStick(i, stickActive)
	}

	v.Body.AddForce(v.Gravity.Mul(v.Body.Mass()))
	v.Aero.Apply(v.Body)
}

// latePhase clears per-tick flags last and flushes the buffered events to
// subscribers, so a listener never observes a half-built tick.
func (v *Vehicle) latePhase() {
	v.shiftState = ShiftIdle
	v.Events.Flush()
}

// drivenPair returns the corner indices of the two driven wheels in
// left/right order. Exactly two Driven corners are expected (one axle);
// if that's not the case haveDriveAxle is false and no drive torque is
// routed anywhere.
func (v *Vehicle) drivenPair() (left, right int, ok bool) {
	left, right = -1, -1
	count := 0
	for i, c := range v.Corners {
		if !c.Driven {
			continue
		}
		count++
		if i%2 == 0 {
			left = i
		} else {
			right = i
		}
	}
	return left, right, count == 2 && left >= 0 && right >= 0 && left/2 == right/2
}

// contactPlaneBasis projects a steered chassis-forward vector onto the
// surface plane and derives the lateral direction as normal × forward,
// matching the original demo's per-tire contact-frame construction.
func contactPlaneBasis(forward, normal mgl64.Vec3) (mgl64.Vec3, mgl64.Vec3) {
	n := normal
	if l := n.Len(); l > 1e-9 {
		n = n.Mul(1 / l)
	} else {
		n = mgl64.Vec3{0, 1, 0}
	}
	projForward := forward.Sub(n.Mul(forward.Dot(n)))
	if l := projForward.Len(); l > 1e-9 {
		projForward = projForward.Mul(1 / l)
	} else {
		projForward = mgl64.Vec3{0, 0, 1}
	}
	projSide := n.Cross(projForward)
	return projForward, projSide
}
