package vehicle

import (
	"math"
	"testing"

	"github.com/go-gl/mathgl/mgl64"

	"github.com/jtothec67/racecore/raycast"
	"github.com/jtothec67/racecore/vehicle/chassis"
	"github.com/jtothec67/racecore/vehicle/powertrain"
	"github.com/jtothec67/racecore/vehicle/suspension"
	"github.com/jtothec67/racecore/vehicle/tire"
	"github.com/jtothec67/racecore/vehicle/wheel"
)

func almostEqual(a, b, tol float64) bool {
	return math.Abs(a-b) <= tol
}

// flatGround is a trivial raycast.Query stub: every downward ray hits a
// horizontal plane at the given height; everything else misses.
type flatGround struct {
	height float64
	miss   bool
}

func (f flatGround) Raycast(origin, dirUnit mgl64.Vec3, maxDist float64) (raycast.Hit, bool) {
	if f.miss || dirUnit.Y() >= 0 {
		return raycast.Hit{}, false
	}
	dist := (origin.Y() - f.height) / -dirUnit.Y()
	if dist < 0 || dist > maxDist {
		return raycast.Hit{}, false
	}
	point := origin.Add(dirUnit.Mul(dist))
	return raycast.Hit{Point: point, Normal: mgl64.Vec3{0, 1, 0}, Distance: dist}, true
}

func refSuspensionParams() suspension.Params {
	return suspension.Params{
		RestLength:           0.3,
		RideHeight:           0.25,
		TireRadius:           0.3,
		TireWidth:            0.2,
		Stiffness:            35000,
		BumpStopStiffness:    200000,
		BumpStopRange:        0.02,
		BumpDampLowSpeed:     2000,
		BumpDampHighSpeed:    4000,
		ReboundDampLowSpeed:  2500,
		ReboundDampHighSpeed: 5000,
		DampingThreshold:     0.15,
		AntiRollStiffness:    6000,
	}
}

func refTireParams() tire.Params {
	return tire.Params{
		Radius:                 0.3,
		LongStiffCoeff:         12.0,
		LongStiffExp:           0.9,
		LatStiffCoeff:          11.0,
		LatStiffExp:            0.9,
		LoadRef:                4000,
		MaxContactHalfLengthX:  0.12,
		RefMaxLoad:             6000,
		ContactHalfWidth:       0.09,
		PeakFrictionLong:       1.3,
		PeakFrictionLat:        1.2,
		SlidingFactorLong:      0.7,
		SlidingFactorLat:       0.7,
		SlidingFalloffLong:     1.5,
		SlidingFalloffLat:      1.5,
		RollingResistanceCoeff: 0.015,
	}
}

// testCar assembles a minimal rear-wheel-drive car resting on flat ground
// at ride height, corners in FL, FR, RL, RR order.
func testCar(world raycast.Query) *Vehicle {
	body := chassis.NewBox(mgl64.Vec3{0, 0.55, 0}, mgl64.QuatIdent(), mgl64.Vec3{0.9, 0.4, 2.0}, 300)

	anchors := [4]mgl64.Vec3{
		{-0.8, 0, 1.4},  // FL
		{0.8, 0, 1.4},   // FR
		{-0.8, 0, -1.4}, // RL
		{0.8, 0, -1.4},  // RR
	}
	steered := [4]bool{true, true, false, false}
	driven := [4]bool{false, false, true, true}

	var corners [4]*Corner
	for i := range corners {
		corners[i] = &Corner{
			Suspension:     suspension.NewUnit(refSuspensionParams(), anchors[i]),
			Tire:           refTireParams(),
			Hub:            &wheel.Hub{Inertia: 0.9, ViscousCoeff: 0.02, StaticFrictionCoeff: 1.2},
			Steered:        steered[i],
			Driven:         driven[i],
			BrakeTorqueMax: 1500,
		}
	}
	corners[0].Suspension.Partner = corners[1].Suspension
	corners[1].Suspension.Partner = corners[0].Suspension
	corners[2].Suspension.Partner = corners[3].Suspension
	corners[3].Suspension.Partner = corners[2].Suspension

	engineParams := powertrain.EngineParams{
		IdleRPM:               900,
		MaxRPM:                7000,
		FreeRevRate:           4000,
		DecayRate:             2000,
		BitePointStart:        0.15,
		BitePointEnd:          0.55,
		ThrottleIdleThreshold: 0.05,
		EngineBrakeBaseK:      40,
		DrivetrainEfficiency:  0.92,
		FinalDrive:            3.9,
		GearRatios:            []float64{3.5, 2.3, 1.7, 1.3, 1.0, 0.85},
		TorqueCurve: []powertrain.TorquePoint{
			{RPM: 900, Torque: 150},
			{RPM: 3000, Torque: 280},
			{RPM: 5500, Torque: 310},
			{RPM: 7000, Torque: 180},
		},
		AutoClutchEnabled: true,
	}
	engine := powertrain.NewEngine(engineParams)
	diff := powertrain.Differential{Params: powertrain.DifferentialParams{PreloadTorque: 20, KPower: 0.3, ViscousCoeff: 5}}

	aero := AeroParams{
		AirDensity:                1.225,
		DragCoeff:                 0.9,
		FrontalArea:               1.8,
		ReferenceSpeed:            55.0,
		FrontDownforceAtReference: 400,
		RearDownforceAtReference:  600,
		FrontDownforcePos:         mgl64.Vec3{0, 0.2, 1.2},
		RearDownforcePos:          mgl64.Vec3{0, 0.2, -1.2},
	}

	const maxSteerDeg = 25.0
	return NewVehicle(body, corners, engine, diff, aero, world, maxSteerDeg*math.Pi/180.0, 6)
}

const dt = 1.0 / 240.0

// =============================================================================
// S1 — static rest
// =============================================================================

func TestTick_StaticRestStaysNearInitialHeight(t *testing.T) {
	v := testCar(flatGround{height: 0})

	for i := 0; i < 240*3; i++ {
		v.Tick(dt, Inputs{})
	}

	if !v.Body.IsFinite() {
		t.Fatal("body state went non-finite at rest")
	}
	if math.Abs(v.Body.Velocity.Len()) > 0.5 {
		t.Errorf("chassis velocity = %v, want near zero at rest on flat ground", v.Body.Velocity)
	}
	for i, c := range v.Corners {
		if !c.Output.Grounded {
			t.Errorf("corner %d lost ground contact at rest", i)
		}
	}
}

// =============================================================================
// Quaternion norm invariant
// =============================================================================

func quatNorm(q mgl64.Quat) float64 {
	return math.Sqrt(q.W*q.W + q.V.Dot(q.V))
}

func TestTick_QuaternionStaysNormalized(t *testing.T) {
	v := testCar(flatGround{height: 0})

	for i := 0; i < 240; i++ {
		v.Tick(dt, Inputs{Throttle: 0.6, Steer: 0.3})
		n := quatNorm(v.Body.Rotation)
		if !almostEqual(n, 1.0, 1e-6) {
			t.Fatalf("tick %d: quaternion norm = %v, want 1", i, n)
		}
	}
}

// =============================================================================
// Airborne — no lateral tire force
// =============================================================================

func TestTick_AllWheelsAirborneNoLateralAccel(t *testing.T) {
	v := testCar(flatGround{miss: true})
	v.Body.Position = mgl64.Vec3{0, 50, 0}

	v.Tick(dt, Inputs{Throttle: 1.0, Steer: 1.0})

	if v.Body.Velocity.X() != 0 || v.Body.Velocity.Z() != 0 {
		t.Errorf("airborne velocity = %v, want no lateral/longitudinal component from tires", v.Body.Velocity)
	}
	wantVy := v.Gravity.Y() * dt
	if !almostEqual(v.Body.Velocity.Y(), wantVy, 1e-3) {
		t.Errorf("airborne Vy = %v, want close to gravity*dt = %v", v.Body.Velocity.Y(), wantVy)
	}
}

// =============================================================================
// Longitudinal acceleration under throttle
// =============================================================================

func TestTick_ThrottleAcceleratesCarForward(t *testing.T) {
	v := testCar(flatGround{height: 0})

	for i := 0; i < 240*2; i++ {
		v.Tick(dt, Inputs{Throttle: 1.0})
	}

	forwardSpeed := v.Body.Velocity.Dot(v.Body.Forward())
	if forwardSpeed <= 0 {
		t.Errorf("forward speed = %v, want > 0 after 2s of full throttle", forwardSpeed)
	}
}

// =============================================================================
// Gear shift edge latch
// =============================================================================

func TestTick_UpshiftEdgeAdvancesGearOnce(t *testing.T) {
	v := testCar(flatGround{height: 0})
	startGear := v.Engine.CurrentGear

	v.Tick(dt, Inputs{UpshiftEdge: true})
	if v.Engine.CurrentGear != startGear+1 {
		t.Fatalf("gear after one upshift edge = %v, want %v", v.Engine.CurrentGear, startGear+1)
	}

	// Holding the edge flag across many ticks (simulating a caller that
	// forgot to debounce) still only ever re-applies a single-step shift
	// per tick it's held, so the test instead verifies a single edge
	// produces a single-step change and the shift-state resets after.
	if v.shiftState != ShiftIdle {
		t.Error("shiftState should reset to Idle after latePhase")
	}
}

func TestTick_GearNeverLeavesValidRange(t *testing.T) {
	v := testCar(flatGround{height: 0})
	for i := 0; i < 20; i++ {
		v.Tick(dt, Inputs{UpshiftEdge: true})
	}
	if v.Engine.CurrentGear != v.NumGears {
		t.Errorf("gear = %v, want clamped at NumGears = %v", v.Engine.CurrentGear, v.NumGears)
	}
}

// =============================================================================
// Reset
// =============================================================================

func TestReset_RestoresInitialState(t *testing.T) {
	v := testCar(flatGround{height: 0})
	initialPos := v.Body.Position

	for i := 0; i < 240; i++ {
		v.Tick(dt, Inputs{Throttle: 1.0, Steer: 0.5})
	}
	if v.Body.Position == initialPos {
		t.Fatal("test setup error: car should have moved under throttle+steer")
	}

	v.Reset()

	if v.Body.Position != initialPos {
		t.Errorf("Position after Reset = %v, want %v", v.Body.Position, initialPos)
	}
	if v.Body.Velocity.Len() != 0 {
		t.Errorf("Velocity after Reset = %v, want zero", v.Body.Velocity)
	}
}

// =============================================================================
// Numerical rollback
// =============================================================================

// nanGround reports ground contact everywhere, but at a NaN world point —
// a corrupt-geometry stand-in that forces a non-finite force this tick
// without starting the body itself in a non-finite state.
type nanGround struct{}

func (nanGround) Raycast(origin, dirUnit mgl64.Vec3, maxDist float64) (raycast.Hit, bool) {
	if dirUnit.Y() >= 0 {
		return raycast.Hit{}, false
	}
	return raycast.Hit{
		Point:    mgl64.Vec3{math.NaN(), 0, 0},
		Normal:   mgl64.Vec3{0, 1, 0},
		Distance: maxDist * 0.5,
	}, true
}

func TestTick_NonFiniteStateIsRolledBack(t *testing.T) {
	v := testCar(nanGround{})
	prePos := v.Body.Position

	v.Tick(dt, Inputs{Throttle: 1.0})

	if !v.Body.IsFinite() {
		t.Fatal("vehicle should roll back to a finite state after a corrupt-geometry tick")
	}
	if v.Body.Position != prePos {
		t.Errorf("Position after rollback = %v, want unchanged %v", v.Body.Position, prePos)
	}
}

func TestEvents_GroundContactLostFiresOnTransition(t *testing.T) {
	v := testCar(flatGround{height: 0})
	var lost int
	v.Events.Subscribe(GroundContactLost, func(e Event) { lost++ })

	for i := 0; i < 10; i++ {
		v.Tick(dt, Inputs{})
	}

	v.Body.Position = mgl64.Vec3{0, 500, 0}
	v.Body.Velocity = mgl64.Vec3{}
	v.Tick(dt, Inputs{})

	if lost == 0 {
		t.Error("expected at least one GroundContactLost event after teleporting the chassis into the air")
	}
}
