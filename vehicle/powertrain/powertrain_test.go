package powertrain

import (
	"math"
	"testing"
)

func almostEqual(a, b, tol float64) bool {
	return math.Abs(a-b) <= tol
}

func refEngineParams() EngineParams {
	return EngineParams{
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
		TorqueCurve: []TorquePoint{
			{RPM: 900, Torque: 150},
			{RPM: 3000, Torque: 280},
			{RPM: 5500, Torque: 310},
			{RPM: 7000, Torque: 180},
		},
	}
}

const dt = 1.0 / 240.0

// =============================================================================
// NewEngine Tests
// =============================================================================

func TestNewEngine_StartsAtIdleInFirstGear(t *testing.T) {
	e := NewEngine(refEngineParams())
	if e.CurrentGear != 1 {
		t.Errorf("CurrentGear = %v, want 1", e.CurrentGear)
	}
	if e.CurrentRPM != e.Params.IdleRPM {
		t.Errorf("CurrentRPM = %v, want idle %v", e.CurrentRPM, e.Params.IdleRPM)
	}
}

// =============================================================================
// sampleTorqueCurve Tests
// =============================================================================

func TestSampleTorqueCurve(t *testing.T) {
	e := NewEngine(refEngineParams())

	tests := []struct {
		name string
		rpm  float64
		want float64
	}{
		{"below first sample saturates", 500, 150},
		{"above last sample saturates", 8000, 180},
		{"exact sample", 3000, 280},
		{"midpoint interpolates", 4250, (280 + 310) / 2.0},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			e.CurrentRPM = tt.rpm
			got := e.sampleTorqueCurve()
			if !almostEqual(got, tt.want, 1e-6) {
				t.Errorf("sampleTorqueCurve() at %v RPM = %v, want %v", tt.rpm, got, tt.want)
			}
		})
	}
}

// =============================================================================
// Update Tests
// =============================================================================

func TestUpdate_FullThrottleClutchOpenFreeRevsUp(t *testing.T) {
	e := NewEngine(refEngineParams())
	e.Clutch = 0

	for i := 0; i < 60; i++ {
		e.Update(1.0, 0, dt)
	}

	if e.CurrentRPM <= e.Params.IdleRPM {
		t.Errorf("CurrentRPM = %v, want it to have risen above idle under full throttle", e.CurrentRPM)
	}
}

func TestUpdate_OffThrottleClutchOpenDecaysToIdle(t *testing.T) {
	e := NewEngine(refEngineParams())
	e.Clutch = 0
	e.CurrentRPM = 5000

	for i := 0; i < 2400; i++ {
		e.Update(0, 0, dt)
	}

	if !almostEqual(e.CurrentRPM, e.Params.IdleRPM, 1.0) {
		t.Errorf("CurrentRPM = %v, want it to settle at idle %v", e.CurrentRPM, e.Params.IdleRPM)
	}
}

func TestUpdate_RPMNeverLeavesIdleToMaxRange(t *testing.T) {
	e := NewEngine(refEngineParams())
	for i := 0; i < 1000; i++ {
		e.Update(1.0, 3000, dt)
		if e.CurrentRPM < e.Params.IdleRPM || e.CurrentRPM > e.Params.MaxRPM {
			t.Fatalf("CurrentRPM = %v out of range [%v, %v] at tick %d", e.CurrentRPM, e.Params.IdleRPM, e.Params.MaxRPM, i)
		}
	}
}

// =============================================================================
// Auto-clutch state machine Tests
// =============================================================================

func TestAutoClutch_LaunchSequenceProgressesThroughStates(t *testing.T) {
	p := refEngineParams()
	p.AutoClutchEnabled = true
	e := NewEngine(p)

	if e.LaunchState != PreLaunch {
		t.Fatalf("initial LaunchState = %v, want PreLaunch", e.LaunchState)
	}

	// Press throttle: should move to Hold.
	e.Update(1.0, 0, dt)
	if e.LaunchState != Hold {
		t.Fatalf("LaunchState after throttle press = %v, want Hold", e.LaunchState)
	}

	// Spin the engine up with sustained throttle until wheel-imposed RPM
	// would cross the release threshold.
	for i := 0; i < 600 && e.LaunchState == Hold; i++ {
		e.Update(1.0, 900, dt)
	}
	if e.LaunchState != Release {
		t.Errorf("LaunchState after sustained throttle = %v, want Release", e.LaunchState)
	}
}

func TestAutoClutch_AntiStallOpensClutchAtLowRPM(t *testing.T) {
	p := refEngineParams()
	p.AutoClutchEnabled = true
	e := NewEngine(p)
	e.CurrentRPM = p.IdleRPM
	e.Clutch = 1.0

	e.Update(0, 0, dt)

	if e.Clutch != 0 {
		t.Errorf("Clutch = %v, want 0 when anti-stall engages", e.Clutch)
	}
}

// =============================================================================
// WheelTorque Tests
// =============================================================================

func TestWheelTorque_ZeroThrottleProducesNoPositiveDriveTorque(t *testing.T) {
	e := NewEngine(refEngineParams())
	e.Throttle = 0
	e.Clutch = 1.0
	e.CurrentRPM = 3000

	got := e.WheelTorque()
	if got > 0 {
		t.Errorf("WheelTorque() = %v, want <= 0 at zero throttle (engine braking only)", got)
	}
}

func TestWheelTorque_RedlineCutsTorqueToZero(t *testing.T) {
	e := NewEngine(refEngineParams())
	e.Throttle = 1.0
	e.Clutch = 1.0
	e.CurrentRPM = e.Params.MaxRPM

	got := e.WheelTorque()
	if got != 0 {
		t.Errorf("WheelTorque() at redline = %v, want 0", got)
	}
}

func TestWheelTorque_ClutchOpenProducesNoTorque(t *testing.T) {
	e := NewEngine(refEngineParams())
	e.Throttle = 1.0
	e.Clutch = 0.0
	e.CurrentRPM = 4000

	got := e.WheelTorque()
	if got != 0 {
		t.Errorf("WheelTorque() with clutch fully open = %v, want 0", got)
	}
}

func TestWheelTorque_FullThrottleAndClutchProducesPositiveTorque(t *testing.T) {
	e := NewEngine(refEngineParams())
	e.Throttle = 1.0
	e.Clutch = 1.0
	e.CurrentRPM = 4000

	got := e.WheelTorque()
	if got <= 0 {
		t.Errorf("WheelTorque() = %v, want > 0 at full throttle and locked clutch", got)
	}
}

// =============================================================================
// Differential.Split Tests
// =============================================================================

func TestDifferential_OpenDiffSplitsEvenly(t *testing.T) {
	d := Differential{}
	tl, tr := d.Split(400, 100, 80)
	if !almostEqual(tl, 200, 1e-9) || !almostEqual(tr, 200, 1e-9) {
		t.Errorf("Split() = (%v, %v), want (200, 200) with no LSD configured", tl, tr)
	}
}

func TestDifferential_LSDLocksTowardSlowerWheel(t *testing.T) {
	d := Differential{Params: DifferentialParams{
		PreloadTorque: 20,
		KPower:        0.3,
		ViscousCoeff:  5,
	}}

	// Left wheel spins faster than right under drive torque: lock should
	// shift torque toward the right (slower) wheel, reducing left's share.
	tl, tr := d.Split(400, 120, 80)

	if tl >= 200 {
		t.Errorf("left torque = %v, want < 200 (locking shifts torque toward slower right wheel)", tl)
	}
	if tr <= 200 {
		t.Errorf("right torque = %v, want > 200", tr)
	}
	if !almostEqual(tl+tr, 400, 1e-6) {
		t.Errorf("Split() sum = %v, want 400", tl+tr)
	}
}

func TestDifferential_LockClampedToCapacity(t *testing.T) {
	d := Differential{Params: DifferentialParams{
		PreloadTorque: 5,
		KPower:        0.01,
		ViscousCoeff:  1000, // absurdly high viscous request to force clamping
	}}

	tl, tr := d.Split(100, 500, -500)
	capacity := 5 + 0.01*100

	if math.Abs(tl-50) > capacity+1e-6 {
		t.Errorf("lock term exceeded capacity: tl=%v, capacity=%v", tl, capacity)
	}
	if !almostEqual(tl+tr, 100, 1e-6) {
		t.Errorf("Split() sum = %v, want 100", tl+tr)
	}
}

// =============================================================================
// CarrierProjection Tests
// =============================================================================

func TestCarrierProjection_SatisfiesConstraint(t *testing.T) {
	omegaL, omegaR := CarrierProjection(100, 60, 1.0, 1.0, 90)

	avg := (omegaL + omegaR) / 2
	if !almostEqual(avg, 90, 1e-9) {
		t.Errorf("post-projection average = %v, want carrier speed 90", avg)
	}
}

func TestCarrierProjection_EqualInertiasGetEqualCorrection(t *testing.T) {
	omegaL, omegaR := CarrierProjection(100, 60, 1.0, 1.0, 90)

	correctionL := omegaL - 100
	correctionR := omegaR - 60
	if !almostEqual(correctionL, correctionR, 1e-9) {
		t.Errorf("corrections = (%v, %v), want equal for equal inertias", correctionL, correctionR)
	}
}
