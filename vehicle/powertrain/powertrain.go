// Package powertrain implements the engine (RPM model, auto-clutch state
// machine, torque curve) and the differential (open diff with an LSD ramp
// plus an optional kinematic carrier projection).
package powertrain

import "math"

// LaunchState is the auto-clutch state machine's current phase.
type LaunchState int

const (
	PreLaunch LaunchState = iota
	Hold
	Release
)

func (s LaunchState) String() string {
	switch s {
	case PreLaunch:
		return "PreLaunch"
	case Hold:
		return "Hold"
	case Release:
		return "Release"
	default:
		return "Unknown"
	}
}

// TorquePoint is one sample of the engine's torque curve.
type TorquePoint struct {
	RPM    float64
	Torque float64
}

// EngineParams are the tunables of one engine.
type EngineParams struct {
	IdleRPM   float64
	MaxRPM    float64
	FreeRevRate float64 // RPM/s at full throttle with clutch open
	DecayRate   float64 // RPM/s decay off-throttle with clutch open

	BitePointStart float64 // clutch position, 0..1
	BitePointEnd   float64

	ThrottleIdleThreshold float64
	EngineBrakeBaseK      float64

	DrivetrainEfficiency float64
	FinalDrive           float64
	GearRatios           []float64 // index 0 = 1st gear

	TorqueCurve []TorquePoint // sorted by RPM ascending

	AutoClutchEnabled bool
}

func (p EngineParams) gearRatio(gear int) float64 {
	if len(p.GearRatios) == 0 {
		return 1.0
	}
	idx := gear - 1
	if idx < 0 {
		idx = 0
	}
	if idx >= len(p.GearRatios) {
		idx = len(p.GearRatios) - 1
	}
	return p.GearRatios[idx]
}

// Engine is one vehicle's powerplant: RPM state, clutch state, and the
// auto-clutch launch state machine.
type Engine struct {
	Params EngineParams

	CurrentGear int
	CurrentRPM  float64
	Clutch      float64 // 0 = fully open, 1 = fully locked
	Throttle    float64

	LaunchState    LaunchState
	antiStallActive bool
}

// NewEngine constructs an engine at idle in 1st gear.
func NewEngine(params EngineParams) *Engine {
	return &Engine{
		Params:      params,
		CurrentGear: 1,
		CurrentRPM:  params.IdleRPM,
	}
}

// Update advances the engine's RPM and clutch state one fixed tick. wheelRPM
// is the driven axle's wheel-imposed RPM before gearing (ω_drive·60/2π).
func (e *Engine) Update(throttle, wheelRPM, dt float64) {
	e.Throttle = clamp(throttle, 0, 1)
	gearRatio := e.Params.gearRatio(e.CurrentGear)
	targetRPM := wheelRPM * gearRatio * e.Params.FinalDrive

	if e.Params.AutoClutchEnabled {
		e.updateAutoClutch(targetRPM, dt)
	}

	freeRev := e.CurrentRPM
	if e.Throttle > 0 {
		freeRev += e.Throttle * e.Params.FreeRevRate * dt
	} else {
		freeRev -= e.Params.DecayRate * dt
	}
	freeRev = clamp(freeRev, e.Params.IdleRPM, e.Params.MaxRPM)

	driven := mix(e.CurrentRPM, targetRPM, dt*10.0)

	clutchFactor := e.biteFactor(e.Clutch)

	e.CurrentRPM = clamp(mix(freeRev, driven, clutchFactor), e.Params.IdleRPM, e.Params.MaxRPM)
}

func (e *Engine) biteFactor(clutch float64) float64 {
	start, end := e.Params.BitePointStart, e.Params.BitePointEnd
	switch {
	case clutch < start:
		return 0
	case clutch < end:
		return (clutch - start) / (end - start)
	default:
		return 1
	}
}

const (
	autoClutchThrottleThreshold = 0.05
	autoClutchBitePoint         = 0.5
	autoClutchReleaseStartRPM   = 2000.0
	autoClutchReleaseEndRPM     = 3000.0
	autoClutchOpenSlipRPM       = 800.0
	autoClutchClosedSlipRPM     = 200.0
)

func (e *Engine) updateAutoClutch(targetRPM, dt float64) {
	stallEngage := e.Params.IdleRPM + 150.0
	stallRelease := e.Params.IdleRPM + 50.0

	throttlePressed := e.Throttle > autoClutchThrottleThreshold

	if !e.antiStallActive {
		if e.CurrentRPM < stallEngage && targetRPM < stallEngage {
			e.antiStallActive = true
		}
	} else if e.CurrentRPM > stallRelease || targetRPM > stallRelease {
		e.antiStallActive = false
	}

	switch e.LaunchState {
	case PreLaunch:
		if throttlePressed {
			e.LaunchState = Hold
		}
	case Hold:
		if targetRPM >= autoClutchReleaseStartRPM {
			e.LaunchState = Release
		}
	case Release:
		if !throttlePressed && e.CurrentRPM < e.Params.IdleRPM+100.0 {
			e.LaunchState = PreLaunch
		}
	}

	switch {
	case e.antiStallActive:
		e.Clutch = 0
	case !throttlePressed:
		slip := e.CurrentRPM - targetRPM
		t := clamp((math.Abs(slip)-autoClutchClosedSlipRPM)/(autoClutchOpenSlipRPM-autoClutchClosedSlipRPM), 0, 1)
		target := 1.0 - t
		if target > e.Clutch {
			e.Clutch = target
		}
	default:
		switch e.LaunchState {
		case PreLaunch:
			e.Clutch = 0
		case Hold:
			e.Clutch = math.Min(e.Clutch+dt*2.0, autoClutchBitePoint)
		case Release:
			t := clamp((targetRPM-autoClutchReleaseStartRPM)/(autoClutchReleaseEndRPM-autoClutchReleaseStartRPM), 0, 1)
			e.Clutch = mix(autoClutchBitePoint, 1.0, t)
		}
	}

	e.Clutch = clamp(e.Clutch, 0, 1)
}

// WheelTorque samples the torque curve at the current RPM, applies
// throttle, redline cut, engine braking, gearing, efficiency, and clutch
// bite, returning the torque delivered at the driven axle.
func (e *Engine) WheelTorque() float64 {
	engineTorque := e.sampleTorqueCurve()
	engineTorque *= e.Throttle

	if e.CurrentRPM >= e.Params.MaxRPM {
		engineTorque = 0
	}

	gearRatio := e.Params.gearRatio(e.CurrentGear)

	if e.Throttle < e.Params.ThrottleIdleThreshold {
		norm := clamp((e.CurrentRPM-e.Params.IdleRPM)/(e.Params.MaxRPM-e.Params.IdleRPM), 0, 1)
		engineTorque += -norm * norm * e.Params.EngineBrakeBaseK * gearRatio
	}

	wheelTorque := engineTorque * gearRatio * e.Params.FinalDrive * e.Params.DrivetrainEfficiency
	wheelTorque *= e.biteFactor(e.Clutch)

	return wheelTorque
}

func (e *Engine) sampleTorqueCurve() float64 {
	curve := e.Params.TorqueCurve
	if len(curve) == 0 {
		return 0
	}
	if e.CurrentRPM <= curve[0].RPM {
		return curve[0].Torque
	}
	if e.CurrentRPM >= curve[len(curve)-1].RPM {
		return curve[len(curve)-1].Torque
	}
	for i := 0; i+1 < len(curve); i++ {
		a, b := curve[i], curve[i+1]
		if e.CurrentRPM >= a.RPM && e.CurrentRPM <= b.RPM {
			t := (e.CurrentRPM - a.RPM) / (b.RPM - a.RPM)
			return a.Torque + (b.Torque-a.Torque)*t
		}
	}
	return 0
}

// DifferentialParams are the tunables of one LSD differential.
type DifferentialParams struct {
	PreloadTorque float64 // T_pre, N·m
	KPower        float64 // ramp gain under drive torque
	KCoast        float64 // ramp gain under engine-braking torque
	ViscousCoeff  float64 // c_v, N·m per rad/s of relative spin
}

// Differential splits a total wheel torque between left and right output
// shafts: an open-diff 50/50 base plus an LSD locking term.
type Differential struct {
	Params DifferentialParams
}

// Split returns (T_L, T_R) such that T_L + T_R = totalTorque, given the
// left/right wheel angular velocities omegaL, omegaR.
func (d Differential) Split(totalTorque, omegaL, omegaR float64) (float64, float64) {
	base := 0.5 * totalTorque

	p := d.Params
	if p.PreloadTorque == 0 && p.KPower == 0 && p.KCoast == 0 && p.ViscousCoeff == 0 {
		return base, base
	}

	deltaOmega := omegaL - omegaR
	viscousRequest := -p.ViscousCoeff * deltaOmega

	ramp := p.KPower * totalTorque
	if totalTorque < 0 {
		ramp = p.KCoast * -totalTorque
	}
	lockCapacity := math.Max(0, p.PreloadTorque+ramp)

	lock := clamp(viscousRequest, -lockCapacity, lockCapacity)

	return base + lock, base - lock
}

// CarrierProjection is the kinematic constraint ω_L + ω_R = 2·ω_C enforced
// at the velocity level via a Lagrange multiplier, for use when an
// explicit carrier speed is simulated (e.g. a modeled differential housing
// body rather than an implicit 50/50 split).
func CarrierProjection(omegaL, omegaR, inertiaL, inertiaR, carrierOmega float64) (float64, float64) {
	il := math.Max(inertiaL, 1e-6)
	ir := math.Max(inertiaR, 1e-6)

	g := (omegaL + omegaR) - 2*carrierOmega
	k := 1/il + 1/ir
	if k <= 0 {
		return omegaL, omegaR
	}

	lambda := -g / k
	return omegaL + lambda/il, omegaR + lambda/ir
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

func mix(a, b, t float64) float64 {
	return a + (b-a)*t
}
