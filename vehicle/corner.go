package vehicle

import (
	"github.com/go-gl/mathgl/mgl64"

	"github.com/jtothec67/racecore/vehicle/suspension"
	"github.com/jtothec67/racecore/vehicle/tire"
	"github.com/jtothec67/racecore/vehicle/wheel"
)

// CornerIndex names the four corners in the deterministic order every
// fixed-tick phase iterates them.
type CornerIndex int

const (
	FrontLeft CornerIndex = iota
	FrontRight
	RearLeft
	RearRight
)

func (c CornerIndex) String() string {
	switch c {
	case FrontLeft:
		return "FL"
	case FrontRight:
		return "FR"
	case RearLeft:
		return "RL"
	case RearRight:
		return "RR"
	default:
		return "?"
	}
}

// Corner is one wheel assembly: the ray-cast suspension unit, the tire's
// static coefficients, and the wheel hub's angular state, plus the
// per-tick routing flags the vehicle orchestrator needs (is this corner
// steered, is it on the driven axle, what brake torque can it request).
type Corner struct {
	Suspension *suspension.Unit
	Tire       tire.Params
	Hub        *wheel.Hub

	Steered        bool
	Driven         bool
	BrakeTorqueMax float64 // N·m at full brake input

	// CornerOutput is this tick's observable readout, refreshed every
	// main phase.
	Output CornerOutput
}

// CornerOutput is the per-corner slice of the vehicle's observable state.
type CornerOutput struct {
	ContactPoint mgl64.Vec3
	Normal       mgl64.Vec3
	Grounded     bool
	VerticalLoad float64 // F_susp
	Fx, Fy       float64
	WheelOmega   float64
	SteerAngle   float64
	SlipRatio    float64
	SlipAngle    float64
	StickActive  bool
}
