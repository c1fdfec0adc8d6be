package vehicle

import (
	"math"

	"github.com/go-gl/mathgl/mgl64"

	"github.com/jtothec67/racecore/vehicle/chassis"
)

// AeroParams are the speed-squared aerodynamic loads applied to the
// chassis every main phase, grounded on the original demo's downforce and
// drag terms: drag opposes the velocity vector directly, while downforce
// is split between named front/rear application points and scaled by the
// square of forward speed relative to a reference speed.
type AeroParams struct {
	AirDensity     float64 // kg/m^3, defaults to 1.225 if zero
	DragCoeff      float64 // C_d
	FrontalArea    float64 // m^2

	ReferenceSpeed float64 // m/s, speed at which the *AtReference figures apply
	FrontDownforceAtReference float64 // N
	RearDownforceAtReference  float64 // N

	// FrontDownforcePos / RearDownforcePos are local-frame offsets from the
	// chassis center of mass where each half's downforce is applied.
	FrontDownforcePos mgl64.Vec3
	RearDownforcePos  mgl64.Vec3
}

func (p AeroParams) airDensity() float64 {
	if p.AirDensity > 0 {
		return p.AirDensity
	}
	return 1.225
}

// Apply adds this tick's drag and downforce to body. Called once per main
// phase, after per-corner tire/suspension forces are applied and before
// Body.Integrate.
func (p AeroParams) Apply(body *chassis.Body) {
	velocity := body.Velocity
	speed := velocity.Len()
	if speed > 1e-6 {
		dragDir := velocity.Mul(-1.0 / speed)
		dragMag := 0.5 * p.airDensity() * speed * speed * p.DragCoeff * p.FrontalArea
		body.AddForce(dragDir.Mul(dragMag))
	}

	forward := body.Forward()
	down := body.Up().Mul(-1)
	forwardSpeed := math.Max(0, velocity.Dot(forward))
	scale := 0.0
	if p.ReferenceSpeed > 1e-6 {
		ratio := forwardSpeed / p.ReferenceSpeed
		scale = ratio * ratio
	}

	frontPos := body.Position.Add(body.Rotation.Rotate(p.FrontDownforcePos))
	rearPos := body.Position.Add(body.Rotation.Rotate(p.RearDownforcePos))

	body.AddForceAtPoint(down.Mul(p.FrontDownforceAtReference*scale), frontPos)
	body.AddForceAtPoint(down.Mul(p.RearDownforceAtReference*scale), rearPos)
}
