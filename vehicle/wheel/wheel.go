// Package wheel owns a single hub's angular dynamics: the implicit
// integration of wheel spin against the tire's stiff force response, the
// near-zero-speed stick-mode clamp, and the airborne fallback when the
// suspension reports no ground contact.
package wheel

import (
	"math"

	"github.com/jtothec67/racecore/vehicle/tire"
)

// stickBreakFreeScale is the hysteresis multiplier on the static-friction
// torque budget: once stuck, applied torque must exceed this fraction
// above budget before the hub is allowed to break free into the implicit
// solve. Prevents chatter right at the threshold.
const stickBreakFreeScale = 1.02

// Hub is one wheel's angular state and tunables.
type Hub struct {
	Inertia             float64 // J, kg·m²
	ViscousCoeff        float64 // c_visc, grounded hub viscous loss
	AirViscousCoeff     float64 // c_air, airborne drag (0 defaults to 2×ViscousCoeff)
	StaticFrictionCoeff float64 // μ_s, used for the stick-mode torque budget

	Omega float64 // ω_w, rad/s

	stickActive bool
}

// Result is one tick's hub integration output.
type Result struct {
	Fx, Fy      float64
	Omega       float64
	StickActive bool
}

func (h *Hub) airDrag() float64 {
	if h.AirViscousCoeff > 0 {
		return h.AirViscousCoeff
	}
	return 2 * h.ViscousCoeff
}

// Integrate advances the hub one fixed tick. driveTorque is signed (N·m,
// positive forward); brakeTorque is a non-negative requested magnitude.
// grounded, vx, vy, and fz come from this tick's suspension/tire sampling;
// when grounded is false the contact-model inputs are ignored.
func (h *Hub) Integrate(dt float64, driveTorque, brakeTorque float64, grounded bool, vx, vy, fz float64, t tire.Params) Result {
	if !grounded {
		h.stickActive = false
		return h.integrateAirborne(dt, driveTorque, brakeTorque)
	}
	return h.integrateGrounded(dt, driveTorque, brakeTorque, vx, vy, fz, t)
}

func (h *Hub) integrateAirborne(dt, driveTorque, brakeTorque float64) Result {
	spinSign := 0.0
	if math.Abs(h.Omega) > 1e-3 {
		spinSign = sign(h.Omega)
	}
	brakeEff := -spinSign * brakeTorque

	net := driveTorque + brakeEff - h.airDrag()*h.Omega
	h.Omega += (net / h.Inertia) * dt

	return Result{Omega: h.Omega}
}

func (h *Hub) integrateGrounded(dt, driveTorque, brakeTorque, vx, vy, fz float64, t tire.Params) Result {
	spinSign := sign(h.Omega)
	if math.Abs(h.Omega) <= 1e-3 {
		spinSign = sign(vx)
	}
	brakeEff := -spinSign * brakeTorque
	tauApp := driveTorque + brakeEff

	r := t.Radius
	staticBudget := h.StaticFrictionCoeff * fz * r

	nearStatic := math.Abs(vx) < 0.30 && math.Abs(h.Omega) < 0.25
	engage := nearStatic && math.Abs(tauApp) <= staticBudget
	remain := h.stickActive && nearStatic && math.Abs(tauApp) < stickBreakFreeScale*staticBudget

	if engage || remain {
		h.stickActive = true
		if r > 0 {
			h.Omega = vx / r
		} else {
			h.Omega = 0
		}
		_, fy := t.Force(vx, vy, h.Omega, fz)
		fx := 0.0
		if r > 0 {
			fx = tauApp / r
		}
		return Result{Fx: fx, Fy: fy, Omega: h.Omega, StickActive: true}
	}

	h.stickActive = false
	omega := h.newtonSolve(dt, tauApp, vx, vy, fz, t)
	h.Omega = omega

	fx, fy := t.Force(vx, vy, omega, fz)
	return Result{Fx: fx, Fy: fy, Omega: omega, StickActive: false}
}

// newtonSolve runs up to 3 Newton iterations with a central-difference
// Jacobian and a halving line search on
//   g(ω) = ω − ω_prev − (dt/J)·(τ_app − r·F_x(ω) − c_visc·ω)
func (h *Hub) newtonSolve(dt, tauApp, vx, vy, fz float64, t tire.Params) float64 {
	r := t.Radius
	j := h.Inertia
	cVisc := h.ViscousCoeff

	fxAt := func(omega float64) float64 {
		fx, _ := t.Force(vx, vy, omega, fz)
		return fx
	}

	omegaPrev := h.Omega
	omega := omegaPrev

	for i := 0; i < 3; i++ {
		fx0 := fxAt(omega)
		g := omega - omegaPrev - (dt/j)*(tauApp-r*fx0-cVisc*omega)

		dW := math.Max(0.25, 0.1+0.05*math.Abs(omega))
		fxPlus := fxAt(omega + dW)
		fxMinus := fxAt(omega - dW)
		dFxdOmega := (fxPlus - fxMinus) / (2 * dW)
		dTaudOmega := -r * dFxdOmega

		dg := 1.0 - (dt/j)*(dTaudOmega-cVisc)
		if math.Abs(dg) < 1e-8 {
			break
		}

		step := g / dg
		step = clamp(step, -20, 20)

		omegaTry := omega - step
		for ls := 0; ls < 3; ls++ {
			fxTry := fxAt(omegaTry)
			gTry := omegaTry - omegaPrev - (dt/j)*(tauApp-r*fxTry-cVisc*omegaTry)
			if math.Abs(gTry) <= 0.9*math.Abs(g) {
				break
			}
			step *= 0.5
			omegaTry = omega - step
		}
		omega -= step

		if math.Abs(step) < 1e-4 {
			break
		}
	}

	return omega
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

func sign(v float64) float64 {
	switch {
	case v > 0:
		return 1
	case v < 0:
		return -1
	default:
		return 0
	}
}
