// Package tire implements a load-sensitive brush combined-slip tire model:
// given slip inputs and vertical load it returns contact-plane forces, with
// no notion of the wheel's own angular dynamics (that belongs to
// vehicle/wheel, which treats this package's Force as the stiff term in its
// implicit hub integration).
package tire

import "math"

// Params are one tire's brush-model coefficients.
type Params struct {
	Radius float64 // r_t, meters

	LongStiffCoeff float64 // C_x0
	LongStiffExp   float64 // e_x
	LatStiffCoeff  float64 // C_y0
	LatStiffExp    float64 // e_y
	LoadRef        float64 // F_z,ref

	MaxContactHalfLengthX float64 // a_max, half-length at F_z,max
	RefMaxLoad            float64 // F_z,max
	ContactHalfWidth      float64 // b, fixed half-width

	PeakFrictionLong float64 // μ_x,pk
	PeakFrictionLat  float64 // μ_y,pk

	SlidingFactorLong float64 // s_x, fraction of peak retained at full slide
	SlidingFactorLat  float64 // s_y
	SlidingFalloffLong float64 // n_x
	SlidingFalloffLat  float64 // n_y

	RollingResistanceCoeff float64 // scales F_z into a resisting force
}

// Output is one tick's full tire evaluation, including the telemetry-only
// fields that feed the screech-intensity signal a real dashboard or replay
// tool would want (no audio output is produced; the Non-goals exclude that
// surface, but the underlying signal is kept).
type Output struct {
	Fx, Fy float64

	SlipRatio float64 // κ
	SlipAngle float64 // tan α surrogate

	// SlipIntensity is a 0..1 signal derived from the slip ratio alone:
	// κ clamped to [0, 1] when κ > 0 (wheelspin), and 3·|κ| clamped to
	// [0, 1] when κ ≤ 0 (locking). The slip angle and the contact-patch
	// speed do not enter it.
	SlipIntensity float64
}

// SlipRatio returns κ = (ω·r − Vx) / max(|Vx|, 0.5), clamped to [-3, 3].
func (p Params) SlipRatio(vx, omega float64) float64 {
	wheelSpeed := omega * p.Radius
	denom := math.Max(math.Abs(vx), 0.5)
	k := (wheelSpeed - vx) / denom
	return clamp(k, -3, 3)
}

// SlipAngleTan returns the small-angle surrogate tan α = Vy / max(|Vx|, 1).
func (p Params) SlipAngleTan(vx, vy float64) float64 {
	return vy / math.Max(math.Abs(vx), 1.0)
}

// Force evaluates the brush model at the given contact-plane velocities,
// wheel spin, and vertical load, returning (Fx, Fy) in the contact plane.
// It is the pure, stiff F_x(ω) term inside the wheel hub's implicit
// residual g(ω) during its Newton iterations — it must have no side effects
// and no internal state.
func (p Params) Force(vx, vy, omega, fz float64) (float64, float64) {
	k := p.SlipRatio(vx, omega)
	tanAlpha := p.SlipAngleTan(vx, vy)

	if fz <= 0 {
		return 0, 0
	}

	loadScale := math.Max(fz, 1.0) / math.Max(p.LoadRef, 1.0)
	cx := p.LongStiffCoeff * p.LoadRef * math.Pow(loadScale, p.LongStiffExp)
	cy := p.LatStiffCoeff * p.LoadRef * math.Pow(loadScale, p.LatStiffExp)

	b := p.ContactHalfWidth
	loadFrac := clamp(fz/math.Max(p.RefMaxLoad, 1.0), 0, 1)
	a := p.MaxContactHalfLengthX * loadFrac
	if a <= 1e-9 || b <= 1e-9 {
		return 0, 0
	}

	kx := cx / (2 * a * b)
	ky := cy / (2 * a * b)
	pressure := fz / (4 * a * b)

	tx := kx * k
	ty := ky * tanAlpha
	s := math.Sqrt(tx*tx + ty*ty)

	if s < 1e-12 {
		return 0, 0
	}

	c := tx / s
	sn := ty / s

	muPeak := math.Sqrt(sq(p.PeakFrictionLong*c) + sq(p.PeakFrictionLat*sn))

	xs := clamp(2*a*(muPeak*pressure)/s-a, -a, a)

	factor := xs + a
	fxAdh := (2 * b) * (kx * k) * (factor * factor / (4 * a))
	fyAdh := (2 * b) * (ky * tanAlpha) * (factor * factor / (4 * a))

	slidingFraction := (a - xs) / (2 * a)

	muXSlide := p.SlidingFactorLong * p.PeakFrictionLong
	muYSlide := p.SlidingFactorLat * p.PeakFrictionLat
	muXEff := muXSlide + (p.PeakFrictionLong-muXSlide)*math.Pow(1-slidingFraction, p.SlidingFalloffLong)
	muYEff := muYSlide + (p.PeakFrictionLat-muYSlide)*math.Pow(1-slidingFraction, p.SlidingFalloffLat)

	muEff := math.Sqrt(sq(muXEff*c) + sq(muYEff*sn))

	span := a - xs
	fxSl := 2 * b * muEff * pressure * c * span
	fySl := 2 * b * muEff * pressure * sn * span

	fx := fxAdh + fxSl
	fy := -(fyAdh + fySl)
	return fx, fy
}

// Evaluate runs Force and packages the full Output, including the
// telemetry-only slip-intensity signal.
func (p Params) Evaluate(vx, vy, omega, fz float64) Output {
	fx, fy := p.Force(vx, vy, omega, fz)
	k := p.SlipRatio(vx, omega)

	intensity := 0.0
	if k > 0 {
		intensity = clamp(k, 0, 1)
	} else {
		intensity = clamp(-k*3, 0, 1)
	}

	return Output{
		Fx:            fx,
		Fy:            fy,
		SlipRatio:     k,
		SlipAngle:     p.SlipAngleTan(vx, vy),
		SlipIntensity: intensity,
	}
}

// RollingResistance returns the signed longitudinal resisting force: its
// magnitude is RollingResistanceCoeff·F_z and its sign is opposite to vx
// (zero when vx is exactly zero).
func (p Params) RollingResistance(vx, fz float64) float64 {
	if vx == 0 {
		return 0
	}
	return -sign(vx) * p.RollingResistanceCoeff * fz
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

func sq(v float64) float64 { return v * v }

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
