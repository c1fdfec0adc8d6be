// Package config loads a complete vehicle.Vehicle from a YAML record,
// validating every static parameter at construction time so no
// partially-built vehicle is ever observable, the way the teacher's
// actor.NewRigidBody validates shape/density before returning a body.
package config

import (
	"fmt"
	"math"

	"github.com/go-gl/mathgl/mgl64"
	"gopkg.in/yaml.v3"

	"github.com/jtothec67/racecore/raycast"
	"github.com/jtothec67/racecore/vehicle"
	"github.com/jtothec67/racecore/vehicle/chassis"
	"github.com/jtothec67/racecore/vehicle/powertrain"
	"github.com/jtothec67/racecore/vehicle/suspension"
	"github.com/jtothec67/racecore/vehicle/tire"
	"github.com/jtothec67/racecore/vehicle/wheel"
)

// Vec3 is a YAML-friendly stand-in for mgl64.Vec3.
type Vec3 struct {
	X float64 `yaml:"x"`
	Y float64 `yaml:"y"`
	Z float64 `yaml:"z"`
}

func (v Vec3) toMgl() mgl64.Vec3 { return mgl64.Vec3{v.X, v.Y, v.Z} }

// ChassisSpec is the box-shaped rigid body's static configuration.
type ChassisSpec struct {
	Mass        float64 `yaml:"mass"`
	HalfExtents Vec3    `yaml:"halfExtents"`
}

// CornerSpec is one corner's ride geometry, tire coefficients, hub
// tunables, and routing flags.
type CornerSpec struct {
	Anchor Vec3 `yaml:"anchor"`

	RestLength           float64 `yaml:"restLength"`
	RideHeight           float64 `yaml:"rideHeight"`
	TireRadius           float64 `yaml:"tireRadius"`
	TireWidth            float64 `yaml:"tireWidth"`
	Stiffness            float64 `yaml:"stiffness"`
	BumpStopStiffness    float64 `yaml:"bumpStopStiffness"`
	BumpStopRange        float64 `yaml:"bumpStopRange"`
	BumpDampLowSpeed     float64 `yaml:"bumpDampLowSpeed"`
	BumpDampHighSpeed    float64 `yaml:"bumpDampHighSpeed"`
	ReboundDampLowSpeed  float64 `yaml:"reboundDampLowSpeed"`
	ReboundDampHighSpeed float64 `yaml:"reboundDampHighSpeed"`
	DampingThreshold     float64 `yaml:"dampingThreshold"`
	AntiRollStiffness    float64 `yaml:"antiRollStiffness"`

	LongStiffCoeff         float64 `yaml:"longStiffCoeff"`
	LongStiffExp           float64 `yaml:"longStiffExp"`
	LatStiffCoeff          float64 `yaml:"latStiffCoeff"`
	LatStiffExp            float64 `yaml:"latStiffExp"`
	LoadRef                float64 `yaml:"loadRef"`
	MaxContactHalfLengthX  float64 `yaml:"maxContactHalfLengthX"`
	RefMaxLoad             float64 `yaml:"refMaxLoad"`
	ContactHalfWidth       float64 `yaml:"contactHalfWidth"`
	PeakFrictionLong       float64 `yaml:"peakFrictionLong"`
	PeakFrictionLat        float64 `yaml:"peakFrictionLat"`
	SlidingFactorLong      float64 `yaml:"slidingFactorLong"`
	SlidingFactorLat       float64 `yaml:"slidingFactorLat"`
	SlidingFalloffLong     float64 `yaml:"slidingFalloffLong"`
	SlidingFalloffLat      float64 `yaml:"slidingFalloffLat"`
	RollingResistanceCoeff float64 `yaml:"rollingResistanceCoeff"`

	HubInertia      float64 `yaml:"hubInertia"`
	ViscousCoeff    float64 `yaml:"viscousCoeff"`
	AirViscousCoeff float64 `yaml:"airViscousCoeff"`
	StaticFriction  float64 `yaml:"staticFriction"`

	Steered        bool    `yaml:"steered"`
	Driven         bool    `yaml:"driven"`
	BrakeTorqueMax float64 `yaml:"brakeTorqueMax"`
}

// EngineSpec mirrors powertrain.EngineParams for YAML loading.
type EngineSpec struct {
	IdleRPM     float64 `yaml:"idleRPM"`
	MaxRPM      float64 `yaml:"maxRPM"`
	FreeRevRate float64 `yaml:"freeRevRate"`
	DecayRate   float64 `yaml:"decayRate"`

	BitePointStart        float64 `yaml:"bitePointStart"`
	BitePointEnd          float64 `yaml:"bitePointEnd"`
	ThrottleIdleThreshold float64 `yaml:"throttleIdleThreshold"`
	EngineBrakeBaseK      float64 `yaml:"engineBrakeBaseK"`

	DrivetrainEfficiency float64   `yaml:"drivetrainEfficiency"`
	FinalDrive           float64   `yaml:"finalDrive"`
	GearRatios           []float64 `yaml:"gearRatios"`

	TorqueCurve []struct {
		RPM    float64 `yaml:"rpm"`
		Torque float64 `yaml:"torque"`
	} `yaml:"torqueCurve"`

	AutoClutchEnabled bool `yaml:"autoClutchEnabled"`
}

// DifferentialSpec mirrors powertrain.DifferentialParams.
type DifferentialSpec struct {
	PreloadTorque float64 `yaml:"preloadTorque"`
	KPower        float64 `yaml:"kPower"`
	KCoast        float64 `yaml:"kCoast"`
	ViscousCoeff  float64 `yaml:"viscousCoeff"`
}

// AeroSpec mirrors vehicle.AeroParams.
type AeroSpec struct {
	AirDensity                float64 `yaml:"airDensity"`
	DragCoeff                 float64 `yaml:"dragCoeff"`
	FrontalArea               float64 `yaml:"frontalArea"`
	ReferenceSpeed            float64 `yaml:"referenceSpeed"`
	FrontDownforceAtReference float64 `yaml:"frontDownforceAtReference"`
	RearDownforceAtReference  float64 `yaml:"rearDownforceAtReference"`
	FrontDownforcePos         Vec3    `yaml:"frontDownforcePos"`
	RearDownforcePos          Vec3    `yaml:"rearDownforcePos"`
}

// VehicleSpec is the single YAML-serializable record holding every static
// parameter needed to build a vehicle.Vehicle.
//
// Corners is always exactly 4 entries, in FL, FR, RL, RR order.
type VehicleSpec struct {
	Chassis ChassisSpec       `yaml:"chassis"`
	Corners [4]CornerSpec     `yaml:"corners"`
	Engine  EngineSpec        `yaml:"engine"`
	Diff    DifferentialSpec  `yaml:"differential"`
	Aero    AeroSpec          `yaml:"aero"`

	MaxSteerAngleDeg float64 `yaml:"maxSteerAngleDeg"`
	NumGears         int     `yaml:"numGears"`
}

// Load reads and validates a VehicleSpec from YAML bytes.
func Load(data []byte) (*VehicleSpec, error) {
	var spec VehicleSpec
	if err := yaml.Unmarshal(data, &spec); err != nil {
		return nil, fmt.Errorf("config: yaml: %w", err)
	}
	if err := spec.Validate(); err != nil {
		return nil, err
	}
	return &spec, nil
}

// Validate checks every parameter out-of-range condition, returning a
// *vehicle.ConfigError for the first one found.
func (s *VehicleSpec) Validate() error {
	if s.Chassis.Mass <= 0 {
		return vehicle.NewConfigError("chassis.mass", "must be positive")
	}
	if s.Chassis.HalfExtents.X <= 0 || s.Chassis.HalfExtents.Y <= 0 || s.Chassis.HalfExtents.Z <= 0 {
		return vehicle.NewConfigError("chassis.halfExtents", "every half-extent must be positive")
	}
	if s.NumGears < 1 {
		return vehicle.NewConfigError("numGears", "must be at least 1")
	}
	if len(s.Engine.GearRatios) < s.NumGears {
		return vehicle.NewConfigError("engine.gearRatios", "must have one entry per gear")
	}
	if s.Engine.IdleRPM <= 0 || s.Engine.MaxRPM <= s.Engine.IdleRPM {
		return vehicle.NewConfigError("engine.idleRPM/maxRPM", "idle must be positive and below maxRPM")
	}
	if s.Engine.BitePointStart >= s.Engine.BitePointEnd {
		return vehicle.NewConfigError("engine.bitePointStart/bitePointEnd", "bite window start must be below its end")
	}

	driven := 0
	for i := range s.Corners {
		c := &s.Corners[i]
		if c.Stiffness <= 0 {
			return vehicle.NewConfigError(fmt.Sprintf("corners[%d].stiffness", i), "must be positive")
		}
		if c.RestLength <= 0 {
			return vehicle.NewConfigError(fmt.Sprintf("corners[%d].restLength", i), "must be positive")
		}
		if c.TireRadius <= 0 {
			return vehicle.NewConfigError(fmt.Sprintf("corners[%d].tireRadius", i), "must be positive")
		}
		if c.HubInertia <= 0 {
			return vehicle.NewConfigError(fmt.Sprintf("corners[%d].hubInertia", i), "must be positive")
		}
		if c.Driven {
			driven++
		}
	}
	if driven != 0 && driven != 2 {
		return vehicle.NewConfigError("corners[*].driven", "exactly two corners (one axle) must be marked driven, or none")
	}
	if driven == 2 && s.Corners[0].Driven != s.Corners[1].Driven {
		return vehicle.NewConfigError("corners[*].driven", "exactly two corners (one axle) must be marked driven, or none")
	}

	return nil
}

// suspensionParams converts a CornerSpec's ride fields into suspension.Params.
func (c CornerSpec) suspensionParams() suspension.Params {
	return suspension.Params{
		RestLength:           c.RestLength,
		RideHeight:           c.RideHeight,
		TireRadius:           c.TireRadius,
		TireWidth:            c.TireWidth,
		Stiffness:            c.Stiffness,
		BumpStopStiffness:    c.BumpStopStiffness,
		BumpStopRange:        c.BumpStopRange,
		BumpDampLowSpeed:     c.BumpDampLowSpeed,
		BumpDampHighSpeed:    c.BumpDampHighSpeed,
		ReboundDampLowSpeed:  c.ReboundDampLowSpeed,
		ReboundDampHighSpeed: c.ReboundDampHighSpeed,
		DampingThreshold:     c.DampingThreshold,
		AntiRollStiffness:    c.AntiRollStiffness,
	}
}

func (c CornerSpec) tireParams() tire.Params {
	return tire.Params{
		Radius:                 c.TireRadius,
		LongStiffCoeff:         c.LongStiffCoeff,
		LongStiffExp:           c.LongStiffExp,
		LatStiffCoeff:          c.LatStiffCoeff,
		LatStiffExp:            c.LatStiffExp,
		LoadRef:                c.LoadRef,
		MaxContactHalfLengthX:  c.MaxContactHalfLengthX,
		RefMaxLoad:             c.RefMaxLoad,
		ContactHalfWidth:       c.ContactHalfWidth,
		PeakFrictionLong:       c.PeakFrictionLong,
		PeakFrictionLat:        c.PeakFrictionLat,
		SlidingFactorLong:      c.SlidingFactorLong,
		SlidingFactorLat:       c.SlidingFactorLat,
		SlidingFalloffLong:     c.SlidingFalloffLong,
		SlidingFalloffLat:      c.SlidingFalloffLat,
		RollingResistanceCoeff: c.RollingResistanceCoeff,
	}
}

func (c CornerSpec) hub() *wheel.Hub {
	return &wheel.Hub{
		Inertia:             c.HubInertia,
		ViscousCoeff:        c.ViscousCoeff,
		AirViscousCoeff:     c.AirViscousCoeff,
		StaticFrictionCoeff: c.StaticFriction,
	}
}

func (e EngineSpec) params() powertrain.EngineParams {
	curve := make([]powertrain.TorquePoint, len(e.TorqueCurve))
	for i, p := range e.TorqueCurve {
		curve[i] = powertrain.TorquePoint{RPM: p.RPM, Torque: p.Torque}
	}
	return powertrain.EngineParams{
		IdleRPM:               e.IdleRPM,
		MaxRPM:                e.MaxRPM,
		FreeRevRate:           e.FreeRevRate,
		DecayRate:             e.DecayRate,
		BitePointStart:        e.BitePointStart,
		BitePointEnd:          e.BitePointEnd,
		ThrottleIdleThreshold: e.ThrottleIdleThreshold,
		EngineBrakeBaseK:      e.EngineBrakeBaseK,
		DrivetrainEfficiency:  e.DrivetrainEfficiency,
		FinalDrive:            e.FinalDrive,
		GearRatios:            e.GearRatios,
		TorqueCurve:           curve,
		AutoClutchEnabled:     e.AutoClutchEnabled,
	}
}

func (d DifferentialSpec) params() powertrain.DifferentialParams {
	return powertrain.DifferentialParams{
		PreloadTorque: d.PreloadTorque,
		KPower:        d.KPower,
		KCoast:        d.KCoast,
		ViscousCoeff:  d.ViscousCoeff,
	}
}

func (a AeroSpec) params() vehicle.AeroParams {
	return vehicle.AeroParams{
		AirDensity:                a.AirDensity,
		DragCoeff:                 a.DragCoeff,
		FrontalArea:               a.FrontalArea,
		ReferenceSpeed:            a.ReferenceSpeed,
		FrontDownforceAtReference: a.FrontDownforceAtReference,
		RearDownforceAtReference:  a.RearDownforceAtReference,
		FrontDownforcePos:         a.FrontDownforcePos.toMgl(),
		RearDownforcePos:          a.RearDownforcePos.toMgl(),
	}
}

// Build constructs a vehicle.Vehicle from an already-validated spec,
// placing the chassis at the given position/rotation and answering
// ground queries through world.
func (s *VehicleSpec) Build(position mgl64.Vec3, rotation mgl64.Quat, world raycast.Query) *vehicle.Vehicle {
	body := chassis.NewBox(position, rotation, s.Chassis.HalfExtents.toMgl(), s.chassisDensity())

	var corners [4]*vehicle.Corner
	for i := range s.Corners {
		c := s.Corners[i]
		corners[i] = &vehicle.Corner{
			Suspension:     suspension.NewUnit(c.suspensionParams(), c.Anchor.toMgl()),
			Tire:           c.tireParams(),
			Hub:            c.hub(),
			Steered:        c.Steered,
			Driven:         c.Driven,
			BrakeTorqueMax: c.BrakeTorqueMax,
		}
	}
	// Anti-roll partners: front axle (0,1) and rear axle (2,3).
	corners[0].Suspension.Partner = corners[1].Suspension
	corners[1].Suspension.Partner = corners[0].Suspension
	corners[2].Suspension.Partner = corners[3].Suspension
	corners[3].Suspension.Partner = corners[2].Suspension

	engine := powertrain.NewEngine(s.Engine.params())
	diff := powertrain.Differential{Params: s.Diff.params()}

	return vehicle.NewVehicle(body, corners, engine, diff, s.Aero.params(), world, degToRad(s.MaxSteerAngleDeg), s.NumGears)
}

// chassisDensity back-derives a uniform density from the configured mass
// and box volume, since ChassisSpec is expressed as mass directly rather than
// density (more natural for a vehicle spec than density-first authoring).
func (s *VehicleSpec) chassisDensity() float64 {
	he := s.Chassis.HalfExtents
	volume := 8.0 * he.X * he.Y * he.Z
	if volume <= 0 {
		return 0
	}
	return s.Chassis.Mass / volume
}

func degToRad(deg float64) float64 {
	return deg * (math.Pi / 180.0)
}
