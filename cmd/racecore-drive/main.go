// Command racecore-drive is a headless exerciser for the vehicle core: it
// loads a config.VehicleSpec, builds a flat (optionally curbed) terrain.World,
// drives a scripted input sequence through a session.Loop, and logs the
// observable per-tick outputs.
//
// It plays the role the teacher's example/simpleScene package played for
// the physics engine it was copied from — a minimal runnable consumer of
// the library, not part of the library itself — but takes its
// flag-parse/validate-then-run shape from goverdrive's CLIGameConfig,
// adapted to return errors instead of panicking on bad input.
package main

import (
	"embed"
	"flag"
	"fmt"
	"io"
	"log"
	"math"
	"os"

	"github.com/go-gl/mathgl/mgl64"

	"github.com/jtothec67/racecore/raycast"
	"github.com/jtothec67/racecore/session"
	"github.com/jtothec67/racecore/terrain"
	"github.com/jtothec67/racecore/vehicle"
	"github.com/jtothec67/racecore/vehicle/config"
)

//go:embed testdata/default.yaml
var embeddedSpecs embed.FS

// runOptions holds the parsed and validated command-line configuration.
type runOptions struct {
	configPath string
	seconds    float64
	dt         float64
	throttle   float64
	brake      float64
	steerDeg   float64
	track      string
	logEvery   int
}

func main() {
	if err := run(os.Args[1:], os.Stdout); err != nil {
		fmt.Fprintln(os.Stderr, "racecore-drive:", err)
		os.Exit(1)
	}
}

func run(args []string, out io.Writer) error {
	opts, err := parseFlags(args)
	if err != nil {
		return err
	}

	specBytes, err := loadSpecBytes(opts.configPath)
	if err != nil {
		return fmt.Errorf("loading config: %w", err)
	}

	spec, err := config.Load(specBytes)
	if err != nil {
		return fmt.Errorf("parsing config: %w", err)
	}

	world := buildTrack(opts.track)

	startHeight := spec.Corners[0].RideHeight + spec.Corners[0].TireRadius + 0.2
	car := spec.Build(mgl64.Vec3{0, startHeight, 0}, mgl64.QuatIdent(), world)

	loop := session.NewLoop(car, opts.dt)
	log.Printf("racecore-drive: run %s starting, dt=%.5fs track=%s", loop.RunID, opts.dt, opts.track)

	car.Events.Subscribe(vehicle.NumericalRollback, func(vehicle.Event) {
		log.Printf("run %s: numerical rollback at tick %d", loop.RunID, loop.TotalSteps())
	})
	car.Events.Subscribe(vehicle.GearShifted, func(ev vehicle.Event) {
		log.Printf("run %s: shifted to gear %d at tick %d", loop.RunID, ev.Gear, loop.TotalSteps())
	})

	steerRad := opts.steerDeg * math.Pi / 180.0
	totalSteps := int(opts.seconds / opts.dt)
	for i := 0; i < totalSteps; i++ {
		car.SetInputs(vehicle.Inputs{
			Throttle: opts.throttle,
			Brake:    opts.brake,
			Steer:    clamp(steerRad/car.MaxSteerAngle, -1, 1),
		})
		loop.Advance(opts.dt)

		if opts.logEvery > 0 && i%opts.logEvery == 0 {
			printTick(out, loop.TotalSteps(), car)
		}
	}

	printTick(out, loop.TotalSteps(), car)
	return nil
}

func parseFlags(args []string) (runOptions, error) {
	fs := flag.NewFlagSet("racecore-drive", flag.ContinueOnError)
	var o runOptions
	fs.StringVar(&o.configPath, "config", "", "path to a vehicle spec YAML file (default: built-in example car)")
	fs.Float64Var(&o.seconds, "seconds", 5.0, "simulated duration, in seconds")
	fs.Float64Var(&o.dt, "dt", 1.0/240.0, "fixed timestep, in seconds")
	fs.Float64Var(&o.throttle, "throttle", 1.0, "constant throttle input, 0..1")
	fs.Float64Var(&o.brake, "brake", 0.0, "constant brake input, 0..1")
	fs.Float64Var(&o.steerDeg, "steer", 0.0, "constant steer input, in degrees")
	fs.StringVar(&o.track, "track", "flat", "track shape: \"flat\" or \"curb\"")
	fs.IntVar(&o.logEvery, "log-every", 240, "log a tick summary every N fixed steps (0 disables periodic logging)")
	if err := fs.Parse(args); err != nil {
		return o, err
	}

	if o.seconds <= 0 {
		return o, fmt.Errorf("-seconds must be positive, got %v", o.seconds)
	}
	if o.dt <= 0 {
		return o, fmt.Errorf("-dt must be positive, got %v", o.dt)
	}
	if o.throttle < 0 || o.throttle > 1 {
		return o, fmt.Errorf("-throttle must be in [0,1], got %v", o.throttle)
	}
	if o.brake < 0 || o.brake > 1 {
		return o, fmt.Errorf("-brake must be in [0,1], got %v", o.brake)
	}
	if o.track != "flat" && o.track != "curb" {
		return o, fmt.Errorf("-track must be \"flat\" or \"curb\", got %q", o.track)
	}

	return o, nil
}

func loadSpecBytes(path string) ([]byte, error) {
	if path == "" {
		return embeddedSpecs.ReadFile("testdata/default.yaml")
	}
	return os.ReadFile(path)
}

// buildTrack constructs the raycast.Query backend for the requested track
// shape: a flat plane, or a flat plane with a full-width 5cm curb step
// 20m ahead of the origin, like the one the S5 scenario test builds.
func buildTrack(shape string) raycast.Query {
	w := terrain.NewWorld(2.0)
	w.AddGroundPlane(0, 500)
	if shape == "curb" {
		w.AddStep(0, 0.05, -1.5, 1.5, 20, 20.3)
	}
	return w
}

func printTick(out io.Writer, tick int, car *vehicle.Vehicle) {
	speed := car.Body.Velocity.Dot(car.Body.Forward())
	fmt.Fprintf(out, "tick=%-6d speed=%6.2fm/s rpm=%6.0f gear=%d clutch=%.2f FL_Fz=%7.1f RL_Fz=%7.1f\n",
		tick, speed, car.Engine.CurrentRPM, car.Engine.CurrentGear, car.Engine.Clutch,
		car.Corners[vehicle.FrontLeft].Output.VerticalLoad, car.Corners[vehicle.RearLeft].Output.VerticalLoad)
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
