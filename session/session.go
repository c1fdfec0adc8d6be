// Package session implements the fixed-step scheduler described in the
// core's concurrency model: a single-threaded cooperative driver that
// accumulates real elapsed time and runs zero or more constant-dt fixed
// steps per call, the remainder carrying over to the next call.
//
// The shape is adapted from the teacher's World.Step, which divides one
// frame's dt into a fixed count of substeps of size h and runs its five
// phases per substep; here the substep count isn't fixed in advance but
// falls out of how much real time has accumulated. Unlike World.Step,
// there is no Workers-based goroutine fan-out: a fixed step here is one
// chassis and four corners, not enough concurrent work for a worker pool
// to earn back its own synchronization cost, and the core's ordering
// guarantees require every step to run to completion before the next
// begins regardless.
package session

import "github.com/google/uuid"

// Tickable is the scheduler's collaborator contract: a fixed-step
// consumer advances through early, main, and late sub-phases in that
// order every step, with dt held constant for the life of the session.
// OnFixedTick returns the dt it actually integrated, which may be less
// than dt if the consumer is self-throttling (e.g. vehicle.Vehicle after
// repeated numerical faults); the session's own step cadence is
// unaffected by this return value, which is informational only.
type Tickable interface {
	OnEarlyFixedTick(dt float64)
	OnFixedTick(dt float64) float64
	OnLateFixedTick(dt float64)
}

// maxStepsPerFrame bounds how many fixed steps a single Advance call will
// run, so a long stall (a debugger pause, a slow frame) can't spiral into
// an unbounded catch-up burst; any time beyond that simply keeps
// accumulating and is consumed over subsequent calls.
const maxStepsPerFrame = 8

// Loop drives a Tickable at a constant fixed dt, accumulating real
// elapsed time across calls to Advance.
type Loop struct {
	Target  Tickable
	FixedDt float64

	// RunID tags this loop instance for telemetry/log correlation across a
	// session; it carries no in-tick identity (the four corners are still
	// array index 0..3, never UUID-keyed, per the arena-of-indices
	// guidance) and is never read by the tick path itself.
	RunID uuid.UUID

	accumulated float64
	totalSteps  int
}

// NewLoop constructs a fixed-step loop for target at fixedDt seconds per
// step (e.g. 1.0/240), tagged with a fresh RunID.
func NewLoop(target Tickable, fixedDt float64) *Loop {
	return &Loop{Target: target, FixedDt: fixedDt, RunID: uuid.New()}
}

// Advance accumulates frameDt seconds of real elapsed time and runs as
// many fixed steps as that time covers (up to maxStepsPerFrame), each
// step running OnEarlyFixedTick, OnFixedTick, OnLateFixedTick in order.
// It returns the number of fixed steps run. Any leftover time under one
// FixedDt carries forward to the next call.
func (l *Loop) Advance(frameDt float64) int {
	if frameDt > 0 {
		l.accumulated += frameDt
	}

	steps := 0
	for l.accumulated >= l.FixedDt && steps < maxStepsPerFrame {
		l.step()
		l.accumulated -= l.FixedDt
		steps++
		l.totalSteps++
	}

	return steps
}

func (l *Loop) step() {
	l.Target.OnEarlyFixedTick(l.FixedDt)
	l.Target.OnFixedTick(l.FixedDt)
	l.Target.OnLateFixedTick(l.FixedDt)
}

// TotalSteps returns the cumulative count of fixed steps this loop has
// run across every Advance call.
func (l *Loop) TotalSteps() int { return l.totalSteps }

// Accumulated returns the unconsumed fractional-step time, in seconds.
func (l *Loop) Accumulated() float64 { return l.accumulated }

// Run drives target through exactly numSteps fixed steps of fixedDt each,
// ignoring real elapsed time: there is no variable-rate frame loop to
// accumulate real time against, only a fixed number of simulation steps to
// run as fast as possible. cmd/racecore-drive and the scenario tests drive
// the vehicle through a Loop instead.
func Run(target Tickable, fixedDt float64, numSteps int) {
	for i := 0; i < numSteps; i++ {
		target.OnEarlyFixedTick(fixedDt)
		target.OnFixedTick(fixedDt)
		target.OnLateFixedTick(fixedDt)
	}
}
