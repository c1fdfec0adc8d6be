package vehicle

// Inputs is the driver input surface sampled once per fixed tick. Deadzones
// and trigger remaps are the caller's concern (applied at whatever reads
// the physical controller); the core only sees normalized values.
type Inputs struct {
	Throttle float64 // 0..1
	Brake    float64 // 0..1
	Steer    float64 // -1..1, positive = right
	Handbrake float64 // 0..1

	UpshiftEdge   bool
	DownshiftEdge bool
}
