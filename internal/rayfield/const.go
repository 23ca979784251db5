package rayfield

import "math"

// Real is the working precision of the tracer. Arrivals are stored in
// float32 to halve the footprint of the shared cell arena.
type Real = float64

const (
	RadDeg = 180.0 / math.Pi
	DegRad = math.Pi / 180.0

	// A ray below this amplitude has effectively lost its energy and is
	// terminated rather than clamped.
	ampFloor = 0.005

	// Serial-regime merge tolerance, shared by the phase test and the
	// frequency-scaled delay test.
	mergeTol = 0.05

	// 3D integrators stall occasionally near boundary junctions; give up
	// after this many consecutive undersized steps.
	maxSmallSteps = 50

	// Stop a ray while there is still room for the reflection pair of the
	// next update (1 step + possible reflection + terminal point).
	storageSlack = 3

	// Default trajectory storage per ray.
	MaxSteps = 100000
)
