package rayfield

import (
	"math"
	"sort"

	"github.com/go-gl/mathgl/mgl64"
)

// RunMode selects what the run produces. It only changes amplitude
// pre-processing and how deposits happen, never the propagation or
// termination algorithm.
type RunMode int

const (
	RunRay          RunMode = iota // trajectory-only
	RunCoherent                    // coherent pressure field
	RunSemiCoherent                // semi-coherent field (Lloyd-mirror source)
	RunEigen                       // eigenray search
	RunArrivals                    // arrival table
)

func (m RunMode) String() string {
	switch m {
	case RunRay:
		return "ray"
	case RunCoherent:
		return "coherent"
	case RunSemiCoherent:
		return "semicoherent"
	case RunEigen:
		return "eigen"
	case RunArrivals:
		return "arrivals"
	}
	return "unknown"
}

// Deposits reports whether rays in this mode feed the arrival accumulator
// or field rather than only recording trajectory points.
func (m RunMode) Deposits() bool { return m != RunRay }

// BeamType is the beam-shape sub-mode.
type BeamType int

const (
	BeamGeometric BeamType = iota
	BeamCurved
)

// Box bounds the trace around the source. In 2D the depth axis is centered
// at z = 0 regardless of source depth; the 3D box is centered on the source
// in all three axes.
type Box struct {
	X, Y, Z Real // Z doubles as the 2D depth half-extent; X as the range one
}

// Beam is the per-run beam configuration.
type Beam struct {
	Mode   RunMode
	Type   BeamType
	Box    Box
	Deltas Real // nominal step size handed to the reference stepper
}

// OutsideBox2D tests the 2D left-box termination condition. The depth test
// is absolute, not relative to the source.
func (b *Beam) OutsideBox2D(x, xs mgl64.Vec2) bool {
	return math.Abs(x[0]-xs[0]) > b.Box.X || math.Abs(x[1]) > b.Box.Z
}

// OutsideBox3D tests the 3D left-box termination condition, centered on the
// source in all three axes.
func (b *Beam) OutsideBox3D(x, xs mgl64.Vec3) bool {
	return math.Abs(x[0]-xs[0]) > b.Box.X ||
		math.Abs(x[1]-xs[1]) > b.Box.Y ||
		math.Abs(x[2]-xs[2]) > b.Box.Z
}

// BeamPattern is the source directivity table: (declination degrees,
// amplitude) pairs with angles increasing.
type BeamPattern struct {
	AngleDeg []Real
	Amp      []Real
}

// Omni is the default pattern: unit amplitude everywhere.
func Omni() *BeamPattern {
	return &BeamPattern{AngleDeg: []Real{-180, 180}, Amp: []Real{1, 1}}
}

// Interp linearly interpolates the pattern at a declination angle, clamped
// to the table interior so launch angles beyond the tabulated span reuse the
// edge segment.
func (bp *BeamPattern) Interp(declDeg Real) Real {
	n := len(bp.AngleDeg)
	i := sort.Search(n, func(k int) bool { return bp.AngleDeg[k] > declDeg }) - 1
	if i < 0 {
		i = 0
	}
	if i > n-2 {
		i = n - 2
	}
	s := (declDeg - bp.AngleDeg[i]) / (bp.AngleDeg[i+1] - bp.AngleDeg[i])
	return (1-s)*bp.Amp[i] + s*bp.Amp[i+1]
}
