package rayfield

import (
	"testing"

	"github.com/go-gl/mathgl/mgl64"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// flatWaveguide3D is the 3D analog of flatWaveguide2D: level surface and
// seafloor grids spanning well past the beam box.
func flatWaveguide3D(t *testing.T, mode GeomMode, runMode RunMode, boxX Real) *Params {
	t.Helper()
	grid := func(z Real, isTop bool) *Boundary3D {
		nodes := []mgl64.Vec3{
			{-5000, -5000, z}, {-5000, 5000, z},
			{5000, -5000, z}, {5000, 5000, z},
		}
		b, err := NewBoundary3D(2, 2, nodes, BdryFlat, isTop)
		require.NoError(t, err)
		return b
	}

	p := &Params{
		Mode: mode,
		Pos: &Position{
			Sx: []Real{0}, Sy: []Real{0}, Sz: []Real{50},
			Rr: []Real{500}, Rz: []Real{50}, Theta: []Real{0},

			DeltaR: 500,
		},
		Ang:   &Angles{Alpha: []Real{0}, Beta: []Real{0}, ISingleAlpha: -1},
		Freq:  &FreqInfo{Freq0: 100},
		Beam:  &Beam{Mode: runMode, Type: BeamGeometric, Box: Box{X: boxX, Y: boxX, Z: 500}, Deltas: 10},
		TopHS: HalfSpace{Cond: CondVacuum},
		BotHS: HalfSpace{Cond: CondRigid},
		Top3D: grid(0, true),
		Bot3D: grid(100, false),
		Med2D: IsoMedium{C: 1500},
		Med3D: Iso3D{C: 1500},
	}
	require.NoError(t, p.Validate())
	return p
}

func runRay3D(t *testing.T, tr *Tracer3D, p0 RayPt3D) (last RayPt3D, nSteps, is int32) {
	t.Helper()
	for {
		p1, p2, n, err := tr.Update(p0)
		require.NoError(t, err)
		if n == 2 {
			p0 = p2
		} else {
			p0 = p1
		}
		is += int32(n)
		if ns, stop := tr.Terminate(p0, is); stop {
			return p0, ns, is
		}
		require.Less(t, is, int32(1<<20), "ray did not terminate")
	}
}

func TestTracer3DHorizontalRayLeavesBox(t *testing.T) {
	env := flatWaveguide3D(t, Geom3D, RunRay, 1000)
	tr := NewTracer3D(env, NewStepper3D(10), NewReflector3D())

	p0, ok := tr.Init(LaunchIndex{})
	require.True(t, ok)
	assert.InDelta(t, 1.0/1500, p0.T.Len(), 1e-15)

	last, nSteps, is := runRay3D(t, tr, p0)
	assert.Greater(t, last.X[0], 1000.0)
	assert.InDelta(t, 0, last.X[1], 1e-9)
	assert.InDelta(t, 50, last.X[2], 1e-9)
	assert.EqualValues(t, 0, last.NumTopBnc+last.NumBotBnc)
	assert.Equal(t, is+1, nSteps)
}

func TestTracer3DLowSideEscapeDiscardsStep(t *testing.T) {
	// box larger than the tabulated grids: the ray walks off the low-x edge
	env := flatWaveguide3D(t, Geom3D, RunRay, 6000)
	env.Ang.Beta = []Real{DegRad * 180}
	tr := NewTracer3D(env, NewStepper3D(10), NewReflector3D())

	p0, ok := tr.Init(LaunchIndex{})
	require.True(t, ok)

	last, nSteps, is := runRay3D(t, tr, p0)
	assert.Less(t, last.X[0], -5000.0)
	// the step that escaped the tabulated extent is dropped
	assert.Equal(t, is, nSteps)
}

func TestTracer3DHighSideEscapeKeepsStep(t *testing.T) {
	env := flatWaveguide3D(t, Geom3D, RunRay, 6000)
	tr := NewTracer3D(env, NewStepper3D(10), NewReflector3D())

	p0, ok := tr.Init(LaunchIndex{})
	require.True(t, ok)

	last, nSteps, is := runRay3D(t, tr, p0)
	assert.Greater(t, last.X[0], 5000.0)
	assert.Equal(t, is+1, nSteps)
}

func TestTracer3DDeepSourceStaysInBox(t *testing.T) {
	// channel at 900..1100 m: the box depth test is relative to the source,
	// so a modest Box.Z must not kill the ray at launch
	grid := func(z Real, isTop bool) *Boundary3D {
		nodes := []mgl64.Vec3{
			{-5000, -5000, z}, {-5000, 5000, z},
			{5000, -5000, z}, {5000, 5000, z},
		}
		b, err := NewBoundary3D(2, 2, nodes, BdryFlat, isTop)
		require.NoError(t, err)
		return b
	}
	env := flatWaveguide3D(t, Geom3D, RunRay, 1000)
	env.Pos.Sz = []Real{1000}
	env.Pos.Rz = []Real{1000}
	env.Top3D = grid(900, true)
	env.Bot3D = grid(1100, false)
	tr := NewTracer3D(env, NewStepper3D(10), NewReflector3D())

	p0, ok := tr.Init(LaunchIndex{})
	require.True(t, ok)

	p1, _, n, err := tr.Update(p0)
	require.NoError(t, err)
	require.Equal(t, 1, n)
	_, stop := tr.Terminate(p1, 1)
	require.False(t, stop)

	last, _, _ := runRay3D(t, tr, p1)
	assert.Greater(t, last.X[0], 1000.0)
	assert.InDelta(t, 1000, last.X[2], 1e-9)
}

// dirRecordingMedium records the direction of the latest sample query.
type dirRecordingMedium struct {
	last mgl64.Vec3
}

func (m *dirRecordingMedium) Sample(_, dir mgl64.Vec3) (complex128, mgl64.Vec3, error) {
	m.last = dir
	return 1500, mgl64.Vec3{}, nil
}

func TestTracer3DInitSamplesWithVertical(t *testing.T) {
	env := flatWaveguide3D(t, Geom3D, RunRay, 1000)
	med := &dirRecordingMedium{}
	env.Med3D = med
	env.Ang.Alpha = []Real{DegRad * 30}
	tr := NewTracer3D(env, NewStepper3D(10), NewReflector3D())

	_, ok := tr.Init(LaunchIndex{})
	require.True(t, ok)
	// a direction-sensitive medium sees the same state for every launch angle
	assert.Equal(t, mgl64.Vec3{0, 0, 1}, med.last)
}

func TestTracer3DSteepRayBounces(t *testing.T) {
	env := flatWaveguide3D(t, Geom3D, RunRay, 1000)
	env.Ang.Alpha = []Real{DegRad * 45}
	tr := NewTracer3D(env, NewStepper3D(10), NewReflector3D())

	p0, ok := tr.Init(LaunchIndex{})
	require.True(t, ok)

	last, _, _ := runRay3D(t, tr, p0)
	assert.GreaterOrEqual(t, last.NumBotBnc, int32(4))
	assert.GreaterOrEqual(t, last.NumTopBnc, int32(4))
	assert.Equal(t, 1.0, last.Amp)
}

func TestTracerHybridRayInLaunchPlane(t *testing.T) {
	env := flatWaveguide3D(t, GeomHybrid, RunRay, 1000)
	env.Ang.Beta = []Real{DegRad * 45}
	tr := NewTracerHybrid(env, NewStepperHybrid(10), StdReflector{})

	p0, ok := tr.Init(LaunchIndex{})
	require.True(t, ok)

	var is int32
	for {
		p1, p2, n, err := tr.Update(p0)
		require.NoError(t, err)
		if n == 2 {
			p0 = p2
		} else {
			p0 = p1
		}
		is += int32(n)
		if _, stop := tr.Terminate(p0, is); stop {
			break
		}
		require.Less(t, is, int32(1<<20))
	}

	// the ray never leaves the vertical plane fixed by the launch azimuth
	org := tr.Origin()
	xo := org.RayToOceanX(p0.X)
	assert.InDelta(t, xo[0], xo[1], 1e-9)
	assert.Greater(t, xo[0], 1000.0/2)
	assert.InDelta(t, 50, xo[2], 1e-9)
}

func TestTracerHybridBackwardTerminates(t *testing.T) {
	env := flatWaveguide3D(t, GeomHybrid, RunRay, 1000)
	env.Ang.Alpha = []Real{DegRad * 120} // launched past vertical
	tr := NewTracerHybrid(env, NewStepperHybrid(10), StdReflector{})

	p0, ok := tr.Init(LaunchIndex{})
	require.True(t, ok)
	assert.Less(t, p0.T[0], 0.0)

	p1, _, n, err := tr.Update(p0)
	require.NoError(t, err)
	require.Equal(t, 1, n)
	nSteps, stop := tr.Terminate(p1, 1)
	assert.True(t, stop)
	assert.EqualValues(t, 2, nSteps)
}

func TestRcvrAngles3D(t *testing.T) {
	c := 1500.0
	p := RayPt3D{T: mgl64.Vec3{1 / c, 0, 0}}
	decl, azim := RcvrAngles3D(&p)
	assert.InDelta(t, 0, decl, 1e-12)
	assert.InDelta(t, 0, azim, 1e-12)

	p.T = mgl64.Vec3{0, 1 / c, 1 / c}
	decl, azim = RcvrAngles3D(&p)
	assert.InDelta(t, 45, decl, 1e-9)
	assert.InDelta(t, 90, azim, 1e-9)
}
