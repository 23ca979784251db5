package rayfield

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func fanAngles(fromDeg, toDeg Real, n int) *Angles {
	a := &Angles{Alpha: make([]Real, n), ISingleAlpha: -1}
	for i := 0; i < n; i++ {
		a.Alpha[i] = DegRad * (fromDeg + (toDeg-fromDeg)*Real(i)/Real(n-1))
	}
	a.Dalpha = (a.Alpha[n-1] - a.Alpha[0]) / Real(n-1)
	return a
}

func TestRunArrivalsSerial(t *testing.T) {
	env := flatWaveguide2D(t, RunArrivals, 10)
	env.Ang = fanAngles(-10, 10, 5)
	env.ArrMemory = 44 * 16

	out, err := Run(env, 1)
	require.NoError(t, err)

	assert.True(t, out.Arr.AllowMerging)
	assert.Nil(t, out.Rays)
	// the horizontal ray crosses the receiver range at receiver depth
	assert.Positive(t, out.Arr.Count(0))
	rec := out.Arr.Records(0)[0]
	assert.Positive(t, rec.Amp)
	assert.Positive(t, real(rec.Delay))
}

func TestRunArrivalsConcurrent(t *testing.T) {
	env := flatWaveguide2D(t, RunArrivals, 10)
	env.Ang = fanAngles(-10, 10, 5)
	env.ArrMemory = 44 * 4 // four records for the single cell

	out, err := Run(env, 4)
	require.NoError(t, err)

	assert.False(t, out.Arr.AllowMerging)
	assert.EqualValues(t, 4, out.Arr.MaxNArr)
	assert.LessOrEqual(t, out.Arr.Count(0), out.Arr.MaxNArr)
	for _, rec := range out.Arr.Records(0) {
		assert.Positive(t, rec.Amp)
	}
}

func TestRunRayMode(t *testing.T) {
	env := flatWaveguide2D(t, RunRay, 10)
	env.Ang = fanAngles(-10, 10, 3)
	env.ArrMemory = 44 * 16

	out, err := Run(env, 2)
	require.NoError(t, err)

	require.Len(t, out.Rays, 3)
	for i := range out.Rays {
		ray := &out.Rays[i]
		assert.Positive(t, ray.NSteps)
		assert.NotEmpty(t, ray.Pts2D)
		assert.LessOrEqual(t, len(ray.Pts2D), int(ray.NSteps))
		// every ray leaves through the box range
		lastPt := ray.Pts2D[len(ray.Pts2D)-1]
		assert.Greater(t, lastPt.X[0], 900.0)
	}
	// no deposits in trajectory mode
	for cell := range out.Arr.NArr {
		assert.Zero(t, out.Arr.NArr[cell])
	}
}

func TestRunSingleAngle(t *testing.T) {
	env := flatWaveguide2D(t, RunRay, 10)
	env.Ang = fanAngles(-10, 10, 5)
	env.Ang.ISingleAlpha = 2
	env.ArrMemory = 44 * 16

	out, err := Run(env, 1)
	require.NoError(t, err)
	require.Len(t, out.Rays, 1)
	assert.InDelta(t, 0, out.Rays[0].Info.SrcDeclAngle, 1e-9)
}

func TestRunSkipsOutOfChannelSource(t *testing.T) {
	env := flatWaveguide2D(t, RunRay, 10)
	env.Pos.Sz = []Real{150}
	env.ArrMemory = 44 * 16

	out, err := Run(env, 1)
	require.NoError(t, err)
	require.Len(t, out.Rays, 1)
	assert.Zero(t, out.Rays[0].NSteps)
	assert.Empty(t, out.Rays[0].Pts2D)
}

func TestRunValidatesParams(t *testing.T) {
	env := flatWaveguide2D(t, RunRay, 10)
	env.Freq.Freq0 = -1
	_, err := Run(env, 1)
	assert.Error(t, err)
}

func TestForWorkerClonesStatefulMedia(t *testing.T) {
	prof, err := NewProfileMedium([]Real{0, 200}, []complex128{1500, 1550})
	require.NoError(t, err)
	env := flatWaveguide2D(t, RunArrivals, 10)
	env.Med2D = prof
	env.Med3D = prof.As3D()

	// each worker must get its own copy of the hinted sampler
	w := env.forWorker()
	require.NotSame(t, prof, w.Med2D.(*ProfileMedium))
	require.NotSame(t, prof, w.Med3D.(medium3DFromProfile).p)

	// stateless samplers are shared as-is
	env.Med2D = IsoMedium{C: 1500}
	assert.Equal(t, IsoMedium{C: 1500}, env.forWorker().Med2D)
}

func TestCaptureConvertsPanic(t *testing.T) {
	err := capture(func() error { panic("numerical fault") })
	require.Error(t, err)
	assert.Contains(t, err.Error(), "numerical fault")

	assert.NoError(t, capture(func() error { return nil }))
}

func TestRun3DArrivals(t *testing.T) {
	env := flatWaveguide3D(t, Geom3D, RunArrivals, 1000)
	env.Ang = fanAngles(-10, 10, 5)
	env.Ang.Beta = []Real{0}
	env.ArrMemory = 44 * 16

	out, err := Run(env, 1)
	require.NoError(t, err)
	assert.Positive(t, out.Arr.Count(0))
}

func TestRunHybridRayMode(t *testing.T) {
	env := flatWaveguide3D(t, GeomHybrid, RunRay, 1000)
	env.ArrMemory = 44 * 16

	out, err := Run(env, 1)
	require.NoError(t, err)
	require.Len(t, out.Rays, 1)
	ray := &out.Rays[0]
	assert.Positive(t, ray.NSteps)
	assert.NotEmpty(t, ray.Pts2D)
	assert.NotZero(t, ray.Org.TRadial)
}
