package rayfield

import (
	"math"
	"testing"

	"github.com/go-gl/mathgl/mgl64"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func downgoingRay2D(angleDeg Real, c Real) RayPt2D {
	a := DegRad * angleDeg
	return RayPt2D{
		X:   mgl64.Vec2{100, 100},
		T:   mgl64.Vec2{math.Cos(a) / c, math.Sin(a) / c},
		C:   c,
		Amp: 1,
		P:   mgl64.Vec2{1, 0},
		Q:   mgl64.Vec2{500, 0},
	}
}

func TestReflectRigidBottom(t *testing.T) {
	p1 := downgoingRay2D(30, 1500)
	nB := mgl64.Vec2{0, 1}
	tB := mgl64.Vec2{1, 0}

	p2, err := StdReflector{}.Reflect(p1, HalfSpace{Cond: CondRigid}, false, tB, nB, 0, 100, IsoMedium{C: 1500})
	require.NoError(t, err)

	// specular: normal component flips, tangential survives
	assert.InDelta(t, -p1.T[1], p2.T[1], 1e-15)
	assert.InDelta(t, p1.T[0], p2.T[0], 1e-15)
	assert.Equal(t, p1.Amp, p2.Amp)
	assert.Equal(t, p1.Phase, p2.Phase)
	assert.EqualValues(t, 1, p2.NumBotBnc)
	assert.EqualValues(t, 0, p2.NumTopBnc)
}

func TestReflectVacuumTop(t *testing.T) {
	c := 1500.0
	a := DegRad * 30
	p1 := RayPt2D{
		X:   mgl64.Vec2{100, 0},
		T:   mgl64.Vec2{math.Cos(a) / c, -math.Sin(a) / c}, // heading up
		C:   c,
		Amp: 1,
	}
	nB := mgl64.Vec2{0, -1}
	tB := mgl64.Vec2{1, 0}

	p2, err := StdReflector{}.Reflect(p1, HalfSpace{Cond: CondVacuum}, true, tB, nB, 0, 100, IsoMedium{C: complex(c, 0)})
	require.NoError(t, err)

	assert.InDelta(t, math.Sin(a)/c, p2.T[1], 1e-15) // heading down again
	assert.Equal(t, 1.0, p2.Amp)
	assert.InDelta(t, math.Pi, p2.Phase, 1e-15)
	assert.EqualValues(t, 1, p2.NumTopBnc)
}

func TestReflectFluidHalfspaceLoses(t *testing.T) {
	p1 := downgoingRay2D(30, 1500)
	hs := HalfSpace{Cond: CondHalfspace, Cp: complex(1600, 0.5), Rho: 1.8}

	p2, err := StdReflector{}.Reflect(p1, hs, false, mgl64.Vec2{1, 0}, mgl64.Vec2{0, 1}, 0, 100, IsoMedium{C: 1500})
	require.NoError(t, err)

	assert.Greater(t, p2.Amp, 0.0)
	assert.Less(t, p2.Amp, p1.Amp)
	assert.EqualValues(t, 1, p2.NumBotBnc)
}

func TestReflectDegenerateTangentRay(t *testing.T) {
	p1 := downgoingRay2D(0, 1500) // grazing exactly along the boundary
	_, err := StdReflector{}.Reflect(p1, HalfSpace{Cond: CondRigid}, false, mgl64.Vec2{1, 0}, mgl64.Vec2{0, 1}, 0, 100, IsoMedium{C: 1500})
	assert.Error(t, err)
}

func TestReflectCurvatureUpdatesP(t *testing.T) {
	p1 := downgoingRay2D(30, 1500)
	flat, err := StdReflector{}.Reflect(p1, HalfSpace{Cond: CondRigid}, false, mgl64.Vec2{1, 0}, mgl64.Vec2{0, 1}, 0, 100, IsoMedium{C: 1500})
	require.NoError(t, err)
	curved, err := StdReflector{}.Reflect(p1, HalfSpace{Cond: CondRigid}, false, mgl64.Vec2{1, 0}, mgl64.Vec2{0, 1}, 0.01, 100, IsoMedium{C: 1500})
	require.NoError(t, err)

	assert.Equal(t, p1.P, flat.P)
	assert.NotEqual(t, flat.P, curved.P)
}

func TestReflect3DSpecular(t *testing.T) {
	c := 1500.0
	p1 := RayPt3D{
		X:   mgl64.Vec3{0, 0, 100},
		T:   mgl64.Vec3{0.6 / c, 0, 0.8 / c},
		C:   c,
		Amp: 1,
		P:   mgl64.Ident2(),
	}
	p2, err := NewReflector3D().Reflect(p1, HalfSpace{Cond: CondRigid}, false, mgl64.Vec3{0, 0, 1}, ReflCurvature3D{}, 100, Iso3D{C: complex(c, 0)})
	require.NoError(t, err)

	assert.InDelta(t, -p1.T[2], p2.T[2], 1e-15)
	assert.InDelta(t, p1.T[0], p2.T[0], 1e-15)
	assert.EqualValues(t, 1, p2.NumBotBnc)
}

func TestFluidRCTotalInternalReflection(t *testing.T) {
	// below the critical grazing angle a lossless hard substrate is a
	// perfect reflector
	hs := HalfSpace{Cond: CondHalfspace, Cp: 3000, Rho: 2.5}
	rc := fluidRC(1500, hs, math.Sin(DegRad*10))
	assert.InDelta(t, 1.0, cAbs(rc), 1e-9)
}
