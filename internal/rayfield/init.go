package rayfield

import (
	"fmt"
	"log/slog"
	"math"

	"github.com/go-gl/mathgl/mgl64"
)

// LaunchIndex addresses one (source, launch-angle) job. An index outside its
// table is a programming-contract violation, not user data: initializers
// panic rather than return an error.
type LaunchIndex struct {
	ISx, ISy, ISz int32
	IAlpha, IBeta int32
}

func (li LaunchIndex) check2D(pos *Position, ang *Angles) {
	if li.ISz < 0 || li.ISz >= pos.NSz() || li.IAlpha < 0 || li.IAlpha >= ang.NAlpha() {
		panic(fmt.Sprintf("invalid launch index %+v for %d source depths, %d angles",
			li, pos.NSz(), ang.NAlpha()))
	}
}

func (li LaunchIndex) check3D(pos *Position, ang *Angles) {
	li.check2D(pos, ang)
	if li.ISx < 0 || li.ISx >= pos.NSx() ||
		li.ISy < 0 || li.ISy >= pos.NSy() ||
		li.IBeta < 0 || li.IBeta >= ang.NBeta() {
		panic(fmt.Sprintf("invalid launch index %+v for %dx%d source grid, %d azimuths",
			li, pos.NSx(), pos.NSy(), ang.NBeta()))
	}
}

// RayInfo carries the launch bookkeeping every deposit wants alongside the
// evolving ray state.
type RayInfo struct {
	LaunchIndex
	SrcDeclAngle Real // degrees
	SrcAzimAngle Real // degrees
}

// initAmp resolves the initial amplitude from the source beam pattern, with
// the Lloyd-mirror correction for semi-coherent runs.
func initAmp(env *Params, declDeg, alpha, c, zs Real) Real {
	amp := env.Pat.Interp(declDeg)
	if env.Beam.Mode == RunSemiCoherent {
		omega := env.Freq.Omega()
		amp *= math.Sqrt(2) * math.Abs(math.Sin(omega/c*zs*math.Sin(alpha)))
	}
	return amp
}

// warnTooFewBeams emits the 2D angular-sampling diagnostic: below the
// theoretical minimum fan density the coherent field will alias. Only
// checked once per run, on the first angle.
func warnTooFewBeams(env *Params, c Real) {
	rMax := env.Pos.Rr[env.Pos.NRr()-1]
	dAlphaOpt := math.Sqrt(c / (6 * env.Freq.Freq0 * rMax))
	nAlphaOpt := 2 + int32((env.Ang.Alpha[env.Ang.NAlpha()-1]-env.Ang.Alpha[0])/dAlphaOpt)
	if env.Ang.NAlpha() < nAlphaOpt {
		slog.Warn("too few beams for coherent field",
			"nalpha", env.Ang.NAlpha(), "recommended", nAlphaOpt)
	}
}

// Init builds the starting state of one 2D ray. ok is false when the source
// sits on or outside a boundary; the ray then contributes zero steps.
func (t *Tracer2D) Init(li LaunchIndex) (RayPt2D, bool) {
	env := t.env
	li.check2D(env.Pos, env.Ang)

	alpha := env.Ang.Alpha[li.IAlpha]
	t.rinit = RayInfo{LaunchIndex: li, SrcDeclAngle: RadDeg * alpha}
	xs := mgl64.Vec2{0, env.Pos.Sz[li.ISz]}

	tinit := mgl64.Vec2{math.Cos(alpha), math.Sin(alpha)}
	ccpx, _, err := env.Med2D.Sample(xs, tinit)
	if err != nil {
		slog.Error("medium sample failed at source", "err", err)
		return RayPt2D{}, false
	}
	c := real(ccpx)

	if env.Beam.Mode == RunCoherent && li.IAlpha == 0 && env.Pos.NRr() > 0 {
		warnTooFewBeams(env, c)
	}

	var p0 RayPt2D
	p0.X = xs
	p0.C = c
	p0.T = tinit.Mul(1 / c)
	p0.Tau = 0
	p0.Amp = initAmp(env, t.rinit.SrcDeclAngle, alpha, c, xs[1])
	p0.Phase = 0
	p0.P = mgl64.Vec2{1, 0}
	p0.Q = mgl64.Vec2{0, 1}
	// second paraxial component is unused by geometric beams; zeroing it
	// saves the downstream work
	if env.Beam.Type == BeamGeometric {
		p0.Q = mgl64.Vec2{0, 0}
	}
	p0.NumTopBnc = 0
	p0.NumBotBnc = 0

	t.bds.Top = BdrySeg2D{}
	t.bds.Bot = BdrySeg2D{}
	env.Top2D.Locate(xs, p0.T, &t.bds.Top)
	env.Bot2D.Locate(xs, p0.T, &t.bds.Bot)
	t.distBegTop, t.distBegBot = Distances2D(p0.X, &t.bds.Top, &t.bds.Bot)
	t.smallSteps = 0

	if t.distBegTop <= 0 || t.distBegBot <= 0 {
		slog.Info("source on or outside the boundaries, skipping ray",
			"isz", li.ISz, "ialpha", li.IAlpha)
		return RayPt2D{}, false
	}
	return p0, true
}

// Init builds the starting state of one hybrid (2D-in-3D) ray.
func (t *TracerHybrid) Init(li LaunchIndex) (RayPt2D, bool) {
	env := t.env
	li.check3D(env.Pos, env.Ang)

	alpha := env.Ang.Alpha[li.IAlpha]
	beta := env.Ang.Beta[li.IBeta]
	t.rinit = RayInfo{
		LaunchIndex:  li,
		SrcDeclAngle: RadDeg * alpha,
		SrcAzimAngle: RadDeg * beta,
	}
	xs := mgl64.Vec3{env.Pos.Sx[li.ISx], env.Pos.Sy[li.ISy], env.Pos.Sz[li.ISz]}
	t.org = Origin{Xs: xs, TRadial: mgl64.Vec2{math.Cos(beta), math.Sin(beta)}}

	tinit := mgl64.Vec2{math.Cos(alpha), math.Sin(alpha)}
	ccpx, _, err := env.Med2D.Sample(mgl64.Vec2{0, xs[2]}, mgl64.Vec2{0, 1})
	if err != nil {
		slog.Error("medium sample failed at source", "err", err)
		return RayPt2D{}, false
	}
	c := real(ccpx)

	var p0 RayPt2D
	p0.X = mgl64.Vec2{0, xs[2]}
	p0.C = c
	p0.T = tinit.Mul(1 / c)
	p0.Amp = initAmp(env, t.rinit.SrcDeclAngle, alpha, c, xs[2])
	p0.P = mgl64.Vec2{1, 0}
	p0.Q = mgl64.Vec2{0, 1}

	t.bds.Top = BdrySeg3D{}
	t.bds.Bot = BdrySeg3D{}
	tOcean := t.org.RayToOceanT(p0.T)
	env.Top3D.Locate(xs, tOcean, &t.bds.Top)
	env.Bot3D.Locate(xs, tOcean, &t.bds.Bot)
	t.distBegTop, t.distBegBot = Distances3D(xs, &t.bds.Top, &t.bds.Bot)
	t.smallSteps = 0

	if t.distBegTop <= 0 || t.distBegBot <= 0 {
		slog.Info("source on or outside the boundaries, skipping ray",
			"isx", li.ISx, "isy", li.ISy, "isz", li.ISz)
		return RayPt2D{}, false
	}
	return p0, true
}

// Init builds the starting state of one full 3D ray.
func (t *Tracer3D) Init(li LaunchIndex) (RayPt3D, bool) {
	env := t.env
	li.check3D(env.Pos, env.Ang)

	alpha := env.Ang.Alpha[li.IAlpha]
	beta := env.Ang.Beta[li.IBeta]
	t.rinit = RayInfo{
		LaunchIndex:  li,
		SrcDeclAngle: RadDeg * alpha,
		SrcAzimAngle: RadDeg * beta,
	}
	xs := mgl64.Vec3{env.Pos.Sx[li.ISx], env.Pos.Sy[li.ISy], env.Pos.Sz[li.ISz]}

	tinit := mgl64.Vec3{
		math.Cos(alpha) * math.Cos(beta),
		math.Cos(alpha) * math.Sin(beta),
		math.Sin(alpha),
	}
	// the source sample queries with the vertical so a direction-sensitive
	// medium sees the same state for every launch angle
	ccpx, _, err := env.Med3D.Sample(xs, mgl64.Vec3{0, 0, 1})
	if err != nil {
		slog.Error("medium sample failed at source", "err", err)
		return RayPt3D{}, false
	}
	c := real(ccpx)

	var p0 RayPt3D
	p0.X = xs
	p0.C = c
	p0.T = tinit.Mul(1 / c)
	p0.Amp = initAmp(env, t.rinit.SrcDeclAngle, alpha, c, xs[2])
	p0.Phi = beta
	p0.P = mgl64.Ident2()
	p0.Q = mgl64.Mat2{}

	t.bds.Top = BdrySeg3D{}
	t.bds.Bot = BdrySeg3D{}
	env.Top3D.Locate(xs, tinit, &t.bds.Top)
	env.Bot3D.Locate(xs, tinit, &t.bds.Bot)
	t.distBegTop, t.distBegBot = Distances3D(p0.X, &t.bds.Top, &t.bds.Bot)
	t.smallSteps = 0

	if t.distBegTop <= 0 || t.distBegBot <= 0 {
		slog.Info("source on or outside the boundaries, skipping ray",
			"isx", li.ISx, "isy", li.ISy, "isz", li.ISz)
		return RayPt3D{}, false
	}
	return p0, true
}
