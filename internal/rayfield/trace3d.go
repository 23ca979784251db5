package rayfield

import (
	"log/slog"
	"math"

	"github.com/go-gl/mathgl/mgl64"
)

// bdryGeom3D interpolates intersection geometry on a quad boundary segment.
// Curved grids blend the four corner normals with bilinear weights from the
// fractional position inside the quad; curvature comes from the anchor
// corner. Flat grids use the quad-constant frame.
func bdryGeom3D(b *Boundary3D, st *BdrySeg3D, x mgl64.Vec3) (nInt mgl64.Vec3, rcurv ReflCurvature3D) {
	if b.Curve != BdryCurved {
		return st.N, ReflCurvature3D{}
	}
	s1 := (x[0] - st.X[0]) / (st.LSegX.Max - st.LSegX.Min)
	s2 := (x[1] - st.X[1]) / (st.LSegY.Max - st.LSegY.Min)
	m1 := 1 - s1
	m2 := 1 - s2

	bd00 := b.at(st.ISegX, st.ISegY)
	bd01 := b.at(st.ISegX, st.ISegY+1)
	bd10 := b.at(st.ISegX+1, st.ISegY)
	bd11 := b.at(st.ISegX+1, st.ISegY+1)

	nInt = bd00.NodeN.Mul(m1 * m2).
		Add(bd10.NodeN.Mul(s1 * m2)).
		Add(bd11.NodeN.Mul(s1 * s2)).
		Add(bd01.NodeN.Mul(m1 * s2))
	rcurv = ReflCurvature3D{
		Zxx: bd00.Zxx, Zxy: bd00.Zxy, Zyy: bd00.Zyy,
		Kxx: bd00.Kxx, Kxy: bd00.Kxy, Kyy: bd00.Kyy,
	}
	return nInt, rcurv
}

// escaped3D tests the horizontal position against the tabulated extent of
// both boundary grids. Low-side and high-side escapes terminate differently
// so they are reported as distinct flags.
func escaped3D(x mgl64.Vec3, top, bot *Boundary3D) (escaped0, escapedN bool) {
	tx0, ty0, tx1, ty1 := top.Extent()
	bx0, by0, bx1, by1 := bot.Extent()
	escaped0 = x[0] < math.Max(bx0, tx0) || x[1] < math.Max(by0, ty0)
	escapedN = x[0] > math.Max(bx1, tx1) || x[1] > math.Max(by1, ty1)
	return escaped0, escapedN
}

// Tracer3D drives one full 3D ray.
type Tracer3D struct {
	env     *Params
	stepper Stepper3D
	refl    Reflector3D

	rinit RayInfo
	bds   BdryState3D

	distBegTop, distBegBot Real
	distEndTop, distEndBot Real
	smallSteps             int32
}

// NewTracer3D wires a 3D tracer to the run tables and collaborators.
func NewTracer3D(env *Params, stepper Stepper3D, refl Reflector3D) *Tracer3D {
	return &Tracer3D{env: env, stepper: stepper, refl: refl}
}

// Info returns the launch bookkeeping of the current ray.
func (t *Tracer3D) Info() RayInfo { return t.rinit }

// Update advances the ray by one logical step; see Tracer2D.Update.
func (t *Tracer3D) Update(p0 RayPt3D) (p1, p2 RayPt3D, nSteps int, err error) {
	env := t.env
	p1, topRefl, botRefl, err := t.stepper.Step(p0, &t.bds, env.Med3D, &t.smallSteps)
	if err != nil {
		return p1, p2, 0, err
	}

	env.Top3D.Locate(p1.X, p1.T, &t.bds.Top)
	env.Bot3D.Locate(p1.X, p1.T, &t.bds.Bot)
	t.distEndTop, t.distEndBot = Distances3D(p1.X, &t.bds.Top, &t.bds.Bot)

	if !topRefl && !botRefl {
		return p1, p2, 1, nil
	}

	isTop := topRefl
	var bdry *Boundary3D
	var st *BdrySeg3D
	var hs HalfSpace
	if isTop {
		bdry, st, hs = env.Top3D, &t.bds.Top, env.TopHS
	} else {
		bdry, st, hs = env.Bot3D, &t.bds.Bot, env.BotHS
	}

	nInt, rcurv := bdryGeom3D(bdry, st, p1.X)
	p2, err = t.refl.Reflect(p1, hs, isTop, nInt, rcurv, env.Freq.Freq0, env.Med3D)
	if err != nil {
		return p1, p2, 0, err
	}
	t.distEndTop, t.distEndBot = Distances3D(p2.X, &t.bds.Top, &t.bds.Bot)
	return p1, p2, 2, nil
}

// Terminate evaluates the 3D stop conditions; see Tracer2D.Terminate. A
// low-side boundary escape discards the crossing step itself.
func (t *Tracer3D) Terminate(p RayPt3D, is int32) (nSteps int32, stop bool) {
	env := t.env
	xs := mgl64.Vec3{
		env.Pos.Sx[t.rinit.ISx],
		env.Pos.Sy[t.rinit.ISy],
		env.Pos.Sz[t.rinit.ISz],
	}

	leftbox := env.Beam.OutsideBox3D(p.X, xs)
	escaped0, escapedN := escaped3D(p.X, env.Top3D, env.Bot3D)
	lostenergy := p.Amp < ampFloor
	stalled := t.smallSteps > maxSmallSteps

	if leftbox || escaped0 || escapedN || lostenergy || stalled {
		if escaped0 {
			return is, true // crossing step is discarded on the low side
		}
		return is + 1, true
	}
	if is >= t.env.MaxSteps-storageSlack {
		slog.Warn("insufficient storage for ray trajectory, truncating",
			"isx", t.rinit.ISx, "isy", t.rinit.ISy, "isz", t.rinit.ISz,
			"ialpha", t.rinit.IAlpha, "ibeta", t.rinit.IBeta, "steps", is)
		return is, true
	}

	t.distBegTop = t.distEndTop
	t.distBegBot = t.distEndBot
	return 0, false
}

// TracerHybrid drives one 2D-in-3D ray: a 2D state marched inside a
// vertical plane of the 3D ocean fixed by the launch azimuth.
type TracerHybrid struct {
	env     *Params
	stepper StepperHybrid
	refl    Reflector2D

	rinit RayInfo
	org   Origin
	bds   BdryState3D

	distBegTop, distBegBot Real
	distEndTop, distEndBot Real
	smallSteps             int32
}

// NewTracerHybrid wires a hybrid tracer to the run tables and collaborators.
func NewTracerHybrid(env *Params, stepper StepperHybrid, refl Reflector2D) *TracerHybrid {
	return &TracerHybrid{env: env, stepper: stepper, refl: refl}
}

// Info returns the launch bookkeeping of the current ray.
func (t *TracerHybrid) Info() RayInfo { return t.rinit }

// Origin exposes the marching plane of the current ray.
func (t *TracerHybrid) Origin() Origin { return t.org }

// Update advances the ray by one logical step. Boundary work happens in the
// ocean frame; the reflection itself happens in the ray plane with the
// boundary normal projected into it.
func (t *TracerHybrid) Update(p0 RayPt2D) (p1, p2 RayPt2D, nSteps int, err error) {
	env := t.env
	p1, topRefl, botRefl, err := t.stepper.Step(p0, &t.org, &t.bds, env.Med2D, &t.smallSteps)
	if err != nil {
		return p1, p2, 0, err
	}

	xo := t.org.RayToOceanX(p1.X)
	to := t.org.RayToOceanT(p1.T)
	env.Top3D.Locate(xo, to, &t.bds.Top)
	env.Bot3D.Locate(xo, to, &t.bds.Bot)
	t.distEndTop, t.distEndBot = Distances3D(xo, &t.bds.Top, &t.bds.Bot)

	if !topRefl && !botRefl {
		return p1, p2, 1, nil
	}

	isTop := topRefl
	var bdry *Boundary3D
	var st *BdrySeg3D
	var hs HalfSpace
	if isTop {
		bdry, st, hs = env.Top3D, &t.bds.Top, env.TopHS
	} else {
		bdry, st, hs = env.Bot3D, &t.bds.Bot, env.BotHS
	}

	nInt3, rcurv := bdryGeom3D(bdry, st, xo)
	nInt := t.org.OceanToRayN(nInt3)
	if l := nInt.Len(); l > 0 {
		nInt = nInt.Mul(1 / l)
	}
	tInt := mgl64.Vec2{-nInt[1], nInt[0]} // in-plane tangent of the surface
	kappa := 0.5 * (rcurv.Kxx + rcurv.Kyy)
	p2, err = t.refl.Reflect(p1, hs, isTop, tInt, nInt, kappa, env.Freq.Freq0, env.Med2D)
	if err != nil {
		return p1, p2, 0, err
	}
	xo = t.org.RayToOceanX(p2.X)
	t.distEndTop, t.distEndBot = Distances3D(xo, &t.bds.Top, &t.bds.Bot)
	return p1, p2, 2, nil
}

// Terminate evaluates the hybrid stop conditions: the 3D set plus the
// backward test, because the forward-marching plane cannot represent a ray
// heading back toward the source axis.
func (t *TracerHybrid) Terminate(p RayPt2D, is int32) (nSteps int32, stop bool) {
	env := t.env
	xo := t.org.RayToOceanX(p.X)

	leftbox := env.Beam.OutsideBox3D(xo, t.org.Xs)
	escaped0, escapedN := escaped3D(xo, env.Top3D, env.Bot3D)
	lostenergy := p.Amp < ampFloor
	backward := p.T[0] < 0
	stalled := t.smallSteps > maxSmallSteps

	if leftbox || escaped0 || escapedN || lostenergy || backward || stalled {
		if escaped0 {
			return is, true
		}
		return is + 1, true
	}
	if is >= t.env.MaxSteps-storageSlack {
		slog.Warn("insufficient storage for ray trajectory, truncating",
			"isx", t.rinit.ISx, "isy", t.rinit.ISy, "isz", t.rinit.ISz,
			"ialpha", t.rinit.IAlpha, "ibeta", t.rinit.IBeta, "steps", is)
		return is, true
	}

	t.distBegTop = t.distEndTop
	t.distBegBot = t.distEndBot
	return 0, false
}

// RcvrAngles3D reports the arrival declination and azimuth of the ray
// direction at p, in degrees.
func RcvrAngles3D(p *RayPt3D) (decl, azim Real) {
	h := math.Hypot(p.T[0], p.T[1])
	return RadDeg * math.Atan2(p.T[2], h), RadDeg * math.Atan2(p.T[1], p.T[0])
}
