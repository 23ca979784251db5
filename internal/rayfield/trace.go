package rayfield

import (
	"log/slog"
	"math"

	"github.com/go-gl/mathgl/mgl64"
)

// Tracer2D drives one 2D ray at a time: initialization, per-step update with
// reflection handling, and termination. All of its state is owned by a
// single worker for the duration of one ray.
type Tracer2D struct {
	env     *Params
	stepper Stepper2D
	refl    Reflector2D

	rinit RayInfo
	bds   BdryState2D

	distBegTop, distBegBot Real
	distEndTop, distEndBot Real
	smallSteps             int32
}

// NewTracer2D wires a tracer to the run tables and collaborators.
func NewTracer2D(env *Params, stepper Stepper2D, refl Reflector2D) *Tracer2D {
	return &Tracer2D{env: env, stepper: stepper, refl: refl}
}

// Info returns the launch bookkeeping of the current ray.
func (t *Tracer2D) Info() RayInfo { return t.rinit }

// bdryGeom2D interpolates the intersection geometry for a crossing at x.
// Curved segments blend the node frames by the fractional position along
// the segment; flat segments use the per-segment constants.
func bdryGeom2D(b *Boundary2D, st *BdrySeg2D, x mgl64.Vec2) (tInt, nInt mgl64.Vec2, kappa Real) {
	bd0 := &b.Pts[st.ISeg]
	bd1 := &b.Pts[st.ISeg+1]
	if b.Curve == BdryCurved {
		sss := x.Sub(st.X).Dot(bd0.T) / bd0.Len // proportional distance along segment
		nInt = bd0.NodeN.Mul(1 - sss).Add(bd1.NodeN.Mul(sss))
		tInt = bd0.NodeT.Mul(1 - sss).Add(bd1.NodeT.Mul(sss))
	} else {
		nInt = bd0.N // constant within a flat segment
		tInt = bd0.T
	}
	return tInt, nInt, bd0.Kappa
}

// Update advances the ray by one logical step. It reports the pre-step,
// tentative, and (when reflected) post-reflection states plus the number of
// physical steps taken (1 or 2); both states of a reflection pair become
// observable trajectory/deposit points.
func (t *Tracer2D) Update(p0 RayPt2D) (p1, p2 RayPt2D, nSteps int, err error) {
	env := t.env
	p1, topRefl, botRefl, err := t.stepper.Step(p0, &t.bds, env.Med2D, &t.smallSteps)
	if err != nil {
		return p1, p2, 0, err
	}

	env.Top2D.Locate(p1.X, p1.T, &t.bds.Top)
	env.Bot2D.Locate(p1.X, p1.T, &t.bds.Bot)
	t.distEndTop, t.distEndBot = Distances2D(p1.X, &t.bds.Top, &t.bds.Bot)

	if !topRefl && !botRefl {
		return p1, p2, 1, nil
	}

	// top takes priority when both flags are up (corner hit)
	isTop := topRefl
	var bdry *Boundary2D
	var st *BdrySeg2D
	var hs HalfSpace
	if isTop {
		bdry, st, hs = env.Top2D, &t.bds.Top, env.TopHS
	} else {
		bdry, st, hs = env.Bot2D, &t.bds.Bot, env.BotHS
	}

	tInt, nInt, kappa := bdryGeom2D(bdry, st, p1.X)
	p2, err = t.refl.Reflect(p1, hs, isTop, tInt, nInt, kappa, env.Freq.Freq0, env.Med2D)
	if err != nil {
		return p1, p2, 0, err
	}
	t.distEndTop, t.distEndBot = Distances2D(p2.X, &t.bds.Top, &t.bds.Bot)
	return p1, p2, 2, nil
}

// Terminate evaluates the stop conditions for the state at step index is.
// On termination it reports the recorded step count; otherwise it rolls the
// begin distances forward for the next update. The caller must not invoke
// Update or Terminate again for this ray once stop is true.
func (t *Tracer2D) Terminate(p RayPt2D, is int32) (nSteps int32, stop bool) {
	env := t.env
	xs := mgl64.Vec2{0, env.Pos.Sz[t.rinit.ISz]}

	leftbox := env.Beam.OutsideBox2D(p.X, xs)
	escaped := (t.distBegTop < 0 && t.distEndTop < 0) ||
		(t.distBegBot < 0 && t.distEndBot < 0)
	lostenergy := p.Amp < ampFloor

	if leftbox || escaped || lostenergy {
		return is + 1, true
	}
	if is >= t.env.MaxSteps-storageSlack {
		slog.Warn("insufficient storage for ray trajectory, truncating",
			"isz", t.rinit.ISz, "ialpha", t.rinit.IAlpha, "steps", is)
		return is, true
	}

	t.distBegTop = t.distEndTop
	t.distBegBot = t.distEndBot
	return 0, false
}

// RcvrDeclAngle is the arrival declination of the ray direction at p,
// in degrees.
func RcvrDeclAngle2D(p *RayPt2D) Real {
	return RadDeg * math.Atan2(p.T[1], p.T[0])
}
