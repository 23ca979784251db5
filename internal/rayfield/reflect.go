package rayfield

import (
	"fmt"
	"math"
	"math/cmplx"

	"github.com/go-gl/mathgl/mgl64"
)

// BoundaryCond selects the acoustic condition applied at a boundary.
type BoundaryCond int

const (
	// CondVacuum: pressure release surface, R = -1.
	CondVacuum BoundaryCond = iota
	// CondRigid: perfectly rigid, R = +1.
	CondRigid
	// CondHalfspace: fluid halfspace with its own sound speed and density.
	CondHalfspace
)

// HalfSpace describes the medium on the far side of a boundary. Cp may be
// complex to model attenuation in the substrate. Rho is relative to the
// water column (water = 1).
type HalfSpace struct {
	Cond BoundaryCond
	Cp   complex128
	Rho  Real
}

// ReflCurvature3D carries the interpolated surface second derivatives and
// curvature coefficients at a 3D reflection point.
type ReflCurvature3D struct {
	Zxx, Zxy, Zyy Real
	Kxx, Kxy, Kyy Real
}

// Reflector2D applies the law of reflection to a ray state sitting just past
// a boundary, given the intersection geometry computed by the propagator.
// The resolver owns the bounce-counter increment.
type Reflector2D interface {
	Reflect(p1 RayPt2D, hs HalfSpace, isTop bool, tBdry, nBdry mgl64.Vec2, kappa Real, freq Real, med Medium2D) (RayPt2D, error)
}

// Reflector3D is the 3D contract.
type Reflector3D interface {
	Reflect(p1 RayPt3D, hs HalfSpace, isTop bool, nBdry mgl64.Vec3, rcurv ReflCurvature3D, freq Real, med Medium3D) (RayPt3D, error)
}

// fluidRC is the plane-wave reflection coefficient between the water column
// (c1, rho 1) and a fluid halfspace, at grazing angle thetaGraz.
func fluidRC(c1 Real, hs HalfSpace, sinGraz Real) complex128 {
	if sinGraz < 1e-12 {
		sinGraz = 1e-12
	}
	cosGraz := math.Sqrt(math.Max(0, 1-sinGraz*sinGraz))
	// Snell: cos(theta2) = cos(theta1) * c2/c1, complex for lossy substrates
	cos2 := complex(cosGraz, 0) * hs.Cp / complex(c1, 0)
	sin2 := cmplx.Sqrt(1 - cos2*cos2)
	z1 := complex(c1/sinGraz, 0)
	z2 := complex(hs.Rho, 0) * hs.Cp / sin2
	return (z2 - z1) / (z2 + z1)
}

// StdReflector is the reference resolver: specular slowness reflection, a
// boundary-curvature correction of the paraxial pair, and an amplitude/phase
// update from the boundary condition.
type StdReflector struct{}

func (StdReflector) Reflect(p1 RayPt2D, hs HalfSpace, isTop bool, tBdry, nBdry mgl64.Vec2, kappa Real, freq Real, med Medium2D) (RayPt2D, error) {
	th := p1.T.Dot(nBdry)
	tg := p1.T.Dot(tBdry)
	if th == 0 {
		return RayPt2D{}, fmt.Errorf("degenerate reflection: ray tangent in boundary plane")
	}

	p2 := p1
	p2.T = p1.T.Sub(nBdry.Mul(2 * th))

	// curvature of the surface re-focuses the beam: rank-one update of p
	// through q, scaled by the incidence geometry
	c2 := p1.C * p1.C
	rm := tg / th
	rn := 2 * kappa / (c2 * th) * (1 + rm*rm)
	if isTop {
		rn = -rn
	}
	p2.P = p1.P.Add(p2.Q.Mul(rn))

	sinGraz := math.Abs(th) * p1.C // |t| = 1/c, so t.n scaled by c is the sine
	applyRC(&p2.Amp, &p2.Phase, hs, p1.C, sinGraz)

	if isTop {
		p2.NumTopBnc++
	} else {
		p2.NumBotBnc++
	}
	return p2, nil
}

// Reflect3 is the Reflector3D implementation of the reference resolver.
func (StdReflector) Reflect3(p1 RayPt3D, hs HalfSpace, isTop bool, nBdry mgl64.Vec3, rcurv ReflCurvature3D, freq Real, med Medium3D) (RayPt3D, error) {
	th := p1.T.Dot(nBdry)
	if th == 0 {
		return RayPt3D{}, fmt.Errorf("degenerate reflection: ray tangent in boundary plane")
	}

	p2 := p1
	p2.T = p1.T.Sub(nBdry.Mul(2 * th))

	// mean surface curvature feeds the paraxial update
	kap := 0.5 * (rcurv.Kxx + rcurv.Kyy)
	c2 := p1.C * p1.C
	rn := 2 * kap / (c2 * th)
	if isTop {
		rn = -rn
	}
	p2.P = p1.P.Add(p2.Q.Mul(rn))

	sinGraz := math.Abs(th) * p1.C
	applyRC(&p2.Amp, &p2.Phase, hs, p1.C, sinGraz)

	if isTop {
		p2.NumTopBnc++
	} else {
		p2.NumBotBnc++
	}
	return p2, nil
}

func applyRC(amp, phase *Real, hs HalfSpace, c1, sinGraz Real) {
	switch hs.Cond {
	case CondVacuum:
		*phase += math.Pi
	case CondRigid:
		// R = +1
	case CondHalfspace:
		rc := fluidRC(c1, hs, sinGraz)
		*amp *= cmplx.Abs(rc)
		*phase += cmplx.Phase(rc)
	}
}

type reflector3DAdapter struct{ StdReflector }

func (a reflector3DAdapter) Reflect(p1 RayPt3D, hs HalfSpace, isTop bool, nBdry mgl64.Vec3, rcurv ReflCurvature3D, freq Real, med Medium3D) (RayPt3D, error) {
	return a.Reflect3(p1, hs, isTop, nBdry, rcurv, freq, med)
}

// NewReflector3D wraps the reference resolver as a Reflector3D.
func NewReflector3D() Reflector3D { return reflector3DAdapter{} }

var _ Reflector2D = StdReflector{}
