package rayfield

import "github.com/go-gl/mathgl/mgl64"

// GeomMode selects the closed set of tracer geometries. The choice is made
// at construction time; there is no runtime dispatch in the step loop.
type GeomMode int

const (
	// Geom2D marches rays in an (r, z) slice with scalar paraxial pairs.
	Geom2D GeomMode = iota
	// GeomHybrid marches a 2D ray inside a vertical plane rotated by the
	// launch azimuth within a 3D ocean ("2D-in-3D").
	GeomHybrid
	// Geom3D is the full 3D march with 2x2 paraxial matrices.
	Geom3D
)

func (m GeomMode) String() string {
	switch m {
	case Geom2D:
		return "2D"
	case GeomHybrid:
		return "2D-in-3D"
	case Geom3D:
		return "3D"
	}
	return "unknown"
}

// Origin pins a hybrid ray's 2D marching plane inside the 3D ocean frame:
// the source position and the horizontal unit vector of the plane.
type Origin struct {
	Xs      mgl64.Vec3
	TRadial mgl64.Vec2 // (cos beta, sin beta)
}

// RayToOceanX lifts a hybrid ray position (r, z) into the ocean frame.
func (o *Origin) RayToOceanX(x mgl64.Vec2) mgl64.Vec3 {
	return mgl64.Vec3{
		o.Xs[0] + x[0]*o.TRadial[0],
		o.Xs[1] + x[0]*o.TRadial[1],
		x[1],
	}
}

// RayToOceanT lifts a hybrid ray tangent (tr, tz) into the ocean frame.
func (o *Origin) RayToOceanT(t mgl64.Vec2) mgl64.Vec3 {
	return mgl64.Vec3{t[0] * o.TRadial[0], t[0] * o.TRadial[1], t[1]}
}

// OceanToRayN projects an ocean-frame boundary normal into the ray plane.
func (o *Origin) OceanToRayN(n mgl64.Vec3) mgl64.Vec2 {
	return mgl64.Vec2{n[0]*o.TRadial[0] + n[1]*o.TRadial[1], n[2]}
}

// RayPt2D is one sample of a 2D (or hybrid) ray. The tangent T is stored as
// slowness: unit direction divided by the local sound speed C.
type RayPt2D struct {
	X   mgl64.Vec2 // (r, z)
	T   mgl64.Vec2 // slowness
	C   Real       // sound speed at X
	Tau complex128 // travel time; imaginary part accumulates loss

	Amp   Real
	Phase Real

	// Paraxial pair; Q[0] carries the geometric spreading factor.
	P mgl64.Vec2
	Q mgl64.Vec2

	NumTopBnc int32
	NumBotBnc int32
}

// RayPt3D is one sample of a full 3D ray.
type RayPt3D struct {
	X   mgl64.Vec3
	T   mgl64.Vec3 // slowness
	C   Real
	Tau complex128

	Amp   Real
	Phase Real
	Phi   Real // azimuthal angle carried along the ray

	P mgl64.Mat2
	Q mgl64.Mat2

	NumTopBnc int32
	NumBotBnc int32
}

// SpreadingDet returns the determinant of the paraxial Q state, the
// geometric spreading factor of the beam at this point.
func (p *RayPt3D) SpreadingDet() Real { return p.Q.Det() }
