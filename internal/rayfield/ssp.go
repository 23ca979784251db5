package rayfield

import (
	"fmt"
	"sort"

	"github.com/go-gl/mathgl/mgl64"
)

// Medium2D samples the sound-speed field in the (r, z) ray plane. The speed
// is complex so a profile can carry volume attenuation in its imaginary
// part; the tracer only bends rays with the real part.
type Medium2D interface {
	Sample(x, t mgl64.Vec2) (c complex128, grad mgl64.Vec2, err error)
}

// Medium3D is the 3D sampler contract.
type Medium3D interface {
	Sample(x, t mgl64.Vec3) (c complex128, grad mgl64.Vec3, err error)
}

// IsoMedium is a constant sound-speed medium. Rays travel in straight lines.
type IsoMedium struct {
	C complex128
}

func (m IsoMedium) Sample(mgl64.Vec2, mgl64.Vec2) (complex128, mgl64.Vec2, error) {
	return m.C, mgl64.Vec2{}, nil
}

// Iso3D adapts an IsoMedium to the 3D contract.
type Iso3D struct {
	C complex128
}

func (m Iso3D) Sample(mgl64.Vec3, mgl64.Vec3) (complex128, mgl64.Vec3, error) {
	return m.C, mgl64.Vec3{}, nil
}

// Samplers that keep mutable per-query state implement the cloner contracts
// so every worker can take a private copy. Stateless samplers are shared
// as-is.
type cloner2D interface{ clone2D() Medium2D }
type cloner3D interface{ clone3D() Medium3D }

// ProfileMedium interpolates a depth-tabulated sound-speed profile with
// piecewise-linear segments. Range independent, so the same profile serves
// the 2D, hybrid and 3D tracers.
type ProfileMedium struct {
	Z []Real // depths, strictly increasing
	C []complex128

	// segment hint from the previous query; makes the sampler stateful, so
	// an instance must not be shared across workers
	iSeg int
}

// NewProfileMedium validates the table and returns a sampler positioned at
// the first segment.
func NewProfileMedium(z []Real, c []complex128) (*ProfileMedium, error) {
	if len(z) < 2 || len(z) != len(c) {
		return nil, fmt.Errorf("profile needs at least 2 matched points, got %d/%d", len(z), len(c))
	}
	for i := 1; i < len(z); i++ {
		if z[i] <= z[i-1] {
			return nil, fmt.Errorf("profile depths not increasing at index %d", i)
		}
	}
	return &ProfileMedium{Z: z, C: c}, nil
}

func (m *ProfileMedium) locate(z Real) int {
	i := m.iSeg
	n := len(m.Z) - 1
	if i < 0 || i >= n {
		i = 0
	}
	// hint walk, then binary search if the query jumped
	for j := 0; j < 2; j++ {
		if i > 0 && z < m.Z[i] {
			i--
		} else if i < n-1 && z >= m.Z[i+1] {
			i++
		} else {
			m.iSeg = i
			return i
		}
	}
	i = sort.Search(n, func(k int) bool { return z < m.Z[k+1] })
	if i >= n {
		i = n - 1
	}
	m.iSeg = i
	return i
}

func (m *ProfileMedium) sampleZ(z Real) (complex128, Real) {
	i := m.locate(z)
	h := m.Z[i+1] - m.Z[i]
	w := (z - m.Z[i]) / h
	if w < 0 {
		w = 0
	} else if w > 1 {
		w = 1
	}
	c := complex(1-w, 0)*m.C[i] + complex(w, 0)*m.C[i+1]
	gz := real(m.C[i+1]-m.C[i]) / h
	return c, gz
}

func (m *ProfileMedium) Sample(x, _ mgl64.Vec2) (complex128, mgl64.Vec2, error) {
	c, gz := m.sampleZ(x[1])
	return c, mgl64.Vec2{0, gz}, nil
}

// Sample3 exposes the profile through the 3D contract.
func (m *ProfileMedium) Sample3(x, _ mgl64.Vec3) (complex128, mgl64.Vec3, error) {
	c, gz := m.sampleZ(x[2])
	return c, mgl64.Vec3{0, 0, gz}, nil
}

func (m *ProfileMedium) clone2D() Medium2D {
	cp := *m
	return &cp
}

// medium3DFromProfile wraps Sample3 as a Medium3D.
type medium3DFromProfile struct{ p *ProfileMedium }

func (w medium3DFromProfile) Sample(x, t mgl64.Vec3) (complex128, mgl64.Vec3, error) {
	return w.p.Sample3(x, t)
}

func (w medium3DFromProfile) clone3D() Medium3D {
	cp := *w.p
	return medium3DFromProfile{&cp}
}

// As3D returns a Medium3D view of the profile.
func (m *ProfileMedium) As3D() Medium3D { return medium3DFromProfile{m} }
