package rayfield

import "math"

// Position holds the validated source and receiver tables. Ranges and
// depths are in meters; bearings in degrees.
type Position struct {
	Sx, Sy, Sz []Real // source coordinates
	Rr         []Real // receiver ranges
	Rz         []Real // receiver depths
	Theta      []Real // receiver bearings (3D only)

	DeltaR     Real
	DeltaTheta Real
}

// NSz etc. exist to keep index checks readable at call sites.
func (p *Position) NSx() int32    { return int32(len(p.Sx)) }
func (p *Position) NSy() int32    { return int32(len(p.Sy)) }
func (p *Position) NSz() int32    { return int32(len(p.Sz)) }
func (p *Position) NRr() int32    { return int32(len(p.Rr)) }
func (p *Position) NRz() int32    { return int32(len(p.Rz)) }
func (p *Position) NTheta() int32 { return int32(len(p.Theta)) }

// NCells is the number of receiver cells across all sources.
func (p *Position) NCells() int {
	n := int(p.NSz()) * int(p.NRz()) * int(p.NRr())
	if nt := int(p.NTheta()); nt > 0 {
		n *= nt * int(p.NSx()) * int(p.NSy())
	}
	return n
}

// FieldAddr flattens a (source, bearing, depth, range) tuple into the cell
// arena index. For 2D runs the x/y/bearing dimensions collapse to size 1.
func (p *Position) FieldAddr(isx, isy, isz, itheta, id, ir int32) int {
	nTheta := p.NTheta()
	if nTheta == 0 {
		nTheta = 1
	}
	base := int32(0)
	base = base*maxI32(p.NSx(), 1) + isx
	base = base*maxI32(p.NSy(), 1) + isy
	base = base*p.NSz() + isz
	base = base*nTheta + itheta
	base = base*p.NRz() + id
	base = base*p.NRr() + ir
	return int(base)
}

// Angles holds the launch-angle tables in radians. ISingleAlpha >= 0 traces
// a single declination angle from each source instead of the full fan.
type Angles struct {
	Alpha []Real
	Beta  []Real

	Dalpha Real
	Dbeta  Real

	ISingleAlpha int32
}

func (a *Angles) NAlpha() int32 { return int32(len(a.Alpha)) }
func (a *Angles) NBeta() int32  { return int32(len(a.Beta)) }

// FreqInfo carries the nominal source frequency and the broadband vector
// when one was configured.
type FreqInfo struct {
	Freq0   Real
	FreqVec []Real
}

// Omega is the reference angular frequency used by the arrival merge test.
func (f *FreqInfo) Omega() Real { return 2 * math.Pi * f.Freq0 }
