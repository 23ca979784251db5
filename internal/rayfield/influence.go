package rayfield

import (
	"math"
)

// Influence2D turns one physical ray step into field contributions. Only
// the invocation contract is fixed: the propagation loop calls Apply once
// per physical step (twice for a reflection pair), in step order.
type Influence2D interface {
	Apply(p0, p1 RayPt2D, info RayInfo) error
}

// Influence3D is the 3D contract.
type Influence3D interface {
	Apply(p0, p1 RayPt3D, info RayInfo) error
}

// GeoHatInfluence is the reference 2D/hybrid deposit: a ray-centered hat
// beam. Wherever the step segment crosses a receiver range, receivers
// within the beam halfwidth get an arrival weighted by a linear taper and
// the geometric spreading carried in q.
type GeoHatInfluence struct {
	pos  *Position
	ang  *Angles
	freq *FreqInfo
	arr  *ArrInfo
}

// NewGeoHatInfluence binds the reference influencer to the run tables and
// the shared arrival arena.
func NewGeoHatInfluence(pos *Position, ang *Angles, freq *FreqInfo, arr *ArrInfo) *GeoHatInfluence {
	return &GeoHatInfluence{pos: pos, ang: ang, freq: freq, arr: arr}
}

// thetaIndex picks the receiver bearing cell nearest the launch azimuth.
func (g *GeoHatInfluence) thetaIndex(info RayInfo) int32 {
	n := g.pos.NTheta()
	if n == 0 {
		return 0
	}
	best, bestD := int32(0), math.Inf(1)
	for i := int32(0); i < n; i++ {
		if d := math.Abs(g.pos.Theta[i] - info.SrcAzimAngle); d < bestD {
			best, bestD = i, d
		}
	}
	return best
}

func (g *GeoHatInfluence) Apply(p0, p1 RayPt2D, info RayInfo) error {
	r0, r1 := p0.X[0], p1.X[0]
	if r1 == r0 {
		return nil
	}
	lo, hi := r0, r1
	if lo > hi {
		lo, hi = hi, lo
	}
	itheta := g.thetaIndex(info)

	for ir := int32(0); ir < g.pos.NRr(); ir++ {
		rr := g.pos.Rr[ir]
		if rr < lo || rr >= hi {
			continue
		}
		w := (rr - r0) / (r1 - r0)
		z := p0.X[1] + w*(p1.X[1]-p0.X[1])
		q := p0.Q[0] + w*(p1.Q[0]-p0.Q[0])
		tau := p0.Tau + complex(w, 0)*(p1.Tau-p0.Tau)
		amp := p0.Amp + w*(p1.Amp-p0.Amp)

		// hat halfwidth from beam spreading, floored at one range bin
		halfwidth := math.Abs(q) * g.ang.Dalpha
		if halfwidth < g.pos.DeltaR {
			halfwidth = g.pos.DeltaR
		}
		if halfwidth <= 0 {
			halfwidth = 1
		}
		// spreading loss: amplitude falls with the beam cross-section
		spread := amp / math.Sqrt(math.Max(math.Abs(q)*math.Abs(p0.C), 1))

		for id := int32(0); id < g.pos.NRz(); id++ {
			dz := math.Abs(g.pos.Rz[id] - z)
			if dz > halfwidth {
				continue
			}
			taper := 1 - dz/halfwidth
			base := g.pos.FieldAddr(info.ISx, info.ISy, info.ISz, itheta, id, ir)
			g.arr.Add(base, Deposit{
				Amp:           spread * taper,
				Phase:         p1.Phase,
				Delay:         tau,
				SrcDeclAngle:  info.SrcDeclAngle,
				SrcAzimAngle:  info.SrcAzimAngle,
				RcvrDeclAngle: RcvrDeclAngle2D(&p1),
				RcvrAzimAngle: info.SrcAzimAngle,
				NTopBnc:       p1.NumTopBnc,
				NBotBnc:       p1.NumBotBnc,
			})
		}
	}
	return nil
}

// GeoHatInfluence3D is the reference 3D deposit: nearest receiver bearing
// and range crossing of the horizontal track, hat taper in depth.
type GeoHatInfluence3D struct {
	pos  *Position
	ang  *Angles
	freq *FreqInfo
	arr  *ArrInfo
}

// NewGeoHatInfluence3D binds the 3D reference influencer.
func NewGeoHatInfluence3D(pos *Position, ang *Angles, freq *FreqInfo, arr *ArrInfo) *GeoHatInfluence3D {
	return &GeoHatInfluence3D{pos: pos, ang: ang, freq: freq, arr: arr}
}

func (g *GeoHatInfluence3D) Apply(p0, p1 RayPt3D, info RayInfo) error {
	// horizontal range from the source of this launch
	sx := g.pos.Sx[info.ISx]
	sy := g.pos.Sy[info.ISy]
	r0 := math.Hypot(p0.X[0]-sx, p0.X[1]-sy)
	r1 := math.Hypot(p1.X[0]-sx, p1.X[1]-sy)
	if r1 == r0 {
		return nil
	}
	lo, hi := r0, r1
	if lo > hi {
		lo, hi = hi, lo
	}

	// bearing cell from the track direction at p1
	azim := RadDeg * math.Atan2(p1.X[1]-sy, p1.X[0]-sx)
	itheta := int32(0)
	bestD := math.Inf(1)
	for i := int32(0); i < g.pos.NTheta(); i++ {
		if d := math.Abs(g.pos.Theta[i] - azim); d < bestD {
			itheta, bestD = i, d
		}
	}

	for ir := int32(0); ir < g.pos.NRr(); ir++ {
		rr := g.pos.Rr[ir]
		if rr < lo || rr >= hi {
			continue
		}
		w := (rr - r0) / (r1 - r0)
		z := p0.X[2] + w*(p1.X[2]-p0.X[2])
		tau := p0.Tau + complex(w, 0)*(p1.Tau-p0.Tau)
		amp := p0.Amp + w*(p1.Amp-p0.Amp)

		detQ := math.Abs(p1.SpreadingDet())
		spread := amp / math.Sqrt(math.Max(detQ, 1))

		halfwidth := g.pos.DeltaR
		if halfwidth <= 0 {
			halfwidth = 1
		}
		decl, razim := RcvrAngles3D(&p1)
		for id := int32(0); id < g.pos.NRz(); id++ {
			dz := math.Abs(g.pos.Rz[id] - z)
			if dz > halfwidth {
				continue
			}
			taper := 1 - dz/halfwidth
			base := g.pos.FieldAddr(info.ISx, info.ISy, info.ISz, itheta, id, ir)
			g.arr.Add(base, Deposit{
				Amp:           spread * taper,
				Phase:         p1.Phase,
				Delay:         tau,
				SrcDeclAngle:  info.SrcDeclAngle,
				SrcAzimAngle:  info.SrcAzimAngle,
				RcvrDeclAngle: decl,
				RcvrAzimAngle: razim,
				NTopBnc:       p1.NumTopBnc,
				NBotBnc:       p1.NumBotBnc,
			})
		}
	}
	return nil
}

var (
	_ Influence2D = (*GeoHatInfluence)(nil)
	_ Influence3D = (*GeoHatInfluence3D)(nil)
)
