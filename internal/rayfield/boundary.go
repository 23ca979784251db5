package rayfield

import (
	"fmt"
	"math"
	"sort"

	"github.com/go-gl/mathgl/mgl64"
)

// Coordinate convention follows the original model: z is depth, increasing
// downward. The top boundary sits at smaller z than the bottom; outward
// normals have negative z on top and positive z on the bottom.

// BdryCurve tags a boundary table as piecewise-flat or curved. Curved
// tables interpolate node normals/curvature inside a segment; flat tables
// use the per-segment constants directly.
type BdryCurve int

const (
	BdryFlat BdryCurve = iota
	BdryCurved
)

// BdryPt2D is one node of a 2D boundary polyline. Segment quantities (T, N,
// Len, Kappa) describe the segment that starts at this node; node quantities
// (NodeT, NodeN) are averaged over the adjacent segments and feed curved
// interpolation.
type BdryPt2D struct {
	X mgl64.Vec2

	T, N  mgl64.Vec2
	Len   Real
	Kappa Real

	NodeT, NodeN mgl64.Vec2
}

// Boundary2D is a top or bottom surface tabulated over range.
type Boundary2D struct {
	Pts   []BdryPt2D
	Curve BdryCurve
	IsTop bool
}

// NewBoundary2D builds a boundary from node positions, computing segment
// tangents/normals/lengths and node averages. Normals point out of the
// medium: up for the top boundary, down for the bottom.
func NewBoundary2D(nodes []mgl64.Vec2, curve BdryCurve, isTop bool) (*Boundary2D, error) {
	if len(nodes) < 2 {
		return nil, fmt.Errorf("boundary needs at least 2 nodes, got %d", len(nodes))
	}
	for i := 1; i < len(nodes); i++ {
		if nodes[i][0] <= nodes[i-1][0] {
			return nil, fmt.Errorf("boundary ranges not increasing at node %d", i)
		}
	}
	pts := make([]BdryPt2D, len(nodes))
	for i := range nodes {
		pts[i].X = nodes[i]
	}
	for i := 0; i < len(pts)-1; i++ {
		d := pts[i+1].X.Sub(pts[i].X)
		l := d.Len()
		pts[i].Len = l
		pts[i].T = d.Mul(1 / l)
		if isTop {
			pts[i].N = mgl64.Vec2{pts[i].T[1], -pts[i].T[0]}
		} else {
			pts[i].N = mgl64.Vec2{-pts[i].T[1], pts[i].T[0]}
		}
	}
	// last node reuses the final segment frame
	pts[len(pts)-1].T = pts[len(pts)-2].T
	pts[len(pts)-1].N = pts[len(pts)-2].N
	pts[len(pts)-1].Len = pts[len(pts)-2].Len

	for i := range pts {
		tSum := pts[i].T
		nSum := pts[i].N
		if i > 0 {
			tSum = tSum.Add(pts[i-1].T)
			nSum = nSum.Add(pts[i-1].N)
		}
		pts[i].NodeT = safeNormalize2(tSum)
		pts[i].NodeN = safeNormalize2(nSum)
	}
	if curve == BdryCurved {
		// curvature from the turn rate of node tangents
		for i := 0; i < len(pts)-1; i++ {
			dphi := angleOf(pts[i+1].NodeT) - angleOf(pts[i].NodeT)
			pts[i].Kappa = dphi / pts[i].Len
		}
	}
	return &Boundary2D{Pts: pts, Curve: curve, IsTop: isTop}, nil
}

func safeNormalize2(v mgl64.Vec2) mgl64.Vec2 {
	l := v.Len()
	if l == 0 {
		return v
	}
	return v.Mul(1 / l)
}

func angleOf(v mgl64.Vec2) Real { return math.Atan2(v[1], v[0]) }

// RMin and RMax report the tabulated range extent.
func (b *Boundary2D) RMin() Real { return b.Pts[0].X[0] }
func (b *Boundary2D) RMax() Real { return b.Pts[len(b.Pts)-1].X[0] }

// BdrySeg2D memoizes the enclosing segment of a ray position: index, anchor
// node, and outward normal. The index doubles as the search hint for the
// next lookup.
type BdrySeg2D struct {
	ISeg int32
	X    mgl64.Vec2
	N    mgl64.Vec2
}

// Locate finds the segment containing range x[0], walking from the previous
// segment hint and falling back to binary search when the hint is stale.
// The direction t breaks ties exactly at a node.
func (b *Boundary2D) Locate(x, t mgl64.Vec2, st *BdrySeg2D) {
	n := int32(len(b.Pts) - 1)
	i := st.ISeg
	if i < 0 || i >= n {
		i = 0
	}
	const hintWalk = 4
	for j := 0; j < hintWalk; j++ {
		if i > 0 && x[0] < b.Pts[i].X[0] {
			i--
		} else if i < n-1 && x[0] >= b.Pts[i+1].X[0] {
			i++
		} else {
			break
		}
	}
	if x[0] < b.Pts[i].X[0] || (i < n-1 && x[0] >= b.Pts[i+1].X[0]) {
		k := sort.Search(int(n), func(k int) bool { return x[0] < b.Pts[k+1].X[0] })
		if k >= int(n) {
			k = int(n) - 1
		}
		i = int32(k)
	}
	// on a node, pick the segment the ray is entering
	if i < n-1 && x[0] == b.Pts[i+1].X[0] && t[0] > 0 {
		i++
	}
	st.ISeg = i
	st.X = b.Pts[i].X
	st.N = b.Pts[i].N
}

// Distances2D returns the signed perpendicular distances from the ray to the
// top and bottom boundaries, positive inside the medium. Normals point
// outward, hence the negated dot products.
func Distances2D(rayx mgl64.Vec2, top, bot *BdrySeg2D) (distTop, distBot Real) {
	dTop := rayx.Sub(top.X)
	dBot := rayx.Sub(bot.X)
	return -top.N.Dot(dTop), -bot.N.Dot(dBot)
}

// BdryPt3D is one node of a 3D boundary grid.
type BdryPt3D struct {
	X     mgl64.Vec3
	NodeN mgl64.Vec3

	// curved-segment second derivatives and curvature coefficients
	Zxx, Zxy, Zyy Real
	Kxx, Kxy, Kyy Real
}

// Boundary3D is a top or bottom surface tabulated on an x-y grid of quads.
type Boundary3D struct {
	NPtsX, NPtsY int32
	Pts          []BdryPt3D // row-major: ix*NPtsY + iy
	Curve        BdryCurve
	IsTop        bool
}

// NewBoundary3D builds a grid boundary from row-major node positions.
func NewBoundary3D(nx, ny int32, nodes []mgl64.Vec3, curve BdryCurve, isTop bool) (*Boundary3D, error) {
	if nx < 2 || ny < 2 {
		return nil, fmt.Errorf("boundary grid needs at least 2x2 nodes, got %dx%d", nx, ny)
	}
	if int32(len(nodes)) != nx*ny {
		return nil, fmt.Errorf("boundary grid wants %d nodes, got %d", nx*ny, len(nodes))
	}
	pts := make([]BdryPt3D, len(nodes))
	for i := range nodes {
		pts[i].X = nodes[i]
	}
	b := &Boundary3D{NPtsX: nx, NPtsY: ny, Pts: pts, Curve: curve, IsTop: isTop}
	for ix := int32(0); ix < nx; ix++ {
		for iy := int32(0); iy < ny; iy++ {
			b.at(ix, iy).NodeN = b.nodeNormal(ix, iy)
		}
	}
	return b, nil
}

func (b *Boundary3D) at(ix, iy int32) *BdryPt3D { return &b.Pts[ix*b.NPtsY+iy] }

// nodeNormal estimates the outward normal from central depth differences.
func (b *Boundary3D) nodeNormal(ix, iy int32) mgl64.Vec3 {
	x0, x1 := maxI32(ix-1, 0), minI32(ix+1, b.NPtsX-1)
	y0, y1 := maxI32(iy-1, 0), minI32(iy+1, b.NPtsY-1)
	dzdx := (b.at(x1, iy).X[2] - b.at(x0, iy).X[2]) / (b.at(x1, iy).X[0] - b.at(x0, iy).X[0])
	dzdy := (b.at(ix, y1).X[2] - b.at(ix, y0).X[2]) / (b.at(ix, y1).X[1] - b.at(ix, y0).X[1])
	n := mgl64.Vec3{dzdx, dzdy, -1}
	if !b.IsTop {
		n = mgl64.Vec3{-dzdx, -dzdy, 1}
	}
	return n.Normalize()
}

// Extent reports the tabulated x/y bounds of the grid.
func (b *Boundary3D) Extent() (xMin, yMin, xMax, yMax Real) {
	last := b.Pts[len(b.Pts)-1].X
	return b.Pts[0].X[0], b.Pts[0].X[1], last[0], last[1]
}

// Interval is a segment extent along one grid axis.
type Interval struct{ Min, Max Real }

// BdrySeg3D memoizes the enclosing quad of a ray position with independent
// x and y segment indices and extents for bilinear interpolation.
type BdrySeg3D struct {
	ISegX, ISegY int32
	X            mgl64.Vec3
	N            mgl64.Vec3
	LSegX, LSegY Interval
}

func (b *Boundary3D) axisLocate(pos Real, i, n int32, coord func(int32) Real) int32 {
	if i < 0 || i >= n {
		i = 0
	}
	const hintWalk = 4
	for j := 0; j < hintWalk; j++ {
		if i > 0 && pos < coord(i) {
			i--
		} else if i < n-1 && pos >= coord(i+1) {
			i++
		} else {
			return i
		}
	}
	k := sort.Search(int(n), func(k int) bool { return pos < coord(int32(k)+1) })
	if k >= int(n) {
		k = int(n) - 1
	}
	return int32(k)
}

// Locate finds the quad containing the horizontal position of x.
func (b *Boundary3D) Locate(x, _ mgl64.Vec3, st *BdrySeg3D) {
	st.ISegX = b.axisLocate(x[0], st.ISegX, b.NPtsX-1, func(i int32) Real { return b.at(i, 0).X[0] })
	st.ISegY = b.axisLocate(x[1], st.ISegY, b.NPtsY-1, func(i int32) Real { return b.at(0, i).X[1] })

	p00 := b.at(st.ISegX, st.ISegY)
	p10 := b.at(st.ISegX+1, st.ISegY)
	p01 := b.at(st.ISegX, st.ISegY+1)
	st.X = p00.X
	st.LSegX = Interval{p00.X[0], p10.X[0]}
	st.LSegY = Interval{p00.X[1], p01.X[1]}

	// flat per-quad normal from the two spanning edges
	e1 := p10.X.Sub(p00.X)
	e2 := p01.X.Sub(p00.X)
	n := e1.Cross(e2)
	if b.IsTop {
		if n[2] > 0 {
			n = n.Mul(-1)
		}
	} else if n[2] < 0 {
		n = n.Mul(-1)
	}
	st.N = n.Normalize()
}

// Distances3D is the 3D analog of Distances2D.
func Distances3D(rayx mgl64.Vec3, top, bot *BdrySeg3D) (distTop, distBot Real) {
	return -top.N.Dot(rayx.Sub(top.X)), -bot.N.Dot(rayx.Sub(bot.X))
}

func maxI32(a, b int32) int32 {
	if a > b {
		return a
	}
	return b
}

func minI32(a, b int32) int32 {
	if a < b {
		return a
	}
	return b
}
