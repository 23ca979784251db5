package rayfield

import (
	"testing"

	"github.com/go-gl/mathgl/mgl64"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestBoundary2DFlatFrames(t *testing.T) {
	top, err := NewBoundary2D([]mgl64.Vec2{{-100, 0}, {100, 0}}, BdryFlat, true)
	require.NoError(t, err)
	bot, err := NewBoundary2D([]mgl64.Vec2{{-100, 100}, {100, 100}}, BdryFlat, false)
	require.NoError(t, err)

	// outward normals: up for the top, down for the bottom
	assert.Equal(t, mgl64.Vec2{0, -1}, top.Pts[0].N)
	assert.Equal(t, mgl64.Vec2{0, 1}, bot.Pts[0].N)

	var sTop, sBot BdrySeg2D
	x := mgl64.Vec2{0, 40}
	dir := mgl64.Vec2{1, 0}
	top.Locate(x, dir, &sTop)
	bot.Locate(x, dir, &sBot)

	dTop, dBot := Distances2D(x, &sTop, &sBot)
	assert.InDelta(t, 40, dTop, 1e-12)
	assert.InDelta(t, 60, dBot, 1e-12)

	// a point past the bottom has a negative bottom distance
	_, dBot = Distances2D(mgl64.Vec2{0, 105}, &sTop, &sBot)
	assert.InDelta(t, -5, dBot, 1e-12)
}

func TestBoundary2DRejectsBadTables(t *testing.T) {
	_, err := NewBoundary2D([]mgl64.Vec2{{0, 0}}, BdryFlat, true)
	assert.Error(t, err)

	_, err = NewBoundary2D([]mgl64.Vec2{{0, 0}, {10, 0}, {5, 0}}, BdryFlat, true)
	assert.Error(t, err)
}

func TestBoundary2DLocate(t *testing.T) {
	nodes := []mgl64.Vec2{{0, 100}, {1, 100}, {2, 110}, {3, 110}, {4, 100}, {5, 100}}
	b, err := NewBoundary2D(nodes, BdryFlat, false)
	require.NoError(t, err)

	dir := mgl64.Vec2{1, 0}
	var st BdrySeg2D
	b.Locate(mgl64.Vec2{2.5, 50}, dir, &st)
	assert.EqualValues(t, 2, st.ISeg)

	// stale hint far from the query falls back to binary search
	st.ISeg = 0
	b.Locate(mgl64.Vec2{4.9, 50}, dir, &st)
	assert.EqualValues(t, 4, st.ISeg)

	// a query on a node gets the segment starting there
	b.Locate(mgl64.Vec2{3, 50}, dir, &st)
	assert.EqualValues(t, 3, st.ISeg)

	// outside the table clamps to the edge segments
	b.Locate(mgl64.Vec2{-1, 50}, dir, &st)
	assert.EqualValues(t, 0, st.ISeg)
	b.Locate(mgl64.Vec2{99, 50}, dir, &st)
	assert.EqualValues(t, 4, st.ISeg)
}

func TestBoundary2DCurvedNodeFrames(t *testing.T) {
	// a ridge: the node frames average the adjacent segment frames
	nodes := []mgl64.Vec2{{0, 100}, {10, 90}, {20, 100}}
	b, err := NewBoundary2D(nodes, BdryCurved, false)
	require.NoError(t, err)

	nn := b.Pts[1].NodeN
	assert.InDelta(t, 1, nn.Len(), 1e-12)
	// the averaged normal at the crest points straight down
	assert.InDelta(t, 0, nn[0], 1e-12)
	assert.InDelta(t, 1, nn[1], 1e-12)

	// turning segments carry nonzero curvature
	assert.NotZero(t, b.Pts[0].Kappa)
}

func TestBoundary3DFlatGrid(t *testing.T) {
	nodes := []mgl64.Vec3{
		{-100, -100, 100}, {-100, 100, 100},
		{100, -100, 100}, {100, 100, 100},
	}
	bot, err := NewBoundary3D(2, 2, nodes, BdryFlat, false)
	require.NoError(t, err)

	assert.Equal(t, mgl64.Vec3{0, 0, 1}, bot.at(0, 0).NodeN)

	xMin, yMin, xMax, yMax := bot.Extent()
	assert.Equal(t, -100.0, xMin)
	assert.Equal(t, -100.0, yMin)
	assert.Equal(t, 100.0, xMax)
	assert.Equal(t, 100.0, yMax)

	topNodes := []mgl64.Vec3{
		{-100, -100, 0}, {-100, 100, 0},
		{100, -100, 0}, {100, 100, 0},
	}
	top, err := NewBoundary3D(2, 2, topNodes, BdryFlat, true)
	require.NoError(t, err)
	assert.Equal(t, mgl64.Vec3{0, 0, -1}, top.at(0, 0).NodeN)

	var sTop, sBot BdrySeg3D
	x := mgl64.Vec3{0, 0, 30}
	dir := mgl64.Vec3{1, 0, 0}
	top.Locate(x, dir, &sTop)
	bot.Locate(x, dir, &sBot)
	assert.Equal(t, mgl64.Vec3{0, 0, -1}, sTop.N)
	assert.Equal(t, mgl64.Vec3{0, 0, 1}, sBot.N)

	dTop, dBot := Distances3D(x, &sTop, &sBot)
	assert.InDelta(t, 30, dTop, 1e-12)
	assert.InDelta(t, 70, dBot, 1e-12)
}

func TestBoundary3DRejectsBadGrids(t *testing.T) {
	_, err := NewBoundary3D(1, 2, []mgl64.Vec3{{0, 0, 0}, {0, 1, 0}}, BdryFlat, true)
	assert.Error(t, err)

	_, err = NewBoundary3D(2, 2, []mgl64.Vec3{{0, 0, 0}}, BdryFlat, true)
	assert.Error(t, err)
}

func TestEscaped3D(t *testing.T) {
	nodes := func(z Real) []mgl64.Vec3 {
		return []mgl64.Vec3{
			{-100, -100, z}, {-100, 100, z},
			{100, -100, z}, {100, 100, z},
		}
	}
	top, err := NewBoundary3D(2, 2, nodes(0), BdryFlat, true)
	require.NoError(t, err)
	bot, err := NewBoundary3D(2, 2, nodes(100), BdryFlat, false)
	require.NoError(t, err)

	e0, eN := escaped3D(mgl64.Vec3{0, 0, 50}, top, bot)
	assert.False(t, e0)
	assert.False(t, eN)

	e0, eN = escaped3D(mgl64.Vec3{-150, 0, 50}, top, bot)
	assert.True(t, e0)
	assert.False(t, eN)

	e0, eN = escaped3D(mgl64.Vec3{0, 150, 50}, top, bot)
	assert.False(t, e0)
	assert.True(t, eN)
}
