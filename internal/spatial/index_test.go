package spatial

import (
	"fmt"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/twpayne/go-geom"

	"github.com/atlasforge/gazetteer/internal/model"
)

func ring(coords ...float64) *geom.LinearRing {
	return geom.NewLinearRingFlat(geom.XY, coords)
}

func boxRegion(t *testing.T, id string, minLon, minLat, maxLon, maxLat float64) model.Region {
	t.Helper()
	poly := geom.NewPolygon(geom.XY)
	require.NoError(t, poly.Push(ring(
		minLon, minLat,
		maxLon, minLat,
		maxLon, maxLat,
		minLon, maxLat,
		minLon, minLat,
	)))
	mp := geom.NewMultiPolygon(geom.XY).SetSRID(4326)
	require.NoError(t, mp.Push(poly))
	return model.Region{ID: id, Geometry: mp}
}

func TestLocate_InsideAndOutside(t *testing.T) {
	idx := NewIndex([]model.Region{boxRegion(t, "box", 0, 0, 1, 1)}, 0)

	id, ok := idx.Locate(0.5, 0.5)
	require.True(t, ok)
	assert.Equal(t, "box", id)

	_, ok = idx.Locate(5, 5)
	assert.False(t, ok)
}

func TestLocate_SharedBoundaryHasOneOwner(t *testing.T) {
	regions := []model.Region{
		boxRegion(t, "west", 0, 0, 1, 1),
		boxRegion(t, "east", 1, 0, 2, 1),
	}
	idx := NewIndex(regions, 0)

	// A point exactly on the shared edge lands in exactly one region,
	// and the answer is stable across lookups.
	first, ok := idx.Locate(1.0, 0.5)
	require.True(t, ok)
	for i := 0; i < 10; i++ {
		id, ok := idx.Locate(1.0, 0.5)
		require.True(t, ok)
		assert.Equal(t, first, id)
	}
}

func TestLocate_OverlapResolvedByInsertionOrder(t *testing.T) {
	a := boxRegion(t, "first", 0, 0, 2, 2)
	b := boxRegion(t, "second", 0, 0, 2, 2)

	id, ok := NewIndex([]model.Region{a, b}, 0).Locate(1, 1)
	require.True(t, ok)
	assert.Equal(t, "first", id)

	id, ok = NewIndex([]model.Region{b, a}, 0).Locate(1, 1)
	require.True(t, ok)
	assert.Equal(t, "second", id)
}

func TestLocate_HolesAndNestedRegions(t *testing.T) {
	outer := geom.NewPolygon(geom.XY)
	require.NoError(t, outer.Push(ring(0, 0, 4, 0, 4, 4, 0, 4, 0, 0)))
	require.NoError(t, outer.Push(ring(1, 1, 3, 1, 3, 3, 1, 3, 1, 1)))
	donutGeom := geom.NewMultiPolygon(geom.XY).SetSRID(4326)
	require.NoError(t, donutGeom.Push(outer))
	donut := model.Region{ID: "donut", Geometry: donutGeom}

	island := boxRegion(t, "island", 1.5, 1.5, 2.5, 2.5)

	idx := NewIndex([]model.Region{donut, island}, 0)

	id, ok := idx.Locate(0.5, 2)
	require.True(t, ok)
	assert.Equal(t, "donut", id)

	// Inside the hole but outside the island: no owner.
	_, ok = idx.Locate(1.2, 1.2)
	assert.False(t, ok)

	id, ok = idx.Locate(2, 2)
	require.True(t, ok)
	assert.Equal(t, "island", id)
}

func TestLocate_NegativeCoordinates(t *testing.T) {
	idx := NewIndex([]model.Region{boxRegion(t, "sw", -10.5, -10.5, -9.5, -9.5)}, 0)

	id, ok := idx.Locate(-10, -10)
	require.True(t, ok)
	assert.Equal(t, "sw", id)

	_, ok = idx.Locate(-8, -10)
	assert.False(t, ok)
}

func TestLocate_RegionSpanningManyCells(t *testing.T) {
	big := boxRegion(t, "big", -20, -20, 20, 20)
	idx := NewIndex([]model.Region{big}, 0)

	for _, pt := range [][2]float64{{-19.5, -19.5}, {0, 0}, {19.9, 19.9}, {-19.9, 19.9}} {
		id, ok := idx.Locate(pt[0], pt[1])
		require.True(t, ok, "point %v", pt)
		assert.Equal(t, "big", id)
	}
}

func TestNewIndex_SkipsRegionsWithoutGeometry(t *testing.T) {
	regions := []model.Region{
		{ID: "empty"},
		boxRegion(t, "solid", 0, 0, 1, 1),
	}
	idx := NewIndex(regions, 0)
	assert.Equal(t, 1, idx.Len())

	id, ok := idx.Locate(0.5, 0.5)
	require.True(t, ok)
	assert.Equal(t, "solid", id)
}

func TestLocate_ManySmallRegions(t *testing.T) {
	var regions []model.Region
	for x := 0; x < 10; x++ {
		for y := 0; y < 10; y++ {
			regions = append(regions, boxRegion(t, fmt.Sprintf("cell-%d-%d", x, y),
				float64(x), float64(y), float64(x+1), float64(y+1)))
		}
	}
	idx := NewIndex(regions, 0)

	id, ok := idx.Locate(3.5, 7.5)
	require.True(t, ok)
	assert.Equal(t, "cell-3-7", id)

	id, ok = idx.Locate(9.99, 0.01)
	require.True(t, ok)
	assert.Equal(t, "cell-9-0", id)
}

func TestLocateAll_ReportsEveryContainingRegion(t *testing.T) {
	regions := []model.Region{
		boxRegion(t, "first", 0, 0, 2, 2),
		boxRegion(t, "second", 1, 1, 3, 3),
		boxRegion(t, "far", 10, 10, 11, 11),
	}
	idx := NewIndex(regions, 0)

	assert.Equal(t, []string{"first", "second"}, idx.LocateAll(1.5, 1.5))
	assert.Equal(t, []string{"first"}, idx.LocateAll(0.5, 0.5))
	assert.Empty(t, idx.LocateAll(5, 5))
}
