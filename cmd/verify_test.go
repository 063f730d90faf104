package main

import (
	"context"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/twpayne/go-geom"

	"github.com/atlasforge/gazetteer/internal/model"
	"github.com/atlasforge/gazetteer/internal/writer"
)

func boxGeometry(t *testing.T, minLon, minLat, maxLon, maxLat float64) *geom.MultiPolygon {
	t.Helper()
	ring := geom.NewLinearRingFlat(geom.XY, []float64{
		minLon, minLat,
		maxLon, minLat,
		maxLon, maxLat,
		minLon, maxLat,
		minLon, minLat,
	})
	poly := geom.NewPolygon(geom.XY)
	require.NoError(t, poly.Push(ring))
	mp := geom.NewMultiPolygon(geom.XY)
	require.NoError(t, mp.Push(poly))
	return mp.SetSRID(4326)
}

func writeFixture(t *testing.T, regions []model.Region, places []model.Place) (string, string) {
	t.Helper()
	dir := t.TempDir()
	rp := filepath.Join(dir, "regions.gpkg")
	pp := filepath.Join(dir, "places.gpkg")
	require.NoError(t, writer.WriteRegions(context.Background(), rp, regions))
	require.NoError(t, writer.WritePlaces(context.Background(), pp, places))
	return rp, pp
}

func TestVerifyOutputs_CleanBuild(t *testing.T) {
	regions := []model.Region{
		{ID: "r-a", Name: "A", CountryISO3: "AAA", Geometry: boxGeometry(t, 0, 0, 1, 1)},
		{ID: "r-b", Name: "B", CountryISO3: "BBB", Geometry: boxGeometry(t, 2, 2, 3, 3)},
	}
	places := []model.Place{
		{GeonameID: 1, Name: "Mid", Lat: 0.5, Lon: 0.5, Population: 20000, RegionID: "r-a", RegionMatch: model.MatchWithin},
		{GeonameID: 2, Name: "Out", Lat: 5, Lon: 5, Population: 16000},
	}
	rp, pp := writeFixture(t, regions, places)

	res, err := verifyOutputs(context.Background(), rp, pp, true)
	require.NoError(t, err)
	assert.Equal(t, 2, res.Regions)
	assert.Equal(t, 2, res.Places)
	assert.Zero(t, res.violations())
	assert.Empty(t, res.MultiOwned)
}

func TestVerifyOutputs_DanglingReference(t *testing.T) {
	regions := []model.Region{
		{ID: "r-a", Name: "A", CountryISO3: "AAA", Geometry: boxGeometry(t, 0, 0, 1, 1)},
	}
	places := []model.Place{
		{GeonameID: 9, Name: "Ghost", Lat: 0.5, Lon: 0.5, Population: 20000, RegionID: "r-gone", RegionMatch: model.MatchWithin},
	}
	rp, pp := writeFixture(t, regions, places)

	res, err := verifyOutputs(context.Background(), rp, pp, false)
	require.NoError(t, err)
	assert.Equal(t, []int64{9}, res.DanglingRefs)
	assert.Equal(t, 1, res.violations())
}

func TestVerifyOutputs_StrictFindsOverlap(t *testing.T) {
	regions := []model.Region{
		{ID: "r-a", Name: "A", CountryISO3: "AAA", Geometry: boxGeometry(t, 0, 0, 2, 2)},
		{ID: "r-b", Name: "B", CountryISO3: "BBB", Geometry: boxGeometry(t, 1, 1, 3, 3)},
	}
	places := []model.Place{
		{GeonameID: 1, Name: "Shared", Lat: 1.5, Lon: 1.5, Population: 20000, RegionID: "r-a", RegionMatch: model.MatchWithin},
		{GeonameID: 2, Name: "Solo", Lat: 0.5, Lon: 0.5, Population: 20000, RegionID: "r-a", RegionMatch: model.MatchWithin},
	}
	rp, pp := writeFixture(t, regions, places)

	res, err := verifyOutputs(context.Background(), rp, pp, true)
	require.NoError(t, err)
	assert.Equal(t, []int64{1}, res.MultiOwned)
	// An overlap is reported, not a violation; the assignment stayed unique.
	assert.Zero(t, res.violations())
}

func TestCoordsAgree(t *testing.T) {
	p := &model.Place{Lat: 46.948, Lon: 7.4474}
	assert.True(t, coordsAgree(p, p.Point()))
	assert.False(t, coordsAgree(p, geom.NewPointFlat(geom.XY, []float64{7.4474, 46.0})))
	assert.False(t, coordsAgree(p, nil))
}
