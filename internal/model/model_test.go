package model

import (
	"encoding/json"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/twpayne/go-geom"
)

func square(t *testing.T, minLon, minLat, size float64) *geom.MultiPolygon {
	t.Helper()
	ring := geom.NewLinearRingFlat(geom.XY, []float64{
		minLon, minLat,
		minLon + size, minLat,
		minLon + size, minLat + size,
		minLon, minLat + size,
		minLon, minLat,
	})
	poly := geom.NewPolygon(geom.XY)
	require.NoError(t, poly.Push(ring))
	mp := geom.NewMultiPolygon(geom.XY).SetSRID(4326)
	require.NoError(t, mp.Push(poly))
	return mp
}

func TestLevelString(t *testing.T) {
	assert.Equal(t, "country", LevelCountry.String())
	assert.Equal(t, "region", LevelRegion.String())
	assert.Equal(t, "subregion", LevelSubregion.String())
	assert.Equal(t, "unknown", Level(7).String())
}

func TestRegionCentroid(t *testing.T) {
	r := Region{Geometry: square(t, 0, 0, 1)}

	// The closed ring repeats its first vertex, so the vertex average
	// of the unit square sits at 0.4, not 0.5.
	lon, lat := r.Centroid()
	assert.InDelta(t, 0.4, lon, 1e-9)
	assert.InDelta(t, 0.4, lat, 1e-9)
}

func TestRegionCentroid_NoGeometry(t *testing.T) {
	var r Region
	lon, lat := r.Centroid()
	assert.Zero(t, lon)
	assert.Zero(t, lat)
}

func TestPlacePoint(t *testing.T) {
	p := Place{Name: "Roma", Lat: 41.89, Lon: 12.51}

	pt := p.Point()
	assert.Equal(t, []float64{12.51, 41.89}, pt.FlatCoords())
	assert.Equal(t, 4326, pt.SRID())
}

func TestJSONFieldNames(t *testing.T) {
	r := Region{ID: "abc", Name: "Lazio", Geometry: square(t, 0, 0, 1)}
	data, err := json.Marshal(r)
	require.NoError(t, err)
	assert.Contains(t, string(data), `"region_id":"abc"`)
	assert.Contains(t, string(data), `"region_name":"Lazio"`)
	assert.NotContains(t, string(data), "Geometry")

	p := Place{GeonameID: 3169070, RegionID: "abc", RegionMatch: MatchWithin}
	data, err = json.Marshal(p)
	require.NoError(t, err)
	assert.Contains(t, string(data), `"geoname_id":3169070`)
	assert.Contains(t, string(data), `"region_id":"abc"`)
	assert.Contains(t, string(data), `"region_match":"within"`)
}
