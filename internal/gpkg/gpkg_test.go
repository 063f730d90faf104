package gpkg

import (
	"context"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/twpayne/go-geom"
)

func newTestGPKG(t *testing.T) *DB {
	t.Helper()
	g, err := Create(filepath.Join(t.TempDir(), "test.gpkg"))
	require.NoError(t, err)
	t.Cleanup(func() { _ = g.Close() })
	return g
}

func TestCreate_InstallsMetadata(t *testing.T) {
	g := newTestGPKG(t)
	ctx := context.Background()

	for _, table := range []string{"gpkg_spatial_ref_sys", "gpkg_contents", "gpkg_geometry_columns"} {
		ok, err := g.HasTable(ctx, table)
		require.NoError(t, err)
		assert.True(t, ok, table)
	}

	var def string
	err := g.db.QueryRow(`SELECT definition FROM gpkg_spatial_ref_sys WHERE srs_id = 4326`).Scan(&def)
	require.NoError(t, err)
	assert.Contains(t, def, `GEOGCS["WGS 84"`)

	var appID int64
	require.NoError(t, g.db.QueryRow(`PRAGMA application_id`).Scan(&appID))
	assert.Equal(t, int64(0x47504B47), appID)
}

func TestCreateFeatureTable_RegistersLayer(t *testing.T) {
	g := newTestGPKG(t)
	ctx := context.Background()

	err := g.CreateFeatureTable(ctx, "regions", "MULTIPOLYGON", []Column{
		{Name: "region_id", Type: "TEXT NOT NULL UNIQUE"},
		{Name: "level", Type: "INTEGER"},
		{Name: "area_km2", Type: "DOUBLE"},
	})
	require.NoError(t, err)

	tables, err := g.FeatureTables(ctx)
	require.NoError(t, err)
	assert.Equal(t, []string{"regions"}, tables)

	col, err := g.GeometryColumn(ctx, "regions")
	require.NoError(t, err)
	assert.Equal(t, "geom", col)

	cols, err := g.TableColumns(ctx, "regions")
	require.NoError(t, err)
	assert.Equal(t, []string{"fid", "geom", "region_id", "level", "area_km2"}, cols)
}

func TestInsertAndReadFeatures_RoundTrip(t *testing.T) {
	g := newTestGPKG(t)
	ctx := context.Background()

	require.NoError(t, g.CreateFeatureTable(ctx, "places", "POINT", []Column{
		{Name: "name", Type: "TEXT"},
		{Name: "population", Type: "INTEGER"},
		{Name: "lat", Type: "DOUBLE"},
	}))

	rome, err := EncodeGPB(geom.NewPointFlat(geom.XY, []float64{12.4964, 41.9028}), SRIDWGS84)
	require.NoError(t, err)
	oslo, err := EncodeGPB(geom.NewPointFlat(geom.XY, []float64{10.7522, 59.9139}), SRIDWGS84)
	require.NoError(t, err)

	rows := [][]any{
		{rome, "Rome", int64(2872800), 41.9028},
		{oslo, "Oslo", int64(709037), 59.9139},
		{nil, "Nowhere", int64(0), 0.0},
	}
	require.NoError(t, g.InsertFeatures(ctx, "places", []string{"name", "population", "lat"}, rows))

	n, err := g.CountRows(ctx, "places")
	require.NoError(t, err)
	assert.Equal(t, int64(3), n)

	var names []string
	var pops []int64
	var nilGeoms int
	err = g.ReadFeatures(ctx, "places", []string{"name", "population"}, func(geometry geom.T, attrs []any) error {
		names = append(names, attrs[0].(string))
		pops = append(pops, attrs[1].(int64))
		if geometry == nil {
			nilGeoms++
			return nil
		}
		pt, ok := geometry.(*geom.Point)
		require.True(t, ok)
		assert.NotZero(t, pt.X())
		return nil
	})
	require.NoError(t, err)
	assert.Equal(t, []string{"Rome", "Oslo", "Nowhere"}, names)
	assert.Equal(t, []int64{2872800, 709037, 0}, pops)
	assert.Equal(t, 1, nilGeoms)
}

func TestInsertFeatures_RowWidthMismatch(t *testing.T) {
	g := newTestGPKG(t)
	ctx := context.Background()

	require.NoError(t, g.CreateFeatureTable(ctx, "places", "POINT", []Column{{Name: "name", Type: "TEXT"}}))

	err := g.InsertFeatures(ctx, "places", []string{"name"}, [][]any{{nil, "a", "extra"}})
	require.Error(t, err)
	assert.Contains(t, err.Error(), "row 0")
}

func TestSetContentsBounds(t *testing.T) {
	g := newTestGPKG(t)
	ctx := context.Background()

	require.NoError(t, g.CreateFeatureTable(ctx, "regions", "MULTIPOLYGON", nil))
	require.NoError(t, g.SetContentsBounds(ctx, "regions", -10.5, 35.2, 4.8, 44.1))

	var minX, minY, maxX, maxY float64
	err := g.db.QueryRow(
		`SELECT min_x, min_y, max_x, max_y FROM gpkg_contents WHERE table_name = 'regions'`,
	).Scan(&minX, &minY, &maxX, &maxY)
	require.NoError(t, err)
	assert.Equal(t, -10.5, minX)
	assert.Equal(t, 44.1, maxY)
}
