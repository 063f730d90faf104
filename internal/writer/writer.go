// Package writer serializes the built gazetteer. The region and place
// layers each go into their own GeoPackage; JSONL and GeoJSON exports
// cover pipelines that want flat files instead. Every writer assembles
// its output under a temporary name and renames it into place, so a
// failed run never leaves a truncated file at the final path.
package writer

import (
	"context"
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"github.com/twpayne/go-geom"
	"go.uber.org/zap"

	"github.com/atlasforge/gazetteer/internal/gpkg"
	"github.com/atlasforge/gazetteer/internal/model"
)

// WriteError reports a failure to produce an output file. The
// temporary file is removed before the error is returned.
type WriteError struct {
	Path string
	Err  error
}

func (e *WriteError) Error() string {
	return fmt.Sprintf("writer: write %s: %v", e.Path, e.Err)
}

func (e *WriteError) Unwrap() error { return e.Err }

// RegionsTable and PlacesTable name the feature layer each container
// carries.
const (
	RegionsTable = "regions"
	PlacesTable  = "places"
)

var regionColumns = []gpkg.Column{
	{Name: "region_id", Type: "TEXT"},
	{Name: "level", Type: "INTEGER"},
	{Name: "gid", Type: "TEXT"},
	{Name: "country_iso3", Type: "TEXT"},
	{Name: "country_name", Type: "TEXT"},
	{Name: "region_name", Type: "TEXT"},
	{Name: "region_name_ascii", Type: "TEXT"},
	{Name: "region_local_name", Type: "TEXT"},
	{Name: "subregion_name", Type: "TEXT"},
	{Name: "subregion_local_name", Type: "TEXT"},
	{Name: "type_name", Type: "TEXT"},
	{Name: "hasc", Type: "TEXT"},
	{Name: "alt_names", Type: "TEXT"},
	{Name: "area_km2", Type: "REAL"},
}

var placeColumns = []gpkg.Column{
	{Name: "geoname_id", Type: "INTEGER"},
	{Name: "name", Type: "TEXT"},
	{Name: "name_ascii", Type: "TEXT"},
	{Name: "alt_names", Type: "TEXT"},
	{Name: "lat", Type: "REAL"},
	{Name: "lon", Type: "REAL"},
	{Name: "feature_class", Type: "TEXT"},
	{Name: "feature_code", Type: "TEXT"},
	{Name: "country_code", Type: "TEXT"},
	{Name: "population", Type: "INTEGER"},
	{Name: "elevation", Type: "INTEGER"},
	{Name: "timezone", Type: "TEXT"},
	{Name: "geohash", Type: "TEXT"},
	{Name: "region_id", Type: "TEXT"},
	{Name: "region_match", Type: "TEXT"},
}

// WriteRegions writes the region polygon layer into a GeoPackage at
// path, overwriting any previous container.
func WriteRegions(ctx context.Context, path string, regions []model.Region) error {
	err := writeGeoPackage(ctx, path, func(g *gpkg.DB) error {
		return writeRegionsLayer(ctx, g, regions)
	})
	if err != nil {
		return err
	}
	zap.L().Info("region layer written", zap.String("path", path), zap.Int("regions", len(regions)))
	return nil
}

// WritePlaces writes the place point layer into a GeoPackage at path,
// overwriting any previous container.
func WritePlaces(ctx context.Context, path string, places []model.Place) error {
	err := writeGeoPackage(ctx, path, func(g *gpkg.DB) error {
		return writePlacesLayer(ctx, g, places)
	})
	if err != nil {
		return err
	}
	zap.L().Info("place layer written", zap.String("path", path), zap.Int("places", len(places)))
	return nil
}

// writeGeoPackage runs fill against a fresh container at path+".tmp"
// and renames it over path once the container is closed cleanly.
func writeGeoPackage(ctx context.Context, path string, fill func(g *gpkg.DB) error) error {
	if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
		return &WriteError{Path: path, Err: err}
	}

	tmp := path + ".tmp"
	_ = os.Remove(tmp)

	g, err := gpkg.Create(tmp)
	if err != nil {
		return &WriteError{Path: path, Err: err}
	}

	err = fill(g)
	if cerr := g.Close(); err == nil {
		err = cerr
	}
	if err != nil {
		_ = os.Remove(tmp)
		return &WriteError{Path: path, Err: err}
	}

	if err := os.Rename(tmp, path); err != nil {
		_ = os.Remove(tmp)
		return &WriteError{Path: path, Err: err}
	}
	return nil
}

func writeRegionsLayer(ctx context.Context, g *gpkg.DB, regions []model.Region) error {
	if err := g.CreateFeatureTable(ctx, RegionsTable, "MULTIPOLYGON", regionColumns); err != nil {
		return err
	}

	var ext extent
	rows := make([][]any, 0, len(regions))
	for i := range regions {
		r := &regions[i]
		blob, err := encodeGeometry(r.Geometry)
		if err != nil {
			return err
		}
		if r.Geometry != nil {
			ext.add(r.Geometry.Bounds())
		}
		rows = append(rows, []any{
			blob,
			r.ID,
			int(r.Level),
			r.GID,
			r.CountryISO3,
			r.CountryName,
			r.Name,
			r.NameASCII,
			r.LocalName,
			r.SubName,
			r.SubLocalName,
			r.TypeName,
			r.HASC,
			JoinAltNames(r.AltNames),
			r.AreaKm2,
		})
	}

	if err := g.InsertFeatures(ctx, RegionsTable, columnNames(regionColumns), rows); err != nil {
		return err
	}
	return ext.apply(ctx, g, RegionsTable)
}

func writePlacesLayer(ctx context.Context, g *gpkg.DB, places []model.Place) error {
	if err := g.CreateFeatureTable(ctx, PlacesTable, "POINT", placeColumns); err != nil {
		return err
	}

	var ext extent
	rows := make([][]any, 0, len(places))
	for i := range places {
		p := &places[i]
		pt := p.Point()
		blob, err := gpkg.EncodeGPB(pt, gpkg.SRIDWGS84)
		if err != nil {
			return err
		}
		ext.add(pt.Bounds())
		rows = append(rows, []any{
			blob,
			p.GeonameID,
			p.Name,
			p.NameASCII,
			JoinAltNames(p.AltNames),
			p.Lat,
			p.Lon,
			p.FeatureClass,
			p.FeatureCode,
			p.CountryCode,
			p.Population,
			p.Elevation,
			p.Timezone,
			p.Geohash,
			p.RegionID,
			string(p.RegionMatch),
		})
	}

	if err := g.InsertFeatures(ctx, PlacesTable, columnNames(placeColumns), rows); err != nil {
		return err
	}
	return ext.apply(ctx, g, PlacesTable)
}

func encodeGeometry(mp *geom.MultiPolygon) ([]byte, error) {
	if mp == nil {
		return nil, nil
	}
	return gpkg.EncodeGPB(mp, gpkg.SRIDWGS84)
}

func columnNames(cols []gpkg.Column) []string {
	out := make([]string, len(cols))
	for i, c := range cols {
		out[i] = c.Name
	}
	return out
}

// JoinAltNames flattens a name list into the single pipe-separated
// attribute column. Pipe is safe as the separator because SplitList
// rewrites pipes inside individual names when the sources are parsed.
func JoinAltNames(names []string) string {
	return strings.Join(names, "|")
}

// extent accumulates the dataset envelope across geometries.
type extent struct {
	set                    bool
	minX, minY, maxX, maxY float64
}

func (e *extent) add(b *geom.Bounds) {
	if b == nil {
		return
	}
	if !e.set {
		e.set = true
		e.minX, e.minY, e.maxX, e.maxY = b.Min(0), b.Min(1), b.Max(0), b.Max(1)
		return
	}
	e.minX = min(e.minX, b.Min(0))
	e.minY = min(e.minY, b.Min(1))
	e.maxX = max(e.maxX, b.Max(0))
	e.maxY = max(e.maxY, b.Max(1))
}

func (e *extent) apply(ctx context.Context, g *gpkg.DB, table string) error {
	if !e.set {
		return nil
	}
	return g.SetContentsBounds(ctx, table, e.minX, e.minY, e.maxX, e.maxY)
}
