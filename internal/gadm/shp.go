package gadm

import (
	"context"
	"os"
	"path/filepath"
	"strings"

	"github.com/jonas-p/go-shp"
	"github.com/rotisserie/eris"
	"github.com/twpayne/go-geom"
	"go.uber.org/zap"

	"github.com/atlasforge/gazetteer/internal/model"
)

// readShapefiles reads the three levels from <layer>.shp files under
// dir. Layer names may carry the release prefix of the distributed
// archives, so gadm41_ADM_1.shp is found for layer ADM_1 as well.
func readShapefiles(ctx context.Context, dir string, layers Layers) (*Levels, error) {
	var out Levels
	for _, level := range []model.Level{model.LevelCountry, model.LevelRegion, model.LevelSubregion} {
		path, err := findShapefile(dir, layers.name(level))
		if err != nil {
			return nil, err
		}
		feats, err := readShapefileLayer(ctx, path, layerSpecs[level])
		if err != nil {
			return nil, err
		}
		switch level {
		case model.LevelCountry:
			out.Countries = feats
		case model.LevelRegion:
			out.Level1 = feats
		case model.LevelSubregion:
			out.Level2 = feats
		}
	}
	return &out, nil
}

func findShapefile(dir, layer string) (string, error) {
	exact := filepath.Join(dir, layer+".shp")
	if _, err := os.Stat(exact); err == nil {
		return exact, nil
	}

	matches, err := filepath.Glob(filepath.Join(dir, "*"+layer+".shp"))
	if err != nil || len(matches) == 0 {
		return "", eris.Errorf("gadm: no %s.shp under %s", layer, dir)
	}
	return matches[0], nil
}

func readShapefileLayer(ctx context.Context, path string, spec layerSpec) ([]Feature, error) {
	reader, err := shp.Open(path)
	if err != nil {
		return nil, eris.Wrapf(err, "gadm: open shapefile %s", path)
	}
	defer func() { _ = reader.Close() }()

	fields := reader.Fields()
	fieldIdx := make(map[string]int, len(fields))
	present := make([]string, 0, len(fields))
	for i, f := range fields {
		name := strings.TrimRight(f.String(), "\x00")
		fieldIdx[strings.ToUpper(name)] = i
		present = append(present, name)
	}

	layer := strings.TrimSuffix(filepath.Base(path), filepath.Ext(path))
	countryCol, err := spec.checkColumns(layer, present)
	if err != nil {
		return nil, err
	}

	var feats []Feature
	var skipped int
	for reader.Next() {
		if err := ctx.Err(); err != nil {
			return nil, eris.Wrapf(err, "gadm: read shapefile %s", path)
		}
		_, shape := reader.Shape()

		poly, ok := shape.(*shp.Polygon)
		if !ok {
			skipped++
			continue
		}
		mp := shpPolygonToMultiPolygon(poly)
		if mp == nil {
			skipped++
			continue
		}

		get := func(col string) string {
			i, ok := fieldIdx[col]
			if !ok {
				return ""
			}
			return gadmString(strings.TrimRight(reader.Attribute(i), "\x00"))
		}
		f := makeFeature(spec.level, countryCol, get)
		f.Geometry = mp
		feats = append(feats, f)
	}

	if skipped > 0 {
		zap.L().Warn("skipped shapefile records",
			zap.String("layer", layer),
			zap.Int("skipped", skipped),
		)
	}
	zap.L().Info("layer read",
		zap.String("layer", layer),
		zap.Int("features", len(feats)),
	)
	return feats, nil
}

// shpPolygonToMultiPolygon converts a shapefile polygon record. Part
// winding carries the ring role in the shapefile format: clockwise
// parts are outer rings, counter-clockwise parts are holes. Each outer
// part opens a new polygon and each hole is attached to the outer ring
// that contains it, so enclave boundaries survive the same way they do
// in the GeoPackage layers.
func shpPolygonToMultiPolygon(p *shp.Polygon) *geom.MultiPolygon {
	if p == nil || p.NumParts == 0 || len(p.Points) == 0 {
		return nil
	}

	var polys []*geom.Polygon
	for i := int32(0); i < p.NumParts; i++ {
		start := p.Parts[i]
		end := int32(len(p.Points))
		if i+1 < p.NumParts {
			end = p.Parts[i+1]
		}

		flat := make([]float64, 0, (end-start)*2)
		for j := start; j < end; j++ {
			flat = append(flat, p.Points[j].X, p.Points[j].Y)
		}
		if len(flat) < 8 {
			continue
		}

		ring := geom.NewLinearRingFlat(geom.XY, flat)
		if signedRingArea(flat) < 0 {
			if owner := enclosingPolygon(polys, flat[0], flat[1]); owner != nil {
				if err := owner.Push(ring); err == nil {
					continue
				}
			}
			// A hole with no enclosing outer ring is malformed input;
			// keep it as its own outer ring rather than dropping area.
		}
		poly := geom.NewPolygon(geom.XY)
		if err := poly.Push(ring); err != nil {
			continue
		}
		polys = append(polys, poly)
	}

	if len(polys) == 0 {
		return nil
	}
	mp := geom.NewMultiPolygon(geom.XY).SetSRID(4326)
	for _, poly := range polys {
		if err := mp.Push(poly); err != nil {
			continue
		}
	}
	if mp.NumPolygons() == 0 {
		return nil
	}
	return mp
}

// signedRingArea is the shoelace sum of a flat XY ring, positive for
// clockwise winding. Shapefile outer rings wind clockwise.
func signedRingArea(flat []float64) float64 {
	var sum float64
	n := len(flat)
	for i := 0; i < n; i += 2 {
		j := (i + 2) % n
		sum += (flat[j] - flat[i]) * (flat[j+1] + flat[i+1])
	}
	return sum
}

// enclosingPolygon finds the outer ring containing the point, checking
// later parts first since holes follow their outer ring in the record.
func enclosingPolygon(polys []*geom.Polygon, lon, lat float64) *geom.Polygon {
	for i := len(polys) - 1; i >= 0; i-- {
		if ringContainsPoint(polys[i].LinearRing(0).FlatCoords(), lon, lat) {
			return polys[i]
		}
	}
	return nil
}

// ringContainsPoint ray-casts against one flat XY ring.
func ringContainsPoint(flat []float64, lon, lat float64) bool {
	inside := false
	n := len(flat) / 2
	for i, j := 0, n-1; i < n; j, i = i, i+1 {
		xi, yi := flat[2*i], flat[2*i+1]
		xj, yj := flat[2*j], flat[2*j+1]
		if (yi > lat) != (yj > lat) &&
			lon < (xj-xi)*(lat-yi)/(yj-yi)+xi {
			inside = !inside
		}
	}
	return inside
}
