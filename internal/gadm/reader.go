package gadm

import (
	"context"
	"os"
	"path/filepath"
	"strings"

	"github.com/rotisserie/eris"
	"github.com/twpayne/go-geom"
	"go.uber.org/zap"

	"github.com/atlasforge/gazetteer/internal/gpkg"
	"github.com/atlasforge/gazetteer/internal/model"
)

// Feature is one boundary row read from a source layer. Fields that a
// layer does not carry stay empty; the NA marker the source uses for
// absent values is normalized to empty at read time.
type Feature struct {
	GID     string
	ISO3    string
	Country string

	Name      string
	VarNames  string
	LocalName string
	TypeName  string
	HASC      string

	ParentGID       string
	ParentName      string
	ParentLocalName string

	Geometry *geom.MultiPolygon
}

// Levels holds all three source layers in row order. Slice order is the
// source row order and downstream stages depend on it staying stable.
type Levels struct {
	Countries []Feature
	Level1    []Feature
	Level2    []Feature
}

// Layers names the source layers to read. For a GeoPackage these are
// table names; for a shapefile directory they are file base names.
type Layers struct {
	Country   string
	Region    string
	Subregion string
}

func DefaultLayers() Layers {
	return Layers{Country: "ADM_0", Region: "ADM_1", Subregion: "ADM_2"}
}

func (l Layers) name(level model.Level) string {
	switch level {
	case model.LevelRegion:
		return l.Region
	case model.LevelSubregion:
		return l.Subregion
	default:
		return l.Country
	}
}

// ReadLevels reads all three boundary levels from path, which is either
// a GeoPackage file or a directory of shapefiles.
func ReadLevels(ctx context.Context, path string, layers Layers) (*Levels, error) {
	info, err := os.Stat(path)
	if err != nil {
		return nil, eris.Wrapf(err, "gadm: stat source %s", path)
	}
	if info.IsDir() {
		return readShapefiles(ctx, path, layers)
	}
	if strings.EqualFold(filepath.Ext(path), ".gpkg") {
		return readGeoPackage(ctx, path, layers)
	}
	return nil, eris.Errorf("gadm: unsupported source %s, want a .gpkg file or a shapefile directory", path)
}

func readGeoPackage(ctx context.Context, path string, layers Layers) (*Levels, error) {
	g, err := gpkg.Open(path)
	if err != nil {
		return nil, eris.Wrapf(err, "gadm: open geopackage %s", path)
	}
	defer func() { _ = g.Close() }()

	var out Levels
	for _, level := range []model.Level{model.LevelCountry, model.LevelRegion, model.LevelSubregion} {
		feats, err := readGPKGLayer(ctx, g, layers.name(level), layerSpecs[level])
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

func readGPKGLayer(ctx context.Context, g *gpkg.DB, layer string, spec layerSpec) ([]Feature, error) {
	ok, err := g.HasTable(ctx, layer)
	if err != nil {
		return nil, eris.Wrapf(err, "gadm: inspect layer %s", layer)
	}
	if !ok {
		have, _ := g.FeatureTables(ctx)
		return nil, eris.Errorf("gadm: layer %s not found in %s (feature tables: %s)",
			layer, g.Path(), strings.Join(have, ", "))
	}

	present, err := g.TableColumns(ctx, layer)
	if err != nil {
		return nil, eris.Wrapf(err, "gadm: read columns of %s", layer)
	}
	countryCol, err := spec.checkColumns(layer, present)
	if err != nil {
		return nil, err
	}

	sel := spec.columns(countryCol, present)
	idx := make(map[string]int, len(sel))
	for i, c := range sel {
		idx[c] = i
	}

	var feats []Feature
	var skipped int
	err = g.ReadFeatures(ctx, layer, sel, func(gt geom.T, attrs []any) error {
		mp := asMultiPolygon(gt)
		if mp == nil {
			skipped++
			return nil
		}
		get := func(col string) string {
			i, ok := idx[col]
			if !ok {
				return ""
			}
			return gadmString(attrs[i])
		}
		f := makeFeature(spec.level, countryCol, get)
		f.Geometry = mp
		feats = append(feats, f)
		return nil
	})
	if err != nil {
		return nil, eris.Wrapf(err, "gadm: read layer %s", layer)
	}

	if skipped > 0 {
		zap.L().Warn("skipped rows without polygon geometry",
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

func makeFeature(level model.Level, countryCol string, get func(string) string) Feature {
	f := Feature{
		ISO3:    get("GID_0"),
		Country: get(countryCol),
	}
	switch level {
	case model.LevelCountry:
		f.GID = f.ISO3
		f.Name = f.Country
	case model.LevelRegion:
		f.GID = get("GID_1")
		f.Name = get("NAME_1")
		f.VarNames = get("VARNAME_1")
		f.LocalName = get("NL_NAME_1")
		f.TypeName = get("ENGTYPE_1")
		f.HASC = get("HASC_1")
		f.ParentGID = f.ISO3
	case model.LevelSubregion:
		f.GID = get("GID_2")
		f.Name = get("NAME_2")
		f.VarNames = get("VARNAME_2")
		f.LocalName = get("NL_NAME_2")
		f.TypeName = get("ENGTYPE_2")
		f.HASC = get("HASC_2")
		f.ParentGID = get("GID_1")
		f.ParentName = get("NAME_1")
		f.ParentLocalName = get("NL_NAME_1")
	}
	return f
}

// gadmString normalizes a raw attribute value. The source writes the
// literal string NA for absent values.
func gadmString(v any) string {
	var s string
	switch t := v.(type) {
	case nil:
		return ""
	case string:
		s = t
	case []byte:
		s = string(t)
	default:
		return ""
	}
	s = strings.TrimSpace(s)
	if s == "NA" {
		return ""
	}
	return s
}

// asMultiPolygon normalizes read geometries to MultiPolygon. Rows with
// other geometry types are skipped by the caller.
func asMultiPolygon(g geom.T) *geom.MultiPolygon {
	switch t := g.(type) {
	case *geom.MultiPolygon:
		return t
	case *geom.Polygon:
		mp := geom.NewMultiPolygon(geom.XY).SetSRID(t.SRID())
		if err := mp.Push(t); err != nil {
			return nil
		}
		return mp
	default:
		return nil
	}
}
