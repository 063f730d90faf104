package writer

import (
	"bufio"
	"context"
	"encoding/json"
	"os"
	"path/filepath"

	"github.com/twpayne/go-geom/encoding/geojson"
	"go.uber.org/zap"

	"github.com/atlasforge/gazetteer/internal/model"
)

var nullGeometry = json.RawMessage("null")

// geoFeature is the GeoJSON feature envelope. Geometry is pre-encoded
// so features can stream out one at a time.
type geoFeature struct {
	Type       string          `json:"type"`
	ID         any             `json:"id"`
	Geometry   json.RawMessage `json:"geometry"`
	Properties any             `json:"properties"`
}

// WriteRegionsGeoJSON writes the region layer as a FeatureCollection.
// Feature properties mirror the JSONL attribute encoding; a region
// without geometry gets a null geometry member.
func WriteRegionsGeoJSON(ctx context.Context, path string, regions []model.Region) error {
	return writeFeatureCollection(ctx, path, "regions", len(regions), func(emit func(geoFeature) error) error {
		for i := range regions {
			if err := ctx.Err(); err != nil {
				return err
			}
			r := &regions[i]
			g := nullGeometry
			if r.Geometry != nil {
				encoded, err := geojson.Marshal(r.Geometry)
				if err != nil {
					return err
				}
				g = encoded
			}
			if err := emit(geoFeature{Type: "Feature", ID: r.ID, Geometry: g, Properties: r}); err != nil {
				return err
			}
		}
		return nil
	})
}

// WritePlacesGeoJSON writes the place layer as a FeatureCollection of
// points.
func WritePlacesGeoJSON(ctx context.Context, path string, places []model.Place) error {
	return writeFeatureCollection(ctx, path, "places", len(places), func(emit func(geoFeature) error) error {
		for i := range places {
			if i%1024 == 0 {
				if err := ctx.Err(); err != nil {
					return err
				}
			}
			p := &places[i]
			g, err := geojson.Marshal(p.Point())
			if err != nil {
				return err
			}
			if err := emit(geoFeature{Type: "Feature", ID: p.GeonameID, Geometry: g, Properties: p}); err != nil {
				return err
			}
		}
		return nil
	})
}

func writeFeatureCollection(ctx context.Context, path, kind string, count int, each func(emit func(geoFeature) error) error) error {
	if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
		return &WriteError{Path: path, Err: err}
	}

	tmp := path + ".tmp"
	f, err := os.Create(tmp)
	if err != nil {
		return &WriteError{Path: path, Err: err}
	}

	err = encodeFeatureCollection(f, each)
	if cerr := f.Close(); err == nil {
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

	zap.L().Info("geojson written", zap.String("path", path), zap.String("kind", kind), zap.Int("features", count))
	return nil
}

func encodeFeatureCollection(f *os.File, each func(emit func(geoFeature) error) error) error {
	w := bufio.NewWriter(f)
	if _, err := w.WriteString(`{"type":"FeatureCollection","features":[`); err != nil {
		return err
	}

	first := true
	emit := func(feat geoFeature) error {
		if !first {
			if err := w.WriteByte(','); err != nil {
				return err
			}
		}
		first = false
		encoded, err := json.Marshal(feat)
		if err != nil {
			return err
		}
		_, err = w.Write(encoded)
		return err
	}
	if err := each(emit); err != nil {
		return err
	}

	if _, err := w.WriteString("]}\n"); err != nil {
		return err
	}
	return w.Flush()
}
