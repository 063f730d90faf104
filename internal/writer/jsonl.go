package writer

import (
	"bufio"
	"context"
	"encoding/json"
	"os"
	"path/filepath"

	"go.uber.org/zap"

	"github.com/atlasforge/gazetteer/internal/model"
)

// gazetteerRecord is one line of the JSONL export: the place, with the
// matched region inlined. Geometry stays out of the flat encoding.
type gazetteerRecord struct {
	model.Place
	Region *model.Region `json:"region,omitempty"`
}

// WriteJSONL writes the joined gazetteer as one JSON object per place.
// Each line carries the place attributes plus a region object resolved
// through the place's region id; unmatched places have no region
// member.
func WriteJSONL(ctx context.Context, path string, regions []model.Region, places []model.Place) error {
	byID := make(map[string]*model.Region, len(regions))
	for i := range regions {
		byID[regions[i].ID] = &regions[i]
	}

	records := make([]gazetteerRecord, len(places))
	for i := range places {
		records[i] = gazetteerRecord{Place: places[i], Region: byID[places[i].RegionID]}
	}

	if err := writeJSONL(ctx, path, records); err != nil {
		return err
	}
	zap.L().Info("jsonl written", zap.String("path", path), zap.Int("places", len(places)))
	return nil
}

func writeJSONL[T any](ctx context.Context, path string, rows []T) error {
	if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
		return &WriteError{Path: path, Err: err}
	}

	tmp := path + ".tmp"
	f, err := os.Create(tmp)
	if err != nil {
		return &WriteError{Path: path, Err: err}
	}

	err = encodeJSONL(ctx, f, rows)
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
	return nil
}

func encodeJSONL[T any](ctx context.Context, f *os.File, rows []T) error {
	w := bufio.NewWriter(f)
	enc := json.NewEncoder(w)
	for i := range rows {
		if i%1024 == 0 {
			if err := ctx.Err(); err != nil {
				return err
			}
		}
		if err := enc.Encode(rows[i]); err != nil {
			return err
		}
	}
	return w.Flush()
}
