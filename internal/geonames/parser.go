// Package geonames parses the populated-places dump into gazetteer
// places. The dump is one tab-separated row per place with a fixed
// field order; rows that do not parse are counted and skipped rather
// than failing the run, since every release ships a few broken lines.
package geonames

import (
	"context"
	"io"
	"os"
	"strconv"
	"strings"

	"github.com/TomiHiltunen/geohash-golang"
	"github.com/rotisserie/eris"
	"go.uber.org/zap"

	"github.com/atlasforge/gazetteer/internal/fetcher"
	"github.com/atlasforge/gazetteer/internal/model"
	"github.com/atlasforge/gazetteer/internal/names"
)

// Field positions in the dump.
const (
	fieldGeonameID    = 0
	fieldName         = 1
	fieldASCIIName    = 2
	fieldAltNames     = 3
	fieldLat          = 4
	fieldLon          = 5
	fieldFeatureClass = 6
	fieldFeatureCode  = 7
	fieldCountryCode  = 8
	fieldPopulation   = 14
	fieldElevation    = 15
	fieldTimezone     = 17

	fieldCount = 19
)

type Options struct {
	// MinPopulation drops places below the population cutoff. The
	// cities dump is already filtered at source; the cutoff re-applies
	// it so a larger dump can be substituted without config changes.
	MinPopulation int64
	// GeohashPrecision sets the geohash length attached to each place.
	// Zero disables geohashes.
	GeohashPrecision int
}

func DefaultOptions() Options {
	return Options{MinPopulation: 15_000, GeohashPrecision: 9}
}

// Stats counts what Parse saw.
type Stats struct {
	Read        int
	Kept        int
	Malformed   int
	BelowCutoff int
}

// ParseFile parses a dump file from disk.
func ParseFile(ctx context.Context, path string, opts Options) ([]model.Place, Stats, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, Stats{}, eris.Wrapf(err, "geonames: open %s", path)
	}
	defer f.Close() //nolint:errcheck

	return Parse(ctx, f, opts)
}

// Parse reads the dump from r in row order. Malformed rows and rows
// below the population cutoff are dropped and counted.
func Parse(ctx context.Context, r io.Reader, opts Options) ([]model.Place, Stats, error) {
	rows, errCh := fetcher.StreamTSV(ctx, r, fetcher.TSVOptions{FieldLimit: fieldCount})

	var places []model.Place
	var stats Stats
	var firstErr error
	for fields := range rows {
		stats.Read++
		p, err := parseRow(fields, opts)
		if err != nil {
			if firstErr == nil {
				firstErr = err
			}
			stats.Malformed++
			continue
		}
		if p.Population < opts.MinPopulation {
			stats.BelowCutoff++
			continue
		}
		places = append(places, p)
	}
	if err := <-errCh; err != nil {
		return nil, stats, eris.Wrap(err, "geonames: read dump")
	}

	stats.Kept = len(places)
	if stats.Malformed > 0 {
		zap.L().Warn("skipped malformed place rows",
			zap.Int("malformed", stats.Malformed),
			zap.NamedError("first_error", firstErr),
		)
	}
	zap.L().Info("places parsed",
		zap.Int("read", stats.Read),
		zap.Int("kept", stats.Kept),
		zap.Int("below_cutoff", stats.BelowCutoff),
	)
	return places, stats, nil
}

func parseRow(fields []string, opts Options) (model.Place, error) {
	if len(fields) < fieldCount {
		return model.Place{}, eris.Errorf("geonames: row has %d fields, want %d", len(fields), fieldCount)
	}

	id, err := strconv.ParseInt(strings.TrimSpace(fields[fieldGeonameID]), 10, 64)
	if err != nil {
		return model.Place{}, eris.Wrap(err, "geonames: parse geoname id")
	}

	lat, err := strconv.ParseFloat(strings.TrimSpace(fields[fieldLat]), 64)
	if err != nil {
		return model.Place{}, eris.Wrapf(err, "geonames: parse latitude of %d", id)
	}
	lon, err := strconv.ParseFloat(strings.TrimSpace(fields[fieldLon]), 64)
	if err != nil {
		return model.Place{}, eris.Wrapf(err, "geonames: parse longitude of %d", id)
	}
	if lat < -90 || lat > 90 || lon < -180 || lon > 180 {
		return model.Place{}, eris.Errorf("geonames: coordinates %f, %f of %d out of range", lat, lon, id)
	}

	var population int64
	if s := strings.TrimSpace(fields[fieldPopulation]); s != "" {
		population, err = strconv.ParseInt(s, 10, 64)
		if err != nil {
			return model.Place{}, eris.Wrapf(err, "geonames: parse population of %d", id)
		}
	}

	// The elevation column is unreliable in the source; garbage reads
	// as zero instead of dropping the row.
	var elevation int
	if s := strings.TrimSpace(fields[fieldElevation]); s != "" {
		if v, err := strconv.Atoi(s); err == nil {
			elevation = v
		}
	}

	name := strings.TrimSpace(fields[fieldName])
	ascii := strings.TrimSpace(fields[fieldASCIIName])
	if name == "" {
		name = ascii
	}
	if name == "" {
		return model.Place{}, eris.Errorf("geonames: row %d has no name", id)
	}
	if ascii == "" {
		ascii = names.Fold(name)
	}

	p := model.Place{
		GeonameID:    id,
		Name:         name,
		NameASCII:    ascii,
		AltNames:     names.SplitList(fields[fieldAltNames], ","),
		Lat:          lat,
		Lon:          lon,
		FeatureClass: strings.TrimSpace(fields[fieldFeatureClass]),
		FeatureCode:  strings.TrimSpace(fields[fieldFeatureCode]),
		CountryCode:  strings.TrimSpace(fields[fieldCountryCode]),
		Population:   population,
		Elevation:    elevation,
		Timezone:     strings.TrimSpace(fields[fieldTimezone]),
	}
	if opts.GeohashPrecision > 0 {
		p.Geohash = geohash.EncodeWithPrecision(lat, lon, opts.GeohashPrecision)
	}
	return p, nil
}
