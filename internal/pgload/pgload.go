package pgload

import (
	"context"
	"encoding/binary"
	"fmt"

	"github.com/rotisserie/eris"
	"github.com/twpayne/go-geom/encoding/ewkb"
	"go.uber.org/zap"

	"github.com/atlasforge/gazetteer/internal/db"
	"github.com/atlasforge/gazetteer/internal/model"
)

// Stats reports how many rows each layer load affected.
type Stats struct {
	Regions int64
	Places  int64
}

// Load writes both layers into schema.regions and schema.places,
// creating the schema and tables when absent. Regions go first so a
// place's region_id always lands after its region.
func Load(ctx context.Context, pool db.Pool, schema string, regions []model.Region, places []model.Place) (Stats, error) {
	var stats Stats

	if err := ensureTables(ctx, pool, schema); err != nil {
		return stats, err
	}

	log := zap.L().With(zap.String("component", "pgload"), zap.String("schema", schema))

	rows, err := regionRows(regions)
	if err != nil {
		return stats, err
	}
	stats.Regions, err = db.BulkReplace(ctx, pool, db.Replace{
		Schema:  schema,
		Table:   regionsLayer.Table,
		Columns: regionsLayer.Columns,
		Keys:    regionsLayer.Keys,
	}, rows)
	if err != nil {
		return stats, err
	}
	log.Info("regions loaded", zap.Int64("rows", stats.Regions))

	rows, err = placeRows(places)
	if err != nil {
		return stats, err
	}
	stats.Places, err = db.BulkReplace(ctx, pool, db.Replace{
		Schema:  schema,
		Table:   placesLayer.Table,
		Columns: placesLayer.Columns,
		Keys:    placesLayer.Keys,
	}, rows)
	if err != nil {
		return stats, err
	}
	log.Info("places loaded", zap.Int64("rows", stats.Places))

	return stats, nil
}

func ensureTables(ctx context.Context, pool db.Pool, schema string) error {
	if _, err := pool.Exec(ctx, fmt.Sprintf("CREATE SCHEMA IF NOT EXISTS %q", schema)); err != nil {
		return eris.Wrapf(err, "pgload: create schema %s", schema)
	}
	for _, l := range []layer{regionsLayer, placesLayer} {
		if _, err := pool.Exec(ctx, l.createSQL(schema)); err != nil {
			return eris.Wrapf(err, "pgload: create table %s.%s", schema, l.Table)
		}
	}
	return nil
}

func regionRows(regions []model.Region) ([][]any, error) {
	rows := make([][]any, 0, len(regions))
	for i := range regions {
		r := &regions[i]
		var blob []byte
		if r.Geometry != nil {
			var err error
			blob, err = ewkb.Marshal(r.Geometry, binary.LittleEndian)
			if err != nil {
				return nil, eris.Wrapf(err, "pgload: encode region %s geometry", r.ID)
			}
		}
		rows = append(rows, []any{
			r.ID, int16(r.Level), r.GID, r.CountryISO3, r.CountryName,
			r.Name, r.NameASCII, r.LocalName,
			r.SubName, r.SubLocalName, r.TypeName, r.HASC,
			r.AltNames, r.AreaKm2, blob,
		})
	}
	return rows, nil
}

func placeRows(places []model.Place) ([][]any, error) {
	rows := make([][]any, 0, len(places))
	for i := range places {
		p := &places[i]
		blob, err := ewkb.Marshal(p.Point(), binary.LittleEndian)
		if err != nil {
			return nil, eris.Wrapf(err, "pgload: encode place %d geometry", p.GeonameID)
		}
		var regionID any
		if p.RegionID != "" {
			regionID = p.RegionID
		}
		rows = append(rows, []any{
			p.GeonameID, p.Name, p.NameASCII, p.AltNames, p.Lat, p.Lon,
			p.FeatureClass, p.FeatureCode, p.CountryCode, p.Population,
			p.Elevation, p.Timezone, p.Geohash, regionID, string(p.RegionMatch),
			blob,
		})
	}
	return rows, nil
}
