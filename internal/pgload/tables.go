// Package pgload bulk-loads the built region and place layers into
// PostgreSQL. Geometry travels as EWKB bytes so the target works with
// or without PostGIS; with the extension installed the bytea columns
// cast straight into geometry. Reloads replace rows by key, so running
// the command twice leaves the same tables behind.
package pgload

import "fmt"

// layer describes one target table.
type layer struct {
	Table   string
	Columns []string // insert order; geom last
	Keys    []string
	DDL     string // CREATE TABLE body, without name
}

var regionsLayer = layer{
	Table: "regions",
	Columns: []string{
		"region_id", "level", "gid", "country_iso3", "country_name",
		"region_name", "region_name_ascii", "region_local_name",
		"subregion_name", "subregion_local_name", "type_name", "hasc",
		"alt_names", "area_km2", "geom",
	},
	Keys: []string{"region_id"},
	DDL: `(
	region_id            text PRIMARY KEY,
	level                smallint NOT NULL,
	gid                  text NOT NULL,
	country_iso3         text NOT NULL,
	country_name         text NOT NULL,
	region_name          text NOT NULL,
	region_name_ascii    text,
	region_local_name    text,
	subregion_name       text,
	subregion_local_name text,
	type_name            text,
	hasc                 text,
	alt_names            text[],
	area_km2             double precision NOT NULL,
	geom                 bytea
)`,
}

var placesLayer = layer{
	Table: "places",
	Columns: []string{
		"geoname_id", "name", "name_ascii", "alt_names", "lat", "lon",
		"feature_class", "feature_code", "country_code", "population",
		"elevation", "timezone", "geohash", "region_id", "region_match",
		"geom",
	},
	Keys: []string{"geoname_id"},
	DDL: `(
	geoname_id    bigint PRIMARY KEY,
	name          text NOT NULL,
	name_ascii    text,
	alt_names     text[],
	lat           double precision NOT NULL,
	lon           double precision NOT NULL,
	feature_class text,
	feature_code  text,
	country_code  text,
	population    bigint NOT NULL,
	elevation     integer,
	timezone      text,
	geohash       text,
	region_id     text,
	region_match  text,
	geom          bytea NOT NULL
)`,
}

func (l layer) createSQL(schema string) string {
	return fmt.Sprintf("CREATE TABLE IF NOT EXISTS %q.%q %s", schema, l.Table, l.DDL)
}
