// Package model defines the entities exchanged between pipeline stages:
// administrative regions, gazetteer places, and the per-country metrics
// driving level selection.
package model

import (
	"github.com/twpayne/go-geom"
)

// Level is the administrative hierarchy depth a region was taken from.
type Level int

const (
	LevelCountry   Level = 0 // national boundary
	LevelRegion    Level = 1 // first-level subdivision (state, province, oblast)
	LevelSubregion Level = 2 // second-level subdivision (county, district)
)

// String returns the source layer suffix for the level.
func (l Level) String() string {
	switch l {
	case LevelCountry:
		return "country"
	case LevelRegion:
		return "region"
	case LevelSubregion:
		return "subregion"
	default:
		return "unknown"
	}
}

// Region is one retained administrative unit in the unified output layer.
// ID is minted during the build and is stable across runs for the same
// source unit. Geometry is WGS-84 (SRID 4326) and is serialized separately
// from the attribute schema.
type Region struct {
	ID           string   `json:"region_id"`
	Level        Level    `json:"level"`
	GID          string   `json:"gid"`
	CountryISO3  string   `json:"country_iso3"`
	CountryName  string   `json:"country_name"`
	Name         string   `json:"region_name"`
	NameASCII    string   `json:"region_name_ascii,omitempty"`
	LocalName    string   `json:"region_local_name,omitempty"`
	SubName      string   `json:"subregion_name,omitempty"`
	SubLocalName string   `json:"subregion_local_name,omitempty"`
	TypeName     string   `json:"type_name,omitempty"`
	HASC         string   `json:"hasc,omitempty"`
	AltNames     []string `json:"alt_names,omitempty"`
	AreaKm2      float64  `json:"area_km2"`

	Geometry *geom.MultiPolygon `json:"-"`
}

// Centroid returns the vertex-average centroid of the region's exterior
// rings as (lon, lat). Used only as a proximity anchor, not as a true
// geometric centroid.
func (r *Region) Centroid() (lon, lat float64) {
	if r.Geometry == nil {
		return 0, 0
	}
	var sx, sy float64
	var n int
	for i := range r.Geometry.NumPolygons() {
		poly := r.Geometry.Polygon(i)
		if poly.NumLinearRings() == 0 {
			continue
		}
		ring := poly.LinearRing(0)
		coords := ring.FlatCoords()
		stride := ring.Stride()
		for j := 0; j+1 < len(coords); j += stride {
			sx += coords[j]
			sy += coords[j+1]
			n++
		}
	}
	if n == 0 {
		return 0, 0
	}
	return sx / float64(n), sy / float64(n)
}

// CountryMetrics summarizes one country's source data for level selection.
type CountryMetrics struct {
	ISO3        string  `json:"iso3"`
	Name        string  `json:"name"`
	AreaKm2     float64 `json:"area_km2"`
	Level1Count int     `json:"level1_count"`
	Level2Count int     `json:"level2_count"`
}
