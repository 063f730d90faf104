package model

import (
	"github.com/twpayne/go-geom"
)

// MatchKind records how a place acquired its region identifier.
type MatchKind string

const (
	MatchWithin  MatchKind = "within"  // point-in-polygon containment
	MatchNearest MatchKind = "nearest" // nearest-region fallback
	MatchNone    MatchKind = ""        // outside all regions
)

// Place is one populated place from the gazetteer source. Lat and Lon are
// the authoritative coordinates; Point() derives the geometry from them so
// the two encodings cannot drift apart.
type Place struct {
	GeonameID    int64     `json:"geoname_id"`
	Name         string    `json:"name"`
	NameASCII    string    `json:"name_ascii,omitempty"`
	AltNames     []string  `json:"alt_names,omitempty"`
	Lat          float64   `json:"lat"`
	Lon          float64   `json:"lon"`
	FeatureClass string    `json:"feature_class,omitempty"`
	FeatureCode  string    `json:"feature_code,omitempty"`
	CountryCode  string    `json:"country_code,omitempty"`
	Population   int64     `json:"population"`
	Elevation    int       `json:"elevation,omitempty"`
	Timezone     string    `json:"timezone,omitempty"`
	Geohash      string    `json:"geohash,omitempty"`
	RegionID     string    `json:"region_id,omitempty"`
	RegionMatch  MatchKind `json:"region_match,omitempty"`
}

// Point returns the place location as a WGS-84 point geometry.
func (p *Place) Point() *geom.Point {
	return geom.NewPointFlat(geom.XY, []float64{p.Lon, p.Lat}).SetSRID(4326)
}
