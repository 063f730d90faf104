package writer

import (
	"context"
	"strings"

	"github.com/rotisserie/eris"
	"github.com/twpayne/go-geom"

	"github.com/atlasforge/gazetteer/internal/gpkg"
	"github.com/atlasforge/gazetteer/internal/model"
)

// ReadRegions loads the region layer back from a GeoPackage written by
// WriteRegions. Rows come back in insertion order.
func ReadRegions(ctx context.Context, path string) ([]model.Region, error) {
	g, err := gpkg.Open(path)
	if err != nil {
		return nil, err
	}
	defer g.Close() //nolint:errcheck

	var regions []model.Region
	err = g.ReadFeatures(ctx, RegionsTable, columnNames(regionColumns), func(geometry geom.T, attrs []any) error {
		r := model.Region{
			ID:           asString(attrs[0]),
			Level:        model.Level(asInt64(attrs[1])),
			GID:          asString(attrs[2]),
			CountryISO3:  asString(attrs[3]),
			CountryName:  asString(attrs[4]),
			Name:         asString(attrs[5]),
			NameASCII:    asString(attrs[6]),
			LocalName:    asString(attrs[7]),
			SubName:      asString(attrs[8]),
			SubLocalName: asString(attrs[9]),
			TypeName:     asString(attrs[10]),
			HASC:         asString(attrs[11]),
			AltNames:     SplitAltNames(asString(attrs[12])),
			AreaKm2:      asFloat64(attrs[13]),
		}
		if geometry != nil {
			mp, ok := geometry.(*geom.MultiPolygon)
			if !ok {
				return eris.Errorf("writer: region %s: geometry is %T, want multipolygon", r.ID, geometry)
			}
			r.Geometry = mp
		}
		regions = append(regions, r)
		return nil
	})
	if err != nil {
		return nil, err
	}
	return regions, nil
}

// ReadPlaces loads the place layer back from a GeoPackage written by
// WritePlaces. The point geometry is discarded after checking its type;
// Lat/Lon carry the coordinates.
func ReadPlaces(ctx context.Context, path string) ([]model.Place, error) {
	g, err := gpkg.Open(path)
	if err != nil {
		return nil, err
	}
	defer g.Close() //nolint:errcheck

	var places []model.Place
	err = g.ReadFeatures(ctx, PlacesTable, columnNames(placeColumns), func(geometry geom.T, attrs []any) error {
		p := model.Place{
			GeonameID:    asInt64(attrs[0]),
			Name:         asString(attrs[1]),
			NameASCII:    asString(attrs[2]),
			AltNames:     SplitAltNames(asString(attrs[3])),
			Lat:          asFloat64(attrs[4]),
			Lon:          asFloat64(attrs[5]),
			FeatureClass: asString(attrs[6]),
			FeatureCode:  asString(attrs[7]),
			CountryCode:  asString(attrs[8]),
			Population:   asInt64(attrs[9]),
			Elevation:    int(asInt64(attrs[10])),
			Timezone:     asString(attrs[11]),
			Geohash:      asString(attrs[12]),
			RegionID:     asString(attrs[13]),
			RegionMatch:  model.MatchKind(asString(attrs[14])),
		}
		if geometry != nil {
			if _, ok := geometry.(*geom.Point); !ok {
				return eris.Errorf("writer: place %d: geometry is %T, want point", p.GeonameID, geometry)
			}
		}
		places = append(places, p)
		return nil
	})
	if err != nil {
		return nil, err
	}
	return places, nil
}

// ReadPlacePoints is ReadPlaces keeping the decoded point geometries,
// index-aligned with the returned places. Verification compares them
// against Lat/Lon.
func ReadPlacePoints(ctx context.Context, path string) ([]model.Place, []*geom.Point, error) {
	g, err := gpkg.Open(path)
	if err != nil {
		return nil, nil, err
	}
	defer g.Close() //nolint:errcheck

	var places []model.Place
	var points []*geom.Point
	cols := []string{"geoname_id", "lat", "lon", "region_id", "region_match"}
	err = g.ReadFeatures(ctx, PlacesTable, cols, func(geometry geom.T, attrs []any) error {
		p := model.Place{
			GeonameID:   asInt64(attrs[0]),
			Lat:         asFloat64(attrs[1]),
			Lon:         asFloat64(attrs[2]),
			RegionID:    asString(attrs[3]),
			RegionMatch: model.MatchKind(asString(attrs[4])),
		}
		pt, _ := geometry.(*geom.Point)
		places = append(places, p)
		points = append(points, pt)
		return nil
	})
	if err != nil {
		return nil, nil, err
	}
	return places, points, nil
}

// SplitAltNames is the inverse of JoinAltNames.
func SplitAltNames(s string) []string {
	if s == "" {
		return nil
	}
	return strings.Split(s, "|")
}

func asString(v any) string {
	s, _ := v.(string)
	return s
}

func asInt64(v any) int64 {
	switch n := v.(type) {
	case int64:
		return n
	case float64:
		return int64(n)
	}
	return 0
}

func asFloat64(v any) float64 {
	switch n := v.(type) {
	case float64:
		return n
	case int64:
		return float64(n)
	}
	return 0
}
