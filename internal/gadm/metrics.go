package gadm

import (
	"github.com/golang/geo/s2"
	"github.com/twpayne/go-geom"

	"github.com/atlasforge/gazetteer/internal/model"
)

const earthRadiusKm = 6371.0

// Metrics aggregates the per-country figures the level choice runs on:
// geodesic country area and subdivision counts at each level.
func Metrics(levels *Levels) map[string]model.CountryMetrics {
	out := make(map[string]model.CountryMetrics, len(levels.Countries))
	for _, f := range levels.Countries {
		out[f.ISO3] = model.CountryMetrics{
			ISO3:    f.ISO3,
			Name:    f.Country,
			AreaKm2: AreaKm2(f.Geometry),
		}
	}
	for _, f := range levels.Level1 {
		m := ensureMetrics(out, f)
		m.Level1Count++
		out[f.ISO3] = m
	}
	for _, f := range levels.Level2 {
		m := ensureMetrics(out, f)
		m.Level2Count++
		out[f.ISO3] = m
	}
	return out
}

func ensureMetrics(out map[string]model.CountryMetrics, f Feature) model.CountryMetrics {
	m, ok := out[f.ISO3]
	if !ok {
		m = model.CountryMetrics{ISO3: f.ISO3, Name: f.Country}
	}
	return m
}

// AreaKm2 computes the geodesic area of a multipolygon. Only exterior
// rings contribute; holes at country scale are far below the level
// thresholds.
func AreaKm2(mp *geom.MultiPolygon) float64 {
	if mp == nil {
		return 0
	}
	var total float64
	for i := 0; i < mp.NumPolygons(); i++ {
		poly := mp.Polygon(i)
		if poly.NumLinearRings() == 0 {
			continue
		}
		total += ringAreaKm2(poly.LinearRing(0))
	}
	return total
}

func ringAreaKm2(ring *geom.LinearRing) float64 {
	flat := ring.FlatCoords()
	stride := ring.Stride()
	n := len(flat) / stride
	if n < 3 {
		return 0
	}

	pts := make([]s2.Point, 0, n)
	for i := 0; i < n; i++ {
		lon, lat := flat[i*stride], flat[i*stride+1]
		pts = append(pts, s2.PointFromLatLng(s2.LatLngFromDegrees(lat, lon)))
	}
	// Rings repeat their first vertex at the end; loops must not.
	if pts[0] == pts[len(pts)-1] {
		pts = pts[:len(pts)-1]
	}
	if len(pts) < 3 {
		return 0
	}

	loop := s2.LoopFromPoints(pts)
	loop.Normalize()
	return loop.Area() * earthRadiusKm * earthRadiusKm
}
