// Package spatial assigns places to regions by point-in-polygon
// containment. Region geometries are loaded once into a degree-grid
// index; lookups scan only the grid cell of the query point, with a
// bounding-box prefilter ahead of the exact ray cast. An optional
// nearest-centroid fallback catches coastal points that fall just
// outside every polygon.
package spatial

import (
	"math"

	"go.uber.org/zap"

	"github.com/atlasforge/gazetteer/internal/model"
)

// DefaultCellSizeDeg is the grid cell edge in degrees. One degree keeps
// cell candidate lists short at city density without inflating the
// index for continent-sized regions.
const DefaultCellSizeDeg = 1.0

type cellKey struct{ x, y int }

type bounds struct {
	minLon, minLat, maxLon, maxLat float64
}

func (b bounds) contains(lon, lat float64) bool {
	return lon >= b.minLon && lon <= b.maxLon && lat >= b.minLat && lat <= b.maxLat
}

// prepared is one polygon of a region flattened for the ray cast:
// ring 0 is the exterior, the rest are holes.
type prepared struct {
	box   bounds
	rings [][]float64
}

type entry struct {
	id    string
	box   bounds
	polys []prepared
}

// Index is immutable after construction and safe for concurrent
// lookups. Entries keep the insertion order of the region slice, and
// Locate returns the first containing region in that order, which
// makes boundary ties deterministic.
type Index struct {
	cellSize float64
	entries  []entry
	cells    map[cellKey][]int
}

// NewIndex builds the grid over the regions. Regions without geometry
// are skipped. cellSizeDeg of zero selects DefaultCellSizeDeg.
func NewIndex(regions []model.Region, cellSizeDeg float64) *Index {
	if cellSizeDeg <= 0 {
		cellSizeDeg = DefaultCellSizeDeg
	}
	ix := &Index{
		cellSize: cellSizeDeg,
		cells:    make(map[cellKey][]int),
	}

	var skipped int
	for i := range regions {
		r := &regions[i]
		if r.Geometry == nil {
			skipped++
			continue
		}
		e := prepareRegion(r)
		idx := len(ix.entries)
		ix.entries = append(ix.entries, e)

		x0, y0 := ix.cellOf(e.box.minLon, e.box.minLat)
		x1, y1 := ix.cellOf(e.box.maxLon, e.box.maxLat)
		for x := x0; x <= x1; x++ {
			for y := y0; y <= y1; y++ {
				k := cellKey{x, y}
				ix.cells[k] = append(ix.cells[k], idx)
			}
		}
	}

	zap.L().Info("spatial index built",
		zap.Int("regions", len(ix.entries)),
		zap.Int("cells", len(ix.cells)),
		zap.Int("skipped", skipped),
		zap.Float64("cell_deg", cellSizeDeg),
	)
	return ix
}

// Len returns the number of indexed regions.
func (ix *Index) Len() int {
	return len(ix.entries)
}

// Locate returns the ID of the first indexed region containing the
// point, in region insertion order.
func (ix *Index) Locate(lon, lat float64) (string, bool) {
	x, y := ix.cellOf(lon, lat)
	for _, i := range ix.cells[cellKey{x, y}] {
		e := &ix.entries[i]
		if !e.box.contains(lon, lat) {
			continue
		}
		for _, p := range e.polys {
			if p.contains(lon, lat) {
				return e.id, true
			}
		}
	}
	return "", false
}

// LocateAll returns every indexed region containing the point, in
// insertion order. The join never needs more than the first hit;
// verification uses the full set to measure the non-overlap assumption
// on the source data.
func (ix *Index) LocateAll(lon, lat float64) []string {
	var ids []string
	x, y := ix.cellOf(lon, lat)
	for _, i := range ix.cells[cellKey{x, y}] {
		e := &ix.entries[i]
		if !e.box.contains(lon, lat) {
			continue
		}
		for _, p := range e.polys {
			if p.contains(lon, lat) {
				ids = append(ids, e.id)
				break
			}
		}
	}
	return ids
}

func (ix *Index) cellOf(lon, lat float64) (int, int) {
	return int(math.Floor(lon / ix.cellSize)), int(math.Floor(lat / ix.cellSize))
}

func prepareRegion(r *model.Region) entry {
	mp := r.Geometry
	e := entry{
		id:    r.ID,
		polys: make([]prepared, 0, mp.NumPolygons()),
	}

	b := mp.Bounds()
	e.box = bounds{minLon: b.Min(0), minLat: b.Min(1), maxLon: b.Max(0), maxLat: b.Max(1)}

	for i := 0; i < mp.NumPolygons(); i++ {
		poly := mp.Polygon(i)
		if poly.NumLinearRings() == 0 {
			continue
		}
		p := prepared{rings: make([][]float64, 0, poly.NumLinearRings())}
		pb := poly.Bounds()
		p.box = bounds{minLon: pb.Min(0), minLat: pb.Min(1), maxLon: pb.Max(0), maxLat: pb.Max(1)}
		for j := 0; j < poly.NumLinearRings(); j++ {
			p.rings = append(p.rings, poly.LinearRing(j).FlatCoords())
		}
		e.polys = append(e.polys, p)
	}
	return e
}
