package spatial

import (
	"math"

	"github.com/atlasforge/gazetteer/internal/model"
)

// Nearest answers nearest-region-centroid queries for places that miss
// every polygon, capped at a maximum distance so open-ocean points stay
// unassigned.
type Nearest struct {
	root  *kdNode
	maxKm float64
}

type centroid struct {
	lon, lat float64
	id       string
}

type kdNode struct {
	c           centroid
	axis        int // 0 lon, 1 lat
	left, right *kdNode
}

// NewNearest builds a kd-tree over region centroids. Regions without
// geometry are skipped.
func NewNearest(regions []model.Region, maxKm float64) *Nearest {
	pts := make([]centroid, 0, len(regions))
	for i := range regions {
		r := &regions[i]
		if r.Geometry == nil {
			continue
		}
		lon, lat := r.Centroid()
		pts = append(pts, centroid{lon: lon, lat: lat, id: r.ID})
	}
	return &Nearest{root: buildKD(pts, 0), maxKm: maxKm}
}

// Lookup returns the closest centroid's region and its distance, or
// ok=false when nothing lies within the distance cap.
func (n *Nearest) Lookup(lon, lat float64) (id string, km float64, ok bool) {
	if n == nil || n.root == nil {
		return "", 0, false
	}
	best, d := n.root.nearest(lon, lat)
	if best == nil || d > n.maxKm {
		return "", 0, false
	}
	return best.id, d, true
}

func buildKD(pts []centroid, depth int) *kdNode {
	if len(pts) == 0 {
		return nil
	}
	axis := depth % 2
	mid := len(pts) / 2
	selectNth(pts, mid, axis)
	node := &kdNode{c: pts[mid], axis: axis}
	node.left = buildKD(pts[:mid], depth+1)
	node.right = buildKD(pts[mid+1:], depth+1)
	return node
}

// selectNth partially sorts pts so the nth element is in place for the
// given axis.
func selectNth(pts []centroid, n, axis int) {
	lo, hi := 0, len(pts)-1
	for lo < hi {
		p := partition(pts, lo, hi, (lo+hi)/2, axis)
		switch {
		case p == n:
			return
		case n < p:
			hi = p - 1
		default:
			lo = p + 1
		}
	}
}

func partition(pts []centroid, lo, hi, pivot, axis int) int {
	pv := pts[pivot]
	pts[pivot], pts[hi] = pts[hi], pts[pivot]
	i := lo
	for j := lo; j < hi; j++ {
		if axisLess(pts[j], pv, axis) {
			pts[i], pts[j] = pts[j], pts[i]
			i++
		}
	}
	pts[i], pts[hi] = pts[hi], pts[i]
	return i
}

func axisLess(a, b centroid, axis int) bool {
	if axis == 0 {
		return a.lon < b.lon
	}
	return a.lat < b.lat
}

// nearest walks the tree pruning subtrees whose splitting plane is
// farther than the best hit so far. Longitude wrap at the antimeridian
// is not considered; the fallback radius is far below hemisphere scale.
func (n *kdNode) nearest(lon, lat float64) (*centroid, float64) {
	const kmPerDeg = 111.19
	var best *centroid
	bestD := math.MaxFloat64

	var dfs func(node *kdNode)
	dfs = func(node *kdNode) {
		if node == nil {
			return
		}
		d := Haversine(lat, lon, node.c.lat, node.c.lon)
		if d < bestD {
			bestD = d
			best = &node.c
		}
		var key, split float64
		if node.axis == 0 {
			key, split = lon, node.c.lon
		} else {
			key, split = lat, node.c.lat
		}
		first, second := node.left, node.right
		if key > split {
			first, second = node.right, node.left
		}
		dfs(first)
		// Cross the splitting plane only when it can still hold a
		// closer point. Longitude degrees shrink with latitude.
		planeKm := math.Abs(key-split) * kmPerDeg
		if node.axis == 0 {
			planeKm *= math.Cos(lat * math.Pi / 180)
		}
		if planeKm < bestD {
			dfs(second)
		}
	}
	dfs(n)
	return best, bestD
}

// Haversine returns the great-circle distance in kilometers.
func Haversine(lat1, lon1, lat2, lon2 float64) float64 {
	const r = 6371.0
	dLat := (lat2 - lat1) * math.Pi / 180
	dLon := (lon2 - lon1) * math.Pi / 180
	a := math.Sin(dLat/2)*math.Sin(dLat/2) +
		math.Cos(lat1*math.Pi/180)*math.Cos(lat2*math.Pi/180)*math.Sin(dLon/2)*math.Sin(dLon/2)
	return r * 2 * math.Atan2(math.Sqrt(a), math.Sqrt(1-a))
}
