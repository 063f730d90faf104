package spatial

// contains runs the even-odd ray cast against the polygon: inside the
// exterior ring and outside every hole. Rings are flat lon/lat pairs.
func (p prepared) contains(lon, lat float64) bool {
	if !p.box.contains(lon, lat) {
		return false
	}
	if len(p.rings) == 0 || !ringContains(p.rings[0], lon, lat) {
		return false
	}
	for _, hole := range p.rings[1:] {
		if ringContains(hole, lon, lat) {
			return false
		}
	}
	return true
}

// ringContains casts a ray east from the point and counts edge
// crossings. The epsilon in the denominator keeps horizontal edges
// from dividing by zero; the strict comparisons give points exactly on
// a shared edge a single, stable owner.
func ringContains(ring []float64, lon, lat float64) bool {
	n := len(ring) / 2
	if n < 3 {
		return false
	}
	inside := false
	for i, j := 0, n-1; i < n; j, i = i, i+1 {
		xi, yi := ring[2*i], ring[2*i+1]
		xj, yj := ring[2*j], ring[2*j+1]
		if (yi > lat) != (yj > lat) && lon < (xj-xi)*(lat-yi)/(yj-yi+1e-12)+xi {
			inside = !inside
		}
	}
	return inside
}
