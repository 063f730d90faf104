package gadm

import "github.com/atlasforge/gazetteer/internal/model"

// Heuristic holds the thresholds of the per-country level choice.
type Heuristic struct {
	// DissolveMaxAreaKm2 is the country area at or below which the
	// country collapses to a single region.
	DissolveMaxAreaKm2 float64
	// SplitMinAreaKm2 is the country area at or above which level-2
	// units are considered.
	SplitMinAreaKm2 float64
	// MinSubregions is the least number of level-2 units a country
	// must have before it is split that far down.
	MinSubregions int
}

func DefaultHeuristic() Heuristic {
	return Heuristic{
		DissolveMaxAreaKm2: 25_000,
		SplitMinAreaKm2:    1_500_000,
		MinSubregions:      8,
	}
}

// ChooseLevel maps country metrics to the administrative level kept for
// that country. It is a pure decision table:
//
//   - no or one level-1 unit, or area at most DissolveMaxAreaKm2:
//     the whole country is one region
//   - area at least SplitMinAreaKm2 with at least MinSubregions
//     level-2 units: level-2 subregions
//   - otherwise: level-1 regions
//
// Callers still step down to a coarser level when the source has no
// features at the chosen one.
func ChooseLevel(m model.CountryMetrics, h Heuristic) model.Level {
	switch {
	case m.Level1Count < 2:
		return model.LevelCountry
	case m.AreaKm2 <= h.DissolveMaxAreaKm2:
		return model.LevelCountry
	case m.AreaKm2 >= h.SplitMinAreaKm2 && m.Level2Count >= h.MinSubregions:
		return model.LevelSubregion
	default:
		return model.LevelRegion
	}
}
