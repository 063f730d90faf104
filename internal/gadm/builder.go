package gadm

import (
	"context"

	"github.com/google/uuid"
	"github.com/rotisserie/eris"
	"github.com/twpayne/go-geom"
	"go.uber.org/zap"

	"github.com/atlasforge/gazetteer/internal/model"
	"github.com/atlasforge/gazetteer/internal/names"
)

// regionNamespace keys minted region IDs to the source release, so one
// source unit always mints the same ID across runs.
var regionNamespace = uuid.NewSHA1(uuid.NameSpaceURL, []byte("https://gadm.org/v4.1"))

// MintRegionID derives the stable region ID for a source unit.
func MintRegionID(gid string) string {
	return uuid.NewSHA1(regionNamespace, []byte(gid)).String()
}

// Build converts patched source levels into the region set. Each
// country keeps exactly one level, chosen by h over the country
// metrics; when the source has no features at the chosen level the
// builder steps down to the next coarser one. Output order follows
// source row order, so identical input yields identical output.
func Build(ctx context.Context, levels *Levels, h Heuristic) ([]model.Region, error) {
	metrics := Metrics(levels)

	l1ByCountry := groupBy(levels.Level1, func(f Feature) string { return f.ISO3 })
	l2ByCountry := groupBy(levels.Level2, func(f Feature) string { return f.ISO3 })
	l2ByParent := groupBy(levels.Level2, func(f Feature) string { return f.ParentGID })

	countries := countryUniverse(levels)

	regions := make([]model.Region, 0, len(countries))
	byGID := make(map[string]string)
	var counts [3]int
	var dissolved int

	for _, c := range countries {
		if err := ctx.Err(); err != nil {
			return nil, eris.Wrap(err, "gadm: build regions")
		}

		level := ChooseLevel(metrics[c.ISO3], h)
		if level == model.LevelSubregion && len(l2ByCountry[c.ISO3]) == 0 {
			level = model.LevelRegion
		}
		if level == model.LevelRegion && len(l1ByCountry[c.ISO3]) == 0 {
			level = model.LevelCountry
		}

		var built []model.Region
		switch level {
		case model.LevelCountry:
			r, usedDissolve := countryRegion(c, l1ByCountry[c.ISO3], l2ByCountry[c.ISO3])
			if usedDissolve {
				dissolved++
			}
			built = append(built, r)
		case model.LevelRegion:
			for _, f := range l1ByCountry[c.ISO3] {
				r, usedDissolve := level1Region(f, l2ByParent[f.GID])
				if usedDissolve {
					dissolved++
				}
				built = append(built, r)
			}
		case model.LevelSubregion:
			for _, f := range l2ByCountry[c.ISO3] {
				built = append(built, level2Region(f))
			}
		}

		for _, r := range built {
			if prev, dup := byGID[r.ID]; dup {
				return nil, eris.Errorf("gadm: region id collision between source units %s and %s", prev, r.GID)
			}
			byGID[r.ID] = r.GID
			counts[r.Level]++
			regions = append(regions, r)
		}
	}

	zap.L().Info("regions built",
		zap.Int("countries", len(countries)),
		zap.Int("regions", len(regions)),
		zap.Int("as_country", counts[model.LevelCountry]),
		zap.Int("as_region", counts[model.LevelRegion]),
		zap.Int("as_subregion", counts[model.LevelSubregion]),
		zap.Int("dissolved", dissolved),
	)
	return regions, nil
}

// countryUniverse lists one entry per country in a stable order: the
// country layer first in row order, then countries present only in
// lower layers. Partial extracts often ship a single level.
func countryUniverse(levels *Levels) []Feature {
	seen := make(map[string]bool, len(levels.Countries))
	out := make([]Feature, 0, len(levels.Countries))
	for _, f := range levels.Countries {
		if seen[f.ISO3] {
			continue
		}
		seen[f.ISO3] = true
		out = append(out, f)
	}
	for _, f := range append(append([]Feature{}, levels.Level1...), levels.Level2...) {
		if seen[f.ISO3] {
			continue
		}
		seen[f.ISO3] = true
		out = append(out, Feature{GID: f.ISO3, ISO3: f.ISO3, Country: f.Country, Name: f.Country})
	}
	return out
}

func countryRegion(c Feature, l1, l2 []Feature) (model.Region, bool) {
	geometry := c.Geometry
	usedDissolve := false
	if geometry == nil {
		children := l1
		if len(children) == 0 {
			children = l2
		}
		geometry = Dissolve(geometries(children))
		usedDissolve = geometry != nil
	}

	return model.Region{
		ID:          MintRegionID(c.GID),
		Level:       model.LevelCountry,
		GID:         c.GID,
		CountryISO3: c.ISO3,
		CountryName: c.Country,
		Name:        c.Country,
		NameASCII:   names.Fold(c.Country),
		TypeName:    "Country",
		Geometry:    geometry,
		AreaKm2:     AreaKm2(geometry),
	}, usedDissolve
}

func level1Region(f Feature, l2 []Feature) (model.Region, bool) {
	geometry := f.Geometry
	usedDissolve := false
	if geometry == nil {
		geometry = Dissolve(geometries(l2))
		usedDissolve = geometry != nil
	}

	locals := names.SplitList(f.LocalName, "|")
	r := model.Region{
		ID:          MintRegionID(f.GID),
		Level:       model.LevelRegion,
		GID:         f.GID,
		CountryISO3: f.ISO3,
		CountryName: f.Country,
		Name:        f.Name,
		NameASCII:   names.Fold(f.Name),
		TypeName:    f.TypeName,
		HASC:        f.HASC,
		AltNames:    names.MergeLists(names.SplitList(f.VarNames, "|"), locals),
		Geometry:    geometry,
		AreaKm2:     AreaKm2(geometry),
	}
	if len(locals) > 0 {
		r.LocalName = locals[0]
	}
	return r, usedDissolve
}

func level2Region(f Feature) model.Region {
	parentLocals := names.SplitList(f.ParentLocalName, "|")
	subLocals := names.SplitList(f.LocalName, "|")
	r := model.Region{
		ID:          MintRegionID(f.GID),
		Level:       model.LevelSubregion,
		GID:         f.GID,
		CountryISO3: f.ISO3,
		CountryName: f.Country,
		Name:        f.ParentName,
		NameASCII:   names.Fold(f.ParentName),
		SubName:     f.Name,
		TypeName:    f.TypeName,
		HASC:        f.HASC,
		AltNames:    names.MergeLists(parentLocals, names.SplitList(f.VarNames, "|"), subLocals),
		Geometry:    f.Geometry,
		AreaKm2:     AreaKm2(f.Geometry),
	}
	if len(parentLocals) > 0 {
		r.LocalName = parentLocals[0]
	}
	if len(subLocals) > 0 {
		r.SubLocalName = subLocals[0]
	}
	return r
}

// Dissolve merges child geometries into one multipolygon. Children of
// one parent tile it without overlap, so the merged geometry is the
// collection of all their polygon parts. Returns nil when no part
// carries geometry.
func Dissolve(parts []*geom.MultiPolygon) *geom.MultiPolygon {
	mp := geom.NewMultiPolygon(geom.XY).SetSRID(4326)
	for _, part := range parts {
		if part == nil {
			continue
		}
		for i := 0; i < part.NumPolygons(); i++ {
			if err := mp.Push(part.Polygon(i)); err != nil {
				continue
			}
		}
	}
	if mp.NumPolygons() == 0 {
		return nil
	}
	return mp
}

func geometries(feats []Feature) []*geom.MultiPolygon {
	out := make([]*geom.MultiPolygon, 0, len(feats))
	for _, f := range feats {
		out = append(out, f.Geometry)
	}
	return out
}

func groupBy(feats []Feature, key func(Feature) string) map[string][]Feature {
	out := make(map[string][]Feature)
	for _, f := range feats {
		k := key(f)
		if k == "" {
			continue
		}
		out[k] = append(out[k], f)
	}
	return out
}
