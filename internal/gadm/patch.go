package gadm

import (
	"os"

	"github.com/rotisserie/eris"
	"gopkg.in/yaml.v3"
)

// Rules describes fixes applied to the source layers before building
// regions. The source carries a handful of known data defects per
// release; the defaults cover the current release and a rules file can
// extend them without a rebuild.
type Rules struct {
	// DropCountries removes whole countries by name across all levels.
	DropCountries []string `yaml:"drop_countries"`
	// RegionMeta replaces the metadata of level-1 units matched by
	// country and name.
	RegionMeta []RegionMetaRule `yaml:"region_meta"`
	// RenameRegions maps level-1 names to their corrected form.
	RenameRegions map[string]string `yaml:"rename_regions"`
	// FillMissingRegionNames copies the country name onto level-1
	// units whose name is absent.
	FillMissingRegionNames bool `yaml:"fill_missing_region_names"`
}

type RegionMetaRule struct {
	CountryISO3 string `yaml:"country_iso3"`
	MatchName   string `yaml:"match_name"`
	Name        string `yaml:"name"`
	LocalName   string `yaml:"local_name"`
	HASC        string `yaml:"hasc"`
	TypeName    string `yaml:"type_name"`
}

// DefaultRules returns the fixes for the current source release:
// non-sovereign mass entries dropped, the unnamed Ukrainian capital
// district restored, and two Italian regions renamed to their local
// form.
func DefaultRules() Rules {
	return Rules{
		DropCountries: []string{"Antarctica", "Caspian Sea"},
		RegionMeta: []RegionMetaRule{
			{
				CountryISO3: "UKR",
				MatchName:   "?",
				Name:        "Kiev City",
				LocalName:   "Київ",
				HASC:        "UA.KC",
				TypeName:    "Independent City",
			},
		},
		RenameRegions: map[string]string{
			"Apulia": "Puglia",
			"Sicily": "Sicilia",
		},
		FillMissingRegionNames: true,
	}
}

// LoadRules reads a rules file. The file replaces the defaults
// entirely, so files usually start from a copy of them.
func LoadRules(path string) (Rules, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return Rules{}, eris.Wrapf(err, "gadm: read rules file %s", path)
	}
	var r Rules
	if err := yaml.Unmarshal(data, &r); err != nil {
		return Rules{}, eris.Wrapf(err, "gadm: parse rules file %s", path)
	}
	return r, nil
}

// PatchStats counts what Apply changed.
type PatchStats struct {
	DroppedFeatures int
	MetaFixed       int
	Renamed         int
	Filled          int
}

// Apply mutates levels in place and returns change counts. Row order
// of the surviving features is preserved.
func (r Rules) Apply(levels *Levels) PatchStats {
	var stats PatchStats

	if len(r.DropCountries) > 0 {
		drop := make(map[string]bool, len(r.DropCountries))
		for _, name := range r.DropCountries {
			drop[name] = true
		}
		levels.Countries = dropByCountry(levels.Countries, drop, &stats)
		levels.Level1 = dropByCountry(levels.Level1, drop, &stats)
		levels.Level2 = dropByCountry(levels.Level2, drop, &stats)
	}

	for _, rule := range r.RegionMeta {
		for i := range levels.Level1 {
			f := &levels.Level1[i]
			if f.ISO3 != rule.CountryISO3 || f.Name != rule.MatchName {
				continue
			}
			f.Name = rule.Name
			if rule.LocalName != "" {
				f.LocalName = rule.LocalName
			}
			if rule.HASC != "" {
				f.HASC = rule.HASC
			}
			if rule.TypeName != "" {
				f.TypeName = rule.TypeName
			}
			stats.MetaFixed++
		}
		for i := range levels.Level2 {
			f := &levels.Level2[i]
			if f.ISO3 != rule.CountryISO3 || f.ParentName != rule.MatchName {
				continue
			}
			f.ParentName = rule.Name
			if rule.LocalName != "" {
				f.ParentLocalName = rule.LocalName
			}
		}
	}

	if len(r.RenameRegions) > 0 {
		for i := range levels.Level1 {
			if to, ok := r.RenameRegions[levels.Level1[i].Name]; ok {
				levels.Level1[i].Name = to
				stats.Renamed++
			}
		}
		for i := range levels.Level2 {
			if to, ok := r.RenameRegions[levels.Level2[i].ParentName]; ok {
				levels.Level2[i].ParentName = to
			}
		}
	}

	if r.FillMissingRegionNames {
		for i := range levels.Level1 {
			if levels.Level1[i].Name == "" {
				levels.Level1[i].Name = levels.Level1[i].Country
				stats.Filled++
			}
		}
		for i := range levels.Level2 {
			if levels.Level2[i].ParentName == "" {
				levels.Level2[i].ParentName = levels.Level2[i].Country
			}
		}
	}

	return stats
}

func dropByCountry(feats []Feature, drop map[string]bool, stats *PatchStats) []Feature {
	out := feats[:0]
	for _, f := range feats {
		if drop[f.Country] {
			stats.DroppedFeatures++
			continue
		}
		out = append(out, f)
	}
	return out
}
