package gadm

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func patchFixture() *Levels {
	return &Levels{
		Countries: []Feature{
			{GID: "ATA", ISO3: "ATA", Country: "Antarctica"},
			{GID: "UKR", ISO3: "UKR", Country: "Ukraine"},
			{GID: "ITA", ISO3: "ITA", Country: "Italy"},
			{GID: "XCA", ISO3: "XCA", Country: "Caspian Sea"},
		},
		Level1: []Feature{
			{GID: "UKR.12_1", ISO3: "UKR", Country: "Ukraine", Name: "?"},
			{GID: "UKR.4_1", ISO3: "UKR", Country: "Ukraine", Name: "Dnipropetrovs'k"},
			{GID: "ITA.13_1", ISO3: "ITA", Country: "Italy", Name: "Apulia"},
			{GID: "ITA.15_1", ISO3: "ITA", Country: "Italy", Name: "Sicily"},
			{GID: "ITA.8_1", ISO3: "ITA", Country: "Italy", Name: ""},
		},
		Level2: []Feature{
			{GID: "UKR.12.1_1", ISO3: "UKR", Country: "Ukraine", Name: "Darnyts'kyi", ParentGID: "UKR.12_1", ParentName: "?"},
			{GID: "ITA.13.1_1", ISO3: "ITA", Country: "Italy", Name: "Bari", ParentGID: "ITA.13_1", ParentName: "Apulia"},
			{GID: "XCA.1.1_1", ISO3: "XCA", Country: "Caspian Sea", Name: "Caspian Sea"},
		},
	}
}

func TestApply_DefaultRules(t *testing.T) {
	levels := patchFixture()
	stats := DefaultRules().Apply(levels)

	// Antarctica and the Caspian Sea are gone from every level.
	require.Len(t, levels.Countries, 2)
	for _, f := range levels.Countries {
		assert.NotEqual(t, "Antarctica", f.Country)
		assert.NotEqual(t, "Caspian Sea", f.Country)
	}
	require.Len(t, levels.Level2, 2)
	assert.Equal(t, 4, stats.DroppedFeatures)

	// The unnamed Kiev district got its metadata back, including the
	// parent reference on its level-2 children.
	kiev := levels.Level1[0]
	assert.Equal(t, "Kiev City", kiev.Name)
	assert.Equal(t, "Київ", kiev.LocalName)
	assert.Equal(t, "UA.KC", kiev.HASC)
	assert.Equal(t, "Independent City", kiev.TypeName)
	assert.Equal(t, "Kiev City", levels.Level2[0].ParentName)
	assert.Equal(t, 1, stats.MetaFixed)

	// Italian regions renamed at both levels.
	assert.Equal(t, "Puglia", levels.Level1[2].Name)
	assert.Equal(t, "Sicilia", levels.Level1[3].Name)
	assert.Equal(t, "Puglia", levels.Level2[1].ParentName)
	assert.Equal(t, 2, stats.Renamed)

	// The nameless Italian region fell back to the country name.
	assert.Equal(t, "Italy", levels.Level1[4].Name)
	assert.Equal(t, 1, stats.Filled)
}

func TestApply_PreservesRowOrder(t *testing.T) {
	levels := patchFixture()
	DefaultRules().Apply(levels)

	gids := make([]string, 0, len(levels.Level1))
	for _, f := range levels.Level1 {
		gids = append(gids, f.GID)
	}
	assert.Equal(t, []string{"UKR.12_1", "UKR.4_1", "ITA.13_1", "ITA.15_1", "ITA.8_1"}, gids)
}

func TestLoadRules_FromFile(t *testing.T) {
	path := filepath.Join(t.TempDir(), "rules.yaml")
	content := `
drop_countries:
  - Atlantis
region_meta:
  - country_iso3: FRA
    match_name: "?"
    name: Paris
rename_regions:
  Apulia: Puglia
fill_missing_region_names: true
`
	require.NoError(t, os.WriteFile(path, []byte(content), 0o644))

	rules, err := LoadRules(path)
	require.NoError(t, err)
	assert.Equal(t, []string{"Atlantis"}, rules.DropCountries)
	require.Len(t, rules.RegionMeta, 1)
	assert.Equal(t, "FRA", rules.RegionMeta[0].CountryISO3)
	assert.Equal(t, "Paris", rules.RegionMeta[0].Name)
	assert.Equal(t, "Puglia", rules.RenameRegions["Apulia"])
	assert.True(t, rules.FillMissingRegionNames)
}

func TestLoadRules_MissingFile(t *testing.T) {
	_, err := LoadRules(filepath.Join(t.TempDir(), "absent.yaml"))
	assert.Error(t, err)
}

func TestLoadRules_MalformedYAML(t *testing.T) {
	path := filepath.Join(t.TempDir(), "rules.yaml")
	require.NoError(t, os.WriteFile(path, []byte("drop_countries: {not: [a, list"), 0o644))

	_, err := LoadRules(path)
	assert.Error(t, err)
}
