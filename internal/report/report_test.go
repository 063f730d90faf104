package report

import (
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/tealeg/xlsx/v2"

	"github.com/atlasforge/gazetteer/internal/model"
)

func fixture() ([]model.Region, []model.Place) {
	regions := []model.Region{
		{ID: "r-che-1", Level: model.LevelRegion, CountryISO3: "CHE", CountryName: "Switzerland", Name: "Aargau", AreaKm2: 1403},
		{ID: "r-che-2", Level: model.LevelRegion, CountryISO3: "CHE", CountryName: "Switzerland", Name: "Bern", AreaKm2: 5959},
		{ID: "r-and", Level: model.LevelCountry, CountryISO3: "AND", CountryName: "Andorra", Name: "Andorra", AreaKm2: 468},
	}
	places := []model.Place{
		{GeonameID: 1, Name: "Aarau", RegionID: "r-che-1", RegionMatch: model.MatchWithin, CountryCode: "CH"},
		{GeonameID: 2, Name: "Bern", RegionID: "r-che-2", RegionMatch: model.MatchWithin, CountryCode: "CH"},
		{GeonameID: 3, Name: "Thun", RegionID: "r-che-2", RegionMatch: model.MatchNearest, CountryCode: "CH"},
		{GeonameID: 4, Name: "Atlantis", CountryCode: "XX"},
	}
	return regions, places
}

func TestBuild_Sheets(t *testing.T) {
	regions, places := fixture()
	f, err := Build(regions, places)
	require.NoError(t, err)

	require.Len(t, f.Sheets, 3)
	assert.Equal(t, "Summary", f.Sheets[0].Name)
	assert.Equal(t, "Countries", f.Sheets[1].Name)
	assert.Equal(t, "Match", f.Sheets[2].Name)
}

func TestBuild_SummaryCounts(t *testing.T) {
	regions, places := fixture()
	f, err := Build(regions, places)
	require.NoError(t, err)

	got := map[string]int{}
	for _, row := range f.Sheets[0].Rows {
		if len(row.Cells) < 2 {
			continue
		}
		n, err := row.Cells[1].Int()
		require.NoError(t, err)
		got[row.Cells[0].String()] = n
	}
	assert.Equal(t, 3, got["regions"])
	assert.Equal(t, 1, got["regions at country level"])
	assert.Equal(t, 2, got["regions at region level"])
	assert.Equal(t, 4, got["places"])
	assert.Equal(t, 2, got["places matched within"])
	assert.Equal(t, 1, got["places matched nearest"])
	assert.Equal(t, 1, got["places unmatched"])
}

func TestBuild_CountriesSheet(t *testing.T) {
	regions, places := fixture()
	f, err := Build(regions, places)
	require.NoError(t, err)

	sheet := f.Sheets[1]
	require.GreaterOrEqual(t, len(sheet.Rows), 3)
	// Rows are sorted by ISO3; AND before CHE.
	assert.Equal(t, "AND", sheet.Rows[1].Cells[0].String())
	assert.Equal(t, "country", sheet.Rows[1].Cells[2].String())
	assert.Equal(t, "CHE", sheet.Rows[2].Cells[0].String())
	assert.Equal(t, "region", sheet.Rows[2].Cells[2].String())
}

func TestBuild_MatchSheetAttributesUnmatchedByCountryCode(t *testing.T) {
	regions, places := fixture()
	f, err := Build(regions, places)
	require.NoError(t, err)

	sheet := f.Sheets[2]
	var sawXX bool
	for _, row := range sheet.Rows[1:] {
		if row.Cells[0].String() == "XX" {
			sawXX = true
			n, err := row.Cells[3].Int()
			require.NoError(t, err)
			assert.Equal(t, 1, n)
		}
	}
	assert.True(t, sawXX, "unmatched place should appear under its own country code")
}

func TestWrite_RoundTrip(t *testing.T) {
	regions, places := fixture()
	path := filepath.Join(t.TempDir(), "report.xlsx")
	require.NoError(t, Write(path, regions, places))

	f, err := xlsx.OpenFile(path)
	require.NoError(t, err)
	assert.Len(t, f.Sheets, 3)
}

func TestDominantLevel(t *testing.T) {
	assert.Equal(t, model.LevelSubregion, dominantLevel(map[model.Level]int{
		model.LevelRegion: 2, model.LevelSubregion: 5,
	}))
	assert.Equal(t, model.LevelCountry, dominantLevel(map[model.Level]int{
		model.LevelCountry: 1, model.LevelSubregion: 1,
	}), "tie breaks to the coarser level")
}
