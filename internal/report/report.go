// Package report renders a build-quality workbook from the finished
// layers: totals, per-country level choices, and how places matched
// into regions. It reads nothing itself; the caller hands it the
// layers it already loaded.
package report

import (
	"sort"

	"github.com/rotisserie/eris"
	"github.com/tealeg/xlsx/v2"

	"github.com/atlasforge/gazetteer/internal/model"
)

type countryRow struct {
	ISO3      string
	Name      string
	Levels    map[model.Level]int
	Regions   int
	AreaKm2   float64
	Within    int
	Nearest   int
	Unmatched int
}

// Write builds the workbook and saves it at path.
func Write(path string, regions []model.Region, places []model.Place) error {
	f, err := Build(regions, places)
	if err != nil {
		return err
	}
	if err := f.Save(path); err != nil {
		return eris.Wrapf(err, "report: save %s", path)
	}
	return nil
}

// Build assembles the three-sheet workbook in memory.
func Build(regions []model.Region, places []model.Place) (*xlsx.File, error) {
	byISO, order := collect(regions, places)

	f := xlsx.NewFile()
	if err := summarySheet(f, regions, places); err != nil {
		return nil, err
	}
	if err := countriesSheet(f, byISO, order); err != nil {
		return nil, err
	}
	if err := matchSheet(f, byISO, order); err != nil {
		return nil, err
	}
	return f, nil
}

func collect(regions []model.Region, places []model.Place) (map[string]*countryRow, []string) {
	byISO := make(map[string]*countryRow)
	regionCountry := make(map[string]string, len(regions))

	for i := range regions {
		r := &regions[i]
		c := byISO[r.CountryISO3]
		if c == nil {
			c = &countryRow{ISO3: r.CountryISO3, Name: r.CountryName, Levels: map[model.Level]int{}}
			byISO[r.CountryISO3] = c
		}
		c.Levels[r.Level]++
		c.Regions++
		c.AreaKm2 += r.AreaKm2
		regionCountry[r.ID] = r.CountryISO3
	}

	for i := range places {
		p := &places[i]
		iso := regionCountry[p.RegionID]
		if iso == "" {
			// Unmatched places are attributed by their own country code
			// when the gazetteer carries one.
			iso = p.CountryCode
		}
		c := byISO[iso]
		if c == nil {
			c = &countryRow{ISO3: iso, Levels: map[model.Level]int{}}
			byISO[iso] = c
		}
		switch p.RegionMatch {
		case model.MatchWithin:
			c.Within++
		case model.MatchNearest:
			c.Nearest++
		default:
			c.Unmatched++
		}
	}

	order := make([]string, 0, len(byISO))
	for iso := range byISO {
		order = append(order, iso)
	}
	sort.Strings(order)
	return byISO, order
}

func summarySheet(f *xlsx.File, regions []model.Region, places []model.Place) error {
	sheet, err := f.AddSheet("Summary")
	if err != nil {
		return eris.Wrap(err, "report: add summary sheet")
	}

	var byLevel [3]int
	for i := range regions {
		if l := int(regions[i].Level); l >= 0 && l < len(byLevel) {
			byLevel[l]++
		}
	}
	var within, nearest, unmatched int
	for i := range places {
		switch places[i].RegionMatch {
		case model.MatchWithin:
			within++
		case model.MatchNearest:
			nearest++
		default:
			unmatched++
		}
	}

	addKV := func(k string, v int) {
		row := sheet.AddRow()
		row.AddCell().SetString(k)
		row.AddCell().SetInt(v)
	}
	addKV("regions", len(regions))
	addKV("regions at country level", byLevel[0])
	addKV("regions at region level", byLevel[1])
	addKV("regions at subregion level", byLevel[2])
	addKV("places", len(places))
	addKV("places matched within", within)
	addKV("places matched nearest", nearest)
	addKV("places unmatched", unmatched)
	return nil
}

func countriesSheet(f *xlsx.File, byISO map[string]*countryRow, order []string) error {
	sheet, err := f.AddSheet("Countries")
	if err != nil {
		return eris.Wrap(err, "report: add countries sheet")
	}

	header := sheet.AddRow()
	for _, h := range []string{"iso3", "country", "level", "regions", "area_km2"} {
		header.AddCell().SetString(h)
	}
	for _, iso := range order {
		c := byISO[iso]
		if c.Regions == 0 {
			continue
		}
		row := sheet.AddRow()
		row.AddCell().SetString(c.ISO3)
		row.AddCell().SetString(c.Name)
		row.AddCell().SetString(dominantLevel(c.Levels).String())
		row.AddCell().SetInt(c.Regions)
		row.AddCell().SetFloat(c.AreaKm2)
	}
	return nil
}

func matchSheet(f *xlsx.File, byISO map[string]*countryRow, order []string) error {
	sheet, err := f.AddSheet("Match")
	if err != nil {
		return eris.Wrap(err, "report: add match sheet")
	}

	header := sheet.AddRow()
	for _, h := range []string{"iso3", "within", "nearest", "unmatched"} {
		header.AddCell().SetString(h)
	}
	for _, iso := range order {
		c := byISO[iso]
		if c.Within == 0 && c.Nearest == 0 && c.Unmatched == 0 {
			continue
		}
		row := sheet.AddRow()
		row.AddCell().SetString(c.ISO3)
		row.AddCell().SetInt(c.Within)
		row.AddCell().SetInt(c.Nearest)
		row.AddCell().SetInt(c.Unmatched)
	}
	return nil
}

// dominantLevel picks the level most of a country's regions were taken
// from. Mixed levels only occur when patch rules override the heuristic.
func dominantLevel(levels map[model.Level]int) model.Level {
	best, bestN := model.LevelCountry, -1
	for l, n := range levels {
		if n > bestN || (n == bestN && l < best) {
			best, bestN = l, n
		}
	}
	return best
}
