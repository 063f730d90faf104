// Package gadm reads GADM administrative boundary layers and builds the
// gazetteer region set from them. The source ships three nested levels
// per country; Build picks one level per country based on country size
// and subdivision counts, so small countries collapse to a single
// region while large ones are split into subregions.
package gadm

import (
	"fmt"
	"strings"

	"github.com/atlasforge/gazetteer/internal/model"
)

// SchemaError reports source layer columns the reader requires but the
// layer does not provide. It usually means the source file is from a
// different GADM release than the reader understands.
type SchemaError struct {
	Layer   string
	Missing []string
}

func (e *SchemaError) Error() string {
	return fmt.Sprintf("gadm: layer %s missing columns: %s", e.Layer, strings.Join(e.Missing, ", "))
}

// layerSpec lists the attribute columns read from one source level.
// Required columns raise a SchemaError when absent; optional ones are
// read as empty. Country-name columns vary across GADM releases, so
// any one of countryAliases satisfies that requirement.
type layerSpec struct {
	level          model.Level
	required       []string
	countryAliases []string
	optional       []string
}

var layerSpecs = map[model.Level]layerSpec{
	model.LevelCountry: {
		level:          model.LevelCountry,
		required:       []string{"GID_0"},
		countryAliases: []string{"COUNTRY", "NAME_0"},
	},
	model.LevelRegion: {
		level:          model.LevelRegion,
		required:       []string{"GID_0", "GID_1", "NAME_1"},
		countryAliases: []string{"COUNTRY", "NAME_0"},
		optional:       []string{"VARNAME_1", "NL_NAME_1", "ENGTYPE_1", "HASC_1"},
	},
	model.LevelSubregion: {
		level:          model.LevelSubregion,
		required:       []string{"GID_0", "GID_1", "GID_2", "NAME_2"},
		countryAliases: []string{"COUNTRY", "NAME_0"},
		optional:       []string{"NAME_1", "NL_NAME_1", "VARNAME_2", "NL_NAME_2", "ENGTYPE_2", "HASC_2"},
	},
}

// checkColumns validates present column names against the spec and
// returns the resolved country-name column. Column matching is
// case-insensitive since shapefile DBF headers are not reliably cased.
func (s layerSpec) checkColumns(layer string, present []string) (countryCol string, err error) {
	have := make(map[string]string, len(present))
	for _, c := range present {
		have[strings.ToUpper(c)] = c
	}

	var missing []string
	for _, c := range s.required {
		if _, ok := have[c]; !ok {
			missing = append(missing, c)
		}
	}

	for _, alias := range s.countryAliases {
		if _, ok := have[alias]; ok {
			countryCol = alias
			break
		}
	}
	if countryCol == "" {
		missing = append(missing, s.countryAliases[0])
	}

	if len(missing) > 0 {
		return "", &SchemaError{Layer: layer, Missing: missing}
	}
	return countryCol, nil
}

// columns returns the full list of columns to read, required first,
// then the resolved country column, then whichever optional columns the
// layer actually has.
func (s layerSpec) columns(countryCol string, present []string) []string {
	have := make(map[string]bool, len(present))
	for _, c := range present {
		have[strings.ToUpper(c)] = true
	}

	cols := make([]string, 0, len(s.required)+1+len(s.optional))
	cols = append(cols, s.required...)
	cols = append(cols, countryCol)
	for _, c := range s.optional {
		if have[c] {
			cols = append(cols, c)
		}
	}
	return cols
}
