package main

import (
	"context"
	"fmt"
	"math"
	"os/signal"
	"syscall"

	"github.com/rotisserie/eris"
	"github.com/spf13/cobra"
	"github.com/twpayne/go-geom"

	"github.com/atlasforge/gazetteer/internal/model"
	"github.com/atlasforge/gazetteer/internal/spatial"
	"github.com/atlasforge/gazetteer/internal/writer"
)

// coordTolerance bounds the allowed drift between a place's lat/lon
// attributes and its point geometry after the GeoPackage round trip.
const coordTolerance = 1e-9

var verifyCmd = &cobra.Command{
	Use:   "verify",
	Short: "Check the output layers' invariants",
	Long: `Re-opens the written GeoPackages and checks that region identifiers are
unique, every non-empty place region reference resolves, and each place's
lat/lon attributes agree with its point geometry. With --strict, the
containment join is re-run over all candidate regions to report places
inside more than one region, measuring the source data's non-overlap
assumption.`,
	RunE: func(cmd *cobra.Command, _ []string) error {
		ctx, stop := signal.NotifyContext(cmd.Context(), syscall.SIGINT, syscall.SIGTERM)
		defer stop()

		if err := cfg.Validate("verify"); err != nil {
			return err
		}
		strict, _ := cmd.Flags().GetBool("strict")

		res, err := verifyOutputs(ctx, cfg.Output.RegionsPath(), cfg.Output.PlacesPath(), strict)
		if err != nil {
			return eris.Wrap(err, "verify")
		}

		printVerifyResult(res, strict)
		if res.violations() > 0 {
			return eris.Errorf("verify: %d violations", res.violations())
		}
		fmt.Println("all checks passed")
		return nil
	},
}

func init() {
	verifyCmd.Flags().Bool("strict", false, "re-run containment over all regions and report overlaps")
	rootCmd.AddCommand(verifyCmd)
}

type verifyResult struct {
	Regions int
	Places  int

	DuplicateIDs  []string
	DanglingRefs  []int64 // geoname ids referencing a missing region
	CoordMismatch []int64 // geoname ids whose lat/lon disagree with geometry
	MultiOwned    []int64 // strict only: geoname ids inside >1 region
}

func (r *verifyResult) violations() int {
	return len(r.DuplicateIDs) + len(r.DanglingRefs) + len(r.CoordMismatch)
}

func verifyOutputs(ctx context.Context, regionsPath, placesPath string, strict bool) (*verifyResult, error) {
	regions, err := writer.ReadRegions(ctx, regionsPath)
	if err != nil {
		return nil, err
	}
	places, points, err := writer.ReadPlacePoints(ctx, placesPath)
	if err != nil {
		return nil, err
	}

	res := &verifyResult{Regions: len(regions), Places: len(places)}

	ids := make(map[string]bool, len(regions))
	for i := range regions {
		id := regions[i].ID
		if ids[id] {
			res.DuplicateIDs = append(res.DuplicateIDs, id)
		}
		ids[id] = true
	}

	for i := range places {
		p := &places[i]
		if p.RegionID != "" && !ids[p.RegionID] {
			res.DanglingRefs = append(res.DanglingRefs, p.GeonameID)
		}
		if !coordsAgree(p, points[i]) {
			res.CoordMismatch = append(res.CoordMismatch, p.GeonameID)
		}
	}

	if strict {
		res.MultiOwned = findMultiOwned(regions, places)
	}
	return res, nil
}

func coordsAgree(p *model.Place, pt *geom.Point) bool {
	if pt == nil {
		return false
	}
	c := pt.Coords()
	return math.Abs(c[0]-p.Lon) <= coordTolerance && math.Abs(c[1]-p.Lat) <= coordTolerance
}

// findMultiOwned reports places contained by more than one region. The
// build trusts the source's non-overlap assumption and stops at the
// first containing region; this measures how often that trust is
// misplaced.
func findMultiOwned(regions []model.Region, places []model.Place) []int64 {
	idx := spatial.NewIndex(regions, 0)
	var multi []int64
	for i := range places {
		p := &places[i]
		if len(idx.LocateAll(p.Lon, p.Lat)) > 1 {
			multi = append(multi, p.GeonameID)
		}
	}
	return multi
}

func printVerifyResult(res *verifyResult, strict bool) {
	fmt.Printf("regions: %d  places: %d\n", res.Regions, res.Places)
	fmt.Printf("duplicate region ids:   %d\n", len(res.DuplicateIDs))
	fmt.Printf("dangling region refs:   %d\n", len(res.DanglingRefs))
	fmt.Printf("coordinate mismatches:  %d\n", len(res.CoordMismatch))
	if strict {
		fmt.Printf("multiply-owned places:  %d\n", len(res.MultiOwned))
	}
}
