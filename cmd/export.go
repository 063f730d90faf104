package main

import (
	"fmt"
	"os/signal"
	"path/filepath"
	"strings"
	"syscall"

	"github.com/rotisserie/eris"
	"github.com/spf13/cobra"

	"github.com/atlasforge/gazetteer/internal/writer"
)

var exportCmd = &cobra.Command{
	Use:   "export",
	Short: "Re-export the built GeoPackages as JSON-lines or GeoJSON",
	Long: `Reads the regions and places layers back from the output GeoPackages and
writes flat-file exports next to them: a single gazetteer.jsonl, or a
regions.geojson/places.geojson pair.`,
	RunE: func(cmd *cobra.Command, _ []string) error {
		ctx, stop := signal.NotifyContext(cmd.Context(), syscall.SIGINT, syscall.SIGTERM)
		defer stop()

		if err := cfg.Validate("export"); err != nil {
			return err
		}

		format, _ := cmd.Flags().GetString("format")

		regions, err := writer.ReadRegions(ctx, cfg.Output.RegionsPath())
		if err != nil {
			return eris.Wrap(err, "export: read regions")
		}
		places, err := writer.ReadPlaces(ctx, cfg.Output.PlacesPath())
		if err != nil {
			return eris.Wrap(err, "export: read places")
		}

		switch strings.ToLower(format) {
		case "jsonl":
			path := filepath.Join(cfg.Output.Dir, "gazetteer.jsonl")
			if err := writer.WriteJSONL(ctx, path, regions, places); err != nil {
				return eris.Wrap(err, "export")
			}
			fmt.Printf("wrote %s (%d regions, %d places)\n", path, len(regions), len(places))
		case "geojson":
			rp := filepath.Join(cfg.Output.Dir, "regions.geojson")
			if err := writer.WriteRegionsGeoJSON(ctx, rp, regions); err != nil {
				return eris.Wrap(err, "export")
			}
			pp := filepath.Join(cfg.Output.Dir, "places.geojson")
			if err := writer.WritePlacesGeoJSON(ctx, pp, places); err != nil {
				return eris.Wrap(err, "export")
			}
			fmt.Printf("wrote %s (%d regions) and %s (%d places)\n", rp, len(regions), pp, len(places))
		default:
			return eris.Errorf("export: unknown format %q (want jsonl or geojson)", format)
		}

		return nil
	},
}

func init() {
	exportCmd.Flags().String("format", "jsonl", "export format: jsonl or geojson")
	rootCmd.AddCommand(exportCmd)
}
