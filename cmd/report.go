package main

import (
	"fmt"
	"os/signal"
	"path/filepath"
	"syscall"

	"github.com/rotisserie/eris"
	"github.com/spf13/cobra"

	"github.com/atlasforge/gazetteer/internal/report"
	"github.com/atlasforge/gazetteer/internal/writer"
)

var reportCmd = &cobra.Command{
	Use:   "report",
	Short: "Write an XLSX build-quality workbook from the output layers",
	RunE: func(cmd *cobra.Command, _ []string) error {
		ctx, stop := signal.NotifyContext(cmd.Context(), syscall.SIGINT, syscall.SIGTERM)
		defer stop()

		if err := cfg.Validate("report"); err != nil {
			return err
		}

		dest, _ := cmd.Flags().GetString("dest")
		if dest == "" {
			dest = filepath.Join(cfg.Output.Dir, "report.xlsx")
		}

		regions, err := writer.ReadRegions(ctx, cfg.Output.RegionsPath())
		if err != nil {
			return eris.Wrap(err, "report: read regions")
		}
		places, err := writer.ReadPlaces(ctx, cfg.Output.PlacesPath())
		if err != nil {
			return eris.Wrap(err, "report: read places")
		}

		if err := report.Write(dest, regions, places); err != nil {
			return err
		}

		fmt.Printf("wrote %s\n", dest)
		return nil
	},
}

func init() {
	reportCmd.Flags().String("dest", "", "workbook path (default: report.xlsx in the output directory)")
	rootCmd.AddCommand(reportCmd)
}
