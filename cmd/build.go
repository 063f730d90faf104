package main

import (
	"fmt"
	"os/signal"
	"syscall"
	"time"

	"github.com/rotisserie/eris"
	"github.com/spf13/cobra"
	"go.uber.org/zap"

	"github.com/atlasforge/gazetteer/internal/pipeline"
)

var buildCmd = &cobra.Command{
	Use:   "build",
	Short: "Run the full pipeline: fetch, build regions, build places, write",
	Long: `Runs the four stages in order: download and extract both source archives,
build the unified regions layer from the boundary levels, parse and join
the gazetteer places, and write both GeoPackages. The first stage error
aborts the run; a failed run never leaves a half-written output file.`,
	RunE: func(cmd *cobra.Command, _ []string) error {
		ctx, stop := signal.NotifyContext(cmd.Context(), syscall.SIGINT, syscall.SIGTERM)
		defer stop()

		skipFetch, _ := cmd.Flags().GetBool("skip-fetch")
		dryRun, _ := cmd.Flags().GetBool("dry-run")
		force, _ := cmd.Flags().GetBool("force")
		if force {
			cfg.Fetch.Force = true
		}

		if err := cfg.Validate("build"); err != nil {
			return err
		}

		log := zap.L().With(zap.String("command", "build"))
		log.Info("starting build",
			zap.String("data_dir", cfg.DataDir),
			zap.String("out_dir", cfg.Output.Dir),
			zap.Bool("skip_fetch", skipFetch),
			zap.Bool("dry_run", dryRun),
		)

		res, err := pipeline.Run(ctx, cfg, pipeline.Options{SkipFetch: skipFetch, DryRun: dryRun})
		if err != nil {
			return eris.Wrap(err, "build")
		}

		printRunSummary(res, dryRun)
		return nil
	},
}

func init() {
	buildCmd.Flags().Bool("skip-fetch", false, "reuse previously downloaded and extracted sources")
	buildCmd.Flags().Bool("dry-run", false, "run every stage except the final write")
	buildCmd.Flags().Bool("force", false, "re-download archives and re-extract even when cached")
	rootCmd.AddCommand(buildCmd)
}

func printRunSummary(res *pipeline.Result, dryRun bool) {
	for _, s := range res.Stages {
		fmt.Printf("%-10s %s\n", s.Name, s.Duration.Round(time.Millisecond))
	}
	fmt.Printf("regions: %d  places: %d (within %d, nearest %d, unmatched %d)\n",
		len(res.Regions), len(res.Places),
		res.Join.Within, res.Join.Nearest, res.Join.Unmatched)
	if dryRun {
		fmt.Println("dry run, nothing written")
		return
	}
	fmt.Printf("wrote %s and %s\n", res.RegionsPath, res.PlacesPath)
}
