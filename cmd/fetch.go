package main

import (
	"fmt"
	"os/signal"
	"syscall"

	"github.com/rotisserie/eris"
	"github.com/spf13/cobra"
	"go.uber.org/zap"

	"github.com/atlasforge/gazetteer/internal/pipeline"
)

var fetchCmd = &cobra.Command{
	Use:   "fetch",
	Short: "Download and extract both source archives without building",
	RunE: func(cmd *cobra.Command, _ []string) error {
		ctx, stop := signal.NotifyContext(cmd.Context(), syscall.SIGINT, syscall.SIGTERM)
		defer stop()

		force, _ := cmd.Flags().GetBool("force")
		if force {
			cfg.Fetch.Force = true
		}

		if err := cfg.Validate("fetch"); err != nil {
			return err
		}

		zap.L().Info("fetching sources",
			zap.String("gadm_url", cfg.Sources.GADMURL),
			zap.String("geonames_url", cfg.Sources.GeonamesURL),
			zap.String("data_dir", cfg.DataDir),
			zap.Bool("force", cfg.Fetch.Force),
		)

		if err := pipeline.FetchSources(ctx, cfg); err != nil {
			return eris.Wrap(err, "fetch")
		}

		fmt.Printf("sources ready under %s\n", cfg.DataDir)
		return nil
	},
}

func init() {
	fetchCmd.Flags().Bool("force", false, "re-download archives and re-extract even when cached")
	rootCmd.AddCommand(fetchCmd)
}
