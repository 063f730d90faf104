package main

import (
	"fmt"
	"os"

	"github.com/spf13/cobra"
	"go.uber.org/zap"

	"github.com/atlasforge/gazetteer/internal/config"
)

var cfg *config.Config

var rootCmd = &cobra.Command{
	Use:   "gazetteer",
	Short: "Batch builder for a regions/places gazetteer",
	Long: `Downloads GADM administrative boundaries and the Geonames cities dump,
derives a unified regions polygon layer and a population-filtered places
point layer joined by containment, and writes both as GeoPackage files.`,
	PersistentPreRunE: func(cmd *cobra.Command, args []string) error {
		c, err := config.Load()
		if err != nil {
			return fmt.Errorf("load config: %w", err)
		}
		cfg = c

		if v, _ := cmd.Flags().GetString("data-dir"); v != "" {
			cfg.DataDir = v
		}
		if v, _ := cmd.Flags().GetString("out"); v != "" {
			cfg.Output.Dir = v
		}

		if err := config.InitLogger(cfg.Log); err != nil {
			return fmt.Errorf("init logger: %w", err)
		}

		return nil
	},
	PersistentPostRun: func(cmd *cobra.Command, args []string) {
		_ = zap.L().Sync()
	},
}

func init() {
	rootCmd.PersistentFlags().String("data-dir", "", "working directory for downloads and extraction (default: from config)")
	rootCmd.PersistentFlags().String("out", "", "output directory (default: from config)")
}

func main() {
	if err := rootCmd.Execute(); err != nil {
		os.Exit(1)
	}
}
