package main

import (
	"context"
	"fmt"
	"os/signal"
	"syscall"

	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/rotisserie/eris"
	"github.com/spf13/cobra"
	"go.uber.org/zap"

	"github.com/atlasforge/gazetteer/internal/pgload"
	"github.com/atlasforge/gazetteer/internal/writer"
)

var loadCmd = &cobra.Command{
	Use:   "load",
	Short: "Bulk-load the built layers into PostgreSQL",
	Long: `Reads the output GeoPackages and COPYs both layers into PostgreSQL,
geometry as EWKB bytes. Re-running replaces rows by key, so the target
tables always mirror the latest build.`,
	RunE: func(cmd *cobra.Command, _ []string) error {
		ctx, stop := signal.NotifyContext(cmd.Context(), syscall.SIGINT, syscall.SIGTERM)
		defer stop()

		if dsn, _ := cmd.Flags().GetString("dsn"); dsn != "" {
			cfg.Postgres.DSN = dsn
		}
		if schema, _ := cmd.Flags().GetString("schema"); schema != "" {
			cfg.Postgres.Schema = schema
		}

		if err := cfg.Validate("load"); err != nil {
			return err
		}

		pool, err := connectPool(ctx)
		if err != nil {
			return err
		}
		defer pool.Close()

		regions, err := writer.ReadRegions(ctx, cfg.Output.RegionsPath())
		if err != nil {
			return eris.Wrap(err, "load: read regions")
		}
		places, err := writer.ReadPlaces(ctx, cfg.Output.PlacesPath())
		if err != nil {
			return eris.Wrap(err, "load: read places")
		}

		zap.L().Info("loading layers",
			zap.String("schema", cfg.Postgres.Schema),
			zap.Int("regions", len(regions)),
			zap.Int("places", len(places)),
		)

		stats, err := pgload.Load(ctx, pool, cfg.Postgres.Schema, regions, places)
		if err != nil {
			return eris.Wrap(err, "load")
		}

		fmt.Printf("loaded %d regions and %d places into schema %s\n",
			stats.Regions, stats.Places, cfg.Postgres.Schema)
		return nil
	},
}

func init() {
	loadCmd.Flags().String("dsn", "", "PostgreSQL connection string (default: postgres.dsn from config)")
	loadCmd.Flags().String("schema", "", "target schema (default: postgres.schema from config)")
	rootCmd.AddCommand(loadCmd)
}

func connectPool(ctx context.Context) (*pgxpool.Pool, error) {
	pool, err := pgxpool.New(ctx, cfg.Postgres.DSN)
	if err != nil {
		return nil, eris.Wrap(err, "load: create connection pool")
	}

	if err := pool.Ping(ctx); err != nil {
		pool.Close()
		return nil, eris.Wrap(err, "load: ping database")
	}

	return pool, nil
}
