// Package pipeline runs the batch ETL as a linear sequence of stages:
// fetch the source archives, build regions from the boundary layers,
// build places from the gazetteer dump and join them to regions, then
// write the output containers. The first stage error aborts the run.
// Ownership moves linearly between stages; nothing is shared mutably.
package pipeline

import (
	"context"
	"os"
	"path/filepath"
	"time"

	"github.com/rotisserie/eris"
	"go.uber.org/zap"

	"github.com/atlasforge/gazetteer/internal/config"
	"github.com/atlasforge/gazetteer/internal/fetcher"
	"github.com/atlasforge/gazetteer/internal/gadm"
	"github.com/atlasforge/gazetteer/internal/geonames"
	"github.com/atlasforge/gazetteer/internal/model"
	"github.com/atlasforge/gazetteer/internal/spatial"
	"github.com/atlasforge/gazetteer/internal/writer"
)

// Options tweaks a run without touching persistent configuration.
type Options struct {
	SkipFetch bool // reuse previously fetched and extracted sources
	DryRun    bool // stop before the write stage
}

// StageResult records one stage of a finished or failed run.
type StageResult struct {
	Name     string        `json:"name"`
	Duration time.Duration `json:"duration"`
}

// Result is everything a run produced, kept in memory for the caller.
type Result struct {
	Regions []model.Region
	Places  []model.Place

	Stages []StageResult
	Patch  gadm.PatchStats
	Parse  geonames.Stats
	Join   spatial.JoinStats

	RegionsPath string
	PlacesPath  string
}

type run struct {
	cfg    *config.Config
	opts   Options
	result *Result
}

// Run executes the full pipeline.
func Run(ctx context.Context, cfg *config.Config, opts Options) (*Result, error) {
	p := &run{cfg: cfg, opts: opts, result: &Result{}}
	log := zap.L().With(zap.String("component", "pipeline"))
	log.Info("run starting",
		zap.Bool("skip_fetch", opts.SkipFetch),
		zap.Bool("dry_run", opts.DryRun),
	)

	if !opts.SkipFetch {
		if err := p.stage(ctx, "fetch", func(ctx context.Context) error {
			return FetchSources(ctx, cfg)
		}); err != nil {
			return p.result, err
		}
	}

	if err := p.stage(ctx, "regions", p.buildRegions); err != nil {
		return p.result, err
	}
	if err := p.stage(ctx, "places", p.buildPlaces); err != nil {
		return p.result, err
	}

	if opts.DryRun {
		log.Info("dry run, skipping write stage")
		return p.result, nil
	}

	if err := p.stage(ctx, "write", p.write); err != nil {
		return p.result, err
	}

	log.Info("run complete",
		zap.Int("regions", len(p.result.Regions)),
		zap.Int("places", len(p.result.Places)),
	)
	return p.result, nil
}

// stage runs fn with timing and uniform logging. The duration is
// recorded even when the stage fails.
func (p *run) stage(ctx context.Context, name string, fn func(ctx context.Context) error) error {
	start := time.Now()
	err := fn(ctx)
	d := time.Since(start)
	p.result.Stages = append(p.result.Stages, StageResult{Name: name, Duration: d})

	if err != nil {
		zap.L().Error("pipeline: stage failed",
			zap.String("stage", name),
			zap.Duration("duration", d),
			zap.Error(err),
		)
		return err
	}
	zap.L().Info("pipeline: stage complete",
		zap.String("stage", name),
		zap.Duration("duration", d),
	)
	return nil
}

// FetchSources downloads both source archives and extracts them under
// the data directory. Cached archives are reused unless Force is set;
// an already-populated extraction directory is left alone.
func FetchSources(ctx context.Context, cfg *config.Config) error {
	f := fetcher.New(fetcher.Options{
		UserAgent:  cfg.Fetch.UserAgent,
		Timeout:    cfg.Fetch.Timeout,
		MaxRetries: cfg.Fetch.MaxRetries,
		RateLimit:  cfg.Fetch.RateLimit,
		Force:      cfg.Fetch.Force,
	})
	archiveDir := ArchiveDir(cfg)

	gadmZip, err := f.Fetch(ctx, cfg.Sources.GADMURL, archiveDir)
	if err != nil {
		return err
	}
	if err := extractArchive(gadmZip, BoundariesDir(cfg), cfg.Fetch.Force); err != nil {
		return err
	}

	placesZip, err := f.Fetch(ctx, cfg.Sources.GeonamesURL, archiveDir)
	if err != nil {
		return err
	}
	return extractArchive(placesZip, GazetteerDir(cfg), cfg.Fetch.Force)
}

// ArchiveDir, BoundariesDir, and GazetteerDir name the fixed layout
// under the data directory: downloaded archives, and the extraction
// directories for the boundary and gazetteer sources.
func ArchiveDir(cfg *config.Config) string {
	return filepath.Join(cfg.DataDir, "archives")
}

func BoundariesDir(cfg *config.Config) string {
	return filepath.Join(cfg.DataDir, "gadm")
}

func GazetteerDir(cfg *config.Config) string {
	return filepath.Join(cfg.DataDir, "geonames")
}

func extractArchive(zipPath, destDir string, force bool) error {
	if force {
		if err := os.RemoveAll(destDir); err != nil {
			return eris.Wrapf(err, "pipeline: clear %s", destDir)
		}
	}
	if entries, err := os.ReadDir(destDir); err == nil && len(entries) > 0 {
		zap.L().Info("archive already extracted",
			zap.String("archive", zipPath),
			zap.String("dir", destDir),
		)
		return nil
	}

	paths, err := fetcher.ExtractZIP(zipPath, destDir)
	if err != nil {
		return err
	}
	zap.L().Info("archive extracted",
		zap.String("archive", zipPath),
		zap.String("dir", destDir),
		zap.Int("files", len(paths)),
	)
	return nil
}

// locateBoundaries finds the extracted boundary payload: a GeoPackage
// when the archive ships one, otherwise the directory holding the
// level shapefiles.
func locateBoundaries(cfg *config.Config) (string, error) {
	dir := BoundariesDir(cfg)
	if path, err := fetcher.FindByExt(dir, ".gpkg"); err == nil {
		return path, nil
	}
	path, err := fetcher.FindByExt(dir, ".shp")
	if err != nil {
		return "", eris.Wrapf(err, "pipeline: no boundary data under %s, run fetch first", dir)
	}
	return filepath.Dir(path), nil
}

func (p *run) buildRegions(ctx context.Context) error {
	src, err := locateBoundaries(p.cfg)
	if err != nil {
		return err
	}

	layers := gadm.Layers{
		Country:   p.cfg.Regions.Layer0,
		Region:    p.cfg.Regions.Layer1,
		Subregion: p.cfg.Regions.Layer2,
	}
	levels, err := gadm.ReadLevels(ctx, src, layers)
	if err != nil {
		return err
	}

	rules := gadm.DefaultRules()
	if p.cfg.Regions.PatchesFile != "" {
		if rules, err = gadm.LoadRules(p.cfg.Regions.PatchesFile); err != nil {
			return err
		}
	}
	p.result.Patch = rules.Apply(levels)

	h := gadm.Heuristic{
		DissolveMaxAreaKm2: p.cfg.Regions.DissolveMaxAreaKm2,
		SplitMinAreaKm2:    p.cfg.Regions.SplitMinAreaKm2,
		MinSubregions:      p.cfg.Regions.MinSubregions,
	}
	p.result.Regions, err = gadm.Build(ctx, levels, h)
	return err
}

func (p *run) buildPlaces(ctx context.Context) error {
	dump, err := fetcher.FindByExt(GazetteerDir(p.cfg), ".txt")
	if err != nil {
		return eris.Wrap(err, "pipeline: no gazetteer dump, run fetch first")
	}

	places, stats, err := geonames.ParseFile(ctx, dump, geonames.Options{
		MinPopulation:    int64(p.cfg.Places.MinPopulation),
		GeohashPrecision: p.cfg.Places.GeohashPrecision,
	})
	if err != nil {
		return err
	}
	p.result.Parse = stats

	idx := spatial.NewIndex(p.result.Regions, p.cfg.Places.CellSizeDeg)
	var nearest *spatial.Nearest
	if p.cfg.Places.NearestFallback {
		nearest = spatial.NewNearest(p.result.Regions, p.cfg.Places.NearestMaxKm)
	}
	p.result.Join, err = spatial.Join(ctx, idx, places, spatial.JoinOptions{
		Workers: p.cfg.Places.JoinWorkers,
		Nearest: nearest,
	})
	if err != nil {
		return err
	}

	p.result.Places = places
	return nil
}

func (p *run) write(ctx context.Context) error {
	regionsPath := p.cfg.Output.RegionsPath()
	if err := writer.WriteRegions(ctx, regionsPath, p.result.Regions); err != nil {
		return err
	}
	p.result.RegionsPath = regionsPath

	placesPath := p.cfg.Output.PlacesPath()
	if err := writer.WritePlaces(ctx, placesPath, p.result.Places); err != nil {
		return err
	}
	p.result.PlacesPath = placesPath
	return nil
}
