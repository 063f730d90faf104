package spatial

import (
	"context"
	"runtime"

	"github.com/rotisserie/eris"
	"go.uber.org/zap"
	"golang.org/x/sync/errgroup"

	"github.com/atlasforge/gazetteer/internal/model"
)

type JoinOptions struct {
	// Workers is the number of slice shards processed concurrently.
	// Zero picks GOMAXPROCS.
	Workers int
	// Nearest, when set, assigns unmatched places to the closest
	// region centroid within its distance cap.
	Nearest *Nearest
}

type JoinStats struct {
	Within    int
	Nearest   int
	Unmatched int
}

// Join assigns at most one region to every place, mutating the slice
// in place. Shards are disjoint ranges of the slice, so the result is
// independent of worker count and needs no locking.
func Join(ctx context.Context, idx *Index, places []model.Place, opts JoinOptions) (JoinStats, error) {
	workers := opts.Workers
	if workers <= 0 {
		workers = runtime.GOMAXPROCS(0)
	}
	if workers > len(places) {
		workers = max(len(places), 1)
	}

	g, gctx := errgroup.WithContext(ctx)
	shardStats := make([]JoinStats, workers)
	chunk := (len(places) + workers - 1) / workers

	for w := 0; w < workers; w++ {
		start := w * chunk
		end := min(start+chunk, len(places))
		if start >= end {
			break
		}
		st := &shardStats[w]
		g.Go(func() error {
			for i := start; i < end; i++ {
				if i%1024 == 0 {
					if err := gctx.Err(); err != nil {
						return err
					}
				}
				p := &places[i]
				if id, ok := idx.Locate(p.Lon, p.Lat); ok {
					p.RegionID = id
					p.RegionMatch = model.MatchWithin
					st.Within++
					continue
				}
				if opts.Nearest != nil {
					if id, _, ok := opts.Nearest.Lookup(p.Lon, p.Lat); ok {
						p.RegionID = id
						p.RegionMatch = model.MatchNearest
						st.Nearest++
						continue
					}
				}
				p.RegionID = ""
				p.RegionMatch = model.MatchNone
				st.Unmatched++
			}
			return nil
		})
	}

	if err := g.Wait(); err != nil {
		return JoinStats{}, eris.Wrap(err, "spatial: join places to regions")
	}

	var stats JoinStats
	for _, st := range shardStats {
		stats.Within += st.Within
		stats.Nearest += st.Nearest
		stats.Unmatched += st.Unmatched
	}
	zap.L().Info("places joined",
		zap.Int("places", len(places)),
		zap.Int("within", stats.Within),
		zap.Int("nearest", stats.Nearest),
		zap.Int("unmatched", stats.Unmatched),
		zap.Int("workers", workers),
	)
	return stats, nil
}
