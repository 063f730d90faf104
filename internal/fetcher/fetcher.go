// Package fetcher downloads the source archives (GADM boundaries, Geonames
// cities) over HTTP or FTP with bounded retry, and extracts them into the
// local data directory. Downloads run sequentially; the only resilience in
// the pipeline lives here.
package fetcher

import (
	"context"
	"net/http"
	"net/url"
	"os"
	"path"
	"path/filepath"
	"sync"
	"time"

	"github.com/rotisserie/eris"
	"go.uber.org/zap"
	"golang.org/x/time/rate"

	"github.com/atlasforge/gazetteer/internal/resilience"
)

// Options configures the Fetcher.
type Options struct {
	UserAgent  string
	Timeout    time.Duration // whole-request timeout per attempt
	MaxRetries int           // total attempts per download
	RateLimit  float64       // requests/sec per host for unknown hosts
	Force      bool          // redownload even when a cached archive exists
}

// Fetcher retrieves remote archives to local files.
type Fetcher struct {
	client *http.Client
	opts   Options
	retry  resilience.RetryConfig

	mu       sync.Mutex
	limiters map[string]*rate.Limiter
}

// defaultLimiters keeps the pipeline polite towards the public mirrors it
// actually hits.
func defaultLimiters() map[string]*rate.Limiter {
	return map[string]*rate.Limiter{
		"geodata.ucdavis.edu":   rate.NewLimiter(2, 2),
		"download.geonames.org": rate.NewLimiter(2, 2),
	}
}

// New creates a Fetcher with the given options.
func New(opts Options) *Fetcher {
	if opts.UserAgent == "" {
		opts.UserAgent = "gazetteer/1.0 (+https://github.com/atlasforge/gazetteer)"
	}
	if opts.Timeout == 0 {
		opts.Timeout = 10 * time.Minute
	}
	if opts.RateLimit <= 0 {
		opts.RateLimit = 4
	}
	transport := &http.Transport{
		MaxIdleConnsPerHost: 2,
		IdleConnTimeout:     90 * time.Second,
	}
	return &Fetcher{
		client: &http.Client{
			Timeout:   opts.Timeout,
			Transport: transport,
		},
		opts:     opts,
		retry:    resilience.FromConfig(opts.MaxRetries, 0, 0),
		limiters: defaultLimiters(),
	}
}

func (f *Fetcher) limiterFor(rawURL string) *rate.Limiter {
	host := ""
	if u, err := url.Parse(rawURL); err == nil {
		host = u.Host
	}

	f.mu.Lock()
	defer f.mu.Unlock()
	lim, ok := f.limiters[host]
	if !ok {
		lim = rate.NewLimiter(rate.Limit(f.opts.RateLimit), 2)
		f.limiters[host] = lim
	}
	return lim
}

// Fetch downloads the archive at rawURL into destDir, named after the last
// URL path element. An existing non-empty archive is reused unless Force is
// set. Returns the local archive path. Failures after all retries surface
// as a DownloadError.
func (f *Fetcher) Fetch(ctx context.Context, rawURL, destDir string) (string, error) {
	log := zap.L().With(zap.String("component", "fetcher"), zap.String("url", rawURL))

	if err := os.MkdirAll(destDir, 0o755); err != nil {
		return "", eris.Wrap(err, "fetcher: create data directory")
	}

	u, err := url.Parse(rawURL)
	if err != nil {
		return "", eris.Wrapf(err, "fetcher: parse url %s", rawURL)
	}
	name := path.Base(u.Path)
	if name == "" || name == "." || name == "/" {
		return "", eris.Errorf("fetcher: url %s has no file component", rawURL)
	}
	dest := filepath.Join(destDir, name)

	if !f.opts.Force {
		if fi, statErr := os.Stat(dest); statErr == nil && fi.Size() > 0 {
			log.Info("archive cached, skipping download",
				zap.String("path", dest),
				zap.Int64("bytes", fi.Size()),
			)
			return dest, nil
		}
	}

	var n int64
	switch u.Scheme {
	case "http", "https":
		n, err = f.DownloadToFile(ctx, rawURL, dest)
	case "ftp":
		n, err = f.ftpToFile(ctx, rawURL, dest)
	default:
		return "", eris.Errorf("fetcher: unsupported scheme %q in %s", u.Scheme, rawURL)
	}
	if err != nil {
		return "", err
	}

	log.Info("archive downloaded",
		zap.String("path", dest),
		zap.Int64("bytes", n),
	)
	return dest, nil
}
