package fetcher

import (
	"context"
	"errors"
	"io"
	"net/http"
	"os"

	"github.com/rotisserie/eris"

	"github.com/atlasforge/gazetteer/internal/resilience"
)

// DownloadToFile fetches rawURL over HTTP and writes it to dest, retrying
// the whole transfer on transient failures. The body lands in a sibling
// .part file first and is renamed only after a complete copy, so dest never
// holds a truncated archive.
func (f *Fetcher) DownloadToFile(ctx context.Context, rawURL, dest string) (int64, error) {
	retry := f.retry
	retry.OnRetry = resilience.RetryLogger(rawURL)

	n, err := resilience.DoVal(ctx, retry, func(ctx context.Context) (int64, error) {
		return f.downloadOnce(ctx, rawURL, dest)
	})
	if err != nil {
		return 0, asDownloadError(rawURL, err)
	}
	return n, nil
}

func (f *Fetcher) downloadOnce(ctx context.Context, rawURL, dest string) (int64, error) {
	if err := f.limiterFor(rawURL).Wait(ctx); err != nil {
		return 0, eris.Wrap(err, "fetcher: rate limiter wait")
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, rawURL, nil)
	if err != nil {
		return 0, eris.Wrap(err, "fetcher: create request")
	}
	req.Header.Set("User-Agent", f.opts.UserAgent)

	resp, err := f.client.Do(req)
	if err != nil {
		return 0, err
	}
	defer resp.Body.Close() //nolint:errcheck

	if resilience.IsTransientHTTPStatus(resp.StatusCode) {
		return 0, resilience.NewTransientError(
			eris.Errorf("http %d from %s", resp.StatusCode, rawURL), resp.StatusCode)
	}
	if resp.StatusCode != http.StatusOK {
		return 0, &DownloadError{
			URL:    rawURL,
			Status: resp.StatusCode,
			Err:    eris.Errorf("unexpected status %d", resp.StatusCode),
		}
	}

	return copyToFile(dest, resp.Body, resp.ContentLength, rawURL)
}

// copyToFile streams body into dest via a .part file, verifying the byte
// count against want when the server declared one. Short bodies are
// reported transient so the download is retried from scratch.
func copyToFile(dest string, body io.Reader, want int64, rawURL string) (int64, error) {
	tmp := dest + ".part"
	file, err := os.Create(tmp)
	if err != nil {
		return 0, eris.Wrap(err, "fetcher: create archive file")
	}

	n, err := io.Copy(file, body)
	if cerr := file.Close(); err == nil {
		err = cerr
	}
	if err != nil {
		_ = os.Remove(tmp)
		return n, eris.Wrap(err, "fetcher: write archive")
	}
	if want > 0 && n != want {
		_ = os.Remove(tmp)
		return n, resilience.NewTransientError(
			eris.Errorf("fetcher: short body from %s: %d of %d bytes", rawURL, n, want), 0)
	}

	if err := os.Rename(tmp, dest); err != nil {
		_ = os.Remove(tmp)
		return n, eris.Wrap(err, "fetcher: finalize archive")
	}
	return n, nil
}

// asDownloadError normalizes a terminal fetch failure into a DownloadError,
// preserving one that already is, and lifting the HTTP status off a
// transient wrapper when the retries ran out on one.
func asDownloadError(rawURL string, err error) error {
	var de *DownloadError
	if errors.As(err, &de) {
		return err
	}
	status := 0
	var te *resilience.TransientError
	if errors.As(err, &te) {
		status = te.StatusCode
	}
	return &DownloadError{URL: rawURL, Status: status, Err: err}
}
