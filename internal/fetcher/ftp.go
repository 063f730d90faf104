package fetcher

import (
	"context"
	"io"
	"net"
	"net/url"
	"time"

	"github.com/jlaffaye/ftp"
	"github.com/rotisserie/eris"
	"go.uber.org/zap"

	"github.com/atlasforge/gazetteer/internal/resilience"
)

// parseFTPURL extracts host (with port) and remote path from an FTP URL.
func parseFTPURL(rawURL string) (host string, remote string, err error) {
	u, err := url.Parse(rawURL)
	if err != nil {
		return "", "", eris.Wrap(err, "fetcher: parse ftp url")
	}
	if u.Scheme != "ftp" {
		return "", "", eris.Errorf("fetcher: expected ftp scheme, got %q", u.Scheme)
	}

	host = u.Host
	if _, _, splitErr := net.SplitHostPort(host); splitErr != nil {
		host = net.JoinHostPort(host, "21")
	}

	remote = u.Path
	if remote == "" {
		return "", "", eris.New("fetcher: empty path in ftp url")
	}

	return host, remote, nil
}

// ftpToFile downloads an ftp:// URL to dest with the same retry and
// finalize semantics as the HTTP path. Geonames publishes its dumps on FTP
// mirrors as well as HTTP.
func (f *Fetcher) ftpToFile(ctx context.Context, rawURL, dest string) (int64, error) {
	retry := f.retry
	retry.OnRetry = resilience.RetryLogger(rawURL)

	n, err := resilience.DoVal(ctx, retry, func(ctx context.Context) (int64, error) {
		return f.ftpOnce(ctx, rawURL, dest)
	})
	if err != nil {
		return 0, asDownloadError(rawURL, err)
	}
	return n, nil
}

func (f *Fetcher) ftpOnce(ctx context.Context, rawURL, dest string) (int64, error) {
	host, remote, err := parseFTPURL(rawURL)
	if err != nil {
		return 0, err
	}

	zap.L().Debug("ftp: connecting",
		zap.String("host", host),
		zap.String("path", remote),
	)

	dialTimeout := f.opts.Timeout
	if dialTimeout > 30*time.Second {
		dialTimeout = 30 * time.Second
	}
	conn, err := ftp.Dial(host, ftp.DialWithTimeout(dialTimeout), ftp.DialWithContext(ctx))
	if err != nil {
		return 0, eris.Wrap(err, "fetcher: ftp dial")
	}
	defer conn.Quit() //nolint:errcheck

	if err := conn.Login("anonymous", "anonymous@"); err != nil {
		return 0, eris.Wrap(err, "fetcher: ftp login")
	}

	var size int64
	if sz, sizeErr := conn.FileSize(remote); sizeErr == nil {
		size = sz
	}

	resp, err := conn.Retr(remote)
	if err != nil {
		return 0, eris.Wrap(err, "fetcher: ftp retrieve")
	}

	n, err := copyToFile(dest, io.Reader(resp), size, rawURL)
	if cerr := resp.Close(); err == nil && cerr != nil {
		err = eris.Wrap(cerr, "fetcher: close ftp response")
	}
	return n, err
}
