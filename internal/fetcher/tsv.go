package fetcher

import (
	"bufio"
	"context"
	"io"
	"strings"

	"github.com/rotisserie/eris"
)

// TSVOptions configures tab-separated streaming.
type TSVOptions struct {
	Comment    string // lines starting with this prefix are skipped
	FieldLimit int    // max fields per row (SplitN limit); 0 = unlimited
}

// StreamTSV reads tab-separated rows from r and sends each row's fields to
// the returned channel. Empty lines and comment lines are skipped; no
// quoting rules apply, which matches the Geonames dump format. Both
// channels close when the input is exhausted or the context ends.
func StreamTSV(ctx context.Context, r io.Reader, opts TSVOptions) (<-chan []string, <-chan error) {
	rowCh := make(chan []string, 256)
	errCh := make(chan error, 1)

	go func() {
		defer close(rowCh)
		defer close(errCh)

		scanner := bufio.NewScanner(r)
		scanner.Buffer(make([]byte, 0, 64*1024), 1024*1024)

		for scanner.Scan() {
			line := scanner.Text()
			if line == "" {
				continue
			}
			if opts.Comment != "" && strings.HasPrefix(line, opts.Comment) {
				continue
			}

			var fields []string
			if opts.FieldLimit > 0 {
				fields = strings.SplitN(line, "\t", opts.FieldLimit)
			} else {
				fields = strings.Split(line, "\t")
			}

			select {
			case rowCh <- fields:
			case <-ctx.Done():
				errCh <- eris.Wrap(ctx.Err(), "tsv: stream cancelled")
				return
			}
		}

		if err := scanner.Err(); err != nil {
			errCh <- eris.Wrap(err, "tsv: read input")
		}
	}()

	return rowCh, errCh
}
