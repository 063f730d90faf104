package fetcher

import (
	"fmt"
)

// DownloadError reports a source archive that could not be retrieved after
// the configured retries, or a terminal response from the remote host.
type DownloadError struct {
	URL    string
	Status int // last HTTP status, 0 for network and FTP failures
	Err    error
}

func (e *DownloadError) Error() string {
	if e.Status != 0 {
		return fmt.Sprintf("download %s: status %d: %v", e.URL, e.Status, e.Err)
	}
	return fmt.Sprintf("download %s: %v", e.URL, e.Err)
}

func (e *DownloadError) Unwrap() error {
	return e.Err
}

// CorruptArchiveError reports an archive that downloaded but cannot be
// extracted: unreadable zip structure, a failing entry, or an entry path
// escaping the destination directory.
type CorruptArchiveError struct {
	Path string
	Err  error
}

func (e *CorruptArchiveError) Error() string {
	return fmt.Sprintf("corrupt archive %s: %v", e.Path, e.Err)
}

func (e *CorruptArchiveError) Unwrap() error {
	return e.Err
}
