// Package download retrieves job result files into a local directory.
//
// Each file is fetched with a plain HTTP GET and written whole: bytes land in
// a temp file next to the target and are renamed into place, so an
// interrupted download never leaves a truncated result under the final name.
// A failure on one file does not stop the others.
package download

import (
	"context"
	"errors"
	"fmt"
	"io"
	"net/http"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/bmatcuk/doublestar/v4"

	"github.com/3leaps/hy3d/pkg/job"
)

// DefaultTimeout bounds a single file download.
const DefaultTimeout = 10 * time.Minute

// ErrInvalidPattern indicates an include glob could not be compiled.
var ErrInvalidPattern = errors.New("invalid include pattern")

// HTTPStatusError is returned when the result host answers with a non-2xx
// status (an expired signed URL typically yields 403).
type HTTPStatusError struct {
	URL        string
	StatusCode int
}

func (e *HTTPStatusError) Error() string {
	return fmt.Sprintf("download %s: unexpected HTTP status %d", redactQuery(e.URL), e.StatusCode)
}

// Options configures a Fetcher.
type Options struct {
	// HTTPClient overrides the client used for downloads.
	HTTPClient *http.Client

	// Include restricts downloads to files whose local name matches at least
	// one doublestar glob. Empty downloads everything.
	Include []string

	// UserAgent is sent with every request when set.
	UserAgent string
}

// FileResult is the outcome of one result file.
type FileResult struct {
	Index   int
	URL     string
	Name    string
	Path    string
	Bytes   int64
	Skipped bool
	Err     error
}

// Report collects per-file outcomes in result order.
type Report struct {
	Dir   string
	Files []FileResult
}

// Downloaded returns the number of files written.
func (r *Report) Downloaded() int {
	n := 0
	for _, f := range r.Files {
		if !f.Skipped && f.Err == nil {
			n++
		}
	}
	return n
}

// Failed returns the number of files that could not be written.
func (r *Report) Failed() int {
	n := 0
	for _, f := range r.Files {
		if f.Err != nil {
			n++
		}
	}
	return n
}

// Bytes returns the total bytes written.
func (r *Report) Bytes() int64 {
	var total int64
	for _, f := range r.Files {
		total += f.Bytes
	}
	return total
}

// Paths returns the local paths of successfully written files.
func (r *Report) Paths() []string {
	var out []string
	for _, f := range r.Files {
		if !f.Skipped && f.Err == nil {
			out = append(out, f.Path)
		}
	}
	return out
}

// Err joins every per-file error, or returns nil.
func (r *Report) Err() error {
	var errs []error
	for _, f := range r.Files {
		if f.Err != nil {
			errs = append(errs, f.Err)
		}
	}
	return errors.Join(errs...)
}

// Fetcher downloads result files.
type Fetcher struct {
	client    *http.Client
	include   []string
	userAgent string
}

// NewFetcher validates include patterns and returns a Fetcher.
func NewFetcher(opts Options) (*Fetcher, error) {
	for _, p := range opts.Include {
		if !doublestar.ValidatePattern(p) {
			return nil, fmt.Errorf("%w: %q", ErrInvalidPattern, p)
		}
	}
	client := opts.HTTPClient
	if client == nil {
		client = &http.Client{Timeout: DefaultTimeout}
	}
	return &Fetcher{client: client, include: opts.Include, userAgent: opts.UserAgent}, nil
}

// Included reports whether a local file name passes the include filter.
func (f *Fetcher) Included(name string) bool {
	if len(f.include) == 0 {
		return true
	}
	for _, p := range f.include {
		if ok, err := doublestar.Match(p, name); err == nil && ok {
			return true
		}
	}
	return false
}

// FetchAll downloads every file into dir, naming them with namer.
//
// dir is created if absent; failure to create it is the only error FetchAll
// returns. Per-file failures are recorded in the report. onFile, if non-nil,
// is called after each file is processed.
func (f *Fetcher) FetchAll(ctx context.Context, dir string, namer *Namer, files []job.ResultFile, onFile func(FileResult)) (*Report, error) {
	if err := os.MkdirAll(dir, 0755); err != nil {
		return nil, fmt.Errorf("create output dir: %w", err)
	}

	report := &Report{Dir: dir, Files: make([]FileResult, 0, len(files))}
	for i, rf := range files {
		rf.URL = strings.TrimSpace(rf.URL)
		res := FileResult{Index: i, URL: rf.URL}

		switch {
		case rf.URL == "":
			res.Skipped = true
		default:
			// Names are assigned before filtering so they do not depend on
			// which patterns are active.
			res.Name = namer.Name(i, rf)
			res.Path = filepath.Join(dir, res.Name)
			if !f.Included(res.Name) {
				res.Skipped = true
				break
			}
			if err := ctx.Err(); err != nil {
				res.Err = err
				break
			}
			res.Bytes, res.Err = f.Fetch(ctx, rf.URL, res.Path)
		}

		report.Files = append(report.Files, res)
		if onFile != nil {
			onFile(res)
		}
	}
	return report, nil
}

// Fetch downloads rawURL to dest, replacing any existing file.
func (f *Fetcher) Fetch(ctx context.Context, rawURL, dest string) (int64, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, rawURL, nil)
	if err != nil {
		return 0, fmt.Errorf("build request: %w", err)
	}
	if f.userAgent != "" {
		req.Header.Set("User-Agent", f.userAgent)
	}

	resp, err := f.client.Do(req)
	if err != nil {
		return 0, fmt.Errorf("download %s: %w", redactQuery(rawURL), err)
	}
	defer func() { _ = resp.Body.Close() }()

	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		return 0, &HTTPStatusError{URL: rawURL, StatusCode: resp.StatusCode}
	}

	return writeWhole(dest, resp.Body)
}

// writeWhole streams r into a temp file beside dest and renames it over dest.
func writeWhole(dest string, r io.Reader) (int64, error) {
	dir := filepath.Dir(dest)
	tmp, err := os.CreateTemp(dir, "."+filepath.Base(dest)+".part-*")
	if err != nil {
		return 0, fmt.Errorf("create temp file: %w", err)
	}
	tmpName := tmp.Name()
	defer func() { _ = os.Remove(tmpName) }()

	n, err := io.Copy(tmp, r)
	if err != nil {
		_ = tmp.Close()
		return 0, fmt.Errorf("write %s: %w", filepath.Base(dest), err)
	}
	if err := tmp.Chmod(0644); err != nil {
		_ = tmp.Close()
		return 0, fmt.Errorf("chmod temp file: %w", err)
	}
	if err := tmp.Close(); err != nil {
		return 0, fmt.Errorf("close temp file: %w", err)
	}
	if err := os.Rename(tmpName, dest); err != nil {
		return 0, fmt.Errorf("rename into place: %w", err)
	}
	return n, nil
}

// redactQuery drops the query string, which carries signing material on
// result URLs.
func redactQuery(rawURL string) string {
	if i := strings.IndexByte(rawURL, '?'); i >= 0 {
		return rawURL[:i] + "?…"
	}
	return rawURL
}
