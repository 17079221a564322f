package download

import (
	"context"
	"net/http"
	"net/http/httptest"
	"os"
	"path/filepath"
	"strings"
	"sync/atomic"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/3leaps/hy3d/pkg/job"
)

func newResultServer(t *testing.T, hits *atomic.Int64) *httptest.Server {
	t.Helper()
	mux := http.NewServeMux()
	mux.HandleFunc("/out/a.glb", func(w http.ResponseWriter, r *http.Request) {
		hits.Add(1)
		_, _ = w.Write([]byte("glb-bytes"))
	})
	mux.HandleFunc("/out/b.zip", func(w http.ResponseWriter, r *http.Request) {
		hits.Add(1)
		_, _ = w.Write([]byte("zip-bytes"))
	})
	mux.HandleFunc("/out/expired.obj", func(w http.ResponseWriter, r *http.Request) {
		hits.Add(1)
		http.Error(w, "signature expired", http.StatusForbidden)
	})
	srv := httptest.NewServer(mux)
	t.Cleanup(srv.Close)
	return srv
}

func TestFetchAll_WritesOneFilePerURL(t *testing.T) {
	var hits atomic.Int64
	srv := newResultServer(t, &hits)
	dir := filepath.Join(t.TempDir(), "nested", "out")

	f, err := NewFetcher(Options{})
	require.NoError(t, err)

	files := []job.ResultFile{
		{URL: srv.URL + "/out/a.glb"},
		{URL: srv.URL + "/out/b.zip"},
	}
	report, err := f.FetchAll(context.Background(), dir, NewNamer("job-1", ""), files, nil)
	require.NoError(t, err)

	assert.Equal(t, int64(2), hits.Load())
	assert.Equal(t, 2, report.Downloaded())
	assert.Equal(t, 0, report.Failed())
	assert.Equal(t, int64(len("glb-bytes")+len("zip-bytes")), report.Bytes())

	got, err := os.ReadFile(filepath.Join(dir, "a.glb"))
	require.NoError(t, err)
	assert.Equal(t, "glb-bytes", string(got))

	got, err = os.ReadFile(filepath.Join(dir, "b.zip"))
	require.NoError(t, err)
	assert.Equal(t, "zip-bytes", string(got))
}

func TestFetchAll_FailureDoesNotAbortRemaining(t *testing.T) {
	var hits atomic.Int64
	srv := newResultServer(t, &hits)
	dir := t.TempDir()

	f, err := NewFetcher(Options{})
	require.NoError(t, err)

	files := []job.ResultFile{
		{URL: srv.URL + "/out/expired.obj"},
		{URL: srv.URL + "/out/a.glb"},
	}

	var seen []FileResult
	report, err := f.FetchAll(context.Background(), dir, NewNamer("job-1", ""), files, func(r FileResult) {
		seen = append(seen, r)
	})
	require.NoError(t, err)
	require.Len(t, seen, 2)

	assert.Equal(t, 1, report.Downloaded())
	assert.Equal(t, 1, report.Failed())

	var statusErr *HTTPStatusError
	require.ErrorAs(t, report.Files[0].Err, &statusErr)
	assert.Equal(t, http.StatusForbidden, statusErr.StatusCode)
	assert.ErrorAs(t, report.Err(), &statusErr)

	_, err = os.Stat(filepath.Join(dir, "expired.obj"))
	assert.True(t, os.IsNotExist(err), "failed download must not leave a file")
	assert.FileExists(t, filepath.Join(dir, "a.glb"))
}

func TestFetchAll_Idempotent(t *testing.T) {
	var hits atomic.Int64
	srv := newResultServer(t, &hits)
	dir := t.TempDir()

	f, err := NewFetcher(Options{})
	require.NoError(t, err)
	files := []job.ResultFile{{URL: srv.URL + "/out/a.glb"}, {URL: srv.URL + "/out/b.zip"}}

	for i := 0; i < 2; i++ {
		report, err := f.FetchAll(context.Background(), dir, NewNamer("job-1", ""), files, nil)
		require.NoError(t, err)
		assert.Equal(t, 2, report.Downloaded())
	}

	entries, err := os.ReadDir(dir)
	require.NoError(t, err)
	var names []string
	for _, e := range entries {
		names = append(names, e.Name())
	}
	assert.ElementsMatch(t, []string{"a.glb", "b.zip"}, names, "no duplicates or leftover temp files")

	got, err := os.ReadFile(filepath.Join(dir, "a.glb"))
	require.NoError(t, err)
	assert.Equal(t, "glb-bytes", string(got))
}

func TestFetchAll_OverwritesExisting(t *testing.T) {
	var hits atomic.Int64
	srv := newResultServer(t, &hits)
	dir := t.TempDir()
	require.NoError(t, os.WriteFile(filepath.Join(dir, "a.glb"), []byte("stale content that is longer"), 0644))

	f, err := NewFetcher(Options{})
	require.NoError(t, err)
	_, err = f.FetchAll(context.Background(), dir, NewNamer("job-1", ""), []job.ResultFile{{URL: srv.URL + "/out/a.glb"}}, nil)
	require.NoError(t, err)

	got, err := os.ReadFile(filepath.Join(dir, "a.glb"))
	require.NoError(t, err)
	assert.Equal(t, "glb-bytes", string(got))
}

func TestFetchAll_IncludeFilter(t *testing.T) {
	var hits atomic.Int64
	srv := newResultServer(t, &hits)
	dir := t.TempDir()

	f, err := NewFetcher(Options{Include: []string{"*.glb"}})
	require.NoError(t, err)

	files := []job.ResultFile{{URL: srv.URL + "/out/a.glb"}, {URL: srv.URL + "/out/b.zip"}}
	report, err := f.FetchAll(context.Background(), dir, NewNamer("job-1", ""), files, nil)
	require.NoError(t, err)

	assert.Equal(t, int64(1), hits.Load())
	assert.Equal(t, 1, report.Downloaded())
	assert.True(t, report.Files[1].Skipped)
	assert.Equal(t, "b.zip", report.Files[1].Name, "skipped files keep their deterministic name")
}

func TestFetchAll_EmptyURLSkipped(t *testing.T) {
	f, err := NewFetcher(Options{})
	require.NoError(t, err)

	report, err := f.FetchAll(context.Background(), t.TempDir(), NewNamer("job-1", ""), []job.ResultFile{{URL: "  "}}, nil)
	require.NoError(t, err)
	require.Len(t, report.Files, 1)
	assert.True(t, report.Files[0].Skipped)
	assert.Equal(t, 0, report.Downloaded())
}

func TestNewFetcher_InvalidPattern(t *testing.T) {
	_, err := NewFetcher(Options{Include: []string{"[unclosed"}})
	require.Error(t, err)
	assert.ErrorIs(t, err, ErrInvalidPattern)
}

func TestHTTPStatusError_RedactsQuery(t *testing.T) {
	err := &HTTPStatusError{URL: "https://cos.example.com/a.glb?q-signature=secret", StatusCode: 403}
	assert.NotContains(t, err.Error(), "secret")
	assert.True(t, strings.Contains(err.Error(), "403"))
}
