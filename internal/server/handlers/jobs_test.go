package handlers

import (
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	apperrors "github.com/3leaps/hy3d/internal/errors"
	"github.com/3leaps/hy3d/pkg/job"
	"github.com/3leaps/hy3d/pkg/jobregistry"
)

func seededStore(t *testing.T) *jobregistry.Store {
	t.Helper()
	s := jobregistry.NewStore(t.TempDir())
	base := time.Date(2026, 3, 1, 10, 0, 0, 0, time.UTC)
	recs := []jobregistry.JobRecord{
		{JobID: "j1", Kind: job.KindGeneration, State: jobregistry.JobStateDone, CreatedAt: base},
		{JobID: "j2", Kind: job.KindRapidGeneration, State: jobregistry.JobStateFailed, CreatedAt: base.Add(time.Minute)},
		{JobID: "j3", Kind: job.KindGeneration, State: jobregistry.JobStateRunning, CreatedAt: base.Add(2 * time.Minute)},
	}
	for i := range recs {
		require.NoError(t, s.Write(&recs[i]))
	}
	require.NoError(t, s.AppendEvent("j1", jobregistry.Event{Type: jobregistry.EventFinished, State: jobregistry.JobStateDone}))
	return s
}

func jobsRouter(s JobReader) http.Handler {
	h := &Jobs{Store: s}
	r := chi.NewRouter()
	r.Get("/jobs", h.List)
	r.Get("/jobs/{id}", h.Get)
	return r
}

func TestJobs_List(t *testing.T) {
	router := jobsRouter(seededStore(t))

	tests := []struct {
		query string
		want  []string
	}{
		{"", []string{"j3", "j2", "j1"}},
		{"?kind=pro", []string{"j3", "j1"}},
		{"?state=failed", []string{"j2"}},
		{"?limit=1", []string{"j3"}},
	}
	for _, tt := range tests {
		t.Run(tt.query, func(t *testing.T) {
			rec := httptest.NewRecorder()
			router.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/jobs"+tt.query, nil))
			require.Equal(t, http.StatusOK, rec.Code)

			var body JobListResponse
			require.NoError(t, json.NewDecoder(rec.Body).Decode(&body))
			var ids []string
			for _, j := range body.Jobs {
				ids = append(ids, j.JobID)
			}
			assert.Equal(t, tt.want, ids)
			assert.Equal(t, len(tt.want), body.Count)
		})
	}
}

func TestJobs_ListBadQuery(t *testing.T) {
	router := jobsRouter(seededStore(t))
	for _, q := range []string{"?kind=sculpt", "?limit=-1", "?limit=x"} {
		rec := httptest.NewRecorder()
		router.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/jobs"+q, nil))
		assert.Equal(t, http.StatusBadRequest, rec.Code, q)
	}
}

func TestJobs_Get(t *testing.T) {
	router := jobsRouter(seededStore(t))

	rec := httptest.NewRecorder()
	router.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/jobs/j1", nil))
	require.Equal(t, http.StatusOK, rec.Code)

	var body JobResponse
	require.NoError(t, json.NewDecoder(rec.Body).Decode(&body))
	assert.Equal(t, "j1", body.Job.JobID)
	require.Len(t, body.Events, 1)
	assert.Equal(t, jobregistry.EventFinished, body.Events[0].Type)

	rec = httptest.NewRecorder()
	router.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/jobs/j2", nil))
	require.Equal(t, http.StatusOK, rec.Code)
	assert.Contains(t, rec.Body.String(), `"events":[]`)
}

func TestJobs_GetMissing(t *testing.T) {
	router := jobsRouter(seededStore(t))

	rec := httptest.NewRecorder()
	router.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/jobs/nope", nil))
	assert.Equal(t, http.StatusNotFound, rec.Code)

	var body apperrors.HTTPErrorResponse
	require.NoError(t, json.NewDecoder(rec.Body).Decode(&body))
	assert.Equal(t, apperrors.CodeNotFound, body.Error.Code)
}

func TestVersionHandler(t *testing.T) {
	rec := httptest.NewRecorder()
	VersionHandler(VersionInfo{Version: "1.0.0", Commit: "abc"})(rec, httptest.NewRequest(http.MethodGet, "/version", nil))

	var body VersionInfo
	require.NoError(t, json.NewDecoder(rec.Body).Decode(&body))
	assert.Equal(t, "1.0.0", body.Version)
	assert.NotEmpty(t, body.GoVersion)
}
