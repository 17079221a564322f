package server

import (
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	apperrors "github.com/3leaps/hy3d/internal/errors"
	"github.com/3leaps/hy3d/internal/server/handlers"
	"github.com/3leaps/hy3d/pkg/job"
	"github.com/3leaps/hy3d/pkg/jobregistry"
)

func do(t *testing.T, srv *Server, method, path string) *httptest.ResponseRecorder {
	t.Helper()
	rec := httptest.NewRecorder()
	srv.Handler().ServeHTTP(rec, httptest.NewRequest(method, path, nil))
	return rec
}

func errorCode(t *testing.T, rec *httptest.ResponseRecorder) string {
	t.Helper()
	var body apperrors.HTTPErrorResponse
	require.NoError(t, json.NewDecoder(rec.Body).Decode(&body))
	return body.Error.Code
}

func TestServer_Addr(t *testing.T) {
	tests := []struct {
		host string
		port int
		want string
	}{
		{"localhost", 8080, "localhost:8080"},
		{"0.0.0.0", 9000, "0.0.0.0:9000"},
		{"::1", 0, "[::1]:0"},
	}
	for _, tt := range tests {
		srv := New(tt.host, tt.port)
		assert.Equal(t, tt.port, srv.Port())
		assert.Equal(t, tt.want, srv.Addr())
		assert.NotNil(t, srv.Handler())
	}
}

func TestServer_Routes(t *testing.T) {
	handlers.InitHealthManager("test")

	store := jobregistry.NewStore(t.TempDir())
	require.NoError(t, store.Write(&jobregistry.JobRecord{
		JobID: "42",
		Kind:  job.KindUVUnwrap,
		State: jobregistry.JobStateDone,
	}))
	srv := NewWithOptions("127.0.0.1", 0, Options{Jobs: store})

	tests := []struct {
		method string
		path   string
		status int
		code   string
	}{
		{http.MethodGet, "/health", http.StatusOK, ""},
		{http.MethodGet, "/health/live", http.StatusOK, ""},
		{http.MethodGet, "/health/ready", http.StatusOK, ""},
		{http.MethodGet, "/health/startup", http.StatusOK, ""},
		{http.MethodGet, "/version", http.StatusOK, ""},
		{http.MethodGet, "/jobs", http.StatusOK, ""},
		{http.MethodGet, "/jobs/42", http.StatusOK, ""},
		{http.MethodGet, "/nowhere", http.StatusNotFound, "NOT_FOUND"},
		{http.MethodPost, "/version", http.StatusMethodNotAllowed, "METHOD_NOT_ALLOWED"},
		{http.MethodDelete, "/jobs/42", http.StatusMethodNotAllowed, "METHOD_NOT_ALLOWED"},
	}
	for _, tt := range tests {
		t.Run(tt.method+" "+tt.path, func(t *testing.T) {
			rec := do(t, srv, tt.method, tt.path)
			assert.Equal(t, tt.status, rec.Code)
			if tt.code != "" {
				assert.Equal(t, tt.code, errorCode(t, rec))
			}
		})
	}

	assert.Contains(t, do(t, srv, http.MethodGet, "/jobs/42").Body.String(), `"kind":"uv-unwrap"`)
}

func TestServer_NoJobsRoutesWithoutStore(t *testing.T) {
	rec := do(t, New("127.0.0.1", 0), http.MethodGet, "/jobs")
	assert.Equal(t, http.StatusNotFound, rec.Code)
	assert.Equal(t, "NOT_FOUND", errorCode(t, rec))
}
