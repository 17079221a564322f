package middleware

import (
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
	"go.uber.org/zap/zaptest/observer"

	apperrors "github.com/3leaps/hy3d/internal/errors"
)

func serve(h http.Handler, req *http.Request) (*httptest.ResponseRecorder, ErrorResponse) {
	rec := httptest.NewRecorder()
	h.ServeHTTP(rec, req)
	var resp ErrorResponse
	_ = json.Unmarshal(rec.Body.Bytes(), &resp)
	return rec, resp
}

func TestRecovery(t *testing.T) {
	tests := []struct {
		name        string
		handler     http.HandlerFunc
		wantStatus  int
		wantMessage string
	}{
		{
			name: "no panic passes through",
			handler: func(w http.ResponseWriter, r *http.Request) {
				w.WriteHeader(http.StatusOK)
			},
			wantStatus: http.StatusOK,
		},
		{
			name:        "string panic",
			handler:     func(w http.ResponseWriter, r *http.Request) { panic("registry exploded") },
			wantStatus:  http.StatusInternalServerError,
			wantMessage: "panic: registry exploded",
		},
		{
			name:        "error panic",
			handler:     func(w http.ResponseWriter, r *http.Request) { panic(assert.AnError) },
			wantStatus:  http.StatusInternalServerError,
			wantMessage: "panic: " + assert.AnError.Error(),
		},
	}

	for _, tt := range tests {
		for mwName, mw := range map[string]func(http.Handler) http.Handler{"Recovery": Recovery, "ErrorHandler": ErrorHandler} {
			t.Run(mwName+"/"+tt.name, func(t *testing.T) {
				var rec *httptest.ResponseRecorder
				var resp ErrorResponse
				require.NotPanics(t, func() {
					rec, resp = serve(mw(tt.handler), httptest.NewRequest(http.MethodGet, "/jobs/1", nil))
				})

				assert.Equal(t, tt.wantStatus, rec.Code)
				if tt.wantMessage == "" {
					return
				}
				assert.Equal(t, "application/json", rec.Header().Get("Content-Type"))
				assert.Equal(t, apperrors.CodeInternal, resp.Error.Code)
				assert.Equal(t, tt.wantMessage, resp.Error.Message)
			})
		}
	}
}

func TestRecovery_CarriesRequestID(t *testing.T) {
	h := RequestID(Recovery(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		panic("boom")
	})))

	req := httptest.NewRequest(http.MethodGet, "/jobs", nil)
	req.Header.Set(apperrors.RequestIDHeader, "req-123")
	rec, resp := serve(h, req)

	assert.Equal(t, "req-123", resp.Error.RequestID)
	assert.Equal(t, "req-123", rec.Header().Get(apperrors.RequestIDHeader))
}

func TestWriteErrorResponse(t *testing.T) {
	tests := []struct {
		name       string
		body       apperrors.HTTPErrorBody
		statusCode int
	}{
		{"basic error", apperrors.HTTPErrorBody{Code: "TEST_ERROR", Message: "test message"}, http.StatusBadRequest},
		{"internal error", apperrors.HTTPErrorBody{Code: "INTERNAL_ERROR", Message: "something went wrong"}, http.StatusInternalServerError},
		{"error with request ID", apperrors.HTTPErrorBody{Code: "NOT_FOUND", Message: "resource not found", RequestID: "corr-123"}, http.StatusNotFound},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			rec := httptest.NewRecorder()

			writeErrorResponse(rec, tt.body, tt.statusCode)

			assert.Equal(t, tt.statusCode, rec.Code)
			assert.Equal(t, "application/json", rec.Header().Get("Content-Type"))

			var response ErrorResponse
			err := json.Unmarshal(rec.Body.Bytes(), &response)
			require.NoError(t, err)

			assert.Equal(t, tt.body, response.Error)
		})
	}
}

func TestWriteErrorResponse_WithDetails(t *testing.T) {
	rec := httptest.NewRecorder()
	writeErrorResponse(rec, apperrors.HTTPErrorBody{
		Code:    "VALIDATION_ERROR",
		Message: "invalid input",
		Details: map[string]any{"field": "job_id", "value": "../x"},
	}, http.StatusBadRequest)

	var response ErrorResponse
	err := json.Unmarshal(rec.Body.Bytes(), &response)
	require.NoError(t, err)

	assert.Equal(t, "job_id", response.Error.Details["field"])
	assert.Equal(t, "../x", response.Error.Details["value"])
}

func TestRequestID_GeneratesWhenMissing(t *testing.T) {
	var seen string
	handler := RequestID(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		seen = GetRequestID(r.Context())
	}))

	rec := httptest.NewRecorder()
	handler.ServeHTTP(rec, httptest.NewRequest("GET", "/jobs", nil))

	assert.NotEmpty(t, seen)
	assert.Equal(t, seen, rec.Header().Get("X-Request-ID"))
}

func TestLogger_RecordsStatus(t *testing.T) {
	core, logs := observer.New(zap.DebugLevel)
	handler := Logger(zap.New(core))(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusAccepted)
	}))

	handler.ServeHTTP(httptest.NewRecorder(), httptest.NewRequest("GET", "/health", nil))

	require.Equal(t, 1, logs.Len())
	entry := logs.All()[0]
	assert.Equal(t, "http request", entry.Message)
	assert.EqualValues(t, http.StatusAccepted, entry.ContextMap()["status"])
	assert.Equal(t, "/health", entry.ContextMap()["path"])
}
