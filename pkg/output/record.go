// Package output provides JSONL event records for job runs.
//
// Output is structured as typed record envelopes containing submissions,
// status observations, downloads, errors and summaries. Each line is a
// self-contained JSON object that can be parsed independently.
package output

import (
	"encoding/json"
	"errors"
	"time"
)

// Record type constants define the envelope types for JSONL output.
// These follow the pattern: hy3d.<type>.v<version>
const (
	// TypeSubmit identifies job submission records.
	TypeSubmit = "hy3d.submit.v1"

	// TypeStatus identifies status observation records (one per poll).
	TypeStatus = "hy3d.status.v1"

	// TypeDownload identifies per-file download records.
	TypeDownload = "hy3d.download.v1"

	// TypeError identifies error records.
	TypeError = "hy3d.error.v1"

	// TypeSummary identifies final summary records.
	TypeSummary = "hy3d.summary.v1"

	// TypePreflight identifies input validation records.
	TypePreflight = "hy3d.preflight.v1"
)

// Record is the envelope for all JSONL output.
type Record struct {
	// Type identifies the record type (e.g., "hy3d.status.v1").
	Type string `json:"type"`

	// TS is the timestamp when the record was created (RFC3339Nano).
	TS time.Time `json:"ts"`

	// RunID correlates every record emitted by one CLI invocation.
	RunID string `json:"run_id"`

	// JobID is the remote job identifier, once known.
	JobID string `json:"job_id,omitempty"`

	// Kind is the job kind (e.g., "generation").
	Kind string `json:"kind"`

	// Data contains the type-specific payload as raw JSON.
	Data json.RawMessage `json:"data"`
}

// SubmitRecord is the data payload for a job submission.
type SubmitRecord struct {
	Action    string `json:"action"`
	JobID     string `json:"job_id"`
	RequestID string `json:"request_id,omitempty"`
	Region    string `json:"region,omitempty"`
	Input     string `json:"input,omitempty"`

	// Response is the vendor response body as received.
	Response json.RawMessage `json:"response,omitempty"`
}

// StatusRecord is the data payload for one status observation.
type StatusRecord struct {
	// Poll is the 1-based query count.
	Poll int `json:"poll"`

	// Status is the normalized status (pending, running, done, failed).
	Status string `json:"status"`

	// RawStatus is the vendor status string (WAIT, RUN, DONE, FAIL).
	RawStatus string `json:"raw_status,omitempty"`

	// Elapsed is the time since polling started.
	Elapsed time.Duration `json:"elapsed_ns"`

	// ResultFiles is the number of result files reported, if done.
	ResultFiles int `json:"result_files,omitempty"`

	// ResultURLs lists the result file URLs of a done job.
	ResultURLs []string `json:"result_urls,omitempty"`

	// Response is the vendor query response body as received.
	Response json.RawMessage `json:"response,omitempty"`
}

// DownloadRecord is the data payload for a single result file download.
type DownloadRecord struct {
	Index  int    `json:"index"`
	URL    string `json:"url"`
	Path   string `json:"path,omitempty"`
	Bytes  int64  `json:"bytes"`
	Status string `json:"status"` // success | error | skipped
	Error  string `json:"error,omitempty"`
}

// Download status values.
const (
	DownloadSuccess = "success"
	DownloadError   = "error"
	DownloadSkipped = "skipped"
)

// PreflightRecord is the data payload for input validation.
type PreflightRecord struct {
	Kind    string                 `json:"kind"`
	Results []PreflightCheckResult `json:"results"`
}

// PreflightCheckResult is a single validation check result.
type PreflightCheckResult struct {
	Check    string `json:"check"`
	Severity string `json:"severity"` // ok | warning | error
	Detail   string `json:"detail,omitempty"`
}

// ErrorRecord is the data payload for errors.
//
// Per-file download failures are emitted as records rather than failing the
// whole run, so partial results stay usable.
type ErrorRecord struct {
	// Code is a machine-readable error code.
	Code string `json:"code"`

	// Message is a human-readable error description.
	Message string `json:"message"`

	// URL is the result file related to this error, if applicable.
	URL string `json:"url,omitempty"`

	// Details contains additional error context.
	Details any `json:"details,omitempty"`
}

// Error codes for ErrorRecord.
const (
	// ErrCodeJobFailed indicates the remote job reached the failed state.
	ErrCodeJobFailed = "JOB_FAILED"

	// ErrCodeTimeout indicates the wait limit elapsed before a terminal state.
	ErrCodeTimeout = "TIMEOUT"

	// ErrCodeRemote indicates a remote API call failed.
	ErrCodeRemote = "REMOTE_ERROR"

	// ErrCodeDownload indicates a result file could not be downloaded.
	ErrCodeDownload = "DOWNLOAD_FAILED"

	// ErrCodeInternal indicates an unexpected internal error.
	ErrCodeInternal = "INTERNAL"
)

// SummaryRecord is the data payload for the final summary.
type SummaryRecord struct {
	Status          string        `json:"status"`
	Polls           int           `json:"polls"`
	FilesReported   int           `json:"files_reported"`
	FilesDownloaded int           `json:"files_downloaded"`
	FilesFailed     int           `json:"files_failed"`
	BytesTotal      int64         `json:"bytes_total"`
	OutputDir       string        `json:"output_dir,omitempty"`
	Duration        time.Duration `json:"duration_ns"`
	DurationHuman   string        `json:"duration"`
}

// Writer errors.
var (
	// ErrWriterClosed is returned when writing to a closed writer.
	ErrWriterClosed = errors.New("writer is closed")
)

// WriteError wraps errors that occur during write operations.
type WriteError struct {
	Op  string // Operation that failed (e.g., "marshal_data", "write")
	Err error  // Underlying error
}

func (e *WriteError) Error() string {
	return "output: " + e.Op + ": " + e.Err.Error()
}

func (e *WriteError) Unwrap() error {
	return e.Err
}
