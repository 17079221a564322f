package jobregistry

import (
	"time"

	"github.com/3leaps/hy3d/pkg/job"
)

// JobState is the local lifecycle state of a submitted job.
//
// NOTE: These values are persisted in job.json and are part of the stable
// on-disk contract.
type JobState string

const (
	JobStateSubmitted JobState = "submitted"
	JobStateRunning   JobState = "running"
	JobStateDone      JobState = "done"
	JobStateFailed    JobState = "failed"
	JobStateTimeout   JobState = "timeout"
)

// Terminal reports whether no further transitions are expected locally.
//
// A timed-out job may still finish remotely; `hy3d query` can resume it.
func (s JobState) Terminal() bool {
	return s == JobStateDone || s == JobStateFailed
}

// StateFromStatus maps a remote status to the local state.
func StateFromStatus(s job.Status) JobState {
	switch s {
	case job.StatusDone:
		return JobStateDone
	case job.StatusFailed:
		return JobStateFailed
	case job.StatusPending:
		return JobStateSubmitted
	default:
		return JobStateRunning
	}
}

// Endpoint is the API target a job was submitted to.
//
// This is intentionally shallow and string-only so the registry stays stable
// even if client configuration evolves.
type Endpoint struct {
	Region string `json:"region,omitempty"`
	Host   string `json:"host,omitempty"`
}

// InputSummary records what was submitted, without inline image data.
type InputSummary struct {
	Prompt   string            `json:"prompt,omitempty"`
	Image    string            `json:"image,omitempty"`
	ImageURL string            `json:"image_url,omitempty"`
	Model    string            `json:"model,omitempty"`
	Options  map[string]string `json:"options,omitempty"`
}

// JobRecord is the persistent record written to job.json.
//
// The schema is designed for backward-compatible extension (additive fields).
type JobRecord struct {
	JobID     string        `json:"job_id"`
	Kind      job.Kind      `json:"kind"`
	Name      string        `json:"name,omitempty"`
	State     JobState      `json:"state"`
	RunID     string        `json:"run_id,omitempty"`
	RequestID string        `json:"request_id,omitempty"`
	Endpoint  *Endpoint     `json:"endpoint,omitempty"`
	Input     *InputSummary `json:"input,omitempty"`
	OutputDir string        `json:"output_dir,omitempty"`

	Polls      int      `json:"polls,omitempty"`
	ResultURLs []string `json:"result_urls,omitempty"`
	Downloaded []string `json:"downloaded,omitempty"`
	BytesTotal int64    `json:"bytes_total,omitempty"`

	ErrorCode    string `json:"error_code,omitempty"`
	ErrorMessage string `json:"error_message,omitempty"`

	CreatedAt   time.Time  `json:"created_at"`
	UpdatedAt   *time.Time `json:"updated_at,omitempty"`
	CompletedAt *time.Time `json:"completed_at,omitempty"`
}

// Event is one line of events.jsonl.
type Event struct {
	TS      time.Time `json:"ts"`
	Type    string    `json:"type"`
	State   JobState  `json:"state,omitempty"`
	Poll    int       `json:"poll,omitempty"`
	Status  string    `json:"status,omitempty"`
	File    string    `json:"file,omitempty"`
	Message string    `json:"message,omitempty"`
}

// Event types.
const (
	EventSubmitted = "submitted"
	EventStatus    = "status"
	EventFile      = "file"
	EventFinished  = "finished"
)
