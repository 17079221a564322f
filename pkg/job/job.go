// Package job defines the data model shared by the job client, the
// poll-and-fetch engine and the job registry.
package job

import (
	"encoding/json"
	"fmt"
	"strings"
)

// Kind identifies the type of remote work a job performs.
type Kind string

const (
	KindGeneration        Kind = "generation"
	KindRapidGeneration   Kind = "rapid-generation"
	KindRetopology        Kind = "retopology"
	KindPartDecomposition Kind = "part-decomposition"
	KindTextureEdit       Kind = "texture-edit"
	KindUVUnwrap          Kind = "uv-unwrap"
	KindConversion        Kind = "conversion"
)

// Kinds lists every supported kind in a stable order.
var Kinds = []Kind{
	KindGeneration,
	KindRapidGeneration,
	KindRetopology,
	KindPartDecomposition,
	KindTextureEdit,
	KindUVUnwrap,
	KindConversion,
}

var kindAliases = map[string]Kind{
	"generation":         KindGeneration,
	"hunyuan":            KindGeneration,
	"pro":                KindGeneration,
	"rapid-generation":   KindRapidGeneration,
	"rapid":              KindRapidGeneration,
	"retopology":         KindRetopology,
	"smart-topology":     KindRetopology,
	"topology":           KindRetopology,
	"part-decomposition": KindPartDecomposition,
	"part":               KindPartDecomposition,
	"texture-edit":       KindTextureEdit,
	"texture":            KindTextureEdit,
	"uv-unwrap":          KindUVUnwrap,
	"uv":                 KindUVUnwrap,
	"conversion":         KindConversion,
	"convert":            KindConversion,
}

// ParseKind resolves a kind name or one of its CLI aliases.
func ParseKind(s string) (Kind, error) {
	k, ok := kindAliases[strings.ToLower(strings.TrimSpace(s))]
	if !ok {
		return "", fmt.Errorf("unknown job kind %q", s)
	}
	return k, nil
}

// String returns the string representation of the kind.
func (k Kind) String() string {
	return string(k)
}

// Status is the lifecycle state of a remote job.
type Status string

const (
	StatusPending Status = "pending"
	StatusRunning Status = "running"
	StatusDone    Status = "done"
	StatusFailed  Status = "failed"
)

// ParseStatus maps a vendor status string (WAIT, RUN, DONE, FAIL) to a Status.
//
// Unrecognized or empty values map to StatusRunning: the remote side has not
// reported a terminal state, so the job is still in flight as far as a
// poller is concerned.
func ParseStatus(s string) Status {
	switch strings.ToUpper(strings.TrimSpace(s)) {
	case "WAIT", "PENDING", "QUEUED":
		return StatusPending
	case "RUN", "RUNNING":
		return StatusRunning
	case "DONE", "SUCCESS", "SUCCEEDED":
		return StatusDone
	case "FAIL", "FAILED", "ERROR":
		return StatusFailed
	default:
		return StatusRunning
	}
}

// Terminal reports whether polling should stop at this status.
func (s Status) Terminal() bool {
	return s == StatusDone || s == StatusFailed
}

// ResultFile references a downloadable artifact produced by a completed job.
type ResultFile struct {
	// URL is the (usually signed, time-limited) download location.
	URL string `json:"url"`

	// Format is the declared file type (e.g. "GLB", "OBJ", "ZIP"), if any.
	Format string `json:"format,omitempty"`

	// PreviewImageURL points to a rendered preview, if the service returned one.
	PreviewImageURL string `json:"preview_image_url,omitempty"`
}

// Snapshot is the state of a job as observed by a single query.
type Snapshot struct {
	JobID        string       `json:"job_id"`
	Kind         Kind         `json:"kind,omitempty"`
	Status       Status       `json:"status"`
	RawStatus    string       `json:"raw_status,omitempty"`
	Files        []ResultFile `json:"files,omitempty"`
	ErrorCode    string       `json:"error_code,omitempty"`
	ErrorMessage string       `json:"error_message,omitempty"`
	RequestID    string       `json:"request_id,omitempty"`

	// Raw is the unparsed response body, kept for --json output.
	Raw json.RawMessage `json:"-"`
}

// Diagnostic returns "<code> - <message>" with placeholders for missing parts.
func (s *Snapshot) Diagnostic() string {
	code := s.ErrorCode
	if code == "" {
		code = "Unknown"
	}
	msg := s.ErrorMessage
	if msg == "" {
		msg = "Unknown error"
	}
	return code + " - " + msg
}
