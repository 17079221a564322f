// Package preflight validates job inputs before any network call.
//
// Each check yields a finding with a severity. Warnings mirror service
// limits that the API may or may not enforce (it sometimes truncates rather
// than rejects); errors stop the run before submission.
package preflight

import (
	"errors"
	"fmt"
	"strings"

	"github.com/3leaps/hy3d/pkg/job"
	"github.com/3leaps/hy3d/pkg/output"
)

// Severity grades a finding.
type Severity string

const (
	SeverityOK      Severity = "ok"
	SeverityWarning Severity = "warning"
	SeverityError   Severity = "error"
)

// Check names are stable strings used in JSONL output.
const (
	CheckInput     = "input.present"
	CheckPrompt    = "input.prompt"
	CheckImage     = "input.image"
	CheckModel     = "input.model"
	CheckFaceCount = "option.face_count"
	CheckJobID     = "input.job_id"
)

// ErrFailed is returned by Report.Err when any finding is an error.
var ErrFailed = errors.New("preflight failed")

// Finding is the outcome of one check.
type Finding struct {
	Check    string
	Severity Severity
	Detail   string
}

// Report collects findings for one job.
type Report struct {
	Kind     job.Kind
	Findings []Finding
}

func (r *Report) ok(check string) {
	r.Findings = append(r.Findings, Finding{Check: check, Severity: SeverityOK})
}

func (r *Report) warn(check, format string, args ...any) {
	r.Findings = append(r.Findings, Finding{Check: check, Severity: SeverityWarning, Detail: fmt.Sprintf(format, args...)})
}

func (r *Report) fail(check, format string, args ...any) {
	r.Findings = append(r.Findings, Finding{Check: check, Severity: SeverityError, Detail: fmt.Sprintf(format, args...)})
}

// Warnings returns warning findings.
func (r *Report) Warnings() []Finding { return r.filter(SeverityWarning) }

// Errors returns error findings.
func (r *Report) Errors() []Finding { return r.filter(SeverityError) }

func (r *Report) filter(s Severity) []Finding {
	var out []Finding
	for _, f := range r.Findings {
		if f.Severity == s {
			out = append(out, f)
		}
	}
	return out
}

// Err returns nil when no finding is an error, otherwise an error wrapping
// ErrFailed that lists every error detail.
func (r *Report) Err() error {
	errs := r.Errors()
	if len(errs) == 0 {
		return nil
	}
	details := make([]string, 0, len(errs))
	for _, f := range errs {
		details = append(details, f.Detail)
	}
	return fmt.Errorf("%w: %s", ErrFailed, strings.Join(details, "; "))
}

// Record converts the report to its JSONL payload.
func (r *Report) Record() *output.PreflightRecord {
	rec := &output.PreflightRecord{Kind: string(r.Kind), Results: []output.PreflightCheckResult{}}
	for _, f := range r.Findings {
		rec.Results = append(rec.Results, output.PreflightCheckResult{
			Check:    f.Check,
			Severity: string(f.Severity),
			Detail:   f.Detail,
		})
	}
	return rec
}
