package manifest

import (
	"encoding/json"
	"errors"
	"fmt"
	"strings"
	"sync"

	"github.com/fulmenhq/gofulmen/schema"

	schemasassets "github.com/3leaps/hy3d/internal/assets/schemas"
	"github.com/3leaps/hy3d/pkg/job"
)

// SchemaID identifies the job manifest schema.
const SchemaID = "hy3d/v1.0.0/job-manifest"

var (
	ErrSchemaNotFound   = errors.New("manifest schema not found")
	ErrValidationFailed = errors.New("manifest validation failed")
)

var (
	compileOnce sync.Once
	compiled    *schema.Validator
	compileErr  error
)

// ValidationError is one problem found in a manifest. Path is a JSON
// pointer such as "/options/faces", empty for document-level problems.
type ValidationError struct {
	Path    string
	Message string
}

func (e ValidationError) Error() string {
	if e.Path == "" {
		return e.Message
	}
	return e.Path + ": " + e.Message
}

// ValidationErrors collects every problem found in one manifest.
// errors.Is(errs, ErrValidationFailed) holds for any non-empty set.
type ValidationErrors []ValidationError

func (e ValidationErrors) Error() string {
	switch len(e) {
	case 0:
		return "validation failed"
	case 1:
		return e[0].Error()
	}
	lines := make([]string, 0, len(e)+1)
	lines = append(lines, fmt.Sprintf("manifest validation failed with %d errors:", len(e)))
	for _, v := range e {
		lines = append(lines, "  - "+v.Error())
	}
	return strings.Join(lines, "\n")
}

func (e ValidationErrors) Unwrap() error { return ErrValidationFailed }

// Validate checks a decoded manifest against the schema. Unknown fields are
// already gone at this point; use ValidateRaw on the source document to
// reject them.
func Validate(m *Manifest) error {
	data, err := json.Marshal(m)
	if err != nil {
		return fmt.Errorf("encode manifest: %w", err)
	}
	return ValidateRaw(data)
}

// ValidateRaw checks a JSON document against the embedded job manifest
// schema. Only error diagnostics are reported.
func ValidateRaw(doc []byte) error {
	v, err := manifestValidator()
	if err != nil {
		return err
	}
	diags, err := v.ValidateJSON(doc)
	if err != nil {
		return fmt.Errorf("schema validation error: %w", err)
	}

	var errs ValidationErrors
	for _, d := range diags {
		if d.Severity != schema.SeverityError {
			continue
		}
		errs = append(errs, ValidationError{Path: d.Pointer, Message: d.Message})
	}
	if len(errs) == 0 {
		return nil
	}
	return errs
}

func manifestValidator() (*schema.Validator, error) {
	compileOnce.Do(func() {
		if len(schemasassets.JobManifestSchema) == 0 {
			compileErr = fmt.Errorf("%w: embedded job-manifest schema is empty", ErrSchemaNotFound)
			return
		}
		compiled, compileErr = schema.NewValidator(schemasassets.JobManifestSchema)
		if compileErr != nil {
			compileErr = fmt.Errorf("compile manifest schema: %w", compileErr)
		}
	})
	return compiled, compileErr
}

// checkSemantics enforces cross-field rules the schema cannot express.
func checkSemantics(m *Manifest) error {
	kind, err := m.JobKind()
	if err != nil {
		return ValidationErrors{{Path: "/kind", Message: err.Error()}}
	}

	var errs ValidationErrors
	inputs := 0
	for _, v := range []string{m.Prompt, m.Image, m.ImageURL} {
		if strings.TrimSpace(v) != "" {
			inputs++
		}
	}

	switch kind {
	case job.KindGeneration, job.KindRapidGeneration:
		if inputs == 0 {
			errs = append(errs, ValidationError{Path: "", Message: "one of prompt, image or image_url is required"})
		}
		if m.Model != "" {
			errs = append(errs, ValidationError{Path: "/model", Message: fmt.Sprintf("not used by %s jobs", kind)})
		}
	case job.KindTextureEdit:
		if m.Model == "" {
			errs = append(errs, ValidationError{Path: "/model", Message: "model is required"})
		}
		if inputs == 0 {
			errs = append(errs, ValidationError{Path: "", Message: "one of prompt, image or image_url is required"})
		}
	default:
		if m.Model == "" {
			errs = append(errs, ValidationError{Path: "/model", Message: "model is required"})
		}
	}

	if kind == job.KindConversion && m.Options.Format == "" {
		errs = append(errs, ValidationError{Path: "/options/format", Message: "format is required for conversion"})
	}
	if len(m.Options.Views) > 0 && kind != job.KindGeneration {
		errs = append(errs, ValidationError{Path: "/options/views", Message: "views apply to generation only"})
	}

	if len(errs) == 0 {
		return nil
	}
	return errs
}
