// Package manifest provides loading and validation of hy3d job manifests.
//
// A job manifest is a YAML or JSON file that describes one remote job: its
// kind, its inputs, kind-specific options, and how the run should wait for
// and download results. `hy3d run --job <file>` executes a manifest.
//
// Manifests are validated against a JSON Schema to ensure correctness before
// execution. The schema enforces strict typing and disallows unknown properties.
//
// Example manifest (YAML):
//
//	version: "1.0"
//	kind: generation
//	prompt: a weathered wooden chair
//	options:
//	  generate_type: LowPoly
//	  polygon_type: quadrilateral
//	  faces: 200000
//	  pbr: true
//	max_wait: 900
//	output: ./models
//	include:
//	  - "*.glb"
package manifest

import (
	"time"

	"github.com/3leaps/hy3d/pkg/job"
)

// Manifest represents a validated job manifest.
//
// Version and Kind are required. Which input fields apply depends on Kind:
// generation kinds take Prompt, Image or ImageURL; model kinds take Model.
type Manifest struct {
	// Schema is an optional JSON Schema reference for editor support.
	// Example: "https://schemas.3leaps.dev/hy3d/v1.0.0/job-manifest.schema.json"
	Schema string `json:"$schema,omitempty" yaml:"$schema,omitempty"`

	// Version is the manifest schema version. Must be "1.0".
	Version string `json:"version" yaml:"version"`

	// Kind is a job kind or one of its CLI aliases (pro, rapid, part, ...).
	Kind string `json:"kind" yaml:"kind"`

	// Name overrides the base name used for downloaded files.
	Name string `json:"name,omitempty" yaml:"name,omitempty"`

	Prompt   string `json:"prompt,omitempty" yaml:"prompt,omitempty"`
	Image    string `json:"image,omitempty" yaml:"image,omitempty"`
	ImageURL string `json:"image_url,omitempty" yaml:"image_url,omitempty"`

	// Model is a local 3D file or URL for model kinds.
	Model string `json:"model,omitempty" yaml:"model,omitempty"`

	Options Options `json:"options,omitempty" yaml:"options,omitempty"`

	// Wait polls until the job is terminal. Default: true.
	Wait *bool `json:"wait,omitempty" yaml:"wait,omitempty"`

	// Download fetches result files once done. Default: true.
	Download *bool `json:"download,omitempty" yaml:"download,omitempty"`

	// Poll is the interval between status queries, in seconds. Default: 10.
	Poll *float64 `json:"poll,omitempty" yaml:"poll,omitempty"`

	// MaxWait bounds total polling time in seconds (0 = unbounded).
	MaxWait float64 `json:"max_wait,omitempty" yaml:"max_wait,omitempty"`

	// MaxPolls bounds the number of status queries (0 = unbounded).
	MaxPolls int `json:"max_polls,omitempty" yaml:"max_polls,omitempty"`

	// Output is the download directory. Default: ".".
	Output string `json:"output,omitempty" yaml:"output,omitempty"`

	// Include restricts downloads to result files whose names match any glob.
	Include []string `json:"include,omitempty" yaml:"include,omitempty"`
}

// Options holds kind-specific knobs. Fields that do not apply to the
// manifest's kind are ignored.
type Options struct {
	GenerateType string `json:"generate_type,omitempty" yaml:"generate_type,omitempty"`
	Faces        int    `json:"faces,omitempty" yaml:"faces,omitempty"`
	PBR          bool   `json:"pbr,omitempty" yaml:"pbr,omitempty"`
	PolygonType  string `json:"polygon_type,omitempty" yaml:"polygon_type,omitempty"`

	// ResultFormat is the rapid generation output format.
	ResultFormat string `json:"result_format,omitempty" yaml:"result_format,omitempty"`
	Geometry     bool   `json:"geometry,omitempty" yaml:"geometry,omitempty"`

	FaceLevel string `json:"face_level,omitempty" yaml:"face_level,omitempty"`

	// FileType overrides the model type detected from the file extension.
	FileType string `json:"file_type,omitempty" yaml:"file_type,omitempty"`

	// Format is the conversion target format.
	Format string `json:"format,omitempty" yaml:"format,omitempty"`

	Views []View `json:"views,omitempty" yaml:"views,omitempty"`
}

// View is an extra reference image for multi-view generation.
type View struct {
	View  string `json:"view" yaml:"view"`
	Image string `json:"image" yaml:"image"`
}

// Default values for optional configuration fields.
const (
	// DefaultVersion is the current manifest schema version.
	DefaultVersion = "1.0"

	// DefaultPollSeconds is the default status query interval.
	DefaultPollSeconds = 10.0

	// DefaultOutput is the default download directory.
	DefaultOutput = "."
)

// ApplyDefaults fills in default values for optional fields.
//
// This should be called after loading and validating the manifest to ensure
// all optional fields have sensible values.
func (m *Manifest) ApplyDefaults() {
	if m.Version == "" {
		m.Version = DefaultVersion
	}
	if m.Wait == nil {
		wait := true
		m.Wait = &wait
	}
	if m.Download == nil {
		download := true
		m.Download = &download
	}
	if m.Poll == nil {
		poll := DefaultPollSeconds
		m.Poll = &poll
	}
	if m.Output == "" {
		m.Output = DefaultOutput
	}
}

// JobKind resolves Kind to its canonical form.
func (m *Manifest) JobKind() (job.Kind, error) {
	return job.ParseKind(m.Kind)
}

// WaitEnabled returns whether the run should poll to completion.
func (m *Manifest) WaitEnabled() bool {
	return m.Wait == nil || *m.Wait
}

// DownloadEnabled returns whether result files should be fetched.
func (m *Manifest) DownloadEnabled() bool {
	return m.Download == nil || *m.Download
}

// PollInterval returns the poll interval as a duration.
func (m *Manifest) PollInterval() time.Duration {
	if m.Poll == nil {
		return seconds(DefaultPollSeconds)
	}
	return seconds(*m.Poll)
}

// MaxWaitDuration returns the polling deadline, or 0 when unbounded.
func (m *Manifest) MaxWaitDuration() time.Duration {
	return seconds(m.MaxWait)
}

func seconds(s float64) time.Duration {
	return time.Duration(s * float64(time.Second))
}
