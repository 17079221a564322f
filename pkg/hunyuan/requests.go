package hunyuan

import (
	"fmt"
	"slices"
	"strings"

	"github.com/3leaps/hy3d/pkg/job"
)

// Face count bounds accepted by the generation API.
const (
	MinFaceCount     = 40000
	MaxFaceCount     = 1500000
	DefaultFaceCount = 400000
)

// Generate types for ProRequest.
const (
	GenerateNormal   = "Normal"
	GenerateLowPoly  = "LowPoly"
	GenerateGeometry = "Geometry"
	GenerateSketch   = "Sketch"
)

var (
	generateTypes   = []string{GenerateNormal, GenerateLowPoly, GenerateGeometry, GenerateSketch}
	polygonTypes    = []string{"triangle", "quadrilateral"}
	faceLevels      = []string{"high", "medium", "low"}
	viewTypes       = []string{"left", "right", "back"}
	rapidFormats    = []string{"OBJ", "GLB", "STL", "USDZ", "FBX", "MP4", "GIF"}
	modelFileTypes  = []string{"GLB", "OBJ", "FBX"}
	topologyTypes   = []string{"GLB", "GLTF", "OBJ", "FBX", "STL"}
	convertFormats  = []string{"STL", "USDZ", "FBX", "MP4", "GIF"}
	partFileTypes   = []string{"FBX"}
	textureFileType = "FBX"
)

// Request is a typed submit payload for one job kind.
type Request interface {
	Kind() job.Kind

	// Validate checks the request without touching the network.
	Validate() error

	// Params returns the action parameters. Call Validate first.
	Params() map[string]any
}

func invalid(format string, args ...any) error {
	return fmt.Errorf("%w: %s", ErrInvalidRequest, fmt.Sprintf(format, args...))
}

func oneOf(field, value string, allowed []string) error {
	if !slices.Contains(allowed, value) {
		return invalid("%s must be one of %s, got %q", field, strings.Join(allowed, ", "), value)
	}
	return nil
}

// countSet returns how many of the values are non-empty.
func countSet(values ...string) int {
	n := 0
	for _, v := range values {
		if strings.TrimSpace(v) != "" {
			n++
		}
	}
	return n
}

// ViewImage is an extra view for multi-view generation.
type ViewImage struct {
	// ViewType is left, right or back.
	ViewType    string
	ImageBase64 string
}

// ProRequest submits a text- or image-to-3D generation job.
type ProRequest struct {
	Prompt      string
	ImageBase64 string
	ImageURL    string

	// GenerateType is Normal (default), LowPoly, Geometry or Sketch.
	GenerateType string

	// FaceCount defaults to DefaultFaceCount when zero.
	FaceCount int

	EnablePBR bool

	// PolygonType applies to LowPoly only: triangle or quadrilateral.
	PolygonType string

	MultiViewImages []ViewImage
}

func (r *ProRequest) Kind() job.Kind { return job.KindGeneration }

func (r *ProRequest) Validate() error {
	inputs := countSet(r.Prompt, r.ImageBase64, r.ImageURL)
	if inputs == 0 {
		return invalid("one of prompt, image or image URL is required")
	}
	if countSet(r.ImageBase64, r.ImageURL) > 1 {
		return invalid("image and image URL cannot be used together")
	}
	// Sketch mode takes a drawing plus an optional description.
	if inputs > 1 && r.GenerateType != GenerateSketch {
		return invalid("prompt cannot be combined with an image unless generate type is %s", GenerateSketch)
	}
	if r.GenerateType != "" {
		if err := oneOf("generate type", r.GenerateType, generateTypes); err != nil {
			return err
		}
	}
	if r.FaceCount != 0 && (r.FaceCount < MinFaceCount || r.FaceCount > MaxFaceCount) {
		return invalid("face count must be between %d and %d, got %d", MinFaceCount, MaxFaceCount, r.FaceCount)
	}
	if r.PolygonType != "" {
		if r.GenerateType != GenerateLowPoly {
			return invalid("polygon type requires generate type %s", GenerateLowPoly)
		}
		if err := oneOf("polygon type", r.PolygonType, polygonTypes); err != nil {
			return err
		}
	}
	if len(r.MultiViewImages) > 0 && countSet(r.ImageBase64, r.ImageURL) == 0 {
		return invalid("multi-view images require a front image")
	}
	for _, v := range r.MultiViewImages {
		if err := oneOf("view type", v.ViewType, viewTypes); err != nil {
			return err
		}
		if v.ImageBase64 == "" {
			return invalid("view %s has no image", v.ViewType)
		}
	}
	return nil
}

func (r *ProRequest) Params() map[string]any {
	p := map[string]any{}
	setString(p, "Prompt", r.Prompt)
	setString(p, "ImageBase64", r.ImageBase64)
	setString(p, "ImageUrl", r.ImageURL)

	genType := r.GenerateType
	if genType == "" {
		genType = GenerateNormal
	}
	p["GenerateType"] = genType

	faces := r.FaceCount
	if faces == 0 {
		faces = DefaultFaceCount
	}
	p["FaceCount"] = faces

	if r.EnablePBR {
		p["EnablePBR"] = true
	}
	setString(p, "PolygonType", r.PolygonType)

	if len(r.MultiViewImages) > 0 {
		views := make([]map[string]any, 0, len(r.MultiViewImages))
		for _, v := range r.MultiViewImages {
			views = append(views, map[string]any{"ViewType": v.ViewType, "ViewImageBase64": v.ImageBase64})
		}
		p["MultiViewImages"] = views
	}
	return p
}

// RapidRequest submits a rapid generation job.
type RapidRequest struct {
	Prompt      string
	ImageBase64 string
	ImageURL    string

	// ResultFormat defaults to STL.
	ResultFormat string

	EnablePBR      bool
	EnableGeometry bool
}

func (r *RapidRequest) Kind() job.Kind { return job.KindRapidGeneration }

func (r *RapidRequest) Validate() error {
	switch n := countSet(r.Prompt, r.ImageBase64, r.ImageURL); {
	case n == 0:
		return invalid("one of prompt, image or image URL is required")
	case n > 1:
		return invalid("prompt, image and image URL are mutually exclusive")
	}
	if r.ResultFormat != "" {
		return oneOf("result format", strings.ToUpper(r.ResultFormat), rapidFormats)
	}
	return nil
}

func (r *RapidRequest) Params() map[string]any {
	format := strings.ToUpper(r.ResultFormat)
	if format == "" {
		format = "STL"
	}
	p := map[string]any{
		"ResultFormat":   format,
		"EnablePBR":      r.EnablePBR,
		"EnableGeometry": r.EnableGeometry,
	}
	setString(p, "Prompt", r.Prompt)
	setString(p, "ImageBase64", r.ImageBase64)
	setString(p, "ImageUrl", r.ImageURL)
	return p
}

// File3D references an input model by URL or inline base64 content.
type File3D struct {
	// Type is the model format (GLB, OBJ, FBX).
	Type    string
	URL     string
	Content string
}

func (f File3D) params() map[string]any {
	p := map[string]any{"Type": strings.ToUpper(f.Type)}
	setString(p, "Url", f.URL)
	setString(p, "Content", f.Content)
	return p
}

// TopologyRequest submits a smart-topology (retopology) job.
type TopologyRequest struct {
	File File3D

	// PolygonType is triangle or quadrilateral.
	PolygonType string

	// FaceLevel is high, medium or low.
	FaceLevel string
}

func (r *TopologyRequest) Kind() job.Kind { return job.KindRetopology }

func (r *TopologyRequest) Validate() error {
	switch n := countSet(r.File.URL, r.File.Content); {
	case n == 0:
		return invalid("model URL or content is required")
	case n > 1:
		return invalid("model URL and content are mutually exclusive")
	}
	if err := oneOf("file type", strings.ToUpper(r.File.Type), topologyTypes); err != nil {
		return err
	}
	if r.PolygonType != "" {
		if err := oneOf("polygon type", r.PolygonType, polygonTypes); err != nil {
			return err
		}
	}
	if r.FaceLevel != "" {
		if err := oneOf("face level", r.FaceLevel, faceLevels); err != nil {
			return err
		}
	}
	return nil
}

func (r *TopologyRequest) Params() map[string]any {
	p := map[string]any{"File3D": r.File.params()}
	setString(p, "PolygonType", r.PolygonType)
	setString(p, "FaceLevel", r.FaceLevel)
	return p
}

// PartRequest submits a part-decomposition job.
type PartRequest struct {
	FileURL string

	// FileType defaults to FBX.
	FileType string
}

func (r *PartRequest) Kind() job.Kind { return job.KindPartDecomposition }

func (r *PartRequest) Validate() error {
	if strings.TrimSpace(r.FileURL) == "" {
		return invalid("model URL is required")
	}
	return oneOf("file type", r.fileType(), partFileTypes)
}

func (r *PartRequest) fileType() string {
	if r.FileType == "" {
		return "FBX"
	}
	return strings.ToUpper(r.FileType)
}

func (r *PartRequest) Params() map[string]any {
	return map[string]any{"File": map[string]any{"Type": r.fileType(), "Url": r.FileURL}}
}

// TextureEditRequest submits a texture-edit job against an FBX model.
// Exactly one of Prompt or an image reference is required.
type TextureEditRequest struct {
	FileURL string

	Prompt      string
	ImageBase64 string
	ImageURL    string

	// EnablePBR applies to prompt-driven edits only.
	EnablePBR bool
}

func (r *TextureEditRequest) Kind() job.Kind { return job.KindTextureEdit }

func (r *TextureEditRequest) Validate() error {
	if strings.TrimSpace(r.FileURL) == "" {
		return invalid("model URL is required")
	}
	switch n := countSet(r.Prompt, r.ImageBase64, r.ImageURL); {
	case n == 0:
		return invalid("one of prompt or reference image is required")
	case n > 1:
		return invalid("prompt and reference image cannot be used together")
	}
	return nil
}

func (r *TextureEditRequest) Params() map[string]any {
	p := map[string]any{"File3D": map[string]any{"Type": textureFileType, "Url": r.FileURL}}
	switch {
	case r.Prompt != "":
		p["Prompt"] = r.Prompt
		if r.EnablePBR {
			p["EnablePBR"] = true
		}
	case r.ImageBase64 != "":
		p["Image"] = map[string]any{"Base64": r.ImageBase64}
	default:
		p["Image"] = map[string]any{"Url": r.ImageURL}
	}
	return p
}

// UVRequest submits a UV-unwrap job.
type UVRequest struct {
	FileURL string

	// FileType is FBX, OBJ or GLB.
	FileType string
}

func (r *UVRequest) Kind() job.Kind { return job.KindUVUnwrap }

func (r *UVRequest) Validate() error {
	if strings.TrimSpace(r.FileURL) == "" {
		return invalid("model URL is required")
	}
	return oneOf("file type", strings.ToUpper(r.FileType), modelFileTypes)
}

func (r *UVRequest) Params() map[string]any {
	return map[string]any{"File": map[string]any{"Type": strings.ToUpper(r.FileType), "Url": r.FileURL}}
}

// ConvertRequest converts a public model URL (FBX, OBJ or GLB) to another
// format. It completes synchronously.
type ConvertRequest struct {
	FileURL string

	// Format is STL, USDZ, FBX, MP4 or GIF.
	Format string
}

func (r *ConvertRequest) Kind() job.Kind { return job.KindConversion }

func (r *ConvertRequest) Validate() error {
	if strings.TrimSpace(r.FileURL) == "" {
		return invalid("model URL is required")
	}
	return oneOf("format", strings.ToUpper(r.Format), convertFormats)
}

func (r *ConvertRequest) Params() map[string]any {
	return map[string]any{"File3D": r.FileURL, "Format": strings.ToUpper(r.Format)}
}

// DetectFileType infers a model type from a path or URL extension,
// defaulting to GLB.
func DetectFileType(ref string) string {
	p := strings.ToLower(strings.SplitN(strings.TrimSpace(ref), "?", 2)[0])
	for _, t := range topologyTypes {
		if strings.HasSuffix(p, "."+strings.ToLower(t)) {
			return t
		}
	}
	return "GLB"
}

func setString(p map[string]any, key, value string) {
	if v := strings.TrimSpace(value); v != "" {
		p[key] = v
	}
}

// Compile-time checks.
var (
	_ Request = (*ProRequest)(nil)
	_ Request = (*RapidRequest)(nil)
	_ Request = (*TopologyRequest)(nil)
	_ Request = (*PartRequest)(nil)
	_ Request = (*TextureEditRequest)(nil)
	_ Request = (*UVRequest)(nil)
	_ Request = (*ConvertRequest)(nil)
)
