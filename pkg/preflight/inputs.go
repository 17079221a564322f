package preflight

import (
	"os"
	"path/filepath"
	"slices"
	"strings"

	"github.com/3leaps/hy3d/pkg/job"
)

// Service limits checked locally.
const (
	MB = 1024 * 1024

	ProPromptMaxBytes   = 1024
	RapidPromptMaxBytes = 200

	ImageMaxBytes          = 6 * MB
	ReferenceImageMaxBytes = 10 * MB
	ConvertInputMaxBytes   = 60 * MB

	MinFaceCount = 40000
	MaxFaceCount = 1500000
)

var (
	imageExts          = []string{".jpg", ".jpeg", ".png", ".webp"}
	referenceImageExts = []string{".jpg", ".jpeg", ".png"}
	convertInputExts   = []string{".glb", ".obj", ".fbx", ".gltf"}
)

// Input is what a command is about to submit. Paths may be local files or
// URLs; only local files are inspected on disk.
type Input struct {
	Kind job.Kind

	Prompt   string
	Image    string
	ImageURL string
	Model    string

	// FaceCount is checked when non-zero.
	FaceCount int

	// Query marks a query-only run; only JobID is checked.
	Query bool
	JobID string
}

// Check runs every check relevant to in.Kind.
func Check(in Input) *Report {
	r := &Report{Kind: in.Kind}

	if in.Query {
		checkJobID(r, in.JobID)
		return r
	}

	switch in.Kind {
	case job.KindGeneration:
		checkGenerationInputs(r, in, ProPromptMaxBytes)
		checkImage(r, in.Image, imageExts, ImageMaxBytes, "JPG, JPEG, PNG or WEBP")
		checkFaceCount(r, in.FaceCount)
	case job.KindRapidGeneration:
		checkGenerationInputs(r, in, RapidPromptMaxBytes)
		checkImage(r, in.Image, imageExts, ImageMaxBytes, "JPG, JPEG, PNG or WEBP")
	case job.KindTextureEdit:
		checkModel(r, in.Model, []string{".fbx"}, 0, "texture edit expects FBX (under 100k faces recommended)")
		if countSet(in.Prompt, in.Image, in.ImageURL) == 0 {
			r.fail(CheckInput, "one of prompt or reference image is required")
		}
		checkImage(r, in.Image, referenceImageExts, ReferenceImageMaxBytes, "JPG or PNG, 128-4096 px")
	case job.KindPartDecomposition:
		checkModel(r, in.Model, []string{".fbx"}, 0, "part decomposition accepts FBX only (30k faces, 100 MB recommended)")
	case job.KindConversion:
		checkModel(r, in.Model, convertInputExts, ConvertInputMaxBytes, "conversion supports FBX, OBJ and GLB")
	case job.KindRetopology, job.KindUVUnwrap:
		checkModel(r, in.Model, nil, 0, "")
	}
	return r
}

func checkGenerationInputs(r *Report, in Input, promptMax int) {
	if countSet(in.Prompt, in.Image, in.ImageURL) == 0 {
		r.fail(CheckInput, "one of prompt, image or image URL is required")
		return
	}
	if in.Prompt == "" {
		return
	}
	if n := len(in.Prompt); n > promptMax {
		r.warn(CheckPrompt, "prompt is %d bytes; the API accepts up to %d and may truncate it", n, promptMax)
		return
	}
	r.ok(CheckPrompt)
}

func checkImage(r *Report, path string, exts []string, maxBytes int64, accepted string) {
	if strings.TrimSpace(path) == "" {
		return
	}
	info, err := os.Stat(path)
	if err != nil {
		r.fail(CheckImage, "image %s: %v", path, err)
		return
	}
	if !info.Mode().IsRegular() {
		r.fail(CheckImage, "image %s is not a regular file", path)
		return
	}
	clean := true
	if ext := strings.ToLower(filepath.Ext(path)); !slices.Contains(exts, ext) {
		r.warn(CheckImage, "image extension %q may not be accepted (expected %s)", ext, accepted)
		clean = false
	}
	if info.Size() > maxBytes {
		r.warn(CheckImage, "image is %.1f MB; the API recommends at most %d MB (base64 adds ~30%%)", float64(info.Size())/MB, maxBytes/MB)
		clean = false
	}
	if clean {
		r.ok(CheckImage)
	}
}

// checkModel inspects a model reference. URLs are only checked by extension.
func checkModel(r *Report, ref string, exts []string, maxBytes int64, hint string) {
	ref = strings.TrimSpace(ref)
	if ref == "" {
		r.fail(CheckModel, "model file or URL is required")
		return
	}

	clean := true
	lower := strings.ToLower(ref)
	isURL := strings.HasPrefix(lower, "http://") || strings.HasPrefix(lower, "https://")
	if !isURL {
		info, err := os.Stat(ref)
		if err != nil {
			r.fail(CheckModel, "model %s: %v", ref, err)
			return
		}
		if !info.Mode().IsRegular() {
			r.fail(CheckModel, "model %s is not a regular file", ref)
			return
		}
		if maxBytes > 0 && info.Size() > maxBytes {
			r.warn(CheckModel, "model is %.1f MB; the API limit is %d MB", float64(info.Size())/MB, maxBytes/MB)
			clean = false
		}
	}

	if len(exts) > 0 {
		ext := strings.ToLower(filepath.Ext(strings.SplitN(ref, "?", 2)[0]))
		if !slices.Contains(exts, ext) {
			r.warn(CheckModel, "%s; got %q", hint, ext)
			clean = false
		}
	}
	if clean {
		r.ok(CheckModel)
	}
}

func checkFaceCount(r *Report, faces int) {
	if faces == 0 {
		return
	}
	if faces < MinFaceCount || faces > MaxFaceCount {
		r.fail(CheckFaceCount, "face count %d is outside %d-%d", faces, MinFaceCount, MaxFaceCount)
		return
	}
	r.ok(CheckFaceCount)
}

func checkJobID(r *Report, id string) {
	id = strings.TrimSpace(id)
	if id == "" {
		r.fail(CheckJobID, "job id is required")
		return
	}
	stripped := strings.NewReplacer("-", "", "_", "").Replace(id)
	for _, c := range stripped {
		if !(c >= '0' && c <= '9' || c >= 'a' && c <= 'z' || c >= 'A' && c <= 'Z') {
			r.warn(CheckJobID, "job id %q has unexpected characters; ids usually look like 1375367755519696896", id)
			return
		}
	}
	r.ok(CheckJobID)
}

func countSet(values ...string) int {
	n := 0
	for _, v := range values {
		if strings.TrimSpace(v) != "" {
			n++
		}
	}
	return n
}
