package download

import (
	"fmt"
	"net/url"
	"path"
	"regexp"
	"strings"

	"github.com/3leaps/hy3d/pkg/job"
)

const (
	// DefaultExt is used when neither the declared format nor the URL
	// suggests an extension.
	DefaultExt = ".glb"

	// MaxBaseNameLength bounds titles derived from prompts or file names.
	MaxBaseNameLength = 120

	defaultBaseName = "model"
)

var (
	invalidNameChars = regexp.MustCompile(`[\s\\/:*?"<>|]+`)
	repeatedUnders   = regexp.MustCompile(`_+`)
	unsafeChars      = regexp.MustCompile(`[\\/:*?"<>|\x00-\x1f]`)
)

var formatExts = map[string]string{
	"GLB":   ".glb",
	"GLTF":  ".gltf",
	"OBJ":   ".obj",
	"FBX":   ".fbx",
	"STL":   ".stl",
	"USDZ":  ".usdz",
	"ZIP":   ".zip",
	"MP4":   ".mp4",
	"GIF":   ".gif",
	"PNG":   ".png",
	"JPG":   ".jpg",
	"JPEG":  ".jpg",
	"IMAGE": ".png",
}

// SanitizeBaseName makes a prompt or source file name safe to use as a
// filename prefix. Path components and a trailing extension are dropped,
// runs of whitespace and characters invalid in filenames collapse to a
// single underscore, and the result is truncated to MaxBaseNameLength runes.
// Empty results become "model".
func SanitizeBaseName(s string) string {
	s = strings.TrimSpace(s)
	if i := strings.LastIndex(s, "/"); i >= 0 {
		s = s[i+1:]
	}
	s = stripExt(s)
	s = invalidNameChars.ReplaceAllString(s, "_")
	s = repeatedUnders.ReplaceAllString(s, "_")
	s = strings.Trim(s, "_")
	if s == "" {
		return defaultBaseName
	}
	if r := []rune(s); len(r) > MaxBaseNameLength {
		s = string(r[:MaxBaseNameLength])
	}
	return s
}

// stripExt removes the last extension, ignoring leading dots (".hidden"
// has no extension).
func stripExt(s string) string {
	i := strings.LastIndex(s, ".")
	if i <= 0 {
		return s
	}
	if strings.Trim(s[:i], ".") == "" {
		return s
	}
	return s[:i]
}

// ExtFromFormat maps a declared result format ("GLB", "obj") to an extension.
func ExtFromFormat(format string) string {
	return formatExts[strings.ToUpper(strings.TrimSpace(format))]
}

// ExtFromURL guesses an extension from the URL path (query string ignored).
// Returns "" when nothing recognizable appears in the path.
func ExtFromURL(rawURL string) string {
	p := strings.ToLower(strings.SplitN(rawURL, "?", 2)[0])
	switch {
	case strings.Contains(p, ".zip"):
		return ".zip"
	case strings.Contains(p, ".obj"):
		return ".obj"
	case strings.Contains(p, ".glb"), strings.Contains(p, ".gltf"):
		return ".glb"
	case strings.Contains(p, ".fbx"):
		return ".fbx"
	case strings.Contains(p, ".stl"):
		return ".stl"
	case strings.Contains(p, ".usdz"):
		return ".usdz"
	case strings.Contains(p, ".png"):
		return ".png"
	case strings.Contains(p, ".jpg"), strings.Contains(p, ".jpeg"):
		return ".jpg"
	}
	return ""
}

// resolveExt picks the extension for a generated name.
func resolveExt(f job.ResultFile) string {
	if ext := ExtFromFormat(f.Format); ext != "" {
		return ext
	}
	if ext := ExtFromURL(f.URL); ext != "" {
		return ext
	}
	return DefaultExt
}

// NameFromURL returns the last path segment of rawURL when it is a usable
// filename (non-empty and carrying an extension), or "" otherwise.
func NameFromURL(rawURL string) string {
	u, err := url.Parse(strings.TrimSpace(rawURL))
	if err != nil {
		return ""
	}
	base := path.Base(u.Path)
	if base == "" || base == "." || base == "/" {
		return ""
	}
	base = unsafeChars.ReplaceAllString(base, "_")
	if ext := path.Ext(base); ext == "" || ext == base || ext == "." {
		return ""
	}
	return base
}

// FallbackName is the deterministic name for result index (0-based) of a job
// whose URL has no usable filename: "<job id>_<index+1><ext>".
func FallbackName(jobID string, index int, ext string) string {
	prefix := invalidNameChars.ReplaceAllString(strings.TrimSpace(jobID), "_")
	if prefix == "" {
		prefix = defaultBaseName
	}
	return fmt.Sprintf("%s_%d%s", prefix, index+1, ext)
}

// Namer assigns local filenames to the result files of one job.
//
// Names are a pure function of (job id, base name, result list), so
// re-running against the same job produces the same names.
type Namer struct {
	jobID    string
	baseName string

	used  map[string]int
	count int
}

// NewNamer creates a Namer. When baseName is non-empty, files are titled
// "<base><ext>", "<base>_2<ext>", ... instead of using URL names.
func NewNamer(jobID, baseName string) *Namer {
	n := &Namer{jobID: jobID, used: map[string]int{}}
	if strings.TrimSpace(baseName) != "" {
		n.baseName = SanitizeBaseName(baseName)
	}
	return n
}

// Name returns the local filename for the result file at index.
// Call it once per file, in result order.
func (n *Namer) Name(index int, f job.ResultFile) string {
	if n.baseName != "" {
		n.count++
		ext := ExtFromURL(f.URL)
		if ext == "" {
			ext = resolveExt(f)
		}
		if n.count == 1 {
			return n.baseName + ext
		}
		return fmt.Sprintf("%s_%d%s", n.baseName, n.count, ext)
	}

	name := NameFromURL(f.URL)
	if name == "" {
		name = FallbackName(n.jobID, index, resolveExt(f))
	}
	return n.dedupe(name)
}

// dedupe appends _2, _3, ... when a name was already handed out.
func (n *Namer) dedupe(name string) string {
	n.used[name]++
	seen := n.used[name]
	if seen == 1 {
		return name
	}
	ext := path.Ext(name)
	stem := strings.TrimSuffix(name, ext)
	for {
		candidate := fmt.Sprintf("%s_%d%s", stem, seen, ext)
		if _, taken := n.used[candidate]; !taken {
			n.used[candidate] = 1
			return candidate
		}
		seen++
	}
}
