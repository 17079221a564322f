package manifest

import (
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"strings"

	"gopkg.in/yaml.v3"
)

// format is the manifest encoding, chosen from the file extension.
type format int

const (
	formatAuto format = iota
	formatYAML
	formatJSON
)

func detectFormat(path string) format {
	switch strings.ToLower(filepath.Ext(path)) {
	case ".json":
		return formatJSON
	case ".yaml", ".yml":
		return formatYAML
	}
	return formatAuto
}

// Load reads a manifest file, validates it and applies defaults.
//
// The format follows the extension (.yaml/.yml or .json); anything else is
// parsed as YAML, which also accepts JSON. Relative local input paths (image,
// model and view images) are resolved against the manifest's directory so a
// manifest can sit next to its inputs. URLs and the output directory are
// left as written.
func Load(path string) (*Manifest, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		switch {
		case os.IsNotExist(err):
			return nil, fmt.Errorf("manifest file not found: %s", path)
		case os.IsPermission(err):
			return nil, fmt.Errorf("permission denied reading manifest: %s", path)
		}
		return nil, fmt.Errorf("failed to read manifest file: %w", err)
	}

	m, err := LoadFromBytes(data, path)
	if err != nil {
		return nil, err
	}
	m.resolveInputs(filepath.Dir(path))
	return m, nil
}

// LoadFromReader is LoadFromBytes for a stream.
func LoadFromReader(r io.Reader, path string) (*Manifest, error) {
	data, err := io.ReadAll(r)
	if err != nil {
		return nil, fmt.Errorf("failed to read manifest: %w", err)
	}
	return LoadFromBytes(data, path)
}

// LoadFromBytes validates raw manifest data and returns the typed manifest
// with defaults applied. path is only used to pick the format.
//
// Schema validation runs on the generic document before it is decoded into
// Manifest, so unknown fields are rejected rather than silently dropped.
func LoadFromBytes(data []byte, path string) (*Manifest, error) {
	if len(strings.TrimSpace(string(data))) == 0 {
		return nil, errors.New("manifest file is empty")
	}

	doc, err := decodeDocument(data, detectFormat(path))
	if err != nil {
		return nil, err
	}
	if err := ValidateRaw(doc); err != nil {
		return nil, err
	}

	var m Manifest
	if err := json.Unmarshal(doc, &m); err != nil {
		return nil, fmt.Errorf("decode manifest: %w", err)
	}
	if err := checkSemantics(&m); err != nil {
		return nil, err
	}
	m.ApplyDefaults()
	return &m, nil
}

// decodeDocument parses data into its JSON form.
func decodeDocument(data []byte, f format) ([]byte, error) {
	if f == formatJSON {
		var raw any
		if err := json.Unmarshal(data, &raw); err != nil {
			return nil, fmt.Errorf("invalid JSON in manifest: %w", err)
		}
		return data, nil
	}

	var raw any
	if err := yaml.Unmarshal(data, &raw); err != nil {
		if f == formatAuto && json.Valid(data) {
			return data, nil
		}
		return nil, fmt.Errorf("invalid YAML in manifest: %w", err)
	}
	doc, err := json.Marshal(raw)
	if err != nil {
		return nil, fmt.Errorf("failed to convert manifest to JSON: %w", err)
	}
	return doc, nil
}

// resolveInputs makes relative local input paths relative to dir.
func (m *Manifest) resolveInputs(dir string) {
	m.Image = resolveLocal(dir, m.Image)
	m.Model = resolveLocal(dir, m.Model)
	for i := range m.Options.Views {
		m.Options.Views[i].Image = resolveLocal(dir, m.Options.Views[i].Image)
	}
}

func resolveLocal(dir, ref string) string {
	ref = strings.TrimSpace(ref)
	if ref == "" || filepath.IsAbs(ref) || strings.Contains(ref, "://") {
		return ref
	}
	return filepath.Join(dir, ref)
}
