package config

import (
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"github.com/spf13/viper"
)

// Secrets defaults.
const (
	DefaultRegion   = "ap-singapore"
	DefaultEndpoint = "hunyuan.intl.tencentcloudapi.com"

	// SecretsPathEnv names an explicit secrets file.
	SecretsPathEnv = "HY3D_SECRETS_PATH"
)

var (
	// ErrSecretsNotFound is returned when no candidate secrets file exists.
	ErrSecretsNotFound = errors.New("no secrets file found")

	// ErrSecretsInvalid is returned when a secrets file lacks required keys
	// or cannot be parsed.
	ErrSecretsInvalid = errors.New("invalid secrets file")
)

// Secrets holds API credentials and endpoint settings.
//
// Loaded once at command start and passed by value.
type Secrets struct {
	SecretID  string `mapstructure:"secret_id"`
	SecretKey string `mapstructure:"secret_key"`
	Region    string `mapstructure:"region"`
	Endpoint  string `mapstructure:"endpoint"`

	// COSBucket enables uploading local inputs. Optional.
	COSBucket string `mapstructure:"cos_bucket"`

	// COSRegion defaults to Region.
	COSRegion string `mapstructure:"cos_region"`

	// Path is the file the secrets were read from.
	Path string `mapstructure:"-"`
}

// COSRegionOrDefault returns COSRegion, falling back to Region.
func (s Secrets) COSRegionOrDefault() string {
	if s.COSRegion != "" {
		return s.COSRegion
	}
	return s.Region
}

// SecretsSearchPaths returns candidate secrets files in priority order:
// explicit path, $HY3D_SECRETS_PATH, ./secrets.json, ~/.hy-3d-secrets.json.
func SecretsSearchPaths(explicit string) []string {
	var paths []string
	if p := strings.TrimSpace(explicit); p != "" {
		paths = append(paths, expandHome(p))
	}
	if p := strings.TrimSpace(os.Getenv(SecretsPathEnv)); p != "" {
		paths = append(paths, expandHome(p))
	}
	if cwd, err := os.Getwd(); err == nil {
		paths = append(paths, filepath.Join(cwd, "secrets.json"))
	}
	if home, err := os.UserHomeDir(); err == nil {
		paths = append(paths, filepath.Join(home, ".hy-3d-secrets.json"))
	}
	return paths
}

// LoadSecrets reads the first existing file from SecretsSearchPaths.
//
// An explicit path that does not exist is an error rather than falling
// through to the defaults.
func LoadSecrets(explicit string) (Secrets, error) {
	if p := strings.TrimSpace(explicit); p != "" {
		p = expandHome(p)
		if _, err := os.Stat(p); err != nil {
			return Secrets{}, fmt.Errorf("%w: %s", ErrSecretsNotFound, p)
		}
		return readSecrets(p)
	}

	paths := SecretsSearchPaths("")
	for _, p := range paths {
		if info, err := os.Stat(p); err == nil && !info.IsDir() {
			return readSecrets(p)
		}
	}
	return Secrets{}, &NotFoundError{Searched: paths}
}

func readSecrets(path string) (Secrets, error) {
	v := viper.New()
	v.SetConfigFile(path)
	v.SetConfigType("json")
	if err := v.ReadInConfig(); err != nil {
		return Secrets{}, fmt.Errorf("%w: parse %s: %v", ErrSecretsInvalid, path, err)
	}

	var s Secrets
	if err := v.Unmarshal(&s); err != nil {
		return Secrets{}, fmt.Errorf("%w: decode %s: %v", ErrSecretsInvalid, path, err)
	}
	s.Path = path
	s.normalize()

	if s.SecretID == "" || s.SecretKey == "" {
		return Secrets{}, fmt.Errorf("%w: missing secret_id/secret_key in %s", ErrSecretsInvalid, path)
	}
	return s, nil
}

func (s *Secrets) normalize() {
	s.SecretID = strings.TrimSpace(s.SecretID)
	s.SecretKey = strings.TrimSpace(s.SecretKey)
	s.Region = strings.TrimSpace(s.Region)
	s.Endpoint = strings.TrimSpace(s.Endpoint)
	s.COSBucket = strings.TrimSpace(s.COSBucket)
	s.COSRegion = strings.TrimSpace(s.COSRegion)
	if s.Region == "" {
		s.Region = DefaultRegion
	}
	if s.Endpoint == "" {
		s.Endpoint = DefaultEndpoint
	}
}

// NotFoundError lists every path searched for a secrets file.
type NotFoundError struct {
	Searched []string
}

func (e *NotFoundError) Error() string {
	var b strings.Builder
	b.WriteString("no secrets file found. Create one of the following files:\n")
	for _, p := range e.Searched {
		b.WriteString("  - ")
		b.WriteString(p)
		b.WriteString("\n")
	}
	b.WriteString(`
Example secrets.json:
{
  "secret_id": "YOUR_SECRET_ID",
  "secret_key": "YOUR_SECRET_KEY",
  "region": "ap-singapore",
  "endpoint": "hunyuan.intl.tencentcloudapi.com",
  "cos_bucket": "your-bucket-appid",
  "cos_region": "ap-singapore"
}`)
	return b.String()
}

func (e *NotFoundError) Unwrap() error { return ErrSecretsNotFound }

func expandHome(p string) string {
	if p == "~" || strings.HasPrefix(p, "~/") {
		if home, err := os.UserHomeDir(); err == nil {
			return filepath.Join(home, strings.TrimPrefix(p, "~"))
		}
	}
	return p
}
