// Package config loads hy3d application configuration and API secrets.
//
// Application settings are layered: defaults, then hy3d.yaml (user config
// dir, then working directory), then HY3D_* environment variables, then
// runtime overrides from command flags. Secrets live in a separate JSON file
// (see LoadSecrets) so that config files can be shared.
package config

import (
	"context"
	"fmt"
	"os"
	"path/filepath"
	"sort"
	"sync"
	"time"

	gfconfig "github.com/fulmenhq/gofulmen/config"
	"github.com/go-viper/mapstructure/v2"
	"github.com/spf13/viper"
)

// Identity names the application for config and env lookups.
type Identity struct {
	BinaryName string
	ConfigName string
	EnvPrefix  string
}

// DefaultIdentity is the hy3d identity.
var DefaultIdentity = Identity{
	BinaryName: "hy3d",
	ConfigName: "hy3d",
	EnvPrefix:  "HY3D_",
}

// Config is the resolved application configuration.
type Config struct {
	Logging  LoggingConfig  `mapstructure:"logging"`
	Server   ServerConfig   `mapstructure:"server"`
	Poll     PollConfig     `mapstructure:"poll"`
	Download DownloadConfig `mapstructure:"download"`
	API      APIConfig      `mapstructure:"api"`
	Jobs     JobsConfig     `mapstructure:"jobs"`

	// ConfigFiles lists the config files that were merged, in order.
	ConfigFiles []string `mapstructure:"-"`
}

type LoggingConfig struct {
	Level string `mapstructure:"level"`
	// Format is console or json.
	Format string `mapstructure:"format"`
}

type ServerConfig struct {
	Host            string        `mapstructure:"host"`
	Port            int           `mapstructure:"port"`
	ReadTimeout     time.Duration `mapstructure:"read_timeout"`
	WriteTimeout    time.Duration `mapstructure:"write_timeout"`
	IdleTimeout     time.Duration `mapstructure:"idle_timeout"`
	ShutdownTimeout time.Duration `mapstructure:"shutdown_timeout"`
}

type PollConfig struct {
	Interval time.Duration `mapstructure:"interval"`
	MaxWait  time.Duration `mapstructure:"max_wait"`
	MaxPolls int           `mapstructure:"max_polls"`
}

type DownloadConfig struct {
	Output    string        `mapstructure:"output"`
	Timeout   time.Duration `mapstructure:"timeout"`
	UserAgent string        `mapstructure:"user_agent"`
}

type APIConfig struct {
	Timeout time.Duration `mapstructure:"timeout"`
	// RateLimit is API calls per second; 0 disables pacing.
	RateLimit float64 `mapstructure:"rate_limit"`
}

type JobsConfig struct {
	// Root is the job registry directory. Empty means <app data dir>/jobs.
	Root string `mapstructure:"root"`
}

// EnvSpec maps one environment variable to a config key.
type EnvSpec struct {
	Name string
	Path string
}

var (
	configMu    sync.RWMutex
	appIdentity *Identity
	appConfig   *Config
)

// SetDefaults registers default values on v.
func SetDefaults(v *viper.Viper) {
	v.SetDefault("logging.level", "info")
	v.SetDefault("logging.format", "console")

	v.SetDefault("server.host", "localhost")
	v.SetDefault("server.port", 8080)
	v.SetDefault("server.read_timeout", "30s")
	v.SetDefault("server.write_timeout", "30s")
	v.SetDefault("server.idle_timeout", "120s")
	v.SetDefault("server.shutdown_timeout", "10s")

	v.SetDefault("poll.interval", "10s")
	v.SetDefault("poll.max_wait", "0s")
	v.SetDefault("poll.max_polls", 0)

	v.SetDefault("download.output", ".")
	v.SetDefault("download.timeout", "10m")
	v.SetDefault("download.user_agent", "hy3d")

	v.SetDefault("api.timeout", "60s")
	v.SetDefault("api.rate_limit", 5.0)

	v.SetDefault("jobs.root", "")
}

// Load resolves configuration and caches it for GetConfig.
//
// Later overrides win over earlier ones and over every other layer.
func Load(ctx context.Context, overrides ...map[string]any) (*Config, error) {
	configMu.Lock()
	defer configMu.Unlock()

	if appIdentity == nil {
		id := DefaultIdentity
		appIdentity = &id
	}

	v := viper.New()
	SetDefaults(v)

	var merged []string
	for _, path := range getUserConfigPathsLocked() {
		if err := ctx.Err(); err != nil {
			return nil, err
		}
		info, err := os.Stat(path)
		if err != nil || info.IsDir() {
			continue
		}
		v.SetConfigFile(path)
		if err := v.MergeInConfig(); err != nil {
			return nil, fmt.Errorf("read config %s: %w", path, err)
		}
		merged = append(merged, path)
	}

	for _, spec := range getEnvSpecsLocked() {
		if err := v.BindEnv(spec.Path, spec.Name); err != nil {
			return nil, fmt.Errorf("bind %s: %w", spec.Name, err)
		}
	}

	for _, o := range overrides {
		for key, value := range flatten("", o) {
			v.Set(key, value)
		}
	}

	var cfg Config
	decodeHook := viper.DecodeHook(mapstructure.ComposeDecodeHookFunc(
		mapstructure.StringToTimeDurationHookFunc(),
		mapstructure.StringToSliceHookFunc(","),
	))
	if err := v.Unmarshal(&cfg, decodeHook); err != nil {
		return nil, fmt.Errorf("decode config: %w", err)
	}
	cfg.ConfigFiles = merged
	if cfg.Jobs.Root == "" {
		cfg.Jobs.Root = filepath.Join(gfconfig.GetAppDataDir(appIdentity.ConfigName), "jobs")
	}

	appConfig = &cfg
	return &cfg, nil
}

// GetConfig returns the most recently loaded configuration, or nil.
func GetConfig() *Config {
	configMu.RLock()
	defer configMu.RUnlock()
	return appConfig
}

func getUserConfigPaths() []string {
	configMu.RLock()
	defer configMu.RUnlock()
	return getUserConfigPathsLocked()
}

// getUserConfigPathsLocked returns candidate config files, lowest priority
// first.
func getUserConfigPathsLocked() []string {
	if appIdentity == nil {
		return []string{}
	}
	name := appIdentity.ConfigName + ".yaml"
	var paths []string
	if dir, err := os.UserConfigDir(); err == nil {
		paths = append(paths, filepath.Join(dir, appIdentity.ConfigName, name))
	}
	if cwd, err := os.Getwd(); err == nil {
		paths = append(paths, filepath.Join(cwd, name))
	}
	return paths
}

func getEnvSpecs() []EnvSpec {
	configMu.RLock()
	defer configMu.RUnlock()
	return getEnvSpecsLocked()
}

func getEnvSpecsLocked() []EnvSpec {
	if appIdentity == nil {
		return []EnvSpec{}
	}
	p := appIdentity.EnvPrefix
	return []EnvSpec{
		{Name: p + "LOG_LEVEL", Path: "logging.level"},
		{Name: p + "LOG_FORMAT", Path: "logging.format"},
		{Name: p + "HOST", Path: "server.host"},
		{Name: p + "PORT", Path: "server.port"},
		{Name: p + "READ_TIMEOUT", Path: "server.read_timeout"},
		{Name: p + "WRITE_TIMEOUT", Path: "server.write_timeout"},
		{Name: p + "SHUTDOWN_TIMEOUT", Path: "server.shutdown_timeout"},
		{Name: p + "POLL_INTERVAL", Path: "poll.interval"},
		{Name: p + "MAX_WAIT", Path: "poll.max_wait"},
		{Name: p + "MAX_POLLS", Path: "poll.max_polls"},
		{Name: p + "OUTPUT", Path: "download.output"},
		{Name: p + "DOWNLOAD_TIMEOUT", Path: "download.timeout"},
		{Name: p + "API_TIMEOUT", Path: "api.timeout"},
		{Name: p + "RATE_LIMIT", Path: "api.rate_limit"},
		{Name: p + "JOBS_DIR", Path: "jobs.root"},
	}
}

// flatten turns nested override maps into dotted viper keys.
func flatten(prefix string, m map[string]any) map[string]any {
	out := map[string]any{}
	keys := make([]string, 0, len(m))
	for k := range m {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	for _, k := range keys {
		key := k
		if prefix != "" {
			key = prefix + "." + k
		}
		if nested, ok := m[k].(map[string]any); ok {
			for nk, nv := range flatten(key, nested) {
				out[nk] = nv
			}
			continue
		}
		out[key] = m[k]
	}
	return out
}
