package config

import (
	"context"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/spf13/viper"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// isolate points config discovery at empty temp dirs.
func isolate(t *testing.T) string {
	t.Helper()
	dir := t.TempDir()
	t.Setenv("HOME", dir)
	t.Setenv("XDG_CONFIG_HOME", filepath.Join(dir, ".config"))
	t.Setenv("XDG_DATA_HOME", filepath.Join(dir, ".local", "share"))
	wd, err := os.Getwd()
	require.NoError(t, err)
	require.NoError(t, os.Chdir(dir))
	t.Cleanup(func() { _ = os.Chdir(wd) })
	return dir
}

func TestLoad(t *testing.T) {
	ctx := context.Background()

	t.Run("LoadDefaults", func(t *testing.T) {
		isolate(t)
		cfg, err := Load(ctx)
		require.NoError(t, err)
		require.NotNil(t, cfg)

		assert.Equal(t, "localhost", cfg.Server.Host)
		assert.Equal(t, 8080, cfg.Server.Port)
		assert.Equal(t, 30*time.Second, cfg.Server.ReadTimeout)
		assert.Equal(t, 120*time.Second, cfg.Server.IdleTimeout)
		assert.Equal(t, 10*time.Second, cfg.Server.ShutdownTimeout)

		assert.Equal(t, "info", cfg.Logging.Level)
		assert.Equal(t, "console", cfg.Logging.Format)

		assert.Equal(t, 10*time.Second, cfg.Poll.Interval)
		assert.Zero(t, cfg.Poll.MaxWait)
		assert.Zero(t, cfg.Poll.MaxPolls)

		assert.Equal(t, ".", cfg.Download.Output)
		assert.Equal(t, 60*time.Second, cfg.API.Timeout)
		assert.InDelta(t, 5.0, cfg.API.RateLimit, 0.001)

		assert.Equal(t, "jobs", filepath.Base(cfg.Jobs.Root))
		assert.Empty(t, cfg.ConfigFiles)
	})

	t.Run("RuntimeOverrides", func(t *testing.T) {
		isolate(t)
		overrides := map[string]any{
			"server": map[string]any{
				"port": 9000,
				"host": "0.0.0.0",
			},
			"logging": map[string]any{
				"level": "debug",
			},
		}

		cfg, err := Load(ctx, overrides)
		require.NoError(t, err)

		assert.Equal(t, "0.0.0.0", cfg.Server.Host)
		assert.Equal(t, 9000, cfg.Server.Port)
		assert.Equal(t, "debug", cfg.Logging.Level)
		assert.Equal(t, "console", cfg.Logging.Format)
	})

	t.Run("EnvOverrides", func(t *testing.T) {
		isolate(t)
		t.Setenv("HY3D_PORT", "3000")
		t.Setenv("HY3D_LOG_LEVEL", "warn")
		t.Setenv("HY3D_POLL_INTERVAL", "2s")
		t.Setenv("HY3D_JOBS_DIR", "/tmp/hy3d-jobs")

		cfg, err := Load(ctx)
		require.NoError(t, err)

		assert.Equal(t, 3000, cfg.Server.Port)
		assert.Equal(t, "warn", cfg.Logging.Level)
		assert.Equal(t, 2*time.Second, cfg.Poll.Interval)
		assert.Equal(t, "/tmp/hy3d-jobs", cfg.Jobs.Root)
	})

	t.Run("ConfigFile", func(t *testing.T) {
		dir := isolate(t)
		require.NoError(t, os.WriteFile(filepath.Join(dir, "hy3d.yaml"), []byte("poll:\n  interval: 3s\n  max_wait: 15m\ndownload:\n  output: ./models\n"), 0o644))

		cfg, err := Load(ctx)
		require.NoError(t, err)

		assert.Equal(t, 3*time.Second, cfg.Poll.Interval)
		assert.Equal(t, 15*time.Minute, cfg.Poll.MaxWait)
		assert.Equal(t, "./models", cfg.Download.Output)
		require.Len(t, cfg.ConfigFiles, 1)
		assert.Equal(t, "hy3d.yaml", filepath.Base(cfg.ConfigFiles[0]))
	})

	t.Run("BadConfigFile", func(t *testing.T) {
		dir := isolate(t)
		require.NoError(t, os.WriteFile(filepath.Join(dir, "hy3d.yaml"), []byte("poll: [unclosed\n"), 0o644))

		_, err := Load(ctx)
		require.Error(t, err)
		assert.Contains(t, err.Error(), "hy3d.yaml")
	})

	t.Run("ConfigPrecedence", func(t *testing.T) {
		dir := isolate(t)
		require.NoError(t, os.WriteFile(filepath.Join(dir, "hy3d.yaml"), []byte("server:\n  port: 7000\n"), 0o644))
		t.Setenv("HY3D_PORT", "4000")

		cfg, err := Load(ctx)
		require.NoError(t, err)
		assert.Equal(t, 4000, cfg.Server.Port, "env beats file")

		cfg, err = Load(ctx, map[string]any{"server": map[string]any{"port": 5000}})
		require.NoError(t, err)
		assert.Equal(t, 5000, cfg.Server.Port, "runtime beats env")
	})
}

func TestGetConfig(t *testing.T) {
	isolate(t)
	cfg, err := Load(context.Background(), map[string]any{"poll": map[string]any{"max_polls": 7}})
	require.NoError(t, err)

	retrieved := GetConfig()
	require.NotNil(t, retrieved)
	assert.Equal(t, cfg.Poll.MaxPolls, retrieved.Poll.MaxPolls)
}

func TestLoad_CanceledContext(t *testing.T) {
	dir := isolate(t)
	require.NoError(t, os.WriteFile(filepath.Join(dir, "hy3d.yaml"), []byte("poll:\n  interval: 3s\n"), 0o644))

	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	_, err := Load(ctx)
	assert.ErrorIs(t, err, context.Canceled)
}

func TestSetDefaults(t *testing.T) {
	v := viper.New()
	SetDefaults(v)

	assert.Equal(t, "localhost", v.GetString("server.host"))
	assert.Equal(t, 8080, v.GetInt("server.port"))
	assert.Equal(t, "10s", v.GetString("poll.interval"))
	assert.Equal(t, "info", v.GetString("logging.level"))
	assert.Equal(t, "hy3d", v.GetString("download.user_agent"))
}

// resetAppIdentity resets package state for isolated tests.
// Must only be used in tests.
func resetAppIdentity() {
	configMu.Lock()
	defer configMu.Unlock()
	appIdentity = nil
	appConfig = nil
}

func TestEnvSpecs(t *testing.T) {
	isolate(t)
	_, err := Load(context.Background())
	require.NoError(t, err)

	specs := getEnvSpecs()
	require.NotEmpty(t, specs)

	names := make(map[string]bool)
	for _, spec := range specs {
		names[spec.Name] = true
		assert.Contains(t, spec.Name, "HY3D_")
		assert.NotEmpty(t, spec.Path, "env var %s should have a path", spec.Name)
	}
	assert.True(t, names["HY3D_LOG_LEVEL"])
	assert.True(t, names["HY3D_PORT"])
	assert.True(t, names["HY3D_POLL_INTERVAL"])
}

func TestNilIdentity(t *testing.T) {
	resetAppIdentity()
	defer func() { _, _ = Load(context.Background()) }()

	assert.Empty(t, getUserConfigPaths())
	assert.Empty(t, getEnvSpecs())
	assert.Nil(t, GetConfig())
}

func TestFlatten(t *testing.T) {
	got := flatten("", map[string]any{
		"a": 1,
		"b": map[string]any{"c": "x", "d": map[string]any{"e": true}},
	})
	assert.Equal(t, map[string]any{"a": 1, "b.c": "x", "b.d.e": true}, got)
}
