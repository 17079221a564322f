package cmd

import (
	"testing"

	"github.com/spf13/viper"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/3leaps/hy3d/internal/config"
)

func TestSetVersionInfo(t *testing.T) {
	// Save original values
	origVersion := versionInfo.Version
	origCommit := versionInfo.Commit
	origBuildDate := versionInfo.BuildDate
	defer func() {
		versionInfo.Version = origVersion
		versionInfo.Commit = origCommit
		versionInfo.BuildDate = origBuildDate
	}()

	tests := []struct {
		name      string
		version   string
		commit    string
		buildDate string
	}{
		{
			name:      "set all values",
			version:   "1.0.0",
			commit:    "abc123",
			buildDate: "2024-01-15",
		},
		{
			name:      "set dev version",
			version:   "dev",
			commit:    "HEAD",
			buildDate: "unknown",
		},
		{
			name:      "set empty values",
			version:   "",
			commit:    "",
			buildDate: "",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			SetVersionInfo(tt.version, tt.commit, tt.buildDate)

			assert.Equal(t, tt.version, versionInfo.Version)
			assert.Equal(t, tt.commit, versionInfo.Commit)
			assert.Equal(t, tt.buildDate, versionInfo.BuildDate)
		})
	}
}

func TestGetAppIdentity(t *testing.T) {
	orig := appIdentity
	defer func() { appIdentity = orig }()

	t.Run("returns nil before init", func(t *testing.T) {
		appIdentity = nil
		assert.Nil(t, GetAppIdentity())
	})

	t.Run("returns identity after set", func(t *testing.T) {
		id := config.DefaultIdentity
		appIdentity = &id
		got := GetAppIdentity()
		require.NotNil(t, got)
		assert.Equal(t, "hy3d", got.BinaryName)
		assert.Equal(t, "HY3D_", got.EnvPrefix)
	})
}

func TestSetDefaults(t *testing.T) {
	viper.Reset()
	defer viper.Reset()

	setDefaults()

	// Server defaults
	assert.Equal(t, "localhost", viper.GetString("server.host"))
	assert.Equal(t, 8080, viper.GetInt("server.port"))
	assert.Equal(t, "30s", viper.GetString("server.read_timeout"))
	assert.Equal(t, "30s", viper.GetString("server.write_timeout"))
	assert.Equal(t, "120s", viper.GetString("server.idle_timeout"))
	assert.Equal(t, "10s", viper.GetString("server.shutdown_timeout"))

	// Logging defaults
	assert.Equal(t, "info", viper.GetString("logging.level"))
	assert.Equal(t, "console", viper.GetString("logging.format"))

	// Job defaults
	assert.Equal(t, "10s", viper.GetString("poll.interval"))
	assert.Equal(t, 0, viper.GetInt("poll.max_polls"))
	assert.Equal(t, ".", viper.GetString("download.output"))
	assert.Equal(t, "60s", viper.GetString("api.timeout"))
	assert.InDelta(t, 5.0, viper.GetFloat64("api.rate_limit"), 0)
}

func TestRootCommandTree(t *testing.T) {
	want := []string{"generate", "rapid", "topology", "part", "texture", "uv", "convert", "query", "run", "jobs", "doctor", "serve", "version"}
	for _, name := range want {
		c, _, err := rootCmd.Find([]string{name})
		require.NoError(t, err, name)
		assert.Equal(t, name, c.Name())
	}

	for _, alias := range []string{"pro", "smart-topology", "texture-edit", "uv-unwrap"} {
		c, _, err := rootCmd.Find([]string{alias})
		require.NoError(t, err, alias)
		assert.NotEqual(t, rootCmd, c, alias)
	}
}

func TestJobCommandsShareFlags(t *testing.T) {
	for _, name := range []string{"generate", "rapid", "topology", "part", "texture", "uv", "convert", "query"} {
		c, _, err := rootCmd.Find([]string{name})
		require.NoError(t, err)
		for _, flag := range []string{"wait", "poll", "max-wait", "max-polls", "download", "output", "json", "include", "name"} {
			assert.NotNil(t, c.Flags().Lookup(flag), "%s --%s", name, flag)
		}
	}
	assert.NotNil(t, rootCmd.PersistentFlags().Lookup("secrets"))
}
