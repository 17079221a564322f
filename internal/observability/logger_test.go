package observability

import (
	"bytes"
	"encoding/json"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"
)

func TestNewCLILogger_Console(t *testing.T) {
	var buf bytes.Buffer
	l := NewCLILogger(zapcore.AddSync(&buf), "hy3d", zapcore.InfoLevel, false)

	l.Debug("hidden")
	l.Info("submitted", zap.String("job_id", "123"))

	out := buf.String()
	assert.NotContains(t, out, "hidden")
	assert.Contains(t, out, "INFO")
	assert.Contains(t, out, "submitted")
	assert.Contains(t, out, `"job_id": "123"`)
}

func TestNewCLILogger_JSON(t *testing.T) {
	var buf bytes.Buffer
	l := NewCLILogger(zapcore.AddSync(&buf), "hy3d", zapcore.DebugLevel, true)

	l.Debug("polling", zap.Int("poll", 2))

	var rec map[string]any
	require.NoError(t, json.Unmarshal(buf.Bytes(), &rec))
	assert.Equal(t, "debug", rec["level"])
	assert.Equal(t, "polling", rec["msg"])
	assert.Equal(t, "hy3d", rec["service"])
	assert.EqualValues(t, 2, rec["poll"])
}

func TestInitCLILogger(t *testing.T) {
	orig := CLILogger
	t.Cleanup(func() { CLILogger = orig })

	InitCLILogger("test", true)
	assert.True(t, CLILogger.Core().Enabled(zapcore.DebugLevel))

	InitCLILogger("test", false)
	assert.False(t, CLILogger.Core().Enabled(zapcore.DebugLevel))

	InitCLILoggerWithLevel("test", "warn", "json")
	assert.False(t, CLILogger.Core().Enabled(zapcore.InfoLevel))

	InitCLILoggerWithLevel("test", "bogus", "console")
	assert.True(t, CLILogger.Core().Enabled(zapcore.InfoLevel))
}
