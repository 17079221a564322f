// Package observability holds the process-wide CLI logger.
package observability

import (
	"os"
	"strings"

	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"
)

// CLILogger writes human-oriented diagnostics to stderr. stdout is reserved
// for JSONL records.
var CLILogger = zap.NewNop()

// InitCLILogger replaces CLILogger with a console logger on stderr.
// verbose enables debug level.
func InitCLILogger(service string, verbose bool) {
	level := zapcore.InfoLevel
	if verbose {
		level = zapcore.DebugLevel
	}
	CLILogger = NewCLILogger(zapcore.Lock(os.Stderr), service, level, false)
}

// InitCLILoggerWithLevel is InitCLILogger for a configured level name and
// format ("console" or "json"). Unknown levels fall back to info.
func InitCLILoggerWithLevel(service, level, format string) {
	lvl, err := zapcore.ParseLevel(strings.TrimSpace(level))
	if err != nil {
		lvl = zapcore.InfoLevel
	}
	CLILogger = NewCLILogger(zapcore.Lock(os.Stderr), service, lvl, strings.EqualFold(format, "json"))
}

// NewCLILogger builds a logger writing to w.
func NewCLILogger(w zapcore.WriteSyncer, service string, level zapcore.Level, json bool) *zap.Logger {
	encCfg := zap.NewProductionEncoderConfig()
	encCfg.TimeKey = "ts"
	encCfg.EncodeTime = zapcore.ISO8601TimeEncoder

	var enc zapcore.Encoder
	if json {
		enc = zapcore.NewJSONEncoder(encCfg)
	} else {
		encCfg.EncodeLevel = zapcore.CapitalLevelEncoder
		encCfg.TimeKey = ""
		encCfg.CallerKey = ""
		encCfg.NameKey = ""
		enc = zapcore.NewConsoleEncoder(encCfg)
	}

	logger := zap.New(zapcore.NewCore(enc, w, zap.NewAtomicLevelAt(level)))
	if json && service != "" {
		logger = logger.With(zap.String("service", service))
	}
	return logger
}

// Sync flushes CLILogger. Errors from syncing a terminal are ignored.
func Sync() {
	_ = CLILogger.Sync()
}
