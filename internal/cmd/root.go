package cmd

import (
	"context"
	"errors"
	"fmt"
	"os"
	"runtime"

	"github.com/fulmenhq/gofulmen/foundry"
	"github.com/spf13/cobra"
	"github.com/spf13/viper"
	"go.uber.org/zap"

	"github.com/3leaps/hy3d/internal/config"
	"github.com/3leaps/hy3d/internal/observability"
	"github.com/3leaps/hy3d/pkg/poll"
)

// Exit codes for job outcomes. Everything else uses foundry codes.
const (
	exitFailure    = 1
	exitJobFailed  = 1
	exitJobTimeout = 124
)

var versionInfo = struct {
	Version   string
	Commit    string
	BuildDate string
}{
	Version:   "dev",
	Commit:    "unknown",
	BuildDate: "unknown",
}

var (
	appIdentity *config.Identity
	appConfig   *config.Config

	rootVerbose   bool
	rootSecrets   string
	rootLogFormat string
)

var rootCmd = &cobra.Command{
	Use:   "hy3d",
	Short: "Submit, poll and download Hunyuan 3D jobs",
	Long: `hy3d drives the Tencent Cloud Hunyuan 3D API from the command line.

Each job command submits a job, polls it until it finishes and downloads the
result files. Use --json for JSONL records on stdout; diagnostics go to stderr.

Credentials are read from a secrets file (see 'hy3d doctor').`,
	SilenceUsage:      true,
	SilenceErrors:     true,
	PersistentPreRunE: initApp,
}

func init() {
	rootCmd.PersistentFlags().BoolVarP(&rootVerbose, "verbose", "v", false, "Enable debug logging")
	rootCmd.PersistentFlags().StringVar(&rootSecrets, "secrets", "", "Path to the secrets JSON file")
	rootCmd.PersistentFlags().StringVar(&rootLogFormat, "log-format", "", "Log format (console|json)")
}

// SetVersionInfo records build metadata reported by `hy3d version`.
func SetVersionInfo(version, commit, buildDate string) {
	versionInfo.Version = version
	versionInfo.Commit = commit
	versionInfo.BuildDate = buildDate
}

// GetAppIdentity returns the identity resolved at startup, or nil before init.
func GetAppIdentity() *config.Identity {
	return appIdentity
}

func setDefaults() {
	config.SetDefaults(viper.GetViper())
}

func initApp(cmd *cobra.Command, args []string) error {
	if appIdentity == nil {
		id := config.DefaultIdentity
		appIdentity = &id
	}

	overrides := map[string]any{}
	if rootLogFormat != "" {
		overrides["logging"] = map[string]any{"format": rootLogFormat}
	}
	cfg, err := config.Load(cmd.Context(), overrides)
	if err != nil {
		return exitError(foundry.ExitInvalidArgument, "Invalid configuration", err)
	}
	appConfig = cfg

	level := cfg.Logging.Level
	if rootVerbose {
		level = "debug"
	}
	observability.InitCLILoggerWithLevel(appIdentity.BinaryName, level, cfg.Logging.Format)
	observability.CLILogger.Debug("Configuration loaded",
		zap.Strings("config_files", cfg.ConfigFiles),
		zap.String("jobs_root", cfg.Jobs.Root),
		zap.String("go_version", runtime.Version()))
	return nil
}

// currentConfig returns the loaded config, loading defaults when a command
// runs without the root pre-run (tests).
func currentConfig(ctx context.Context) (*config.Config, error) {
	if appConfig != nil {
		return appConfig, nil
	}
	cfg, err := config.Load(ctx)
	if err != nil {
		return nil, err
	}
	appConfig = cfg
	return cfg, nil
}

// ExitError carries a process exit code through cobra's error return.
type ExitError struct {
	Code    int
	Message string
	Err     error
}

func (e *ExitError) Error() string {
	if e.Err == nil {
		return fmt.Sprintf("%s (exit code %d)", e.Message, e.Code)
	}
	return fmt.Sprintf("%s: %v (exit code %d)", e.Message, e.Err, e.Code)
}

func (e *ExitError) Unwrap() error { return e.Err }

// exitError creates an error that will cause the CLI to exit with the given code.
func exitError(code int, message string, err error) error {
	return &ExitError{Code: code, Message: message, Err: err}
}

// exitCodeOf maps an error returned by a command to a process exit code.
func exitCodeOf(err error) int {
	if err == nil {
		return 0
	}
	var ee *ExitError
	if errors.As(err, &ee) {
		return ee.Code
	}
	switch {
	case poll.IsJobFailed(err):
		return exitJobFailed
	case poll.IsTimeout(err):
		return exitJobTimeout
	case errors.Is(err, context.Canceled):
		return foundry.ExitSignalInt
	}
	return exitFailure
}

// ExitWithCode logs err and terminates the process.
func ExitWithCode(logger *zap.Logger, code int, message string, err error) {
	logger.Error(message, zap.Error(err), zap.Int("exit_code", code))
	observability.Sync()
	os.Exit(code)
}

// Execute runs the command tree and returns the process exit code.
func Execute(ctx context.Context) int {
	err := rootCmd.ExecuteContext(ctx)
	defer observability.Sync()
	if err == nil {
		return 0
	}
	if observability.CLILogger.Core().Enabled(zap.ErrorLevel) {
		observability.CLILogger.Error("Command failed", zap.Error(err))
	} else {
		// Flag errors happen before the logger is initialized.
		fmt.Fprintln(os.Stderr, "Error:", err)
	}
	return exitCodeOf(err)
}
