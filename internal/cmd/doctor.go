package cmd

import (
	"context"
	"fmt"
	"os"
	"runtime"

	"github.com/fulmenhq/gofulmen/crucible"
	"github.com/fulmenhq/gofulmen/foundry"
	"github.com/spf13/cobra"
	"go.uber.org/zap"

	"github.com/3leaps/hy3d/internal/config"
	errwrap "github.com/3leaps/hy3d/internal/errors"
	"github.com/3leaps/hy3d/internal/observability"
	"github.com/3leaps/hy3d/pkg/cos"
)

var (
	doctorCOS bool
)

var doctorCmd = &cobra.Command{
	Use:   "doctor",
	Short: "Run diagnostic checks",
	Long: `Run diagnostic checks on the system and suggest fixes for common issues.

Examples:
  hy3d doctor          # Environment and secrets checks
  hy3d doctor --cos    # Also check the COS upload configuration`,
	Run: runDoctor,
}

func init() {
	rootCmd.AddCommand(doctorCmd)
	doctorCmd.Flags().BoolVar(&doctorCOS, "cos", false, "Check the COS upload configuration")
}

func runDoctor(cmd *cobra.Command, args []string) {
	identity := GetAppIdentity()
	bannerName := "doctor"
	if identity != nil && identity.BinaryName != "" {
		bannerName = identity.BinaryName + " doctor"
	}
	observability.CLILogger.Info("=== " + bannerName + " ===")
	observability.CLILogger.Info("")
	observability.CLILogger.Info("Running diagnostic checks...")
	observability.CLILogger.Info("")

	allChecks := true
	checkNum := 1
	totalChecks := 7

	if doctorCOS {
		totalChecks = 8
	}

	// Check 1: Go version
	goVersion := runtime.Version()
	if goVersion >= "go1.23" {
		observability.CLILogger.Info(fmt.Sprintf("[%d/%d] Checking Go version... ✅ %s", checkNum, totalChecks, goVersion),
			zap.String("go_version", goVersion))
	} else {
		observability.CLILogger.Warn(fmt.Sprintf("[%d/%d] Checking Go version... ⚠️  %s (recommended: go1.23+)", checkNum, totalChecks, goVersion),
			zap.String("go_version", goVersion))
		allChecks = false
	}
	checkNum++

	// Check 2: Crucible access
	version := crucible.GetVersion()
	if version.Crucible != "" {
		observability.CLILogger.Info(fmt.Sprintf("[%d/%d] Checking Crucible access... ✅ v%s", checkNum, totalChecks, version.Crucible),
			zap.String("crucible_version", version.Crucible))
	} else {
		observability.CLILogger.Error(fmt.Sprintf("[%d/%d] Checking Crucible access... ❌ Cannot access Crucible", checkNum, totalChecks))
		ExitWithCode(observability.CLILogger, foundry.ExitExternalServiceUnavailable, "Cannot access Crucible",
			errwrap.NewExternalServiceError("Crucible service unavailable"))
		allChecks = false
	}
	checkNum++

	// Check 3: Gofulmen access
	if version.Gofulmen != "" {
		observability.CLILogger.Info(fmt.Sprintf("[%d/%d] Checking Gofulmen access... ✅ v%s", checkNum, totalChecks, version.Gofulmen),
			zap.String("gofulmen_version", version.Gofulmen))
	} else {
		observability.CLILogger.Error(fmt.Sprintf("[%d/%d] Checking Gofulmen access... ❌ Cannot access Gofulmen", checkNum, totalChecks))
		allChecks = false
	}
	checkNum++

	// Check 4: Config directory
	configDir, err := os.UserConfigDir()
	if err != nil {
		observability.CLILogger.Error(fmt.Sprintf("[%d/%d] Checking config directory... ❌ Cannot find config directory", checkNum, totalChecks),
			zap.Error(err))
		ExitWithCode(observability.CLILogger, foundry.ExitFileNotFound, "Cannot find config directory",
			errwrap.WrapInternal(cmd.Context(), err, "Cannot find config directory"))
		allChecks = false
	} else {
		observability.CLILogger.Info(fmt.Sprintf("[%d/%d] Checking config directory... ✅ %s", checkNum, totalChecks, configDir),
			zap.String("config_dir", configDir))
	}
	checkNum++

	// Check 5: Environment
	observability.CLILogger.Info(fmt.Sprintf("[%d/%d] Checking environment... ✅ %s/%s", checkNum, totalChecks, runtime.GOOS, runtime.GOARCH),
		zap.String("os", runtime.GOOS),
		zap.String("arch", runtime.GOARCH))
	checkNum++

	// Check 6: Secrets
	secrets, err := config.LoadSecrets(rootSecrets)
	if err != nil {
		observability.CLILogger.Error(fmt.Sprintf("[%d/%d] Checking secrets... ❌ %v", checkNum, totalChecks, err))
		printSecretsHelp()
		allChecks = false
	} else {
		observability.CLILogger.Info(fmt.Sprintf("[%d/%d] Checking secrets... ✅ %s", checkNum, totalChecks, secrets.Path),
			zap.String("secret_id", maskAccessKey(secrets.SecretID)),
			zap.String("region", secrets.Region),
			zap.String("endpoint", secrets.Endpoint))
	}
	checkNum++

	// Check 7: Job registry
	if ok := checkJobsDir(cmd.Context(), checkNum, totalChecks); !ok {
		allChecks = false
	}
	checkNum++

	if doctorCOS {
		allChecks = runCOSChecks(cmd.Context(), secrets, err == nil, checkNum, totalChecks, allChecks)
	}

	observability.CLILogger.Info("")
	if allChecks {
		observability.CLILogger.Info(fmt.Sprintf("✅ All checks passed! Your %s installation is healthy.", bannerName))
	} else {
		observability.CLILogger.Warn("⚠️  Some checks failed. Review the output above for details.")
	}
	observability.CLILogger.Info("")
	observability.CLILogger.Info("=== End Diagnostics ===")
}

// checkJobsDir verifies the job registry directory can be created.
func checkJobsDir(ctx context.Context, checkNum, totalChecks int) bool {
	cfg, err := currentConfig(ctx)
	if err != nil {
		observability.CLILogger.Error(fmt.Sprintf("[%d/%d] Checking job registry... ❌ Cannot load config", checkNum, totalChecks),
			zap.Error(err))
		return false
	}
	if err := os.MkdirAll(cfg.Jobs.Root, 0755); err != nil {
		observability.CLILogger.Error(fmt.Sprintf("[%d/%d] Checking job registry... ❌ Cannot create %s", checkNum, totalChecks, cfg.Jobs.Root),
			zap.Error(err))
		return false
	}
	observability.CLILogger.Info(fmt.Sprintf("[%d/%d] Checking job registry... ✅ %s", checkNum, totalChecks, cfg.Jobs.Root),
		zap.String("jobs_root", cfg.Jobs.Root))
	return true
}

// runCOSChecks checks that local inputs can be uploaded.
func runCOSChecks(ctx context.Context, secrets config.Secrets, haveSecrets bool, checkNum, totalChecks int, allChecks bool) bool {
	observability.CLILogger.Info("")
	observability.CLILogger.Info("COS Upload Checks:")

	if !haveSecrets || secrets.COSBucket == "" {
		observability.CLILogger.Warn(fmt.Sprintf("[%d/%d] Checking COS bucket... ⚠️  Not configured (local model files cannot be uploaded)", checkNum, totalChecks))
		printCOSHelp()
		return false
	}

	_, err := cos.New(ctx, cos.Config{
		Bucket:    secrets.COSBucket,
		Region:    secrets.COSRegionOrDefault(),
		SecretID:  secrets.SecretID,
		SecretKey: secrets.SecretKey,
	})
	if err != nil {
		observability.CLILogger.Error(fmt.Sprintf("[%d/%d] Checking COS bucket... ❌ %v", checkNum, totalChecks, err))
		printCOSHelp()
		return false
	}
	observability.CLILogger.Info(fmt.Sprintf("[%d/%d] Checking COS bucket... ✅ %s", checkNum, totalChecks, secrets.COSBucket),
		zap.String("bucket", secrets.COSBucket),
		zap.String("region", secrets.COSRegionOrDefault()))
	return allChecks
}

// maskAccessKey masks all but the last 4 characters of an access key.
func maskAccessKey(key string) string {
	if len(key) <= 4 {
		return "****"
	}
	return "****" + key[len(key)-4:]
}

// printSecretsHelp prints help for creating a secrets file.
func printSecretsHelp() {
	observability.CLILogger.Info("")
	observability.CLILogger.Info("To configure credentials, create a JSON secrets file:")
	observability.CLILogger.Info(`  {"secret_id": "AKID...", "secret_key": "...", "region": "ap-singapore"}`)
	observability.CLILogger.Info("Searched, in order:")
	for _, p := range config.SecretsSearchPaths(rootSecrets) {
		observability.CLILogger.Info("  - " + p)
	}
	observability.CLILogger.Info("")
}

// printCOSHelp prints help for enabling local file uploads.
func printCOSHelp() {
	observability.CLILogger.Info("")
	observability.CLILogger.Info("To upload local model files, add to the secrets file:")
	observability.CLILogger.Info(`  "cos_bucket": "<bucket>-<appid>", "cos_region": "ap-singapore"`)
	observability.CLILogger.Info("The bucket must allow public-read objects so the API can fetch them.")
	observability.CLILogger.Info("")
}
