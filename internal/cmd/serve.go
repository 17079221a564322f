package cmd

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"syscall"

	"github.com/fulmenhq/gofulmen/foundry"
	"github.com/spf13/cobra"
	"go.uber.org/zap"

	"github.com/3leaps/hy3d/internal/observability"
	"github.com/3leaps/hy3d/internal/server"
	"github.com/3leaps/hy3d/internal/server/handlers"
	"github.com/3leaps/hy3d/pkg/jobregistry"
)

var serveCmd = &cobra.Command{
	Use:   "serve",
	Short: "Serve a read-only HTTP view of the job registry",
	Long: `Start an HTTP server exposing the local job registry.

Routes:
  GET /health, /health/live, /health/ready, /health/startup
  GET /version
  GET /jobs?state=&kind=&limit=
  GET /jobs/{id}

Examples:
  hy3d serve
  hy3d serve --host 0.0.0.0 --port 9000`,
	Args: cobra.NoArgs,
	RunE: runServe,
}

var (
	serveHost string
	servePort int
)

func init() {
	rootCmd.AddCommand(serveCmd)

	serveCmd.Flags().StringVar(&serveHost, "host", "", "Listen host (default from config, localhost)")
	serveCmd.Flags().IntVar(&servePort, "port", 0, "Listen port (default from config, 8080)")
}

func runServe(cmd *cobra.Command, args []string) error {
	cfg, err := currentConfig(cmd.Context())
	if err != nil {
		return exitError(foundry.ExitInvalidArgument, "Invalid configuration", err)
	}
	host := cfg.Server.Host
	if cmd.Flags().Changed("host") {
		host = serveHost
	}
	port := cfg.Server.Port
	if cmd.Flags().Changed("port") {
		port = servePort
	}

	identity := GetAppIdentity()
	handlers.InitHealthManager(versionInfo.Version)
	hm := handlers.GetHealthManager()
	hm.RegisterChecker("signal", signalHealthChecker{})
	if identity != nil {
		hm.RegisterChecker("identity", identityHealthChecker{
			binaryName: identity.BinaryName,
			envPrefix:  identity.EnvPrefix,
			configName: identity.ConfigName,
		})
	}
	store := jobregistry.NewStore(cfg.Jobs.Root)
	hm.RegisterChecker("registry", registryHealthChecker{store: store})

	srv := server.NewWithOptions(host, port, server.Options{
		Jobs: store,
		Version: handlers.VersionInfo{
			Version:   versionInfo.Version,
			Commit:    versionInfo.Commit,
			BuildDate: versionInfo.BuildDate,
		},
		Logger:       observability.CLILogger,
		ReadTimeout:  cfg.Server.ReadTimeout,
		WriteTimeout: cfg.Server.WriteTimeout,
		IdleTimeout:  cfg.Server.IdleTimeout,
	})

	ctx, stop := signal.NotifyContext(cmd.Context(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	errCh := make(chan error, 1)
	go func() {
		observability.CLILogger.Info("Starting server",
			zap.String("addr", srv.Addr()),
			zap.String("jobs_root", store.RootDir()))
		errCh <- srv.Start()
	}()

	select {
	case err := <-errCh:
		if err != nil && !errors.Is(err, http.ErrServerClosed) {
			return exitError(foundry.ExitExternalServiceUnavailable, "Server failed", err)
		}
		return nil
	case <-ctx.Done():
	}

	observability.CLILogger.Info("Shutting down server")
	shutdownCtx, cancel := context.WithTimeout(context.Background(), cfg.Server.ShutdownTimeout)
	defer cancel()
	if err := srv.Shutdown(shutdownCtx); err != nil {
		return exitError(foundry.ExitExternalServiceUnavailable, "Server shutdown failed", err)
	}
	return nil
}

// signalHealthChecker reports healthy while the process is serving.
type signalHealthChecker struct{}

func (signalHealthChecker) CheckHealth(ctx context.Context) error {
	return nil
}

// identityHealthChecker verifies the application identity is complete.
type identityHealthChecker struct {
	binaryName string
	envPrefix  string
	configName string
}

func (c identityHealthChecker) CheckHealth(ctx context.Context) error {
	switch {
	case c.binaryName == "":
		return fmt.Errorf("identity missing binary name")
	case c.envPrefix == "":
		return fmt.Errorf("identity missing env prefix")
	case c.configName == "":
		return fmt.Errorf("identity missing config name")
	}
	return nil
}

// registryHealthChecker verifies the job registry can be listed.
type registryHealthChecker struct {
	store *jobregistry.Store
}

func (c registryHealthChecker) CheckHealth(ctx context.Context) error {
	if _, err := c.store.List(); err != nil {
		return fmt.Errorf("job registry unreadable: %w", err)
	}
	return nil
}
