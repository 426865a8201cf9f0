package app

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/go-chi/chi/v5/middleware"
	"github.com/spf13/cobra"
	"github.com/spf13/viper"

	"github.com/repolens/repolens-server/internal/api"
	"github.com/repolens/repolens-server/internal/config"
	"github.com/repolens/repolens-server/internal/service"
	"github.com/repolens/repolens-server/internal/telemetry"
	"github.com/repolens/repolens-server/internal/versions"
)

var serveCmd = &cobra.Command{
	Use:   "serve",
	Short: "Start the repository inspection API server",
	Long: `Start the API server that answers branch, diff, file, and commit
queries against remote GitLab repositories.

Without --config the server runs with defaults: the git provider, an
XDG cache directory, and the token (if any) from the ` + config.TokenEnvVar + `
environment variable.`,
	RunE: runServe,
}

const (
	defaultGracefulTimeout = 30 * time.Second
	serverReadTimeout      = 10 * time.Second
	// Clone-backed requests can take a while on first contact with a big
	// repository, so the write timeout is generous.
	serverWriteTimeout = 15 * time.Minute
	serverIdleTimeout  = 60 * time.Second
)

func init() {
	serveCmd.Flags().String("address", "", "Address to listen on (overrides configuration)")
	serveCmd.Flags().String("config", "", "Path to configuration file (YAML format)")

	if err := viper.BindPFlag("address", serveCmd.Flags().Lookup("address")); err != nil {
		slog.Error("Failed to bind address flag", "error", err)
		os.Exit(1)
	}
	if err := viper.BindPFlag("config", serveCmd.Flags().Lookup("config")); err != nil {
		slog.Error("Failed to bind config flag", "error", err)
		os.Exit(1)
	}
}

func loadConfig() (*config.Config, error) {
	configPath := viper.GetString("config")
	if configPath == "" {
		return config.Default(), nil
	}

	cfg, err := config.LoadConfig(config.WithConfigPath(configPath))
	if err != nil {
		return nil, fmt.Errorf("failed to load configuration: %w", err)
	}
	slog.Info("Loaded configuration", "path", configPath, "provider", cfg.Provider)
	return cfg, nil
}

func runServe(_ *cobra.Command, _ []string) error {
	ctx := context.Background()

	cfg, err := loadConfig()
	if err != nil {
		return err
	}

	address := viper.GetString("address")
	if address == "" {
		address = cfg.Server.Address
	}

	svc, err := service.NewRepositoryService(cfg)
	if err != nil {
		return fmt.Errorf("failed to create repository service: %w", err)
	}

	metricsEnabled := cfg.Metrics != nil && cfg.Metrics.Enabled
	meterProvider, metricsHandler, err := telemetry.NewMeterProvider(ctx,
		telemetry.WithMetricsEnabled(metricsEnabled),
		telemetry.WithMeterServiceName(telemetry.DefaultServiceName),
		telemetry.WithMeterServiceVersion(versions.GetVersionInfo().Version),
	)
	if err != nil {
		return fmt.Errorf("failed to create meter provider: %w", err)
	}
	defer func() {
		if shutter, ok := meterProvider.(interface{ Shutdown(context.Context) error }); ok {
			if err := shutter.Shutdown(context.Background()); err != nil {
				slog.Error("Failed to shut down meter provider", "error", err)
			}
		}
	}()

	metricsMiddleware, err := telemetry.MetricsMiddleware(meterProvider)
	if err != nil {
		return fmt.Errorf("failed to create metrics middleware: %w", err)
	}

	serverOpts := []api.ServerOption{
		api.WithMiddlewares(
			middleware.RequestID,
			middleware.RealIP,
			middleware.Recoverer,
			metricsMiddleware,
			api.LoggingMiddleware,
		),
	}
	if metricsHandler != nil {
		serverOpts = append(serverOpts, api.WithMetricsHandler(metricsHandler))
	}

	router := api.NewServer(svc, serverOpts...)

	server := &http.Server{
		Addr:         address,
		Handler:      router,
		ReadTimeout:  serverReadTimeout,
		WriteTimeout: serverWriteTimeout,
		IdleTimeout:  serverIdleTimeout,
	}

	go func() {
		slog.Info("Server listening", "address", address, "provider", cfg.Provider)
		if err := server.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			slog.Error("Failed to start server", "error", err)
			os.Exit(1)
		}
	}()

	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
	<-quit
	slog.Info("Shutting down server...")

	shutdownCtx, cancel := context.WithTimeout(context.Background(), defaultGracefulTimeout)
	defer cancel()

	if err := server.Shutdown(shutdownCtx); err != nil {
		slog.Error("Server forced to shutdown", "error", err)
		return err
	}

	slog.Info("Server shutdown complete")
	return nil
}
