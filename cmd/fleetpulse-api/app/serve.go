package app

import (
	"context"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/spf13/cobra"
	"github.com/spf13/viper"
	"github.com/stacklok/toolhive/pkg/logger"

	"github.com/fleetpulse/fleetpulse/internal/reporting"
	"github.com/fleetpulse/fleetpulse/internal/telemetry"
)

const defaultGracefulTimeout = 30 * time.Second

// ServeCmd returns the serve command for the reporting API
func ServeCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "serve",
		Short: "Start the reporting API",
		Long: `Start the FleetPulse reporting API.

Stores:
- memory: records are kept in process memory (default)
- postgres: records are kept in PostgreSQL (--database-url or DATABASE_URL)`,
		RunE: runServe,
	}

	cmd.Flags().String("host", "0.0.0.0", "Host to listen on")
	cmd.Flags().Int("port", 8000, "Port to listen on")
	cmd.Flags().Bool("migrate", false, "Apply database migrations before serving (postgres store)")
	cmd.Flags().Bool("sample-data", false, "Load the demo fleet before serving")

	_ = viper.BindPFlag("api.host", cmd.Flags().Lookup("host"))
	_ = viper.BindPFlag("api.port", cmd.Flags().Lookup("port"))
	_ = viper.BindPFlag("serve.migrate", cmd.Flags().Lookup("migrate"))
	_ = viper.BindPFlag("serve.sample_data", cmd.Flags().Lookup("sample-data"))

	return cmd
}

func runServe(_ *cobra.Command, _ []string) error {
	ctx := context.Background()

	cfg, err := loadConfig()
	if err != nil {
		return err
	}

	store, err := openStore(ctx, cfg, viper.GetBool("serve.migrate"))
	if err != nil {
		return fmt.Errorf("failed to open store: %w", err)
	}
	defer store.Close()

	if viper.GetBool("serve.sample_data") {
		result, err := reporting.Seed(ctx, store, reporting.SampleReports(time.Now()))
		if err != nil {
			return fmt.Errorf("failed to load sample data: %w", err)
		}
		logger.Infof("Loaded sample data: %d hosts, %d package updates", result.Hosts, result.Packages)
	}

	tel := telemetry.New(telemetry.Config{
		Enabled:     cfg.Telemetry.Enabled,
		ServiceName: cfg.Telemetry.ServiceName,
		SampleRate:  cfg.Telemetry.SampleRate,
	})
	defer func() {
		if err := tel.Shutdown(ctx); err != nil {
			logger.Errorf("Failed to shut down telemetry: %v", err)
		}
	}()

	server := &http.Server{
		Addr:              cfg.API.Address(),
		Handler: reporting.NewAPI(store,
			reporting.WithTelemetry(tel),
			reporting.WithMetrics(telemetry.MetricsHandler(tel)),
		).Router(),
		ReadTimeout:       15 * time.Second,
		WriteTimeout:      15 * time.Second,
		IdleTimeout:       60 * time.Second,
		ReadHeaderTimeout: 5 * time.Second,
	}

	serverErrors := make(chan error, 1)
	go func() {
		logger.Infof("Reporting API listening on %s", server.Addr)
		serverErrors <- server.ListenAndServe()
	}()

	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
	defer signal.Stop(quit)

	select {
	case err := <-serverErrors:
		return fmt.Errorf("server error: %w", err)
	case sig := <-quit:
		logger.Infof("Received signal %v, shutting down gracefully", sig)

		shutdownCtx, cancel := context.WithTimeout(ctx, defaultGracefulTimeout)
		defer cancel()

		if err := server.Shutdown(shutdownCtx); err != nil {
			return fmt.Errorf("graceful shutdown failed: %w", err)
		}

		logger.Info("Reporting API stopped gracefully")
		return nil
	}
}
