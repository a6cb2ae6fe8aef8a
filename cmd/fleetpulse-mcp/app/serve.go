package app

import (
	"context"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	sdkmcp "github.com/modelcontextprotocol/go-sdk/mcp"
	"github.com/spf13/cobra"
	"github.com/spf13/viper"
	"github.com/stacklok/toolhive/pkg/logger"

	"github.com/fleetpulse/fleetpulse/internal/backend"
	"github.com/fleetpulse/fleetpulse/internal/config"
	"github.com/fleetpulse/fleetpulse/internal/fleet"
	"github.com/fleetpulse/fleetpulse/internal/mcp"
	"github.com/fleetpulse/fleetpulse/internal/telemetry"
	"github.com/fleetpulse/fleetpulse/internal/versions"
)

const (
	defaultGracefulTimeout = 30 * time.Second
	startupCheckTimeout    = 10 * time.Second
)

// ServeCmd returns the serve command for the MCP server
func ServeCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "serve",
		Short: "Start the MCP server",
		Long: `Start the FleetPulse MCP server. Every tool reads the FleetPulse reporting
API configured with --backend-url (or FLEETPULSE_BACKEND_URL).

Transport modes:
- http: REST endpoints, JSON-RPC on /rpc and streamable MCP on /mcp (default)
- stdio: Standard input/output for direct MCP client connections`,
		RunE: runServe,
	}

	cmd.Flags().String("config", "", "Path to an optional configuration file (YAML format)")
	cmd.Flags().String("env-file", "", "Path to a .env file (defaults to ./.env when present)")
	cmd.Flags().String("backend-url", "http://localhost:8000", "Base URL of the FleetPulse reporting API")
	cmd.Flags().String("host", "0.0.0.0", "Host to listen on (HTTP mode)")
	cmd.Flags().Int("port", 8001, "Port to listen on (HTTP mode)")
	cmd.Flags().String("transport", config.TransportHTTP, "Transport mode: http or stdio")
	cmd.Flags().Int("concurrency", 1, "Maximum concurrent per-host backend requests")

	_ = viper.BindPFlag("config", cmd.Flags().Lookup("config"))
	_ = viper.BindPFlag("env_file", cmd.Flags().Lookup("env-file"))
	_ = viper.BindPFlag("backend.url", cmd.Flags().Lookup("backend-url"))
	_ = viper.BindPFlag("mcp.host", cmd.Flags().Lookup("host"))
	_ = viper.BindPFlag("mcp.port", cmd.Flags().Lookup("port"))
	_ = viper.BindPFlag("mcp.transport", cmd.Flags().Lookup("transport"))
	_ = viper.BindPFlag("mcp.concurrency", cmd.Flags().Lookup("concurrency"))

	return cmd
}

func runServe(_ *cobra.Command, _ []string) error {
	ctx := context.Background()

	cfg, err := config.LoadConfig(
		config.WithViper(viper.GetViper()),
		config.WithConfigPath(viper.GetString("config")),
		config.WithEnvFile(viper.GetString("env_file")),
	)
	if err != nil {
		return fmt.Errorf("failed to load configuration: %w", err)
	}

	logger.Infof("Loaded configuration (backend: %s, transport: %s, concurrency: %d)",
		cfg.Backend.URL, cfg.MCP.Transport, cfg.MCP.Concurrency)

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

	client, err := backend.NewClient(cfg.Backend.URL,
		backend.WithTimeout(cfg.Backend.Timeout()),
		backend.WithMaxRetries(cfg.Backend.MaxRetries),
		backend.WithTelemetry(tel),
	)
	if err != nil {
		return fmt.Errorf("failed to create backend client: %w", err)
	}
	defer client.Close()

	checkCtx, cancel := context.WithTimeout(ctx, startupCheckTimeout)
	if client.ValidateConnection(checkCtx) {
		logger.Infof("Connected to FleetPulse backend at %s", cfg.Backend.URL)
	} else {
		logger.Warnf("FleetPulse backend at %s is not reachable, tools will fail until it is", cfg.Backend.URL)
	}
	cancel()

	engine := fleet.NewEngine(client,
		fleet.WithConcurrency(cfg.MCP.Concurrency),
		fleet.WithTelemetry(tel),
	)
	mcpServer := mcp.NewServer(engine)

	switch cfg.MCP.Transport {
	case config.TransportStdio:
		return runStdioMode(ctx, mcpServer.GetSDKServer())
	case config.TransportHTTP:
		handler := mcp.NewTransport(mcpServer, mcp.ServiceInfo{
			Version:    versions.Version,
			BackendURL: cfg.Backend.URL,
			Metrics:    telemetry.MetricsHandler(tel),
		}).Router()
		return runHTTPMode(ctx, cfg.MCP.Address(), handler)
	default:
		return fmt.Errorf("unsupported transport mode: %s (use 'http' or 'stdio')", cfg.MCP.Transport)
	}
}

func runStdioMode(ctx context.Context, sdkServer *sdkmcp.Server) error {
	logger.Info("Starting MCP server in stdio mode")

	ctx, cancel := context.WithCancel(ctx)
	defer cancel()

	sigChan := make(chan os.Signal, 1)
	signal.Notify(sigChan, syscall.SIGINT, syscall.SIGTERM)
	defer signal.Stop(sigChan)

	errChan := make(chan error, 1)
	go func() {
		errChan <- sdkServer.Run(ctx, &sdkmcp.StdioTransport{})
	}()

	select {
	case err := <-errChan:
		if err != nil {
			return fmt.Errorf("stdio transport error: %w", err)
		}
		return nil
	case sig := <-sigChan:
		logger.Infof("Received signal %v, shutting down", sig)
		cancel()
		select {
		case <-errChan:
			return nil
		case <-time.After(defaultGracefulTimeout):
			return fmt.Errorf("shutdown timeout exceeded")
		}
	}
}

func runHTTPMode(ctx context.Context, address string, handler http.Handler) error {
	logger.Infof("Starting MCP server in HTTP mode on %s", address)

	// Fleet-wide tools read every host before answering.
	server := &http.Server{
		Addr:              address,
		Handler:           handler,
		ReadTimeout:       15 * time.Second,
		WriteTimeout:      2 * time.Minute,
		IdleTimeout:       60 * time.Second,
		ReadHeaderTimeout: 5 * time.Second,
	}

	return serveHTTP(ctx, server, "MCP server")
}

// serveHTTP runs server until it fails or the process is signalled, then
// shuts it down gracefully.
func serveHTTP(ctx context.Context, server *http.Server, name string) error {
	serverErrors := make(chan error, 1)
	go func() {
		logger.Infof("%s listening on %s", name, server.Addr)
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

		logger.Infof("%s stopped gracefully", name)
		return nil
	}
}
