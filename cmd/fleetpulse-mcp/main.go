// Package main is the entry point for the FleetPulse MCP server
package main

import (
	"os"

	"github.com/spf13/cobra"
	"github.com/stacklok/toolhive/pkg/logger"

	"github.com/fleetpulse/fleetpulse/cmd/fleetpulse-mcp/app"
	"github.com/fleetpulse/fleetpulse/internal/versions"
)

func main() {
	logger.Initialize()

	rootCmd := &cobra.Command{
		Use:   "fleetpulse-mcp",
		Short: "FleetPulse MCP Server",
		Long: `FleetPulse MCP Server exposes fleet-wide package update data to AI assistants
through MCP (Model Context Protocol) tools and a read-only REST API.`,
		Version: versions.GetVersionInfo().Version,
	}

	rootCmd.AddCommand(app.ServeCmd())
	rootCmd.AddCommand(app.VersionCmd())

	if err := rootCmd.Execute(); err != nil {
		logger.Errorf("Command failed: %v", err)
		os.Exit(1)
	}
}
