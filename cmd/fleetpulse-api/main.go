// Package main is the entry point for the FleetPulse reporting API
package main

import (
	"os"

	"github.com/spf13/cobra"
	"github.com/stacklok/toolhive/pkg/logger"

	"github.com/fleetpulse/fleetpulse/cmd/fleetpulse-api/app"
	"github.com/fleetpulse/fleetpulse/internal/versions"
)

func main() {
	logger.Initialize()

	rootCmd := &cobra.Command{
		Use:     "fleetpulse-api",
		Short:   "FleetPulse reporting API",
		Long:    `FleetPulse reporting API receives package update reports from hosts and serves their history.`,
		Version: versions.GetVersionInfo().Version,
	}

	rootCmd.PersistentFlags().String("config", "", "Path to an optional configuration file (YAML format)")
	rootCmd.PersistentFlags().String("env-file", "", "Path to a .env file (defaults to ./.env when present)")
	rootCmd.PersistentFlags().String("database-url", "", "PostgreSQL connection URL")
	rootCmd.PersistentFlags().String("store", "memory", "Storage backend: memory or postgres")

	app.BindPersistentFlags(rootCmd)

	rootCmd.AddCommand(app.ServeCmd())
	rootCmd.AddCommand(app.MigrateCmd())
	rootCmd.AddCommand(app.SeedCmd())
	rootCmd.AddCommand(app.VersionCmd())

	if err := rootCmd.Execute(); err != nil {
		logger.Errorf("Command failed: %v", err)
		os.Exit(1)
	}
}
