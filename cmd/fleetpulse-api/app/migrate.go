package app

import (
	"fmt"

	"github.com/spf13/cobra"
	"github.com/stacklok/toolhive/pkg/logger"

	"github.com/fleetpulse/fleetpulse/internal/reporting"
)

// MigrateCmd returns the migrate command and its up, down and version subcommands
func MigrateCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "migrate",
		Short: "Manage the PostgreSQL schema",
	}

	cmd.AddCommand(&cobra.Command{
		Use:   "up",
		Short: "Apply every pending migration",
		RunE: withMigrator(func(m *reporting.Migrator) error {
			return m.Up()
		}),
	})
	cmd.AddCommand(&cobra.Command{
		Use:   "down",
		Short: "Revert every applied migration",
		RunE: withMigrator(func(m *reporting.Migrator) error {
			if err := m.Down(); err != nil {
				return err
			}
			logger.Info("Database migrations reverted")
			return nil
		}),
	})
	cmd.AddCommand(&cobra.Command{
		Use:   "version",
		Short: "Print the current schema version",
		RunE: withMigrator(func(m *reporting.Migrator) error {
			version, dirty, err := m.Version()
			if err != nil {
				return fmt.Errorf("failed to read schema version: %w", err)
			}
			fmt.Printf("Schema version: %d (dirty: %t)\n", version, dirty)
			return nil
		}),
	})

	return cmd
}

func withMigrator(fn func(*reporting.Migrator) error) func(*cobra.Command, []string) error {
	return func(_ *cobra.Command, _ []string) error {
		cfg, err := loadConfig()
		if err != nil {
			return err
		}

		m, err := reporting.NewMigrator(cfg.API.DatabaseURL)
		if err != nil {
			return err
		}
		defer func() {
			if err := m.Close(); err != nil {
				logger.Errorf("Failed to close migrator: %v", err)
			}
		}()

		return fn(m)
	}
}
