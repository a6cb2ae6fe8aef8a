// Package app implements the fleetpulse-api commands.
package app

import (
	"context"
	"fmt"

	"github.com/spf13/cobra"
	"github.com/spf13/viper"
	"github.com/stacklok/toolhive/pkg/logger"

	"github.com/fleetpulse/fleetpulse/internal/config"
	"github.com/fleetpulse/fleetpulse/internal/reporting"
)

// BindPersistentFlags binds the root command's shared flags into viper.
func BindPersistentFlags(root *cobra.Command) {
	flags := root.PersistentFlags()
	_ = viper.BindPFlag("config", flags.Lookup("config"))
	_ = viper.BindPFlag("env_file", flags.Lookup("env-file"))
	_ = viper.BindPFlag("api.store", flags.Lookup("store"))
	_ = viper.BindPFlag("api.database_url", flags.Lookup("database-url"))
}

func loadConfig() (*config.Config, error) {
	cfg, err := config.LoadConfig(
		config.WithViper(viper.GetViper()),
		config.WithConfigPath(viper.GetString("config")),
		config.WithEnvFile(viper.GetString("env_file")),
	)
	if err != nil {
		return nil, fmt.Errorf("failed to load configuration: %w", err)
	}
	return cfg, nil
}

// openStore opens the configured store. The PostgreSQL schema is migrated
// first when migrate is set.
func openStore(ctx context.Context, cfg *config.Config, migrate bool) (reporting.Store, error) {
	switch cfg.API.Store {
	case config.StoreTypePostgres:
		if migrate {
			if err := reporting.Migrate(cfg.API.DatabaseURL); err != nil {
				return nil, err
			}
		}
		store, err := reporting.NewPostgresStore(ctx, cfg.API.DatabaseURL)
		if err != nil {
			return nil, err
		}
		logger.Info("Using PostgreSQL store")
		return store, nil
	case config.StoreTypeMemory, "":
		logger.Info("Using in-memory store, data is lost on exit")
		return reporting.NewMemoryStore(), nil
	default:
		return nil, fmt.Errorf("unsupported store type: %s", cfg.API.Store)
	}
}
