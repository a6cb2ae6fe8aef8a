package app

import (
	"context"
	"fmt"
	"time"

	"github.com/spf13/cobra"
	"github.com/stacklok/toolhive/pkg/logger"

	"github.com/fleetpulse/fleetpulse/internal/config"
	"github.com/fleetpulse/fleetpulse/internal/reporting"
	"github.com/fleetpulse/fleetpulse/pkg/api"
)

// SeedCmd returns the seed command
func SeedCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "seed",
		Short: "Load reports into the store",
		Long: `Load package update reports into the configured store.

Without --file the demo fleet is loaded, dated relative to today. A seed file
is a YAML list of reports:

  - hostname: web-01
    os: ubuntu
    update_date: "2024-06-01"
    updated_packages:
      - {name: nginx, old_version: 1.18.0, new_version: 1.20.2}`,
		RunE: runSeed,
	}

	cmd.Flags().String("file", "", "Path to a YAML seed file")

	return cmd
}

func runSeed(cmd *cobra.Command, _ []string) error {
	ctx := context.Background()

	cfg, err := loadConfig()
	if err != nil {
		return err
	}

	if cfg.API.Store == config.StoreTypeMemory {
		logger.Warnf("Seeding the in-memory store has no lasting effect, use serve --sample-data or --store postgres")
	}

	var reports []api.UpdateIn
	if path, _ := cmd.Flags().GetString("file"); path != "" {
		if reports, err = reporting.LoadSeedFile(path); err != nil {
			return err
		}
		logger.Infof("Loaded %d reports from %s", len(reports), path)
	} else {
		reports = reporting.SampleReports(time.Now())
	}

	store, err := openStore(ctx, cfg, false)
	if err != nil {
		return fmt.Errorf("failed to open store: %w", err)
	}
	defer store.Close()

	result, err := reporting.Seed(ctx, store, reports)
	if err != nil {
		return fmt.Errorf("failed to seed store: %w", err)
	}

	logger.Infof("Seeded %d hosts with %d package updates", result.Hosts, result.Packages)
	return nil
}
