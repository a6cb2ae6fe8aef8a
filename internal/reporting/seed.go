package reporting

import (
	"context"
	"fmt"
	"os"
	"time"

	"gopkg.in/yaml.v3"

	"github.com/fleetpulse/fleetpulse/pkg/api"
)

// SeedResult summarizes a Seed call.
type SeedResult struct {
	Hosts    int
	Packages int
}

// Seed validates and stores every report. It stops at the first invalid or
// failing report; reports stored before it are kept.
func Seed(ctx context.Context, store Store, reports []api.UpdateIn) (SeedResult, error) {
	var result SeedResult
	hosts := make(map[string]struct{})
	for i, in := range reports {
		report, err := ParseReport(in)
		if err != nil {
			return result, fmt.Errorf("report %d (%s): %w", i, in.Hostname, err)
		}
		n, err := store.InsertReport(ctx, report)
		if err != nil {
			return result, err
		}
		result.Packages += n
		if _, ok := hosts[report.Hostname]; !ok {
			hosts[report.Hostname] = struct{}{}
			result.Hosts++
		}
	}
	return result, nil
}

// LoadSeedFile reads a YAML list of reports.
func LoadSeedFile(path string) ([]api.UpdateIn, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("failed to read seed file: %w", err)
	}
	var reports []api.UpdateIn
	if err := yaml.Unmarshal(data, &reports); err != nil {
		return nil, fmt.Errorf("failed to parse seed file %s: %w", path, err)
	}
	return reports, nil
}

// SampleReports returns the demo fleet, dated relative to now.
func SampleReports(now time.Time) []api.UpdateIn {
	today := now.Format(api.DateLayout)
	yesterday := now.AddDate(0, 0, -1).Format(api.DateLayout)
	lastWeek := now.AddDate(0, 0, -7).Format(api.DateLayout)

	return []api.UpdateIn{
		{
			Hostname:   "web-server-01",
			OS:         "ubuntu",
			UpdateDate: today,
			UpdatedPackages: []api.PackageChange{
				{Name: "nginx", OldVersion: "1.18.0", NewVersion: "1.20.2"},
				{Name: "curl", OldVersion: "7.68.0", NewVersion: "7.81.0"},
			},
		},
		{
			Hostname:   "web-server-02",
			OS:         "ubuntu",
			UpdateDate: today,
			UpdatedPackages: []api.PackageChange{
				{Name: "apache2", OldVersion: "2.4.41", NewVersion: "2.4.52"},
				{Name: "openssl", OldVersion: "1.1.1f", NewVersion: "1.1.1k"},
			},
		},
		{
			Hostname:   "db-server-01",
			OS:         "centos",
			UpdateDate: yesterday,
			UpdatedPackages: []api.PackageChange{
				{Name: "postgresql", OldVersion: "13.4", NewVersion: "13.8"},
				{Name: "systemd", OldVersion: "245", NewVersion: "246"},
			},
		},
		{
			Hostname:   "api-server-01",
			OS:         "debian",
			UpdateDate: lastWeek,
			UpdatedPackages: []api.PackageChange{
				{Name: "python3", OldVersion: "3.9.2", NewVersion: "3.9.7"},
				{Name: "git", OldVersion: "2.30.2", NewVersion: "2.32.0"},
				{Name: "nginx", OldVersion: "1.18.0", NewVersion: "1.20.2"},
			},
		},
		{
			Hostname:   "monitoring-server",
			OS:         "ubuntu",
			UpdateDate: lastWeek,
			UpdatedPackages: []api.PackageChange{
				{Name: "prometheus", OldVersion: "2.28.1", NewVersion: "2.30.3"},
				{Name: "grafana", OldVersion: "8.0.6", NewVersion: "8.2.0"},
			},
		},
	}
}
