package fleet

import (
	"context"
	"fmt"
	"sort"
	"time"

	"github.com/fleetpulse/fleetpulse/pkg/api"
)

const (
	shortActivityWindowDays = 7
	longActivityWindowDays  = 30
	topPackagesLimit        = 10
	recentActivityLimit     = 20
)

// today returns the current calendar day at midnight UTC, comparable with
// dates produced by api.ParseDate.
func (e *Engine) today() time.Time {
	y, m, d := e.now().Date()
	return time.Date(y, m, d, 0, 0, 0, 0, time.UTC)
}

// GetFleetStatistics computes rollups over the host roster and the first
// fleetScanLimit records. Records without a parseable date count towards
// the totals only.
func (e *Engine) GetFleetStatistics(ctx context.Context) (stats *FleetStatistics, err error) {
	ctx, span := e.telemetry.StartSpan(ctx, "mcp_tool_get_fleet_statistics")
	defer func() { span.End(err) }()

	hosts, err := e.backend.ListHosts(ctx)
	if err != nil {
		return nil, fmt.Errorf("failed to get fleet statistics: %w", err)
	}
	updates, err := e.GetAllUpdates(ctx, UpdatesQuery{Limit: fleetScanLimit})
	if err != nil {
		return nil, fmt.Errorf("failed to get fleet statistics: %w", err)
	}

	stats = computeStatistics(hosts, updates, e.today())
	span.SetAttribute("stats.total_hosts", stats.TotalHosts)
	span.SetAttribute("stats.total_reports", stats.TotalReports)
	return stats, nil
}

func computeStatistics(hosts []string, updates []api.PackageUpdate, today time.Time) *FleetStatistics {
	shortCutoff := today.AddDate(0, 0, -shortActivityWindowDays)
	longCutoff := today.AddDate(0, 0, -longActivityWindowDays)

	packages := make(map[string]struct{})
	activeShort := make(map[string]struct{})
	activeLong := make(map[string]struct{})

	var packageOrder []string
	updateCounts := make(map[string]int)
	recent := make([]ActivityEntry, 0)

	for _, u := range updates {
		if u.Name != "" {
			packages[u.Name] = struct{}{}
		}

		d, ok := u.ParsedDate()
		if !ok {
			continue
		}

		if !d.Before(shortCutoff) {
			activeShort[u.Hostname] = struct{}{}
		}
		if !d.Before(longCutoff) {
			activeLong[u.Hostname] = struct{}{}
		}

		if u.Name != "" {
			if updateCounts[u.Name] == 0 {
				packageOrder = append(packageOrder, u.Name)
			}
			updateCounts[u.Name]++
		}

		if !d.Before(shortCutoff) {
			recent = append(recent, ActivityEntry{
				Date:       u.UpdateDate,
				Hostname:   u.Hostname,
				Package:    u.Name,
				OldVersion: u.OldVersion,
				NewVersion: u.NewVersion,
			})
		}
	}

	top := make([]PackageCount, 0, len(packageOrder))
	for _, name := range packageOrder {
		top = append(top, PackageCount{Package: name, UpdateCount: updateCounts[name]})
	}
	sort.SliceStable(top, func(i, j int) bool {
		return top[i].UpdateCount > top[j].UpdateCount
	})

	sort.SliceStable(recent, func(i, j int) bool {
		return recent[i].Date > recent[j].Date
	})

	return &FleetStatistics{
		TotalHosts:            len(hosts),
		TotalReports:          len(updates),
		TotalPackages:         len(packages),
		ActiveHostsLast7Days:  len(activeShort),
		ActiveHostsLast30Days: len(activeLong),
		MostUpdatedPackages:   paginate(top, 0, topPackagesLimit),
		RecentActivity:        paginate(recent, 0, recentActivityLimit),
	}
}
