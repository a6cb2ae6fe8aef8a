package fleet

import (
	"context"
	"fmt"
	"sort"

	"github.com/fleetpulse/fleetpulse/internal/telemetry"
	"github.com/fleetpulse/fleetpulse/pkg/api"
)

// GetUpdateReports groups update records into per-host, per-day reports,
// newest first. limit and offset page the underlying records, not reports.
func (e *Engine) GetUpdateReports(ctx context.Context, hostname string, limit, offset int) (reports []UpdateReport, err error) {
	ctx, span := e.telemetry.StartSpan(ctx, "mcp_tool_get_update_reports", telemetry.Attr("hostname", hostname))
	defer func() { span.End(err) }()

	updates, err := e.GetAllUpdates(ctx, UpdatesQuery{Hostname: hostname, Limit: limit, Offset: offset})
	if err != nil {
		return nil, fmt.Errorf("failed to get update reports: %w", err)
	}

	reports = groupReports(updates, e.today().Format(api.DateLayout))
	span.SetAttribute("reports.count", len(reports))
	return reports, nil
}

// GetHostReports returns the reports of a single host.
func (e *Engine) GetHostReports(ctx context.Context, hostname string, limit, offset int) ([]UpdateReport, error) {
	if hostname == "" {
		return nil, fmt.Errorf("%w: hostname is required", ErrInvalidArgument)
	}
	return e.GetUpdateReports(ctx, hostname, limit, offset)
}

// groupReports groups records by hostname, then by update_date, both in
// first-seen order, numbers the groups from 1 in that order and sorts them
// newest first. Records without a date are filed under fallbackDate.
func groupReports(updates []api.PackageUpdate, fallbackDate string) []UpdateReport {
	type hostGroup struct {
		dates  []string
		byDate map[string]*UpdateReport
	}

	var hostOrder []string
	groups := make(map[string]*hostGroup)
	for _, u := range updates {
		g, ok := groups[u.Hostname]
		if !ok {
			g = &hostGroup{byDate: make(map[string]*UpdateReport)}
			groups[u.Hostname] = g
			hostOrder = append(hostOrder, u.Hostname)
		}

		date := u.UpdateDate
		if date == "" {
			date = fallbackDate
		}
		r, ok := g.byDate[date]
		if !ok {
			os := u.OS
			if os == "" {
				os = "unknown"
			}
			r = &UpdateReport{
				Hostname:        u.Hostname,
				OS:              os,
				UpdateDate:      date,
				UpdatedPackages: []api.PackageChange{},
			}
			g.byDate[date] = r
			g.dates = append(g.dates, date)
		}
		r.UpdatedPackages = append(r.UpdatedPackages, api.PackageChange{
			Name:       u.Name,
			OldVersion: u.OldVersion,
			NewVersion: u.NewVersion,
		})
	}

	reports := make([]UpdateReport, 0)
	for _, host := range hostOrder {
		g := groups[host]
		for _, date := range g.dates {
			r := *g.byDate[date]
			r.ID = len(reports) + 1
			reports = append(reports, r)
		}
	}

	sort.SliceStable(reports, func(i, j int) bool {
		return reports[i].UpdateDate > reports[j].UpdateDate
	})
	return reports
}
