// Package reporting implements the FleetPulse reporting API: ingestion of
// per-host package update reports and the history queries the aggregation
// layer reads from.
package reporting

import (
	"context"
	"time"

	"github.com/fleetpulse/fleetpulse/pkg/api"
)

// Report is a validated batch of package changes for one host and day.
type Report struct {
	Hostname string
	OS       string
	Date     time.Time
	Packages []api.PackageChange
}

// HistoryFilter narrows a host's history. Zero values disable a filter.
type HistoryFilter struct {
	DateFrom time.Time
	DateTo   time.Time
	OS       string
	// Package matches package names case-insensitively by substring.
	Package string
	Limit   int
	Offset  int
}

// Store persists package updates.
type Store interface {
	// InsertReport stores every package change of r and returns how many
	// records were written.
	InsertReport(ctx context.Context, r Report) (int, error)
	// ListHosts returns every hostname with at least one record, sorted.
	ListHosts(ctx context.Context) ([]string, error)
	// LastUpdates returns the newest record of every host, sorted by hostname.
	LastUpdates(ctx context.Context) ([]api.HostInfo, error)
	// History returns one page of a host's records ordered by update_date
	// then id, both descending, and the number of records matching f.
	History(ctx context.Context, hostname string, f HistoryFilter) ([]api.PackageUpdate, int, error)
	Ping(ctx context.Context) error
	Close()
}
