package fleet

import (
	"context"
	"errors"
	"fmt"
	"math"
	"sort"
	"time"

	"github.com/stacklok/toolhive/pkg/logger"
	"golang.org/x/sync/errgroup"

	"github.com/fleetpulse/fleetpulse/internal/backend"
	"github.com/fleetpulse/fleetpulse/internal/telemetry"
	"github.com/fleetpulse/fleetpulse/pkg/api"
)

// Sampling limits. They are truncation points: hosts and fleets larger than
// these produce approximate package counts and incomplete rollups.
const (
	hostSampleLimit   = 1000
	fleetScanLimit    = 10000
	reportSearchLimit = 100

	defaultUpdatesLimit = 100
)

// Engine implements Service on top of a Backend.
type Engine struct {
	backend     Backend
	now         func() time.Time
	concurrency int
	telemetry   telemetry.Telemetry
}

var _ Service = (*Engine)(nil)

// EngineOption configures an Engine.
type EngineOption func(*Engine)

// WithClock overrides the time source used for activity windows.
func WithClock(now func() time.Time) EngineOption {
	return func(e *Engine) {
		e.now = now
	}
}

// WithConcurrency sets how many hosts are fetched in parallel. The default
// of 1 fetches hosts one after another.
func WithConcurrency(n int) EngineOption {
	return func(e *Engine) {
		if n > 0 {
			e.concurrency = n
		}
	}
}

// WithTelemetry attaches a Telemetry implementation.
func WithTelemetry(t telemetry.Telemetry) EngineOption {
	return func(e *Engine) {
		e.telemetry = t
	}
}

// NewEngine creates an Engine reading from b.
func NewEngine(b Backend, opts ...EngineOption) *Engine {
	e := &Engine{
		backend:     b,
		now:         time.Now,
		concurrency: 1,
		telemetry:   telemetry.Noop{},
	}
	for _, opt := range opts {
		opt(e)
	}
	return e
}

// HealthCheck returns the backend health plus this server's status. An
// unreachable backend produces an unhealthy report rather than an error.
func (e *Engine) HealthCheck(ctx context.Context) (report *HealthReport, err error) {
	ctx, span := e.telemetry.StartSpan(ctx, "mcp_tool_health_check")
	defer func() { span.End(err) }()

	health, err := e.backend.Health(ctx)
	if err != nil {
		if backend.IsConnectionError(err) {
			return &HealthReport{
				Status:    "unhealthy",
				Database:  "unknown",
				Telemetry: map[string]any{"enabled": false},
				MCPServer: MCPServerStatus{
					Status:           "degraded",
					BackendConnected: false,
					Error:            err.Error(),
				},
			}, nil
		}
		return nil, fmt.Errorf("health check failed: %w", err)
	}

	span.SetAttribute("health.status", health.Status)
	return &HealthReport{
		Status:    health.Status,
		Database:  health.Database,
		Telemetry: health.Telemetry,
		Timestamp: health.Timestamp,
		MCPServer: MCPServerStatus{Status: "healthy", BackendConnected: true},
	}, nil
}

// ListHosts returns every host with its most recent update and an
// approximate package count.
func (e *Engine) ListHosts(ctx context.Context) (hosts []HostView, err error) {
	ctx, span := e.telemetry.StartSpan(ctx, "mcp_tool_list_hosts")
	defer func() { span.End(err) }()

	infos, err := e.backend.LastUpdates(ctx)
	if err != nil {
		return nil, fmt.Errorf("failed to list hosts: %w", err)
	}

	names := make([]string, len(infos))
	for i, info := range infos {
		names[i] = info.Hostname
	}

	counts, err := fanOut(ctx, e.concurrency, names, e.packageCount)
	if err != nil {
		return nil, fmt.Errorf("failed to list hosts: %w", err)
	}

	hosts = make([]HostView, len(infos))
	for i, info := range infos {
		hosts[i] = HostView{
			Hostname:      info.Hostname,
			OS:            info.OS,
			LastUpdate:    info.LastUpdate,
			PackagesCount: counts[i],
		}
	}
	span.SetAttribute("hosts.count", len(hosts))
	return hosts, nil
}

// GetHostDetails returns a single host.
func (e *Engine) GetHostDetails(ctx context.Context, hostname string) (host *HostView, err error) {
	ctx, span := e.telemetry.StartSpan(ctx, "mcp_tool_get_host_details", telemetry.Attr("hostname", hostname))
	defer func() { span.End(err) }()

	infos, err := e.backend.LastUpdates(ctx)
	if err != nil {
		return nil, fmt.Errorf("failed to get host details: %w", err)
	}

	for _, info := range infos {
		if info.Hostname != hostname {
			continue
		}
		count, err := e.packageCount(ctx, hostname)
		if err != nil {
			logger.Warnf("Unable to count packages for host %s: %v", hostname, err)
		}
		return &HostView{
			Hostname:      info.Hostname,
			OS:            info.OS,
			LastUpdate:    info.LastUpdate,
			PackagesCount: count,
		}, nil
	}

	return nil, fmt.Errorf("%w: host %s", ErrNotFound, hostname)
}

// packageCount counts distinct package names in the first hostSampleLimit
// records of a host. Failures other than connectivity yield a nil count.
func (e *Engine) packageCount(ctx context.Context, hostname string) (*int, error) {
	page, err := e.backend.HostHistory(ctx, hostname, backend.HistoryQuery{Limit: hostSampleLimit})
	if err != nil {
		if backend.IsConnectionError(err) || ctx.Err() != nil {
			return nil, err
		}
		logger.Debugf("No package count for host %s: %v", hostname, err)
		return nil, nil
	}

	names := make(map[string]struct{}, len(page.Items))
	for _, item := range page.Items {
		names[item.Name] = struct{}{}
	}
	n := len(names)
	return &n, nil
}

// GetAllUpdates returns package update records newest first. Without a
// hostname every host is scanned; hosts without matching records are
// skipped, other per-host failures are logged and skipped, and an
// unreachable backend aborts the scan.
func (e *Engine) GetAllUpdates(ctx context.Context, q UpdatesQuery) ([]api.PackageUpdate, error) {
	if q.Limit <= 0 {
		q.Limit = defaultUpdatesLimit
	}
	if q.Offset < 0 {
		q.Offset = 0
	}

	filter := backend.HistoryQuery{
		DateFrom: q.DateFrom,
		DateTo:   q.DateTo,
		Package:  q.Package,
	}

	if q.Hostname != "" {
		items, err := e.fetchHistory(ctx, q.Hostname, filter, q.Offset, q.Limit)
		if err != nil {
			if backend.IsNotFound(err) {
				return []api.PackageUpdate{}, nil
			}
			return nil, err
		}
		return items, nil
	}

	hosts, err := e.backend.ListHosts(ctx)
	if err != nil {
		return nil, err
	}

	// Each host contributes its newest offset+limit records so the merged
	// slice below is exact.
	want := addClamped(q.Offset, q.Limit)
	perHost, err := fanOut(ctx, e.concurrency, hosts, func(ctx context.Context, host string) ([]api.PackageUpdate, error) {
		items, err := e.fetchHistory(ctx, host, filter, 0, want)
		switch {
		case err == nil:
			return items, nil
		case backend.IsNotFound(err):
			return nil, nil
		case backend.IsConnectionError(err), ctx.Err() != nil:
			return nil, err
		default:
			logger.Warnf("Failed to get history for host %s: %v", host, err)
			return nil, nil
		}
	})
	if err != nil {
		return nil, err
	}

	var all []api.PackageUpdate
	for _, items := range perHost {
		all = append(all, items...)
	}

	// ISO dates order lexicographically.
	sort.SliceStable(all, func(i, j int) bool {
		return all[i].UpdateDate > all[j].UpdateDate
	})

	return paginate(all, q.Offset, q.Limit), nil
}

// fetchHistory reads up to want records of a host starting at offset,
// splitting the read into pages the API accepts.
func (e *Engine) fetchHistory(ctx context.Context, hostname string, filter backend.HistoryQuery, offset, want int) ([]api.PackageUpdate, error) {
	items := make([]api.PackageUpdate, 0)
	for len(items) < want {
		size := min(want-len(items), api.MaxPageSize)
		q := filter
		q.Limit = size
		q.Offset = addClamped(offset, len(items))

		page, err := e.backend.HostHistory(ctx, hostname, q)
		if err != nil {
			return nil, err
		}
		items = append(items, page.Items...)
		if len(page.Items) < size || q.Offset+len(page.Items) >= page.Total {
			break
		}
	}
	return items, nil
}

func paginate[T any](items []T, offset, limit int) []T {
	if offset >= len(items) {
		return []T{}
	}
	end := min(addClamped(offset, limit), len(items))
	return items[offset:end]
}

// addClamped adds two non-negative ints, saturating at math.MaxInt.
func addClamped(a, b int) int {
	if b > math.MaxInt-a {
		return math.MaxInt
	}
	return a + b
}

// fanOut calls fn for every host with at most limit calls in flight. Results
// keep the order of hosts regardless of completion order. The first error
// cancels the remaining calls and is returned.
func fanOut[T any](ctx context.Context, limit int, hosts []string, fn func(context.Context, string) (T, error)) ([]T, error) {
	results := make([]T, len(hosts))
	g, gctx := errgroup.WithContext(ctx)
	g.SetLimit(limit)
	for i, host := range hosts {
		g.Go(func() error {
			if err := gctx.Err(); err != nil {
				return err
			}
			r, err := fn(gctx, host)
			if err != nil {
				return err
			}
			results[i] = r
			return nil
		})
	}
	if err := g.Wait(); err != nil {
		if errors.Is(err, context.Canceled) && ctx.Err() != nil {
			return nil, ctx.Err()
		}
		return nil, err
	}
	return results, nil
}
