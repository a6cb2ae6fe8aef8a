// Package fleet builds fleet-wide views on top of the per-host reporting API.
//
// Nothing is cached: every call re-reads the backend, fans out over hosts
// where needed and merges the results client side.
package fleet

import (
	"context"
	"errors"

	"github.com/fleetpulse/fleetpulse/internal/backend"
	"github.com/fleetpulse/fleetpulse/pkg/api"
)

//go:generate mockgen -destination=mocks/mock_service.go -package=mocks -source=service.go

// Sentinel errors returned by Service implementations.
var (
	ErrNotFound        = errors.New("not found")
	ErrInvalidArgument = errors.New("invalid argument")
)

// Backend is the subset of the reporting API the engine reads from.
// *backend.Client satisfies it.
type Backend interface {
	Health(ctx context.Context) (*api.HealthStatus, error)
	ListHosts(ctx context.Context) ([]string, error)
	LastUpdates(ctx context.Context) ([]api.HostInfo, error)
	HostHistory(ctx context.Context, hostname string, q backend.HistoryQuery) (*api.HistoryResponse, error)
}

// Service is every fleet operation exposed to MCP clients.
type Service interface {
	HealthCheck(ctx context.Context) (*HealthReport, error)
	ListHosts(ctx context.Context) ([]HostView, error)
	GetHostDetails(ctx context.Context, hostname string) (*HostView, error)
	GetAllUpdates(ctx context.Context, q UpdatesQuery) ([]api.PackageUpdate, error)
	GetUpdateReports(ctx context.Context, hostname string, limit, offset int) ([]UpdateReport, error)
	GetHostReports(ctx context.Context, hostname string, limit, offset int) ([]UpdateReport, error)
	ListPackages(ctx context.Context) ([]PackageView, error)
	GetPackageDetails(ctx context.Context, name string) (*PackageView, error)
	GetFleetStatistics(ctx context.Context) (*FleetStatistics, error)
	Search(ctx context.Context, query string, resultType ResultType) (*SearchResponse, error)
}

var _ Backend = (*backend.Client)(nil)
