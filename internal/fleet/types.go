package fleet

import (
	"fmt"
	"time"

	"github.com/fleetpulse/fleetpulse/pkg/api"
)

// HostView is a host as seen across the fleet.
type HostView struct {
	Hostname   string `json:"hostname"`
	OS         string `json:"os"`
	LastUpdate string `json:"last_update"`
	// PackagesCount is the number of distinct package names in the first
	// hostSampleLimit history records; nil when the history could not be read.
	PackagesCount *int `json:"packages_count"`
}

// UpdateReport is one (hostname, update_date) batch of package changes.
type UpdateReport struct {
	ID              int                 `json:"id"`
	Hostname        string              `json:"hostname"`
	OS              string              `json:"os"`
	UpdateDate      string              `json:"update_date"`
	UpdatedPackages []api.PackageChange `json:"updated_packages"`
}

// PackageView summarizes one package across the fleet.
type PackageView struct {
	Name string `json:"name"`
	// CurrentVersion is the most frequent new_version, ties going to the
	// version seen first.
	CurrentVersion *string  `json:"current_version"`
	Hosts          []string `json:"hosts"`
	LastUpdated    *string  `json:"last_updated"`
}

// PackageCount is an entry of the most-updated ranking.
type PackageCount struct {
	Package     string `json:"package"`
	UpdateCount int    `json:"update_count"`
}

// ActivityEntry is one package change in the recent activity feed.
type ActivityEntry struct {
	Date       string `json:"date"`
	Hostname   string `json:"hostname"`
	Package    string `json:"package"`
	OldVersion string `json:"old_version"`
	NewVersion string `json:"new_version"`
}

// FleetStatistics are fleet-wide rollups.
type FleetStatistics struct {
	TotalHosts            int             `json:"total_hosts"`
	TotalReports          int             `json:"total_reports"`
	TotalPackages         int             `json:"total_packages"`
	ActiveHostsLast7Days  int             `json:"active_hosts_last_7_days"`
	ActiveHostsLast30Days int             `json:"active_hosts_last_30_days"`
	MostUpdatedPackages   []PackageCount  `json:"most_updated_packages"`
	RecentActivity        []ActivityEntry `json:"recent_activity"`
}

// ResultType restricts a search to one category.
type ResultType string

// Search categories, in the order results are produced.
const (
	ResultTypeAny     ResultType = ""
	ResultTypeHost    ResultType = "host"
	ResultTypePackage ResultType = "package"
	ResultTypeReport  ResultType = "report"
)

// String returns the string representation of the result type.
func (r ResultType) String() string {
	return string(r)
}

// Validate rejects unknown result types.
func (r ResultType) Validate() error {
	switch r {
	case ResultTypeAny, ResultTypeHost, ResultTypePackage, ResultTypeReport:
		return nil
	default:
		return fmt.Errorf("%w: result_type must be one of host, package, report (got %q)", ErrInvalidArgument, string(r))
	}
}

func (r ResultType) includes(other ResultType) bool {
	return r == ResultTypeAny || r == other
}

// Relevance scores. Search is a substring scan, not a ranking model.
const (
	ScoreExact         = 1.0
	ScoreHostnameMatch = 0.9
	ScorePartialMatch  = 0.8
	ScoreOSMatch       = 0.7
)

// SearchResult is a single search hit. Data holds a HostView, PackageView or
// UpdateReport depending on ResultType.
type SearchResult struct {
	ResultType     ResultType `json:"result_type"`
	Data           any        `json:"data"`
	RelevanceScore float64    `json:"relevance_score"`
}

// SearchResponse wraps search results.
type SearchResponse struct {
	Query        string         `json:"query"`
	Results      []SearchResult `json:"results"`
	TotalResults int            `json:"total_results"`
}

// MCPServerStatus describes this process in a health report.
type MCPServerStatus struct {
	Status           string `json:"status"`
	BackendConnected bool   `json:"backend_connected"`
	Error            string `json:"error,omitempty"`
}

// HealthReport is the backend health document plus this server's own status.
type HealthReport struct {
	Status    string          `json:"status"`
	Database  string          `json:"database"`
	Telemetry map[string]any  `json:"telemetry"`
	Timestamp *time.Time      `json:"timestamp,omitempty"`
	MCPServer MCPServerStatus `json:"mcp_server"`
}

// UpdatesQuery selects records for GetAllUpdates. Limit and Offset apply to
// the merged, newest-first sequence.
type UpdatesQuery struct {
	Hostname string
	Package  string
	DateFrom string
	DateTo   string
	Limit    int
	Offset   int
}
