// Package api defines the wire contract of the FleetPulse reporting API.
//
// The types are shared by the reporting server and by the aggregation layer's
// backend client, so both sides agree on field names and date encoding.
package api

import "time"

// DateLayout is the wire encoding of every date in the API.
const DateLayout = "2006-01-02"

// Pagination bounds accepted by the history endpoint.
const (
	DefaultPageSize = 50
	MaxPageSize     = 1000
)

// MaxPackagesPerReport caps the number of package changes in a single report.
const MaxPackagesPerReport = 1000

// PackageUpdate is a single package version change recorded for a host.
type PackageUpdate struct {
	ID         int64  `json:"id"`
	Hostname   string `json:"hostname"`
	OS         string `json:"os"`
	UpdateDate string `json:"update_date"`
	Name       string `json:"name"`
	OldVersion string `json:"old_version"`
	NewVersion string `json:"new_version"`
}

// ParsedDate returns the update date, or false when it is missing or malformed.
func (p PackageUpdate) ParsedDate() (time.Time, bool) {
	return ParseDate(p.UpdateDate)
}

// ParseDate parses a wire date.
func ParseDate(s string) (time.Time, bool) {
	if s == "" {
		return time.Time{}, false
	}
	t, err := time.Parse(DateLayout, s)
	if err != nil {
		return time.Time{}, false
	}
	return t, true
}

// HostInfo is the most recent update seen for a host.
type HostInfo struct {
	Hostname   string `json:"hostname"`
	OS         string `json:"os"`
	LastUpdate string `json:"last_update"`
}

// HostsResponse is returned by GET /hosts.
type HostsResponse struct {
	Hosts []string `json:"hosts"`
}

// HistoryResponse is a page of a host's update history.
type HistoryResponse struct {
	Items  []PackageUpdate `json:"items"`
	Total  int             `json:"total"`
	Limit  int             `json:"limit"`
	Offset int             `json:"offset"`
}

// HealthStatus is returned by GET /health.
type HealthStatus struct {
	Status    string         `json:"status"`
	Database  string         `json:"database"`
	Telemetry map[string]any `json:"telemetry"`
	Timestamp *time.Time     `json:"timestamp,omitempty"`
}

// PackageChange is one package entry inside an incoming report.
type PackageChange struct {
	Name       string `json:"name" yaml:"name"`
	OldVersion string `json:"old_version" yaml:"old_version"`
	NewVersion string `json:"new_version" yaml:"new_version"`
}

// UpdateIn is the body of POST /report.
type UpdateIn struct {
	Hostname        string          `json:"hostname" yaml:"hostname"`
	OS              string          `json:"os" yaml:"os"`
	UpdateDate      string          `json:"update_date" yaml:"update_date"`
	UpdatedPackages []PackageChange `json:"updated_packages" yaml:"updated_packages"`
}

// ReportAccepted acknowledges a stored report.
type ReportAccepted struct {
	Status   string `json:"status"`
	Message  string `json:"message"`
	Hostname string `json:"hostname"`
}

// ErrorResponse is the body of every non-2xx reporting API response.
type ErrorResponse struct {
	Detail string `json:"detail"`
}
