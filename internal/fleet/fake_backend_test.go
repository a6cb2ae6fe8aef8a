package fleet_test

import (
	"context"
	"net/http"
	"sort"
	"strings"
	"sync"

	"github.com/fleetpulse/fleetpulse/internal/backend"
	"github.com/fleetpulse/fleetpulse/pkg/api"
)

// fakeBackend serves an in-memory fleet with the reporting API's filtering,
// ordering and 404 semantics.
type fakeBackend struct {
	mu      sync.Mutex
	hosts   []string
	records map[string][]api.PackageUpdate
	errs    map[string]error
	calls   []backend.HistoryQuery
	nextID  int64
}

func newFakeBackend() *fakeBackend {
	return &fakeBackend{
		records: make(map[string][]api.PackageUpdate),
		errs:    make(map[string]error),
	}
}

func (f *fakeBackend) add(host, os, date, name, oldV, newV string) *fakeBackend {
	f.mu.Lock()
	defer f.mu.Unlock()
	if _, ok := f.records[host]; !ok {
		f.hosts = append(f.hosts, host)
	}
	f.nextID++
	f.records[host] = append(f.records[host], api.PackageUpdate{
		ID:         f.nextID,
		Hostname:   host,
		OS:         os,
		UpdateDate: date,
		Name:       name,
		OldVersion: oldV,
		NewVersion: newV,
	})
	return f
}

func (f *fakeBackend) fail(host string, err error) *fakeBackend {
	f.mu.Lock()
	defer f.mu.Unlock()
	if _, ok := f.records[host]; !ok {
		f.hosts = append(f.hosts, host)
		f.records[host] = nil
	}
	f.errs[host] = err
	return f
}

func (f *fakeBackend) historyCalls() []backend.HistoryQuery {
	f.mu.Lock()
	defer f.mu.Unlock()
	return append([]backend.HistoryQuery(nil), f.calls...)
}

func (f *fakeBackend) Health(context.Context) (*api.HealthStatus, error) {
	return &api.HealthStatus{Status: "healthy", Database: "connected", Telemetry: map[string]any{"enabled": false}}, nil
}

func (f *fakeBackend) ListHosts(context.Context) ([]string, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	return append([]string(nil), f.hosts...), nil
}

func (f *fakeBackend) LastUpdates(context.Context) ([]api.HostInfo, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	infos := make([]api.HostInfo, 0, len(f.hosts))
	for _, h := range f.hosts {
		sorted := f.sortedLocked(h)
		if len(sorted) == 0 {
			continue
		}
		infos = append(infos, api.HostInfo{Hostname: h, OS: sorted[0].OS, LastUpdate: sorted[0].UpdateDate})
	}
	return infos, nil
}

func (f *fakeBackend) HostHistory(_ context.Context, hostname string, q backend.HistoryQuery) (*api.HistoryResponse, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.calls = append(f.calls, q)
	if err := f.errs[hostname]; err != nil {
		return nil, err
	}

	var matched []api.PackageUpdate
	for _, r := range f.sortedLocked(hostname) {
		if q.DateFrom != "" && r.UpdateDate < q.DateFrom {
			continue
		}
		if q.DateTo != "" && r.UpdateDate > q.DateTo {
			continue
		}
		if q.OS != "" && r.OS != q.OS {
			continue
		}
		if q.Package != "" && !strings.Contains(strings.ToLower(r.Name), strings.ToLower(q.Package)) {
			continue
		}
		matched = append(matched, r)
	}
	if len(matched) == 0 {
		return nil, &backend.HTTPError{StatusCode: http.StatusNotFound, Body: `{"detail":"No update history found"}`}
	}

	limit := q.Limit
	if limit <= 0 {
		limit = api.DefaultPageSize
	}
	if limit > api.MaxPageSize {
		return nil, &backend.HTTPError{StatusCode: http.StatusUnprocessableEntity, Body: "limit too large"}
	}
	start := min(q.Offset, len(matched))
	end := min(start+limit, len(matched))
	return &api.HistoryResponse{
		Items:  append([]api.PackageUpdate{}, matched[start:end]...),
		Total:  len(matched),
		Limit:  limit,
		Offset: q.Offset,
	}, nil
}

// sortedLocked orders a host's records like the API: update_date then id,
// both descending.
func (f *fakeBackend) sortedLocked(host string) []api.PackageUpdate {
	out := append([]api.PackageUpdate(nil), f.records[host]...)
	sort.SliceStable(out, func(i, j int) bool {
		if out[i].UpdateDate != out[j].UpdateDate {
			return out[i].UpdateDate > out[j].UpdateDate
		}
		return out[i].ID > out[j].ID
	})
	return out
}
