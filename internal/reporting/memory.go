package reporting

import (
	"context"
	"sort"
	"strings"
	"sync"

	"github.com/fleetpulse/fleetpulse/pkg/api"
)

// MemoryStore keeps records in process memory.
type MemoryStore struct {
	mu      sync.RWMutex
	records []api.PackageUpdate
	nextID  int64
}

var _ Store = (*MemoryStore)(nil)

// NewMemoryStore creates an empty MemoryStore.
func NewMemoryStore() *MemoryStore {
	return &MemoryStore{}
}

// InsertReport implements Store.
func (m *MemoryStore) InsertReport(_ context.Context, r Report) (int, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	date := r.Date.Format(api.DateLayout)
	for _, p := range r.Packages {
		m.nextID++
		m.records = append(m.records, api.PackageUpdate{
			ID:         m.nextID,
			Hostname:   r.Hostname,
			OS:         r.OS,
			UpdateDate: date,
			Name:       p.Name,
			OldVersion: p.OldVersion,
			NewVersion: p.NewVersion,
		})
	}
	return len(r.Packages), nil
}

// ListHosts implements Store.
func (m *MemoryStore) ListHosts(_ context.Context) ([]string, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()

	seen := make(map[string]struct{})
	hosts := make([]string, 0)
	for _, r := range m.records {
		if _, ok := seen[r.Hostname]; ok {
			continue
		}
		seen[r.Hostname] = struct{}{}
		hosts = append(hosts, r.Hostname)
	}
	sort.Strings(hosts)
	return hosts, nil
}

// LastUpdates implements Store.
func (m *MemoryStore) LastUpdates(_ context.Context) ([]api.HostInfo, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()

	latest := make(map[string]api.PackageUpdate)
	for _, r := range m.records {
		cur, ok := latest[r.Hostname]
		if !ok || newer(r, cur) {
			latest[r.Hostname] = r
		}
	}

	infos := make([]api.HostInfo, 0, len(latest))
	for host, r := range latest {
		infos = append(infos, api.HostInfo{Hostname: host, OS: r.OS, LastUpdate: r.UpdateDate})
	}
	sort.Slice(infos, func(i, j int) bool { return infos[i].Hostname < infos[j].Hostname })
	return infos, nil
}

// History implements Store.
func (m *MemoryStore) History(_ context.Context, hostname string, f HistoryFilter) ([]api.PackageUpdate, int, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()

	var from, to string
	if !f.DateFrom.IsZero() {
		from = f.DateFrom.Format(api.DateLayout)
	}
	if !f.DateTo.IsZero() {
		to = f.DateTo.Format(api.DateLayout)
	}
	pkg := strings.ToLower(f.Package)

	matched := make([]api.PackageUpdate, 0)
	for _, r := range m.records {
		switch {
		case r.Hostname != hostname:
		case from != "" && r.UpdateDate < from:
		case to != "" && r.UpdateDate > to:
		case f.OS != "" && r.OS != f.OS:
		case pkg != "" && !strings.Contains(strings.ToLower(r.Name), pkg):
		default:
			matched = append(matched, r)
		}
	}
	sort.Slice(matched, func(i, j int) bool { return newer(matched[i], matched[j]) })

	total := len(matched)
	start := min(f.Offset, total)
	end := total
	if f.Limit > 0 && f.Limit < total-start {
		end = start + f.Limit
	}
	return matched[start:end], total, nil
}

// Ping implements Store.
func (*MemoryStore) Ping(context.Context) error {
	return nil
}

// Close implements Store.
func (*MemoryStore) Close() {}

// newer orders records by update_date then id, both descending.
func newer(a, b api.PackageUpdate) bool {
	if a.UpdateDate != b.UpdateDate {
		return a.UpdateDate > b.UpdateDate
	}
	return a.ID > b.ID
}
