package fleet

import (
	"context"
	"fmt"
	"sort"
	"time"

	"github.com/fleetpulse/fleetpulse/internal/telemetry"
	"github.com/fleetpulse/fleetpulse/pkg/api"
)

// ListPackages summarizes every package seen in the first fleetScanLimit
// records of the fleet, sorted by name.
func (e *Engine) ListPackages(ctx context.Context) (packages []PackageView, err error) {
	ctx, span := e.telemetry.StartSpan(ctx, "mcp_tool_list_packages")
	defer func() { span.End(err) }()

	updates, err := e.GetAllUpdates(ctx, UpdatesQuery{Limit: fleetScanLimit})
	if err != nil {
		return nil, fmt.Errorf("failed to list packages: %w", err)
	}

	var order []string
	byName := make(map[string][]api.PackageUpdate)
	for _, u := range updates {
		if u.Name == "" {
			continue
		}
		if _, ok := byName[u.Name]; !ok {
			order = append(order, u.Name)
		}
		byName[u.Name] = append(byName[u.Name], u)
	}

	packages = make([]PackageView, 0, len(order))
	for _, name := range order {
		packages = append(packages, buildPackageView(name, byName[name]))
	}
	sort.SliceStable(packages, func(i, j int) bool {
		return packages[i].Name < packages[j].Name
	})

	span.SetAttribute("packages.count", len(packages))
	return packages, nil
}

// GetPackageDetails summarizes a single package. The backend matches
// package names by substring, so records are narrowed to the exact name here.
func (e *Engine) GetPackageDetails(ctx context.Context, name string) (pkg *PackageView, err error) {
	ctx, span := e.telemetry.StartSpan(ctx, "mcp_tool_get_package_details", telemetry.Attr("package_name", name))
	defer func() { span.End(err) }()

	if name == "" {
		return nil, fmt.Errorf("%w: package_name is required", ErrInvalidArgument)
	}

	updates, err := e.GetAllUpdates(ctx, UpdatesQuery{Package: name, Limit: fleetScanLimit})
	if err != nil {
		return nil, fmt.Errorf("failed to get package details: %w", err)
	}

	matched := make([]api.PackageUpdate, 0, len(updates))
	for _, u := range updates {
		if u.Name == name {
			matched = append(matched, u)
		}
	}
	if len(matched) == 0 {
		return nil, fmt.Errorf("%w: package %s", ErrNotFound, name)
	}

	view := buildPackageView(name, matched)
	span.SetAttribute("package.hosts_count", len(view.Hosts))
	return &view, nil
}

func buildPackageView(name string, records []api.PackageUpdate) PackageView {
	hostSet := make(map[string]struct{})
	versions := make([]string, 0, len(records))
	var last time.Time
	for _, r := range records {
		hostSet[r.Hostname] = struct{}{}
		if r.NewVersion != "" {
			versions = append(versions, r.NewVersion)
		}
		if d, ok := r.ParsedDate(); ok && d.After(last) {
			last = d
		}
	}

	hosts := make([]string, 0, len(hostSet))
	for h := range hostSet {
		hosts = append(hosts, h)
	}
	sort.Strings(hosts)

	view := PackageView{Name: name, Hosts: hosts}
	if v, ok := stableMode(versions); ok {
		view.CurrentVersion = &v
	}
	if !last.IsZero() {
		s := last.Format(api.DateLayout)
		view.LastUpdated = &s
	}
	return view
}

// stableMode returns the most frequent value; among equally frequent values
// the one that occurs first wins.
func stableMode(values []string) (string, bool) {
	if len(values) == 0 {
		return "", false
	}
	counts := make(map[string]int, len(values))
	order := make([]string, 0, len(values))
	for _, v := range values {
		if counts[v] == 0 {
			order = append(order, v)
		}
		counts[v]++
	}

	best, bestCount := order[0], 0
	for _, v := range order {
		if counts[v] > bestCount {
			best, bestCount = v, counts[v]
		}
	}
	return best, true
}
