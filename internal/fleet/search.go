package fleet

import (
	"context"
	"fmt"
	"sort"
	"strings"

	"github.com/stacklok/toolhive/pkg/logger"

	"github.com/fleetpulse/fleetpulse/internal/backend"
	"github.com/fleetpulse/fleetpulse/internal/telemetry"
)

const searchResultLimit = 50

// Search scans hosts, packages and recent reports for query, case
// insensitively. Results are ordered by relevance score; equal scores keep
// the host, package, report production order. A category that fails to load
// is skipped unless the backend is unreachable.
func (e *Engine) Search(ctx context.Context, query string, resultType ResultType) (resp *SearchResponse, err error) {
	ctx, span := e.telemetry.StartSpan(ctx, "mcp_tool_search", telemetry.Attr("query", query))
	defer func() { span.End(err) }()

	if err := resultType.Validate(); err != nil {
		return nil, err
	}
	if strings.TrimSpace(query) == "" {
		return nil, fmt.Errorf("%w: query is required", ErrInvalidArgument)
	}
	q := strings.ToLower(query)

	results := make([]SearchResult, 0)

	if resultType.includes(ResultTypeHost) {
		hosts, err := e.ListHosts(ctx)
		if err != nil {
			if backend.IsConnectionError(err) {
				return nil, fmt.Errorf("search failed: %w", err)
			}
			logger.Warnf("Failed to search hosts: %v", err)
		}
		results = append(results, matchHosts(q, hosts)...)
	}

	if resultType.includes(ResultTypePackage) {
		packages, err := e.ListPackages(ctx)
		if err != nil {
			if backend.IsConnectionError(err) {
				return nil, fmt.Errorf("search failed: %w", err)
			}
			logger.Warnf("Failed to search packages: %v", err)
		}
		results = append(results, matchPackages(q, packages)...)
	}

	if resultType.includes(ResultTypeReport) {
		reports, err := e.GetUpdateReports(ctx, "", reportSearchLimit, 0)
		if err != nil {
			if backend.IsConnectionError(err) {
				return nil, fmt.Errorf("search failed: %w", err)
			}
			logger.Warnf("Failed to search reports: %v", err)
		}
		results = append(results, matchReports(q, reports)...)
	}

	results = rankResults(results)
	span.SetAttribute("search.results_count", len(results))
	return &SearchResponse{
		Query:        query,
		Results:      results,
		TotalResults: len(results),
	}, nil
}

// matchHosts expects q to be lower case.
func matchHosts(q string, hosts []HostView) []SearchResult {
	var out []SearchResult
	for _, h := range hosts {
		name := strings.ToLower(h.Hostname)
		if !strings.Contains(name, q) && !strings.Contains(strings.ToLower(h.OS), q) {
			continue
		}
		score := ScorePartialMatch
		if name == q {
			score = ScoreExact
		}
		out = append(out, SearchResult{ResultType: ResultTypeHost, Data: h, RelevanceScore: score})
	}
	return out
}

func matchPackages(q string, packages []PackageView) []SearchResult {
	var out []SearchResult
	for _, p := range packages {
		name := strings.ToLower(p.Name)
		if !strings.Contains(name, q) {
			continue
		}
		score := ScorePartialMatch
		if name == q {
			score = ScoreExact
		}
		out = append(out, SearchResult{ResultType: ResultTypePackage, Data: p, RelevanceScore: score})
	}
	return out
}

// matchReports scores a report by its best matching field.
func matchReports(q string, reports []UpdateReport) []SearchResult {
	var out []SearchResult
	for _, r := range reports {
		score := 0.0
		if strings.Contains(strings.ToLower(r.Hostname), q) {
			score = max(score, ScoreHostnameMatch)
		}
		if strings.Contains(strings.ToLower(r.OS), q) {
			score = max(score, ScoreOSMatch)
		}
		for _, p := range r.UpdatedPackages {
			if strings.Contains(strings.ToLower(p.Name), q) {
				score = max(score, ScorePartialMatch)
				break
			}
		}
		if score > 0 {
			out = append(out, SearchResult{ResultType: ResultTypeReport, Data: r, RelevanceScore: score})
		}
	}
	return out
}

func rankResults(results []SearchResult) []SearchResult {
	sort.SliceStable(results, func(i, j int) bool {
		return results[i].RelevanceScore > results[j].RelevanceScore
	})
	return paginate(results, 0, searchResultLimit)
}
