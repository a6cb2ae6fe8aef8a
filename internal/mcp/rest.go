package mcp

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"strconv"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/stacklok/toolhive/pkg/logger"

	"github.com/fleetpulse/fleetpulse/internal/backend"
	"github.com/fleetpulse/fleetpulse/internal/fleet"
)

// toolEndpoint describes a tool in the /tools listing.
type toolEndpoint struct {
	Name        string   `json:"name"`
	Description string   `json:"description"`
	Endpoint    string   `json:"endpoint"`
	Parameters  []string `json:"parameters,omitempty"`
}

func (t *Transport) handleRoot(w http.ResponseWriter, _ *http.Request) {
	writeJSON(w, http.StatusOK, map[string]any{
		"service":     "FleetPulse MCP Server",
		"version":     t.info.Version,
		"description": "Model Context Protocol server for FleetPulse fleet management",
		"backend_url": t.info.BackendURL,
		"endpoints": map[string]string{
			"health":     "/health",
			"tools":      "/tools",
			"hosts":      "/hosts",
			"reports":    "/reports",
			"packages":   "/packages",
			"statistics": "/stats",
			"search":     "/search",
			"jsonrpc":    "/rpc",
			"mcp":        "/mcp",
		},
	})
}

func (*Transport) handleTools(w http.ResponseWriter, _ *http.Request) {
	tools := make([]toolEndpoint, len(toolCatalogue))
	for i, entry := range toolCatalogue {
		tools[i] = toolEndpoint{
			Name:        string(entry.Name),
			Description: entry.Description,
			Endpoint:    entry.Endpoint,
			Parameters:  entry.Parameters,
		}
	}
	writeJSON(w, http.StatusOK, map[string]any{"tools": tools})
}

func (t *Transport) handleHealth(w http.ResponseWriter, r *http.Request) {
	t.respond(w, r, ToolHealthCheck, func(ctx context.Context) (any, error) {
		return t.server.healthCheck(ctx, NoParams{})
	})
}

func (t *Transport) handleListHosts(w http.ResponseWriter, r *http.Request) {
	t.respond(w, r, ToolListHosts, func(ctx context.Context) (any, error) {
		return t.server.listHosts(ctx, NoParams{})
	})
}

func (t *Transport) handleHostDetails(w http.ResponseWriter, r *http.Request) {
	p := HostParams{Hostname: chi.URLParam(r, "hostname")}
	t.respond(w, r, ToolGetHostDetails, func(ctx context.Context) (any, error) {
		return t.server.getHostDetails(ctx, p)
	})
}

func (t *Transport) handleUpdateReports(w http.ResponseWriter, r *http.Request) {
	limit, offset, err := pagingQuery(r)
	if err != nil {
		writeError(w, err)
		return
	}
	p := UpdateReportsParams{Hostname: r.URL.Query().Get("hostname"), Limit: limit, Offset: offset}
	t.respond(w, r, ToolGetUpdateReports, func(ctx context.Context) (any, error) {
		return t.server.getUpdateReports(ctx, p)
	})
}

func (t *Transport) handleHostReports(w http.ResponseWriter, r *http.Request) {
	limit, offset, err := pagingQuery(r)
	if err != nil {
		writeError(w, err)
		return
	}
	p := HostReportsParams{Hostname: chi.URLParam(r, "hostname"), Limit: limit, Offset: offset}
	t.respond(w, r, ToolGetHostReports, func(ctx context.Context) (any, error) {
		return t.server.getHostReports(ctx, p)
	})
}

func (t *Transport) handleListPackages(w http.ResponseWriter, r *http.Request) {
	t.respond(w, r, ToolListPackages, func(ctx context.Context) (any, error) {
		return t.server.listPackages(ctx, NoParams{})
	})
}

func (t *Transport) handlePackageDetails(w http.ResponseWriter, r *http.Request) {
	p := PackageParams{PackageName: chi.URLParam(r, "package_name")}
	t.respond(w, r, ToolGetPackageDetails, func(ctx context.Context) (any, error) {
		return t.server.getPackageDetails(ctx, p)
	})
}

func (t *Transport) handleStatistics(w http.ResponseWriter, r *http.Request) {
	t.respond(w, r, ToolGetFleetStatistics, func(ctx context.Context) (any, error) {
		return t.server.getFleetStatistics(ctx, NoParams{})
	})
}

func (t *Transport) handleSearch(w http.ResponseWriter, r *http.Request) {
	q := r.URL.Query()
	p := SearchParams{Query: q.Get("q"), ResultType: q.Get("result_type")}
	t.respond(w, r, ToolSearch, func(ctx context.Context) (any, error) {
		return t.server.search(ctx, p)
	})
}

// respond runs a tool for a REST call and writes its result or error.
func (*Transport) respond(w http.ResponseWriter, r *http.Request, name ToolName, fn func(context.Context) (any, error)) {
	result, err := guard(name, func() (any, error) { return fn(r.Context()) })
	if err != nil {
		logger.Errorf("Tool %s failed: %v", name, err)
		writeError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, result)
}

func pagingQuery(r *http.Request) (limit, offset int, err error) {
	q := r.URL.Query()
	if limit, err = intQuery(q.Get("limit"), defaultReportsLimit); err != nil {
		return 0, 0, fmt.Errorf("%w: limit: %v", fleet.ErrInvalidArgument, err)
	}
	if offset, err = intQuery(q.Get("offset"), 0); err != nil {
		return 0, 0, fmt.Errorf("%w: offset: %v", fleet.ErrInvalidArgument, err)
	}
	return limit, offset, nil
}

func intQuery(raw string, fallback int) (int, error) {
	if raw == "" {
		return fallback, nil
	}
	return strconv.Atoi(raw)
}

// writeError maps err onto an HTTP status and error body.
func writeError(w http.ResponseWriter, err error) {
	status, code, summary := http.StatusInternalServerError, "INTERNAL_ERROR", "Internal server error"
	var httpErr *backend.HTTPError
	switch {
	case errors.Is(err, fleet.ErrNotFound):
		status, code, summary = http.StatusNotFound, "NOT_FOUND", "Not found"
	case errors.Is(err, fleet.ErrInvalidArgument), errors.Is(err, errInvalidParams):
		status, code, summary = http.StatusBadRequest, "INVALID_ARGUMENT", "Invalid argument"
	case backend.IsConnectionError(err):
		code, summary = "BACKEND_UNAVAILABLE", "Backend unavailable"
	case errors.As(err, &httpErr):
		code, summary = "BACKEND_ERROR", "Backend error"
	}

	writeJSON(w, status, ErrorResponse{
		Error:     summary,
		Detail:    err.Error(),
		ErrorCode: code,
		Timestamp: time.Now().UTC().Format(time.RFC3339),
	})
}
