package reporting

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"strconv"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"github.com/stacklok/toolhive/pkg/logger"

	"github.com/fleetpulse/fleetpulse/internal/telemetry"
	"github.com/fleetpulse/fleetpulse/pkg/api"
)

const (
	maxReportBody = 4 << 20

	maxHostnameLength = 255
	maxOSLength       = 50
	maxNameLength     = 255
	maxVersionLength  = 100
)

// requestError is a client error answered with status and detail.
type requestError struct {
	status int
	detail string
}

func (e *requestError) Error() string {
	return e.detail
}

func badRequest(detail string) error {
	return &requestError{status: http.StatusBadRequest, detail: detail}
}

func unprocessable(format string, args ...any) error {
	return &requestError{status: http.StatusUnprocessableEntity, detail: fmt.Sprintf(format, args...)}
}

// API serves the reporting endpoints over a Store.
type API struct {
	store     Store
	telemetry telemetry.Telemetry
	metrics   http.Handler
	now       func() time.Time
}

// APIOption configures an API.
type APIOption func(*API)

// WithTelemetry records a span for every store operation.
func WithTelemetry(t telemetry.Telemetry) APIOption {
	return func(a *API) {
		if t != nil {
			a.telemetry = t
		}
	}
}

// WithMetrics mounts h on /metrics.
func WithMetrics(h http.Handler) APIOption {
	return func(a *API) {
		a.metrics = h
	}
}

// WithClock overrides the clock used for health timestamps and sample data.
func WithClock(now func() time.Time) APIOption {
	return func(a *API) {
		if now != nil {
			a.now = now
		}
	}
}

// NewAPI creates the reporting API over store.
func NewAPI(store Store, opts ...APIOption) *API {
	a := &API{
		store:     store,
		telemetry: telemetry.Noop{},
		now:       time.Now,
	}
	for _, opt := range opts {
		opt(a)
	}
	return a
}

// Router returns the HTTP handler with every endpoint mounted.
func (a *API) Router() http.Handler {
	r := chi.NewRouter()
	r.Use(middleware.RequestID)
	r.Use(middleware.Recoverer)

	r.Get("/health", a.handleHealth)
	r.Get("/hosts", a.handleHosts)
	r.Get("/last-updates", a.handleLastUpdates)
	r.Get("/history/{hostname}", a.handleHistory)
	r.Post("/report", a.handleReport)
	r.Post("/demo/sample-data", a.handleSampleData)
	r.Get("/openapi.json", a.handleOpenAPI)

	if a.metrics != nil {
		r.Method(http.MethodGet, "/metrics", a.metrics)
	}

	return r
}

func (a *API) handleHealth(w http.ResponseWriter, r *http.Request) {
	if err := a.traced(r.Context(), "reporting.ping", func(ctx context.Context) error {
		return a.store.Ping(ctx)
	}); err != nil {
		logger.Errorf("Health check failed: %v", err)
		writeDetail(w, http.StatusServiceUnavailable, "Service unhealthy")
		return
	}

	_, noop := a.telemetry.(telemetry.Noop)
	now := a.now().UTC()
	writeJSON(w, http.StatusOK, api.HealthStatus{
		Status:    "healthy",
		Database:  "connected",
		Telemetry: map[string]any{"enabled": !noop},
		Timestamp: &now,
	})
}

func (a *API) handleHosts(w http.ResponseWriter, r *http.Request) {
	var hosts []string
	err := a.traced(r.Context(), "reporting.list_hosts", func(ctx context.Context) (err error) {
		hosts, err = a.store.ListHosts(ctx)
		return err
	})
	if err != nil {
		a.internalError(w, "list hosts", err)
		return
	}
	writeJSON(w, http.StatusOK, api.HostsResponse{Hosts: hosts})
}

func (a *API) handleLastUpdates(w http.ResponseWriter, r *http.Request) {
	var infos []api.HostInfo
	err := a.traced(r.Context(), "reporting.last_updates", func(ctx context.Context) (err error) {
		infos, err = a.store.LastUpdates(ctx)
		return err
	})
	if err != nil {
		a.internalError(w, "read last updates", err)
		return
	}
	writeJSON(w, http.StatusOK, infos)
}

func (a *API) handleHistory(w http.ResponseWriter, r *http.Request) {
	hostname := chi.URLParam(r, "hostname")
	filter, err := parseHistoryFilter(r)
	if err != nil {
		writeRequestError(w, err)
		return
	}

	var (
		items []api.PackageUpdate
		total int
	)
	err = a.traced(r.Context(), "reporting.history", func(ctx context.Context) (err error) {
		items, total, err = a.store.History(ctx, hostname, filter)
		return err
	})
	if err != nil {
		a.internalError(w, "read history", err)
		return
	}
	if total == 0 {
		writeDetail(w, http.StatusNotFound, "No update history found for host: "+hostname)
		return
	}

	writeJSON(w, http.StatusOK, api.HistoryResponse{
		Items:  items,
		Total:  total,
		Limit:  filter.Limit,
		Offset: filter.Offset,
	})
}

func (a *API) handleReport(w http.ResponseWriter, r *http.Request) {
	var in api.UpdateIn
	dec := json.NewDecoder(io.LimitReader(r.Body, maxReportBody))
	if err := dec.Decode(&in); err != nil {
		writeDetail(w, http.StatusUnprocessableEntity, "Invalid report body: "+err.Error())
		return
	}

	report, err := ParseReport(in)
	if err != nil {
		writeRequestError(w, err)
		return
	}

	var n int
	err = a.traced(r.Context(), "reporting.insert_report", func(ctx context.Context) (err error) {
		n, err = a.store.InsertReport(ctx, report)
		return err
	})
	if err != nil {
		a.internalError(w, "store report", err)
		return
	}

	logger.Infof("Recorded %d package updates for %s", n, report.Hostname)
	writeJSON(w, http.StatusCreated, api.ReportAccepted{
		Status:   "success",
		Message:  fmt.Sprintf("Recorded %d package updates", n),
		Hostname: report.Hostname,
	})
}

func (a *API) handleSampleData(w http.ResponseWriter, r *http.Request) {
	reports := SampleReports(a.now())
	var result SeedResult
	err := a.traced(r.Context(), "reporting.sample_data", func(ctx context.Context) (err error) {
		result, err = Seed(ctx, a.store, reports)
		return err
	})
	if err != nil {
		a.internalError(w, "generate sample data", err)
		return
	}

	writeJSON(w, http.StatusOK, map[string]any{
		"status":         "success",
		"message":        fmt.Sprintf("Generated sample data with %d hosts and %d package updates", result.Hosts, result.Packages),
		"hosts_created":  result.Hosts,
		"total_packages": result.Packages,
	})
}

// ParseReport validates an incoming report. Empty and oversized package
// lists answer 400, malformed fields answer 422.
func ParseReport(in api.UpdateIn) (Report, error) {
	switch {
	case len(in.UpdatedPackages) == 0:
		return Report{}, badRequest("No packages provided")
	case len(in.UpdatedPackages) > api.MaxPackagesPerReport:
		return Report{}, badRequest("Too many packages in single request")
	}

	if err := checkField("hostname", in.Hostname, maxHostnameLength); err != nil {
		return Report{}, err
	}
	if err := checkField("os", in.OS, maxOSLength); err != nil {
		return Report{}, err
	}
	date, ok := api.ParseDate(in.UpdateDate)
	if !ok {
		return Report{}, unprocessable("update_date must be a YYYY-MM-DD date")
	}
	for i, p := range in.UpdatedPackages {
		if err := checkField(fmt.Sprintf("updated_packages[%d].name", i), p.Name, maxNameLength); err != nil {
			return Report{}, err
		}
		if err := checkField(fmt.Sprintf("updated_packages[%d].old_version", i), p.OldVersion, maxVersionLength); err != nil {
			return Report{}, err
		}
		if err := checkField(fmt.Sprintf("updated_packages[%d].new_version", i), p.NewVersion, maxVersionLength); err != nil {
			return Report{}, err
		}
	}

	return Report{
		Hostname: in.Hostname,
		OS:       in.OS,
		Date:     date,
		Packages: in.UpdatedPackages,
	}, nil
}

func checkField(name, value string, maxLen int) error {
	switch {
	case value == "":
		return unprocessable("%s is required", name)
	case len(value) > maxLen:
		return unprocessable("%s must be at most %d characters", name, maxLen)
	}
	return nil
}

func parseHistoryFilter(r *http.Request) (HistoryFilter, error) {
	q := r.URL.Query()
	f := HistoryFilter{
		OS:      q.Get("os"),
		Package: q.Get("package"),
		Limit:   api.DefaultPageSize,
	}

	var err error
	if f.DateFrom, err = dateQuery(q.Get("date_from"), "date_from"); err != nil {
		return f, err
	}
	if f.DateTo, err = dateQuery(q.Get("date_to"), "date_to"); err != nil {
		return f, err
	}
	if !f.DateFrom.IsZero() && !f.DateTo.IsZero() && f.DateFrom.After(f.DateTo) {
		return f, badRequest("date_from cannot be after date_to")
	}

	if v := q.Get("limit"); v != "" {
		n, err := strconv.Atoi(v)
		if err != nil || n < 1 || n > api.MaxPageSize {
			return f, unprocessable("limit must be an integer between 1 and %d", api.MaxPageSize)
		}
		f.Limit = n
	}
	if v := q.Get("offset"); v != "" {
		n, err := strconv.Atoi(v)
		if err != nil || n < 0 {
			return f, unprocessable("offset must be a non-negative integer")
		}
		f.Offset = n
	}
	return f, nil
}

func dateQuery(v, name string) (time.Time, error) {
	if v == "" {
		return time.Time{}, nil
	}
	t, ok := api.ParseDate(v)
	if !ok {
		return time.Time{}, badRequest(name + " must be a YYYY-MM-DD date")
	}
	return t, nil
}

func (a *API) traced(ctx context.Context, name string, fn func(context.Context) error) error {
	ctx, span := a.telemetry.StartSpan(ctx, name)
	err := fn(ctx)
	span.End(err)
	return err
}

func (*API) internalError(w http.ResponseWriter, op string, err error) {
	logger.Errorf("Failed to %s: %v", op, err)
	writeDetail(w, http.StatusInternalServerError, "Failed to "+op)
}

func writeRequestError(w http.ResponseWriter, err error) {
	var reqErr *requestError
	if errors.As(err, &reqErr) {
		writeDetail(w, reqErr.status, reqErr.detail)
		return
	}
	writeDetail(w, http.StatusBadRequest, err.Error())
}

func writeDetail(w http.ResponseWriter, status int, detail string) {
	writeJSON(w, status, api.ErrorResponse{Detail: detail})
}

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	if err := json.NewEncoder(w).Encode(v); err != nil {
		logger.Errorf("Failed to encode response: %v", err)
	}
}
