// Package backend provides the HTTP client for the FleetPulse reporting API.
//
// Every call goes through Client.Request, which retries transient failures
// (connection errors, timeouts and 5xx responses) with exponential backoff
// and fails fast on 4xx responses.
package backend

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strconv"
	"strings"
	"time"

	"github.com/cenkalti/backoff/v4"
	"github.com/google/uuid"
	"github.com/stacklok/toolhive/pkg/logger"

	"github.com/fleetpulse/fleetpulse/internal/telemetry"
	"github.com/fleetpulse/fleetpulse/pkg/api"
)

// Defaults applied by NewClient.
const (
	DefaultTimeout        = 30 * time.Second
	DefaultMaxRetries     = 3
	DefaultRetryBaseDelay = time.Second

	maxConnections          = 100
	maxKeepAliveConnections = 20
)

// RequestIDHeader carries the correlation id of a logical request.
const RequestIDHeader = "X-Request-ID"

// Client talks to the reporting API. It is safe for concurrent use and owns a
// pooled HTTP connection set that must be released with Close.
type Client struct {
	baseURL    string
	httpClient *http.Client
	timeout    time.Duration
	maxRetries int
	baseDelay  time.Duration
	telemetry  telemetry.Telemetry
}

// Option configures a Client.
type Option func(*Client)

// WithTimeout sets the per-call timeout.
func WithTimeout(d time.Duration) Option {
	return func(c *Client) {
		c.timeout = d
	}
}

// WithMaxRetries sets how many times a transient failure is retried.
func WithMaxRetries(n int) Option {
	return func(c *Client) {
		c.maxRetries = n
	}
}

// WithRetryBaseDelay sets the first backoff interval. Attempt n waits
// base * 2^n.
func WithRetryBaseDelay(d time.Duration) Option {
	return func(c *Client) {
		c.baseDelay = d
	}
}

// WithHTTPClient replaces the pooled HTTP client.
func WithHTTPClient(hc *http.Client) Option {
	return func(c *Client) {
		c.httpClient = hc
	}
}

// WithTelemetry attaches a Telemetry implementation.
func WithTelemetry(t telemetry.Telemetry) Option {
	return func(c *Client) {
		c.telemetry = t
	}
}

// NewClient creates a client for the API rooted at baseURL.
func NewClient(baseURL string, opts ...Option) (*Client, error) {
	if !strings.HasPrefix(baseURL, "http://") && !strings.HasPrefix(baseURL, "https://") {
		return nil, fmt.Errorf("invalid backend URL format: %s", baseURL)
	}

	c := &Client{
		baseURL:    strings.TrimRight(baseURL, "/"),
		timeout:    DefaultTimeout,
		maxRetries: DefaultMaxRetries,
		baseDelay:  DefaultRetryBaseDelay,
		telemetry:  telemetry.Noop{},
	}
	for _, opt := range opts {
		opt(c)
	}

	if c.timeout <= 0 {
		return nil, fmt.Errorf("invalid request timeout: %s", c.timeout)
	}
	if c.maxRetries < 0 {
		return nil, fmt.Errorf("invalid max retries: %d", c.maxRetries)
	}

	if c.httpClient == nil {
		c.httpClient = &http.Client{
			Timeout: c.timeout,
			Transport: &http.Transport{
				Proxy:               http.ProxyFromEnvironment,
				MaxConnsPerHost:     maxConnections,
				MaxIdleConns:        maxKeepAliveConnections,
				MaxIdleConnsPerHost: maxKeepAliveConnections,
				IdleConnTimeout:     90 * time.Second,
			},
		}
	}

	return c, nil
}

// BaseURL returns the normalized base URL.
func (c *Client) BaseURL() string {
	return c.baseURL
}

// Close releases pooled connections.
func (c *Client) Close() {
	c.httpClient.CloseIdleConnections()
}

// Response is a successful backend response.
type Response struct {
	StatusCode int
	Body       []byte
}

// Decode unmarshals the response body into v.
func (r *Response) Decode(v any) error {
	if err := json.Unmarshal(r.Body, v); err != nil {
		return fmt.Errorf("failed to decode backend response: %w", err)
	}
	return nil
}

// Request issues method on path with bounded retry. query and body are
// optional; body is JSON encoded.
func (c *Client) Request(ctx context.Context, method, path string, query url.Values, body any) (*Response, error) {
	target := c.baseURL + path
	if len(query) > 0 {
		target += "?" + query.Encode()
	}

	var payload []byte
	if body != nil {
		var err error
		payload, err = json.Marshal(body)
		if err != nil {
			return nil, fmt.Errorf("failed to encode request body: %w", err)
		}
	}

	requestID := uuid.NewString()
	ctx, span := c.telemetry.StartSpan(ctx, "backend_api_"+strings.ToLower(method),
		telemetry.Attr("http.method", method),
		telemetry.Attr("http.url", target),
		telemetry.Attr("backend.endpoint", path),
	)

	attempts := 0
	permanent := false
	var resp *Response
	operation := func() error {
		attempts++
		r, err := c.do(ctx, method, target, path, requestID, payload)
		if err != nil {
			var permErr *backoff.PermanentError
			permanent = errors.As(err, &permErr)
			return err
		}
		resp = r
		return nil
	}

	notify := func(err error, wait time.Duration) {
		var httpErr *HTTPError
		if errors.As(err, &httpErr) {
			logger.Warnf("Backend request failed with %d, retrying in %s (attempt %d)",
				httpErr.StatusCode, wait, attempts)
			return
		}
		logger.Warnf("Backend connection failed, retrying in %s (attempt %d): %v", wait, attempts, err)
	}

	err := backoff.RetryNotify(operation, c.retryPolicy(ctx), notify)
	span.SetAttribute("retry.count", attempts-1)
	if err != nil {
		var httpErr *HTTPError
		if !errors.As(err, &httpErr) && !permanent && ctx.Err() == nil {
			err = &ConnectionError{Attempts: attempts, Err: err}
		}
		span.End(err)
		return nil, err
	}

	span.SetAttribute("http.status_code", resp.StatusCode)
	span.End(nil)
	return resp, nil
}

func (c *Client) retryPolicy(ctx context.Context) backoff.BackOffContext {
	exp := backoff.NewExponentialBackOff()
	exp.InitialInterval = c.baseDelay
	exp.Multiplier = 2
	exp.RandomizationFactor = 0
	exp.MaxInterval = 24 * time.Hour
	exp.MaxElapsedTime = 0
	exp.Reset()
	return backoff.WithContext(backoff.WithMaxRetries(exp, uint64(c.maxRetries)), ctx)
}

// do performs a single attempt. Errors that must not be retried are wrapped
// with backoff.Permanent.
func (c *Client) do(ctx context.Context, method, target, endpoint, requestID string, payload []byte) (*Response, error) {
	var reader io.Reader
	if payload != nil {
		reader = bytes.NewReader(payload)
	}

	req, err := http.NewRequestWithContext(ctx, method, target, reader)
	if err != nil {
		return nil, backoff.Permanent(fmt.Errorf("failed to build request: %w", err))
	}
	req.Header.Set("Accept", "application/json")
	req.Header.Set(RequestIDHeader, requestID)
	if payload != nil {
		req.Header.Set("Content-Type", "application/json")
	}

	start := time.Now()
	httpResp, err := c.httpClient.Do(req)
	if err != nil {
		c.telemetry.RecordBackendCall(endpoint, 0, time.Since(start))
		if ctx.Err() != nil {
			return nil, backoff.Permanent(ctx.Err())
		}
		return nil, err
	}
	defer httpResp.Body.Close()

	body, err := io.ReadAll(httpResp.Body)
	c.telemetry.RecordBackendCall(endpoint, httpResp.StatusCode, time.Since(start))
	if err != nil {
		if ctx.Err() != nil {
			return nil, backoff.Permanent(ctx.Err())
		}
		return nil, fmt.Errorf("failed to read response body: %w", err)
	}

	if httpResp.StatusCode >= http.StatusBadRequest {
		httpErr := &HTTPError{StatusCode: httpResp.StatusCode, Body: string(body)}
		if httpResp.StatusCode >= http.StatusInternalServerError {
			return nil, httpErr
		}
		return nil, backoff.Permanent(httpErr)
	}

	return &Response{StatusCode: httpResp.StatusCode, Body: body}, nil
}

// Health returns the backend health document.
func (c *Client) Health(ctx context.Context) (*api.HealthStatus, error) {
	resp, err := c.Request(ctx, http.MethodGet, "/health", nil, nil)
	if err != nil {
		return nil, err
	}
	var status api.HealthStatus
	if err := resp.Decode(&status); err != nil {
		return nil, err
	}
	return &status, nil
}

// ListHosts returns every hostname that has reported updates.
func (c *Client) ListHosts(ctx context.Context) ([]string, error) {
	resp, err := c.Request(ctx, http.MethodGet, "/hosts", nil, nil)
	if err != nil {
		return nil, err
	}
	var hosts api.HostsResponse
	if err := resp.Decode(&hosts); err != nil {
		return nil, err
	}
	return hosts.Hosts, nil
}

// LastUpdates returns the most recent update of every host.
func (c *Client) LastUpdates(ctx context.Context) ([]api.HostInfo, error) {
	resp, err := c.Request(ctx, http.MethodGet, "/last-updates", nil, nil)
	if err != nil {
		return nil, err
	}
	var infos []api.HostInfo
	if err := resp.Decode(&infos); err != nil {
		return nil, err
	}
	return infos, nil
}

// HistoryQuery filters and paginates a host history request. Empty strings
// are omitted from the query; a zero Limit means api.DefaultPageSize.
type HistoryQuery struct {
	DateFrom string
	DateTo   string
	OS       string
	Package  string
	Limit    int
	Offset   int
}

func (q HistoryQuery) values() url.Values {
	limit := q.Limit
	if limit <= 0 {
		limit = api.DefaultPageSize
	}
	v := url.Values{}
	v.Set("limit", strconv.Itoa(limit))
	v.Set("offset", strconv.Itoa(q.Offset))
	if q.DateFrom != "" {
		v.Set("date_from", q.DateFrom)
	}
	if q.DateTo != "" {
		v.Set("date_to", q.DateTo)
	}
	if q.OS != "" {
		v.Set("os", q.OS)
	}
	if q.Package != "" {
		v.Set("package", q.Package)
	}
	return v
}

// HostHistory returns one page of a host's update history. A host without
// matching records yields an *HTTPError with status 404.
func (c *Client) HostHistory(ctx context.Context, hostname string, q HistoryQuery) (*api.HistoryResponse, error) {
	resp, err := c.Request(ctx, http.MethodGet, "/history/"+url.PathEscape(hostname), q.values(), nil)
	if err != nil {
		return nil, err
	}
	var page api.HistoryResponse
	if err := resp.Decode(&page); err != nil {
		return nil, err
	}
	return &page, nil
}

// ValidateConnection reports whether the backend health check succeeds.
func (c *Client) ValidateConnection(ctx context.Context) bool {
	if _, err := c.Health(ctx); err != nil {
		logger.Errorf("Backend connection validation failed: %v", err)
		return false
	}
	return true
}
