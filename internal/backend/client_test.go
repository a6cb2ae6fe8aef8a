package backend

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"strings"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/fleetpulse/fleetpulse/pkg/api"
)

func newTestClient(t *testing.T, url string, opts ...Option) *Client {
	t.Helper()
	opts = append([]Option{WithRetryBaseDelay(time.Millisecond)}, opts...)
	c, err := NewClient(url, opts...)
	require.NoError(t, err)
	t.Cleanup(c.Close)
	return c
}

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(v)
}

func TestNewClient_Validation(t *testing.T) {
	t.Parallel()

	tests := []struct {
		name    string
		url     string
		opts    []Option
		wantErr bool
	}{
		{name: "http url", url: "http://localhost:8000"},
		{name: "https url", url: "https://fleetpulse.example.com/"},
		{name: "missing scheme", url: "localhost:8000", wantErr: true},
		{name: "ftp scheme", url: "ftp://localhost", wantErr: true},
		{name: "zero timeout", url: "http://localhost", opts: []Option{WithTimeout(0)}, wantErr: true},
		{name: "negative retries", url: "http://localhost", opts: []Option{WithMaxRetries(-1)}, wantErr: true},
		{name: "zero retries", url: "http://localhost", opts: []Option{WithMaxRetries(0)}},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			t.Parallel()

			c, err := NewClient(tt.url, tt.opts...)
			if tt.wantErr {
				assert.Error(t, err)
				assert.Nil(t, c)
				return
			}
			require.NoError(t, err)
			assert.False(t, strings.HasSuffix(c.BaseURL(), "/"))
		})
	}
}

func TestRequest_RetriesServerErrorsThenSucceeds(t *testing.T) {
	t.Parallel()

	var calls atomic.Int32
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
		if calls.Add(1) <= 2 {
			writeJSON(w, http.StatusServiceUnavailable, api.ErrorResponse{Detail: "busy"})
			return
		}
		writeJSON(w, http.StatusOK, api.HostsResponse{Hosts: []string{"web-01"}})
	}))
	defer srv.Close()

	c := newTestClient(t, srv.URL, WithMaxRetries(3))
	hosts, err := c.ListHosts(context.Background())

	require.NoError(t, err)
	assert.Equal(t, []string{"web-01"}, hosts)
	assert.Equal(t, int32(3), calls.Load())
}

func TestRequest_ServerErrorExhaustsRetries(t *testing.T) {
	t.Parallel()

	var calls atomic.Int32
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
		calls.Add(1)
		http.Error(w, "unavailable", http.StatusServiceUnavailable)
	}))
	defer srv.Close()

	c := newTestClient(t, srv.URL, WithMaxRetries(3))
	_, err := c.Request(context.Background(), http.MethodGet, "/hosts", nil, nil)

	var httpErr *HTTPError
	require.ErrorAs(t, err, &httpErr)
	assert.Equal(t, http.StatusServiceUnavailable, httpErr.StatusCode)
	assert.Contains(t, httpErr.Body, "unavailable")
	assert.Equal(t, int32(4), calls.Load())
	assert.False(t, IsConnectionError(err))
}

func TestRequest_ClientErrorsAreNotRetried(t *testing.T) {
	t.Parallel()

	for _, status := range []int{http.StatusBadRequest, http.StatusNotFound, http.StatusUnprocessableEntity} {
		var calls atomic.Int32
		srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
			calls.Add(1)
			writeJSON(w, status, api.ErrorResponse{Detail: "nope"})
		}))

		c := newTestClient(t, srv.URL, WithMaxRetries(3))
		_, err := c.Request(context.Background(), http.MethodGet, "/history/ghost", nil, nil)
		srv.Close()

		var httpErr *HTTPError
		require.ErrorAs(t, err, &httpErr)
		assert.Equal(t, status, httpErr.StatusCode)
		assert.Equal(t, int32(1), calls.Load(), "status %d must not be retried", status)
		assert.Equal(t, status == http.StatusNotFound, IsNotFound(err))
	}
}

func TestRequest_ConnectionRefused(t *testing.T) {
	t.Parallel()

	srv := httptest.NewServer(http.NotFoundHandler())
	url := srv.URL
	srv.Close()

	c := newTestClient(t, url, WithMaxRetries(2))
	_, err := c.Request(context.Background(), http.MethodGet, "/health", nil, nil)

	var connErr *ConnectionError
	require.ErrorAs(t, err, &connErr)
	assert.Equal(t, 3, connErr.Attempts)
	assert.True(t, IsConnectionError(err))
	assert.Contains(t, err.Error(), "after 3 attempts")
}

func TestRequest_TimeoutIsRetriedAsConnectionError(t *testing.T) {
	t.Parallel()

	var calls atomic.Int32
	release := make(chan struct{})
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		calls.Add(1)
		select {
		case <-release:
		case <-r.Context().Done():
		}
	}))
	defer srv.Close()
	defer close(release)

	c := newTestClient(t, srv.URL, WithMaxRetries(1), WithTimeout(20*time.Millisecond))
	_, err := c.Request(context.Background(), http.MethodGet, "/hosts", nil, nil)

	assert.True(t, IsConnectionError(err))
	assert.Equal(t, int32(2), calls.Load())
}

func TestRequest_ContextCancelStopsRetrying(t *testing.T) {
	t.Parallel()

	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
		http.Error(w, "down", http.StatusBadGateway)
	}))
	defer srv.Close()

	c := newTestClient(t, srv.URL, WithMaxRetries(5), WithRetryBaseDelay(time.Hour))
	ctx, cancel := context.WithTimeout(context.Background(), 50*time.Millisecond)
	defer cancel()

	_, err := c.Request(ctx, http.MethodGet, "/hosts", nil, nil)
	require.Error(t, err)
	assert.True(t, errors.Is(err, context.DeadlineExceeded))
	assert.False(t, IsConnectionError(err))
}

func TestRequest_RequestIDStableAcrossRetries(t *testing.T) {
	t.Parallel()

	var (
		mu  sync.Mutex
		ids []string
	)
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		mu.Lock()
		ids = append(ids, r.Header.Get(RequestIDHeader))
		n := len(ids)
		mu.Unlock()
		if n == 1 {
			http.Error(w, "oops", http.StatusInternalServerError)
			return
		}
		writeJSON(w, http.StatusOK, map[string]string{"ok": "yes"})
	}))
	defer srv.Close()

	c := newTestClient(t, srv.URL)
	_, err := c.Request(context.Background(), http.MethodGet, "/anything", nil, nil)
	require.NoError(t, err)

	require.Len(t, ids, 2)
	assert.NotEmpty(t, ids[0])
	assert.Equal(t, ids[0], ids[1])
}

func TestRequest_SendsJSONBody(t *testing.T) {
	t.Parallel()

	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, http.MethodPost, r.Method)
		assert.Equal(t, "application/json", r.Header.Get("Content-Type"))
		var in api.UpdateIn
		require.NoError(t, json.NewDecoder(r.Body).Decode(&in))
		writeJSON(w, http.StatusCreated, api.ReportAccepted{Status: "success", Hostname: in.Hostname})
	}))
	defer srv.Close()

	c := newTestClient(t, srv.URL)
	resp, err := c.Request(context.Background(), http.MethodPost, "/report", nil, api.UpdateIn{Hostname: "web-01"})
	require.NoError(t, err)
	assert.Equal(t, http.StatusCreated, resp.StatusCode)

	var accepted api.ReportAccepted
	require.NoError(t, resp.Decode(&accepted))
	assert.Equal(t, "web-01", accepted.Hostname)
}

func TestHostHistory_PassesFilters(t *testing.T) {
	t.Parallel()

	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, "/history/web-01", r.URL.Path)
		q := r.URL.Query()
		assert.Equal(t, "2024-01-01", q.Get("date_from"))
		assert.Equal(t, "2024-02-01", q.Get("date_to"))
		assert.Equal(t, "ubuntu", q.Get("os"))
		assert.Equal(t, "nginx", q.Get("package"))
		assert.Equal(t, "25", q.Get("limit"))
		assert.Equal(t, "5", q.Get("offset"))
		writeJSON(w, http.StatusOK, api.HistoryResponse{
			Items:  []api.PackageUpdate{{ID: 1, Hostname: "web-01", Name: "nginx", UpdateDate: "2024-01-10"}},
			Total:  6,
			Limit:  25,
			Offset: 5,
		})
	}))
	defer srv.Close()

	c := newTestClient(t, srv.URL)
	page, err := c.HostHistory(context.Background(), "web-01", HistoryQuery{
		DateFrom: "2024-01-01",
		DateTo:   "2024-02-01",
		OS:       "ubuntu",
		Package:  "nginx",
		Limit:    25,
		Offset:   5,
	})
	require.NoError(t, err)
	assert.Equal(t, 6, page.Total)
	require.Len(t, page.Items, 1)
	assert.Equal(t, "nginx", page.Items[0].Name)
}

func TestHostHistory_DefaultLimitAndOmittedFilters(t *testing.T) {
	t.Parallel()

	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		q := r.URL.Query()
		assert.Equal(t, "50", q.Get("limit"))
		assert.Equal(t, "0", q.Get("offset"))
		assert.False(t, q.Has("os"))
		assert.False(t, q.Has("package"))
		writeJSON(w, http.StatusOK, api.HistoryResponse{Items: []api.PackageUpdate{}})
	}))
	defer srv.Close()

	c := newTestClient(t, srv.URL)
	_, err := c.HostHistory(context.Background(), "web-01", HistoryQuery{})
	require.NoError(t, err)
}

func TestLastUpdatesAndHealth(t *testing.T) {
	t.Parallel()

	mux := http.NewServeMux()
	mux.HandleFunc("/last-updates", func(w http.ResponseWriter, _ *http.Request) {
		writeJSON(w, http.StatusOK, []api.HostInfo{{Hostname: "db-01", OS: "centos", LastUpdate: "2024-03-01"}})
	})
	mux.HandleFunc("/health", func(w http.ResponseWriter, _ *http.Request) {
		writeJSON(w, http.StatusOK, api.HealthStatus{Status: "healthy", Database: "connected", Telemetry: map[string]any{"enabled": false}})
	})
	srv := httptest.NewServer(mux)
	defer srv.Close()

	c := newTestClient(t, srv.URL)

	infos, err := c.LastUpdates(context.Background())
	require.NoError(t, err)
	assert.Equal(t, []api.HostInfo{{Hostname: "db-01", OS: "centos", LastUpdate: "2024-03-01"}}, infos)

	health, err := c.Health(context.Background())
	require.NoError(t, err)
	assert.Equal(t, "healthy", health.Status)
	assert.True(t, c.ValidateConnection(context.Background()))
}

func TestValidateConnection_SwallowsErrors(t *testing.T) {
	t.Parallel()

	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
		http.Error(w, "broken", http.StatusInternalServerError)
	}))
	defer srv.Close()

	c := newTestClient(t, srv.URL, WithMaxRetries(0))
	assert.False(t, c.ValidateConnection(context.Background()))
}

func TestDecode_MalformedBodyIsNotRetried(t *testing.T) {
	t.Parallel()

	var calls atomic.Int32
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
		calls.Add(1)
		_, _ = w.Write([]byte("not json"))
	}))
	defer srv.Close()

	c := newTestClient(t, srv.URL)
	_, err := c.ListHosts(context.Background())
	require.Error(t, err)
	assert.Contains(t, err.Error(), "failed to decode")
	assert.Equal(t, int32(1), calls.Load())
}
