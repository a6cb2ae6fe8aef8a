package mcp

import (
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"strings"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	sdkmcp "github.com/modelcontextprotocol/go-sdk/mcp"
	"github.com/stacklok/toolhive/pkg/logger"
)

const maxRequestBody = 1 << 20

// ServiceInfo is reported by the root endpoint.
type ServiceInfo struct {
	Version    string
	BackendURL string
	// Metrics is mounted on /metrics when set.
	Metrics http.Handler
}

// Transport serves the REST, JSON-RPC and streamable MCP endpoints
type Transport struct {
	server *Server
	info   ServiceInfo
}

// NewTransport creates a new transport layer
func NewTransport(server *Server, info ServiceInfo) *Transport {
	return &Transport{
		server: server,
		info:   info,
	}
}

// Router returns the HTTP handler with every endpoint mounted.
func (t *Transport) Router() http.Handler {
	r := chi.NewRouter()
	r.Use(middleware.RequestID)
	r.Use(middleware.Recoverer)
	r.Use(requestLogger)

	r.Get("/", t.handleRoot)
	r.Get("/health", t.handleHealth)
	r.Get("/tools", t.handleTools)
	r.Get("/hosts", t.handleListHosts)
	r.Get("/hosts/{hostname}", t.handleHostDetails)
	r.Get("/reports", t.handleUpdateReports)
	r.Get("/reports/{hostname}", t.handleHostReports)
	r.Get("/packages", t.handleListPackages)
	r.Get("/packages/{package_name}", t.handlePackageDetails)
	r.Get("/stats", t.handleStatistics)
	r.Get("/search", t.handleSearch)

	r.Post("/rpc", t.ServeJSONRPC)

	if t.info.Metrics != nil {
		r.Method(http.MethodGet, "/metrics", t.info.Metrics)
	}

	streamable := sdkmcp.NewStreamableHTTPHandler(func(*http.Request) *sdkmcp.Server {
		return t.server.GetSDKServer()
	}, nil)
	r.Handle("/mcp", streamable)
	r.Handle("/mcp/*", streamable)

	return r
}

func requestLogger(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		start := time.Now()
		ww := middleware.NewWrapResponseWriter(w, r.ProtoMajor)
		next.ServeHTTP(ww, r)
		logger.Debugf("%s %s -> %d in %s (request %s)",
			r.Method, r.URL.Path, ww.Status(), time.Since(start), middleware.GetReqID(r.Context()))
	})
}

// ServeJSONRPC handles JSON-RPC requests over HTTP. Clients sending
// Accept: text/event-stream receive the response as a single SSE event.
func (t *Transport) ServeJSONRPC(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodPost {
		http.Error(w, "Method not allowed", http.StatusMethodNotAllowed)
		return
	}

	streaming := strings.Contains(r.Header.Get("Accept"), "text/event-stream")
	var flusher http.Flusher
	if streaming {
		var ok bool
		if flusher, ok = w.(http.Flusher); !ok {
			http.Error(w, "Streaming unsupported", http.StatusInternalServerError)
			return
		}
	}

	body, err := io.ReadAll(io.LimitReader(r.Body, maxRequestBody))
	defer r.Body.Close()
	if err != nil {
		logger.Errorf("Failed to read request body: %v", err)
		t.writeRPC(w, flusher, errorResponse(nil, ParseError, "Failed to read request", nil))
		return
	}

	req, rpcErr := ValidateRequest(body)
	if rpcErr != nil {
		logger.Errorf("Invalid request: %s", rpcErr.Message)
		var id any
		if req != nil {
			id = req.ID
		}
		t.writeRPC(w, flusher, &JSONRPCResponse{JSONRPC: "2.0", ID: id, Error: rpcErr})
		return
	}

	resp := t.server.HandleRequest(r.Context(), *req)
	if resp == nil {
		w.WriteHeader(http.StatusAccepted)
		return
	}
	t.writeRPC(w, flusher, resp)
}

// writeRPC writes resp as JSON, or as an SSE event when flusher is set.
func (*Transport) writeRPC(w http.ResponseWriter, flusher http.Flusher, resp *JSONRPCResponse) {
	if flusher == nil {
		writeJSON(w, http.StatusOK, resp)
		return
	}

	data, err := json.Marshal(resp)
	if err != nil {
		logger.Errorf("Failed to marshal SSE data: %v", err)
		return
	}

	w.Header().Set("Content-Type", "text/event-stream")
	w.Header().Set("Cache-Control", "no-cache")
	w.Header().Set("Connection", "keep-alive")
	if _, err := fmt.Fprintf(w, "event: message\ndata: %s\n\n", data); err != nil {
		logger.Errorf("Failed to write SSE message: %v", err)
		return
	}
	flusher.Flush()
}

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	if err := json.NewEncoder(w).Encode(v); err != nil {
		logger.Errorf("Failed to encode response: %v", err)
	}
}
