package mcp

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"

	sdkmcp "github.com/modelcontextprotocol/go-sdk/mcp"
	"github.com/stacklok/toolhive/pkg/logger"

	"github.com/fleetpulse/fleetpulse/internal/backend"
	"github.com/fleetpulse/fleetpulse/internal/fleet"
	"github.com/fleetpulse/fleetpulse/internal/versions"
)

// Method is a JSON-RPC method understood by the server.
type Method string

// Supported methods
const (
	MethodInitialize  Method = "initialize"
	MethodInitialized Method = "notifications/initialized"
	MethodPing        Method = "ping"
	MethodToolsList   Method = "tools/list"
	MethodToolsCall   Method = "tools/call"
)

var (
	errToolNotFound  = errors.New("tool not found")
	errInvalidParams = errors.New("invalid params")
	errPanic         = errors.New("tool panicked")
)

// Server represents an MCP server instance
type Server struct {
	service fleet.Service
	sdk     *sdkmcp.Server
}

// NewServer creates a new MCP server
func NewServer(svc fleet.Service) *Server {
	s := &Server{
		service: svc,
		sdk: sdkmcp.NewServer(&sdkmcp.Implementation{
			Name:    ServerName,
			Version: versions.GetVersionInfo().Version,
		}, nil),
	}
	s.registerSDKTools()
	return s
}

// GetSDKServer returns the SDK server carrying the same tools, for the stdio
// and streamable HTTP transports.
func (s *Server) GetSDKServer() *sdkmcp.Server {
	return s.sdk
}

// HandleRequest processes an MCP JSON-RPC request. It returns nil for
// notifications.
func (s *Server) HandleRequest(ctx context.Context, req JSONRPCRequest) *JSONRPCResponse {
	if req.JSONRPC != "2.0" {
		return errorResponse(req.ID, InvalidRequest, "Invalid JSON-RPC version", nil)
	}

	switch Method(req.Method) {
	case MethodInitialize:
		return s.handleInitialize(req)
	case MethodInitialized:
		logger.Debug("MCP client finished initialization")
		if req.IsNotification() {
			return nil
		}
		return successResponse(req.ID, struct{}{})
	case MethodPing:
		return successResponse(req.ID, struct{}{})
	case MethodToolsList:
		return successResponse(req.ID, ListToolsResult{Tools: Tools()})
	case MethodToolsCall:
		return s.handleCallTool(ctx, req)
	default:
		return errorResponse(req.ID, MethodNotFound, fmt.Sprintf("Method not found: %s", req.Method), nil)
	}
}

func (*Server) handleInitialize(req JSONRPCRequest) *JSONRPCResponse {
	var params InitializeParams
	if len(req.Params) > 0 {
		if err := json.Unmarshal(req.Params, &params); err != nil {
			return errorResponse(req.ID, InvalidParams, "Invalid initialize parameters", nil)
		}
	}

	logger.Infof("MCP client connected: %s v%s", params.ClientInfo.Name, params.ClientInfo.Version)

	return successResponse(req.ID, InitializeResult{
		ProtocolVersion: ProtocolVersion,
		Capabilities: ServerCapabilities{
			Tools: &ToolsCapability{ListChanged: false},
		},
		ServerInfo: ServerInfo{
			Name:    ServerName,
			Version: versions.GetVersionInfo().Version,
		},
	})
}

func (s *Server) handleCallTool(ctx context.Context, req JSONRPCRequest) *JSONRPCResponse {
	var params CallToolParams
	if err := json.Unmarshal(req.Params, &params); err != nil {
		return errorResponse(req.ID, InvalidParams, "Invalid tool call parameters", nil)
	}

	result, err := s.CallTool(ctx, ToolName(params.Name), params.Arguments)
	if err != nil {
		logger.Errorf("Tool execution error for %s: %v", params.Name, err)
		return errorResponse(req.ID, errorCode(err), fmt.Sprintf("Tool execution failed: %v", err), map[string]string{"tool": params.Name})
	}

	text, err := json.Marshal(result)
	if err != nil {
		return errorResponse(req.ID, InternalError, fmt.Sprintf("Failed to encode result: %v", err), nil)
	}
	return successResponse(req.ID, CallToolResult{
		Content:           []Content{{Type: "text", Text: string(text)}},
		StructuredContent: result,
	})
}

// CallTool runs a tool with JSON encoded arguments. Panics inside the tool
// are recovered and reported as errors.
func (s *Server) CallTool(ctx context.Context, name ToolName, args json.RawMessage) (any, error) {
	return guard(name, func() (any, error) {
		switch name {
		case ToolHealthCheck:
			return invoke(ctx, args, s.healthCheck)
		case ToolListHosts:
			return invoke(ctx, args, s.listHosts)
		case ToolGetHostDetails:
			return invoke(ctx, args, s.getHostDetails)
		case ToolGetUpdateReports:
			return invoke(ctx, args, s.getUpdateReports)
		case ToolGetHostReports:
			return invoke(ctx, args, s.getHostReports)
		case ToolListPackages:
			return invoke(ctx, args, s.listPackages)
		case ToolGetPackageDetails:
			return invoke(ctx, args, s.getPackageDetails)
		case ToolGetFleetStatistics:
			return invoke(ctx, args, s.getFleetStatistics)
		case ToolSearch:
			return invoke(ctx, args, s.search)
		default:
			return nil, fmt.Errorf("%w: %s", errToolNotFound, name)
		}
	})
}

func guard(name ToolName, fn func() (any, error)) (result any, err error) {
	defer func() {
		if r := recover(); r != nil {
			logger.Errorf("Recovered panic in tool %s: %v", name, r)
			result, err = nil, fmt.Errorf("%w: %v", errPanic, r)
		}
	}()
	return fn()
}

// errorCode maps a tool error onto a JSON-RPC error code.
func errorCode(err error) int {
	var httpErr *backend.HTTPError
	switch {
	case errors.Is(err, errToolNotFound):
		return MethodNotFound
	case errors.Is(err, errInvalidParams), errors.Is(err, fleet.ErrInvalidArgument):
		return InvalidParams
	case errors.Is(err, fleet.ErrNotFound), backend.IsConnectionError(err), errors.As(err, &httpErr):
		return ServerError
	default:
		return InternalError
	}
}

func successResponse(id any, result any) *JSONRPCResponse {
	return &JSONRPCResponse{
		JSONRPC: "2.0",
		ID:      id,
		Result:  result,
	}
}

func errorResponse(id any, code int, message string, data any) *JSONRPCResponse {
	return &JSONRPCResponse{
		JSONRPC: "2.0",
		ID:      id,
		Error: &RPCError{
			Code:    code,
			Message: message,
			Data:    data,
		},
	}
}

// ValidateRequest parses and validates a JSON-RPC request
func ValidateRequest(data []byte) (*JSONRPCRequest, *RPCError) {
	var req JSONRPCRequest
	if err := json.Unmarshal(data, &req); err != nil {
		return nil, &RPCError{Code: ParseError, Message: "invalid JSON"}
	}

	if req.JSONRPC != "2.0" {
		return &req, &RPCError{Code: InvalidRequest, Message: "invalid JSON-RPC version"}
	}

	if req.Method == "" {
		return &req, &RPCError{Code: InvalidRequest, Message: "method is required"}
	}

	return &req, nil
}
