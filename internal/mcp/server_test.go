package mcp

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/mock/gomock"

	"github.com/fleetpulse/fleetpulse/internal/backend"
	"github.com/fleetpulse/fleetpulse/internal/fleet"
	"github.com/fleetpulse/fleetpulse/internal/fleet/mocks"
)

func intPtr(n int) *int       { return &n }
func strPtr(s string) *string { return &s }

func callRequest(t *testing.T, name string, args any) JSONRPCRequest {
	t.Helper()
	params := map[string]any{"name": name}
	if args != nil {
		params["arguments"] = args
	}
	raw, err := json.Marshal(params)
	require.NoError(t, err)
	return JSONRPCRequest{JSONRPC: "2.0", ID: 7, Method: "tools/call", Params: raw}
}

func decodeResult[T any](t *testing.T, resp *JSONRPCResponse) T {
	t.Helper()
	require.NotNil(t, resp)
	require.Nil(t, resp.Error)

	raw, err := json.Marshal(resp.Result)
	require.NoError(t, err)
	var out T
	require.NoError(t, json.Unmarshal(raw, &out))
	return out
}

func TestServer_HandleInitialize(t *testing.T) {
	t.Parallel()

	ctrl := gomock.NewController(t)
	defer ctrl.Finish()

	server := NewServer(mocks.NewMockService(ctrl))

	params, err := json.Marshal(InitializeParams{
		ProtocolVersion: ProtocolVersion,
		ClientInfo:      ClientInfo{Name: "test-client", Version: "1.0.0"},
	})
	require.NoError(t, err)

	resp := server.HandleRequest(context.Background(), JSONRPCRequest{
		JSONRPC: "2.0",
		ID:      1,
		Method:  "initialize",
		Params:  params,
	})

	assert.Equal(t, "2.0", resp.JSONRPC)
	assert.Equal(t, 1, resp.ID)

	result := decodeResult[InitializeResult](t, resp)
	assert.Equal(t, ProtocolVersion, result.ProtocolVersion)
	assert.Equal(t, ServerName, result.ServerInfo.Name)
	assert.NotNil(t, result.Capabilities.Tools)
}

func TestServer_HandleNotificationsAndPing(t *testing.T) {
	t.Parallel()

	ctrl := gomock.NewController(t)
	defer ctrl.Finish()

	server := NewServer(mocks.NewMockService(ctrl))

	resp := server.HandleRequest(context.Background(), JSONRPCRequest{JSONRPC: "2.0", Method: "notifications/initialized"})
	assert.Nil(t, resp)

	resp = server.HandleRequest(context.Background(), JSONRPCRequest{JSONRPC: "2.0", ID: "p1", Method: "ping"})
	require.NotNil(t, resp)
	assert.Nil(t, resp.Error)
	assert.Equal(t, "p1", resp.ID)
}

func TestServer_HandleListTools(t *testing.T) {
	t.Parallel()

	ctrl := gomock.NewController(t)
	defer ctrl.Finish()

	server := NewServer(mocks.NewMockService(ctrl))

	resp := server.HandleRequest(context.Background(), JSONRPCRequest{JSONRPC: "2.0", ID: 1, Method: "tools/list"})
	result := decodeResult[ListToolsResult](t, resp)

	names := make([]string, 0, len(result.Tools))
	for _, tool := range result.Tools {
		names = append(names, tool.Name)
		assert.Equal(t, "object", tool.InputSchema.Type)
		assert.NotEmpty(t, tool.Description)
	}
	assert.Equal(t, []string{
		"health_check",
		"list_hosts",
		"get_host_details",
		"get_update_reports",
		"get_host_reports",
		"list_packages",
		"get_package_details",
		"get_fleet_statistics",
		"search",
	}, names)
}

func TestTools_SearchStatesBlankQueryRule(t *testing.T) {
	t.Parallel()

	for _, tool := range Tools() {
		if tool.Name != string(ToolSearch) {
			continue
		}
		assert.Contains(t, tool.Description, "must not be blank")
		assert.Contains(t, tool.InputSchema.Properties["query"].Description, "must not be blank")
		assert.Equal(t, []string{"query"}, tool.InputSchema.Required)
		return
	}
	t.Fatal("search tool missing from catalogue")
}

func TestServer_HandleCallTool(t *testing.T) {
	t.Parallel()

	tests := []struct {
		name   string
		tool   string
		args   any
		setup  func(*mocks.MockService)
		verify func(t *testing.T, structured any)
	}{
		{
			name: "list_hosts",
			tool: "list_hosts",
			setup: func(m *mocks.MockService) {
				m.EXPECT().ListHosts(gomock.Any()).Return([]fleet.HostView{
					{Hostname: "web-01", OS: "ubuntu", LastUpdate: "2024-06-01", PackagesCount: intPtr(3)},
				}, nil)
			},
			verify: func(t *testing.T, structured any) {
				t.Helper()
				hosts := structured.([]any)
				require.Len(t, hosts, 1)
				assert.Equal(t, "web-01", hosts[0].(map[string]any)["hostname"])
				assert.Equal(t, float64(3), hosts[0].(map[string]any)["packages_count"])
			},
		},
		{
			name: "get_host_details",
			tool: "get_host_details",
			args: map[string]any{"hostname": "web-01"},
			setup: func(m *mocks.MockService) {
				m.EXPECT().GetHostDetails(gomock.Any(), "web-01").
					Return(&fleet.HostView{Hostname: "web-01", OS: "ubuntu"}, nil)
			},
			verify: func(t *testing.T, structured any) {
				t.Helper()
				assert.Equal(t, "ubuntu", structured.(map[string]any)["os"])
			},
		},
		{
			name: "get_update_reports defaults limit",
			tool: "get_update_reports",
			setup: func(m *mocks.MockService) {
				m.EXPECT().GetUpdateReports(gomock.Any(), "", 50, 0).Return([]fleet.UpdateReport{}, nil)
			},
			verify: func(t *testing.T, structured any) {
				t.Helper()
				assert.Empty(t, structured)
			},
		},
		{
			name: "get_host_reports passes paging",
			tool: "get_host_reports",
			args: map[string]any{"hostname": "db-01", "limit": 10, "offset": 20},
			setup: func(m *mocks.MockService) {
				m.EXPECT().GetHostReports(gomock.Any(), "db-01", 10, 20).Return([]fleet.UpdateReport{
					{ID: 1, Hostname: "db-01", UpdateDate: "2024-06-01"},
				}, nil)
			},
			verify: func(t *testing.T, structured any) {
				t.Helper()
				assert.Len(t, structured, 1)
			},
		},
		{
			name: "get_package_details",
			tool: "get_package_details",
			args: map[string]any{"package_name": "nginx"},
			setup: func(m *mocks.MockService) {
				m.EXPECT().GetPackageDetails(gomock.Any(), "nginx").Return(&fleet.PackageView{
					Name:           "nginx",
					CurrentVersion: strPtr("1.22"),
					Hosts:          []string{"web-01"},
				}, nil)
			},
			verify: func(t *testing.T, structured any) {
				t.Helper()
				assert.Equal(t, "1.22", structured.(map[string]any)["current_version"])
				assert.Nil(t, structured.(map[string]any)["last_updated"])
			},
		},
		{
			name: "search",
			tool: "search",
			args: map[string]any{"query": "nginx", "result_type": "package"},
			setup: func(m *mocks.MockService) {
				m.EXPECT().Search(gomock.Any(), "nginx", fleet.ResultTypePackage).
					Return(&fleet.SearchResponse{Query: "nginx", Results: []fleet.SearchResult{}}, nil)
			},
			verify: func(t *testing.T, structured any) {
				t.Helper()
				assert.Equal(t, float64(0), structured.(map[string]any)["total_results"])
			},
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			t.Parallel()

			ctrl := gomock.NewController(t)
			defer ctrl.Finish()

			mockSvc := mocks.NewMockService(ctrl)
			tt.setup(mockSvc)
			server := NewServer(mockSvc)

			resp := server.HandleRequest(context.Background(), callRequest(t, tt.tool, tt.args))
			assert.Equal(t, 7, resp.ID)

			result := decodeResult[CallToolResult](t, resp)
			require.Len(t, result.Content, 1)
			assert.Equal(t, "text", result.Content[0].Type)
			assert.False(t, result.IsError)

			var fromText any
			require.NoError(t, json.Unmarshal([]byte(result.Content[0].Text), &fromText))
			assert.Equal(t, fromText, result.StructuredContent)

			tt.verify(t, result.StructuredContent)
		})
	}
}

func TestServer_HandleCallTool_Errors(t *testing.T) {
	t.Parallel()

	tests := []struct {
		name     string
		tool     string
		args     any
		setup    func(*mocks.MockService)
		wantCode int
	}{
		{
			name:     "unknown tool",
			tool:     "reboot_fleet",
			setup:    func(*mocks.MockService) {},
			wantCode: MethodNotFound,
		},
		{
			name:     "missing required argument",
			tool:     "get_host_details",
			args:     map[string]any{},
			setup:    func(*mocks.MockService) {},
			wantCode: InvalidParams,
		},
		{
			name:     "malformed arguments",
			tool:     "get_host_reports",
			args:     map[string]any{"hostname": "web-01", "limit": "ten"},
			setup:    func(*mocks.MockService) {},
			wantCode: InvalidParams,
		},
		{
			name:     "negative offset",
			tool:     "get_update_reports",
			args:     map[string]any{"offset": -1},
			setup:    func(*mocks.MockService) {},
			wantCode: InvalidParams,
		},
		{
			name: "blank search query",
			tool: "search",
			args: map[string]any{"query": "  "},
			setup: func(m *mocks.MockService) {
				m.EXPECT().Search(gomock.Any(), "  ", fleet.ResultTypeAny).
					Return(nil, fmt.Errorf("%w: query is required", fleet.ErrInvalidArgument))
			},
			wantCode: InvalidParams,
		},
		{
			name: "invalid result type",
			tool: "search",
			args: map[string]any{"query": "nginx", "result_type": "bogus"},
			setup: func(m *mocks.MockService) {
				m.EXPECT().Search(gomock.Any(), "nginx", fleet.ResultType("bogus")).
					Return(nil, fleet.ResultType("bogus").Validate())
			},
			wantCode: InvalidParams,
		},
		{
			name: "not found",
			tool: "get_package_details",
			args: map[string]any{"package_name": "missing"},
			setup: func(m *mocks.MockService) {
				m.EXPECT().GetPackageDetails(gomock.Any(), "missing").
					Return(nil, fmt.Errorf("%w: package missing", fleet.ErrNotFound))
			},
			wantCode: ServerError,
		},
		{
			name: "backend error",
			tool: "list_packages",
			setup: func(m *mocks.MockService) {
				m.EXPECT().ListPackages(gomock.Any()).
					Return(nil, &backend.HTTPError{StatusCode: http.StatusBadGateway})
			},
			wantCode: ServerError,
		},
		{
			name: "unreachable backend",
			tool: "get_fleet_statistics",
			setup: func(m *mocks.MockService) {
				m.EXPECT().GetFleetStatistics(gomock.Any()).
					Return(nil, &backend.ConnectionError{Attempts: 4, Err: errors.New("connection refused")})
			},
			wantCode: ServerError,
		},
		{
			name: "unexpected error",
			tool: "health_check",
			setup: func(m *mocks.MockService) {
				m.EXPECT().HealthCheck(gomock.Any()).Return(nil, errors.New("boom"))
			},
			wantCode: InternalError,
		},
		{
			name: "panic",
			tool: "list_hosts",
			setup: func(m *mocks.MockService) {
				m.EXPECT().ListHosts(gomock.Any()).DoAndReturn(func(context.Context) ([]fleet.HostView, error) {
					panic("nil map write")
				})
			},
			wantCode: InternalError,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			t.Parallel()

			ctrl := gomock.NewController(t)
			defer ctrl.Finish()

			mockSvc := mocks.NewMockService(ctrl)
			tt.setup(mockSvc)
			server := NewServer(mockSvc)

			resp := server.HandleRequest(context.Background(), callRequest(t, tt.tool, tt.args))
			require.NotNil(t, resp)
			require.NotNil(t, resp.Error)
			assert.Nil(t, resp.Result)
			assert.Equal(t, tt.wantCode, resp.Error.Code)
			assert.Equal(t, 7, resp.ID)
		})
	}
}

func TestServer_HandleInvalidMethod(t *testing.T) {
	t.Parallel()

	ctrl := gomock.NewController(t)
	defer ctrl.Finish()

	server := NewServer(mocks.NewMockService(ctrl))

	resp := server.HandleRequest(context.Background(), JSONRPCRequest{JSONRPC: "2.0", ID: 1, Method: "resources/list"})
	require.NotNil(t, resp.Error)
	assert.Equal(t, MethodNotFound, resp.Error.Code)
	assert.Contains(t, resp.Error.Message, "resources/list")

	resp = server.HandleRequest(context.Background(), JSONRPCRequest{JSONRPC: "1.0", ID: 1, Method: "ping"})
	require.NotNil(t, resp.Error)
	assert.Equal(t, InvalidRequest, resp.Error.Code)
}

func TestValidateRequest(t *testing.T) {
	t.Parallel()

	tests := []struct {
		name     string
		data     string
		wantCode int
	}{
		{name: "valid request", data: `{"jsonrpc":"2.0","id":1,"method":"tools/list"}`},
		{name: "notification", data: `{"jsonrpc":"2.0","method":"notifications/initialized"}`},
		{name: "invalid JSON", data: `{"jsonrpc":`, wantCode: ParseError},
		{name: "wrong version", data: `{"jsonrpc":"1.0","id":1,"method":"ping"}`, wantCode: InvalidRequest},
		{name: "missing method", data: `{"jsonrpc":"2.0","id":1}`, wantCode: InvalidRequest},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			t.Parallel()

			req, rpcErr := ValidateRequest([]byte(tt.data))
			if tt.wantCode == 0 {
				require.Nil(t, rpcErr)
				require.NotNil(t, req)
				return
			}
			require.NotNil(t, rpcErr)
			assert.Equal(t, tt.wantCode, rpcErr.Code)
		})
	}
}
