package mcp

import (
	"context"
	"encoding/json"
	"fmt"

	sdkmcp "github.com/modelcontextprotocol/go-sdk/mcp"
	"github.com/stacklok/toolhive/pkg/logger"

	"github.com/fleetpulse/fleetpulse/internal/fleet"
)

// ToolName identifies one of the fleet tools.
type ToolName string

// Supported tools
const (
	ToolHealthCheck        ToolName = "health_check"
	ToolListHosts          ToolName = "list_hosts"
	ToolGetHostDetails     ToolName = "get_host_details"
	ToolGetUpdateReports   ToolName = "get_update_reports"
	ToolGetHostReports     ToolName = "get_host_reports"
	ToolListPackages       ToolName = "list_packages"
	ToolGetPackageDetails  ToolName = "get_package_details"
	ToolGetFleetStatistics ToolName = "get_fleet_statistics"
	ToolSearch             ToolName = "search"
)

const defaultReportsLimit = 50

// Parameter structs shared by JSON-RPC, REST and the SDK server. The
// jsonschema tags feed the SDK's schema generation.

// NoParams is the argument type of tools that take no input.
type NoParams struct{}

// HostParams defines parameters for the get_host_details tool
type HostParams struct {
	Hostname string `json:"hostname" jsonschema:"Hostname to look up"`
}

// UpdateReportsParams defines parameters for the get_update_reports tool
type UpdateReportsParams struct {
	Hostname string `json:"hostname,omitempty" jsonschema:"Optional hostname filter"`
	Limit    int    `json:"limit,omitempty" jsonschema:"Maximum number of update records to read (default: 50)"`
	Offset   int    `json:"offset,omitempty" jsonschema:"Number of update records to skip for pagination"`
}

// HostReportsParams defines parameters for the get_host_reports tool
type HostReportsParams struct {
	Hostname string `json:"hostname" jsonschema:"Hostname whose reports are returned"`
	Limit    int    `json:"limit,omitempty" jsonschema:"Maximum number of update records to read (default: 50)"`
	Offset   int    `json:"offset,omitempty" jsonschema:"Number of update records to skip for pagination"`
}

// PackageParams defines parameters for the get_package_details tool
type PackageParams struct {
	PackageName string `json:"package_name" jsonschema:"Exact package name"`
}

// SearchParams defines parameters for the search tool
type SearchParams struct {
	Query      string `json:"query" jsonschema:"Case-insensitive search text; must not be blank"`
	ResultType string `json:"result_type,omitempty" jsonschema:"Optional result type filter: host, package or report"`
}

type toolSpec struct {
	Name        ToolName
	Description string
	Endpoint    string
	Parameters  []string
	Schema      InputSchema
}

var (
	noInput = InputSchema{Type: "object"}

	pagingProperties = map[string]PropertyDef{
		"limit": {
			Type:        "integer",
			Description: "Maximum number of update records to read",
			Default:     defaultReportsLimit,
		},
		"offset": {
			Type:        "integer",
			Description: "Number of update records to skip for pagination",
			Default:     0,
		},
	}
)

func withHostname(required bool) InputSchema {
	props := map[string]PropertyDef{
		"hostname": {Type: "string", Description: "Hostname of the fleet member"},
	}
	for k, v := range pagingProperties {
		props[k] = v
	}
	schema := InputSchema{Type: "object", Properties: props}
	if required {
		schema.Required = []string{"hostname"}
	}
	return schema
}

var toolCatalogue = []toolSpec{
	{
		Name:        ToolHealthCheck,
		Description: "Check the health status of FleetPulse backend and MCP server",
		Endpoint:    "/health",
		Schema:      noInput,
	},
	{
		Name:        ToolListHosts,
		Description: "List all hosts in the FleetPulse fleet",
		Endpoint:    "/hosts",
		Schema:      noInput,
	},
	{
		Name:        ToolGetHostDetails,
		Description: "Get detailed information for a specific host",
		Endpoint:    "/hosts/{hostname}",
		Parameters:  []string{"hostname"},
		Schema: InputSchema{
			Type: "object",
			Properties: map[string]PropertyDef{
				"hostname": {Type: "string", Description: "Hostname to look up"},
			},
			Required: []string{"hostname"},
		},
	},
	{
		Name:        ToolGetUpdateReports,
		Description: "Get package update reports from the fleet",
		Endpoint:    "/reports",
		Parameters:  []string{"hostname (optional)", "limit", "offset"},
		Schema:      withHostname(false),
	},
	{
		Name:        ToolGetHostReports,
		Description: "Get update reports for a specific host",
		Endpoint:    "/reports/{hostname}",
		Parameters:  []string{"hostname", "limit", "offset"},
		Schema:      withHostname(true),
	},
	{
		Name:        ToolListPackages,
		Description: "List all packages across the FleetPulse fleet",
		Endpoint:    "/packages",
		Schema:      noInput,
	},
	{
		Name:        ToolGetPackageDetails,
		Description: "Get detailed information about a specific package",
		Endpoint:    "/packages/{package_name}",
		Parameters:  []string{"package_name"},
		Schema: InputSchema{
			Type: "object",
			Properties: map[string]PropertyDef{
				"package_name": {Type: "string", Description: "Exact package name"},
			},
			Required: []string{"package_name"},
		},
	},
	{
		Name:        ToolGetFleetStatistics,
		Description: "Get aggregate statistics about the FleetPulse fleet",
		Endpoint:    "/stats",
		Schema:      noInput,
	},
	{
		Name:        ToolSearch,
		Description: "Search hostnames, package names and reports by case-insensitive substring. The query must not be blank",
		Endpoint:    "/search",
		Parameters:  []string{"q", "result_type (optional)"},
		Schema: InputSchema{
			Type: "object",
			Properties: map[string]PropertyDef{
				"query": {Type: "string", Description: "Case-insensitive search text; must not be blank"},
				"result_type": {
					Type:        "string",
					Description: "Restrict results to one category",
					Enum: []string{
						fleet.ResultTypeHost.String(),
						fleet.ResultTypePackage.String(),
						fleet.ResultTypeReport.String(),
					},
				},
			},
			Required: []string{"query"},
		},
	},
}

// Tools returns the tool catalogue in its fixed order.
func Tools() []Tool {
	tools := make([]Tool, len(toolCatalogue))
	for i, entry := range toolCatalogue {
		tools[i] = Tool{
			Name:        string(entry.Name),
			Description: entry.Description,
			InputSchema: entry.Schema,
		}
	}
	return tools
}

func describe(name ToolName) string {
	for _, entry := range toolCatalogue {
		if entry.Name == name {
			return entry.Description
		}
	}
	return ""
}

// Tool implementations. Each one validates its arguments, so the JSON-RPC,
// REST and SDK paths enforce the same rules.

func (s *Server) healthCheck(ctx context.Context, _ NoParams) (any, error) {
	return s.service.HealthCheck(ctx)
}

func (s *Server) listHosts(ctx context.Context, _ NoParams) (any, error) {
	return s.service.ListHosts(ctx)
}

func (s *Server) getHostDetails(ctx context.Context, p HostParams) (any, error) {
	if p.Hostname == "" {
		return nil, fmt.Errorf("%w: hostname is required", fleet.ErrInvalidArgument)
	}
	return s.service.GetHostDetails(ctx, p.Hostname)
}

func (s *Server) getUpdateReports(ctx context.Context, p UpdateReportsParams) (any, error) {
	limit, offset, err := paging(p.Limit, p.Offset)
	if err != nil {
		return nil, err
	}
	return s.service.GetUpdateReports(ctx, p.Hostname, limit, offset)
}

func (s *Server) getHostReports(ctx context.Context, p HostReportsParams) (any, error) {
	if p.Hostname == "" {
		return nil, fmt.Errorf("%w: hostname is required", fleet.ErrInvalidArgument)
	}
	limit, offset, err := paging(p.Limit, p.Offset)
	if err != nil {
		return nil, err
	}
	return s.service.GetHostReports(ctx, p.Hostname, limit, offset)
}

func (s *Server) listPackages(ctx context.Context, _ NoParams) (any, error) {
	return s.service.ListPackages(ctx)
}

func (s *Server) getPackageDetails(ctx context.Context, p PackageParams) (any, error) {
	if p.PackageName == "" {
		return nil, fmt.Errorf("%w: package_name is required", fleet.ErrInvalidArgument)
	}
	return s.service.GetPackageDetails(ctx, p.PackageName)
}

func (s *Server) getFleetStatistics(ctx context.Context, _ NoParams) (any, error) {
	return s.service.GetFleetStatistics(ctx)
}

func (s *Server) search(ctx context.Context, p SearchParams) (any, error) {
	return s.service.Search(ctx, p.Query, fleet.ResultType(p.ResultType))
}

func paging(limit, offset int) (int, int, error) {
	if limit < 0 {
		return 0, 0, fmt.Errorf("%w: limit must not be negative", fleet.ErrInvalidArgument)
	}
	if offset < 0 {
		return 0, 0, fmt.Errorf("%w: offset must not be negative", fleet.ErrInvalidArgument)
	}
	if limit == 0 {
		limit = defaultReportsLimit
	}
	return limit, offset, nil
}

// invoke decodes raw JSON arguments into P and runs fn.
func invoke[P any](ctx context.Context, args json.RawMessage, fn func(context.Context, P) (any, error)) (any, error) {
	var p P
	if len(args) > 0 && string(args) != "null" {
		if err := json.Unmarshal(args, &p); err != nil {
			return nil, fmt.Errorf("%w: %v", errInvalidParams, err)
		}
	}
	return fn(ctx, p)
}

// SDK registration

func (s *Server) registerSDKTools() {
	addSDKTool(s.sdk, ToolHealthCheck, s.healthCheck)
	addSDKTool(s.sdk, ToolListHosts, s.listHosts)
	addSDKTool(s.sdk, ToolGetHostDetails, s.getHostDetails)
	addSDKTool(s.sdk, ToolGetUpdateReports, s.getUpdateReports)
	addSDKTool(s.sdk, ToolGetHostReports, s.getHostReports)
	addSDKTool(s.sdk, ToolListPackages, s.listPackages)
	addSDKTool(s.sdk, ToolGetPackageDetails, s.getPackageDetails)
	addSDKTool(s.sdk, ToolGetFleetStatistics, s.getFleetStatistics)
	addSDKTool(s.sdk, ToolSearch, s.search)
}

func addSDKTool[P any](server *sdkmcp.Server, name ToolName, fn func(context.Context, P) (any, error)) {
	sdkmcp.AddTool(server, &sdkmcp.Tool{
		Name:        string(name),
		Description: describe(name),
	}, func(ctx context.Context, _ *sdkmcp.CallToolRequest, params P) (*sdkmcp.CallToolResult, any, error) {
		result, err := guard(name, func() (any, error) { return fn(ctx, params) })
		if err != nil {
			logger.Errorf("Tool %s failed: %v", name, err)
			return &sdkmcp.CallToolResult{
				Content: []sdkmcp.Content{&sdkmcp.TextContent{Text: fmt.Sprintf("Error: %v", err)}},
				IsError: true,
			}, nil, nil
		}

		text, err := json.Marshal(result)
		if err != nil {
			return nil, nil, fmt.Errorf("failed to encode %s result: %w", name, err)
		}
		return &sdkmcp.CallToolResult{
			Content: []sdkmcp.Content{&sdkmcp.TextContent{Text: string(text)}},
		}, nil, nil
	})
}
