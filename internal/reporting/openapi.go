package reporting

import (
	"net/http"

	"github.com/stacklok/toolhive/pkg/logger"
	"github.com/swaggo/swag/v2"

	"github.com/fleetpulse/fleetpulse/internal/versions"
)

// OpenAPIInstance is the swag registry name of the reporting API document.
const OpenAPIInstance = "fleetpulse-api"

// OpenAPISpec describes the reporting API. Version is filled from the build
// information at registration.
var OpenAPISpec = &swag.Spec{
	Version:          versions.Version,
	BasePath:         "/",
	Schemes:          []string{"http", "https"},
	Title:            "FleetPulse Reporting API",
	Description:      "Collects package update reports from fleet hosts and serves their history.",
	InfoInstanceName: OpenAPIInstance,
	SwaggerTemplate:  openAPITemplate,
	LeftDelim:        "{{",
	RightDelim:       "}}",
}

func init() {
	swag.Register(OpenAPISpec.InstanceName(), OpenAPISpec)
}

func (*API) handleOpenAPI(w http.ResponseWriter, _ *http.Request) {
	doc, err := swag.ReadDoc(OpenAPIInstance)
	if err != nil {
		logger.Errorf("Failed to render OpenAPI document: %v", err)
		writeDetail(w, http.StatusInternalServerError, "Failed to render OpenAPI document")
		return
	}
	w.Header().Set("Content-Type", "application/json")
	_, _ = w.Write([]byte(doc))
}

const openAPITemplate = `{
  "openapi": "3.0.3",
  "info": {
    "title": "{{.Title}}",
    "description": "{{escape .Description}}",
    "version": "{{.Version}}"
  },
  "servers": [{"url": "{{.BasePath}}"}],
  "paths": {
    "/health": {
      "get": {
        "summary": "Report service and storage health",
        "responses": {
          "200": {"description": "Healthy", "content": {"application/json": {"schema": {"$ref": "#/components/schemas/Health"}}}},
          "503": {"description": "Storage unreachable", "content": {"application/json": {"schema": {"$ref": "#/components/schemas/Error"}}}}
        }
      }
    },
    "/hosts": {
      "get": {
        "summary": "List hostnames that have reported",
        "responses": {
          "200": {"description": "Sorted hostnames", "content": {"application/json": {"schema": {"type": "object", "properties": {"hosts": {"type": "array", "items": {"type": "string"}}}}}}}
        }
      }
    },
    "/last-updates": {
      "get": {
        "summary": "Most recent update date per host",
        "responses": {
          "200": {"description": "One entry per host", "content": {"application/json": {"schema": {"type": "array", "items": {"$ref": "#/components/schemas/LastUpdate"}}}}}
        }
      }
    },
    "/history/{hostname}": {
      "get": {
        "summary": "Filtered, paginated update history of one host",
        "parameters": [
          {"name": "hostname", "in": "path", "required": true, "schema": {"type": "string"}},
          {"name": "date_from", "in": "query", "schema": {"type": "string", "format": "date"}},
          {"name": "date_to", "in": "query", "schema": {"type": "string", "format": "date"}},
          {"name": "os", "in": "query", "schema": {"type": "string"}},
          {"name": "package", "in": "query", "schema": {"type": "string"}},
          {"name": "limit", "in": "query", "schema": {"type": "integer", "minimum": 1, "maximum": 1000, "default": 50}},
          {"name": "offset", "in": "query", "schema": {"type": "integer", "minimum": 0, "default": 0}}
        ],
        "responses": {
          "200": {"description": "One page of history", "content": {"application/json": {"schema": {"$ref": "#/components/schemas/History"}}}},
          "400": {"description": "Malformed date range", "content": {"application/json": {"schema": {"$ref": "#/components/schemas/Error"}}}},
          "404": {"description": "Host has no history", "content": {"application/json": {"schema": {"$ref": "#/components/schemas/Error"}}}},
          "422": {"description": "Pagination out of range", "content": {"application/json": {"schema": {"$ref": "#/components/schemas/Error"}}}}
        }
      }
    },
    "/report": {
      "post": {
        "summary": "Submit the package changes applied on one host",
        "requestBody": {"required": true, "content": {"application/json": {"schema": {"$ref": "#/components/schemas/Report"}}}},
        "responses": {
          "200": {"description": "Report stored", "content": {"application/json": {"schema": {"$ref": "#/components/schemas/Accepted"}}}},
          "400": {"description": "Empty or oversized package list", "content": {"application/json": {"schema": {"$ref": "#/components/schemas/Error"}}}},
          "422": {"description": "Missing or invalid field", "content": {"application/json": {"schema": {"$ref": "#/components/schemas/Error"}}}}
        }
      }
    },
    "/demo/sample-data": {
      "post": {
        "summary": "Load the built-in sample fleet",
        "responses": {
          "200": {"description": "Sample data loaded"}
        }
      }
    }
  },
  "components": {
    "schemas": {
      "Error": {"type": "object", "properties": {"detail": {"type": "string"}}},
      "Health": {"type": "object", "properties": {"status": {"type": "string"}, "database": {"type": "string"}, "telemetry": {"type": "object"}, "timestamp": {"type": "string", "format": "date-time"}}},
      "LastUpdate": {"type": "object", "properties": {"hostname": {"type": "string"}, "os": {"type": "string"}, "last_update": {"type": "string", "format": "date"}}},
      "PackageUpdate": {
        "type": "object",
        "properties": {
          "id": {"type": "integer"},
          "hostname": {"type": "string"},
          "os": {"type": "string"},
          "update_date": {"type": "string", "format": "date"},
          "name": {"type": "string"},
          "old_version": {"type": "string"},
          "new_version": {"type": "string"}
        }
      },
      "Accepted": {"type": "object", "properties": {"status": {"type": "string"}, "message": {"type": "string"}, "hostname": {"type": "string"}}},
      "PackageChange": {
        "type": "object",
        "required": ["name", "old_version", "new_version"],
        "properties": {"name": {"type": "string", "maxLength": 255}, "old_version": {"type": "string", "maxLength": 100}, "new_version": {"type": "string", "maxLength": 100}}
      },
      "Report": {
        "type": "object",
        "required": ["hostname", "os", "update_date", "updated_packages"],
        "properties": {
          "hostname": {"type": "string", "maxLength": 255},
          "os": {"type": "string", "maxLength": 50},
          "update_date": {"type": "string", "format": "date"},
          "updated_packages": {"type": "array", "minItems": 1, "maxItems": 1000, "items": {"$ref": "#/components/schemas/PackageChange"}}
        }
      },
      "History": {
        "type": "object",
        "properties": {
          "items": {"type": "array", "items": {"$ref": "#/components/schemas/PackageUpdate"}},
          "total": {"type": "integer"},
          "limit": {"type": "integer"},
          "offset": {"type": "integer"}
        }
      }
    }
  }
}`
