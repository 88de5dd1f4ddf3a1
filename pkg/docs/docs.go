// Package docs registers the Swagger document served under /swagger/.
package docs

import "github.com/swaggo/swag"

const docTemplate = `{
    "schemes": {{ marshal .Schemes }},
    "swagger": "2.0",
    "info": {
        "description": "{{escape .Description}}",
        "title": "{{.Title}}",
        "contact": {},
        "version": "{{.Version}}"
    },
    "host": "{{.Host}}",
    "basePath": "{{.BasePath}}",
    "paths": {
        "/health": {
            "get": {
                "produces": ["application/json"],
                "tags": ["system"],
                "summary": "Health check",
                "responses": {"200": {"description": "OK"}}
            }
        },
        "/api/v1/periods": {
            "get": {
                "produces": ["application/json"],
                "tags": ["kpis"],
                "summary": "List periods",
                "responses": {
                    "200": {"description": "OK", "schema": {"type": "array", "items": {"$ref": "#/definitions/models.PeriodOption"}}}
                }
            }
        },
        "/api/v1/kpis": {
            "get": {
                "description": "Average, best and worst lead time per metric for a period. Unknown periods fall back to 7d.",
                "produces": ["application/json"],
                "tags": ["kpis"],
                "summary": "KPI cards",
                "parameters": [
                    {"type": "string", "default": "7d", "description": "Period code", "name": "period", "in": "query"}
                ],
                "responses": {
                    "200": {"description": "OK", "schema": {"type": "array", "items": {"$ref": "#/definitions/models.MetricSummary"}}},
                    "500": {"description": "Internal server error", "schema": {"type": "string"}}
                }
            }
        },
        "/api/v1/metrics/detail": {
            "get": {
                "produces": ["application/json"],
                "tags": ["kpis"],
                "description": "Per-deal rows for one metric. Absent or unknown periods open the 1m bucket.",
                "summary": "Metric detail",
                "parameters": [
                    {"type": "string", "default": "Lead Conversion Time", "description": "Metric name", "name": "metric", "in": "query"},
                    {"type": "string", "default": "1m", "description": "Period code", "name": "period", "in": "query"}
                ],
                "responses": {
                    "200": {"description": "OK", "schema": {"$ref": "#/definitions/models.MetricDetail"}},
                    "500": {"description": "Internal server error", "schema": {"type": "string"}}
                }
            }
        },
        "/api/v1/deal-records": {
            "post": {
                "consumes": ["application/json"],
                "produces": ["application/json"],
                "tags": ["kpis"],
                "summary": "Ingest deal record",
                "parameters": [
                    {"description": "Deal record", "name": "record", "in": "body", "required": true, "schema": {"$ref": "#/definitions/models.IngestDealRecordRequest"}}
                ],
                "responses": {
                    "201": {"description": "Created", "schema": {"$ref": "#/definitions/models.DealRecord"}},
                    "400": {"description": "Malformed record", "schema": {"type": "string"}},
                    "409": {"description": "Duplicate record", "schema": {"type": "string"}}
                }
            }
        },
        "/api/v1/stages": {
            "get": {
                "produces": ["application/json"],
                "tags": ["mappings"],
                "summary": "Stage catalog",
                "responses": {"200": {"description": "OK", "schema": {"$ref": "#/definitions/handler.stageCatalog"}}}
            }
        },
        "/api/v1/mappings": {
            "get": {
                "produces": ["application/json"],
                "tags": ["mappings"],
                "summary": "List mappings",
                "responses": {
                    "200": {"description": "OK", "schema": {"type": "array", "items": {"$ref": "#/definitions/models.CanonicalMapping"}}}
                }
            },
            "post": {
                "consumes": ["application/json"],
                "produces": ["application/json"],
                "tags": ["mappings"],
                "summary": "Add mapping",
                "parameters": [
                    {"description": "Mapping", "name": "mapping", "in": "body", "required": true, "schema": {"$ref": "#/definitions/models.AddMappingRequest"}}
                ],
                "responses": {
                    "201": {"description": "Created", "schema": {"$ref": "#/definitions/models.CanonicalMapping"}},
                    "400": {"description": "Stage does not belong to pipeline", "schema": {"type": "string"}},
                    "409": {"description": "Stage already mapped", "schema": {"type": "string"}}
                }
            }
        },
        "/api/v1/mappings/{id}": {
            "delete": {
                "tags": ["mappings"],
                "summary": "Remove mapping",
                "parameters": [
                    {"type": "string", "description": "Mapping ID", "name": "id", "in": "path", "required": true}
                ],
                "responses": {
                    "204": {"description": "No Content"},
                    "404": {"description": "Mapping not found", "schema": {"type": "string"}}
                }
            }
        },
        "/api/v1/mapping-versions": {
            "get": {
                "produces": ["application/json"],
                "tags": ["mappings"],
                "summary": "List mapping versions",
                "responses": {
                    "200": {"description": "OK", "schema": {"type": "array", "items": {"$ref": "#/definitions/models.MappingVersion"}}}
                }
            },
            "post": {
                "consumes": ["application/json"],
                "produces": ["application/json"],
                "tags": ["mappings"],
                "summary": "Create mapping version",
                "parameters": [
                    {"description": "Version", "name": "version", "in": "body", "required": true, "schema": {"$ref": "#/definitions/models.CreateVersionRequest"}}
                ],
                "responses": {
                    "201": {"description": "Created", "schema": {"$ref": "#/definitions/models.MappingVersion"}},
                    "400": {"description": "Invalid version", "schema": {"type": "string"}},
                    "409": {"description": "Version label already used", "schema": {"type": "string"}}
                }
            }
        },
        "/api/v1/mapping-versions/active": {
            "get": {
                "produces": ["application/json"],
                "tags": ["mappings"],
                "summary": "Active mapping version",
                "responses": {
                    "200": {"description": "OK", "schema": {"$ref": "#/definitions/models.MappingVersion"}},
                    "404": {"description": "No active version", "schema": {"type": "string"}}
                }
            }
        },
        "/api/v1/mapping-versions/{id}/activate": {
            "post": {
                "produces": ["application/json"],
                "tags": ["mappings"],
                "summary": "Activate mapping version",
                "parameters": [
                    {"type": "string", "description": "Version ID", "name": "id", "in": "path", "required": true}
                ],
                "responses": {
                    "200": {"description": "OK", "schema": {"$ref": "#/definitions/models.MappingVersion"}},
                    "404": {"description": "Version not found", "schema": {"type": "string"}}
                }
            }
        },
        "/api/v1/deals": {
            "get": {
                "produces": ["application/json"],
                "tags": ["timeline"],
                "summary": "List deals",
                "responses": {
                    "200": {"description": "OK", "schema": {"type": "array", "items": {"$ref": "#/definitions/models.Deal"}}}
                }
            }
        },
        "/api/v1/deals/{id}/timeline": {
            "get": {
                "produces": ["application/json"],
                "tags": ["timeline"],
                "summary": "Deal timeline",
                "parameters": [
                    {"type": "string", "description": "Deal ID", "name": "id", "in": "path", "required": true}
                ],
                "responses": {
                    "200": {"description": "OK", "schema": {"$ref": "#/definitions/models.Timeline"}},
                    "404": {"description": "Deal not found", "schema": {"type": "string"}},
                    "422": {"description": "Recorded transitions are inconsistent", "schema": {"type": "string"}}
                }
            }
        }
    },
    "definitions": {
        "handler.stageCatalog": {
            "type": "object",
            "properties": {
                "canonical_stages": {"type": "array", "items": {"type": "string"}},
                "pipelines": {"type": "array", "items": {"$ref": "#/definitions/catalog.Pipeline"}}
            }
        },
        "catalog.Pipeline": {
            "type": "object",
            "properties": {
                "name": {"type": "string"},
                "stages": {"type": "array", "items": {"type": "string"}}
            }
        },
        "models.PeriodOption": {
            "type": "object",
            "properties": {
                "code": {"type": "string"},
                "label": {"type": "string"}
            }
        },
        "models.MetricSummary": {
            "type": "object",
            "properties": {
                "title": {"type": "string"},
                "average": {"type": "integer"},
                "best": {"type": "integer"},
                "worst": {"type": "integer"},
                "trend": {"type": "string", "enum": ["up", "down", "stable"]},
                "fallback": {"type": "boolean"}
            }
        },
        "models.DealRecord": {
            "type": "object",
            "properties": {
                "id": {"type": "string"},
                "metric": {"type": "string"},
                "period": {"type": "string"},
                "start_date": {"type": "string", "format": "date"},
                "end_date": {"type": "string", "format": "date"},
                "duration_days": {"type": "integer"}
            }
        },
        "models.IngestDealRecordRequest": {
            "type": "object",
            "properties": {
                "id": {"type": "string"},
                "metric": {"type": "string"},
                "period": {"type": "string"},
                "start_date": {"type": "string", "format": "date"},
                "end_date": {"type": "string", "format": "date"},
                "duration_days": {"type": "integer"}
            }
        },
        "models.MetricDetail": {
            "type": "object",
            "properties": {
                "metric": {"type": "string"},
                "period": {"type": "string"},
                "period_label": {"type": "string"},
                "average": {"type": "integer"},
                "best": {"type": "integer"},
                "worst": {"type": "integer"},
                "deals": {"type": "array", "items": {"$ref": "#/definitions/models.DealRow"}}
            }
        },
        "models.DealRow": {
            "type": "object",
            "properties": {
                "id": {"type": "string"},
                "metric": {"type": "string"},
                "period": {"type": "string"},
                "start_date": {"type": "string", "format": "date"},
                "end_date": {"type": "string", "format": "date"},
                "duration_days": {"type": "integer"},
                "rank": {"type": "string", "enum": ["best", "worst", "normal"]}
            }
        },
        "models.CanonicalMapping": {
            "type": "object",
            "properties": {
                "id": {"type": "string"},
                "canonical_stage": {"type": "string"},
                "start_pipeline": {"type": "string"},
                "start_stage": {"type": "string"},
                "end_pipeline": {"type": "string"},
                "end_stage": {"type": "string"},
                "position": {"type": "integer"}
            }
        },
        "models.AddMappingRequest": {
            "type": "object",
            "properties": {
                "canonical_stage": {"type": "string"},
                "start_pipeline": {"type": "string"},
                "start_stage": {"type": "string"},
                "end_pipeline": {"type": "string"},
                "end_stage": {"type": "string"}
            }
        },
        "models.MappingVersion": {
            "type": "object",
            "properties": {
                "id": {"type": "string"},
                "version": {"type": "string"},
                "effective_date": {"type": "string", "format": "date"},
                "created_by": {"type": "string"},
                "status": {"type": "string", "enum": ["Active", "Draft"]},
                "created_at": {"type": "string", "format": "date-time"},
                "mappings": {"type": "array", "items": {"$ref": "#/definitions/models.CanonicalMapping"}}
            }
        },
        "models.CreateVersionRequest": {
            "type": "object",
            "properties": {
                "version": {"type": "string"},
                "effective_date": {"type": "string", "format": "date"},
                "created_by": {"type": "string"}
            }
        },
        "models.Deal": {
            "type": "object",
            "properties": {
                "id": {"type": "string"},
                "name": {"type": "string"},
                "value": {"type": "string"}
            }
        },
        "models.TimelineStage": {
            "type": "object",
            "properties": {
                "name": {"type": "string"},
                "start": {"type": "string", "format": "date-time"},
                "end": {"type": "string", "format": "date-time"},
                "duration_days": {"type": "integer"},
                "status": {"type": "string", "enum": ["completed", "current", "future"]}
            }
        },
        "models.Timeline": {
            "type": "object",
            "properties": {
                "deal": {"$ref": "#/definitions/models.Deal"},
                "stages": {"type": "array", "items": {"$ref": "#/definitions/models.TimelineStage"}},
                "current": {"type": "string"}
            }
        }
    }
}`

// SwaggerInfo holds exported Swagger Info so clients can modify it
var SwaggerInfo = &swag.Spec{
	Version:          "1.0",
	Host:             "",
	BasePath:         "/",
	Schemes:          []string{},
	Title:            "Flow Efficiency API",
	Description:      "Lead-time KPIs, stage mappings and deal timelines for the sales pipeline dashboard.",
	InfoInstanceName: "swagger",
	SwaggerTemplate:  docTemplate,
	LeftDelim:        "{{",
	RightDelim:       "}}",
}

func init() {
	swag.Register(SwaggerInfo.InstanceName(), SwaggerInfo)
}
