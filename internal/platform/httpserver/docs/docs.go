// Package docs holds the OpenAPI document served at /swagger/doc.json.
package docs

import "github.com/swaggo/swag"

const docTemplate = `{
    "schemes": {{ marshal .Schemes }},
    "swagger": "2.0",
    "info": {
        "description": "{{escape .Description}}",
        "title": "{{.Title}}",
        "version": "{{.Version}}"
    },
    "host": "{{.Host}}",
    "basePath": "{{.BasePath}}",
    "paths": {
        "/healthz": {
            "get": {
                "produces": ["application/json"],
                "tags": ["platform"],
                "summary": "Liveness probe",
                "responses": {
                    "200": {"description": "OK"}
                }
            }
        },
        "/v1/rules": {
            "get": {
                "produces": ["application/json"],
                "tags": ["rules"],
                "summary": "List the caller's watch rules",
                "parameters": [
                    {"type": "string", "name": "X-User-Id", "in": "header", "required": true},
                    {"type": "integer", "name": "limit", "in": "query"}
                ],
                "responses": {
                    "200": {"description": "OK"},
                    "401": {"description": "Unauthorized"}
                }
            },
            "post": {
                "consumes": ["application/json"],
                "produces": ["application/json"],
                "tags": ["rules"],
                "summary": "Create a keyword watch rule",
                "parameters": [
                    {"type": "string", "name": "X-User-Id", "in": "header", "required": true}
                ],
                "responses": {
                    "201": {"description": "Created"},
                    "400": {"description": "Bad Request"}
                }
            }
        },
        "/v1/releases": {
            "get": {
                "produces": ["application/json"],
                "tags": ["releases"],
                "summary": "List the caller's watched releases",
                "parameters": [
                    {"type": "string", "name": "X-User-Id", "in": "header", "required": true}
                ],
                "responses": {
                    "200": {"description": "OK"}
                }
            },
            "post": {
                "consumes": ["application/json"],
                "produces": ["application/json"],
                "tags": ["releases"],
                "summary": "Watch a specific release or master",
                "parameters": [
                    {"type": "string", "name": "X-User-Id", "in": "header", "required": true}
                ],
                "responses": {
                    "201": {"description": "Created"},
                    "409": {"description": "Conflict"}
                }
            }
        },
        "/v1/imports": {
            "post": {
                "consumes": ["application/json"],
                "produces": ["application/json"],
                "tags": ["imports"],
                "summary": "Start a Discogs wantlist or collection import",
                "parameters": [
                    {"type": "string", "name": "X-User-Id", "in": "header", "required": true}
                ],
                "responses": {
                    "200": {"description": "Existing job returned"},
                    "202": {"description": "Fresh job accepted"}
                }
            }
        },
        "/v1/notifications": {
            "get": {
                "produces": ["application/json"],
                "tags": ["notifications"],
                "summary": "List the caller's notifications",
                "parameters": [
                    {"type": "string", "name": "X-User-Id", "in": "header", "required": true}
                ],
                "responses": {
                    "200": {"description": "OK"}
                }
            }
        },
        "/v1/stream": {
            "get": {
                "produces": ["text/event-stream"],
                "tags": ["notifications"],
                "summary": "Realtime notification stream",
                "parameters": [
                    {"type": "string", "name": "X-User-Id", "in": "header", "required": true}
                ],
                "responses": {
                    "200": {"description": "OK"}
                }
            }
        },
        "/outbound/listings/{listing_id}": {
            "get": {
                "tags": ["listings"],
                "summary": "Record a click and redirect to the marketplace",
                "parameters": [
                    {"type": "string", "name": "X-User-Id", "in": "header", "required": true},
                    {"type": "string", "name": "listing_id", "in": "path", "required": true}
                ],
                "responses": {
                    "307": {"description": "Temporary Redirect"},
                    "404": {"description": "Not Found"}
                }
            }
        }
    }
}`

// SwaggerInfo holds exported Swagger Info so clients can modify it.
var SwaggerInfo = &swag.Spec{
	Version:          "1.0",
	Host:             "",
	BasePath:         "/",
	Schemes:          []string{},
	Title:            "cratewatch API",
	Description:      "Record marketplace watch engine: rules, releases, listings, imports, notifications.",
	InfoInstanceName: "swagger",
	SwaggerTemplate:  docTemplate,
}

func init() {
	swag.Register(SwaggerInfo.InstanceName(), SwaggerInfo)
}
