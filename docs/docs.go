// Package docs registers the OpenAPI description served at /swagger.
// Regenerate with: swag init -g cmd/salonq/main.go
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
    "securityDefinitions": {
        "BearerAuth": {
            "type": "apiKey",
            "name": "Authorization",
            "in": "header"
        }
    },
    "paths": {
        "/healthz": {
            "get": {
                "summary": "Liveness probe",
                "responses": {"200": {"description": "OK"}}
            }
        },
        "/api/salons": {
            "get": {
                "summary": "List salons with live queue figures",
                "parameters": [
                    {"type": "boolean", "name": "online", "in": "query"},
                    {"type": "integer", "name": "limit", "in": "query"},
                    {"type": "integer", "name": "offset", "in": "query"}
                ],
                "responses": {"200": {"description": "OK"}, "304": {"description": "Not Modified"}}
            }
        },
        "/api/salons/{id}": {
            "get": {
                "summary": "Get salon",
                "parameters": [{"type": "string", "name": "id", "in": "path", "required": true}],
                "responses": {"200": {"description": "OK"}, "404": {"description": "Not Found"}}
            }
        },
        "/api/queue/join": {
            "post": {
                "security": [{"BearerAuth": []}],
                "summary": "Join a salon queue (idempotent)",
                "parameters": [
                    {"type": "string", "name": "Idempotency-Key", "in": "header"},
                    {"name": "req", "in": "body", "required": true, "schema": {"$ref": "#/definitions/httpgin.JoinQueueRequest"}}
                ],
                "responses": {
                    "201": {"description": "Created"},
                    "400": {"description": "Bad Request"},
                    "409": {"description": "Conflict"},
                    "429": {"description": "Too Many Requests"}
                }
            }
        },
        "/api/queue/walk-in": {
            "post": {
                "security": [{"BearerAuth": []}],
                "summary": "Add a walk-in guest to the queue",
                "parameters": [{"name": "req", "in": "body", "required": true, "schema": {"$ref": "#/definitions/httpgin.WalkInRequest"}}],
                "responses": {"201": {"description": "Created"}, "400": {"description": "Bad Request"}}
            }
        },
        "/api/queue/me": {
            "get": {
                "security": [{"BearerAuth": []}],
                "summary": "Current ticket with people ahead",
                "responses": {"200": {"description": "OK"}, "404": {"description": "Not Found"}}
            }
        },
        "/api/queue/{id}/{action}": {
            "post": {
                "security": [{"BearerAuth": []}],
                "summary": "Apply a transition (accept, reject, start, complete, no-show, extend, cancel)",
                "parameters": [
                    {"type": "string", "name": "id", "in": "path", "required": true},
                    {"type": "string", "name": "action", "in": "path", "required": true}
                ],
                "responses": {"200": {"description": "OK"}, "404": {"description": "Not Found"}, "409": {"description": "Conflict"}}
            }
        },
        "/api/salon/board": {
            "get": {
                "security": [{"BearerAuth": []}],
                "summary": "Salon board with today's stats",
                "responses": {"200": {"description": "OK"}}
            }
        },
        "/api/bookings/history": {
            "get": {
                "security": [{"BearerAuth": []}],
                "summary": "Booking history of the caller",
                "responses": {"200": {"description": "OK"}}
            }
        },
        "/api/admin/salons": {
            "post": {
                "security": [{"BearerAuth": []}],
                "summary": "Register a salon",
                "parameters": [{"name": "req", "in": "body", "required": true, "schema": {"$ref": "#/definitions/httpgin.CreateSalonRequest"}}],
                "responses": {"201": {"description": "Created"}, "409": {"description": "Conflict"}}
            }
        },
        "/api/admin/stats": {
            "get": {
                "security": [{"BearerAuth": []}],
                "summary": "Platform-wide stats",
                "responses": {"200": {"description": "OK"}}
            }
        },
        "/ws": {
            "get": {
                "summary": "Subscribe to live queue events",
                "description": "Send {\"action\":\"join\",\"room\":\"salon_<id>\"} to subscribe. Rooms are salon_<id>, user_<id> and admin_room.",
                "parameters": [
                    {"type": "string", "description": "bearer token when headers cannot be set", "name": "token", "in": "query"}
                ],
                "responses": {"101": {"description": "switching protocols"}, "401": {"description": "Unauthorized"}}
            }
        }
    },
    "definitions": {
        "httpgin.ServiceItemInput": {
            "type": "object",
            "required": ["name"],
            "properties": {
                "name": {"type": "string"},
                "price": {"type": "integer", "description": "taken from the salon roster when it has one"},
                "duration": {"type": "integer", "description": "taken from the salon roster when it has one; required otherwise"}
            }
        },
        "httpgin.JoinQueueRequest": {
            "type": "object",
            "required": ["salon_id", "services"],
            "properties": {
                "salon_id": {"type": "string"},
                "services": {"type": "array", "items": {"$ref": "#/definitions/httpgin.ServiceItemInput"}},
                "total_price": {"type": "integer"},
                "total_duration": {"type": "integer"}
            }
        },
        "httpgin.WalkInRequest": {
            "type": "object",
            "required": ["guest_name", "services"],
            "properties": {
                "guest_name": {"type": "string"},
                "guest_mobile": {"type": "string"},
                "services": {"type": "array", "items": {"$ref": "#/definitions/httpgin.ServiceItemInput"}}
            }
        },
        "httpgin.CreateSalonRequest": {
            "type": "object",
            "required": ["name", "chairs"],
            "properties": {
                "name": {"type": "string"},
                "chairs": {"type": "integer"}
            }
        }
    }
}`

// SwaggerInfo holds exported Swagger Info so clients can modify it
var SwaggerInfo = &swag.Spec{
	Version:          "1.0",
	Host:             "localhost:8080",
	BasePath:         "/",
	Schemes:          []string{},
	Title:            "SalonQ API",
	Description:      "Queue booking for salons.",
	InfoInstanceName: "swagger",
	SwaggerTemplate:  docTemplate,
	LeftDelim:        "{{",
	RightDelim:       "}}",
}

func init() {
	swag.Register(SwaggerInfo.InstanceName(), SwaggerInfo)
}
