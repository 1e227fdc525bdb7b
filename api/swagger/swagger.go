package swagger

import "github.com/swaggo/swag"

const docTemplate = `{
    "swagger": "2.0",
    "info": {
        "title": "Campus Notice Board API",
        "description": "Staff publish notices with attachments; students browse, search and subscribe to web push.",
        "version": "1.0.0"
    },
    "basePath": "/api/v1",
    "schemes": ["http", "https"],
    "securityDefinitions": {
        "BearerAuth": {"type": "apiKey", "name": "Authorization", "in": "header"}
    },
    "tags": [
        {"name": "Authentication", "description": "Staff sessions"},
        {"name": "Notices", "description": "Publishing, listing and archive search"},
        {"name": "Attachments", "description": "Signed attachment downloads"},
        {"name": "Push", "description": "Web push subscriptions"}
    ],
    "paths": {
        "/auth/login": {
            "post": {
                "tags": ["Authentication"],
                "summary": "Authenticate staff member",
                "consumes": ["application/json"],
                "parameters": [
                    {"in": "body", "name": "payload", "required": true, "schema": {"$ref": "#/definitions/LoginRequest"}}
                ],
                "responses": {
                    "200": {"description": "Token issued and session cookie set", "schema": {"$ref": "#/definitions/ResponseEnvelope"}},
                    "401": {"description": "Invalid credentials", "schema": {"$ref": "#/definitions/ResponseEnvelope"}}
                }
            }
        },
        "/auth/logout": {
            "post": {
                "tags": ["Authentication"],
                "summary": "Clear the session cookie",
                "responses": {"204": {"description": "Logged out"}}
            }
        },
        "/subscribe": {
            "post": {
                "tags": ["Push"],
                "summary": "Register a push subscription",
                "consumes": ["application/json"],
                "parameters": [
                    {"in": "body", "name": "payload", "required": true, "schema": {"$ref": "#/definitions/SubscribeRequest"}}
                ],
                "responses": {
                    "201": {"description": "Created or keys refreshed", "schema": {"$ref": "#/definitions/StatusBody"}},
                    "400": {"description": "Invalid JSON data, missing endpoint or missing keys", "schema": {"$ref": "#/definitions/StatusBody"}},
                    "500": {"description": "Server error", "schema": {"$ref": "#/definitions/StatusBody"}}
                }
            }
        },
        "/push/vapid-key": {
            "get": {
                "tags": ["Push"],
                "summary": "Application server key for push subscriptions",
                "responses": {
                    "200": {"description": "OK", "schema": {"$ref": "#/definitions/ResponseEnvelope"}},
                    "503": {"description": "Push not configured", "schema": {"$ref": "#/definitions/ResponseEnvelope"}}
                }
            }
        },
        "/notices": {
            "get": {
                "tags": ["Notices"],
                "summary": "List notices (today only unless filtered)",
                "parameters": [
                    {"in": "query", "name": "department", "type": "string", "enum": ["CSE", "EE", "ME", "CE"]},
                    {"in": "query", "name": "search", "type": "string"},
                    {"in": "query", "name": "page", "type": "integer"},
                    {"in": "query", "name": "page_size", "type": "integer"}
                ],
                "responses": {"200": {"description": "OK", "schema": {"$ref": "#/definitions/ResponseEnvelope"}}}
            },
            "post": {
                "tags": ["Notices"],
                "summary": "Publish a notice and notify subscribers",
                "security": [{"BearerAuth": []}],
                "consumes": ["multipart/form-data"],
                "parameters": [
                    {"in": "formData", "name": "title", "type": "string", "required": true},
                    {"in": "formData", "name": "category", "type": "string", "enum": ["Common", "Examinations", "Assignments", "Notes", "Events", "Backs", "Urgent"]},
                    {"in": "formData", "name": "department", "type": "string", "enum": ["CSE", "EE", "ME", "CE"]},
                    {"in": "formData", "name": "semester", "type": "string", "enum": ["ALL", "S1", "S2", "S3", "S4", "S5", "S6", "S7", "S8"]},
                    {"in": "formData", "name": "description", "type": "string", "required": true},
                    {"in": "formData", "name": "attachments", "type": "file"},
                    {"in": "formData", "name": "attachment_names", "type": "array", "items": {"type": "string"}, "collectionFormat": "multi"}
                ],
                "responses": {
                    "303": {"description": "Redirect to the notice detail"},
                    "400": {"description": "Validation error", "schema": {"$ref": "#/definitions/ResponseEnvelope"}},
                    "401": {"description": "Unauthorized", "schema": {"$ref": "#/definitions/ResponseEnvelope"}}
                }
            }
        },
        "/notices/archive": {
            "get": {
                "tags": ["Notices"],
                "summary": "Search every notice including attachment names",
                "parameters": [
                    {"in": "query", "name": "department", "type": "string"},
                    {"in": "query", "name": "semester", "type": "string"},
                    {"in": "query", "name": "search", "type": "string"},
                    {"in": "query", "name": "page", "type": "integer"},
                    {"in": "query", "name": "page_size", "type": "integer"}
                ],
                "responses": {"200": {"description": "OK", "schema": {"$ref": "#/definitions/ResponseEnvelope"}}}
            }
        },
        "/notices/archive/export": {
            "get": {
                "tags": ["Notices"],
                "summary": "Export archive matches",
                "produces": ["text/csv", "application/pdf"],
                "parameters": [
                    {"in": "query", "name": "format", "type": "string", "enum": ["csv", "pdf"]},
                    {"in": "query", "name": "department", "type": "string"},
                    {"in": "query", "name": "semester", "type": "string"},
                    {"in": "query", "name": "search", "type": "string"}
                ],
                "responses": {
                    "200": {"description": "File download"},
                    "400": {"description": "Unsupported format", "schema": {"$ref": "#/definitions/ResponseEnvelope"}}
                }
            }
        },
        "/notices/mine": {
            "get": {
                "tags": ["Notices"],
                "summary": "Notices posted by the current user",
                "security": [{"BearerAuth": []}],
                "responses": {
                    "200": {"description": "OK", "schema": {"$ref": "#/definitions/ResponseEnvelope"}},
                    "401": {"description": "Unauthorized", "schema": {"$ref": "#/definitions/ResponseEnvelope"}}
                }
            }
        },
        "/notices/{id}": {
            "get": {
                "tags": ["Notices"],
                "summary": "Notice detail with signed attachment links",
                "parameters": [{"in": "path", "name": "id", "type": "string", "required": true}],
                "responses": {
                    "200": {"description": "OK", "schema": {"$ref": "#/definitions/ResponseEnvelope"}},
                    "404": {"description": "Not found", "schema": {"$ref": "#/definitions/ResponseEnvelope"}}
                }
            }
        },
        "/notices/{id}/edit": {
            "post": {
                "tags": ["Notices"],
                "summary": "Edit a notice (author only)",
                "security": [{"BearerAuth": []}],
                "consumes": ["multipart/form-data"],
                "parameters": [
                    {"in": "path", "name": "id", "type": "string", "required": true},
                    {"in": "formData", "name": "title", "type": "string", "required": true},
                    {"in": "formData", "name": "category", "type": "string", "description": "Unchanged when omitted"},
                    {"in": "formData", "name": "department", "type": "string", "description": "Unchanged when omitted"},
                    {"in": "formData", "name": "semester", "type": "string", "description": "Unchanged when omitted"},
                    {"in": "formData", "name": "description", "type": "string", "required": true},
                    {"in": "formData", "name": "attachments", "type": "file"},
                    {"in": "formData", "name": "remove_attachments", "type": "array", "items": {"type": "string"}, "collectionFormat": "multi"}
                ],
                "responses": {
                    "303": {"description": "Redirect to the detail, or to the listing when not the author"},
                    "400": {"description": "Validation error", "schema": {"$ref": "#/definitions/ResponseEnvelope"}}
                }
            }
        },
        "/notices/{id}/delete": {
            "post": {
                "tags": ["Notices"],
                "summary": "Delete a notice (author only)",
                "security": [{"BearerAuth": []}],
                "parameters": [{"in": "path", "name": "id", "type": "string", "required": true}],
                "responses": {
                    "303": {"description": "Redirect to the listing"},
                    "404": {"description": "Not found", "schema": {"$ref": "#/definitions/ResponseEnvelope"}}
                }
            }
        },
        "/attachments/{id}/download": {
            "get": {
                "tags": ["Attachments"],
                "summary": "Download an attachment with a signed token",
                "parameters": [
                    {"in": "path", "name": "id", "type": "string", "required": true},
                    {"in": "query", "name": "token", "type": "string", "required": true}
                ],
                "responses": {
                    "200": {"description": "File stream"},
                    "403": {"description": "Invalid or expired token", "schema": {"$ref": "#/definitions/ResponseEnvelope"}},
                    "404": {"description": "Not found", "schema": {"$ref": "#/definitions/ResponseEnvelope"}}
                }
            }
        }
    },
    "definitions": {
        "LoginRequest": {
            "type": "object",
            "required": ["username", "password"],
            "properties": {
                "username": {"type": "string"},
                "password": {"type": "string"}
            }
        },
        "SubscribeRequest": {
            "type": "object",
            "properties": {
                "endpoint": {"type": "string"},
                "keys": {
                    "type": "object",
                    "properties": {
                        "p256dh": {"type": "string"},
                        "auth": {"type": "string"}
                    }
                }
            }
        },
        "StatusBody": {
            "type": "object",
            "properties": {
                "status": {"type": "string", "enum": ["ok", "error"]},
                "message": {"type": "string"}
            }
        },
        "Pagination": {
            "type": "object",
            "properties": {
                "page": {"type": "integer"},
                "page_size": {"type": "integer"},
                "total_count": {"type": "integer"}
            }
        },
        "APIError": {
            "type": "object",
            "properties": {
                "code": {"type": "string"},
                "message": {"type": "string"},
                "status": {"type": "integer"}
            }
        },
        "ResponseEnvelope": {
            "type": "object",
            "properties": {
                "data": {"type": "object"},
                "error": {"$ref": "#/definitions/APIError"},
                "pagination": {"$ref": "#/definitions/Pagination"},
                "meta": {"type": "object"}
            }
        }
    }
}`

type swaggerDoc struct{}

// ReadDoc returns the Swagger document.
func (s *swaggerDoc) ReadDoc() string {
	return docTemplate
}

func init() {
	swag.Register(swag.Name, &swaggerDoc{})
}
