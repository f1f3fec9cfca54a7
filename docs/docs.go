// Package docs holds the OpenAPI description served under /swagger.
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
                "tags": ["health"],
                "summary": "Liveness probe",
                "responses": {
                    "200": {"description": "OK", "schema": {"type": "object", "additionalProperties": {"type": "string"}}}
                }
            }
        },
        "/health/ready": {
            "get": {
                "produces": ["application/json"],
                "tags": ["health"],
                "summary": "Readiness probe",
                "responses": {
                    "200": {"description": "OK", "schema": {"$ref": "#/definitions/handler.readinessResponse"}},
                    "503": {"description": "Service Unavailable", "schema": {"$ref": "#/definitions/handler.readinessResponse"}}
                }
            }
        },
        "/usuarios/": {
            "get": {
                "produces": ["application/json"],
                "tags": ["usuarios"],
                "summary": "List users",
                "parameters": [
                    {"type": "integer", "default": 0, "description": "Records to skip", "name": "skip", "in": "query"},
                    {"type": "integer", "default": 100, "description": "Maximum records (<=1000)", "name": "limit", "in": "query"}
                ],
                "responses": {
                    "200": {"description": "OK", "schema": {"type": "array", "items": {"$ref": "#/definitions/handler.usuarioResponse"}}},
                    "400": {"description": "Bad Request", "schema": {"$ref": "#/definitions/handler.errorResponse"}}
                }
            }
        },
        "/usuarios/count/total": {
            "get": {
                "produces": ["application/json"],
                "tags": ["usuarios"],
                "summary": "Count active users",
                "responses": {
                    "200": {"description": "OK", "schema": {"$ref": "#/definitions/handler.countResponse"}}
                }
            }
        },
        "/usuarios/login": {
            "post": {
                "consumes": ["application/json"],
                "produces": ["application/json"],
                "tags": ["usuarios"],
                "summary": "Login",
                "parameters": [
                    {"description": "Credentials", "name": "body", "in": "body", "required": true, "schema": {"$ref": "#/definitions/handler.loginRequest"}}
                ],
                "responses": {
                    "200": {"description": "OK", "schema": {"$ref": "#/definitions/handler.authResponse"}},
                    "400": {"description": "Bad Request", "schema": {"$ref": "#/definitions/handler.errorResponse"}},
                    "401": {"description": "Unauthorized", "schema": {"$ref": "#/definitions/handler.errorResponse"}},
                    "500": {"description": "Internal Server Error", "schema": {"$ref": "#/definitions/handler.errorResponse"}}
                }
            }
        },
        "/usuarios/perfil": {
            "put": {
                "security": [{"BearerAuth": []}],
                "consumes": ["application/json"],
                "produces": ["application/json"],
                "tags": ["usuarios"],
                "summary": "Update own profile",
                "parameters": [
                    {"description": "Fields to change", "name": "body", "in": "body", "required": true, "schema": {"$ref": "#/definitions/handler.updateProfileRequest"}}
                ],
                "responses": {
                    "200": {"description": "OK", "schema": {"$ref": "#/definitions/handler.usuarioResponse"}},
                    "400": {"description": "Bad Request", "schema": {"$ref": "#/definitions/handler.errorResponse"}},
                    "401": {"description": "Unauthorized", "schema": {"$ref": "#/definitions/handler.errorResponse"}},
                    "404": {"description": "Not Found", "schema": {"$ref": "#/definitions/handler.errorResponse"}},
                    "409": {"description": "Conflict", "schema": {"$ref": "#/definitions/handler.errorResponse"}}
                }
            }
        },
        "/usuarios/perfil/{email}": {
            "get": {
                "produces": ["application/json"],
                "tags": ["usuarios"],
                "summary": "Get profile by email",
                "parameters": [
                    {"type": "string", "description": "Account email", "name": "email", "in": "path", "required": true}
                ],
                "responses": {
                    "200": {"description": "OK", "schema": {"$ref": "#/definitions/handler.usuarioResponse"}},
                    "404": {"description": "Not Found", "schema": {"$ref": "#/definitions/handler.errorResponse"}}
                }
            }
        },
        "/usuarios/registro": {
            "post": {
                "consumes": ["application/json"],
                "produces": ["application/json"],
                "tags": ["usuarios"],
                "summary": "Register a new user",
                "parameters": [
                    {"type": "string", "description": "Replays the first response for retried requests", "name": "Idempotency-Key", "in": "header"},
                    {"description": "Registration details", "name": "body", "in": "body", "required": true, "schema": {"$ref": "#/definitions/handler.registerRequest"}}
                ],
                "responses": {
                    "201": {"description": "Created", "schema": {"$ref": "#/definitions/handler.authResponse"}},
                    "400": {"description": "Bad Request", "schema": {"$ref": "#/definitions/handler.errorResponse"}},
                    "409": {"description": "Conflict", "schema": {"$ref": "#/definitions/handler.errorResponse"}},
                    "500": {"description": "Internal Server Error", "schema": {"$ref": "#/definitions/handler.errorResponse"}}
                }
            }
        },
        "/usuarios/verify-token": {
            "post": {
                "consumes": ["application/json"],
                "produces": ["application/json"],
                "tags": ["usuarios"],
                "summary": "Verify a token",
                "parameters": [
                    {"description": "Token to check", "name": "body", "in": "body", "required": true, "schema": {"$ref": "#/definitions/handler.verifyTokenRequest"}}
                ],
                "responses": {
                    "200": {"description": "OK", "schema": {"$ref": "#/definitions/handler.verifyTokenResponse"}},
                    "400": {"description": "Bad Request", "schema": {"$ref": "#/definitions/handler.errorResponse"}},
                    "401": {"description": "Unauthorized", "schema": {"$ref": "#/definitions/handler.errorResponse"}}
                }
            }
        },
        "/usuarios/{id}": {
            "get": {
                "produces": ["application/json"],
                "tags": ["usuarios"],
                "summary": "Get user by id",
                "parameters": [
                    {"type": "string", "description": "User id", "name": "id", "in": "path", "required": true}
                ],
                "responses": {
                    "200": {"description": "OK", "schema": {"$ref": "#/definitions/handler.usuarioResponse"}},
                    "404": {"description": "Not Found", "schema": {"$ref": "#/definitions/handler.errorResponse"}}
                }
            }
        }
    },
    "definitions": {
        "handler.authResponse": {
            "type": "object",
            "properties": {
                "message": {"type": "string", "example": "Login exitoso"},
                "token": {"type": "string"},
                "usuario": {"$ref": "#/definitions/handler.usuarioResponse"}
            }
        },
        "handler.countResponse": {
            "type": "object",
            "properties": {
                "total": {"type": "integer", "example": 3}
            }
        },
        "handler.dependencyStatus": {
            "type": "object",
            "properties": {
                "error": {"type": "string"},
                "status": {"type": "string"}
            }
        },
        "handler.errorResponse": {
            "type": "object",
            "properties": {
                "detail": {"type": "string", "example": "Usuario no encontrado"}
            }
        },
        "handler.loginRequest": {
            "type": "object",
            "required": ["email", "password"],
            "properties": {
                "email": {"type": "string", "example": "ana@example.com"},
                "password": {"type": "string", "example": "s3cret"}
            }
        },
        "handler.readinessResponse": {
            "type": "object",
            "properties": {
                "dependencies": {"type": "object", "additionalProperties": {"$ref": "#/definitions/handler.dependencyStatus"}},
                "status": {"type": "string"}
            }
        },
        "handler.registerRequest": {
            "type": "object",
            "required": ["apellido", "email", "nombre", "password"],
            "properties": {
                "apellido": {"type": "string", "maxLength": 100, "example": "Li"},
                "email": {"type": "string", "maxLength": 255, "example": "ana@example.com"},
                "nombre": {"type": "string", "maxLength": 100, "example": "Ana"},
                "password": {"type": "string", "example": "s3cret"}
            }
        },
        "handler.updateProfileRequest": {
            "type": "object",
            "properties": {
                "apellido": {"type": "string", "minLength": 1, "maxLength": 100},
                "email": {"type": "string", "maxLength": 255},
                "nombre": {"type": "string", "minLength": 1, "maxLength": 100}
            }
        },
        "handler.usuarioResponse": {
            "type": "object",
            "properties": {
                "activo": {"type": "boolean", "example": true},
                "apellido": {"type": "string", "example": "Li"},
                "email": {"type": "string", "example": "ana@example.com"},
                "fechaLogin": {"type": "string"},
                "fechaRegistro": {"type": "string"},
                "id": {"type": "string", "example": "1"},
                "nombre": {"type": "string", "example": "Ana"},
                "rol": {"type": "string", "example": "developer"}
            }
        },
        "handler.verifyTokenRequest": {
            "type": "object",
            "properties": {
                "token": {"type": "string"}
            }
        },
        "handler.verifyTokenResponse": {
            "type": "object",
            "properties": {
                "valid": {"type": "boolean", "example": true}
            }
        }
    },
    "securityDefinitions": {
        "BearerAuth": {
            "type": "apiKey",
            "name": "Authorization",
            "in": "header"
        }
    }
}`

// SwaggerInfo holds exported Swagger Info so clients can modify it
var SwaggerInfo = &swag.Spec{
	Version:          "1.0.0",
	Host:             "",
	BasePath:         "/",
	Schemes:          []string{},
	Title:            "SRS Manager Accounts API",
	Description:      "Registration, login, profile and token verification for SRS Manager users.",
	InfoInstanceName: "swagger",
	SwaggerTemplate:  docTemplate,
	LeftDelim:        "{{",
	RightDelim:       "}}",
}

func init() {
	swag.Register(SwaggerInfo.InstanceName(), SwaggerInfo)
}
