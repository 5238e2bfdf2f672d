// Package docs registers the vlmd swagger document with swag.
package docs

import "github.com/swaggo/swag"

const docTemplate = `{
    "schemes": {{ marshal .Schemes }},
    "swagger": "2.0",
    "info": {
        "description": "{{escape .Description}}",
        "title": "{{.Title}}",
        "contact": {
            "name": "vlmd maintainers"
        },
        "license": {
            "name": "MIT",
            "url": "https://opensource.org/licenses/MIT"
        },
        "version": "{{.Version}}"
    },
    "host": "{{.Host}}",
    "basePath": "{{.BasePath}}",
    "paths": {
        "/v1/chat/completions": {
            "post": {
                "description": "OpenAI-compatible chat completion. With stream=true the response is a text/event-stream of chat.completion.chunk objects ending in data: [DONE].",
                "consumes": ["application/json"],
                "produces": ["application/json", "text/event-stream"],
                "tags": ["chat"],
                "summary": "Create chat completion",
                "parameters": [
                    {
                        "description": "Chat completion request",
                        "name": "request",
                        "in": "body",
                        "required": true,
                        "schema": {"$ref": "#/definitions/types.ChatCompletionRequest"}
                    }
                ],
                "responses": {
                    "200": {"description": "OK", "schema": {"$ref": "#/definitions/types.ChatCompletionResponse"}},
                    "400": {"description": "Bad Request", "schema": {"$ref": "#/definitions/types.ErrorResponse"}},
                    "415": {"description": "Unsupported Media Type", "schema": {"$ref": "#/definitions/types.ErrorResponse"}},
                    "429": {"description": "Too Many Requests", "schema": {"$ref": "#/definitions/types.ErrorResponse"}},
                    "500": {"description": "Internal Server Error", "schema": {"$ref": "#/definitions/types.ErrorResponse"}},
                    "503": {"description": "Service Unavailable", "schema": {"$ref": "#/definitions/types.ErrorResponse"}}
                }
            }
        },
        "/v1/models": {
            "get": {
                "description": "Returns the served model in OpenAI list format.",
                "produces": ["application/json"],
                "tags": ["models"],
                "summary": "List models",
                "responses": {
                    "200": {"description": "OK", "schema": {"$ref": "#/definitions/types.ModelList"}}
                }
            }
        },
        "/status": {
            "get": {
                "description": "Manager state, queue depth and generation counters.",
                "produces": ["application/json"],
                "tags": ["ops"],
                "summary": "Server status",
                "responses": {
                    "200": {"description": "OK", "schema": {"$ref": "#/definitions/types.StatusResponse"}}
                }
            }
        },
        "/healthz": {
            "get": {
                "produces": ["text/plain"],
                "tags": ["ops"],
                "summary": "Liveness probe",
                "responses": {
                    "200": {"description": "ok", "schema": {"type": "string"}}
                }
            }
        },
        "/readyz": {
            "get": {
                "description": "200 once the model is loaded, 503 while loading or draining.",
                "produces": ["text/plain"],
                "tags": ["ops"],
                "summary": "Readiness probe",
                "responses": {
                    "200": {"description": "ready", "schema": {"type": "string"}},
                    "503": {"description": "loading", "schema": {"type": "string"}}
                }
            }
        }
    },
    "definitions": {
        "types.ChatCompletionRequest": {
            "type": "object",
            "properties": {
                "model": {"type": "string", "example": "google/gemma-3-4b-it"},
                "messages": {"type": "array", "items": {"$ref": "#/definitions/types.ChatMessage"}},
                "max_tokens": {"type": "integer", "example": 256},
                "max_completion_tokens": {"type": "integer", "example": 256},
                "stream": {"type": "boolean", "example": true},
                "temperature": {"type": "number", "example": 0},
                "top_p": {"type": "number"},
                "user": {"type": "string"}
            }
        },
        "types.ChatMessage": {
            "type": "object",
            "properties": {
                "role": {"type": "string", "example": "user"},
                "content": {"type": "object"}
            }
        },
        "types.ChatCompletionResponse": {
            "type": "object",
            "properties": {
                "id": {"type": "string", "example": "chatcmpl-6f1c2a"},
                "object": {"type": "string", "example": "chat.completion"},
                "created": {"type": "integer", "example": 1700000000},
                "model": {"type": "string", "example": "google/gemma-3-4b-it"},
                "choices": {"type": "array", "items": {"$ref": "#/definitions/types.ChatChoice"}},
                "usage": {"$ref": "#/definitions/types.Usage"}
            }
        },
        "types.ChatChoice": {
            "type": "object",
            "properties": {
                "index": {"type": "integer"},
                "message": {"$ref": "#/definitions/types.ChatResponseMessage"},
                "delta": {"$ref": "#/definitions/types.ChatDelta"},
                "finish_reason": {"type": "string", "example": "stop"}
            }
        },
        "types.ChatResponseMessage": {
            "type": "object",
            "properties": {
                "role": {"type": "string"},
                "content": {"type": "string"}
            }
        },
        "types.ChatDelta": {
            "type": "object",
            "properties": {
                "role": {"type": "string"},
                "content": {"type": "string"}
            }
        },
        "types.Usage": {
            "type": "object",
            "properties": {
                "prompt_tokens": {"type": "integer"},
                "completion_tokens": {"type": "integer"},
                "total_tokens": {"type": "integer"}
            }
        },
        "types.ModelList": {
            "type": "object",
            "properties": {
                "object": {"type": "string", "example": "list"},
                "data": {"type": "array", "items": {"$ref": "#/definitions/types.ModelCard"}}
            }
        },
        "types.ModelCard": {
            "type": "object",
            "properties": {
                "id": {"type": "string", "example": "google/gemma-3-4b-it"},
                "object": {"type": "string", "example": "model"},
                "created": {"type": "integer", "example": 1700000000},
                "owned_by": {"type": "string", "example": "vlmd"}
            }
        },
        "types.Model": {
            "type": "object",
            "properties": {
                "id": {"type": "string"},
                "backend": {"type": "string", "example": "onnx"},
                "path": {"type": "string"}
            }
        },
        "types.StatusResponse": {
            "type": "object",
            "properties": {
                "state": {"type": "string", "example": "ready"},
                "model": {"$ref": "#/definitions/types.Model"},
                "queue_len": {"type": "integer"},
                "inflight": {"type": "integer"},
                "max_queue_depth": {"type": "integer", "example": 32},
                "generations_total": {"type": "integer"},
                "tokens_total": {"type": "integer"},
                "last_error": {"type": "string"},
                "uptime_seconds": {"type": "integer"},
                "server_time_unix": {"type": "integer"}
            }
        },
        "types.ErrorResponse": {
            "type": "object",
            "properties": {
                "error": {"$ref": "#/definitions/types.ErrorBody"}
            }
        },
        "types.ErrorBody": {
            "type": "object",
            "properties": {
                "message": {"type": "string", "example": "messages must not be empty"},
                "type": {"type": "string", "example": "invalid_request_error"},
                "code": {"type": "integer", "example": 400}
            }
        }
    }
}`

// SwaggerInfo holds exported Swagger Info so clients can modify it
var SwaggerInfo = &swag.Spec{
	Version:          "1.0",
	Host:             "",
	BasePath:         "/",
	Schemes:          []string{"http"},
	Title:            "vlmd API",
	Description:      "OpenAI-compatible multimodal chat completions with token streaming.",
	InfoInstanceName: "swagger",
	SwaggerTemplate:  docTemplate,
	LeftDelim:        "{{",
	RightDelim:       "}}",
}

func init() {
	swag.Register(SwaggerInfo.InstanceName(), SwaggerInfo)
}
