package main

// General API documentation for swaggo. Run `make swagger-gen` to regenerate
// internal/httpapi/docs.
//
// @title           vlmd API
// @version         1.0
// @description     OpenAI-compatible multimodal chat completions with token streaming.
//
// @contact.name   vlmd maintainers
//
// @license.name   MIT
// @license.url    https://opensource.org/licenses/MIT
//
// @BasePath  /
//
// @schemes http
