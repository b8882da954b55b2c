// Package docs holds the general Swagger information of the netsweep API.
// Operation annotations live on the handlers in internal/api/handlers.
//
//go:generate swag init -g swagger_docs.go -d ./,../internal/api/handlers -o ./swagger --parseDependency --parseInternal
package docs

// @title netsweep API
// @version 1.0
// @description IPv4 host discovery: liveness sweeps of network segments, nmap detail
// @description probes of single hosts, and asynchronous job tracking.
// @description
// @description ## Authentication
// @description When API keys are configured, every endpoint except health and version
// @description requires the `X-API-Key` header or an `Authorization: Bearer` token.
//
// @contact.name netsweep
// @contact.url https://github.com/anstrom/netsweep
//
// @license.name MIT
//
// @host localhost:8080
// @BasePath /api/v1
//
// @securityDefinitions.apikey ApiKeyAuth
// @in header
// @name X-API-Key
// @description API key for authentication
