// Package app wires the ChurnPulse analytics server together: it builds
// configuration, logging, OpenTelemetry, the WebSocket hub and the data
// and health services into a chi router, and runs the HTTP server with
// graceful shutdown.
//
// # Startup
//
// NewApplication builds the component graph in dependency order:
//
//  1. Configuration (environment over config.yaml over defaults)
//  2. Structured logging and the OTel providers
//  3. Hub, data service and health service
//  4. Middleware chain, routes and the HTTP server
//
// Nothing listens until Start. The initial dataset load happens in the
// background once the listener is up; until it succeeds, read endpoints
// answer with the data-unavailable problem document and any later
// refresh can recover the state.
//
// # Shutdown
//
// Run traps SIGINT and SIGTERM. Stop drains in-flight requests, closes
// the WebSocket clients and flushes telemetry before returning.
//
// Initialization failures surface as errors to main; the package never
// exits the process itself.
package app
