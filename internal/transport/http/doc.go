// Package http contains the chi HTTP handlers for the analytics API.
//
// DataHandler serves the dataset reads (per-dimension churn summaries,
// KPI snapshot, filtered churn rate, risk distribution, churned versus
// retained comparison, dataset metadata) and the refresh trigger.
// HealthHandler serves health, readiness, liveness, version and process
// statistics. MetricsHandler exposes the Prometheus scrape endpoint.
//
// Handlers depend on services through small interfaces, respond with
// go-chi/render, and route every failure through the RFC 7807 error
// handler so clients always receive a problem document with a trace ID.
package http
