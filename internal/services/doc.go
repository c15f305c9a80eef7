// Package services contains the application services behind the HTTP
// handlers.
//
// DataService owns the in-memory churn dataset: it loads the best
// available source through internal/files, answers every analytic read
// (KPI snapshot, per-dimension summaries, filtered churn rate, risk
// distribution, churned-vs-retained comparison) and runs single-flight
// background refreshes that stream progress over the WebSocket hub.
//
// HealthService reports liveness, readiness and component health for the
// web server, including dataset availability and hub connection counts.
//
// Services accept their dependencies through constructors and return
// structured errors from internal/errors; the transport layer maps those
// to HTTP responses.
package services
