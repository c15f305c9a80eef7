package http

import (
	"net/http"
)

// MetricsHandler serves the Prometheus scrape endpoint backed by the
// OTel prometheus exporter.
type MetricsHandler struct {
	prometheus http.Handler
}

// NewMetricsHandler creates a metrics handler. The prometheus handler
// may be nil when metrics are disabled.
func NewMetricsHandler(prometheus http.Handler) *MetricsHandler {
	return &MetricsHandler{prometheus: prometheus}
}

// ServeHTTP handles GET /metrics
func (h *MetricsHandler) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	if h.prometheus == nil {
		http.Error(w, "metrics collection is disabled", http.StatusNotFound)
		return
	}
	h.prometheus.ServeHTTP(w, r)
}
