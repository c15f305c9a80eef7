package http

import (
	"log/slog"
	"net/http"
	"strings"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"github.com/go-chi/render"

	apierrors "churnpulse/internal/errors"
	"churnpulse/internal/services"
	"churnpulse/pkg/contracts/domain"
)

// DataHandler handles the analytics HTTP requests with RFC 7807 errors
type DataHandler struct {
	service      DataServiceInterface
	logger       *slog.Logger
	errorHandler *apierrors.ErrorHandler
}

// NewDataHandler creates a new data handler
func NewDataHandler(service DataServiceInterface, logger *slog.Logger, errorHandler *apierrors.ErrorHandler) *DataHandler {
	return &DataHandler{
		service:      service,
		logger:       logger.With(slog.String("component", "data_handler")),
		errorHandler: errorHandler,
	}
}

// Routes returns the data routes
func (h *DataHandler) Routes() chi.Router {
	r := chi.NewRouter()

	r.Use(render.SetContentType(render.ContentTypeJSON))

	r.Get("/summary/{dimension}", h.GetSummary)
	r.Get("/kpi", h.GetKPI)
	r.Get("/churn-rate", h.GetChurnRate)
	r.Get("/risk", h.GetRiskDistribution)
	r.Get("/comparison", h.GetComparison)
	r.Get("/meta", h.GetMeta)
	r.Post("/refresh", h.TriggerRefresh)

	return r
}

// GetSummary handles GET /api/data/summary/{dimension}
func (h *DataHandler) GetSummary(w http.ResponseWriter, r *http.Request) {
	slug := chi.URLParam(r, "dimension")

	dim, ok := domain.ParseDimension(slug)
	if !ok {
		h.errorHandler.HandleError(w, r, apierrors.UnknownDimensionError(slug))
		return
	}

	h.logger.InfoContext(r.Context(), "fetching churn summary",
		slog.String("dimension", slug),
		slog.String("request_id", middleware.GetReqID(r.Context())),
	)

	groups, err := h.service.SummaryFor(r.Context(), dim)
	if err != nil {
		h.errorHandler.HandleError(w, r, err)
		return
	}

	render.JSON(w, r, map[string]interface{}{
		"status":     "success",
		"dimension":  dim,
		"key_column": dim.KeyColumn(),
		"data":       groups,
		"count":      len(groups),
	})
}

// GetKPI handles GET /api/data/kpi
func (h *DataHandler) GetKPI(w http.ResponseWriter, r *http.Request) {
	kpi, err := h.service.KPISnapshot(r.Context())
	if err != nil {
		h.errorHandler.HandleError(w, r, err)
		return
	}

	render.JSON(w, r, map[string]interface{}{
		"status": "success",
		"data":   kpi,
	})
}

// GetChurnRate handles GET /api/data/churn-rate. The geography, gender
// and card_type query parameters are comma-separated multi-selects;
// empty means no restriction.
func (h *DataHandler) GetChurnRate(w http.ResponseWriter, r *http.Request) {
	query := r.URL.Query()
	filter := services.ChurnRateFilter{
		Geographies: splitMultiValue(query.Get("geography")),
		Genders:     splitMultiValue(query.Get("gender")),
		CardTypes:   splitMultiValue(query.Get("card_type")),
	}

	result, err := h.service.FilteredChurnRate(r.Context(), filter)
	if err != nil {
		h.errorHandler.HandleError(w, r, err)
		return
	}

	render.JSON(w, r, map[string]interface{}{
		"status": "success",
		"data":   result,
	})
}

// GetRiskDistribution handles GET /api/data/risk
func (h *DataHandler) GetRiskDistribution(w http.ResponseWriter, r *http.Request) {
	buckets, err := h.service.RiskDistribution(r.Context())
	if err != nil {
		h.errorHandler.HandleError(w, r, err)
		return
	}

	render.JSON(w, r, map[string]interface{}{
		"status": "success",
		"data":   buckets,
		"count":  len(buckets),
	})
}

// GetComparison handles GET /api/data/comparison
func (h *DataHandler) GetComparison(w http.ResponseWriter, r *http.Request) {
	rows, err := h.service.Comparison(r.Context())
	if err != nil {
		h.errorHandler.HandleError(w, r, err)
		return
	}

	render.JSON(w, r, map[string]interface{}{
		"status": "success",
		"data":   rows,
		"count":  len(rows),
	})
}

// GetMeta handles GET /api/data/meta
func (h *DataHandler) GetMeta(w http.ResponseWriter, r *http.Request) {
	meta, err := h.service.Meta(r.Context())
	if err != nil {
		h.errorHandler.HandleError(w, r, err)
		return
	}

	render.JSON(w, r, map[string]interface{}{
		"status": "success",
		"data":   meta,
	})
}

// TriggerRefresh handles POST /api/data/refresh. It answers 202 with the
// run ID; progress streams over the WebSocket hub. A refresh already in
// flight yields 409.
func (h *DataHandler) TriggerRefresh(w http.ResponseWriter, r *http.Request) {
	h.logger.InfoContext(r.Context(), "dataset refresh requested",
		slog.String("request_id", middleware.GetReqID(r.Context())),
		slog.String("remote_addr", r.RemoteAddr),
	)

	runID, err := h.service.Refresh(r.Context())
	if err != nil {
		h.errorHandler.HandleError(w, r, err)
		return
	}

	render.Status(r, http.StatusAccepted)
	render.JSON(w, r, map[string]interface{}{
		"status": "accepted",
		"run_id": runID,
	})
}

// splitMultiValue splits a comma-separated query value into its non-empty
// trimmed parts.
func splitMultiValue(raw string) []string {
	if raw == "" {
		return nil
	}
	parts := strings.Split(raw, ",")
	values := make([]string, 0, len(parts))
	for _, p := range parts {
		if v := strings.TrimSpace(p); v != "" {
			values = append(values, v)
		}
	}
	return values
}
