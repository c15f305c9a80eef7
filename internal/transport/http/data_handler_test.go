package http

import (
	"context"
	"encoding/json"
	"io"
	"log/slog"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/go-chi/chi/v5"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	apierrors "churnpulse/internal/errors"
	"churnpulse/internal/services"
	"churnpulse/pkg/contracts/domain"
)

// mockDataService implements DataServiceInterface with overridable
// function fields. Unset functions answer like an unloaded service.
type mockDataService struct {
	summaryFn    func(ctx context.Context, dim domain.Dimension) ([]domain.SegmentSummary, error)
	kpiFn        func(ctx context.Context) (domain.KPISnapshot, error)
	churnRateFn  func(ctx context.Context, f services.ChurnRateFilter) (services.ChurnRateResult, error)
	riskFn       func(ctx context.Context) ([]domain.RiskBucket, error)
	comparisonFn func(ctx context.Context) ([]domain.ComparisonRow, error)
	metaFn       func(ctx context.Context) (domain.DatasetMeta, error)
	refreshFn    func(ctx context.Context) (string, error)
}

func errUnavailable() error {
	return apierrors.NewAppError(apierrors.ErrTypeUnavailable, "no dataset is loaded yet", nil)
}

func (m *mockDataService) SummaryFor(ctx context.Context, dim domain.Dimension) ([]domain.SegmentSummary, error) {
	if m.summaryFn == nil {
		return nil, errUnavailable()
	}
	return m.summaryFn(ctx, dim)
}

func (m *mockDataService) KPISnapshot(ctx context.Context) (domain.KPISnapshot, error) {
	if m.kpiFn == nil {
		return domain.KPISnapshot{}, errUnavailable()
	}
	return m.kpiFn(ctx)
}

func (m *mockDataService) FilteredChurnRate(ctx context.Context, f services.ChurnRateFilter) (services.ChurnRateResult, error) {
	if m.churnRateFn == nil {
		return services.ChurnRateResult{}, errUnavailable()
	}
	return m.churnRateFn(ctx, f)
}

func (m *mockDataService) RiskDistribution(ctx context.Context) ([]domain.RiskBucket, error) {
	if m.riskFn == nil {
		return nil, errUnavailable()
	}
	return m.riskFn(ctx)
}

func (m *mockDataService) Comparison(ctx context.Context) ([]domain.ComparisonRow, error) {
	if m.comparisonFn == nil {
		return nil, errUnavailable()
	}
	return m.comparisonFn(ctx)
}

func (m *mockDataService) Meta(ctx context.Context) (domain.DatasetMeta, error) {
	if m.metaFn == nil {
		return domain.DatasetMeta{}, errUnavailable()
	}
	return m.metaFn(ctx)
}

func (m *mockDataService) Refresh(ctx context.Context) (string, error) {
	if m.refreshFn == nil {
		return "", errUnavailable()
	}
	return m.refreshFn(ctx)
}

func newTestRouter(svc DataServiceInterface) chi.Router {
	logger := slog.New(slog.NewJSONHandler(io.Discard, nil))
	handler := NewDataHandler(svc, logger, apierrors.NewErrorHandler(logger, false))

	r := chi.NewRouter()
	r.Mount("/api/data", handler.Routes())
	return r
}

func doRequest(t *testing.T, router chi.Router, method, target string) (*httptest.ResponseRecorder, map[string]interface{}) {
	t.Helper()
	w := httptest.NewRecorder()
	router.ServeHTTP(w, httptest.NewRequest(method, target, nil))

	var body map[string]interface{}
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &body))
	return w, body
}

func TestGetSummary(t *testing.T) {
	svc := &mockDataService{
		summaryFn: func(ctx context.Context, dim domain.Dimension) ([]domain.SegmentSummary, error) {
			assert.Equal(t, domain.DimGeography, dim)
			return []domain.SegmentSummary{
				{GroupKey: "France", Total: 2, ChurnedCount: 2, ChurnRate: 1},
				{GroupKey: "Spain", Total: 1, ChurnedCount: 0, ChurnRate: 0},
			}, nil
		},
	}

	w, body := doRequest(t, newTestRouter(svc), http.MethodGet, "/api/data/summary/geography")

	assert.Equal(t, http.StatusOK, w.Code)
	assert.Equal(t, "success", body["status"])
	assert.Equal(t, "geography", body["dimension"])
	assert.Equal(t, "Geography", body["key_column"])
	assert.Equal(t, float64(2), body["count"])
}

func TestGetSummaryUnknownDimension(t *testing.T) {
	w, body := doRequest(t, newTestRouter(&mockDataService{}), http.MethodGet, "/api/data/summary/bogus")

	assert.Equal(t, http.StatusBadRequest, w.Code)
	assert.Equal(t, apierrors.TypeUnknownDimension, body["type"])
	assert.Equal(t, "UNKNOWN_DIMENSION", body["error_code"])
	assert.Contains(t, body["detail"], "bogus")
}

func TestGetSummaryUnavailable(t *testing.T) {
	w, body := doRequest(t, newTestRouter(&mockDataService{}), http.MethodGet, "/api/data/summary/geography")

	assert.Equal(t, http.StatusServiceUnavailable, w.Code)
	assert.Equal(t, apierrors.TypeUnavailable, body["type"])
	assert.Equal(t, "DATA_UNAVAILABLE", body["error_code"])
	assert.Contains(t, body, "trace_id")
}

func TestGetKPI(t *testing.T) {
	svc := &mockDataService{
		kpiFn: func(ctx context.Context) (domain.KPISnapshot, error) {
			return domain.KPISnapshot{TotalCustomers: 9997, ChurnRate: 20.37}, nil
		},
	}

	w, body := doRequest(t, newTestRouter(svc), http.MethodGet, "/api/data/kpi")

	assert.Equal(t, http.StatusOK, w.Code)
	data := body["data"].(map[string]interface{})
	assert.Equal(t, float64(9997), data["total_customers"])
	assert.Equal(t, 20.37, data["churn_rate"])
}

func TestGetChurnRateParsesFilters(t *testing.T) {
	var captured services.ChurnRateFilter
	svc := &mockDataService{
		churnRateFn: func(ctx context.Context, f services.ChurnRateFilter) (services.ChurnRateResult, error) {
			captured = f
			return services.ChurnRateResult{Matched: 3, Churned: 1, ChurnRate: 1.0 / 3.0, Filter: f}, nil
		},
	}

	target := "/api/data/churn-rate?geography=France,%20Germany&gender=Female&card_type="
	w, body := doRequest(t, newTestRouter(svc), http.MethodGet, target)

	assert.Equal(t, http.StatusOK, w.Code)
	assert.Equal(t, []string{"France", "Germany"}, captured.Geographies)
	assert.Equal(t, []string{"Female"}, captured.Genders)
	assert.Nil(t, captured.CardTypes)

	data := body["data"].(map[string]interface{})
	assert.Equal(t, float64(3), data["matched"])
}

func TestGetRiskDistribution(t *testing.T) {
	svc := &mockDataService{
		riskFn: func(ctx context.Context) ([]domain.RiskBucket, error) {
			return []domain.RiskBucket{
				{Level: "Low", Customers: 5},
				{Level: "Medium", Customers: 3},
				{Level: "High", Customers: 1},
				{Level: "Critical", Customers: 0},
			}, nil
		},
	}

	w, body := doRequest(t, newTestRouter(svc), http.MethodGet, "/api/data/risk")

	assert.Equal(t, http.StatusOK, w.Code)
	assert.Equal(t, float64(4), body["count"])
}

func TestGetComparison(t *testing.T) {
	svc := &mockDataService{
		comparisonFn: func(ctx context.Context) ([]domain.ComparisonRow, error) {
			return []domain.ComparisonRow{
				{Metric: domain.CompareCount, Churned: 2, Retained: 2},
				{Metric: domain.CompareAvgBalance, Churned: 79830.40, Retained: 41903.93},
			}, nil
		},
	}

	w, body := doRequest(t, newTestRouter(svc), http.MethodGet, "/api/data/comparison")

	assert.Equal(t, http.StatusOK, w.Code)
	assert.Equal(t, float64(2), body["count"])
}

func TestGetMeta(t *testing.T) {
	svc := &mockDataService{
		metaFn: func(ctx context.Context) (domain.DatasetMeta, error) {
			return domain.DatasetMeta{
				SourceKind:  domain.SourceKindDerived,
				Fingerprint: "abc123",
				Rows:        4,
			}, nil
		},
	}

	w, body := doRequest(t, newTestRouter(svc), http.MethodGet, "/api/data/meta")

	assert.Equal(t, http.StatusOK, w.Code)
	data := body["data"].(map[string]interface{})
	assert.Equal(t, "derived", data["source_kind"])
	assert.Equal(t, float64(4), data["rows"])
}

func TestTriggerRefresh(t *testing.T) {
	svc := &mockDataService{
		refreshFn: func(ctx context.Context) (string, error) {
			return "run-123", nil
		},
	}

	w, body := doRequest(t, newTestRouter(svc), http.MethodPost, "/api/data/refresh")

	assert.Equal(t, http.StatusAccepted, w.Code)
	assert.Equal(t, "accepted", body["status"])
	assert.Equal(t, "run-123", body["run_id"])
}

func TestTriggerRefreshConflict(t *testing.T) {
	svc := &mockDataService{
		refreshFn: func(ctx context.Context) (string, error) {
			return "", apierrors.NewConflictError("a dataset refresh is already running")
		},
	}

	w, body := doRequest(t, newTestRouter(svc), http.MethodPost, "/api/data/refresh")

	assert.Equal(t, http.StatusConflict, w.Code)
	assert.Equal(t, apierrors.TypeRefreshRunning, body["type"])
	assert.Equal(t, "REFRESH_IN_PROGRESS", body["error_code"])
}
