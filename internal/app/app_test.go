package app

import (
	"context"
	"encoding/json"
	"io"
	"log/slog"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/gorilla/websocket"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	metricnoop "go.opentelemetry.io/otel/metric/noop"
	tracenoop "go.opentelemetry.io/otel/trace/noop"

	"churnpulse/internal/config"
	"churnpulse/internal/infrastructure"
)

func newTestApplication(t *testing.T) *Application {
	t.Helper()

	cfg := config.Default()
	cfg.Logging.Development = false
	cfg.Security.RateLimit.Enabled = false

	paths := config.GetPathsFrom(t.TempDir())
	require.NoError(t, paths.EnsureDirectories())

	logger := slog.New(slog.NewJSONHandler(io.Discard, nil))

	providers := &infrastructure.OTelProviders{
		Tracer: tracenoop.NewTracerProvider().Tracer("test"),
		Meter:  metricnoop.NewMeterProvider().Meter("test"),
		Logger: logger,
	}

	app := &Application{
		Config:        cfg,
		Paths:         paths,
		Logger:        logger,
		OTelProviders: providers,
	}
	require.NoError(t, app.initializeServices())
	app.setupRouter()
	app.createServer()

	t.Cleanup(func() {
		app.WebSocketHub.Stop()
	})

	return app
}

func decodeBody(t *testing.T, rec *httptest.ResponseRecorder) map[string]interface{} {
	t.Helper()
	var body map[string]interface{}
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &body))
	return body
}

func TestRouterServesHealthEndpoints(t *testing.T) {
	app := newTestApplication(t)

	rec := httptest.NewRecorder()
	app.Router.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/api/health", nil))
	require.Equal(t, http.StatusOK, rec.Code)
	body := decodeBody(t, rec)
	assert.Equal(t, "degraded", body["status"])
	assert.Equal(t, VERSION, body["version"])

	rec = httptest.NewRecorder()
	app.Router.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/api/health/live", nil))
	require.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, "alive", decodeBody(t, rec)["status"])

	rec = httptest.NewRecorder()
	app.Router.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/api/version", nil))
	require.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, VERSION, decodeBody(t, rec)["version"])
}

func TestRouterReturnsUnavailableProblemBeforeLoad(t *testing.T) {
	app := newTestApplication(t)

	rec := httptest.NewRecorder()
	app.Router.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/api/data/kpi", nil))

	require.Equal(t, http.StatusServiceUnavailable, rec.Code)
	assert.Contains(t, rec.Header().Get("Content-Type"), "application/problem+json")

	body := decodeBody(t, rec)
	assert.Equal(t, "/errors/data/unavailable", body["type"])
	assert.NotEmpty(t, body["trace_id"])
}

func TestRouterUnknownRouteReturnsProblem(t *testing.T) {
	app := newTestApplication(t)

	rec := httptest.NewRecorder()
	app.Router.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/definitely-not-a-route", nil))

	require.Equal(t, http.StatusNotFound, rec.Code)
	assert.Equal(t, "/errors/not-found", decodeBody(t, rec)["type"])
}

func TestRouterAppliesSecurityHeaders(t *testing.T) {
	app := newTestApplication(t)

	rec := httptest.NewRecorder()
	app.Router.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/api/health", nil))

	assert.Equal(t, "nosniff", rec.Header().Get("X-Content-Type-Options"))
	assert.NotEmpty(t, rec.Header().Get("X-Request-ID"))
}

func TestMetricsRouteMountedWithoutExporter(t *testing.T) {
	app := newTestApplication(t)

	rec := httptest.NewRecorder()
	app.Router.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/metrics", nil))

	require.Equal(t, http.StatusNotFound, rec.Code)
	assert.Contains(t, rec.Body.String(), "metrics collection is disabled")
}

func TestTriggerRefreshReturnsRunID(t *testing.T) {
	app := newTestApplication(t)

	rec := httptest.NewRecorder()
	app.Router.ServeHTTP(rec, httptest.NewRequest(http.MethodPost, "/api/data/refresh", nil))

	require.Equal(t, http.StatusAccepted, rec.Code)
	body := decodeBody(t, rec)
	assert.Equal(t, "accepted", body["status"])
	assert.NotEmpty(t, body["run_id"])
}

func TestWebSocketUpgradeAndGreeting(t *testing.T) {
	app := newTestApplication(t)

	server := httptest.NewServer(app.Router)
	defer server.Close()

	wsURL := "ws" + strings.TrimPrefix(server.URL, "http") + "/ws"
	conn, resp, err := websocket.DefaultDialer.Dial(wsURL, nil)
	require.NoError(t, err)
	defer conn.Close()
	if resp != nil {
		resp.Body.Close()
	}

	require.NoError(t, conn.SetReadDeadline(time.Now().Add(2*time.Second)))
	_, payload, err := conn.ReadMessage()
	require.NoError(t, err)

	var frame map[string]interface{}
	require.NoError(t, json.Unmarshal(payload, &frame))
	assert.Equal(t, "connection", frame["type"])
}

func TestCORSConfigPerEnvironment(t *testing.T) {
	app := newTestApplication(t)

	prod := app.getCORSConfig()
	assert.NotContains(t, prod.AllowedOrigins, "http://localhost:3000")

	app.Config.Logging.Development = true
	dev := app.getCORSConfig()
	assert.Contains(t, dev.AllowedOrigins, "http://localhost:3000")
}

func TestStartupHealthCheckPasses(t *testing.T) {
	app := newTestApplication(t)
	assert.NoError(t, app.performStartupHealthCheck(context.Background()))
}
