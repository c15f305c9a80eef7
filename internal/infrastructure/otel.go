package infrastructure

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"os"
	"time"

	"churnpulse/pkg/contracts"

	promclient "github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/exporters/prometheus"
	"go.opentelemetry.io/otel/exporters/stdout/stdouttrace"
	"go.opentelemetry.io/otel/metric"
	"go.opentelemetry.io/otel/propagation"
	sdkmetric "go.opentelemetry.io/otel/sdk/metric"
	"go.opentelemetry.io/otel/sdk/resource"
	sdktrace "go.opentelemetry.io/otel/sdk/trace"
	semconv "go.opentelemetry.io/otel/semconv/v1.26.0"
	"go.opentelemetry.io/otel/trace"
)

// ServiceName identifies the process in exported telemetry. The
// instrumentation scope on every tracer and meter carries the package
// path instead, so spans stay attributable when more scopes appear.
const (
	ServiceName = "churnpulse"
	scopeName   = "churnpulse/internal/infrastructure"
)

// OTelConfig selects exporters and sampling for the process.
type OTelConfig struct {
	ServiceName    string
	ServiceVersion string
	Environment    string
	TraceExporter  string // "stdout", "none"
	MetricExporter string // "prometheus", "none"
	EnableMetrics  bool
	EnableTracing  bool
	SampleRatio    float64
}

// OTelProviders bundles everything InitializeOTel built. PrometheusHTTP
// is non-nil only when the prometheus exporter is active; the /metrics
// route checks for it.
type OTelProviders struct {
	Tracer trace.Tracer
	Meter  metric.Meter

	TracerProvider *sdktrace.TracerProvider
	MeterProvider  *sdkmetric.MeterProvider

	PrometheusHTTP http.Handler
	Logger         *slog.Logger
}

// DefaultOTelConfig traces to stdout and exports metrics through
// Prometheus, sampling everything. Suitable outside of heavy
// production load.
func DefaultOTelConfig() *OTelConfig {
	cfg := &OTelConfig{
		ServiceName:    ServiceName,
		ServiceVersion: contracts.Version,
		Environment:    "development",
		TraceExporter:  "stdout",
		MetricExporter: "prometheus",
		EnableTracing:  true,
		EnableMetrics:  true,
		SampleRatio:    1.0,
	}
	if env := os.Getenv("ENVIRONMENT"); env != "" {
		cfg.Environment = env
	}
	return cfg
}

// InitializeOTel wires tracing and metrics per cfg and installs the
// global propagator. Disabled subsystems leave their provider fields
// nil; callers that need a tracer or meter unconditionally should fall
// back to the noop implementations.
func InitializeOTel(cfg *OTelConfig, logger *slog.Logger) (*OTelProviders, error) {
	if cfg == nil {
		cfg = DefaultOTelConfig()
	}

	ctx := context.Background()

	logger.InfoContext(ctx, "Configuring OpenTelemetry",
		slog.String("service", cfg.ServiceName),
		slog.String("environment", cfg.Environment),
		slog.String("version", cfg.ServiceVersion),
		slog.Bool("tracing", cfg.EnableTracing),
		slog.Bool("metrics", cfg.EnableMetrics))

	res := resource.NewWithAttributes(
		semconv.SchemaURL,
		semconv.ServiceName(cfg.ServiceName),
		semconv.ServiceVersion(cfg.ServiceVersion),
		semconv.DeploymentEnvironment(cfg.Environment),
		attribute.String("service.instance.id", instanceID()),
	)

	otel.SetTextMapPropagator(propagation.NewCompositeTextMapPropagator(
		propagation.TraceContext{},
		propagation.Baggage{},
	))

	providers := &OTelProviders{Logger: logger}

	if cfg.EnableTracing {
		if err := initializeTracing(ctx, cfg, res, providers); err != nil {
			return nil, fmt.Errorf("failed to initialize tracing: %w", err)
		}
	}

	if cfg.EnableMetrics {
		if err := initializeMetrics(ctx, cfg, res, providers); err != nil {
			return nil, fmt.Errorf("failed to initialize metrics: %w", err)
		}
	}

	return providers, nil
}

func initializeTracing(ctx context.Context, cfg *OTelConfig, res *resource.Resource, providers *OTelProviders) error {
	var exporter sdktrace.SpanExporter
	var err error

	switch cfg.TraceExporter {
	case "stdout":
		exporter, err = stdouttrace.New(stdouttrace.WithPrettyPrint())
	case "none":
		return nil
	default:
		return fmt.Errorf("unsupported trace exporter %q", cfg.TraceExporter)
	}
	if err != nil {
		return fmt.Errorf("failed to create trace exporter: %w", err)
	}

	tp := sdktrace.NewTracerProvider(
		sdktrace.WithBatcher(exporter),
		sdktrace.WithResource(res),
		sdktrace.WithSampler(sdktrace.TraceIDRatioBased(cfg.SampleRatio)),
	)

	providers.TracerProvider = tp
	providers.Tracer = tp.Tracer(scopeName, trace.WithInstrumentationVersion(cfg.ServiceVersion))
	otel.SetTracerProvider(tp)

	providers.Logger.InfoContext(ctx, "Trace pipeline ready",
		slog.String("exporter", cfg.TraceExporter),
		slog.Float64("sample_ratio", cfg.SampleRatio))

	return nil
}

func initializeMetrics(ctx context.Context, cfg *OTelConfig, res *resource.Resource, providers *OTelProviders) error {
	switch cfg.MetricExporter {
	case "prometheus":
		// Each provider gets its own registry so repeated initialization
		// (tests, restarts) never trips duplicate collector registration.
		registry := promclient.NewRegistry()
		exporter, err := prometheus.New(prometheus.WithRegisterer(registry))
		if err != nil {
			return fmt.Errorf("failed to create prometheus exporter: %w", err)
		}

		providers.PrometheusHTTP = promhttp.HandlerFor(registry, promhttp.HandlerOpts{})

		mp := sdkmetric.NewMeterProvider(
			sdkmetric.WithResource(res),
			sdkmetric.WithReader(exporter),
		)

		providers.MeterProvider = mp
		providers.Meter = mp.Meter(scopeName, metric.WithInstrumentationVersion(cfg.ServiceVersion))
		otel.SetMeterProvider(mp)

	case "none":
		return nil
	default:
		return fmt.Errorf("unsupported metric exporter %q", cfg.MetricExporter)
	}

	providers.Logger.InfoContext(ctx, "Metric pipeline ready",
		slog.String("exporter", cfg.MetricExporter))

	return nil
}

// BusinessMetrics is the shared instrument set for the churn service.
// One instance is created per process and handed to the HTTP
// middleware, the WebSocket hub and the data service, so matching
// series never split across duplicate instruments.
type BusinessMetrics struct {
	HTTPRequestsTotal   metric.Int64Counter
	HTTPRequestDuration metric.Float64Histogram
	HTTPActiveRequests  metric.Int64UpDownCounter

	PipelineRunsTotal     metric.Int64Counter
	PipelineRunDuration   metric.Float64Histogram
	PipelineStageDuration metric.Float64Histogram
	PipelineRowsProcessed metric.Int64Counter
	PipelineRowsExcluded  metric.Int64Counter
	PipelineErrors        metric.Int64Counter

	DatasetRefreshesTotal  metric.Int64Counter
	DatasetActiveRefreshes metric.Int64UpDownCounter
	DatasetRows            metric.Int64Gauge

	WebSocketConnections metric.Int64UpDownCounter
	WebSocketEventsSent  metric.Int64Counter

	SystemErrors metric.Int64Counter
}

// CreateBusinessMetrics registers the churn instrument set on meter.
func CreateBusinessMetrics(meter metric.Meter) (*BusinessMetrics, error) {
	m := &BusinessMetrics{}
	var err error

	if m.HTTPRequestsTotal, err = meter.Int64Counter(
		"http_requests_total",
		metric.WithDescription("Total number of HTTP requests"),
	); err != nil {
		return nil, err
	}
	if m.HTTPRequestDuration, err = meter.Float64Histogram(
		"http_request_duration_seconds",
		metric.WithDescription("HTTP request duration in seconds"),
		metric.WithUnit("s"),
	); err != nil {
		return nil, err
	}
	if m.HTTPActiveRequests, err = meter.Int64UpDownCounter(
		"http_active_requests",
		metric.WithDescription("Number of active HTTP requests"),
	); err != nil {
		return nil, err
	}

	if m.PipelineRunsTotal, err = meter.Int64Counter(
		"pipeline_runs_total",
		metric.WithDescription("Total number of pipeline runs"),
	); err != nil {
		return nil, err
	}
	if m.PipelineRunDuration, err = meter.Float64Histogram(
		"pipeline_run_duration_seconds",
		metric.WithDescription("Pipeline run duration in seconds"),
		metric.WithUnit("s"),
	); err != nil {
		return nil, err
	}
	if m.PipelineStageDuration, err = meter.Float64Histogram(
		"pipeline_stage_duration_seconds",
		metric.WithDescription("Pipeline stage duration in seconds"),
		metric.WithUnit("s"),
	); err != nil {
		return nil, err
	}
	if m.PipelineRowsProcessed, err = meter.Int64Counter(
		"pipeline_rows_processed_total",
		metric.WithDescription("Total number of roster rows processed"),
	); err != nil {
		return nil, err
	}
	if m.PipelineRowsExcluded, err = meter.Int64Counter(
		"pipeline_rows_excluded_total",
		metric.WithDescription("Total number of roster rows excluded during normalization"),
	); err != nil {
		return nil, err
	}
	if m.PipelineErrors, err = meter.Int64Counter(
		"pipeline_errors_total",
		metric.WithDescription("Total number of pipeline errors"),
	); err != nil {
		return nil, err
	}

	if m.DatasetRefreshesTotal, err = meter.Int64Counter(
		"dataset_refreshes_total",
		metric.WithDescription("Total number of dataset refreshes"),
	); err != nil {
		return nil, err
	}
	if m.DatasetActiveRefreshes, err = meter.Int64UpDownCounter(
		"dataset_active_refreshes",
		metric.WithDescription("Number of in-flight dataset refreshes"),
	); err != nil {
		return nil, err
	}
	if m.DatasetRows, err = meter.Int64Gauge(
		"dataset_rows",
		metric.WithDescription("Rows in the currently served dataset"),
	); err != nil {
		return nil, err
	}

	if m.WebSocketConnections, err = meter.Int64UpDownCounter(
		"websocket_connections_active",
		metric.WithDescription("Number of active WebSocket connections"),
	); err != nil {
		return nil, err
	}
	if m.WebSocketEventsSent, err = meter.Int64Counter(
		"websocket_events_sent_total",
		metric.WithDescription("Total number of WebSocket events broadcast"),
	); err != nil {
		return nil, err
	}

	if m.SystemErrors, err = meter.Int64Counter(
		"system_errors_total",
		metric.WithDescription("Total number of system errors"),
	); err != nil {
		return nil, err
	}

	return m, nil
}

// Shutdown flushes and stops both providers.
func (p *OTelProviders) Shutdown(ctx context.Context) error {
	var errs []error

	if p.TracerProvider != nil {
		if err := p.TracerProvider.Shutdown(ctx); err != nil {
			errs = append(errs, fmt.Errorf("tracer provider: %w", err))
		}
	}
	if p.MeterProvider != nil {
		if err := p.MeterProvider.Shutdown(ctx); err != nil {
			errs = append(errs, fmt.Errorf("meter provider: %w", err))
		}
	}
	if err := errors.Join(errs...); err != nil {
		return err
	}

	p.Logger.InfoContext(ctx, "OpenTelemetry providers stopped")
	return nil
}

func instanceID() string {
	hostname, _ := os.Hostname()
	return fmt.Sprintf("%s-%d", hostname, time.Now().Unix())
}

// AddSpanEvent attaches a named event to the span in ctx, if one is
// recording.
func AddSpanEvent(ctx context.Context, name string, attrs ...attribute.KeyValue) {
	span := trace.SpanFromContext(ctx)
	if !span.IsRecording() {
		return
	}
	span.AddEvent(name, trace.WithAttributes(attrs...))
}

// RecordError marks the span in ctx failed and records err on it.
func RecordError(ctx context.Context, err error, options ...trace.EventOption) {
	span := trace.SpanFromContext(ctx)
	if !span.IsRecording() {
		return
	}
	span.RecordError(err, options...)
	span.SetStatus(codes.Error, err.Error())
}

// RecordPipelineRunMetrics records one full pipeline run. A nil
// metrics set makes this a no-op, so the helpers are safe before the
// instrument set exists.
func RecordPipelineRunMetrics(ctx context.Context, metrics *BusinessMetrics, runID, sourceKind string, rows, excluded int, duration time.Duration, err error) {
	if metrics == nil {
		return
	}

	attrs := []attribute.KeyValue{
		attribute.String("run.id", runID),
		attribute.String("source.kind", sourceKind),
	}

	metrics.PipelineRunsTotal.Add(ctx, 1, metric.WithAttributes(attrs...))
	metrics.PipelineRowsProcessed.Add(ctx, int64(rows), metric.WithAttributes(attrs...))
	if excluded > 0 {
		metrics.PipelineRowsExcluded.Add(ctx, int64(excluded), metric.WithAttributes(attrs...))
	}

	statusAttr := attribute.String("status", "success")
	if err != nil {
		statusAttr = attribute.String("status", "failure")
	}
	metrics.PipelineRunDuration.Record(ctx, duration.Seconds(),
		metric.WithAttributes(append(attrs, statusAttr)...))

	if err != nil {
		metrics.PipelineErrors.Add(ctx, 1,
			metric.WithAttributes(append(attrs, attribute.String("error.type", fmt.Sprintf("%T", err)))...))
	}

	span := trace.SpanFromContext(ctx)
	if span.IsRecording() {
		span.AddEvent("pipeline.metrics_recorded",
			trace.WithAttributes(
				attribute.String("run.id", runID),
				attribute.Bool("success", err == nil),
				attribute.Int("rows", rows),
				attribute.Float64("duration_seconds", duration.Seconds()),
			),
		)
	}
}

// RecordStageMetrics records the duration of a single pipeline stage.
func RecordStageMetrics(ctx context.Context, metrics *BusinessMetrics, runID, stage string, duration time.Duration, success bool) {
	if metrics == nil {
		return
	}

	statusAttr := attribute.String("status", "success")
	if !success {
		statusAttr = attribute.String("status", "failure")
	}
	metrics.PipelineStageDuration.Record(ctx, duration.Seconds(), metric.WithAttributes(
		attribute.String("run.id", runID),
		attribute.String("stage", stage),
		statusAttr,
	))
}

// RecordRefreshMetrics records a dataset refresh and its outcome. The
// served row gauge only moves on success; a failed refresh leaves the
// previous dataset in place.
func RecordRefreshMetrics(ctx context.Context, metrics *BusinessMetrics, trigger string, rows int, success bool) {
	if metrics == nil {
		return
	}

	statusAttr := attribute.String("status", "success")
	if !success {
		statusAttr = attribute.String("status", "failure")
	}

	metrics.DatasetRefreshesTotal.Add(ctx, 1, metric.WithAttributes(
		attribute.String("trigger", trigger),
		statusAttr,
	))

	if success {
		metrics.DatasetRows.Record(ctx, int64(rows))
	}
}

// RecordActiveRefreshChange moves the in-flight refresh gauge.
func RecordActiveRefreshChange(ctx context.Context, metrics *BusinessMetrics, delta int64) {
	if metrics == nil {
		return
	}
	metrics.DatasetActiveRefreshes.Add(ctx, delta)
}
