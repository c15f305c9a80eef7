package infrastructure

import (
	"context"
	"fmt"
	"runtime"
	"sync"
	"time"

	"go.opentelemetry.io/otel/metric"
)

// runtimeMetrics holds the Go runtime instruments the collector feeds.
// Only the collector writes them, so the type stays unexported.
type runtimeMetrics struct {
	goroutines    metric.Int64Gauge
	heapAlloc     metric.Int64Gauge
	totalAlloc    metric.Int64Gauge
	sysMemory     metric.Int64Gauge
	gcCount       metric.Int64Counter
	gcPause       metric.Float64Histogram
	processUptime metric.Float64Gauge
}

func newRuntimeMetrics(meter metric.Meter) (*runtimeMetrics, error) {
	m := &runtimeMetrics{}
	var err error

	if m.goroutines, err = meter.Int64Gauge(
		"system_goroutines",
		metric.WithDescription("Number of active goroutines"),
	); err != nil {
		return nil, err
	}

	if m.heapAlloc, err = meter.Int64Gauge(
		"system_memory_usage_bytes",
		metric.WithDescription("Live heap allocation in bytes"),
		metric.WithUnit("By"),
	); err != nil {
		return nil, err
	}

	if m.totalAlloc, err = meter.Int64Gauge(
		"system_memory_allocated_bytes",
		metric.WithDescription("Cumulative bytes allocated by the Go runtime"),
		metric.WithUnit("By"),
	); err != nil {
		return nil, err
	}

	if m.sysMemory, err = meter.Int64Gauge(
		"system_memory_system_bytes",
		metric.WithDescription("Memory obtained from the OS in bytes"),
		metric.WithUnit("By"),
	); err != nil {
		return nil, err
	}

	if m.gcCount, err = meter.Int64Counter(
		"system_gc_count_total",
		metric.WithDescription("Garbage collections since process start"),
	); err != nil {
		return nil, err
	}

	if m.gcPause, err = meter.Float64Histogram(
		"system_gc_pause_seconds",
		metric.WithDescription("Garbage collection pause duration"),
		metric.WithUnit("s"),
	); err != nil {
		return nil, err
	}

	if m.processUptime, err = meter.Float64Gauge(
		"system_process_uptime_seconds",
		metric.WithDescription("Process uptime in seconds"),
		metric.WithUnit("s"),
	); err != nil {
		return nil, err
	}

	return m, nil
}

// SystemMetricsCollector samples Go runtime statistics on a fixed
// interval and records them through the OTel meter, so the Prometheus
// endpoint exposes process health next to the churn business metrics.
type SystemMetricsCollector struct {
	metrics   *runtimeMetrics
	startTime time.Time
	interval  time.Duration

	// lastGC tracks NumGC between samples so gcCount stays a true
	// counter and pauses are only recorded when a collection happened.
	lastGC uint32

	stopOnce sync.Once
	stopCh   chan struct{}
}

// NewSystemMetricsCollector registers the runtime instruments on meter.
// Call Start to begin sampling.
func NewSystemMetricsCollector(meter metric.Meter, interval time.Duration) (*SystemMetricsCollector, error) {
	metrics, err := newRuntimeMetrics(meter)
	if err != nil {
		return nil, fmt.Errorf("failed to create runtime metrics: %w", err)
	}

	c := &SystemMetricsCollector{
		metrics:   metrics,
		interval:  interval,
		startTime: time.Now(),
		stopCh:    make(chan struct{}),
	}
	return c, nil
}

// Start samples immediately and then on every interval tick until Stop
// is called or ctx is cancelled. Run it on its own goroutine.
func (c *SystemMetricsCollector) Start(ctx context.Context) {
	ticker := time.NewTicker(c.interval)
	defer ticker.Stop()

	c.sample(ctx)

	for {
		select {
		case <-ctx.Done():
			return
		case <-c.stopCh:
			return
		case <-ticker.C:
			c.sample(ctx)
		}
	}
}

// Stop ends collection. Safe to call more than once.
func (c *SystemMetricsCollector) Stop() {
	c.stopOnce.Do(func() { close(c.stopCh) })
}

func (c *SystemMetricsCollector) sample(ctx context.Context) {
	var ms runtime.MemStats
	runtime.ReadMemStats(&ms)

	c.metrics.goroutines.Record(ctx, int64(runtime.NumGoroutine()))
	c.metrics.heapAlloc.Record(ctx, int64(ms.Alloc))
	c.metrics.totalAlloc.Record(ctx, int64(ms.TotalAlloc))
	c.metrics.sysMemory.Record(ctx, int64(ms.Sys))
	c.metrics.processUptime.Record(ctx, time.Since(c.startTime).Seconds())

	if ms.NumGC > c.lastGC {
		c.metrics.gcCount.Add(ctx, int64(ms.NumGC-c.lastGC))
		pause := time.Duration(ms.PauseNs[(ms.NumGC+255)%256])
		c.metrics.gcPause.Record(ctx, pause.Seconds())
		c.lastGC = ms.NumGC
	}
}
