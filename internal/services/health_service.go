package services

import (
	"context"
	"fmt"
	"log/slog"
	"os"
	"path/filepath"
	"runtime"
	"time"

	"churnpulse/internal/config"
	"churnpulse/pkg/contracts"
)

// ConnectionCounter reports live and lifetime WebSocket connection
// numbers. The hub satisfies it.
type ConnectionCounter interface {
	ClientCount() int
	Totals() (connections, sent, dropped int64)
}

// HealthService reports liveness, readiness and component health for
// the web server.
type HealthService struct {
	version   string
	buildTime string
	buildID   string
	paths     *config.Paths
	data      *DataService
	hub       ConnectionCounter
	startTime time.Time
	logger    *slog.Logger
}

// HealthStatus is the health endpoint response body.
type HealthStatus struct {
	Status    string                 `json:"status"`
	Timestamp time.Time              `json:"timestamp"`
	Version   string                 `json:"version"`
	Runtime   map[string]interface{} `json:"runtime,omitempty"`
	Services  map[string]interface{} `json:"services,omitempty"`
}

// ServiceHealth is one component's health within a HealthStatus.
type ServiceHealth struct {
	Status  string `json:"status"`
	Message string `json:"message,omitempty"`
}

// SystemStats summarizes process and data directory state.
type SystemStats struct {
	UptimeSeconds        float64 `json:"uptime_seconds"`
	TotalFiles           int     `json:"total_files"`
	TotalSizeBytes       int64   `json:"total_size_bytes"`
	WebSocketClients     int     `json:"websocket_clients"`
	WebSocketConnections int64   `json:"websocket_connections_total"`
	EventsSent           int64   `json:"events_sent_total"`
	EventsDropped        int64   `json:"events_dropped_total"`
	RefreshActive        bool    `json:"refresh_active"`
	GoVersion            string  `json:"go_version"`
	OS                   string  `json:"os"`
	Arch                 string  `json:"arch"`
}

// NewHealthService creates a health service with injected dependencies.
func NewHealthService(version string, paths *config.Paths, data *DataService, hub ConnectionCounter, logger *slog.Logger) *HealthService {
	return NewHealthServiceWithBuildInfo(version, "", "", paths, data, hub, logger)
}

// NewHealthServiceWithBuildInfo creates a health service that also
// reports build metadata.
func NewHealthServiceWithBuildInfo(version, buildTime, buildID string, paths *config.Paths, data *DataService, hub ConnectionCounter, logger *slog.Logger) *HealthService {
	if logger == nil {
		logger = slog.Default()
	}

	logger.Info("HealthService initialized",
		slog.String("version", version),
		slog.String("build_time", buildTime),
		slog.String("build_id", buildID))

	return &HealthService{
		version:   version,
		buildTime: buildTime,
		buildID:   buildID,
		paths:     paths,
		data:      data,
		hub:       hub,
		startTime: time.Now(),
		logger:    logger,
	}
}

// HealthCheck returns overall health. The server is "ok" with a loaded
// dataset and "degraded" without one; it never reports unhealthy here
// because it can still accept refresh requests.
func (hs *HealthService) HealthCheck(ctx context.Context) HealthStatus {
	status := HealthStatus{
		Status:    "ok",
		Timestamp: time.Now(),
		Version:   hs.version,
		Services:  make(map[string]interface{}),
	}

	dataset := hs.checkDatasetHealth(ctx)
	status.Services["dataset"] = dataset
	status.Services["websocket"] = hs.checkWebSocketHealth()
	status.Services["data_dir"] = hs.checkDataDirHealth()

	if dataset.Status != "ready" {
		status.Status = "degraded"
	}

	hs.logger.DebugContext(ctx, "health check completed",
		slog.String("status", status.Status))
	return status
}

// ReadinessCheck reports whether the server should receive traffic. A
// missing dataset degrades but does not fail readiness; an unusable
// data directory does, because neither loads nor refreshes can work.
func (hs *HealthService) ReadinessCheck(ctx context.Context) HealthStatus {
	status := HealthStatus{
		Status:    "ready",
		Timestamp: time.Now(),
		Version:   hs.version,
		Services:  make(map[string]interface{}),
	}

	status.Services["dataset"] = hs.checkDatasetHealth(ctx)
	status.Services["websocket"] = hs.checkWebSocketHealth()
	status.Services["data_dir"] = hs.checkDataDirHealth()

	allReady := true
	for _, service := range status.Services {
		if sh, ok := service.(ServiceHealth); ok && sh.Status == "not_ready" {
			allReady = false
			break
		}
	}
	if !allReady {
		status.Status = "not_ready"
	}

	return status
}

// LivenessCheck reports process liveness.
func (hs *HealthService) LivenessCheck(ctx context.Context) HealthStatus {
	return HealthStatus{
		Status:    "alive",
		Timestamp: time.Now(),
		Version:   hs.version,
		Runtime: map[string]interface{}{
			"uptime":     time.Since(hs.startTime).Seconds(),
			"go_version": runtime.Version(),
			"goroutines": runtime.NumGoroutine(),
		},
	}
}

// Version returns version and build information. The version itself is
// injected so tests can pin it; the platform and contract fields come
// from the shared build identity.
func (hs *HealthService) Version() map[string]interface{} {
	info := contracts.BuildInfo()
	result := map[string]interface{}{
		"version":      hs.version,
		"api_version":  info.APIVersion,
		"data_format":  info.DataFormat,
		"go_version":   info.GoVersion,
		"os":           info.OS,
		"arch":         info.Arch,
		"uptime":       time.Since(hs.startTime).Seconds(),
		"start_time":   hs.startTime.Format(time.RFC3339),
		"current_time": time.Now().Format(time.RFC3339),
	}
	if hs.buildTime != "" {
		result["build_time"] = hs.buildTime
	}
	if hs.buildID != "" {
		result["build_id"] = hs.buildID
	}
	return result
}

// SystemStats returns process and data directory statistics.
func (hs *HealthService) SystemStats(ctx context.Context) (SystemStats, error) {
	var totalFiles int
	var totalSize int64

	filepath.Walk(hs.paths.DataDir, func(path string, info os.FileInfo, err error) error {
		if err == nil && !info.IsDir() {
			totalFiles++
			totalSize += info.Size()
		}
		return nil
	})

	stats := SystemStats{
		UptimeSeconds:  time.Since(hs.startTime).Seconds(),
		TotalFiles:     totalFiles,
		TotalSizeBytes: totalSize,
		GoVersion:      runtime.Version(),
		OS:             runtime.GOOS,
		Arch:           runtime.GOARCH,
	}
	if hs.hub != nil {
		stats.WebSocketClients = hs.hub.ClientCount()
		stats.WebSocketConnections, stats.EventsSent, stats.EventsDropped = hs.hub.Totals()
	}
	if hs.data != nil {
		_, stats.RefreshActive = hs.data.RefreshActive()
	}
	return stats, nil
}

func (hs *HealthService) checkDatasetHealth(ctx context.Context) ServiceHealth {
	if hs.data == nil {
		return ServiceHealth{Status: "not_ready", Message: "data service not attached"}
	}
	meta, err := hs.data.Meta(ctx)
	if err != nil {
		return ServiceHealth{Status: "degraded", Message: "no dataset loaded"}
	}
	return ServiceHealth{
		Status: "ready",
		Message: fmt.Sprintf("%d rows from %s source, loaded %s",
			meta.Rows, meta.SourceKind, meta.LoadedAt.Format(time.RFC3339)),
	}
}

func (hs *HealthService) checkWebSocketHealth() ServiceHealth {
	if hs.hub == nil {
		return ServiceHealth{Status: "degraded", Message: "hub not attached"}
	}
	return ServiceHealth{
		Status:  "ready",
		Message: fmt.Sprintf("%d clients connected", hs.hub.ClientCount()),
	}
}

func (hs *HealthService) checkDataDirHealth() ServiceHealth {
	info, err := os.Stat(hs.paths.DataDir)
	if err != nil {
		return ServiceHealth{Status: "not_ready", Message: fmt.Sprintf("data directory: %v", err)}
	}
	if !info.IsDir() {
		return ServiceHealth{Status: "not_ready", Message: "data directory path is not a directory"}
	}
	return ServiceHealth{Status: "ready"}
}
