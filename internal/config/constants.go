package config

import "time"

// Application constants - all hardcoded values for the ChurnPulse system
const (
	// Application Info
	AppName   = "ChurnPulse"
	AppVendor = "ChurnPulse Analytics"

	// Data Files
	CredentialsFileName = "credentials.json"
	DerivedTableName    = "processed_churn_data.csv"
	KPISummaryName      = "kpi_summary.csv"
	ComparisonName      = "churned_vs_retained.csv"
	ManifestName        = "manifest.json"
	SummaryFilePattern  = "churn_by_%s.csv"

	// Default raw roster names (inside data/raw)
	DefaultRawRosterCSV  = "Customer-Churn-Records.csv"
	DefaultRawRosterXLSX = "Customer-Churn-Records.xlsx"

	// Roster discovery pattern for the raw directory
	RosterFilePattern = `(?i).*churn.*\.(csv|xlsx)$`

	// Rate Limiting
	DefaultRateLimit = 100 // requests per minute
	DefaultBurstSize = 50

	// Network Timeouts
	DefaultHTTPTimeout  = 30 * time.Second
	SheetsTimeout       = 45 * time.Second
	WebSocketPingPeriod = 30 * time.Second
	WebSocketPongWait   = 60 * time.Second

	// File Paths (relative to executable)
	DefaultDataDir = "data"
	DefaultLogsDir = "logs"

	// Operation Timeouts
	DefaultOperationTimeout = 10 * time.Minute
	PipelineTimeout         = 5 * time.Minute
	ExportTimeout           = 2 * time.Minute

	// WebSocket Buffer Sizes
	WebSocketReadBufferSize  = 1024
	WebSocketWriteBufferSize = 1024

	// Log Settings
	DefaultLogLevel   = "info"
	DefaultLogFormat  = "json"
	MaxLogFileSize    = 100 * 1024 * 1024 // 100MB
	MaxLogFileAge     = 30                // days
	MaxLogFileBackups = 10

	// Quantile binning
	BalanceQuantileBuckets = 4
)

// URLs and Endpoints
const (
	// API Endpoints (internal)
	APIBasePath     = "/api"
	DataEndpoint    = "/api/data"
	HealthEndpoint  = "/api/health"
	MetricsEndpoint = "/metrics"

	// WebSocket Endpoints
	WebSocketEndpoint = "/ws"
)
