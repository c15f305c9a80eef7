package config

import (
	"fmt"
	"os"
	"path/filepath"
	"time"

	"github.com/kelseyhightower/envconfig"
	"gopkg.in/yaml.v2"
)

// Config is the complete application configuration. Values come from the
// environment (CHURN_ prefix), then an optional YAML file for anything the
// environment left unset, then compiled-in defaults.
type Config struct {
	Server    ServerConfig    `yaml:"server" envconfig:"SERVER"`
	Security  SecurityConfig  `yaml:"security" envconfig:"SECURITY"`
	Logging   LoggingConfig   `yaml:"logging" envconfig:"LOGGING"`
	Paths     PathsConfig     `yaml:"paths" envconfig:"PATHS"`
	Pipeline  PipelineConfig  `yaml:"pipeline" envconfig:"PIPELINE"`
	WebSocket WebSocketConfig `yaml:"websocket" envconfig:"WEBSOCKET"`
}

// ServerConfig tunes the HTTP listener, its timeouts and the deadline
// for a triggered dataset refresh.
type ServerConfig struct {
	Port            int           `yaml:"port" envconfig:"PORT" default:"8080"`
	ReadTimeout     time.Duration `yaml:"read_timeout" envconfig:"READ_TIMEOUT" default:"15s"`
	WriteTimeout    time.Duration `yaml:"write_timeout" envconfig:"WRITE_TIMEOUT" default:"15s"`
	IdleTimeout     time.Duration `yaml:"idle_timeout" envconfig:"IDLE_TIMEOUT" default:"60s"`
	MaxHeaderBytes  int           `yaml:"max_header_bytes" envconfig:"MAX_HEADER_BYTES" default:"1048576"`
	ShutdownTimeout time.Duration `yaml:"shutdown_timeout" envconfig:"SHUTDOWN_TIMEOUT" default:"30s"`
	RefreshTimeout  time.Duration `yaml:"refresh_timeout" envconfig:"REFRESH_TIMEOUT" default:"5m"`
}

// SecurityConfig holds the CORS allowlist and the rate limit knobs.
type SecurityConfig struct {
	AllowedOrigins []string        `yaml:"allowed_origins" envconfig:"ALLOWED_ORIGINS" default:"http://localhost:8080"`
	EnableCORS     bool            `yaml:"enable_cors" envconfig:"ENABLE_CORS" default:"true"`
	RateLimit      RateLimitConfig `yaml:"rate_limit" envconfig:"RATE_LIMIT"`
}

// RateLimitConfig caps request throughput per client IP.
type RateLimitConfig struct {
	Enabled bool    `yaml:"enabled" envconfig:"ENABLED" default:"true"`
	RPS     float64 `yaml:"rps" envconfig:"RPS" default:"100"`
	Burst   int     `yaml:"burst" envconfig:"BURST" default:"50"`
}

// LoggingConfig selects the level and the sinks for slog output.
type LoggingConfig struct {
	Level       string `yaml:"level" envconfig:"LEVEL" default:"info"`
	Format      string `yaml:"format" envconfig:"FORMAT" default:"json"`
	Output      string `yaml:"output" envconfig:"OUTPUT" default:"both"`
	FilePath    string `yaml:"file_path" envconfig:"FILE_PATH" default:"logs/churnpulse.log"`
	Development bool   `yaml:"development" envconfig:"DEVELOPMENT" default:"false"`
}

// PathsConfig overrides pieces of the executable-anchored data tree.
type PathsConfig struct {
	ExecutableDir string `yaml:"executable_dir" envconfig:"EXECUTABLE_DIR"`
	DataDir       string `yaml:"data_dir" envconfig:"DATA_DIR" default:"data"`
	LogsDir       string `yaml:"logs_dir" envconfig:"LOGS_DIR" default:"logs"`
}

// PipelineConfig contains data source and publishing configuration.
// Candidate locations are tried in order and resolve against the data
// directory unless absolute.
type PipelineConfig struct {
	DerivedCandidates []string `yaml:"derived_candidates" envconfig:"DERIVED_CANDIDATES" default:"derived/processed_churn_data.csv,processed_churn_data.csv"`
	RawCandidates     []string `yaml:"raw_candidates" envconfig:"RAW_CANDIDATES" default:"raw/Customer-Churn-Records.csv,raw/Customer-Churn-Records.xlsx"`
	SpreadsheetID     string   `yaml:"spreadsheet_id" envconfig:"SPREADSHEET_ID"`
	CredentialsFile   string   `yaml:"credentials_file" envconfig:"CREDENTIALS_FILE"`
	PublishKPI        bool     `yaml:"publish_kpi" envconfig:"PUBLISH_KPI" default:"false"`
}

// WebSocketConfig sizes the upgrade buffers and sets the keepalive
// cadence pushed down to every connected client.
type WebSocketConfig struct {
	ReadBufferSize  int           `yaml:"read_buffer_size" envconfig:"READ_BUFFER_SIZE" default:"1024"`
	WriteBufferSize int           `yaml:"write_buffer_size" envconfig:"WRITE_BUFFER_SIZE" default:"1024"`
	PingPeriod      time.Duration `yaml:"ping_period" envconfig:"PING_PERIOD" default:"30s"`
	PongWait        time.Duration `yaml:"pong_wait" envconfig:"PONG_WAIT" default:"60s"`
}

// Load assembles the configuration, validates it and prepares the data
// tree. The environment wins over the YAML file for every field.
func Load() (*Config, error) {
	var cfg Config
	if err := envconfig.Process("CHURN", &cfg); err != nil {
		return nil, fmt.Errorf("failed to load config from env: %w", err)
	}

	if file := getConfigFilePath(); file != "" {
		fileCfg, err := loadFromFile(file)
		if err != nil {
			return nil, fmt.Errorf("failed to load config from file: %w", err)
		}
		cfg = mergeConfigs(*fileCfg, cfg)
	}

	if err := cfg.validate(); err != nil {
		return nil, fmt.Errorf("config validation failed: %w", err)
	}

	// Resolve the data tree once, remember where the binary lives and make
	// sure every directory the run needs exists up front.
	paths, err := cfg.ResolvedPaths()
	if err != nil {
		return nil, fmt.Errorf("failed to resolve paths: %w", err)
	}
	cfg.Paths.ExecutableDir = paths.ExecutableDir
	if err := paths.EnsureDirectories(); err != nil {
		return nil, fmt.Errorf("failed to ensure directories: %w", err)
	}
	paths.LogPathResolution()

	return &cfg, nil
}

// loadFromFile reads one YAML config file.
func loadFromFile(filePath string) (*Config, error) {
	data, err := os.ReadFile(filePath)
	if err != nil {
		return nil, err
	}
	var cfg Config
	if err := yaml.Unmarshal(data, &cfg); err != nil {
		return nil, err
	}
	return &cfg, nil
}

// mergeConfigs fills env-config zero values from the file config. Only
// fields a YAML file plausibly carries are merged; everything else keeps
// its envconfig default.
func mergeConfigs(fileConfig, envConfig Config) Config {
	merged := envConfig

	if merged.Server.Port == 0 {
		merged.Server.Port = fileConfig.Server.Port
	}
	if merged.Server.ReadTimeout == 0 {
		merged.Server.ReadTimeout = fileConfig.Server.ReadTimeout
	}
	if merged.Server.WriteTimeout == 0 {
		merged.Server.WriteTimeout = fileConfig.Server.WriteTimeout
	}
	if merged.Logging.Level == "" {
		merged.Logging.Level = fileConfig.Logging.Level
	}

	if len(merged.Pipeline.DerivedCandidates) == 0 {
		merged.Pipeline.DerivedCandidates = fileConfig.Pipeline.DerivedCandidates
	}
	if len(merged.Pipeline.RawCandidates) == 0 {
		merged.Pipeline.RawCandidates = fileConfig.Pipeline.RawCandidates
	}
	if merged.Pipeline.SpreadsheetID == "" {
		merged.Pipeline.SpreadsheetID = fileConfig.Pipeline.SpreadsheetID
	}
	if merged.Pipeline.CredentialsFile == "" {
		merged.Pipeline.CredentialsFile = fileConfig.Pipeline.CredentialsFile
	}

	return merged
}

// ResolvedPaths returns the path set for this configuration. An absolute
// data_dir overrides the executable-relative default.
func (c *Config) ResolvedPaths() (*Paths, error) {
	if filepath.IsAbs(c.Paths.DataDir) {
		return GetPathsWithData(c.Paths.DataDir)
	}
	return GetPaths()
}

// DerivedCandidatePaths returns the derived-table candidate locations
// resolved against the data directory, in configured order.
func (c *Config) DerivedCandidatePaths(paths *Paths) []string {
	return resolveCandidates(paths, c.Pipeline.DerivedCandidates)
}

// RawCandidatePaths returns the raw-table candidate locations resolved
// against the data directory, in configured order.
func (c *Config) RawCandidatePaths(paths *Paths) []string {
	return resolveCandidates(paths, c.Pipeline.RawCandidates)
}

func resolveCandidates(paths *Paths, candidates []string) []string {
	resolved := make([]string, 0, len(candidates))
	for _, candidate := range candidates {
		resolved = append(resolved, paths.ResolveCandidate(candidate))
	}
	return resolved
}

// GetCredentialsFile returns the resolved Google credentials file path.
// An explicit pipeline.credentials_file wins over the executable-relative
// default.
func (c *Config) GetCredentialsFile(paths *Paths) string {
	if c.Pipeline.CredentialsFile != "" {
		if filepath.IsAbs(c.Pipeline.CredentialsFile) {
			return c.Pipeline.CredentialsFile
		}
		return filepath.Join(paths.ExecutableDir, c.Pipeline.CredentialsFile)
	}
	return paths.GetCredentialsPath()
}

// validate rejects unusable values and pins the logging defaults the rest
// of the code assumes.
func (c *Config) validate() error {
	if c.Server.Port <= 0 || c.Server.Port > 65535 {
		return fmt.Errorf("invalid server port: %d", c.Server.Port)
	}
	if c.Server.ReadTimeout <= 0 {
		return fmt.Errorf("server read timeout must be positive")
	}
	if c.Server.WriteTimeout <= 0 {
		return fmt.Errorf("server write timeout must be positive")
	}
	if len(c.Security.AllowedOrigins) == 0 {
		return fmt.Errorf("at least one allowed origin must be specified")
	}
	if len(c.Pipeline.DerivedCandidates) == 0 && len(c.Pipeline.RawCandidates) == 0 {
		return fmt.Errorf("at least one data source candidate must be configured")
	}
	if c.Pipeline.PublishKPI && c.Pipeline.SpreadsheetID == "" {
		return fmt.Errorf("publish_kpi requires pipeline.spreadsheet_id")
	}
	if c.WebSocket.PingPeriod > 0 && c.WebSocket.PongWait > 0 && c.WebSocket.PingPeriod >= c.WebSocket.PongWait {
		return fmt.Errorf("websocket ping period must be shorter than the pong deadline")
	}

	// Logs are always structured JSON; only the sink is negotiable.
	c.Logging.Format = "json"
	if c.Logging.Output != "both" && c.Logging.Output != "file" {
		c.Logging.Output = "both"
	}
	if c.Logging.FilePath == "" {
		c.Logging.FilePath = "logs/churnpulse.log"
	}

	return nil
}

// getConfigFilePath probes the usual config file locations relative to
// the working directory. Empty means env-only configuration.
func getConfigFilePath() string {
	for _, candidate := range []string{
		"config.yaml",
		"configs/config.yaml",
		"../configs/config.yaml",
		"../../configs/config.yaml",
	} {
		if _, err := os.Stat(candidate); err == nil {
			return candidate
		}
	}
	return ""
}

// Default returns the compiled-in configuration, matching the envconfig
// defaults above.
func Default() *Config {
	return &Config{
		Server: ServerConfig{
			Port:            8080,
			ReadTimeout:     15 * time.Second,
			WriteTimeout:    15 * time.Second,
			IdleTimeout:     60 * time.Second,
			MaxHeaderBytes:  1 << 20,
			ShutdownTimeout: 30 * time.Second,
			RefreshTimeout:  5 * time.Minute,
		},
		Security: SecurityConfig{
			AllowedOrigins: []string{"http://localhost:8080"},
			EnableCORS:     true,
			RateLimit: RateLimitConfig{
				Enabled: true,
				RPS:     100,
				Burst:   50,
			},
		},
		Logging: LoggingConfig{
			Level:    "info",
			Format:   "json",
			Output:   "both",
			FilePath: "logs/churnpulse.log",
		},
		Paths: PathsConfig{
			DataDir: "data",
			LogsDir: "logs",
		},
		Pipeline: PipelineConfig{
			DerivedCandidates: []string{
				"derived/" + DerivedTableName,
				DerivedTableName,
			},
			RawCandidates: []string{
				"raw/" + DefaultRawRosterCSV,
				"raw/" + DefaultRawRosterXLSX,
			},
			PublishKPI: false,
		},
		WebSocket: WebSocketConfig{
			ReadBufferSize:  1024,
			WriteBufferSize: 1024,
			PingPeriod:      30 * time.Second,
			PongWait:        60 * time.Second,
		},
	}
}
