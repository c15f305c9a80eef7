package config

import (
	"fmt"
	"log/slog"
	"os"
	"path/filepath"
)

// Paths is the single source of truth for the on-disk layout. Every file
// the application reads or writes resolves through one of these fields,
// never through the working directory.
type Paths struct {
	ExecutableDir string
	DataDir       string
	RawDir        string
	DerivedDir    string
	SummariesDir  string
	LogsDir       string

	// Config files
	CredentialsFile string

	// Well-known derived files (inside DerivedDir)
	DerivedTableCSV string
	KPISummaryCSV   string
	ComparisonCSV   string
	ManifestFile    string
}

// GetPaths returns the layout rooted at the executable directory. Both
// binaries ship next to their data tree, so the executable location, not
// the working directory, anchors everything.
func GetPaths() (*Paths, error) {
	exeDir, err := executableDir()
	if err != nil {
		return nil, err
	}
	return buildPaths(exeDir, filepath.Join(exeDir, "data")), nil
}

// GetPathsWithData returns executable-relative paths with the data tree rooted
// at dataDir instead of <exe>/data. Used by the processor's -data override.
func GetPathsWithData(dataDir string) (*Paths, error) {
	exeDir, err := executableDir()
	if err != nil {
		return nil, err
	}
	abs, err := filepath.Abs(dataDir)
	if err != nil {
		return nil, fmt.Errorf("failed to resolve data dir %s: %v", dataDir, err)
	}
	return buildPaths(exeDir, abs), nil
}

// GetPathsFrom returns paths rooted at an explicit base directory instead of
// the executable directory. Intended for tests.
func GetPathsFrom(baseDir string) *Paths {
	return buildPaths(baseDir, filepath.Join(baseDir, "data"))
}

// executableDir locates the running binary, following symlinks so a
// symlinked install still anchors at the real location.
func executableDir() (string, error) {
	exe, err := os.Executable()
	if err != nil {
		return "", fmt.Errorf("failed to get executable path: %v", err)
	}
	exe, err = filepath.EvalSymlinks(exe)
	if err != nil {
		return "", fmt.Errorf("failed to resolve executable symlinks: %v", err)
	}
	return filepath.Dir(exe), nil
}

// buildPaths lays out the full directory tree:
//
//	<base>/
//	  ├── credentials.json   (optional, Sheets publishing)
//	  ├── data/
//	  │   ├── raw/           (source rosters, CSV or XLSX)
//	  │   └── derived/       (processed table, KPI summary, manifest)
//	  │       └── summaries/ (per-dimension churn rate tables)
//	  └── logs/
func buildPaths(exeDir, dataDir string) *Paths {
	derivedDir := filepath.Join(dataDir, "derived")

	return &Paths{
		ExecutableDir: exeDir,
		DataDir:       dataDir,
		RawDir:        filepath.Join(dataDir, "raw"),
		DerivedDir:    derivedDir,
		SummariesDir:  filepath.Join(derivedDir, "summaries"),
		LogsDir:       filepath.Join(exeDir, "logs"),

		CredentialsFile: filepath.Join(exeDir, CredentialsFileName),

		DerivedTableCSV: filepath.Join(derivedDir, DerivedTableName),
		KPISummaryCSV:   filepath.Join(derivedDir, KPISummaryName),
		ComparisonCSV:   filepath.Join(derivedDir, ComparisonName),
		ManifestFile:    filepath.Join(derivedDir, ManifestName),
	}
}

// EnsureDirectories creates every directory in the layout that a run may
// write into.
func (p *Paths) EnsureDirectories() error {
	for _, dir := range []string{
		p.DataDir,
		p.RawDir,
		p.DerivedDir,
		p.SummariesDir,
		p.LogsDir,
	} {
		if err := os.MkdirAll(dir, 0o755); err != nil {
			return fmt.Errorf("failed to create directory %s: %v", dir, err)
		}
	}
	return nil
}

// FileExists checks if a file exists
func FileExists(path string) bool {
	_, err := os.Stat(path)
	return !os.IsNotExist(err)
}

// GetRawPath returns the path for a raw source file
func (p *Paths) GetRawPath(filename string) string {
	return filepath.Join(p.RawDir, filename)
}

// GetDerivedPath returns the path for a derived output file
func (p *Paths) GetDerivedPath(filename string) string {
	return filepath.Join(p.DerivedDir, filename)
}

// GetSummaryPath returns the path for a per-dimension summary table,
// e.g. churn_by_geography.csv for "geography".
func (p *Paths) GetSummaryPath(dimension string) string {
	return filepath.Join(p.SummariesDir, fmt.Sprintf(SummaryFilePattern, dimension))
}

// GetLogPath returns the path for a log file
func (p *Paths) GetLogPath(filename string) string {
	return filepath.Join(p.LogsDir, filename)
}

// GetCredentialsPath returns the path for the Google Sheets credentials file
func (p *Paths) GetCredentialsPath() string {
	return p.CredentialsFile
}

// ResolveCandidate resolves a candidate location against the data directory.
// Absolute entries pass through unchanged.
func (p *Paths) ResolveCandidate(location string) string {
	if filepath.IsAbs(location) {
		return location
	}
	return filepath.Join(p.DataDir, location)
}

// LogPathResolution records the resolved layout once at startup so a
// misplaced data tree is obvious from the first log lines.
func (p *Paths) LogPathResolution() {
	slog.Info("Path resolution summary",
		slog.Group("directories",
			slog.String("executable", p.ExecutableDir),
			slog.String("data", p.DataDir),
			slog.String("raw", p.RawDir),
			slog.String("derived", p.DerivedDir),
			slog.String("summaries", p.SummariesDir),
			slog.String("logs", p.LogsDir),
		),
		slog.Group("config_files",
			slog.String("credentials", p.CredentialsFile),
		),
		slog.Group("derived_files",
			slog.String("derived_table", p.DerivedTableCSV),
			slog.String("kpi_summary", p.KPISummaryCSV),
			slog.String("comparison", p.ComparisonCSV),
			slog.String("manifest", p.ManifestFile),
		))
}
