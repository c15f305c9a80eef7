// Command processor runs the churn derivation pipeline as a batch job:
// it loads the raw customer roster, derives segment labels, and writes the
// derived table, summary tables, KPI snapshot, comparison report, and run
// manifest under the data directory. Re-runs against an unchanged source
// are skipped via the manifest fingerprint unless -full is set.
package main

import (
	"context"
	"errors"
	"flag"
	"fmt"
	"log/slog"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/google/uuid"
	"github.com/schollz/progressbar/v3"

	"churnpulse/internal/churn"
	"churnpulse/internal/config"
	apperrors "churnpulse/internal/errors"
	"churnpulse/internal/exporter"
	"churnpulse/internal/files"
	"churnpulse/internal/infrastructure"
	"churnpulse/pkg/contracts"
)

// pipelineStages is the unit count for the progress bar, in run order:
// load, derived table, summaries, KPI, comparison, manifest.
const pipelineStages = 6

func main() {
	source := flag.String("source", "", "explicit raw roster file (overrides configured candidates)")
	dataDir := flag.String("data", "", "data directory override (defaults to <executable>/data)")
	full := flag.Bool("full", false, "re-derive even when the manifest fingerprint matches the source")
	publish := flag.Bool("publish", false, "publish the KPI snapshot to Google Sheets after export")
	logLevel := flag.String("loglevel", "", "log level override (debug, info, warn, error)")
	showVersion := flag.Bool("version", false, "print version information and exit")
	flag.Parse()

	if *showVersion {
		fmt.Println(contracts.Banner("churn-processor"))
		return
	}

	cfg, err := config.Load()
	if err != nil {
		slog.Warn("Failed to load config, using defaults", "error", err)
		cfg = config.Default()
	}
	if *logLevel != "" {
		cfg.Logging.Level = *logLevel
	}

	var paths *config.Paths
	if *dataDir != "" {
		paths, err = config.GetPathsWithData(*dataDir)
	} else {
		paths, err = cfg.ResolvedPaths()
	}
	if err != nil {
		slog.Error("Failed to resolve paths", "error", err)
		os.Exit(1)
	}
	if err := paths.EnsureDirectories(); err != nil {
		slog.Error("Failed to create required directories", "error", err)
		os.Exit(1)
	}

	cfg.Logging.FilePath = paths.GetLogPath("processor.log")
	logger, err := infrastructure.InitializeLogger(cfg.Logging)
	if err != nil {
		slog.Warn("Failed to initialize logger, using default", "error", err)
		logger = slog.Default()
	}

	runID := uuid.New().String()
	logger = logger.With(
		slog.String("component", "processor"),
		slog.String("run_id", runID))

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	logger.InfoContext(ctx, "Starting churn pipeline run",
		slog.String("version", contracts.Version),
		slog.String("data_dir", paths.DataDir),
		slog.String("source_override", *source),
		slog.Bool("full", *full))

	start := time.Now()
	if err := run(ctx, cfg, paths, logger, runID, *source, *full, *publish); err != nil {
		failRun(ctx, logger, err, time.Since(start))
	}

	logger.InfoContext(ctx, "Pipeline run complete",
		slog.Duration("elapsed", time.Since(start)))
}

// run executes the pipeline stages in order, advancing the progress bar as
// each completes. Every returned error names its stage.
func run(ctx context.Context, cfg *config.Config, paths *config.Paths, logger *slog.Logger, runID, source string, full, publish bool) error {
	bar := progressbar.Default(pipelineStages, "churn pipeline")

	rawCandidates := cfg.RawCandidatePaths(paths)
	if source != "" {
		rawCandidates = []string{source}
	}

	// The processor always derives from a raw roster; derived candidates
	// are the web server's fast path, not this tool's input.
	bar.Describe("loading roster")
	loader := files.NewLoader(logger)
	ds, err := loader.Load(ctx, nil, rawCandidates)
	if err != nil {
		return stageError("load", err)
	}
	bar.Add(1)

	meta := ds.Meta()
	logger.InfoContext(ctx, "Roster loaded and labeled",
		slog.String("source", meta.SourcePath),
		slog.String("fingerprint", meta.Fingerprint),
		slog.Int("rows", meta.Rows),
		slog.Int("excluded_rows", meta.ExcludedRows))

	manifest, err := files.ReadManifest(paths.ManifestFile)
	if err != nil {
		logger.WarnContext(ctx, "Unreadable manifest, re-deriving", slog.String("error", err.Error()))
	}
	if !full && manifest.UpToDate(meta.Fingerprint, contracts.DataFormatVersion) {
		logger.InfoContext(ctx, "Source unchanged since last run, outputs are up to date",
			slog.String("fingerprint", meta.Fingerprint),
			slog.String("previous_run", manifest.RunID),
			slog.Time("completed_at", manifest.CompletedAt))
		bar.Finish()
		return nil
	}

	exp := exporter.NewReportExporter(paths, logger)
	outputs := make([]string, 0, 8)

	bar.Describe("writing derived table")
	name, err := exp.ExportDerivedTable(ctx, ds)
	if err != nil {
		return stageError("derived_table", err)
	}
	outputs = append(outputs, name)
	bar.Add(1)

	bar.Describe("writing summary tables")
	agg := churn.NewAggregator(logger)
	summaryNames, err := exp.ExportSummaries(ctx, ds, agg)
	if err != nil {
		return stageError("summaries", err)
	}
	outputs = append(outputs, summaryNames...)
	bar.Add(1)

	bar.Describe("writing KPI snapshot")
	summarizer := churn.NewSummarizer(logger)
	snap, err := summarizer.Summarize(ctx, ds)
	if err != nil {
		return stageError("kpi", err)
	}
	name, err = exp.ExportKPISummary(ctx, snap)
	if err != nil {
		return stageError("kpi", err)
	}
	outputs = append(outputs, name)
	bar.Add(1)

	bar.Describe("writing comparison report")
	rows, err := summarizer.Compare(ctx, ds)
	if err != nil {
		return stageError("comparison", err)
	}
	name, err = exp.ExportComparison(ctx, rows)
	if err != nil {
		return stageError("comparison", err)
	}
	outputs = append(outputs, name)
	bar.Add(1)

	bar.Describe("writing manifest")
	if err := files.WriteManifest(paths.ManifestFile, &files.RunManifest{
		RunID:        runID,
		SourcePath:   meta.SourcePath,
		SourceKind:   meta.SourceKind,
		Fingerprint:  meta.Fingerprint,
		Format:       contracts.DataFormatVersion,
		Rows:         meta.Rows,
		ExcludedRows: meta.ExcludedRows,
		Version:      contracts.Version,
		CompletedAt:  time.Now().UTC(),
		Outputs:      outputs,
	}); err != nil {
		return stageError("manifest", err)
	}
	bar.Add(1)
	bar.Finish()

	logger.InfoContext(ctx, "Outputs written",
		slog.Int("count", len(outputs)),
		slog.Any("outputs", outputs))

	if publish || cfg.Pipeline.PublishKPI {
		publisher := exporter.NewSheetsPublisher(
			cfg.Pipeline.SpreadsheetID,
			cfg.GetCredentialsFile(paths),
			logger)
		if !publisher.Enabled() {
			logger.WarnContext(ctx, "Sheets publishing requested but not configured, skipping")
		} else if err := publisher.PublishKPI(ctx, snap); err != nil {
			// Publishing is best effort; the local outputs above are
			// already complete.
			logger.WarnContext(ctx, "Sheets publish failed",
				slog.String("error", err.Error()))
		}
	}

	return nil
}

// stageError tags a pipeline failure with the stage it happened in.
type pipelineError struct {
	stage string
	err   error
}

func (e *pipelineError) Error() string { return fmt.Sprintf("%s: %v", e.stage, e.err) }
func (e *pipelineError) Unwrap() error { return e.err }

func stageError(stage string, err error) error {
	return &pipelineError{stage: stage, err: err}
}

// failRun logs the failure with the stage and, for typed errors, the
// offending column and value, then exits nonzero.
func failRun(ctx context.Context, logger *slog.Logger, err error, elapsed time.Duration) {
	attrs := []any{
		slog.String("error", err.Error()),
		slog.Duration("elapsed", elapsed),
	}

	var pe *pipelineError
	if errors.As(err, &pe) {
		attrs = append(attrs, slog.String("stage", pe.stage))
	}

	var app *apperrors.AppError
	if errors.As(err, &app) {
		attrs = append(attrs, slog.String("error_type", string(app.Type)))
		for key, value := range app.Context {
			attrs = append(attrs, slog.Any(key, value))
		}
	}

	logger.ErrorContext(ctx, "Pipeline run failed", attrs...)
	os.Exit(1)
}
