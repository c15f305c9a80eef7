package services

import (
	"context"
	stderrors "errors"
	"log/slog"
	"sync"
	"time"

	"github.com/google/uuid"
	"go.opentelemetry.io/otel/attribute"

	"churnpulse/internal/churn"
	"churnpulse/internal/config"
	"churnpulse/internal/errors"
	"churnpulse/internal/files"
	"churnpulse/internal/infrastructure"
	"churnpulse/pkg/contracts/domain"
	"churnpulse/pkg/contracts/events"
)

// EventPublisher receives dataset refresh lifecycle events. The WebSocket
// hub satisfies it; tests substitute a recorder.
type EventPublisher interface {
	PublishRefreshStarted(runID string)
	PublishRefreshProgress(runID, stage string, percent int, message string)
	PublishRefreshCompleted(runID string, rows int, sourceKind, fingerprint string)
	PublishRefreshFailed(runID, errorText string)
}

// ChurnRateFilter selects the customer subset for a filtered churn rate.
// Empty slices match every customer; values within a slice are ORed and
// the three slices are ANDed together.
type ChurnRateFilter struct {
	Geographies []string `json:"geographies,omitempty"`
	Genders     []string `json:"genders,omitempty"`
	CardTypes   []string `json:"card_types,omitempty"`
}

// ChurnRateResult is the churn rate over the filtered subset. ChurnRate
// is a fraction in [0,1] and zero when nothing matched.
type ChurnRateResult struct {
	Matched   int             `json:"matched"`
	Churned   int             `json:"churned"`
	ChurnRate float64         `json:"churn_rate"`
	Filter    ChurnRateFilter `json:"filter"`
}

// DataService owns the in-memory dataset and serves every analytic read.
// Reads see a consistent snapshot: a refresh builds the replacement
// dataset off to the side and swaps the pointer only after it validated.
type DataService struct {
	cfg   *config.Config
	paths *config.Paths

	loader     *files.Loader
	summarizer *churn.Summarizer
	aggregator *churn.Aggregator

	events  EventPublisher
	metrics *infrastructure.BusinessMetrics
	logger  *slog.Logger

	mu      sync.RWMutex
	dataset *churn.Dataset

	refreshMu sync.Mutex
	activeRun string
}

// NewDataService creates a DataService. The dataset starts empty; call
// Load or Refresh to populate it.
func NewDataService(cfg *config.Config, paths *config.Paths, logger *slog.Logger) *DataService {
	if logger == nil {
		logger = slog.Default()
	}
	logger = logger.With(slog.String("component", "data_service"))

	return &DataService{
		cfg:        cfg,
		paths:      paths,
		loader:     files.NewLoader(logger),
		summarizer: churn.NewSummarizer(logger),
		aggregator: churn.NewAggregator(logger),
		logger:     logger,
	}
}

// SetEvents attaches the refresh event publisher.
func (s *DataService) SetEvents(events EventPublisher) {
	s.events = events
}

// SetMetrics attaches business metrics recording.
func (s *DataService) SetMetrics(metrics *infrastructure.BusinessMetrics) {
	s.metrics = metrics
}

// Available reports whether a dataset has been loaded.
func (s *DataService) Available() bool {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.dataset != nil
}

// RefreshActive returns the run ID of the in-flight refresh, if any.
func (s *DataService) RefreshActive() (string, bool) {
	s.refreshMu.Lock()
	defer s.refreshMu.Unlock()
	return s.activeRun, s.activeRun != ""
}

func (s *DataService) current() (*churn.Dataset, error) {
	s.mu.RLock()
	ds := s.dataset
	s.mu.RUnlock()
	if ds == nil {
		return nil, errors.NewAppError(errors.ErrTypeUnavailable,
			"no dataset is loaded yet", nil)
	}
	return ds, nil
}

// SummaryFor aggregates churn by the given dimension. Each dimension
// carries its default mean columns so the web response matches the
// exported summary file for the same data.
func (s *DataService) SummaryFor(ctx context.Context, dim domain.Dimension) ([]domain.SegmentSummary, error) {
	ds, err := s.current()
	if err != nil {
		return nil, err
	}
	return s.aggregator.Aggregate(ctx, ds, dim, churn.DefaultMeans(dim)...)
}

// KPISnapshot returns the headline dataset KPIs.
func (s *DataService) KPISnapshot(ctx context.Context) (domain.KPISnapshot, error) {
	ds, err := s.current()
	if err != nil {
		return domain.KPISnapshot{}, err
	}
	return s.summarizer.Summarize(ctx, ds)
}

// Comparison returns per-metric means for churned versus retained
// customers.
func (s *DataService) Comparison(ctx context.Context) ([]domain.ComparisonRow, error) {
	ds, err := s.current()
	if err != nil {
		return nil, err
	}
	return s.summarizer.Compare(ctx, ds)
}

// RiskDistribution buckets customers by derived risk level.
func (s *DataService) RiskDistribution(ctx context.Context) ([]domain.RiskBucket, error) {
	ds, err := s.current()
	if err != nil {
		return nil, err
	}
	return s.summarizer.RiskDistribution(ctx, ds)
}

// Meta describes the loaded dataset: source, kind, fingerprint, row
// counts and load time.
func (s *DataService) Meta(ctx context.Context) (domain.DatasetMeta, error) {
	ds, err := s.current()
	if err != nil {
		return domain.DatasetMeta{}, err
	}
	return ds.Meta(), nil
}

// FilteredChurnRate computes the churn rate over the subset selected by
// the filter.
func (s *DataService) FilteredChurnRate(ctx context.Context, filter ChurnRateFilter) (ChurnRateResult, error) {
	ds, err := s.current()
	if err != nil {
		return ChurnRateResult{}, err
	}

	result := ChurnRateResult{Filter: filter}
	for _, r := range ds.Records() {
		if !matchesAny(r.Geography, filter.Geographies) ||
			!matchesAny(r.Gender, filter.Genders) ||
			!matchesAny(r.CardType, filter.CardTypes) {
			continue
		}
		result.Matched++
		if r.Churned {
			result.Churned++
		}
	}
	if result.Matched > 0 {
		result.ChurnRate = float64(result.Churned) / float64(result.Matched)
	}

	s.logger.DebugContext(ctx, "filtered churn rate computed",
		slog.Int("matched", result.Matched),
		slog.Int("churned", result.Churned))
	return result, nil
}

func matchesAny(value string, allowed []string) bool {
	if len(allowed) == 0 {
		return true
	}
	for _, a := range allowed {
		if a == value {
			return true
		}
	}
	return false
}

// Load resolves and loads the dataset synchronously. The web server
// calls it once at startup; a failure leaves the service in the
// data-unavailable state rather than aborting the process.
func (s *DataService) Load(ctx context.Context) error {
	runID, err := s.claimRun()
	if err != nil {
		return err
	}
	defer s.releaseRun()
	return s.reload(ctx, runID, "startup")
}

// Refresh starts a background dataset reload and returns its run ID.
// Only one refresh runs at a time; a second call while one is in flight
// returns a conflict error.
func (s *DataService) Refresh(ctx context.Context) (string, error) {
	runID, err := s.claimRun()
	if err != nil {
		return "", err
	}

	s.logger.InfoContext(ctx, "dataset refresh accepted",
		slog.String("run_id", runID))

	// The reload must outlive the triggering HTTP request, so detach
	// from its cancellation while keeping its values (trace ID).
	refreshCtx, cancel := context.WithTimeout(
		context.WithoutCancel(ctx), s.cfg.Server.RefreshTimeout)

	go func() {
		defer cancel()
		defer s.releaseRun()
		if err := s.reload(refreshCtx, runID, "api"); err != nil {
			s.logger.ErrorContext(refreshCtx, "dataset refresh failed",
				slog.String("run_id", runID),
				slog.String("error", err.Error()))
		}
	}()

	return runID, nil
}

func (s *DataService) claimRun() (string, error) {
	s.refreshMu.Lock()
	defer s.refreshMu.Unlock()
	if s.activeRun != "" {
		return "", errors.NewConflictError("a dataset refresh is already running").
			WithContext("active_run", s.activeRun)
	}
	s.activeRun = uuid.New().String()
	return s.activeRun, nil
}

func (s *DataService) releaseRun() {
	s.refreshMu.Lock()
	s.activeRun = ""
	s.refreshMu.Unlock()
}

// reload resolves the best candidate source, runs it through the load
// pipeline and swaps the dataset pointer. Lifecycle events go out on
// every path so connected clients always see a terminal event.
func (s *DataService) reload(ctx context.Context, runID, trigger string) error {
	start := time.Now()

	// Every log line below picks up the run ID through the handler.
	ctx = infrastructure.WithRunID(ctx, runID)

	s.publishStarted(runID)
	infrastructure.RecordActiveRefreshChange(ctx, s.metrics, 1)
	defer infrastructure.RecordActiveRefreshChange(ctx, s.metrics, -1)

	s.publishProgress(runID, events.StageLoad, 10, "resolving source candidates")
	infrastructure.AddSpanEvent(ctx, "refresh.stage",
		attribute.String("run_id", runID),
		attribute.String("stage", events.StageLoad))

	loadStart := time.Now()
	ds, err := s.loader.Load(ctx,
		s.cfg.DerivedCandidatePaths(s.paths),
		s.cfg.RawCandidatePaths(s.paths))
	infrastructure.RecordStageMetrics(ctx, s.metrics, runID, events.StageLoad, time.Since(loadStart), err == nil)
	if err != nil {
		infrastructure.RecordRefreshMetrics(ctx, s.metrics, trigger, 0, false)
		infrastructure.RecordPipelineRunMetrics(ctx, s.metrics, runID, "", 0, 0, time.Since(start), err)
		s.publishFailed(runID, err)
		return err
	}

	s.publishProgress(runID, events.StageLabel, 75, "segment labels ready")
	s.publishProgress(runID, events.StageSwap, 90, "activating dataset")
	infrastructure.AddSpanEvent(ctx, "refresh.stage",
		attribute.String("run_id", runID),
		attribute.String("stage", events.StageSwap))

	s.mu.Lock()
	s.dataset = ds
	s.mu.Unlock()

	meta := ds.Meta()
	infrastructure.RecordRefreshMetrics(ctx, s.metrics, trigger, meta.Rows, true)
	infrastructure.RecordPipelineRunMetrics(ctx, s.metrics, runID, meta.SourceKind, meta.Rows, meta.ExcludedRows, time.Since(start), nil)
	s.publishCompleted(runID, meta)

	s.logger.InfoContext(ctx, "dataset loaded",
		slog.String("trigger", trigger),
		slog.String("source", meta.SourcePath),
		slog.String("source_kind", meta.SourceKind),
		slog.Int("rows", meta.Rows),
		slog.Int("excluded_rows", meta.ExcludedRows),
		slog.Duration("elapsed", time.Since(start)))
	return nil
}

func (s *DataService) publishStarted(runID string) {
	if s.events == nil {
		return
	}
	s.events.PublishRefreshStarted(runID)
}

func (s *DataService) publishProgress(runID, stage string, percent int, message string) {
	if s.events == nil {
		return
	}
	s.events.PublishRefreshProgress(runID, stage, percent, message)
}

func (s *DataService) publishCompleted(runID string, meta domain.DatasetMeta) {
	if s.events == nil {
		return
	}
	s.events.PublishRefreshCompleted(runID, meta.Rows, meta.SourceKind, meta.Fingerprint)
}

func (s *DataService) publishFailed(runID string, err error) {
	if s.events == nil {
		return
	}
	// Clients get the sanitized message, not the wrapped cause chain.
	message := err.Error()
	var appErr *errors.AppError
	if stderrors.As(err, &appErr) {
		message = appErr.Message
	}
	s.events.PublishRefreshFailed(runID, message)
}
