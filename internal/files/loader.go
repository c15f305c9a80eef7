package files

import (
	"bytes"
	"context"
	"encoding/csv"
	"encoding/hex"
	"fmt"
	"log/slog"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/xuri/excelize/v2"
	"golang.org/x/crypto/blake2b"

	"churnpulse/internal/churn"
	"churnpulse/internal/errors"
	"churnpulse/pkg/contracts/domain"
)

// utf8BOM is prepended to exported CSV files for Excel; reads strip it.
var utf8BOM = []byte{0xEF, 0xBB, 0xBF}

// Loader resolves a dataset from prioritized candidate locations. Derived
// candidates are tried first; the first one that reads as a well-formed
// derived table (canonical columns plus stored segment labels) wins and the
// raw list is never touched. Otherwise raw candidates are tried in order and
// the first loadable roster runs through the normalize-validate-label
// pipeline. A raw roster that loads but carries out-of-domain values aborts
// the load rather than falling through to an older candidate.
type Loader struct {
	logger     *slog.Logger
	normalizer *churn.Normalizer
	labeler    *churn.Labeler
}

// NewLoader creates a loader.
func NewLoader(logger *slog.Logger) *Loader {
	if logger == nil {
		logger = slog.Default()
	}
	return &Loader{
		logger:     logger,
		normalizer: churn.NewNormalizer(logger),
		labeler:    churn.NewLabeler(logger),
	}
}

// Load attempts each candidate location in order and returns the first
// dataset. When every candidate in both lists fails, the returned error
// carries each attempted location with its individual failure reason.
func (l *Loader) Load(ctx context.Context, derivedCandidates, rawCandidates []string) (*churn.Dataset, error) {
	var attempts []errors.Attempt

	for _, path := range derivedCandidates {
		ds, err := l.loadDerived(ctx, path)
		if err != nil {
			attempts = append(attempts, errors.Attempt{Location: path, Reason: err.Error()})
			l.logger.DebugContext(ctx, "derived candidate failed",
				slog.String("path", path),
				slog.String("reason", err.Error()))
			continue
		}
		l.logger.InfoContext(ctx, "loaded derived table",
			slog.String("path", path),
			slog.Int("rows", ds.Len()))
		return ds, nil
	}

	for _, path := range rawCandidates {
		ds, err := l.loadRaw(ctx, path)
		if err != nil {
			// A roster that reads fine but fails row validation is bad
			// data, not an unavailable source. Older candidates would
			// only mask it.
			if errors.IsType(err, errors.ErrTypeValidation) {
				return nil, err
			}
			attempts = append(attempts, errors.Attempt{Location: path, Reason: err.Error()})
			l.logger.DebugContext(ctx, "raw candidate failed",
				slog.String("path", path),
				slog.String("reason", err.Error()))
			continue
		}
		l.logger.InfoContext(ctx, "loaded raw roster",
			slog.String("path", path),
			slog.Int("rows", ds.Len()),
			slog.Int("excluded", ds.Meta().ExcludedRows))
		return ds, nil
	}

	return nil, errors.NewUnavailableError(attempts)
}

// loadDerived reads a pre-derived table: canonical customer columns plus the
// four segment label columns, all values already validated by the run that
// wrote them. Any defect makes the candidate fail so the caller moves on.
func (l *Loader) loadDerived(ctx context.Context, path string) (*churn.Dataset, error) {
	if !strings.EqualFold(filepath.Ext(path), ".csv") {
		return nil, fmt.Errorf("derived table must be csv: %s", filepath.Base(path))
	}

	data, header, rows, err := readCSV(path)
	if err != nil {
		return nil, err
	}

	idx := headerIndex(header)
	labelColumns := []string{
		domain.ColAgeGroup,
		domain.ColBalanceSegment,
		domain.ColCreditSegment,
		domain.ColTenureSegment,
	}
	for _, column := range labelColumns {
		if _, ok := idx[column]; !ok {
			return nil, fmt.Errorf("missing label column %s", column)
		}
	}

	records, excluded, err := l.normalizer.Normalize(ctx, header, rows)
	if err != nil {
		return nil, err
	}
	if excluded > 0 {
		return nil, fmt.Errorf("%d rows with uncoercible churn labels", excluded)
	}

	labels := make([]domain.SegmentLabels, len(rows))
	for i, row := range rows {
		lb := domain.SegmentLabels{
			AgeGroup:       labelCell(idx, row, domain.ColAgeGroup),
			BalanceSegment: labelCell(idx, row, domain.ColBalanceSegment),
			CreditSegment:  labelCell(idx, row, domain.ColCreditSegment),
			TenureSegment:  labelCell(idx, row, domain.ColTenureSegment),
		}
		if lb.AgeGroup == "" || lb.BalanceSegment == "" || lb.CreditSegment == "" || lb.TenureSegment == "" {
			return nil, fmt.Errorf("row %d: blank segment label", i+1)
		}
		labels[i] = lb
	}

	meta := domain.DatasetMeta{
		SourcePath:  path,
		SourceKind:  domain.SourceKindDerived,
		Fingerprint: fingerprint(data),
		LoadedAt:    time.Now(),
	}
	return churn.NewDataset(records, labels, meta)
}

// loadRaw reads a raw roster and runs the full derivation pipeline. Risk is
// never computed here; consumers derive it on demand.
func (l *Loader) loadRaw(ctx context.Context, path string) (*churn.Dataset, error) {
	data, header, rows, err := readTable(path)
	if err != nil {
		return nil, err
	}

	records, excluded, err := l.normalizer.Normalize(ctx, header, rows)
	if err != nil {
		return nil, err
	}

	labels, err := l.labeler.Label(ctx, records)
	if err != nil {
		return nil, err
	}

	meta := domain.DatasetMeta{
		SourcePath:   path,
		SourceKind:   domain.SourceKindRaw,
		Fingerprint:  fingerprint(data),
		ExcludedRows: excluded,
		LoadedAt:     time.Now(),
	}
	return churn.NewDataset(records, labels, meta)
}

// readTable reads a tabular file into a header row and data rows, dispatching
// on the file extension.
func readTable(path string) ([]byte, []string, [][]string, error) {
	switch strings.ToLower(filepath.Ext(path)) {
	case ".csv":
		return readCSV(path)
	case ".xlsx":
		return readXLSX(path)
	default:
		return nil, nil, nil, fmt.Errorf("unsupported table format %s", filepath.Ext(path))
	}
}

func readCSV(path string) ([]byte, []string, [][]string, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, nil, nil, err
	}

	r := csv.NewReader(bytes.NewReader(bytes.TrimPrefix(data, utf8BOM)))
	// Short rows are handled cell by cell downstream
	r.FieldsPerRecord = -1

	all, err := r.ReadAll()
	if err != nil {
		return nil, nil, nil, fmt.Errorf("csv parse: %w", err)
	}
	if len(all) == 0 {
		return nil, nil, nil, fmt.Errorf("empty table")
	}
	return data, all[0], all[1:], nil
}

func readXLSX(path string) ([]byte, []string, [][]string, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, nil, nil, err
	}

	f, err := excelize.OpenReader(bytes.NewReader(data))
	if err != nil {
		return nil, nil, nil, fmt.Errorf("xlsx open: %w", err)
	}
	defer f.Close()

	sheets := f.GetSheetList()
	if len(sheets) == 0 {
		return nil, nil, nil, fmt.Errorf("workbook has no sheets")
	}

	rows, err := f.GetRows(sheets[0])
	if err != nil {
		return nil, nil, nil, fmt.Errorf("xlsx read: %w", err)
	}
	if len(rows) == 0 {
		return nil, nil, nil, fmt.Errorf("empty table")
	}
	return data, rows[0], rows[1:], nil
}

// fingerprint returns the BLAKE2b-256 hex digest of the source bytes.
func fingerprint(data []byte) string {
	sum := blake2b.Sum256(data)
	return hex.EncodeToString(sum[:])
}

// headerIndex maps each trimmed header name to its first cell index.
func headerIndex(header []string) map[string]int {
	idx := make(map[string]int, len(header))
	for i, h := range header {
		name := strings.TrimSpace(h)
		if name == "" {
			continue
		}
		if _, dup := idx[name]; !dup {
			idx[name] = i
		}
	}
	return idx
}

// labelCell returns the trimmed cell for a label column, or "" when absent.
func labelCell(idx map[string]int, row []string, column string) string {
	i, ok := idx[column]
	if !ok || i >= len(row) {
		return ""
	}
	return strings.TrimSpace(row[i])
}
