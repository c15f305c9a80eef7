package exporter

import (
	"context"
	"fmt"
	"log/slog"

	"golang.org/x/sync/errgroup"

	"churnpulse/internal/churn"
	"churnpulse/internal/config"
	"churnpulse/pkg/contracts/domain"
)

// summaryExportConcurrency bounds how many per-dimension summary tables are
// written in parallel.
const summaryExportConcurrency = 4

// ReportExporter writes a dataset's analysis outputs as CSV files under the
// derived-data directory. Every method returns the relative output name it
// wrote, suitable for the run manifest. Output is deterministic: the same
// dataset always produces byte-identical files.
type ReportExporter struct {
	csvWriter *CSVWriter
	logger    *slog.Logger
}

// NewReportExporter creates a report exporter writing into the given layout.
func NewReportExporter(paths *config.Paths, logger *slog.Logger) *ReportExporter {
	if logger == nil {
		logger = slog.Default()
	}
	return &ReportExporter{
		csvWriter: NewCSVWriter(paths),
		logger:    logger,
	}
}

// ExportDerivedTable streams the full customer table with its segment label
// columns to processed_churn_data.csv. Flags use the roster's 1/0 encoding
// and money columns keep 2 decimal places, so the file can be loaded back
// as a derived candidate on later runs.
func (e *ReportExporter) ExportDerivedTable(ctx context.Context, ds *churn.Dataset) (string, error) {
	records := ds.Records()
	labels := ds.Labels()

	stream, err := e.csvWriter.CreateStreamWriter(config.DerivedTableName, domain.DerivedColumns())
	if err != nil {
		return "", fmt.Errorf("failed to create derived table writer: %w", err)
	}

	for i, record := range records {
		if err := stream.WriteRecord(derivedRow(record, labels[i])); err != nil {
			stream.Close()
			return "", fmt.Errorf("failed to write derived row %d: %w", i+1, err)
		}
	}
	if err := stream.Close(); err != nil {
		return "", fmt.Errorf("failed to finish derived table: %w", err)
	}

	e.logger.InfoContext(ctx, "exported derived table",
		slog.String("path", e.csvWriter.resolvePath(config.DerivedTableName)),
		slog.Int("rows", len(records)))
	return config.DerivedTableName, nil
}

// derivedRow renders one customer in the derived table's column order.
func derivedRow(r domain.CustomerRecord, l domain.SegmentLabels) []string {
	return []string{
		formatInt(r.CreditScore),
		r.Geography,
		r.Gender,
		formatInt(r.Age),
		formatInt(r.Tenure),
		formatMoney(r.Balance),
		formatInt(r.NumOfProducts),
		domain.FormatBoolColumn(r.HasCreditCard),
		domain.FormatBoolColumn(r.IsActiveMember),
		formatMoney(r.EstimatedSalary),
		domain.FormatBoolColumn(r.Churned),
		domain.FormatBoolColumn(r.HasComplaint),
		formatInt(r.SatisfactionScore),
		r.CardType,
		formatInt(r.PointsEarned),
		l.AgeGroup,
		l.BalanceSegment,
		l.CreditSegment,
		l.TenureSegment,
	}
}

// ExportKPISummary writes the single-row kpi_summary.csv.
func (e *ReportExporter) ExportKPISummary(ctx context.Context, snap domain.KPISnapshot) (string, error) {
	row := []string{
		formatInt(snap.TotalCustomers),
		formatNumber(snap.ChurnRate),
		formatNumber(snap.RetentionRate),
		formatMoney(snap.AvgBalance),
		formatNumber(snap.AvgCreditScore),
		formatNumber(snap.AvgTenure),
		formatNumber(snap.ActiveMemberRate),
		formatNumber(snap.ComplaintRate),
		formatMoney(snap.BalanceAtRisk),
	}

	if err := e.csvWriter.WriteSimpleCSV(config.KPISummaryName, domain.KPIColumns(), [][]string{row}); err != nil {
		return "", fmt.Errorf("failed to write KPI summary: %w", err)
	}

	e.logger.InfoContext(ctx, "exported KPI summary",
		slog.String("path", e.csvWriter.resolvePath(config.KPISummaryName)),
		slog.Int("total_customers", snap.TotalCustomers))
	return config.KPISummaryName, nil
}

// ExportComparison writes the churned-vs-retained profile table.
func (e *ReportExporter) ExportComparison(ctx context.Context, rows []domain.ComparisonRow) (string, error) {
	records := make([][]string, 0, len(rows))
	for _, row := range rows {
		records = append(records, []string{
			row.Metric,
			formatNumber(row.Churned),
			formatNumber(row.Retained),
		})
	}

	if err := e.csvWriter.WriteSimpleCSV(config.ComparisonName, []string{"Metric", "Churned", "Retained"}, records); err != nil {
		return "", fmt.Errorf("failed to write comparison table: %w", err)
	}

	e.logger.InfoContext(ctx, "exported comparison table",
		slog.String("path", e.csvWriter.resolvePath(config.ComparisonName)),
		slog.Int("metrics", len(rows)))
	return config.ComparisonName, nil
}

// ExportSummary writes one grouped summary table. The header is the
// dimension's key column, Total, Churned, ChurnRate, then one Avg<column>
// per extra mean. ChurnRate is rendered as a percentage with 2 decimal
// places.
func (e *ReportExporter) ExportSummary(ctx context.Context, dim domain.Dimension, summaries []domain.SegmentSummary, means []string) (string, error) {
	headers := []string{dim.KeyColumn(), "Total", "Churned", "ChurnRate"}
	for _, column := range means {
		headers = append(headers, "Avg"+column)
	}

	records := make([][]string, 0, len(summaries))
	for _, s := range summaries {
		row := []string{
			s.GroupKey,
			formatInt(s.Total),
			formatInt(s.ChurnedCount),
			formatPercent(s.ChurnRate),
		}
		for _, column := range means {
			row = append(row, formatNumber(s.ExtraMeans[column]))
		}
		records = append(records, row)
	}

	name := "summaries/" + fmt.Sprintf(config.SummaryFilePattern, string(dim))
	if err := e.csvWriter.WriteSimpleCSV(name, headers, records); err != nil {
		return "", fmt.Errorf("failed to write %s summary: %w", dim, err)
	}
	return name, nil
}

// ExportSummaries aggregates and writes one summary table per grouping
// dimension, a few dimensions at a time. Each table carries the dimension's
// default extra means. Returned names follow the dimension export order
// regardless of write completion order.
func (e *ReportExporter) ExportSummaries(ctx context.Context, ds *churn.Dataset, agg *churn.Aggregator) ([]string, error) {
	dims := domain.AllDimensions()
	names := make([]string, len(dims))

	g, ctx := errgroup.WithContext(ctx)
	g.SetLimit(summaryExportConcurrency)

	for i, dim := range dims {
		i, dim := i, dim
		g.Go(func() error {
			means := churn.DefaultMeans(dim)
			summaries, err := agg.Aggregate(ctx, ds, dim, means...)
			if err != nil {
				return fmt.Errorf("failed to aggregate %s: %w", dim, err)
			}
			name, err := e.ExportSummary(ctx, dim, summaries, means)
			if err != nil {
				return err
			}
			names[i] = name
			return nil
		})
	}
	if err := g.Wait(); err != nil {
		return nil, err
	}

	e.logger.InfoContext(ctx, "exported summary tables",
		slog.Int("dimensions", len(dims)))
	return names, nil
}
