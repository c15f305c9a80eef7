// Package exporter materializes analysis results as files and optional
// Google Sheets rows.
//
// The package provides four components:
//
//   - CSVWriter: low-level CSV writing against the configured data layout,
//     with UTF-8 BOM support for Excel and a streaming variant for the
//     derived table.
//   - ReportExporter: writes the derived customer table, the KPI summary,
//     the churned-vs-retained comparison, and the per-dimension summary
//     tables. Output is byte-stable: exporting the same dataset twice
//     produces identical files.
//   - SheetsPublisher: appends a KPI row to a Google spreadsheet when
//     publishing is configured. Publish failures never fail a run.
//
// All paths are resolved through config.Paths, so callers pass file names
// or dimension identifiers rather than absolute paths.
//
// Example usage:
//
//	exp := exporter.NewReportExporter(paths, logger)
//	if _, err := exp.ExportDerivedTable(ctx, dataset); err != nil {
//	    return err
//	}
//	outputs, err := exp.ExportSummaries(ctx, dataset, aggregator)
package exporter
