// Package churn implements the derivation pipeline for bank customer churn
// analytics: schema normalization, segment labeling, risk scoring, grouped
// aggregation, and KPI summarization over an immutable in-memory dataset.
//
// # Architecture
//
// The package is organized into five components:
//
// 1. Normalizer: canonicalizes raw roster headers and parses rows into
// CustomerRecord values
// 2. Labeler: derives the AgeGroup/BalanceSegment/CreditSegment/TenureSegment
// labels (fixed bins plus balance quartiles)
// 3. Risk scorer: additive 0..100 churn-risk score with Low..Critical levels
// 4. Aggregator: per-dimension SegmentSummary tables with deterministic
// group ordering
// 5. Summarizer: whole-table KPI snapshot, churned-vs-retained comparison,
// and risk distribution
//
// # Data Flow
//
//	raw table → Normalizer → []CustomerRecord → Labeler → Dataset
//	Dataset → Aggregator / Summarizer → summaries, KPIs, risk buckets
//
// # Determinism
//
// Every derivation is a pure function of the Dataset. Labeling the same rows
// twice yields identical labels; aggregation output ordering is fixed by the
// canonical bin orders in pkg/contracts/domain, never by map iteration.
// Risk scores are computed into fresh slices on demand and are never stored
// on the Dataset or written to any output file.
//
// # Error Handling
//
// Components return AppError values from internal/errors: schema errors name
// the missing column, validation errors carry the offending column, value,
// and 1-based row number, and degenerate quantile collapses are logged as
// warnings without failing the run.
package churn
