// Package files resolves and loads churn datasets from the filesystem.
//
// This package contains three main components:
//
// Loader: Walks prioritized candidate locations, pre-derived tables first
// (CSV with stored segment labels), then raw rosters (CSV or XLSX) pushed
// through the normalize-validate-label pipeline. Every successful load
// fingerprints the source bytes so callers can detect unchanged inputs.
//
// Discovery: Scans the raw data directory for roster files by name pattern,
// newest first. The processor uses it as a fallback when no configured
// candidate location exists.
//
// RunManifest: Records a completed pipeline run (source, fingerprint, row
// counts, outputs). The processor consults it before the next run to skip
// re-deriving an unchanged source.
//
// Example usage:
//
//	loader := files.NewLoader(logger)
//	ds, err := loader.Load(ctx, derivedCandidates, rawCandidates)
//
//	discovery := files.NewDiscovery(paths.RawDir)
//	roster, ok, err := discovery.LatestRoster()
package files
