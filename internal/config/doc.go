// Package config loads, validates and exposes the ChurnPulse
// configuration, and anchors every file system path the pipeline and
// the web server touch.
//
// # Configuration Sources
//
// Settings are merged from three sources, highest precedence first:
//
//  1. Environment variables
//  2. A config.yaml file
//  3. Compiled-in defaults
//
// # Environment Variables
//
// Every variable carries the CHURN_ prefix:
//
//	CHURN_SERVER_PORT=8080
//	CHURN_LOGGING_LEVEL=info
//	CHURN_PIPELINE_RAW_CANDIDATES=raw/Customer-Churn-Records.csv
//	CHURN_PIPELINE_SPREADSHEET_ID=1BxiMVs0...
//	CHURN_PIPELINE_PUBLISH_KPI=true
//
// # Path Management
//
// The Paths type pins the whole data tree to the executable location,
// so a deployment stays self-contained no matter where it is launched
// from:
//
//	paths, err := config.GetPaths()
//	derived := paths.DerivedTableCSV
//	summary := paths.GetSummaryPath("geography")
//
// # Validation
//
// Load rejects an out-of-range port, non-positive timeouts, an empty
// origin allowlist, an empty data source candidate list, and KPI
// publishing without a spreadsheet ID.
//
// # Usage
//
// Load once at startup and pass the result down:
//
//	cfg, err := config.Load()
//	if err != nil {
//	    log.Fatal(err)
//	}
package config
