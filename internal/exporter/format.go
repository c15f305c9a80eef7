package exporter

import (
	"fmt"
)

// formatMoney formats a monetary value for CSV output with exactly 2 decimal
// places, so values like 13.4 appear as 13.40
func formatMoney(f float64) string {
	return fmt.Sprintf("%.2f", f)
}

// formatNumber formats a mean or rate with the shortest exact representation
func formatNumber(f float64) string {
	return fmt.Sprintf("%g", f)
}

// formatInt formats an int value for CSV output
func formatInt(i int) string {
	return fmt.Sprintf("%d", i)
}

// formatPercent renders a 0..1 fraction as a percentage with 2 decimal
// places, matching the historical summary file format
func formatPercent(fraction float64) string {
	return fmt.Sprintf("%.2f", fraction*100)
}
