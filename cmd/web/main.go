// Command web serves the churn analytics API: dataset summaries, KPIs and
// filtered churn rates over HTTP, refresh lifecycle events over WebSocket,
// and Prometheus metrics. The server starts even when no dataset is
// available yet; a refresh can recover it at any time.
package main

import (
	"log/slog"
	"os"

	"churnpulse/internal/app"
)

func main() {
	application, err := app.NewApplication()
	if err != nil {
		slog.Error("Failed to initialize application", slog.String("error", err.Error()))
		os.Exit(1)
	}

	if err := application.Run(); err != nil {
		slog.Error("Application error", slog.String("error", err.Error()))
		os.Exit(1)
	}
}
