package exporter

import (
	"context"
	"fmt"
	"log/slog"
	"time"

	"google.golang.org/api/option"
	"google.golang.org/api/sheets/v4"

	"churnpulse/pkg/contracts/domain"
)

// SheetsPublisher appends KPI rows to a Google spreadsheet so runs build up
// a history sheet. Publishing is optional: without both a spreadsheet id
// and a credentials file the publisher is disabled and PublishKPI is a
// no-op.
type SheetsPublisher struct {
	spreadsheetID   string
	credentialsFile string
	logger          *slog.Logger
	now             func() time.Time
}

// NewSheetsPublisher creates a publisher for the given spreadsheet. Either
// argument may be empty, which disables publishing.
func NewSheetsPublisher(spreadsheetID, credentialsFile string, logger *slog.Logger) *SheetsPublisher {
	if logger == nil {
		logger = slog.Default()
	}
	return &SheetsPublisher{
		spreadsheetID:   spreadsheetID,
		credentialsFile: credentialsFile,
		logger:          logger,
		now:             time.Now,
	}
}

// Enabled reports whether publishing is configured.
func (p *SheetsPublisher) Enabled() bool {
	return p.spreadsheetID != "" && p.credentialsFile != ""
}

// PublishKPI appends one row, a UTC timestamp followed by the KPI fields in
// kpi_summary.csv column order, after the sheet's last row.
func (p *SheetsPublisher) PublishKPI(ctx context.Context, snap domain.KPISnapshot) error {
	if !p.Enabled() {
		return nil
	}

	credentialsOption := option.WithCredentialsFile(p.credentialsFile)
	service, err := sheets.NewService(ctx, credentialsOption)
	if err != nil {
		return fmt.Errorf("failed to create sheets service: %w", err)
	}

	values := [][]interface{}{
		{
			p.now().UTC().Format("2006-01-02 15:04:05"),
			snap.TotalCustomers,
			snap.ChurnRate,
			snap.RetentionRate,
			snap.AvgBalance,
			snap.AvgCreditScore,
			snap.AvgTenure,
			snap.ActiveMemberRate,
			snap.ComplaintRate,
			snap.BalanceAtRisk,
		},
	}
	valueRange := &sheets.ValueRange{Values: values}

	_, err = service.Spreadsheets.Values.Append(p.spreadsheetID, "A1", valueRange).
		ValueInputOption("RAW").
		InsertDataOption("INSERT_ROWS").
		Context(ctx).
		Do()
	if err != nil {
		return fmt.Errorf("failed to append KPI row: %w", err)
	}

	p.logger.InfoContext(ctx, "published KPI row",
		slog.String("spreadsheet_id", p.spreadsheetID),
		slog.Int("total_customers", snap.TotalCustomers))
	return nil
}
