package http

import (
	"context"

	"churnpulse/internal/services"
	"churnpulse/pkg/contracts/domain"
)

// DataServiceInterface defines the dataset operations the data handler
// depends on. services.DataService satisfies it.
type DataServiceInterface interface {
	SummaryFor(ctx context.Context, dim domain.Dimension) ([]domain.SegmentSummary, error)
	KPISnapshot(ctx context.Context) (domain.KPISnapshot, error)
	FilteredChurnRate(ctx context.Context, filter services.ChurnRateFilter) (services.ChurnRateResult, error)
	RiskDistribution(ctx context.Context) ([]domain.RiskBucket, error)
	Comparison(ctx context.Context) ([]domain.ComparisonRow, error)
	Meta(ctx context.Context) (domain.DatasetMeta, error)
	Refresh(ctx context.Context) (string, error)
}
