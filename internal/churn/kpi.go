package churn

import (
	"context"
	"log/slog"
	"math"

	"churnpulse/internal/errors"
	"churnpulse/pkg/contracts/domain"
)

// Summarizer reduces a dataset to its headline tables: the single-row KPI
// snapshot, the churned-vs-retained comparison, and the risk distribution.
// A nonempty dataset is a precondition for all three.
type Summarizer struct {
	logger *slog.Logger
}

// NewSummarizer creates a summarizer.
func NewSummarizer(logger *slog.Logger) *Summarizer {
	if logger == nil {
		logger = slog.Default()
	}
	return &Summarizer{logger: logger}
}

// toCents converts a currency amount to integer cents for exact summation.
func toCents(v float64) int64 {
	return int64(math.Round(v * 100))
}

// fromCents converts an exact cent sum back to a currency amount.
func fromCents(c int64) float64 {
	return float64(c) / 100
}

// Summarize reduces the whole table to the KPI snapshot. Rates are
// percentages on the 0..100 scale. Balance sums accumulate in integer cents
// and convert once at the end, so BalanceAtRisk is exact regardless of row
// order.
func (s *Summarizer) Summarize(ctx context.Context, ds *Dataset) (domain.KPISnapshot, error) {
	records := ds.Records()
	if len(records) == 0 {
		return domain.KPISnapshot{}, errors.NewAppValidationError("cannot summarize an empty dataset")
	}

	var (
		churned      int
		active       int
		complaints   int
		balanceCents int64
		atRiskCents  int64
		creditSum    int64
		tenureSum    int64
	)

	for _, r := range records {
		cents := toCents(r.Balance)
		balanceCents += cents
		creditSum += int64(r.CreditScore)
		tenureSum += int64(r.Tenure)
		if r.Churned {
			churned++
			atRiskCents += cents
		}
		if r.IsActiveMember {
			active++
		}
		if r.HasComplaint {
			complaints++
		}
	}

	total := float64(len(records))
	churnRate := float64(churned) / total * 100

	snapshot := domain.KPISnapshot{
		TotalCustomers:   len(records),
		ChurnRate:        churnRate,
		RetentionRate:    100 - churnRate,
		AvgBalance:       fromCents(balanceCents) / total,
		AvgCreditScore:   float64(creditSum) / total,
		AvgTenure:        float64(tenureSum) / total,
		ActiveMemberRate: float64(active) / total * 100,
		ComplaintRate:    float64(complaints) / total * 100,
		BalanceAtRisk:    fromCents(atRiskCents),
	}

	s.logger.DebugContext(ctx, "computed kpi snapshot",
		slog.Int("total_customers", snapshot.TotalCustomers),
		slog.Float64("churn_rate", snapshot.ChurnRate))

	return snapshot, nil
}

type sideAccumulator struct {
	count        int
	balanceCents int64
	creditSum    int64
	tenureSum    int64
	satisfaction int64
	points       int64
	active       int
	complaints   int
}

func (sa *sideAccumulator) mean(sum int64) float64 {
	if sa.count == 0 {
		return 0
	}
	return float64(sum) / float64(sa.count)
}

func (sa *sideAccumulator) rate(n int) float64 {
	if sa.count == 0 {
		return 0
	}
	return float64(n) / float64(sa.count) * 100
}

// Compare profiles churned against retained customers across the eight
// comparison metrics, in fixed table order. Percentage metrics are on the
// 0..100 scale; an empty side reports zero means rather than NaN.
func (s *Summarizer) Compare(ctx context.Context, ds *Dataset) ([]domain.ComparisonRow, error) {
	records := ds.Records()
	if len(records) == 0 {
		return nil, errors.NewAppValidationError("cannot compare an empty dataset")
	}

	var churned, retained sideAccumulator
	for _, r := range records {
		side := &retained
		if r.Churned {
			side = &churned
		}
		side.count++
		side.balanceCents += toCents(r.Balance)
		side.creditSum += int64(r.CreditScore)
		side.tenureSum += int64(r.Tenure)
		side.satisfaction += int64(r.SatisfactionScore)
		side.points += int64(r.PointsEarned)
		if r.IsActiveMember {
			side.active++
		}
		if r.HasComplaint {
			side.complaints++
		}
	}

	rows := []domain.ComparisonRow{
		{Metric: domain.CompareCount, Churned: float64(churned.count), Retained: float64(retained.count)},
		{Metric: domain.CompareAvgBalance, Churned: churned.mean(churned.balanceCents) / 100, Retained: retained.mean(retained.balanceCents) / 100},
		{Metric: domain.CompareAvgCreditScore, Churned: churned.mean(churned.creditSum), Retained: retained.mean(retained.creditSum)},
		{Metric: domain.CompareAvgTenure, Churned: churned.mean(churned.tenureSum), Retained: retained.mean(retained.tenureSum)},
		{Metric: domain.CompareAvgSatisfaction, Churned: churned.mean(churned.satisfaction), Retained: retained.mean(retained.satisfaction)},
		{Metric: domain.CompareAvgPoints, Churned: churned.mean(churned.points), Retained: retained.mean(retained.points)},
		{Metric: domain.CompareActiveMemberPct, Churned: churned.rate(churned.active), Retained: retained.rate(retained.active)},
		{Metric: domain.CompareHasComplaintPct, Churned: churned.rate(churned.complaints), Retained: retained.rate(retained.complaints)},
	}

	s.logger.DebugContext(ctx, "computed churned-vs-retained comparison",
		slog.Int("churned", churned.count),
		slog.Int("retained", retained.count))

	return rows, nil
}

// RiskDistribution partitions the table by on-demand risk level. All four
// levels are always reported in Low to Critical order, including empty ones,
// so exposure views keep a stable shape. ChurnRate is a fraction; balances
// accumulate in integer cents.
func (s *Summarizer) RiskDistribution(ctx context.Context, ds *Dataset) ([]domain.RiskBucket, error) {
	records := ds.Records()
	if len(records) == 0 {
		return nil, errors.NewAppValidationError("cannot compute risk distribution for an empty dataset")
	}

	type bucketAcc struct {
		customers    int
		churned      int
		totalCents   int64
		churnedCents int64
	}
	buckets := make(map[string]*bucketAcc, 4)
	for _, level := range domain.RiskLevelOrder() {
		buckets[level] = &bucketAcc{}
	}

	for _, r := range records {
		level := RiskLevelFor(RiskScore(r))
		acc := buckets[level]
		acc.customers++
		cents := toCents(r.Balance)
		acc.totalCents += cents
		if r.Churned {
			acc.churned++
			acc.churnedCents += cents
		}
	}

	out := make([]domain.RiskBucket, 0, 4)
	for _, level := range domain.RiskLevelOrder() {
		acc := buckets[level]
		bucket := domain.RiskBucket{
			Level:          level,
			Customers:      acc.customers,
			ChurnedCount:   acc.churned,
			TotalBalance:   fromCents(acc.totalCents),
			ChurnedBalance: fromCents(acc.churnedCents),
		}
		if acc.customers > 0 {
			bucket.ChurnRate = float64(acc.churned) / float64(acc.customers)
		}
		out = append(out, bucket)
	}

	s.logger.DebugContext(ctx, "computed risk distribution",
		slog.Int("rows", len(records)))

	return out, nil
}
