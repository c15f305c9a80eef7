package churn

import (
	"context"
	"log/slog"
	"sort"

	"github.com/montanaflynn/stats"

	"churnpulse/internal/config"
	"churnpulse/internal/errors"
	"churnpulse/pkg/contracts/domain"
)

// AgeGroupFor bins an age into its display group. Bins are right-closed:
// (0,30] (30,40] (40,50] (50,60] (60,100].
func AgeGroupFor(age int) (string, error) {
	switch {
	case age <= 0 || age > 100:
		return "", errors.NewAppValidationError("age outside (0,100]")
	case age <= 30:
		return domain.AgeGroup18To30, nil
	case age <= 40:
		return domain.AgeGroup31To40, nil
	case age <= 50:
		return domain.AgeGroup41To50, nil
	case age <= 60:
		return domain.AgeGroup51To60, nil
	default:
		return domain.AgeGroup60Plus, nil
	}
}

// CreditSegmentFor bins a credit score. Bins are right-closed:
// (0,580] (580,670] (670,740] (740,800] (800,900].
func CreditSegmentFor(score int) (string, error) {
	switch {
	case score <= 0 || score > 900:
		return "", errors.NewAppValidationError("credit score outside (0,900]")
	case score <= 580:
		return domain.CreditSegmentPoor, nil
	case score <= 670:
		return domain.CreditSegmentFair, nil
	case score <= 740:
		return domain.CreditSegmentGood, nil
	case score <= 800:
		return domain.CreditSegmentVeryGood, nil
	default:
		return domain.CreditSegmentExcellent, nil
	}
}

// TenureSegmentFor bins tenure years. Bins are right-closed:
// (-1,2] (2,5] (5,8] (8,10].
func TenureSegmentFor(tenure int) (string, error) {
	switch {
	case tenure < 0 || tenure > 10:
		return "", errors.NewAppValidationError("tenure outside [0,10]")
	case tenure <= 2:
		return domain.TenureSegmentNew, nil
	case tenure <= 5:
		return domain.TenureSegmentGrowing, nil
	case tenure <= 8:
		return domain.TenureSegmentMature, nil
	default:
		return domain.TenureSegmentLoyal, nil
	}
}

// BalanceEdges holds the dataset-dependent quantile edges for the balance
// segmentation. Edges are ascending and distinct; Labels has one more entry
// than Edges, the last being the above-all-edges bucket. A value at an edge
// falls into the lower bucket.
type BalanceEdges struct {
	Edges  []float64
	Labels []string
}

// Segment labels one balance. Zero is always the Zero segment regardless of
// the edges.
func (e BalanceEdges) Segment(balance float64) string {
	if balance == 0 {
		return domain.BalanceSegmentZero
	}
	for i, edge := range e.Edges {
		if balance <= edge {
			return e.Labels[i]
		}
	}
	if len(e.Labels) == 0 {
		return domain.BalanceSegmentLow
	}
	return e.Labels[len(e.Labels)-1]
}

// Labeler derives the categorical segment labels for customer records. The
// three fixed-bin rules are stateless; the balance rule first computes
// quartile edges over the dataset's nonzero balances, collapsing duplicate
// edges with a logged warning instead of failing the run.
type Labeler struct {
	logger *slog.Logger
}

// NewLabeler creates a labeler.
func NewLabeler(logger *slog.Logger) *Labeler {
	if logger == nil {
		logger = slog.Default()
	}
	return &Labeler{logger: logger}
}

// BalanceEdgesFor computes the quartile edges of the nonzero balances.
// Duplicate quantile values collapse to fewer buckets; an all-zero balance
// column yields no edges and a single catch-all bucket. Both degenerate
// shapes log a warning and keep the run going.
func (l *Labeler) BalanceEdgesFor(ctx context.Context, records []domain.CustomerRecord) (BalanceEdges, error) {
	nonzero := make([]float64, 0, len(records))
	for _, r := range records {
		if r.Balance > 0 {
			nonzero = append(nonzero, r.Balance)
		}
	}

	fullLabels := []string{
		domain.BalanceSegmentLow,
		domain.BalanceSegmentMedium,
		domain.BalanceSegmentHigh,
		domain.BalanceSegmentPremium,
	}

	if len(nonzero) == 0 {
		warn := errors.NewDegenerateError(domain.ColBalance, config.BalanceQuantileBuckets, 0)
		l.logger.WarnContext(ctx, warn.Message,
			slog.String("column", domain.ColBalance),
			slog.Int("nonzero_rows", 0))
		return BalanceEdges{Labels: fullLabels[:1]}, nil
	}

	if len(nonzero) < config.BalanceQuantileBuckets {
		// Too few nonzero balances to cut quartiles; the distinct values
		// themselves become the edges.
		sort.Float64s(nonzero)
		distinct := nonzero[:1]
		for _, v := range nonzero[1:] {
			if v != distinct[len(distinct)-1] {
				distinct = append(distinct, v)
			}
		}
		edges := distinct[:len(distinct)-1]

		warn := errors.NewDegenerateError(domain.ColBalance, config.BalanceQuantileBuckets, len(edges))
		l.logger.WarnContext(ctx, warn.Message,
			slog.String("column", domain.ColBalance),
			slog.Int("nonzero_rows", len(nonzero)))

		return BalanceEdges{
			Edges:  edges,
			Labels: fullLabels[:len(edges)+1],
		}, nil
	}

	data := stats.Float64Data(nonzero)
	edges := make([]float64, 0, 3)
	for _, pct := range []float64{25, 50, 75} {
		edge, err := stats.Percentile(data, pct)
		if err != nil {
			return BalanceEdges{}, errors.NewAppError(errors.ErrTypeValidation,
				"failed to compute balance quantiles", err)
		}
		edges = append(edges, edge)
	}

	distinct := edges[:1]
	for _, e := range edges[1:] {
		if e != distinct[len(distinct)-1] {
			distinct = append(distinct, e)
		}
	}

	if len(distinct) < len(edges) {
		warn := errors.NewDegenerateError(domain.ColBalance, config.BalanceQuantileBuckets, len(distinct))
		l.logger.WarnContext(ctx, warn.Message,
			slog.String("column", domain.ColBalance),
			slog.Any("surviving_edges", distinct))
	}

	return BalanceEdges{
		Edges:  distinct,
		Labels: fullLabels[:len(distinct)+1],
	}, nil
}

// Label derives the segment labels for every record, in input order. The
// returned slice is parallel to records. Recomputing labels from identical
// input yields identical output.
func (l *Labeler) Label(ctx context.Context, records []domain.CustomerRecord) ([]domain.SegmentLabels, error) {
	edges, err := l.BalanceEdgesFor(ctx, records)
	if err != nil {
		return nil, err
	}

	labels := make([]domain.SegmentLabels, len(records))
	for i, r := range records {
		rowNum := i + 1

		ageGroup, err := AgeGroupFor(r.Age)
		if err != nil {
			return nil, errors.NewRowValidationError(domain.ColAge, r.Age, rowNum)
		}
		creditSegment, err := CreditSegmentFor(r.CreditScore)
		if err != nil {
			return nil, errors.NewRowValidationError(domain.ColCreditScore, r.CreditScore, rowNum)
		}
		tenureSegment, err := TenureSegmentFor(r.Tenure)
		if err != nil {
			return nil, errors.NewRowValidationError(domain.ColTenure, r.Tenure, rowNum)
		}

		labels[i] = domain.SegmentLabels{
			AgeGroup:       ageGroup,
			BalanceSegment: edges.Segment(r.Balance),
			CreditSegment:  creditSegment,
			TenureSegment:  tenureSegment,
		}
	}

	l.logger.DebugContext(ctx, "labeled dataset",
		slog.Int("rows", len(labels)),
		slog.Int("balance_buckets", len(edges.Labels)))

	return labels, nil
}
