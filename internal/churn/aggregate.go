package churn

import (
	"context"
	"fmt"
	"log/slog"
	"sort"
	"strconv"

	"churnpulse/internal/errors"
	"churnpulse/pkg/contracts/domain"
)

// Aggregator produces grouped churn summaries over a dataset. Output
// ordering is deterministic per dimension: ordinal dimensions follow their
// canonical bin order, numeric dimensions ascend, boolean dimensions list
// false before true, and free string dimensions sort lexicographically.
// Groups with zero rows are omitted, never zero-filled.
type Aggregator struct {
	logger *slog.Logger
}

// NewAggregator creates an aggregator.
func NewAggregator(logger *slog.Logger) *Aggregator {
	if logger == nil {
		logger = slog.Default()
	}
	return &Aggregator{logger: logger}
}

type groupAccumulator struct {
	total   int
	churned int
	sums    map[string]float64
}

// Aggregate groups the dataset by one dimension and reduces each group to a
// SegmentSummary. extraMeans names canonical numeric columns whose per-group
// arithmetic means are added to each summary; an unsupported column is a
// validation error.
func (a *Aggregator) Aggregate(ctx context.Context, ds *Dataset, dim domain.Dimension, extraMeans ...string) ([]domain.SegmentSummary, error) {
	if _, ok := domain.ParseDimension(string(dim)); !ok {
		return nil, errors.NewAppValidationError(
			fmt.Sprintf("unknown grouping dimension %q", string(dim)))
	}
	for _, column := range extraMeans {
		if !meanColumnSupported(column) {
			return nil, errors.NewAppValidationError(
				fmt.Sprintf("unsupported mean column %q", column))
		}
	}

	records := ds.Records()
	labels := ds.Labels()

	groups := make(map[string]*groupAccumulator)
	for i, r := range records {
		key := groupKeyFor(r, labels[i], dim)

		acc, ok := groups[key]
		if !ok {
			acc = &groupAccumulator{sums: make(map[string]float64, len(extraMeans))}
			groups[key] = acc
		}
		acc.total++
		if r.Churned {
			acc.churned++
		}
		for _, column := range extraMeans {
			acc.sums[column] += numericValue(r, column)
		}
	}

	summaries := make([]domain.SegmentSummary, 0, len(groups))
	for key, acc := range groups {
		summary := domain.SegmentSummary{
			GroupKey:     key,
			Total:        acc.total,
			ChurnedCount: acc.churned,
			ChurnRate:    float64(acc.churned) / float64(acc.total),
		}
		if len(extraMeans) > 0 {
			summary.ExtraMeans = make(map[string]float64, len(extraMeans))
			for _, column := range extraMeans {
				summary.ExtraMeans[column] = acc.sums[column] / float64(acc.total)
			}
		}
		summaries = append(summaries, summary)
	}

	sortSummaries(dim, summaries)

	a.logger.DebugContext(ctx, "aggregated dimension",
		slog.String("dimension", string(dim)),
		slog.Int("groups", len(summaries)),
		slog.Int("rows", len(records)))

	return summaries, nil
}

// groupKeyFor renders one row's group label under a dimension.
func groupKeyFor(r domain.CustomerRecord, labels domain.SegmentLabels, dim domain.Dimension) string {
	switch dim {
	case domain.DimGeography:
		return r.Geography
	case domain.DimGender:
		return r.Gender
	case domain.DimAgeGroup:
		return labels.AgeGroup
	case domain.DimProducts:
		return strconv.Itoa(r.NumOfProducts)
	case domain.DimActiveMember:
		if r.IsActiveMember {
			return domain.ActiveMemberLabelActive
		}
		return domain.ActiveMemberLabelInactive
	case domain.DimComplaint:
		if r.HasComplaint {
			return domain.ComplaintLabelHas
		}
		return domain.ComplaintLabelNone
	case domain.DimCardType:
		return r.CardType
	case domain.DimSatisfaction:
		return strconv.Itoa(r.SatisfactionScore)
	case domain.DimBalanceSegment:
		return labels.BalanceSegment
	case domain.DimCreditSegment:
		return labels.CreditSegment
	case domain.DimTenureSegment:
		return labels.TenureSegment
	default:
		return ""
	}
}

// numericValue extracts a canonical numeric column from a record for mean
// accumulation. Columns are vetted by meanColumnSupported before use.
func numericValue(r domain.CustomerRecord, column string) float64 {
	switch column {
	case domain.MeanBalance:
		return r.Balance
	case domain.MeanCreditScore:
		return float64(r.CreditScore)
	case domain.MeanTenure:
		return float64(r.Tenure)
	case domain.MeanAge:
		return float64(r.Age)
	case domain.MeanSatisfactionScore:
		return float64(r.SatisfactionScore)
	case domain.MeanPointsEarned:
		return float64(r.PointsEarned)
	case domain.MeanEstimatedSalary:
		return r.EstimatedSalary
	default:
		return 0
	}
}

// meanColumnSupported reports whether a column is in the closed extra-mean
// set.
func meanColumnSupported(column string) bool {
	switch column {
	case domain.MeanBalance, domain.MeanCreditScore, domain.MeanTenure,
		domain.MeanAge, domain.MeanSatisfactionScore,
		domain.MeanPointsEarned, domain.MeanEstimatedSalary:
		return true
	default:
		return false
	}
}

// sortSummaries orders summaries by the dimension's canonical ordering.
func sortSummaries(dim domain.Dimension, summaries []domain.SegmentSummary) {
	sort.Slice(summaries, func(i, j int) bool {
		ri, iOK := dim.Ordinal(summaries[i].GroupKey)
		rj, jOK := dim.Ordinal(summaries[j].GroupKey)
		if iOK && jOK && ri != rj {
			return ri < rj
		}
		return summaries[i].GroupKey < summaries[j].GroupKey
	})
}

// DefaultMeans returns the extra mean columns a dimension's summary table
// carries when the caller does not choose its own. Segment dimensions get
// the mean of the column they were binned from; geography and gender get
// mean balance as the headline exposure figure.
func DefaultMeans(dim domain.Dimension) []string {
	switch dim {
	case domain.DimBalanceSegment, domain.DimGeography, domain.DimGender:
		return []string{domain.MeanBalance}
	case domain.DimCreditSegment:
		return []string{domain.MeanCreditScore}
	case domain.DimTenureSegment:
		return []string{domain.MeanTenure}
	default:
		return nil
	}
}
