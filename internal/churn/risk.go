package churn

import (
	"churnpulse/pkg/contracts/domain"
)

// Risk score weights. The score is additive from zero; weights sum to 100 so
// the worst case lands exactly on the top of the Critical bin.
const (
	riskComplaintWeight = 40
	riskInactiveWeight  = 20
	riskGeographyWeight = 15
	riskProductsWeight  = 15
	riskAgeWeight       = 10

	riskAgeThreshold = 50
)

// RiskScore computes the 0..100 churn-risk score for one customer:
// +40 for a filed complaint, +20 for an inactive member, +15 for Germany,
// +15 for holding 1, 3, or 4 products (two products is the retention sweet
// spot and scores nothing), +10 for age over 50. Pure; the record is never
// mutated and the score is never persisted.
func RiskScore(r domain.CustomerRecord) int {
	score := 0
	if r.HasComplaint {
		score += riskComplaintWeight
	}
	if !r.IsActiveMember {
		score += riskInactiveWeight
	}
	if r.Geography == domain.GeographyGermany {
		score += riskGeographyWeight
	}
	switch r.NumOfProducts {
	case 1, 3, 4:
		score += riskProductsWeight
	}
	if r.Age > riskAgeThreshold {
		score += riskAgeWeight
	}
	return score
}

// RiskLevelFor bins a risk score into its display level. Bins are
// right-closed: (-1,20] (20,40] (40,60] (60,100].
func RiskLevelFor(score int) string {
	switch {
	case score <= 20:
		return domain.RiskLevelLow
	case score <= 40:
		return domain.RiskLevelMedium
	case score <= 60:
		return domain.RiskLevelHigh
	default:
		return domain.RiskLevelCritical
	}
}

// RiskScores computes the score for every record into a fresh slice parallel
// to records. Callers own the result; concurrent callers never share state.
func RiskScores(records []domain.CustomerRecord) []int {
	scores := make([]int, len(records))
	for i, r := range records {
		scores[i] = RiskScore(r)
	}
	return scores
}
