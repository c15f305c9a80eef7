package churn

import (
	"context"
	"log/slog"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"churnpulse/pkg/contracts/domain"
)

// lowRiskRecord is the zero-score baseline: active, no complaint, two
// products, France, age 30.
func lowRiskRecord() domain.CustomerRecord {
	return domain.CustomerRecord{
		CreditScore:    650,
		Geography:      "France",
		Age:            30,
		Tenure:         4,
		NumOfProducts:  2,
		IsActiveMember: true,
	}
}

func TestRiskScore(t *testing.T) {
	tests := []struct {
		name   string
		mutate func(*domain.CustomerRecord)
		want   int
	}{
		{
			name:   "baseline scores zero",
			mutate: func(r *domain.CustomerRecord) {},
			want:   0,
		},
		{
			name:   "complaint adds 40",
			mutate: func(r *domain.CustomerRecord) { r.HasComplaint = true },
			want:   40,
		},
		{
			name:   "inactive member adds 20",
			mutate: func(r *domain.CustomerRecord) { r.IsActiveMember = false },
			want:   20,
		},
		{
			name:   "germany adds 15",
			mutate: func(r *domain.CustomerRecord) { r.Geography = "Germany" },
			want:   15,
		},
		{
			name:   "one product adds 15",
			mutate: func(r *domain.CustomerRecord) { r.NumOfProducts = 1 },
			want:   15,
		},
		{
			name:   "two products are exempt",
			mutate: func(r *domain.CustomerRecord) { r.NumOfProducts = 2 },
			want:   0,
		},
		{
			name:   "three products add 15",
			mutate: func(r *domain.CustomerRecord) { r.NumOfProducts = 3 },
			want:   15,
		},
		{
			name:   "four products add 15",
			mutate: func(r *domain.CustomerRecord) { r.NumOfProducts = 4 },
			want:   15,
		},
		{
			name:   "age over 50 adds 10",
			mutate: func(r *domain.CustomerRecord) { r.Age = 51 },
			want:   10,
		},
		{
			name:   "age exactly 50 adds nothing",
			mutate: func(r *domain.CustomerRecord) { r.Age = 50 },
			want:   0,
		},
		{
			name: "all factors stack to 100",
			mutate: func(r *domain.CustomerRecord) {
				r.HasComplaint = true
				r.IsActiveMember = false
				r.Geography = "Germany"
				r.NumOfProducts = 1
				r.Age = 60
			},
			want: 100,
		},
		{
			name: "complaint and inactivity",
			mutate: func(r *domain.CustomerRecord) {
				r.HasComplaint = true
				r.IsActiveMember = false
			},
			want: 60,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			r := lowRiskRecord()
			tt.mutate(&r)
			assert.Equal(t, tt.want, RiskScore(r))
		})
	}
}

func TestRiskScoreGeographyExactMatch(t *testing.T) {
	r := lowRiskRecord()
	r.Geography = "germany"
	assert.Equal(t, 0, RiskScore(r), "geography match is exact, not case-folded")
}

func TestRiskLevelFor(t *testing.T) {
	tests := []struct {
		score int
		want  string
	}{
		{0, domain.RiskLevelLow},
		{20, domain.RiskLevelLow},
		{21, domain.RiskLevelMedium},
		{40, domain.RiskLevelMedium},
		{41, domain.RiskLevelHigh},
		{60, domain.RiskLevelHigh},
		{61, domain.RiskLevelCritical},
		{100, domain.RiskLevelCritical},
	}

	for _, tt := range tests {
		assert.Equal(t, tt.want, RiskLevelFor(tt.score), "score %d", tt.score)
	}
}

func TestRiskScores(t *testing.T) {
	critical := lowRiskRecord()
	critical.HasComplaint = true
	critical.IsActiveMember = false
	critical.Geography = "Germany"
	critical.NumOfProducts = 1
	critical.Age = 60

	records := []domain.CustomerRecord{lowRiskRecord(), critical}

	scores := RiskScores(records)
	assert.Equal(t, []int{0, 100}, scores)

	// Each call returns a fresh slice
	again := RiskScores(records)
	again[0] = 999
	assert.Equal(t, 0, RiskScores(records)[0])
}

// TestCriticalRiskCustomerProfile runs one fully populated record through
// labeling and scoring end to end: a 55 year old inactive complainant in
// Germany holding three products and a zero balance.
func TestCriticalRiskCustomerProfile(t *testing.T) {
	record := domain.CustomerRecord{
		CreditScore:       650,
		Geography:         "Germany",
		Gender:            "Female",
		Age:               55,
		Tenure:            3,
		Balance:           0,
		NumOfProducts:     3,
		HasCreditCard:     true,
		IsActiveMember:    false,
		SatisfactionScore: 2,
		CardType:          "GOLD",
		PointsEarned:      500,
		HasComplaint:      true,
		Churned:           true,
	}

	labels, err := NewLabeler(slog.Default()).Label(context.Background(), []domain.CustomerRecord{record})
	require.NoError(t, err)
	require.Len(t, labels, 1)

	assert.Equal(t, domain.AgeGroup51To60, labels[0].AgeGroup)
	assert.Equal(t, domain.BalanceSegmentZero, labels[0].BalanceSegment)
	assert.Equal(t, domain.CreditSegmentFair, labels[0].CreditSegment)
	assert.Equal(t, domain.TenureSegmentGrowing, labels[0].TenureSegment)

	score := RiskScore(record)
	assert.Equal(t, 100, score)
	assert.Equal(t, domain.RiskLevelCritical, RiskLevelFor(score))
}
