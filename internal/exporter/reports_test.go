package exporter

import (
	"context"
	"os"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"churnpulse/internal/churn"
	"churnpulse/internal/config"
	"churnpulse/internal/files"
	"churnpulse/pkg/contracts/domain"
)

func testExporter(t *testing.T) (*ReportExporter, *config.Paths) {
	t.Helper()
	paths := config.GetPathsFrom(t.TempDir())
	return NewReportExporter(paths, nil), paths
}

func exportRecords() []domain.CustomerRecord {
	return []domain.CustomerRecord{
		{
			CreditScore:       619,
			Geography:         "France",
			Gender:            "Female",
			Age:               42,
			Tenure:            2,
			Balance:           0,
			NumOfProducts:     1,
			HasCreditCard:     true,
			IsActiveMember:    true,
			EstimatedSalary:   101348.88,
			Churned:           true,
			HasComplaint:      true,
			SatisfactionScore: 2,
			CardType:          "DIAMOND",
			PointsEarned:      464,
		},
		{
			CreditScore:       608,
			Geography:         "Spain",
			Gender:            "Female",
			Age:               41,
			Tenure:            1,
			Balance:           83807.86,
			NumOfProducts:     2,
			HasCreditCard:     false,
			IsActiveMember:    true,
			EstimatedSalary:   112542.58,
			Churned:           false,
			HasComplaint:      false,
			SatisfactionScore: 3,
			CardType:          "DIAMOND",
			PointsEarned:      456,
		},
	}
}

func exportLabels() []domain.SegmentLabels {
	return []domain.SegmentLabels{
		{
			AgeGroup:       domain.AgeGroup41To50,
			BalanceSegment: domain.BalanceSegmentZero,
			CreditSegment:  domain.CreditSegmentFair,
			TenureSegment:  domain.TenureSegmentNew,
		},
		{
			AgeGroup:       domain.AgeGroup41To50,
			BalanceSegment: domain.BalanceSegmentHigh,
			CreditSegment:  domain.CreditSegmentFair,
			TenureSegment:  domain.TenureSegmentNew,
		},
	}
}

func exportDataset(t *testing.T) *churn.Dataset {
	t.Helper()
	ds, err := churn.NewDataset(exportRecords(), exportLabels(), domain.DatasetMeta{
		SourceKind: domain.SourceKindRaw,
		Rows:       2,
	})
	require.NoError(t, err)
	return ds
}

func TestExportDerivedTable(t *testing.T) {
	exp, paths := testExporter(t)

	name, err := exp.ExportDerivedTable(context.Background(), exportDataset(t))
	require.NoError(t, err)
	assert.Equal(t, config.DerivedTableName, name)

	content, err := os.ReadFile(paths.DerivedTableCSV)
	require.NoError(t, err)

	want := "\ufeff" +
		"CreditScore,Geography,Gender,Age,Tenure,Balance,NumOfProducts,HasCrCard,IsActiveMember,EstimatedSalary,Churned,HasComplaint,SatisfactionScore,CardType,PointsEarned,AgeGroup,BalanceSegment,CreditSegment,TenureSegment\n" +
		"619,France,Female,42,2,0.00,1,1,1,101348.88,1,1,2,DIAMOND,464,41-50,Zero,Fair,New (0-2)\n" +
		"608,Spain,Female,41,1,83807.86,2,0,1,112542.58,0,0,3,DIAMOND,456,41-50,High,Fair,New (0-2)\n"
	assert.Equal(t, want, string(content))
}

func TestExportDerivedTableRoundTrip(t *testing.T) {
	exp, paths := testExporter(t)

	_, err := exp.ExportDerivedTable(context.Background(), exportDataset(t))
	require.NoError(t, err)

	// The exported table must load back as a derived candidate with the
	// same records and the same stored labels.
	loaded, err := files.NewLoader(nil).Load(context.Background(), []string{paths.DerivedTableCSV}, nil)
	require.NoError(t, err)

	assert.Equal(t, exportRecords(), loaded.Records())
	assert.Equal(t, exportLabels(), loaded.Labels())
	assert.Equal(t, domain.SourceKindDerived, loaded.Meta().SourceKind)
}

func TestExportDerivedTableByteStable(t *testing.T) {
	exp, paths := testExporter(t)
	ds := exportDataset(t)

	_, err := exp.ExportDerivedTable(context.Background(), ds)
	require.NoError(t, err)
	first, err := os.ReadFile(paths.DerivedTableCSV)
	require.NoError(t, err)

	_, err = exp.ExportDerivedTable(context.Background(), ds)
	require.NoError(t, err)
	second, err := os.ReadFile(paths.DerivedTableCSV)
	require.NoError(t, err)

	assert.Equal(t, first, second)
}

func TestExportKPISummary(t *testing.T) {
	exp, paths := testExporter(t)

	snap := domain.KPISnapshot{
		TotalCustomers:   4,
		ChurnRate:        50,
		RetentionRate:    50,
		AvgBalance:       100,
		AvgCreditScore:   650,
		AvgTenure:        5.5,
		ActiveMemberRate: 50,
		ComplaintRate:    25,
		BalanceAtRisk:    199.75,
	}

	name, err := exp.ExportKPISummary(context.Background(), snap)
	require.NoError(t, err)
	assert.Equal(t, config.KPISummaryName, name)

	content, err := os.ReadFile(paths.KPISummaryCSV)
	require.NoError(t, err)

	want := "\ufeff" +
		"total_customers,churn_rate,retention_rate,avg_balance,avg_credit_score,avg_tenure,active_member_rate,complaint_rate,balance_at_risk\n" +
		"4,50,50,100.00,650,5.5,50,25,199.75\n"
	assert.Equal(t, want, string(content))
}

func TestExportComparison(t *testing.T) {
	exp, paths := testExporter(t)

	rows := []domain.ComparisonRow{
		{Metric: domain.CompareCount, Churned: 2, Retained: 2},
		{Metric: domain.CompareAvgBalance, Churned: 100.25, Retained: 50.125},
		{Metric: domain.CompareActiveMemberPct, Churned: 50, Retained: 100},
	}

	name, err := exp.ExportComparison(context.Background(), rows)
	require.NoError(t, err)
	assert.Equal(t, config.ComparisonName, name)

	content, err := os.ReadFile(paths.ComparisonCSV)
	require.NoError(t, err)

	want := "\ufeff" +
		"Metric,Churned,Retained\n" +
		"Count,2,2\n" +
		"Avg Balance,100.25,50.125\n" +
		"Active Member %,50,100\n"
	assert.Equal(t, want, string(content))
}

func TestExportSummary(t *testing.T) {
	exp, paths := testExporter(t)

	summaries := []domain.SegmentSummary{
		{
			GroupKey:     "France",
			Total:        3,
			ChurnedCount: 1,
			ChurnRate:    1.0 / 3.0,
			ExtraMeans:   map[string]float64{domain.MeanBalance: 200},
		},
		{
			GroupKey:     "Germany",
			Total:        2,
			ChurnedCount: 2,
			ChurnRate:    1,
			ExtraMeans:   map[string]float64{domain.MeanBalance: 100.5},
		},
	}

	name, err := exp.ExportSummary(context.Background(), domain.DimGeography, summaries, []string{domain.MeanBalance})
	require.NoError(t, err)
	assert.Equal(t, "summaries/churn_by_geography.csv", name)

	content, err := os.ReadFile(paths.GetSummaryPath("geography"))
	require.NoError(t, err)

	// ChurnRate is a percentage in the file even though the in-memory
	// summary keeps a fraction.
	want := "\ufeff" +
		"Geography,Total,Churned,ChurnRate,AvgBalance\n" +
		"France,3,1,33.33,200\n" +
		"Germany,2,2,100.00,100.5\n"
	assert.Equal(t, want, string(content))
}

func TestExportSummaryWithoutMeans(t *testing.T) {
	exp, paths := testExporter(t)

	summaries := []domain.SegmentSummary{
		{GroupKey: "3", Total: 1, ChurnedCount: 0, ChurnRate: 0},
	}

	_, err := exp.ExportSummary(context.Background(), domain.DimSatisfaction, summaries, nil)
	require.NoError(t, err)

	content, err := os.ReadFile(paths.GetSummaryPath("satisfaction"))
	require.NoError(t, err)
	assert.Equal(t, "\ufeffSatisfactionScore,Total,Churned,ChurnRate\n3,1,0,0.00\n", string(content))
}

func TestExportSummaries(t *testing.T) {
	exp, paths := testExporter(t)

	names, err := exp.ExportSummaries(context.Background(), exportDataset(t), churn.NewAggregator(nil))
	require.NoError(t, err)

	dims := domain.AllDimensions()
	require.Len(t, names, len(dims))
	for i, dim := range dims {
		assert.Equal(t, "summaries/churn_by_"+string(dim)+".csv", names[i])

		_, statErr := os.Stat(paths.GetSummaryPath(string(dim)))
		assert.NoError(t, statErr, "missing summary for %s", dim)
	}

	content, err := os.ReadFile(paths.GetSummaryPath("geography"))
	require.NoError(t, err)

	lines := strings.Split(strings.TrimPrefix(string(content), "\ufeff"), "\n")
	assert.Equal(t, "Geography,Total,Churned,ChurnRate,AvgBalance", lines[0])
	assert.Equal(t, "France,1,1,100.00,0", lines[1])
	assert.Equal(t, "Spain,1,0,0.00,83807.86", lines[2])
}
