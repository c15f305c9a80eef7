package domain

import "time"

// Extra-mean column identifiers a caller may request from the aggregator.
// Each names a numeric canonical column whose per-group arithmetic mean is
// added to the summary output.
const (
	MeanBalance           = ColBalance
	MeanCreditScore       = ColCreditScore
	MeanTenure            = ColTenure
	MeanAge               = ColAge
	MeanSatisfactionScore = ColSatisfactionScore
	MeanPointsEarned      = ColPointsEarned
	MeanEstimatedSalary   = ColEstimatedSalary
)

// SegmentSummary is one row of a grouped churn summary: the aggregate over
// all customers sharing one value of the grouping dimension. Groups with
// zero rows are omitted from summaries, never zero-filled, so Total >= 1.
type SegmentSummary struct {
	// GroupKey is the group's label (a segment name, country, product
	// count rendered as a string, ...).
	GroupKey string `json:"group_key"`

	// Total is the number of customers in the group.
	Total int `json:"total"`

	// ChurnedCount is the number of churned customers in the group.
	ChurnedCount int `json:"churned"`

	// ChurnRate is ChurnedCount/Total as a fraction in [0,1]. File
	// exports render it as a percentage; the in-memory value stays a
	// fraction.
	ChurnRate float64 `json:"churn_rate"`

	// ExtraMeans holds the requested per-group means keyed by canonical
	// column name, e.g. ExtraMeans["Balance"].
	ExtraMeans map[string]float64 `json:"extra_means,omitempty"`
}

// KPISnapshot is the single-row whole-table reduction of headline metrics.
// Rates are percentages on the 0..100 scale, matching the downstream display
// contract. The csv tags carry the historical snake_case headers of
// kpi_summary.csv.
type KPISnapshot struct {
	TotalCustomers   int     `json:"total_customers" csv:"total_customers"`
	ChurnRate        float64 `json:"churn_rate" csv:"churn_rate"`
	RetentionRate    float64 `json:"retention_rate" csv:"retention_rate"`
	AvgBalance       float64 `json:"avg_balance" csv:"avg_balance"`
	AvgCreditScore   float64 `json:"avg_credit_score" csv:"avg_credit_score"`
	AvgTenure        float64 `json:"avg_tenure" csv:"avg_tenure"`
	ActiveMemberRate float64 `json:"active_member_rate" csv:"active_member_rate"`
	ComplaintRate    float64 `json:"complaint_rate" csv:"complaint_rate"`

	// BalanceAtRisk is the summed balance of churned customers. It is
	// accumulated exactly (integer cents) before conversion.
	BalanceAtRisk float64 `json:"balance_at_risk" csv:"balance_at_risk"`
}

// KPIColumns returns the ordered kpi_summary.csv header.
func KPIColumns() []string {
	return []string{
		"total_customers",
		"churn_rate",
		"retention_rate",
		"avg_balance",
		"avg_credit_score",
		"avg_tenure",
		"active_member_rate",
		"complaint_rate",
		"balance_at_risk",
	}
}

// ComparisonRow is one metric of the churned-vs-retained profile table.
type ComparisonRow struct {
	Metric   string  `json:"metric" csv:"Metric"`
	Churned  float64 `json:"churned" csv:"Churned"`
	Retained float64 `json:"retained" csv:"Retained"`
}

// Comparison metric names, in table order.
const (
	CompareCount           = "Count"
	CompareAvgBalance      = "Avg Balance"
	CompareAvgCreditScore  = "Avg Credit Score"
	CompareAvgTenure       = "Avg Tenure"
	CompareAvgSatisfaction = "Avg Satisfaction"
	CompareAvgPoints       = "Avg Points"
	CompareActiveMemberPct = "Active Member %"
	CompareHasComplaintPct = "Has Complaint %"
)

// RiskBucket aggregates one risk level: customer count, churn outcome, and
// the balance exposure held at that level. Buckets are reported in
// RiskLevelOrder and partition the table (empty levels appear with zero
// counts so exposure charts keep all four levels).
type RiskBucket struct {
	Level          string  `json:"level"`
	Customers      int     `json:"customers"`
	ChurnedCount   int     `json:"churned"`
	ChurnRate      float64 `json:"churn_rate"`
	TotalBalance   float64 `json:"total_balance"`
	ChurnedBalance float64 `json:"churned_balance"`
}

// DatasetMeta describes the provenance of the currently loaded dataset.
type DatasetMeta struct {
	// SourcePath is the file the dataset was loaded from.
	SourcePath string `json:"source_path"`

	// SourceKind is "derived" when a pre-derived table was loaded and
	// "raw" when the loader fell back to a raw roster plus the pipeline.
	SourceKind string `json:"source_kind"`

	// Fingerprint is the BLAKE2b-256 hex digest of the source bytes.
	Fingerprint string `json:"fingerprint"`

	// Rows is the number of retained customer rows.
	Rows int `json:"rows"`

	// ExcludedRows counts rows dropped for an uncoercible churn label.
	ExcludedRows int `json:"excluded_rows"`

	// LoadedAt is when the dataset was loaded into memory.
	LoadedAt time.Time `json:"loaded_at"`
}

// Source kinds for DatasetMeta.
const (
	SourceKindDerived = "derived"
	SourceKindRaw     = "raw"
)
