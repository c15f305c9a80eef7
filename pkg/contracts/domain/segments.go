package domain

// Segment label values. The order slices below are the canonical bin order
// used for deterministic output ordering; aggregation and export must never
// fall back to alphabetical order for these.

// AgeGroup labels, bins (0,30] (30,40] (40,50] (50,60] (60,100].
const (
	AgeGroup18To30 = "18-30"
	AgeGroup31To40 = "31-40"
	AgeGroup41To50 = "41-50"
	AgeGroup51To60 = "51-60"
	AgeGroup60Plus = "60+"
)

// BalanceSegment labels. Zero is assigned unconditionally to zero balances;
// the other four are quartiles of the nonzero subset. Zero sorts last,
// matching the historical output order.
const (
	BalanceSegmentLow     = "Low"
	BalanceSegmentMedium  = "Medium"
	BalanceSegmentHigh    = "High"
	BalanceSegmentPremium = "Premium"
	BalanceSegmentZero    = "Zero"
)

// CreditSegment labels, bins (0,580] (580,670] (670,740] (740,800] (800,900].
const (
	CreditSegmentPoor      = "Poor"
	CreditSegmentFair      = "Fair"
	CreditSegmentGood      = "Good"
	CreditSegmentVeryGood  = "Very Good"
	CreditSegmentExcellent = "Excellent"
)

// TenureSegment labels, bins (-1,2] (2,5] (5,8] (8,10].
const (
	TenureSegmentNew     = "New (0-2)"
	TenureSegmentGrowing = "Growing (3-5)"
	TenureSegmentMature  = "Mature (6-8)"
	TenureSegmentLoyal   = "Loyal (9-10)"
)

// RiskLevel labels, score bins (-1,20] (20,40] (40,60] (60,100].
const (
	RiskLevelLow      = "Low"
	RiskLevelMedium   = "Medium"
	RiskLevelHigh     = "High"
	RiskLevelCritical = "Critical"
)

// AgeGroupOrder is the canonical ordering of age group labels.
func AgeGroupOrder() []string {
	return []string{AgeGroup18To30, AgeGroup31To40, AgeGroup41To50, AgeGroup51To60, AgeGroup60Plus}
}

// BalanceSegmentOrder is the canonical ordering of balance segment labels.
func BalanceSegmentOrder() []string {
	return []string{BalanceSegmentLow, BalanceSegmentMedium, BalanceSegmentHigh, BalanceSegmentPremium, BalanceSegmentZero}
}

// CreditSegmentOrder is the canonical ordering of credit segment labels.
func CreditSegmentOrder() []string {
	return []string{CreditSegmentPoor, CreditSegmentFair, CreditSegmentGood, CreditSegmentVeryGood, CreditSegmentExcellent}
}

// TenureSegmentOrder is the canonical ordering of tenure segment labels.
func TenureSegmentOrder() []string {
	return []string{TenureSegmentNew, TenureSegmentGrowing, TenureSegmentMature, TenureSegmentLoyal}
}

// RiskLevelOrder is the canonical ordering of risk levels, lowest first.
func RiskLevelOrder() []string {
	return []string{RiskLevelLow, RiskLevelMedium, RiskLevelHigh, RiskLevelCritical}
}

// SegmentLabels holds the derived categorical labels for one customer row.
// Labels are pure functions of the canonical fields (plus, for the balance
// segment, the dataset-wide quartile edges); recomputing them from identical
// input always yields identical labels.
type SegmentLabels struct {
	AgeGroup       string `json:"age_group" csv:"AgeGroup"`
	BalanceSegment string `json:"balance_segment" csv:"BalanceSegment"`
	CreditSegment  string `json:"credit_segment" csv:"CreditSegment"`
	TenureSegment  string `json:"tenure_segment" csv:"TenureSegment"`
}

// Boolean dimension display labels, as the historical summary tables named
// them. False sorts before true.
const (
	ActiveMemberLabelInactive = "Inactive"
	ActiveMemberLabelActive   = "Active"
	ComplaintLabelNone        = "No Complaint"
	ComplaintLabelHas         = "Has Complaint"
)

// Dimension identifies a grouping column for summary tables. The string
// value is the API path slug and the summary file name suffix
// (churn_by_<dimension>.csv).
type Dimension string

const (
	DimGeography      Dimension = "geography"
	DimGender         Dimension = "gender"
	DimAgeGroup       Dimension = "age"
	DimProducts       Dimension = "products"
	DimActiveMember   Dimension = "active_member"
	DimComplaint      Dimension = "complaint"
	DimCardType       Dimension = "card_type"
	DimSatisfaction   Dimension = "satisfaction"
	DimBalanceSegment Dimension = "balance_segment"
	DimCreditSegment  Dimension = "credit_segment"
	DimTenureSegment  Dimension = "tenure_segment"
)

// AllDimensions returns every grouping dimension in export order.
func AllDimensions() []Dimension {
	return []Dimension{
		DimGeography,
		DimGender,
		DimAgeGroup,
		DimProducts,
		DimActiveMember,
		DimComplaint,
		DimCardType,
		DimSatisfaction,
		DimBalanceSegment,
		DimCreditSegment,
		DimTenureSegment,
	}
}

// ParseDimension resolves a path slug or file suffix to a Dimension.
func ParseDimension(s string) (Dimension, bool) {
	d := Dimension(s)
	for _, known := range AllDimensions() {
		if d == known {
			return d, true
		}
	}
	return "", false
}

// KeyColumn returns the header used for the dimension's group key column in
// summary tables.
func (d Dimension) KeyColumn() string {
	switch d {
	case DimGeography:
		return ColGeography
	case DimGender:
		return ColGender
	case DimAgeGroup:
		return ColAgeGroup
	case DimProducts:
		return ColNumOfProducts
	case DimActiveMember:
		return ColIsActiveMember
	case DimComplaint:
		return ColHasComplaint
	case DimCardType:
		return ColCardType
	case DimSatisfaction:
		return ColSatisfactionScore
	case DimBalanceSegment:
		return ColBalanceSegment
	case DimCreditSegment:
		return ColCreditSegment
	case DimTenureSegment:
		return ColTenureSegment
	default:
		return string(d)
	}
}

// Ordinal reports the canonical rank of a group key within the dimension,
// for dimensions with a fixed label order. The second return is false for
// free-form dimensions (Geography, Gender, CardType), which sort
// lexicographically instead.
func (d Dimension) Ordinal(key string) (int, bool) {
	var order []string
	switch d {
	case DimAgeGroup:
		order = AgeGroupOrder()
	case DimBalanceSegment:
		order = BalanceSegmentOrder()
	case DimCreditSegment:
		order = CreditSegmentOrder()
	case DimTenureSegment:
		order = TenureSegmentOrder()
	case DimActiveMember:
		order = []string{ActiveMemberLabelInactive, ActiveMemberLabelActive}
	case DimComplaint:
		order = []string{ComplaintLabelNone, ComplaintLabelHas}
	case DimProducts:
		order = []string{"1", "2", "3", "4"}
	case DimSatisfaction:
		order = []string{"1", "2", "3", "4", "5"}
	default:
		return 0, false
	}
	for i, label := range order {
		if label == key {
			return i, true
		}
	}
	// Unknown labels sort after known ones, keeping output deterministic.
	return len(order), true
}
