// Package domain contains the core domain models for ChurnPulse. These
// types are the single source of truth for column names, segment labels
// and summary shapes across the processor, the web server and the exports.
package domain

import (
	"fmt"
	"strings"
)

// Raw roster column names as they appear in bank exports. The three
// identifier columns carry no analytic value and are dropped during
// normalization; the five renamed columns get canonical analytic names.
const (
	RawColRowNumber         = "RowNumber"
	RawColCustomerID        = "CustomerId"
	RawColSurname           = "Surname"
	RawColExited            = "Exited"
	RawColComplain          = "Complain"
	RawColSatisfactionScore = "Satisfaction Score"
	RawColCardType          = "Card Type"
	RawColPointsEarned      = "Point Earned"
)

// Canonical column names after normalization.
const (
	ColCreditScore       = "CreditScore"
	ColGeography         = "Geography"
	ColGender            = "Gender"
	ColAge               = "Age"
	ColTenure            = "Tenure"
	ColBalance           = "Balance"
	ColNumOfProducts     = "NumOfProducts"
	ColHasCreditCard     = "HasCrCard"
	ColIsActiveMember    = "IsActiveMember"
	ColEstimatedSalary   = "EstimatedSalary"
	ColChurned           = "Churned"
	ColHasComplaint      = "HasComplaint"
	ColSatisfactionScore = "SatisfactionScore"
	ColCardType          = "CardType"
	ColPointsEarned      = "PointsEarned"
)

// Derived segment column names appended by the labeler.
const (
	ColAgeGroup       = "AgeGroup"
	ColBalanceSegment = "BalanceSegment"
	ColCreditSegment  = "CreditSegment"
	ColTenureSegment  = "TenureSegment"
)

// Geography value the risk scorer treats as elevated. Exact match.
const GeographyGermany = "Germany"

// CustomerRecord is the Single Source of Truth for one customer row of the
// roster. All pipeline stages, exporters, and API responses operate on this
// structure; derived segment labels and risk scores are computed from it and
// never stored back onto it.
//
// Field order matches the canonical column order of the derived table. The
// csv tags carry the canonical column headers (HasCrCard keeps its raw name,
// matching the source exports). The validate tags encode the numeric domains
// the binning rules require; a value outside its domain aborts the run.
type CustomerRecord struct {
	// CreditScore is the bureau score. The credit segmentation domain
	// is (0,900].
	CreditScore int `json:"credit_score" csv:"CreditScore" validate:"gt=0,lte=900"`

	// Geography is the customer's country. Open string; France, Spain and
	// Germany in practice.
	Geography string `json:"geography" csv:"Geography" validate:"required"`

	// Gender as recorded in the roster.
	Gender string `json:"gender" csv:"Gender"`

	// Age in years. The age segmentation domain is (0,100].
	Age int `json:"age" csv:"Age" validate:"gt=0,lte=100"`

	// Tenure is full years as a customer, 0..10 in this roster.
	Tenure int `json:"tenure" csv:"Tenure" validate:"gte=0,lte=10"`

	// Balance is the account balance. Zero is meaningful (the "Zero"
	// balance segment) and never treated as missing.
	Balance float64 `json:"balance" csv:"Balance" validate:"gte=0"`

	// NumOfProducts is the count of bank products held, 1..4. Zero means
	// the roster lacked the column.
	NumOfProducts int `json:"num_of_products" csv:"NumOfProducts" validate:"omitempty,gte=1,lte=4"`

	// HasCreditCard reports whether the customer holds a credit card.
	HasCreditCard bool `json:"has_credit_card" csv:"HasCrCard"`

	// IsActiveMember reports recent account activity.
	IsActiveMember bool `json:"is_active_member" csv:"IsActiveMember"`

	// EstimatedSalary is the bank's salary estimate.
	EstimatedSalary float64 `json:"estimated_salary" csv:"EstimatedSalary"`

	// Churned is the outcome label. Rows whose raw value cannot be
	// coerced to a bool are excluded at parse time, never defaulted.
	Churned bool `json:"churned" csv:"Churned"`

	// HasComplaint reports whether the customer filed a complaint.
	HasComplaint bool `json:"has_complaint" csv:"HasComplaint"`

	// SatisfactionScore is the survey score, 1..5. Zero means the roster
	// lacked the column.
	SatisfactionScore int `json:"satisfaction_score" csv:"SatisfactionScore" validate:"omitempty,gte=1,lte=5"`

	// CardType is the loyalty card tier (DIAMOND, GOLD, SILVER, PLATINUM).
	CardType string `json:"card_type" csv:"CardType"`

	// PointsEarned is the accumulated loyalty points.
	PointsEarned int `json:"points_earned" csv:"PointsEarned"`
}

// CanonicalColumns returns the ordered canonical header of the customer
// table, before derived segment columns are appended.
func CanonicalColumns() []string {
	return []string{
		ColCreditScore,
		ColGeography,
		ColGender,
		ColAge,
		ColTenure,
		ColBalance,
		ColNumOfProducts,
		ColHasCreditCard,
		ColIsActiveMember,
		ColEstimatedSalary,
		ColChurned,
		ColHasComplaint,
		ColSatisfactionScore,
		ColCardType,
		ColPointsEarned,
	}
}

// DerivedColumns returns the full ordered header of the derived table:
// canonical columns followed by the four segment label columns. Risk fields
// are intentionally absent; they are computed on demand and never persisted.
func DerivedColumns() []string {
	return append(CanonicalColumns(),
		ColAgeGroup,
		ColBalanceSegment,
		ColCreditSegment,
		ColTenureSegment,
	)
}

// RequiredColumns returns the columns later pipeline stages cannot work
// without. A table missing any of these after normalization is rejected.
func RequiredColumns() []string {
	return []string{
		ColAge,
		ColBalance,
		ColCreditScore,
		ColTenure,
		ColChurned,
		ColGeography,
	}
}

// RenamedColumns maps raw headers to their canonical analytic names.
func RenamedColumns() map[string]string {
	return map[string]string{
		RawColExited:            ColChurned,
		RawColComplain:          ColHasComplaint,
		RawColSatisfactionScore: ColSatisfactionScore,
		RawColCardType:          ColCardType,
		RawColPointsEarned:      ColPointsEarned,
	}
}

// DroppedColumns lists the identifier columns removed during normalization.
// Dropping is best-effort: a roster that never had them is fine.
func DroppedColumns() []string {
	return []string{RawColRowNumber, RawColCustomerID, RawColSurname}
}

// ParseBoolColumn coerces the roster's flag encodings (0/1, true/false,
// case-insensitive) to a bool. The second return reports coercibility.
func ParseBoolColumn(raw string) (bool, bool) {
	switch strings.TrimSpace(strings.ToLower(raw)) {
	case "1", "true", "t", "yes":
		return true, true
	case "0", "false", "f", "no":
		return false, true
	default:
		return false, false
	}
}

// FormatBoolColumn renders a flag the way the roster encodes it.
func FormatBoolColumn(v bool) string {
	if v {
		return "1"
	}
	return "0"
}

// String implements fmt.Stringer for log output. It deliberately omits
// salary and balance values.
func (r CustomerRecord) String() string {
	return fmt.Sprintf("CustomerRecord{geo=%s age=%d tenure=%d products=%d churned=%t}",
		r.Geography, r.Age, r.Tenure, r.NumOfProducts, r.Churned)
}
