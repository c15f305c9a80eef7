package churn

import (
	"context"
	"log/slog"
	"reflect"
	"strconv"
	"strings"

	"github.com/go-playground/validator/v10"

	"churnpulse/internal/errors"
	"churnpulse/pkg/contracts/domain"
)

// Normalizer canonicalizes raw roster tables: it drops the identifier
// columns, renames the five legacy headers to their analytic names, verifies
// the required columns survived, and parses string cells into typed
// CustomerRecord values. The transform is pure and idempotent; a table whose
// header is already canonical (a re-read derived table) passes through
// unchanged.
type Normalizer struct {
	logger   *slog.Logger
	validate *validator.Validate
}

// NewNormalizer creates a normalizer. Row-domain validation runs through the
// validate tags on CustomerRecord; violations are reported under the
// canonical column name.
func NewNormalizer(logger *slog.Logger) *Normalizer {
	if logger == nil {
		logger = slog.Default()
	}

	v := validator.New()
	v.RegisterTagNameFunc(func(fld reflect.StructField) string {
		name := strings.SplitN(fld.Tag.Get("csv"), ",", 2)[0]
		if name == "" || name == "-" {
			return fld.Name
		}
		return name
	})

	return &Normalizer{logger: logger, validate: v}
}

// CanonicalizeHeader returns the canonical header for a raw one: identifier
// columns removed, legacy names renamed, order otherwise preserved. It fails
// with a schema error naming the first required column that is absent after
// normalization.
func (n *Normalizer) CanonicalizeHeader(header []string) ([]string, error) {
	dropped := make(map[string]bool, 3)
	for _, c := range domain.DroppedColumns() {
		dropped[c] = true
	}
	renamed := domain.RenamedColumns()

	canonical := make([]string, 0, len(header))
	seen := make(map[string]bool, len(header))
	for _, h := range header {
		name := strings.TrimSpace(h)
		if name == "" || dropped[name] {
			continue
		}
		if to, ok := renamed[name]; ok {
			name = to
		}
		if seen[name] {
			continue
		}
		seen[name] = true
		canonical = append(canonical, name)
	}

	for _, required := range domain.RequiredColumns() {
		if !seen[required] {
			return nil, errors.NewSchemaError(required)
		}
	}

	return canonical, nil
}

// columnIndex maps each canonical column name to its cell index in the
// source header.
func (n *Normalizer) columnIndex(header []string) (map[string]int, error) {
	dropped := make(map[string]bool, 3)
	for _, c := range domain.DroppedColumns() {
		dropped[c] = true
	}
	renamed := domain.RenamedColumns()

	idx := make(map[string]int, len(header))
	for i, h := range header {
		name := strings.TrimSpace(h)
		if name == "" || dropped[name] {
			continue
		}
		if to, ok := renamed[name]; ok {
			name = to
		}
		if _, dup := idx[name]; !dup {
			idx[name] = i
		}
	}

	for _, required := range domain.RequiredColumns() {
		if _, ok := idx[required]; !ok {
			return nil, errors.NewSchemaError(required)
		}
	}

	return idx, nil
}

// Normalize parses a raw table into customer records. Rows whose Churned
// cell cannot be coerced to a bool are excluded and counted, never defaulted;
// the excluded count is the second return. Any other malformed or
// out-of-domain value aborts with a validation error naming the column,
// value, and 1-based data row number.
func (n *Normalizer) Normalize(ctx context.Context, header []string, rows [][]string) ([]domain.CustomerRecord, int, error) {
	idx, err := n.columnIndex(header)
	if err != nil {
		return nil, 0, err
	}

	records := make([]domain.CustomerRecord, 0, len(rows))
	excluded := 0

	for i, row := range rows {
		rowNum := i + 1

		record, skip, err := n.parseRow(idx, row, rowNum)
		if err != nil {
			return nil, 0, err
		}
		if skip {
			excluded++
			n.logger.WarnContext(ctx, "excluding row with uncoercible churn label",
				slog.Int("row", rowNum),
				slog.String("value", cell(idx, row, domain.ColChurned)))
			continue
		}

		if err := n.validateRecord(record, rowNum); err != nil {
			return nil, 0, err
		}

		records = append(records, record)
	}

	n.logger.InfoContext(ctx, "normalized roster table",
		slog.Int("rows", len(records)),
		slog.Int("excluded", excluded),
		slog.Int("columns", len(idx)))

	return records, excluded, nil
}

// parseRow converts one row's cells to a typed record. skip is true when the
// churn label is uncoercible.
func (n *Normalizer) parseRow(idx map[string]int, row []string, rowNum int) (domain.CustomerRecord, bool, error) {
	var r domain.CustomerRecord
	var err error

	churned, ok := domain.ParseBoolColumn(cell(idx, row, domain.ColChurned))
	if !ok {
		return r, true, nil
	}
	r.Churned = churned

	if r.CreditScore, err = parseIntCell(idx, row, domain.ColCreditScore, rowNum, true); err != nil {
		return r, false, err
	}
	r.Geography = strings.TrimSpace(cell(idx, row, domain.ColGeography))
	r.Gender = strings.TrimSpace(cell(idx, row, domain.ColGender))
	if r.Age, err = parseIntCell(idx, row, domain.ColAge, rowNum, true); err != nil {
		return r, false, err
	}
	if r.Tenure, err = parseIntCell(idx, row, domain.ColTenure, rowNum, true); err != nil {
		return r, false, err
	}
	if r.Balance, err = parseFloatCell(idx, row, domain.ColBalance, rowNum, true); err != nil {
		return r, false, err
	}
	if r.NumOfProducts, err = parseIntCell(idx, row, domain.ColNumOfProducts, rowNum, false); err != nil {
		return r, false, err
	}
	if r.HasCreditCard, err = parseBoolCell(idx, row, domain.ColHasCreditCard, rowNum); err != nil {
		return r, false, err
	}
	if r.IsActiveMember, err = parseBoolCell(idx, row, domain.ColIsActiveMember, rowNum); err != nil {
		return r, false, err
	}
	if r.EstimatedSalary, err = parseFloatCell(idx, row, domain.ColEstimatedSalary, rowNum, false); err != nil {
		return r, false, err
	}
	if r.HasComplaint, err = parseBoolCell(idx, row, domain.ColHasComplaint, rowNum); err != nil {
		return r, false, err
	}
	if r.SatisfactionScore, err = parseIntCell(idx, row, domain.ColSatisfactionScore, rowNum, false); err != nil {
		return r, false, err
	}
	r.CardType = strings.TrimSpace(cell(idx, row, domain.ColCardType))
	if r.PointsEarned, err = parseIntCell(idx, row, domain.ColPointsEarned, rowNum, false); err != nil {
		return r, false, err
	}

	return r, false, nil
}

// validateRecord runs the struct-tag domain checks and reports the first
// violation under its canonical column name.
func (n *Normalizer) validateRecord(r domain.CustomerRecord, rowNum int) error {
	err := n.validate.Struct(r)
	if err == nil {
		return nil
	}

	if verrs, ok := err.(validator.ValidationErrors); ok && len(verrs) > 0 {
		fe := verrs[0]
		return errors.NewRowValidationError(fe.Field(), fe.Value(), rowNum)
	}
	return errors.NewAppError(errors.ErrTypeValidation, "row validation failed", err)
}

// cell returns the raw cell for a canonical column, or "" when the column is
// absent or the row is short.
func cell(idx map[string]int, row []string, column string) string {
	i, ok := idx[column]
	if !ok || i >= len(row) {
		return ""
	}
	return row[i]
}

// parseIntCell parses an integer cell. Blank cells in optional columns read
// as zero; in required columns they fail like any other unparseable value.
func parseIntCell(idx map[string]int, row []string, column string, rowNum int, required bool) (int, error) {
	raw := strings.TrimSpace(cell(idx, row, column))
	if raw == "" && !required {
		return 0, nil
	}
	v, err := strconv.Atoi(raw)
	if err != nil {
		// Some exports render integer columns as "42.0".
		if f, ferr := strconv.ParseFloat(raw, 64); ferr == nil && f == float64(int(f)) {
			return int(f), nil
		}
		return 0, errors.NewRowValidationError(column, raw, rowNum)
	}
	return v, nil
}

// parseFloatCell parses a float cell with the same blank-cell policy as
// parseIntCell.
func parseFloatCell(idx map[string]int, row []string, column string, rowNum int, required bool) (float64, error) {
	raw := strings.TrimSpace(cell(idx, row, column))
	if raw == "" && !required {
		return 0, nil
	}
	v, err := strconv.ParseFloat(raw, 64)
	if err != nil {
		return 0, errors.NewRowValidationError(column, raw, rowNum)
	}
	return v, nil
}

// parseBoolCell parses a flag cell. Blank and absent cells read as false;
// a nonblank cell that is not a recognized flag encoding fails.
func parseBoolCell(idx map[string]int, row []string, column string, rowNum int) (bool, error) {
	raw := strings.TrimSpace(cell(idx, row, column))
	if raw == "" {
		return false, nil
	}
	v, ok := domain.ParseBoolColumn(raw)
	if !ok {
		return false, errors.NewRowValidationError(column, raw, rowNum)
	}
	return v, nil
}
