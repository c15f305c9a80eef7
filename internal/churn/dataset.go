package churn

import (
	"fmt"

	"churnpulse/internal/errors"
	"churnpulse/pkg/contracts/domain"
)

// Dataset is the immutable in-memory customer table: parsed records, their
// segment labels in a parallel slice, and provenance metadata. Nothing in
// this package mutates a Dataset after construction; derivations return
// fresh values, and the server swaps whole Dataset pointers on refresh.
type Dataset struct {
	records []domain.CustomerRecord
	labels  []domain.SegmentLabels
	meta    domain.DatasetMeta
}

// NewDataset builds a dataset from parallel record and label slices.
func NewDataset(records []domain.CustomerRecord, labels []domain.SegmentLabels, meta domain.DatasetMeta) (*Dataset, error) {
	if len(records) != len(labels) {
		return nil, errors.NewAppValidationError(
			fmt.Sprintf("records and labels length mismatch: %d vs %d", len(records), len(labels)))
	}
	meta.Rows = len(records)
	return &Dataset{records: records, labels: labels, meta: meta}, nil
}

// Len returns the number of retained customer rows.
func (d *Dataset) Len() int {
	return len(d.records)
}

// Records returns the record slice. Callers must treat it as read-only.
func (d *Dataset) Records() []domain.CustomerRecord {
	return d.records
}

// Labels returns the segment label slice, parallel to Records. Callers must
// treat it as read-only.
func (d *Dataset) Labels() []domain.SegmentLabels {
	return d.labels
}

// Meta returns the provenance metadata.
func (d *Dataset) Meta() domain.DatasetMeta {
	return d.meta
}

// RiskScores computes risk scores for every row into a fresh slice.
func (d *Dataset) RiskScores() []int {
	return RiskScores(d.records)
}
