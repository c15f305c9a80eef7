package exporter

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestFormatMoney(t *testing.T) {
	tests := []struct {
		value float64
		want  string
	}{
		{0, "0.00"},
		{13.4, "13.40"},
		{199.75, "199.75"},
		{83807.86, "83807.86"},
	}

	for _, tt := range tests {
		assert.Equal(t, tt.want, formatMoney(tt.value))
	}
}

func TestFormatNumber(t *testing.T) {
	tests := []struct {
		value float64
		want  string
	}{
		{0, "0"},
		{50, "50"},
		{5.5, "5.5"},
		{0.125, "0.125"},
		{100000, "100000"},
	}

	for _, tt := range tests {
		assert.Equal(t, tt.want, formatNumber(tt.value))
	}
}

func TestFormatInt(t *testing.T) {
	assert.Equal(t, "0", formatInt(0))
	assert.Equal(t, "464", formatInt(464))
}

func TestFormatPercent(t *testing.T) {
	tests := []struct {
		fraction float64
		want     string
	}{
		{0, "0.00"},
		{1, "100.00"},
		{1.0 / 3.0, "33.33"},
		{0.205, "20.50"},
	}

	for _, tt := range tests {
		assert.Equal(t, tt.want, formatPercent(tt.fraction))
	}
}
