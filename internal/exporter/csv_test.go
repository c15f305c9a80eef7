package exporter

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"churnpulse/internal/config"
)

func testWriter(t *testing.T) (*CSVWriter, *config.Paths) {
	t.Helper()
	paths := config.GetPathsFrom(t.TempDir())
	return NewCSVWriter(paths), paths
}

func TestWriteSimpleCSV(t *testing.T) {
	writer, paths := testWriter(t)

	err := writer.WriteSimpleCSV("report.csv", []string{"Name", "Value"}, [][]string{
		{"alpha", "1"},
		{"beta", "2"},
	})
	require.NoError(t, err)

	content, err := os.ReadFile(paths.GetDerivedPath("report.csv"))
	require.NoError(t, err)
	assert.Equal(t, "\ufeffName,Value\nalpha,1\nbeta,2\n", string(content))
}

func TestWriteSimpleCSVQuotesCommas(t *testing.T) {
	writer, paths := testWriter(t)

	err := writer.WriteSimpleCSV("report.csv", []string{"Name"}, [][]string{
		{"last, first"},
	})
	require.NoError(t, err)

	content, err := os.ReadFile(paths.GetDerivedPath("report.csv"))
	require.NoError(t, err)
	assert.Equal(t, "\ufeffName\n\"last, first\"\n", string(content))
}

func TestAppendToCSV(t *testing.T) {
	writer, paths := testWriter(t)

	require.NoError(t, writer.WriteSimpleCSV("log.csv", []string{"Run"}, [][]string{{"first"}}))
	require.NoError(t, writer.AppendToCSV("log.csv", [][]string{{"second"}}))

	content, err := os.ReadFile(paths.GetDerivedPath("log.csv"))
	require.NoError(t, err)

	// Appending adds rows only, never a second BOM or header.
	assert.Equal(t, "\ufeffRun\nfirst\nsecond\n", string(content))
}

func TestWriteCSVTruncatesByDefault(t *testing.T) {
	writer, paths := testWriter(t)

	require.NoError(t, writer.WriteSimpleCSV("out.csv", []string{"A"}, [][]string{{"1"}, {"2"}, {"3"}}))
	require.NoError(t, writer.WriteSimpleCSV("out.csv", []string{"A"}, [][]string{{"9"}}))

	content, err := os.ReadFile(paths.GetDerivedPath("out.csv"))
	require.NoError(t, err)
	assert.Equal(t, "\ufeffA\n9\n", string(content))
}

func TestStreamWriter(t *testing.T) {
	writer, paths := testWriter(t)

	stream, err := writer.CreateStreamWriter("stream.csv", []string{"ID", "Label"})
	require.NoError(t, err)

	require.NoError(t, stream.WriteRecord([]string{"1", "one"}))
	require.NoError(t, stream.WriteRecord([]string{"2", "two"}))
	require.NoError(t, stream.Close())

	content, err := os.ReadFile(paths.GetDerivedPath("stream.csv"))
	require.NoError(t, err)
	assert.Equal(t, "\ufeffID,Label\n1,one\n2,two\n", string(content))
}

func TestResolvePath(t *testing.T) {
	writer, paths := testWriter(t)

	abs := filepath.Join(t.TempDir(), "elsewhere.csv")

	tests := []struct {
		name     string
		filePath string
		want     string
	}{
		{
			name:     "absolute path unchanged",
			filePath: abs,
			want:     abs,
		},
		{
			name:     "bare name goes to derived dir",
			filePath: config.KPISummaryName,
			want:     paths.KPISummaryCSV,
		},
		{
			name:     "summaries prefix goes to summaries dir",
			filePath: "summaries/churn_by_age.csv",
			want:     paths.GetSummaryPath("age"),
		},
		{
			name:     "raw prefix goes to raw dir",
			filePath: "raw/roster.csv",
			want:     paths.GetRawPath("roster.csv"),
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, writer.resolvePath(tt.filePath))
		})
	}
}
