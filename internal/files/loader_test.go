package files

import (
	"context"
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/xuri/excelize/v2"

	"churnpulse/internal/errors"
	"churnpulse/pkg/contracts/domain"
)

const rawRosterCSV = `CreditScore,Geography,Age,Tenure,Balance,Exited
650,France,35,4,1000.00,1
700,Spain,45,8,0.00,0
720,Germany,28,2,500.50,0
600,France,52,10,2000.00,maybe
`

const derivedTableCSV = `CreditScore,Geography,Gender,Age,Tenure,Balance,Churned,AgeGroup,BalanceSegment,CreditSegment,TenureSegment
650,France,Female,35,4,1000.00,1,31-40,Medium,Fair,Growing (3-5)
700,Spain,Male,45,8,0.00,0,41-50,Zero,Good,Mature (6-8)
`

func writeFile(t *testing.T, dir, name, content string) string {
	t.Helper()
	path := filepath.Join(dir, name)
	require.NoError(t, os.WriteFile(path, []byte(content), 0644))
	return path
}

func TestLoadDerivedTable(t *testing.T) {
	dir := t.TempDir()
	path := writeFile(t, dir, "processed_churn_data.csv", derivedTableCSV)

	ds, err := NewLoader(nil).Load(context.Background(), []string{path}, nil)
	require.NoError(t, err)

	require.Equal(t, 2, ds.Len())
	meta := ds.Meta()
	assert.Equal(t, domain.SourceKindDerived, meta.SourceKind)
	assert.Equal(t, path, meta.SourcePath)
	assert.Len(t, meta.Fingerprint, 64)
	assert.Equal(t, 2, meta.Rows)
	assert.Equal(t, 0, meta.ExcludedRows)
	assert.False(t, meta.LoadedAt.IsZero())

	first := ds.Records()[0]
	assert.Equal(t, 650, first.CreditScore)
	assert.Equal(t, "France", first.Geography)
	assert.True(t, first.Churned)

	// Labels come from the stored columns, not a recomputation
	assert.Equal(t, domain.SegmentLabels{
		AgeGroup:       "31-40",
		BalanceSegment: "Medium",
		CreditSegment:  "Fair",
		TenureSegment:  "Growing (3-5)",
	}, ds.Labels()[0])
	assert.Equal(t, "Zero", ds.Labels()[1].BalanceSegment)
}

func TestLoadDerivedTableWithBOM(t *testing.T) {
	dir := t.TempDir()
	path := writeFile(t, dir, "processed_churn_data.csv", "\xEF\xBB\xBF"+derivedTableCSV)

	ds, err := NewLoader(nil).Load(context.Background(), []string{path}, nil)
	require.NoError(t, err)
	assert.Equal(t, 2, ds.Len())
}

func TestLoadSkipsFailedDerivedCandidates(t *testing.T) {
	dir := t.TempDir()
	missing := filepath.Join(dir, "absent.csv")
	corrupt := writeFile(t, dir, "corrupt.csv", "CreditScore,Geography\n650")
	valid := writeFile(t, dir, "valid.csv", derivedTableCSV)

	// The raw candidate carries an out-of-domain age and would abort the
	// load if it were ever consulted.
	poisoned := writeFile(t, dir, "poisoned.csv",
		"CreditScore,Geography,Age,Tenure,Balance,Exited\n650,France,150,4,100.00,1\n")

	ds, err := NewLoader(nil).Load(context.Background(),
		[]string{missing, corrupt, valid}, []string{poisoned})
	require.NoError(t, err)
	assert.Equal(t, domain.SourceKindDerived, ds.Meta().SourceKind)
	assert.Equal(t, valid, ds.Meta().SourcePath)
}

func TestLoadFallsBackToRaw(t *testing.T) {
	dir := t.TempDir()
	missing := filepath.Join(dir, "absent.csv")
	raw := writeFile(t, dir, "Customer-Churn-Records.csv", rawRosterCSV)

	ds, err := NewLoader(nil).Load(context.Background(), []string{missing}, []string{raw})
	require.NoError(t, err)

	require.Equal(t, 3, ds.Len())
	meta := ds.Meta()
	assert.Equal(t, domain.SourceKindRaw, meta.SourceKind)
	assert.Equal(t, 1, meta.ExcludedRows, "uncoercible churn label row is excluded")
	assert.Len(t, meta.Fingerprint, 64)

	// Labels are derived by the pipeline on the raw path
	assert.Equal(t, domain.SegmentLabels{
		AgeGroup:       "31-40",
		BalanceSegment: "Medium",
		CreditSegment:  "Fair",
		TenureSegment:  "Growing (3-5)",
	}, ds.Labels()[0])
	assert.Equal(t, "Zero", ds.Labels()[1].BalanceSegment)
	assert.Equal(t, "18-30", ds.Labels()[2].AgeGroup)
}

func TestLoadRawXLSX(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "Customer-Churn-Records.xlsx")

	f := excelize.NewFile()
	rows := [][]interface{}{
		{"CreditScore", "Geography", "Age", "Tenure", "Balance", "Exited"},
		{"650", "France", "35", "4", "1000.00", "1"},
		{"700", "Spain", "45", "8", "250.00", "0"},
		{"720", "Germany", "28", "2", "500.50", "0"},
		{"610", "France", "61", "9", "2000.00", "1"},
	}
	for i, row := range rows {
		cell, err := excelize.CoordinatesToCellName(1, i+1)
		require.NoError(t, err)
		require.NoError(t, f.SetSheetRow("Sheet1", cell, &row))
	}
	require.NoError(t, f.SaveAs(path))
	require.NoError(t, f.Close())

	ds, err := NewLoader(nil).Load(context.Background(), nil, []string{path})
	require.NoError(t, err)

	require.Equal(t, 4, ds.Len())
	assert.Equal(t, domain.SourceKindRaw, ds.Meta().SourceKind)
	assert.Equal(t, "France", ds.Records()[0].Geography)
	assert.Equal(t, 1000.00, ds.Records()[0].Balance)
	assert.Equal(t, "60+", ds.Labels()[3].AgeGroup)
}

func TestLoadAllCandidatesFail(t *testing.T) {
	dir := t.TempDir()
	missingDerived := filepath.Join(dir, "no_derived.csv")
	wrongFormat := writeFile(t, dir, "derived.xlsx", "not a table")
	missingRaw := filepath.Join(dir, "no_raw.csv")

	_, err := NewLoader(nil).Load(context.Background(),
		[]string{missingDerived, wrongFormat}, []string{missingRaw})
	require.Error(t, err)
	assert.True(t, errors.IsType(err, errors.ErrTypeUnavailable))
	assert.Contains(t, err.Error(), "3 candidates")
	assert.Contains(t, err.Error(), missingDerived)
	assert.Contains(t, err.Error(), missingRaw)

	var appErr *errors.AppError
	require.ErrorAs(t, err, &appErr)
	attempts, ok := appErr.Context["attempts"].([]errors.Attempt)
	require.True(t, ok)
	require.Len(t, attempts, 3)
	assert.Contains(t, attempts[1].Reason, "must be csv")
}

func TestLoadRawValidationAborts(t *testing.T) {
	dir := t.TempDir()
	bad := writeFile(t, dir, "bad.csv",
		"CreditScore,Geography,Age,Tenure,Balance,Exited\n650,France,150,4,100.00,1\n")
	good := writeFile(t, dir, "good.csv", rawRosterCSV)

	// The later valid candidate must not mask the bad data
	_, err := NewLoader(nil).Load(context.Background(), nil, []string{bad, good})
	require.Error(t, err)
	assert.True(t, errors.IsType(err, errors.ErrTypeValidation))
	assert.Contains(t, err.Error(), "Age")
}

func TestLoadRawSchemaErrorMovesOn(t *testing.T) {
	dir := t.TempDir()
	notARoster := writeFile(t, dir, "notes.csv", "a,b,c\n1,2,3\n")
	roster := writeFile(t, dir, "roster.csv", rawRosterCSV)

	ds, err := NewLoader(nil).Load(context.Background(), nil, []string{notARoster, roster})
	require.NoError(t, err)
	assert.Equal(t, roster, ds.Meta().SourcePath)
}

func TestLoadDerivedRejectsBlankLabel(t *testing.T) {
	dir := t.TempDir()
	blank := writeFile(t, dir, "derived.csv",
		"CreditScore,Geography,Age,Tenure,Balance,Churned,AgeGroup,BalanceSegment,CreditSegment,TenureSegment\n"+
			"650,France,35,4,1000.00,1,31-40,,Fair,Growing (3-5)\n")

	_, err := NewLoader(nil).Load(context.Background(), []string{blank}, nil)
	require.Error(t, err)
	assert.True(t, errors.IsType(err, errors.ErrTypeUnavailable))
	assert.Contains(t, attemptReasons(t, err), "blank segment label")
}

func TestLoadDerivedRequiresLabelColumns(t *testing.T) {
	dir := t.TempDir()
	// A raw roster is not a well-formed derived table
	noLabels := writeFile(t, dir, "derived.csv", rawRosterCSV)

	_, err := NewLoader(nil).Load(context.Background(), []string{noLabels}, nil)
	require.Error(t, err)
	assert.True(t, errors.IsType(err, errors.ErrTypeUnavailable))
	assert.Contains(t, attemptReasons(t, err), "missing label column")
}

func TestLoadFingerprintTracksContent(t *testing.T) {
	dir := t.TempDir()
	path := writeFile(t, dir, "derived.csv", derivedTableCSV)

	loader := NewLoader(nil)
	first, err := loader.Load(context.Background(), []string{path}, nil)
	require.NoError(t, err)
	second, err := loader.Load(context.Background(), []string{path}, nil)
	require.NoError(t, err)
	assert.Equal(t, first.Meta().Fingerprint, second.Meta().Fingerprint)

	writeFile(t, dir, "derived.csv", derivedTableCSV+"720,Germany,Male,28,2,500.50,0,18-30,Low,Good,New (0-2)\n")
	third, err := loader.Load(context.Background(), []string{path}, nil)
	require.NoError(t, err)
	assert.NotEqual(t, first.Meta().Fingerprint, third.Meta().Fingerprint)
}

// attemptReasons flattens the attempt reasons carried by an unavailable
// error for substring assertions.
func attemptReasons(t *testing.T, err error) string {
	t.Helper()
	var appErr *errors.AppError
	require.ErrorAs(t, err, &appErr)
	attempts, ok := appErr.Context["attempts"].([]errors.Attempt)
	require.True(t, ok)

	var joined string
	for _, a := range attempts {
		joined += a.Reason + "\n"
	}
	return joined
}
