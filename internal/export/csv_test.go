package export

import (
	"bytes"
	"encoding/csv"
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/John-Robertt/causematch/internal/domain"
)

func results() []domain.MatchResult {
	return []domain.MatchResult{
		{
			Sheet:   "2023",
			Columns: []string{"Case No", "Year", "Party"},
			Row: domain.Row{
				"Case No": domain.TextCell("12"),
				"Year":    domain.NumberCell(2023),
				"Party":   domain.TextCell("A, B"),
			},
		},
		{
			Sheet:   "Old",
			Columns: []string{"Case No", "Advocate"},
			Row: domain.Row{
				"Case No":  domain.NumberCell(7),
				"Advocate": domain.TextCell("X"),
			},
		},
	}
}

func readAll(t *testing.T, b []byte) [][]string {
	t.Helper()
	recs, err := csv.NewReader(bytes.NewReader(b)).ReadAll()
	require.NoError(t, err)
	return recs
}

func TestWriteCSV_UnionHeader(t *testing.T) {
	var buf bytes.Buffer
	require.NoError(t, WriteCSV(&buf, results()))

	recs := readAll(t, buf.Bytes())
	require.Len(t, recs, 3)
	assert.Equal(t, []string{"Case No", "Year", "Party", "Advocate", "Sheet_Source"}, recs[0])
	assert.Equal(t, []string{"12", "2023", "A, B", "", "2023"}, recs[1])
	assert.Equal(t, []string{"7", "", "", "X", "Old"}, recs[2])
}

func TestWriteCSV_Empty(t *testing.T) {
	var buf bytes.Buffer
	require.NoError(t, WriteCSV(&buf, nil))
	assert.Equal(t, "Sheet_Source\n", buf.String())
}

func TestHeader_SourceColumnNotDuplicated(t *testing.T) {
	rs := []domain.MatchResult{{Sheet: "S", Columns: []string{"Sheet_Source", "Case No"}, Row: domain.Row{}}}
	assert.Equal(t, []string{"Case No", "Sheet_Source"}, Header(rs))
}

func TestWriteCSVFile(t *testing.T) {
	path := filepath.Join(t.TempDir(), "out", FileName)
	require.NoError(t, WriteCSVFile(path, results()))

	b, err := os.ReadFile(path)
	require.NoError(t, err)
	assert.Len(t, readAll(t, b), 3)
}
