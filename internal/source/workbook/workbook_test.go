package workbook

import (
	"bytes"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/xuri/excelize/v2"

	"github.com/John-Robertt/causematch/internal/domain"
	"github.com/John-Robertt/causematch/internal/source"
)

func buildXLSX(t *testing.T, sheets map[string][][]any, order []string) []byte {
	t.Helper()
	f := excelize.NewFile()
	defer f.Close()

	for i, name := range order {
		if i == 0 {
			require.NoError(t, f.SetSheetName("Sheet1", name))
		} else {
			_, err := f.NewSheet(name)
			require.NoError(t, err)
		}
		for r, row := range sheets[name] {
			axis, err := excelize.CoordinatesToCellName(1, r+1)
			require.NoError(t, err)
			vals := row
			require.NoError(t, f.SetSheetRow(name, axis, &vals))
		}
	}
	buf, err := f.WriteToBuffer()
	require.NoError(t, err)
	return buf.Bytes()
}

func TestDecode_XLSX_SheetsInOrderWithTypedCells(t *testing.T) {
	b := buildXLSX(t, map[string][][]any{
		"Cases_2024": {
			{"Case No", "Year", "Petitioner"},
			{12, 2024, "A. Kumar"},
			{"0045", "", "B. Rao"},
		},
		"Notes": {
			{"Remark"},
			{"none"},
		},
	}, []string{"Cases_2024", "Notes"})

	sheets, err := Decode("book.xlsx", bytes.NewReader(b))
	require.NoError(t, err)
	require.Len(t, sheets, 2)

	s := sheets[0]
	assert.Equal(t, "Cases_2024", s.Name)
	assert.Equal(t, []string{"Case No", "Year", "Petitioner"}, s.Columns)
	require.Len(t, s.Rows, 2)

	assert.Equal(t, domain.NumberCell(12), s.Rows[0]["Case No"])
	assert.Equal(t, domain.NumberCell(2024), s.Rows[0]["Year"])
	assert.Equal(t, domain.TextCell("A. Kumar"), s.Rows[0]["Petitioner"])

	// 字符串单元格保持文本（前导 0 不丢）。
	assert.Equal(t, domain.TextCell("0045"), s.Rows[1]["Case No"])
	assert.Equal(t, domain.Cell{}, s.Rows[1]["Year"])

	assert.Equal(t, "Notes", sheets[1].Name)
}

func TestDecode_XLSX_Corrupt(t *testing.T) {
	_, err := Decode("book.xlsx", strings.NewReader("not a zip"))
	require.Error(t, err)
	assert.True(t, source.IsDecode(err))
}

func TestDecode_CSV(t *testing.T) {
	in := "\xEF\xBB\xBFcase no,year,Petitioner,\n12,2024,A,\n,,,\n\" 1 3 \",2024,B,x\n"
	sheets, err := Decode("/tmp/board_2024.csv", strings.NewReader(in))
	require.NoError(t, err)
	require.Len(t, sheets, 1)

	s := sheets[0]
	assert.Equal(t, "board_2024", s.Name)
	assert.Equal(t, []string{"case no", "year", "Petitioner", "Unnamed: 3"}, s.Columns)
	require.Len(t, s.Rows, 2)
	assert.Equal(t, domain.TextCell(" 1 3 "), s.Rows[1]["case no"])
	assert.Equal(t, domain.TextCell("x"), s.Rows[1]["Unnamed: 3"])
}

func TestDecode_UnsupportedExtension(t *testing.T) {
	_, err := Decode("book.ods", strings.NewReader(""))
	require.Error(t, err)
	assert.True(t, source.IsDecode(err))
}

func TestBuildSheet_HeaderAfterBlankRowsAndDuplicates(t *testing.T) {
	rows := [][]string{
		{"", ""},
		{"Year", "Year", " "},
		{"2024", "2023", "z"},
	}
	sh, err := buildSheet("S", rows, func(_, _ int, raw string) domain.Cell { return domain.TextCell(raw) })
	require.NoError(t, err)
	assert.Equal(t, []string{"Year", "Year.1", "Unnamed: 2"}, sh.Columns)
	require.Len(t, sh.Rows, 1)
	assert.Equal(t, domain.TextCell("2023"), sh.Rows[0]["Year.1"])
}

func TestBuildSheet_EmptySheet(t *testing.T) {
	sh, err := buildSheet("Empty", nil, nil)
	require.NoError(t, err)
	assert.Empty(t, sh.Columns)
	assert.Empty(t, sh.Rows)
}
