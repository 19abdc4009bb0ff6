package match

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestResolveColumns(t *testing.T) {
	tests := []struct {
		name    string
		headers []string
		want    Columns
	}{
		{"exact vocabulary", []string{"Sr", "Case No", "Year"}, Columns{CaseNo: "Case No", Year: "Year"}},
		{"trim and case folding", []string{"  CASENO ", " Case Year"}, Columns{CaseNo: "  CASENO ", Year: " Case Year"}},
		{"case number spelling", []string{"Case Number", "Filing Year"}, Columns{CaseNo: "Case Number", Year: "Filing Year"}},
		{"exact beats earlier loose", []string{"Case Notes", "Case No"}, Columns{CaseNo: "Case No"}},
		{"loose fallback", []string{"WP Case No.", "Yr"}, Columns{CaseNo: "WP Case No."}},
		{"year cannot reuse case column", []string{"Case No/Year"}, Columns{CaseNo: "Case No/Year"}},
		{"first exact in header order wins", []string{"Year", "Case Year", "case no"}, Columns{CaseNo: "case no", Year: "Year"}},
		{"nothing recognizable", []string{"Petitioner", "Respondent"}, Columns{}},
		{"no headers", nil, Columns{}},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, ResolveColumns(tt.headers))
		})
	}
}

func TestYearInName(t *testing.T) {
	tests := []struct {
		name string
		want string
		ok   bool
	}{
		{"Cases_2023", "2023", true},
		{"1999 backlog", "1999", true},
		{"WP 2019-2020", "2019", true},
		{"Sheet1", "", false},
		{"batch 120234", "", false},
		{"2100 plan", "", false},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got, ok := yearInName(tt.name)
			assert.Equal(t, tt.ok, ok)
			assert.Equal(t, tt.want, got)
		})
	}
}
