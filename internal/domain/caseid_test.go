package domain

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestParseCaseID(t *testing.T) {
	tests := []struct {
		in   string
		want CaseID
		ok   bool
	}{
		{"WP/100/2024", "WP/100/2024", true},
		{"wp / 100 / 2024", "WP/100/2024", true},
		{" Wp/7/24 ", "WP/7/24", true},
		{"(WP/100/2024)", "", false},
		{"WP-100-2024", "", false},
		{"CRL/1/2024", "", false},
		{"", "", false},
	}
	for _, tt := range tests {
		t.Run(tt.in, func(t *testing.T) {
			got, ok := ParseCaseID(tt.in)
			assert.Equal(t, tt.ok, ok)
			assert.Equal(t, tt.want, got)
		})
	}
}

func TestNewCaseID_StripsWhitespace(t *testing.T) {
	assert.Equal(t, CaseID("WP/123/2024"), NewCaseID("1 2 3", " 2024"))
}

func TestCaseSet_SortedIsStableAndNonNil(t *testing.T) {
	empty := NewCaseSet()
	assert.NotNil(t, empty.Sorted())
	assert.Empty(t, empty.Sorted())

	s := NewCaseSet("WP/2/2024", "WP/10/2024", "WP/2/2024")
	assert.Equal(t, 2, s.Len())
	assert.True(t, s.Has("WP/10/2024"))
	assert.False(t, s.Has("WP/3/2024"))
	assert.Equal(t, []CaseID{"WP/10/2024", "WP/2/2024"}, s.Sorted())
}

func TestCell_TextAndNumber(t *testing.T) {
	assert.Equal(t, "12", NumberCell(12).Text())
	assert.Equal(t, "12.5", NumberCell(12.5).Text())
	assert.Equal(t, "", Cell{}.Text())

	n, ok := TextCell(" 2024 ").Number()
	assert.True(t, ok)
	assert.Equal(t, 2024.0, n)

	_, ok = TextCell("twenty").Number()
	assert.False(t, ok)
	_, ok = Cell{}.Number()
	assert.False(t, ok)
}
