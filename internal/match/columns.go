package match

import (
	"strings"

	"github.com/John-Robertt/causematch/internal/domain"
)

// columnRule 描述一个逻辑列可接受的表头写法（表头已 trim + lowercase）。
//
// 解析顺序：先在所有列上做 Exact 匹配，全部落空后再做 Loose 匹配；同一轮内取表头顺序最靠前者。
type columnRule struct {
	Logical string
	Exact   []string
	// Loose 中的每个子串都必须出现在表头里。
	Loose []string
}

const (
	logicalCaseNo = "case_no"
	logicalYear   = "year"
)

var (
	caseNoRule = columnRule{
		Logical: logicalCaseNo,
		Exact:   []string{"case no", "caseno", "case number"},
		Loose:   []string{"case", "no"},
	}
	yearRule = columnRule{
		Logical: logicalYear,
		Exact:   []string{"case year", "year"},
		Loose:   []string{"year"},
	}
)

// Columns 是一个工作表解析出的列（原始表头名；未找到为空串）。
type Columns struct {
	CaseNo string
	Year   string
}

// ResolveColumns 按声明式规则表定位案号列与年份列。
// 年份列不能与案号列是同一列（例如 "Case No/Year"）。
func ResolveColumns(headers []string) Columns {
	var c Columns
	c.CaseNo = caseNoRule.find(headers, "")
	c.Year = yearRule.find(headers, c.CaseNo)
	return c
}

func (r columnRule) find(headers []string, exclude string) string {
	for _, h := range headers {
		if h == exclude && exclude != "" {
			continue
		}
		if r.exact(domain.NormalizeHeader(h)) {
			return h
		}
	}
	for _, h := range headers {
		if h == exclude && exclude != "" {
			continue
		}
		if r.loose(domain.NormalizeHeader(h)) {
			return h
		}
	}
	return ""
}

func (r columnRule) exact(n string) bool {
	for _, e := range r.Exact {
		if n == e {
			return true
		}
	}
	return false
}

func (r columnRule) loose(n string) bool {
	if n == "" || len(r.Loose) == 0 {
		return false
	}
	for _, sub := range r.Loose {
		if !strings.Contains(n, sub) {
			return false
		}
	}
	return true
}
