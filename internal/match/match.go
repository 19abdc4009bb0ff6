// Package match 把 cause list 提取出的 CASE 集合与工作表记录对齐。
//
// 约束：
// - 纯函数，不做 I/O、不打日志；跳过原因通过 SheetOutcome 返回，由上层决定如何 warn
// - 工作表之间互不影响：一个坏表只会让它自己被跳过
// - 不做跨表去重
package match

import (
	"strings"

	"github.com/John-Robertt/causematch/internal/domain"
)

// SheetOutcome 记录单个工作表的匹配过程（用于解释“为什么结果比预期少”）。
type SheetOutcome struct {
	Name    string
	Status  string // domain.SheetMatched / SheetNoMatch / SheetSkipped
	Reason  string // 仅 skipped 时非空
	Columns Columns

	Year       string
	YearSource string // domain.YearFromColumn / YearFromSheetName

	// Rows 是案号非空的候选行数。
	Rows    int
	Matched int
}

// Match 返回所有派生 CASE 属于 ids 的行，按工作表顺序拼接。
func Match(ids domain.CaseSet, sheets []domain.Sheet) []domain.MatchResult {
	res, _ := MatchTrace(ids, sheets)
	return res
}

// MatchTrace 与 Match 相同，但额外返回每个工作表的处理结果（与 sheets 一一对应）。
func MatchTrace(ids domain.CaseSet, sheets []domain.Sheet) ([]domain.MatchResult, []SheetOutcome) {
	results := make([]domain.MatchResult, 0)
	outcomes := make([]SheetOutcome, 0, len(sheets))
	for i := range sheets {
		r, o := matchSheet(ids, sheets[i])
		results = append(results, r...)
		outcomes = append(outcomes, o)
	}
	return results, outcomes
}

type candidate struct {
	row  domain.Row
	num  string
	year string // 空串表示该行年份解析失败，等待回填
}

func matchSheet(ids domain.CaseSet, sh domain.Sheet) ([]domain.MatchResult, SheetOutcome) {
	out := SheetOutcome{Name: sh.Name}

	cols := ResolveColumns(sh.Columns)
	out.Columns = cols
	if cols.CaseNo == "" {
		return skip(out, domain.ReasonNoCaseColumn)
	}

	cands := make([]candidate, 0, len(sh.Rows))
	for _, row := range sh.Rows {
		num := stripSpace(row[cols.CaseNo].Text())
		if num == "" {
			continue
		}
		c := candidate{row: row, num: num}
		if cols.Year != "" {
			c.year, _ = cellYear(row[cols.Year])
		}
		cands = append(cands, c)
	}
	out.Rows = len(cands)
	if len(cands) == 0 {
		return skip(out, domain.ReasonNoRows)
	}

	// 年份是“表级”决策：取第一个可解析的年份，回填到所有解析失败的行。
	for _, c := range cands {
		if c.year != "" {
			out.Year, out.YearSource = c.year, domain.YearFromColumn
			break
		}
	}
	if out.Year == "" {
		if y, ok := yearInName(sh.Name); ok {
			out.Year, out.YearSource = y, domain.YearFromSheetName
		}
	}
	if out.Year == "" {
		return skip(out, domain.ReasonNoYear)
	}

	var matched []domain.MatchResult
	for _, c := range cands {
		year := c.year
		if year == "" {
			year = out.Year
		}
		if !ids.Has(domain.NewCaseID(c.num, year)) {
			continue
		}
		matched = append(matched, domain.MatchResult{
			Sheet:   sh.Name,
			Columns: sh.Columns,
			Row:     c.row,
		})
	}

	out.Matched = len(matched)
	out.Status = domain.SheetNoMatch
	if out.Matched > 0 {
		out.Status = domain.SheetMatched
	}
	return matched, out
}

func skip(o SheetOutcome, reason string) ([]domain.MatchResult, SheetOutcome) {
	o.Status = domain.SheetSkipped
	o.Reason = reason
	return nil, o
}

func stripSpace(s string) string {
	return strings.Join(strings.Fields(s), "")
}
