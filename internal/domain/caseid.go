package domain

import (
	"regexp"
	"sort"
	"strings"
)

// CaseID 是案件的规范化主键（形如 WP/14313/2017）。
//
// 约束：任何比较之前都必须先规范化；两个 CaseID 相等当且仅当字符串相等。
type CaseID string

const casePrefix = "WP"

var caseIDRE = regexp.MustCompile(`^WP/[0-9]+/[0-9]+$`)

var spaceRE = regexp.MustCompile(`\s+`)

// ParseCaseID 规范化并校验一个 CASE 字符串。
// 允许分隔符两侧有空白、字母大小写混杂；其它噪音（括号、标点）视为非法。
func ParseCaseID(s string) (CaseID, bool) {
	s = strings.ToUpper(spaceRE.ReplaceAllString(s, ""))
	if !caseIDRE.MatchString(s) {
		return "", false
	}
	return CaseID(s), true
}

// NewCaseID 用案号与年份拼出候选主键（不做合法性校验；匹配阶段只做集合查找）。
func NewCaseID(number, year string) CaseID {
	s := casePrefix + "/" + number + "/" + year
	return CaseID(strings.ToUpper(spaceRE.ReplaceAllString(s, "")))
}

// CaseSet 是 CaseID 的集合。零值不可用，请使用 NewCaseSet。
type CaseSet map[CaseID]struct{}

func NewCaseSet(ids ...CaseID) CaseSet {
	s := make(CaseSet, len(ids))
	for _, id := range ids {
		s.Add(id)
	}
	return s
}

func (s CaseSet) Add(id CaseID) { s[id] = struct{}{} }

func (s CaseSet) Has(id CaseID) bool {
	_, ok := s[id]
	return ok
}

func (s CaseSet) Len() int { return len(s) }

// Sorted 返回按字典序排序的切片（保证稳定输出）；空集合返回非 nil 的空切片。
func (s CaseSet) Sorted() []CaseID {
	out := make([]CaseID, 0, len(s))
	for id := range s {
		out = append(out, id)
	}
	sort.Slice(out, func(i, j int) bool { return out[i] < out[j] })
	return out
}

// Strings 把 CaseID 切片转换为 []string（用于 JSON/CSV 输出）。
func Strings(ids []CaseID) []string {
	out := make([]string, 0, len(ids))
	for _, id := range ids {
		out = append(out, string(id))
	}
	return out
}
