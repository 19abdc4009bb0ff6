// Package causelist 从 cause list（庭审排期表）文本中提取“主案件” CASE。
//
// 规则顺序是契约的一部分，不允许调换：
//  1. 去掉所有单层括号内容（交叉引用通常写成 "(WP/14313/2017)"）
//  2. 丢弃包含 "ARISING FROM" 的行（未加括号的来源案件）
//  3. 空白归一
//  4. 模式匹配 + 规范化 + 去重排序
package causelist

import (
	"regexp"
	"strings"

	"github.com/John-Robertt/causematch/internal/domain"
)

const arisingPhrase = "ARISING FROM"

var (
	// 单层括号：从 '(' 到下一个 ')'，允许跨行；不配对的 '(' 原样保留。
	bracketRE = regexp.MustCompile(`\([^)]*\)`)

	whitespaceRE = regexp.MustCompile(`\s+`)

	// 年份段之后是否紧跟数字由 addCandidates 判定（RE2 不支持 lookahead）。
	candidateRE = regexp.MustCompile(`(?i)WP\s*/\s*([0-9]{1,6})\s*/\s*([0-9]{2,4})`)
)

// Options 控制两条排除规则；零值表示两条规则都关闭，通常应使用 DefaultOptions。
type Options struct {
	StripBrackets bool
	DropArising   bool
}

func DefaultOptions() Options {
	return Options{StripBrackets: true, DropArising: true}
}

// Extract 按默认规则提取主案件 CASE（已去重、字典序）。
// 空输入或纯空白输入返回空切片（非 nil），永不报错。
func Extract(text string) []domain.CaseID {
	return ExtractWith(text, DefaultOptions())
}

// ExtractWith 与 Extract 相同，但允许关闭某条排除规则。
func ExtractWith(text string, opt Options) []domain.CaseID {
	return ExtractSetWith(text, opt).Sorted()
}

// ExtractSet 返回集合形式（供匹配阶段直接查找）。
func ExtractSet(text string) domain.CaseSet {
	return ExtractSetWith(text, DefaultOptions())
}

func ExtractSetWith(text string, opt Options) domain.CaseSet {
	out := domain.NewCaseSet()
	if strings.TrimSpace(text) == "" {
		return out
	}
	addCandidates(out, Normalize(text, opt))
	return out
}

// Normalize 执行模式匹配之前的三步文本变换（去括号 -> 丢弃 arising 行 -> 空白归一）。
// extract --normalized 用它展示中间文本。
func Normalize(text string, opt Options) string {
	if opt.StripBrackets {
		text = bracketRE.ReplaceAllString(text, "")
	}
	if opt.DropArising {
		text = dropArisingLines(text)
	}
	return strings.TrimSpace(whitespaceRE.ReplaceAllString(text, " "))
}

func dropArisingLines(text string) string {
	lines := strings.Split(text, "\n")
	kept := lines[:0]
	for _, ln := range lines {
		if strings.Contains(strings.ToUpper(ln), arisingPhrase) {
			continue
		}
		kept = append(kept, ln)
	}
	return strings.Join(kept, " ")
}

func addCandidates(dst domain.CaseSet, s string) {
	for _, loc := range candidateRE.FindAllStringSubmatchIndex(s, -1) {
		if len(loc) < 6 {
			continue
		}
		// 年份后紧跟数字：说明真实数字更长，宁可不要也不截断。
		if end := loc[1]; end < len(s) && isDigit(s[end]) {
			continue
		}
		if id, ok := domain.ParseCaseID(s[loc[0]:loc[1]]); ok {
			dst.Add(id)
		}
	}
}

func isDigit(b byte) bool { return b >= '0' && b <= '9' }
