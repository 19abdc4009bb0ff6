package domain

import (
	"math"
	"strconv"
	"strings"
)

type CellKind int

const (
	CellEmpty CellKind = iota
	CellText
	CellNumber
)

// Cell 是表格单元格的值（字符串 / 数字 / 空）。
type Cell struct {
	Kind CellKind
	Str  string
	Num  float64
}

func TextCell(s string) Cell {
	if s == "" {
		return Cell{}
	}
	return Cell{Kind: CellText, Str: s}
}

func NumberCell(f float64) Cell { return Cell{Kind: CellNumber, Num: f} }

// Text 把单元格强制转换为文本。
// 整数值的数字不带小数部分（12 而不是 12.0），否则案号会拼错。
func (c Cell) Text() string {
	switch c.Kind {
	case CellText:
		return c.Str
	case CellNumber:
		return strconv.FormatFloat(c.Num, 'f', -1, 64)
	default:
		return ""
	}
}

// Number 尝试把单元格解析为数字；文本会先 TrimSpace。
func (c Cell) Number() (float64, bool) {
	switch c.Kind {
	case CellNumber:
		if math.IsNaN(c.Num) || math.IsInf(c.Num, 0) {
			return 0, false
		}
		return c.Num, true
	case CellText:
		f, err := strconv.ParseFloat(strings.TrimSpace(c.Str), 64)
		if err != nil || math.IsNaN(f) || math.IsInf(f, 0) {
			return 0, false
		}
		return f, true
	default:
		return 0, false
	}
}

// Row 是一行记录：原始表头名 -> 单元格。
type Row map[string]Cell

// Sheet 是一个具名工作表。Columns 保留表头原始顺序与原始写法。
type Sheet struct {
	Name    string
	Columns []string
	Rows    []Row
}

// NormalizeHeader 是表头比较用的规范形式：trim + lowercase。
func NormalizeHeader(h string) string {
	return strings.ToLower(strings.TrimSpace(h))
}

// MatchResult 是命中的一行记录（附带来源工作表名）。
// 匹配用的派生主键不属于结果的一部分。
type MatchResult struct {
	Sheet   string
	Columns []string
	Row     Row
}
