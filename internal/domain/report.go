package domain

import (
	"encoding/json"
	"sort"
	"time"
)

const (
	SourceOK     = "ok"
	SourceFailed = "failed"
)

const (
	SourceKindPDF      = "pdf"
	SourceKindText     = "text"
	SourceKindBoard    = "board"
	SourceKindWorkbook = "workbook"
	SourceKindExport   = "export"
	SourceKindConfig   = "config"
)

const (
	SheetMatched = "matched"
	SheetNoMatch = "no_match"
	SheetSkipped = "skipped"
)

// 工作表跳过原因（跳过不是错误，只在 report 中体现）。
const (
	ReasonNoCaseColumn = "no_case_column"
	ReasonNoRows       = "no_rows"
	ReasonNoYear       = "no_year"
)

const (
	YearFromColumn    = "column"
	YearFromSheetName = "sheet_name"
)

const (
	ErrCodeDecodeFailed   = "decode_failed"
	ErrCodeFetchFailed    = "fetch_failed"
	ErrCodeIOFailed       = "io_failed"
	ErrCodeNoInput        = "no_input"
	ErrCodeConfigNotFound = "config_not_found"
	ErrCodeConfigInvalid  = "config_invalid"
)

// RunReport 是对外稳定输出（report.json / stdout JSON）的结构。
type RunReport struct {
	RunID string `json:"run_id"`

	StartedAt  time.Time `json:"started_at"`
	FinishedAt time.Time `json:"finished_at"`

	Summary ReportSummary `json:"summary"`

	Sources []SourceResult `json:"sources"`
	Cases   []string       `json:"cases"`
	Sheets  []SheetResult  `json:"sheets"`
	Matches []MatchRow     `json:"matches"`

	// Export 是导出 CSV 的绝对路径（未导出时为空）。
	Export string `json:"export"`
}

type ReportSummary struct {
	Sources       int `json:"sources"`
	SourcesFailed int `json:"sources_failed"`
	Cases         int `json:"cases"`
	Sheets        int `json:"sheets"`
	SheetsSkipped int `json:"sheets_skipped"`
	Matched       int `json:"matched"`
}

// SourceResult 记录一个输入资源（cause list 文件 / board PDF / workbook）的读取结果。
type SourceResult struct {
	Path      string `json:"path"`
	Kind      string `json:"kind"`
	Status    string `json:"status"`
	ErrorCode string `json:"error_code"`
	ErrorMsg  string `json:"error_msg"`
}

type SheetResult struct {
	Workbook   string `json:"workbook"`
	Name       string `json:"name"`
	Status     string `json:"status"`
	Reason     string `json:"reason"`
	CaseColumn string `json:"case_column"`
	YearColumn string `json:"year_column"`
	Year       string `json:"year"`
	YearSource string `json:"year_source"`
	Rows       int    `json:"rows"`
	Matched    int    `json:"matched"`
}

type MatchRow struct {
	Sheet  string            `json:"sheet"`
	Values map[string]string `json:"values"`
}

// NewMatchRow 把 MatchResult 渲染为 JSON 友好的形态（单元格统一转文本）。
func NewMatchRow(m MatchResult) MatchRow {
	vals := make(map[string]string, len(m.Columns))
	for _, c := range m.Columns {
		vals[c] = m.Row[c].Text()
	}
	return MatchRow{Sheet: m.Sheet, Values: vals}
}

// Finalize 做三件事：
// 1) 时间统一为 UTC（确保 JSON 为 RFC3339 且后缀 Z）
// 2) cases 稳定排序；nil 切片替换为空切片（JSON 输出 [] 而不是 null）
// 3) summary 由明细计算得出
func (r *RunReport) Finalize() {
	r.StartedAt = r.StartedAt.UTC()
	r.FinishedAt = r.FinishedAt.UTC()

	if r.Sources == nil {
		r.Sources = []SourceResult{}
	}
	if r.Cases == nil {
		r.Cases = []string{}
	}
	if r.Sheets == nil {
		r.Sheets = []SheetResult{}
	}
	if r.Matches == nil {
		r.Matches = []MatchRow{}
	}
	sort.Strings(r.Cases)

	s := ReportSummary{
		Sources: len(r.Sources),
		Cases:   len(r.Cases),
		Sheets:  len(r.Sheets),
		Matched: len(r.Matches),
	}
	for _, src := range r.Sources {
		if src.Status == SourceFailed {
			s.SourcesFailed++
		}
	}
	for _, sh := range r.Sheets {
		if sh.Status == SheetSkipped {
			s.SheetsSkipped++
		}
	}
	r.Summary = s
}

// MarshalJSON 仅用于集中约束输出的稳定性（避免未来不小心引入非确定字段）。
func (r RunReport) MarshalJSON() ([]byte, error) {
	type Alias RunReport
	return json.Marshal(Alias(r))
}
