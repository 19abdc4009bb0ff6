// Package workbook 把 xlsx / csv 解码为具名工作表序列。
package workbook

import (
	"bytes"
	"encoding/csv"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"strconv"
	"strings"

	"github.com/xuri/excelize/v2"

	"github.com/John-Robertt/causematch/internal/domain"
	"github.com/John-Robertt/causematch/internal/source"
)

// Decode 按扩展名选择解码器。name 只用于判定格式、命名 csv 工作表与错误信息。
func Decode(name string, r io.Reader) ([]domain.Sheet, error) {
	ext := strings.ToLower(filepath.Ext(name))
	switch ext {
	case ".xlsx", ".xlsm":
		sheets, err := decodeXLSX(r)
		if err != nil {
			return nil, &source.DecodeError{Path: name, Kind: "xlsx", Err: err}
		}
		return sheets, nil
	case ".csv":
		base := strings.TrimSuffix(filepath.Base(name), filepath.Ext(name))
		sh, err := decodeCSV(base, r)
		if err != nil {
			return nil, &source.DecodeError{Path: name, Kind: "csv", Err: err}
		}
		return []domain.Sheet{sh}, nil
	default:
		return nil, &source.DecodeError{Path: name, Kind: "workbook", Err: fmt.Errorf("不支持的扩展名 %q（支持 .xlsx/.xlsm/.csv）", ext)}
	}
}

func DecodeFile(path string) ([]domain.Sheet, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, err
	}
	defer f.Close()
	return Decode(path, f)
}

func decodeXLSX(r io.Reader) ([]domain.Sheet, error) {
	f, err := excelize.OpenReader(r)
	if err != nil {
		return nil, err
	}
	defer f.Close()

	names := f.GetSheetList()
	sheets := make([]domain.Sheet, 0, len(names))
	for _, name := range names {
		rows, err := f.GetRows(name, excelize.Options{RawCellValue: true})
		if err != nil {
			return nil, fmt.Errorf("工作表 %q：%w", name, err)
		}
		sh, err := buildSheet(name, rows, func(row, col int, raw string) domain.Cell {
			axis, err := excelize.CoordinatesToCellName(col+1, row+1)
			if err != nil {
				return domain.TextCell(raw)
			}
			typ, err := f.GetCellType(name, axis)
			if err != nil {
				return domain.TextCell(raw)
			}
			return xlsxCell(typ, raw)
		})
		if err != nil {
			return nil, fmt.Errorf("工作表 %q：%w", name, err)
		}
		sheets = append(sheets, sh)
	}
	return sheets, nil
}

// xlsxCell 只把“非字符串类型且可解析”的值当数字；字符串单元格即使长得像数字也保持文本。
func xlsxCell(typ excelize.CellType, raw string) domain.Cell {
	if strings.TrimSpace(raw) == "" {
		return domain.Cell{}
	}
	switch typ {
	case excelize.CellTypeSharedString, excelize.CellTypeInlineString, excelize.CellTypeBool, excelize.CellTypeError:
		return domain.TextCell(raw)
	}
	if f, err := strconv.ParseFloat(strings.TrimSpace(raw), 64); err == nil {
		return domain.NumberCell(f)
	}
	return domain.TextCell(raw)
}

var utf8BOM = []byte{0xEF, 0xBB, 0xBF}

func decodeCSV(name string, r io.Reader) (domain.Sheet, error) {
	b, err := io.ReadAll(r)
	if err != nil {
		return domain.Sheet{}, err
	}
	cr := csv.NewReader(bytes.NewReader(bytes.TrimPrefix(b, utf8BOM)))
	cr.FieldsPerRecord = -1
	cr.LazyQuotes = true
	records, err := cr.ReadAll()
	if err != nil {
		return domain.Sheet{}, err
	}
	return buildSheet(name, records, func(_, _ int, raw string) domain.Cell {
		if strings.TrimSpace(raw) == "" {
			return domain.Cell{}
		}
		return domain.TextCell(raw)
	})
}

type cellFunc func(row, col int, raw string) domain.Cell

// buildSheet 取第一个非空行作为表头；空表头命名为 "Unnamed: <i>"，重复表头追加 ".1"、".2"。
// 全空的数据行会被丢弃。
func buildSheet(name string, rows [][]string, cell cellFunc) (domain.Sheet, error) {
	sh := domain.Sheet{Name: name, Columns: []string{}, Rows: []domain.Row{}}

	hi := -1
	for i, r := range rows {
		if !blankRow(r) {
			hi = i
			break
		}
	}
	if hi < 0 {
		return sh, nil
	}

	sh.Columns = headers(rows[hi])
	for ri := hi + 1; ri < len(rows); ri++ {
		r := rows[ri]
		if blankRow(r) {
			continue
		}
		row := make(domain.Row, len(sh.Columns))
		for ci, col := range sh.Columns {
			if ci >= len(r) {
				continue
			}
			if c := cell(ri, ci, r[ci]); c.Kind != domain.CellEmpty {
				row[col] = c
			}
		}
		sh.Rows = append(sh.Rows, row)
	}
	return sh, nil
}

func headers(raw []string) []string {
	out := make([]string, 0, len(raw))
	used := make(map[string]bool, len(raw))
	for i, h := range raw {
		h = strings.TrimSpace(h)
		if h == "" {
			h = "Unnamed: " + strconv.Itoa(i)
		}
		name := h
		for n := 1; used[name]; n++ {
			name = h + "." + strconv.Itoa(n)
		}
		used[name] = true
		out = append(out, name)
	}
	return out
}

func blankRow(r []string) bool {
	for _, s := range r {
		if strings.TrimSpace(s) != "" {
			return false
		}
	}
	return true
}
