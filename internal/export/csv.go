// Package export 把匹配结果渲染为 CSV。
package export

import (
	"encoding/csv"
	"fmt"
	"io"

	"github.com/John-Robertt/causematch/internal/domain"
	"github.com/John-Robertt/causematch/internal/infra/fsx"
)

// SourceColumn 是追加在最后的来源工作表列。
const SourceColumn = "Sheet_Source"

// FileName 是 web 下载与默认导出的文件名。
const FileName = "matched_cases.csv"

// Header 返回导出表头：各工作表列的并集（按首次出现顺序），最后是 Sheet_Source。
func Header(results []domain.MatchResult) []string {
	seen := make(map[string]struct{})
	var cols []string
	for _, r := range results {
		for _, c := range r.Columns {
			if c == SourceColumn {
				continue
			}
			if _, ok := seen[c]; ok {
				continue
			}
			seen[c] = struct{}{}
			cols = append(cols, c)
		}
	}
	return append(cols, SourceColumn)
}

// WriteCSV 写出 UTF-8 CSV：一条 MatchResult 一行，缺失的单元格为空。
func WriteCSV(w io.Writer, results []domain.MatchResult) error {
	header := Header(results)
	cw := csv.NewWriter(w)
	if err := cw.Write(header); err != nil {
		return fmt.Errorf("写入表头失败：%w", err)
	}

	rec := make([]string, len(header))
	last := len(header) - 1
	for i, r := range results {
		for j, c := range header[:last] {
			rec[j] = r.Row[c].Text()
		}
		rec[last] = r.Sheet
		if err := cw.Write(rec); err != nil {
			return fmt.Errorf("写入第 %d 行失败：%w", i+1, err)
		}
	}
	cw.Flush()
	return cw.Error()
}

// WriteCSVFile 以原子替换的方式把 CSV 写到 path。
func WriteCSVFile(path string, results []domain.MatchResult) error {
	return fsx.WriteAtomic(path, func(w io.Writer) error {
		return WriteCSV(w, results)
	})
}
