package run

import (
	"path/filepath"
	"strings"
)

// Document 是一份已在内存中的输入（web 上传、粘贴文本、stdin）。
type Document struct {
	Name string
	Data []byte
}

// Input 描述一次运行的全部输入。cause list 来源可以任意组合，文本按下列顺序拼接：
// CaseDocs -> CasePaths（目录按相对路径排序展开）-> BoardURL 上找到的 PDF。
type Input struct {
	CaseDocs  []Document
	CasePaths []string
	BoardURL  string

	WorkbookDocs  []Document
	WorkbookPaths []string
}

// HasCauseList 判断是否给出了任何 cause list 来源。
func (in Input) HasCauseList() bool {
	return len(in.CaseDocs) > 0 || len(in.CasePaths) > 0 || strings.TrimSpace(in.BoardURL) != ""
}

// HasWorkbook 判断是否给出了任何工作簿。
func (in Input) HasWorkbook() bool {
	return len(in.WorkbookDocs) > 0 || len(in.WorkbookPaths) > 0
}

func displayName(path string) string {
	return filepath.Base(filepath.Clean(path))
}
