package domain

// CauseListFile 是目录扫描得到的一份 cause list 文件（只做 stat，不读内容）。
//
// AbsPath 是 clean + absolute；Kind 是 SourceKindPDF 或 SourceKindText。
type CauseListFile struct {
	AbsPath string
	RelPath string
	Kind    string
	Size    int64
}
