// Package pdftext 从 PDF 中提取纯文本（逐页逐行，每行以换行结束）。
package pdftext

import (
	"bytes"
	"fmt"
	"io"
	"math"
	"os"
	"sort"
	"strings"

	"github.com/ledongthuc/pdf"

	"github.com/John-Robertt/causematch/internal/source"
)

// Read 解析 PDF 并返回全部页面文本。
// 底层库遇到畸形文档可能 panic，这里统一转为 *source.DecodeError。
func Read(r io.ReaderAt, size int64) (text string, err error) {
	defer func() {
		if p := recover(); p != nil {
			text, err = "", &source.DecodeError{Kind: "pdf", Err: fmt.Errorf("panic: %v", p)}
		}
	}()

	doc, err := pdf.NewReader(r, size)
	if err != nil {
		return "", &source.DecodeError{Kind: "pdf", Err: err}
	}

	var sb strings.Builder
	n := doc.NumPage()
	for i := 1; i <= n; i++ {
		page := doc.Page(i)
		if page.V.IsNull() {
			continue
		}
		// 按字形坐标重建行：多数 PDF 用 Td/Tm 换行，GetPlainText 只在 T* 处换行。
		for _, line := range pageLines(page.Content().Text) {
			sb.WriteString(line)
			sb.WriteString("\n")
		}
	}
	return source.NormalizeText(sb.String()), nil
}

type textLine struct {
	y, size float64
	glyphs  []pdf.Text
}

// pageLines 把字形按基线分行（自上而下），行内按 X 排序（同一 X 保持内容流顺序）。
// 空白字形或明显的水平间隔变成一个空格。
func pageLines(glyphs []pdf.Text) []string {
	var lines []*textLine
	for _, g := range glyphs {
		var ln *textLine
		for _, l := range lines {
			if math.Abs(l.y-g.Y) <= 0.5*fontSize(math.Max(math.Abs(l.size), math.Abs(g.FontSize))) {
				ln = l
				break
			}
		}
		if ln == nil {
			ln = &textLine{y: g.Y, size: g.FontSize}
			lines = append(lines, ln)
		}
		ln.glyphs = append(ln.glyphs, g)
	}
	sort.SliceStable(lines, func(i, j int) bool { return lines[i].y > lines[j].y })

	out := make([]string, 0, len(lines))
	for _, l := range lines {
		if s := joinGlyphs(l.glyphs); s != "" {
			out = append(out, s)
		}
	}
	return out
}

func joinGlyphs(glyphs []pdf.Text) string {
	sort.SliceStable(glyphs, func(i, j int) bool { return glyphs[i].X < glyphs[j].X })

	var (
		sb      strings.Builder
		prevEnd float64
		space   bool
	)
	for _, g := range glyphs {
		if strings.TrimSpace(g.S) == "" {
			space = true
			continue
		}
		if sb.Len() > 0 && (space || g.X-prevEnd > 0.15*fontSize(g.FontSize)) {
			sb.WriteByte(' ')
		}
		sb.WriteString(g.S)
		prevEnd = g.X + g.W
		space = false
	}
	return sb.String()
}

func fontSize(v float64) float64 {
	if v = math.Abs(v); v > 0 {
		return v
	}
	return 1
}

// ReadBytes 是内存数据的便捷形式（board 下载、web 上传）。
func ReadBytes(b []byte) (string, error) {
	return Read(bytes.NewReader(b), int64(len(b)))
}

// ReadFile 读取磁盘上的 PDF；解码错误会带上路径。
func ReadFile(path string) (string, error) {
	f, err := os.Open(path)
	if err != nil {
		return "", err
	}
	defer f.Close()

	fi, err := f.Stat()
	if err != nil {
		return "", err
	}
	text, err := Read(f, fi.Size())
	if de, ok := err.(*source.DecodeError); ok {
		de.Path = path
	}
	return text, err
}
