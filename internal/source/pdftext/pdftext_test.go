package pdftext

import (
	"bytes"
	"fmt"
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/John-Robertt/causematch/internal/causelist"
	"github.com/John-Robertt/causematch/internal/domain"
	"github.com/John-Robertt/causematch/internal/source"
)

// buildPDF 生成只有一页的最小 PDF（Helvetica / WinAnsi），content 是页面内容流。
func buildPDF(t *testing.T, content string) []byte {
	t.Helper()
	objs := []string{
		"<< /Type /Catalog /Pages 2 0 R >>",
		"<< /Type /Pages /Kids [3 0 R] /Count 1 >>",
		"<< /Type /Page /Parent 2 0 R /MediaBox [0 0 612 792] /Resources << /Font << /F1 5 0 R >> >> /Contents 4 0 R >>",
		fmt.Sprintf("<< /Length %d >>\nstream\n%s\nendstream", len(content), content),
		"<< /Type /Font /Subtype /Type1 /BaseFont /Helvetica /Encoding /WinAnsiEncoding >>",
	}

	var buf bytes.Buffer
	buf.WriteString("%PDF-1.4\n")
	offsets := make([]int, len(objs))
	for i, o := range objs {
		offsets[i] = buf.Len()
		fmt.Fprintf(&buf, "%d 0 obj\n%s\nendobj\n", i+1, o)
	}
	xref := buf.Len()
	fmt.Fprintf(&buf, "xref\n0 %d\n0000000000 65535 f \n", len(objs)+1)
	for _, off := range offsets {
		fmt.Fprintf(&buf, "%010d 00000 n \n", off)
	}
	fmt.Fprintf(&buf, "trailer\n<< /Size %d /Root 1 0 R >>\nstartxref\n%d\n%%%%EOF\n", len(objs)+1, xref)
	return buf.Bytes()
}

func TestReadBytes_LinesFollowTextPositions(t *testing.T) {
	content := "BT /F1 12 Tf 72 720 Td (1. WP/100/2024 Ramesh vs State) Tj " +
		"0 -16 Td (ARISING FROM WP/6/2019) Tj " +
		"0 -16 Td (2. WP/200/2024 Sita vs Union) Tj ET\n" +
		"BT /F1 12 Tf 72 650 Td (WP/300/2024) Tj 200 0 Td (Kiran) Tj ET\n" +
		"BT /F1 12 Tf 1 0 0 1 72 600 Tm (3. WP/400/2024) Tj ET"

	text, err := ReadBytes(buildPDF(t, content))
	require.NoError(t, err)
	assert.Equal(t, "1. WP/100/2024 Ramesh vs State\n"+
		"ARISING FROM WP/6/2019\n"+
		"2. WP/200/2024 Sita vs Union\n"+
		"WP/300/2024 Kiran\n"+
		"3. WP/400/2024\n", text)

	// 行边界保住后，ARISING FROM 只丢弃它自己那一行。
	assert.Equal(t,
		[]domain.CaseID{"WP/100/2024", "WP/200/2024", "WP/300/2024", "WP/400/2024"},
		causelist.Extract(text))
}

func TestReadFile_Content(t *testing.T) {
	p := filepath.Join(t.TempDir(), "list.pdf")
	require.NoError(t, os.WriteFile(p, buildPDF(t, "BT /F1 10 Tf 50 700 Td (WP / 7 / 2023) Tj ET"), 0o644))

	text, err := ReadFile(p)
	require.NoError(t, err)
	assert.Equal(t, "WP / 7 / 2023\n", text)
}

func TestReadBytes_NotAPDF(t *testing.T) {
	_, err := ReadBytes([]byte("this is plain text, not a pdf"))
	require.Error(t, err)
	assert.True(t, source.IsDecode(err))
}

func TestReadBytes_Empty(t *testing.T) {
	_, err := ReadBytes(nil)
	require.Error(t, err)
	assert.True(t, source.IsDecode(err))
}

func TestReadFile_DecodeErrorCarriesPath(t *testing.T) {
	p := filepath.Join(t.TempDir(), "broken.pdf")
	require.NoError(t, os.WriteFile(p, []byte("%PDF-1.4\ngarbage"), 0o644))

	_, err := ReadFile(p)
	require.Error(t, err)

	var de *source.DecodeError
	require.ErrorAs(t, err, &de)
	assert.Equal(t, p, de.Path)
	assert.Equal(t, "pdf", de.Kind)
}

func TestReadFile_Missing(t *testing.T) {
	_, err := ReadFile(filepath.Join(t.TempDir(), "nope.pdf"))
	require.Error(t, err)
	assert.False(t, source.IsDecode(err))
}
