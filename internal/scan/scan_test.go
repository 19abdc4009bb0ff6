package scan

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/John-Robertt/causematch/internal/domain"
)

func TestCauseLists_KindsAndOrder(t *testing.T) {
	root := t.TempDir()

	touch(t, filepath.Join(root, "b", "court2.PDF"))
	touch(t, filepath.Join(root, "a", "court1.txt"))
	touch(t, filepath.Join(root, "a", "records.xlsx"))
	touch(t, filepath.Join(root, "a", ".court1.txt.tmp-123"))

	got, err := CauseLists(root, nil)
	require.NoError(t, err)
	require.Len(t, got, 2)

	assert.Equal(t, "a/court1.txt", got[0].RelPath)
	assert.Equal(t, domain.SourceKindText, got[0].Kind)
	assert.Equal(t, "b/court2.PDF", got[1].RelPath)
	assert.Equal(t, domain.SourceKindPDF, got[1].Kind)
	assert.True(t, filepath.IsAbs(got[0].AbsPath), "AbsPath 必须是绝对路径：%q", got[0].AbsPath)
}

func TestCauseLists_ExcludeCache(t *testing.T) {
	root := t.TempDir()
	touch(t, filepath.Join(root, "cache", "board", "x.pdf"))
	touch(t, filepath.Join(root, "list.pdf"))

	got, err := CauseLists(root, nil)
	require.NoError(t, err)
	require.Len(t, got, 1, "cache 目录应被排除")
	assert.Equal(t, "list.pdf", got[0].RelPath)
}

func TestCauseLists_ExcludeDirsFromConfig(t *testing.T) {
	root := t.TempDir()
	touch(t, filepath.Join(root, "archive", "old.pdf"))
	touch(t, filepath.Join(root, "today", "new.pdf"))

	got, err := CauseLists(root, []string{"archive", "  "})
	require.NoError(t, err)
	require.Len(t, got, 1, "archive 应被排除")
	assert.Equal(t, "today/new.pdf", got[0].RelPath)
}

func TestCauseLists_MissingRoot(t *testing.T) {
	_, err := CauseLists(filepath.Join(t.TempDir(), "nope"), nil)
	assert.Error(t, err)
}

func TestKindOf(t *testing.T) {
	cases := map[string]string{
		"a.pdf":  domain.SourceKindPDF,
		"a.Txt":  domain.SourceKindText,
		"a.xlsx": "",
		"a":      "",
	}
	for in, want := range cases {
		assert.Equal(t, want, KindOf(in), "KindOf(%q)", in)
	}
}

func touch(t *testing.T, path string) {
	t.Helper()
	require.NoError(t, os.MkdirAll(filepath.Dir(path), 0o755))
	require.NoError(t, os.WriteFile(path, []byte("x"), 0o644))
}
