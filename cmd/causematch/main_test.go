package main

import (
	"bytes"
	"encoding/json"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/John-Robertt/causematch/internal/domain"
)

type result struct {
	code   int
	stdout string
	stderr string
}

func runCLI(t *testing.T, stdin string, args ...string) result {
	t.Helper()
	var stdout, stderr bytes.Buffer
	a := &app{stdin: strings.NewReader(stdin), stdout: &stdout, stderr: &stderr}
	code := a.execute(args)
	return result{code: code, stdout: stdout.String(), stderr: stderr.String()}
}

func writeFile(t *testing.T, path, content string) {
	t.Helper()
	require.NoError(t, os.MkdirAll(filepath.Dir(path), 0o755))
	require.NoError(t, os.WriteFile(path, []byte(content), 0o644))
}

func decodeCases(t *testing.T, s string) []string {
	t.Helper()
	var got []string
	require.NoError(t, json.Unmarshal([]byte(s), &got), "stdout 不是 JSON 数组：%q", s)
	return got
}

func decodeReport(t *testing.T, b []byte) domain.RunReport {
	t.Helper()
	var rr domain.RunReport
	require.NoError(t, json.Unmarshal(b, &rr), "不是合法的 RunReport JSON：%q", b)
	return rr
}

func TestCLI_ExtractFileNoTTY_JSONArray(t *testing.T) {
	dir := t.TempDir()
	chdir(t, dir)
	writeFile(t, filepath.Join(dir, "list.txt"), "1. WP/12/2023 (WP/1/2020)\n2. WP/3/2024\nARISING FROM WP/4/2019\n")

	r := runCLI(t, "", "extract", "list.txt")
	require.Equal(t, 0, r.code, "stderr=%s", r.stderr)
	assert.Equal(t, []string{"WP/12/2023", "WP/3/2024"}, decodeCases(t, r.stdout))
}

func TestCLI_ExtractStdinAndKeepFlags(t *testing.T) {
	chdir(t, t.TempDir())
	text := "WP/1/2024 (WP/2/2024)\nARISING FROM WP/3/2024"

	r := runCLI(t, text, "extract", "-")
	assert.Equal(t, []string{"WP/1/2024"}, decodeCases(t, r.stdout))

	r = runCLI(t, text, "extract", "--keep-brackets", "--keep-arising")
	assert.Len(t, decodeCases(t, r.stdout), 3, "关闭排除规则后应有 3 个案号")
}

func TestCLI_ExtractNormalized(t *testing.T) {
	chdir(t, t.TempDir())
	r := runCLI(t, "A  (x)\nARISING FROM WP/1/2020\nWP /  9 / 2024", "extract", "--normalized")
	require.Equal(t, 0, r.code)
	assert.Equal(t, "A WP / 9 / 2024", strings.TrimSpace(r.stdout))
}

func TestCLI_ExtractNormalizedPerSource(t *testing.T) {
	dir := t.TempDir()
	chdir(t, dir)
	writeFile(t, filepath.Join(dir, "a.txt"), "WP/1/2024 (see")
	writeFile(t, filepath.Join(dir, "b.txt"), "WP/2/2024 (SR)")

	r := runCLI(t, "", "extract", "--normalized", "a.txt", "b.txt")
	require.Equal(t, 0, r.code, "stderr=%s", r.stderr)
	assert.Equal(t, "WP/1/2024 (see\nWP/2/2024\n", r.stdout)
}

func TestCLI_ExtractBadPDF_Exit1(t *testing.T) {
	dir := t.TempDir()
	chdir(t, dir)
	writeFile(t, filepath.Join(dir, "bad.pdf"), "not a pdf")
	writeFile(t, filepath.Join(dir, "good.txt"), "WP/5/2024")

	r := runCLI(t, "", "extract", "bad.pdf", "good.txt")
	require.Equal(t, 1, r.code)
	assert.Equal(t, []string{"WP/5/2024"}, decodeCases(t, r.stdout), "好的来源仍应输出")
	assert.Contains(t, r.stderr, domain.ErrCodeDecodeFailed)
}

func TestCLI_RunNoTTY_StdoutOnlyRunReportJSON(t *testing.T) {
	dir := t.TempDir()
	chdir(t, dir)
	writeFile(t, filepath.Join(dir, "lists", "a.txt"), "WP/12/2023\nWP/13/2023")
	writeFile(t, filepath.Join(dir, "records.csv"), "Case No,Year,Party\n12,2023,A\n13,,B\n14,2023,C\n")

	r := runCLI(t, "", "run", "--cases", "lists", "--workbook", "records.csv", "--out", "out/matched.csv")
	require.Equal(t, 0, r.code, "stderr=%s", r.stderr)

	rr := decodeReport(t, []byte(r.stdout))
	assert.Equal(t, 2, rr.Summary.Matched)
	assert.Equal(t, 2, rr.Summary.Cases)
	assert.NotContains(t, r.stdout, "配置（生效）", "stdout 不应包含配置输出")
	assert.NotContains(t, r.stdout, "进度:", "stdout 不应包含进度输出")
	assert.Contains(t, r.stderr, "完成：cases=2")
	assert.FileExists(t, filepath.Join(dir, "out", "matched.csv"))
}

func TestCLI_RunWritesReportToCacheDir(t *testing.T) {
	dir := t.TempDir()
	chdir(t, dir)
	writeFile(t, filepath.Join(dir, "a.txt"), "WP/1/2024")
	writeFile(t, filepath.Join(dir, "r.csv"), "Case No,Year\n1,2024\n")

	r := runCLI(t, "", "run", "--cases", "a.txt", "--workbook", "r.csv", "--cache-dir", ".cache")
	require.Equal(t, 0, r.code, "stderr=%s", r.stderr)

	b, err := os.ReadFile(filepath.Join(dir, ".cache", reportFileName))
	require.NoError(t, err, "应写出 report.json")
	rr := decodeReport(t, b)
	assert.NotEmpty(t, rr.RunID)
}

func TestCLI_RunUsageErrors(t *testing.T) {
	dir := t.TempDir()
	chdir(t, dir)
	writeFile(t, filepath.Join(dir, "a.txt"), "WP/1/2024")

	cases := [][]string{
		{"run", "--workbook", "r.csv"},
		{"run", "--cases", "a.txt"},
		{"run", "--bogus"},
		{"nope"},
	}
	for _, args := range cases {
		r := runCLI(t, "", args...)
		assert.Equal(t, 2, r.code, "%v（stderr=%s）", args, r.stderr)
	}
}

func TestCLI_RunConfigNotFound(t *testing.T) {
	chdir(t, t.TempDir())
	r := runCLI(t, "", "--config", "missing.yaml", "run", "--cases", "a.txt", "--workbook", "r.csv")
	require.Equal(t, 1, r.code)

	rr := decodeReport(t, []byte(r.stdout))
	require.Len(t, rr.Sources, 1)
	assert.Equal(t, domain.ErrCodeConfigNotFound, rr.Sources[0].ErrorCode)
	assert.NotEmpty(t, rr.RunID, "配置错误的 RunReport 也必须带 run_id")
}

func TestCLI_RunBadWorkbook_Exit1(t *testing.T) {
	dir := t.TempDir()
	chdir(t, dir)
	writeFile(t, filepath.Join(dir, "a.txt"), "WP/1/2024")
	writeFile(t, filepath.Join(dir, "broken.xlsx"), "zzz")

	r := runCLI(t, "", "run", "--cases", "a.txt", "--workbook", "broken.xlsx")
	assert.Equal(t, 1, r.code)
}

// chdir 等价于 Go 1.24 的 t.Chdir：切换工作目录并在测试结束时恢复。
func chdir(t *testing.T, dir string) {
	t.Helper()
	prev, err := os.Getwd()
	require.NoError(t, err)
	require.NoError(t, os.Chdir(dir))
	t.Cleanup(func() { _ = os.Chdir(prev) })
}
