package main

import (
	"bytes"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"

	"github.com/John-Robertt/causematch/internal/config"
	"github.com/John-Robertt/causematch/internal/domain"
)

func TestProgressUI_Lines(t *testing.T) {
	var buf bytes.Buffer
	p := newProgressUI(&buf)

	p.OnStart(config.EffectiveConfig{ProxyURL: "http://user:pw@proxy.local:8080"})
	p.OnPhaseDone("plan", map[string]any{"sources": 2}, time.Second)
	p.OnSourceDone(1, 2, domain.SourceResult{Path: "/x/a.pdf", Kind: domain.SourceKindPDF, Status: domain.SourceOK}, 0)
	p.OnSourceDone(2, 2, domain.SourceResult{Path: "/x/b.pdf", Kind: domain.SourceKindPDF, Status: domain.SourceFailed, ErrorCode: domain.ErrCodeDecodeFailed, ErrorMsg: "bad"}, 0)
	p.OnSheetDone(domain.SheetResult{Workbook: "r.xlsx", Name: "2023", Status: domain.SheetSkipped, Reason: domain.ReasonNoYear})

	out := buf.String()
	for _, want := range []string{
		"proxy: on (http://proxy.local:8080, auth=on)",
		"rules: brackets=drop arising=drop",
		"[1/2] a.pdf OK kind=pdf",
		"[2/2] b.pdf FAIL decode_failed: bad",
		"r.xlsx/2023 SKIP no_year",
	} {
		assert.Contains(t, out, want)
	}
	assert.NotContains(t, out, "pw", "不应输出代理密码")
	assert.False(t, p.tickerStarted, "全部来源完成后 ticker 应停止")
}

func TestTruncate(t *testing.T) {
	assert.Equal(t, "ab...", truncate("abcdefgh", 5))
	assert.Equal(t, "abc", truncate("abc", 5))
}
