package main

import (
	"encoding/json"
	"fmt"
	"io"
	"net/url"
	"path/filepath"
	"strings"
	"sync"
	"time"

	"github.com/John-Robertt/causematch/internal/app/run"
	"github.com/John-Robertt/causematch/internal/config"
	"github.com/John-Robertt/causematch/internal/domain"
)

var _ run.Observer = (*progressUI)(nil)

// progressUI 是交互终端下的简洁进度输出。
//
// - 所有过程信息写到 stderr（或 fallback 到 stdout），不污染 stdout 的 JSON 输出
// - 事件驱动：run 层只发事件，CLI 决定如何展示
// - keepalive：board 下载较慢时也会定期输出一行
type progressUI struct {
	w io.Writer

	mu          sync.Mutex
	startedAt   time.Time
	lastPrinted time.Time

	total int
	done  int
	ok    int
	fail  int

	keepaliveThreshold time.Duration
	tickerInterval     time.Duration

	stopCh        chan struct{}
	tickerStarted bool
}

func newProgressUI(w io.Writer) *progressUI {
	return &progressUI{
		w:                  w,
		keepaliveThreshold: 6 * time.Second,
		tickerInterval:     2 * time.Second,
	}
}

func (p *progressUI) OnStart(eff config.EffectiveConfig) {
	now := time.Now()

	p.mu.Lock()
	defer p.mu.Unlock()
	if p.startedAt.IsZero() {
		p.startedAt = now
	}

	fmt.Fprintf(p.w, "[%s] causematch run\n", now.Format("15:04:05"))
	fmt.Fprintln(p.w, "配置（生效）:")
	if eff.ConfigFile != "" {
		fmt.Fprintf(p.w, "  config: %s\n", eff.ConfigFile)
	}
	fmt.Fprintf(p.w, "  rules: brackets=%s arising=%s\n", keepDrop(eff.KeepBrackets), keepDrop(eff.KeepArising))
	if eff.BoardURL != "" {
		fmt.Fprintf(p.w, "  board: %s\n", truncate(eff.BoardURL, 120))
		if eff.LinkKeyword != "" {
			fmt.Fprintf(p.w, "  link_keyword: %s\n", eff.LinkKeyword)
		}
	}
	fmt.Fprintf(p.w, "  proxy: %s\n", formatProxy(eff.ProxyURL))
	fmt.Fprintf(p.w, "  cache: %s\n", formatCache(eff))
	fmt.Fprintf(p.w, "  exclude_dirs: %s + 固定排除 cache/\n", formatStringListJSON(eff.ExcludeDirs))
	fmt.Fprintln(p.w)

	p.lastPrinted = time.Now()
}

func (p *progressUI) OnPhaseDone(name string, fields map[string]any, dur time.Duration) {
	p.mu.Lock()
	defer p.mu.Unlock()

	switch name {
	case "plan":
		p.total = intField(fields, "sources")
		fmt.Fprintf(p.w, "来源: sources=%d (%s)\n", p.total, formatShortDuration(dur))
		if p.total > 0 && !p.tickerStarted {
			p.startTickerLocked()
		}
	case "read":
		fmt.Fprintf(p.w, "读取: sources=%d failed=%d chars=%d (%s)\n",
			intField(fields, "sources"), intField(fields, "failed"), intField(fields, "chars"), formatShortDuration(dur),
		)
	case "extract":
		fmt.Fprintf(p.w, "提取: cases=%d (%s)\n", intField(fields, "cases"), formatShortDuration(dur))
	case "workbooks":
		fmt.Fprintf(p.w, "工作簿: workbooks=%d sheets=%d (%s)\n",
			intField(fields, "workbooks"), intField(fields, "sheets"), formatShortDuration(dur),
		)
	case "match":
		fmt.Fprintf(p.w, "匹配: sheets=%d skipped=%d matched=%d (%s)\n",
			intField(fields, "sheets"), intField(fields, "skipped"), intField(fields, "matched"), formatShortDuration(dur),
		)
	case "export":
		fmt.Fprintf(p.w, "导出: rows=%d (%s)\n", intField(fields, "rows"), formatShortDuration(dur))
	default:
		fmt.Fprintf(p.w, "%s (%s)\n", name, formatShortDuration(dur))
	}
	p.lastPrinted = time.Now()
}

func (p *progressUI) OnSourceDone(done, total int, res domain.SourceResult, dur time.Duration) {
	p.mu.Lock()
	defer p.mu.Unlock()

	p.done = done
	p.total = total
	name := displaySource(res)
	if res.Status == domain.SourceFailed {
		p.fail++
		fmt.Fprintf(p.w, "[%d/%d] %s FAIL %s: %s (%s)\n",
			done, total, name, res.ErrorCode, truncate(res.ErrorMsg, 160), formatShortDuration(dur),
		)
	} else {
		p.ok++
		fmt.Fprintf(p.w, "[%d/%d] %s OK kind=%s (%s)\n", done, total, name, res.Kind, formatShortDuration(dur))
	}
	p.lastPrinted = time.Now()

	// 最后一个来源完成：停止 ticker，避免结束打印后又冒出 keepalive。
	if p.tickerStarted && p.done >= p.total {
		close(p.stopCh)
		p.tickerStarted = false
	}
}

func (p *progressUI) OnSheetDone(res domain.SheetResult) {
	p.mu.Lock()
	defer p.mu.Unlock()

	switch res.Status {
	case domain.SheetSkipped:
		fmt.Fprintf(p.w, "  %s/%s SKIP %s\n", res.Workbook, res.Name, res.Reason)
	default:
		fmt.Fprintf(p.w, "  %s/%s %s case=%q year=%q(%s=%s) rows=%d matched=%d\n",
			res.Workbook, res.Name, strings.ToUpper(res.Status), res.CaseColumn, res.YearColumn,
			res.YearSource, res.Year, res.Rows, res.Matched,
		)
	}
	p.lastPrinted = time.Now()
}

func (p *progressUI) startTickerLocked() {
	p.stopCh = make(chan struct{})
	p.tickerStarted = true

	interval := p.tickerInterval
	if interval <= 0 {
		interval = 2 * time.Second
	}
	threshold := p.keepaliveThreshold
	if threshold <= 0 {
		threshold = 6 * time.Second
	}
	stop := p.stopCh

	go func() {
		t := time.NewTicker(interval)
		defer t.Stop()

		for {
			select {
			case <-t.C:
				p.mu.Lock()
				if p.total > 0 && p.done >= p.total {
					p.mu.Unlock()
					return
				}
				if time.Since(p.lastPrinted) > threshold {
					fmt.Fprintf(p.w, "进度: done=%d/%d ok=%d fail=%d elapsed=%s\n",
						p.done, p.total, p.ok, p.fail, formatElapsed(time.Since(p.startedAt)),
					)
					p.lastPrinted = time.Now()
				}
				p.mu.Unlock()
			case <-stop:
				return
			}
		}
	}()
}

func displaySource(res domain.SourceResult) string {
	if res.Kind == domain.SourceKindBoard || strings.Contains(res.Path, "://") {
		return truncate(res.Path, 100)
	}
	if res.Path == "" {
		return "<unknown>"
	}
	return filepath.Base(res.Path)
}

func keepDrop(keep bool) string {
	if keep {
		return "keep"
	}
	return "drop"
}

func formatCache(eff config.EffectiveConfig) string {
	if eff.CacheDir == "" {
		return "off"
	}
	if eff.CacheReadOnly {
		return eff.CacheDir + " (read-only)"
	}
	return eff.CacheDir
}

func formatProxy(raw string) string {
	raw = strings.TrimSpace(raw)
	if raw == "" {
		return "off"
	}
	u, err := url.Parse(raw)
	if err != nil || u.Scheme == "" || u.Host == "" {
		return "on (" + truncate(raw, 120) + ")"
	}
	auth := "off"
	if u.User != nil {
		auth = "on"
	}
	return fmt.Sprintf("on (%s://%s, auth=%s)", u.Scheme, u.Host, auth)
}

func formatStringListJSON(xs []string) string {
	// json.Marshal(nil slice) => "null"；对用户更友好的是 "[]"
	if xs == nil {
		xs = []string{}
	}
	b, err := json.Marshal(xs)
	if err != nil {
		return "[]"
	}
	return string(b)
}

func truncate(s string, max int) string {
	s = strings.TrimSpace(s)
	if max <= 0 || len(s) <= max {
		return s
	}
	if max <= 3 {
		return s[:max]
	}
	return s[:max-3] + "..."
}

func formatShortDuration(d time.Duration) string {
	if d < 0 {
		d = 0
	}
	return fmt.Sprintf("%.1fs", d.Seconds())
}

func formatElapsed(d time.Duration) string {
	if d < 0 {
		d = 0
	}
	sec := int(d.Seconds())
	return fmt.Sprintf("%02d:%02d:%02d", sec/3600, (sec%3600)/60, sec%60)
}

func intField(fields map[string]any, key string) int {
	switch x := fields[key].(type) {
	case int:
		return x
	case int64:
		return int(x)
	default:
		return 0
	}
}
