package board

import (
	"fmt"
	"strings"
)

// HTTPStatusError 表示站点返回了非 2xx 的 HTTP 状态码。
type HTTPStatusError struct {
	URL        string
	StatusCode int
	Location   string
}

func (e *HTTPStatusError) Error() string {
	if e == nil {
		return "HTTP status error"
	}
	loc := strings.TrimSpace(e.Location)
	if loc == "" {
		return fmt.Sprintf("HTTP %d url=%s", e.StatusCode, e.URL)
	}
	return fmt.Sprintf("HTTP %d url=%s location=%s", e.StatusCode, e.URL, loc)
}

// BlockedError 表示请求被引导到了“验证/拦截”页面（需要浏览器执行 JS 或人工验证）。
// 不尝试绕过：直接视为 fetch_failed，让用户改为上传 PDF 或配置代理。
type BlockedError struct {
	URL    string
	Reason string // 例如 "captcha"
}

func (e *BlockedError) Error() string {
	if e == nil {
		return "blocked"
	}
	if strings.TrimSpace(e.Reason) == "" {
		return "blocked: " + e.URL
	}
	return "blocked: " + strings.TrimSpace(e.Reason) + " url=" + e.URL
}

// NoLinkError 表示 board 页面可以访问，但没有找到任何 cause list PDF 链接。
type NoLinkError struct {
	URL     string
	Keyword string
}

func (e *NoLinkError) Error() string {
	if e.Keyword == "" {
		return fmt.Sprintf("board 页面 %s 中没有 PDF 链接", e.URL)
	}
	return fmt.Sprintf("board 页面 %s 中没有包含 %q 的 PDF 链接", e.URL, e.Keyword)
}
