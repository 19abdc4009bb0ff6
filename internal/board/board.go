// Package board 抓取法院 board 页面，定位并下载 cause list PDF。
//
// 约束：
// - Fetch/Download 不做重试/代理策略（由 httpx 统一实现）
// - FindLinks 是纯函数：相同 html + pageURL => 相同输出
package board

import (
	"bytes"
	"context"
	"errors"
	"net/http"
	"net/url"
	"path"
	"strings"

	"github.com/PuerkitoBio/goquery"

	"github.com/John-Robertt/causematch/internal/infra/cache"
	"github.com/John-Robertt/causematch/internal/infra/httpx"
)

// Link 是 board 页面上的一个 PDF 链接。
type Link struct {
	URL  string
	Text string
}

// Options 控制链接筛选。Keyword 为空时保留所有 PDF 链接；
// 非空时只保留链接文本或 href 中包含 Keyword（不区分大小写）的链接。
type Options struct {
	Keyword string
}

// Client 把 HTTP client 与下载缓存组合在一起；Cache 的零值表示不缓存。
type Client struct {
	HTTP  *http.Client
	Cache cache.Store
}

// Fetch 抓取 board 页面并返回其中的 PDF 链接（文档顺序，已去重）。
func (c Client) Fetch(ctx context.Context, pageURL string, opt Options) ([]Link, error) {
	html, err := c.get(ctx, cache.KindPage, pageURL)
	if err != nil {
		return nil, err
	}
	links, err := FindLinks(html, pageURL, opt)
	if err != nil {
		return nil, err
	}
	if len(links) == 0 {
		if reason := blockedReason(html); reason != "" {
			return nil, &BlockedError{URL: pageURL, Reason: reason}
		}
		return nil, &NoLinkError{URL: pageURL, Keyword: opt.Keyword}
	}
	return links, nil
}

// Download 下载一个 PDF；命中缓存时不发请求。
func (c Client) Download(ctx context.Context, pdfURL string) ([]byte, error) {
	return c.get(ctx, cache.KindPDF, pdfURL)
}

func (c Client) get(ctx context.Context, kind, rawURL string) ([]byte, error) {
	if c.HTTP == nil {
		return nil, errors.New("http client 不能为空")
	}
	// board 页面每天都会变：只有只读缓存（回放已归档的抓取结果）才读页面缓存；PDF 按 URL 不可变处理。
	if kind == cache.KindPDF || c.Cache.ReadOnly {
		if b, ok, err := c.Cache.Read(kind, rawURL); err == nil && ok {
			return b, nil
		}
	}

	b, err := fetchURL(ctx, c.HTTP, rawURL)
	if err != nil {
		return nil, err
	}
	if c.Cache.Enabled() && !c.Cache.ReadOnly {
		// 写缓存失败不影响本次结果。
		_ = c.Cache.Write(kind, rawURL, b)
	}
	return b, nil
}

func fetchURL(ctx context.Context, c *http.Client, rawURL string) ([]byte, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, rawURL, nil)
	if err != nil {
		return nil, err
	}
	resp, err := c.Do(req)
	if err != nil {
		return nil, err
	}
	defer resp.Body.Close()

	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		return nil, &HTTPStatusError{URL: rawURL, StatusCode: resp.StatusCode, Location: resp.Header.Get("Location")}
	}
	return httpx.ReadBody(resp.Body, httpx.DefaultMaxBody)
}

// FindLinks 解析 board 页面 HTML，返回指向 .pdf 的链接（相对地址按 pageURL 解析）。
func FindLinks(html []byte, pageURL string, opt Options) ([]Link, error) {
	base, err := url.Parse(strings.TrimSpace(pageURL))
	if err != nil {
		return nil, err
	}
	doc, err := goquery.NewDocumentFromReader(bytes.NewReader(html))
	if err != nil {
		return nil, err
	}

	// <base href> 会改变相对链接的解析基准。
	if href, ok := doc.Find("base[href]").First().Attr("href"); ok {
		if u, err := url.Parse(strings.TrimSpace(href)); err == nil {
			base = base.ResolveReference(u)
		}
	}

	kw := strings.ToLower(strings.TrimSpace(opt.Keyword))
	seen := map[string]struct{}{}
	var links []Link
	doc.Find("a[href]").Each(func(_ int, a *goquery.Selection) {
		href, _ := a.Attr("href")
		href = strings.TrimSpace(href)
		if href == "" || strings.HasPrefix(strings.ToLower(href), "javascript:") {
			return
		}
		u, err := url.Parse(href)
		if err != nil {
			return
		}
		abs := base.ResolveReference(u)
		if !strings.EqualFold(path.Ext(abs.Path), ".pdf") {
			return
		}
		text := normSpace(a.Text())
		if kw != "" && !strings.Contains(strings.ToLower(text), kw) && !strings.Contains(strings.ToLower(href), kw) {
			return
		}
		abs.Fragment = ""
		key := abs.String()
		if _, ok := seen[key]; ok {
			return
		}
		seen[key] = struct{}{}
		links = append(links, Link{URL: key, Text: text})
	})
	return links, nil
}

// blockedReason 识别常见的验证/拦截页特征；识别不到返回空串。
func blockedReason(html []byte) string {
	low := bytes.ToLower(html)
	switch {
	case bytes.Contains(low, []byte("captcha")):
		return "captcha"
	case bytes.Contains(low, []byte("cf-challenge")), bytes.Contains(low, []byte("just a moment")):
		return "challenge"
	case bytes.Contains(low, []byte("access denied")):
		return "access-denied"
	default:
		return ""
	}
}

func normSpace(s string) string {
	return strings.Join(strings.Fields(s), " ")
}
