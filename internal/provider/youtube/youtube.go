// Package youtube 从 YouTube watch 页面的 HTML 元信息中解析视频元数据。
package youtube

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"net/http"
	"net/url"
	"strings"
	"time"

	"github.com/PuerkitoBio/goquery"

	"github.com/John-Robertt/ytnote/internal/domain"
	providerx "github.com/John-Robertt/ytnote/internal/provider"
)

// Provider 实现 watch 页面的抓取与 HTML 解析。
//
// 约束：
// - 只读取服务端渲染的 <meta>/<link>（og:*、itemprop），不执行 JS、不解析 ytInitialData
// - Fetch/Parse 不做缓存/重试/限速（由上层统一控制）
// - Parse 是纯函数（依赖输入 html + pageURL）
type Provider struct {
	// BaseURL 为空时使用 https://www.youtube.com（测试用 httptest 地址替换）。
	BaseURL string
}

func (Provider) Name() string { return "youtube" }

func (p Provider) baseURL() string {
	u := strings.TrimSpace(p.BaseURL)
	if u == "" {
		return "https://www.youtube.com"
	}
	return strings.TrimRight(u, "/")
}

// Fetch 抓取 <base>/watch?v=<id>。
// 被重定向到 consent 页（EU 同意页）时返回 *provider.BlockedError。
func (p Provider) Fetch(ctx context.Context, id domain.VideoID, c *http.Client) ([]byte, string, error) {
	if id == "" {
		return nil, "", errors.New("video id 不能为空")
	}

	pageURL := p.baseURL() + "/watch?v=" + url.QueryEscape(string(id))
	b, finalURL, err := providerx.FetchBody(ctx, c, pageURL)
	if err != nil {
		return nil, "", err
	}
	if isConsent(finalURL, b) {
		return nil, "", &providerx.BlockedError{URL: finalURL, Reason: "consent"}
	}
	return b, pageURL, nil
}

func isConsent(finalURL string, body []byte) bool {
	if u, err := url.Parse(finalURL); err == nil && strings.HasPrefix(strings.ToLower(u.Host), "consent.") {
		return true
	}
	return bytes.Contains(body, []byte(`action="https://consent.youtube.com`))
}

// Parse 把 watch 页面 HTML 解析为 VideoMeta。
func (Provider) Parse(id domain.VideoID, html []byte, pageURL string) (domain.VideoMeta, error) {
	if id == "" {
		return domain.VideoMeta{}, errors.New("video id 不能为空")
	}
	if len(html) == 0 {
		return domain.VideoMeta{}, errors.New("html 为空")
	}

	doc, err := goquery.NewDocumentFromReader(bytes.NewReader(html))
	if err != nil {
		return domain.VideoMeta{}, err
	}

	// 页面声明的 id 必须与请求一致：不可用视频会被渲染成首页/错误页。
	if got := attr(doc, `meta[itemprop='identifier']`, "content"); got != "" && got != string(id) {
		return domain.VideoMeta{}, fmt.Errorf("页面 video id 不一致：期望 %s，实际 %s", id, got)
	}

	title := firstNonEmpty(
		attr(doc, `meta[property='og:title']`, "content"),
		attr(doc, `meta[name='title']`, "content"),
		pageTitle(doc),
	)
	title = normSpace(title)
	if title == "" {
		return domain.VideoMeta{}, errors.New("未找到视频标题（视频可能不可用，或返回了非视频页面）")
	}

	author := doc.Find(`span[itemprop='author']`).First()
	channel := normSpace(attrSel(author.Find(`link[itemprop='name']`), "content"))
	channelURL := attrSel(author.Find(`link[itemprop='url']`), "href")

	published := dateOnly(firstNonEmpty(
		attr(doc, `meta[itemprop='datePublished']`, "content"),
		attr(doc, `meta[itemprop='uploadDate']`, "content"),
	))

	description := firstNonEmpty(
		attr(doc, `meta[property='og:description']`, "content"),
		attr(doc, `meta[name='description']`, "content"),
	)

	var tags []string
	doc.Find(`meta[property='og:video:tag']`).Each(func(_ int, s *goquery.Selection) {
		tags = append(tags, attrSel(s, "content"))
	})
	if len(tags) == 0 {
		tags = strings.Split(attr(doc, `meta[name='keywords']`, "content"), ",")
	}

	thumb := firstNonEmpty(
		attr(doc, `meta[property='og:image']`, "content"),
		attr(doc, `link[itemprop='thumbnailUrl']`, "href"),
	)

	return domain.VideoMeta{
		VideoID:      id,
		Title:        title,
		Channel:      channel,
		ChannelURL:   channelURL,
		Published:    published,
		Description:  strings.TrimSpace(description),
		Tags:         normList(tags),
		ThumbnailURL: thumb,
		Website:      strings.TrimSpace(pageURL),
	}, nil
}

// pageTitle 返回去掉 " - YouTube" 后缀的 <title>；只剩站点名时返回 ""。
func pageTitle(doc *goquery.Document) string {
	t := normSpace(doc.Find("head title").First().Text())
	t = strings.TrimSpace(strings.TrimSuffix(t, "- YouTube"))
	if t == "YouTube" {
		return ""
	}
	return t
}

func attr(doc *goquery.Document, sel, name string) string {
	return attrSel(doc.Find(sel).First(), name)
}

func attrSel(s *goquery.Selection, name string) string {
	v, _ := s.Attr(name)
	return strings.TrimSpace(v)
}

func firstNonEmpty(vs ...string) string {
	for _, v := range vs {
		if strings.TrimSpace(v) != "" {
			return strings.TrimSpace(v)
		}
	}
	return ""
}

// dateOnly 把 "2009-10-24T23:57:33-07:00" 或 "2009-10-24" 统一为 "2009-10-24"。
func dateOnly(s string) string {
	s = strings.TrimSpace(s)
	if s == "" {
		return ""
	}
	if t, err := time.Parse(time.RFC3339, s); err == nil {
		return t.Format("2006-01-02")
	}
	if len(s) >= 10 {
		if t, err := time.Parse("2006-01-02", s[:10]); err == nil {
			return t.Format("2006-01-02")
		}
	}
	return ""
}

func normSpace(s string) string { return strings.Join(strings.Fields(s), " ") }

func normList(in []string) []string {
	m := make(map[string]struct{}, len(in))
	out := make([]string, 0, len(in))
	for _, s := range in {
		s = normSpace(s)
		if s == "" {
			continue
		}
		if _, ok := m[s]; ok {
			continue
		}
		m[s] = struct{}{}
		out = append(out, s)
	}
	return out
}
