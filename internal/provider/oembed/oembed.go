// Package oembed 通过 YouTube 的 oEmbed 端点获取视频元数据。
//
// oEmbed 不受 consent 页影响，但只提供标题、频道与缩略图。
package oembed

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"net/url"
	"strings"

	"github.com/John-Robertt/ytnote/internal/domain"
	providerx "github.com/John-Robertt/ytnote/internal/provider"
)

type Provider struct {
	// BaseURL 为空时使用 https://www.youtube.com。
	BaseURL string
}

func (Provider) Name() string { return "oembed" }

func (p Provider) baseURL() string {
	u := strings.TrimSpace(p.BaseURL)
	if u == "" {
		return "https://www.youtube.com"
	}
	return strings.TrimRight(u, "/")
}

// response 是 oEmbed JSON 里用得到的字段。
type response struct {
	Type         string `json:"type"`
	Title        string `json:"title"`
	AuthorName   string `json:"author_name"`
	AuthorURL    string `json:"author_url"`
	ProviderName string `json:"provider_name"`
	ThumbnailURL string `json:"thumbnail_url"`
}

// Fetch 请求 <base>/oembed?format=json&url=<watch URL>。
// 返回的 pageURL 是 watch 页面（来源标记），而不是 oEmbed 端点。
func (p Provider) Fetch(ctx context.Context, id domain.VideoID, c *http.Client) ([]byte, string, error) {
	if id == "" {
		return nil, "", errors.New("video id 不能为空")
	}
	watch := id.WatchURL()
	endpoint := p.baseURL() + "/oembed?format=json&url=" + url.QueryEscape(watch)

	b, _, err := providerx.FetchBody(ctx, c, endpoint)
	if err != nil {
		return nil, "", err
	}
	return b, watch, nil
}

func (Provider) Parse(id domain.VideoID, body []byte, pageURL string) (domain.VideoMeta, error) {
	if id == "" {
		return domain.VideoMeta{}, errors.New("video id 不能为空")
	}
	if len(body) == 0 {
		return domain.VideoMeta{}, errors.New("响应为空")
	}

	var r response
	if err := json.Unmarshal(body, &r); err != nil {
		return domain.VideoMeta{}, fmt.Errorf("oEmbed JSON 无效：%w", err)
	}
	title := strings.Join(strings.Fields(r.Title), " ")
	if title == "" {
		return domain.VideoMeta{}, errors.New("oEmbed 响应缺少 title")
	}

	return domain.VideoMeta{
		VideoID:      id,
		Title:        title,
		Channel:      strings.TrimSpace(r.AuthorName),
		ChannelURL:   strings.TrimSpace(r.AuthorURL),
		ThumbnailURL: thumbnailURL(id, r.ThumbnailURL),
		Website:      strings.TrimSpace(pageURL),
	}, nil
}

// thumbnailURL 优先使用响应里的地址；缺失时按固定规则拼 hqdefault。
func thumbnailURL(id domain.VideoID, fromResp string) string {
	if s := strings.TrimSpace(fromResp); s != "" {
		return s
	}
	return "https://i.ytimg.com/vi/" + string(id) + "/hqdefault.jpg"
}
