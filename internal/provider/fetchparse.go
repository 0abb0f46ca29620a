package provider

import (
	"context"
	"fmt"
	"log/slog"
	"net/http"
	"strings"

	"github.com/John-Robertt/ytnote/internal/domain"
)

const (
	StageFetch = "fetch"
	StageParse = "parse"
	StageOK    = "ok"
)

// Attempt 记录一次 provider 尝试（用于解释 fallback/降级原因）。
type Attempt struct {
	Provider string // provider name（小写）
	Stage    string // StageFetch / StageParse / StageOK
	Err      error  // nil when Stage==StageOK
}

// Result 是一次成功抓取+解析的产出。
type Result struct {
	Meta         domain.VideoMeta
	ProviderUsed string
	// Website 是来源页面 URL（同时写入 Meta.Website）。
	Website string
	// Body 是原始响应（watch 页 HTML 或 oEmbed JSON），用于写缓存。
	Body []byte
	// Attempts 按顺序记录每个 provider 的结果，最后一项是 StageOK。
	Attempts []Attempt
}

// FetchParse 按“requested -> fallback”顺序抓取并解析元数据。
// 全部失败时返回最后一个 *Error（Result.Attempts 仍然有效）。
func FetchParse(ctx context.Context, reg Registry, providerRequested string, id domain.VideoID, c *http.Client) (Result, error) {
	providerRequested = strings.ToLower(strings.TrimSpace(providerRequested))
	if providerRequested == "" {
		return Result{}, fmt.Errorf("provider_requested 不能为空")
	}
	if id == "" {
		return Result{}, fmt.Errorf("video id 不能为空")
	}

	order, err := FallbackOrder(providerRequested)
	if err != nil {
		return Result{}, err
	}

	var (
		res     Result
		lastErr error
	)
	for _, name := range order {
		if err := ctx.Err(); err != nil {
			return res, err
		}
		p, ok := reg.Get(name)
		if !ok {
			lastErr = fmt.Errorf("provider 未注册：%q", name)
			res.Attempts = append(res.Attempts, Attempt{Provider: name, Stage: StageFetch, Err: lastErr})
			continue
		}

		body, pageURL, ferr := p.Fetch(ctx, id, c)
		if ferr != nil {
			lastErr = &Error{Provider: name, Stage: StageFetch, Err: ferr}
			res.Attempts = append(res.Attempts, Attempt{Provider: name, Stage: StageFetch, Err: ferr})
			slog.Debug("provider fetch 失败", "provider", name, "video_id", id, "err", ferr)
			continue
		}

		m, perr := p.Parse(id, body, pageURL)
		if perr != nil {
			lastErr = &Error{Provider: name, Stage: StageParse, Err: perr}
			res.Attempts = append(res.Attempts, Attempt{Provider: name, Stage: StageParse, Err: perr})
			slog.Debug("provider parse 失败", "provider", name, "video_id", id, "err", perr)
			continue
		}

		m.VideoID = id
		m.Website = pageURL
		res.Meta = m
		res.ProviderUsed = name
		res.Website = pageURL
		res.Body = body
		res.Attempts = append(res.Attempts, Attempt{Provider: name, Stage: StageOK})
		return res, nil
	}
	if lastErr == nil {
		lastErr = fmt.Errorf("无可用 provider")
	}
	return res, lastErr
}

// Error 是 provider 阶段的可追溯错误。
// 上层据此把失败归类为 fetch_failed / parse_failed，并写入 report。
type Error struct {
	Provider string // provider name（小写）
	Stage    string // StageFetch 或 StageParse
	Err      error
}

func (e *Error) Error() string {
	return fmt.Sprintf("provider=%s stage=%s: %v", e.Provider, e.Stage, e.Err)
}

func (e *Error) Unwrap() error { return e.Err }

// FallbackOrder 返回 requested 对应的尝试顺序。
// watch 页字段更全但容易被 consent/限流拦截；oEmbed 稳定但字段少，两者互为后备。
func FallbackOrder(requested string) ([]string, error) {
	switch strings.ToLower(strings.TrimSpace(requested)) {
	case "youtube":
		return []string{"youtube", "oembed"}, nil
	case "oembed":
		return []string{"oembed", "youtube"}, nil
	default:
		return nil, fmt.Errorf("未知 provider：%q", requested)
	}
}
