// Package provider 定义视频元数据来源的统一接口，并实现 requested -> fallback 的抓取链路。
package provider

import (
	"context"
	"net/http"

	"github.com/John-Robertt/ytnote/internal/domain"
)

// Provider 把“站点变化”限制在 provider 包内部；核心流程只依赖统一接口与稳定的 VideoMeta。
//
// 约束：
// - Fetch 不做缓存、不做重试、不做限速（这些由 httpx/cache 层统一实现）
// - Parse 必须是纯函数：相同输入 => 相同输出
// - pageURL 是来源页面（写入笔记 source 与 report 追溯）
type Provider interface {
	Name() string
	Fetch(ctx context.Context, id domain.VideoID, c *http.Client) (body []byte, pageURL string, err error)
	Parse(id domain.VideoID, body []byte, pageURL string) (domain.VideoMeta, error)
}
