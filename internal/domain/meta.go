package domain

// VideoMeta 是 provider 解析得到的结构化元数据（最小可用集）。
//
// 约束：
// - Website 必须写入最终成功 provider 的来源 URL（也是来源标记）
// - 字段缺失允许为空，但结构必须稳定
type VideoMeta struct {
	VideoID VideoID `json:"video_id"`
	Title   string  `json:"title"`

	Channel    string `json:"channel"`
	ChannelURL string `json:"channel_url"`
	Published  string `json:"published"` // ISO date, e.g. "2009-10-25"

	Description  string   `json:"description"`
	Tags         []string `json:"tags"`
	ThumbnailURL string   `json:"thumbnail_url"`

	Website string `json:"website"`
}
