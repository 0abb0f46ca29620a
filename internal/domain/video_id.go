package domain

import (
	"regexp"
	"strconv"
	"strings"
)

// VideoIDLen 是当前观测到的视频 ID 长度。
// 注意：这是对现状的描述，不是平台承诺；裸 ID 规则与缓存键校验都只依赖这一处。
const VideoIDLen = 11

// VideoID 是视频的唯一主键（不透明字符串，大小写敏感，按字节相等比较）。
//
// 约束：只能由 videoid.Extract 产生；产生后不修改。
type VideoID string

var videoIDRE = regexp.MustCompile(`^[A-Za-z0-9_-]{` + strconv.Itoa(VideoIDLen) + `}$`)

// ParseVideoID 校验并解析规范形态的 ID（恰好 VideoIDLen 位 [A-Za-z0-9_-]）。
// 输入会先去掉首尾空白。
func ParseVideoID(s string) (VideoID, bool) {
	s = strings.TrimSpace(s)
	if !videoIDRE.MatchString(s) {
		return "", false
	}
	return VideoID(s), true
}

// Valid 报告 id 是否为规范形态。
// URL 形态提取出的候选不做二次校验，调用方可以用它判断是否值得发起网络请求。
func (id VideoID) Valid() bool {
	return videoIDRE.MatchString(string(id))
}

// WatchURL 返回该视频的规范观看地址（写入笔记 frontmatter 的 url 字段）。
func (id VideoID) WatchURL() string {
	return "https://www.youtube.com/watch?v=" + string(id)
}
