// Package videoid 从用户粘贴的任意字符串中提取视频 ID。
//
// 纯函数：不做网络请求，不校验视频是否真实存在。
package videoid

import (
	"regexp"

	"github.com/John-Robertt/ytnote/internal/domain"
)

// 支持的 URL 形态：
//
//	<host>/watch?v=<id>
//	<host>/embed/<id>
//	youtu.be/<id>
//
// host 只允许显式枚举的子域（www/m/mobile/music），不用通配，避免误匹配其它域名。
// host 前必须是输入开头或非域名字符，所以 notyoutube.com / evil.youtube.com 都不会命中。
// ID 段到第一个 '&'、换行、'?'、'#' 或字符串结尾为止；截断后本身就是干净的，不再二次校验。
var urlRE = regexp.MustCompile(`(?:^|[^A-Za-z0-9.-])(?:(?:(?:www|m|mobile|music)\.)?youtube\.com/(?:watch\?v=|embed/)|youtu\.be/)([^&\n?#]+)`)

// Extract 按顺序尝试（先命中者生效）：
// 1) URL 形态：返回标记后的 ID 段
// 2) 裸 ID：整个去空白的输入恰好是 11 位 [A-Za-z0-9_-]
// 3) 都不命中：返回 ("", false)
//
// URL 优先：合法 URL 里也可能出现 11 位片段，先按 URL 解析才能取到正确的段。
// 不会失败、不会 panic；大小写原样保留。
func Extract(input string) (domain.VideoID, bool) {
	if m := urlRE.FindStringSubmatch(input); len(m) > 1 && m[1] != "" {
		return domain.VideoID(m[1]), true
	}

	// 裸 ID：整个（去空白后的）输入必须恰好是规范形态，不做子串搜索。
	return domain.ParseVideoID(input)
}
