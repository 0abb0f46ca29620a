package domain

// Unmatched 描述无法解析出视频 ID 的输入。
// 用于 report 的 unmatched 条目。
type Unmatched struct {
	Input string
	Index int // 输入在原始列表中的下标（从 0 开始）
}
