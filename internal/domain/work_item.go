package domain

// WorkItem 是按视频 ID 聚合后的工作单元。
// 同一视频可能被粘贴多次（不同 URL 形态），InputIdx 只保存输入下标，避免复制字符串。
type WorkItem struct {
	VideoID  VideoID
	InputIdx []int
}
