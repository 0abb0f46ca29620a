package domain

// NotePlan 是对某个视频的最小执行计划。
//
// 文件名依赖抓取到的标题，因此不在规划阶段确定；规划只负责目录与占用情况。
type NotePlan struct {
	VideoID           VideoID
	ProviderRequested string

	// Dir 是规范化后的目标目录（"" 表示 vault 根目录）。
	Dir string
	// NeedMkdir 为 true 表示写入前必须创建目录。
	NeedMkdir bool

	State DirState

	// ExistingNote 非空表示 vault 中已有该视频的笔记（相对路径），执行时直接 skipped。
	ExistingNote string

	NeedThumbnail bool
}
