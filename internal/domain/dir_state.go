package domain

// DirState 描述目标目录的现状（只做 stat/ReadDir，不读内容）。
type DirState struct {
	// Dir 是 vault 内的相对目录（DirectoryPath，"" 表示根目录）。
	Dir string
	// AbsDir 是磁盘上的绝对路径。
	AbsDir string

	Exists bool

	// ExistingNames 是目录内现有文件名集合，用于 O(1) 冲突判定。
	ExistingNames map[string]struct{}
}
