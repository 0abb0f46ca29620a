package domain

// VaultIndex 是一次扫描 vault 得到的索引（只读快照）。
//
// 不变量：
// - Dirs 中的路径均为规范化的 DirectoryPath，已排序，不含 ""（根目录隐式存在）
// - Notes 以 frontmatter 中的 video_id 为键，值为笔记的相对路径（'/' 分隔）
type VaultIndex struct {
	Root  string
	Dirs  []string
	Notes map[VideoID]string
}

// NoteFor 返回 vault 中已存在的该视频笔记路径。
func (x VaultIndex) NoteFor(id VideoID) (string, bool) {
	if x.Notes == nil {
		return "", false
	}
	p, ok := x.Notes[id]
	return p, ok
}
