// Package vault 负责笔记库内目标目录的解析与规范化。
//
// 这里的路径都是 vault 内的相对路径（DirectoryPath）：'/' 分隔，无首尾分隔符，"" 表示根目录。
// 包内全部是纯函数，不碰文件系统；落盘由调用方负责。
package vault

import "strings"

// Selection 表示用户对“存到哪里”的意图。
//
// 两种取值必须严格区分：
// - UseActiveDocumentDirectory()：跟随当前活动文档所在目录（零值即此语义）
// - UseExplicitDirectory(p)：使用显式目录；p=="" 表示“显式选择根目录”
type Selection struct {
	explicit bool
	path     string
}

// UseActiveDocumentDirectory 返回“跟随活动文档目录”的选择。
func UseActiveDocumentDirectory() Selection {
	return Selection{}
}

// UseExplicitDirectory 返回显式目录选择。path 原样保存，解析时才规范化。
func UseExplicitDirectory(path string) Selection {
	return Selection{explicit: true, path: path}
}

// Explicit 返回显式目录（未规范化）；跟随活动文档时 ok=false。
func (s Selection) Explicit() (path string, ok bool) {
	return s.path, s.explicit
}

func (s Selection) String() string {
	if !s.explicit {
		return "<active document>"
	}
	if n := Normalize(s.path); n != "" {
		return n
	}
	return "<root>"
}

// ResolveActiveDirectory 把选择解析为最终目录。
//
//   - 跟随活动文档：取 activeDocumentPath 最后一个 '/' 之前的前缀；没有 '/'（文档在根目录）则为 ""
//   - 显式目录：返回 Normalize(path)（"" 仍是根目录）
func ResolveActiveDirectory(sel Selection, activeDocumentPath string) string {
	if p, ok := sel.Explicit(); ok {
		return Normalize(p)
	}
	i := strings.LastIndex(activeDocumentPath, "/")
	if i < 0 {
		return ""
	}
	return activeDocumentPath[:i]
}

// BuildTargetPath 拼接目录与文件名。directory 为空时直接返回 filename。
// filename 视为不透明字符串：这里不做转义/清洗（由 note.FileName 负责）。
func BuildTargetPath(directory, filename string) string {
	if directory != "" {
		return directory + "/" + filename
	}
	return filename
}

// Normalize 规范化目录路径：
// 1) 去掉首尾空白
// 2) 去掉所有前导/尾随 '/'
// 3) 把 '\' 统一替换为 '/'
//
// 顺序固定："C:\Users\Videos" -> "C:/Users/Videos"。
// 单趟处理对 "\Notes"、"/ x" 这类输入会留下新的首尾分隔符/空白，
// 因此重复执行直到结果不再变化，保证 Normalize(Normalize(x)) == Normalize(x)。
// 例如 "\Notes" 单趟得到 "/Notes"，这里返回 "Notes"。
// 每趟要么缩短字符串，要么减少 '\'，一定会收敛。
func Normalize(path string) string {
	for {
		next := normalizeOnce(path)
		if next == path {
			return next
		}
		path = next
	}
}

func normalizeOnce(path string) string {
	path = strings.TrimSpace(path)
	path = strings.Trim(path, "/")
	return strings.ReplaceAll(path, `\`, "/")
}

// ShouldCreateDirectory 报告写入前是否需要创建目录：去空白后非空即需要。
// 空串/纯空白表示写入根目录，无需创建。
func ShouldCreateDirectory(directory string) bool {
	return strings.TrimSpace(directory) != ""
}
