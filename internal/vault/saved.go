package vault

import (
	"errors"
	"fmt"
)

// ErrIndexOutOfRange 是 IndexOutOfRangeError 的哨兵，便于 errors.Is 判断。
var ErrIndexOutOfRange = errors.New("index out of range")

// IndexOutOfRangeError 表示下标不在 [0, Len) 内。
type IndexOutOfRangeError struct {
	Index int
	Len   int
}

func (e *IndexOutOfRangeError) Error() string {
	return fmt.Sprintf("下标越界：%d（有效范围 [0, %d)）", e.Index, e.Len)
}

func (e *IndexOutOfRangeError) Is(target error) bool { return target == ErrIndexOutOfRange }

// SavedDirs 是用户保存的目录快捷列表。
//
// 不变量：
// - 元素均为 Normalize 后的路径
// - 按插入顺序排列，无重复（规范化后比较）
//
// Add/RemoveAt 都返回新切片，不修改接收者的底层数组；持久化由 config 负责。
type SavedDirs []string

// NormalizeList 把持久化读出的原始列表规范化并去重（保留首次出现的位置）。
func NormalizeList(paths []string) SavedDirs {
	var out SavedDirs
	for _, p := range paths {
		out = out.Add(p)
	}
	return out
}

// Contains 报告 path 规范化后是否已在列表中。
func (d SavedDirs) Contains(path string) bool {
	return d.index(Normalize(path)) >= 0
}

func (d SavedDirs) index(normalized string) int {
	for i, x := range d {
		if x == normalized {
			return i
		}
	}
	return -1
}

// Add 规范化 path 并追加到末尾；已存在则原样返回（长度不变）。
func (d SavedDirs) Add(path string) SavedDirs {
	n := Normalize(path)
	out := make(SavedDirs, 0, len(d)+1)
	out = append(out, d...)
	if d.index(n) >= 0 {
		return out
	}
	return append(out, n)
}

// RemoveAt 删除下标 index 处的元素，其余元素保持顺序。
// index 不在 [0, len) 内时返回 *IndexOutOfRangeError。
func (d SavedDirs) RemoveAt(index int) (SavedDirs, error) {
	if index < 0 || index >= len(d) {
		return nil, &IndexOutOfRangeError{Index: index, Len: len(d)}
	}
	out := make(SavedDirs, 0, len(d)-1)
	out = append(out, d[:index]...)
	return append(out, d[index+1:]...), nil
}

// At 返回下标 index 处的目录（用于 --dir-index）。
func (d SavedDirs) At(index int) (string, error) {
	if index < 0 || index >= len(d) {
		return "", &IndexOutOfRangeError{Index: index, Len: len(d)}
	}
	return d[index], nil
}
