// Package scan 遍历 vault，建立“已有笔记（按 video_id）+ 已有目录”的只读索引。
package scan

import (
	"io"
	"io/fs"
	"log/slog"
	"os"
	"path/filepath"
	"sort"
	"strings"

	"github.com/John-Robertt/ytnote/internal/domain"
	"github.com/John-Robertt/ytnote/internal/note"
	"github.com/John-Robertt/ytnote/internal/vault"
)

// AlwaysExcluded 是 vault 根目录下永久排除的目录（工具私有目录与编辑器/版本控制目录）。
var AlwaysExcluded = []string{".ytnote", ".obsidian", ".git", ".trash"}

// frontmatter 只在文件开头；读取上限足以覆盖正常的 YAML 头部。
const maxHeadBytes = 64 << 10

// ScanVault 扫描 root 下的目录与 Markdown 笔记，并应用目录排除规则。
//
// 规则（硬约束）：
// - 永久排除：AlwaysExcluded（相对 root）
// - excludeDirs：来自配置文件，视为相对 root 的路径（"/Archive" 也是 vault 内的 Archive）；
//   只有落在 root 之内的绝对路径才按绝对路径处理
// - 只读取 .md 文件开头的 frontmatter；没有 video_id 或 video_id 非法的笔记不进入索引
// - 同一 video_id 出现在多个笔记时，按相对路径字典序保留第一个
func ScanVault(root string, excludeDirs []string) (domain.VaultIndex, error) {
	root = filepath.Clean(root)
	excluded := buildExcluded(root, excludeDirs)

	idx := domain.VaultIndex{
		Root:  root,
		Dirs:  make([]string, 0, 32),
		Notes: make(map[domain.VideoID]string, 64),
	}

	err := filepath.WalkDir(root, func(path string, d fs.DirEntry, walkErr error) error {
		if walkErr != nil {
			return walkErr
		}

		// 统一的排除判断：目录用 SkipDir，文件则直接跳过。
		if isExcluded(path, excluded) {
			if d.IsDir() {
				return filepath.SkipDir
			}
			return nil
		}

		rel, err := filepath.Rel(root, path)
		if err != nil {
			return err
		}
		rel = filepath.ToSlash(rel)

		if d.IsDir() {
			if rel != "." {
				idx.Dirs = append(idx.Dirs, vault.Normalize(rel))
			}
			return nil
		}

		if !d.Type().IsRegular() || !strings.EqualFold(filepath.Ext(d.Name()), note.Ext) {
			return nil
		}

		id, ok, err := readVideoID(path)
		if err != nil {
			// 单个笔记读取/解析失败不影响整体扫描。
			slog.Debug("跳过无法解析的笔记", "path", rel, "err", err)
			return nil
		}
		if !ok {
			return nil
		}
		if _, dup := idx.Notes[id]; !dup {
			idx.Notes[id] = rel
		}
		return nil
	})
	if err != nil {
		return domain.VaultIndex{}, err
	}

	// WalkDir 已按字典序遍历；这里再排一次，保证输出与文件系统无关。
	sort.Strings(idx.Dirs)
	return idx, nil
}

func readVideoID(path string) (domain.VideoID, bool, error) {
	f, err := os.Open(path)
	if err != nil {
		return "", false, err
	}
	defer f.Close()

	head, err := io.ReadAll(io.LimitReader(f, maxHeadBytes))
	if err != nil {
		return "", false, err
	}
	fm, ok, err := note.ParseFrontmatter(head)
	if err != nil || !ok {
		return "", false, err
	}
	id, ok := domain.ParseVideoID(fm.VideoID)
	return id, ok, nil
}

func buildExcluded(root string, excludeDirs []string) []string {
	excluded := make([]string, 0, len(AlwaysExcluded)+len(excludeDirs))
	for _, x := range AlwaysExcluded {
		excluded = append(excluded, filepath.Join(root, x))
	}

	for _, x := range excludeDirs {
		x = strings.TrimSpace(x)
		if x == "" {
			continue
		}
		// vault 内的绝对路径原样使用；其余一律按 vault 内相对路径处理，
		// 允许使用 '\' 或首尾 '/'（"/Archive\" 等价于 "Archive"）。
		if filepath.IsAbs(x) && isUnder(filepath.Clean(x), root) {
			excluded = append(excluded, filepath.Clean(x))
			continue
		}
		x = vault.Normalize(x)
		if x == "" {
			continue
		}
		excluded = append(excluded, filepath.Join(root, filepath.FromSlash(x)))
	}

	sort.Strings(excluded)
	return excluded
}

func isExcluded(path string, excluded []string) bool {
	path = filepath.Clean(path)
	for _, base := range excluded {
		if isUnder(path, base) {
			return true
		}
	}
	return false
}

func isUnder(path, base string) bool {
	if path == base {
		return true
	}
	sep := string(filepath.Separator)
	return strings.HasPrefix(path, base+sep)
}
