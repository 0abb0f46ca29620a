// Package planner 读取目标目录现状并生成确定性的执行计划（不做任何写入）。
package planner

import (
	"fmt"
	"os"
	"path/filepath"
	"sort"
	"strings"

	"github.com/John-Robertt/ytnote/internal/domain"
	"github.com/John-Robertt/ytnote/internal/infra/fsx"
	"github.com/John-Robertt/ytnote/internal/vault"
)

// AttachmentsDir 是缩略图所在的子目录（相对笔记目录）。
const AttachmentsDir = "attachments"

// ThumbnailRel 返回缩略图相对笔记目录的路径（'/' 分隔，写入笔记嵌入链接）。
func ThumbnailRel(id domain.VideoID) string {
	return AttachmentsDir + "/" + string(id) + ".jpg"
}

// ReadDirState 读取 vault 内目录 dir 的现状（只做 Stat/ReadDir，不读文件内容）。
//
// - dir 不存在：返回 Exists=false 的空状态且不报错
// - dir 存在但不是目录：返回 *fsx.PathTypeConflictError
func ReadDirState(vaultRoot, dir string) (domain.DirState, error) {
	dir = vault.Normalize(dir)
	abs := filepath.Join(filepath.Clean(vaultRoot), filepath.FromSlash(dir))
	st := domain.DirState{
		Dir:           dir,
		AbsDir:        abs,
		ExistingNames: map[string]struct{}{},
	}

	fi, err := os.Stat(abs)
	if err != nil {
		if os.IsNotExist(err) {
			return st, nil
		}
		return domain.DirState{}, err
	}
	if !fi.IsDir() {
		return domain.DirState{}, &fsx.PathTypeConflictError{Path: abs, Want: "dir", Got: "file"}
	}
	st.Exists = true

	entries, err := os.ReadDir(abs)
	if err != nil {
		return domain.DirState{}, err
	}
	for _, e := range entries {
		st.ExistingNames[e.Name()] = struct{}{}
	}
	return st, nil
}

// PlanItem 基于 WorkItem + DirState + VaultIndex 生成计划。
//
// - vault 中已有同一 video_id 的笔记：ExistingNote 非空（执行阶段直接 skipped）
// - NeedMkdir：目录非根目录且当前不存在
func PlanItem(providerRequested string, item domain.WorkItem, st domain.DirState, idx domain.VaultIndex, thumbnail bool) (domain.NotePlan, error) {
	if item.VideoID == "" {
		return domain.NotePlan{}, fmt.Errorf("video id 不能为空")
	}
	// ID 会拼进缩略图路径与 frontmatter，只接受规范形态。
	if !item.VideoID.Valid() {
		return domain.NotePlan{}, fmt.Errorf("video id 不是规范形态：%q", item.VideoID)
	}
	existing, _ := idx.NoteFor(item.VideoID)
	return domain.NotePlan{
		VideoID:           item.VideoID,
		ProviderRequested: providerRequested,
		Dir:               st.Dir,
		NeedMkdir:         vault.ShouldCreateDirectory(st.Dir) && !st.Exists,
		State:             st,
		ExistingNote:      existing,
		NeedThumbnail:     thumbnail,
	}, nil
}

// AllocName 在 used 中为 name 分配一个不冲突的文件名：name、name__2、name__3 …（保留扩展名）。
// 比较不区分大小写（macOS/Windows 默认文件系统不区分）。
func AllocName(name string, used map[string]struct{}) string {
	folded := make(map[string]struct{}, len(used))
	for n := range used {
		folded[strings.ToLower(n)] = struct{}{}
	}
	taken := func(n string) bool {
		_, ok := folded[strings.ToLower(n)]
		return ok
	}

	if !taken(name) {
		return name
	}

	ext := filepath.Ext(name)
	base := strings.TrimSuffix(name, ext)

	for n := 2; ; n++ {
		cand := fmt.Sprintf("%s__%d%s", base, n, ext)
		if !taken(cand) {
			return cand
		}
	}
}

// SortPlans 让上层在需要时可显式保证稳定顺序（而不是依赖 map 遍历顺序）。
func SortPlans(plans []domain.NotePlan) {
	sort.Slice(plans, func(i, j int) bool { return plans[i].VideoID < plans[j].VideoID })
}
