package planner

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/John-Robertt/ytnote/internal/domain"
	"github.com/John-Robertt/ytnote/internal/infra/fsx"
)

const testID = domain.VideoID("dQw4w9WgXcQ")

func TestReadDirState_Existing(t *testing.T) {
	root := t.TempDir()
	dir := filepath.Join(root, "Notes", "YouTube")
	if err := os.MkdirAll(dir, 0o755); err != nil {
		t.Fatalf("创建目录失败：%v", err)
	}
	write(t, filepath.Join(dir, "Video Title.md"))

	st, err := ReadDirState(root, `/Notes\YouTube/`)
	if err != nil {
		t.Fatalf("不期望错误：%v", err)
	}
	if !st.Exists || st.Dir != "Notes/YouTube" || st.AbsDir != dir {
		t.Fatalf("状态不符：%+v", st)
	}
	if _, ok := st.ExistingNames["Video Title.md"]; !ok {
		t.Fatalf("期望记录已有文件名：%v", st.ExistingNames)
	}
}

func TestReadDirState_MissingAndRoot(t *testing.T) {
	root := t.TempDir()

	st, err := ReadDirState(root, "Transcripts")
	if err != nil {
		t.Fatalf("不期望错误：%v", err)
	}
	if st.Exists || len(st.ExistingNames) != 0 {
		t.Fatalf("不存在的目录应返回空状态：%+v", st)
	}

	st, err = ReadDirState(root, "")
	if err != nil {
		t.Fatalf("不期望错误：%v", err)
	}
	if !st.Exists || st.AbsDir != filepath.Clean(root) {
		t.Fatalf("根目录状态不符：%+v", st)
	}
}

func TestReadDirState_FileInTheWay(t *testing.T) {
	root := t.TempDir()
	write(t, filepath.Join(root, "Transcripts"))

	_, err := ReadDirState(root, "Transcripts")
	if !fsx.IsPathTypeConflict(err) {
		t.Fatalf("期望 PathTypeConflictError，实际：%v", err)
	}
}

func TestPlanItem(t *testing.T) {
	item := domain.WorkItem{VideoID: testID, InputIdx: []int{0}}

	// 目录不存在：需要创建。
	p, err := PlanItem("youtube", item, domain.DirState{Dir: "Transcripts"}, domain.VaultIndex{}, true)
	if err != nil {
		t.Fatalf("不期望错误：%v", err)
	}
	if !p.NeedMkdir || !p.NeedThumbnail || p.ExistingNote != "" || p.ProviderRequested != "youtube" {
		t.Fatalf("计划不符：%+v", p)
	}

	// 根目录永远不需要创建。
	p, _ = PlanItem("youtube", item, domain.DirState{Dir: ""}, domain.VaultIndex{}, false)
	if p.NeedMkdir {
		t.Fatalf("根目录不应 NeedMkdir：%+v", p)
	}

	// vault 中已有该视频笔记。
	idx := domain.VaultIndex{Notes: map[domain.VideoID]string{testID: "Old/Note.md"}}
	p, _ = PlanItem("youtube", item, domain.DirState{Dir: "Transcripts", Exists: true}, idx, false)
	if p.ExistingNote != "Old/Note.md" || p.NeedMkdir {
		t.Fatalf("计划不符：%+v", p)
	}

	if _, err := PlanItem("youtube", domain.WorkItem{}, domain.DirState{}, domain.VaultIndex{}, false); err == nil {
		t.Fatalf("空 video id 应报错")
	}
	bad := domain.WorkItem{VideoID: "x/../../escaped", InputIdx: []int{0}}
	if _, err := PlanItem("youtube", bad, domain.DirState{Dir: "Transcripts"}, domain.VaultIndex{}, true); err == nil {
		t.Fatalf("非规范 video id 应报错")
	}
}

func TestAllocName(t *testing.T) {
	used := map[string]struct{}{
		"Video Title.md":    {},
		"video title__2.md": {},
	}
	if got := AllocName("Fresh.md", used); got != "Fresh.md" {
		t.Fatalf("未占用时应原样返回，实际 %q", got)
	}
	if got := AllocName("Video Title.md", used); got != "Video Title__3.md" {
		t.Fatalf("期望 Video Title__3.md，实际 %q", got)
	}
	if got := AllocName("VIDEO TITLE.md", used); got != "VIDEO TITLE__3.md" {
		t.Fatalf("比较应不区分大小写，实际 %q", got)
	}
}

func TestThumbnailRel(t *testing.T) {
	if got := ThumbnailRel(testID); got != "attachments/dQw4w9WgXcQ.jpg" {
		t.Fatalf("实际 %q", got)
	}
}

func write(t *testing.T, p string) {
	t.Helper()
	if err := os.WriteFile(p, []byte("x"), 0o644); err != nil {
		t.Fatalf("写入失败：%v", err)
	}
}
