package scan

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/John-Robertt/ytnote/internal/domain"
)

const noteA = "---\nvideo_id: dQw4w9WgXcQ\ntitle: A\n---\n# A\n"

func TestScanVault_IndexesNotesAndDirs(t *testing.T) {
	root := t.TempDir()

	writeFile(t, filepath.Join(root, "Notes", "YouTube", "A.md"), noteA)
	writeFile(t, filepath.Join(root, "Notes", "plain.md"), "# no frontmatter\n")
	writeFile(t, filepath.Join(root, "Notes", "other.txt"), "---\nvideo_id: 9bZkp7q19f0\n---\n")
	writeFile(t, filepath.Join(root, "Root.md"), "---\nvideo_id: 9bZkp7q19f0\n---\n")
	writeFile(t, filepath.Join(root, "bad.md"), "---\nvideo_id: [oops\n---\n")
	writeFile(t, filepath.Join(root, "short.md"), "---\nvideo_id: abc\n---\n")
	mkdir(t, filepath.Join(root, "Transcripts"))

	idx, err := ScanVault(root, nil)
	if err != nil {
		t.Fatalf("不期望错误：%v", err)
	}

	wantDirs := []string{"Notes", "Notes/YouTube", "Transcripts"}
	if len(idx.Dirs) != len(wantDirs) {
		t.Fatalf("目录不符：got=%v want=%v", idx.Dirs, wantDirs)
	}
	for i := range wantDirs {
		if idx.Dirs[i] != wantDirs[i] {
			t.Fatalf("目录不符：got=%v want=%v", idx.Dirs, wantDirs)
		}
	}

	if p, ok := idx.NoteFor("dQw4w9WgXcQ"); !ok || p != "Notes/YouTube/A.md" {
		t.Fatalf("期望索引到 Notes/YouTube/A.md，实际 %q ok=%v", p, ok)
	}
	if p, ok := idx.NoteFor("9bZkp7q19f0"); !ok || p != "Root.md" {
		t.Fatalf("期望只索引 .md 文件（Root.md），实际 %q ok=%v", p, ok)
	}
	if len(idx.Notes) != 2 {
		t.Fatalf("非法 frontmatter / 非规范 id 不应进入索引：%v", idx.Notes)
	}
}

func TestScanVault_AlwaysExcluded(t *testing.T) {
	root := t.TempDir()

	writeFile(t, filepath.Join(root, ".ytnote", "cache", "x.md"), noteA)
	writeFile(t, filepath.Join(root, ".obsidian", "templates", "t.md"), noteA)
	writeFile(t, filepath.Join(root, ".trash", "old.md"), noteA)
	mkdir(t, filepath.Join(root, ".git", "objects"))

	idx, err := ScanVault(root, nil)
	if err != nil {
		t.Fatalf("不期望错误：%v", err)
	}
	if len(idx.Dirs) != 0 || len(idx.Notes) != 0 {
		t.Fatalf("永久排除目录不应出现在索引中：dirs=%v notes=%v", idx.Dirs, idx.Notes)
	}
}

func TestScanVault_ExcludeDirsFromConfig(t *testing.T) {
	root := t.TempDir()

	writeFile(t, filepath.Join(root, "Archive", "Old", "A.md"), noteA)
	writeFile(t, filepath.Join(root, "Notes", "B.md"), "---\nvideo_id: 9bZkp7q19f0\n---\n")

	idx, err := ScanVault(root, []string{`/Archive\`, "  "})
	if err != nil {
		t.Fatalf("不期望错误：%v", err)
	}
	if _, ok := idx.NoteFor("dQw4w9WgXcQ"); ok {
		t.Fatalf("Archive 应被排除")
	}
	if len(idx.Dirs) != 1 || idx.Dirs[0] != "Notes" {
		t.Fatalf("目录不符：%v", idx.Dirs)
	}
}

func TestScanVault_DuplicateVideoKeepsFirst(t *testing.T) {
	root := t.TempDir()
	writeFile(t, filepath.Join(root, "b", "copy.md"), noteA)
	writeFile(t, filepath.Join(root, "a", "orig.md"), noteA)

	idx, err := ScanVault(root, nil)
	if err != nil {
		t.Fatalf("不期望错误：%v", err)
	}
	if p := idx.Notes[domain.VideoID("dQw4w9WgXcQ")]; p != "a/orig.md" {
		t.Fatalf("期望保留字典序第一个，实际 %q", p)
	}
}

func TestScanVault_MissingRoot(t *testing.T) {
	if _, err := ScanVault(filepath.Join(t.TempDir(), "nope"), nil); err == nil {
		t.Fatalf("vault 不存在时期望错误")
	}
}

func writeFile(t *testing.T, path, content string) {
	t.Helper()
	mkdir(t, filepath.Dir(path))
	if err := os.WriteFile(path, []byte(content), 0o644); err != nil {
		t.Fatalf("写入文件失败：%v", err)
	}
}

func mkdir(t *testing.T, dir string) {
	t.Helper()
	if err := os.MkdirAll(dir, 0o755); err != nil {
		t.Fatalf("创建目录失败：%v", err)
	}
}

func TestScanVault_ExcludeAbsoluteInsideVault(t *testing.T) {
	root := t.TempDir()
	writeFile(t, filepath.Join(root, "Archive", "A.md"), noteA)

	idx, err := ScanVault(root, []string{filepath.Join(root, "Archive")})
	if err != nil {
		t.Fatalf("不期望错误：%v", err)
	}
	if _, ok := idx.NoteFor("dQw4w9WgXcQ"); ok {
		t.Fatalf("vault 内的绝对路径也应被排除")
	}
}

func TestScanVault_NonCanonicalVideoIDNotIndexed(t *testing.T) {
	root := t.TempDir()
	writeFile(t, filepath.Join(root, "Notes", "Bad.md"), "---\nvideo_id: x/../escaped\n---\n")
	writeFile(t, filepath.Join(root, "Notes", "Good.md"), noteA)

	idx, err := ScanVault(root, nil)
	if err != nil {
		t.Fatalf("不期望错误：%v", err)
	}
	if len(idx.Notes) != 1 {
		t.Fatalf("只应索引规范 ID：%v", idx.Notes)
	}
	if _, ok := idx.NoteFor("x/../escaped"); ok {
		t.Fatalf("非规范 ID 不应进入索引")
	}
}
