package cache

import (
	"errors"
	"os"
	"path/filepath"
	"testing"

	"github.com/John-Robertt/ytnote/internal/domain"
)

const testID = domain.VideoID("dQw4w9WgXcQ")

func TestStore_ReadWriteProviderCache(t *testing.T) {
	root := t.TempDir()

	s := New(root, false)
	if err := s.WriteProviderHTML("youtube", testID, []byte("<html/>")); err != nil {
		t.Fatalf("不期望错误：%v", err)
	}

	b, ok, err := s.ReadProviderHTML("youtube", testID)
	if err != nil {
		t.Fatalf("不期望错误：%v", err)
	}
	if !ok || string(b) != "<html/>" {
		t.Fatalf("期望命中缓存，实际 ok=%v 内容=%q", ok, string(b))
	}

	path, err := s.ProviderHTMLPath("youtube", testID)
	if err != nil {
		t.Fatalf("不期望错误：%v", err)
	}
	want := filepath.Join(root, ".ytnote", "cache", "providers", "youtube", "dQw4w9WgXcQ.html")
	if path != want {
		t.Fatalf("路径不符：got=%q want=%q", path, want)
	}
	if _, err := os.Stat(path); err != nil {
		t.Fatalf("期望文件存在，但 Stat 失败：%v", err)
	}

	// 新 Store（L1 为空）仍能从磁盘读到。
	b, ok, err = New(root, true).ReadProviderHTML("youtube", testID)
	if err != nil || !ok || string(b) != "<html/>" {
		t.Fatalf("L2 读取失败：ok=%v err=%v 内容=%q", ok, err, string(b))
	}
}

func TestStore_L1ServesAfterFileRemoved(t *testing.T) {
	root := t.TempDir()
	s := New(root, false)
	if err := s.WriteProviderJSON("oembed", testID, []byte(`{"title":"x"}`)); err != nil {
		t.Fatalf("不期望错误：%v", err)
	}
	path, _ := s.ProviderJSONPath("oembed", testID)
	if err := os.Remove(path); err != nil {
		t.Fatalf("删除失败：%v", err)
	}

	b, ok, err := s.ReadProviderJSON("oembed", testID)
	if err != nil || !ok || string(b) != `{"title":"x"}` {
		t.Fatalf("期望 L1 命中，实际 ok=%v err=%v", ok, err)
	}
}

func TestStore_Miss(t *testing.T) {
	_, ok, err := New(t.TempDir(), true).ReadProviderJSON("oembed", testID)
	if err != nil || ok {
		t.Fatalf("期望未命中且无错误，实际 ok=%v err=%v", ok, err)
	}
}

func TestStore_ReadOnlyRejectWrite(t *testing.T) {
	root := t.TempDir()

	s := New(root, true)
	err := s.WriteProviderJSON("oembed", testID, []byte(`{"ok":true}`))
	if !errors.Is(err, ErrReadOnly) {
		t.Fatalf("期望 ErrReadOnly，实际：%v", err)
	}

	path, err := s.ProviderJSONPath("oembed", testID)
	if err != nil {
		t.Fatalf("不期望错误：%v", err)
	}
	if _, err := os.Stat(path); !os.IsNotExist(err) {
		t.Fatalf("期望文件不存在，但 Stat err=%v", err)
	}
}

func TestStore_RejectsUnsafeNames(t *testing.T) {
	s := New(t.TempDir(), false)
	if _, err := s.ProviderHTMLPath("../x", testID); err == nil {
		t.Fatalf("非法 provider 应报错")
	}
	if _, err := s.ProviderHTMLPath("youtube", domain.VideoID("../../etc")); err == nil {
		t.Fatalf("非法 id 应报错")
	}
}
