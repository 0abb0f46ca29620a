// Package cache 提供 provider 响应（watch 页面 HTML / oEmbed JSON）的两级缓存：
// 进程内 LRU（L1）+ vault 内 .ytnote/cache/ 文件（L2）。
package cache

import (
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"regexp"
	"strings"

	lru "github.com/hashicorp/golang-lru/v2"

	"github.com/John-Robertt/ytnote/internal/domain"
	"github.com/John-Robertt/ytnote/internal/infra/fsx"
)

// DirName 是 vault 内工具私有目录名（scan 会排除它）。
const DirName = ".ytnote"

const defaultL1Size = 256

// Store 提供 <vault>/.ytnote/cache/ 下的文件缓存读写。
//
// 约束：
// - dry-run：只允许读（ReadOnly=true）；L1 仍会记录读到的内容
// - apply：允许写（ReadOnly=false）
type Store struct {
	Root     string // vault 根目录
	ReadOnly bool

	l1 *lru.Cache[string, []byte]
}

var ErrReadOnly = errors.New("cache: read-only")

func New(root string, readOnly bool) Store {
	l1, _ := lru.New[string, []byte](defaultL1Size)
	return Store{
		Root:     filepath.Clean(strings.TrimSpace(root)),
		ReadOnly: readOnly,
		l1:       l1,
	}
}

// ProviderHTMLPath 返回 provider HTML 缓存的绝对路径。
func (s Store) ProviderHTMLPath(provider string, id domain.VideoID) (string, error) {
	return s.providerPath(provider, id, ".html")
}

// ProviderJSONPath 返回 provider JSON 缓存的绝对路径。
func (s Store) ProviderJSONPath(provider string, id domain.VideoID) (string, error) {
	return s.providerPath(provider, id, ".json")
}

func (s Store) providerPath(provider string, id domain.VideoID, ext string) (string, error) {
	p, err := cleanProvider(provider)
	if err != nil {
		return "", err
	}
	if !id.Valid() {
		// 路径由 id 拼出：非规范 id 可能带 '/' 或 '..'。
		return "", fmt.Errorf("非法 video id：%q", id)
	}
	return filepath.Join(s.Root, DirName, "cache", "providers", p, string(id)+ext), nil
}

func (s Store) ReadProviderHTML(provider string, id domain.VideoID) ([]byte, bool, error) {
	return s.read(provider, id, ".html")
}

func (s Store) ReadProviderJSON(provider string, id domain.VideoID) ([]byte, bool, error) {
	return s.read(provider, id, ".json")
}

func (s Store) WriteProviderHTML(provider string, id domain.VideoID, html []byte) error {
	return s.write(provider, id, ".html", html)
}

func (s Store) WriteProviderJSON(provider string, id domain.VideoID, json []byte) error {
	return s.write(provider, id, ".json", json)
}

func (s Store) read(provider string, id domain.VideoID, ext string) ([]byte, bool, error) {
	path, err := s.providerPath(provider, id, ext)
	if err != nil {
		return nil, false, err
	}
	if s.l1 != nil {
		if b, ok := s.l1.Get(path); ok {
			return b, true, nil
		}
	}
	b, err := os.ReadFile(path)
	if err != nil {
		if os.IsNotExist(err) {
			return nil, false, nil
		}
		return nil, false, err
	}
	if s.l1 != nil {
		s.l1.Add(path, b)
	}
	return b, true, nil
}

func (s Store) write(provider string, id domain.VideoID, ext string, b []byte) error {
	if s.ReadOnly {
		return ErrReadOnly
	}
	path, err := s.providerPath(provider, id, ext)
	if err != nil {
		return err
	}
	if err := fsx.WriteFileAtomicReplace(filepath.Dir(path), filepath.Base(path), b); err != nil {
		return err
	}
	if s.l1 != nil {
		s.l1.Add(path, b)
	}
	return nil
}

var providerNameRE = regexp.MustCompile(`^[a-z0-9_]+$`)

func cleanProvider(p string) (string, error) {
	p = strings.ToLower(strings.TrimSpace(p))
	if p == "" {
		return "", fmt.Errorf("provider 不能为空")
	}
	// 最小约束：避免路径穿越；provider 名称本身是枚举（youtube/oembed）。
	if !providerNameRE.MatchString(p) {
		return "", fmt.Errorf("非法 provider：%q", p)
	}
	return p, nil
}
