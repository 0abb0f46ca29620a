package config

import (
	"bytes"
	"encoding/json"
	"os"
	"path/filepath"

	"github.com/John-Robertt/ytnote/internal/infra/fsx"
	"github.com/John-Robertt/ytnote/internal/vault"
)

// SaveSavedDirectories 把 dirs 写回 path 的 saved_directories 字段。
//
// - 文件不存在时新建（仅包含 saved_directories 与 vault）
// - 其他字段（包括不认识的字段）原样保留
// - 原子替换写入
func SaveSavedDirectories(path, vaultRoot string, dirs vault.SavedDirs) error {
	raw := map[string]json.RawMessage{}
	b, err := os.ReadFile(path)
	switch {
	case err == nil:
		if len(bytes.TrimSpace(b)) > 0 {
			if err := json.Unmarshal(b, &raw); err != nil {
				return &Error{Code: ErrCodeInvalid, Path: path, Err: err}
			}
		}
	case os.IsNotExist(err):
		// 新文件：写入 vault，保证下次在 vault 根目录直接运行也能发现配置。
		if vaultRoot != "" {
			v, _ := json.Marshal(vaultRoot)
			raw["vault"] = v
		}
	default:
		return &Error{Code: ErrCodeInvalid, Path: path, Err: err}
	}

	list := []string(dirs)
	if list == nil {
		list = []string{}
	}
	enc, err := json.Marshal(list)
	if err != nil {
		return err
	}
	raw["saved_directories"] = enc

	out, err := json.MarshalIndent(raw, "", "  ")
	if err != nil {
		return err
	}
	out = append(out, '\n')
	return fsx.WriteFileAtomicReplace(filepath.Dir(path), filepath.Base(path), out)
}
