package config

import (
	"encoding/json"
	"errors"
	"fmt"
	"net/url"
	"os"
	"path/filepath"
	"strings"

	"github.com/John-Robertt/ytnote/internal/vault"
)

const (
	// ErrCodeNotFound 表示未指定 --vault 且 cwd 下没有 ytnote.json。
	ErrCodeNotFound = "config_not_found"
	// ErrCodeInvalid 表示配置文件无法读取/解析，或字段不合法。
	ErrCodeInvalid = "config_invalid"
	// ErrCodeMissingVault 表示未指定 --vault 且配置文件缺少 vault 字段。
	ErrCodeMissingVault = "config_missing_vault"
)

const (
	// FileName 是配置文件名（位于 vault 根目录或 cwd）。
	FileName = "ytnote.json"

	// DefaultProvider 是 provider 的最终默认值（当 CLI 与配置文件都未指定时）。
	DefaultProvider = "youtube"
	// DefaultConcurrency 是并发的内置默认值（当配置未指定时）。
	DefaultConcurrency = 4
	// DefaultRateLimit 是每秒请求数上限的默认值。
	DefaultRateLimit = 2.0

	maxConcurrency = 16
)

// CLIArgs 只包含 CLI 暴露的入口，并保留“是否显式指定”的信息。
// 这能保证覆盖优先级可实现：例如 --apply=false 必须能覆盖 config.apply=true，
// --dir "" 必须能覆盖配置里的 directory（显式根目录 ≠ 未指定）。
type CLIArgs struct {
	Vault string

	Directory    string
	DirectorySet bool

	// DirIndex 选择 saved_directories 中的一项；与 Directory 互斥。
	DirIndex    int
	DirIndexSet bool

	ActiveDocument    string
	ActiveDocumentSet bool

	Provider    string
	ProviderSet bool

	Apply    bool
	ApplySet bool

	Thumbnail    bool
	ThumbnailSet bool
}

// FileConfig 对应 ytnote.json 的解析结构。
type FileConfig struct {
	Vault string `json:"vault"`
	// Directory 为 nil（null/缺省）表示跟随活动文档目录；"" 表示显式根目录。
	Directory        *string      `json:"directory"`
	ActiveDocument   string       `json:"active_document"`
	SavedDirectories []string     `json:"saved_directories"`
	Provider         string       `json:"provider"`
	Apply            *bool        `json:"apply"`
	Concurrency      int          `json:"concurrency"`
	RateLimit        float64      `json:"rate_limit"`
	Proxy            *ProxyConfig `json:"proxy"`
	Thumbnail        *bool        `json:"thumbnail"`
	ExcludeDirs      []string     `json:"exclude_dirs"`
}

type ProxyConfig struct {
	URL string `json:"url"`
}

// EffectiveConfig 是合并并做最小规范化后的最终配置（实现层直接消费，不再做二次默认/优先级判断）。
type EffectiveConfig struct {
	// Vault 是 vault 根目录（clean + absolute）。
	Vault string
	// ConfigPath 是本次使用（或将要写入）的配置文件路径。
	ConfigPath string

	Selection        vault.Selection
	ActiveDocument   string
	SavedDirectories vault.SavedDirs

	Provider string
	Apply    bool

	Concurrency int
	RateLimit   float64
	ProxyURL    string
	Thumbnail   bool
	ExcludeDirs []string
}

// Directory 返回本次解析出的目标目录（规范化，"" 表示根目录）。
func (e EffectiveConfig) Directory() string {
	return vault.ResolveActiveDirectory(e.Selection, e.ActiveDocument)
}

// Error 是配置阶段的结构化错误（带 error_code）。
type Error struct {
	Code string
	Path string
	Err  error
}

func (e *Error) Error() string {
	switch e.Code {
	case ErrCodeNotFound:
		return fmt.Sprintf("%s：未找到配置文件 %q", e.Code, e.Path)
	case ErrCodeMissingVault:
		return fmt.Sprintf("%s：配置文件 %q 缺少必填字段 vault", e.Code, e.Path)
	case ErrCodeInvalid:
		if e.Err != nil {
			return fmt.Sprintf("%s：配置文件 %q 无效：%v", e.Code, e.Path, e.Err)
		}
		return fmt.Sprintf("%s：配置文件 %q 无效", e.Code, e.Path)
	default:
		if e.Err != nil {
			return fmt.Sprintf("%s：%v", e.Code, e.Err)
		}
		return e.Code
	}
}

func (e *Error) Unwrap() error { return e.Err }

// Code 从 error 中提取 error_code；若不是 *Error 则返回空串。
func Code(err error) string {
	var e *Error
	if errors.As(err, &e) {
		return e.Code
	}
	return ""
}

// LoadEffective 按约定发现并读取配置文件，然后与 CLI 参数合并为最终配置。
//
// 发现规则（固定）：
// 1) CLI 提供 vault：尝试读取 <vault>/ytnote.json（可选）
// 2) CLI 未提供 vault：必须读取 <cwd>/ytnote.json（必选），且其中必须包含 vault
//
// 覆盖优先级（固定）：
// - vault：CLI > config
// - directory：CLI --dir / --dir-index > config.directory > 跟随活动文档
// - active_document / provider / apply / thumbnail：CLI > config > 默认
// - 其他字段：仅由 config 控制（CLI 不暴露）
func LoadEffective(cwd string, cli CLIArgs) (EffectiveConfig, error) {
	cwdAbs, err := filepath.Abs(cwd)
	if err != nil {
		return EffectiveConfig{}, &Error{Code: ErrCodeInvalid, Path: cwd, Err: err}
	}

	if strings.TrimSpace(cli.Vault) != "" {
		// CLI 给了 vault：配置文件可选，位置固定在 <vault>/ytnote.json。
		absVault := absCleanFrom(cwdAbs, cli.Vault)
		cfgPath := filepath.Join(absVault, FileName)

		fc, _, err := readFileConfig(cfgPath)
		if err != nil {
			return EffectiveConfig{}, &Error{Code: ErrCodeInvalid, Path: cfgPath, Err: err}
		}
		return merge(absVault, cli, fc, cfgPath)
	}

	// CLI 没给 vault：必须读取 <cwd>/ytnote.json，且其中必须包含 vault。
	cfgPath := filepath.Join(cwdAbs, FileName)
	fc, exists, err := readFileConfig(cfgPath)
	if err != nil {
		return EffectiveConfig{}, &Error{Code: ErrCodeInvalid, Path: cfgPath, Err: err}
	}
	if !exists {
		return EffectiveConfig{}, &Error{Code: ErrCodeNotFound, Path: cfgPath, Err: os.ErrNotExist}
	}
	if strings.TrimSpace(fc.Vault) == "" {
		return EffectiveConfig{}, &Error{Code: ErrCodeMissingVault, Path: cfgPath}
	}

	absVault := absCleanFrom(cwdAbs, fc.Vault)
	return merge(absVault, cli, fc, cfgPath)
}

func merge(absVault string, cli CLIArgs, fc FileConfig, cfgPath string) (EffectiveConfig, error) {
	saved := vault.NormalizeList(fc.SavedDirectories)

	if cli.DirectorySet && cli.DirIndexSet {
		return EffectiveConfig{}, &Error{Code: ErrCodeInvalid, Path: cfgPath, Err: errors.New("--dir 与 --dir-index 不能同时指定")}
	}

	// directory：CLI > config > 跟随活动文档
	sel := vault.UseActiveDocumentDirectory()
	switch {
	case cli.DirIndexSet:
		p, err := saved.At(cli.DirIndex)
		if err != nil {
			return EffectiveConfig{}, &Error{Code: ErrCodeInvalid, Path: cfgPath, Err: fmt.Errorf("--dir-index 无效：%w", err)}
		}
		sel = vault.UseExplicitDirectory(p)
	case cli.DirectorySet:
		sel = vault.UseExplicitDirectory(cli.Directory)
	case fc.Directory != nil:
		sel = vault.UseExplicitDirectory(*fc.Directory)
	}

	active := fc.ActiveDocument
	if cli.ActiveDocumentSet {
		active = cli.ActiveDocument
	}
	active = vault.Normalize(active)

	// provider：CLI > config > 默认
	provider := DefaultProvider
	if cli.ProviderSet {
		provider = cli.Provider
	} else if strings.TrimSpace(fc.Provider) != "" {
		provider = fc.Provider
	}
	provider = strings.ToLower(strings.TrimSpace(provider))
	if err := validateProvider(provider); err != nil {
		return EffectiveConfig{}, &Error{Code: ErrCodeInvalid, Path: cfgPath, Err: err}
	}

	// apply：CLI > config > 默认 false
	apply := false
	if cli.ApplySet {
		apply = cli.Apply
	} else if fc.Apply != nil {
		apply = *fc.Apply
	}

	thumbnail := false
	if cli.ThumbnailSet {
		thumbnail = cli.Thumbnail
	} else if fc.Thumbnail != nil {
		thumbnail = *fc.Thumbnail
	}

	concurrency := fc.Concurrency
	if concurrency == 0 {
		concurrency = DefaultConcurrency
	}
	// 超出范围截断，不报错。
	if concurrency < 1 {
		concurrency = 1
	}
	if concurrency > maxConcurrency {
		concurrency = maxConcurrency
	}

	rateLimit := fc.RateLimit
	if rateLimit < 0 {
		return EffectiveConfig{}, &Error{Code: ErrCodeInvalid, Path: cfgPath, Err: fmt.Errorf("rate_limit 不能为负数：%v", rateLimit)}
	}
	if rateLimit == 0 {
		rateLimit = DefaultRateLimit
	}

	proxyURL := ""
	if fc.Proxy != nil {
		proxyURL = strings.TrimSpace(fc.Proxy.URL)
	}
	if proxyURL != "" {
		if _, err := url.Parse(proxyURL); err != nil {
			return EffectiveConfig{}, &Error{Code: ErrCodeInvalid, Path: cfgPath, Err: fmt.Errorf("proxy.url 无效：%w", err)}
		}
	}

	return EffectiveConfig{
		Vault:            absVault,
		ConfigPath:       cfgPath,
		Selection:        sel,
		ActiveDocument:   active,
		SavedDirectories: saved,
		Provider:         provider,
		Apply:            apply,
		Concurrency:      concurrency,
		RateLimit:        rateLimit,
		ProxyURL:         proxyURL,
		Thumbnail:        thumbnail,
		ExcludeDirs:      append([]string(nil), fc.ExcludeDirs...),
	}, nil
}

func validateProvider(p string) error {
	switch p {
	case "youtube", "oembed":
		return nil
	case "":
		return fmt.Errorf("provider 不能为空")
	default:
		return fmt.Errorf("provider 只能是 youtube 或 oembed，实际是 %q", p)
	}
}

// absCleanFrom 以 base 为基准，把 p 变为 clean + absolute。
// - p 若已是绝对路径：直接 Clean
// - p 若是相对路径：Join(base, p) 后 Clean
func absCleanFrom(base, p string) string {
	p = filepath.Clean(strings.TrimSpace(p))
	if filepath.IsAbs(p) {
		return p
	}
	return filepath.Clean(filepath.Join(base, p))
}

// readFileConfig 读取并解析 JSON 配置文件。
// 返回值 exists 表示该文件是否存在（不存在不算错误）。
func readFileConfig(path string) (fc FileConfig, exists bool, err error) {
	b, err := os.ReadFile(path)
	if err != nil {
		if os.IsNotExist(err) {
			return FileConfig{}, false, nil
		}
		return FileConfig{}, false, err
	}
	if err := json.Unmarshal(b, &fc); err != nil {
		return FileConfig{}, true, err
	}
	return fc, true, nil
}
