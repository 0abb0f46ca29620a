package domain

import (
	"encoding/json"
	"sort"
	"time"
)

const (
	StatusProcessed = "processed"
	StatusSkipped   = "skipped"
	StatusFailed    = "failed"
	StatusUnmatched = "unmatched"
)

const (
	FileStatusPlanned = "planned"
	FileStatusWritten = "written"
	FileStatusExists  = "exists"
	FileStatusFailed  = "failed"
)

const (
	FileKindNote      = "note"
	FileKindThumbnail = "thumbnail"
)

const (
	ErrCodeUnmatchedInput     = "unmatched_input"
	ErrCodeInvalidVideoID     = "invalid_video_id"
	ErrCodeFetchFailed        = "fetch_failed"
	ErrCodeParseFailed        = "parse_failed"
	ErrCodeTargetConflict     = "target_conflict"
	ErrCodeIOFailed           = "io_failed"
	ErrCodeConfigNotFound     = "config_not_found"
	ErrCodeConfigInvalid      = "config_invalid"
	ErrCodeConfigMissingVault = "config_missing_vault"
)

// RunReport 是对外稳定输出（report.json / stdout JSON）的结构。
type RunReport struct {
	Vault  string `json:"vault"`
	DryRun bool   `json:"dry_run"`
	// Directory 是本次解析出的目标目录（"" 表示 vault 根目录）。
	Directory string `json:"directory"`

	StartedAt  time.Time `json:"started_at"`
	FinishedAt time.Time `json:"finished_at"`

	Summary ReportSummary `json:"summary"`
	Items   []ItemResult  `json:"items"`
}

type ReportSummary struct {
	Processed int `json:"processed"`
	Skipped   int `json:"skipped"`
	Failed    int `json:"failed"`
	Unmatched int `json:"unmatched"`
}

type ItemResult struct {
	VideoID           string   `json:"video_id"`
	Inputs            []string `json:"inputs"`
	ProviderRequested string   `json:"provider_requested"`
	ProviderUsed      string   `json:"provider_used"`
	Website           string   `json:"website"`
	Title             string   `json:"title"`

	Status    string `json:"status"`
	ErrorCode string `json:"error_code"`
	ErrorMsg  string `json:"error_msg"`

	// Attempts 按顺序记录每个 provider 的尝试（命中缓存/未抓取时为空）。
	Attempts []ProviderAttempt `json:"attempts"`
	Files    []FileResult      `json:"files"`
}

// ProviderAttempt 是 report 中一次 provider 尝试的可序列化形式。
type ProviderAttempt struct {
	Provider  string `json:"provider"`
	Stage     string `json:"stage"` // fetch / parse / ok
	ErrorCode string `json:"error_code"`
	ErrorMsg  string `json:"error_msg"`
}

// FileResult 描述一个目标文件（相对 vault 根目录，'/' 分隔）。
type FileResult struct {
	Kind   string `json:"kind"`
	Path   string `json:"path"`
	Status string `json:"status"`
}

// Finalize 做三件事：
// 1) 时间统一为 UTC（确保 JSON 为 RFC3339 且后缀 Z）
// 2) items 稳定排序：按 video_id 字典序；video_id=="" 的条目排在最后
// 3) summary 由 items 计算得出
func (r *RunReport) Finalize() {
	r.StartedAt = r.StartedAt.UTC()
	r.FinishedAt = r.FinishedAt.UTC()

	sort.SliceStable(r.Items, func(i, j int) bool {
		a := r.Items[i].VideoID
		b := r.Items[j].VideoID
		if a == "" && b == "" {
			return false
		}
		if a == "" {
			return false
		}
		if b == "" {
			return true
		}
		return a < b
	})

	var s ReportSummary
	for _, it := range r.Items {
		switch it.Status {
		case StatusProcessed:
			s.Processed++
		case StatusSkipped:
			s.Skipped++
		case StatusFailed:
			s.Failed++
		case StatusUnmatched:
			s.Unmatched++
		}
	}
	r.Summary = s
}

// OK 报告本次运行是否没有失败与 unmatched（决定进程退出码）。
func (r RunReport) OK() bool {
	return r.Summary.Failed == 0 && r.Summary.Unmatched == 0
}

// MarshalJSON 仅用于集中约束输出的稳定性：nil 切片统一输出为 []。
func (r RunReport) MarshalJSON() ([]byte, error) {
	type Alias RunReport
	a := Alias(r)
	a.Items = append([]ItemResult{}, r.Items...)
	for i := range a.Items {
		if a.Items[i].Inputs == nil {
			a.Items[i].Inputs = []string{}
		}
		if a.Items[i].Attempts == nil {
			a.Items[i].Attempts = []ProviderAttempt{}
		}
		if a.Items[i].Files == nil {
			a.Items[i].Files = []FileResult{}
		}
	}
	return json.Marshal(a)
}
