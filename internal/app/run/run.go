package run

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"os"
	"path/filepath"
	"strings"
	"sync"
	"time"

	"golang.org/x/sync/errgroup"

	"github.com/John-Robertt/ytnote/internal/app"
	"github.com/John-Robertt/ytnote/internal/app/planner"
	"github.com/John-Robertt/ytnote/internal/config"
	"github.com/John-Robertt/ytnote/internal/domain"
	"github.com/John-Robertt/ytnote/internal/infra/cache"
	"github.com/John-Robertt/ytnote/internal/infra/fsx"
	"github.com/John-Robertt/ytnote/internal/infra/httpx"
	"github.com/John-Robertt/ytnote/internal/infra/imgx"
	"github.com/John-Robertt/ytnote/internal/note"
	"github.com/John-Robertt/ytnote/internal/provider"
	"github.com/John-Robertt/ytnote/internal/provider/youtube"
	"github.com/John-Robertt/ytnote/internal/scan"
	"github.com/John-Robertt/ytnote/internal/vault"
)

const (
	// ReportName 是 apply 模式下 report 的文件名（位于 <vault>/.ytnote/）。
	ReportName = "report.json"

	maxThumbnailBytes = 4 << 20
	maxNoteAttempts   = 3
)

// Request 是一次 save 的输入。
type Request struct {
	// Inputs 是用户粘贴的原始输入（URL 或裸 ID），顺序即 report 中 inputs 的顺序。
	Inputs []string
	// Transcript 非空时写入笔记的 Transcript 段落；只允许恰好一个视频。
	Transcript string
}

// Execute 执行一次 save（dry-run/apply），并返回对外稳定的 RunReport。
// 该函数尽量把错误“降级”为 item 级失败（单条失败不影响其他）。
func Execute(ctx context.Context, eff config.EffectiveConfig, reg provider.Registry, req Request) domain.RunReport {
	return ExecuteWithObserver(ctx, eff, reg, req, nil)
}

// ExecuteWithObserver 与 Execute 相同，但允许传入 Observer 以输出进度/阶段信息（由上层决定是否启用）。
func ExecuteWithObserver(ctx context.Context, eff config.EffectiveConfig, reg provider.Registry, req Request, obs Observer) domain.RunReport {
	started := time.Now().UTC()

	if obs != nil {
		obs.OnStart(eff)
	}

	dir := eff.Directory()
	rr := domain.RunReport{
		Vault:     eff.Vault,
		DryRun:    !eff.Apply,
		Directory: dir,
		StartedAt: started,
		Items:     make([]domain.ItemResult, 0, len(req.Inputs)),
	}
	finish := func() domain.RunReport {
		rr.FinishedAt = time.Now().UTC()
		rr.Finalize()
		return rr
	}

	// 页面与缩略图共享同一个限速器：两者都打到 YouTube 的基础设施。
	limiter := httpx.NewLimiter(eff.RateLimit)
	pageClient, err := httpx.NewPageClient(eff.ProxyURL, limiter)
	if err != nil {
		rr.Items = append(rr.Items, syntheticFailed(domain.ErrCodeConfigInvalid, fmt.Sprintf("proxy.url 无效：%v", err)))
		return finish()
	}
	var thumbClient *http.Client
	if eff.Apply && eff.Thumbnail {
		thumbClient, err = httpx.NewThumbnailClient(limiter)
		if err != nil {
			rr.Items = append(rr.Items, syntheticFailed(domain.ErrCodeConfigInvalid, err.Error()))
			return finish()
		}
	}

	store := cache.New(eff.Vault, !eff.Apply)

	scanStarted := time.Now()
	idx, err := scan.ScanVault(eff.Vault, eff.ExcludeDirs)
	if err != nil {
		rr.Items = append(rr.Items, syntheticFailed(domain.ErrCodeIOFailed, fmt.Sprintf("扫描 vault 失败：%v", err)))
		return finish()
	}
	scanDur := time.Since(scanStarted)

	groupStarted := time.Now()
	items, unmatched := app.GroupByVideo(req.Inputs)
	groupDur := time.Since(groupStarted)

	if obs != nil {
		obs.OnPhaseDone("scan", map[string]any{
			"notes": len(idx.Notes),
			"dirs":  len(idx.Dirs),
		}, scanDur)
		obs.OnPhaseDone("group", map[string]any{
			"videos":    len(items),
			"unmatched": len(unmatched),
		}, groupDur)
	}

	// unmatched：每个输入单独形成一条 item，便于用户逐个修正。
	for _, u := range unmatched {
		rr.Items = append(rr.Items, unmatchedItem(u))
	}

	// URL 形态提取出的 ID 段不做二次校验；非规范 ID 不发请求、不规划、不写入。
	valid := make([]domain.WorkItem, 0, len(items))
	for _, it := range items {
		if !it.VideoID.Valid() {
			rr.Items = append(rr.Items, failedPlanItem(eff.Provider, it, req.Inputs, domain.ErrCodeInvalidVideoID,
				fmt.Sprintf("链接中的视频 ID %q 不是 %d 位 [A-Za-z0-9_-]，已跳过；请检查链接是否被截断或拼接", it.VideoID, domain.VideoIDLen)))
			continue
		}
		valid = append(valid, it)
	}
	items = valid

	if strings.TrimSpace(req.Transcript) != "" && len(items) != 1 {
		rr.Items = append(rr.Items, syntheticFailed(domain.ErrCodeConfigInvalid,
			fmt.Sprintf("--transcript 只能用于单个视频，实际解析到 %d 个", len(items))))
		return finish()
	}

	planStarted := time.Now()
	st, err := planner.ReadDirState(eff.Vault, dir)
	if err != nil {
		code := domain.ErrCodeIOFailed
		if fsx.IsPathTypeConflict(err) {
			code = domain.ErrCodeTargetConflict
		}
		for _, it := range items {
			rr.Items = append(rr.Items, failedPlanItem(eff.Provider, it, req.Inputs, code, fmt.Sprintf("读取目标目录失败：%v", err)))
		}
		return finish()
	}

	plans := make([]domain.NotePlan, 0, len(items))
	inputsByID := make(map[domain.VideoID][]string, len(items))
	for _, it := range items {
		p, e := planner.PlanItem(eff.Provider, it, st, idx, eff.Thumbnail)
		if e != nil {
			rr.Items = append(rr.Items, failedPlanItem(eff.Provider, it, req.Inputs, domain.ErrCodeIOFailed, fmt.Sprintf("规划失败：%v", e)))
			continue
		}
		plans = append(plans, p)
		inputsByID[it.VideoID] = pickInputs(req.Inputs, it.InputIdx)
	}
	planner.SortPlans(plans)
	planDur := time.Since(planStarted)

	if obs != nil {
		var existing, thumbs int
		for i := range plans {
			if plans[i].ExistingNote != "" {
				existing++
			}
			if plans[i].NeedThumbnail {
				thumbs++
			}
		}
		obs.OnPhaseDone("plan", map[string]any{
			"items":      len(plans),
			"existing":   existing,
			"thumbnails": thumbs,
			"need_mkdir": vault.ShouldCreateDirectory(st.Dir) && !st.Exists,
		}, planDur)
	}

	// 执行阶段：按视频并发（errgroup 限流），item 内串行。
	workers := eff.Concurrency
	if workers < 1 {
		workers = 1
	}
	if obs != nil {
		obs.OnPhaseDone("exec", map[string]any{
			"workers":     workers,
			"total_items": len(plans),
		}, 0)
	}

	ex := &executor{
		eff:         eff,
		reg:         reg,
		pageClient:  pageClient,
		thumbClient: thumbClient,
		store:       store,
		names:       newNameBook(st.ExistingNames),
		transcript:  req.Transcript,
		now:         started,
	}

	type execResult struct {
		id  domain.VideoID
		res domain.ItemResult
		dur time.Duration
	}
	results := make(chan execResult, len(plans))

	go func() {
		var g errgroup.Group
		g.SetLimit(workers)
		for _, p := range plans {
			p := p
			g.Go(func() error {
				oneStarted := time.Now()
				r := ex.execOne(ctx, p, inputsByID[p.VideoID])
				results <- execResult{id: p.VideoID, res: r, dur: time.Since(oneStarted)}
				return nil
			})
		}
		_ = g.Wait()
		close(results)
	}()

	done := 0
	for it := range results {
		done++
		rr.Items = append(rr.Items, it.res)
		if obs != nil {
			obs.OnItemDone(done, len(plans), it.id, it.res, it.dur)
		}
	}

	return finish()
}

// ReportPath 返回 apply 模式下 report.json 的绝对路径。
func ReportPath(vaultRoot string) string {
	return filepath.Join(vaultRoot, cache.DirName, ReportName)
}

// WriteReport 把 RunReport 原子写入 <vault>/.ytnote/report.json（覆盖上一次）。
// dry-run 禁止落盘：调用方只在 apply 时调用。
func WriteReport(vaultRoot string, rr domain.RunReport) error {
	b, err := json.MarshalIndent(rr, "", "  ")
	if err != nil {
		return err
	}
	b = append(b, '\n')
	return fsx.WriteFileAtomicReplace(filepath.Join(vaultRoot, cache.DirName), ReportName, b)
}

type executor struct {
	eff         config.EffectiveConfig
	reg         provider.Registry
	pageClient  *http.Client
	thumbClient *http.Client
	store       cache.Store
	names       *nameBook
	transcript  string
	now         time.Time
}

func (x *executor) execOne(ctx context.Context, p domain.NotePlan, inputs []string) domain.ItemResult {
	item := domain.ItemResult{
		VideoID:           string(p.VideoID),
		Inputs:            inputs,
		ProviderRequested: p.ProviderRequested,
		Status:            domain.StatusProcessed, // 失败时覆盖
		Files:             []domain.FileResult{},
	}

	// 同一 video_id 已有笔记：不抓取、不写入。
	if p.ExistingNote != "" {
		item.Status = domain.StatusSkipped
		item.Files = append(item.Files, domain.FileResult{
			Kind:   domain.FileKindNote,
			Path:   p.ExistingNote,
			Status: domain.FileStatusExists,
		})
		return item
	}

	res, err := x.scrape(ctx, p.ProviderRequested, p.VideoID)
	item.Attempts = reportAttempts(res.Attempts)
	if err != nil {
		fillProviderError(&item, err)
		return item
	}
	meta := res.Meta
	item.ProviderUsed = res.ProviderUsed
	item.Website = res.Website
	item.Title = meta.Title

	name := x.names.reserve(note.FileName(meta))
	item.Files = append(item.Files, domain.FileResult{
		Kind:   domain.FileKindNote,
		Path:   vault.BuildTargetPath(p.Dir, name),
		Status: domain.FileStatusPlanned,
	})

	thumbRel := planner.ThumbnailRel(p.VideoID)
	thumbAbs := filepath.Join(p.State.AbsDir, filepath.FromSlash(thumbRel))
	if p.NeedThumbnail {
		st := domain.FileStatusPlanned
		if fileExists(thumbAbs) {
			st = domain.FileStatusExists
		}
		item.Files = append(item.Files, domain.FileResult{
			Kind:   domain.FileKindThumbnail,
			Path:   vault.BuildTargetPath(p.Dir, thumbRel),
			Status: st,
		})
	}

	// dry-run：只做 fetch+parse 验证；不落盘、不下载缩略图。
	if !x.eff.Apply {
		return item
	}

	if p.NeedMkdir {
		if _, err := fsx.EnsureDir(p.State.AbsDir); err != nil {
			failWrite(&item, err, "创建目录失败")
			return item
		}
	}

	// 缩略图先于笔记：笔记里的 ![[...]] 只在图片确实存在时写入。
	embed := ""
	if p.NeedThumbnail {
		ti := len(item.Files) - 1
		switch item.Files[ti].Status {
		case domain.FileStatusExists:
			embed = thumbRel
		default:
			if err := x.writeThumbnail(ctx, meta, thumbAbs); err != nil {
				// 缩略图是附属产物：失败只记录，不阻止写笔记。
				slog.Warn("缩略图写入失败", "video_id", p.VideoID, "err", err)
				item.Files[ti].Status = domain.FileStatusFailed
			} else {
				item.Files[ti].Status = domain.FileStatusWritten
				embed = thumbRel
			}
		}
	}

	b, err := note.Encode(meta, note.Options{
		Provider:   res.ProviderUsed,
		Thumbnail:  embed,
		Transcript: x.transcript,
		Created:    x.now,
	})
	if err != nil {
		item.Status = domain.StatusFailed
		item.ErrorCode = domain.ErrCodeIOFailed
		item.ErrorMsg = fmt.Sprintf("生成笔记失败：%v", err)
		item.Files[0].Status = domain.FileStatusFailed
		return item
	}

	// 不覆盖：目录在规划之后被外部写入同名文件时，换一个名字重试。
	for attempt := 1; ; attempt++ {
		err = fsx.WriteFileAtomicNoOverwrite(p.State.AbsDir, name, b)
		if err == nil {
			item.Files[0].Status = domain.FileStatusWritten
			break
		}
		if errors.Is(err, os.ErrExist) && attempt < maxNoteAttempts {
			name = x.names.reserve(name)
			item.Files[0].Path = vault.BuildTargetPath(p.Dir, name)
			continue
		}
		if errors.Is(err, os.ErrExist) {
			item.Status = domain.StatusFailed
			item.ErrorCode = domain.ErrCodeTargetConflict
			item.ErrorMsg = fmt.Sprintf("目标文件已存在：%s", item.Files[0].Path)
			item.Files[0].Status = domain.FileStatusFailed
			return item
		}
		failWrite(&item, err, "写入笔记失败")
		item.Files[0].Status = domain.FileStatusFailed
		return item
	}

	slog.Debug("笔记已写入", "video_id", p.VideoID, "path", item.Files[0].Path)
	return item
}

func (x *executor) writeThumbnail(ctx context.Context, meta domain.VideoMeta, dst string) error {
	u := strings.TrimSpace(meta.ThumbnailURL)
	if u == "" {
		return errors.New("provider 未提供 thumbnail_url")
	}
	raw, err := download(ctx, x.thumbClient, u)
	if err != nil {
		return fmt.Errorf("下载失败：%w", err)
	}
	b, err := imgx.ThumbnailJPEG(raw)
	if err != nil {
		return fmt.Errorf("转码失败：%w", err)
	}
	err = fsx.WriteFileAtomicNoOverwrite(filepath.Dir(dst), filepath.Base(dst), b)
	if errors.Is(err, os.ErrExist) {
		return nil
	}
	return err
}

func (x *executor) scrape(ctx context.Context, providerRequested string, id domain.VideoID) (provider.Result, error) {
	// 先尝试 cache；读取失败或内容不匹配时走网络。
	if b, ok, err := x.store.ReadProviderJSON(providerRequested, id); err == nil && ok {
		var meta domain.VideoMeta
		if e := json.Unmarshal(b, &meta); e == nil && meta.VideoID == id {
			return provider.Result{
				Meta:         meta,
				ProviderUsed: providerRequested,
				Website:      meta.Website,
			}, nil
		}
		// 坏缓存：忽略，走网络（apply 会写回新缓存）。
		slog.Debug("忽略损坏的缓存", "provider", providerRequested, "video_id", id)
	}

	res, err := provider.FetchParse(ctx, x.reg, providerRequested, id, x.pageClient)
	if err != nil {
		// Attempts 在失败时仍有效，用于 report 追溯。
		return provider.Result{Attempts: res.Attempts}, err
	}

	if !x.store.ReadOnly {
		// watch 页 HTML 单独留存便于排查解析问题；oEmbed 原文与 meta 同为 JSON，不重复保存。
		if res.ProviderUsed == (youtube.Provider{}).Name() {
			if e := x.store.WriteProviderHTML(res.ProviderUsed, id, res.Body); e != nil {
				slog.Debug("写入 HTML 缓存失败", "video_id", id, "err", e)
			}
		}
		if b, e := json.Marshal(res.Meta); e == nil {
			if e := x.store.WriteProviderJSON(res.ProviderUsed, id, b); e != nil {
				slog.Debug("写入 JSON 缓存失败", "video_id", id, "err", e)
			}
		}
	}
	return res, nil
}

// nameBook 在并发 worker 之间分配不冲突的笔记文件名（同一目录）。
type nameBook struct {
	mu   sync.Mutex
	used map[string]struct{}
}

func newNameBook(existing map[string]struct{}) *nameBook {
	used := make(map[string]struct{}, len(existing))
	for n := range existing {
		used[n] = struct{}{}
	}
	return &nameBook{used: used}
}

func (b *nameBook) reserve(name string) string {
	b.mu.Lock()
	defer b.mu.Unlock()
	got := planner.AllocName(name, b.used)
	b.used[got] = struct{}{}
	return got
}

func unmatchedItem(u domain.Unmatched) domain.ItemResult {
	return domain.ItemResult{
		Inputs:    []string{u.Input},
		Status:    domain.StatusUnmatched,
		ErrorCode: domain.ErrCodeUnmatchedInput,
		ErrorMsg:  fmt.Sprintf("第 %d 个输入无法识别为 YouTube 视频：%q；请粘贴视频链接或 11 位视频 ID", u.Index+1, u.Input),
		Files:     []domain.FileResult{},
	}
}

func failedPlanItem(providerRequested string, it domain.WorkItem, inputs []string, code, msg string) domain.ItemResult {
	return domain.ItemResult{
		VideoID:           string(it.VideoID),
		Inputs:            pickInputs(inputs, it.InputIdx),
		ProviderRequested: providerRequested,
		Status:            domain.StatusFailed,
		ErrorCode:         code,
		ErrorMsg:          msg,
		Files:             []domain.FileResult{},
	}
}

func syntheticFailed(code, msg string) domain.ItemResult {
	return domain.ItemResult{
		Inputs:    []string{},
		Status:    domain.StatusFailed,
		ErrorCode: code,
		ErrorMsg:  msg,
		Files:     []domain.FileResult{},
	}
}

func pickInputs(inputs []string, idx []int) []string {
	out := make([]string, 0, len(idx))
	for _, i := range idx {
		if i < 0 || i >= len(inputs) {
			continue
		}
		out = append(out, strings.TrimSpace(inputs[i]))
	}
	return out
}

func failWrite(item *domain.ItemResult, err error, what string) {
	item.Status = domain.StatusFailed
	if fsx.IsPathTypeConflict(err) {
		item.ErrorCode = domain.ErrCodeTargetConflict
		item.ErrorMsg = err.Error()
	} else {
		item.ErrorCode = domain.ErrCodeIOFailed
		item.ErrorMsg = fmt.Sprintf("%s：%v", what, err)
	}
	for i := range item.Files {
		if item.Files[i].Status == domain.FileStatusPlanned {
			item.Files[i].Status = domain.FileStatusFailed
		}
	}
}

func fileExists(p string) bool {
	fi, err := os.Stat(p)
	return err == nil && fi.Mode().IsRegular()
}

func download(ctx context.Context, c *http.Client, u string) ([]byte, error) {
	if c == nil {
		return nil, errors.New("thumbnail client 为空")
	}
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, u, nil)
	if err != nil {
		return nil, err
	}
	resp, err := c.Do(req)
	if err != nil {
		return nil, err
	}
	defer resp.Body.Close()
	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		return nil, fmt.Errorf("HTTP %d", resp.StatusCode)
	}
	b, err := io.ReadAll(io.LimitReader(resp.Body, maxThumbnailBytes+1))
	if err != nil {
		return nil, err
	}
	if len(b) > maxThumbnailBytes {
		return nil, fmt.Errorf("缩略图超过 %d 字节", maxThumbnailBytes)
	}
	return b, nil
}

func reportAttempts(as []provider.Attempt) []domain.ProviderAttempt {
	out := make([]domain.ProviderAttempt, 0, len(as))
	for _, a := range as {
		pa := domain.ProviderAttempt{Provider: a.Provider, Stage: a.Stage}
		if a.Err != nil {
			if a.Stage == provider.StageParse {
				pa.ErrorCode = domain.ErrCodeParseFailed
				pa.ErrorMsg = humanizeParseError(a.Provider, a.Err)
			} else {
				pa.ErrorCode = domain.ErrCodeFetchFailed
				pa.ErrorMsg = humanizeFetchError(a.Provider, a.Err)
			}
		}
		out = append(out, pa)
	}
	return out
}

func fillProviderError(item *domain.ItemResult, err error) {
	item.Status = domain.StatusFailed

	var pe *provider.Error
	if errors.As(err, &pe) {
		switch pe.Stage {
		case provider.StageFetch:
			item.ErrorCode = domain.ErrCodeFetchFailed
			item.ErrorMsg = humanizeFetchError(pe.Provider, pe.Err)
		case provider.StageParse:
			item.ErrorCode = domain.ErrCodeParseFailed
			item.ErrorMsg = humanizeParseError(pe.Provider, pe.Err)
		default:
			item.ErrorCode = domain.ErrCodeFetchFailed
			item.ErrorMsg = fmt.Sprintf("%s 失败：%v", pe.Provider, pe.Err)
		}
		return
	}

	item.ErrorCode = domain.ErrCodeFetchFailed
	item.ErrorMsg = err.Error()
}

func humanizeFetchError(providerName string, err error) string {
	if err == nil {
		return providerName + " 抓取失败"
	}

	var be *provider.BlockedError
	if errors.As(err, &be) {
		switch be.Reason {
		case "consent":
			return fmt.Sprintf("%s 被引导到 cookie 同意页（consent）。建议改用 --provider oembed，或配置 proxy.url 使用其他地区出口。", providerName)
		default:
			return fmt.Sprintf("%s 被站点拦截（%s）。建议配置 proxy.url 或稍后重试。", providerName, be.Reason)
		}
	}

	var hs *provider.HTTPStatusError
	if errors.As(err, &hs) {
		switch hs.StatusCode {
		case 401, 403:
			return fmt.Sprintf("%s 返回 HTTP %d（视频可能是私享/受限内容，或触发了风控）。", providerName, hs.StatusCode)
		case 429:
			return fmt.Sprintf("%s 返回 HTTP 429（触发限流）。建议调低 rate_limit/concurrency 或配置 proxy.url。", providerName)
		case 404:
			return fmt.Sprintf("%s 返回 HTTP 404（视频不存在或已删除）。", providerName)
		default:
			if loc := strings.TrimSpace(hs.Location); loc != "" {
				return fmt.Sprintf("%s 返回 HTTP %d（重定向）：%s", providerName, hs.StatusCode, loc)
			}
			return fmt.Sprintf("%s 返回 HTTP %d。", providerName, hs.StatusCode)
		}
	}

	low := strings.ToLower(err.Error())
	if errors.Is(err, context.DeadlineExceeded) || strings.Contains(low, "timeout") {
		return fmt.Sprintf("%s 抓取超时。建议检查网络/代理，或降低并发后重试。", providerName)
	}
	if errors.Is(err, context.Canceled) {
		return fmt.Sprintf("%s 抓取已取消。", providerName)
	}
	if strings.Contains(low, "tls") || strings.Contains(low, "handshake") || strings.Contains(low, "ssl") {
		return fmt.Sprintf("%s 连接失败（TLS/SSL）。建议配置 proxy.url 或稍后重试。", providerName)
	}

	return fmt.Sprintf("%s 抓取失败：%v", providerName, err)
}

func humanizeParseError(providerName string, err error) string {
	if err == nil {
		return providerName + " 解析失败"
	}
	// 解析失败通常意味着页面结构漂移，或返回了非视频页（不可用/年龄限制）。
	return fmt.Sprintf("%s 解析失败（页面结构可能变化或视频不可用）：%v", providerName, err)
}
