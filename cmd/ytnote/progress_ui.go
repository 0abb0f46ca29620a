package main

import (
	"fmt"
	"io"
	"net/url"
	"path/filepath"
	"strings"
	"sync"
	"text/tabwriter"
	"time"

	"github.com/fatih/color"

	"github.com/John-Robertt/ytnote/internal/app/run"
	"github.com/John-Robertt/ytnote/internal/config"
	"github.com/John-Robertt/ytnote/internal/domain"
	"github.com/John-Robertt/ytnote/internal/infra/cache"
	"github.com/John-Robertt/ytnote/internal/provider"
	"github.com/John-Robertt/ytnote/internal/scan"
)

var _ run.Observer = (*progressUI)(nil)

var (
	okLabel   = color.New(color.FgGreen).SprintFunc()
	skipLabel = color.New(color.FgYellow).SprintFunc()
	failLabel = color.New(color.FgRed, color.Bold).SprintFunc()
	dimText   = color.New(color.FgHiBlack).SprintFunc()
)

const (
	idleBeforeHeartbeat = 6 * time.Second
	heartbeatEvery      = 2 * time.Second
)

// tally 是进度计数；OnProgress 与心跳行共用同一种格式。
type tally struct {
	workers, total, done int
	ok, fail, skip       int
}

func (t tally) active() int {
	n := t.total - t.done
	if n > t.workers {
		n = t.workers
	}
	if n < 0 {
		n = 0
	}
	return n
}

func progressLine(done, total, ok, fail, skip, active int, elapsed time.Duration) string {
	return fmt.Sprintf("进度: done=%d/%d ok=%d fail=%d skip=%d active=%d elapsed=%s",
		done, total, ok, fail, skip, active, formatElapsed(elapsed))
}

// progressUI 把 run 的事件渲染成终端上的逐行输出（只在交互终端启用，写 stderr）。
// 一段时间没有条目完成时，后台心跳补一行进度，避免看起来像卡住。
type progressUI struct {
	w io.Writer

	mu        sync.Mutex
	started   time.Time
	lastWrite time.Time
	t         tally

	heartbeat *time.Ticker
	quit      chan struct{}
}

func newProgressUI(w io.Writer) *progressUI {
	return &progressUI{w: w}
}

func (p *progressUI) OnStart(eff config.EffectiveConfig) {
	p.mu.Lock()
	defer p.mu.Unlock()

	now := time.Now()
	p.started = now

	mode := "dry-run (不写入/不下载)"
	if eff.Apply {
		mode = "apply"
	}
	fmt.Fprintf(p.w, "[%s] ytnote save\n", now.Format("15:04:05"))

	tw := tabwriter.NewWriter(p.w, 0, 0, 1, ' ', 0)
	row := func(k, v string) { fmt.Fprintf(tw, "  %s\t%s\n", k, v) }
	row("vault", eff.Vault)
	row("directory", describeDirectory(eff))
	row("mode", mode)
	row("provider", providerChain(eff.Provider))
	row("workers", fmt.Sprintf("%d（%g req/s）", eff.Concurrency, eff.RateLimit))
	row("proxy", formatProxy(eff.ProxyURL))
	row("thumbnail", onOff(eff.Thumbnail))
	row("exclude", strings.Join(append(append([]string(nil), scan.AlwaysExcluded...), eff.ExcludeDirs...), ", "))
	_ = tw.Flush()
	fmt.Fprintln(p.w)

	p.lastWrite = time.Now()
}

func (p *progressUI) OnPhaseDone(name string, fields map[string]any, dur time.Duration) {
	p.mu.Lock()
	defer p.mu.Unlock()

	took := dimText("(" + formatShortDuration(dur) + ")")
	switch name {
	case "scan":
		fmt.Fprintf(p.w, "扫描: notes=%d dirs=%d %s\n", intField(fields, "notes"), intField(fields, "dirs"), took)
	case "group":
		fmt.Fprintf(p.w, "分组: videos=%d unmatched=%d %s\n", intField(fields, "videos"), intField(fields, "unmatched"), took)
	case "plan":
		mkdir, _ := fields["need_mkdir"].(bool)
		fmt.Fprintf(p.w, "规划: items=%d existing=%d thumbnails=%d need_mkdir=%t %s\n",
			intField(fields, "items"), intField(fields, "existing"), intField(fields, "thumbnails"), mkdir, took)
	case "exec":
		p.t.workers = intField(fields, "workers")
		p.t.total = intField(fields, "total_items")
		fmt.Fprintf(p.w, "执行: workers=%d total_items=%d\n\n", p.t.workers, p.t.total)
		if p.t.total > 0 {
			p.startHeartbeatLocked()
		}
	default:
		fmt.Fprintf(p.w, "%s %s\n", name, took)
	}
	p.lastWrite = time.Now()
}

func (p *progressUI) OnItemDone(idx, total int, id domain.VideoID, res domain.ItemResult, dur time.Duration) {
	p.mu.Lock()
	defer p.mu.Unlock()

	p.t.done, p.t.total = idx, total
	switch res.Status {
	case domain.StatusProcessed:
		p.t.ok++
	case domain.StatusFailed:
		p.t.fail++
	case domain.StatusSkipped:
		p.t.skip++
	}

	fmt.Fprintln(p.w, itemLine(idx, total, id, res, dur))
	p.lastWrite = time.Now()

	if p.t.done >= p.t.total {
		p.stopHeartbeatLocked()
	}
}

func (p *progressUI) OnProgress(done, total, ok, fail, skip, active int, activeIDs []string, elapsed time.Duration) {
	p.mu.Lock()
	defer p.mu.Unlock()

	line := progressLine(done, total, ok, fail, skip, active, elapsed)
	if len(activeIDs) > 0 {
		line += " " + dimText("["+strings.Join(activeIDs, " ")+"]")
	}
	fmt.Fprintln(p.w, line)
	p.lastWrite = time.Now()
}

// itemLine 渲染单个条目的完成行：
//
//	[i/n] <id> OK provider=<p> -> <path>
//	[i/n] <id> SKIP (已有笔记 <path>)
//	[i/n] <id> FAIL <code>: <msg> attempts=<chain>
func itemLine(idx, total int, id domain.VideoID, res domain.ItemResult, dur time.Duration) string {
	var b strings.Builder
	fmt.Fprintf(&b, "[%d/%d] %s ", idx, total, id)

	firstPath := ""
	if len(res.Files) > 0 {
		firstPath = res.Files[0].Path
	}

	switch res.Status {
	case domain.StatusFailed:
		fmt.Fprintf(&b, "%s %s: %s", failLabel("FAIL"), res.ErrorCode, truncate(res.ErrorMsg, 160))
		if chain := formatAttemptChain(res.Attempts, 1); chain != "" {
			b.WriteString(dimText(" attempts=" + chain))
		}
	case domain.StatusSkipped:
		b.WriteString(skipLabel("SKIP") + " (已有笔记")
		if firstPath != "" {
			b.WriteString(" " + firstPath)
		}
		b.WriteString(")")
	default:
		prov := strings.TrimSpace(res.ProviderUsed)
		if prov == "" {
			prov = strings.TrimSpace(res.ProviderRequested)
		}
		fmt.Fprintf(&b, "%s provider=%s", okLabel("OK"), prov)
		if firstPath != "" {
			b.WriteString(" -> " + firstPath)
		}
		b.WriteString(dimText(formatFallbackNote(res)))
	}
	fmt.Fprintf(&b, " (%s)", formatShortDuration(dur))
	return b.String()
}

func (p *progressUI) startHeartbeatLocked() {
	if p.heartbeat != nil {
		return
	}
	p.heartbeat = time.NewTicker(heartbeatEvery)
	p.quit = make(chan struct{})
	go p.beat(p.heartbeat.C, p.quit)
}

func (p *progressUI) stopHeartbeatLocked() {
	if p.heartbeat == nil {
		return
	}
	p.heartbeat.Stop()
	close(p.quit)
	p.heartbeat, p.quit = nil, nil
}

func (p *progressUI) beat(tick <-chan time.Time, quit <-chan struct{}) {
	for {
		select {
		case <-quit:
			return
		case <-tick:
			p.mu.Lock()
			if time.Since(p.lastWrite) > idleBeforeHeartbeat {
				t := p.t
				fmt.Fprintln(p.w, progressLine(t.done, t.total, t.ok, t.fail, t.skip, t.active(), time.Since(p.started)))
				p.lastWrite = time.Now()
			}
			p.mu.Unlock()
		}
	}
}

// emitLocations 在完成后提示产物位置（只在交互终端）。
func emitLocations(w io.Writer, eff config.EffectiveConfig) {
	if w == nil {
		return
	}
	if eff.Apply {
		fmt.Fprintf(w, "report: %s\n", run.ReportPath(eff.Vault))
	}
	fmt.Fprintf(w, "cache: %s\n", dimText(filepath.Join(eff.Vault, cache.DirName, "cache")))
}

func describeDirectory(eff config.EffectiveConfig) string {
	dir := eff.Directory()
	if dir == "" {
		dir = "<root>"
	}
	if _, ok := eff.Selection.Explicit(); ok {
		return dir
	}
	return dir + " (跟随活动文档)"
}

func onOff(v bool) string {
	if v {
		return "on"
	}
	return "off"
}

func providerChain(requested string) string {
	order, err := provider.FallbackOrder(requested)
	if err != nil {
		order, _ = provider.FallbackOrder("youtube")
	}
	return strings.Join(order, " -> ")
}

// formatProxy 只展示 scheme/host，不回显凭据。
func formatProxy(raw string) string {
	raw = strings.TrimSpace(raw)
	if raw == "" {
		return "off"
	}
	u, err := url.Parse(raw)
	if err != nil || u.Scheme == "" || u.Host == "" {
		return "on (" + truncate(raw, 120) + ")"
	}
	return fmt.Sprintf("on (%s://%s, auth=%s)", u.Scheme, u.Host, onOff(u.User != nil))
}

// truncate 按 rune 截断，避免切坏中文/emoji 标题。
func truncate(s string, limit int) string {
	s = strings.TrimSpace(s)
	r := []rune(s)
	if limit <= 0 || len(r) <= limit {
		return s
	}
	if limit <= 3 {
		return string(r[:limit])
	}
	return string(r[:limit-3]) + "..."
}

// formatFallbackNote 在发生降级时说明首选 provider 为何失败。
func formatFallbackNote(res domain.ItemResult) string {
	req := strings.ToLower(strings.TrimSpace(res.ProviderRequested))
	used := strings.ToLower(strings.TrimSpace(res.ProviderUsed))
	if req == "" || used == "" || req == used {
		return ""
	}
	for _, a := range res.Attempts {
		if strings.ToLower(a.Provider) != req || a.ErrorCode == "" {
			continue
		}
		msg := a.ErrorCode
		if em := strings.TrimSpace(a.ErrorMsg); em != "" {
			msg += ": " + em
		}
		return " fallback(" + req + " " + truncate(msg, 90) + ")"
	}
	return " fallback(" + req + ")"
}

// formatAttemptChain 输出 provider:stage[:code[:msg]]，以 ";" 连接；limit<0 表示不限。
func formatAttemptChain(attempts []domain.ProviderAttempt, limit int) string {
	if limit < 0 || limit > len(attempts) {
		limit = len(attempts)
	}
	parts := make([]string, 0, limit)
	for _, a := range attempts[:limit] {
		fields := []string{strings.TrimSpace(a.Provider), strings.TrimSpace(a.Stage)}
		if a.ErrorCode != "" {
			fields = append(fields, a.ErrorCode)
		}
		if em := strings.TrimSpace(a.ErrorMsg); em != "" {
			fields = append(fields, truncate(em, 80))
		}
		parts = append(parts, strings.Join(fields, ":"))
	}
	return strings.Join(parts, ";")
}

func formatShortDuration(d time.Duration) string {
	return fmt.Sprintf("%.1fs", max(d, 0).Seconds())
}

func formatElapsed(d time.Duration) string {
	sec := int(max(d, 0).Seconds())
	return fmt.Sprintf("%02d:%02d:%02d", sec/3600, (sec%3600)/60, sec%60)
}

func intField(fields map[string]any, key string) int {
	switch x := fields[key].(type) {
	case int:
		return x
	case int64:
		return int(x)
	default:
		return 0
	}
}
