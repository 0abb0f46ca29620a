package main

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"os"
	"os/signal"
	"path/filepath"
	"syscall"
	"time"

	"github.com/spf13/cobra"
	"golang.org/x/term"

	"github.com/John-Robertt/ytnote/internal/config"
	"github.com/John-Robertt/ytnote/internal/domain"
)

func main() {
	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	code := execute(ctx, newCLI(os.Stdin, os.Stdout, os.Stderr), os.Args[1:])
	stop()
	os.Exit(code)
}

// cli 保存一次进程调用的 I/O 与环境；测试中替换为内存缓冲。
type cli struct {
	in     io.Reader
	out    io.Writer
	errOut io.Writer

	getwd func() (string, error)
	// isTTY 判断 writer 是否是交互终端（决定 stdout 输出 JSON 还是摘要）。
	isTTY func(w io.Writer) bool

	verbose bool
}

func newCLI(in io.Reader, out, errOut io.Writer) *cli {
	return &cli{
		in:     in,
		out:    out,
		errOut: errOut,
		getwd:  os.Getwd,
		isTTY:  isTerminal,
	}
}

// usageError 表示参数错误（退出码 2）。
type usageError struct{ err error }

func (e *usageError) Error() string { return e.err.Error() }
func (e *usageError) Unwrap() error { return e.err }

func usagef(format string, args ...any) error {
	return &usageError{err: fmt.Errorf(format, args...)}
}

// exitCode 让子命令在已经输出结果后，仅向上层传递退出码。
type exitCode int

func (e exitCode) Error() string { return fmt.Sprintf("exit status %d", int(e)) }

// execute 运行命令树并返回进程退出码：0 成功；1 存在失败；2 参数错误。
func execute(ctx context.Context, c *cli, args []string) int {
	root := c.rootCommand()
	root.SetArgs(args)
	root.SetIn(c.in)
	root.SetOut(c.out)
	root.SetErr(c.errOut)

	err := root.ExecuteContext(ctx)
	if err == nil {
		return 0
	}

	var ec exitCode
	if errors.As(err, &ec) {
		return int(ec)
	}
	var ue *usageError
	if errors.As(err, &ue) {
		fmt.Fprintf(c.errOut, "参数错误：%v\n\n", ue.err)
		if cmd, _, e := root.Find(args); e == nil && cmd != nil {
			fmt.Fprint(c.errOut, cmd.UsageString())
		}
		return 2
	}
	fmt.Fprintf(c.errOut, "错误：%v\n", err)
	return 1
}

func (c *cli) rootCommand() *cobra.Command {
	root := &cobra.Command{
		Use:   "ytnote",
		Short: "把 YouTube 链接保存为笔记库（vault）中的 Markdown 笔记",
		Long: `ytnote 把粘贴的 YouTube 链接/视频 ID 转换为 vault 中的笔记文件。

示例：
  ytnote id "https://youtu.be/dQw4w9WgXcQ"
  ytnote target --vault ~/notes --dir Transcripts "Video Title.md"
  ytnote save --vault ~/notes "https://www.youtube.com/watch?v=dQw4w9WgXcQ"          # dry-run
  ytnote save --vault ~/notes --apply --thumbnail "https://youtu.be/dQw4w9WgXcQ"
  ytnote dirs add Transcripts`,
		Args:          usageArgs(cobra.NoArgs),
		SilenceUsage:  true,
		SilenceErrors: true,
		PersistentPreRun: func(cmd *cobra.Command, args []string) {
			c.setupLogging()
		},
		RunE: func(cmd *cobra.Command, args []string) error {
			return cmd.Help()
		},
	}
	root.SetFlagErrorFunc(func(cmd *cobra.Command, err error) error {
		return &usageError{err: err}
	})
	root.PersistentFlags().BoolVarP(&c.verbose, "verbose", "v", false, "输出调试日志（stderr）")

	root.AddCommand(c.idCommand())
	root.AddCommand(c.targetCommand())
	root.AddCommand(c.saveCommand())
	root.AddCommand(c.dirsCommand())
	return root
}

// setupLogging 把 slog 默认 logger 指向 stderr；stdout 只保留命令结果。
func (c *cli) setupLogging() {
	level := slog.LevelInfo
	if c.verbose {
		level = slog.LevelDebug
	}
	slog.SetDefault(slog.New(slog.NewTextHandler(c.errOut, &slog.HandlerOptions{Level: level})))
}

func usageArgs(v cobra.PositionalArgs) cobra.PositionalArgs {
	return func(cmd *cobra.Command, args []string) error {
		if err := v(cmd, args); err != nil {
			return &usageError{err: err}
		}
		return nil
	}
}

func (c *cli) emitReport(rr domain.RunReport) {
	summary := fmt.Sprintf("完成：processed=%d skipped=%d failed=%d unmatched=%d",
		rr.Summary.Processed, rr.Summary.Skipped, rr.Summary.Failed, rr.Summary.Unmatched,
	)

	if c.isTTY(c.out) {
		fmt.Fprintln(c.out, summary)
		if !rr.OK() {
			for _, it := range rr.Items {
				if it.Status != domain.StatusFailed && it.Status != domain.StatusUnmatched {
					continue
				}
				key := it.VideoID
				if key == "" && len(it.Inputs) > 0 {
					// unmatched/config 等合成条目：用原始输入做定位锚点。
					key = it.Inputs[0]
				}
				if key == "" {
					key = "<unknown>"
				}
				fmt.Fprintf(c.errOut, "%s %s: %s\n", key, it.ErrorCode, it.ErrorMsg)
			}
		}
		return
	}

	// stdout 非 TTY：stdout 必须且仅输出一个 RunReport JSON（日志/摘要走 stderr）。
	enc := json.NewEncoder(c.out)
	_ = enc.Encode(rr)
	fmt.Fprintln(c.errOut, summary)
}

func reportForConfigError(cwdAbs string, apply bool, err error) domain.RunReport {
	now := time.Now().UTC()
	rr := domain.RunReport{
		Vault:      cwdAbs,
		DryRun:     !apply,
		StartedAt:  now,
		FinishedAt: now,
		Items: []domain.ItemResult{{
			Status:    domain.StatusFailed,
			ErrorCode: config.Code(err),
			ErrorMsg:  err.Error(),
		}},
	}
	rr.Finalize()
	return rr
}

func isTerminal(w io.Writer) bool {
	f, ok := w.(*os.File)
	if !ok {
		return false
	}
	return term.IsTerminal(int(f.Fd()))
}

// progressWriter 选择进度输出位置：只在交互终端启用，默认走 stderr（不污染 stdout JSON）。
func (c *cli) progressWriter() (io.Writer, bool) {
	if c.isTTY(c.errOut) {
		return c.errOut, true
	}
	// 某些环境（例如仅重定向 stderr）下，stdout 仍是 TTY：退化输出到 stdout。
	if c.isTTY(c.out) {
		return c.out, true
	}
	return nil, false
}

func (c *cli) cwd() (string, error) {
	wd, err := c.getwd()
	if err != nil {
		return "", fmt.Errorf("读取当前目录失败：%w", err)
	}
	abs, err := filepath.Abs(wd)
	if err != nil {
		return "", err
	}
	return abs, nil
}
