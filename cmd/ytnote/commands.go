package main

import (
	"fmt"
	"io"
	"os"
	"path/filepath"
	"strconv"
	"strings"

	"github.com/spf13/cobra"

	"github.com/John-Robertt/ytnote/internal/app/run"
	"github.com/John-Robertt/ytnote/internal/config"
	"github.com/John-Robertt/ytnote/internal/provider"
	"github.com/John-Robertt/ytnote/internal/provider/oembed"
	"github.com/John-Robertt/ytnote/internal/provider/youtube"
	"github.com/John-Robertt/ytnote/internal/vault"
	"github.com/John-Robertt/ytnote/internal/videoid"
)

func (c *cli) idCommand() *cobra.Command {
	return &cobra.Command{
		Use:   "id <input>...",
		Short: "从链接或裸 ID 中提取视频 ID（每行一个）",
		Args:  usageArgs(cobra.MinimumNArgs(1)),
		RunE: func(cmd *cobra.Command, args []string) error {
			missing := 0
			for _, in := range args {
				id, ok := videoid.Extract(in)
				if !ok {
					missing++
					fmt.Fprintf(c.errOut, "未识别：%q\n", in)
					continue
				}
				fmt.Fprintln(c.out, id)
			}
			if missing > 0 {
				return exitCode(1)
			}
			return nil
		},
	}
}

// locationFlags 是 target/save 共用的“存到哪里”参数。
type locationFlags struct {
	vault    string
	dir      string
	dirIndex int
	active   string
}

func (f *locationFlags) bind(cmd *cobra.Command) {
	fs := cmd.Flags()
	fs.StringVar(&f.vault, "vault", "", "vault 根目录（未指定则读取 ./ytnote.json 中的 vault）")
	fs.StringVar(&f.dir, "dir", "", `目标目录（vault 内相对路径；"" 表示根目录）`)
	fs.IntVar(&f.dirIndex, "dir-index", 0, "使用 saved_directories 中第 N 项（从 0 开始）")
	fs.StringVar(&f.active, "active", "", "当前活动文档路径（未指定 --dir 时笔记存到它所在的目录）")
}

func (f *locationFlags) cliArgs(cmd *cobra.Command) config.CLIArgs {
	fs := cmd.Flags()
	return config.CLIArgs{
		Vault:             f.vault,
		Directory:         f.dir,
		DirectorySet:      fs.Changed("dir"),
		DirIndex:          f.dirIndex,
		DirIndexSet:       fs.Changed("dir-index"),
		ActiveDocument:    f.active,
		ActiveDocumentSet: fs.Changed("active"),
	}
}

func (f *locationFlags) validate(cmd *cobra.Command) error {
	fs := cmd.Flags()
	if fs.Changed("dir") && fs.Changed("dir-index") {
		return usagef("--dir 与 --dir-index 不能同时指定")
	}
	return nil
}

func (c *cli) targetCommand() *cobra.Command {
	var loc locationFlags
	cmd := &cobra.Command{
		Use:   "target <filename>",
		Short: "输出文件名在 vault 中的目标路径，以及是否需要创建目录（不写入）",
		Args:  usageArgs(cobra.ExactArgs(1)),
		RunE: func(cmd *cobra.Command, args []string) error {
			if err := loc.validate(cmd); err != nil {
				return err
			}
			cwd, err := c.cwd()
			if err != nil {
				return err
			}

			ca := loc.cliArgs(cmd)
			eff, err := config.LoadEffective(cwd, ca)
			if err != nil {
				// 没有配置文件时仍可只凭参数解析（--dir-index 依赖配置，无法降级）。
				if config.Code(err) != config.ErrCodeNotFound || ca.DirIndexSet {
					return err
				}
				eff = config.EffectiveConfig{ActiveDocument: vault.Normalize(ca.ActiveDocument)}
				if ca.DirectorySet {
					eff.Selection = vault.UseExplicitDirectory(ca.Directory)
				}
			}

			dir := eff.Directory()
			fmt.Fprintln(c.out, vault.BuildTargetPath(dir, args[0]))
			fmt.Fprintf(c.out, "create_directory: %t\n", vault.ShouldCreateDirectory(dir))
			return nil
		},
	}
	loc.bind(cmd)
	return cmd
}

func (c *cli) saveCommand() *cobra.Command {
	var (
		loc        locationFlags
		inputFile  string
		providerNm string
		apply      bool
		transcript string
		thumbnail  bool
	)
	cmd := &cobra.Command{
		Use:   "save [input...]",
		Short: "抓取视频元数据并保存为笔记（默认 dry-run）",
		Long: `抓取视频元数据并在 vault 中保存为 Markdown 笔记。

默认 dry-run：只做抓取+解析验证，不写入任何文件。
--apply 才会写入笔记/缩略图/缓存，并写出 <vault>/.ytnote/report.json。
stdout 不是终端时只输出一个 RunReport JSON；日志与摘要走 stderr。`,
		Args: usageArgs(cobra.ArbitraryArgs),
		RunE: func(cmd *cobra.Command, args []string) error {
			if err := loc.validate(cmd); err != nil {
				return err
			}
			fs := cmd.Flags()

			inputs := append([]string(nil), args...)
			if inputFile != "" {
				b, err := c.readSource(inputFile)
				if err != nil {
					return usagef("读取 --input 失败：%v", err)
				}
				for _, line := range strings.Split(string(b), "\n") {
					if s := strings.TrimSpace(line); s != "" {
						inputs = append(inputs, s)
					}
				}
			}
			if len(inputs) == 0 {
				return usagef("至少需要一个输入（参数或 --input）")
			}

			reg, err := provider.NewRegistry(youtube.Provider{}, oembed.Provider{})
			if err != nil {
				return fmt.Errorf("初始化 provider registry 失败：%w", err)
			}
			if fs.Changed("provider") {
				if _, ok := reg.Get(providerNm); !ok || strings.TrimSpace(providerNm) == "" {
					return usagef("--provider 只能是 %s，实际是 %q", strings.Join(reg.Names(), "|"), providerNm)
				}
			}

			transcriptText := ""
			if transcript != "" {
				if len(inputs) != 1 {
					return usagef("--transcript 只能配合单个输入使用，实际有 %d 个输入", len(inputs))
				}
				if transcript == "-" && inputFile == "-" {
					return usagef("--input 与 --transcript 不能同时读取 stdin")
				}
				b, err := c.readSource(transcript)
				if err != nil {
					return usagef("读取 --transcript 失败：%v", err)
				}
				transcriptText = string(b)
			}

			cwd, err := c.cwd()
			if err != nil {
				return err
			}

			ca := loc.cliArgs(cmd)
			ca.Provider, ca.ProviderSet = providerNm, fs.Changed("provider")
			ca.Apply, ca.ApplySet = apply, fs.Changed("apply")
			ca.Thumbnail, ca.ThumbnailSet = thumbnail, fs.Changed("thumbnail")

			eff, err := config.LoadEffective(cwd, ca)
			if err != nil {
				c.emitReport(reportForConfigError(cwd, ca.ApplySet && ca.Apply, err))
				return exitCode(1)
			}

			progressW, interactive := c.progressWriter()
			var obs run.Observer
			if interactive {
				obs = newProgressUI(progressW)
			}

			rr := run.ExecuteWithObserver(cmd.Context(), eff, reg, run.Request{
				Inputs:     inputs,
				Transcript: transcriptText,
			}, obs)

			// apply：必须写入 <vault>/.ytnote/report.json；dry-run 禁止落盘。
			if eff.Apply {
				if err := run.WriteReport(eff.Vault, rr); err != nil {
					fmt.Fprintf(c.errOut, "写入 report.json 失败：%v\n", err)
					c.emitReport(rr)
					return exitCode(1)
				}
			}

			c.emitReport(rr)
			if interactive {
				emitLocations(progressW, eff)
			}
			if !rr.OK() {
				return exitCode(1)
			}
			return nil
		},
	}
	loc.bind(cmd)
	fs := cmd.Flags()
	fs.StringVar(&inputFile, "input", "", `从文件读取输入（每行一个；"-" 表示 stdin）`)
	fs.StringVar(&providerNm, "provider", "", "首选 provider：youtube|oembed（未指定则读配置；默认 youtube）")
	fs.BoolVar(&apply, "apply", false, "写入笔记（默认 dry-run）；--apply=false 可覆盖配置中的 apply=true")
	fs.StringVar(&transcript, "transcript", "", `把文件内容写入笔记的 Transcript 段落（"-" 表示 stdin；仅限单个输入）`)
	fs.BoolVar(&thumbnail, "thumbnail", false, "同时下载缩略图到 <dir>/attachments/<id>.jpg 并嵌入笔记")
	return cmd
}

func (c *cli) dirsCommand() *cobra.Command {
	var vaultFlag string
	cmd := &cobra.Command{
		Use:   "dirs",
		Short: "维护 ytnote.json 中的 saved_directories",
		Args:  usageArgs(cobra.NoArgs),
		RunE: func(cmd *cobra.Command, args []string) error {
			return cmd.Help()
		},
	}
	cmd.PersistentFlags().StringVar(&vaultFlag, "vault", "", "vault 根目录（未指定则读取 ./ytnote.json 中的 vault）")

	load := func() (config.EffectiveConfig, error) {
		cwd, err := c.cwd()
		if err != nil {
			return config.EffectiveConfig{}, err
		}
		return config.LoadEffective(cwd, config.CLIArgs{Vault: vaultFlag})
	}

	cmd.AddCommand(&cobra.Command{
		Use:   "ls",
		Short: "列出已保存的目录",
		Args:  usageArgs(cobra.NoArgs),
		RunE: func(cmd *cobra.Command, args []string) error {
			eff, err := load()
			if err != nil {
				return err
			}
			if len(eff.SavedDirectories) == 0 {
				fmt.Fprintln(c.errOut, "（没有已保存的目录）")
				return nil
			}
			for i, d := range eff.SavedDirectories {
				fmt.Fprintf(c.out, "%d\t%s\n", i, vault.UseExplicitDirectory(d).String())
			}
			return nil
		},
	})

	cmd.AddCommand(&cobra.Command{
		Use:   "add <path>",
		Short: "追加一个目录（规范化后去重）",
		Args:  usageArgs(cobra.ExactArgs(1)),
		RunE: func(cmd *cobra.Command, args []string) error {
			eff, err := load()
			if err != nil {
				return err
			}
			next := eff.SavedDirectories.Add(args[0])
			n := vault.Normalize(args[0])
			if len(next) == len(eff.SavedDirectories) {
				fmt.Fprintf(c.errOut, "已存在：%s\n", vault.UseExplicitDirectory(n).String())
				return nil
			}
			if err := config.SaveSavedDirectories(eff.ConfigPath, eff.Vault, next); err != nil {
				return fmt.Errorf("写入 %s 失败：%w", filepath.Base(eff.ConfigPath), err)
			}
			fmt.Fprintf(c.out, "%d\t%s\n", len(next)-1, vault.UseExplicitDirectory(n).String())
			return nil
		},
	})

	cmd.AddCommand(&cobra.Command{
		Use:   "rm <index>",
		Short: "按下标删除一个目录",
		Args:  usageArgs(cobra.ExactArgs(1)),
		RunE: func(cmd *cobra.Command, args []string) error {
			idx, err := strconv.Atoi(args[0])
			if err != nil {
				return usagef("index 必须是整数，实际是 %q", args[0])
			}
			eff, err := load()
			if err != nil {
				return err
			}
			removed := ""
			if p, e := eff.SavedDirectories.At(idx); e == nil {
				removed = p
			}
			next, err := eff.SavedDirectories.RemoveAt(idx)
			if err != nil {
				return err
			}
			if err := config.SaveSavedDirectories(eff.ConfigPath, eff.Vault, next); err != nil {
				return fmt.Errorf("写入 %s 失败：%w", filepath.Base(eff.ConfigPath), err)
			}
			fmt.Fprintf(c.out, "已删除：%s\n", vault.UseExplicitDirectory(removed).String())
			return nil
		},
	})
	return cmd
}

func (c *cli) readSource(p string) ([]byte, error) {
	if p == "-" {
		return io.ReadAll(c.in)
	}
	return os.ReadFile(p)
}
