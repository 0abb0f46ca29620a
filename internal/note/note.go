// Package note 把 VideoMeta 渲染为 Obsidian 风格的 Markdown 笔记（YAML frontmatter + 正文）。
package note

import (
	"bytes"
	"errors"
	"fmt"
	"strings"
	"time"
	"unicode/utf8"

	"gopkg.in/yaml.v3"

	"github.com/John-Robertt/ytnote/internal/domain"
)

const (
	// Ext 是笔记文件扩展名。
	Ext = ".md"

	maxNameRunes = 120
	delim        = "---"
)

// Frontmatter 是笔记头部的 YAML 元数据。
// scan 依赖 video_id 字段识别“已存在的笔记”，字段名不可随意更改。
type Frontmatter struct {
	VideoID    string   `yaml:"video_id"`
	Title      string   `yaml:"title"`
	Channel    string   `yaml:"channel,omitempty"`
	ChannelURL string   `yaml:"channel_url,omitempty"`
	Published  string   `yaml:"published,omitempty"`
	Source     string   `yaml:"source"`
	Thumbnail  string   `yaml:"thumbnail,omitempty"`
	Tags       []string `yaml:"tags,omitempty"`
	Provider   string   `yaml:"provider,omitempty"`
	Created    string   `yaml:"created,omitempty"`
}

// Options 控制正文中可选的部分。
type Options struct {
	// Provider 是最终成功的 provider 名称（写入 frontmatter）。
	Provider string
	// Thumbnail 是缩略图相对“笔记所在目录”的路径；为空表示不嵌入。
	Thumbnail string
	// Transcript 原样写入 “## Transcript” 段落；为空表示不写。
	Transcript string
	// Created 为零值时不写 created 字段（测试用）。
	Created time.Time
}

// FileName 由标题生成笔记文件名（含 .md）。
//
// 规则：
// - 去掉 Obsidian/常见文件系统不允许出现在文件名里的字符（\ / : * ? " < > | # ^ [ ]）
// - 折叠空白，去掉首尾的空白与 '.'
// - 最长 120 个字符（按 rune 计）
// - 清洗后为空时回退为 video id
func FileName(meta domain.VideoMeta) string {
	name := sanitize(meta.Title)
	if name == "" {
		name = string(meta.VideoID)
	}
	return name + Ext
}

func sanitize(s string) string {
	s = strings.Map(func(r rune) rune {
		switch r {
		case '\\', '/', ':', '*', '?', '"', '<', '>', '|', '#', '^', '[', ']':
			return ' '
		}
		if r < 0x20 || r == 0x7f {
			return ' '
		}
		return r
	}, s)
	s = strings.Join(strings.Fields(s), " ")
	s = strings.Trim(s, " .")
	if utf8.RuneCountInString(s) > maxNameRunes {
		s = strings.TrimRight(string([]rune(s)[:maxNameRunes]), " .")
	}
	return s
}

// Encode 渲染笔记内容。
//
// 结构（固定）：
//
//	---
//	<frontmatter>
//	---
//
//	# <title>
//
//	[Watch on YouTube](<watch url>)
//
//	![[<thumbnail>]]      （可选）
//
//	## Description        （可选）
//
//	## Transcript         （可选）
func Encode(meta domain.VideoMeta, opt Options) ([]byte, error) {
	id := strings.TrimSpace(string(meta.VideoID))
	if id == "" {
		return nil, errors.New("video id 不能为空")
	}
	if !domain.VideoID(id).Valid() {
		return nil, fmt.Errorf("video id 不是规范形态：%q", id)
	}
	title := strings.Join(strings.Fields(meta.Title), " ")
	if title == "" {
		title = id
	}
	watch := domain.VideoID(id).WatchURL()

	fm := Frontmatter{
		VideoID:    id,
		Title:      title,
		Channel:    strings.TrimSpace(meta.Channel),
		ChannelURL: strings.TrimSpace(meta.ChannelURL),
		Published:  strings.TrimSpace(meta.Published),
		Source:     watch,
		Thumbnail:  strings.TrimSpace(opt.Thumbnail),
		Tags:       normList(meta.Tags),
		Provider:   strings.TrimSpace(opt.Provider),
	}
	if !opt.Created.IsZero() {
		fm.Created = opt.Created.UTC().Format(time.RFC3339)
	}

	head, err := yaml.Marshal(fm)
	if err != nil {
		return nil, err
	}

	var b bytes.Buffer
	b.WriteString(delim + "\n")
	b.Write(head)
	b.WriteString(delim + "\n\n")
	b.WriteString("# " + title + "\n\n")
	b.WriteString("[Watch on YouTube](" + watch + ")\n")

	if fm.Thumbnail != "" {
		b.WriteString("\n![[" + fm.Thumbnail + "]]\n")
	}
	if d := strings.TrimSpace(meta.Description); d != "" {
		b.WriteString("\n## Description\n\n" + d + "\n")
	}
	if t := strings.TrimSpace(opt.Transcript); t != "" {
		b.WriteString("\n## Transcript\n\n" + t + "\n")
	}
	return b.Bytes(), nil
}

// ParseFrontmatter 解析文件开头的 YAML frontmatter。
// 没有 frontmatter 时 ok=false、err=nil；YAML 非法时返回 err。
func ParseFrontmatter(content []byte) (fm Frontmatter, ok bool, err error) {
	content = bytes.TrimPrefix(content, []byte("\ufeff"))
	content = bytes.ReplaceAll(content, []byte("\r\n"), []byte("\n"))
	if !bytes.HasPrefix(content, []byte(delim+"\n")) {
		return Frontmatter{}, false, nil
	}
	rest := content[len(delim)+1:]

	var body []byte
	switch {
	case bytes.HasPrefix(rest, []byte(delim+"\n")) || bytes.Equal(rest, []byte(delim)):
		body = nil
	default:
		end := bytes.Index(rest, []byte("\n"+delim+"\n"))
		if end < 0 {
			if !bytes.HasSuffix(rest, []byte("\n"+delim)) {
				return Frontmatter{}, false, nil
			}
			end = len(rest) - len(delim) - 1
		}
		body = rest[:end]
	}

	if err := yaml.Unmarshal(body, &fm); err != nil {
		return Frontmatter{}, true, err
	}
	return fm, true, nil
}

func normList(in []string) []string {
	if len(in) == 0 {
		return nil
	}
	m := make(map[string]struct{}, len(in))
	out := make([]string, 0, len(in))
	for _, s := range in {
		s = strings.TrimSpace(s)
		if s == "" {
			continue
		}
		if _, ok := m[s]; ok {
			continue
		}
		m[s] = struct{}{}
		out = append(out, s)
	}
	if len(out) == 0 {
		return nil
	}
	return out
}
