package vault

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestResolveActiveDirectory(t *testing.T) {
	cases := []struct {
		name   string
		sel    Selection
		active string
		want   string
	}{
		{"active doc in folder", UseActiveDocumentDirectory(), "Notes/CurrentFile.md", "Notes"},
		{"active doc nested", UseActiveDocumentDirectory(), "Notes/YouTube/2024/Clip.md", "Notes/YouTube/2024"},
		{"active doc at root", UseActiveDocumentDirectory(), "RootFile.md", ""},
		{"no active doc", UseActiveDocumentDirectory(), "", ""},
		{"explicit", UseExplicitDirectory("Transcripts"), "Notes/CurrentFile.md", "Transcripts"},
		{"explicit root", UseExplicitDirectory(""), "Notes/CurrentFile.md", ""},
		{"explicit normalized", UseExplicitDirectory("  /Transcripts/ "), "Notes/CurrentFile.md", "Transcripts"},
		{"explicit backslash", UseExplicitDirectory(`Notes\YouTube`), "", "Notes/YouTube"},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			assert.Equal(t, tc.want, ResolveActiveDirectory(tc.sel, tc.active))
		})
	}
}

// 零值 Selection 必须是“跟随活动文档”，且与显式根目录不同。
func TestSelection_ZeroValueIsActiveDocument(t *testing.T) {
	var zero Selection
	_, ok := zero.Explicit()
	assert.False(t, ok)
	assert.Equal(t, "Notes", ResolveActiveDirectory(zero, "Notes/a.md"))

	root := UseExplicitDirectory("")
	p, ok := root.Explicit()
	assert.True(t, ok)
	assert.Equal(t, "", p)
	assert.Equal(t, "", ResolveActiveDirectory(root, "Notes/a.md"))

	assert.NotEqual(t, zero, root)
	assert.Equal(t, "<active document>", zero.String())
	assert.Equal(t, "<root>", root.String())
	assert.Equal(t, "Transcripts", UseExplicitDirectory("/Transcripts/").String())
}

func TestBuildTargetPath(t *testing.T) {
	assert.Equal(t, "Transcripts/Video Title.md", BuildTargetPath("Transcripts", "Video Title.md"))
	assert.Equal(t, "Video Title.md", BuildTargetPath("", "Video Title.md"))
	// 文件名不透明：不转义。
	assert.Equal(t, "a/b/c?.md", BuildTargetPath("a/b", "c?.md"))
}

func TestNormalize(t *testing.T) {
	cases := map[string]string{
		"/Transcripts/":    "Transcripts",
		`Notes\YouTube`:    "Notes/YouTube",
		"Transcripts///":   "Transcripts",
		"///Transcripts":   "Transcripts",
		"  Transcripts  ":  "Transcripts",
		" /Transcripts/ ":  "Transcripts",
		`C:\Users\Videos`:  "C:/Users/Videos",
		"Notes/YouTube":    "Notes/YouTube",
		"":                 "",
		"   ":              "",
		"///":              "",
		`\Notes\`:          "Notes",
		`\Notes`:           "Notes",
		"/ x /":            "x",
		"Notes//Sub":       "Notes//Sub",
		"Vidéos/日本語":       "Vidéos/日本語",
		"\tTranscripts\n/": "Transcripts",
	}
	for in, want := range cases {
		got := Normalize(in)
		assert.Equal(t, want, got, "Normalize(%q)", in)
		assert.Equal(t, got, Normalize(got), "Normalize 不幂等：%q", in)
	}
}

func FuzzNormalize_Idempotent(f *testing.F) {
	for _, s := range []string{"/Transcripts/", `Notes\YouTube`, `\\a\\`, " / x / ", `C:\Users\Videos`, ""} {
		f.Add(s)
	}
	f.Fuzz(func(t *testing.T, s string) {
		once := Normalize(s)
		if twice := Normalize(once); twice != once {
			t.Fatalf("Normalize 不幂等：%q -> %q -> %q", s, once, twice)
		}
	})
}

func TestShouldCreateDirectory(t *testing.T) {
	assert.False(t, ShouldCreateDirectory(""))
	assert.False(t, ShouldCreateDirectory("   "))
	assert.False(t, ShouldCreateDirectory("\t\n"))
	assert.True(t, ShouldCreateDirectory("Transcripts"))
	assert.True(t, ShouldCreateDirectory(" Notes/YouTube "))
}
