package build

import (
	"context"
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/require"

	"git.home.luguber.info/inful/autorefs/internal/config"
)

func TestPageURL(t *testing.T) {
	tests := []struct {
		src  string
		want string
	}{
		{"index.md", ""},
		{"guide/index.md", "guide/"},
		{"guide/intro.md", "guide/intro/"},
		{"a/b/c.md", "a/b/c/"},
	}
	for _, tt := range tests {
		require.Equal(t, tt.want, pageURL(tt.src), "pageURL(%q)", tt.src)
	}
}

func TestDiscover(t *testing.T) {
	dir := t.TempDir()
	require.NoError(t, os.MkdirAll(filepath.Join(dir, "guide"), 0o755))
	for _, name := range []string{"index.md", "guide/intro.md", "guide/notes.txt"} {
		require.NoError(t, os.WriteFile(filepath.Join(dir, name), []byte("# x\n"), 0o644))
	}

	paths, err := discover(dir)
	require.NoError(t, err)
	require.Equal(t, []string{"guide/intro.md", "index.md"}, paths)
}

func writeSite(t *testing.T, files map[string]string) (source, output string) {
	t.Helper()
	root := t.TempDir()
	source = filepath.Join(root, "docs")
	output = filepath.Join(root, "site")
	for name, content := range files {
		path := filepath.Join(source, filepath.FromSlash(name))
		require.NoError(t, os.MkdirAll(filepath.Dir(path), 0o755))
		require.NoError(t, os.WriteFile(path, []byte(content), 0o644))
	}
	return source, output
}

func readOutput(t *testing.T, output, name string) string {
	t.Helper()
	data, err := os.ReadFile(filepath.Join(output, filepath.FromSlash(name)))
	require.NoError(t, err)
	return string(data)
}

func TestBuilder_Run(t *testing.T) {
	source, output := writeSite(t, map[string]string{
		"index.md": "# Home\n\nSee [the guide][guide] and [missing][].\n\nJump back to [Home][].\n",
		"guide.md": "# Guide\n\nBack to [Home][].\n\n<!-- autorefs:backlinks -->\n",
	})
	cfg := &config.Config{
		Source: source, Output: output,
		LinkTitles: config.TriTrue, StripTitleTags: config.TriTrue,
		RecordBacklinks: true,
	}

	res, err := New(cfg).Run(context.Background())
	require.NoError(t, err)
	require.NotEmpty(t, res.BuildID)
	require.Equal(t, 2, res.Pages)
	require.Equal(t, 3, res.Resolved)
	require.Equal(t, 1, res.Unresolved)
	require.Len(t, res.Unmapped, 1)
	require.Equal(t, "missing", res.Unmapped[0].Identifier)
	require.Equal(t, "index.md", res.Unmapped[0].Page)

	index := readOutput(t, output, "index.html")
	require.Contains(t, index,
		`<a class="autorefs autorefs-internal" title="Guide" href="guide/#guide">the guide</a>`)
	require.Contains(t, index, "[missing][]", "unresolved references render as reference syntax")
	require.Contains(t, index,
		`<a class="autorefs autorefs-internal" href="#home">Home</a>`,
		"self-references resolve to a bare fragment")
	require.Contains(t, index, "<title>Home</title>")

	guide := readOutput(t, output, "guide/index.html")
	require.Contains(t, guide,
		`<a class="autorefs autorefs-internal" href="../#home">Home</a>`,
		"cross-page links are relative to the viewing page")
	require.Contains(t, guide, `<section class="autorefs-backlinks">`)
	require.Contains(t, guide, `<h3 class="autorefs-backlink-kind">referenced-by</h3>`)
	require.Contains(t, guide, `<a href="../#home">Home</a>`)
}

func TestBuilder_Run_NoPages(t *testing.T) {
	cfg := &config.Config{Source: t.TempDir(), Output: t.TempDir()}
	_, err := New(cfg).Run(context.Background())
	require.Error(t, err)
}

func TestBuilder_ExternalInventory(t *testing.T) {
	source, output := writeSite(t, map[string]string{
		"index.md": "# Home\n\nUses [<code>requests.get</code>][].\n",
	})
	cfg := &config.Config{
		Source: source, Output: output,
		LinkTitles: config.TriFalse, StripTitleTags: config.TriTrue,
	}

	b := New(cfg)
	b.Registry().RegisterURL("requests.get", "https://requests.example.org/api/#requests.get")

	res, err := b.Run(context.Background())
	require.NoError(t, err)
	require.Equal(t, 1, res.Resolved)
	require.Zero(t, res.Unresolved)

	index := readOutput(t, output, "index.html")
	require.Contains(t, index,
		`<a class="autorefs autorefs-external" href="https://requests.example.org/api/#requests.get"><code>requests.get</code></a>`)
}

func TestRenderBacklinksSection_Empty(t *testing.T) {
	require.Empty(t, renderBacklinksSection(nil))
}
