// Package markdown renders source pages to HTML and emits autoref markers
// for reference syntax the renderer could not resolve locally. It is a
// producer for the registry/rewrite core: rendering happens per page during
// the registration pass, marker resolution happens site-wide afterwards.
package markdown

import (
	"bytes"
	"fmt"
	"regexp"
	"strings"

	"github.com/yuin/goldmark"
	"github.com/yuin/goldmark/extension"
	"github.com/yuin/goldmark/parser"
	gmhtml "github.com/yuin/goldmark/renderer/html"
)

var firstHeadingRE = regexp.MustCompile(`(?s)<h1[^>]*>(.*?)</h1>`)

// FirstHeading returns the text of the first top-level heading in rendered
// HTML, or "" when the page has none.
func FirstHeading(htmlText string) string {
	if m := firstHeadingRE.FindStringSubmatch(htmlText); m != nil {
		return strings.TrimSpace(textContent(m[1]))
	}
	return ""
}

// Options controls how Markdown is rendered.
//
// For now this is intentionally small; it exists so we can evolve rendering
// behavior (extensions/settings) without rewriting call sites.
type Options struct{}

// Render converts a Markdown body (frontmatter already removed) to HTML.
// Headings get auto-generated IDs so the anchor scanner can register them.
func Render(body []byte, _ Options) (string, error) {
	md := goldmark.New(
		goldmark.WithExtensions(extension.GFM),
		goldmark.WithParserOptions(parser.WithAutoHeadingID(), parser.WithAttribute()),
		goldmark.WithRendererOptions(gmhtml.WithUnsafe()),
	)
	var buf bytes.Buffer
	if err := md.Convert(body, &buf); err != nil {
		return "", fmt.Errorf("render markdown: %w", err)
	}
	return buf.String(), nil
}
