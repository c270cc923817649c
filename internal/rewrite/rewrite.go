// Package rewrite turns autoref markers in rendered HTML into concrete
// hyperlinks. Markers are emitted by the markdown producer pass for
// reference syntax the renderer could not resolve locally; this package
// resolves them against the full-site identifier namespace after every page
// has been rendered.
package rewrite

import (
	"errors"
	"log/slog"
	"regexp"
	"strconv"
	"strings"

	"golang.org/x/net/html"

	"git.home.luguber.info/inful/autorefs/internal/metrics"
	"git.home.luguber.info/inful/autorefs/internal/urlutil"
)

// markerRE matches autoref marker elements in rendered HTML. Resolved
// hyperlinks do not match it, so rewriting is idempotent.
var markerRE = regexp.MustCompile(`(?s)<autoref (?P<attrs>.*?)>(?P<title>.*?)</autoref>`)

// URLMapper resolves an identifier to a URL and optional title, such as
// registry.ItemURL bound to the current page.
type URLMapper func(identifier string) (url, title string, err error)

// RecordBacklink records a backlink for identifier of the given kind,
// anchored at anchor on the current page.
type RecordBacklink func(identifier, kind, anchor string)

// Context describes where an autoref marker came from, for warning messages.
// Producers attach it to markers as attributes via a Hook.
type Context struct {
	Domain   string
	Role     string
	Origin   string
	Filepath string
	Lineno   int
}

// Hook lets a producer expand identifiers and attach context to markers.
// No hook installed means identity expansion and no context.
type Hook interface {
	ExpandIdentifier(identifier string) string
	Context() Context
}

// Unmapped is one reference that could not be resolved.
type Unmapped struct {
	Identifier string
	Context    *Context
}

// TitlePolicy controls when resolved links get a title attribute.
type TitlePolicy string

const (
	TitlesAlways   TitlePolicy = "always"
	TitlesNever    TitlePolicy = "never"
	TitlesExternal TitlePolicy = "external"
)

// Options configures a rewrite pass.
type Options struct {
	LinkTitles     TitlePolicy
	StripTitleTags bool
	RecordBacklink RecordBacklink
	Hook           Hook
	Metrics        metrics.Recorder
}

// FixRefs rewrites every autoref marker in the HTML of one page, in source
// order, and returns the rewritten HTML plus the unresolved non-optional
// references. It is a pure function of its inputs apart from backlink
// recording and metrics.
func FixRefs(htmlText string, mapper URLMapper, opts Options) (string, []Unmapped) {
	rec := opts.Metrics
	if rec == nil {
		rec = metrics.NoopRecorder{}
	}
	var unmapped []Unmapped

	out := markerRE.ReplaceAllStringFunc(htmlText, func(m string) string {
		sub := markerRE.FindStringSubmatch(m)
		attrs, ok := parseAttrs(sub[1])
		if !ok {
			// Undecodable attribute blob: not a trustworthy marker, leave it.
			return m
		}
		label := sub[2]
		identifier := attrs.get("identifier")
		if identifier == "" {
			return m
		}
		slug := attrs.get("slug")
		optional := attrs.has("optional")

		if opts.RecordBacklink != nil {
			kind := attrs.get("backlink-type")
			anchor := attrs.get("backlink-anchor")
			if kind != "" && anchor != "" {
				opts.RecordBacklink(identifier, kind, anchor)
			}
		}

		lookupID := identifier
		if opts.Hook != nil {
			lookupID = opts.Hook.ExpandIdentifier(identifier)
		}
		identifiers := []string{lookupID}
		if slug != "" {
			identifiers = append(identifiers, slug)
		}
		url, origTitle, err := findURL(identifiers, mapper)
		if err != nil {
			if optional {
				slog.Debug("Unresolved optional cross-reference", "identifier", identifier)
				return `<span title="` + html.EscapeString(identifier) + `">` + label + `</span>`
			}
			rec.RefUnresolved()
			refCtx := attrs.context()
			if refCtx == nil && opts.Hook != nil {
				hc := opts.Hook.Context()
				refCtx = &hc
			}
			unmapped = append(unmapped, Unmapped{Identifier: identifier, Context: refCtx})
			switch {
			case label == identifier:
				return "[" + identifier + "][]"
			case label == "<code>"+identifier+"</code>" && slug == "":
				return "[<code>" + identifier + "</code>][]"
			default:
				return "[" + label + "][" + identifier + "]"
			}
		}

		external := urlutil.IsExternal(url)
		rec.RefResolved(external)

		classes := []string{"autorefs"}
		if external {
			classes = append(classes, "autorefs-external")
		} else {
			classes = append(classes, "autorefs-internal")
		}
		classes = append(classes, strings.Fields(attrs.get("class"))...)

		remaining := attrs.remaining()
		if remaining != "" {
			remaining = " " + remaining
		}

		titleAttr := ""
		if opts.LinkTitles == TitlesAlways || (opts.LinkTitles == TitlesExternal && external) {
			var tip string
			if optional {
				// Optional markers come from API renderers, where appending
				// the full identifier to the tooltip helps disambiguate.
				tip = tooltip(identifier, origTitle, opts.StripTitleTags)
			} else {
				// Hand-written references only get the original title.
				tip = origTitle
			}
			if tip != "" && !strings.Contains("<code>"+label+"</code>", tip) {
				if opts.StripTitleTags {
					tip = StripTags(tip)
				}
				titleAttr = ` title="` + html.EscapeString(tip) + `"`
			}
		}

		return `<a class="` + strings.Join(classes, " ") + `"` + titleAttr +
			` href="` + html.EscapeString(url) + `"` + remaining + `>` + label + `</a>`
	})

	return out, unmapped
}

func findURL(identifiers []string, mapper URLMapper) (string, string, error) {
	var lastErr error
	for _, identifier := range identifiers {
		url, title, err := mapper(identifier)
		if err == nil {
			return url, title, nil
		}
		lastErr = err
	}
	if lastErr == nil {
		lastErr = errors.New("no identifiers to look up")
	}
	return "", "", lastErr
}

// tooltip builds the hover text for a resolved link.
func tooltip(identifier, title string, stripTags bool) string {
	if title != "" {
		if strings.Contains(title, identifier) {
			return title
		}
		if stripTags {
			return title + " (" + identifier + ")"
		}
		return title + " (<code>" + identifier + "</code>)"
	}
	if stripTags {
		return identifier
	}
	return "<code>" + identifier + "</code>"
}

// StripTags removes markup from a fragment of HTML, keeping text content.
func StripTags(s string) string {
	var b strings.Builder
	tok := html.NewTokenizer(strings.NewReader(s))
	for {
		switch tok.Next() {
		case html.ErrorToken:
			return b.String()
		case html.TextToken:
			b.Write(tok.Text())
		}
	}
}

// handledAttrs are marker attributes consumed by the rewriter; anything else
// passes through onto the resolved hyperlink.
var handledAttrs = map[string]bool{
	"identifier":      true,
	"optional":        true,
	"class":           true,
	"domain":          true,
	"role":            true,
	"origin":          true,
	"filepath":        true,
	"lineno":          true,
	"slug":            true,
	"backlink-type":   true,
	"backlink-anchor": true,
}

type markerAttrs struct {
	attrs []html.Attribute
}

// parseAttrs decodes a marker's attribute blob. Returns false when the blob
// does not tokenize as a tag's attributes.
func parseAttrs(blob string) (markerAttrs, bool) {
	tok := html.NewTokenizer(strings.NewReader("<a " + blob + ">"))
	tt := tok.Next()
	if tt != html.StartTagToken && tt != html.SelfClosingTagToken {
		return markerAttrs{}, false
	}
	t := tok.Token()
	return markerAttrs{attrs: t.Attr}, true
}

func (a markerAttrs) get(key string) string {
	for _, attr := range a.attrs {
		if attr.Key == key {
			return attr.Val
		}
	}
	return ""
}

func (a markerAttrs) has(key string) bool {
	for _, attr := range a.attrs {
		if attr.Key == key {
			return true
		}
	}
	return false
}

// remaining renders the passthrough attributes in their original order.
func (a markerAttrs) remaining() string {
	var parts []string
	for _, attr := range a.attrs {
		if handledAttrs[attr.Key] {
			continue
		}
		if attr.Val == "" {
			parts = append(parts, attr.Key)
			continue
		}
		parts = append(parts, attr.Key+`="`+html.EscapeString(attr.Val)+`"`)
	}
	return strings.Join(parts, " ")
}

// context assembles hook context from marker attributes, when all are present.
func (a markerAttrs) context() *Context {
	if !a.has("domain") || !a.has("role") || !a.has("origin") || !a.has("filepath") || !a.has("lineno") {
		return nil
	}
	lineno, err := strconv.Atoi(a.get("lineno"))
	if err != nil {
		return nil
	}
	return &Context{
		Domain:   a.get("domain"),
		Role:     a.get("role"),
		Origin:   a.get("origin"),
		Filepath: a.get("filepath"),
		Lineno:   lineno,
	}
}
