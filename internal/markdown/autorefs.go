package markdown

import (
	"regexp"
	"strings"

	"golang.org/x/net/html"
)

// refRE matches reference syntax left verbatim in rendered HTML: goldmark
// outputs `[label][id]` and `[label][]` unchanged when no matching reference
// definition exists in the page.
var refRE = regexp.MustCompile(`\[([^\[\]]+)\]\[([^\[\]]*)\]`)

// codeRegionRE matches rendered code spans and blocks, which must never be
// scanned for reference syntax.
var codeRegionRE = regexp.MustCompile(`(?s)<(?:code|pre)[^>]*>.*?</(?:code|pre)>`)

// codeLabelRE matches a label that is exactly one code span, e.g. the
// rendering of a backtick-quoted identifier.
var codeLabelRE = regexp.MustCompile(`^<code>([^<>]+)</code>$`)

// MarkAutorefs converts leftover reference syntax in rendered HTML into
// autoref marker elements for the site-wide rewrite pass.
//
// An explicit identifier (`[label][id]`) is matched exactly. A bare
// reference (`[label][]`) uses the label as identifier with a slugified
// fallback, except when the label is a single code span, which also matches
// exactly. Matches inside code spans and blocks are left alone.
func MarkAutorefs(htmlText string) string {
	code := codeRegionRE.FindAllStringIndex(htmlText, -1)
	matches := refRE.FindAllStringSubmatchIndex(htmlText, -1)
	if len(matches) == 0 {
		return htmlText
	}

	var b strings.Builder
	last := 0
	for _, m := range matches {
		if insideRegion(code, m[0]) {
			continue
		}
		label := htmlText[m[2]:m[3]]
		identifier := htmlText[m[4]:m[5]]
		slug := ""
		if identifier == "" {
			if cm := codeLabelRE.FindStringSubmatch(label); cm != nil {
				identifier = cm[1]
			} else {
				identifier = label
				slug = Slugify(textContent(label))
			}
		}
		b.WriteString(htmlText[last:m[0]])
		b.WriteString(`<autoref identifier="` + html.EscapeString(identifier) + `"`)
		if slug != "" && slug != identifier {
			b.WriteString(` slug="` + html.EscapeString(slug) + `"`)
		}
		b.WriteString(`>` + label + `</autoref>`)
		last = m[1]
	}
	b.WriteString(htmlText[last:])
	return b.String()
}

// headingOrMarkerRE drives the backlink annotation pass: headings carry the
// anchor context, autoref markers receive it.
var headingOrMarkerRE = regexp.MustCompile(`<h[1-6][^>]*>|<autoref [^>]*>`)

var headingIDRE = regexp.MustCompile(`\bid="([^"]*)"`)

// AnnotateBacklinks attaches default backlink attributes to autoref markers:
// each marker is tagged with the ID of the nearest preceding heading so the
// rewrite pass can record where the reference lives. Markers that already
// carry backlink attributes keep them.
func AnnotateBacklinks(htmlText string) string {
	lastID := ""
	return headingOrMarkerRE.ReplaceAllStringFunc(htmlText, func(tag string) string {
		if !strings.HasPrefix(tag, "<autoref") {
			if m := headingIDRE.FindStringSubmatch(tag); m != nil {
				lastID = m[1]
			}
			return tag
		}
		if strings.Contains(tag, "backlink-type=") {
			return tag
		}
		if lastID == "" {
			return tag
		}
		return tag[:len(tag)-1] +
			` backlink-type="referenced-by" backlink-anchor="` + html.EscapeString(lastID) + `">`
	})
}

func insideRegion(regions [][]int, pos int) bool {
	for _, r := range regions {
		if pos >= r[0] && pos < r[1] {
			return true
		}
	}
	return false
}

// textContent strips markup from an HTML fragment, keeping text.
func textContent(s string) string {
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
