package build

import (
	"sort"
	"strings"

	"golang.org/x/net/html"

	"git.home.luguber.info/inful/autorefs/internal/backlinks"
)

// renderDocument wraps rendered page content in a minimal HTML shell.
// Theming belongs to the host site generator; this output is meant to be
// served as-is or post-processed by it.
func renderDocument(title, body string) string {
	var b strings.Builder
	b.WriteString("<!DOCTYPE html>\n<html>\n<head>\n<meta charset=\"utf-8\">\n<title>")
	b.WriteString(html.EscapeString(title))
	b.WriteString("</title>\n</head>\n<body>\n")
	b.WriteString(body)
	b.WriteString("\n</body>\n</html>\n")
	return b.String()
}

// renderBacklinksSection renders recorded backlinks as nested lists grouped
// by kind, each backlink shown as its breadcrumb trail with the leaf crumb
// linked.
func renderBacklinksSection(groups map[string][]backlinks.Backlink) string {
	if len(groups) == 0 {
		return ""
	}
	kinds := make([]string, 0, len(groups))
	for kind := range groups {
		kinds = append(kinds, kind)
	}
	sort.Strings(kinds)

	var b strings.Builder
	b.WriteString(`<section class="autorefs-backlinks">`)
	for _, kind := range kinds {
		b.WriteString(`<h3 class="autorefs-backlink-kind">` + html.EscapeString(kind) + `</h3><ul>`)
		for _, bl := range groups[kind] {
			b.WriteString("<li>")
			for i, crumb := range bl.Crumbs {
				if i > 0 {
					b.WriteString(" &rsaquo; ")
				}
				title := html.EscapeString(crumb.Title)
				if i == len(bl.Crumbs)-1 && crumb.URL != "" {
					b.WriteString(`<a href="` + html.EscapeString(crumb.URL) + `">` + title + `</a>`)
				} else {
					b.WriteString(title)
				}
			}
			b.WriteString("</li>")
		}
		b.WriteString("</ul>")
	}
	b.WriteString("</section>")
	return b.String()
}
