// Package scanner discovers anchors and headings in a rendered page and
// registers them with the identifier registry. It also builds the breadcrumb
// chains the backlink recorder later materializes.
//
// Bare anchors (`<a id="...">` with no text or href) immediately preceding a
// heading become aliases of that heading: their registered URL points at the
// heading's anchor. Any intervening content breaks the alias chain and the
// pending anchors register as plain anchors instead.
package scanner

import (
	"strings"

	"golang.org/x/net/html"

	"git.home.luguber.info/inful/autorefs/internal/backlinks"
	"git.home.luguber.info/inful/autorefs/internal/registry"
)

// Scan walks a rendered page and registers every anchor and heading it
// finds. It returns the identifiers registered for the page, in document
// order, for later backlink-section rendering.
func Scan(page registry.Page, body string, reg *registry.Registry, rec *backlinks.Recorder) ([]string, error) {
	root, err := html.Parse(strings.NewReader(body))
	if err != nil {
		return nil, err
	}
	s := &scanState{page: page, reg: reg, rec: rec}
	s.pageCrumb = rec.AddCrumb(page.URL, page.Title, nil)
	s.scanContainer(root)
	s.flush("", s.lastHeading)
	return s.anchors, nil
}

type scanState struct {
	page      registry.Page
	reg       *registry.Registry
	rec       *backlinks.Recorder
	pageCrumb *backlinks.Crumb

	// crumbByLevel[n] is the breadcrumb of the most recent heading of level
	// n, the parent candidate for deeper headings.
	crumbByLevel [7]*backlinks.Crumb

	pending     []string
	anchors     []string
	lastHeading string
}

func (s *scanState) scanContainer(parent *html.Node) {
	for el := parent.FirstChild; el != nil; el = el.NextSibling {
		if el.Type != html.ElementNode {
			continue
		}
		switch el.Data {
		case "a":
			// A bare anchor may alias an upcoming heading. Text, a link
			// target, or trailing content interrupts the chain.
			if id := attr(el, "id"); id != "" {
				s.pending = append(s.pending, id)
			}
			if hasText(el) || attr(el, "href") != "" || tailText(el) != "" {
				s.flush("", s.lastHeading)
			}
		case "p":
			// Paragraphs are transparent for alias chains.
			s.scanContainer(el)
			if tailText(el) != "" {
				s.flush("", "")
			}
		case "h1", "h2", "h3", "h4", "h5", "h6":
			s.heading(el)
		default:
			s.flush("", s.lastHeading)
			sub := &scanState{
				page: s.page, reg: s.reg, rec: s.rec,
				pageCrumb: s.pageCrumb, crumbByLevel: s.crumbByLevel,
			}
			sub.scanContainer(el)
			sub.flush("", sub.lastHeading)
			s.anchors = append(s.anchors, sub.anchors...)
		}
	}
}

func (s *scanState) heading(el *html.Node) {
	level := int(el.Data[1] - '0')
	title := textContent(el)
	s.lastHeading = title
	id := attr(el, "id")
	if id == "" {
		s.flush("", title)
		return
	}

	s.reg.RegisterAnchor(s.page, id, "", title, true)
	s.anchors = append(s.anchors, id)
	s.flush(id, title)

	parent := s.crumbParent(level)
	url := s.page.URL + "#" + id
	crumb := s.rec.AddCrumb(url, title, parent)
	s.crumbByLevel[level] = crumb
	for l := level + 1; l < len(s.crumbByLevel); l++ {
		s.crumbByLevel[l] = nil
	}
}

// crumbParent picks the breadcrumb parent for a heading: the nearest
// shallower heading, else the page itself. Top-level headings skip the page
// crumb to avoid repeating the page title in every chain.
func (s *scanState) crumbParent(level int) *backlinks.Crumb {
	if level == 1 {
		return s.pageCrumb.Parent
	}
	for l := level - 1; l >= 1; l-- {
		if s.crumbByLevel[l] != nil {
			return s.crumbByLevel[l]
		}
	}
	return s.pageCrumb
}

// flush registers the pending anchors, as aliases of aliasTo when set.
func (s *scanState) flush(aliasTo, title string) {
	for _, anchor := range s.pending {
		s.reg.RegisterAnchor(s.page, anchor, aliasTo, title, true)
		s.anchors = append(s.anchors, anchor)
	}
	s.pending = s.pending[:0]
}

func attr(n *html.Node, key string) string {
	for _, a := range n.Attr {
		if a.Key == key {
			return a.Val
		}
	}
	return ""
}

func hasText(n *html.Node) bool {
	for c := n.FirstChild; c != nil; c = c.NextSibling {
		if c.Type == html.TextNode && strings.TrimSpace(c.Data) != "" {
			return true
		}
	}
	return false
}

// tailText returns the non-whitespace text immediately following an element.
func tailText(n *html.Node) string {
	for sib := n.NextSibling; sib != nil; sib = sib.NextSibling {
		if sib.Type == html.TextNode {
			if t := strings.TrimSpace(sib.Data); t != "" {
				return t
			}
			continue
		}
		break
	}
	return ""
}

func textContent(n *html.Node) string {
	if n.Type == html.TextNode {
		return n.Data
	}
	var b strings.Builder
	for c := n.FirstChild; c != nil; c = c.NextSibling {
		b.WriteString(textContent(c))
	}
	return strings.TrimSpace(b.String())
}
