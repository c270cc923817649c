// Package registry owns the identifier namespace of a single site build.
//
// During the registration pass, anchor scanners populate three URL maps:
// primary URLs (the canonical location of a heading-level anchor), secondary
// URLs (aliases that should behave like another identifier's primary target),
// and absolute URLs (externally supplied resolutions, typically from object
// inventories). Once every page has been rendered, the reference rewriter
// resolves identifiers against the closed namespace.
package registry

import (
	"errors"
	"fmt"
	"log/slog"
	"sync"

	"git.home.luguber.info/inful/autorefs/internal/urlutil"
)

// ErrUnresolved is returned when no map contains an identifier.
var ErrUnresolved = errors.New("unresolved identifier")

// Page identifies a rendered page during registration.
type Page struct {
	Title   string
	URL     string
	SrcPath string
}

// Fallback yields alternate identifiers to try when an identifier has no
// primary or secondary entry.
type Fallback func(identifier string) []string

// Options configures resolution behavior.
type Options struct {
	// ResolveClosest picks the path-distance-nearest candidate when multiple
	// primary URLs exist for an identifier, instead of warning and using the
	// first-registered one.
	ResolveClosest bool
}

// Registry maps identifiers to candidate URLs. One instance per build;
// safe for concurrent registration and concurrent resolution, but all
// registration must complete before resolution starts.
type Registry struct {
	mu        sync.RWMutex
	opts      Options
	primary   map[string][]string
	secondary map[string][]string
	absolute  map[string]string
	titles    map[string]string
}

// New creates an empty registry.
func New(opts Options) *Registry {
	return &Registry{
		opts:      opts,
		primary:   make(map[string][]string),
		secondary: make(map[string][]string),
		absolute:  make(map[string]string),
		titles:    make(map[string]string),
	}
}

// RegisterAnchor records that an anchor for identifier was rendered on page.
// The anchor defaults to the identifier itself. Exact-URL repeats within an
// identifier's list are dropped; insertion order is otherwise preserved and
// determines resolution priority among ties. The first title registered for
// a URL wins.
func (r *Registry) RegisterAnchor(page Page, identifier, anchor, title string, primary bool) {
	if anchor == "" {
		anchor = identifier
	}
	url := page.URL + "#" + anchor

	r.mu.Lock()
	defer r.mu.Unlock()

	urlMap := r.primary
	if !primary {
		urlMap = r.secondary
	}
	known := false
	for _, u := range urlMap[identifier] {
		if u == url {
			known = true
			break
		}
	}
	if !known {
		urlMap[identifier] = append(urlMap[identifier], url)
	}
	if title != "" {
		if _, ok := r.titles[url]; !ok {
			r.titles[url] = title
		}
	}
}

// RegisterURL records an absolute URL for an identifier. Last write wins,
// so re-running a partial registration step is harmless.
func (r *Registry) RegisterURL(identifier, url string) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.absolute[identifier] = url
}

// HasAnchor reports whether the identifier has a primary or secondary entry.
// Identifiers resolved only through the absolute map come from external
// inventories and get no backlinks.
func (r *Registry) HasAnchor(identifier string) bool {
	r.mu.RLock()
	defer r.mu.RUnlock()
	_, ok := r.primary[identifier]
	if !ok {
		_, ok = r.secondary[identifier]
	}
	return ok
}

// ItemURL resolves an identifier to a URL and its registered title ("" when
// none). Primary entries win over secondary ones, which win over fallback
// expansions, which win over absolute URLs. When fromURL is non-empty, a
// site-relative result is rewritten relative to it. Resolution never mutates
// the registry.
func (r *Registry) ItemURL(identifier, fromURL string, fallback Fallback) (string, string, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()

	url, err := r.itemURL(identifier, fromURL, fallback)
	if err != nil {
		return "", "", err
	}
	title := r.titles[url]
	if fromURL != "" && !urlutil.IsExternal(url) {
		url = urlutil.RelativeURL(fromURL, url)
	}
	return url, title, nil
}

func (r *Registry) itemURL(identifier, fromURL string, fallback Fallback) (string, error) {
	if urls, secondary, ok := r.lookup(identifier); ok {
		return r.pick(identifier, urls, secondary, fromURL), nil
	}
	if fallback != nil {
		for _, alt := range fallback(identifier) {
			if urls, secondary, ok := r.lookup(alt); ok {
				return r.pick(alt, urls, secondary, fromURL), nil
			}
		}
	}
	if url, ok := r.absolute[identifier]; ok {
		return url, nil
	}
	return "", fmt.Errorf("%w: %q", ErrUnresolved, identifier)
}

func (r *Registry) lookup(identifier string) (urls []string, secondary, ok bool) {
	if urls, ok := r.primary[identifier]; ok {
		return urls, false, true
	}
	if urls, ok := r.secondary[identifier]; ok {
		return urls, true, true
	}
	return nil, false, false
}

// pick chooses among multiple candidate URLs. Secondary candidates are
// aliases, so the closest one is always preferred; primary candidates use
// closest resolution only when configured, otherwise the first-registered
// URL wins and the ambiguity is surfaced as a warning.
func (r *Registry) pick(identifier string, urls []string, secondary bool, fromURL string) string {
	if len(urls) == 1 {
		return urls[0]
	}
	qualifier := "primary"
	if secondary {
		qualifier = "secondary"
	}
	if (r.opts.ResolveClosest || secondary) && fromURL != "" {
		winner, found := urlutil.ClosestURL(fromURL, urls)
		if !found {
			slog.Warn("Could not find closest URL, using first candidate",
				"qualifier", qualifier, "identifier", identifier, "from", fromURL, "candidates", urls)
		}
		return winner
	}
	slog.Warn("Multiple URLs found for identifier, using first",
		"qualifier", qualifier, "identifier", identifier, "candidates", urls)
	return urls[0]
}
