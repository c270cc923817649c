// Package backlinks records reverse references: which page sections link to
// a given identifier, expressed as breadcrumb chains from the site root down
// to the exact location of the link.
package backlinks

import (
	"log/slog"
	"sort"
	"strings"
	"sync"

	"git.home.luguber.info/inful/autorefs/internal/urlutil"
	"git.home.luguber.info/inful/autorefs/internal/util/sets"
)

// DefaultKind is the backlink kind used when a marker carries none.
const DefaultKind = "referenced-by"

// Crumb is one node in a breadcrumb chain. Chains form a tree: crumbs for
// common ancestors are shared between backlinks, not duplicated.
type Crumb struct {
	Title  string
	URL    string
	Parent *Crumb
}

// Backlink is one recorded reverse reference, materialized as the full
// breadcrumb chain from root to the linking section.
type Backlink struct {
	Crumbs []Crumb
}

// key identifies a backlink by its whole chain, so two backlinks pointing at
// the same page section collapse.
func (b Backlink) key() string {
	urls := make([]string, len(b.Crumbs))
	for i, c := range b.Crumbs {
		urls[i] = c.URL
	}
	return strings.Join(urls, "\x00")
}

// Recorder accumulates backlinks during the rewrite pass and serves them,
// relative to a viewing page, during later rendering. Safe for concurrent
// recording; retrieval must not overlap with recording.
type Recorder struct {
	mu     sync.RWMutex
	store  map[string]map[string]sets.Set[string]
	crumbs map[string]*Crumb
}

// NewRecorder creates an empty recorder.
func NewRecorder() *Recorder {
	return &Recorder{
		store:  make(map[string]map[string]sets.Set[string]),
		crumbs: make(map[string]*Crumb),
	}
}

// AddCrumb registers the breadcrumb chain node for a URL and returns it.
// The first registration for a URL wins; later calls return the existing
// node so callers can chain children off shared ancestors.
func (r *Recorder) AddCrumb(url, title string, parent *Crumb) *Crumb {
	r.mu.Lock()
	defer r.mu.Unlock()
	if c, ok := r.crumbs[url]; ok {
		return c
	}
	c := &Crumb{Title: title, URL: url, Parent: parent}
	r.crumbs[url] = c
	return c
}

// Crumb returns the registered chain node for a URL.
func (r *Recorder) Crumb(url string) (*Crumb, bool) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	c, ok := r.crumbs[url]
	return c, ok
}

// Record stores a backlink to identifier of the given kind, originating from
// anchor on the page at pageURL. An empty kind maps to DefaultKind.
func (r *Recorder) Record(identifier, kind, pageURL, anchor string) {
	if kind == "" {
		kind = DefaultKind
	}
	url := pageURL + "#" + anchor

	r.mu.Lock()
	defer r.mu.Unlock()
	kinds, ok := r.store[identifier]
	if !ok {
		kinds = make(map[string]sets.Set[string])
		r.store[identifier] = kinds
	}
	urls, ok := kinds[kind]
	if !ok {
		urls = sets.New[string]()
		kinds[kind] = urls
	}
	urls.Add(url)
}

// Backlinks returns all backlinks recorded for the given identifiers,
// grouped by kind, deduplicated by breadcrumb chain, with crumb URLs
// rewritten relative to fromURL. Output order is deterministic.
func (r *Recorder) Backlinks(fromURL string, identifiers ...string) map[string][]Backlink {
	r.mu.RLock()
	defer r.mu.RUnlock()

	out := make(map[string][]Backlink)
	seen := make(map[string]sets.Set[string])
	for _, identifier := range sets.New(identifiers...).Values() {
		for kind, urls := range r.store[identifier] {
			for _, url := range urls.Values() {
				bl, ok := r.backlink(fromURL, url)
				if !ok {
					continue
				}
				if seen[kind] == nil {
					seen[kind] = sets.New[string]()
				}
				if key := bl.key(); !seen[kind].Has(key) {
					seen[kind].Add(key)
					out[kind] = append(out[kind], bl)
				}
			}
		}
	}
	for kind := range out {
		sort.Slice(out[kind], func(i, j int) bool { return out[kind][i].key() < out[kind][j].key() })
	}
	return out
}

// backlink materializes the chain for a recorded backlink URL, root first.
// Section crumbs without a URL of their own are kept verbatim.
func (r *Recorder) backlink(fromURL, url string) (Backlink, bool) {
	crumb, ok := r.crumbs[url]
	if !ok {
		slog.Debug("No breadcrumb for backlink URL", "url", url)
		return Backlink{}, false
	}
	var chain []Crumb
	for c := crumb; c != nil; c = c.Parent {
		rel := c.URL
		if rel != "" {
			rel = urlutil.RelativeURL(fromURL, c.URL)
		}
		chain = append(chain, Crumb{Title: c.Title, URL: rel})
	}
	for i, j := 0, len(chain)-1; i < j; i, j = i+1, j-1 {
		chain[i], chain[j] = chain[j], chain[i]
	}
	return Backlink{Crumbs: chain}, true
}
