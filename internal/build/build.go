// Package build orchestrates a site build: render and register every page,
// then rewrite cross-references against the complete identifier namespace,
// then render backlink sections. The phases are strictly ordered; rewriting
// never starts until registration has finished for all pages, and backlink
// retrieval never overlaps with recording.
package build

import (
	"context"
	"fmt"
	"io/fs"
	"log/slog"
	"os"
	"path/filepath"
	"runtime"
	"strings"
	"sync"
	"sync/atomic"
	"time"

	"github.com/google/uuid"

	"git.home.luguber.info/inful/autorefs/internal/backlinks"
	"git.home.luguber.info/inful/autorefs/internal/config"
	buildererrors "git.home.luguber.info/inful/autorefs/internal/errors"
	"git.home.luguber.info/inful/autorefs/internal/markdown"
	"git.home.luguber.info/inful/autorefs/internal/metrics"
	"git.home.luguber.info/inful/autorefs/internal/observability"
	"git.home.luguber.info/inful/autorefs/internal/registry"
	"git.home.luguber.info/inful/autorefs/internal/rewrite"
	"git.home.luguber.info/inful/autorefs/internal/scanner"
)

// BacklinksPlaceholder marks where a page wants its backlink section.
const BacklinksPlaceholder = "<!-- autorefs:backlinks -->"

// Page is one source page moving through the build.
type Page struct {
	registry.Page
	OutPath string
	HTML    string
	Anchors []string
}

// UnmappedRef is an unresolved reference attributed to its page.
type UnmappedRef struct {
	Page       string
	Identifier string
	Context    *rewrite.Context
}

// Result summarizes a finished build.
type Result struct {
	BuildID    string
	StartedAt  time.Time
	FinishedAt time.Time
	Pages      int
	Resolved   int
	Unresolved int
	Unmapped   []UnmappedRef
}

// Builder runs one site build. Create a fresh Builder per build; the
// registry and recorder it owns are build-scoped.
type Builder struct {
	cfg  *config.Config
	reg  *registry.Registry
	rec  *backlinks.Recorder
	mets metrics.Recorder
	hook rewrite.Hook
}

// Option configures a Builder.
type Option func(*Builder)

// WithMetrics installs a metrics recorder.
func WithMetrics(rec metrics.Recorder) Option {
	return func(b *Builder) { b.mets = rec }
}

// WithHook installs an identifier-expansion hook.
func WithHook(h rewrite.Hook) Option {
	return func(b *Builder) { b.hook = h }
}

// New creates a Builder for one build of the configured site.
func New(cfg *config.Config, opts ...Option) *Builder {
	b := &Builder{
		cfg:  cfg,
		reg:  registry.New(registry.Options{ResolveClosest: cfg.ResolveClosest}),
		rec:  backlinks.NewRecorder(),
		mets: metrics.NoopRecorder{},
	}
	for _, opt := range opts {
		opt(b)
	}
	return b
}

// Registry exposes the identifier registry, e.g. for external inventory
// loading via RegisterURL before Run.
func (b *Builder) Registry() *registry.Registry { return b.reg }

// Backlinks returns the recorded backlinks for the given identifiers
// relative to a viewing page. Only valid after Run.
func (b *Builder) Backlinks(fromURL string, identifiers ...string) map[string][]backlinks.Backlink {
	return b.rec.Backlinks(fromURL, identifiers...)
}

// Run executes the build.
func (b *Builder) Run(ctx context.Context) (*Result, error) {
	result := &Result{BuildID: uuid.NewString(), StartedAt: time.Now()}
	ctx = observability.WithBuildID(ctx, result.BuildID)

	pages, err := b.register(observability.WithPhase(ctx, "register"))
	if err != nil {
		return nil, err
	}
	result.Pages = len(pages)

	// Registration is closed: the rewrite pass sees the full namespace.
	resolved := b.fix(observability.WithPhase(ctx, "fix"), pages, result)
	result.Resolved = resolved

	// Rewriting is closed: backlink retrieval is now safe.
	if err := b.write(observability.WithPhase(ctx, "write"), pages); err != nil {
		return nil, err
	}

	result.FinishedAt = time.Now()
	observability.InfoContext(ctx, "Build finished",
		slog.Int("pages", result.Pages),
		slog.Int("resolved", result.Resolved),
		slog.Int("unresolved", result.Unresolved))
	return result, nil
}

// register renders every page and populates the identifier registry (phase 1).
func (b *Builder) register(ctx context.Context) ([]*Page, error) {
	started := time.Now()
	defer func() { b.mets.PhaseDuration("register", time.Since(started)) }()

	paths, err := discover(b.cfg.Source)
	if err != nil {
		return nil, err
	}
	if len(paths) == 0 {
		return nil, buildererrors.New(buildererrors.CategoryValidation, buildererrors.SeverityFatal,
			"no markdown pages found").WithContext("source", b.cfg.Source)
	}

	pages := make([]*Page, 0, len(paths))
	for _, src := range paths {
		page, err := b.renderPage(ctx, src)
		if err != nil {
			return nil, err
		}
		pages = append(pages, page)
		b.mets.PageRendered()
	}
	return pages, nil
}

func (b *Builder) renderPage(ctx context.Context, src string) (*Page, error) {
	observability.DebugContext(ctx, "Rendering page", slog.String("page", src))

	body, err := os.ReadFile(filepath.Join(b.cfg.Source, src))
	if err != nil {
		return nil, buildererrors.Wrap(err, buildererrors.CategoryFileSystem, "read page").
			WithContext("page", src)
	}
	html, err := markdown.Render(body, markdown.Options{})
	if err != nil {
		return nil, buildererrors.Wrap(err, buildererrors.CategoryRender, "render page").
			WithContext("page", src)
	}
	html = markdown.MarkAutorefs(html)
	if b.cfg.RecordBacklinks {
		html = markdown.AnnotateBacklinks(html)
	}

	title := markdown.FirstHeading(html)
	if title == "" {
		title = strings.TrimSuffix(filepath.Base(src), ".md")
	}
	page := &Page{
		Page: registry.Page{Title: title, URL: pageURL(src), SrcPath: src},
		HTML: html,
	}
	page.OutPath = filepath.Join(filepath.FromSlash(page.URL), "index.html")

	anchors, err := scanner.Scan(page.Page, html, b.reg, b.rec)
	if err != nil {
		return nil, buildererrors.Wrap(err, buildererrors.CategoryRender, "scan anchors").
			WithContext("page", src)
	}
	page.Anchors = anchors
	return page, nil
}

// fix rewrites cross-references on all pages (phase 2). Reads against the
// registry are lock-free in effect (it is closed); the backlink recorder
// synchronizes its own writes. Returns the number of resolved references.
func (b *Builder) fix(ctx context.Context, pages []*Page, result *Result) int {
	started := time.Now()
	defer func() { b.mets.PhaseDuration("fix", time.Since(started)) }()

	counter := &countingRecorder{next: b.mets}
	var mu sync.Mutex

	jobs := make(chan *Page)
	var wg sync.WaitGroup
	for range min(runtime.GOMAXPROCS(0), len(pages)) {
		wg.Add(1)
		go func() {
			defer wg.Done()
			for page := range jobs {
				unmapped := b.fixPage(ctx, page, counter)
				if len(unmapped) == 0 {
					continue
				}
				mu.Lock()
				result.Unmapped = append(result.Unmapped, unmapped...)
				mu.Unlock()
			}
		}()
	}
	for _, page := range pages {
		jobs <- page
	}
	close(jobs)
	wg.Wait()

	result.Unresolved = int(counter.unresolved.Load())
	return int(counter.resolved.Load())
}

func (b *Builder) fixPage(ctx context.Context, page *Page, mets metrics.Recorder) []UnmappedRef {
	ctx = observability.WithPage(ctx, page.SrcPath)
	mapper := func(identifier string) (string, string, error) {
		return b.reg.ItemURL(identifier, page.URL, nil)
	}
	var record rewrite.RecordBacklink
	if b.cfg.RecordBacklinks {
		record = func(identifier, kind, anchor string) {
			// Absolute-map-only identifiers come from external inventories
			// and get no backlinks.
			if b.reg.HasAnchor(identifier) {
				b.rec.Record(identifier, kind, page.URL, anchor)
				b.mets.BacklinkRecorded()
			}
		}
	}

	html, unmapped := rewrite.FixRefs(page.HTML, mapper, rewrite.Options{
		LinkTitles:     b.cfg.TitlePolicy(),
		StripTitleTags: b.cfg.StripTags(),
		RecordBacklink: record,
		Hook:           b.hook,
		Metrics:        mets,
	})
	page.HTML = html

	refs := make([]UnmappedRef, 0, len(unmapped))
	for _, u := range unmapped {
		attrs := []slog.Attr{
			slog.String("identifier", u.Identifier),
		}
		if u.Context != nil {
			attrs = append(attrs,
				slog.String("from", fmt.Sprintf("%s:%d", u.Context.Filepath, u.Context.Lineno)),
				slog.String("origin", u.Context.Origin))
		}
		observability.WarnContext(ctx, "Could not find cross-reference target", attrs...)
		refs = append(refs, UnmappedRef{Page: page.SrcPath, Identifier: u.Identifier, Context: u.Context})
	}
	return refs
}

// write renders backlink sections and writes pages to the output directory
// (phase 3).
func (b *Builder) write(ctx context.Context, pages []*Page) error {
	started := time.Now()
	defer func() { b.mets.PhaseDuration("write", time.Since(started)) }()

	for _, page := range pages {
		html := page.HTML
		if strings.Contains(html, BacklinksPlaceholder) {
			section := renderBacklinksSection(b.rec.Backlinks(page.URL, page.Anchors...))
			html = strings.Replace(html, BacklinksPlaceholder, section, 1)
		}

		out := filepath.Join(b.cfg.Output, page.OutPath)
		if err := os.MkdirAll(filepath.Dir(out), 0o755); err != nil {
			return buildererrors.Wrap(err, buildererrors.CategoryFileSystem, "create output directory").
				WithContext("page", page.SrcPath)
		}
		doc := renderDocument(page.Title, html)
		if err := os.WriteFile(out, []byte(doc), 0o644); err != nil {
			return buildererrors.Wrap(err, buildererrors.CategoryFileSystem, "write page").
				WithContext("page", page.SrcPath)
		}
		observability.DebugContext(ctx, "Wrote page",
			slog.String("page", page.SrcPath), slog.String("out", out))
	}
	return nil
}

// discover lists markdown files under the source directory, as slash paths
// relative to it, in deterministic walk order.
func discover(source string) ([]string, error) {
	var paths []string
	err := filepath.WalkDir(source, func(path string, d fs.DirEntry, err error) error {
		if err != nil {
			return err
		}
		if d.IsDir() || !strings.HasSuffix(d.Name(), ".md") {
			return nil
		}
		rel, err := filepath.Rel(source, path)
		if err != nil {
			return err
		}
		paths = append(paths, filepath.ToSlash(rel))
		return nil
	})
	if err != nil {
		return nil, buildererrors.Wrap(err, buildererrors.CategoryFileSystem, "discover pages").
			WithContext("source", source)
	}
	return paths, nil
}

// pageURL maps a source path to its pretty site URL:
// index.md -> "", guide/intro.md -> "guide/intro/", guide/index.md -> "guide/".
func pageURL(src string) string {
	url := strings.TrimSuffix(src, ".md")
	if url == "index" {
		return ""
	}
	url = strings.TrimSuffix(url, "/index")
	return url + "/"
}

// countingRecorder tallies per-build counts while delegating to the real
// metrics recorder.
type countingRecorder struct {
	next       metrics.Recorder
	resolved   atomic.Int64
	unresolved atomic.Int64
}

func (c *countingRecorder) PageRendered() { c.next.PageRendered() }

func (c *countingRecorder) RefResolved(external bool) {
	c.resolved.Add(1)
	c.next.RefResolved(external)
}

func (c *countingRecorder) RefUnresolved() {
	c.unresolved.Add(1)
	c.next.RefUnresolved()
}

func (c *countingRecorder) BacklinkRecorded() { c.next.BacklinkRecorded() }

func (c *countingRecorder) PhaseDuration(phase string, d time.Duration) {
	c.next.PhaseDuration(phase, d)
}
