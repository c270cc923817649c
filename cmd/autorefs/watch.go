package main

import (
	"context"
	"fmt"
	"io/fs"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"path/filepath"
	"strings"
	"syscall"
	"time"

	"github.com/fsnotify/fsnotify"
	prom "github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	"git.home.luguber.info/inful/autorefs/internal/config"
	buildererrors "git.home.luguber.info/inful/autorefs/internal/errors"
	"git.home.luguber.info/inful/autorefs/internal/metrics"
)

// debounce window between a filesystem event and the rebuild it triggers, so
// editor save bursts collapse into one build.
const debounceDelay = 300 * time.Millisecond

// WatchCmd implements the 'watch' command: rebuild on source changes.
type WatchCmd struct {
	MetricsAddr string `help:"Serve Prometheus metrics on this address (e.g. :9090)"`
}

func (w *WatchCmd) Run(g *Globals) error {
	cfg, err := config.Load(g.Config)
	if err != nil {
		return fmt.Errorf("load config: %w", err)
	}

	var mets metrics.Recorder = metrics.NoopRecorder{}
	if w.MetricsAddr != "" {
		reg := prom.NewRegistry()
		mets = metrics.NewPrometheusRecorder(reg)
		go func() {
			handler := promhttp.HandlerFor(reg, promhttp.HandlerOpts{})
			if err := http.ListenAndServe(w.MetricsAddr, handler); err != nil {
				slog.Error("Metrics server stopped", "error", err)
			}
		}()
		slog.Info("Serving metrics", "addr", w.MetricsAddr)
	}

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	watcher, err := fsnotify.NewWatcher()
	if err != nil {
		return fmt.Errorf("create watcher: %w", err)
	}
	defer func() { _ = watcher.Close() }()
	if err := watchRecursive(watcher, cfg.Source); err != nil {
		return err
	}

	if err := runBuild(ctx, cfg, mets); err != nil {
		slog.Error("Initial build failed",
			"category", buildererrors.GetCategory(err), "error", err)
	}
	slog.Info("Watching for changes", "source", cfg.Source)

	var debounce *time.Timer
	rebuild := make(chan struct{}, 1)
	for {
		select {
		case <-ctx.Done():
			return nil
		case event, ok := <-watcher.Events:
			if !ok {
				return nil
			}
			if !relevant(event) {
				continue
			}
			// New directories need their own watches.
			if event.Op.Has(fsnotify.Create) {
				if info, err := os.Stat(event.Name); err == nil && info.IsDir() {
					_ = watchRecursive(watcher, event.Name)
				}
			}
			if debounce != nil {
				debounce.Stop()
			}
			debounce = time.AfterFunc(debounceDelay, func() {
				select {
				case rebuild <- struct{}{}:
				default:
				}
			})
		case err, ok := <-watcher.Errors:
			if !ok {
				return nil
			}
			slog.Warn("Watcher error", "error", err)
		case <-rebuild:
			slog.Info("Source changed, rebuilding")
			if err := runBuild(ctx, cfg, mets); err != nil {
				slog.Error("Rebuild failed",
					"category", buildererrors.GetCategory(err), "error", err)
			}
		}
	}
}

func watchRecursive(watcher *fsnotify.Watcher, root string) error {
	return filepath.WalkDir(root, func(path string, d fs.DirEntry, err error) error {
		if err != nil {
			return err
		}
		if d.IsDir() {
			return watcher.Add(path)
		}
		return nil
	})
}

// relevant filters events down to markdown content and directory changes.
func relevant(event fsnotify.Event) bool {
	if !event.Op.Has(fsnotify.Create) && !event.Op.Has(fsnotify.Write) &&
		!event.Op.Has(fsnotify.Remove) && !event.Op.Has(fsnotify.Rename) {
		return false
	}
	if strings.HasSuffix(event.Name, ".md") {
		return true
	}
	info, err := os.Stat(event.Name)
	return err == nil && info.IsDir()
}
