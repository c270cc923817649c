package main

import (
	"context"
	"fmt"
	"log/slog"

	"git.home.luguber.info/inful/autorefs/internal/build"
	"git.home.luguber.info/inful/autorefs/internal/config"
	buildererrors "git.home.luguber.info/inful/autorefs/internal/errors"
	"git.home.luguber.info/inful/autorefs/internal/metrics"
	"git.home.luguber.info/inful/autorefs/internal/report"
)

// BuildCmd implements the 'build' command.
type BuildCmd struct {
	Source string `short:"s" help:"Override the configured source directory"`
	Output string `short:"o" help:"Override the configured output directory"`
}

func (b *BuildCmd) Run(g *Globals) error {
	cfg, err := config.Load(g.Config)
	if err != nil {
		return fmt.Errorf("load config: %w", err)
	}
	if b.Source != "" {
		cfg.Source = b.Source
	}
	if b.Output != "" {
		cfg.Output = b.Output
	}
	return runBuild(context.Background(), cfg, metrics.NoopRecorder{})
}

func runBuild(ctx context.Context, cfg *config.Config, mets metrics.Recorder) error {
	builder := build.New(cfg, build.WithMetrics(mets))
	result, err := builder.Run(ctx)
	if err != nil {
		if buildererrors.IsCategory(err, buildererrors.CategoryValidation) {
			return fmt.Errorf("%w (is %q the right source directory?)", err, cfg.Source)
		}
		return err
	}
	fmt.Printf("Build %s: %d pages, %d references resolved, %d unresolved\n",
		result.BuildID, result.Pages, result.Resolved, result.Unresolved)

	if cfg.ReportDB == "" {
		return nil
	}
	// Reporting is auxiliary; a finished build is not failed over it.
	if err := recordReport(ctx, cfg.ReportDB, result); err != nil {
		be := buildererrors.Wrap(err, buildererrors.CategoryReport, "record build report")
		be.Severity = buildererrors.SeverityWarning
		slog.Warn("Build report not recorded", "db", cfg.ReportDB, "error", be)
		return nil
	}
	slog.Info("Build report recorded", "db", cfg.ReportDB, "build_id", result.BuildID)
	return nil
}

func recordReport(ctx context.Context, db string, result *build.Result) error {
	store, err := report.Open(db)
	if err != nil {
		return err
	}
	defer func() { _ = store.Close() }()

	refs := make([]report.UnresolvedRef, 0, len(result.Unmapped))
	for _, u := range result.Unmapped {
		ref := report.UnresolvedRef{Page: u.Page, Identifier: u.Identifier}
		if u.Context != nil {
			ref.Context = fmt.Sprintf("%s:%d (%s)", u.Context.Filepath, u.Context.Lineno, u.Context.Origin)
		}
		refs = append(refs, ref)
	}
	sum := report.Summary{
		BuildID:    result.BuildID,
		StartedAt:  result.StartedAt,
		FinishedAt: result.FinishedAt,
		Pages:      result.Pages,
		Resolved:   result.Resolved,
		Unresolved: result.Unresolved,
	}
	return store.RecordBuild(ctx, sum, refs)
}
