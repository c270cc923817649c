package main

import (
	"context"
	"fmt"

	"git.home.luguber.info/inful/autorefs/internal/config"
	"git.home.luguber.info/inful/autorefs/internal/report"
)

// ReportCmd implements the 'report' command: inspect a past build's
// unresolved cross-references.
type ReportCmd struct {
	BuildID string `help:"Build to inspect (defaults to the most recent)"`
}

func (r *ReportCmd) Run(g *Globals) error {
	cfg, err := config.Load(g.Config)
	if err != nil {
		return fmt.Errorf("load config: %w", err)
	}
	if cfg.ReportDB == "" {
		return fmt.Errorf("no report_db configured in %s", g.Config)
	}
	store, err := report.Open(cfg.ReportDB)
	if err != nil {
		return fmt.Errorf("open report store: %w", err)
	}
	defer func() { _ = store.Close() }()

	ctx := context.Background()
	sum, err := store.LastBuild(ctx)
	if err != nil {
		return fmt.Errorf("no builds recorded: %w", err)
	}
	buildID := r.BuildID
	if buildID == "" {
		buildID = sum.BuildID
		fmt.Printf("Build %s (%s): %d pages, %d resolved, %d unresolved\n",
			sum.BuildID, sum.FinishedAt.Format("2006-01-02 15:04:05"),
			sum.Pages, sum.Resolved, sum.Unresolved)
	}

	refs, err := store.Unresolved(ctx, buildID)
	if err != nil {
		return err
	}
	if len(refs) == 0 {
		fmt.Println("No unresolved cross-references.")
		return nil
	}
	for _, ref := range refs {
		if ref.Context != "" {
			fmt.Printf("%s: %q from %s\n", ref.Page, ref.Identifier, ref.Context)
		} else {
			fmt.Printf("%s: %q\n", ref.Page, ref.Identifier)
		}
	}
	return nil
}
