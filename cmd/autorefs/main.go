package main

import (
	"log/slog"
	"os"

	"github.com/alecthomas/kong"
)

// Globals are flags shared by all commands.
type Globals struct {
	Config  string `short:"c" help:"Configuration file path" default:"autorefs.yaml"`
	Verbose bool   `short:"v" help:"Enable verbose logging"`
}

// CLI is the command tree.
type CLI struct {
	Globals

	Build   BuildCmd   `cmd:"" help:"Build the site once: render pages, resolve cross-references, write output"`
	Watch   WatchCmd   `cmd:"" help:"Rebuild the site whenever the source directory changes"`
	Report  ReportCmd  `cmd:"" help:"Show unresolved cross-references from the report store"`
	Version VersionCmd `cmd:"" help:"Print the version"`
}

func main() {
	var cli CLI
	ctx := kong.Parse(&cli,
		kong.Name("autorefs"),
		kong.Description("Cross-reference resolution for generated documentation sites."))

	logLevel := slog.LevelInfo
	if cli.Verbose {
		logLevel = slog.LevelDebug
	}
	slog.SetDefault(slog.New(slog.NewTextHandler(os.Stderr, &slog.HandlerOptions{
		Level: logLevel,
	})))

	ctx.FatalIfErrorf(ctx.Run(&cli.Globals))
}
