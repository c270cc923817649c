package observability

import (
	"bytes"
	"context"
	"log/slog"
	"testing"

	"github.com/stretchr/testify/require"
)

func captureLogs(t *testing.T) *bytes.Buffer {
	t.Helper()
	var buf bytes.Buffer
	prev := slog.Default()
	slog.SetDefault(slog.New(slog.NewTextHandler(&buf, nil)))
	t.Cleanup(func() { slog.SetDefault(prev) })
	return &buf
}

func TestContextAttrsReachLogLines(t *testing.T) {
	buf := captureLogs(t)

	ctx := WithBuildID(context.Background(), "b1")
	ctx = WithPhase(ctx, "fix")
	ctx = WithPage(ctx, "guide/intro.md")
	WarnContext(ctx, "Could not find cross-reference target", slog.String("identifier", "x"))

	out := buf.String()
	require.Contains(t, out, "build.id=b1")
	require.Contains(t, out, "phase=fix")
	require.Contains(t, out, "page=guide/intro.md")
	require.Contains(t, out, "identifier=x")
}

func TestEmptyContextAddsNoAttrs(t *testing.T) {
	buf := captureLogs(t)

	InfoContext(context.Background(), "Build finished")

	out := buf.String()
	require.NotContains(t, out, "build.id=")
	require.NotContains(t, out, "phase=")
	require.NotContains(t, out, "page=")
}
