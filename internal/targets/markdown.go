package targets

import (
	"context"
	"fmt"
	"log/slog"
	"os"
	"path/filepath"
	"strings"
	"time"

	"pydigest/internal/types"
)

// MarkdownTarget writes one digest report file per run: the ordered
// posts followed by the run statistics.
type MarkdownTarget struct {
	name string
	dir  string
}

func NewMarkdownTarget(name, dir string) *MarkdownTarget {
	if dir == "" {
		dir = "."
	}
	return &MarkdownTarget{name: name, dir: dir}
}

func (t *MarkdownTarget) Name() string {
	return t.name
}

func (t *MarkdownTarget) Initialize(ctx context.Context) error {
	if err := os.MkdirAll(t.dir, 0o755); err != nil {
		return fmt.Errorf("failed to create report directory: %w", err)
	}
	return nil
}

func (t *MarkdownTarget) Publish(ctx context.Context, posts []types.Post, run *types.PipelineRun) error {
	var sb strings.Builder

	fmt.Fprintf(&sb, "# Digest %s\n\n", run.StartedAt.Format("2006-01-02"))

	if len(posts) == 0 {
		sb.WriteString("No posts this run.\n\n")
	}
	for i, post := range posts {
		fmt.Fprintf(&sb, "## %d. %s\n\n", i+1, post.Title)
		fmt.Fprintf(&sb, "*%s*\n\n", post.Type)
		fmt.Fprintf(&sb, "%s\n\n", post.Summary)
		fmt.Fprintf(&sb, "[Read more](%s)\n\n", post.Link)
	}

	sb.WriteString("---\n\n## Run statistics\n\n")
	fmt.Fprintf(&sb, "- Fetched: %d\n", run.Fetched)
	fmt.Fprintf(&sb, "- Duplicates removed: %d\n", run.Duplicates)
	fmt.Fprintf(&sb, "- Filtered out: %d\n", run.FilteredOut)
	fmt.Fprintf(&sb, "- Selected: %d\n", run.Selected)
	fmt.Fprintf(&sb, "- Composed: %d\n", run.Composed)
	fmt.Fprintf(&sb, "- Stage errors: %d\n", len(run.Errors))
	fmt.Fprintf(&sb, "- Duration: %s\n", run.Duration().Round(time.Second))

	if len(run.Errors) > 0 {
		sb.WriteString("\n### Errors\n\n")
		for _, se := range run.Errors {
			fmt.Fprintf(&sb, "- [%s] %s: %v\n", se.Stage, se.Subject, se.Err)
		}
	}

	path := filepath.Join(t.dir, fmt.Sprintf("digest_%s.md", run.StartedAt.Format("20060102_150405")))
	if err := os.WriteFile(path, []byte(sb.String()), 0o644); err != nil {
		return fmt.Errorf("failed to write report: %w", err)
	}

	slog.Info("markdown report written", "target", t.name, "path", path, "posts", len(posts))
	return nil
}

func (t *MarkdownTarget) Shutdown(ctx context.Context) error {
	return nil
}
