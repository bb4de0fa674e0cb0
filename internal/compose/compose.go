package compose

import (
	"context"
	"log/slog"
	"sync"
	"time"
	"unicode/utf8"

	"pydigest/internal/oracle"
	"pydigest/internal/types"
)

// Composer turns ranked items into posts through the generation
// oracle. It owns request construction and constraint validation; the
// prose itself is opaque.
type Composer struct {
	oracle      oracle.Composer
	constraints oracle.Constraints
	concurrency int
	timeout     time.Duration
}

type Config struct {
	Constraints oracle.Constraints
	Concurrency int
	Timeout     time.Duration
}

func New(gen oracle.Composer, cfg Config) *Composer {
	if cfg.Concurrency == 0 {
		cfg.Concurrency = 5
	}
	if cfg.Timeout == 0 {
		cfg.Timeout = 60 * time.Second
	}
	if cfg.Constraints.TitleMaxLen == 0 {
		cfg.Constraints.TitleMaxLen = 100
	}
	if cfg.Constraints.SummaryMaxLen == 0 {
		cfg.Constraints.SummaryMaxLen = 350
	}

	return &Composer{
		oracle:      gen,
		constraints: cfg.Constraints,
		concurrency: cfg.Concurrency,
		timeout:     cfg.Timeout,
	}
}

// Compose drafts a post per ranked item, concurrently but preserving
// the ranked order in the output. A failed item is dropped and
// recorded; a partial digest beats a failed run.
func (c *Composer) Compose(ctx context.Context, ranked []types.RankedItem, run *types.PipelineRun) []types.Post {
	drafts := make([]*types.Post, len(ranked))
	failures := make([]error, len(ranked))

	sem := make(chan struct{}, c.concurrency)
	var wg sync.WaitGroup

	for i := range ranked {
		wg.Add(1)
		go func(idx int) {
			defer wg.Done()
			sem <- struct{}{}
			defer func() { <-sem }()

			post, err := c.composeOne(ctx, &ranked[idx])
			if err != nil {
				failures[idx] = err
				return
			}
			drafts[idx] = post
		}(i)
	}

	wg.Wait()

	posts := make([]types.Post, 0, len(ranked))
	for i := range ranked {
		if failures[i] != nil {
			slog.Warn("item dropped from digest", "link", ranked[i].Item.Link, "error", failures[i])
			run.RecordError(types.StageComposing, ranked[i].Item.Key(), failures[i])
			continue
		}
		posts = append(posts, *drafts[i])
	}

	run.Composed = len(posts)
	slog.Info("composition complete", "selected", len(ranked), "composed", len(posts))
	return posts
}

// composeOne calls the oracle, validating the draft against the format
// constraints with exactly one re-prompt on violation.
func (c *Composer) composeOne(ctx context.Context, item *types.RankedItem) (*types.Post, error) {
	req := oracle.Item{
		Key:     item.Item.Key(),
		Title:   item.Item.Title,
		Summary: item.Item.Summary,
	}

	feedback := ""
	var lastErr error
	for attempt := 0; attempt < 2; attempt++ {
		callCtx, cancel := context.WithTimeout(ctx, c.timeout)
		draft, err := c.oracle.Compose(callCtx, req, c.constraints, feedback)
		cancel()
		if err != nil {
			return nil, types.NewOracleError("generation", item.Item.Key(), err)
		}

		if violation := c.validate(item.Item.Key(), &draft); violation != nil {
			lastErr = violation
			feedback = violation.Error()
			slog.Debug("draft violated constraints, re-prompting", "link", item.Item.Key(), "violation", feedback, "attempt", attempt+1)
			continue
		}

		return &types.Post{
			Title:   draft.Title,
			Type:    item.ContentType,
			Summary: draft.Summary,
			Link:    item.Item.Link,
		}, nil
	}

	return nil, lastErr
}

func (c *Composer) validate(key string, draft *oracle.Draft) *types.FormatError {
	if draft.Title == "" {
		return types.NewFormatError(key, "title", "empty title")
	}
	if n := utf8.RuneCountInString(draft.Title); n > c.constraints.TitleMaxLen {
		return types.NewFormatError(key, "title", "title exceeds maximum length")
	}
	if n := utf8.RuneCountInString(draft.Summary); n > c.constraints.SummaryMaxLen {
		return types.NewFormatError(key, "summary", "summary exceeds maximum length")
	}
	return nil
}
