package sources

import (
	"context"
	"fmt"
	"log/slog"
	"sync"
	"time"

	"pydigest/internal/types"
)

// Client pulls raw items for one configured source.
type Client interface {
	Fetch(ctx context.Context, src types.SourceConfig, lookback time.Duration, maxItems int) ([]types.RawItem, error)
}

// Fetcher fans out over the active sources with a bounded worker pool
// and merges the per-source results. One source failing is recorded
// and skipped; all sources failing is fatal.
type Fetcher struct {
	clients      map[types.SourceKind]Client
	extractor    *Extractor
	lookback     time.Duration
	maxPerSource int
	concurrency  int
}

type FetcherConfig struct {
	Lookback     time.Duration
	MaxPerSource int
	Concurrency  int
}

func NewFetcher(cfg FetcherConfig, rss Client, search Client, extractor *Extractor) *Fetcher {
	if cfg.Lookback == 0 {
		cfg.Lookback = 168 * time.Hour
	}
	if cfg.MaxPerSource == 0 {
		cfg.MaxPerSource = 20
	}
	if cfg.Concurrency == 0 {
		cfg.Concurrency = 5
	}

	clients := make(map[types.SourceKind]Client)
	if rss != nil {
		clients[types.SourceRSS] = rss
	}
	if search != nil {
		clients[types.SourceSearch] = search
	}

	return &Fetcher{
		clients:      clients,
		extractor:    extractor,
		lookback:     cfg.Lookback,
		maxPerSource: cfg.MaxPerSource,
		concurrency:  cfg.Concurrency,
	}
}

// FetchAll materializes the raw items of every source. Within a source
// the feed order is preserved; across sources the merge follows config
// order so a run's output is reproducible.
func (f *Fetcher) FetchAll(ctx context.Context, srcs []types.SourceConfig, run *types.PipelineRun) ([]types.RawItem, error) {
	if len(srcs) == 0 {
		return nil, types.NewFatalError(types.StageFetching, "no active sources configured", nil)
	}

	results := make([][]types.RawItem, len(srcs))
	failures := make([]error, len(srcs))

	sem := make(chan struct{}, f.concurrency)
	var wg sync.WaitGroup

	for i, src := range srcs {
		wg.Add(1)
		go func(idx int, src types.SourceConfig) {
			defer wg.Done()
			sem <- struct{}{}
			defer func() { <-sem }()

			items, err := f.fetchSource(ctx, src)
			if err != nil {
				slog.Error("source fetch failed", "source", src.ID, "error", err)
				failures[idx] = types.NewSourceError(src.ID, err)
				return
			}
			slog.Info("source fetched", "source", src.ID, "items", len(items))
			results[idx] = items
		}(i, src)
	}

	wg.Wait()

	var merged []types.RawItem
	failed := 0
	for i := range srcs {
		if failures[i] != nil {
			failed++
			run.RecordError(types.StageFetching, srcs[i].ID, failures[i])
			continue
		}
		merged = append(merged, results[i]...)
	}

	if failed == len(srcs) {
		return nil, types.NewFatalError(types.StageFetching, "all sources failed", nil)
	}

	run.Fetched = len(merged)
	return merged, nil
}

func (f *Fetcher) fetchSource(ctx context.Context, src types.SourceConfig) ([]types.RawItem, error) {
	client, ok := f.clients[src.Kind]
	if !ok {
		return nil, fmt.Errorf("no client for source kind %q", src.Kind)
	}

	items, err := client.Fetch(ctx, src, f.lookback, f.maxPerSource)
	if err != nil {
		return nil, err
	}

	if f.extractor != nil {
		for i := range items {
			if ctx.Err() != nil {
				return items[:i], ctx.Err()
			}
			text, err := f.extractor.Summary(items[i].Link)
			if err != nil {
				slog.Debug("full-text extraction failed, keeping feed summary", "link", items[i].Link, "error", err)
				continue
			}
			items[i].Summary = text
		}
	}

	return items, nil
}
