package filter

import (
	"context"
	"fmt"
	"log/slog"
	"sync"
	"time"

	"pydigest/internal/oracle"
	"pydigest/internal/types"
)

// Filter classifies canonical items through the external oracle. The
// stage owns batching, the per-call timeout and mapping verdicts back
// by item key; the judgment itself is opaque.
type Filter struct {
	classifier  oracle.Classifier
	criteria    oracle.Criteria
	batchSize   int
	concurrency int
	timeout     time.Duration
}

type Config struct {
	Criteria    oracle.Criteria
	BatchSize   int
	Concurrency int
	Timeout     time.Duration
}

func New(classifier oracle.Classifier, cfg Config) *Filter {
	if cfg.BatchSize == 0 {
		cfg.BatchSize = 10
	}
	if cfg.Concurrency == 0 {
		cfg.Concurrency = 5
	}
	if cfg.Timeout == 0 {
		cfg.Timeout = 60 * time.Second
	}

	return &Filter{
		classifier:  classifier,
		criteria:    cfg.Criteria,
		batchSize:   cfg.BatchSize,
		concurrency: cfg.Concurrency,
		timeout:     cfg.Timeout,
	}
}

// Filter scores every item. A failed or missing verdict marks its item
// not relevant (fail-closed) and records a stage error; the run is
// fatal only when not a single classification call succeeded.
func (f *Filter) Filter(ctx context.Context, items []types.CanonicalItem, run *types.PipelineRun) ([]types.ScoredItem, error) {
	if len(items) == 0 {
		return nil, nil
	}

	batches := f.batch(items)
	verdictBatches := make([][]oracle.Verdict, len(batches))
	callErrors := make([]error, len(batches))

	sem := make(chan struct{}, f.concurrency)
	var wg sync.WaitGroup

	for i, batch := range batches {
		wg.Add(1)
		go func(idx int, batch []types.CanonicalItem) {
			defer wg.Done()
			sem <- struct{}{}
			defer func() { <-sem }()

			callCtx, cancel := context.WithTimeout(ctx, f.timeout)
			defer cancel()

			verdicts, err := f.classifier.Classify(callCtx, toOracleItems(batch), f.criteria)
			if err != nil {
				callErrors[idx] = err
				return
			}
			verdictBatches[idx] = verdicts
		}(i, batch)
	}

	wg.Wait()

	byKey := make(map[string]oracle.Verdict)
	succeeded := 0
	for i := range batches {
		if callErrors[i] != nil {
			slog.Error("classification batch failed", "batch", i, "error", callErrors[i])
			continue
		}
		succeeded++
		for _, v := range verdictBatches[i] {
			byKey[v.Key] = v
		}
	}

	if succeeded == 0 {
		for i, err := range callErrors {
			run.RecordError(types.StageFiltering, fmt.Sprintf("batch %d", i), types.NewOracleError("classification", "", err))
		}
		return nil, types.NewFatalError(types.StageFiltering, "relevance oracle wholly unreachable", callErrors[0])
	}

	scored := make([]types.ScoredItem, 0, len(items))
	relevant := 0
	for i := range items {
		item := &items[i]
		verdict, ok := byKey[item.Key()]
		if !ok {
			// Fail closed: a missing verdict only costs one candidate.
			run.RecordError(types.StageFiltering, item.Key(),
				types.NewOracleError("classification", item.Key(), fmt.Errorf("no verdict returned")))
			scored = append(scored, types.ScoredItem{Item: *item, Relevant: false, ContentType: types.TypeOther})
			continue
		}

		si := types.ScoredItem{
			Item:        *item,
			Relevant:    verdict.Relevant,
			Score:       verdict.Score,
			ContentType: types.NormalizeContentType(verdict.ContentType),
		}
		if si.Relevant {
			relevant++
		} else {
			slog.Debug("item rejected by filter", "link", item.Key(), "reason", verdict.Reason)
		}
		scored = append(scored, si)
	}

	run.FilteredOut = len(scored) - relevant
	slog.Info("relevance filtering complete", "items", len(scored), "relevant", relevant, "batches", len(batches), "failed_batches", len(batches)-succeeded)
	return scored, nil
}

func (f *Filter) batch(items []types.CanonicalItem) [][]types.CanonicalItem {
	var batches [][]types.CanonicalItem
	for start := 0; start < len(items); start += f.batchSize {
		end := start + f.batchSize
		if end > len(items) {
			end = len(items)
		}
		batches = append(batches, items[start:end])
	}
	return batches
}

func toOracleItems(items []types.CanonicalItem) []oracle.Item {
	out := make([]oracle.Item, len(items))
	for i, item := range items {
		out[i] = oracle.Item{
			Key:     item.Key(),
			Title:   item.Title,
			Summary: item.Summary,
		}
	}
	return out
}
