package pipeline

import (
	"context"
	"log/slog"
	"time"

	"pydigest/internal/compose"
	"pydigest/internal/dedupe"
	"pydigest/internal/filter"
	"pydigest/internal/rank"
	"pydigest/internal/sources"
	"pydigest/internal/types"
)

// Pipeline sequences the stages: FETCHING, DEDUPLICATING, FILTERING,
// RANKING, COMPOSING, DONE, with FAILED reachable from any stage on a
// fatal condition. Each stage's output is fully materialized before
// the next starts; ranking needs the complete relevant set.
type Pipeline struct {
	fetcher  *sources.Fetcher
	sources  []types.SourceConfig
	dedupe   *dedupe.Deduplicator
	filter   *filter.Filter
	composer *compose.Composer
	quota    int
	tieOrder rank.Order
	budget   time.Duration
}

type Config struct {
	Sources  []types.SourceConfig
	Quota    int
	TieOrder rank.Order
	Budget   time.Duration
}

// Result carries the ordered posts and the run statistics. On a failed
// run Posts is nil but Run still says how far the run got and why it
// stopped.
type Result struct {
	Posts []types.Post
	Run   *types.PipelineRun
}

func New(cfg Config, fetcher *sources.Fetcher, dd *dedupe.Deduplicator, fl *filter.Filter, cp *compose.Composer) *Pipeline {
	if cfg.Quota == 0 {
		cfg.Quota = 8
	}

	return &Pipeline{
		fetcher:  fetcher,
		sources:  cfg.Sources,
		dedupe:   dd,
		filter:   fl,
		composer: cp,
		quota:    cfg.Quota,
		tieOrder: cfg.TieOrder,
		budget:   cfg.Budget,
	}
}

// Run executes one digest run. A successful run with zero posts is a
// valid quiet week; only fatal stage conditions produce an error.
func (p *Pipeline) Run(ctx context.Context) (*Result, error) {
	if p.budget > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, p.budget)
		defer cancel()
	}

	run := types.NewPipelineRun()
	slog.Info("pipeline run started", "sources", len(p.sources), "quota", p.quota)

	run.FinalStage = types.StageFetching
	raw, err := p.fetcher.FetchAll(ctx, p.sources, run)
	if err != nil {
		return p.fail(run, types.StageFetching, err)
	}

	run.FinalStage = types.StageDeduplicating
	canonical := p.dedupe.Deduplicate(ctx, raw)
	run.Duplicates = len(raw) - len(canonical)

	run.FinalStage = types.StageFiltering
	scored, err := p.filter.Filter(ctx, canonical, run)
	if err != nil {
		return p.fail(run, types.StageFiltering, err)
	}

	run.FinalStage = types.StageRanking
	ranked := rank.Select(scored, p.quota, p.tieOrder)
	run.Selected = len(ranked)

	run.FinalStage = types.StageComposing
	posts := p.composer.Compose(ctx, ranked, run)

	run.Finish(types.StageDone)
	slog.Info("pipeline run complete",
		"fetched", run.Fetched,
		"duplicates", run.Duplicates,
		"filtered_out", run.FilteredOut,
		"selected", run.Selected,
		"composed", run.Composed,
		"errors", len(run.Errors),
		"duration", run.Duration())

	return &Result{Posts: posts, Run: run}, nil
}

// fail finalizes the run without returning partial posts. Statistics
// survive so reporting can tell an operational alarm from a quiet week.
func (p *Pipeline) fail(run *types.PipelineRun, stage types.Stage, err error) (*Result, error) {
	run.Failure = err.Error()
	run.Finish(types.StageFailed)
	slog.Error("pipeline run failed", "stage", stage, "error", err)
	return &Result{Run: run}, err
}
