package types

import (
	"time"
)

type SourceKind string

const (
	SourceRSS    SourceKind = "rss"
	SourceSearch SourceKind = "search"
)

// SourceConfig describes one configured content source. It is read-only
// during a run.
type SourceConfig struct {
	ID      string
	Kind    SourceKind
	URL     string
	Keyword string
	Tier    int
	Enabled bool
}

// RawItem is one candidate piece of content exactly as fetched. Never
// mutated after creation.
type RawItem struct {
	SourceID    string
	SourceTier  int
	Title       string
	Summary     string
	Link        string
	PublishedAt time.Time
	FetchedAt   time.Time
}

// CanonicalItem is the deduplicated representative of one or more
// RawItems describing the same story. The representative fields come
// from the earliest-published member.
type CanonicalItem struct {
	Title          string
	Summary        string
	Link           string
	SourceID       string
	SourceTier     int
	PublishedAt    time.Time
	Members        []RawItem
	DuplicateCount int
}

// Key returns a stable identifier used to map oracle responses back
// onto items.
func (c *CanonicalItem) Key() string {
	return c.Link
}

type ContentType string

const (
	TypeNews     ContentType = "news"
	TypeArticle  ContentType = "article"
	TypeTutorial ContentType = "tutorial"
	TypeStory    ContentType = "story"
	TypeMeme     ContentType = "meme"
	TypeOther    ContentType = "other"
)

// NormalizeContentType maps free-form oracle labels onto the output
// taxonomy, defaulting to "other".
func NormalizeContentType(label string) ContentType {
	switch ContentType(label) {
	case TypeNews, TypeArticle, TypeTutorial, TypeStory, TypeMeme:
		return ContentType(label)
	default:
		return TypeOther
	}
}

type ScoredItem struct {
	Item        CanonicalItem
	Relevant    bool
	Score       float64
	ContentType ContentType
}

type RankedItem struct {
	ScoredItem
	Position int
}

// Post is the terminal artifact of a run, immutable once emitted.
type Post struct {
	Title   string
	Type    ContentType
	Summary string
	Link    string
}

type Stage string

const (
	StageFetching      Stage = "FETCHING"
	StageDeduplicating Stage = "DEDUPLICATING"
	StageFiltering     Stage = "FILTERING"
	StageRanking       Stage = "RANKING"
	StageComposing     Stage = "COMPOSING"
	StageDone          Stage = "DONE"
	StageFailed        Stage = "FAILED"
)

// StageError records one recoverable item- or source-level failure.
type StageError struct {
	Stage   Stage
	Subject string
	Err     error
}

// PipelineRun accumulates per-stage statistics for one execution. It is
// threaded explicitly through the orchestrator, never ambient.
type PipelineRun struct {
	StartedAt  time.Time
	FinishedAt time.Time

	Fetched     int
	Duplicates  int
	FilteredOut int
	Selected    int
	Composed    int

	Errors     []StageError
	FinalStage Stage
	Failure    string
}

func NewPipelineRun() *PipelineRun {
	return &PipelineRun{
		StartedAt:  time.Now(),
		FinalStage: StageFetching,
	}
}

func (r *PipelineRun) RecordError(stage Stage, subject string, err error) {
	r.Errors = append(r.Errors, StageError{Stage: stage, Subject: subject, Err: err})
}

// ErrorsAt counts the recorded errors for one stage.
func (r *PipelineRun) ErrorsAt(stage Stage) int {
	n := 0
	for _, e := range r.Errors {
		if e.Stage == stage {
			n++
		}
	}
	return n
}

func (r *PipelineRun) Finish(stage Stage) {
	r.FinalStage = stage
	r.FinishedAt = time.Now()
}

func (r *PipelineRun) Duration() time.Duration {
	if r.FinishedAt.IsZero() {
		return time.Since(r.StartedAt)
	}
	return r.FinishedAt.Sub(r.StartedAt)
}
