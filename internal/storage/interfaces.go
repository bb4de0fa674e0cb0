package storage

import (
	"context"
	"database/sql"
	"time"

	"pydigest/internal/types"
)

type StorageInterface interface {
	GetConnection() *sql.DB
	Runs() RunStore
	Posts() PostStore
	Close(ctx context.Context) error
}

// RunRecord is the persisted form of one pipeline run.
type RunRecord struct {
	ID          int64
	StartedAt   time.Time
	FinishedAt  time.Time
	Fetched     int
	Duplicates  int
	FilteredOut int
	Selected    int
	Composed    int
	ErrorCount  int
	FinalStage  string
	Failure     string
}

type RunStore interface {
	Insert(ctx context.Context, run *types.PipelineRun) (int64, error)
	ListRecent(ctx context.Context, limit int) ([]RunRecord, error)
}

// PostRecord is one emitted post tied to the run that produced it.
type PostRecord struct {
	ID        int64
	RunID     int64
	Position  int
	Title     string
	Type      string
	Summary   string
	Link      string
	CreatedAt time.Time
}

type PostStore interface {
	InsertAll(ctx context.Context, runID int64, posts []types.Post) error
	ListByRun(ctx context.Context, runID int64) ([]PostRecord, error)
	ListRecent(ctx context.Context, limit int) ([]PostRecord, error)
	DeleteOlderThan(ctx context.Context, age time.Duration) error
}
