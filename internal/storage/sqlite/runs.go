package sqlite

import (
	"context"
	"database/sql"
	"fmt"

	"pydigest/internal/storage"
	"pydigest/internal/types"
)

type runStore struct {
	db *sql.DB
}

func newRunStore(db *sql.DB) storage.RunStore {
	return &runStore{db: db}
}

func (s *runStore) Insert(ctx context.Context, run *types.PipelineRun) (int64, error) {
	query := `
		INSERT INTO runs (started_at, finished_at, fetched, duplicates, filtered_out, selected, composed, error_count, final_stage, failure)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?)
	`

	res, err := s.db.ExecContext(ctx, query,
		run.StartedAt, run.FinishedAt,
		run.Fetched, run.Duplicates, run.FilteredOut, run.Selected, run.Composed,
		len(run.Errors), string(run.FinalStage), run.Failure)
	if err != nil {
		return 0, fmt.Errorf("failed to insert run: %w", err)
	}

	id, err := res.LastInsertId()
	if err != nil {
		return 0, fmt.Errorf("failed to get run id: %w", err)
	}
	return id, nil
}

func (s *runStore) ListRecent(ctx context.Context, limit int) ([]storage.RunRecord, error) {
	query := `
		SELECT id, started_at, finished_at, fetched, duplicates, filtered_out, selected, composed, error_count, final_stage, failure
		FROM runs ORDER BY started_at DESC LIMIT ?
	`

	rows, err := s.db.QueryContext(ctx, query, limit)
	if err != nil {
		return nil, fmt.Errorf("failed to list runs: %w", err)
	}
	defer rows.Close()

	var records []storage.RunRecord
	for rows.Next() {
		var rec storage.RunRecord
		if err := rows.Scan(
			&rec.ID, &rec.StartedAt, &rec.FinishedAt,
			&rec.Fetched, &rec.Duplicates, &rec.FilteredOut, &rec.Selected, &rec.Composed,
			&rec.ErrorCount, &rec.FinalStage, &rec.Failure); err != nil {
			return nil, fmt.Errorf("failed to scan run: %w", err)
		}
		records = append(records, rec)
	}
	return records, rows.Err()
}
