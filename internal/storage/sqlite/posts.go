package sqlite

import (
	"context"
	"database/sql"
	"fmt"
	"time"

	"pydigest/internal/storage"
	"pydigest/internal/types"
)

type postStore struct {
	db *sql.DB
}

func newPostStore(db *sql.DB) storage.PostStore {
	return &postStore{db: db}
}

func (s *postStore) InsertAll(ctx context.Context, runID int64, posts []types.Post) error {
	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("failed to begin transaction: %w", err)
	}
	defer tx.Rollback()

	query := `
		INSERT INTO posts (run_id, position, title, type, summary, link)
		VALUES (?, ?, ?, ?, ?, ?)
	`

	for i, post := range posts {
		if _, err := tx.ExecContext(ctx, query, runID, i+1, post.Title, string(post.Type), post.Summary, post.Link); err != nil {
			return fmt.Errorf("failed to insert post %d: %w", i+1, err)
		}
	}

	return tx.Commit()
}

func (s *postStore) ListByRun(ctx context.Context, runID int64) ([]storage.PostRecord, error) {
	query := `
		SELECT id, run_id, position, title, type, summary, link, created_at
		FROM posts WHERE run_id = ? ORDER BY position ASC
	`
	return s.list(ctx, query, runID)
}

func (s *postStore) ListRecent(ctx context.Context, limit int) ([]storage.PostRecord, error) {
	query := `
		SELECT id, run_id, position, title, type, summary, link, created_at
		FROM posts ORDER BY created_at DESC, position ASC LIMIT ?
	`
	return s.list(ctx, query, limit)
}

func (s *postStore) list(ctx context.Context, query string, arg interface{}) ([]storage.PostRecord, error) {
	rows, err := s.db.QueryContext(ctx, query, arg)
	if err != nil {
		return nil, fmt.Errorf("failed to list posts: %w", err)
	}
	defer rows.Close()

	var records []storage.PostRecord
	for rows.Next() {
		var rec storage.PostRecord
		if err := rows.Scan(&rec.ID, &rec.RunID, &rec.Position, &rec.Title, &rec.Type, &rec.Summary, &rec.Link, &rec.CreatedAt); err != nil {
			return nil, fmt.Errorf("failed to scan post: %w", err)
		}
		records = append(records, rec)
	}
	return records, rows.Err()
}

func (s *postStore) DeleteOlderThan(ctx context.Context, age time.Duration) error {
	cutoff := time.Now().Add(-age)
	if _, err := s.db.ExecContext(ctx, `DELETE FROM posts WHERE created_at < ?`, cutoff); err != nil {
		return fmt.Errorf("failed to prune posts: %w", err)
	}
	return nil
}
