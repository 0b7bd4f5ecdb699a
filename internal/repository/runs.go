package repository

import (
	"context"
	"fmt"

	"github.com/jackc/pgx/v5/pgxpool"
)

// RunStats tallies reconciliation outcomes for one sync run.
type RunStats struct {
	Processed int `json:"processed"`
	Created   int `json:"created"`
	Updated   int `json:"updated"`
	Skipped   int `json:"skipped"`
	Errors    int `json:"errors"`
}

// RunRepository records sync run history. Wired only when a database is
// configured; the sync itself does not depend on it.
type RunRepository interface {
	StartRun(ctx context.Context, total int, testMode bool) (int64, error)
	FinishRun(ctx context.Context, id int64, stats RunStats) error
}

type runRepository struct {
	db *pgxpool.Pool
}

func NewRunRepository(db *pgxpool.Pool) RunRepository {
	return &runRepository{db: db}
}

func (r *runRepository) StartRun(ctx context.Context, total int, testMode bool) (int64, error) {
	query := `
	INSERT INTO sync_runs (started_at, test_mode, total)
	VALUES (now(), $1, $2)
	RETURNING id`

	var id int64
	if err := r.db.QueryRow(ctx, query, testMode, total).Scan(&id); err != nil {
		return 0, fmt.Errorf("failed to record run start: %w", err)
	}
	return id, nil
}

func (r *runRepository) FinishRun(ctx context.Context, id int64, stats RunStats) error {
	query := `
	UPDATE sync_runs
	SET finished_at = now(), processed = $2, created = $3, updated = $4, skipped = $5, errors = $6
	WHERE id = $1`

	_, err := r.db.Exec(ctx, query, id,
		stats.Processed, stats.Created, stats.Updated, stats.Skipped, stats.Errors)
	if err != nil {
		return fmt.Errorf("failed to record run finish: %w", err)
	}
	return nil
}
