package runlog

import (
	"context"
	"database/sql"
	"fmt"
	"time"

	"github.com/google/uuid"

	"github.com/ahmethakanbesel/ohlcv-ingest/internal/platform/sqlite"
	domain "github.com/ahmethakanbesel/ohlcv-ingest/internal/runlog"
)

type Repository struct {
	db sqlite.Querier
}

func NewRepository(db sqlite.Querier) *Repository {
	return &Repository{db: db}
}

// Create inserts the run and fills in its ID and start time when unset.
func (r *Repository) Create(ctx context.Context, run *domain.Run) error {
	if run.ID == "" {
		run.ID = uuid.NewString()
	}
	if run.StartedAt.IsZero() {
		run.StartedAt = time.Now().UTC()
	}

	const query = `INSERT INTO runs (id, script, status, started_at) VALUES (?, ?, ?, ?)`

	_, err := r.db.ExecContext(ctx, query,
		run.ID, run.Script, string(run.Status), run.StartedAt.Format(time.RFC3339))
	if err != nil {
		return fmt.Errorf("create run: %w", err)
	}
	return nil
}

// Update records the run's terminal status and counters.
func (r *Repository) Update(ctx context.Context, run *domain.Run) error {
	const query = `UPDATE runs SET status = ?, symbols = ?, succeeded = ?, failed = ?,
		inserted = ?, error = ?, finished_at = strftime('%Y-%m-%dT%H:%M:%SZ', 'now')
		WHERE id = ?`

	errVal := sql.NullString{String: run.Error, Valid: run.Error != ""}
	_, err := r.db.ExecContext(ctx, query,
		string(run.Status), run.Symbols, run.Succeeded, run.Failed,
		run.Inserted, errVal, run.ID)
	if err != nil {
		return fmt.Errorf("update run: %w", err)
	}
	run.FinishedAt = time.Now().UTC()
	return nil
}

// Recent returns the latest runs, newest first.
func (r *Repository) Recent(ctx context.Context, limit int) ([]domain.Run, error) {
	if limit <= 0 {
		limit = 10
	}

	const query = `SELECT id, script, status, symbols, succeeded, failed,
		inserted, error, started_at, finished_at
		FROM runs ORDER BY started_at DESC, id LIMIT ?`

	rows, err := r.db.QueryContext(ctx, query, limit)
	if err != nil {
		return nil, fmt.Errorf("list runs: %w", err)
	}
	defer func() { _ = rows.Close() }()

	var runs []domain.Run
	for rows.Next() {
		var run domain.Run
		var status, startedStr string
		var errVal, finishedStr sql.NullString

		if err := rows.Scan(
			&run.ID, &run.Script, &status,
			&run.Symbols, &run.Succeeded, &run.Failed, &run.Inserted,
			&errVal, &startedStr, &finishedStr,
		); err != nil {
			return nil, fmt.Errorf("scan run: %w", err)
		}

		run.Status = domain.Status(status)
		if errVal.Valid {
			run.Error = errVal.String
		}
		run.StartedAt, _ = time.Parse(time.RFC3339, startedStr)
		if finishedStr.Valid {
			run.FinishedAt, _ = time.Parse(time.RFC3339, finishedStr.String)
		}
		runs = append(runs, run)
	}

	return runs, rows.Err()
}
