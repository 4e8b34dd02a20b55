package sqlite

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"time"

	"github.com/rs/xid"

	"github.com/codename-co/runbox/internal/apperror"
	"github.com/codename-co/runbox/internal/model"
	"github.com/codename-co/runbox/internal/repository"
)

// Compile-time check that *DB implements repository.RunRepository.
var _ repository.RunRepository = (*DB)(nil)

// Create inserts a run record. Runs normally arrive with the id their
// execution ran under; one is generated here only as a fallback. The
// caller's struct is updated with the assigned ID and timestamp.
func (db *DB) Create(ctx context.Context, run *model.Run) error {
	if run.ID == "" {
		run.ID = xid.New().String()
	}
	if run.CreatedAt.IsZero() {
		run.CreatedAt = time.Now()
	}

	_, err := db.conn.ExecContext(ctx,
		`INSERT INTO runs (id, language, status, err_kind, code, stdout_bytes, stderr_bytes, duration_ns, created_at)
		 VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?)`,
		run.ID,
		run.Language,
		run.Status,
		run.ErrKind,
		run.Code,
		run.StdoutBytes,
		run.StderrBytes,
		run.Duration.Nanoseconds(),
		run.CreatedAt,
	)
	if err != nil {
		return fmt.Errorf("sqlite: creating run: %w", err)
	}

	return nil
}

// GetByID retrieves a single run by its ID.
// Returns apperror.ErrNotFound if no run with that ID exists.
func (db *DB) GetByID(ctx context.Context, id string) (*model.Run, error) {
	var (
		run        model.Run
		durationNs int64
	)

	err := db.conn.QueryRowContext(ctx,
		`SELECT id, language, status, err_kind, code, stdout_bytes, stderr_bytes, duration_ns, created_at
		 FROM runs
		 WHERE id = ?`,
		id,
	).Scan(
		&run.ID,
		&run.Language,
		&run.Status,
		&run.ErrKind,
		&run.Code,
		&run.StdoutBytes,
		&run.StderrBytes,
		&durationNs,
		&run.CreatedAt,
	)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, apperror.NotFound("run", id)
		}
		return nil, fmt.Errorf("sqlite: getting run %s: %w", id, err)
	}

	run.Duration = time.Duration(durationNs)
	return &run, nil
}

// List returns runs ordered newest first.
func (db *DB) List(ctx context.Context, opts repository.ListOptions) ([]model.Run, error) {
	rows, err := db.conn.QueryContext(ctx,
		`SELECT id, language, status, err_kind, code, stdout_bytes, stderr_bytes, duration_ns, created_at
		 FROM runs
		 ORDER BY created_at DESC, id DESC
		 LIMIT ? OFFSET ?`,
		opts.Limit,
		opts.Offset,
	)
	if err != nil {
		return nil, fmt.Errorf("sqlite: listing runs: %w", err)
	}
	defer rows.Close()

	// Start with an empty (non-nil) slice so the API returns [] rather
	// than null when there are no runs.
	runs := []model.Run{}
	for rows.Next() {
		var (
			run        model.Run
			durationNs int64
		)
		if err := rows.Scan(
			&run.ID,
			&run.Language,
			&run.Status,
			&run.ErrKind,
			&run.Code,
			&run.StdoutBytes,
			&run.StderrBytes,
			&durationNs,
			&run.CreatedAt,
		); err != nil {
			return nil, fmt.Errorf("sqlite: scanning run: %w", err)
		}
		run.Duration = time.Duration(durationNs)
		runs = append(runs, run)
	}

	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("sqlite: iterating runs: %w", err)
	}

	return runs, nil
}
