package db

import (
	"context"
	"fmt"
	"strings"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/qapilot/backend/internal/models"
)

type Store struct {
	Pool *pgxpool.Pool
}

func New(ctx context.Context, databaseURL string) (*Store, error) {
	cfg, err := pgxpool.ParseConfig(databaseURL)
	if err != nil {
		return nil, err
	}
	pool, err := pgxpool.NewWithConfig(ctx, cfg)
	if err != nil {
		return nil, err
	}
	return &Store{Pool: pool}, nil
}

func (s *Store) Close() {
	s.Pool.Close()
}

func (s *Store) Ping(ctx context.Context) error {
	return s.Pool.Ping(ctx)
}

// Migrate creates the test_runs table if it does not exist.
func (s *Store) Migrate(ctx context.Context) error {
	_, err := s.Pool.Exec(ctx, `
		CREATE TABLE IF NOT EXISTS test_runs (
			id BIGSERIAL PRIMARY KEY,
			nl_command TEXT NOT NULL,
			generated_code TEXT NOT NULL,
			browser TEXT NOT NULL,
			status TEXT NOT NULL DEFAULT 'pending',
			execution_logs TEXT,
			screenshot_path TEXT,
			created_at TIMESTAMPTZ NOT NULL DEFAULT NOW(),
			completed_at TIMESTAMPTZ
		)
	`)
	return err
}

func (s *Store) CreateTestRun(ctx context.Context, nlCommand, generatedCode, browser string) (int64, error) {
	var id int64
	err := s.Pool.QueryRow(ctx, `
		INSERT INTO test_runs (nl_command, generated_code, browser)
		VALUES ($1, $2, $3)
		RETURNING id
	`, nlCommand, generatedCode, browser).Scan(&id)
	return id, err
}

// TestRunUpdate carries the fields an agent callback may set. Nil fields
// are left untouched.
type TestRunUpdate struct {
	Status         *string
	ExecutionLogs  *string
	ScreenshotPath *string
}

// UpdateTestRun applies a partial update. Moving to a terminal status
// stamps completed_at. Statuses are not validated and any value may
// overwrite any other; the last writer wins.
func (s *Store) UpdateTestRun(ctx context.Context, id int64, upd TestRunUpdate) error {
	var sets []string
	var args []any

	if upd.Status != nil {
		args = append(args, *upd.Status)
		sets = append(sets, fmt.Sprintf("status = $%d", len(args)))
		if *upd.Status == models.RunCompleted || *upd.Status == models.RunFailed {
			sets = append(sets, "completed_at = NOW()")
		}
	}
	if upd.ExecutionLogs != nil {
		args = append(args, *upd.ExecutionLogs)
		sets = append(sets, fmt.Sprintf("execution_logs = $%d", len(args)))
	}
	if upd.ScreenshotPath != nil {
		args = append(args, *upd.ScreenshotPath)
		sets = append(sets, fmt.Sprintf("screenshot_path = $%d", len(args)))
	}
	if len(sets) == 0 {
		return nil
	}

	args = append(args, id)
	query := fmt.Sprintf("UPDATE test_runs SET %s WHERE id = $%d", strings.Join(sets, ", "), len(args))
	tag, err := s.Pool.Exec(ctx, query, args...)
	if err != nil {
		return err
	}
	if tag.RowsAffected() == 0 {
		return pgx.ErrNoRows
	}
	return nil
}

func (s *Store) GetTestRun(ctx context.Context, id int64) (models.TestRun, error) {
	row := s.Pool.QueryRow(ctx, `
		SELECT id, nl_command, generated_code, browser, status, execution_logs, screenshot_path, created_at, completed_at
		FROM test_runs WHERE id = $1
	`, id)

	var run models.TestRun
	if err := row.Scan(&run.ID, &run.NLCommand, &run.GeneratedCode, &run.Browser, &run.Status,
		&run.ExecutionLogs, &run.ScreenshotPath, &run.CreatedAt, &run.CompletedAt); err != nil {
		return models.TestRun{}, err
	}
	return run, nil
}

func (s *Store) ListTestRuns(ctx context.Context) ([]models.TestRun, error) {
	rows, err := s.Pool.Query(ctx, `
		SELECT id, nl_command, generated_code, browser, status, execution_logs, screenshot_path, created_at, completed_at
		FROM test_runs ORDER BY created_at DESC, id DESC
	`)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var out []models.TestRun
	for rows.Next() {
		var run models.TestRun
		if err := rows.Scan(&run.ID, &run.NLCommand, &run.GeneratedCode, &run.Browser, &run.Status,
			&run.ExecutionLogs, &run.ScreenshotPath, &run.CreatedAt, &run.CompletedAt); err != nil {
			return nil, err
		}
		out = append(out, run)
	}
	return out, rows.Err()
}
