package data

import (
	"context"
	"database/sql"
	"fmt"
	"time"

	"github.com/jackc/pgx/v5"

	"github.com/target/console-api/internal/data/pgxutil"
	"github.com/target/console-api/internal/domain/model"
)

// Advisory lock keys for reaper sweeps, as (major, minor) pairs passed to
// pg_try_advisory_xact_lock.
const (
	advisoryLockReaperMajor  = 2000
	advisoryLockReaperDelete = 1
)

// ListStale returns pending or processing jobs whose last update is older than
// cutoff, oldest first.
func (r *JobRepo) ListStale(ctx context.Context, cutoff time.Time, limit int) ([]*model.Job, error) {
	if limit <= 0 {
		limit = defaultListLimit
	}

	var jobs []*model.Job
	err := pgxutil.WithPgxConn(ctx, r.DB, func(conn *pgx.Conn) error {
		rows, err := conn.Query(ctx, `
			SELECT `+jobColumns+`
			FROM jobs
			WHERE status IN ('pending', 'processing')
			  AND updated_at < $1
			ORDER BY updated_at
			LIMIT $2`, cutoff.UTC(), limit)
		if err != nil {
			return err
		}
		jobs, err = pgx.CollectRows(rows, pgx.RowToAddrOfStructByName[model.Job])
		return err
	})
	if err != nil {
		return nil, fmt.Errorf("list stale jobs: %w", err)
	}
	return jobs, nil
}

// DeleteTerminalBefore deletes up to limit completed, failed or aborted jobs
// last updated before cutoff. When another instance holds the reaper lock it
// deletes nothing.
func (r *JobRepo) DeleteTerminalBefore(ctx context.Context, cutoff time.Time, limit int) (int64, error) {
	if limit <= 0 {
		limit = defaultListLimit
	}

	tx, err := r.DB.BeginTx(ctx, &sql.TxOptions{})
	if err != nil {
		return 0, fmt.Errorf("begin tx: %w", err)
	}
	defer tx.Rollback() //nolint:errcheck // no-op after commit

	var locked bool
	if err := tx.QueryRowContext(ctx, "SELECT pg_try_advisory_xact_lock($1, $2)",
		advisoryLockReaperMajor, advisoryLockReaperDelete).Scan(&locked); err != nil {
		return 0, fmt.Errorf("acquire advisory lock: %w", err)
	}
	if !locked {
		return 0, nil
	}

	res, err := tx.ExecContext(ctx, `
		DELETE FROM jobs
		WHERE id IN (
			SELECT id FROM jobs
			WHERE status IN ('completed', 'failed', 'aborted')
			  AND updated_at < $1
			ORDER BY updated_at
			LIMIT $2
		)`, cutoff.UTC(), limit)
	if err != nil {
		return 0, fmt.Errorf("delete terminal jobs: %w", err)
	}
	n, err := res.RowsAffected()
	if err != nil {
		return 0, fmt.Errorf("rows affected: %w", err)
	}
	if err := tx.Commit(); err != nil {
		return 0, fmt.Errorf("commit: %w", err)
	}
	return n, nil
}
