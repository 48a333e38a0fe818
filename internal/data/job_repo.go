package data

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"log/slog"
	"strings"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"

	"github.com/target/console-api/internal/core"
	"github.com/target/console-api/internal/data/pgxutil"
	"github.com/target/console-api/internal/domain/model"
	apperrors "github.com/target/console-api/internal/errors"
)

const (
	defaultListLimit = 50
	maxListLimit     = 500
)

// RepoConfig holds configuration options for repositories.
type RepoConfig struct {
	Logger       *slog.Logger
	TimeProvider TimeProvider
}

// JobRepo persists jobs in Postgres.
type JobRepo struct {
	DB           *sql.DB
	timeProvider TimeProvider
	logger       *slog.Logger
}

var _ core.JobRepository = (*JobRepo)(nil)

// NewJobRepo creates a new JobRepo.
func NewJobRepo(db *sql.DB, cfg RepoConfig) *JobRepo {
	tp := cfg.TimeProvider
	if tp == nil {
		tp = RealTimeProvider{}
	}
	logger := cfg.Logger
	if logger == nil {
		logger = slog.Default()
	}

	return &JobRepo{
		DB:           db,
		timeProvider: tp,
		logger:       logger.With("component", "job_repo"),
	}
}

const jobColumns = `
  id,
  type,
  organization_id,
  status,
  payload,
  result,
  error,
  created_at,
  updated_at,
  created_by,
  updated_by
`

func collectJob(rows pgx.Rows) (*model.Job, error) {
	return pgx.CollectExactlyOneRow(rows, pgx.RowToAddrOfStructByName[model.Job])
}

// normalizeID rejects ids that cannot be a stored uuid so lookups short-circuit
// to not found instead of surfacing a cast error.
func normalizeID(id string) (string, bool) {
	parsed, err := uuid.Parse(strings.TrimSpace(id))
	if err != nil {
		return "", false
	}
	return parsed.String(), true
}

// Create inserts a pending job with a fresh id.
func (r *JobRepo) Create(ctx context.Context, params core.CreateJobParams) (*model.Job, error) {
	if params.Type == "" || params.OrganizationID == "" {
		return nil, apperrors.Validation("type and organization_id are required")
	}
	payload := params.Payload
	if model.IsNullJSON(payload) {
		payload = []byte(`{}`)
	}

	now := r.timeProvider.Now()
	var job *model.Job
	err := pgxutil.WithPgxConn(ctx, r.DB, func(conn *pgx.Conn) error {
		rows, err := conn.Query(ctx, `
			INSERT INTO jobs (id, type, organization_id, status, payload, created_at, updated_at, created_by, updated_by)
			VALUES ($1, $2, $3, 'pending', $4, $5, $5, $6, $6)
			RETURNING `+jobColumns,
			uuid.NewString(), params.Type, params.OrganizationID, []byte(payload), now, params.CreatedBy,
		)
		if err != nil {
			return err
		}
		job, err = collectJob(rows)
		return err
	})
	if err != nil {
		return nil, fmt.Errorf("create job: %w", apperrors.MapDBError(err))
	}
	return job, nil
}

// GetByID returns the job with the given id or ErrJobNotFound.
func (r *JobRepo) GetByID(ctx context.Context, id string) (*model.Job, error) {
	key, ok := normalizeID(id)
	if !ok {
		return nil, ErrJobNotFound
	}

	var job *model.Job
	err := pgxutil.WithPgxConn(ctx, r.DB, func(conn *pgx.Conn) error {
		rows, err := conn.Query(ctx, `SELECT `+jobColumns+` FROM jobs WHERE id = $1`, key)
		if err != nil {
			return err
		}
		job, err = collectJob(rows)
		return err
	})
	if errors.Is(err, pgx.ErrNoRows) {
		return nil, ErrJobNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("get job: %w", apperrors.MapDBError(err))
	}
	return job, nil
}

// Update locks the job row, applies fn to the current record and writes the
// mutable columns back in the same transaction. Concurrent writers to the same
// job are serialized; the last to commit wins.
func (r *JobRepo) Update(ctx context.Context, id string, fn core.UpdateFunc) (*model.Job, error) {
	key, ok := normalizeID(id)
	if !ok {
		return nil, ErrJobNotFound
	}

	var updated *model.Job
	err := pgxutil.WithPgxTx(ctx, r.DB, pgxutil.TxConfig{
		Fn: func(tx pgx.Tx) error {
			rows, err := tx.Query(ctx, `SELECT `+jobColumns+` FROM jobs WHERE id = $1 FOR UPDATE`, key)
			if err != nil {
				return err
			}
			current, err := collectJob(rows)
			if errors.Is(err, pgx.ErrNoRows) {
				return ErrJobNotFound
			}
			if err != nil {
				return err
			}

			if err := fn(current); err != nil {
				return err
			}

			rows, err = tx.Query(ctx, `
				UPDATE jobs
				SET status = $2,
				    payload = $3,
				    result = $4,
				    error = $5,
				    updated_at = $6,
				    updated_by = $7
				WHERE id = $1
				RETURNING `+jobColumns,
				key, current.Status, []byte(current.Payload), nullableJSON(current.Result),
				current.Error, current.UpdatedAt, current.UpdatedBy,
			)
			if err != nil {
				return err
			}
			updated, err = collectJob(rows)
			return err
		},
	})
	if err != nil {
		var appErr *apperrors.AppError
		if errors.As(err, &appErr) {
			return nil, err
		}
		return nil, fmt.Errorf("update job: %w", apperrors.MapDBError(err))
	}
	return updated, nil
}

// List returns jobs newest first, optionally filtered by organization and status.
func (r *JobRepo) List(ctx context.Context, opts model.JobListOptions) ([]*model.Job, error) {
	limit := opts.Limit
	if limit <= 0 {
		limit = defaultListLimit
	}
	if limit > maxListLimit {
		limit = maxListLimit
	}
	offset := max(opts.Offset, 0)

	var (
		where []string
		args  []any
	)
	if opts.OrganizationID != "" {
		args = append(args, opts.OrganizationID)
		where = append(where, fmt.Sprintf("organization_id = $%d", len(args)))
	}
	if opts.Status != nil {
		args = append(args, *opts.Status)
		where = append(where, fmt.Sprintf("status = $%d", len(args)))
	}

	query := `SELECT ` + jobColumns + ` FROM jobs`
	if len(where) > 0 {
		query += " WHERE " + strings.Join(where, " AND ")
	}
	args = append(args, limit, offset)
	query += fmt.Sprintf(" ORDER BY created_at DESC, id DESC LIMIT $%d OFFSET $%d", len(args)-1, len(args))

	var jobs []*model.Job
	err := pgxutil.WithPgxConn(ctx, r.DB, func(conn *pgx.Conn) error {
		rows, err := conn.Query(ctx, query, args...)
		if err != nil {
			return err
		}
		jobs, err = pgx.CollectRows(rows, pgx.RowToAddrOfStructByName[model.Job])
		return err
	})
	if err != nil {
		return nil, fmt.Errorf("list jobs: %w", apperrors.MapDBError(err))
	}
	if jobs == nil {
		jobs = []*model.Job{}
	}
	return jobs, nil
}

// Delete removes a job. Deleting an unknown job returns ErrJobNotFound.
func (r *JobRepo) Delete(ctx context.Context, id string) error {
	key, ok := normalizeID(id)
	if !ok {
		return ErrJobNotFound
	}

	res, err := r.DB.ExecContext(ctx, `DELETE FROM jobs WHERE id = $1`, key)
	if err != nil {
		return fmt.Errorf("delete job: %w", apperrors.MapDBError(err))
	}
	n, err := res.RowsAffected()
	if err != nil {
		return fmt.Errorf("rows affected: %w", err)
	}
	if n == 0 {
		return ErrJobNotFound
	}
	return nil
}

func nullableJSON(raw []byte) any {
	if model.IsNullJSON(raw) {
		return nil
	}
	return raw
}
