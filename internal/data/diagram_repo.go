package data

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"log/slog"

	"github.com/jackc/pgx/v5"

	"github.com/target/console-api/internal/core"
	"github.com/target/console-api/internal/data/pgxutil"
	"github.com/target/console-api/internal/domain/model"
	apperrors "github.com/target/console-api/internal/errors"
)

// DiagramRepo reads and annotates project diagrams.
type DiagramRepo struct {
	DB           *sql.DB
	timeProvider TimeProvider
	logger       *slog.Logger
}

var _ core.DiagramRepository = (*DiagramRepo)(nil)

// NewDiagramRepo creates a new DiagramRepo.
func NewDiagramRepo(db *sql.DB, cfg RepoConfig) *DiagramRepo {
	tp := cfg.TimeProvider
	if tp == nil {
		tp = RealTimeProvider{}
	}
	logger := cfg.Logger
	if logger == nil {
		logger = slog.Default()
	}
	return &DiagramRepo{DB: db, timeProvider: tp, logger: logger.With("component", "diagram_repo")}
}

const diagramColumns = `
  project_id,
  id,
  name,
  preview_ref,
  elements,
  extraction_metadata,
  extraction_completed_at
`

// GetDiagram returns the referenced diagram or ErrDiagramNotFound.
func (r *DiagramRepo) GetDiagram(ctx context.Context, ref model.DiagramRef) (*model.Diagram, error) {
	var d *model.Diagram
	err := pgxutil.WithPgxConn(ctx, r.DB, func(conn *pgx.Conn) error {
		rows, err := conn.Query(ctx,
			`SELECT `+diagramColumns+` FROM diagrams WHERE project_id = $1 AND id = $2`,
			ref.ProjectID, ref.DiagramID)
		if err != nil {
			return err
		}
		d, err = pgx.CollectExactlyOneRow(rows, pgx.RowToAddrOfStructByName[model.Diagram])
		return err
	})
	if errors.Is(err, pgx.ErrNoRows) {
		return nil, ErrDiagramNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("get diagram: %w", apperrors.MapDBError(err))
	}
	return d, nil
}

// ApplyExtraction overwrites the diagram's extracted elements and metadata.
func (r *DiagramRepo) ApplyExtraction(ctx context.Context, ref model.DiagramRef, ext model.DiagramExtraction) error {
	elements := ext.Elements
	if model.IsNullJSON(elements) {
		elements = []byte(`[]`)
	}
	metadata := ext.Metadata
	if model.IsNullJSON(metadata) {
		metadata = []byte(`{}`)
	}
	completedAt := ext.CompletedAt
	if completedAt.IsZero() {
		completedAt = r.timeProvider.Now()
	}

	res, err := r.DB.ExecContext(ctx, `
		UPDATE diagrams
		SET elements = $3,
		    extraction_metadata = $4,
		    extraction_completed_at = $5,
		    updated_at = $6
		WHERE project_id = $1 AND id = $2`,
		ref.ProjectID, ref.DiagramID, []byte(elements), []byte(metadata), completedAt.UTC(), r.timeProvider.Now(),
	)
	if err != nil {
		return fmt.Errorf("apply extraction: %w", apperrors.MapDBError(err))
	}
	n, err := res.RowsAffected()
	if err != nil {
		return fmt.Errorf("rows affected: %w", err)
	}
	if n == 0 {
		return ErrDiagramNotFound
	}
	return nil
}
