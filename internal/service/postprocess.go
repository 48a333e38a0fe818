package service

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"github.com/target/console-api/internal/core"
	"github.com/target/console-api/internal/domain/model"
)

// PostProcessor applies a type-specific side effect after a worker callback.
type PostProcessor interface {
	Process(ctx context.Context, job *model.Job) error
}

// DiagramExtractionProcessor writes extracted elements back onto the diagram
// named in the job payload once the job completes with a result.
type DiagramExtractionProcessor struct {
	diagrams core.DiagramRepository
	now      func() time.Time
}

// NewDiagramExtractionProcessor returns the extraction post-processor.
func NewDiagramExtractionProcessor(diagrams core.DiagramRepository) *DiagramExtractionProcessor {
	return &DiagramExtractionProcessor{diagrams: diagrams, now: func() time.Time { return time.Now().UTC() }}
}

// Process is a no-op unless the job completed with a non-null result.
func (p *DiagramExtractionProcessor) Process(ctx context.Context, job *model.Job) error {
	if job.Status != model.JobStatusCompleted || model.IsNullJSON(job.Result) {
		return nil
	}
	ref, err := DiagramRefFromPayload(job.Payload)
	if err != nil {
		return err
	}

	var res model.ExtractionResult
	if err := json.Unmarshal(job.Result, &res); err != nil {
		return fmt.Errorf("decode extraction result: %w", err)
	}
	return p.diagrams.ApplyExtraction(ctx, ref, model.DiagramExtraction{
		Elements:    res.Elements,
		Metadata:    res.Metadata,
		CompletedAt: p.now(),
	})
}
