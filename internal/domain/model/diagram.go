package model

import (
	"encoding/json"
	"time"
)

// Diagram is the subset of a project diagram the job pipeline reads and writes.
// PreviewRef is either an absolute URL or an object key in preview storage.
type Diagram struct {
	ProjectID             string          `json:"project_id"                        db:"project_id"`
	ID                    string          `json:"id"                                db:"id"`
	Name                  string          `json:"name"                              db:"name"`
	PreviewRef            string          `json:"preview_ref,omitempty"             db:"preview_ref"`
	Elements              json.RawMessage `json:"elements"                          db:"elements"`
	ExtractionMetadata    json.RawMessage `json:"extraction_metadata"               db:"extraction_metadata"`
	ExtractionCompletedAt *time.Time      `json:"extraction_completed_at,omitempty" db:"extraction_completed_at"`
}

// DiagramRef locates a diagram from a job payload.
type DiagramRef struct {
	ProjectID string `json:"project_id"`
	DiagramID string `json:"diagram_id"`
}

// DiagramExtraction is the post-processing write applied to a diagram when an
// extraction job completes.
type DiagramExtraction struct {
	Elements    json.RawMessage
	Metadata    json.RawMessage
	CompletedAt time.Time
}

// ExtractionResult is the worker result shape for diagram extraction jobs.
type ExtractionResult struct {
	Elements json.RawMessage `json:"elements"`
	Metadata json.RawMessage `json:"metadata"`
}
