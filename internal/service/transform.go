package service

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"strings"
	"sync"

	jmespath "github.com/jmespath-community/go-jmespath"

	"github.com/target/console-api/internal/core"
	"github.com/target/console-api/internal/domain/model"
	apperrors "github.com/target/console-api/internal/errors"
)

// TransformerRegistry picks the payload transformer for a job's type. Types
// without a registered transformer are passed through unchanged.
type TransformerRegistry struct {
	mu     sync.RWMutex
	byType map[model.JobType]core.PayloadTransformer
}

var _ core.PayloadTransformer = (*TransformerRegistry)(nil)

// NewTransformerRegistry returns an empty registry.
func NewTransformerRegistry() *TransformerRegistry {
	return &TransformerRegistry{byType: make(map[model.JobType]core.PayloadTransformer)}
}

// Register sets the transformer for jobType, replacing any earlier one.
func (r *TransformerRegistry) Register(jobType model.JobType, t core.PayloadTransformer) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.byType[jobType] = t
}

// Transform implements core.PayloadTransformer.
func (r *TransformerRegistry) Transform(ctx context.Context, job *model.Job) (json.RawMessage, error) {
	r.mu.RLock()
	t, ok := r.byType[job.Type]
	r.mu.RUnlock()
	if !ok {
		return PassthroughTransformer{}.Transform(ctx, job)
	}
	return t.Transform(ctx, job)
}

// PassthroughTransformer sends the stored payload to workers as is.
type PassthroughTransformer struct{}

// Transform returns the job's payload, or an empty object when it has none.
func (PassthroughTransformer) Transform(_ context.Context, job *model.Job) (json.RawMessage, error) {
	if model.IsNullJSON(job.Payload) {
		return json.RawMessage(`{}`), nil
	}
	return job.Payload, nil
}

// DiagramTransformer resolves a diagram reference in the payload into the
// preview URL the extraction worker downloads.
type DiagramTransformer struct {
	diagrams core.DiagramRepository
	signer   core.PreviewSigner
}

// NewDiagramTransformer builds the extraction transformer. signer may be nil
// when previews are stored as URLs.
func NewDiagramTransformer(diagrams core.DiagramRepository, signer core.PreviewSigner) *DiagramTransformer {
	return &DiagramTransformer{diagrams: diagrams, signer: signer}
}

type previewPayload struct {
	PreviewURL string `json:"preview_url"`
}

// Transform returns {"preview_url": ...} for the referenced diagram.
func (t *DiagramTransformer) Transform(ctx context.Context, job *model.Job) (json.RawMessage, error) {
	ref, err := DiagramRefFromPayload(job.Payload)
	if err != nil {
		return nil, err
	}

	d, err := t.diagrams.GetDiagram(ctx, ref)
	if err != nil {
		if apperrors.IsNotFound(err) {
			return nil, apperrors.Precondition("Diagram not found")
		}
		return nil, fmt.Errorf("load diagram: %w", err)
	}
	if strings.TrimSpace(d.PreviewRef) == "" {
		return nil, apperrors.Precondition("Diagram preview URL not found")
	}

	url := d.PreviewRef
	if t.signer != nil {
		if url, err = t.signer.PreviewURL(ctx, d.PreviewRef); err != nil {
			return nil, fmt.Errorf("resolve preview URL: %w", err)
		}
	}
	return json.Marshal(previewPayload{PreviewURL: url})
}

// DiagramRefFromPayload reads project_id and diagram_id from a job payload.
func DiagramRefFromPayload(payload json.RawMessage) (model.DiagramRef, error) {
	var ref model.DiagramRef
	if !model.IsNullJSON(payload) {
		if err := json.Unmarshal(payload, &ref); err != nil {
			return ref, apperrors.Precondition("payload must be an object with project_id and diagram_id")
		}
	}
	if ref.ProjectID == "" || ref.DiagramID == "" {
		return ref, apperrors.Precondition(
			"project_id and diagram_id are required for " + string(model.JobTypeDiagramElementsExtraction) + " jobs")
	}
	return ref, nil
}

// ProjectionTransformer builds the worker payload by evaluating a JMESPath
// expression against the client payload.
type ProjectionTransformer struct {
	expr string
}

// NewProjectionTransformer compiles expr.
func NewProjectionTransformer(expr string) (*ProjectionTransformer, error) {
	if strings.TrimSpace(expr) == "" {
		return nil, errors.New("projection expression is empty")
	}
	if _, err := jmespath.Compile(expr); err != nil {
		return nil, fmt.Errorf("compile projection %q: %w", expr, err)
	}
	return &ProjectionTransformer{expr: expr}, nil
}

// Transform evaluates the projection. A projection that yields null is a
// precondition failure since the worker would receive nothing to act on.
func (t *ProjectionTransformer) Transform(_ context.Context, job *model.Job) (json.RawMessage, error) {
	var data any
	if !model.IsNullJSON(job.Payload) {
		if err := json.Unmarshal(job.Payload, &data); err != nil {
			return nil, apperrors.Precondition("payload is not valid JSON")
		}
	}
	out, err := jmespath.Search(t.expr, data)
	if err != nil {
		return nil, fmt.Errorf("evaluate projection %q: %w", t.expr, err)
	}
	if out == nil {
		return nil, apperrors.Precondition(fmt.Sprintf("payload projection %q matched nothing", t.expr))
	}
	return json.Marshal(out)
}
