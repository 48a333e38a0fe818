package core

import (
	"context"
	"encoding/json"
	"time"

	"github.com/target/console-api/internal/domain/auth"
	"github.com/target/console-api/internal/domain/model"
)

// Ports between the service layer and its adapters. Services depend on these
// interfaces; data, dispatch, realtime and auth adapters implement them.

// CreateJobParams is the record written when a job is accepted.
type CreateJobParams struct {
	Type           model.JobType
	OrganizationID string
	Payload        json.RawMessage
	CreatedBy      string
}

// UpdateFunc mutates a job inside a repository transaction. Returning an
// error aborts the write.
type UpdateFunc func(job *model.Job) error

// JobRepository persists job records.
type JobRepository interface {
	Create(ctx context.Context, params CreateJobParams) (*model.Job, error)
	GetByID(ctx context.Context, id string) (*model.Job, error)
	// Update performs an atomic read-modify-write of one job.
	Update(ctx context.Context, id string, fn UpdateFunc) (*model.Job, error)
	List(ctx context.Context, opts model.JobListOptions) ([]*model.Job, error)
	Delete(ctx context.Context, id string) error
	// ListStale returns non-terminal jobs last updated before cutoff, oldest first.
	ListStale(ctx context.Context, cutoff time.Time, limit int) ([]*model.Job, error)
	// DeleteTerminalBefore removes terminal jobs last updated before cutoff.
	DeleteTerminalBefore(ctx context.Context, cutoff time.Time, limit int) (int64, error)
}

// DiagramRepository reads diagrams for payload transformation and records
// extraction output.
type DiagramRepository interface {
	GetDiagram(ctx context.Context, ref model.DiagramRef) (*model.Diagram, error)
	ApplyExtraction(ctx context.Context, ref model.DiagramRef, ext model.DiagramExtraction) error
}

// Dispatcher hands an envelope to the worker tier. A nil error means the
// transport accepted the message; delivery beyond that is not tracked.
type Dispatcher interface {
	Enqueue(ctx context.Context, env model.DispatchEnvelope) error
}

// Broadcaster delivers an event to every viewer subscribed to the
// organization or to the wildcard scope. Delivery is best effort.
type Broadcaster interface {
	Broadcast(ctx context.Context, organizationID string, event model.JobEvent)
}

// PayloadTransformer converts a stored client payload into the payload sent
// to workers.
type PayloadTransformer interface {
	Transform(ctx context.Context, job *model.Job) (json.RawMessage, error)
}

// PreviewSigner turns a stored preview reference into a URL a worker can fetch.
type PreviewSigner interface {
	PreviewURL(ctx context.Context, ref string) (string, error)
}

// CallbackTokens mints and checks the per-job token workers echo on callback.
type CallbackTokens interface {
	Issue(jobID string) (string, error)
	Verify(token, jobID string) error
}

// ActorResolver authenticates a bearer credential.
type ActorResolver interface {
	Resolve(ctx context.Context, bearer string) (auth.Actor, error)
}
