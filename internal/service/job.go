// Package service implements the console's job orchestration: accepting
// jobs, dispatching them to workers, applying worker callbacks and keeping
// viewers informed.
package service

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"strings"
	"sync"
	"time"

	"golang.org/x/sync/errgroup"

	"github.com/target/console-api/internal/core"
	"github.com/target/console-api/internal/domain/auth"
	domainjob "github.com/target/console-api/internal/domain/job"
	"github.com/target/console-api/internal/domain/model"
	apperrors "github.com/target/console-api/internal/errors"
	"github.com/target/console-api/internal/observability/metrics"
	"github.com/target/console-api/internal/observability/statsd"
)

const defaultDispatchTimeout = 30 * time.Second

// JobServiceOptions groups dependencies for JobService.
type JobServiceOptions struct {
	Repo        core.JobRepository // Required: job store
	Dispatcher  core.Dispatcher    // Required: worker transport
	Broadcaster core.Broadcaster   // Required: viewer notifications
	CallbackURL string             // Required: where workers report back

	Transformer     core.PayloadTransformer         // Optional: defaults to passthrough for every type
	PostProcessors  map[model.JobType]PostProcessor // Optional: callback side effects by job type
	Tokens          core.CallbackTokens             // Optional: enables callback token checks
	DispatchTimeout time.Duration                   // Optional: bounds transform and enqueue, default 30s
	Logger          *slog.Logger                    // Optional: structured logger
	Metrics         statsd.Sink                     // Optional: metrics sink
	Now             func() time.Time                // Optional: clock for update stamps
}

// JobService owns the job lifecycle. Creation persists the job and returns
// immediately; transformation and dispatch run on a background task group
// that outlives the request and is drained by Shutdown.
type JobService struct {
	repo           core.JobRepository
	dispatcher     core.Dispatcher
	broadcaster    core.Broadcaster
	transformer    core.PayloadTransformer
	postProcessors map[model.JobType]PostProcessor
	tokens         core.CallbackTokens
	callbackURL    string
	timeout        time.Duration
	logger         *slog.Logger
	metrics        statsd.Sink
	now            func() time.Time

	mu      sync.Mutex
	closing bool
	tasks   errgroup.Group
}

// NewJobService constructs a new JobService.
func NewJobService(opts JobServiceOptions) (*JobService, error) {
	switch {
	case opts.Repo == nil:
		return nil, errors.New("JobRepository is required")
	case opts.Dispatcher == nil:
		return nil, errors.New("Dispatcher is required")
	case opts.Broadcaster == nil:
		return nil, errors.New("Broadcaster is required")
	case opts.CallbackURL == "":
		return nil, errors.New("CallbackURL is required")
	}

	transformer := opts.Transformer
	if transformer == nil {
		transformer = NewTransformerRegistry()
	}
	timeout := opts.DispatchTimeout
	if timeout <= 0 {
		timeout = defaultDispatchTimeout
	}
	logger := opts.Logger
	if logger == nil {
		logger = slog.Default()
	}
	now := opts.Now
	if now == nil {
		now = func() time.Time { return time.Now().UTC() }
	}

	return &JobService{
		repo:           opts.Repo,
		dispatcher:     opts.Dispatcher,
		broadcaster:    opts.Broadcaster,
		transformer:    transformer,
		postProcessors: opts.PostProcessors,
		tokens:         opts.Tokens,
		callbackURL:    opts.CallbackURL,
		timeout:        timeout,
		logger:         logger.With("component", "job_service"),
		metrics:        opts.Metrics,
		now:            now,
	}, nil
}

// MustNewJobService constructs a new JobService and panics on error.
func MustNewJobService(opts JobServiceOptions) *JobService {
	svc, err := NewJobService(opts)
	if err != nil {
		//nolint:forbidigo // Must constructor fails fast when dependencies are invalid during startup
		panic(fmt.Sprintf("failed to create JobService: %v", err))
	}
	return svc
}

// Create validates and persists a pending job, then schedules its dispatch.
// Errors returned here mean nothing was stored. Failures after this point are
// recorded on the job and broadcast.
func (s *JobService) Create(ctx context.Context, req model.CreateJobRequest, actor auth.Actor) (*model.Job, error) {
	req.Normalize()
	if req.Type == "" {
		return nil, apperrors.ValidationField("type", "Job type is required")
	}
	if req.OrganizationID == "" {
		return nil, apperrors.ValidationField("organization_id", "Organization ID is required")
	}

	job, err := s.repo.Create(ctx, core.CreateJobParams{
		Type:           req.Type,
		OrganizationID: req.OrganizationID,
		Payload:        req.Payload,
		CreatedBy:      actor.Label(),
	})
	if err != nil {
		return nil, fmt.Errorf("create job: %w", err)
	}

	s.logger.InfoContext(ctx, "job created",
		"job_id", job.ID,
		"job_type", job.Type,
		"organization_id", job.OrganizationID,
	)
	metrics.EmitJobTransition(s.metrics, metrics.JobMetric{
		JobType:    string(job.Type),
		Transition: metrics.TransitionCreated,
		Status:     string(job.Status),
	})

	snapshot := *job
	s.goDispatch(context.WithoutCancel(ctx), &snapshot)
	return job, nil
}

func (s *JobService) goDispatch(ctx context.Context, job *model.Job) {
	s.mu.Lock()
	if s.closing {
		s.mu.Unlock()
		// shutting down: run inline so the job is not left pending
		s.dispatch(ctx, job)
		return
	}
	s.tasks.Go(func() error {
		s.dispatch(ctx, job)
		return nil
	})
	s.mu.Unlock()
}

// dispatch transforms the payload and enqueues the job. Every failure is
// written to the job and broadcast.
func (s *JobService) dispatch(ctx context.Context, job *model.Job) {
	start := time.Now()
	ctx, cancel := context.WithTimeout(ctx, s.timeout)
	defer cancel()

	payload, err := s.transformer.Transform(ctx, job)
	if err != nil {
		s.logger.WarnContext(ctx, "payload transform failed", "job_id", job.ID, "job_type", job.Type, "error", err)
		s.fail(ctx, job, err.Error())
		return
	}

	env := model.DispatchEnvelope{
		JobID:       job.ID,
		JobType:     job.Type,
		Payload:     payload,
		CallbackURL: s.callbackURL,
	}
	if s.tokens != nil {
		tok, tokErr := s.tokens.Issue(job.ID)
		if tokErr != nil {
			s.logger.ErrorContext(ctx, "issue callback token", "job_id", job.ID, "error", tokErr)
			s.fail(ctx, job, "failed to issue callback token")
			return
		}
		env.CallbackToken = tok
	}

	if err := s.dispatcher.Enqueue(ctx, env); err != nil {
		derr := apperrors.Dispatch(err)
		s.logger.WarnContext(ctx, "job enqueue failed", "job_id", job.ID, "job_type", job.Type, "error", err)
		metrics.EmitJobTransition(s.metrics, metrics.JobMetric{
			JobType:    string(job.Type),
			Transition: metrics.TransitionDispatched,
			Duration:   time.Since(start),
			Err:        derr,
		})
		s.fail(ctx, job, derr.Error())
		return
	}

	s.logger.InfoContext(ctx, "job enqueued", "job_id", job.ID, "job_type", job.Type)
	metrics.EmitJobTransition(s.metrics, metrics.JobMetric{
		JobType:    string(job.Type),
		Transition: metrics.TransitionDispatched,
		Duration:   time.Since(start),
	})
}

// fail records reason on the job and broadcasts the result. The write uses a
// fresh timeout so a dispatch that ran out of time can still be recorded.
func (s *JobService) fail(ctx context.Context, job *model.Job, reason string) {
	ctx, cancel := context.WithTimeout(context.WithoutCancel(ctx), 10*time.Second)
	defer cancel()

	updated, err := s.repo.Update(ctx, job.ID, func(j *model.Job) error {
		domainjob.MarkFailed(j, reason, s.stamp(auth.System))
		return nil
	})
	if err != nil {
		s.logger.ErrorContext(ctx, "record job failure", "job_id", job.ID, "reason", reason, "error", err)
		return
	}
	s.broadcast(ctx, updated)
}

// HandleCallback applies a worker report. Any valid status is accepted and
// repeated reports converge on the same record. Type-specific post-processing
// runs after the write; its failures are logged and never fail the callback.
func (s *JobService) HandleCallback(ctx context.Context, req model.CallbackRequest) (*model.Job, error) {
	req.JobID = strings.TrimSpace(req.JobID)
	if req.JobID == "" {
		return nil, apperrors.ValidationField("jobId", "Job ID is required")
	}
	if req.Status == "" {
		return nil, apperrors.ValidationField("status", "Status is required")
	}
	if !req.Status.Valid() {
		return nil, apperrors.ValidationField("status", "Invalid status. Must be one of: "+statusList())
	}
	if s.tokens != nil {
		if err := s.tokens.Verify(req.CallbackToken, req.JobID); err != nil {
			return nil, err
		}
	}

	var previous model.JobStatus
	updated, err := s.repo.Update(ctx, req.JobID, func(j *model.Job) error {
		previous = j.Status
		return domainjob.ApplyReport(j, domainjob.Report{
			Status: req.Status,
			Result: req.Result,
			Error:  req.Error,
		}, s.stamp(auth.System))
	})
	if err != nil {
		return nil, err
	}

	if domainjob.IsRegression(previous, updated.Status) {
		s.logger.WarnContext(ctx, "callback moved job out of terminal status",
			"job_id", updated.ID, "from", previous, "to", updated.Status)
	}
	s.logger.InfoContext(ctx, "job status updated", "job_id", updated.ID, "status", updated.Status)

	s.postProcess(ctx, updated)
	s.broadcast(ctx, updated)
	metrics.EmitJobTransition(s.metrics, metrics.JobMetric{
		JobType:    string(updated.Type),
		Transition: metrics.TransitionCallback,
		Status:     string(updated.Status),
	})
	return updated, nil
}

func (s *JobService) postProcess(ctx context.Context, job *model.Job) {
	p, ok := s.postProcessors[job.Type]
	if !ok {
		return
	}
	if err := p.Process(ctx, job); err != nil {
		perr := apperrors.PostProcessing(string(job.Type), err)
		s.logger.ErrorContext(ctx, "job post-processing failed", "job_id", job.ID, "error", perr)
	}
}

// Update applies an administrative partial update and broadcasts the result.
func (s *JobService) Update(ctx context.Context, id string, req model.UpdateJobRequest, actor auth.Actor) (*model.Job, error) {
	var previous model.JobStatus
	updated, err := s.repo.Update(ctx, id, func(j *model.Job) error {
		previous = j.Status
		return domainjob.ApplyUpdate(j, req, s.stamp(actor))
	})
	if err != nil {
		return nil, err
	}

	if domainjob.IsRegression(previous, updated.Status) {
		s.logger.WarnContext(ctx, "update moved job out of terminal status",
			"job_id", updated.ID, "from", previous, "to", updated.Status, "actor", actor.Label())
	}
	s.broadcast(ctx, updated)
	metrics.EmitJobTransition(s.metrics, metrics.JobMetric{
		JobType:    string(updated.Type),
		Transition: metrics.TransitionUpdated,
		Status:     string(updated.Status),
	})
	return updated, nil
}

// Get returns one job.
func (s *JobService) Get(ctx context.Context, id string) (*model.Job, error) {
	return s.repo.GetByID(ctx, id)
}

// List returns jobs across organizations.
func (s *JobService) List(ctx context.Context, opts model.JobListOptions) ([]*model.Job, error) {
	if opts.Status != nil && !opts.Status.Valid() {
		return nil, apperrors.ValidationField("status", "Invalid status. Must be one of: "+statusList())
	}
	return s.repo.List(ctx, opts)
}

// ListByOrganization returns one organization's jobs, optionally filtered by status.
func (s *JobService) ListByOrganization(ctx context.Context, organizationID string, opts model.JobListOptions) ([]*model.Job, error) {
	organizationID = strings.TrimSpace(organizationID)
	if organizationID == "" {
		return nil, apperrors.ValidationField("organizationId", "Organization ID is required")
	}
	opts.OrganizationID = organizationID
	return s.List(ctx, opts)
}

// Delete removes a job. No event is broadcast.
func (s *JobService) Delete(ctx context.Context, id string) error {
	if err := s.repo.Delete(ctx, id); err != nil {
		return err
	}
	s.logger.InfoContext(ctx, "job deleted", "job_id", id)
	return nil
}

// Shutdown stops scheduling background dispatches and waits for those in
// flight, or until ctx is done.
func (s *JobService) Shutdown(ctx context.Context) error {
	s.mu.Lock()
	s.closing = true
	s.mu.Unlock()

	done := make(chan struct{})
	go func() {
		_ = s.tasks.Wait()
		close(done)
	}()
	select {
	case <-done:
		return nil
	case <-ctx.Done():
		return fmt.Errorf("waiting for dispatch tasks: %w", ctx.Err())
	}
}

func (s *JobService) broadcast(ctx context.Context, job *model.Job) {
	if job.OrganizationID == "" {
		return
	}
	s.broadcaster.Broadcast(ctx, job.OrganizationID, model.NewJobUpdateEvent(*job))
}

func (s *JobService) stamp(actor auth.Actor) domainjob.Stamp {
	return domainjob.Stamp{By: actor.Label(), At: s.now()}
}

func statusList() string {
	names := make([]string, 0, len(model.JobStatuses()))
	for _, st := range model.JobStatuses() {
		names = append(names, string(st))
	}
	return strings.Join(names, ", ")
}
