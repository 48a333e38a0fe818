package service

import (
	"context"
	"crypto/rand"
	"encoding/binary"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"github.com/target/console-api/config"
	"github.com/target/console-api/internal/core"
	"github.com/target/console-api/internal/domain/auth"
	domainjob "github.com/target/console-api/internal/domain/job"
	"github.com/target/console-api/internal/domain/model"
	apperrors "github.com/target/console-api/internal/errors"
	obserrors "github.com/target/console-api/internal/observability/errors"
	"github.com/target/console-api/internal/observability/metrics"
	"github.com/target/console-api/internal/observability/statsd"
)

// StaleJobReason is recorded on jobs the reaper gives up on.
const StaleJobReason = "job timed out"

// errJobSettled aborts a reaper write when the job moved on after it was listed.
var errJobSettled = apperrors.Precondition("job no longer stale")

// ReaperServiceOptions groups dependencies for ReaperService.
type ReaperServiceOptions struct {
	Repo        core.JobRepository  // Required: job store
	Broadcaster core.Broadcaster    // Required: viewer notifications for reaped jobs
	Config      config.ReaperConfig // Required: reaper configuration
	Logger      *slog.Logger        // Optional: structured logger
	Metrics     statsd.Sink         // Optional: metrics sink (StatsD-compatible)
	Now         func() time.Time    // Optional: clock
}

// ReaperService fails jobs that no worker reported on in time and deletes
// old terminal jobs.
type ReaperService struct {
	repo        core.JobRepository
	broadcaster core.Broadcaster
	config      config.ReaperConfig
	logger      *slog.Logger
	metrics     statsd.Sink
	now         func() time.Time
}

// NewReaperService constructs a new ReaperService.
func NewReaperService(opts ReaperServiceOptions) (*ReaperService, error) {
	if opts.Repo == nil {
		return nil, errors.New("JobRepository is required")
	}
	if opts.Broadcaster == nil {
		return nil, errors.New("Broadcaster is required")
	}
	logger := opts.Logger
	if logger == nil {
		logger = slog.Default()
	}
	now := opts.Now
	if now == nil {
		now = func() time.Time { return time.Now().UTC() }
	}
	cfg := opts.Config
	if cfg.BatchSize <= 0 {
		cfg.BatchSize = 500
	}

	logger = logger.With("component", "reaper_service")
	logger.Debug("ReaperService initialized",
		"interval", cfg.Interval,
		"stale_max_age", cfg.StaleMaxAge,
		"terminal_max_age", cfg.TerminalMaxAge,
	)
	return &ReaperService{
		repo:        opts.Repo,
		broadcaster: opts.Broadcaster,
		config:      cfg,
		logger:      logger,
		metrics:     opts.Metrics,
		now:         now,
	}, nil
}

// Run sweeps at the configured interval until ctx is canceled. It returns
// nil on cancellation.
func (s *ReaperService) Run(ctx context.Context) error {
	if s.config.Interval <= 0 {
		return errors.New("reaper interval must be positive")
	}
	s.logger.InfoContext(ctx, "starting reaper service", "interval", s.config.Interval)

	// spread sweeps from replicas that start together
	s.waitWithJitter(ctx)

	ticker := time.NewTicker(s.config.Interval)
	defer ticker.Stop()

	for {
		if err := s.Sweep(ctx); err != nil && !isContextCancellation(err) {
			s.logger.ErrorContext(ctx, "reaper sweep failed", "error", err)
		}
		select {
		case <-ctx.Done():
			s.logger.InfoContext(ctx, "reaper service stopping", "reason", ctx.Err())
			return nil
		case <-ticker.C:
		}
	}
}

func (s *ReaperService) waitWithJitter(ctx context.Context) {
	maxJitter := int64(s.config.Interval / 10)
	if maxJitter <= 0 {
		return
	}
	var buf [8]byte
	if _, err := rand.Read(buf[:]); err != nil {
		return
	}
	jitter := time.Duration(binary.BigEndian.Uint64(buf[:]) % uint64(maxJitter)) // #nosec G115 - bounded by maxJitter

	select {
	case <-time.After(jitter):
	case <-ctx.Done():
	}
}

// SweepResult summarizes one sweep.
type SweepResult struct {
	Failed  int64
	Deleted int64
}

// Sweep runs one pass: fail stale jobs, then delete old terminal jobs.
func (s *ReaperService) Sweep(ctx context.Context) error {
	start := time.Now()
	var res SweepResult
	var errs []error

	failed, err := s.failStaleJobs(ctx)
	res.Failed = failed
	if err != nil {
		errs = append(errs, fmt.Errorf("fail stale jobs: %w", err))
	}

	deleted, err := s.deleteTerminalJobs(ctx)
	res.Deleted = deleted
	if err != nil {
		errs = append(errs, fmt.Errorf("delete terminal jobs: %w", err))
	}

	joined := errors.Join(errs...)
	s.emitSweepMetrics(res, time.Since(start), joined)
	return joined
}

// failStaleJobs marks pending and processing jobs older than StaleMaxAge as
// failed, batch by batch, broadcasting each one.
func (s *ReaperService) failStaleJobs(ctx context.Context) (int64, error) {
	cutoff := s.now().Add(-s.config.StaleMaxAge)
	var total int64
	for {
		batch, err := s.repo.ListStale(ctx, cutoff, s.config.BatchSize)
		if err != nil {
			return total, err
		}
		var failedInBatch int64
		for _, stale := range batch {
			ok, err := s.failOne(ctx, stale.ID, cutoff)
			if err != nil {
				return total, err
			}
			if ok {
				failedInBatch++
			}
		}
		total += failedInBatch
		if len(batch) < s.config.BatchSize || failedInBatch == 0 {
			break
		}
		if ctx.Err() != nil {
			return total, ctx.Err()
		}
	}

	if total > 0 {
		s.logger.InfoContext(ctx, "failed stale jobs", "count", total, "max_age", s.config.StaleMaxAge)
	}
	return total, nil
}

func (s *ReaperService) failOne(ctx context.Context, id string, cutoff time.Time) (bool, error) {
	updated, err := s.repo.Update(ctx, id, func(j *model.Job) error {
		if j.Status.IsTerminal() || !j.UpdatedAt.Before(cutoff) {
			return errJobSettled
		}
		domainjob.MarkFailed(j, StaleJobReason, domainjob.Stamp{By: auth.System.Label(), At: s.now()})
		return nil
	})
	switch {
	case errors.Is(err, errJobSettled), apperrors.IsNotFound(err):
		return false, nil
	case err != nil:
		return false, err
	}

	s.broadcaster.Broadcast(ctx, updated.OrganizationID, model.NewJobUpdateEvent(*updated))
	metrics.EmitJobTransition(s.metrics, metrics.JobMetric{
		JobType:    string(updated.Type),
		Transition: metrics.TransitionReaped,
		Status:     string(updated.Status),
	})
	return true, nil
}

// deleteTerminalJobs removes terminal jobs older than TerminalMaxAge. A zero
// max age keeps them.
func (s *ReaperService) deleteTerminalJobs(ctx context.Context) (int64, error) {
	if s.config.TerminalMaxAge <= 0 {
		return 0, nil
	}
	cutoff := s.now().Add(-s.config.TerminalMaxAge)
	var total int64
	for {
		n, err := s.repo.DeleteTerminalBefore(ctx, cutoff, s.config.BatchSize)
		if err != nil {
			return total, err
		}
		total += n
		if n == 0 {
			break
		}
		if ctx.Err() != nil {
			return total, ctx.Err()
		}
	}
	if total > 0 {
		s.logger.InfoContext(ctx, "deleted terminal jobs", "count", total, "max_age", s.config.TerminalMaxAge)
	}
	return total, nil
}

func (s *ReaperService) emitSweepMetrics(res SweepResult, elapsed time.Duration, err error) {
	if s.metrics == nil {
		return
	}
	result := metrics.ResultSuccess
	if err != nil && !isContextCancellation(err) {
		result = metrics.ResultError
	}
	tags := map[string]string{"result": result}
	if result == metrics.ResultError {
		tags["error_class"] = obserrors.Classify(err)
	}
	s.metrics.Count("reaper.sweep", 1, tags)
	s.metrics.Timing("reaper.sweep_duration", elapsed, tags)
	if res.Failed > 0 {
		s.metrics.Count("reaper.jobs_failed", res.Failed, nil)
	}
	if res.Deleted > 0 {
		s.metrics.Count("reaper.jobs_deleted", res.Deleted, nil)
	}
}

func isContextCancellation(err error) bool {
	return errors.Is(err, context.Canceled) || errors.Is(err, context.DeadlineExceeded)
}
