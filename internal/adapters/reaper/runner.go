// Package reaper provides adapters for running the job reaper.
package reaper

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"log/slog"

	"github.com/target/console-api/config"
	"github.com/target/console-api/internal/core"
	"github.com/target/console-api/internal/data"
	"github.com/target/console-api/internal/observability/statsd"
	"github.com/target/console-api/internal/service"
)

// Runner wires the reaper service to Postgres and runs its sweep loop.
type Runner struct {
	reaper *service.ReaperService
	logger *slog.Logger
}

// RunnerOptions holds the dependencies for creating a Runner.
type RunnerOptions struct {
	DB          *sql.DB
	Broadcaster core.Broadcaster
	Config      config.ReaperConfig
	Logger      *slog.Logger
	Metrics     statsd.Sink

	// Repo overrides the Postgres job store, mainly for tests.
	Repo core.JobRepository
}

// NewRunner creates a new reaper runner with the given options.
func NewRunner(opts RunnerOptions) (*Runner, error) {
	if err := validateRunnerOptions(&opts); err != nil {
		return nil, err
	}

	reaper, err := wireReaperService(opts)
	if err != nil {
		return nil, fmt.Errorf("wire reaper service: %w", err)
	}

	return &Runner{
		reaper: reaper,
		logger: opts.Logger.With("component", "reaper_runner"),
	}, nil
}

func validateRunnerOptions(opts *RunnerOptions) error {
	if opts.DB == nil && opts.Repo == nil {
		return errors.New("database connection is required")
	}
	if opts.Broadcaster == nil {
		return errors.New("broadcaster is required")
	}
	if opts.Logger == nil {
		opts.Logger = slog.Default()
	}
	return nil
}

func wireReaperService(opts RunnerOptions) (*service.ReaperService, error) {
	repo := opts.Repo
	if repo == nil {
		repo = data.NewJobRepo(opts.DB, data.RepoConfig{Logger: opts.Logger})
	}

	return service.NewReaperService(service.ReaperServiceOptions{
		Repo:        repo,
		Broadcaster: opts.Broadcaster,
		Config:      opts.Config,
		Logger:      opts.Logger,
		Metrics:     opts.Metrics,
	})
}

// Run starts the reaper loop and runs until the context is cancelled.
func (r *Runner) Run(ctx context.Context) error {
	r.logger.InfoContext(ctx, "starting reaper runner")
	return r.reaper.Run(ctx)
}

// Sweep runs a single pass, for one-shot invocations.
func (r *Runner) Sweep(ctx context.Context) error {
	return r.reaper.Sweep(ctx)
}
