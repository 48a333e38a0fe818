package main

import (
	"context"
	"encoding/json"
	"errors"
	"flag"
	"fmt"
	"io"
	"os"
	"strings"
	"text/tabwriter"
	"time"

	"github.com/target/console-api/config"
	"github.com/target/console-api/internal/adapters/reaper"
	"github.com/target/console-api/internal/bootstrap"
	"github.com/target/console-api/internal/data"
	"github.com/target/console-api/internal/domain/model"
)

type reapOptions struct {
	StaleMaxAge    time.Duration
	TerminalMaxAge time.Duration
	Timeout        time.Duration
}

// runReap runs one sweep with the configured reaper settings. Reaped jobs are
// announced through the relay when one is configured so viewers attached to
// running API replicas see them.
func runReap(cmdCtx *commandContext, args []string) error {
	cfg := cmdCtx.Config.Reaper
	opts, err := parseReapFlags(args, reapOptions{
		StaleMaxAge:    cfg.StaleMaxAge,
		TerminalMaxAge: cfg.TerminalMaxAge,
		Timeout:        5 * time.Minute,
	})
	if err != nil {
		return err
	}
	cfg.StaleMaxAge = opts.StaleMaxAge
	cfg.TerminalMaxAge = opts.TerminalMaxAge

	db, err := bootstrap.ConnectDB(bootstrap.DatabaseConfig{DBConfig: cmdCtx.Config.Postgres, Logger: cmdCtx.Logger})
	if err != nil {
		return fmt.Errorf("connect db: %w", err)
	}
	defer func() {
		if closeErr := db.Close(); closeErr != nil {
			cmdCtx.Logger.Warn("db close failed", "error", closeErr)
		}
	}()

	fanoutCfg := bootstrap.FanoutConfig{Realtime: cmdCtx.Config.Realtime, Logger: cmdCtx.Logger}
	if cmdCtx.Config.Realtime.Relay == config.RelayModeRedis {
		client, connErr := bootstrap.ConnectRedis(bootstrap.DatabaseConfig{RedisConfig: cmdCtx.Config.Redis, Logger: cmdCtx.Logger})
		if connErr != nil {
			return fmt.Errorf("connect redis: %w", connErr)
		}
		defer func() {
			if closeErr := client.Close(); closeErr != nil {
				cmdCtx.Logger.Warn("redis close failed", "error", closeErr)
			}
		}()
		fanoutCfg.RedisClient = client
	} else {
		cmdCtx.Logger.Info("no relay configured, reaped jobs will not be announced to viewers")
	}
	fanout, err := bootstrap.BuildFanout(fanoutCfg)
	if err != nil {
		return err
	}

	runner, err := reaper.NewRunner(reaper.RunnerOptions{
		DB:          db,
		Broadcaster: fanout.Broadcaster,
		Config:      cfg,
		Logger:      cmdCtx.Logger,
	})
	if err != nil {
		return err
	}

	ctx, cancel := context.WithTimeout(cmdCtx.Ctx, opts.Timeout)
	defer cancel()
	if sweepErr := runner.Sweep(ctx); sweepErr != nil {
		return fmt.Errorf("sweep: %w", sweepErr)
	}
	return writeln(cmdCtx.Out, "sweep complete")
}

func parseReapFlags(args []string, defaults reapOptions) (reapOptions, error) {
	fs := flag.NewFlagSet("reap", flag.ContinueOnError)
	fs.SetOutput(os.Stderr)

	opts := defaults
	fs.DurationVar(&opts.StaleMaxAge, "stale-max-age", defaults.StaleMaxAge, "Fail pending or processing jobs idle longer than this")
	fs.DurationVar(&opts.TerminalMaxAge, "terminal-max-age", defaults.TerminalMaxAge, "Delete finished jobs older than this (0 keeps them)")
	fs.DurationVar(&opts.Timeout, "timeout", defaults.Timeout, "Maximum duration of the sweep")

	if err := fs.Parse(args); err != nil {
		return reapOptions{}, err
	}
	if opts.StaleMaxAge <= 0 {
		return reapOptions{}, errors.New("--stale-max-age must be greater than zero")
	}
	if opts.TerminalMaxAge < 0 {
		return reapOptions{}, errors.New("--terminal-max-age must not be negative")
	}
	if opts.Timeout <= 0 {
		return reapOptions{}, errors.New("--timeout must be greater than zero")
	}
	return opts, nil
}

type listJobsOptions struct {
	Organization string
	Status       string
	Limit        int
	Offset       int
	JSON         bool
}

func runListJobs(cmdCtx *commandContext, args []string) error {
	opts, err := parseListJobsFlags(args)
	if err != nil {
		return err
	}
	listOpts, err := opts.toListOptions()
	if err != nil {
		return err
	}

	db, err := bootstrap.ConnectDB(bootstrap.DatabaseConfig{DBConfig: cmdCtx.Config.Postgres, Logger: cmdCtx.Logger})
	if err != nil {
		return fmt.Errorf("connect db: %w", err)
	}
	defer func() {
		if closeErr := db.Close(); closeErr != nil {
			cmdCtx.Logger.Warn("db close failed", "error", closeErr)
		}
	}()

	ctx, cancel := context.WithTimeout(cmdCtx.Ctx, 30*time.Second)
	defer cancel()

	jobs, err := data.NewJobRepo(db, data.RepoConfig{Logger: cmdCtx.Logger}).List(ctx, listOpts)
	if err != nil {
		return fmt.Errorf("list jobs: %w", err)
	}
	if opts.JSON {
		enc := json.NewEncoder(cmdCtx.Out)
		enc.SetIndent("", "  ")
		if jobs == nil {
			jobs = []*model.Job{}
		}
		return enc.Encode(jobs)
	}
	return renderJobsTable(cmdCtx.Out, jobs)
}

func parseListJobsFlags(args []string) (listJobsOptions, error) {
	fs := flag.NewFlagSet("list-jobs", flag.ContinueOnError)
	fs.SetOutput(os.Stderr)

	var opts listJobsOptions
	fs.StringVar(&opts.Organization, "org", "", "Only jobs for this organization id")
	fs.StringVar(&opts.Status, "status", "", "Only jobs in this status")
	fs.IntVar(&opts.Limit, "limit", 50, "Maximum number of jobs")
	fs.IntVar(&opts.Offset, "offset", 0, "Number of jobs to skip")
	fs.BoolVar(&opts.JSON, "json", false, "Print jobs as JSON")

	if err := fs.Parse(args); err != nil {
		return listJobsOptions{}, err
	}
	if opts.Limit < 1 || opts.Limit > 500 {
		return listJobsOptions{}, errors.New("--limit must be between 1 and 500")
	}
	if opts.Offset < 0 {
		return listJobsOptions{}, errors.New("--offset must not be negative")
	}
	return opts, nil
}

func (o listJobsOptions) toListOptions() (model.JobListOptions, error) {
	out := model.JobListOptions{
		OrganizationID: strings.TrimSpace(o.Organization),
		Limit:          o.Limit,
		Offset:         o.Offset,
	}
	if s := strings.ToLower(strings.TrimSpace(o.Status)); s != "" {
		status := model.JobStatus(s)
		if !status.Valid() {
			return model.JobListOptions{}, fmt.Errorf("unknown status %q", o.Status)
		}
		out.Status = &status
	}
	return out, nil
}

func renderJobsTable(out io.Writer, jobs []*model.Job) error {
	if len(jobs) == 0 {
		return writeln(out, "(no jobs found)")
	}
	w := tabwriter.NewWriter(out, 0, 4, 2, ' ', 0)
	if err := writeln(w, "ID\tType\tOrganization\tStatus\tUpdated\tError"); err != nil {
		return fmt.Errorf("write jobs header: %w", err)
	}
	for _, j := range jobs {
		errText := ""
		if j.Error != nil {
			errText = *j.Error
		}
		if err := writef(w, "%s\t%s\t%s\t%s\t%s\t%s\n",
			j.ID, j.Type, j.OrganizationID, j.Status, j.UpdatedAt.UTC().Format(time.RFC3339), errText); err != nil {
			return fmt.Errorf("write job row: %w", err)
		}
	}
	return w.Flush()
}
