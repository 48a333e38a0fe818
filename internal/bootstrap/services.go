package bootstrap

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/redis/go-redis/v9"

	"github.com/target/console-api/config"
	"github.com/target/console-api/internal/core"
	"github.com/target/console-api/internal/data"
	"github.com/target/console-api/internal/observability/statsd"
	"github.com/target/console-api/internal/service"
)

const shutdownWaitTimeout = 15 * time.Second

// ServiceContainer holds all application services.
type ServiceContainer struct {
	// Jobs and Resolver are nil unless the http service is enabled.
	Jobs          *service.JobService
	Resolver      core.ActorResolver
	Fanout        Fanout
	Observability ObservabilityContainer

	closers []namedCloser
}

type namedCloser struct {
	name string
	c    io.Closer
}

// ObservabilityContainer groups shared observability dependencies.
type ObservabilityContainer struct {
	MetricsClient *statsd.Client
	// MetricsSink is nil when metrics are disabled.
	MetricsSink   statsd.Sink
	MetricsConfig config.ObservabilityMetricsConfig
}

// ServiceDeps groups dependencies for service initialization.
type ServiceDeps struct {
	Config      *config.AppConfig
	DB          *sql.DB
	RedisClient redis.UniversalClient
	Logger      *slog.Logger
}

// buildObservability configures the metrics sink. A sink that cannot be
// created is logged and skipped.
func buildObservability(logger *slog.Logger, cfg config.ObservabilityConfig) ObservabilityContainer {
	obsLogger := logger
	if obsLogger == nil {
		obsLogger = slog.Default()
	}

	out := ObservabilityContainer{MetricsConfig: cfg.Metrics}
	if !cfg.Metrics.IsEnabled() {
		return out
	}
	client, err := statsd.NewClient(statsd.Config{
		Enabled: true,
		Address: cfg.Metrics.StatsdAddress,
		Prefix:  cfg.Metrics.Prefix,
		Logger:  obsLogger,
	})
	if err != nil {
		obsLogger.Error("failed to initialise statsd client", "error", err)
		return out
	}
	out.MetricsClient = client
	out.MetricsSink = client
	return out
}

// NewServices wires repositories, adapters and services for the enabled
// service modes. On error every resource opened so far is closed.
func NewServices(ctx context.Context, deps *ServiceDeps) (ServiceContainer, error) {
	if deps == nil || deps.Config == nil {
		return ServiceContainer{}, errors.New("service dependencies are required")
	}
	if deps.DB == nil {
		return ServiceContainer{}, errors.New("database connection is required")
	}
	logger := deps.Logger
	if logger == nil {
		logger = slog.Default()
	}
	cfg := deps.Config

	sc := ServiceContainer{Observability: buildObservability(logger, cfg.Observability)}
	if sc.Observability.MetricsClient != nil {
		sc.closers = append(sc.closers, namedCloser{name: "statsd", c: sc.Observability.MetricsClient})
	}

	fanout, err := BuildFanout(FanoutConfig{
		Realtime:    cfg.Realtime,
		RedisClient: deps.RedisClient,
		Logger:      logger,
	})
	if err != nil {
		sc.Close(logger)
		return ServiceContainer{}, err
	}
	sc.Fanout = fanout

	if !cfg.IsHTTPServerEnabled() {
		return sc, nil
	}

	if err := wireHTTPServices(ctx, &sc, deps, logger); err != nil {
		sc.Close(logger)
		return ServiceContainer{}, err
	}
	return sc, nil
}

func wireHTTPServices(ctx context.Context, sc *ServiceContainer, deps *ServiceDeps, logger *slog.Logger) error {
	cfg := deps.Config
	repoCfg := data.RepoConfig{Logger: logger}
	jobRepo := data.NewJobRepo(deps.DB, repoCfg)
	diagramRepo := data.NewDiagramRepo(deps.DB, repoCfg)

	dispatcher, closer, err := BuildDispatcher(ctx, DispatcherConfig{
		Dispatch:    cfg.Dispatch,
		RedisClient: deps.RedisClient,
		Logger:      logger,
	})
	if err != nil {
		return err
	}
	sc.closers = append(sc.closers, namedCloser{name: "dispatcher", c: closer})

	signer, err := BuildPreviewSigner(cfg.Storage, logger)
	if err != nil {
		return err
	}
	transformers, err := BuildTransformers(diagramRepo, signer, cfg.Dispatch.PayloadProjections, logger)
	if err != nil {
		return err
	}
	tokens, err := BuildCallbackTokens(cfg.Dispatch)
	if err != nil {
		return err
	}

	jobs, err := service.NewJobService(service.JobServiceOptions{
		Repo:            jobRepo,
		Dispatcher:      dispatcher,
		Broadcaster:     sc.Fanout.Broadcaster,
		CallbackURL:     cfg.HTTP.CallbackURL(),
		Transformer:     transformers,
		PostProcessors:  BuildPostProcessors(diagramRepo),
		Tokens:          tokens,
		DispatchTimeout: cfg.Dispatch.Timeout,
		Logger:          logger,
		Metrics:         sc.Observability.MetricsSink,
	})
	if err != nil {
		return fmt.Errorf("create job service: %w", err)
	}
	sc.Jobs = jobs

	resolver, err := BuildActorResolver(ctx, AuthConfig{Auth: cfg.Auth, IsDev: cfg.IsDev, Logger: logger})
	if err != nil {
		return err
	}
	sc.Resolver = resolver
	return nil
}

// Close releases transport and metrics connections.
func (sc *ServiceContainer) Close(logger *slog.Logger) {
	for i := len(sc.closers) - 1; i >= 0; i-- {
		nc := sc.closers[i]
		if err := nc.c.Close(); err != nil && logger != nil {
			logger.Warn("close "+nc.name, "error", err)
		}
	}
	sc.closers = nil
}

// ServiceOrchestrationConfig contains everything needed to run the enabled
// services until shutdown.
type ServiceOrchestrationConfig struct {
	Config      *config.AppConfig
	Services    ServiceContainer
	DB          *sql.DB
	RedisClient redis.UniversalClient
	Logger      *slog.Logger
}

type serviceStartupDeps struct {
	ctx             context.Context
	cfg             *ServiceOrchestrationConfig
	logger          *slog.Logger
	enabledServices map[config.ServiceMode]bool
	errCh           chan error
}

// backgroundService describes a startable background component.
type backgroundService struct {
	name    string
	enabled func(*serviceStartupDeps) bool
	start   func(context.Context) error
}

// backgroundServiceHandle tracks a running background service.
type backgroundServiceHandle struct {
	name string
	done <-chan struct{}
}

// startHTTPServerIfEnabled starts the HTTP server if enabled.
func startHTTPServerIfEnabled(deps *serviceStartupDeps) *http.Server {
	if deps == nil || deps.cfg == nil || !deps.enabledServices[config.ServiceModeHTTP] {
		return nil
	}
	return StartHTTPServer(&HTTPServerConfig{
		Config:      deps.cfg.Config,
		Services:    deps.cfg.Services,
		DB:          deps.cfg.DB,
		RedisClient: deps.cfg.RedisClient,
		Logger:      deps.logger,
		ErrCh:       deps.errCh,
	})
}

func launchBackground(ctx context.Context, deps *serviceStartupDeps, descriptor backgroundService) <-chan struct{} {
	if deps == nil || !descriptor.enabled(deps) {
		return nil
	}

	done := make(chan struct{})
	go func() {
		defer close(done)
		if err := descriptor.start(ctx); err != nil {
			reportServiceError(ctx, deps.errCh, deps.logger, fmt.Errorf("%s failed: %w", descriptor.name, err))
		}
	}()

	deps.logger.InfoContext(ctx, "background service started", "service", descriptor.name)
	return done
}

// reportServiceError hands err to the shutdown loop without blocking. The
// channel holds one slot per service, so a full channel means shutdown is
// already under way.
func reportServiceError(ctx context.Context, errCh chan<- error, logger *slog.Logger, err error) {
	select {
	case errCh <- err:
	case <-ctx.Done():
	default:
		logger.WarnContext(ctx, "dropping service error", "error", err)
	}
}

func startBackgroundServices(deps *serviceStartupDeps, services []backgroundService) []backgroundServiceHandle {
	if deps == nil {
		return nil
	}
	handles := make([]backgroundServiceHandle, 0, len(services))

	for _, svc := range services {
		done := launchBackground(deps.ctx, deps, svc)
		if done == nil {
			continue
		}
		handles = append(handles, backgroundServiceHandle{name: svc.name, done: done})
	}

	return handles
}

func newRelayBackgroundService(deps *serviceStartupDeps) backgroundService {
	return backgroundService{
		name: "realtime relay",
		enabled: func(d *serviceStartupDeps) bool {
			return d.cfg.Services.Fanout.Relay != nil
		},
		start: func(ctx context.Context) error {
			return deps.cfg.Services.Fanout.Relay.Run(ctx)
		},
	}
}

func newReaperBackgroundService(deps *serviceStartupDeps) backgroundService {
	return backgroundService{
		name: "reaper",
		enabled: func(d *serviceStartupDeps) bool {
			return d.enabledServices[config.ServiceModeReaper]
		},
		start: func(ctx context.Context) error {
			var reaperCfg config.ReaperConfig
			if deps.cfg.Config != nil {
				reaperCfg = deps.cfg.Config.Reaper
			}
			return RunReaper(ctx, ReaperConfig{
				DB:          deps.cfg.DB,
				Broadcaster: deps.cfg.Services.Fanout.Broadcaster,
				Logger:      deps.logger,
				Config:      reaperCfg,
				Metrics:     deps.cfg.Services.Observability.MetricsSink,
			})
		},
	}
}

func buildBackgroundServices(deps *serviceStartupDeps) []backgroundService {
	if deps == nil {
		return nil
	}
	return []backgroundService{
		newRelayBackgroundService(deps),
		newReaperBackgroundService(deps),
	}
}

// ServiceStartupResult holds the results of starting all services.
type ServiceStartupResult struct {
	HTTPServer *http.Server
	Background []backgroundServiceHandle
}

func startServices(deps *serviceStartupDeps) ServiceStartupResult {
	return ServiceStartupResult{
		HTTPServer: startHTTPServerIfEnabled(deps),
		Background: startBackgroundServices(deps, buildBackgroundServices(deps)),
	}
}

// RunServicesWithShutdown starts all enabled services and manages their lifecycle.
// This function blocks until a shutdown signal is received or a service fails.
func RunServicesWithShutdown(cfg *ServiceOrchestrationConfig) error {
	if cfg == nil {
		return errors.New("service orchestration config is required")
	}
	if cfg.Config == nil {
		return errors.New("service orchestration config missing AppConfig")
	}
	logger := cfg.Logger
	if logger == nil {
		logger = slog.Default()
	}

	serviceCtx, cancel := context.WithCancel(context.Background())
	defer cancel()

	enabledServices, err := cfg.Config.GetEnabledServices()
	if err != nil {
		return fmt.Errorf("determine enabled services: %w", err)
	}
	if enabledServices[config.ServiceModeHTTP] && cfg.Services.Jobs == nil {
		return errors.New("http service enabled but job service is not wired")
	}
	deps := &serviceStartupDeps{
		ctx:             serviceCtx,
		cfg:             cfg,
		logger:          logger,
		enabledServices: enabledServices,
	}
	deps.errCh = make(chan error, len(buildBackgroundServices(deps))+1)

	result := startServices(deps)

	return waitForShutdown(shutdownConfig{
		ctx:         serviceCtx,
		cancel:      cancel,
		errCh:       deps.errCh,
		httpServer:  result.HTTPServer,
		jobService:  cfg.Services.Jobs,
		timeout:     cfg.Config.HTTP.ShutdownTimeout,
		logger:      logger,
		backgrounds: result.Background,
	})
}

// shutdownConfig contains dependencies for graceful shutdown.
type shutdownConfig struct {
	ctx         context.Context
	cancel      context.CancelFunc
	errCh       <-chan error
	httpServer  *http.Server
	jobService  *service.JobService
	timeout     time.Duration
	logger      *slog.Logger
	backgrounds []backgroundServiceHandle
}

// waitForShutdown waits for shutdown signal or service error.
func waitForShutdown(cfg shutdownConfig) error {
	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
	defer signal.Stop(quit)

	select {
	case <-quit:
		cfg.logger.Info("shutting down services...")
		cfg.cancel()
		return gracefulStop(cfg)
	case err := <-cfg.errCh:
		cfg.logger.Error("service error", "error", err)
		cfg.cancel()
		if stopErr := gracefulStop(cfg); stopErr != nil {
			cfg.logger.Error("graceful stop failed", "error", stopErr)
		}
		return err
	}
}

// gracefulStop drains HTTP traffic and background dispatches, then waits for
// background services. The service context is already canceled here, so the
// drain deadline hangs off a detached context.
func gracefulStop(cfg shutdownConfig) error {
	timeout := cfg.timeout
	if timeout <= 0 {
		timeout = shutdownWaitTimeout
	}
	shutdownCtx, cancel := context.WithTimeout(context.WithoutCancel(cfg.ctx), timeout)
	defer cancel()

	var stopErr error
	if cfg.httpServer != nil || cfg.jobService != nil {
		stopErr = ShutdownHTTPServer(ShutdownConfig{
			Context:    shutdownCtx,
			Server:     cfg.httpServer,
			JobService: cfg.jobService,
			Logger:     cfg.logger,
		})
	}

	for _, svc := range cfg.backgrounds {
		waitForService(svc.done, svc.name, cfg.logger)
	}

	return stopErr
}

// waitForService waits for a service to finish with timeout.
func waitForService(done <-chan struct{}, name string, logger *slog.Logger) {
	if done == nil {
		return
	}
	select {
	case <-done:
		logger.Info(name + " stopped")
	case <-time.After(shutdownWaitTimeout):
		logger.Warn("timeout waiting for " + name + " to stop")
	}
}
