package bootstrap

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"sort"

	"github.com/redis/go-redis/v9"

	"github.com/target/console-api/config"
	"github.com/target/console-api/internal/adapters/callbacktoken"
	"github.com/target/console-api/internal/adapters/dispatch"
	"github.com/target/console-api/internal/adapters/reaper"
	redisadapter "github.com/target/console-api/internal/adapters/redis"
	"github.com/target/console-api/internal/adapters/storage"
	"github.com/target/console-api/internal/core"
	"github.com/target/console-api/internal/domain/model"
	"github.com/target/console-api/internal/observability/statsd"
	"github.com/target/console-api/internal/realtime"
	"github.com/target/console-api/internal/service"
)

// DispatcherConfig contains configuration for the worker transport.
type DispatcherConfig struct {
	Dispatch    config.DispatchConfig
	RedisClient redis.UniversalClient
	Logger      *slog.Logger
}

// BuildDispatcher creates the dispatcher for the configured transport. The
// closer releases transport connections and is never nil on success.
//
//nolint:ireturn // the transport picks the concrete dispatcher at runtime.
func BuildDispatcher(ctx context.Context, cfg DispatcherConfig) (core.Dispatcher, io.Closer, error) {
	if cfg.Dispatch.Transport == config.DispatchTransportRedis && cfg.RedisClient == nil {
		return nil, nil, errors.New("redis dispatch transport requires a redis connection")
	}
	d, closer, err := dispatch.New(ctx, dispatch.Options{Config: cfg.Dispatch, Redis: cfg.RedisClient})
	if err != nil {
		return nil, nil, fmt.Errorf("create %s dispatcher: %w", cfg.Dispatch.Transport, err)
	}
	if cfg.Logger != nil {
		cfg.Logger.InfoContext(ctx, "dispatcher ready", "transport", cfg.Dispatch.Transport)
	}
	return d, closer, nil
}

// Fanout is the notification channel: the local hub plus, when several
// replicas serve viewers, the relay that shares events between them.
type Fanout struct {
	Hub *realtime.Hub
	// Relay is nil unless REALTIME_RELAY=redis.
	Relay *redisadapter.Relay
	// Broadcaster is what services publish to. It is the relay when one is
	// configured and the hub otherwise.
	Broadcaster core.Broadcaster
}

// FanoutConfig contains configuration for the notification channel.
type FanoutConfig struct {
	Realtime    config.RealtimeConfig
	RedisClient redis.UniversalClient
	Logger      *slog.Logger
}

// BuildFanout creates the hub and, if configured, the Redis relay.
func BuildFanout(cfg FanoutConfig) (Fanout, error) {
	hub := realtime.NewHub(realtime.HubOptions{Logger: cfg.Logger})
	out := Fanout{Hub: hub, Broadcaster: hub}

	if cfg.Realtime.Relay != config.RelayModeRedis {
		return out, nil
	}
	if cfg.RedisClient == nil {
		return Fanout{}, errors.New("redis relay requires a redis connection")
	}
	relay, err := redisadapter.NewRelay(redisadapter.RelayOptions{
		Client:  cfg.RedisClient,
		Channel: cfg.Realtime.Channel,
		Local:   hub,
		Logger:  cfg.Logger,
	})
	if err != nil {
		return Fanout{}, fmt.Errorf("create redis relay: %w", err)
	}
	out.Relay = relay
	out.Broadcaster = relay
	return out, nil
}

// BuildPreviewSigner returns a presigner for the configured object store, or
// a passthrough signer when previews are stored as plain URLs.
//
//nolint:ireturn // storage configuration picks the signer at runtime.
func BuildPreviewSigner(cfg config.StorageConfig, logger *slog.Logger) (core.PreviewSigner, error) {
	if !cfg.IsEnabled() {
		return storage.PassthroughSigner{}, nil
	}
	p, err := storage.NewMinioPresigner(cfg)
	if err != nil {
		return nil, fmt.Errorf("create preview presigner: %w", err)
	}
	if logger != nil {
		logger.Info("preview presigner ready", "endpoint", cfg.Endpoint, "bucket", cfg.Bucket)
	}
	return p, nil
}

// BuildTransformers registers the payload transformer for each job type that
// needs one. Projections configured for the extraction type are ignored
// because that type always resolves its diagram.
func BuildTransformers(
	diagrams core.DiagramRepository,
	signer core.PreviewSigner,
	projections map[string]string,
	logger *slog.Logger,
) (*service.TransformerRegistry, error) {
	if logger == nil {
		logger = slog.Default()
	}
	reg := service.NewTransformerRegistry()
	reg.Register(model.JobTypeDiagramElementsExtraction, service.NewDiagramTransformer(diagrams, signer))

	types := make([]string, 0, len(projections))
	for jobType := range projections {
		types = append(types, jobType)
	}
	sort.Strings(types)

	for _, jobType := range types {
		if model.JobType(jobType) == model.JobTypeDiagramElementsExtraction {
			logger.Warn("ignoring payload projection for diagram extraction", "job_type", jobType)
			continue
		}
		t, err := service.NewProjectionTransformer(projections[jobType])
		if err != nil {
			return nil, fmt.Errorf("payload projection for %q: %w", jobType, err)
		}
		reg.Register(model.JobType(jobType), t)
	}
	return reg, nil
}

// BuildPostProcessors returns the callback side effects keyed by job type.
func BuildPostProcessors(diagrams core.DiagramRepository) map[model.JobType]service.PostProcessor {
	return map[model.JobType]service.PostProcessor{
		model.JobTypeDiagramElementsExtraction: service.NewDiagramExtractionProcessor(diagrams),
	}
}

// BuildCallbackTokens returns the callback token signer, or nil when no
// signing key is configured.
//
//nolint:ireturn // nil disables callback token checks.
func BuildCallbackTokens(cfg config.DispatchConfig) (core.CallbackTokens, error) {
	if !cfg.CallbackTokensEnabled() {
		return nil, nil
	}
	signer, err := callbacktoken.NewSigner(cfg.CallbackSigningKey, cfg.CallbackTokenTTL)
	if err != nil {
		return nil, fmt.Errorf("create callback signer: %w", err)
	}
	return signer, nil
}

// ReaperConfig contains configuration for the reaper.
type ReaperConfig struct {
	DB          *sql.DB
	Broadcaster core.Broadcaster
	Logger      *slog.Logger
	Config      config.ReaperConfig
	Metrics     statsd.Sink
}

// RunReaper starts the reaper service.
func RunReaper(ctx context.Context, cfg ReaperConfig) error {
	runner, err := reaper.NewRunner(reaper.RunnerOptions{
		DB:          cfg.DB,
		Broadcaster: cfg.Broadcaster,
		Config:      cfg.Config,
		Logger:      cfg.Logger,
		Metrics:     cfg.Metrics,
	})
	if err != nil {
		return fmt.Errorf("create reaper runner: %w", err)
	}

	return runner.Run(ctx)
}
