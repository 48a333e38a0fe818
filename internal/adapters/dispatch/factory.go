package dispatch

import (
	"context"
	"errors"
	"fmt"
	"io"

	"github.com/redis/go-redis/v9"

	"github.com/target/console-api/config"
	"github.com/target/console-api/internal/core"
)

// Options selects and configures the transport built by New.
type Options struct {
	Config config.DispatchConfig
	// Redis is required for the redis transport.
	Redis redis.UniversalClient
}

type nopCloser struct{}

func (nopCloser) Close() error { return nil }

// New builds the dispatcher for the configured transport. The returned
// closer releases transport resources on shutdown.
func New(ctx context.Context, opts Options) (core.Dispatcher, io.Closer, error) {
	cfg := opts.Config
	switch cfg.Transport {
	case config.DispatchTransportHTTP, "":
		d, err := NewHTTPDispatcher(ctx, HTTPOptions{Config: cfg.HTTP})
		if err != nil {
			return nil, nil, err
		}
		return d, nopCloser{}, nil
	case config.DispatchTransportAMQP:
		d, err := DialAMQP(cfg.AMQP)
		if err != nil {
			return nil, nil, err
		}
		return d, d, nil
	case config.DispatchTransportSQS:
		d, err := NewSQSDispatcher(ctx, cfg.SQS)
		if err != nil {
			return nil, nil, err
		}
		return d, nopCloser{}, nil
	case config.DispatchTransportRedis:
		if opts.Redis == nil {
			return nil, nil, errors.New("redis transport requires a redis client")
		}
		return NewRedisListDispatcher(opts.Redis, cfg.Redis.ListKey), nopCloser{}, nil
	default:
		return nil, nil, fmt.Errorf("unsupported dispatch transport %q", cfg.Transport)
	}
}
