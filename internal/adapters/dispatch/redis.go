package dispatch

import (
	"context"
	"encoding/json"
	"fmt"

	"github.com/redis/go-redis/v9"

	"github.com/target/console-api/internal/core"
	"github.com/target/console-api/internal/domain/model"
)

// RedisListDispatcher appends envelopes to a Redis list that workers pop from.
type RedisListDispatcher struct {
	client redis.UniversalClient
	key    string
}

var _ core.Dispatcher = (*RedisListDispatcher)(nil)

// NewRedisListDispatcher returns a dispatcher pushing onto key.
func NewRedisListDispatcher(client redis.UniversalClient, key string) *RedisListDispatcher {
	return &RedisListDispatcher{client: client, key: key}
}

// Enqueue RPUSHes the JSON envelope so workers consume in FIFO order with BLPOP.
func (d *RedisListDispatcher) Enqueue(ctx context.Context, env model.DispatchEnvelope) error {
	body, err := json.Marshal(env)
	if err != nil {
		return fmt.Errorf("marshal envelope: %w", err)
	}
	if err := d.client.RPush(ctx, d.key, body).Err(); err != nil {
		return fmt.Errorf("rpush %s: %w", d.key, err)
	}
	return nil
}
