package bootstrap

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/target/console-api/config"
)

func TestRedisOptions(t *testing.T) {
	opts, err := redisOptions(config.RedisConfig{URI: " cache:6379 ", Password: "secret"})
	require.NoError(t, err)
	assert.Equal(t, "cache:6379", opts.Addr)
	assert.Equal(t, "secret", opts.Password)

	opts, err = redisOptions(config.RedisConfig{URI: "rediss://:pw@cache:6380/2", Password: "ignored"})
	require.NoError(t, err)
	assert.Equal(t, "cache:6380", opts.Addr)
	assert.Equal(t, "pw", opts.Password)
	assert.Equal(t, 2, opts.DB)
	assert.NotNil(t, opts.TLSConfig)

	opts, err = redisOptions(config.RedisConfig{URI: "redis://cache:6379", Password: "fallback"})
	require.NoError(t, err)
	assert.Equal(t, "fallback", opts.Password)

	_, err = redisOptions(config.RedisConfig{URI: "  "})
	require.EqualError(t, err, "redis requires REDIS_URI")

	_, err = redisOptions(config.RedisConfig{URI: "redis://cache:6379/notadb"})
	require.Error(t, err)
}

func TestConnectRedisUnreachable(t *testing.T) {
	_, err := ConnectRedis(DatabaseConfig{RedisConfig: config.RedisConfig{URI: "127.0.0.1:1", ConnectTimeout: 200 * time.Millisecond}})
	require.Error(t, err)
	assert.Contains(t, err.Error(), "ping redis 127.0.0.1:1")
}
