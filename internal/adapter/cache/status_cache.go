package cache

import (
	"context"
	"encoding/json"
	"errors"
	"io"
	"time"

	"github.com/redis/go-redis/v9"
	"github.com/rs/zerolog"

	"stylize/internal/domain"
	"stylize/internal/infra"
)

const keyPrefix = "stylize:status:"

type redisClient interface {
	Get(ctx context.Context, key string) *redis.StringCmd
	Set(ctx context.Context, key string, value any, expiration time.Duration) *redis.StatusCmd
}

// RedisStatusCache stores snapshots of terminal job statuses on Redis.
// Terminal jobs never change, so entries never need invalidation. Cache
// failures are logged and treated as misses.
type RedisStatusCache struct {
	client redisClient
	ttl    time.Duration
	logger *infra.Logger
}

// NewRedisStatusCache wraps client with the given entry TTL.
func NewRedisStatusCache(client redisClient, ttl time.Duration, logger *infra.Logger) *RedisStatusCache {
	if logger == nil {
		discard := zerolog.New(io.Discard)
		l := infra.Logger(discard)
		logger = &l
	}
	return &RedisStatusCache{client: client, ttl: ttl, logger: logger}
}

func (c *RedisStatusCache) Get(ctx context.Context, jobID string) (*domain.JobStatus, bool) {
	raw, err := c.client.Get(ctx, keyPrefix+jobID).Bytes()
	if err != nil {
		if !errors.Is(err, redis.Nil) {
			c.logger.Warn().Err(err).Str("job_id", jobID).Msg("cache: get failed")
		}
		return nil, false
	}
	var st domain.JobStatus
	if err := json.Unmarshal(raw, &st); err != nil {
		c.logger.Warn().Err(err).Str("job_id", jobID).Msg("cache: corrupt entry")
		return nil, false
	}
	return &st, true
}

// Set stores status when it is terminal and ignores it otherwise.
func (c *RedisStatusCache) Set(ctx context.Context, status domain.JobStatus) {
	if !status.State.Terminal() {
		return
	}
	raw, err := json.Marshal(status)
	if err != nil {
		return
	}
	if err := c.client.Set(ctx, keyPrefix+status.JobID, raw, c.ttl).Err(); err != nil {
		c.logger.Warn().Err(err).Str("job_id", status.JobID).Msg("cache: set failed")
	}
}

// NewRedisClient opens a go-redis client for addr.
func NewRedisClient(addr, password string, db int) *redis.Client {
	return redis.NewClient(&redis.Options{Addr: addr, Password: password, DB: db})
}
