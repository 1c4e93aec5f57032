package cache

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/redis/go-redis/v9"
	"github.com/use-agent/shelfscan/models"
)

// RedisOptions configures a RedisBackend.
type RedisOptions struct {
	Addr     string
	Password string
	DB       int

	// KeyPrefix is prepended to every key. Default "shelfscan:product:".
	KeyPrefix string
}

// RedisBackend stores entries in Redis with native key expiry.
type RedisBackend struct {
	rdb    *redis.Client
	prefix string
}

// NewRedisBackend creates a client and pings the server. The backend is
// returned even when the ping fails, together with an error wrapping
// models.ErrCacheUnavailable: the client reconnects on later commands.
func NewRedisBackend(ctx context.Context, opts RedisOptions) (*RedisBackend, error) {
	prefix := opts.KeyPrefix
	if prefix == "" {
		prefix = "shelfscan:product:"
	}
	b := &RedisBackend{
		rdb: redis.NewClient(&redis.Options{
			Addr:     opts.Addr,
			Password: opts.Password,
			DB:       opts.DB,
		}),
		prefix: prefix,
	}
	if err := b.rdb.Ping(ctx).Err(); err != nil {
		return b, fmt.Errorf("cache: connect redis %s: %w: %w", opts.Addr, models.ErrCacheUnavailable, err)
	}
	return b, nil
}

func (r *RedisBackend) Name() string { return "redis" }

func (r *RedisBackend) Ping(ctx context.Context) error {
	return r.rdb.Ping(ctx).Err()
}

func (r *RedisBackend) Get(ctx context.Context, key string) ([]byte, error) {
	b, err := r.rdb.Get(ctx, r.prefix+key).Bytes()
	if errors.Is(err, redis.Nil) {
		return nil, ErrMiss
	}
	return b, err
}

func (r *RedisBackend) Set(ctx context.Context, key string, value []byte, ttl time.Duration) error {
	return r.rdb.Set(ctx, r.prefix+key, value, ttl).Err()
}

func (r *RedisBackend) Delete(ctx context.Context, key string) (bool, error) {
	n, err := r.rdb.Del(ctx, r.prefix+key).Result()
	if err != nil {
		return false, err
	}
	return n > 0, nil
}

// Close releases the connection pool.
func (r *RedisBackend) Close() error {
	return r.rdb.Close()
}
