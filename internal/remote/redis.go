package remote

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/redis/go-redis/v9"

	"github.com/hyperengineering/lifexp/internal/config"
	"github.com/hyperengineering/lifexp/internal/types"
)

// Redis keeps each user's snapshot as a JSON string under
// {prefix}:snapshot:{user_id}.
type Redis struct {
	client *redis.Client
	prefix string
}

// NewRedis creates a Redis remote from configuration. The connection is
// established lazily by the first command.
func NewRedis(cfg config.RedisConfig) *Redis {
	rdb := redis.NewClient(&redis.Options{
		Addr:         cfg.Addr,
		Password:     cfg.Password,
		DB:           cfg.DB,
		DialTimeout:  10 * time.Second,
		ReadTimeout:  30 * time.Second,
		WriteTimeout: 30 * time.Second,
	})
	return NewRedisWithClient(rdb, cfg.KeyPrefix)
}

// NewRedisWithClient wraps an existing client.
func NewRedisWithClient(rdb *redis.Client, prefix string) *Redis {
	if prefix == "" {
		prefix = "lifexp"
	}
	return &Redis{client: rdb, prefix: prefix}
}

// Pull reads the user's snapshot.
func (r *Redis) Pull(ctx context.Context, userID string) (*types.RemoteSnapshot, error) {
	data, err := r.client.Get(ctx, r.key(userID)).Bytes()
	if errors.Is(err, redis.Nil) {
		return nil, ErrNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("failed to get snapshot: %w", err)
	}
	return decode(data)
}

// Push overwrites the user's snapshot. Snapshots never expire.
func (r *Redis) Push(ctx context.Context, userID string, snap *types.RemoteSnapshot) error {
	data, err := encode(snap)
	if err != nil {
		return err
	}
	if err := r.client.Set(ctx, r.key(userID), data, 0).Err(); err != nil {
		return fmt.Errorf("failed to set snapshot: %w", err)
	}
	return nil
}

// Close releases the connection pool.
func (r *Redis) Close() error {
	return r.client.Close()
}

func (r *Redis) key(userID string) string {
	return fmt.Sprintf("%s:snapshot:%s", r.prefix, userID)
}
