package history

import (
	"context"
	"encoding/json"
	"fmt"
	"strings"

	"github.com/go-redis/redis/v8"

	"github.com/daemonp/bosch2mqtt/internal/config"
)

// RedisBackend keeps cursors in a hash, one field per panel.
type RedisBackend struct {
	client *redis.Client
	key    string
}

func NewRedisClient(cfg config.RedisConfig) *redis.Client {
	return redis.NewClient(&redis.Options{
		Addr:     cfg.Addr,
		Password: cfg.Password,
		DB:       cfg.DB,
	})
}

func NewRedisBackend(client *redis.Client, key string) *RedisBackend {
	return &RedisBackend{client: client, key: key}
}

// Load skips fields that fail to decode and reports them together as
// ErrCorrupt alongside the fields that did decode.
func (r *RedisBackend) Load(ctx context.Context) (map[string]Cursor, error) {
	fields, err := r.client.HGetAll(ctx, r.key).Result()
	if err != nil {
		return nil, fmt.Errorf("failed to read history from redis: %w", err)
	}

	cursors := make(map[string]Cursor, len(fields))
	var bad []string
	for field, value := range fields {
		var c Cursor
		if err := json.Unmarshal([]byte(value), &c); err != nil {
			bad = append(bad, field)
			continue
		}
		cursors[field] = c
	}
	if len(bad) > 0 {
		return cursors, fmt.Errorf("%w: redis %s fields %s", ErrCorrupt, r.key, strings.Join(bad, ", "))
	}
	return cursors, nil
}

// Save replaces the whole hash in one transaction.
func (r *RedisBackend) Save(ctx context.Context, cursors map[string]Cursor) error {
	values := make(map[string]interface{}, len(cursors))
	for field, c := range cursors {
		data, err := json.Marshal(c)
		if err != nil {
			return fmt.Errorf("failed to marshal history for %s: %w", field, err)
		}
		values[field] = string(data)
	}

	_, err := r.client.TxPipelined(ctx, func(pipe redis.Pipeliner) error {
		pipe.Del(ctx, r.key)
		if len(values) > 0 {
			pipe.HSet(ctx, r.key, values)
		}
		return nil
	})
	if err != nil {
		return fmt.Errorf("failed to write history to redis: %w", err)
	}
	return nil
}
