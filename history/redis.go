package history

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"

	"github.com/redis/go-redis/v9"
)

// RedisConfig holds the Redis connection settings.
type RedisConfig struct {
	Addr       string
	Password   string
	DB         int
	KeyPrefix  string
	MaxEntries int
}

// RedisStore keeps entries in Redis: a list of ids, newest first, and one
// JSON value per entry.
type RedisStore struct {
	client *redis.Client
	prefix string
	max    int
}

// NewRedisStore connects to Redis and verifies the connection.
func NewRedisStore(ctx context.Context, cfg RedisConfig) (*RedisStore, error) {
	if cfg.Addr == "" {
		cfg.Addr = "localhost:6379"
	}
	if cfg.KeyPrefix == "" {
		cfg.KeyPrefix = "lecturemate:history"
	}
	if cfg.MaxEntries <= 0 {
		cfg.MaxEntries = DefaultMaxEntries
	}

	client := redis.NewClient(&redis.Options{
		Addr:     cfg.Addr,
		Password: cfg.Password,
		DB:       cfg.DB,
	})
	if err := client.Ping(ctx).Err(); err != nil {
		client.Close()
		return nil, fmt.Errorf("failed to connect to Redis: %w", err)
	}

	return &RedisStore{client: client, prefix: cfg.KeyPrefix, max: cfg.MaxEntries}, nil
}

func (s *RedisStore) listKey() string { return s.prefix + ":ids" }
func (s *RedisStore) entryKey(id string) string { return s.prefix + ":entry:" + id }

// Add stores e and drops entries beyond the configured maximum.
func (s *RedisStore) Add(ctx context.Context, e Entry) error {
	data, err := json.Marshal(e)
	if err != nil {
		return fmt.Errorf("encode history entry: %w", err)
	}

	_, err = s.client.TxPipelined(ctx, func(pipe redis.Pipeliner) error {
		pipe.Set(ctx, s.entryKey(e.ID), data, 0)
		pipe.LPush(ctx, s.listKey(), e.ID)
		return nil
	})
	if err != nil {
		return fmt.Errorf("save history entry: %w", err)
	}

	stale, err := s.client.LRange(ctx, s.listKey(), int64(s.max), -1).Result()
	if err != nil || len(stale) == 0 {
		return err
	}
	_, err = s.client.TxPipelined(ctx, func(pipe redis.Pipeliner) error {
		pipe.LTrim(ctx, s.listKey(), 0, int64(s.max-1))
		for _, id := range stale {
			pipe.Del(ctx, s.entryKey(id))
		}
		return nil
	})
	return err
}

// Recent returns up to n entries, newest first; n <= 0 returns all.
func (s *RedisStore) Recent(ctx context.Context, n int) ([]Entry, error) {
	stop := int64(n - 1)
	if n <= 0 {
		stop = -1
	}
	ids, err := s.client.LRange(ctx, s.listKey(), 0, stop).Result()
	if err != nil {
		return nil, fmt.Errorf("list history: %w", err)
	}
	if len(ids) == 0 {
		return []Entry{}, nil
	}

	keys := make([]string, len(ids))
	for i, id := range ids {
		keys[i] = s.entryKey(id)
	}
	values, err := s.client.MGet(ctx, keys...).Result()
	if err != nil {
		return nil, fmt.Errorf("load history: %w", err)
	}

	out := make([]Entry, 0, len(values))
	for _, v := range values {
		str, ok := v.(string)
		if !ok {
			continue
		}
		var e Entry
		if err := json.Unmarshal([]byte(str), &e); err != nil {
			continue
		}
		out = append(out, e)
	}
	return out, nil
}

// Get loads one entry.
func (s *RedisStore) Get(ctx context.Context, id string) (Entry, error) {
	data, err := s.client.Get(ctx, s.entryKey(id)).Bytes()
	if errors.Is(err, redis.Nil) {
		return Entry{}, fmt.Errorf("%w: %s", ErrNotFound, id)
	}
	if err != nil {
		return Entry{}, fmt.Errorf("load history entry: %w", err)
	}
	var e Entry
	if err := json.Unmarshal(data, &e); err != nil {
		return Entry{}, fmt.Errorf("decode history entry: %w", err)
	}
	return e, nil
}

// Close closes the Redis connection.
func (s *RedisStore) Close() error {
	return s.client.Close()
}
