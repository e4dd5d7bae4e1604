package cache

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/redis/go-redis/v9"
	"go.uber.org/zap"

	"github.com/erp/mfgerp/internal/infrastructure/config"
)

// NewRedisClient connects to Redis and verifies the connection
func NewRedisClient(cfg config.RedisConfig) (*redis.Client, error) {
	client := redis.NewClient(&redis.Options{
		Addr:     cfg.Addr(),
		Password: cfg.Password,
		DB:       cfg.DB,
	})

	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()

	if err := client.Ping(ctx).Err(); err != nil {
		_ = client.Close()
		return nil, fmt.Errorf("failed to connect to Redis: %w", err)
	}
	return client, nil
}

// RedisStore keeps JSON encoded values under a key prefix. It is the L2
// tier shared by all instances.
type RedisStore struct {
	client *redis.Client
	prefix string
	ttl    time.Duration
	logger *zap.Logger
}

// NewRedisStore creates a RedisStore. The caller keeps ownership of client.
func NewRedisStore(client *redis.Client, prefix string, ttl time.Duration, logger *zap.Logger) *RedisStore {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &RedisStore{client: client, prefix: prefix, ttl: ttl, logger: logger}
}

func (s *RedisStore) key(k string) string {
	return s.prefix + k
}

// Get decodes the value under k into dst. It reports false on a miss.
// A corrupted entry is deleted and reported as a miss.
func (s *RedisStore) Get(ctx context.Context, k string, dst any) (bool, error) {
	data, err := s.client.Get(ctx, s.key(k)).Bytes()
	if errors.Is(err, redis.Nil) {
		return false, nil
	}
	if err != nil {
		return false, fmt.Errorf("failed to read %s from cache: %w", k, err)
	}
	if err := json.Unmarshal(data, dst); err != nil {
		s.logger.Warn("Dropping corrupted cache entry", zap.String("key", k), zap.Error(err))
		_ = s.client.Del(ctx, s.key(k))
		return false, nil
	}
	return true, nil
}

// Set stores value under k with the store TTL.
func (s *RedisStore) Set(ctx context.Context, k string, value any) error {
	data, err := json.Marshal(value)
	if err != nil {
		return fmt.Errorf("failed to marshal cache value: %w", err)
	}
	if err := s.client.Set(ctx, s.key(k), data, s.ttl).Err(); err != nil {
		return fmt.Errorf("failed to write %s to cache: %w", k, err)
	}
	return nil
}

// Delete removes k.
func (s *RedisStore) Delete(ctx context.Context, k string) error {
	if err := s.client.Del(ctx, s.key(k)).Err(); err != nil {
		return fmt.Errorf("failed to delete %s from cache: %w", k, err)
	}
	return nil
}
