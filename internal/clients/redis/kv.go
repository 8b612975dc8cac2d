package redis

import (
	"context"
	"errors"
	"fmt"
	"os"
	"strconv"
	"strings"
	"time"

	goredis "github.com/redis/go-redis/v9"

	"github.com/yungbote/tableside-backend/internal/logger"
)

// KVStore is the key-value surface the notification aggregator needs: plain
// get/set with per-key TTL plus a score-ordered set for the unread index.
// No compare-and-swap is exposed; callers that read-modify-write do so
// best-effort.
type KVStore interface {
	Set(ctx context.Context, key, value string, ttl time.Duration) error
	Get(ctx context.Context, key string) (string, bool, error)
	Delete(ctx context.Context, key string) (bool, error)
	Exists(ctx context.Context, key string) (bool, error)
	ZAdd(ctx context.Context, key, member string, score float64) error
	ZRevRange(ctx context.Context, key string, start, stop int64) ([]string, error)
	ZRem(ctx context.Context, key, member string) error
	Expire(ctx context.Context, key string, ttl time.Duration) error
	Ping(ctx context.Context) error
	Close() error
}

type kvStore struct {
	log *logger.Logger
	rdb *goredis.Client
}

func NewKVStore(log *logger.Logger) (KVStore, error) {
	if log == nil {
		return nil, fmt.Errorf("logger required")
	}

	addr := strings.TrimSpace(os.Getenv("REDIS_ADDR"))
	if addr == "" {
		return nil, fmt.Errorf("missing REDIS_ADDR")
	}
	password := os.Getenv("REDIS_PASSWORD")
	dbNum := 0
	if raw := strings.TrimSpace(os.Getenv("REDIS_DB")); raw != "" {
		if n, err := strconv.Atoi(raw); err == nil {
			dbNum = n
		}
	}

	rdb := goredis.NewClient(&goredis.Options{
		Addr:        addr,
		Password:    password,
		DB:          dbNum,
		DialTimeout: 5 * time.Second,
	})

	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	if err := rdb.Ping(ctx).Err(); err != nil {
		_ = rdb.Close()
		return nil, fmt.Errorf("redis ping: %w", err)
	}

	return &kvStore{
		log: log.With("service", "RedisKVStore"),
		rdb: rdb,
	}, nil
}

func (s *kvStore) Set(ctx context.Context, key, value string, ttl time.Duration) error {
	if s == nil || s.rdb == nil {
		return fmt.Errorf("redis KV store not initialized")
	}
	return s.rdb.Set(ctx, key, value, ttl).Err()
}

func (s *kvStore) Get(ctx context.Context, key string) (string, bool, error) {
	if s == nil || s.rdb == nil {
		return "", false, fmt.Errorf("redis KV store not initialized")
	}
	val, err := s.rdb.Get(ctx, key).Result()
	if errors.Is(err, goredis.Nil) {
		return "", false, nil
	}
	if err != nil {
		return "", false, err
	}
	return val, true, nil
}

func (s *kvStore) Delete(ctx context.Context, key string) (bool, error) {
	if s == nil || s.rdb == nil {
		return false, fmt.Errorf("redis KV store not initialized")
	}
	n, err := s.rdb.Del(ctx, key).Result()
	if err != nil {
		return false, err
	}
	return n > 0, nil
}

func (s *kvStore) Exists(ctx context.Context, key string) (bool, error) {
	if s == nil || s.rdb == nil {
		return false, fmt.Errorf("redis KV store not initialized")
	}
	n, err := s.rdb.Exists(ctx, key).Result()
	if err != nil {
		return false, err
	}
	return n > 0, nil
}

func (s *kvStore) ZAdd(ctx context.Context, key, member string, score float64) error {
	if s == nil || s.rdb == nil {
		return fmt.Errorf("redis KV store not initialized")
	}
	return s.rdb.ZAdd(ctx, key, goredis.Z{Member: member, Score: score}).Err()
}

func (s *kvStore) ZRevRange(ctx context.Context, key string, start, stop int64) ([]string, error) {
	if s == nil || s.rdb == nil {
		return nil, fmt.Errorf("redis KV store not initialized")
	}
	return s.rdb.ZRevRange(ctx, key, start, stop).Result()
}

func (s *kvStore) ZRem(ctx context.Context, key, member string) error {
	if s == nil || s.rdb == nil {
		return fmt.Errorf("redis KV store not initialized")
	}
	return s.rdb.ZRem(ctx, key, member).Err()
}

func (s *kvStore) Expire(ctx context.Context, key string, ttl time.Duration) error {
	if s == nil || s.rdb == nil {
		return fmt.Errorf("redis KV store not initialized")
	}
	return s.rdb.Expire(ctx, key, ttl).Err()
}

func (s *kvStore) Ping(ctx context.Context) error {
	if s == nil || s.rdb == nil {
		return fmt.Errorf("redis KV store not initialized")
	}
	return s.rdb.Ping(ctx).Err()
}

func (s *kvStore) Close() error {
	if s == nil || s.rdb == nil {
		return nil
	}
	return s.rdb.Close()
}
