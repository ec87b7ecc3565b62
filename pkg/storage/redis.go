package storage

import (
	"context"
	"errors"
	"fmt"
	"strconv"
	"sync"
	"sync/atomic"
	"time"

	"github.com/redis/go-redis/v9"
)

const (
	defaultRedisPoolSize    = 20
	defaultRedisMaxRetries  = 3
	defaultRedisDialTimeout = 5 * time.Second

	redisBreakerPrefix = "tempo:cb:"
)

// Outcomes for a key live in two sorted sets scored by the observation
// instant; the script prunes both to the window and counts atomically.
var redisOutcomeScript = redis.NewScript(`
local fkey = KEYS[1]
local skey = KEYS[2]
local now = tonumber(ARGV[1])
local window = tonumber(ARGV[2])
local member = ARGV[3]
local failure = tonumber(ARGV[4])

redis.call('ZREMRANGEBYSCORE', fkey, '-inf', now - window)
redis.call('ZREMRANGEBYSCORE', skey, '-inf', now - window)

if member ~= '' then
  if failure == 1 then
    redis.call('ZADD', fkey, now, member)
  else
    redis.call('ZADD', skey, now, member)
  end
  redis.call('PEXPIRE', fkey, window)
  redis.call('PEXPIRE', skey, window)
end

return {redis.call('ZCARD', fkey), redis.call('ZCARD', skey)}
`)

// Trip counters are a grow-only per-node hash merged with max-wins.
var redisMergeTripsScript = redis.NewScript(`
local key = KEYS[1]
for i = 1, #ARGV, 2 do
  local node = ARGV[i]
  local n = tonumber(ARGV[i + 1])
  local cur = tonumber(redis.call('HGET', key, node)) or 0
  if n > cur then
    redis.call('HSET', key, node, n)
  end
end
return redis.call('HGETALL', key)
`)

// RedisConfig holds connection settings for the Redis backend.
type RedisConfig struct {
	Host         string        `json:"host"`
	Port         int           `json:"port"`
	Password     string        `json:"password"`
	DB           int           `json:"db"`
	PoolSize     int           `json:"pool_size"`
	MaxRetries   int           `json:"max_retries"`
	DialTimeout  time.Duration `json:"dial_timeout"`
	Cluster      bool          `json:"cluster"`
	ClusterNodes []string      `json:"cluster_nodes"`
}

// RedisStorage is a Redis-backed implementation of Storage, letting
// breaker replicas on different processes share one failure window.
type RedisStorage struct {
	client redis.UniversalClient

	memberSeq atomic.Uint64

	closeOnce sync.Once
	closeErr  error
}

// NewRedisStorage constructs a Redis backend and verifies connectivity.
func NewRedisStorage(cfg *RedisConfig) (*RedisStorage, error) {
	conf, err := normalizeRedisConfig(cfg)
	if err != nil {
		return nil, err
	}

	client := newRedisClient(conf)
	s := &RedisStorage{client: client}

	if err := s.pingWithRetry(context.Background(), conf.MaxRetries); err != nil {
		_ = client.Close()
		return nil, fmt.Errorf("redis ping failed: %w", err)
	}
	return s, nil
}

func (s *RedisStorage) RecordOutcome(ctx context.Context, key string, failure bool, now time.Time, window time.Duration) (Counts, error) {
	member := fmt.Sprintf("%d-%d", now.UnixNano(), s.memberSeq.Add(1))
	return s.runOutcomeScript(ctx, key, member, failure, now, window)
}

func (s *RedisStorage) Counts(ctx context.Context, key string, now time.Time, window time.Duration) (Counts, error) {
	return s.runOutcomeScript(ctx, key, "", false, now, window)
}

func (s *RedisStorage) runOutcomeScript(ctx context.Context, key, member string, failure bool, now time.Time, window time.Duration) (Counts, error) {
	if key == "" {
		return Counts{}, fmt.Errorf("key is required")
	}
	windowMS := window.Milliseconds()
	if windowMS <= 0 {
		return Counts{}, fmt.Errorf("window must be at least 1ms, got %s", window)
	}

	failureArg := 0
	if failure {
		failureArg = 1
	}
	keys := []string{
		redisBreakerPrefix + key + ":f",
		redisBreakerPrefix + key + ":s",
	}
	res, err := redisOutcomeScript.Run(ctx, s.client, keys, now.UnixMilli(), windowMS, member, failureArg).Result()
	if err != nil {
		return Counts{}, fmt.Errorf("running redis outcome script: %w", err)
	}

	values, ok := res.([]interface{})
	if !ok || len(values) != 2 {
		return Counts{}, fmt.Errorf("unexpected redis script result: %T", res)
	}
	failures, err := asInt64(values[0])
	if err != nil {
		return Counts{}, fmt.Errorf("parsing failure count: %w", err)
	}
	successes, err := asInt64(values[1])
	if err != nil {
		return Counts{}, fmt.Errorf("parsing success count: %w", err)
	}
	return Counts{Successes: successes, Failures: failures}, nil
}

func (s *RedisStorage) MergeTrips(ctx context.Context, key string, counts map[string]int64) (map[string]int64, error) {
	if key == "" {
		return nil, fmt.Errorf("key is required")
	}

	args := make([]interface{}, 0, len(counts)*2)
	for node, n := range counts {
		args = append(args, node, n)
	}
	res, err := redisMergeTripsScript.Run(ctx, s.client,
		[]string{redisBreakerPrefix + key + ":trips"}, args...).Result()
	if err != nil {
		return nil, fmt.Errorf("running redis merge script: %w", err)
	}

	values, ok := res.([]interface{})
	if !ok || len(values)%2 != 0 {
		return nil, fmt.Errorf("unexpected redis script result: %T", res)
	}
	merged := make(map[string]int64, len(values)/2)
	for i := 0; i < len(values); i += 2 {
		node, ok := values[i].(string)
		if !ok {
			return nil, fmt.Errorf("unexpected node key type %T", values[i])
		}
		n, err := asInt64(values[i+1])
		if err != nil {
			return nil, fmt.Errorf("parsing trip count for %q: %w", node, err)
		}
		merged[node] = n
	}
	return merged, nil
}

func (s *RedisStorage) Reset(ctx context.Context, key string) error {
	if key == "" {
		return fmt.Errorf("key is required")
	}
	return s.client.Del(ctx,
		redisBreakerPrefix+key+":f",
		redisBreakerPrefix+key+":s",
		redisBreakerPrefix+key+":trips",
	).Err()
}

// Close releases Redis resources. It is idempotent.
func (s *RedisStorage) Close() error {
	s.closeOnce.Do(func() {
		s.closeErr = s.client.Close()
	})
	return s.closeErr
}

func (s *RedisStorage) pingWithRetry(ctx context.Context, maxRetries int) error {
	attempts := maxRetries + 1
	if attempts < 1 {
		attempts = 1
	}

	backoff := 100 * time.Millisecond
	var lastErr error
	for i := 0; i < attempts; i++ {
		if err := s.client.Ping(ctx).Err(); err == nil {
			return nil
		} else {
			lastErr = err
		}

		if i == attempts-1 {
			break
		}
		select {
		case <-ctx.Done():
			return ctx.Err()
		case <-time.After(backoff):
		}
		backoff *= 2
	}

	if lastErr == nil {
		lastErr = errors.New("ping failed with unknown error")
	}
	return lastErr
}

func normalizeRedisConfig(cfg *RedisConfig) (*RedisConfig, error) {
	if cfg == nil {
		return nil, fmt.Errorf("redis config is required")
	}

	conf := *cfg
	if conf.PoolSize <= 0 {
		conf.PoolSize = defaultRedisPoolSize
	}
	if conf.MaxRetries <= 0 {
		conf.MaxRetries = defaultRedisMaxRetries
	}
	if conf.DialTimeout <= 0 {
		conf.DialTimeout = defaultRedisDialTimeout
	}

	if conf.Cluster {
		if len(conf.ClusterNodes) == 0 {
			return nil, fmt.Errorf("cluster_nodes is required when cluster=true")
		}
	} else {
		if conf.Host == "" {
			return nil, fmt.Errorf("host is required when cluster=false")
		}
		if conf.Port <= 0 {
			return nil, fmt.Errorf("port must be positive when cluster=false, got %d", conf.Port)
		}
	}
	return &conf, nil
}

func newRedisClient(cfg *RedisConfig) redis.UniversalClient {
	if cfg.Cluster {
		return redis.NewClusterClient(&redis.ClusterOptions{
			Addrs:       cfg.ClusterNodes,
			Password:    cfg.Password,
			PoolSize:    cfg.PoolSize,
			MaxRetries:  cfg.MaxRetries,
			DialTimeout: cfg.DialTimeout,
		})
	}
	return redis.NewClient(&redis.Options{
		Addr:        fmt.Sprintf("%s:%d", cfg.Host, cfg.Port),
		Password:    cfg.Password,
		DB:          cfg.DB,
		PoolSize:    cfg.PoolSize,
		MaxRetries:  cfg.MaxRetries,
		DialTimeout: cfg.DialTimeout,
	})
}

func asInt64(v interface{}) (int64, error) {
	switch n := v.(type) {
	case int64:
		return n, nil
	case string:
		parsed, err := strconv.ParseInt(n, 10, 64)
		if err != nil {
			return 0, fmt.Errorf("parsing %q as int64: %w", n, err)
		}
		return parsed, nil
	default:
		return 0, fmt.Errorf("unexpected value type %T", v)
	}
}
