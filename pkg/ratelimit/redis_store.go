package ratelimit

import (
	"context"
	"fmt"
	"strconv"
	"time"

	"github.com/redis/go-redis/v9"
)

// RedisStore keeps attempt timestamps in a Redis sorted set scored by unix
// milliseconds. It lets multiple service instances share one window when the
// best-effort in-memory store is not enough.
type RedisStore struct {
	client    redis.UniversalClient
	keyPrefix string
}

// NewRedisStore creates a store over an existing Redis client.
func NewRedisStore(client redis.UniversalClient) *RedisStore {
	return &RedisStore{client: client, keyPrefix: "ratelimit:"}
}

// recordScript prunes expired members, checks the count against the limit and
// records the attempt, all server-side so check-and-record stays atomic.
var recordScript = redis.NewScript(`
redis.call('ZREMRANGEBYSCORE', KEYS[1], 0, ARGV[1])
if redis.call('ZCARD', KEYS[1]) >= tonumber(ARGV[2]) then
  return 0
end
redis.call('ZADD', KEYS[1], ARGV[3], ARGV[4])
redis.call('PEXPIRE', KEYS[1], ARGV[5])
return 1
`)

func (s *RedisStore) RecordIfAllowed(ctx context.Context, key string, ts time.Time, window time.Duration, limit int) (bool, error) {
	cutoff := ts.Add(-window).UnixMilli()
	member := strconv.FormatInt(ts.UnixNano(), 10)

	res, err := recordScript.Run(ctx, s.client, []string{s.keyPrefix + key},
		cutoff, limit, ts.UnixMilli(), member, window.Milliseconds(),
	).Int()
	if err != nil {
		return false, fmt.Errorf("ratelimit: record attempt: %w", err)
	}
	return res == 1, nil
}

func (s *RedisStore) Oldest(ctx context.Context, key string, now time.Time, window time.Duration) (time.Time, bool, error) {
	redisKey := s.keyPrefix + key
	cutoff := now.Add(-window).UnixMilli()

	if err := s.client.ZRemRangeByScore(ctx, redisKey, "0", strconv.FormatInt(cutoff, 10)).Err(); err != nil {
		return time.Time{}, false, fmt.Errorf("ratelimit: prune window: %w", err)
	}

	entries, err := s.client.ZRangeWithScores(ctx, redisKey, 0, 0).Result()
	if err != nil {
		return time.Time{}, false, fmt.Errorf("ratelimit: read oldest attempt: %w", err)
	}
	if len(entries) == 0 {
		return time.Time{}, false, nil
	}
	return time.UnixMilli(int64(entries[0].Score)), true, nil
}

func (s *RedisStore) Delete(ctx context.Context, key string) error {
	if err := s.client.Del(ctx, s.keyPrefix+key).Err(); err != nil {
		return fmt.Errorf("ratelimit: delete key: %w", err)
	}
	return nil
}
