// Copyright 2025 AxonFlow
// Licensed under the Apache License, Version 2.0 (the "License");
// you may not use this file except in compliance with the License.
// You may obtain a copy of the License at
//
//     http://www.apache.org/licenses/LICENSE-2.0
//
// Unless required by applicable law or agreed to in writing, software
// distributed under the License is distributed on an "AS IS" BASIS,
// WITHOUT WARRANTIES OR CONDITIONS OF ANY KIND, either express or implied.
// See the License for the specific language governing permissions and
// limitations under the License.

package ratelimit

import (
	"context"
	"fmt"
	"sync/atomic"
	"time"

	"github.com/go-redis/redis/v8"

	"github.com/ddam2015/spp-app-data-hub/shared/logger"
)

// Connect parses redisURL (redis://host:port/db) and pings the server.
func Connect(ctx context.Context, redisURL string) (*redis.Client, error) {
	opts, err := redis.ParseURL(redisURL)
	if err != nil {
		return nil, fmt.Errorf("failed to parse Redis URL: %w", err)
	}

	client := redis.NewClient(opts)

	pingCtx, cancel := context.WithTimeout(ctx, 5*time.Second)
	defer cancel()

	if err := client.Ping(pingCtx).Err(); err != nil {
		_ = client.Close()
		return nil, fmt.Errorf("failed to connect to Redis: %w", err)
	}
	return client, nil
}

// RedisLimiter is a sliding-window limiter kept in one sorted set per key,
// so every gateway replica shares the same count.
type RedisLimiter struct {
	client   *redis.Client
	max      int
	window   time.Duration
	fallback *MemoryLimiter
	logger   *logger.Logger
	now      func() time.Time
	seq      uint64
}

// NewRedisLimiter creates the limiter. A nil client falls back to the
// in-memory window.
func NewRedisLimiter(client *redis.Client, max int, window time.Duration, log *logger.Logger) *RedisLimiter {
	if max <= 0 {
		max = DefaultMax
	}
	if window <= 0 {
		window = DefaultWindow
	}
	if log == nil {
		log = logger.NewNop()
	}
	return &RedisLimiter{
		client:   client,
		max:      max,
		window:   window,
		fallback: NewMemoryLimiter(max, window),
		logger:   log.Named("ratelimit"),
		now:      time.Now,
	}
}

func redisKey(key string) string {
	return "ratelimit:" + key
}

// Allow records the request and reports whether the window still had room.
// Redis errors fail open.
func (r *RedisLimiter) Allow(ctx context.Context, key string) bool {
	if r.client == nil {
		return r.fallback.Allow(ctx, key)
	}

	now := r.now()
	k := redisKey(key)

	pipe := r.client.Pipeline()

	// Drop entries that slid out of the window
	minScore := now.Add(-r.window).UnixMilli()
	pipe.ZRemRangeByScore(ctx, k, "-inf", fmt.Sprintf("%d", minScore))

	card := pipe.ZCard(ctx, k)

	pipe.ZAdd(ctx, k, &redis.Z{
		Score:  float64(now.UnixMilli()),
		Member: fmt.Sprintf("%d-%d", now.UnixNano(), atomic.AddUint64(&r.seq, 1)),
	})

	pipe.Expire(ctx, k, 2*r.window)

	if _, err := pipe.Exec(ctx); err != nil {
		r.logger.Warn("", "", "Redis rate limit check failed (failing open)", map[string]interface{}{
			"key":   key,
			"error": err.Error(),
		})
		return true
	}

	return card.Val() < int64(r.max)
}

// Count returns the number of requests from key inside the current window.
func (r *RedisLimiter) Count(ctx context.Context, key string) (int, error) {
	if r.client == nil {
		count, _ := r.fallback.Status(key)
		return count, nil
	}

	minScore := r.now().Add(-r.window).UnixMilli()
	count, err := r.client.ZCount(ctx, redisKey(key), fmt.Sprintf("(%d", minScore), "+inf").Result()
	if err != nil {
		return 0, fmt.Errorf("failed to get rate limit status: %w", err)
	}
	return int(count), nil
}

// Reset removes all recorded requests for key.
func (r *RedisLimiter) Reset(ctx context.Context, key string) error {
	if r.client == nil {
		r.fallback.mu.Lock()
		delete(r.fallback.entries, key)
		r.fallback.mu.Unlock()
		return nil
	}
	if err := r.client.Del(ctx, redisKey(key)).Err(); err != nil {
		return fmt.Errorf("failed to flush rate limit data: %w", err)
	}
	return nil
}
