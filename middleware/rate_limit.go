package middleware

import (
	"context"
	"fmt"
	"net/http"
	"strconv"
	"sync"
	"time"

	"firstbit/storage-api/util"

	"github.com/gin-gonic/gin"
	"github.com/redis/go-redis/v9"
	"go.uber.org/zap"
)

// RateLimitResult is one admission decision. Reset is in whole seconds, it
// goes straight into the X-RateLimit-Reset header.
type RateLimitResult struct {
	Allowed   bool
	Remaining int
	Reset     int
}

// RateLimitStore counts requests in a trailing window per key. The whole
// evict-count-insert sequence must be atomic per key: two concurrent
// requests racing for the last slot may not both win.
type RateLimitStore interface {
	Admit(ctx context.Context, key string, limit int, interval time.Duration) (RateLimitResult, error)
}

type RateLimiterConfig struct {
	// Route class, e.g. "upload" or "auth-send-code". Different classes
	// never share a window even for the same principal
	Class    string
	Limit    int
	Interval time.Duration

	// What to do when the counter store is unreachable. Fail-closed (the
	// default) turns a store outage into 429s; fail-open waves everyone
	// through unmetered
	FailOpen bool
}

// slidingWindow is a single atomic script: evict expired timestamps, count
// the window, then either reject with the time until the oldest entry falls
// out or record the request and refresh the key's TTL.
var slidingWindow = redis.NewScript(`
local key = KEYS[1]
local now = tonumber(ARGV[1])
local window = tonumber(ARGV[2])
local limit = tonumber(ARGV[3])

redis.call('ZREMRANGEBYSCORE', key, 0, now - window)

local count = redis.call('ZCARD', key)
if count >= limit then
	local oldest = redis.call('ZRANGE', key, 0, 0, 'WITHSCORES')
	local reset = math.ceil((tonumber(oldest[2]) + window - now) / 1000)
	if reset < 1 then
		reset = 1
	end
	return {0, 0, reset}
end

redis.call('ZADD', key, now, ARGV[4])
redis.call('PEXPIRE', key, window)
return {1, limit - count - 1, math.ceil(window / 1000)}
`)

type RedisRateStore struct {
	R *redis.Client
}

func NewRedisRateStore(r *redis.Client) *RedisRateStore {
	return &RedisRateStore{R: r}
}

func (s *RedisRateStore) Admit(ctx context.Context, key string, limit int, interval time.Duration) (RateLimitResult, error) {
	now := time.Now().UnixMilli()

	// Member must be unique even when two requests land in the same
	// millisecond, otherwise ZADD collapses them into one
	member := fmt.Sprintf("%d-%s", now, util.RandStr(6))

	vals, err := slidingWindow.Run(ctx, s.R,
		[]string{key},
		now, interval.Milliseconds(), limit, member,
	).Int64Slice()
	if err != nil {
		return RateLimitResult{}, err
	}

	return RateLimitResult{
		Allowed:   vals[0] == 1,
		Remaining: int(vals[1]),
		Reset:     int(vals[2]),
	}, nil
}

// MemoryRateStore is the in-process variant for tests and single-instance
// deployments. Same window semantics, one mutex instead of a script.
type MemoryRateStore struct {
	mu   sync.Mutex
	hits map[string][]int64
	now  func() time.Time
}

func NewMemoryRateStore() *MemoryRateStore {
	return &MemoryRateStore{
		hits: make(map[string][]int64),
		now:  time.Now,
	}
}

func (s *MemoryRateStore) Admit(_ context.Context, key string, limit int, interval time.Duration) (RateLimitResult, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	now := s.now().UnixMilli()
	window := interval.Milliseconds()

	kept := s.hits[key][:0]
	for _, ts := range s.hits[key] {
		if ts > now-window {
			kept = append(kept, ts)
		}
	}
	s.hits[key] = kept

	if len(kept) >= limit {
		reset := int((kept[0] + window - now + 999) / 1000)
		if reset < 1 {
			reset = 1
		}
		return RateLimitResult{Allowed: false, Remaining: 0, Reset: reset}, nil
	}

	s.hits[key] = append(kept, now)

	return RateLimitResult{
		Allowed:   true,
		Remaining: limit - len(kept) - 1,
		Reset:     int(interval.Seconds()),
	}, nil
}

// RateLimitKey builds the counter key for a (class, principal) pair.
func RateLimitKey(class, principal string) string {
	return fmt.Sprintf("rate_limit:%s:%s", class, principal)
}

// Admit runs one admission check and writes the X-RateLimit-* headers. It
// returns false after rendering the 429 (or the fail-closed 429 on store
// errors), so callers just bail out.
func Admit(c *gin.Context, store RateLimitStore, cfg RateLimiterConfig, principal string) bool {
	res, err := store.Admit(c.Request.Context(), RateLimitKey(cfg.Class, principal), cfg.Limit, cfg.Interval)
	if err != nil {
		zap.L().Error("Rate limit store unreachable",
			zap.String("class", cfg.Class),
			zap.Bool("failOpen", cfg.FailOpen),
			zap.Error(err))

		if cfg.FailOpen {
			return true
		}

		c.Header("X-RateLimit-Limit", strconv.Itoa(cfg.Limit))
		c.Header("X-RateLimit-Remaining", "0")
		c.Header("X-RateLimit-Reset", strconv.Itoa(int(cfg.Interval.Seconds())))
		c.AbortWithStatusJSON(http.StatusTooManyRequests, gin.H{
			"error": "Too many requests",
		})
		return false
	}

	c.Header("X-RateLimit-Limit", strconv.Itoa(cfg.Limit))
	c.Header("X-RateLimit-Remaining", strconv.Itoa(res.Remaining))
	c.Header("X-RateLimit-Reset", strconv.Itoa(res.Reset))

	if !res.Allowed {
		c.AbortWithStatusJSON(http.StatusTooManyRequests, gin.H{
			"error":   "Too many requests",
			"message": fmt.Sprintf("Rate limit exceeded. Try again in %d seconds.", res.Reset),
			"reset":   res.Reset,
		})
		return false
	}

	return true
}

// RateLimiterMiddleware gates one route class. The principal is the
// authenticated user when there is one and the client IP otherwise.
func RateLimiterMiddleware(store RateLimitStore, cfg RateLimiterConfig) gin.HandlerFunc {
	return func(c *gin.Context) {
		principal := c.GetString("userID")
		if principal == "" {
			principal = c.ClientIP()
		}

		if !Admit(c, store, cfg, principal) {
			return
		}

		c.Next()
	}
}
