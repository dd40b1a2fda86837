package redisrepo

import (
	"context"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/redis/go-redis/v9"

	"github.com/kirinyoku/fairtix/internal/clock"
)

// luaSlidingWindow admits a hit when fewer than limit hits were admitted in
// the trailing window. Rejected hits are not recorded.
//
//	KEYS[1] window set
//	ARGV    now_ms, window_ms, limit, member
//
// Returns {admitted, hits_in_window, retry_after_ms}.
const luaSlidingWindow = `
local now, window, limit = tonumber(ARGV[1]), tonumber(ARGV[2]), tonumber(ARGV[3])

redis.call('ZREMRANGEBYSCORE', KEYS[1], '-inf', now - window)
local hits = redis.call('ZCARD', KEYS[1])

if hits >= limit then
  local oldest = redis.call('ZRANGE', KEYS[1], 0, 0, 'WITHSCORES')
  local retry = 0
  if oldest[2] then
    retry = math.max(0, tonumber(oldest[2]) + window - now)
  end
  return {0, hits, retry}
end

redis.call('ZADD', KEYS[1], now, ARGV[4])
redis.call('PEXPIRE', KEYS[1], window)
return {1, hits + 1, 0}
`

var slidingWindowScript = redis.NewScript(luaSlidingWindow)

// SlidingWindowLimiter caps how many purchases one buyer may attempt per
// window across every instance sharing the Redis server.
type SlidingWindowLimiter struct {
	rdb    *redis.Client
	prefix string
	limit  int
	window time.Duration
	clock  clock.Clock
}

func NewSlidingWindowLimiter(
	rdb *redis.Client,
	prefix string,
	limit int,
	window time.Duration,
) *SlidingWindowLimiter {
	return &SlidingWindowLimiter{
		rdb:    rdb,
		prefix: prefix,
		limit:  max(limit, 1),
		window: window,
		clock:  clock.Real(),
	}
}

// WithClock replaces the time source used to score hits.
func (l *SlidingWindowLimiter) WithClock(c clock.Clock) *SlidingWindowLimiter {
	cp := *l
	cp.clock = c
	return &cp
}

// Allow records one hit for subject and reports whether it fits the window.
// A nil limiter allows everything.
//
// Returns:
//   - allowed: whether the hit was admitted.
//   - hits: admitted hits in the current window.
//   - retryAfter: when the oldest hit leaves the window; zero when allowed.
func (l *SlidingWindowLimiter) Allow(ctx context.Context, subject string) (allowed bool, hits int64, retryAfter time.Duration, err error) {
	const op = "redisrepo.SlidingWindowLimiter.Allow"

	if l == nil {
		return true, 0, 0, nil
	}

	res, err := slidingWindowScript.Run(ctx, l.rdb,
		[]string{l.prefix + ":" + subject},
		l.clock.Now().UnixMilli(), l.window.Milliseconds(), l.limit, uuid.NewString(),
	).Int64Slice()
	if err != nil {
		return false, 0, 0, fmt.Errorf("%s:%w", op, err)
	}
	if len(res) != 3 {
		return false, 0, 0, fmt.Errorf("%s: unexpected script reply %v", op, res)
	}

	return res[0] == 1, res[1], time.Duration(res[2]) * time.Millisecond, nil
}
