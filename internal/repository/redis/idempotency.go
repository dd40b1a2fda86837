package redisrepo

import (
	"context"
	"errors"
	"fmt"
	"strconv"
	"strings"
	"time"

	"github.com/redis/go-redis/v9"
)

const (
	idemLock      = "LOCK"
	idemResPrefix = "RES:"
)

type ClaimState int

const (
	// ClaimAcquired: the caller owns the key and must Complete or Abandon it.
	ClaimAcquired ClaimState = iota
	// ClaimReplay: a previous request finished; Status and Body hold its response.
	ClaimReplay
	// ClaimBusy: another request with the same key is still running.
	ClaimBusy
)

type Claim struct {
	State  ClaimState
	Status int
	Body   []byte
}

// IdempotencyStore remembers the response of a keyed request so a retried
// request replays it instead of executing twice. A nil store grants every
// claim and remembers nothing.
type IdempotencyStore struct {
	rdb *redis.Client
	ttl time.Duration
}

func NewIdempotencyStore(rdb *redis.Client, ttl time.Duration) *IdempotencyStore {
	return &IdempotencyStore{rdb: rdb, ttl: ttl}
}

// Claim takes ownership of key for lockTTL unless a response is already
// stored or another request holds it.
func (s *IdempotencyStore) Claim(ctx context.Context, key string, lockTTL time.Duration) (Claim, error) {
	const op = "redisrepo.IdempotencyStore.Claim"

	if s == nil {
		return Claim{State: ClaimAcquired}, nil
	}

	if c, ok, err := s.stored(ctx, key); err != nil || ok {
		return c, wrapOp(op, err)
	}

	acquired, err := s.rdb.SetNX(ctx, key, idemLock, lockTTL).Result()
	if err != nil {
		return Claim{}, fmt.Errorf("%s:%w", op, err)
	}
	if acquired {
		return Claim{State: ClaimAcquired}, nil
	}

	// Lost the race: the holder may have finished in between.
	if c, ok, err := s.stored(ctx, key); err != nil || ok {
		return c, wrapOp(op, err)
	}

	return Claim{State: ClaimBusy}, nil
}

// Complete stores the response of a claimed key for the store TTL.
func (s *IdempotencyStore) Complete(ctx context.Context, key string, status int, body []byte) error {
	if s == nil {
		return nil
	}
	v := idemResPrefix + strconv.Itoa(status) + ":" + string(body)
	return s.rdb.Set(ctx, key, v, s.ttl).Err()
}

// Abandon releases a claimed key so the request may be retried.
func (s *IdempotencyStore) Abandon(ctx context.Context, key string) error {
	if s == nil {
		return nil
	}
	return s.rdb.Del(ctx, key).Err()
}

func (s *IdempotencyStore) stored(ctx context.Context, key string) (Claim, bool, error) {
	v, err := s.rdb.Get(ctx, key).Result()
	if errors.Is(err, redis.Nil) {
		return Claim{}, false, nil
	}
	if err != nil {
		return Claim{}, false, err
	}

	rest, ok := strings.CutPrefix(v, idemResPrefix)
	if !ok {
		return Claim{}, false, nil
	}
	code, body, ok := strings.Cut(rest, ":")
	if !ok {
		return Claim{}, false, fmt.Errorf("malformed stored response under %q", key)
	}
	status, err := strconv.Atoi(code)
	if err != nil {
		return Claim{}, false, fmt.Errorf("malformed stored status under %q: %w", key, err)
	}

	return Claim{State: ClaimReplay, Status: status, Body: []byte(body)}, true, nil
}

func wrapOp(op string, err error) error {
	if err == nil {
		return nil
	}
	return fmt.Errorf("%s:%w", op, err)
}
