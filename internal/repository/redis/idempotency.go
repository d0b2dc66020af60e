package redis

import (
	"context"
	"errors"
	"strings"
	"time"

	"github.com/redis/go-redis/v9"
)

const (
	idemLock      = "LOCK"
	idemResPrefix = "RES:"
)

// IdemState is what a caller finds when it claims an idempotency key.
type IdemState int

const (
	// IdemAcquired means the caller owns the key and must run the request.
	IdemAcquired IdemState = iota
	// IdemInProgress means another request with the key is still running.
	IdemInProgress
	// IdemDone means a stored result is available for replay.
	IdemDone
)

type IdempotencyStore struct {
	rdb *redis.Client
	ttl time.Duration
}

func NewIdempotencyStore(rdb *redis.Client, ttl time.Duration) *IdempotencyStore {
	return &IdempotencyStore{rdb: rdb, ttl: ttl}
}

// Begin tries to claim key for lockTTL. When the key is already taken it
// reports whether a result has been saved and returns it.
func (s *IdempotencyStore) Begin(ctx context.Context, key string, lockTTL time.Duration) (IdemState, string, error) {
	ok, err := s.rdb.SetNX(ctx, key, idemLock, lockTTL).Result()
	if err != nil {
		return 0, "", err
	}
	if ok {
		return IdemAcquired, "", nil
	}

	v, err := s.rdb.Get(ctx, key).Result()
	if errors.Is(err, redis.Nil) {
		// Lock expired between SETNX and GET; the caller may retry.
		return IdemInProgress, "", nil
	}
	if err != nil {
		return 0, "", err
	}

	if res, found := strings.CutPrefix(v, idemResPrefix); found {
		return IdemDone, res, nil
	}

	return IdemInProgress, "", nil
}

// SaveResult replaces the lock with the response body for the store TTL.
func (s *IdempotencyStore) SaveResult(ctx context.Context, key string, jsonPayload string) error {
	return s.rdb.Set(ctx, key, idemResPrefix+jsonPayload, s.ttl).Err()
}

// Release drops a lock whose request failed, so the key can be reused.
func (s *IdempotencyStore) Release(ctx context.Context, key string) error {
	return s.rdb.Del(ctx, key).Err()
}
