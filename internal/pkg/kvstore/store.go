// Package kvstore is the persistence contract shared by the capacity tracker
// and the warm-up store: string values, integer counters and key expiry.
//
// Two backends exist. RedisStore is used whenever a Redis URL is configured;
// FileStore keeps everything in process and, when given a path, mirrors it
// to a local JSON file. Neither offers multi-key transactions; every write
// is last-writer-wins per key.
package kvstore

import (
	"context"
	"errors"
	"time"
)

// ErrUnavailable wraps every backend failure so callers can tell an
// unreachable store apart from a capacity denial.
var ErrUnavailable = errors.New("persistence backend unavailable")

// ErrNotInteger is returned by Incr when the stored value is not a counter.
var ErrNotInteger = errors.New("value is not an integer")

// Store is the key-value contract. Missing keys are reported through the
// found flag, never as errors.
type Store interface {
	Get(ctx context.Context, key string) (value string, found bool, err error)
	// Set stores value. A zero ttl keeps the key until it is deleted.
	Set(ctx context.Context, key, value string, ttl time.Duration) error
	Del(ctx context.Context, keys ...string) error
	// Incr adds one to the counter at key, creating it at 0 first.
	Incr(ctx context.Context, key string) (int64, error)
	Expire(ctx context.Context, key string, ttl time.Duration) error
	// Keys lists live keys starting with prefix.
	Keys(ctx context.Context, prefix string) ([]string, error)
}
