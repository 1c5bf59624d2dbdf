package cache

import (
	"context"
	"time"
)

// Cache is the key-value contract the persona listing is cached through.
// Implementations must be safe for concurrent use.
type Cache interface {
	// Get returns ErrMiss when the key is absent.
	Get(ctx context.Context, key string) (string, error)
	// Set stores value with ttl; ttl <= 0 means no expiration.
	Set(ctx context.Context, key string, value string, ttl time.Duration) error
	Del(ctx context.Context, keys ...string) (int64, error)
	// Incr adds one to the integer at key, starting from zero, and returns
	// the new value. The key does not expire.
	Incr(ctx context.Context, key string) (int64, error)
	Ping(ctx context.Context) error
	Close() error
}

// ErrMiss signals a cache miss as opposed to a transport error.
var ErrMiss = errMiss{}

type errMiss struct{}

func (e errMiss) Error() string { return "cache: miss" }

// Noop is used when no Redis is configured. Every Get misses.
type Noop struct{}

var _ Cache = Noop{}

func (Noop) Get(context.Context, string) (string, error)              { return "", ErrMiss }
func (Noop) Set(context.Context, string, string, time.Duration) error { return nil }
func (Noop) Del(context.Context, ...string) (int64, error)            { return 0, nil }
func (Noop) Incr(context.Context, string) (int64, error)              { return 0, nil }
func (Noop) Ping(context.Context) error                               { return nil }
func (Noop) Close() error                                             { return nil }
