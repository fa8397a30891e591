// Package cache memoizes built networks and search results with a fixed
// time-to-live. Backend failures are never surfaced to callers: a failing
// backend behaves like an empty cache.
package cache

import (
	"context"
	"time"
)

// Backend stores opaque values with a per-entry TTL.
type Backend interface {
	// Name identifies the backend in logs and metrics.
	Name() string
	// Get returns the value for key. A missing or expired entry is (nil, false, nil).
	Get(ctx context.Context, key string) ([]byte, bool, error)
	// Set stores value under key until ttl elapses.
	Set(ctx context.Context, key string, value []byte, ttl time.Duration) error
	Close() error
}

// noneBackend never stores anything.
type noneBackend struct{}

// NewNoneBackend returns a backend that disables caching.
func NewNoneBackend() Backend { return noneBackend{} }

func (noneBackend) Name() string { return "none" }

func (noneBackend) Get(context.Context, string) ([]byte, bool, error) { return nil, false, nil }

func (noneBackend) Set(context.Context, string, []byte, time.Duration) error { return nil }

func (noneBackend) Close() error { return nil }
