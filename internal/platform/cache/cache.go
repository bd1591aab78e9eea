// Package cache holds small string caches used for terminology lookups.
package cache

import (
	"context"
	"time"
)

// Cache stores string values under string keys with a time to live.
// A miss is reported with ok=false and a nil error.
type Cache interface {
	Get(ctx context.Context, key string) (value string, ok bool, err error)
	Set(ctx context.Context, key, value string, ttl time.Duration) error
	Delete(ctx context.Context, key string) error
}
