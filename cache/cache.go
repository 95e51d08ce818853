package cache

import (
	"context"
	"time"
)

// Cache holds short-lived computed values, currently the per-brand
// analytics snapshots. Implementations must be safe for concurrent use.
type Cache interface {
	Set(ctx context.Context, key, val string, ttl time.Duration) error
	Get(ctx context.Context, key string) (string, error)
}
