package cache

import (
	"context"
	"time"
)

// One cached upstream payload. An entry past StoredAt+TTL is stale: never
// served as a hit, but kept around (up to the store's retention) so the
// proxy can fall back to it when the upstream is down.
type Entry struct {
	Key      string
	Payload  []byte
	StoredAt time.Time
	TTL      time.Duration
}

func (e *Entry) FreshAt(now time.Time) bool {
	return now.Before(e.StoredAt.Add(e.TTL))
}

// General contract cache-aside store (memory, redis, etc.)
// Get returns the entry even when stale; ok=false only when the key is
// unknown or already evicted past retention.
type Store interface {
	Get(ctx context.Context, key string) (entry *Entry, ok bool, err error)
	Set(ctx context.Context, key string, payload []byte, ttl time.Duration) error
	Delete(ctx context.Context, key string) error
	Health(ctx context.Context) error
}
