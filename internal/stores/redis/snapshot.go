package redis

import (
	"context"
	"errors"
	"time"

	goredis "github.com/redis/go-redis/v9"
)

// Warm-start snapshot storage for the sync pipeline
type SnapshotStore struct {
	rdb *Client
	key string
	ttl time.Duration
}

func NewSnapshotStore(rdb *Client, key string, ttl time.Duration) *SnapshotStore {
	if key == "" {
		key = "odinboard:feed:snapshot"
	}
	if ttl <= 0 {
		ttl = 24 * time.Hour
	}
	return &SnapshotStore{rdb: rdb, key: key, ttl: ttl}
}

func (s *SnapshotStore) Save(ctx context.Context, data []byte) error {
	return s.rdb.Set(ctx, s.key, data, s.ttl).Err()
}

func (s *SnapshotStore) Load(ctx context.Context) ([]byte, error) {
	data, err := s.rdb.Get(ctx, s.key).Bytes()
	if err != nil {
		if errors.Is(err, goredis.Nil) {
			return nil, nil
		}
		return nil, err
	}
	return data, nil
}
