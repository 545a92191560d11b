package cache

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	rdb "odinboard/internal/stores/redis"
	"time"

	goredis "github.com/redis/go-redis/v9"
	"gitlab.com/nevasik7/alerting/logger"
)

// Envelope written to redis. Payload survives byte-identical (base64 in the
// envelope); the redis key TTL is the stale retention, freshness is decided
// from StoredAt+TTL on read.
type redisEnvelope struct {
	Payload  []byte    `json:"p"`
	StoredAt time.Time `json:"at"`
	TTLMs    int64     `json:"ttl_ms"`
}

// Shared cache-aside store for multi-instance deployments
type RedisStore struct {
	log          logger.Logger
	rdb          *rdb.Client
	prefix       string
	staleFactor  int
	minRetention time.Duration
}

// prefix example "odinboard:cache:"
func NewRedisStore(log logger.Logger, rdb *rdb.Client, prefix string, staleFactor int, minRetention time.Duration) (*RedisStore, error) {
	if rdb == nil {
		return nil, fmt.Errorf("redis client is required to the redis cache store")
	}

	if prefix == "" {
		prefix = "cache:"
	}
	if staleFactor <= 0 {
		staleFactor = 10
	}
	if minRetention <= 0 {
		minRetention = time.Hour
	}

	return &RedisStore{
		log:          log,
		rdb:          rdb,
		prefix:       prefix,
		staleFactor:  staleFactor,
		minRetention: minRetention,
	}, nil
}

func (s *RedisStore) Get(ctx context.Context, key string) (*Entry, bool, error) {
	raw, err := s.rdb.Get(ctx, s.prefix+key).Bytes()
	if err != nil {
		if errors.Is(err, goredis.Nil) {
			return nil, false, nil
		}
		return nil, false, fmt.Errorf("redis GET error=%w", err)
	}

	var env redisEnvelope
	if err = json.Unmarshal(raw, &env); err != nil {
		// corrupted entry is treated as a miss, never blocks the read path
		s.log.Errorf("Failed to decode cache envelope key=%s, error=%v", key, err)
		return nil, false, nil
	}

	return &Entry{
		Key:      key,
		Payload:  env.Payload,
		StoredAt: env.StoredAt,
		TTL:      time.Duration(env.TTLMs) * time.Millisecond,
	}, true, nil
}

func (s *RedisStore) Set(ctx context.Context, key string, payload []byte, ttl time.Duration) error {
	env := redisEnvelope{
		Payload:  payload,
		StoredAt: time.Now().UTC(),
		TTLMs:    ttl.Milliseconds(),
	}

	raw, err := json.Marshal(env)
	if err != nil {
		return fmt.Errorf("failed to encode cache envelope: %w", err)
	}

	retention := ttl * time.Duration(s.staleFactor)
	if retention < s.minRetention {
		retention = s.minRetention
	}

	if err = s.rdb.Set(ctx, s.prefix+key, raw, retention).Err(); err != nil {
		return fmt.Errorf("redis SET error=%w", err)
	}

	s.log.Debugf("Cache set key=%s ttl=%s size=%d", key, ttl, len(payload))
	return nil
}

func (s *RedisStore) Delete(ctx context.Context, key string) error {
	if err := s.rdb.Del(ctx, s.prefix+key).Err(); err != nil {
		return fmt.Errorf("redis DEL error=%w", err)
	}
	return nil
}

func (s *RedisStore) Health(ctx context.Context) error {
	return s.rdb.Ping(ctx).Err()
}
