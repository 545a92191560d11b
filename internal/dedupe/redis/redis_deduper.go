package redis

import (
	"context"
	"fmt"
	"odinboard/internal/config"
	rdb "odinboard/internal/stores/redis"
	"time"

	"gitlab.com/nevasik7/alerting/logger"
)

type RedisDedupe struct {
	log    logger.Logger
	rdb    *rdb.Client
	ttl    time.Duration
	prefix string
	bloom  *Bloom // optional
}

// Cluster-safe announce dedupe via Redis SETNX + TTL
// prefix example "odinboard:announce:"
func NewRedisDeduper(log logger.Logger, cfg *config.DedupeConfig, rdb *rdb.Client, bloom *Bloom) (*RedisDedupe, error) {
	if cfg == nil {
		return nil, fmt.Errorf("config is required to the redis deduper")
	}
	if rdb == nil {
		return nil, fmt.Errorf("redis client is required to the redis deduper")
	}

	prefix := cfg.Prefix
	if prefix == "" {
		prefix = "announce:"
	}

	ttl := cfg.TTL
	if ttl <= 0 {
		ttl = 24 * time.Hour
	}

	return &RedisDedupe{
		log:    log,
		rdb:    rdb,
		ttl:    ttl,
		prefix: prefix,
		bloom:  bloom,
	}, nil
}

func (d *RedisDedupe) Seen(ctx context.Context, id string) (bool, error) {
	// if bloom exists and says "seen" -> duplicate(economy SETNX)
	if d.bloom != nil {
		if exists, err := d.bloom.Exists(ctx, id); err == nil && exists {
			return true, nil
		}
		// bloom said "not seen" -> continue(SETNX)
	}

	key := d.prefix + id
	ok, err := d.rdb.SetNX(ctx, key, 1, d.ttl).Result()
	if err != nil {
		d.log.Errorf("Redis SetNX error=%v", err)
		return false, fmt.Errorf("redis SetNX error=%v", err)
	}

	seen := !ok                 // ok=true -> new id("not seen"); ok=false -> "seen"
	if !seen && d.bloom != nil { // new item and bloom not nil - add there
		if _, err = d.bloom.Add(ctx, id); err != nil {
			d.log.Errorf("Failed to add bloom id %s, err=%v", id, err)
		}
	}

	return seen, nil
}

func (d *RedisDedupe) Health(ctx context.Context) error {
	return d.rdb.Ping(ctx).Err()
}
