package redis

import (
	"context"
	"errors"
	"fmt"

	"odinboard/internal/config"
	rdb "odinboard/internal/stores/redis"
)

// Bloom is an optional prefilter in front of the SETNX dedupe. Most polled
// tokens were announced long ago, so asking the filter first keeps the
// per-cycle redis write volume down. A "probably seen" answer is treated as
// a duplicate, which loses an announce once in err_rate cases and never
// duplicates one.
type Bloom struct {
	rdb      *rdb.Client
	Key      string
	Capacity int64
	ErrRate  float64
}

func NewBloom(cfg *config.BloomConfig, rdb *rdb.Client) (*Bloom, error) {
	if cfg == nil {
		return nil, errors.New("bloom config is required to the bloom")
	}
	if rdb == nil {
		return nil, errors.New("redis client is required to the bloom")
	}

	b := &Bloom{
		rdb:      rdb,
		Key:      cfg.Key,
		Capacity: cfg.Capacity,
		ErrRate:  cfg.ErrRate,
	}
	if b.Key == "" {
		b.Key = "announce:bf:tokens"
	}
	if b.Capacity <= 0 {
		b.Capacity = 1_000_000
	}
	if b.ErrRate <= 0 {
		b.ErrRate = 0.001
	}
	return b, nil
}

// Ensure reserves the filter once. Needs the RedisBloom module on the server,
// without it BF.RESERVE comes back as an unknown command.
func (b *Bloom) Ensure(ctx context.Context) error {
	exists, err := b.rdb.Exists(ctx, b.Key).Result()
	if err != nil {
		return fmt.Errorf("failed to check if redis exists to the bloom, error: %w", err)
	}
	if exists > 0 {
		return nil
	}

	if err := b.rdb.Do(ctx, "BF.RESERVE", b.Key, b.ErrRate, b.Capacity).Err(); err != nil {
		return fmt.Errorf("BF.RESERVE failed: %w", err)
	}
	return nil
}

// Add returns true when the item was definitely absent before
func (b *Bloom) Add(ctx context.Context, item string) (bool, error) {
	res := b.rdb.Do(ctx, "BF.ADD", b.Key, item)
	if err := res.Err(); err != nil {
		return false, fmt.Errorf("failed to add item to bloom: %w", err)
	}

	v, err := res.Int()
	return v == 1, err
}

// Exists true means "probably announced already"
func (b *Bloom) Exists(ctx context.Context, item string) (bool, error) {
	res := b.rdb.Do(ctx, "BF.EXISTS", b.Key, item)
	if err := res.Err(); err != nil {
		return false, fmt.Errorf("failed to check if item exists to bloom: %w", err)
	}

	v, err := res.Int()
	return v == 1, err
}
