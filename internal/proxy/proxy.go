package proxy

import (
	"context"
	"errors"
	"fmt"
	"odinboard/internal/cache"
	"odinboard/internal/config"
	"odinboard/internal/metrics"
	"time"

	"gitlab.com/nevasik7/alerting/logger"
)

// Named caching policy assigned per resource type
type TTLClass string

const (
	TTLDefault     TTLClass = "default"      // listings, leaderboard inputs
	TTLCreatedSort TTLClass = "created_sort" // /tokens?sort=created_time
	TTLNewest      TTLClass = "newest"       // fast poll window
	TTLOlder       TTLClass = "older"        // slow poll window
	TTLTrades      TTLClass = "trades"       // per-token trade feed
	TTLHolders     TTLClass = "holders"      // holder snapshot
)

type FetchFunc func(ctx context.Context) ([]byte, error)

var (
	ErrNoPayload = errors.New("no cached payload available")
)

// Cache-aside resolver in front of the rate-limited upstream.
// Prefers staleness over unavailability: when the upstream fetch fails and
// any cached payload exists (even expired), the stale payload is returned.
type Proxy struct {
	log   logger.Logger
	store cache.Store
	ttls  map[TTLClass]time.Duration
	now   func() time.Time
}

func New(log logger.Logger, store cache.Store, cfg *config.TTLClassesConfig) (*Proxy, error) {
	if store == nil {
		return nil, errors.New("cache store is required to the proxy")
	}

	ttls := map[TTLClass]time.Duration{
		TTLDefault:     20 * time.Minute,
		TTLCreatedSort: 30 * time.Second,
		TTLNewest:      20 * time.Second,
		TTLOlder:       2 * time.Minute,
		TTLTrades:      30 * time.Second,
		TTLHolders:     60 * time.Second,
	}
	if cfg != nil {
		override(ttls, TTLDefault, cfg.Default)
		override(ttls, TTLCreatedSort, cfg.CreatedSort)
		override(ttls, TTLNewest, cfg.Newest)
		override(ttls, TTLOlder, cfg.Older)
		override(ttls, TTLTrades, cfg.Trades)
		override(ttls, TTLHolders, cfg.Holders)
	}

	return &Proxy{
		log:   log,
		store: store,
		ttls:  ttls,
		now:   time.Now,
	}, nil
}

func override(m map[TTLClass]time.Duration, class TTLClass, d time.Duration) {
	if d > 0 {
		m[class] = d
	}
}

func (p *Proxy) TTL(class TTLClass) time.Duration {
	if d, ok := p.ttls[class]; ok {
		return d
	}
	return p.ttls[TTLDefault]
}

// Resolve is the single read path: cache hit -> cached payload, miss ->
// upstream fetch + store, fetch failure -> stale payload if one exists.
// Cache-store errors are logged and treated as a miss.
func (p *Proxy) Resolve(ctx context.Context, key string, class TTLClass, fetch FetchFunc) ([]byte, error) {
	now := p.now()

	entry, found, err := p.store.Get(ctx, key)
	if err != nil {
		p.log.Errorf("Cache get failed key=%s, error=%v", key, err)
		entry, found = nil, false
	}

	if found && entry.FreshAt(now) {
		p.log.Debugf("Cache hit key=%s class=%s age=%s", key, class, now.Sub(entry.StoredAt))
		metrics.CacheHits.WithLabelValues(string(class)).Inc()
		return entry.Payload, nil
	}

	p.log.Debugf("Cache miss key=%s class=%s", key, class)
	metrics.CacheMisses.WithLabelValues(string(class)).Inc()

	payload, err := fetch(ctx)
	if err != nil {
		metrics.UpstreamErrors.Inc()

		if found {
			// serving stale beats serving an error on a read path
			p.log.Warnf("Upstream failed for key=%s, serving stale payload (age=%s): %v", key, now.Sub(entry.StoredAt), err)
			metrics.CacheStaleServed.WithLabelValues(string(class)).Inc()
			return entry.Payload, nil
		}
		return nil, fmt.Errorf("%w: %v", ErrNoPayload, err)
	}

	if err = p.store.Set(ctx, key, payload, p.TTL(class)); err != nil {
		// store failure must not block the response
		p.log.Errorf("Cache set failed key=%s, error=%v", key, err)
	}

	return payload, nil
}

// Invalidate unconditionally evicts one key. Administrative cache-busting,
// not part of normal operation.
func (p *Proxy) Invalidate(ctx context.Context, key string) error {
	if err := p.store.Delete(ctx, key); err != nil {
		return fmt.Errorf("failed to invalidate key=%s: %w", key, err)
	}
	p.log.Infof("Cache invalidated key=%s", key)
	return nil
}

func (p *Proxy) Health(ctx context.Context) error {
	return p.store.Health(ctx)
}
