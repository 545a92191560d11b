package cache

import (
	"context"
	"sync"
	"time"

	"gitlab.com/nevasik7/alerting/logger"
)

type memEntry struct {
	entry   Entry
	evictAt int64 // unix nano, end of stale retention
}

// For dev and single-instance deployments.
// Entries live past their TTL (stale, for upstream-failure fallback) until
// staleFactor*ttl elapses; the janitor evicts them after that.
type MemoryStore struct {
	log          logger.Logger
	staleFactor  int
	minRetention time.Duration
	mu           sync.RWMutex
	items        map[string]memEntry
	stopCh       chan struct{}
	stopped      bool
}

// janitorEvery=0 -> don't run the collector
func NewMemoryStore(log logger.Logger, staleFactor int, minRetention, janitorEvery time.Duration) *MemoryStore {
	if staleFactor <= 0 {
		staleFactor = 10
	}
	if minRetention <= 0 {
		minRetention = time.Hour
	}

	m := &MemoryStore{
		log:          log,
		staleFactor:  staleFactor,
		minRetention: minRetention,
		items:        make(map[string]memEntry, 256),
		stopCh:       make(chan struct{}),
	}

	if janitorEvery > 0 {
		go m.janitor(janitorEvery)
	}

	return m
}

func (m *MemoryStore) Get(_ context.Context, key string) (*Entry, bool, error) {
	now := time.Now().UnixNano()

	m.mu.RLock()
	defer m.mu.RUnlock()

	e, ok := m.items[key]
	if !ok || e.evictAt <= now {
		return nil, false, nil
	}

	cp := e.entry
	return &cp, true, nil
}

func (m *MemoryStore) Set(_ context.Context, key string, payload []byte, ttl time.Duration) error {
	now := time.Now()

	m.mu.Lock()
	defer m.mu.Unlock()

	m.items[key] = memEntry{
		entry: Entry{
			Key:      key,
			Payload:  payload,
			StoredAt: now,
			TTL:      ttl,
		},
		evictAt: now.Add(m.retention(ttl)).UnixNano(),
	}

	m.log.Debugf("Cache set key=%s ttl=%s size=%d", key, ttl, len(payload))
	return nil
}

func (m *MemoryStore) Delete(_ context.Context, key string) error {
	m.mu.Lock()
	delete(m.items, key)
	m.mu.Unlock()
	return nil
}

func (m *MemoryStore) Health(_ context.Context) error {
	return nil
}

func (m *MemoryStore) retention(ttl time.Duration) time.Duration {
	r := ttl * time.Duration(m.staleFactor)
	if r < m.minRetention {
		r = m.minRetention
	}
	return r
}

func (m *MemoryStore) janitor(every time.Duration) {
	t := time.NewTicker(every)
	defer t.Stop()

	for {
		select {
		case <-m.stopCh:
			return
		case <-t.C:
			now := time.Now().UnixNano()
			m.mu.Lock()
			for k, e := range m.items {
				if e.evictAt <= now {
					m.log.Debugf("Evicting expired entry: %s", k)
					delete(m.items, k)
				}
			}
			m.mu.Unlock()
		}
	}
}

// Close garbage collector(if running)
func (m *MemoryStore) Close() {
	m.mu.Lock()
	if !m.stopped {
		close(m.stopCh)
		m.stopped = true
	}
	m.mu.Unlock()
}
