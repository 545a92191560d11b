package dedupe

import (
	"context"
	"sync"
	"time"

	"gitlab.com/nevasik7/alerting/logger"
)

// MemoryDedupe remembers announced token ids in-process. Good enough for a
// single-instance deployment; restarts forget everything, so pair it with a
// warm-start snapshot or use the redis deduper.
type MemoryDedupe struct {
	log logger.Logger
	ttl time.Duration

	mu    sync.RWMutex
	items map[string]time.Time // id -> expiry deadline

	stopOnce sync.Once
	stopCh   chan struct{}
}

// janitorEvery 0 disables the background sweep, expired ids then linger until
// their next Seen call
func NewInMemoryDedupe(log logger.Logger, ttl, janitorEvery time.Duration) *MemoryDedupe {
	m := &MemoryDedupe{
		log:    log,
		ttl:    ttl,
		items:  make(map[string]time.Time, 1024),
		stopCh: make(chan struct{}),
	}

	if janitorEvery > 0 {
		go m.janitor(janitorEvery)
	}
	return m
}

// Seen reports whether id was already announced inside the TTL window and
// marks it either way
func (m *MemoryDedupe) Seen(_ context.Context, id string) (bool, error) {
	now := time.Now()

	m.mu.Lock()
	defer m.mu.Unlock()

	if deadline, ok := m.items[id]; ok && deadline.After(now) {
		return true, nil
	}

	m.items[id] = now.Add(m.ttl)
	m.log.Debugf("Remember announced id=%s", id)
	return false, nil
}

func (m *MemoryDedupe) Health(_ context.Context) error {
	return nil
}

func (m *MemoryDedupe) janitor(every time.Duration) {
	t := time.NewTicker(every)
	defer t.Stop()

	for {
		select {
		case <-m.stopCh:
			return
		case now := <-t.C:
			m.sweep(now)
		}
	}
}

func (m *MemoryDedupe) sweep(now time.Time) {
	m.mu.Lock()
	defer m.mu.Unlock()

	for id, deadline := range m.items {
		if !deadline.After(now) {
			m.log.Debugf("Removing expired item: %s", id)
			delete(m.items, id)
		}
	}
}

func (m *MemoryDedupe) Close() {
	m.stopOnce.Do(func() { close(m.stopCh) })
}
