package cache

import (
	"context"
	"testing"
	"time"

	loggerCfg "gitlab.com/nevasik7/alerting/config"
	"gitlab.com/nevasik7/alerting/logger"
)

func newTestLogger() logger.Logger {
	return logger.New(loggerCfg.LoggerCfg{
		Level:  "error",
		Format: "json",
	})
}

func TestMemoryStore_SetGet(t *testing.T) {
	t.Parallel()

	m := NewMemoryStore(newTestLogger(), 3, time.Hour, 0)
	defer m.Close()

	ctx := context.Background()
	payload := []byte(`{"id":"tok1"}`)

	if err := m.Set(ctx, "token:tok1", payload, time.Minute); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}

	entry, found, err := m.Get(ctx, "token:tok1")
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if !found {
		t.Fatalf("expected entry to be found")
	}
	if string(entry.Payload) != string(payload) {
		t.Fatalf("payload mismatch: got %s", entry.Payload)
	}
	if !entry.FreshAt(time.Now()) {
		t.Fatalf("entry written just now must be fresh")
	}
}

// expired entries stay readable during stale retention; FreshAt says stale
func TestMemoryStore_StaleEntryRetained(t *testing.T) {
	t.Parallel()

	m := NewMemoryStore(newTestLogger(), 3, time.Hour, 0)
	defer m.Close()

	ctx := context.Background()
	ttl := 20 * time.Millisecond
	if err := m.Set(ctx, "k", []byte("v"), ttl); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}

	time.Sleep(ttl + 20*time.Millisecond)

	entry, found, err := m.Get(ctx, "k")
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if !found {
		t.Fatalf("stale entry must survive until retention ends")
	}
	if entry.FreshAt(time.Now()) {
		t.Fatalf("entry past its TTL must not be fresh")
	}
}

func TestMemoryStore_Delete(t *testing.T) {
	t.Parallel()

	m := NewMemoryStore(newTestLogger(), 3, time.Hour, 0)
	defer m.Close()

	ctx := context.Background()
	_ = m.Set(ctx, "k", []byte("v"), time.Minute)

	if err := m.Delete(ctx, "k"); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}

	_, found, _ := m.Get(ctx, "k")
	if found {
		t.Fatalf("deleted entry must be gone")
	}
}

// retention floor is short here so the janitor can evict in test time
func TestMemoryStore_JanitorEvicts(t *testing.T) {
	t.Parallel()

	m := NewMemoryStore(newTestLogger(), 1, 30*time.Millisecond, 15*time.Millisecond)
	defer m.Close()

	ctx := context.Background()
	_ = m.Set(ctx, "k", []byte("v"), 10*time.Millisecond)

	time.Sleep(100 * time.Millisecond)

	m.mu.RLock()
	size := len(m.items)
	m.mu.RUnlock()

	if size != 0 {
		t.Fatalf("expected janitor to evict entries past retention, map size=%d", size)
	}
}

func TestMemoryStore_CloseIsIdempotent(t *testing.T) {
	t.Parallel()

	m := NewMemoryStore(newTestLogger(), 3, time.Hour, 10*time.Millisecond)
	m.Close()
	m.Close()
}
