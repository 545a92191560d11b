package proxy

import (
	"context"
	"errors"
	"odinboard/internal/cache"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	loggerCfg "gitlab.com/nevasik7/alerting/config"
	"gitlab.com/nevasik7/alerting/logger"
)

func newTestLogger() logger.Logger {
	return logger.New(loggerCfg.LoggerCfg{
		Level:  "error",
		Format: "json",
	})
}

func newTestProxy(t *testing.T) (*Proxy, *cache.MemoryStore) {
	t.Helper()

	store := cache.NewMemoryStore(newTestLogger(), 3, time.Hour, 0)
	t.Cleanup(store.Close)

	p, err := New(newTestLogger(), store, nil)
	require.NoError(t, err)
	return p, store
}

type countingFetch struct {
	calls   int
	payload []byte
	err     error
}

func (f *countingFetch) fetch(_ context.Context) ([]byte, error) {
	f.calls++
	if f.err != nil {
		return nil, f.err
	}
	return f.payload, nil
}

// a second resolve for the same key is served from cache, byte-identical,
// without touching the upstream again
func TestProxy_CacheRoundTrip(t *testing.T) {
	t.Parallel()

	p, _ := newTestProxy(t)
	f := &countingFetch{payload: []byte(`{"id":"tok1"}`)}

	ctx := context.Background()
	first, err := p.Resolve(ctx, TokenKey("tok1"), TTLDefault, f.fetch)
	require.NoError(t, err)

	second, err := p.Resolve(ctx, TokenKey("tok1"), TTLDefault, f.fetch)
	require.NoError(t, err)

	assert.Equal(t, 1, f.calls, "second resolve must not hit the upstream")
	assert.Equal(t, first, second)
}

// entry written at T with TTL d is a miss at T+d+eps
func TestProxy_TTLExpiry(t *testing.T) {
	t.Parallel()

	p, _ := newTestProxy(t)
	f := &countingFetch{payload: []byte(`[]`)}

	ctx := context.Background()
	_, err := p.Resolve(ctx, NewestTokensKey(), TTLNewest, f.fetch)
	require.NoError(t, err)
	require.Equal(t, 1, f.calls)

	// move the proxy clock past the newest-class TTL
	p.now = func() time.Time { return time.Now().Add(p.TTL(TTLNewest) + time.Second) }

	_, err = p.Resolve(ctx, NewestTokensKey(), TTLNewest, f.fetch)
	require.NoError(t, err)
	assert.Equal(t, 2, f.calls, "expired entry must refetch")
}

// upstream down, cache entry expired: stale payload is still served
func TestProxy_StaleFallback(t *testing.T) {
	t.Parallel()

	p, _ := newTestProxy(t)
	payload := []byte(`{"id":"tok1","price":500}`)
	f := &countingFetch{payload: payload}

	ctx := context.Background()
	_, err := p.Resolve(ctx, TokenKey("tok1"), TTLTrades, f.fetch)
	require.NoError(t, err)

	// expire the entry, then kill the upstream
	p.now = func() time.Time { return time.Now().Add(time.Hour) }
	f.err = errors.New("upstream down")

	got, err := p.Resolve(ctx, TokenKey("tok1"), TTLTrades, f.fetch)
	require.NoError(t, err, "stale payload beats an error")
	assert.Equal(t, payload, got)
}

// no cached payload at all -> the fetch error surfaces
func TestProxy_NoPayloadError(t *testing.T) {
	t.Parallel()

	p, _ := newTestProxy(t)
	f := &countingFetch{err: errors.New("upstream down")}

	_, err := p.Resolve(context.Background(), TokenKey("missing"), TTLDefault, f.fetch)
	require.Error(t, err)
	assert.ErrorIs(t, err, ErrNoPayload)
}

func TestProxy_Invalidate(t *testing.T) {
	t.Parallel()

	p, _ := newTestProxy(t)
	f := &countingFetch{payload: []byte(`{}`)}

	ctx := context.Background()
	_, err := p.Resolve(ctx, UserKey("alice"), TTLDefault, f.fetch)
	require.NoError(t, err)

	require.NoError(t, p.Invalidate(ctx, UserKey("alice")))

	_, err = p.Resolve(ctx, UserKey("alice"), TTLDefault, f.fetch)
	require.NoError(t, err)
	assert.Equal(t, 2, f.calls, "invalidated key must refetch")
}

func TestProxy_TTLOverrides(t *testing.T) {
	t.Parallel()

	p, _ := newTestProxy(t)

	assert.Equal(t, 20*time.Minute, p.TTL(TTLDefault))
	assert.Equal(t, 20*time.Second, p.TTL(TTLNewest))
	assert.Equal(t, 2*time.Minute, p.TTL(TTLOlder))
	assert.Equal(t, p.TTL(TTLDefault), p.TTL(TTLClass("unknown")), "unknown class falls back to default")
}
