package feed

import (
	"context"
	"fmt"
	"odinboard/internal/dedupe"
	"odinboard/internal/domain"
	"odinboard/internal/metrics"
	"odinboard/internal/proxy"
	"odinboard/internal/pubsub"
	"odinboard/internal/score"
	"odinboard/internal/stores/clickhouse"
	"odinboard/internal/upstream"
	"sync"
	"sync/atomic"
	"time"

	"gitlab.com/nevasik7/alerting/logger"
)

const subjectNewToken = "tokens.new"

// Committed merged state, read by the ranking layer and the API
type View struct {
	CycleSeq    uint64                    `json:"cycle_seq"`
	MergedAt    time.Time                 `json:"merged_at"`
	Tokens      []domain.TokenWithCreator `json:"tokens"`
	NewTokenIDs []string                  `json:"new_token_ids"`
}

// Score history sink (clickhouse writer); optional
type ScoreSink interface {
	Enqueue(row clickhouse.CreatorScoreRow) error
}

type Options struct {
	NewestInterval   time.Duration
	OlderInterval    time.Duration
	OlderLimit       int
	HighlightTTL     time.Duration
	MaxConcurrent    int
	SnapshotInterval time.Duration
}

func (o *Options) withDefaults() {
	if o.NewestInterval <= 0 {
		o.NewestInterval = 12 * time.Second
	}
	if o.OlderInterval <= 0 {
		o.OlderInterval = 50 * time.Second
	}
	if o.OlderLimit <= 0 {
		o.OlderLimit = 20
	}
	if o.HighlightTTL <= 0 {
		o.HighlightTTL = 3 * time.Second
	}
	if o.MaxConcurrent <= 0 {
		o.MaxConcurrent = 8
	}
}

/*
	Incremental sync over two overlapping poll windows.
	Both loops run the same merge cycle; the proxy's TTL classes make the
	other window a cache hit most of the time, so the effective upstream
	cadence stays the configured one per window.
*/

type Pipeline struct {
	log      logger.Logger
	proxy    *proxy.Proxy
	up       *upstream.Client
	resolver *CreatorResolver
	creators *CreatorCache
	rule     score.ActivityRule

	deduper     dedupe.Deduper     // optional
	broadcaster pubsub.Broadcaster // optional
	sink        ScoreSink          // optional
	snapshots   SnapshotStore      // optional

	opts Options
	now  func() time.Time

	seq   atomic.Uint64
	force atomic.Bool

	mu     sync.Mutex
	state  View
	primed bool // at least one committed cycle or restored snapshot

	highlightMu    sync.Mutex
	highlightTimer *time.Timer

	startOnce sync.Once
	stopOnce  sync.Once
	stopCh    chan struct{}
	wg        sync.WaitGroup
}

func NewPipeline(
	log logger.Logger,
	p *proxy.Proxy,
	up *upstream.Client,
	resolver *CreatorResolver,
	creators *CreatorCache,
	opts Options,
) *Pipeline {
	opts.withDefaults()

	return &Pipeline{
		log:      log,
		proxy:    p,
		up:       up,
		resolver: resolver,
		creators: creators,
		rule:     resolver.engine.Rule(),
		opts:     opts,
		now:      time.Now,
		stopCh:   make(chan struct{}),
	}
}

// Optional collaborators; call before Start
func (p *Pipeline) WithDeduper(d dedupe.Deduper)         { p.deduper = d }
func (p *Pipeline) WithBroadcaster(b pubsub.Broadcaster) { p.broadcaster = b }
func (p *Pipeline) WithScoreSink(s ScoreSink)            { p.sink = s }
func (p *Pipeline) WithSnapshotStore(s SnapshotStore)    { p.snapshots = s }

// Start launches both poll loops (and the snapshot loop when configured).
// Explicitly owned by the pipeline lifecycle, not ambient process timers.
func (p *Pipeline) Start(ctx context.Context) {
	p.startOnce.Do(func() {
		if p.snapshots != nil {
			if err := p.restoreSnapshot(ctx); err != nil {
				p.log.Warnf("Warm-start restore failed, starting cold: %v", err)
			}
		}

		p.wg.Add(1)
		go p.pollLoop(p.opts.NewestInterval, "newest")

		p.wg.Add(1)
		go p.pollLoop(p.opts.OlderInterval, "older")

		if p.snapshots != nil && p.opts.SnapshotInterval > 0 {
			p.wg.Add(1)
			go p.snapshotLoop(p.opts.SnapshotInterval)
		}

		p.log.Infof("Sync pipeline started: newest every %s, older every %s", p.opts.NewestInterval, p.opts.OlderInterval)
	})
}

func (p *Pipeline) Stop(ctx context.Context) error {
	p.stopOnce.Do(func() {
		close(p.stopCh)
	})

	done := make(chan struct{})
	go func() {
		p.wg.Wait()
		close(done)
	}()

	select {
	case <-done:
	case <-ctx.Done():
		return ctx.Err()
	}

	if p.snapshots != nil {
		if err := p.saveSnapshot(ctx); err != nil {
			p.log.Errorf("Final snapshot failed: %v", err)
		}
	}

	p.log.Info("Sync pipeline stopped")
	return nil
}

// ForceRefresh makes the next cycle recompute every creator from scratch
func (p *Pipeline) ForceRefresh() {
	p.force.Store(true)
}

// View returns a copy of the committed state
func (p *Pipeline) View() View {
	p.mu.Lock()
	defer p.mu.Unlock()

	v := View{
		CycleSeq: p.state.CycleSeq,
		MergedAt: p.state.MergedAt,
	}
	v.Tokens = append(v.Tokens, p.state.Tokens...)
	v.NewTokenIDs = append(v.NewTokenIDs, p.state.NewTokenIDs...)
	return v
}

func (p *Pipeline) pollLoop(interval time.Duration, name string) {
	defer p.wg.Done()

	// immediate first cycle, then the ticker cadence
	t := time.NewTicker(interval)
	defer t.Stop()

	p.cycle(name)

	for {
		select {
		case <-p.stopCh:
			return
		case <-t.C:
			p.cycle(name)
		}
	}
}

func (p *Pipeline) cycle(name string) {
	ctx, cancel := context.WithTimeout(context.Background(), 45*time.Second)
	defer cancel()

	if err := p.runCycle(ctx); err != nil {
		p.log.Errorf("Merge cycle (%s loop) failed: %v", name, err)
	}
}

// runCycle is one atomic merge: read old state, compute new state, commit.
// Superseded cycles are not cancelled; their result is discarded at commit
// when a newer cycle already won (last-committed-wins by sequence number).
func (p *Pipeline) runCycle(ctx context.Context) error {
	seq := p.seq.Add(1)
	force := p.force.Swap(false)
	now := p.now()

	newestRaw, err := p.proxy.Resolve(ctx, proxy.NewestTokensKey(), proxy.TTLNewest,
		func(ctx context.Context) ([]byte, error) { return p.up.NewestTokens(ctx) })
	if err != nil {
		return fmt.Errorf("newest window fetch failed: %w", err)
	}

	olderRaw, err := p.proxy.Resolve(ctx, proxy.OlderRecentTokensKey(p.opts.OlderLimit), proxy.TTLOlder,
		func(ctx context.Context) ([]byte, error) { return p.up.OlderRecentTokens(ctx, p.opts.OlderLimit) })
	if err != nil {
		return fmt.Errorf("older window fetch failed: %w", err)
	}

	newest, err := upstream.DecodeTokens(newestRaw)
	if err != nil {
		return fmt.Errorf("newest window decode failed: %w", err)
	}
	older, err := upstream.DecodeTokens(olderRaw)
	if err != nil {
		return fmt.Errorf("older window decode failed: %w", err)
	}

	score.EnrichAll(newest, now, p.rule)
	score.EnrichAll(older, now, p.rule)

	var prevIDs map[string]struct{}
	p.mu.Lock()
	if p.primed {
		prevIDs = make(map[string]struct{}, len(p.state.Tokens))
		for i := range p.state.Tokens {
			prevIDs[p.state.Tokens[i].Token.ID] = struct{}{}
		}
	}
	p.mu.Unlock()

	res := Merge(prevIDs, newest, older)

	if force {
		p.creators.Purge()
	} else {
		p.creators.InvalidateSet(res.Touched)
	}

	resolved := p.resolveCreators(ctx, res.Tokens)

	joined := make([]domain.TokenWithCreator, len(res.Tokens))
	for i, t := range res.Tokens {
		joined[i] = domain.TokenWithCreator{
			Token:   t,
			Creator: resolved[t.Creator],
		}
	}
	reconcile(joined)

	// commit: last-committed-wins, not completion order
	p.mu.Lock()
	if p.primed && p.state.CycleSeq > seq {
		p.mu.Unlock()
		p.log.Debugf("Discarding stale cycle seq=%d, committed=%d", seq, p.state.CycleSeq)
		metrics.SyncCyclesDiscarded.Inc()
		return nil
	}
	p.state = View{
		CycleSeq:    seq,
		MergedAt:    now,
		Tokens:      joined,
		NewTokenIDs: res.NewIDs,
	}
	p.primed = true
	p.mu.Unlock()

	metrics.SyncCycles.Inc()
	metrics.SyncNewTokens.Add(float64(len(res.NewIDs)))

	if len(res.NewIDs) > 0 {
		p.log.Infof("Cycle %d committed: %d tokens, %d new", seq, len(joined), len(res.NewIDs))
		p.announce(ctx, res.NewIDs, joined)
	} else {
		p.log.Debugf("Cycle %d committed: %d tokens, no arrivals", seq, len(joined))
	}

	p.scheduleHighlightClear(seq)
	p.recordHistory(seq, now, resolved)

	return nil
}

// resolveCreators fills principal -> record with at-most-one in-flight
// aggregation per creator per cycle. Failures leave a nil record: the
// token stays in the merged list with a "no data" creator.
func (p *Pipeline) resolveCreators(ctx context.Context, tokens []domain.Token) map[string]*domain.CreatorPerformance {
	resolved := make(map[string]*domain.CreatorPerformance, len(tokens))

	var principals []string
	for _, t := range tokens {
		if _, dup := resolved[t.Creator]; dup {
			continue
		}
		resolved[t.Creator] = nil
		principals = append(principals, t.Creator)
	}

	var (
		wg    sync.WaitGroup
		resMu sync.Mutex
		sem   = make(chan struct{}, p.opts.MaxConcurrent)
	)

	for _, principal := range principals {
		if cached, ok := p.creators.Get(principal); ok {
			resMu.Lock()
			resolved[principal] = cached
			resMu.Unlock()
			metrics.CreatorsReused.Inc()
			continue
		}

		wg.Add(1)
		go func(principal string) {
			defer wg.Done()

			sem <- struct{}{}
			defer func() { <-sem }()

			perf, err := p.resolver.Resolve(ctx, principal)
			if err != nil {
				p.log.Warnf("Creator resolution failed for %s: %v", principal, err)
				return
			}
			if perf == nil {
				return
			}

			p.creators.Put(principal, perf)
			metrics.CreatorsAggregated.Inc()

			resMu.Lock()
			resolved[principal] = perf
			resMu.Unlock()
		}(principal)
	}

	wg.Wait()
	return resolved
}

// reconcile keeps one creator from showing divergent records across cards:
// for principals appearing more than once, the occurrence with the most
// complete token list wins and propagates to every occurrence.
func reconcile(joined []domain.TokenWithCreator) {
	best := make(map[string]*domain.CreatorPerformance)

	for i := range joined {
		perf := joined[i].Creator
		if perf == nil {
			continue
		}
		cur, ok := best[perf.Principal]
		if !ok || len(perf.Tokens) > len(cur.Tokens) {
			best[perf.Principal] = perf
		}
	}

	for i := range joined {
		if b, ok := best[joined[i].Token.Creator]; ok {
			joined[i].Creator = b
		}
	}
}

// announce publishes each truly new token once, surviving restarts via the
// deduper. Broadcast errors are not critical, subscribers catch up on the
// next cycle.
func (p *Pipeline) announce(ctx context.Context, newIDs []string, joined []domain.TokenWithCreator) {
	if p.broadcaster == nil {
		return
	}

	byID := make(map[string]domain.TokenWithCreator, len(joined))
	for _, tc := range joined {
		byID[tc.Token.ID] = tc
	}

	for _, id := range newIDs {
		if p.deduper != nil {
			seen, err := p.deduper.Seen(ctx, id)
			if err != nil {
				p.log.Errorf("Announce dedupe failed for %s: %v", id, err)
			} else if seen {
				continue
			}
		}

		tc, ok := byID[id]
		if !ok {
			continue
		}

		if err := p.broadcaster.Publish(ctx, subjectNewToken, tc); err != nil {
			p.log.Errorf("Failed to broadcast new token %s: %v", id, err)
		}
	}
}

// recordHistory feeds the committed cycle's scores to the history sink
func (p *Pipeline) recordHistory(seq uint64, now time.Time, resolved map[string]*domain.CreatorPerformance) {
	if p.sink == nil {
		return
	}

	for principal, perf := range resolved {
		if perf == nil {
			continue
		}

		row := clickhouse.CreatorScoreRow{
			ComputedAt:       now.UTC(),
			CycleSeq:         seq,
			Principal:        principal,
			Username:         perf.Username,
			TotalTokens:      uint32(perf.TotalTokens),
			ActiveTokens:     uint32(perf.ActiveTokens),
			TotalVolume:      uint64(perf.TotalVolume),
			SuccessRate:      perf.SuccessRate,
			WeightedScore:    perf.WeightedScore,
			ConfidenceScore:  perf.ConfidenceScore,
			TotalHolders:     uint64(perf.TotalHolders),
			TotalTrades:      uint64(perf.TotalTrades),
			LastTokenCreated: perf.LastTokenCreated.UTC(),
		}

		if err := p.sink.Enqueue(row); err != nil {
			p.log.Errorf("Failed to enqueue score row for %s: %v", principal, err)
		}
	}
}

// scheduleHighlightClear empties NewTokenIDs after the highlight TTL so the
// arrival highlight is momentary, not sticky. A newer committed cycle owns
// its own highlight; the stale timer then does nothing.
func (p *Pipeline) scheduleHighlightClear(seq uint64) {
	p.highlightMu.Lock()
	defer p.highlightMu.Unlock()

	if p.highlightTimer != nil {
		p.highlightTimer.Stop()
	}

	p.highlightTimer = time.AfterFunc(p.opts.HighlightTTL, func() {
		p.mu.Lock()
		defer p.mu.Unlock()

		if p.state.CycleSeq != seq {
			return
		}
		p.state.NewTokenIDs = nil
	})
}

func (p *Pipeline) snapshotLoop(every time.Duration) {
	defer p.wg.Done()

	t := time.NewTicker(every)
	defer t.Stop()

	for {
		select {
		case <-p.stopCh:
			return
		case <-t.C:
			ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
			if err := p.saveSnapshot(ctx); err != nil {
				p.log.Errorf("Periodic snapshot failed: %v", err)
			}
			cancel()
		}
	}
}
