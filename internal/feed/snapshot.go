package feed

import (
	"bytes"
	"context"
	"encoding/gob"
	"errors"
	"fmt"
	"odinboard/internal/domain"
	"time"
)

// Where warm-start snapshots live (redis in production)
type SnapshotStore interface {
	Save(ctx context.Context, data []byte) error
	// Load returns (nil, nil) when no snapshot exists
	Load(ctx context.Context) ([]byte, error)
}

// Serializable pipeline state. A restored snapshot counts as "primed": the
// next cycle diffs against it instead of treating everything as new, and a
// restart does not hammer the upstream for creators it already knows.
type Snapshot struct {
	Version  int
	TakenAt  time.Time
	CycleSeq uint64
	Tokens   []domain.Token
	Creators map[string]domain.CreatorPerformance
}

func marshalSnapshot(view View, creators map[string]domain.CreatorPerformance) ([]byte, error) {
	snap := Snapshot{
		Version:  1,
		TakenAt:  time.Now().UTC(),
		CycleSeq: view.CycleSeq,
		Tokens:   make([]domain.Token, 0, len(view.Tokens)),
		Creators: creators,
	}
	for i := range view.Tokens {
		snap.Tokens = append(snap.Tokens, view.Tokens[i].Token)
	}

	var buf bytes.Buffer
	enc := gob.NewEncoder(&buf)
	if err := enc.Encode(snap); err != nil {
		return nil, fmt.Errorf("failed to encode snapshot: %w", err)
	}

	return buf.Bytes(), nil
}

func unmarshalSnapshot(data []byte) (*Snapshot, error) {
	if len(data) == 0 {
		return nil, errors.New("empty snapshot data")
	}

	var snap Snapshot
	dec := gob.NewDecoder(bytes.NewReader(data))
	if err := dec.Decode(&snap); err != nil {
		return nil, fmt.Errorf("failed to decode snapshot: %w", err)
	}

	if snap.Version != 1 {
		return nil, fmt.Errorf("unsupported snapshot version: %d", snap.Version)
	}

	return &snap, nil
}

func (p *Pipeline) saveSnapshot(ctx context.Context) error {
	p.mu.Lock()
	if !p.primed {
		p.mu.Unlock()
		return nil
	}
	view := p.state
	p.mu.Unlock()

	data, err := marshalSnapshot(view, p.creators.Export())
	if err != nil {
		return err
	}

	if err = p.snapshots.Save(ctx, data); err != nil {
		return fmt.Errorf("failed to save snapshot: %w", err)
	}

	p.log.Debugf("Saved snapshot: %d tokens, %d creators, %d bytes", len(view.Tokens), p.creators.Len(), len(data))
	return nil
}

func (p *Pipeline) restoreSnapshot(ctx context.Context) error {
	data, err := p.snapshots.Load(ctx)
	if err != nil {
		return fmt.Errorf("failed to load snapshot: %w", err)
	}
	if data == nil {
		return nil // cold start
	}

	snap, err := unmarshalSnapshot(data)
	if err != nil {
		return err
	}

	p.creators.Import(snap.Creators)

	joined := make([]domain.TokenWithCreator, len(snap.Tokens))
	for i, t := range snap.Tokens {
		var perf *domain.CreatorPerformance
		if cached, ok := p.creators.Get(t.Creator); ok {
			perf = cached
		}
		joined[i] = domain.TokenWithCreator{Token: t, Creator: perf}
	}

	p.mu.Lock()
	p.state = View{
		CycleSeq: 0,
		MergedAt: snap.TakenAt,
		Tokens:   joined,
	}
	p.primed = true
	p.mu.Unlock()

	// committed cycles restart above the snapshot to keep ordering explicit
	p.seq.Store(snap.CycleSeq)

	p.log.Infof("Restored snapshot: %d tokens, %d creators, taken_at=%s", len(snap.Tokens), len(snap.Creators), snap.TakenAt)
	return nil
}
