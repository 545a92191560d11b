package dedupe

import "context"

// General contract announce deduping(redis, in-memory, bloom, etc.)
// Keeps a restarted pipeline from re-broadcasting tokens it already announced.
type Deduper interface {
	// if alreadySeen=true -> duplicate, the announce can be skip
	Seen(ctx context.Context, id string) (alreadySeen bool, err error)
	Health(ctx context.Context) error
}
