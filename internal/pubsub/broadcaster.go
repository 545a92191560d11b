package pubsub

import "context"

// Broadcaster fans out new-token announcements to downstream gateways.
// Implementations must tolerate being called on every merge cycle.
type Broadcaster interface {
	Publish(ctx context.Context, subject string, data any) error
	Health(ctx context.Context) error
}
