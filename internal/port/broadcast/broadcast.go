// Package broadcast defines the port for pushing live queue events to
// connected reviewer clients.
package broadcast

import "context"

// Broadcaster sends real-time events to all connected clients.
// Best-effort: a failed broadcast never blocks the decision pipeline.
type Broadcaster interface {
	BroadcastEvent(ctx context.Context, eventType string, payload any)
}
