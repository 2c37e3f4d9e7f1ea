package ports

import (
	"context"

	"github.com/layer-3/tapnotify/core"
)

// Notifier delivers an event payload to the subscribers of a channel,
// either directly or through a message bus
type Notifier interface {
	Notify(ctx context.Context, channel string, payload []byte) error
}

// Broadcaster fans a message out to the live subscribers of a channel
type Broadcaster interface {
	Broadcast(ctx context.Context, channel, message string) core.Delivery
}
