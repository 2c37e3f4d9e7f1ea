package events

import (
	"context"
	"errors"

	"github.com/layer-3/tapnotify/core"
	"github.com/layer-3/tapnotify/ports"
	"github.com/rs/zerolog"
)

// DirectNotifier implements the Notifier interface by broadcasting
// straight into the local channel registry
type DirectNotifier struct {
	broadcaster ports.Broadcaster
	logger      zerolog.Logger
}

// NewDirectNotifier creates a notifier that broadcasts in-process
func NewDirectNotifier(broadcaster ports.Broadcaster, logger zerolog.Logger) ports.Notifier {
	return &DirectNotifier{
		broadcaster: broadcaster,
		logger:      logger,
	}
}

// Notify broadcasts payload to channel. Empty channels and evicted
// subscribers are logged, not returned.
func (n *DirectNotifier) Notify(ctx context.Context, channel string, payload []byte) error {
	logDelivery(n.logger, n.broadcaster.Broadcast(ctx, channel, string(payload)))
	return nil
}

func logDelivery(logger zerolog.Logger, d core.Delivery) {
	err := d.Err()
	switch {
	case err == nil:
		logger.Debug().Str("channel", d.Channel).Int("delivered", d.Delivered).Msg("event delivered")
	case errors.Is(err, core.ErrChannelEmpty):
		logger.Debug().Str("channel", d.Channel).Msg("no subscribers for event")
	default:
		logger.Info().
			Str("channel", d.Channel).
			Int("delivered", d.Delivered).
			Int("evicted", d.Evicted()).
			Msg("event delivered with evictions")
	}
}
