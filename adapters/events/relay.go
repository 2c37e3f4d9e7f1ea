package events

import (
	"context"
	"fmt"

	"github.com/ThreeDotsLabs/watermill/message"
	"github.com/layer-3/tapnotify/ports"
	"github.com/rs/zerolog"
)

// Relay consumes events published by a WatermillNotifier and broadcasts
// them to the local subscribers of their channel
type Relay struct {
	subscriber  message.Subscriber
	topic       string
	broadcaster ports.Broadcaster
	logger      zerolog.Logger
}

// NewRelay creates a relay for topic
func NewRelay(subscriber message.Subscriber, topic string, broadcaster ports.Broadcaster, logger zerolog.Logger) *Relay {
	return &Relay{
		subscriber:  subscriber,
		topic:       topic,
		broadcaster: broadcaster,
		logger:      logger,
	}
}

// Run relays events until ctx is done or the subscription ends
func (r *Relay) Run(ctx context.Context) error {
	messages, err := r.subscriber.Subscribe(ctx, r.topic)
	if err != nil {
		return fmt.Errorf("failed to subscribe to %s: %w", r.topic, err)
	}

	for {
		select {
		case <-ctx.Done():
			return nil
		case msg, ok := <-messages:
			if !ok {
				return nil
			}
			r.handle(ctx, msg)
		}
	}
}

func (r *Relay) handle(ctx context.Context, msg *message.Message) {
	// delivery is best effort, a message is never redelivered
	defer msg.Ack()

	channel := msg.Metadata.Get(MetadataChannel)
	if channel == "" {
		r.logger.Warn().Str("uuid", msg.UUID).Msg("dropping event without channel")
		return
	}

	logDelivery(r.logger, r.broadcaster.Broadcast(ctx, channel, string(msg.Payload)))
}
