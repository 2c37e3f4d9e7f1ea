package events

import (
	"context"
	"fmt"

	"github.com/ThreeDotsLabs/watermill/message"
	"github.com/google/uuid"
	"github.com/layer-3/tapnotify/ports"
)

// MetadataChannel is the message metadata key holding the target channel
const MetadataChannel = "channel"

// WatermillNotifier implements the Notifier interface by publishing events
// to a watermill topic. A Relay on every instance delivers them locally.
type WatermillNotifier struct {
	publisher message.Publisher
	topic     string
}

// NewWatermillNotifier creates a new Watermill notifier
func NewWatermillNotifier(publisher message.Publisher, topic string) ports.Notifier {
	return &WatermillNotifier{
		publisher: publisher,
		topic:     topic,
	}
}

// Notify publishes payload addressed to channel
func (p *WatermillNotifier) Notify(ctx context.Context, channel string, payload []byte) error {
	msg := message.NewMessage(uuid.New().String(), payload)
	msg.Metadata.Set(MetadataChannel, channel)
	msg.SetContext(ctx)

	if err := p.publisher.Publish(p.topic, msg); err != nil {
		return fmt.Errorf("failed to publish event: %w", err)
	}

	return nil
}
