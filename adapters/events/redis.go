package events

import (
	"fmt"

	"github.com/ThreeDotsLabs/watermill"
	"github.com/ThreeDotsLabs/watermill-redisstream/pkg/redisstream"
	"github.com/ThreeDotsLabs/watermill/message"
	"github.com/redis/go-redis/v9"
)

// NewRedisPubSub creates a redis stream publisher and a fan-out subscriber.
// The subscriber has no consumer group, so every instance reads every event.
func NewRedisPubSub(client redis.UniversalClient, logger watermill.LoggerAdapter) (message.Publisher, message.Subscriber, error) {
	publisher, err := redisstream.NewPublisher(
		redisstream.PublisherConfig{
			Client: client,
		},
		logger,
	)
	if err != nil {
		return nil, nil, fmt.Errorf("failed to create redis publisher: %w", err)
	}

	subscriber, err := redisstream.NewSubscriber(
		redisstream.SubscriberConfig{
			Client: client,
		},
		logger,
	)
	if err != nil {
		_ = publisher.Close()
		return nil, nil, fmt.Errorf("failed to create redis subscriber: %w", err)
	}

	return publisher, subscriber, nil
}
