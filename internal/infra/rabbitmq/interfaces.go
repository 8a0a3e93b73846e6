package rabbitmq

import (
	"context"

	"order-fulfillment/internal/contracts"
)

// Handler processes one decoded envelope. Its error decides the delivery
// outcome, see Classify.
type Handler func(ctx context.Context, env contracts.Envelope) error

type PublisherInterface interface {
	Publish(ctx context.Context, exchange, routingKey string, env contracts.Envelope) error
}

// SubscriberInterface consumes queue until ctx is cancelled.
type SubscriberInterface interface {
	Subscribe(ctx context.Context, queue string, h Handler) error
}

// Deduplicator remembers envelopes a queue has already processed.
type Deduplicator interface {
	Seen(ctx context.Context, key string) (bool, error)
	Mark(ctx context.Context, key string) error
}

var (
	_ PublisherInterface  = (*Publisher)(nil)
	_ SubscriberInterface = (*Consumer)(nil)
)
