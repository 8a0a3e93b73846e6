package services

import (
	"context"

	"order-fulfillment/internal/contracts"
	rabbit "order-fulfillment/internal/infra/rabbitmq"
)

// emitter wraps payloads in envelopes stamped with the owning service.
type emitter struct {
	pub    rabbit.PublisherInterface
	source string
}

func (e emitter) emit(ctx context.Context, exchange, routingKey, msgType, orderID string, payload any) error {
	env, err := contracts.NewEnvelope(e.source, msgType, orderID, payload)
	if err != nil {
		return err
	}
	return e.pub.Publish(ctx, exchange, routingKey, env)
}

func (e emitter) notify(ctx context.Context, kind contracts.NotificationKind, orderID, email, phone, text string) error {
	msg := contracts.NotificationFor(kind, orderID, email, phone, text)
	return e.emit(ctx, contracts.ExchangeNotification, contracts.KeyNotificationSend, contracts.TypeNotification, orderID, msg)
}
