package rabbitmq

import (
	"fmt"

	"order-fulfillment/internal/contracts"

	"github.com/streadway/amqp"
)

// DeclareTopology declares every exchange, queue and binding of the saga.
// Work queues are quorum queues so a poison message is dead-lettered after
// deliveryLimit attempts instead of looping forever.
func DeclareTopology(ch *amqp.Channel, deliveryLimit int) error {
	for _, ex := range contracts.Exchanges {
		if err := ch.ExchangeDeclare(ex, amqp.ExchangeDirect, true, false, false, false, nil); err != nil {
			return fmt.Errorf("declare exchange %s: %w", ex, err)
		}
	}

	if err := ch.ExchangeDeclare(contracts.DeadLetterExchange, amqp.ExchangeFanout, true, false, false, false, nil); err != nil {
		return fmt.Errorf("declare exchange %s: %w", contracts.DeadLetterExchange, err)
	}
	if _, err := ch.QueueDeclare(contracts.DeadLetterQueue, true, false, false, false, nil); err != nil {
		return fmt.Errorf("declare queue %s: %w", contracts.DeadLetterQueue, err)
	}
	if err := ch.QueueBind(contracts.DeadLetterQueue, "", contracts.DeadLetterExchange, false, nil); err != nil {
		return fmt.Errorf("bind %s: %w", contracts.DeadLetterQueue, err)
	}

	for _, q := range contracts.Queues() {
		if _, err := ch.QueueDeclare(q, true, false, false, false, queueArgs(deliveryLimit)); err != nil {
			return fmt.Errorf("declare queue %s: %w", q, err)
		}
	}
	for _, b := range contracts.Bindings {
		if err := ch.QueueBind(b.Queue, b.RoutingKey, b.Exchange, false, nil); err != nil {
			return fmt.Errorf("bind %s to %s/%s: %w", b.Queue, b.Exchange, b.RoutingKey, err)
		}
	}
	return nil
}

func queueArgs(deliveryLimit int) amqp.Table {
	return amqp.Table{
		"x-queue-type":           "quorum",
		"x-delivery-limit":       int32(deliveryLimit),
		"x-dead-letter-exchange": contracts.DeadLetterExchange,
	}
}
