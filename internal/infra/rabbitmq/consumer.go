package rabbitmq

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"time"

	"order-fulfillment/internal/infra/tracing"

	"github.com/cenkalti/backoff/v4"
	"github.com/streadway/amqp"
	"go.uber.org/zap"
)

// Consumer delivers queue messages to handlers with manual acknowledgement.
// At most prefetch deliveries are in flight per subscription.
type Consumer struct {
	session  *Session
	prefetch int
	dedup    Deduplicator
	log      *zap.Logger
}

func NewConsumer(session *Session, prefetch int, dedup Deduplicator, log *zap.Logger) *Consumer {
	if prefetch <= 0 {
		prefetch = 1
	}
	return &Consumer{session: session, prefetch: prefetch, dedup: dedup, log: log}
}

// Subscribe consumes queue until ctx is cancelled, resubscribing after the
// channel or connection drops.
func (c *Consumer) Subscribe(ctx context.Context, queue string, h Handler) error {
	log := c.log.With(zap.String("queue", queue))
	b := backoff.NewExponentialBackOff()
	b.MaxInterval = 15 * time.Second
	b.MaxElapsedTime = 0

	for {
		started := time.Now()
		err := c.consume(ctx, queue, h, log)
		if ctx.Err() != nil {
			return nil
		}
		if errors.Is(err, ErrSessionClosed) {
			return err
		}
		if time.Since(started) > time.Minute {
			b.Reset()
		}
		wait := b.NextBackOff()
		log.Warn("subscription interrupted, resubscribing", zap.Error(err), zap.Duration("retry_in", wait))
		select {
		case <-ctx.Done():
			return nil
		case <-time.After(wait):
		}
	}
}

func (c *Consumer) consume(ctx context.Context, queue string, h Handler, log *zap.Logger) error {
	ch, err := c.session.Channel(ctx)
	if err != nil {
		return err
	}
	defer ch.Close()

	if err := ch.Qos(c.prefetch, 0, false); err != nil {
		return fmt.Errorf("set qos: %w", err)
	}
	deliveries, err := ch.Consume(queue, "", false, false, false, false, nil)
	if err != nil {
		return fmt.Errorf("consume %s: %w", queue, err)
	}
	closed := ch.NotifyClose(make(chan *amqp.Error, 1))
	log.Info("subscribed")

	var wg sync.WaitGroup
	defer wg.Wait()
	sem := make(chan struct{}, c.prefetch)

	for {
		select {
		case <-ctx.Done():
			return ctx.Err()
		case amqpErr := <-closed:
			return fmt.Errorf("channel closed: %v", amqpErr)
		case d, ok := <-deliveries:
			if !ok {
				return errors.New("delivery stream closed")
			}
			sem <- struct{}{}
			wg.Add(1)
			go func(d amqp.Delivery) {
				defer wg.Done()
				defer func() { <-sem }()
				c.handle(ctx, queue, d, h, log)
			}(d)
		}
	}
}

func (c *Consumer) handle(ctx context.Context, queue string, d amqp.Delivery, h Handler, log *zap.Logger) {
	ctx = tracing.ExtractAMQPHeaders(ctx, d.Headers)
	log = log.With(
		zap.String("routing_key", d.RoutingKey),
		zap.String("message_id", d.MessageId),
		zap.String("order_id", d.CorrelationId),
	)

	err := Process(ctx, queue, d.Body, h, c.dedup, log)
	outcome := Classify(err)

	var ackErr error
	switch outcome {
	case Ack:
		if err != nil {
			log.Warn("business rule rejected message", zap.Error(err))
		}
		ackErr = d.Ack(false)
	case DeadLetter:
		log.Error("malformed message dead-lettered", zap.Error(err))
		ackErr = d.Nack(false, false)
	case Requeue:
		log.Warn("handler failed, requeueing", zap.Error(err), zap.Bool("redelivered", d.Redelivered))
		ackErr = d.Nack(false, true)
	}
	if ackErr != nil {
		log.Warn("acknowledge failed", zap.String("outcome", outcome.String()), zap.Error(ackErr))
	}
}
