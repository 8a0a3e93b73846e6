package rabbitmq

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"time"

	"order-fulfillment/internal/contracts"
	"order-fulfillment/internal/infra/tracing"

	"github.com/cenkalti/backoff/v4"
	"github.com/streadway/amqp"
	"go.uber.org/zap"
)

const confirmTimeout = 5 * time.Second

var errNacked = errors.New("broker rejected publish")

// Publisher sends persistent JSON envelopes on a confirm-mode channel and
// waits for the broker's ack on every message.
type Publisher struct {
	session  *Session
	attempts int
	log      *zap.Logger

	mu       sync.Mutex
	channel  *amqp.Channel
	confirms chan amqp.Confirmation
}

func NewPublisher(session *Session, attempts int, log *zap.Logger) *Publisher {
	if attempts <= 0 {
		attempts = 1
	}
	return &Publisher{session: session, attempts: attempts, log: log}
}

func (p *Publisher) Publish(ctx context.Context, exchange, routingKey string, env contracts.Envelope) error {
	body, err := env.Marshal()
	if err != nil {
		return fmt.Errorf("failed to marshal message: %w", err)
	}
	msg := amqp.Publishing{
		Headers:       tracing.InjectAMQPHeaders(ctx, nil),
		ContentType:   "application/json",
		DeliveryMode:  amqp.Persistent,
		MessageId:     env.ID,
		CorrelationId: env.CorrelationID,
		Timestamp:     env.OccurredAt,
		Type:          env.Type,
		AppId:         env.Source,
		Body:          body,
	}

	log := p.log.With(
		zap.String("exchange", exchange),
		zap.String("routing_key", routingKey),
		zap.String("message_id", env.ID),
		zap.String("order_id", env.CorrelationID),
	)

	b := backoff.WithContext(backoff.WithMaxRetries(newBackOff(), uint64(p.attempts-1)), ctx)
	notify := func(err error, wait time.Duration) {
		log.Warn("publish failed, retrying", zap.Error(err), zap.Duration("retry_in", wait))
	}
	if err := backoff.RetryNotify(func() error { return p.publishOnce(ctx, exchange, routingKey, msg) }, b, notify); err != nil {
		log.Error("publish gave up", zap.Error(err))
		return fmt.Errorf("failed to publish %s to %s/%s: %w", env.Type, exchange, routingKey, err)
	}
	log.Debug("published", zap.String("type", env.Type))
	return nil
}

func (p *Publisher) publishOnce(ctx context.Context, exchange, routingKey string, msg amqp.Publishing) error {
	p.mu.Lock()
	defer p.mu.Unlock()

	if p.channel == nil {
		ch, err := p.session.Channel(ctx)
		if err != nil {
			if errors.Is(err, ErrSessionClosed) {
				return backoff.Permanent(err)
			}
			return err
		}
		if err := ch.Confirm(false); err != nil {
			ch.Close()
			return fmt.Errorf("enable confirms: %w", err)
		}
		p.channel = ch
		p.confirms = ch.NotifyPublish(make(chan amqp.Confirmation, 1))
	}

	if err := p.channel.Publish(exchange, routingKey, false, false, msg); err != nil {
		p.reset()
		return err
	}

	timer := time.NewTimer(confirmTimeout)
	defer timer.Stop()
	select {
	case c, ok := <-p.confirms:
		if !ok {
			p.reset()
			return errors.New("channel closed before confirm")
		}
		if !c.Ack {
			return errNacked
		}
		return nil
	case <-timer.C:
		p.reset()
		return errors.New("timed out waiting for confirm")
	case <-ctx.Done():
		p.reset()
		return backoff.Permanent(ctx.Err())
	}
}

// reset drops the channel so the next attempt reconnects.
func (p *Publisher) reset() {
	if p.channel != nil {
		p.channel.Close()
	}
	p.channel = nil
	p.confirms = nil
}

func (p *Publisher) Close() {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.reset()
}

func newBackOff() *backoff.ExponentialBackOff {
	b := backoff.NewExponentialBackOff()
	b.InitialInterval = 100 * time.Millisecond
	b.MaxInterval = 2 * time.Second
	b.MaxElapsedTime = 0
	return b
}
