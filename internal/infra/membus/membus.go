// Package membus is an in-process stand-in for the broker with the same
// routing table and delivery outcomes. Delivery happens only when Drain is
// called, which keeps saga tests deterministic.
package membus

import (
	"context"
	"fmt"
	"sync"

	"order-fulfillment/internal/contracts"
	"order-fulfillment/internal/infra/rabbitmq"

	"go.uber.org/zap"
)

const defaultDeliveryLimit = 10

type message struct {
	body     []byte
	attempts int
	seq      uint64
}

type Record struct {
	Exchange   string
	RoutingKey string
	Envelope   contracts.Envelope
}

type Bus struct {
	log           *zap.Logger
	deliveryLimit int
	// Duplicate delivers every message twice to exercise idempotency.
	Duplicate bool

	mu         sync.Mutex
	queues     map[string][]message
	handlers   map[string]rabbitmq.Handler
	dead       [][]byte
	published  []Record
	publishErr error
	seq        uint64
}

var (
	_ rabbitmq.PublisherInterface  = (*Bus)(nil)
	_ rabbitmq.SubscriberInterface = (*Bus)(nil)
)

func New(log *zap.Logger) *Bus {
	return &Bus{
		log:           log,
		deliveryLimit: defaultDeliveryLimit,
		queues:        make(map[string][]message),
		handlers:      make(map[string]rabbitmq.Handler),
	}
}

// FailPublishes makes every Publish return err until called with nil.
func (b *Bus) FailPublishes(err error) {
	b.mu.Lock()
	defer b.mu.Unlock()
	b.publishErr = err
}

func (b *Bus) Publish(_ context.Context, exchange, routingKey string, env contracts.Envelope) error {
	body, err := env.Marshal()
	if err != nil {
		return err
	}
	b.mu.Lock()
	defer b.mu.Unlock()
	if b.publishErr != nil {
		return b.publishErr
	}
	b.published = append(b.published, Record{Exchange: exchange, RoutingKey: routingKey, Envelope: env})
	routed := false
	for _, bind := range contracts.Bindings {
		if bind.Exchange == exchange && bind.RoutingKey == routingKey {
			b.seq++
			b.queues[bind.Queue] = append(b.queues[bind.Queue], message{body: body, seq: b.seq})
			routed = true
		}
	}
	if !routed {
		return fmt.Errorf("no binding for %s/%s", exchange, routingKey)
	}
	return nil
}

// Register attaches h to queue without blocking.
func (b *Bus) Register(queue string, h rabbitmq.Handler) {
	b.mu.Lock()
	defer b.mu.Unlock()
	b.handlers[queue] = h
}

// Subscribe registers h and blocks until ctx ends, like the broker consumer.
func (b *Bus) Subscribe(ctx context.Context, queue string, h rabbitmq.Handler) error {
	b.Register(queue, h)
	<-ctx.Done()
	return nil
}

// Drain delivers queued messages to registered handlers in the order they
// were enqueued across all queues, until no handled queue has work left.
// Messages published or requeued by handlers are delivered in the same call.
func (b *Bus) Drain(ctx context.Context) {
	for {
		if ctx.Err() != nil {
			return
		}
		queue, msg, h, ok := b.next()
		if !ok {
			return
		}
		b.deliver(ctx, queue, msg, h)
		if b.Duplicate {
			b.deliver(ctx, queue, msg, h)
		}
	}
}

func (b *Bus) next() (string, message, rabbitmq.Handler, bool) {
	b.mu.Lock()
	defer b.mu.Unlock()
	q := ""
	for name, msgs := range b.queues {
		if len(msgs) == 0 || b.handlers[name] == nil {
			continue
		}
		if q == "" || msgs[0].seq < b.queues[q][0].seq {
			q = name
		}
	}
	if q == "" {
		return "", message{}, nil, false
	}
	msg := b.queues[q][0]
	b.queues[q] = b.queues[q][1:]
	return q, msg, b.handlers[q], true
}

func (b *Bus) deliver(ctx context.Context, queue string, msg message, h rabbitmq.Handler) {
	log := b.log.With(zap.String("queue", queue))
	err := rabbitmq.Process(ctx, queue, msg.body, h, nil, log)
	outcome := rabbitmq.Classify(err)

	b.mu.Lock()
	defer b.mu.Unlock()
	switch outcome {
	case rabbitmq.Ack:
		if err != nil {
			log.Warn("business rule rejected message", zap.Error(err))
		}
	case rabbitmq.DeadLetter:
		b.dead = append(b.dead, msg.body)
	case rabbitmq.Requeue:
		msg.attempts++
		if msg.attempts >= b.deliveryLimit {
			b.dead = append(b.dead, msg.body)
			return
		}
		b.seq++
		msg.seq = b.seq
		b.queues[queue] = append(b.queues[queue], msg)
	}
}

func (b *Bus) Pending(queue string) int {
	b.mu.Lock()
	defer b.mu.Unlock()
	return len(b.queues[queue])
}

func (b *Bus) DeadLetters() int {
	b.mu.Lock()
	defer b.mu.Unlock()
	return len(b.dead)
}

// Published returns what was published with routingKey, oldest first.
func (b *Bus) Published(routingKey string) []Record {
	b.mu.Lock()
	defer b.mu.Unlock()
	var out []Record
	for _, p := range b.published {
		if p.RoutingKey == routingKey {
			out = append(out, p)
		}
	}
	return out
}
