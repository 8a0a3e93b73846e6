package rabbitmq

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"time"

	"github.com/cenkalti/backoff/v4"
	"github.com/streadway/amqp"
	"go.uber.org/zap"
)

var ErrSessionClosed = errors.New("rabbitmq session closed")

// Session owns one broker connection for a worker's lifetime. It redials on
// demand after the connection drops and redeclares the topology each time.
type Session struct {
	url           string
	deliveryLimit int
	log           *zap.Logger

	mu     sync.Mutex
	conn   *amqp.Connection
	closed bool
}

func NewSession(url string, deliveryLimit int, log *zap.Logger) *Session {
	return &Session{url: url, deliveryLimit: deliveryLimit, log: log}
}

// Connect dials with backoff until the broker answers or ctx ends.
func (s *Session) Connect(ctx context.Context) error {
	_, err := s.connection(ctx)
	return err
}

func (s *Session) connection(ctx context.Context) (*amqp.Connection, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.closed {
		return nil, ErrSessionClosed
	}
	if s.conn != nil && !s.conn.IsClosed() {
		return s.conn, nil
	}

	b := backoff.NewExponentialBackOff()
	b.InitialInterval = 250 * time.Millisecond
	b.MaxInterval = 10 * time.Second
	b.MaxElapsedTime = 0

	var conn *amqp.Connection
	dial := func() error {
		c, err := amqp.Dial(s.url)
		if err != nil {
			return err
		}
		ch, err := c.Channel()
		if err != nil {
			c.Close()
			return err
		}
		defer ch.Close()
		if err := DeclareTopology(ch, s.deliveryLimit); err != nil {
			c.Close()
			return backoff.Permanent(err)
		}
		conn = c
		return nil
	}
	notify := func(err error, wait time.Duration) {
		s.log.Warn("rabbitmq dial failed", zap.Error(err), zap.Duration("retry_in", wait))
	}
	if err := backoff.RetryNotify(dial, backoff.WithContext(b, ctx), notify); err != nil {
		return nil, fmt.Errorf("connect to rabbitmq: %w", err)
	}

	s.conn = conn
	s.watch(conn)
	s.log.Info("rabbitmq connected")
	return conn, nil
}

func (s *Session) watch(conn *amqp.Connection) {
	closed := conn.NotifyClose(make(chan *amqp.Error, 1))
	go func() {
		if err, ok := <-closed; ok && err != nil {
			s.log.Warn("rabbitmq connection lost", zap.String("reason", err.Reason), zap.Int("code", err.Code))
		}
	}()
}

// Channel opens a fresh channel on the live connection, reconnecting first
// when needed.
func (s *Session) Channel(ctx context.Context) (*amqp.Channel, error) {
	conn, err := s.connection(ctx)
	if err != nil {
		return nil, err
	}
	ch, err := conn.Channel()
	if err != nil {
		return nil, fmt.Errorf("open channel: %w", err)
	}
	return ch, nil
}

func (s *Session) Close() error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.closed = true
	if s.conn != nil && !s.conn.IsClosed() {
		return s.conn.Close()
	}
	return nil
}
