package kafka

import (
	"context"
	"encoding/json"
	"strconv"
	"time"

	"order-fulfillment/internal/domain"

	"github.com/segmentio/kafka-go"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/propagation"
	"go.uber.org/zap"
)

const writeTimeout = 2 * time.Second

type messageWriter interface {
	WriteMessages(ctx context.Context, msgs ...kafka.Message) error
	Close() error
}

// AuditSink streams committed stock transactions to a topic. Delivery is
// best effort: the ledger row is the record of truth. The writer is async,
// so Record only enqueues and failures surface in the completion log.
type AuditSink struct {
	w   messageWriter
	log *zap.Logger
}

func NewAuditSink(brokers []string, topic string, log *zap.Logger) *AuditSink {
	return &AuditSink{
		w: &kafka.Writer{
			Addr:         kafka.TCP(brokers...),
			Topic:        topic,
			Balancer:     &kafka.Hash{},
			RequiredAcks: kafka.RequireAll,
			BatchTimeout: 10 * time.Millisecond,
			Async:        true,
			Completion:   completionLogger(log),
		},
		log: log,
	}
}

func completionLogger(log *zap.Logger) func([]kafka.Message, error) {
	return func(msgs []kafka.Message, err error) {
		if err != nil {
			log.Warn("audit stream write failed", zap.Error(err), zap.Int("records", len(msgs)))
		}
	}
}

type auditRecord struct {
	domain.StockTransaction
	Service string `json:"service"`
}

func (s *AuditSink) Record(ctx context.Context, txs []domain.StockTransaction) {
	if len(txs) == 0 {
		return
	}
	headers := traceHeaders(ctx)
	msgs := make([]kafka.Message, 0, len(txs))
	for _, t := range txs {
		value, err := json.Marshal(auditRecord{StockTransaction: t, Service: "stock-service"})
		if err != nil {
			s.log.Warn("encode audit record", zap.Error(err))
			continue
		}
		msgs = append(msgs, kafka.Message{
			Key:     []byte(strconv.FormatUint(t.ProductID, 10)),
			Value:   value,
			Time:    t.CreatedAt,
			Headers: headers,
		})
	}
	ctx, cancel := context.WithTimeout(ctx, writeTimeout)
	defer cancel()
	if err := s.w.WriteMessages(ctx, msgs...); err != nil {
		s.log.Warn("audit stream write failed", zap.Error(err), zap.Int("records", len(msgs)))
	}
}

func (s *AuditSink) Close() error {
	return s.w.Close()
}

func traceHeaders(ctx context.Context) []kafka.Header {
	carrier := propagation.MapCarrier{}
	otel.GetTextMapPropagator().Inject(ctx, carrier)
	headers := make([]kafka.Header, 0, len(carrier))
	for k, v := range carrier {
		headers = append(headers, kafka.Header{Key: k, Value: []byte(v)})
	}
	return headers
}

// NopSink drops records. It is used when no brokers are configured.
type NopSink struct{}

func (NopSink) Record(context.Context, []domain.StockTransaction) {}
func (NopSink) Close() error                                     { return nil }
