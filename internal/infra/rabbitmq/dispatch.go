package rabbitmq

import (
	"context"
	"errors"
	"fmt"

	"order-fulfillment/internal/contracts"
	"order-fulfillment/internal/domain"

	"go.uber.org/zap"
)

type Disposition int

const (
	Ack Disposition = iota
	Requeue
	DeadLetter
)

func (d Disposition) String() string {
	switch d {
	case Ack:
		return "ack"
	case Requeue:
		return "requeue"
	default:
		return "dead-letter"
	}
}

// Classify maps a handler result to a delivery outcome. Business rule
// violations are acked because the handler has already recorded the
// negative outcome.
func Classify(err error) Disposition {
	switch {
	case err == nil:
		return Ack
	case errors.Is(err, contracts.ErrMalformed):
		return DeadLetter
	case domain.IsBusiness(err):
		return Ack
	default:
		return Requeue
	}
}

var errPanic = errors.New("handler panicked")

// Process decodes body, skips envelopes queue has already handled and runs
// h. A panic in h comes back as an error.
func Process(ctx context.Context, queue string, body []byte, h Handler, dedup Deduplicator, log *zap.Logger) (err error) {
	env, err := contracts.Parse(body)
	if err != nil {
		return err
	}

	key := queue + ":" + env.ID
	if dedup != nil {
		seen, derr := dedup.Seen(ctx, key)
		if derr != nil {
			log.Warn("dedup lookup failed", zap.Error(derr))
		} else if seen {
			log.Debug("duplicate delivery skipped", zap.String("message_id", env.ID))
			return nil
		}
	}

	defer func() {
		if r := recover(); r != nil {
			err = fmt.Errorf("%w: %v", errPanic, r)
		}
	}()
	if err := h(ctx, env); err != nil {
		return err
	}

	if dedup != nil {
		if derr := dedup.Mark(ctx, key); derr != nil {
			log.Warn("dedup mark failed", zap.Error(derr))
		}
	}
	return nil
}
