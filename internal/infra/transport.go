package infra

import (
	"context"

	"order-fulfillment/internal/domain"

	"go.uber.org/zap"
)

// LogTransport "delivers" notifications by writing them to the structured
// log. Real SMTP and SMS gateways plug in behind NotificationTransport.
type LogTransport struct {
	log *zap.Logger
}

func NewLogTransport(log *zap.Logger) *LogTransport {
	return &LogTransport{log: log}
}

func (t *LogTransport) Send(ctx context.Context, channel domain.Channel, recipient, content string) (bool, error) {
	if err := ctx.Err(); err != nil {
		return false, err
	}
	if recipient == "" {
		return false, nil
	}
	t.log.Info("notification delivered",
		zap.String("channel", string(channel)),
		zap.String("recipient", recipient),
		zap.Int("length", len(content)),
	)
	return true, nil
}
