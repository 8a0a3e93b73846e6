package infra

import (
	"context"

	"order-fulfillment/internal/domain"
)

type ProductClientInterface interface {
	GetProductById(ctx context.Context, id uint64) (*ProductInfo, error)
}

type OrderClientInterface interface {
	GetOrder(ctx context.Context, id string) (*domain.Order, error)
}

type InvoiceClientInterface interface {
	GetByOrderID(ctx context.Context, orderID string) (*domain.Invoice, error)
}

// NotificationTransport delivers one message. It reports false when the
// provider refused or failed the delivery.
type NotificationTransport interface {
	Send(ctx context.Context, channel domain.Channel, recipient, content string) (bool, error)
}

// AuditSink receives committed stock transactions.
type AuditSink interface {
	Record(ctx context.Context, txs []domain.StockTransaction)
}

var (
	_ ProductClientInterface = (*ProductClient)(nil)
	_ OrderClientInterface   = (*OrderClient)(nil)
	_ InvoiceClientInterface = (*InvoiceClient)(nil)
	_ NotificationTransport  = (*LogTransport)(nil)
)
