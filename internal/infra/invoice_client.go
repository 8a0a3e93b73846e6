package infra

import (
	"context"
	"net/url"
	"time"

	"order-fulfillment/internal/domain"
)

type InvoiceClient struct {
	up *upstream
}

// NewInvoiceClient makes one attempt per call. Callers that wait for an
// invoice to appear run their own polling loop.
func NewInvoiceClient(baseURL string, timeout time.Duration) *InvoiceClient {
	return &InvoiceClient{up: newUpstream("invoice-service", baseURL, timeout, 1)}
}

// GetByOrderID returns nil, nil while no invoice exists for the order.
func (c *InvoiceClient) GetByOrderID(ctx context.Context, orderID string) (*domain.Invoice, error) {
	var inv domain.Invoice
	found, err := c.up.getJSON(ctx, "/invoices/order/"+url.PathEscape(orderID), &inv)
	if err != nil || !found {
		return nil, err
	}
	return &inv, nil
}
