package infra

import (
	"context"
	"net/url"
	"time"

	"order-fulfillment/internal/domain"
)

// OrderClient fetches authoritative order data from the order service.
type OrderClient struct {
	up *upstream
}

func NewOrderClient(baseURL string, timeout time.Duration, attempts int) *OrderClient {
	return &OrderClient{up: newUpstream("order-service", baseURL, timeout, attempts)}
}

// GetOrder returns nil, nil when the order does not exist.
func (c *OrderClient) GetOrder(ctx context.Context, id string) (*domain.Order, error) {
	var o domain.Order
	found, err := c.up.getJSON(ctx, "/orders/"+url.PathEscape(id), &o)
	if err != nil || !found {
		return nil, err
	}
	return &o, nil
}
