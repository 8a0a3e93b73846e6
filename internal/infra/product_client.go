package infra

import (
	"context"
	"fmt"
	"time"

	"github.com/shopspring/decimal"
)

type ProductInfo struct {
	ID       uint64          `json:"id"`
	Name     string          `json:"name"`
	Price    decimal.Decimal `json:"price"`
	Stock    int64           `json:"stock"`
	Reserved int64           `json:"reserved"`
}

// ProductClient reads the stock service catalogue.
type ProductClient struct {
	up *upstream
}

func NewProductClient(baseURL string, timeout time.Duration, attempts int) *ProductClient {
	return &ProductClient{up: newUpstream("stock-service", baseURL, timeout, attempts)}
}

// GetProductById returns nil, nil when the product does not exist.
func (c *ProductClient) GetProductById(ctx context.Context, id uint64) (*ProductInfo, error) {
	var p ProductInfo
	found, err := c.up.getJSON(ctx, fmt.Sprintf("/products/%d", id), &p)
	if err != nil || !found {
		return nil, err
	}
	return &p, nil
}
