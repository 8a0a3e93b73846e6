package services

import (
	"time"

	"order-fulfillment/internal/domain"
	"order-fulfillment/internal/infra"

	"github.com/cenkalti/backoff/v4"
	"github.com/shopspring/decimal"
)

func CreateMockOrder(id string, status domain.OrderStatus, items ...domain.OrderItem) *domain.Order {
	total := decimal.Zero
	for i := range items {
		items[i].OrderID = id
		total = total.Add(items[i].LineTotal())
	}
	return &domain.Order{
		ID:            id,
		CustomerName:  TestCustomerName,
		CustomerEmail: TestCustomerEmail,
		CustomerPhone: TestCustomerPhone,
		Items:         items,
		Total:         total,
		Status:        status,
		CreatedAt:     time.Now(),
	}
}

func CreateMockProduct(id uint64, name string, price string, stock int64) *infra.ProductInfo {
	return &infra.ProductInfo{
		ID:    id,
		Name:  name,
		Price: decimal.RequireFromString(price),
		Stock: stock,
	}
}

// instantBackOff keeps retry loops in tests from sleeping.
func instantBackOff() backoff.BackOff {
	return &backoff.ZeroBackOff{}
}

const (
	TestProductID     = uint64(1)
	TestOrderID       = "3f1c2a9e-7b5d-4e0a-9c61-0d2f8b7a4e10"
	TestProductName   = "Test Product"
	TestProductPrice  = "10.00"
	TestCustomerName  = "Ada Lovelace"
	TestCustomerEmail = "ada@example.com"
	TestCustomerPhone = "+15550100"
)

func decimalFrom(s string) decimal.Decimal {
	return decimal.RequireFromString(s)
}
