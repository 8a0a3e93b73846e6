package repository

import (
	"context"

	"order-fulfillment/internal/domain"
)

// Finders in this package return (nil, nil) when the record does not exist.

type OrderRepository interface {
	Save(ctx context.Context, order *domain.Order) error
	FindByID(ctx context.Context, id string) (*domain.Order, error)
	List(ctx context.Context, status domain.OrderStatus) ([]domain.Order, error)
	// UpdateStatus writes to and reason only while the stored status is still
	// from. It reports whether the row was changed.
	UpdateStatus(ctx context.Context, id string, from, to domain.OrderStatus, reason string) (bool, error)
}
