package repository

import (
	"context"
	"time"

	"order-fulfillment/internal/domain"
)

type InvoiceRepository interface {
	// Create returns domain.ErrDuplicate when another active invoice holds
	// the order.
	Create(ctx context.Context, inv *domain.Invoice) error
	FindByID(ctx context.Context, id string) (*domain.Invoice, error)
	FindActiveByOrderID(ctx context.Context, orderID string) (*domain.Invoice, error)
	// FindByOrderID prefers the active invoice and falls back to the newest.
	FindByOrderID(ctx context.Context, orderID string) (*domain.Invoice, error)
	Update(ctx context.Context, inv *domain.Invoice) error
	ListIssuedDueBefore(ctx context.Context, cutoff time.Time) ([]domain.Invoice, error)
}
