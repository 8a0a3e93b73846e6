package repository

import (
	"context"
	"time"

	"order-fulfillment/internal/domain"
)

type VerificationRepository interface {
	// Create inserts v unless an entry for the order exists, in which case
	// the stored entry is returned with created=false.
	Create(ctx context.Context, v *domain.PendingVerification) (stored *domain.PendingVerification, created bool, err error)
	FindByOrderID(ctx context.Context, orderID string) (*domain.PendingVerification, error)
	ListByStatus(ctx context.Context, status domain.VerificationStatus) ([]domain.PendingVerification, error)
	ResolveIfPending(ctx context.Context, orderID string, r domain.Resolution) (bool, error)
	// MarkStockReserved records the reservation once; it reports false when
	// the entry is missing or was already marked.
	MarkStockReserved(ctx context.Context, orderID string, at time.Time) (bool, error)
	MarkPublished(ctx context.Context, orderID string, at time.Time) error
}
