package repository

import (
	"context"

	"order-fulfillment/internal/domain"
)

type NotificationRepository interface {
	Create(ctx context.Context, n *domain.Notification) error
	Update(ctx context.Context, n *domain.Notification) error
	FindByID(ctx context.Context, id string) (*domain.Notification, error)
	ListByOrder(ctx context.Context, orderID string) ([]domain.Notification, error)
}
