package memory

import (
	"context"
	"sort"
	"sync"

	"order-fulfillment/internal/domain"
	"order-fulfillment/internal/repository"
)

type NotificationRepo struct {
	mu    sync.Mutex
	items map[string]domain.Notification
}

var _ repository.NotificationRepository = (*NotificationRepo)(nil)

func NewNotificationRepo() *NotificationRepo {
	return &NotificationRepo{items: make(map[string]domain.Notification)}
}

func (r *NotificationRepo) Create(_ context.Context, n *domain.Notification) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	if _, ok := r.items[n.ID]; ok {
		return domain.ErrDuplicate
	}
	r.items[n.ID] = *n
	return nil
}

func (r *NotificationRepo) Update(_ context.Context, n *domain.Notification) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	if _, ok := r.items[n.ID]; !ok {
		return domain.ErrNotificationNotFound
	}
	r.items[n.ID] = *n
	return nil
}

func (r *NotificationRepo) FindByID(_ context.Context, id string) (*domain.Notification, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	n, ok := r.items[id]
	if !ok {
		return nil, nil
	}
	return &n, nil
}

func (r *NotificationRepo) ListByOrder(_ context.Context, orderID string) ([]domain.Notification, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	var out []domain.Notification
	for _, n := range r.items {
		if n.OrderID == orderID {
			out = append(out, n)
		}
	}
	sort.Slice(out, func(i, j int) bool { return out[i].CreatedAt.Before(out[j].CreatedAt) })
	return out, nil
}
