// Package memory holds map-backed repositories. They back the memory
// storage driver and the saga tests.
package memory

import (
	"context"
	"sort"
	"sync"
	"time"

	"order-fulfillment/internal/domain"
	"order-fulfillment/internal/repository"
)

type OrderRepo struct {
	mu     sync.RWMutex
	orders map[string]domain.Order
}

var _ repository.OrderRepository = (*OrderRepo)(nil)

func NewOrderRepo() *OrderRepo {
	return &OrderRepo{orders: make(map[string]domain.Order)}
}

func (r *OrderRepo) Save(_ context.Context, order *domain.Order) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	if _, ok := r.orders[order.ID]; ok {
		return domain.ErrDuplicate
	}
	r.orders[order.ID] = cloneOrder(*order)
	return nil
}

func (r *OrderRepo) FindByID(_ context.Context, id string) (*domain.Order, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	o, ok := r.orders[id]
	if !ok {
		return nil, nil
	}
	c := cloneOrder(o)
	return &c, nil
}

func (r *OrderRepo) List(_ context.Context, status domain.OrderStatus) ([]domain.Order, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	out := make([]domain.Order, 0, len(r.orders))
	for _, o := range r.orders {
		if status == "" || o.Status == status {
			out = append(out, cloneOrder(o))
		}
	}
	sort.Slice(out, func(i, j int) bool { return out[i].CreatedAt.After(out[j].CreatedAt) })
	return out, nil
}

func (r *OrderRepo) UpdateStatus(_ context.Context, id string, from, to domain.OrderStatus, reason string) (bool, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	o, ok := r.orders[id]
	if !ok || o.Status != from {
		return false, nil
	}
	o.Status = to
	o.StatusReason = reason
	o.UpdatedAt = time.Now().UTC()
	r.orders[id] = o
	return true, nil
}

func cloneOrder(o domain.Order) domain.Order {
	o.Items = append([]domain.OrderItem(nil), o.Items...)
	return o
}
