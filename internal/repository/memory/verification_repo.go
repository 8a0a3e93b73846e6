package memory

import (
	"context"
	"sort"
	"sync"
	"time"

	"order-fulfillment/internal/domain"
	"order-fulfillment/internal/repository"
)

type VerificationRepo struct {
	mu      sync.Mutex
	entries map[string]domain.PendingVerification
}

var _ repository.VerificationRepository = (*VerificationRepo)(nil)

func NewVerificationRepo() *VerificationRepo {
	return &VerificationRepo{entries: make(map[string]domain.PendingVerification)}
}

func (r *VerificationRepo) Create(_ context.Context, v *domain.PendingVerification) (*domain.PendingVerification, bool, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	if existing, ok := r.entries[v.OrderID]; ok {
		return &existing, false, nil
	}
	now := time.Now().UTC()
	v.CreatedAt = now
	v.UpdatedAt = now
	r.entries[v.OrderID] = *v
	stored := *v
	return &stored, true, nil
}

func (r *VerificationRepo) FindByOrderID(_ context.Context, orderID string) (*domain.PendingVerification, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	v, ok := r.entries[orderID]
	if !ok {
		return nil, nil
	}
	return &v, nil
}

func (r *VerificationRepo) ListByStatus(_ context.Context, status domain.VerificationStatus) ([]domain.PendingVerification, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	out := make([]domain.PendingVerification, 0, len(r.entries))
	for _, v := range r.entries {
		if status == "" || v.Status == status {
			out = append(out, v)
		}
	}
	sort.Slice(out, func(i, j int) bool { return out[i].CreatedAt.Before(out[j].CreatedAt) })
	return out, nil
}

func (r *VerificationRepo) ResolveIfPending(_ context.Context, orderID string, res domain.Resolution) (bool, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	v, ok := r.entries[orderID]
	if !ok || v.Status != domain.VerificationPending {
		return false, nil
	}
	at := res.At
	v.Status = res.Status
	v.ResolvedBy = res.ResolvedBy
	v.Reason = res.Reason
	v.ResolvedAt = &at
	v.UpdatedAt = time.Now().UTC()
	r.entries[orderID] = v
	return true, nil
}

func (r *VerificationRepo) MarkStockReserved(_ context.Context, orderID string, at time.Time) (bool, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	v, ok := r.entries[orderID]
	if !ok || v.StockReservedAt != nil {
		return false, nil
	}
	v.StockReservedAt = &at
	v.UpdatedAt = time.Now().UTC()
	r.entries[orderID] = v
	return true, nil
}

func (r *VerificationRepo) MarkPublished(_ context.Context, orderID string, at time.Time) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	v, ok := r.entries[orderID]
	if !ok {
		return domain.ErrVerificationNotFound
	}
	v.PublishedAt = &at
	v.UpdatedAt = time.Now().UTC()
	r.entries[orderID] = v
	return nil
}
