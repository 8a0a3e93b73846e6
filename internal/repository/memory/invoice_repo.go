package memory

import (
	"context"
	"sync"
	"time"

	"order-fulfillment/internal/domain"
	"order-fulfillment/internal/repository"
)

type InvoiceRepo struct {
	mu       sync.Mutex
	invoices map[string]domain.Invoice
	// active maps order id to the id of its non-cancelled invoice.
	active map[string]string
}

var _ repository.InvoiceRepository = (*InvoiceRepo)(nil)

func NewInvoiceRepo() *InvoiceRepo {
	return &InvoiceRepo{
		invoices: make(map[string]domain.Invoice),
		active:   make(map[string]string),
	}
}

func (r *InvoiceRepo) Create(_ context.Context, inv *domain.Invoice) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	if inv.ActiveOrderID != nil {
		if _, taken := r.active[*inv.ActiveOrderID]; taken {
			return domain.ErrDuplicate
		}
		r.active[*inv.ActiveOrderID] = inv.ID
	}
	r.invoices[inv.ID] = cloneInvoice(*inv)
	return nil
}

func (r *InvoiceRepo) FindByID(_ context.Context, id string) (*domain.Invoice, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	inv, ok := r.invoices[id]
	if !ok {
		return nil, nil
	}
	c := cloneInvoice(inv)
	return &c, nil
}

func (r *InvoiceRepo) FindActiveByOrderID(_ context.Context, orderID string) (*domain.Invoice, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	id, ok := r.active[orderID]
	if !ok {
		return nil, nil
	}
	c := cloneInvoice(r.invoices[id])
	return &c, nil
}

func (r *InvoiceRepo) FindByOrderID(ctx context.Context, orderID string) (*domain.Invoice, error) {
	if inv, err := r.FindActiveByOrderID(ctx, orderID); err != nil || inv != nil {
		return inv, err
	}
	r.mu.Lock()
	defer r.mu.Unlock()
	var newest *domain.Invoice
	for _, inv := range r.invoices {
		if inv.OrderID != orderID {
			continue
		}
		if newest == nil || inv.CreatedAt.After(newest.CreatedAt) {
			c := cloneInvoice(inv)
			newest = &c
		}
	}
	return newest, nil
}

func (r *InvoiceRepo) Update(_ context.Context, inv *domain.Invoice) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	stored, ok := r.invoices[inv.ID]
	if !ok {
		return domain.ErrInvoiceNotFound
	}
	if stored.ActiveOrderID != nil && inv.ActiveOrderID == nil {
		delete(r.active, *stored.ActiveOrderID)
	}
	stored.Status = inv.Status
	stored.PaidAt = inv.PaidAt
	stored.ActiveOrderID = inv.ActiveOrderID
	stored.UpdatedAt = time.Now().UTC()
	r.invoices[inv.ID] = stored
	return nil
}

func (r *InvoiceRepo) ListIssuedDueBefore(_ context.Context, cutoff time.Time) ([]domain.Invoice, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	var out []domain.Invoice
	for _, inv := range r.invoices {
		if inv.Status == domain.InvoiceIssued && inv.DueDate.Before(cutoff) {
			out = append(out, cloneInvoice(inv))
		}
	}
	return out, nil
}

func cloneInvoice(inv domain.Invoice) domain.Invoice {
	inv.Items = append([]domain.InvoiceItem(nil), inv.Items...)
	if inv.ActiveOrderID != nil {
		id := *inv.ActiveOrderID
		inv.ActiveOrderID = &id
	}
	return inv
}
