package mysql

import (
	"context"
	"errors"
	"fmt"
	"time"

	"order-fulfillment/internal/domain"
	"order-fulfillment/internal/repository"

	"gorm.io/gorm"
)

type invoiceRepo struct {
	db *gorm.DB
}

func NewInvoiceRepository(db *gorm.DB) repository.InvoiceRepository {
	return &invoiceRepo{db: db}
}

func (r *invoiceRepo) Create(ctx context.Context, inv *domain.Invoice) error {
	err := r.db.WithContext(ctx).Create(inv).Error
	if errors.Is(err, gorm.ErrDuplicatedKey) {
		return domain.ErrDuplicate
	}
	if err != nil {
		return fmt.Errorf("create invoice for order %s: %w", inv.OrderID, err)
	}
	return nil
}

func (r *invoiceRepo) FindByID(ctx context.Context, id string) (*domain.Invoice, error) {
	return r.first(r.db.WithContext(ctx).Where("id = ?", id))
}

func (r *invoiceRepo) FindActiveByOrderID(ctx context.Context, orderID string) (*domain.Invoice, error) {
	return r.first(r.db.WithContext(ctx).Where("active_order_id = ?", orderID))
}

func (r *invoiceRepo) FindByOrderID(ctx context.Context, orderID string) (*domain.Invoice, error) {
	inv, err := r.FindActiveByOrderID(ctx, orderID)
	if err != nil || inv != nil {
		return inv, err
	}
	return r.first(r.db.WithContext(ctx).Where("order_id = ?", orderID).Order("created_at DESC"))
}

func (r *invoiceRepo) first(q *gorm.DB) (*domain.Invoice, error) {
	var inv domain.Invoice
	if err := q.Preload("Items").First(&inv).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, nil
		}
		return nil, fmt.Errorf("find invoice: %w", err)
	}
	return &inv, nil
}

func (r *invoiceRepo) Update(ctx context.Context, inv *domain.Invoice) error {
	err := r.db.WithContext(ctx).Model(inv).Select("status", "paid_at", "active_order_id", "updated_at").Updates(inv).Error
	if err != nil {
		return fmt.Errorf("update invoice %s: %w", inv.ID, err)
	}
	return nil
}

func (r *invoiceRepo) ListIssuedDueBefore(ctx context.Context, cutoff time.Time) ([]domain.Invoice, error) {
	var out []domain.Invoice
	err := r.db.WithContext(ctx).
		Where("status = ? AND due_date < ?", domain.InvoiceIssued, cutoff).
		Find(&out).Error
	if err != nil {
		return nil, fmt.Errorf("list overdue invoices: %w", err)
	}
	return out, nil
}
