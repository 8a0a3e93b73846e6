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

type verificationRepo struct {
	db *gorm.DB
}

func NewVerificationRepository(db *gorm.DB) repository.VerificationRepository {
	return &verificationRepo{db: db}
}

func (r *verificationRepo) Create(ctx context.Context, v *domain.PendingVerification) (*domain.PendingVerification, bool, error) {
	err := r.db.WithContext(ctx).Create(v).Error
	if err == nil {
		return v, true, nil
	}
	if !errors.Is(err, gorm.ErrDuplicatedKey) {
		return nil, false, fmt.Errorf("create verification %s: %w", v.OrderID, err)
	}
	existing, err := r.FindByOrderID(ctx, v.OrderID)
	if err != nil {
		return nil, false, err
	}
	if existing == nil {
		return nil, false, fmt.Errorf("verification %s vanished after duplicate insert", v.OrderID)
	}
	return existing, false, nil
}

func (r *verificationRepo) FindByOrderID(ctx context.Context, orderID string) (*domain.PendingVerification, error) {
	var v domain.PendingVerification
	if err := r.db.WithContext(ctx).First(&v, "order_id = ?", orderID).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, nil
		}
		return nil, fmt.Errorf("find verification %s: %w", orderID, err)
	}
	return &v, nil
}

func (r *verificationRepo) ListByStatus(ctx context.Context, status domain.VerificationStatus) ([]domain.PendingVerification, error) {
	var out []domain.PendingVerification
	q := r.db.WithContext(ctx).Order("created_at")
	if status != "" {
		q = q.Where("status = ?", status)
	}
	if err := q.Find(&out).Error; err != nil {
		return nil, fmt.Errorf("list verifications: %w", err)
	}
	return out, nil
}

func (r *verificationRepo) ResolveIfPending(ctx context.Context, orderID string, res domain.Resolution) (bool, error) {
	at := res.At
	tx := r.db.WithContext(ctx).
		Model(&domain.PendingVerification{}).
		Where("order_id = ? AND status = ?", orderID, domain.VerificationPending).
		Updates(map[string]any{
			"status":      res.Status,
			"resolved_by": res.ResolvedBy,
			"reason":      res.Reason,
			"resolved_at": &at,
		})
	if tx.Error != nil {
		return false, fmt.Errorf("resolve verification %s: %w", orderID, tx.Error)
	}
	return tx.RowsAffected == 1, nil
}

func (r *verificationRepo) MarkStockReserved(ctx context.Context, orderID string, at time.Time) (bool, error) {
	tx := r.db.WithContext(ctx).
		Model(&domain.PendingVerification{}).
		Where("order_id = ? AND stock_reserved_at IS NULL", orderID).
		Update("stock_reserved_at", &at)
	if tx.Error != nil {
		return false, fmt.Errorf("mark stock reserved %s: %w", orderID, tx.Error)
	}
	return tx.RowsAffected == 1, nil
}

func (r *verificationRepo) MarkPublished(ctx context.Context, orderID string, at time.Time) error {
	tx := r.db.WithContext(ctx).
		Model(&domain.PendingVerification{}).
		Where("order_id = ?", orderID).
		Update("published_at", &at)
	if tx.Error != nil {
		return fmt.Errorf("mark verification %s published: %w", orderID, tx.Error)
	}
	if tx.RowsAffected == 0 {
		return domain.ErrVerificationNotFound
	}
	return nil
}
