package mysql

import (
	"context"
	"errors"
	"fmt"
	"sort"

	"order-fulfillment/internal/domain"
	"order-fulfillment/internal/repository"

	"gorm.io/gorm"
	"gorm.io/gorm/clause"
)

type stockRepo struct {
	db *gorm.DB
}

func NewStockRepository(db *gorm.DB) repository.StockRepository {
	return &stockRepo{db: db}
}

func (r *stockRepo) Transact(ctx context.Context, fn func(tx repository.LedgerTx) error) error {
	return r.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		return fn(&ledgerTx{db: tx})
	})
}

func (r *stockRepo) FindProduct(ctx context.Context, id uint64) (*domain.Product, error) {
	var p domain.Product
	if err := r.db.WithContext(ctx).First(&p, id).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, nil
		}
		return nil, fmt.Errorf("find product %d: %w", id, err)
	}
	return &p, nil
}

func (r *stockRepo) ListProducts(ctx context.Context) ([]domain.Product, error) {
	var out []domain.Product
	if err := r.db.WithContext(ctx).Order("id").Find(&out).Error; err != nil {
		return nil, fmt.Errorf("list products: %w", err)
	}
	return out, nil
}

func (r *stockRepo) ListTransactions(ctx context.Context, orderID string) ([]domain.StockTransaction, error) {
	var out []domain.StockTransaction
	q := r.db.WithContext(ctx).Order("id")
	if orderID != "" {
		q = q.Where("order_id = ?", orderID)
	}
	if err := q.Find(&out).Error; err != nil {
		return nil, fmt.Errorf("list stock transactions: %w", err)
	}
	return out, nil
}

type ledgerTx struct {
	db *gorm.DB
}

func (t *ledgerTx) LockProducts(ids []uint64) (map[uint64]*domain.Product, error) {
	sorted := append([]uint64(nil), ids...)
	sort.Slice(sorted, func(i, j int) bool { return sorted[i] < sorted[j] })

	var rows []domain.Product
	err := t.db.Clauses(clause.Locking{Strength: "UPDATE"}).
		Where("id IN ?", sorted).
		Order("id").
		Find(&rows).Error
	if err != nil {
		return nil, fmt.Errorf("lock products: %w", err)
	}
	out := make(map[uint64]*domain.Product, len(rows))
	for i := range rows {
		out[rows[i].ID] = &rows[i]
	}
	return out, nil
}

func (t *ledgerTx) SaveProduct(p *domain.Product) error {
	if p.ID == 0 {
		return t.db.Create(p).Error
	}
	return t.db.Model(p).Updates(map[string]any{
		"name":     p.Name,
		"price":    p.Price,
		"stock":    p.Stock,
		"reserved": p.Reserved,
	}).Error
}

func (t *ledgerTx) Transactions(orderID string, typ domain.TransactionType) ([]domain.StockTransaction, error) {
	var out []domain.StockTransaction
	err := t.db.Clauses(clause.Locking{Strength: "UPDATE"}).
		Where("order_id = ? AND type = ?", orderID, typ).
		Order("id").
		Find(&out).Error
	if err != nil {
		return nil, fmt.Errorf("load %s transactions for %s: %w", typ, orderID, err)
	}
	return out, nil
}

func (t *ledgerTx) AppendTransaction(st *domain.StockTransaction) error {
	return t.db.Create(st).Error
}

func (t *ledgerTx) SetTransactionState(id uint64, state domain.TransactionState) error {
	return t.db.Model(&domain.StockTransaction{}).Where("id = ?", id).Update("state", state).Error
}
