package repository

import (
	"context"

	"order-fulfillment/internal/domain"
)

// StockRepository runs ledger mutations as one atomic unit. The unit commits
// only when fn returns nil.
type StockRepository interface {
	Transact(ctx context.Context, fn func(tx LedgerTx) error) error
	FindProduct(ctx context.Context, id uint64) (*domain.Product, error)
	ListProducts(ctx context.Context) ([]domain.Product, error)
	ListTransactions(ctx context.Context, orderID string) ([]domain.StockTransaction, error)
}

// LedgerTx is the view of the store inside a unit of work.
type LedgerTx interface {
	// LockProducts locks the given products in ascending id order and
	// returns the ones that exist.
	LockProducts(ids []uint64) (map[uint64]*domain.Product, error)
	// SaveProduct inserts when p.ID is zero and updates otherwise.
	SaveProduct(p *domain.Product) error
	// Transactions returns the order's rows of the given type, locked for
	// the rest of the unit.
	Transactions(orderID string, typ domain.TransactionType) ([]domain.StockTransaction, error)
	AppendTransaction(t *domain.StockTransaction) error
	SetTransactionState(id uint64, state domain.TransactionState) error
}
