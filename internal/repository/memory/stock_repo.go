package memory

import (
	"context"
	"fmt"
	"sort"
	"sync"
	"time"

	"order-fulfillment/internal/domain"
	"order-fulfillment/internal/repository"
)

// StockRepo serialises every unit of work behind one mutex. A unit edits a
// staged copy that replaces the live state only when it succeeds.
type StockRepo struct {
	mu       sync.Mutex
	products map[uint64]domain.Product
	txs      []domain.StockTransaction
	nextProd uint64
	nextTx   uint64
}

var _ repository.StockRepository = (*StockRepo)(nil)

func NewStockRepo() *StockRepo {
	return &StockRepo{products: make(map[uint64]domain.Product), nextProd: 1, nextTx: 1}
}

func (r *StockRepo) Transact(ctx context.Context, fn func(tx repository.LedgerTx) error) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	r.mu.Lock()
	defer r.mu.Unlock()

	staged := &stagedLedger{
		products: make(map[uint64]domain.Product, len(r.products)),
		txs:      append([]domain.StockTransaction(nil), r.txs...),
		nextProd: r.nextProd,
		nextTx:   r.nextTx,
	}
	for id, p := range r.products {
		staged.products[id] = p
	}
	if err := fn(staged); err != nil {
		return err
	}
	r.products = staged.products
	r.txs = staged.txs
	r.nextProd = staged.nextProd
	r.nextTx = staged.nextTx
	return nil
}

func (r *StockRepo) FindProduct(_ context.Context, id uint64) (*domain.Product, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	p, ok := r.products[id]
	if !ok {
		return nil, nil
	}
	return &p, nil
}

func (r *StockRepo) ListProducts(_ context.Context) ([]domain.Product, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	out := make([]domain.Product, 0, len(r.products))
	for _, p := range r.products {
		out = append(out, p)
	}
	sort.Slice(out, func(i, j int) bool { return out[i].ID < out[j].ID })
	return out, nil
}

func (r *StockRepo) ListTransactions(_ context.Context, orderID string) ([]domain.StockTransaction, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	out := make([]domain.StockTransaction, 0)
	for _, t := range r.txs {
		if orderID == "" || t.OrderID == orderID {
			out = append(out, t)
		}
	}
	return out, nil
}

type stagedLedger struct {
	products map[uint64]domain.Product
	txs      []domain.StockTransaction
	nextProd uint64
	nextTx   uint64
}

func (s *stagedLedger) LockProducts(ids []uint64) (map[uint64]*domain.Product, error) {
	out := make(map[uint64]*domain.Product, len(ids))
	for _, id := range ids {
		if p, ok := s.products[id]; ok {
			cp := p
			out[id] = &cp
		}
	}
	return out, nil
}

func (s *stagedLedger) SaveProduct(p *domain.Product) error {
	now := time.Now().UTC()
	if p.ID == 0 {
		p.ID = s.nextProd
		s.nextProd++
		p.CreatedAt = now
	} else if _, ok := s.products[p.ID]; !ok {
		return domain.ErrProductNotFound
	}
	p.UpdatedAt = now
	s.products[p.ID] = *p
	return nil
}

func (s *stagedLedger) Transactions(orderID string, typ domain.TransactionType) ([]domain.StockTransaction, error) {
	var out []domain.StockTransaction
	for _, t := range s.txs {
		if t.OrderID == orderID && t.Type == typ {
			out = append(out, t)
		}
	}
	return out, nil
}

func (s *stagedLedger) AppendTransaction(t *domain.StockTransaction) error {
	now := time.Now().UTC()
	t.ID = s.nextTx
	s.nextTx++
	t.CreatedAt = now
	t.UpdatedAt = now
	s.txs = append(s.txs, *t)
	return nil
}

func (s *stagedLedger) SetTransactionState(id uint64, state domain.TransactionState) error {
	for i := range s.txs {
		if s.txs[i].ID == id {
			s.txs[i].State = state
			s.txs[i].UpdatedAt = time.Now().UTC()
			return nil
		}
	}
	return fmt.Errorf("stock transaction %d not found", id)
}
