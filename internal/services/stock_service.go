package services

import (
	"context"
	"errors"
	"fmt"
	"sort"

	"order-fulfillment/internal/contracts"
	"order-fulfillment/internal/domain"
	"order-fulfillment/internal/infra"
	rabbit "order-fulfillment/internal/infra/rabbitmq"
	"order-fulfillment/internal/repository"

	"github.com/shopspring/decimal"
	"go.uber.org/zap"
)

// StockService is the stock ledger. Every mutation runs in one repository
// unit that locks the touched products, so 0 <= reserved <= stock holds
// after each call whatever the interleaving.
type StockService struct {
	repo  repository.StockRepository
	audit infra.AuditSink
	out   emitter
	log   *zap.Logger
}

func NewStockService(repo repository.StockRepository, audit infra.AuditSink, pub rabbit.PublisherInterface, log *zap.Logger) *StockService {
	return &StockService{
		repo:  repo,
		audit: audit,
		out:   emitter{pub: pub, source: "stock-service"},
		log:   log,
	}
}

// Reserve holds stock for every line or for none. A second call for the
// same order is a no-op. An order whose release already reached the ledger
// is refused with ErrOrderReleased.
func (s *StockService) Reserve(ctx context.Context, orderID string, items []domain.StockLine) (*domain.LedgerResult, error) {
	if orderID == "" {
		return nil, domain.ErrInvalidOrder
	}
	lines, err := mergeLines(items)
	if err != nil {
		return nil, err
	}

	res := &domain.LedgerResult{OrderID: orderID}
	err = s.repo.Transact(ctx, func(tx repository.LedgerTx) error {
		products, err := tx.LockProducts(lineIDs(lines))
		if err != nil {
			return err
		}
		existing, err := tx.Transactions(orderID, domain.TxSale)
		if err != nil {
			return err
		}
		if len(existing) > 0 {
			res.Transactions = existing
			return nil
		}
		returns, err := tx.Transactions(orderID, domain.TxReturn)
		if err != nil {
			return err
		}
		if len(returns) > 0 {
			return domain.ErrOrderReleased
		}
		if err := checkAvailable(products, lines); err != nil {
			return err
		}

		for _, l := range lines {
			p := products[l.ProductID]
			p.Reserved += l.Quantity
			if err := tx.SaveProduct(p); err != nil {
				return err
			}
			t := domain.StockTransaction{
				ProductID: l.ProductID,
				OrderID:   orderID,
				Quantity:  l.Quantity,
				Type:      domain.TxSale,
				State:     domain.TxStateReserved,
			}
			if err := tx.AppendTransaction(&t); err != nil {
				return err
			}
			res.Transactions = append(res.Transactions, t)
		}
		res.Applied = true
		return nil
	})
	if err != nil {
		return nil, fmt.Errorf("reserve stock for order %s: %w", orderID, err)
	}
	s.record(ctx, res)
	return res, nil
}

// Confirm commits the order's open reservation. Without one there is nothing
// to confirm yet and the call returns an empty result.
func (s *StockService) Confirm(ctx context.Context, orderID string) (*domain.LedgerResult, error) {
	return s.settle(ctx, orderID, true)
}

// Release returns the order's open reservation to available stock. A
// release that arrives before any reservation leaves a marker so the late
// reserve is refused.
func (s *StockService) Release(ctx context.Context, orderID string) (*domain.LedgerResult, error) {
	return s.settle(ctx, orderID, false)
}

func (s *StockService) settle(ctx context.Context, orderID string, commit bool) (*domain.LedgerResult, error) {
	if orderID == "" {
		return nil, domain.ErrInvalidOrder
	}
	ids, err := s.reservedProducts(ctx, orderID)
	if err != nil {
		return nil, err
	}
	res := &domain.LedgerResult{OrderID: orderID}
	if len(ids) == 0 {
		if commit {
			return res, nil
		}
		return s.markReleased(ctx, orderID)
	}

	err = s.repo.Transact(ctx, func(tx repository.LedgerTx) error {
		products, err := tx.LockProducts(ids)
		if err != nil {
			return err
		}
		rows, err := tx.Transactions(orderID, domain.TxSale)
		if err != nil {
			return err
		}
		touched := make(map[uint64]bool)
		for _, row := range rows {
			if row.State != domain.TxStateReserved {
				continue
			}
			p := products[row.ProductID]
			if p == nil {
				more, err := tx.LockProducts([]uint64{row.ProductID})
				if err != nil {
					return err
				}
				if p = more[row.ProductID]; p == nil {
					return fmt.Errorf("%w: %d", domain.ErrProductNotFound, row.ProductID)
				}
				products[row.ProductID] = p
			}

			if commit {
				if p.Reserved < row.Quantity {
					s.log.Warn("stale reservation skipped",
						zap.String("order_id", orderID),
						zap.Uint64("product_id", p.ID),
						zap.Int64("reserved", p.Reserved),
						zap.Int64("quantity", row.Quantity))
					continue
				}
				p.Reserved -= row.Quantity
				p.Stock -= row.Quantity
				if err := tx.SetTransactionState(row.ID, domain.TxStateCommitted); err != nil {
					return err
				}
				row.State = domain.TxStateCommitted
				res.Transactions = append(res.Transactions, row)
			} else {
				p.Reserved -= min(row.Quantity, p.Reserved)
				if err := tx.SetTransactionState(row.ID, domain.TxStateReleased); err != nil {
					return err
				}
				row.State = domain.TxStateReleased
				ret := domain.StockTransaction{
					ProductID: row.ProductID,
					OrderID:   orderID,
					Quantity:  row.Quantity,
					Type:      domain.TxReturn,
					State:     domain.TxStateApplied,
				}
				if err := tx.AppendTransaction(&ret); err != nil {
					return err
				}
				res.Transactions = append(res.Transactions, row, ret)
			}
			touched[p.ID] = true
		}
		for id := range touched {
			if err := tx.SaveProduct(products[id]); err != nil {
				return err
			}
		}
		res.Applied = len(touched) > 0
		return nil
	})
	if err != nil {
		op := "release"
		if commit {
			op = "confirm"
		}
		return nil, fmt.Errorf("%s stock for order %s: %w", op, orderID, err)
	}
	s.record(ctx, res)
	return res, nil
}

// markReleased writes a zero quantity Return row for an order the ledger
// has never seen. Orders with any Sale or Return row are left alone.
func (s *StockService) markReleased(ctx context.Context, orderID string) (*domain.LedgerResult, error) {
	res := &domain.LedgerResult{OrderID: orderID}
	err := s.repo.Transact(ctx, func(tx repository.LedgerTx) error {
		for _, typ := range []domain.TransactionType{domain.TxSale, domain.TxReturn} {
			rows, err := tx.Transactions(orderID, typ)
			if err != nil {
				return err
			}
			if len(rows) > 0 {
				return nil
			}
		}
		t := domain.StockTransaction{
			OrderID: orderID,
			Type:    domain.TxReturn,
			State:   domain.TxStateApplied,
		}
		if err := tx.AppendTransaction(&t); err != nil {
			return err
		}
		res.Transactions = append(res.Transactions, t)
		res.Applied = true
		return nil
	})
	if err != nil {
		return nil, fmt.Errorf("release stock for order %s: %w", orderID, err)
	}
	if res.Applied {
		s.log.Info("release arrived before reservation", zap.String("order_id", orderID))
	}
	s.record(ctx, res)
	return res, nil
}

// Deduct removes stock directly, without a prior reservation. With an order
// id it runs at most once per order.
func (s *StockService) Deduct(ctx context.Context, orderID string, items []domain.StockLine) (*domain.LedgerResult, error) {
	lines, err := mergeLines(items)
	if err != nil {
		return nil, err
	}
	res := &domain.LedgerResult{OrderID: orderID}
	err = s.repo.Transact(ctx, func(tx repository.LedgerTx) error {
		products, err := tx.LockProducts(lineIDs(lines))
		if err != nil {
			return err
		}
		if orderID != "" {
			existing, err := tx.Transactions(orderID, domain.TxAdjustment)
			if err != nil {
				return err
			}
			if len(existing) > 0 {
				res.Transactions = existing
				return nil
			}
		}
		if err := checkAvailable(products, lines); err != nil {
			return err
		}
		for _, l := range lines {
			p := products[l.ProductID]
			p.Stock -= l.Quantity
			if err := tx.SaveProduct(p); err != nil {
				return err
			}
			t := domain.StockTransaction{
				ProductID: l.ProductID,
				OrderID:   orderID,
				Quantity:  l.Quantity,
				Type:      domain.TxAdjustment,
				State:     domain.TxStateApplied,
			}
			if err := tx.AppendTransaction(&t); err != nil {
				return err
			}
			res.Transactions = append(res.Transactions, t)
		}
		res.Applied = true
		return nil
	})
	if err != nil {
		return nil, fmt.Errorf("deduct stock: %w", err)
	}
	s.record(ctx, res)
	return res, nil
}

// ConfirmOrDeduct serves stock.deduct: an order that holds a reservation is
// confirmed through the same path as order.approved, anything else is a
// direct deduction.
func (s *StockService) ConfirmOrDeduct(ctx context.Context, orderID string, items []domain.StockLine) (*domain.LedgerResult, error) {
	if orderID != "" {
		ids, err := s.reservedProducts(ctx, orderID)
		if err != nil {
			return nil, err
		}
		if len(ids) > 0 {
			return s.Confirm(ctx, orderID)
		}
		rows, err := s.repo.ListTransactions(ctx, orderID)
		if err != nil {
			return nil, err
		}
		for _, r := range rows {
			if r.Type == domain.TxSale || r.Type == domain.TxReturn {
				// reservation already settled or released
				return &domain.LedgerResult{OrderID: orderID}, nil
			}
		}
	}
	return s.Deduct(ctx, orderID, items)
}

// ReserveForOrder reserves and announces the outcome to the order service
// and the verification gate.
func (s *StockService) ReserveForOrder(ctx context.Context, orderID string, items []domain.StockLine) error {
	_, err := s.Reserve(ctx, orderID, items)
	switch {
	case err == nil:
		return s.out.emit(ctx, contracts.ExchangeVerification, contracts.KeyStockReserved,
			contracts.TypeStockReserved, orderID, contracts.StockReservationResult{OrderID: orderID})
	case domain.IsBusiness(err):
		reason := reservationReason(err)
		s.log.Info("reservation refused", zap.String("order_id", orderID), zap.String("reason", reason))
		if perr := s.out.emit(ctx, contracts.ExchangeVerification, contracts.KeyStockReservationFailed,
			contracts.TypeStockReservationFailed, orderID, contracts.StockReservationResult{OrderID: orderID, Reason: reason}); perr != nil {
			return perr
		}
		return err
	default:
		return err
	}
}

func reservationReason(err error) string {
	for _, known := range []error{domain.ErrInsufficientStock, domain.ErrProductNotFound, domain.ErrInvalidQuantity,
		domain.ErrInvalidOrder, domain.ErrOrderReleased} {
		if errors.Is(err, known) {
			return known.Error()
		}
	}
	return err.Error()
}

func (s *StockService) CreateProduct(ctx context.Context, name string, price decimal.Decimal, stock int64) (*domain.Product, error) {
	if name == "" || price.IsNegative() {
		return nil, domain.ErrInvalidProduct
	}
	if stock < 0 {
		return nil, domain.ErrInvalidQuantity
	}
	p := &domain.Product{Name: name, Price: price, Stock: stock}
	res := &domain.LedgerResult{}
	err := s.repo.Transact(ctx, func(tx repository.LedgerTx) error {
		if err := tx.SaveProduct(p); err != nil {
			return err
		}
		if stock == 0 {
			return nil
		}
		t := domain.StockTransaction{ProductID: p.ID, Quantity: stock, Type: domain.TxPurchase, State: domain.TxStateApplied}
		if err := tx.AppendTransaction(&t); err != nil {
			return err
		}
		res.Transactions = append(res.Transactions, t)
		res.Applied = true
		return nil
	})
	if err != nil {
		return nil, fmt.Errorf("create product: %w", err)
	}
	s.record(ctx, res)
	return p, nil
}

func (s *StockService) Restock(ctx context.Context, id uint64, qty int64) (*domain.Product, error) {
	if qty <= 0 {
		return nil, domain.ErrInvalidQuantity
	}
	var out *domain.Product
	res := &domain.LedgerResult{}
	err := s.repo.Transact(ctx, func(tx repository.LedgerTx) error {
		products, err := tx.LockProducts([]uint64{id})
		if err != nil {
			return err
		}
		p := products[id]
		if p == nil {
			return domain.ErrProductNotFound
		}
		p.Stock += qty
		if err := tx.SaveProduct(p); err != nil {
			return err
		}
		t := domain.StockTransaction{ProductID: id, Quantity: qty, Type: domain.TxPurchase, State: domain.TxStateApplied}
		if err := tx.AppendTransaction(&t); err != nil {
			return err
		}
		res.Transactions = append(res.Transactions, t)
		res.Applied = true
		out = p
		return nil
	})
	if err != nil {
		return nil, fmt.Errorf("restock product %d: %w", id, err)
	}
	s.record(ctx, res)
	return out, nil
}

func (s *StockService) GetProduct(ctx context.Context, id uint64) (*domain.Product, error) {
	p, err := s.repo.FindProduct(ctx, id)
	if err != nil {
		return nil, err
	}
	if p == nil {
		return nil, domain.ErrProductNotFound
	}
	return p, nil
}

func (s *StockService) ListProducts(ctx context.Context) ([]domain.Product, error) {
	return s.repo.ListProducts(ctx)
}

func (s *StockService) ListTransactions(ctx context.Context, orderID string) ([]domain.StockTransaction, error) {
	return s.repo.ListTransactions(ctx, orderID)
}

func (s *StockService) reservedProducts(ctx context.Context, orderID string) ([]uint64, error) {
	rows, err := s.repo.ListTransactions(ctx, orderID)
	if err != nil {
		return nil, fmt.Errorf("load transactions for %s: %w", orderID, err)
	}
	seen := make(map[uint64]bool)
	var ids []uint64
	for _, r := range rows {
		if r.Type == domain.TxSale && r.State == domain.TxStateReserved && !seen[r.ProductID] {
			seen[r.ProductID] = true
			ids = append(ids, r.ProductID)
		}
	}
	return ids, nil
}

func (s *StockService) record(ctx context.Context, res *domain.LedgerResult) {
	if s.audit != nil && res.Applied {
		s.audit.Record(ctx, res.Transactions)
	}
}

// mergeLines validates lines and folds repeated products into one line,
// ordered by product id.
func mergeLines(items []domain.StockLine) ([]domain.StockLine, error) {
	if len(items) == 0 {
		return nil, domain.ErrInvalidOrder
	}
	qty := make(map[uint64]int64, len(items))
	for _, it := range items {
		if it.Quantity <= 0 {
			return nil, fmt.Errorf("%w: product %d", domain.ErrInvalidQuantity, it.ProductID)
		}
		qty[it.ProductID] += it.Quantity
	}
	out := make([]domain.StockLine, 0, len(qty))
	for id, q := range qty {
		out = append(out, domain.StockLine{ProductID: id, Quantity: q})
	}
	sort.Slice(out, func(i, j int) bool { return out[i].ProductID < out[j].ProductID })
	return out, nil
}

func lineIDs(lines []domain.StockLine) []uint64 {
	ids := make([]uint64, len(lines))
	for i, l := range lines {
		ids[i] = l.ProductID
	}
	return ids
}

func checkAvailable(products map[uint64]*domain.Product, lines []domain.StockLine) error {
	for _, l := range lines {
		p := products[l.ProductID]
		if p == nil {
			return fmt.Errorf("%w: %d", domain.ErrProductNotFound, l.ProductID)
		}
		if p.Available() < l.Quantity {
			return fmt.Errorf("%w: product %d has %d available, %d requested",
				domain.ErrInsufficientStock, p.ID, p.Available(), l.Quantity)
		}
	}
	return nil
}
