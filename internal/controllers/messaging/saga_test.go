package messaging

import (
	"context"
	"errors"
	"strings"
	"testing"

	"order-fulfillment/internal/contracts"
	"order-fulfillment/internal/domain"
	"order-fulfillment/internal/infra"
	"order-fulfillment/internal/infra/membus"
	"order-fulfillment/internal/repository/memory"
	"order-fulfillment/internal/services"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
	"go.uber.org/zap/zaptest"
)

// The lookups stand in for the HTTP clients, reading the other service
// directly.

type productLookup struct{ stock *services.StockService }

func (l productLookup) GetProductById(ctx context.Context, id uint64) (*infra.ProductInfo, error) {
	p, err := l.stock.GetProduct(ctx, id)
	if errors.Is(err, domain.ErrProductNotFound) {
		return nil, nil
	}
	if err != nil {
		return nil, err
	}
	return &infra.ProductInfo{ID: p.ID, Name: p.Name, Price: p.Price, Stock: p.Stock, Reserved: p.Reserved}, nil
}

type orderLookup struct{ orders *services.OrderService }

func (l orderLookup) GetOrder(ctx context.Context, id string) (*domain.Order, error) {
	o, err := l.orders.GetOrder(ctx, id)
	if errors.Is(err, domain.ErrOrderNotFound) {
		return nil, nil
	}
	return o, err
}

type invoiceLookup struct{ invoices *services.InvoiceService }

func (l invoiceLookup) GetByOrderID(ctx context.Context, orderID string) (*domain.Invoice, error) {
	inv, err := l.invoices.GetByOrderID(ctx, orderID)
	if errors.Is(err, domain.ErrInvoiceNotFound) {
		return nil, nil
	}
	return inv, err
}

type saga struct {
	bus           *membus.Bus
	stock         *services.StockService
	orders        *services.OrderService
	verification  *services.VerificationService
	invoices      *services.InvoiceService
	notifications *services.NotificationService
}

func newSaga(t *testing.T) *saga {
	t.Helper()
	log := zaptest.NewLogger(t)
	bus := membus.New(log)

	s := &saga{bus: bus}
	s.stock = services.NewStockService(memory.NewStockRepo(), nil, bus, log)
	s.orders = services.NewOrderService(memory.NewOrderRepo(), productLookup{s.stock}, bus, log)
	s.verification = services.NewVerificationService(memory.NewVerificationRepo(), bus, log)
	s.verification.SetOrderClient(orderLookup{s.orders})
	s.invoices = services.NewInvoiceService(memory.NewInvoiceRepo(), orderLookup{s.orders}, 1, log)
	s.notifications = services.NewNotificationService(memory.NewNotificationRepo(),
		infra.NewLogTransport(zap.NewNop()), invoiceLookup{s.invoices}, 3, 1, log)

	var routes []Route
	routes = append(routes, OrderRoutes(s.orders)...)
	routes = append(routes, VerificationRoutes(s.verification)...)
	routes = append(routes, StockRoutes(s.stock)...)
	routes = append(routes, InvoiceRoutes(s.invoices)...)
	routes = append(routes, NotificationRoutes(s.notifications)...)
	for _, r := range routes {
		bus.Register(r.Queue, r.Handle)
	}
	return s
}

func (s *saga) product(t *testing.T, name, price string, stock int64) *domain.Product {
	t.Helper()
	p, err := s.stock.CreateProduct(context.Background(), name, decimal.RequireFromString(price), stock)
	require.NoError(t, err)
	return p
}

func (s *saga) order(t *testing.T, productID uint64, qty int64) *domain.Order {
	t.Helper()
	o := s.placeOrder(t, productID, qty)
	s.bus.Drain(context.Background())
	return o
}

// placeOrder leaves the order's messages queued.
func (s *saga) placeOrder(t *testing.T, productID uint64, qty int64) *domain.Order {
	t.Helper()
	o, err := s.orders.CreateOrder(context.Background(), services.CreateOrderInput{
		Customer: domain.Customer{Name: "Grace Hopper", Email: "grace@example.com", Phone: "+15550199"},
		Items:    []services.CreateOrderItem{{ProductID: productID, Quantity: qty}},
	})
	require.NoError(t, err)
	return o
}

func (s *saga) assertStock(t *testing.T, productID uint64, stock, reserved int64) {
	t.Helper()
	p, err := s.stock.GetProduct(context.Background(), productID)
	require.NoError(t, err)
	assert.Equal(t, stock, p.Stock)
	assert.Equal(t, reserved, p.Reserved)
}

func (s *saga) status(t *testing.T, orderID string) domain.OrderStatus {
	t.Helper()
	o, err := s.orders.GetOrder(context.Background(), orderID)
	require.NoError(t, err)
	return o.Status
}

func (s *saga) sentBodies(t *testing.T, orderID string) []string {
	t.Helper()
	ns, err := s.notifications.ListByOrder(context.Background(), orderID)
	require.NoError(t, err)
	var out []string
	for _, n := range ns {
		if n.Status == domain.NotificationSent {
			out = append(out, n.Body)
		}
	}
	return out
}

func containsText(bodies []string, text string) bool {
	for _, b := range bodies {
		if strings.Contains(b, text) {
			return true
		}
	}
	return false
}

func TestSaga_HappyPath(t *testing.T) {
	for _, duplicate := range []bool{false, true} {
		name := "single delivery"
		if duplicate {
			name = "every message delivered twice"
		}
		t.Run(name, func(t *testing.T) {
			s := newSaga(t)
			s.bus.Duplicate = duplicate
			ctx := context.Background()
			a := s.product(t, "Product A", "10", 5)

			o := s.order(t, a.ID, 2)
			assert.Equal(t, domain.StatusStockReserved, s.status(t, o.ID))
			p, err := s.stock.GetProduct(ctx, a.ID)
			require.NoError(t, err)
			assert.Equal(t, int64(2), p.Reserved)
			assert.Equal(t, int64(3), p.Available())

			v, err := s.verification.Get(ctx, o.ID)
			require.NoError(t, err)
			assert.Equal(t, domain.VerificationPending, v.Status)

			_, err = s.verification.Approve(ctx, o.ID, "ops")
			require.NoError(t, err)
			s.bus.Drain(ctx)

			assert.Equal(t, domain.StatusApproved, s.status(t, o.ID))
			p, err = s.stock.GetProduct(ctx, a.ID)
			require.NoError(t, err)
			assert.Equal(t, int64(3), p.Stock)
			assert.Equal(t, int64(0), p.Reserved)

			inv, err := s.invoices.GetByOrderID(ctx, o.ID)
			require.NoError(t, err)
			assert.Equal(t, "24.00", inv.Total.StringFixed(2))
			assert.Equal(t, domain.InvoiceIssued, inv.Status)

			bodies := s.sentBodies(t, o.ID)
			assert.True(t, containsText(bodies, "approved"))
			assert.True(t, containsText(bodies, inv.Number), "approval notification carries the invoice number")
			assert.Equal(t, 0, s.bus.DeadLetters())
		})
	}
}

func TestSaga_InsufficientStock(t *testing.T) {
	s := newSaga(t)
	ctx := context.Background()
	b := s.product(t, "Product B", "7.50", 5)

	o := s.order(t, b.ID, 10)

	o, err := s.orders.GetOrder(ctx, o.ID)
	require.NoError(t, err)
	assert.Equal(t, domain.StatusPending, o.Status)
	assert.Equal(t, domain.ErrInsufficientStock.Error(), o.StatusReason)

	txs, err := s.stock.ListTransactions(ctx, o.ID)
	require.NoError(t, err)
	assert.Empty(t, txs)
	p, err := s.stock.GetProduct(ctx, b.ID)
	require.NoError(t, err)
	assert.Equal(t, int64(0), p.Reserved)

	v, err := s.verification.Get(ctx, o.ID)
	require.NoError(t, err)
	assert.Equal(t, domain.VerificationRejected, v.Status)

	// the gate already closed the entry, so a late approval does nothing
	_, err = s.verification.Approve(ctx, o.ID, "ops")
	require.NoError(t, err)
	s.bus.Drain(ctx)
	_, err = s.invoices.GetByOrderID(ctx, o.ID)
	assert.ErrorIs(t, err, domain.ErrInvoiceNotFound)
	assert.True(t, containsText(s.sentBodies(t, o.ID), "could not be fulfilled"))
	assert.Equal(t, 0, s.bus.DeadLetters())
}

func TestSaga_RejectReleasesStock(t *testing.T) {
	s := newSaga(t)
	ctx := context.Background()
	a := s.product(t, "Product A", "10", 5)

	o := s.order(t, a.ID, 3)
	require.Equal(t, domain.StatusStockReserved, s.status(t, o.ID))

	_, err := s.verification.Reject(ctx, o.ID, "address could not be verified")
	require.NoError(t, err)
	s.bus.Drain(ctx)

	assert.Equal(t, domain.StatusCancelled, s.status(t, o.ID))
	p, err := s.stock.GetProduct(ctx, a.ID)
	require.NoError(t, err)
	assert.Equal(t, int64(0), p.Reserved)
	assert.Equal(t, int64(5), p.Available())

	_, err = s.invoices.GetByOrderID(ctx, o.ID)
	assert.ErrorIs(t, err, domain.ErrInvoiceNotFound)
	assert.Empty(t, s.bus.Published(contracts.KeyOrderApproved))
	assert.True(t, containsText(s.sentBodies(t, o.ID), "cancelled"))
}

func TestSaga_DuplicateApprovalIsAppliedOnce(t *testing.T) {
	s := newSaga(t)
	ctx := context.Background()
	a := s.product(t, "Product A", "10", 5)
	o := s.order(t, a.ID, 2)

	_, err := s.verification.Approve(ctx, o.ID, "ops")
	require.NoError(t, err)
	approved := s.bus.Published(contracts.KeyOrderApproved)
	require.Len(t, approved, 1)

	// broker redelivery of the very same envelope
	require.NoError(t, s.bus.Publish(ctx, contracts.ExchangeVerification, contracts.KeyOrderApproved, approved[0].Envelope))
	s.bus.Drain(ctx)

	p, err := s.stock.GetProduct(ctx, a.ID)
	require.NoError(t, err)
	assert.Equal(t, int64(3), p.Stock)
	assert.Equal(t, int64(0), p.Reserved)

	txs, err := s.stock.ListTransactions(ctx, o.ID)
	require.NoError(t, err)
	committed := 0
	for _, tx := range txs {
		if tx.State == domain.TxStateCommitted {
			committed++
		}
	}
	assert.Equal(t, 1, committed)

	inv, err := s.invoices.GetByOrderID(ctx, o.ID)
	require.NoError(t, err)
	again, err := s.invoices.CreateInvoice(ctx, o.ID)
	require.NoError(t, err)
	assert.Equal(t, inv.Number, again.Number)

	// a stock.confirm or stock.deduct for the settled order changes nothing
	update := contracts.StockUpdateMessage{OrderID: o.ID, Items: []contracts.LineItem{{ProductID: a.ID, Quantity: 2}}}
	for _, key := range []string{contracts.KeyStockConfirm, contracts.KeyStockDeduct} {
		env, err := contracts.NewEnvelope("ops", contracts.TypeStockUpdate, o.ID, update)
		require.NoError(t, err)
		require.NoError(t, s.bus.Publish(ctx, contracts.ExchangeStock, key, env))
	}
	s.bus.Drain(ctx)
	p, err = s.stock.GetProduct(ctx, a.ID)
	require.NoError(t, err)
	assert.Equal(t, int64(3), p.Stock)
}

func TestSaga_MalformedMessageIsDeadLettered(t *testing.T) {
	s := newSaga(t)
	ctx := context.Background()

	env, err := contracts.NewEnvelope("ops", contracts.TypeNotification, "o-1",
		contracts.NotificationMessage{OrderID: "o-1", Message: "hi", Type: contracts.NotifyEmail, CustomerEmail: "x@example.com"})
	require.NoError(t, err)
	// routed to the ledger's reservation queue, which expects a StockUpdate
	require.NoError(t, s.bus.Publish(ctx, contracts.ExchangeStock, contracts.KeyVerificationReserve, env))
	s.bus.Drain(ctx)

	assert.Equal(t, 1, s.bus.DeadLetters())
}

func TestSaga_AdminCancelReleasesReservation(t *testing.T) {
	s := newSaga(t)
	ctx := context.Background()
	a := s.product(t, "Product A", "10", 5)
	o := s.order(t, a.ID, 4)

	_, err := s.orders.UpdateStatus(ctx, o.ID, "cancelled")
	require.NoError(t, err)
	s.bus.Drain(ctx)

	p, err := s.stock.GetProduct(ctx, a.ID)
	require.NoError(t, err)
	assert.Equal(t, int64(0), p.Reserved)
	assert.Equal(t, int64(5), p.Stock)
}

func TestSaga_CancelBeforeReservation(t *testing.T) {
	s := newSaga(t)
	ctx := context.Background()
	a := s.product(t, "Product A", "10", 5)

	o := s.placeOrder(t, a.ID, 4)
	_, err := s.orders.UpdateStatus(ctx, o.ID, "cancelled")
	require.NoError(t, err)
	s.bus.Drain(ctx)

	assert.Equal(t, domain.StatusCancelled, s.status(t, o.ID))
	s.assertStock(t, a.ID, 5, 0)
	txs, err := s.stock.ListTransactions(ctx, o.ID)
	require.NoError(t, err)
	for _, tx := range txs {
		assert.NotEqual(t, domain.TxSale, tx.Type, "nothing is reserved for a released order")
	}

	v, err := s.verification.Get(ctx, o.ID)
	require.NoError(t, err)
	assert.Equal(t, domain.VerificationRejected, v.Status)

	_, err = s.verification.Approve(ctx, o.ID, "ops")
	require.NoError(t, err)
	s.bus.Drain(ctx)
	assert.Empty(t, s.bus.Published(contracts.KeyOrderApproved))
	s.assertStock(t, a.ID, 5, 0)
	assert.Equal(t, 0, s.bus.DeadLetters())
}

func TestSaga_ApproveBeforeReservationOutcome(t *testing.T) {
	tests := []struct {
		name     string
		stock    int64
		expected domain.OrderStatus
		approved bool
	}{
		{name: "reservation fails", stock: 5, expected: domain.StatusPending},
		{name: "reservation succeeds", stock: 20, expected: domain.StatusApproved, approved: true},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			s := newSaga(t)
			ctx := context.Background()
			b := s.product(t, "Product B", "7.50", tt.stock)

			o := s.placeOrder(t, b.ID, 10)
			_, err := s.verification.HandleReservationRequest(ctx, contracts.VerificationFromOrder(o))
			require.NoError(t, err)

			_, err = s.verification.Approve(ctx, o.ID, "ops")
			assert.ErrorIs(t, err, domain.ErrStockNotReserved)
			assert.Empty(t, s.bus.Published(contracts.KeyOrderApproved))
			s.bus.Drain(ctx)

			_, err = s.verification.Approve(ctx, o.ID, "ops")
			require.NoError(t, err)
			s.bus.Drain(ctx)

			assert.Equal(t, tt.expected, s.status(t, o.ID))
			_, err = s.invoices.GetByOrderID(ctx, o.ID)
			if tt.approved {
				require.NoError(t, err)
				s.assertStock(t, b.ID, tt.stock-10, 0)
			} else {
				assert.ErrorIs(t, err, domain.ErrInvoiceNotFound)
				s.assertStock(t, b.ID, tt.stock, 0)
				assert.False(t, containsText(s.sentBodies(t, o.ID), "has been approved"))
			}
			assert.Equal(t, 0, s.bus.DeadLetters())
		})
	}
}

func TestSaga_ApproveAfterAdminCancel(t *testing.T) {
	for _, drained := range []bool{false, true} {
		name := "cancellation still queued"
		if drained {
			name = "cancellation delivered"
		}
		t.Run(name, func(t *testing.T) {
			s := newSaga(t)
			ctx := context.Background()
			a := s.product(t, "Product A", "10", 5)
			o := s.order(t, a.ID, 2)

			_, err := s.orders.UpdateStatus(ctx, o.ID, "cancelled")
			require.NoError(t, err)
			if drained {
				s.bus.Drain(ctx)
			}

			v, err := s.verification.Approve(ctx, o.ID, "ops")
			if drained {
				require.NoError(t, err)
				assert.Equal(t, domain.VerificationRejected, v.Status)
			} else {
				assert.ErrorIs(t, err, domain.ErrInvalidTransition)
			}
			s.bus.Drain(ctx)

			v, err = s.verification.Get(ctx, o.ID)
			require.NoError(t, err)
			assert.Equal(t, domain.VerificationRejected, v.Status)
			assert.Equal(t, domain.StatusCancelled, s.status(t, o.ID))
			assert.Empty(t, s.bus.Published(contracts.KeyOrderApproved))
			s.assertStock(t, a.ID, 5, 0)
			assert.False(t, containsText(s.sentBodies(t, o.ID), "has been approved"))
			assert.Equal(t, 0, s.bus.DeadLetters())
		})
	}
}

func TestSaga_ApprovalSurvivesPublishFailure(t *testing.T) {
	s := newSaga(t)
	ctx := context.Background()
	a := s.product(t, "Product A", "10", 5)
	o := s.order(t, a.ID, 2)

	s.bus.FailPublishes(errors.New("broker down"))
	_, err := s.verification.Approve(ctx, o.ID, "ops")
	require.Error(t, err)
	s.bus.FailPublishes(nil)
	s.bus.Drain(ctx)
	assert.Equal(t, domain.StatusStockReserved, s.status(t, o.ID))

	_, err = s.verification.Approve(ctx, o.ID, "ops")
	require.NoError(t, err)
	s.bus.Drain(ctx)

	assert.Equal(t, domain.StatusApproved, s.status(t, o.ID))
	s.assertStock(t, a.ID, 3, 0)
	assert.Len(t, s.bus.Published(contracts.KeyOrderApproved), 1)
}
