package services

import (
	"context"
	"errors"
	"fmt"
	"time"

	"order-fulfillment/internal/domain"
	"order-fulfillment/internal/infra"
	"order-fulfillment/internal/repository"

	"github.com/cenkalti/backoff/v4"
	"github.com/google/uuid"
	"go.uber.org/zap"
)

// ErrOrderNotYetApproved means the order may still be approved. It is not a
// business error, so the triggering message is retried.
var ErrOrderNotYetApproved = errors.New("order is still awaiting approval")

type InvoiceService struct {
	repo         repository.InvoiceRepository
	orders       infra.OrderClientInterface
	pollAttempts int
	log          *zap.Logger
	now          func() time.Time
	newBackOff   func() backoff.BackOff
}

func NewInvoiceService(repo repository.InvoiceRepository, orders infra.OrderClientInterface, pollAttempts int, log *zap.Logger) *InvoiceService {
	if pollAttempts < 1 {
		pollAttempts = 1
	}
	return &InvoiceService{
		repo:         repo,
		orders:       orders,
		pollAttempts: pollAttempts,
		log:          log,
		now:          func() time.Time { return time.Now().UTC() },
		newBackOff:   pollBackOff,
	}
}

// CreateInvoice issues the invoice for an approved order. It returns the
// existing invoice when the order already has a live one.
func (s *InvoiceService) CreateInvoice(ctx context.Context, orderID string) (*domain.Invoice, error) {
	if orderID == "" {
		return nil, domain.ErrInvalidOrder
	}
	if inv, err := s.repo.FindActiveByOrderID(ctx, orderID); err != nil || inv != nil {
		return inv, err
	}

	order, err := s.approvedOrder(ctx, orderID)
	if err != nil {
		return nil, err
	}

	now := s.now()
	active := order.ID
	inv := &domain.Invoice{
		ID:            uuid.NewString(),
		OrderID:       order.ID,
		ActiveOrderID: &active,
		Number:        domain.InvoiceNumber(now),
		CustomerName:  order.CustomerName,
		CustomerEmail: order.CustomerEmail,
		Status:        domain.InvoiceIssued,
		IssuedAt:      now,
		DueDate:       now.Add(domain.InvoicePaymentTerm),
		CreatedAt:     now,
		UpdatedAt:     now,
	}
	for _, it := range order.Items {
		inv.Items = append(inv.Items, domain.InvoiceItem{
			InvoiceID: inv.ID,
			ProductID: it.ProductID,
			Quantity:  it.Quantity,
			UnitPrice: it.UnitPrice,
		})
	}
	inv.Compute()

	if err := s.repo.Create(ctx, inv); err != nil {
		if errors.Is(err, domain.ErrDuplicate) {
			winner, ferr := s.repo.FindActiveByOrderID(ctx, orderID)
			if ferr != nil {
				return nil, ferr
			}
			if winner != nil {
				return winner, nil
			}
		}
		return nil, fmt.Errorf("store invoice for order %s: %w", orderID, err)
	}

	s.log.Info("invoice issued",
		zap.String("order_id", orderID),
		zap.String("invoice_id", inv.ID),
		zap.String("number", inv.Number),
		zap.String("total", inv.Total.String()))
	return inv, nil
}

// approvedOrder fetches the order, waiting briefly while it is still in a
// pre-approval state. An order that was cancelled or failed before approval
// never qualifies.
func (s *InvoiceService) approvedOrder(ctx context.Context, orderID string) (*domain.Order, error) {
	op := func() (*domain.Order, error) {
		o, err := s.orders.GetOrder(ctx, orderID)
		if err != nil {
			return nil, backoff.Permanent(err)
		}
		if o == nil {
			return nil, backoff.Permanent(domain.ErrOrderNotFound)
		}
		switch {
		case o.Status.Reached(domain.StatusApproved):
			return o, nil
		case o.Status.Terminal():
			return nil, backoff.Permanent(fmt.Errorf("%w: order %s is %s", domain.ErrOrderNotApproved, orderID, o.Status))
		default:
			return nil, ErrOrderNotYetApproved
		}
	}
	b := backoff.WithContext(backoff.WithMaxRetries(s.newBackOff(), uint64(s.pollAttempts-1)), ctx)
	return backoff.RetryWithData(op, b)
}

func (s *InvoiceService) GetByID(ctx context.Context, id string) (*domain.Invoice, error) {
	inv, err := s.repo.FindByID(ctx, id)
	if err != nil {
		return nil, err
	}
	if inv == nil {
		return nil, domain.ErrInvoiceNotFound
	}
	return inv, nil
}

func (s *InvoiceService) GetByOrderID(ctx context.Context, orderID string) (*domain.Invoice, error) {
	inv, err := s.repo.FindByOrderID(ctx, orderID)
	if err != nil {
		return nil, err
	}
	if inv == nil {
		return nil, domain.ErrInvoiceNotFound
	}
	return inv, nil
}

func (s *InvoiceService) MarkPaid(ctx context.Context, id string) (*domain.Invoice, error) {
	inv, err := s.GetByID(ctx, id)
	if err != nil {
		return nil, err
	}
	now := s.now()
	inv.Status = domain.InvoicePaid
	inv.PaidAt = &now
	if err := s.repo.Update(ctx, inv); err != nil {
		return nil, fmt.Errorf("mark invoice %s paid: %w", id, err)
	}
	return inv, nil
}

// Cancel frees the order for a new invoice.
func (s *InvoiceService) Cancel(ctx context.Context, id string) (*domain.Invoice, error) {
	inv, err := s.GetByID(ctx, id)
	if err != nil {
		return nil, err
	}
	inv.Status = domain.InvoiceCancelled
	inv.ActiveOrderID = nil
	if err := s.repo.Update(ctx, inv); err != nil {
		return nil, fmt.Errorf("cancel invoice %s: %w", id, err)
	}
	return inv, nil
}

// MarkOverdue flags issued invoices whose due date has passed.
func (s *InvoiceService) MarkOverdue(ctx context.Context, now time.Time) (int, error) {
	due, err := s.repo.ListIssuedDueBefore(ctx, now)
	if err != nil {
		return 0, err
	}
	marked := 0
	for i := range due {
		inv := &due[i]
		inv.Status = domain.InvoiceOverdue
		if err := s.repo.Update(ctx, inv); err != nil {
			return marked, fmt.Errorf("mark invoice %s overdue: %w", inv.ID, err)
		}
		marked++
	}
	if marked > 0 {
		s.log.Info("invoices overdue", zap.Int("count", marked))
	}
	return marked, nil
}

func pollBackOff() backoff.BackOff {
	b := backoff.NewExponentialBackOff()
	b.InitialInterval = 200 * time.Millisecond
	b.MaxInterval = 2 * time.Second
	b.MaxElapsedTime = 0
	return b
}
