package services

import (
	"context"
	"fmt"
	"time"

	"order-fulfillment/internal/contracts"
	"order-fulfillment/internal/domain"
	"order-fulfillment/internal/infra"
	rabbit "order-fulfillment/internal/infra/rabbitmq"
	"order-fulfillment/internal/repository"

	"go.uber.org/zap"
)

const (
	resolvedByOperator = "operator"
	resolvedByStock    = "stock-service"
	resolvedByOrder    = "order-service"
)

// VerificationService is the manual gate between reservation and
// fulfilment. An entry resolves once. Its events are published after the
// resolution is stored, and a later call re-publishes them until one round
// went out.
type VerificationService struct {
	repo   repository.VerificationRepository
	orders infra.OrderClientInterface
	out    emitter
	log    *zap.Logger
	now    func() time.Time
}

func NewVerificationService(repo repository.VerificationRepository, pub rabbit.PublisherInterface, log *zap.Logger) *VerificationService {
	return &VerificationService{
		repo: repo,
		out:  emitter{pub: pub, source: "verification-service"},
		log:  log,
		now:  func() time.Time { return time.Now().UTC() },
	}
}

// SetOrderClient makes Approve check the order's current status first.
func (s *VerificationService) SetOrderClient(orders infra.OrderClientInterface) {
	s.orders = orders
}

// HandleReservationRequest records the order for review and forwards the
// reservation to the stock ledger. A redelivery of a still pending entry is
// forwarded again; the ledger ignores repeats.
func (s *VerificationService) HandleReservationRequest(ctx context.Context, msg contracts.VerificationMessage) (*domain.PendingVerification, error) {
	entry, err := contracts.PendingFromVerification(msg)
	if err != nil {
		return nil, err
	}
	stored, created, err := s.repo.Create(ctx, entry)
	if err != nil {
		return nil, fmt.Errorf("store verification %s: %w", msg.OrderID, err)
	}
	if stored.Resolved() {
		s.log.Info("verification already resolved, not forwarding",
			zap.String("order_id", msg.OrderID), zap.String("status", string(stored.Status)))
		return s.publish(ctx, stored)
	}

	if err := s.out.emit(ctx, contracts.ExchangeStock, contracts.KeyVerificationReserve,
		contracts.TypeStockUpdate, msg.OrderID, contracts.StockUpdateFromVerification(msg)); err != nil {
		return nil, fmt.Errorf("forward reservation: %w", err)
	}
	if created {
		s.log.Info("verification pending", zap.String("order_id", msg.OrderID))
	}
	return stored, nil
}

// HandleStockReserved records that the ledger holds the order's stock. Only
// then can the entry be approved.
func (s *VerificationService) HandleStockReserved(ctx context.Context, msg contracts.StockReservationResult) (*domain.PendingVerification, error) {
	ok, err := s.repo.MarkStockReserved(ctx, msg.OrderID, s.now())
	if err != nil {
		return nil, fmt.Errorf("mark stock reserved %s: %w", msg.OrderID, err)
	}
	v, err := s.Get(ctx, msg.OrderID)
	if err != nil {
		return nil, err
	}
	if ok {
		s.log.Info("stock reserved for verification", zap.String("order_id", msg.OrderID))
	}
	return v, nil
}

// Approve fails with ErrStockNotReserved while the reservation is still in
// flight, and closes the entry instead when the order was cancelled
// meanwhile.
func (s *VerificationService) Approve(ctx context.Context, orderID, approvedBy string) (*domain.PendingVerification, error) {
	if approvedBy == "" {
		approvedBy = resolvedByOperator
	}
	v, err := s.Get(ctx, orderID)
	if err != nil {
		return nil, err
	}
	if v.Resolved() {
		return s.publish(ctx, v)
	}
	if !v.StockReserved() {
		return nil, fmt.Errorf("%w: order %s", domain.ErrStockNotReserved, orderID)
	}
	if err := s.checkOrder(ctx, orderID); err != nil {
		return nil, err
	}
	return s.resolve(ctx, orderID, domain.Resolution{
		Status:     domain.VerificationApproved,
		ResolvedBy: approvedBy,
	})
}

func (s *VerificationService) Reject(ctx context.Context, orderID, reason string) (*domain.PendingVerification, error) {
	return s.resolve(ctx, orderID, domain.Resolution{
		Status:     domain.VerificationRejected,
		ResolvedBy: resolvedByOperator,
		Reason:     reason,
	})
}

// HandleReservationFailed rejects the entry on the ledger's behalf. Nothing
// was reserved, so no release is published, and the order service already
// recorded the failure from the same event, so the order stays Pending.
func (s *VerificationService) HandleReservationFailed(ctx context.Context, msg contracts.StockReservationResult) (*domain.PendingVerification, error) {
	reason := msg.Reason
	if reason == "" {
		reason = "stock reservation failed"
	}
	return s.resolve(ctx, msg.OrderID, domain.Resolution{
		Status:     domain.VerificationRejected,
		ResolvedBy: resolvedByStock,
		Reason:     reason,
	})
}

// HandleOrderCancelled closes the entry of an order the operator cancelled
// before approval. The order service already released its stock. When the
// cancellation overtakes the reservation request, a closed entry is stored
// so the request is never forwarded.
func (s *VerificationService) HandleOrderCancelled(ctx context.Context, msg contracts.OrderCancelledMessage) (*domain.PendingVerification, error) {
	reason := fmt.Sprintf("order %s by operator", msg.Status)
	v, err := s.repo.FindByOrderID(ctx, msg.OrderID)
	if err != nil {
		return nil, err
	}
	if v == nil {
		at := s.now()
		closed := &domain.PendingVerification{
			OrderID:     msg.OrderID,
			Status:      domain.VerificationRejected,
			ResolvedBy:  resolvedByOrder,
			Reason:      reason,
			ResolvedAt:  &at,
			PublishedAt: &at,
		}
		stored, _, err := s.repo.Create(ctx, closed)
		if err != nil {
			return nil, fmt.Errorf("store verification %s: %w", msg.OrderID, err)
		}
		if stored.Resolved() {
			return stored, nil
		}
	}
	return s.resolve(ctx, msg.OrderID, domain.Resolution{
		Status:     domain.VerificationRejected,
		ResolvedBy: resolvedByOrder,
		Reason:     reason,
	})
}

func (s *VerificationService) Get(ctx context.Context, orderID string) (*domain.PendingVerification, error) {
	v, err := s.repo.FindByOrderID(ctx, orderID)
	if err != nil {
		return nil, err
	}
	if v == nil {
		return nil, domain.ErrVerificationNotFound
	}
	return v, nil
}

// ListByStatus defaults to pending entries.
func (s *VerificationService) ListByStatus(ctx context.Context, status string) ([]domain.PendingVerification, error) {
	st := domain.VerificationPending
	if status != "" {
		parsed, err := domain.ParseVerificationStatus(status)
		if err != nil {
			return nil, err
		}
		st = parsed
	}
	return s.repo.ListByStatus(ctx, st)
}

// resolve applies r if the entry is still pending and publishes whatever
// resolution the entry ends up with. A resolution that lost the race is
// returned as stored.
func (s *VerificationService) resolve(ctx context.Context, orderID string, r domain.Resolution) (*domain.PendingVerification, error) {
	v, err := s.Get(ctx, orderID)
	if err != nil {
		return nil, err
	}
	if !v.Resolved() {
		r.At = s.now()
		ok, err := s.repo.ResolveIfPending(ctx, orderID, r)
		if err != nil {
			return nil, fmt.Errorf("resolve verification %s: %w", orderID, err)
		}
		if ok {
			s.log.Info("verification resolved",
				zap.String("order_id", orderID),
				zap.String("status", string(r.Status)),
				zap.String("resolved_by", r.ResolvedBy))
		}
		if v, err = s.Get(ctx, orderID); err != nil {
			return nil, err
		}
	}
	return s.publish(ctx, v)
}

// publish emits the events of a resolved entry unless that already
// happened. Every consumer of these events is idempotent, so a repeat after
// a partial failure is harmless.
func (s *VerificationService) publish(ctx context.Context, v *domain.PendingVerification) (*domain.PendingVerification, error) {
	if !v.Resolved() || v.PublishedAt != nil {
		return v, nil
	}
	switch {
	case v.Status == domain.VerificationApproved:
		if err := s.out.emit(ctx, contracts.ExchangeVerification, contracts.KeyOrderApproved,
			contracts.TypeOrderApproved, v.OrderID, contracts.ApprovedFromPending(v)); err != nil {
			return nil, fmt.Errorf("publish approval: %w", err)
		}
		text := fmt.Sprintf("Your order %s totalling %s has been approved.", v.OrderID, v.TotalAmount.StringFixed(2))
		s.notify(ctx, contracts.KindApproved, v, text)
	case v.ResolvedBy == resolvedByStock:
		s.notify(ctx, contracts.KindFailed, v, fmt.Sprintf("Your order %s could not be fulfilled: %s.", v.OrderID, v.Reason))
	case v.ResolvedBy == resolvedByOrder:
		// the operator cancelled through the order service, which owns that message
	default:
		release, err := contracts.ReleaseFromPending(v)
		if err != nil {
			return nil, err
		}
		if err := s.out.emit(ctx, contracts.ExchangeStock, contracts.KeyStockRelease,
			contracts.TypeStockUpdate, v.OrderID, release); err != nil {
			return nil, fmt.Errorf("publish stock release: %w", err)
		}
		if err := s.out.emit(ctx, contracts.ExchangeVerification, contracts.KeyOrderRejected,
			contracts.TypeOrderRejected, v.OrderID, contracts.OrderRejectedMessage{OrderID: v.OrderID, Reason: v.Reason}); err != nil {
			return nil, fmt.Errorf("publish rejection: %w", err)
		}
		s.notify(ctx, contracts.KindCancelled, v, cancellationText(v.OrderID, v.Reason))
	}

	at := s.now()
	if err := s.repo.MarkPublished(ctx, v.OrderID, at); err != nil {
		return nil, fmt.Errorf("mark verification %s published: %w", v.OrderID, err)
	}
	v.PublishedAt = &at
	return v, nil
}

// checkOrder refuses approval of an order that is no longer live and closes
// its entry.
func (s *VerificationService) checkOrder(ctx context.Context, orderID string) error {
	if s.orders == nil {
		return nil
	}
	o, err := s.orders.GetOrder(ctx, orderID)
	if err != nil {
		return fmt.Errorf("look up order %s: %w", orderID, err)
	}
	if o == nil {
		return fmt.Errorf("%w: %s", domain.ErrOrderNotFound, orderID)
	}
	if !o.Status.Terminal() {
		return nil
	}
	if _, err := s.HandleOrderCancelled(ctx, contracts.OrderCancelledMessage{OrderID: orderID, Status: string(o.Status)}); err != nil {
		return err
	}
	return fmt.Errorf("%w: order %s is %s", domain.ErrInvalidTransition, orderID, o.Status)
}

func (s *VerificationService) notify(ctx context.Context, kind contracts.NotificationKind, v *domain.PendingVerification, text string) {
	if err := s.out.notify(ctx, kind, v.OrderID, v.CustomerEmail, v.CustomerPhone, text); err != nil {
		s.log.Warn("customer notification not published", zap.String("order_id", v.OrderID), zap.Error(err))
	}
}

func cancellationText(orderID, reason string) string {
	if reason == "" {
		return fmt.Sprintf("Your order %s has been cancelled.", orderID)
	}
	return fmt.Sprintf("Your order %s has been cancelled: %s.", orderID, reason)
}
