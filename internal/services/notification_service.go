package services

import (
	"context"
	"errors"
	"fmt"
	"time"

	"order-fulfillment/internal/contracts"
	"order-fulfillment/internal/domain"
	"order-fulfillment/internal/infra"
	"order-fulfillment/internal/repository"

	"github.com/cenkalti/backoff/v4"
	"go.uber.org/zap"
)

var errDeliveryRefused = errors.New("transport refused delivery")

type SendInput struct {
	OrderID   string
	Recipient string
	Channel   domain.Channel
	Body      string
	Immediate bool
}

type NotificationService struct {
	repo         repository.NotificationRepository
	transport    infra.NotificationTransport
	invoices     infra.InvoiceClientInterface
	attempts     int
	pollAttempts int
	log          *zap.Logger
	newBackOff   func() backoff.BackOff
}

func NewNotificationService(repo repository.NotificationRepository, transport infra.NotificationTransport,
	invoices infra.InvoiceClientInterface, attempts, pollAttempts int, log *zap.Logger) *NotificationService {
	return &NotificationService{
		repo:         repo,
		transport:    transport,
		invoices:     invoices,
		attempts:     max(attempts, 1),
		pollAttempts: max(pollAttempts, 1),
		log:          log,
		newBackOff:   pollBackOff,
	}
}

// Send stores the notification and, when Immediate, delivers it. Delivery
// failure is recorded on the notification, not returned: a Failed
// notification is final.
func (s *NotificationService) Send(ctx context.Context, in SendInput) (*domain.Notification, error) {
	if in.Recipient == "" {
		return nil, domain.ErrInvalidRecipient
	}
	if in.Channel != domain.ChannelEmail && in.Channel != domain.ChannelSMS {
		return nil, domain.ErrInvalidStatus
	}
	n := domain.NewNotification(in.OrderID, in.Recipient, in.Channel, in.Body)
	if err := s.repo.Create(ctx, n); err != nil {
		return nil, fmt.Errorf("store notification: %w", err)
	}
	if !in.Immediate {
		return n, nil
	}
	if err := s.deliver(ctx, n); err != nil {
		return nil, err
	}
	return n, nil
}

func (s *NotificationService) deliver(ctx context.Context, n *domain.Notification) error {
	op := func() error {
		ok, err := s.transport.Send(ctx, n.Channel, n.Recipient, n.Body)
		if err == nil && ok {
			return nil
		}
		if err == nil {
			err = errDeliveryRefused
		}
		n.RetryCount++
		n.LastError = err.Error()
		return err
	}
	b := backoff.WithContext(backoff.WithMaxRetries(s.newBackOff(), uint64(s.attempts-1)), ctx)
	sendErr := backoff.Retry(op, b)

	now := time.Now().UTC()
	n.UpdatedAt = now
	if sendErr == nil {
		n.Status = domain.NotificationSent
		n.SentAt = &now
	} else {
		n.Status = domain.NotificationFailed
		s.log.Warn("notification failed",
			zap.String("notification_id", n.ID),
			zap.String("order_id", n.OrderID),
			zap.String("channel", string(n.Channel)),
			zap.Int("retries", n.RetryCount),
			zap.Error(sendErr))
	}
	if err := s.repo.Update(ctx, n); err != nil {
		return fmt.Errorf("update notification %s: %w", n.ID, err)
	}
	return nil
}

// Dispatch handles notification.send. Approval messages are enriched with
// the invoice when it appears in time.
func (s *NotificationService) Dispatch(ctx context.Context, msg contracts.NotificationMessage) ([]domain.Notification, error) {
	body := msg.Message
	if msg.Kind == contracts.KindApproved && msg.OrderID != "" {
		if inv := s.awaitInvoice(ctx, msg.OrderID); inv != nil {
			body = fmt.Sprintf("%s Invoice %s, total due %s by %s.",
				body, inv.Number, inv.Total.StringFixed(2), inv.DueDate.Format("2006-01-02"))
		}
	}

	type target struct {
		channel   domain.Channel
		recipient string
	}
	var targets []target
	if msg.Type == contracts.NotifyEmail || msg.Type == contracts.NotifyBoth {
		targets = append(targets, target{domain.ChannelEmail, msg.CustomerEmail})
	}
	if msg.Type == contracts.NotifySMS || msg.Type == contracts.NotifyBoth {
		targets = append(targets, target{domain.ChannelSMS, msg.CustomerPhone})
	}

	var out []domain.Notification
	for _, t := range targets {
		if t.recipient == "" {
			continue
		}
		n, err := s.Send(ctx, SendInput{
			OrderID:   msg.OrderID,
			Recipient: t.recipient,
			Channel:   t.channel,
			Body:      body,
			Immediate: true,
		})
		if err != nil {
			return out, err
		}
		out = append(out, *n)
	}
	if len(out) == 0 {
		return nil, domain.ErrInvalidRecipient
	}
	return out, nil
}

// awaitInvoice polls the invoice service. The invoice is created from the
// same approval event, so it may lag this message.
func (s *NotificationService) awaitInvoice(ctx context.Context, orderID string) *domain.Invoice {
	if s.invoices == nil {
		return nil
	}
	op := func() (*domain.Invoice, error) {
		inv, err := s.invoices.GetByOrderID(ctx, orderID)
		if err != nil {
			return nil, err
		}
		if inv == nil {
			return nil, domain.ErrInvoiceNotFound
		}
		return inv, nil
	}
	b := backoff.WithContext(backoff.WithMaxRetries(s.newBackOff(), uint64(s.pollAttempts-1)), ctx)
	inv, err := backoff.RetryWithData(op, b)
	if err != nil {
		s.log.Info("sending without invoice", zap.String("order_id", orderID), zap.Error(err))
		return nil
	}
	return inv
}

func (s *NotificationService) Get(ctx context.Context, id string) (*domain.Notification, error) {
	n, err := s.repo.FindByID(ctx, id)
	if err != nil {
		return nil, err
	}
	if n == nil {
		return nil, domain.ErrNotificationNotFound
	}
	return n, nil
}

func (s *NotificationService) ListByOrder(ctx context.Context, orderID string) ([]domain.Notification, error) {
	return s.repo.ListByOrder(ctx, orderID)
}
