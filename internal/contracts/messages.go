package contracts

import (
	"errors"
	"time"

	"github.com/shopspring/decimal"
)

type LineItem struct {
	ProductID uint64 `json:"productId"`
	Quantity  int64  `json:"quantity"`
}

type VerificationMessage struct {
	OrderID       string          `json:"orderId"`
	CustomerName  string          `json:"customerName"`
	CustomerEmail string          `json:"customerEmail"`
	CustomerPhone string          `json:"customerPhone,omitempty"`
	TotalAmount   decimal.Decimal `json:"totalAmount"`
	Items         []LineItem      `json:"items"`
}

func (m *VerificationMessage) Validate() error {
	if m.OrderID == "" {
		return errMissingOrderID
	}
	return validateItems(m.Items)
}

type OrderApprovedMessage struct {
	OrderID      string          `json:"orderId"`
	CustomerName string          `json:"customerName"`
	TotalAmount  decimal.Decimal `json:"totalAmount"`
	ApprovedBy   string          `json:"approvedBy,omitempty"`
	ApprovedAt   time.Time       `json:"approvedAt,omitempty"`
}

func (m *OrderApprovedMessage) Validate() error {
	if m.OrderID == "" {
		return errMissingOrderID
	}
	return nil
}

type OrderRejectedMessage struct {
	OrderID string `json:"orderId"`
	Reason  string `json:"reason"`
}

func (m *OrderRejectedMessage) Validate() error {
	if m.OrderID == "" {
		return errMissingOrderID
	}
	return nil
}

// OrderCancelledMessage reports an operator cancelling or failing an order
// before approval. Status is the order status it moved to.
type OrderCancelledMessage struct {
	OrderID string `json:"orderId"`
	Status  string `json:"status"`
	Reason  string `json:"reason,omitempty"`
}

func (m *OrderCancelledMessage) Validate() error {
	if m.OrderID == "" {
		return errMissingOrderID
	}
	return nil
}

// StockUpdateMessage drives every ledger command. Items may be empty for
// confirm and release, which act on the reservation recorded for the order.
type StockUpdateMessage struct {
	OrderID string     `json:"orderId"`
	Items   []LineItem `json:"items"`
}

func (m *StockUpdateMessage) Validate() error {
	if m.OrderID == "" {
		return errMissingOrderID
	}
	if len(m.Items) == 0 {
		return nil
	}
	return validateItems(m.Items)
}

// StockReservationResult reports a reservation outcome. Reason is set only
// on failure.
type StockReservationResult struct {
	OrderID string `json:"orderId"`
	Reason  string `json:"reason,omitempty"`
}

func (m *StockReservationResult) Validate() error {
	if m.OrderID == "" {
		return errMissingOrderID
	}
	return nil
}

type NotificationType string

const (
	NotifyEmail NotificationType = "Email"
	NotifySMS   NotificationType = "SMS"
	NotifyBoth  NotificationType = "Both"
)

// NotificationKind tells the dispatcher what a message announces. Only
// KindApproved is enriched with the invoice.
type NotificationKind string

const (
	KindReceived  NotificationKind = "received"
	KindApproved  NotificationKind = "approved"
	KindCancelled NotificationKind = "cancelled"
	KindFailed    NotificationKind = "failed"
)

type NotificationMessage struct {
	OrderID       string           `json:"orderId"`
	CustomerEmail string           `json:"customerEmail"`
	CustomerPhone string           `json:"customerPhone"`
	Message       string           `json:"message"`
	Type          NotificationType `json:"type"`
	Kind          NotificationKind `json:"kind,omitempty"`
}

func (m *NotificationMessage) Validate() error {
	switch m.Type {
	case NotifyEmail, NotifySMS, NotifyBoth:
	default:
		return errors.New("unknown notification type")
	}
	if m.Message == "" {
		return errors.New("empty notification message")
	}
	return nil
}

var errMissingOrderID = errors.New("orderId is required")

func validateItems(items []LineItem) error {
	if len(items) == 0 {
		return errors.New("items are required")
	}
	for _, it := range items {
		if it.ProductID == 0 {
			return errors.New("productId is required")
		}
	}
	return nil
}
