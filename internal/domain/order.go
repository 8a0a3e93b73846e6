package domain

import (
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
)

type OrderStatus string

const (
	StatusPending          OrderStatus = "pending"
	StatusStockReserved    OrderStatus = "stock_reserved"
	StatusApproved         OrderStatus = "approved"
	StatusPaymentCompleted OrderStatus = "payment_completed"
	StatusShipped          OrderStatus = "shipped"
	StatusDelivered        OrderStatus = "delivered"
	StatusCancelled        OrderStatus = "cancelled"
	StatusFailed           OrderStatus = "failed"
)

var allowedTransitions = map[OrderStatus]map[OrderStatus]bool{
	// Pending -> Approved covers an approval observed before stock.reserved.
	StatusPending:          {StatusStockReserved: true, StatusApproved: true, StatusCancelled: true, StatusFailed: true},
	StatusStockReserved:    {StatusApproved: true, StatusCancelled: true, StatusFailed: true},
	StatusApproved:         {StatusPaymentCompleted: true, StatusCancelled: true, StatusFailed: true},
	StatusPaymentCompleted: {StatusShipped: true, StatusCancelled: true, StatusFailed: true},
	StatusShipped:          {StatusDelivered: true, StatusCancelled: true, StatusFailed: true},
	StatusDelivered:        {},
	StatusCancelled:        {},
	StatusFailed:           {},
}

// ParseOrderStatus accepts the stored form ("stock_reserved") and the
// display form ("StockReserved").
func ParseOrderStatus(s string) (OrderStatus, error) {
	norm := strings.ToLower(strings.TrimSpace(s))
	for st := range allowedTransitions {
		if string(st) == norm || strings.ReplaceAll(string(st), "_", "") == norm {
			return st, nil
		}
	}
	return "", ErrInvalidStatus
}

func CanTransition(from, to OrderStatus) bool {
	return allowedTransitions[from][to]
}

func (s OrderStatus) Terminal() bool {
	next, ok := allowedTransitions[s]
	return ok && len(next) == 0
}

// Reached reports whether an order in status s has already passed through
// target on the happy path, so a late or duplicate event can be ignored.
func (s OrderStatus) Reached(target OrderStatus) bool {
	rank := map[OrderStatus]int{
		StatusPending:          0,
		StatusStockReserved:    1,
		StatusApproved:         2,
		StatusPaymentCompleted: 3,
		StatusShipped:          4,
		StatusDelivered:        5,
	}
	a, okA := rank[s]
	b, okB := rank[target]
	if !okA || !okB {
		return s == target
	}
	return a >= b
}

type OrderItem struct {
	ID        uint64          `json:"-" gorm:"primaryKey;autoIncrement"`
	OrderID   string          `json:"-" gorm:"type:char(36);not null;index"`
	ProductID uint64          `json:"productId" gorm:"not null"`
	Quantity  int64           `json:"quantity" gorm:"not null"`
	UnitPrice decimal.Decimal `json:"unitPrice" gorm:"type:decimal(12,2);not null"`
}

func (i OrderItem) LineTotal() decimal.Decimal {
	return i.UnitPrice.Mul(decimal.NewFromInt(i.Quantity))
}

type Order struct {
	ID            string          `json:"id" gorm:"primaryKey;type:char(36)"`
	CustomerName  string          `json:"customerName" gorm:"size:255;not null"`
	CustomerEmail string          `json:"customerEmail" gorm:"size:255;not null"`
	CustomerPhone string          `json:"customerPhone" gorm:"size:64"`
	Items         []OrderItem     `json:"items" gorm:"foreignKey:OrderID"`
	Total         decimal.Decimal `json:"total" gorm:"type:decimal(12,2);not null"`
	Status        OrderStatus     `json:"status" gorm:"size:32;not null;index;default:'pending'"`
	StatusReason  string          `json:"statusReason,omitempty" gorm:"size:255"`
	CreatedAt     time.Time       `json:"createdAt" gorm:"autoCreateTime"`
	UpdatedAt     time.Time       `json:"updatedAt" gorm:"autoUpdateTime"`
}

type Customer struct {
	Name  string
	Email string
	Phone string
}

// NewOrder snapshots the items and fixes the total. The total is never
// recomputed afterwards.
func NewOrder(c Customer, items []OrderItem) (*Order, error) {
	if len(items) == 0 {
		return nil, ErrInvalidOrder
	}
	id := uuid.NewString()
	total := decimal.Zero
	snapshot := make([]OrderItem, 0, len(items))
	for _, it := range items {
		if it.Quantity <= 0 {
			return nil, ErrInvalidQuantity
		}
		it.OrderID = id
		total = total.Add(it.LineTotal())
		snapshot = append(snapshot, it)
	}
	now := time.Now().UTC()
	return &Order{
		ID:            id,
		CustomerName:  c.Name,
		CustomerEmail: c.Email,
		CustomerPhone: c.Phone,
		Items:         snapshot,
		Total:         total,
		Status:        StatusPending,
		CreatedAt:     now,
		UpdatedAt:     now,
	}, nil
}
