package domain

import (
	"time"

	"github.com/shopspring/decimal"
)

type Product struct {
	ID        uint64          `json:"id" gorm:"primaryKey;autoIncrement"`
	Name      string          `json:"name" gorm:"size:255;not null"`
	Price     decimal.Decimal `json:"price" gorm:"type:decimal(12,2);not null"`
	Stock     int64           `json:"stock" gorm:"not null;default:0"`
	Reserved  int64           `json:"reserved" gorm:"not null;default:0"`
	CreatedAt time.Time       `json:"createdAt" gorm:"autoCreateTime"`
	UpdatedAt time.Time       `json:"updatedAt" gorm:"autoUpdateTime"`
}

// Available is the sellable quantity.
func (p Product) Available() int64 {
	return p.Stock - p.Reserved
}

func (p Product) Valid() bool {
	return p.Reserved >= 0 && p.Reserved <= p.Stock
}

type TransactionType string

const (
	TxPurchase   TransactionType = "purchase"
	TxSale       TransactionType = "sale"
	TxReturn     TransactionType = "return"
	TxAdjustment TransactionType = "adjustment"
)

type TransactionState string

const (
	TxStateReserved  TransactionState = "reserved"
	TxStateCommitted TransactionState = "committed"
	TxStateReleased  TransactionState = "released"
	TxStateApplied   TransactionState = "applied"
)

// StockTransaction is the audit record of one ledger mutation on one product.
// Sale rows carry the reservation lifecycle in State, which is what makes
// confirm and release safe to repeat.
type StockTransaction struct {
	ID        uint64           `json:"id" gorm:"primaryKey;autoIncrement"`
	ProductID uint64           `json:"productId" gorm:"not null;index"`
	OrderID   string           `json:"orderId,omitempty" gorm:"size:36;index"`
	Quantity  int64            `json:"quantity" gorm:"not null"`
	Type      TransactionType  `json:"type" gorm:"size:16;not null"`
	State     TransactionState `json:"state" gorm:"size:16;not null"`
	CreatedAt time.Time        `json:"createdAt" gorm:"autoCreateTime"`
	UpdatedAt time.Time        `json:"updatedAt" gorm:"autoUpdateTime"`
}

type StockLine struct {
	ProductID uint64 `json:"productId"`
	Quantity  int64  `json:"quantity"`
}

// LedgerResult describes what a ledger operation did. Applied is false when
// the call was a repeat or found nothing to act on.
type LedgerResult struct {
	OrderID      string             `json:"orderId"`
	Applied      bool               `json:"applied"`
	Transactions []StockTransaction `json:"transactions"`
}
