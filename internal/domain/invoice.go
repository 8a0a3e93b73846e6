package domain

import (
	"fmt"
	"math/rand"
	"time"

	"github.com/shopspring/decimal"
)

type InvoiceStatus string

const (
	InvoiceDraft     InvoiceStatus = "draft"
	InvoiceIssued    InvoiceStatus = "issued"
	InvoicePaid      InvoiceStatus = "paid"
	InvoiceCancelled InvoiceStatus = "cancelled"
	InvoiceOverdue   InvoiceStatus = "overdue"
)

var (
	InvoiceTaxRate     = decimal.RequireFromString("0.20")
	InvoicePaymentTerm = 30 * 24 * time.Hour
)

type InvoiceItem struct {
	ID        uint64          `json:"-" gorm:"primaryKey;autoIncrement"`
	InvoiceID string          `json:"-" gorm:"type:char(36);not null;index"`
	ProductID uint64          `json:"productId"`
	Quantity  int64           `json:"quantity"`
	UnitPrice decimal.Decimal `json:"unitPrice" gorm:"type:decimal(12,2)"`
	LineTotal decimal.Decimal `json:"lineTotal" gorm:"type:decimal(12,2)"`
}

type Invoice struct {
	ID      string `json:"id" gorm:"primaryKey;type:char(36)"`
	OrderID string `json:"orderId" gorm:"type:char(36);not null;index"`
	// ActiveOrderID mirrors OrderID until the invoice is cancelled. The unique
	// index on it allows one live invoice per order.
	ActiveOrderID *string         `json:"-" gorm:"type:char(36);uniqueIndex"`
	Number        string          `json:"number" gorm:"size:32;not null"`
	CustomerName  string          `json:"customerName" gorm:"size:255"`
	CustomerEmail string          `json:"customerEmail" gorm:"size:255"`
	Items         []InvoiceItem   `json:"items" gorm:"foreignKey:InvoiceID"`
	Subtotal      decimal.Decimal `json:"subtotal" gorm:"type:decimal(12,2)"`
	TaxRate       decimal.Decimal `json:"taxRate" gorm:"type:decimal(5,4)"`
	TaxAmount     decimal.Decimal `json:"taxAmount" gorm:"type:decimal(12,2)"`
	Total         decimal.Decimal `json:"total" gorm:"type:decimal(12,2)"`
	Status        InvoiceStatus   `json:"status" gorm:"size:16;not null;index"`
	IssuedAt      time.Time       `json:"issuedAt"`
	DueDate       time.Time       `json:"dueDate" gorm:"index"`
	PaidAt        *time.Time      `json:"paidAt,omitempty"`
	CreatedAt     time.Time       `json:"createdAt" gorm:"autoCreateTime"`
	UpdatedAt     time.Time       `json:"updatedAt" gorm:"autoUpdateTime"`
}

// InvoiceNumber is for display only; collisions are tolerated.
func InvoiceNumber(at time.Time) string {
	return fmt.Sprintf("INV-%s-%06d", at.Format("20060102"), rand.Intn(1_000_000))
}

// Compute fills line totals, subtotal, tax and total from the items.
func (inv *Invoice) Compute() {
	subtotal := decimal.Zero
	for i := range inv.Items {
		it := &inv.Items[i]
		it.LineTotal = it.UnitPrice.Mul(decimal.NewFromInt(it.Quantity)).Round(2)
		subtotal = subtotal.Add(it.LineTotal)
	}
	inv.TaxRate = InvoiceTaxRate
	inv.Subtotal = subtotal.Round(2)
	inv.TaxAmount = subtotal.Mul(InvoiceTaxRate).Round(2)
	inv.Total = inv.Subtotal.Add(inv.TaxAmount)
}
