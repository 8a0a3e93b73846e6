package domain

import (
	"encoding/json"
	"time"

	"github.com/shopspring/decimal"
)

type VerificationStatus string

const (
	VerificationPending  VerificationStatus = "pending"
	VerificationApproved VerificationStatus = "approved"
	VerificationRejected VerificationStatus = "rejected"
)

func ParseVerificationStatus(s string) (VerificationStatus, error) {
	switch VerificationStatus(s) {
	case VerificationPending, VerificationApproved, VerificationRejected:
		return VerificationStatus(s), nil
	}
	return "", ErrInvalidStatus
}

// PendingVerification is a frozen snapshot of an order held for approval.
// StockReservedAt is set when the ledger reports the reservation held, and
// PublishedAt once the events announcing the resolution went out.
type PendingVerification struct {
	OrderID         string             `json:"orderId" gorm:"primaryKey;type:char(36)"`
	CustomerName    string             `json:"customerName" gorm:"size:255"`
	CustomerEmail   string             `json:"customerEmail" gorm:"size:255"`
	CustomerPhone   string             `json:"customerPhone" gorm:"size:64"`
	TotalAmount     decimal.Decimal    `json:"totalAmount" gorm:"type:decimal(12,2)"`
	ItemsJSON       string             `json:"-" gorm:"type:text"`
	Status          VerificationStatus `json:"status" gorm:"size:16;not null;index"`
	ResolvedBy      string             `json:"resolvedBy,omitempty" gorm:"size:255"`
	Reason          string             `json:"reason,omitempty" gorm:"size:255"`
	ResolvedAt      *time.Time         `json:"resolvedAt,omitempty"`
	StockReservedAt *time.Time         `json:"stockReservedAt,omitempty"`
	PublishedAt     *time.Time         `json:"publishedAt,omitempty"`
	CreatedAt       time.Time          `json:"createdAt" gorm:"autoCreateTime"`
	UpdatedAt       time.Time          `json:"updatedAt" gorm:"autoUpdateTime"`
}

func (PendingVerification) TableName() string { return "pending_verifications" }

func (v *PendingVerification) Items() ([]StockLine, error) {
	var items []StockLine
	if v.ItemsJSON == "" {
		return items, nil
	}
	if err := json.Unmarshal([]byte(v.ItemsJSON), &items); err != nil {
		return nil, err
	}
	return items, nil
}

func (v *PendingVerification) SetItems(items []StockLine) error {
	b, err := json.Marshal(items)
	if err != nil {
		return err
	}
	v.ItemsJSON = string(b)
	return nil
}

func (v *PendingVerification) Resolved() bool {
	return v.Status != VerificationPending
}

func (v *PendingVerification) StockReserved() bool {
	return v.StockReservedAt != nil
}

// Resolution is the outcome applied to a pending entry.
type Resolution struct {
	Status     VerificationStatus
	ResolvedBy string
	Reason     string
	At         time.Time
}
