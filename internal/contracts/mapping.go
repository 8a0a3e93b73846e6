package contracts

import (
	"fmt"

	"order-fulfillment/internal/domain"
)

func ToStockLines(items []LineItem) []domain.StockLine {
	out := make([]domain.StockLine, 0, len(items))
	for _, it := range items {
		out = append(out, domain.StockLine{ProductID: it.ProductID, Quantity: it.Quantity})
	}
	return out
}

func FromStockLines(lines []domain.StockLine) []LineItem {
	out := make([]LineItem, 0, len(lines))
	for _, l := range lines {
		out = append(out, LineItem{ProductID: l.ProductID, Quantity: l.Quantity})
	}
	return out
}

func VerificationFromOrder(o *domain.Order) VerificationMessage {
	items := make([]LineItem, 0, len(o.Items))
	for _, it := range o.Items {
		items = append(items, LineItem{ProductID: it.ProductID, Quantity: it.Quantity})
	}
	return VerificationMessage{
		OrderID:       o.ID,
		CustomerName:  o.CustomerName,
		CustomerEmail: o.CustomerEmail,
		CustomerPhone: o.CustomerPhone,
		TotalAmount:   o.Total,
		Items:         items,
	}
}

func StockUpdateFromVerification(m VerificationMessage) StockUpdateMessage {
	items := make([]LineItem, len(m.Items))
	copy(items, m.Items)
	return StockUpdateMessage{OrderID: m.OrderID, Items: items}
}

// PendingFromVerification builds the gate's frozen snapshot of an order.
func PendingFromVerification(m VerificationMessage) (*domain.PendingVerification, error) {
	v := &domain.PendingVerification{
		OrderID:       m.OrderID,
		CustomerName:  m.CustomerName,
		CustomerEmail: m.CustomerEmail,
		CustomerPhone: m.CustomerPhone,
		TotalAmount:   m.TotalAmount,
		Status:        domain.VerificationPending,
	}
	if err := v.SetItems(ToStockLines(m.Items)); err != nil {
		return nil, fmt.Errorf("snapshot items: %w", err)
	}
	return v, nil
}

func ApprovedFromPending(v *domain.PendingVerification) OrderApprovedMessage {
	msg := OrderApprovedMessage{
		OrderID:      v.OrderID,
		CustomerName: v.CustomerName,
		TotalAmount:  v.TotalAmount,
		ApprovedBy:   v.ResolvedBy,
	}
	if v.ResolvedAt != nil {
		msg.ApprovedAt = *v.ResolvedAt
	}
	return msg
}

func ReleaseFromPending(v *domain.PendingVerification) (StockUpdateMessage, error) {
	lines, err := v.Items()
	if err != nil {
		return StockUpdateMessage{}, fmt.Errorf("read snapshot items: %w", err)
	}
	return StockUpdateMessage{OrderID: v.OrderID, Items: FromStockLines(lines)}, nil
}

func ReleaseFromOrder(o *domain.Order) StockUpdateMessage {
	items := make([]LineItem, 0, len(o.Items))
	for _, it := range o.Items {
		items = append(items, LineItem{ProductID: it.ProductID, Quantity: it.Quantity})
	}
	return StockUpdateMessage{OrderID: o.ID, Items: items}
}

// NotificationFor addresses a message to every channel the customer has.
func NotificationFor(kind NotificationKind, orderID, email, phone, text string) NotificationMessage {
	t := NotifyBoth
	switch {
	case phone == "":
		t = NotifyEmail
	case email == "":
		t = NotifySMS
	}
	return NotificationMessage{
		OrderID:       orderID,
		CustomerEmail: email,
		CustomerPhone: phone,
		Message:       text,
		Type:          t,
		Kind:          kind,
	}
}
