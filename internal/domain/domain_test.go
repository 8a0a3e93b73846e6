package domain

import (
	"context"
	"errors"
	"fmt"
	"testing"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestCanTransition(t *testing.T) {
	tests := []struct {
		from, to OrderStatus
		want     bool
	}{
		{StatusPending, StatusStockReserved, true},
		{StatusPending, StatusApproved, true},
		{StatusStockReserved, StatusApproved, true},
		{StatusApproved, StatusPaymentCompleted, true},
		{StatusShipped, StatusDelivered, true},
		{StatusPending, StatusDelivered, false},
		{StatusApproved, StatusStockReserved, false},
		{StatusCancelled, StatusApproved, false},
		{StatusDelivered, StatusCancelled, false},
		{StatusFailed, StatusPending, false},
	}
	for _, tt := range tests {
		t.Run(fmt.Sprintf("%s->%s", tt.from, tt.to), func(t *testing.T) {
			assert.Equal(t, tt.want, CanTransition(tt.from, tt.to))
		})
	}
}

func TestOrderStatus_TerminalAndReached(t *testing.T) {
	assert.True(t, StatusCancelled.Terminal())
	assert.True(t, StatusDelivered.Terminal())
	assert.False(t, StatusApproved.Terminal())

	assert.True(t, StatusApproved.Reached(StatusStockReserved))
	assert.True(t, StatusShipped.Reached(StatusApproved))
	assert.False(t, StatusPending.Reached(StatusStockReserved))
	assert.False(t, StatusCancelled.Reached(StatusApproved))
}

func TestParseOrderStatus(t *testing.T) {
	for in, want := range map[string]OrderStatus{
		"pending":        StatusPending,
		"StockReserved":  StatusStockReserved,
		"stock_reserved": StatusStockReserved,
		" Cancelled ":    StatusCancelled,
	} {
		got, err := ParseOrderStatus(in)
		require.NoError(t, err, in)
		assert.Equal(t, want, got)
	}
	_, err := ParseOrderStatus("lost")
	assert.ErrorIs(t, err, ErrInvalidStatus)
}

func TestNewOrder(t *testing.T) {
	c := Customer{Name: "Ada", Email: "ada@example.com"}

	o, err := NewOrder(c, []OrderItem{
		{ProductID: 1, Quantity: 2, UnitPrice: decimal.RequireFromString("10.25")},
		{ProductID: 2, Quantity: 1, UnitPrice: decimal.RequireFromString("5.05")},
	})
	require.NoError(t, err)
	assert.Equal(t, StatusPending, o.Status)
	assert.Equal(t, "25.55", o.Total.StringFixed(2))
	for _, it := range o.Items {
		assert.Equal(t, o.ID, it.OrderID)
	}

	_, err = NewOrder(c, nil)
	assert.ErrorIs(t, err, ErrInvalidOrder)

	_, err = NewOrder(c, []OrderItem{{ProductID: 1, Quantity: -1, UnitPrice: decimal.NewFromInt(1)}})
	assert.ErrorIs(t, err, ErrInvalidQuantity)
}

func TestInvoice_Compute(t *testing.T) {
	inv := &Invoice{Items: []InvoiceItem{
		{ProductID: 1, Quantity: 2, UnitPrice: decimal.RequireFromString("10.25")},
		{ProductID: 2, Quantity: 1, UnitPrice: decimal.RequireFromString("5.05")},
	}}
	inv.Compute()

	assert.Equal(t, "20.50", inv.Items[0].LineTotal.StringFixed(2))
	assert.Equal(t, "25.55", inv.Subtotal.StringFixed(2))
	assert.Equal(t, "5.11", inv.TaxAmount.StringFixed(2))
	assert.Equal(t, "30.66", inv.Total.StringFixed(2))
	assert.True(t, inv.TaxRate.Equal(InvoiceTaxRate))
}

func TestProduct_Available(t *testing.T) {
	p := Product{Stock: 5, Reserved: 2}
	assert.Equal(t, int64(3), p.Available())
	assert.True(t, p.Valid())
	assert.False(t, Product{Stock: 1, Reserved: 2}.Valid())
	assert.False(t, Product{Stock: 1, Reserved: -1}.Valid())
}

func TestVerification_Items(t *testing.T) {
	v := &PendingVerification{}
	items, err := v.Items()
	require.NoError(t, err)
	assert.Empty(t, items)

	require.NoError(t, v.SetItems([]StockLine{{ProductID: 3, Quantity: 4}}))
	items, err = v.Items()
	require.NoError(t, err)
	assert.Equal(t, []StockLine{{ProductID: 3, Quantity: 4}}, items)
	assert.False(t, v.Resolved())
}

func TestParseChannel(t *testing.T) {
	ch, err := ParseChannel("SMS")
	require.NoError(t, err)
	assert.Equal(t, ChannelSMS, ch)
	_, err = ParseChannel("fax")
	assert.ErrorIs(t, err, ErrInvalidStatus)
}

func TestErrorKinds(t *testing.T) {
	wrapped := fmt.Errorf("reserve: %w", ErrInsufficientStock)
	assert.True(t, IsBusiness(wrapped))
	assert.True(t, IsBusiness(fmt.Errorf("x: %w", ErrOrderNotFound)))
	assert.False(t, IsBusiness(errors.New("connection reset")))
	assert.False(t, IsBusiness(context.DeadlineExceeded))

	assert.True(t, IsNotFound(fmt.Errorf("x: %w", ErrInvoiceNotFound)))
	assert.False(t, IsNotFound(ErrInsufficientStock))
}
