package contracts

import (
	"encoding/json"
	"testing"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestEnvelope_DecodeRoundTrip(t *testing.T) {
	msg := VerificationMessage{
		OrderID:       "o-1",
		CustomerName:  "Ada",
		CustomerEmail: "ada@example.com",
		TotalAmount:   decimal.RequireFromString("25.50"),
		Items:         []LineItem{{ProductID: 1, Quantity: 2}},
	}
	env, err := NewEnvelope("order-service", TypeVerificationRequested, msg.OrderID, msg)
	require.NoError(t, err)
	assert.NotEmpty(t, env.ID)
	assert.Equal(t, EnvelopeVersion, env.Version)
	assert.Equal(t, "o-1", env.CorrelationID)

	body, err := env.Marshal()
	require.NoError(t, err)
	assert.Contains(t, string(body), `"totalAmount":25.5`)

	parsed, err := Parse(body)
	require.NoError(t, err)

	got, err := Decode[VerificationMessage](parsed, TypeVerificationRequested)
	require.NoError(t, err)
	assert.Equal(t, msg.OrderID, got.OrderID)
	assert.True(t, msg.TotalAmount.Equal(got.TotalAmount))
	assert.Equal(t, msg.Items, got.Items)
}

func TestDecode_Malformed(t *testing.T) {
	tests := []struct {
		name string
		env  func(t *testing.T) Envelope
	}{
		{
			name: "type mismatch",
			env: func(t *testing.T) Envelope {
				env, err := NewEnvelope("x", TypeOrderApproved, "o-1", OrderApprovedMessage{OrderID: "o-1"})
				require.NoError(t, err)
				return env
			},
		},
		{
			name: "payload not an object",
			env: func(t *testing.T) Envelope {
				return Envelope{Type: TypeStockUpdate, Version: 1, Payload: json.RawMessage(`"oops"`)}
			},
		},
		{
			name: "missing order id",
			env: func(t *testing.T) Envelope {
				env, err := NewEnvelope("x", TypeStockUpdate, "", StockUpdateMessage{})
				require.NoError(t, err)
				return env
			},
		},
		{
			name: "item without product",
			env: func(t *testing.T) Envelope {
				env, err := NewEnvelope("x", TypeStockUpdate, "o-1", StockUpdateMessage{OrderID: "o-1", Items: []LineItem{{Quantity: 1}}})
				require.NoError(t, err)
				return env
			},
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := Decode[StockUpdateMessage](tt.env(t), TypeStockUpdate)
			assert.ErrorIs(t, err, ErrMalformed)
		})
	}
}

func TestParse_Rejects(t *testing.T) {
	for name, body := range map[string]string{
		"not json":        `{`,
		"no type":         `{"version":1,"payload":{}}`,
		"unknown version": `{"type":"StockUpdate","version":2,"payload":{}}`,
	} {
		t.Run(name, func(t *testing.T) {
			_, err := Parse([]byte(body))
			assert.ErrorIs(t, err, ErrMalformed)
		})
	}
}

func TestDecode_AcceptsAnyListedType(t *testing.T) {
	env, err := NewEnvelope("stock-service", TypeStockReservationFailed, "o-9", StockReservationResult{OrderID: "o-9", Reason: "insufficient stock"})
	require.NoError(t, err)

	got, err := Decode[StockReservationResult](env, TypeStockReserved, TypeStockReservationFailed)
	require.NoError(t, err)
	assert.Equal(t, "insufficient stock", got.Reason)
}

func TestQueues_Unique(t *testing.T) {
	qs := Queues()
	seen := map[string]bool{}
	for _, q := range qs {
		assert.False(t, seen[q], "duplicate queue %s", q)
		seen[q] = true
	}
	assert.Contains(t, qs, QueueOrderStockResult)
	assert.Contains(t, qs, QueueVerificationReserved)
	assert.Len(t, qs, 14)
}

func TestNotificationFor_PicksChannels(t *testing.T) {
	assert.Equal(t, NotifyBoth, NotificationFor(KindReceived, "o", "a@b.c", "+1", "hi").Type)
	assert.Equal(t, NotifyEmail, NotificationFor(KindReceived, "o", "a@b.c", "", "hi").Type)
	assert.Equal(t, NotifySMS, NotificationFor(KindReceived, "o", "", "+1", "hi").Type)
	assert.Equal(t, KindApproved, NotificationFor(KindApproved, "o", "a@b.c", "", "hi").Kind)
}
