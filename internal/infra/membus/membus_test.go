package membus

import (
	"context"
	"errors"
	"testing"

	"order-fulfillment/internal/contracts"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
)

func approved(t *testing.T) contracts.Envelope {
	env, err := contracts.NewEnvelope("verification-service", contracts.TypeOrderApproved, "o-1",
		contracts.OrderApprovedMessage{OrderID: "o-1"})
	require.NoError(t, err)
	return env
}

func TestBus_FansOutByBinding(t *testing.T) {
	bus := New(zap.NewNop())
	ctx := context.Background()

	require.NoError(t, bus.Publish(ctx, contracts.ExchangeVerification, contracts.KeyOrderApproved, approved(t)))

	assert.Equal(t, 1, bus.Pending(contracts.QueueOrderApproved))
	assert.Equal(t, 1, bus.Pending(contracts.QueueStockApproved))
	assert.Equal(t, 1, bus.Pending(contracts.QueueInvoiceApproved))
	assert.Equal(t, 0, bus.Pending(contracts.QueueStockConfirm))
	assert.Len(t, bus.Published(contracts.KeyOrderApproved), 1)
}

func TestBus_UnroutedPublishFails(t *testing.T) {
	bus := New(zap.NewNop())
	err := bus.Publish(context.Background(), contracts.ExchangeStock, contracts.KeyOrderApproved, approved(t))
	assert.Error(t, err)
}

func TestBus_RequeueIsBounded(t *testing.T) {
	bus := New(zap.NewNop())
	ctx := context.Background()
	calls := 0
	bus.Register(contracts.QueueOrderApproved, func(context.Context, contracts.Envelope) error {
		calls++
		return errors.New("database unavailable")
	})

	require.NoError(t, bus.Publish(ctx, contracts.ExchangeVerification, contracts.KeyOrderApproved, approved(t)))
	bus.Drain(ctx)

	assert.Equal(t, defaultDeliveryLimit, calls)
	assert.Equal(t, 1, bus.DeadLetters())
	assert.Equal(t, 0, bus.Pending(contracts.QueueOrderApproved))
}

func TestBus_RedeliversUntilSuccess(t *testing.T) {
	bus := New(zap.NewNop())
	ctx := context.Background()
	calls := 0
	bus.Register(contracts.QueueOrderApproved, func(context.Context, contracts.Envelope) error {
		calls++
		if calls < 3 {
			return errors.New("flaky")
		}
		return nil
	})

	require.NoError(t, bus.Publish(ctx, contracts.ExchangeVerification, contracts.KeyOrderApproved, approved(t)))
	bus.Drain(ctx)

	assert.Equal(t, 3, calls)
	assert.Equal(t, 0, bus.DeadLetters())
}

func TestBus_MalformedIsDeadLettered(t *testing.T) {
	bus := New(zap.NewNop())
	ctx := context.Background()
	bus.Register(contracts.QueueOrderApproved, func(_ context.Context, env contracts.Envelope) error {
		_, err := contracts.Decode[contracts.StockUpdateMessage](env, contracts.TypeStockUpdate)
		return err
	})

	require.NoError(t, bus.Publish(ctx, contracts.ExchangeVerification, contracts.KeyOrderApproved, approved(t)))
	bus.Drain(ctx)

	assert.Equal(t, 1, bus.DeadLetters())
}

func TestBus_FailPublishes(t *testing.T) {
	bus := New(zap.NewNop())
	bus.FailPublishes(errors.New("broker down"))
	assert.Error(t, bus.Publish(context.Background(), contracts.ExchangeVerification, contracts.KeyOrderApproved, approved(t)))
	bus.FailPublishes(nil)
	assert.NoError(t, bus.Publish(context.Background(), contracts.ExchangeVerification, contracts.KeyOrderApproved, approved(t)))
}
