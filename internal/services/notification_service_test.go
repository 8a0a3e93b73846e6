package services

import (
	"context"
	"errors"
	"testing"

	"order-fulfillment/internal/contracts"
	"order-fulfillment/internal/domain"
	"order-fulfillment/internal/infra"
	"order-fulfillment/internal/mocks"
	"order-fulfillment/internal/repository/memory"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/mock"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
)

func newNotificationService(transport *mocks.MockTransport, invoices *mocks.MockInvoiceClient) *NotificationService {
	var client infra.InvoiceClientInterface
	if invoices != nil {
		client = invoices
	}
	svc := NewNotificationService(memory.NewNotificationRepo(), transport, client, 3, 2, zap.NewNop())
	svc.newBackOff = instantBackOff
	return svc
}

func TestNotificationService_Send(t *testing.T) {
	tests := []struct {
		name           string
		setupTransport func(*mocks.MockTransport)
		expectedStatus domain.NotificationStatus
		expectedRetry  int
		lastError      string
	}{
		{
			name: "delivered first time",
			setupTransport: func(m *mocks.MockTransport) {
				m.On("Send", mock.Anything, domain.ChannelEmail, TestCustomerEmail, "hello").Return(true, nil).Once()
			},
			expectedStatus: domain.NotificationSent,
		},
		{
			name: "delivered after a refusal",
			setupTransport: func(m *mocks.MockTransport) {
				m.On("Send", mock.Anything, domain.ChannelEmail, TestCustomerEmail, "hello").Return(false, nil).Once()
				m.On("Send", mock.Anything, domain.ChannelEmail, TestCustomerEmail, "hello").Return(true, nil).Once()
			},
			expectedStatus: domain.NotificationSent,
			expectedRetry:  1,
			lastError:      errDeliveryRefused.Error(),
		},
		{
			name: "gives up after bounded attempts",
			setupTransport: func(m *mocks.MockTransport) {
				m.On("Send", mock.Anything, domain.ChannelEmail, TestCustomerEmail, "hello").Return(false, errors.New("smtp timeout")).Times(3)
			},
			expectedStatus: domain.NotificationFailed,
			expectedRetry:  3,
			lastError:      "smtp timeout",
		},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			transport := new(mocks.MockTransport)
			tt.setupTransport(transport)
			svc := newNotificationService(transport, nil)

			n, err := svc.Send(context.Background(), SendInput{
				OrderID:   TestOrderID,
				Recipient: TestCustomerEmail,
				Channel:   domain.ChannelEmail,
				Body:      "hello",
				Immediate: true,
			})
			require.NoError(t, err)
			assert.Equal(t, tt.expectedStatus, n.Status)
			assert.Equal(t, tt.expectedRetry, n.RetryCount)
			assert.Equal(t, tt.lastError, n.LastError)
			if tt.expectedStatus == domain.NotificationSent {
				assert.NotNil(t, n.SentAt)
			}

			stored, err := svc.Get(context.Background(), n.ID)
			require.NoError(t, err)
			assert.Equal(t, tt.expectedStatus, stored.Status)
			transport.AssertExpectations(t)
		})
	}
}

func TestNotificationService_SendDeferred(t *testing.T) {
	transport := new(mocks.MockTransport)
	svc := newNotificationService(transport, nil)

	n, err := svc.Send(context.Background(), SendInput{Recipient: TestCustomerPhone, Channel: domain.ChannelSMS, Body: "later"})
	require.NoError(t, err)
	assert.Equal(t, domain.NotificationPending, n.Status)
	transport.AssertNotCalled(t, "Send", mock.Anything, mock.Anything, mock.Anything, mock.Anything)

	_, err = svc.Send(context.Background(), SendInput{Channel: domain.ChannelSMS, Body: "nobody"})
	assert.ErrorIs(t, err, domain.ErrInvalidRecipient)
}

func TestNotificationService_DispatchFansOut(t *testing.T) {
	transport := new(mocks.MockTransport)
	transport.On("Send", mock.Anything, domain.ChannelEmail, TestCustomerEmail, "Your order shipped.").Return(true, nil).Once()
	transport.On("Send", mock.Anything, domain.ChannelSMS, TestCustomerPhone, "Your order shipped.").Return(true, nil).Once()
	svc := newNotificationService(transport, nil)

	sent, err := svc.Dispatch(context.Background(),
		contracts.NotificationFor(contracts.KindReceived, TestOrderID, TestCustomerEmail, TestCustomerPhone, "Your order shipped."))
	require.NoError(t, err)
	assert.Len(t, sent, 2)

	all, err := svc.ListByOrder(context.Background(), TestOrderID)
	require.NoError(t, err)
	assert.Len(t, all, 2)
	transport.AssertExpectations(t)
}

func TestNotificationService_DispatchSkipsMissingRecipients(t *testing.T) {
	transport := new(mocks.MockTransport)
	transport.On("Send", mock.Anything, domain.ChannelEmail, TestCustomerEmail, mock.Anything).Return(true, nil).Once()
	svc := newNotificationService(transport, nil)

	msg := contracts.NotificationMessage{OrderID: TestOrderID, CustomerEmail: TestCustomerEmail, Message: "hi", Type: contracts.NotifyBoth}
	sent, err := svc.Dispatch(context.Background(), msg)
	require.NoError(t, err)
	require.Len(t, sent, 1)
	assert.Equal(t, domain.ChannelEmail, sent[0].Channel)

	msg = contracts.NotificationMessage{OrderID: TestOrderID, CustomerEmail: TestCustomerEmail, Message: "hi", Type: contracts.NotifySMS}
	_, err = svc.Dispatch(context.Background(), msg)
	assert.ErrorIs(t, err, domain.ErrInvalidRecipient)
}

func TestNotificationService_DispatchAppendsInvoice(t *testing.T) {
	inv := &domain.Invoice{Number: "INV-20260101-000042", Total: decimalFrom("30.66")}
	invoices := new(mocks.MockInvoiceClient)
	invoices.On("GetByOrderID", mock.Anything, TestOrderID).Return(nil, nil).Once()
	invoices.On("GetByOrderID", mock.Anything, TestOrderID).Return(inv, nil).Once()

	var body string
	transport := new(mocks.MockTransport)
	transport.On("Send", mock.Anything, domain.ChannelEmail, TestCustomerEmail, mock.Anything).
		Return(true, nil).Run(func(args mock.Arguments) { body = args.String(3) })
	svc := newNotificationService(transport, invoices)

	_, err := svc.Dispatch(context.Background(),
		contracts.NotificationFor(contracts.KindApproved, TestOrderID, TestCustomerEmail, "", "Your order has been approved."))
	require.NoError(t, err)
	assert.Contains(t, body, "INV-20260101-000042")
	assert.Contains(t, body, "30.66")
	invoices.AssertExpectations(t)
}

func TestNotificationService_DispatchWithoutInvoice(t *testing.T) {
	invoices := new(mocks.MockInvoiceClient)
	invoices.On("GetByOrderID", mock.Anything, TestOrderID).Return(nil, nil).Times(2)

	transport := new(mocks.MockTransport)
	transport.On("Send", mock.Anything, domain.ChannelEmail, TestCustomerEmail, "Your order has been approved.").Return(true, nil).Once()
	svc := newNotificationService(transport, invoices)

	_, err := svc.Dispatch(context.Background(),
		contracts.NotificationFor(contracts.KindApproved, TestOrderID, TestCustomerEmail, "", "Your order has been approved."))
	require.NoError(t, err)
	invoices.AssertExpectations(t)
	transport.AssertExpectations(t)
}

func TestNotificationService_DispatchEnrichesOnlyApprovals(t *testing.T) {
	tests := []struct {
		name string
		kind contracts.NotificationKind
		text string
	}{
		{name: "cancellation mentioning approval", kind: contracts.KindCancelled, text: "Your order has been cancelled: not approved by finance."},
		{name: "failure", kind: contracts.KindFailed, text: "Your order could not be fulfilled: approved stock ran out."},
		{name: "no kind", text: "Your order has been approved."},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			invoices := new(mocks.MockInvoiceClient)
			transport := new(mocks.MockTransport)
			transport.On("Send", mock.Anything, domain.ChannelEmail, TestCustomerEmail, tt.text).Return(true, nil).Once()
			svc := newNotificationService(transport, invoices)

			_, err := svc.Dispatch(context.Background(),
				contracts.NotificationFor(tt.kind, TestOrderID, TestCustomerEmail, "", tt.text))
			require.NoError(t, err)
			invoices.AssertNotCalled(t, "GetByOrderID", mock.Anything, mock.Anything)
			transport.AssertExpectations(t)
		})
	}
}
