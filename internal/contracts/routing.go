package contracts

const (
	ExchangeVerification = "verification-exchange"
	ExchangeStock        = "stock-exchange"
	ExchangeNotification = "notification-exchange"

	DeadLetterExchange = "saga.dlx"
	DeadLetterQueue    = "saga.dead-letter"
)

const (
	KeyVerificationReserve    = "verification.reserve"
	KeyOrderApproved          = "order.approved"
	KeyOrderRejected          = "order.rejected"
	KeyOrderCancelled         = "order.cancelled"
	KeyStockReserved          = "stock.reserved"
	KeyStockReservationFailed = "stock.reservation_failed"
	KeyStockDeduct            = "stock.deduct"
	KeyStockConfirm           = "stock.confirm"
	KeyStockRelease           = "stock.release"
	KeyNotificationSend       = "notification.send"
)

const (
	QueueVerificationReserve   = "verification.reserve.queue"
	QueueVerificationStockFail = "verification.stock-failed"
	QueueVerificationReserved  = "verification.stock-reserved"
	QueueVerificationCancelled = "verification.order-cancelled"
	QueueOrderApproved         = "order-service.order-approved"
	QueueOrderRejected         = "order-service.order-rejected"
	QueueOrderStockResult      = "order-service.stock-result"
	QueueStockApproved         = "stock-service.order-approved"
	QueueStockReserve          = "stock-service.reserve"
	QueueStockDeduct           = "stock-service.deduct"
	QueueStockConfirm          = "stock-service.confirm"
	QueueStockRelease          = "stock-service.release"
	QueueInvoiceApproved       = "invoice-service.order-approved"
	QueueNotificationSend      = "notification-service.send"
)

type Binding struct {
	Exchange   string
	RoutingKey string
	Queue      string
}

// Exchanges are all direct exchanges.
var Exchanges = []string{ExchangeVerification, ExchangeStock, ExchangeNotification}

// Bindings is the complete routing table. Every service declares all of it
// so a publisher never races a consumer that has not started yet.
var Bindings = []Binding{
	{ExchangeVerification, KeyVerificationReserve, QueueVerificationReserve},
	{ExchangeVerification, KeyOrderApproved, QueueOrderApproved},
	{ExchangeVerification, KeyOrderApproved, QueueStockApproved},
	{ExchangeVerification, KeyOrderApproved, QueueInvoiceApproved},
	{ExchangeStock, KeyVerificationReserve, QueueStockReserve},
	{ExchangeStock, KeyStockDeduct, QueueStockDeduct},
	{ExchangeStock, KeyStockConfirm, QueueStockConfirm},
	{ExchangeNotification, KeyNotificationSend, QueueNotificationSend},
	{ExchangeStock, KeyStockRelease, QueueStockRelease},
	{ExchangeVerification, KeyOrderRejected, QueueOrderRejected},
	{ExchangeVerification, KeyStockReserved, QueueOrderStockResult},
	{ExchangeVerification, KeyStockReservationFailed, QueueOrderStockResult},
	{ExchangeVerification, KeyStockReservationFailed, QueueVerificationStockFail},
	{ExchangeVerification, KeyStockReserved, QueueVerificationReserved},
	{ExchangeVerification, KeyOrderCancelled, QueueVerificationCancelled},
}

// Queues lists every work queue once, in declaration order.
func Queues() []string {
	seen := make(map[string]bool, len(Bindings))
	out := make([]string, 0, len(Bindings))
	for _, b := range Bindings {
		if !seen[b.Queue] {
			seen[b.Queue] = true
			out = append(out, b.Queue)
		}
	}
	return out
}
