// Package messaging binds each service's work queues to its handlers.
package messaging

import (
	"context"
	"fmt"

	"order-fulfillment/internal/contracts"
	rabbit "order-fulfillment/internal/infra/rabbitmq"
	"order-fulfillment/internal/services"

	"golang.org/x/sync/errgroup"
)

type Route struct {
	Queue  string
	Handle rabbit.Handler
}

// Run consumes every route until ctx is cancelled or a subscription fails.
func Run(ctx context.Context, sub rabbit.SubscriberInterface, routes []Route) error {
	g, ctx := errgroup.WithContext(ctx)
	for _, r := range routes {
		r := r
		g.Go(func() error {
			if err := sub.Subscribe(ctx, r.Queue, r.Handle); err != nil {
				return fmt.Errorf("subscribe %s: %w", r.Queue, err)
			}
			return nil
		})
	}
	return g.Wait()
}

func OrderRoutes(svc *services.OrderService) []Route {
	return []Route{
		{Queue: contracts.QueueOrderApproved, Handle: func(ctx context.Context, env contracts.Envelope) error {
			msg, err := contracts.Decode[contracts.OrderApprovedMessage](env, contracts.TypeOrderApproved)
			if err != nil {
				return err
			}
			_, err = svc.MarkApproved(ctx, msg.OrderID)
			return err
		}},
		{Queue: contracts.QueueOrderRejected, Handle: func(ctx context.Context, env contracts.Envelope) error {
			msg, err := contracts.Decode[contracts.OrderRejectedMessage](env, contracts.TypeOrderRejected)
			if err != nil {
				return err
			}
			_, err = svc.MarkRejected(ctx, msg.OrderID, msg.Reason)
			return err
		}},
		{Queue: contracts.QueueOrderStockResult, Handle: func(ctx context.Context, env contracts.Envelope) error {
			msg, err := contracts.Decode[contracts.StockReservationResult](env,
				contracts.TypeStockReserved, contracts.TypeStockReservationFailed)
			if err != nil {
				return err
			}
			if env.Type == contracts.TypeStockReserved {
				_, err = svc.MarkStockReserved(ctx, msg.OrderID)
			} else {
				_, err = svc.MarkReservationFailed(ctx, msg.OrderID, msg.Reason)
			}
			return err
		}},
	}
}

func VerificationRoutes(svc *services.VerificationService) []Route {
	return []Route{
		{Queue: contracts.QueueVerificationReserve, Handle: func(ctx context.Context, env contracts.Envelope) error {
			msg, err := contracts.Decode[contracts.VerificationMessage](env, contracts.TypeVerificationRequested)
			if err != nil {
				return err
			}
			_, err = svc.HandleReservationRequest(ctx, msg)
			return err
		}},
		{Queue: contracts.QueueVerificationStockFail, Handle: func(ctx context.Context, env contracts.Envelope) error {
			msg, err := contracts.Decode[contracts.StockReservationResult](env, contracts.TypeStockReservationFailed)
			if err != nil {
				return err
			}
			_, err = svc.HandleReservationFailed(ctx, msg)
			return err
		}},
		{Queue: contracts.QueueVerificationReserved, Handle: func(ctx context.Context, env contracts.Envelope) error {
			msg, err := contracts.Decode[contracts.StockReservationResult](env, contracts.TypeStockReserved)
			if err != nil {
				return err
			}
			_, err = svc.HandleStockReserved(ctx, msg)
			return err
		}},
		{Queue: contracts.QueueVerificationCancelled, Handle: func(ctx context.Context, env contracts.Envelope) error {
			msg, err := contracts.Decode[contracts.OrderCancelledMessage](env, contracts.TypeOrderCancelled)
			if err != nil {
				return err
			}
			_, err = svc.HandleOrderCancelled(ctx, msg)
			return err
		}},
	}
}

// StockRoutes wires the ledger. order.approved, stock.confirm and
// stock.deduct all settle through the same confirm path.
func StockRoutes(svc *services.StockService) []Route {
	stockUpdate := func(env contracts.Envelope) (contracts.StockUpdateMessage, error) {
		return contracts.Decode[contracts.StockUpdateMessage](env, contracts.TypeStockUpdate)
	}
	return []Route{
		{Queue: contracts.QueueStockReserve, Handle: func(ctx context.Context, env contracts.Envelope) error {
			msg, err := stockUpdate(env)
			if err != nil {
				return err
			}
			return svc.ReserveForOrder(ctx, msg.OrderID, contracts.ToStockLines(msg.Items))
		}},
		{Queue: contracts.QueueStockApproved, Handle: func(ctx context.Context, env contracts.Envelope) error {
			msg, err := contracts.Decode[contracts.OrderApprovedMessage](env, contracts.TypeOrderApproved)
			if err != nil {
				return err
			}
			_, err = svc.Confirm(ctx, msg.OrderID)
			return err
		}},
		{Queue: contracts.QueueStockConfirm, Handle: func(ctx context.Context, env contracts.Envelope) error {
			msg, err := stockUpdate(env)
			if err != nil {
				return err
			}
			_, err = svc.Confirm(ctx, msg.OrderID)
			return err
		}},
		{Queue: contracts.QueueStockDeduct, Handle: func(ctx context.Context, env contracts.Envelope) error {
			msg, err := stockUpdate(env)
			if err != nil {
				return err
			}
			_, err = svc.ConfirmOrDeduct(ctx, msg.OrderID, contracts.ToStockLines(msg.Items))
			return err
		}},
		{Queue: contracts.QueueStockRelease, Handle: func(ctx context.Context, env contracts.Envelope) error {
			msg, err := stockUpdate(env)
			if err != nil {
				return err
			}
			_, err = svc.Release(ctx, msg.OrderID)
			return err
		}},
	}
}

func InvoiceRoutes(svc *services.InvoiceService) []Route {
	return []Route{
		{Queue: contracts.QueueInvoiceApproved, Handle: func(ctx context.Context, env contracts.Envelope) error {
			msg, err := contracts.Decode[contracts.OrderApprovedMessage](env, contracts.TypeOrderApproved)
			if err != nil {
				return err
			}
			_, err = svc.CreateInvoice(ctx, msg.OrderID)
			return err
		}},
	}
}

func NotificationRoutes(svc *services.NotificationService) []Route {
	return []Route{
		{Queue: contracts.QueueNotificationSend, Handle: func(ctx context.Context, env contracts.Envelope) error {
			msg, err := contracts.Decode[contracts.NotificationMessage](env, contracts.TypeNotification)
			if err != nil {
				return err
			}
			_, err = svc.Dispatch(ctx, msg)
			return err
		}},
	}
}
