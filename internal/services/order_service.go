package services

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"order-fulfillment/internal/contracts"
	"order-fulfillment/internal/domain"
	"order-fulfillment/internal/infra"
	rabbit "order-fulfillment/internal/infra/rabbitmq"
	"order-fulfillment/internal/repository"

	"github.com/redis/go-redis/v9"
	"go.uber.org/zap"
)

const defaultProductCacheTTL = time.Minute

type CreateOrderItem struct {
	ProductID uint64
	Quantity  int64
}

type CreateOrderInput struct {
	Customer domain.Customer
	Items    []CreateOrderItem
}

type OrderService struct {
	repo        repository.OrderRepository
	prodClient  infra.ProductClientInterface
	out         emitter
	redisClient *redis.Client
	cacheTTL    time.Duration
	log         *zap.Logger
}

func NewOrderService(r repository.OrderRepository, p infra.ProductClientInterface, pub rabbit.PublisherInterface, log *zap.Logger) *OrderService {
	return &OrderService{
		repo:       r,
		prodClient: p,
		out:        emitter{pub: pub, source: "order-service"},
		cacheTTL:   defaultProductCacheTTL,
		log:        log,
	}
}

func (u *OrderService) SetRedisClient(client *redis.Client, ttl time.Duration) {
	u.redisClient = client
	if ttl > 0 {
		u.cacheTTL = ttl
	}
}

// CreateOrder prices the items from the catalogue, stores the order as
// Pending and starts the saga.
func (u *OrderService) CreateOrder(ctx context.Context, in CreateOrderInput) (*domain.Order, error) {
	if len(in.Items) == 0 || in.Customer.Name == "" || in.Customer.Email == "" {
		return nil, domain.ErrInvalidOrder
	}

	items := make([]domain.OrderItem, 0, len(in.Items))
	for _, it := range in.Items {
		if it.Quantity <= 0 {
			return nil, domain.ErrInvalidQuantity
		}
		prod, err := u.getProductWithCache(ctx, it.ProductID)
		if err != nil {
			return nil, err
		}
		if prod == nil {
			return nil, fmt.Errorf("%w: %d", domain.ErrProductNotFound, it.ProductID)
		}
		items = append(items, domain.OrderItem{ProductID: it.ProductID, Quantity: it.Quantity, UnitPrice: prod.Price})
	}

	order, err := domain.NewOrder(in.Customer, items)
	if err != nil {
		return nil, err
	}
	if err := u.repo.Save(ctx, order); err != nil {
		return nil, fmt.Errorf("save order: %w", err)
	}

	if err := u.out.emit(ctx, contracts.ExchangeVerification, contracts.KeyVerificationReserve,
		contracts.TypeVerificationRequested, order.ID, contracts.VerificationFromOrder(order)); err != nil {
		u.log.Error("verification request not published", zap.String("order_id", order.ID), zap.Error(err))
		reason := "verification request could not be published"
		if _, uerr := u.repo.UpdateStatus(ctx, order.ID, domain.StatusPending, domain.StatusFailed, reason); uerr != nil {
			u.log.Error("failed to mark order failed", zap.String("order_id", order.ID), zap.Error(uerr))
		}
		return nil, fmt.Errorf("publish verification request: %w", err)
	}

	text := fmt.Sprintf("We received your order %s totalling %s. It is awaiting verification.", order.ID, order.Total.StringFixed(2))
	if err := u.out.notify(ctx, contracts.KindReceived, order.ID, order.CustomerEmail, order.CustomerPhone, text); err != nil {
		u.log.Warn("order received notification not published", zap.String("order_id", order.ID), zap.Error(err))
	}

	u.log.Info("order created", zap.String("order_id", order.ID), zap.String("total", order.Total.String()))
	return order, nil
}

func (u *OrderService) getProductWithCache(ctx context.Context, productId uint64) (*infra.ProductInfo, error) {
	cacheKey := fmt.Sprintf("product:%d", productId)

	if u.redisClient != nil {
		cached, err := u.redisClient.Get(ctx, cacheKey).Bytes()
		if err == nil {
			var prod infra.ProductInfo
			if err := json.Unmarshal(cached, &prod); err == nil {
				return &prod, nil
			}
		} else if err != redis.Nil {
			u.log.Debug("product cache read failed", zap.Uint64("product_id", productId), zap.Error(err))
		}
	}

	prod, err := u.prodClient.GetProductById(ctx, productId)
	if err != nil {
		return nil, fmt.Errorf("lookup product %d: %w", productId, err)
	}

	if u.redisClient != nil && prod != nil {
		if data, err := json.Marshal(prod); err == nil {
			u.redisClient.Set(ctx, cacheKey, data, u.cacheTTL)
		}
	}
	return prod, nil
}

func (u *OrderService) WarmupProductCache(ctx context.Context, productIds []uint64) error {
	if u.redisClient == nil {
		return nil
	}

	for _, id := range productIds {
		prod, err := u.prodClient.GetProductById(ctx, id)
		if err != nil {
			u.log.Warn("cache warmup failed", zap.Uint64("product_id", id), zap.Error(err))
			continue
		}
		if prod != nil {
			if data, err := json.Marshal(prod); err == nil {
				u.redisClient.Set(ctx, fmt.Sprintf("product:%d", id), data, u.cacheTTL)
			}
		}
	}
	return nil
}

func (u *OrderService) GetOrder(ctx context.Context, id string) (*domain.Order, error) {
	o, err := u.repo.FindByID(ctx, id)
	if err != nil {
		return nil, err
	}
	if o == nil {
		return nil, domain.ErrOrderNotFound
	}
	return o, nil
}

// ListOrders returns all orders, or those in one status when status is set.
func (u *OrderService) ListOrders(ctx context.Context, status string) ([]domain.Order, error) {
	var st domain.OrderStatus
	if status != "" {
		parsed, err := domain.ParseOrderStatus(status)
		if err != nil {
			return nil, err
		}
		st = parsed
	}
	return u.repo.List(ctx, st)
}

// advance moves the order to target with compare-and-set. decide inspects
// the current state and reports whether to write; a nil order with a nil
// error means there is nothing to do.
func (u *OrderService) advance(ctx context.Context, id string, target domain.OrderStatus, reason string,
	decide func(o *domain.Order) (bool, error)) (*domain.Order, error) {
	const attempts = 3
	for i := 0; i < attempts; i++ {
		o, err := u.GetOrder(ctx, id)
		if err != nil {
			return nil, err
		}
		write, err := decide(o)
		if err != nil || !write {
			return o, err
		}
		ok, err := u.repo.UpdateStatus(ctx, id, o.Status, target, reason)
		if err != nil {
			return nil, fmt.Errorf("update order %s: %w", id, err)
		}
		if ok {
			u.log.Info("order status changed",
				zap.String("order_id", id),
				zap.String("from", string(o.Status)),
				zap.String("to", string(target)))
			o.Status = target
			o.StatusReason = reason
			return o, nil
		}
	}
	return nil, fmt.Errorf("order %s changed concurrently", id)
}

// MarkStockReserved handles stock.reserved. Late or repeated events for an
// order already past that point are ignored.
func (u *OrderService) MarkStockReserved(ctx context.Context, id string) (*domain.Order, error) {
	return u.advance(ctx, id, domain.StatusStockReserved, "", func(o *domain.Order) (bool, error) {
		if o.Status.Reached(domain.StatusStockReserved) || o.Status.Terminal() {
			return false, nil
		}
		return true, nil
	})
}

// MarkReservationFailed records why stock could not be reserved. The order
// stays Pending until the gate rejects it.
func (u *OrderService) MarkReservationFailed(ctx context.Context, id, reason string) (*domain.Order, error) {
	return u.advance(ctx, id, domain.StatusPending, reason, func(o *domain.Order) (bool, error) {
		return o.Status == domain.StatusPending && o.StatusReason != reason, nil
	})
}

func (u *OrderService) MarkApproved(ctx context.Context, id string) (*domain.Order, error) {
	return u.advance(ctx, id, domain.StatusApproved, "", func(o *domain.Order) (bool, error) {
		if o.Status.Reached(domain.StatusApproved) {
			return false, nil
		}
		if !domain.CanTransition(o.Status, domain.StatusApproved) {
			return false, fmt.Errorf("%w: %s -> %s", domain.ErrInvalidTransition, o.Status, domain.StatusApproved)
		}
		return true, nil
	})
}

func (u *OrderService) MarkRejected(ctx context.Context, id, reason string) (*domain.Order, error) {
	return u.advance(ctx, id, domain.StatusCancelled, reason, func(o *domain.Order) (bool, error) {
		if o.Status == domain.StatusCancelled {
			return false, nil
		}
		if !domain.CanTransition(o.Status, domain.StatusCancelled) {
			return false, fmt.Errorf("%w: %s -> %s", domain.ErrInvalidTransition, o.Status, domain.StatusCancelled)
		}
		return true, nil
	})
}

// UpdateStatus is the administrative override. Cancelling or failing an
// order that has not been approved yet publishes a release for its stock and
// tells the gate to close the entry.
func (u *OrderService) UpdateStatus(ctx context.Context, id, statusName string) (*domain.Order, error) {
	target, err := domain.ParseOrderStatus(statusName)
	if err != nil {
		return nil, err
	}

	const reason = "status set by operator"
	var from domain.OrderStatus
	o, err := u.advance(ctx, id, target, reason, func(o *domain.Order) (bool, error) {
		if o.Status == target {
			return false, nil
		}
		if !domain.CanTransition(o.Status, target) {
			return false, fmt.Errorf("%w: %s -> %s", domain.ErrInvalidTransition, o.Status, target)
		}
		from = o.Status
		return true, nil
	})
	if err != nil || from == "" {
		return o, err
	}

	holdsStock := from == domain.StatusPending || from == domain.StatusStockReserved
	if holdsStock && (target == domain.StatusCancelled || target == domain.StatusFailed) {
		if err := u.out.emit(ctx, contracts.ExchangeStock, contracts.KeyStockRelease,
			contracts.TypeStockUpdate, o.ID, contracts.ReleaseFromOrder(o)); err != nil {
			return o, fmt.Errorf("publish stock release: %w", err)
		}
		if err := u.out.emit(ctx, contracts.ExchangeVerification, contracts.KeyOrderCancelled,
			contracts.TypeOrderCancelled, o.ID, contracts.OrderCancelledMessage{
				OrderID: o.ID, Status: string(target), Reason: reason,
			}); err != nil {
			return o, fmt.Errorf("publish order cancellation: %w", err)
		}
	}
	return o, nil
}
