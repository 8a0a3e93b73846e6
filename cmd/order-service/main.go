package main

import (
	"context"
	"log"
	"os"
	"os/signal"
	"syscall"
	"time"

	"order-fulfillment/internal/app"
	"order-fulfillment/internal/controllers/http"
	"order-fulfillment/internal/controllers/messaging"
	"order-fulfillment/internal/domain"
	"order-fulfillment/internal/infra"
	"order-fulfillment/internal/repository"
	"order-fulfillment/internal/repository/memory"
	mysqlrepo "order-fulfillment/internal/repository/mysql"
	"order-fulfillment/internal/services"

	"github.com/gin-gonic/gin"
	"github.com/joho/godotenv"
	"go.uber.org/zap"
)

const clientAttempts = 3

func main() {
	if err := run(); err != nil {
		log.Fatalf("order-service: %v", err)
	}
}

func run() error {
	_ = godotenv.Load()
	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	rt, err := app.New(ctx, "order-service", "8081", &domain.Order{}, &domain.OrderItem{})
	if err != nil {
		return err
	}
	defer rt.Close()
	cfg := rt.Config

	var repo repository.OrderRepository = memory.NewOrderRepo()
	if rt.DB != nil {
		repo = mysqlrepo.NewOrderRepository(rt.DB)
	}
	productClient := infra.NewProductClient(cfg.StockServiceURL, cfg.HTTPClientTimeout, clientAttempts)

	s := services.NewOrderService(repo, productClient, rt.Publisher, rt.Log)
	if rt.Redis != nil {
		s.SetRedisClient(rt.Redis, cfg.ProductCacheTTL)
	}

	warmup := func(ctx context.Context) error {
		if rt.Redis == nil || len(cfg.WarmupProducts) == 0 {
			return nil
		}
		select {
		case <-ctx.Done():
			return nil
		case <-time.After(5 * time.Second):
		}
		if err := s.WarmupProductCache(ctx, cfg.WarmupProducts); err != nil {
			rt.Log.Warn("product cache warmup failed", zap.Error(err))
			return nil
		}
		rt.Log.Info("product cache warmed", zap.Int("products", len(cfg.WarmupProducts)))
		return nil
	}

	gin.SetMode(gin.ReleaseMode)
	r := http.NewRouter(cfg.ServiceName, http.NewOrderHandler(s))

	return rt.Run(ctx, r, messaging.OrderRoutes(s), warmup)
}
