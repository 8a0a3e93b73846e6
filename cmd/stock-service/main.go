package main

import (
	"context"
	"log"
	"os"
	"os/signal"
	"syscall"

	"order-fulfillment/internal/app"
	"order-fulfillment/internal/controllers/http"
	"order-fulfillment/internal/controllers/messaging"
	"order-fulfillment/internal/domain"
	"order-fulfillment/internal/infra"
	"order-fulfillment/internal/infra/kafka"
	"order-fulfillment/internal/repository"
	"order-fulfillment/internal/repository/memory"
	mysqlrepo "order-fulfillment/internal/repository/mysql"
	"order-fulfillment/internal/services"

	"github.com/gin-gonic/gin"
	"github.com/joho/godotenv"
	"go.uber.org/zap"
)

func main() {
	if err := run(); err != nil {
		log.Fatalf("stock-service: %v", err)
	}
}

func run() error {
	_ = godotenv.Load()
	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	rt, err := app.New(ctx, "stock-service", "8082", &domain.Product{}, &domain.StockTransaction{})
	if err != nil {
		return err
	}
	defer rt.Close()
	cfg := rt.Config

	var repo repository.StockRepository = memory.NewStockRepo()
	if rt.DB != nil {
		repo = mysqlrepo.NewStockRepository(rt.DB)
	}

	var audit infra.AuditSink = kafka.NopSink{}
	if len(cfg.KafkaBrokers) > 0 {
		sink := kafka.NewAuditSink(cfg.KafkaBrokers, cfg.AuditTopic, rt.Log)
		defer func() {
			if err := sink.Close(); err != nil {
				rt.Log.Warn("audit sink close", zap.Error(err))
			}
		}()
		audit = sink
	}

	s := services.NewStockService(repo, audit, rt.Publisher, rt.Log)

	gin.SetMode(gin.ReleaseMode)
	r := http.NewRouter(cfg.ServiceName, http.NewStockHandler(s))

	return rt.Run(ctx, r, messaging.StockRoutes(s))
}
