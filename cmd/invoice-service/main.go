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
		log.Fatalf("invoice-service: %v", err)
	}
}

func run() error {
	_ = godotenv.Load()
	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	rt, err := app.New(ctx, "invoice-service", "8084", &domain.Invoice{}, &domain.InvoiceItem{})
	if err != nil {
		return err
	}
	defer rt.Close()
	cfg := rt.Config

	var repo repository.InvoiceRepository = memory.NewInvoiceRepo()
	if rt.DB != nil {
		repo = mysqlrepo.NewInvoiceRepository(rt.DB)
	}
	orders := infra.NewOrderClient(cfg.OrderServiceURL, cfg.HTTPClientTimeout, clientAttempts)
	s := services.NewInvoiceService(repo, orders, cfg.InvoicePollAttempts, rt.Log)

	sweep := app.Every(cfg.OverdueSweep, rt.Log, "mark-overdue", func(ctx context.Context) error {
		n, err := s.MarkOverdue(ctx, time.Now().UTC())
		if n > 0 {
			rt.Log.Info("invoices marked overdue", zap.Int("count", n))
		}
		return err
	})

	gin.SetMode(gin.ReleaseMode)
	r := http.NewRouter(cfg.ServiceName, http.NewInvoiceHandler(s))

	return rt.Run(ctx, r, messaging.InvoiceRoutes(s), sweep)
}
