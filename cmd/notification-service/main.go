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
	"order-fulfillment/internal/repository"
	"order-fulfillment/internal/repository/memory"
	mysqlrepo "order-fulfillment/internal/repository/mysql"
	"order-fulfillment/internal/services"

	"github.com/gin-gonic/gin"
	"github.com/joho/godotenv"
)

func main() {
	if err := run(); err != nil {
		log.Fatalf("notification-service: %v", err)
	}
}

func run() error {
	_ = godotenv.Load()
	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	rt, err := app.New(ctx, "notification-service", "8085", &domain.Notification{})
	if err != nil {
		return err
	}
	defer rt.Close()
	cfg := rt.Config

	var repo repository.NotificationRepository = memory.NewNotificationRepo()
	if rt.DB != nil {
		repo = mysqlrepo.NewNotificationRepository(rt.DB)
	}
	invoices := infra.NewInvoiceClient(cfg.InvoiceServiceURL, cfg.HTTPClientTimeout)
	s := services.NewNotificationService(repo, infra.NewLogTransport(rt.Log), invoices,
		cfg.NotifyAttempts, cfg.InvoicePollAttempts, rt.Log)

	gin.SetMode(gin.ReleaseMode)
	r := http.NewRouter(cfg.ServiceName, http.NewNotificationHandler(s))

	return rt.Run(ctx, r, messaging.NotificationRoutes(s))
}
