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

const clientAttempts = 3

func main() {
	if err := run(); err != nil {
		log.Fatalf("verification-service: %v", err)
	}
}

func run() error {
	_ = godotenv.Load()
	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	rt, err := app.New(ctx, "verification-service", "8083", &domain.PendingVerification{})
	if err != nil {
		return err
	}
	defer rt.Close()

	var repo repository.VerificationRepository = memory.NewVerificationRepo()
	if rt.DB != nil {
		repo = mysqlrepo.NewVerificationRepository(rt.DB)
	}
	s := services.NewVerificationService(repo, rt.Publisher, rt.Log)
	s.SetOrderClient(infra.NewOrderClient(rt.Config.OrderServiceURL, rt.Config.HTTPClientTimeout, clientAttempts))

	gin.SetMode(gin.ReleaseMode)
	r := http.NewRouter(rt.Config.ServiceName, http.NewVerificationHandler(s))

	return rt.Run(ctx, r, messaging.VerificationRoutes(s))
}
