// Package app owns the process-wide connections of a service binary and runs
// its HTTP server and consumers under one errgroup.
package app

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"time"

	"order-fulfillment/internal/config"
	"order-fulfillment/internal/controllers/messaging"
	"order-fulfillment/internal/infra/dedup"
	"order-fulfillment/internal/infra/logging"
	mmysql "order-fulfillment/internal/infra/mysql"
	"order-fulfillment/internal/infra/rabbitmq"
	"order-fulfillment/internal/infra/tracing"

	"github.com/gin-gonic/gin"
	"github.com/redis/go-redis/v9"
	"go.uber.org/zap"
	"golang.org/x/sync/errgroup"
	"gorm.io/gorm"
)

const shutdownTimeout = 10 * time.Second

// Worker is a background loop that runs until ctx ends.
type Worker func(ctx context.Context) error

type Runtime struct {
	Config *config.Config
	Log    *zap.Logger
	// DB is nil with the memory storage driver.
	DB *gorm.DB
	// Redis is nil when REDIS_ADDR is unset.
	Redis     *redis.Client
	Publisher *rabbitmq.Publisher
	Consumer  *rabbitmq.Consumer

	session         *rabbitmq.Session
	shutdownTracing func(context.Context) error
}

// New loads configuration and opens every connection the service needs.
// models are migrated when the MySQL driver is selected.
func New(ctx context.Context, service, port string, models ...any) (*Runtime, error) {
	cfg, err := config.Load(service, port)
	if err != nil {
		return nil, fmt.Errorf("config: %w", err)
	}
	log, err := logging.New(cfg.ServiceName, cfg.LogLevel)
	if err != nil {
		return nil, err
	}
	rt := &Runtime{Config: cfg, Log: log}

	rt.shutdownTracing, err = tracing.Setup(ctx, cfg.ServiceName, cfg.OtelEndpoint)
	if err != nil {
		return nil, err
	}

	if cfg.StorageDriver == config.DriverMySQL {
		rt.DB, err = mmysql.Open(cfg.MySQL, models...)
		if err != nil {
			rt.Close()
			return nil, err
		}
	} else {
		log.Warn("using in-memory storage, state is lost on restart")
	}

	var dd rabbitmq.Deduplicator
	if cfg.RedisAddr != "" {
		rt.Redis = redis.NewClient(&redis.Options{
			Addr:         cfg.RedisAddr,
			PoolSize:     50,
			MinIdleConns: 5,
			DialTimeout:  2 * time.Second,
			ReadTimeout:  500 * time.Millisecond,
			WriteTimeout: 500 * time.Millisecond,
		})
		pingCtx, cancel := context.WithTimeout(ctx, 2*time.Second)
		err := rt.Redis.Ping(pingCtx).Err()
		cancel()
		if err != nil {
			rt.Close()
			return nil, fmt.Errorf("redis ping: %w", err)
		}
		dd = dedup.NewStore(rt.Redis, cfg.ServiceName, cfg.DedupTTL)
	}

	rt.session = rabbitmq.NewSession(cfg.RabbitURL, cfg.DeliveryLimit, log)
	if err := rt.session.Connect(ctx); err != nil {
		rt.Close()
		return nil, fmt.Errorf("rabbitmq: %w", err)
	}
	rt.Publisher = rabbitmq.NewPublisher(rt.session, cfg.PublishAttempts, log)
	rt.Consumer = rabbitmq.NewConsumer(rt.session, cfg.Prefetch, dd, log)
	return rt, nil
}

// Run serves router and consumes routes until ctx is cancelled or one of
// them fails. workers run alongside.
func (rt *Runtime) Run(ctx context.Context, router *gin.Engine, routes []messaging.Route, workers ...Worker) error {
	srv := &http.Server{
		Addr:              ":" + rt.Config.Port,
		Handler:           router,
		ReadHeaderTimeout: 5 * time.Second,
		WriteTimeout:      15 * time.Second,
	}

	g, gctx := errgroup.WithContext(ctx)
	g.Go(func() error {
		rt.Log.Info("http listening", zap.String("addr", srv.Addr))
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			return fmt.Errorf("http server: %w", err)
		}
		return nil
	})
	g.Go(func() error {
		<-gctx.Done()
		shutdownCtx, cancel := context.WithTimeout(context.Background(), shutdownTimeout)
		defer cancel()
		return srv.Shutdown(shutdownCtx)
	})
	g.Go(func() error {
		return messaging.Run(gctx, rt.Consumer, routes)
	})
	for _, w := range workers {
		w := w
		g.Go(func() error { return w(gctx) })
	}
	return g.Wait()
}

// Close releases every connection. It is safe on a partially built Runtime.
func (rt *Runtime) Close() {
	if rt.Publisher != nil {
		rt.Publisher.Close()
	}
	if rt.session != nil {
		if err := rt.session.Close(); err != nil {
			rt.Log.Warn("rabbitmq close", zap.Error(err))
		}
	}
	if rt.Redis != nil {
		_ = rt.Redis.Close()
	}
	if rt.DB != nil {
		if sqlDB, err := rt.DB.DB(); err == nil {
			_ = sqlDB.Close()
		}
	}
	if rt.shutdownTracing != nil {
		ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		if err := rt.shutdownTracing(ctx); err != nil {
			rt.Log.Warn("tracing shutdown", zap.Error(err))
		}
	}
	_ = rt.Log.Sync()
}

// Every runs fn at interval until ctx ends. Errors are logged, not returned.
func Every(interval time.Duration, log *zap.Logger, name string, fn func(ctx context.Context) error) Worker {
	return func(ctx context.Context) error {
		t := time.NewTicker(interval)
		defer t.Stop()
		for {
			select {
			case <-ctx.Done():
				return nil
			case <-t.C:
				if err := fn(ctx); err != nil {
					log.Warn("periodic job failed", zap.String("job", name), zap.Error(err))
				}
			}
		}
	}
}
