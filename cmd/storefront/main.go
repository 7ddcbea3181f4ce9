package main

import (
	"context"
	"errors"
	"fmt"
	"log"
	"log/slog"
	"net"
	"net/http"
	"os"
	"os/signal"
	"sync"
	"syscall"
	"time"

	"github.com/redis/go-redis/v9"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/propagation"

	"github.com/fjod/skinet/internal/cache"
	"github.com/fjod/skinet/internal/cart"
	"github.com/fjod/skinet/internal/catalog"
	"github.com/fjod/skinet/internal/config"
	"github.com/fjod/skinet/internal/health"
	h "github.com/fjod/skinet/internal/http"
	"github.com/fjod/skinet/internal/logger"
	"github.com/fjod/skinet/internal/notify"
	"github.com/fjod/skinet/internal/orders"
	"github.com/fjod/skinet/internal/outbox"
	"github.com/fjod/skinet/internal/payment"
	"github.com/fjod/skinet/internal/store"
)

func main() {
	cfg, err := config.Load()
	if err != nil {
		log.Fatalf("Failed to load configuration: %v", err)
	}

	logg := logger.New(os.Stdout, cfg.Env, logger.ParseLevel(cfg.LogLevel))
	slog.SetDefault(logg)
	otel.SetTextMapPropagator(propagation.NewCompositeTextMapPropagator(propagation.TraceContext{}, propagation.Baggage{}))
	logg.Info("storefront starting", "env", cfg.Env)

	var wg sync.WaitGroup
	ctx := context.Background()

	// Database setup
	cred := cfg.Credentials()
	db, err := store.Open(cred)
	if err != nil {
		fatal(logg, "failed to connect to database", err)
	}
	defer db.Close()
	if err := db.RunMigrations(cred); err != nil {
		fatal(logg, "failed to run migrations", err)
	}
	logg.Info("database migrations completed")
	st := store.NewStore(db, store.DefaultRegistry())

	// MongoDB for carts
	mongoDB, err := cart.ConnectMongoDB(ctx, cfg.Mongo.URI, cfg.Mongo.DBName)
	if err != nil {
		fatal(logg, "failed to connect to MongoDB", err)
	}
	defer mongoDB.Client().Disconnect(context.Background())
	cartRepo := cart.NewMongoRepository(mongoDB)
	if err := cartRepo.CreateIndexes(ctx); err != nil {
		fatal(logg, "failed to create cart indexes", err)
	}

	redisClient := redis.NewClient(&redis.Options{
		Addr:     cfg.Redis.Addr,
		Password: cfg.Redis.Password,
		DB:       cfg.Redis.DB,
	})
	defer redisClient.Close()
	if err := redisClient.Ping(ctx).Err(); err != nil {
		fatal(logg, "redis connection failed", err)
	}

	responseClient := redis.NewClient(&redis.Options{
		Addr:     cfg.Redis.Addr,
		Password: cfg.Redis.Password,
		DB:       cfg.Redis.CacheDB,
	})
	defer responseClient.Close()

	// Services
	carts := cart.NewService(cartRepo, cart.NewRedisCache(cache.NewRedisCache(redisClient)), logg)
	gateway := payment.NewBreakerGateway(
		payment.NewStripeGateway(cfg.StripeSecretKey, cfg.StripeWebhookSecret),
		payment.BreakerSettings{MaxFailures: cfg.BreakerMaxFailures, OpenTimeout: cfg.BreakerOpenTimeout},
		logg,
	)
	payments := payment.NewService(st, carts, gateway, cfg.Currency, logg)
	hub := notify.NewHub(cfg.AllowedOrigins, logg)
	webhooks := payment.NewWebhookService(st, gateway, hub, logg)
	orderService := orders.NewService(st, carts, payments, logg)
	products := catalog.NewService(st, logg)

	bgCtx, bgCancel := context.WithCancel(context.Background())

	// Outbox: Kafka when brokers are configured, in process otherwise
	cleanup := outbox.NewCartCleanup(carts, logg)
	var (
		publisher outbox.Publisher
		consumer  *outbox.Consumer
		kafkaPub  *outbox.KafkaPublisher
	)
	if len(cfg.Kafka.Brokers) > 0 {
		kafkaPub = outbox.NewKafkaPublisher(cfg.Kafka.Topic, cfg.Kafka.Brokers...)
		publisher = kafkaPub
		consumer = outbox.NewConsumer(cleanup, logg, cfg.Kafka.Topic, cfg.Kafka.GroupID, cfg.Kafka.Brokers...)
		wg.Add(1)
		go func() {
			defer wg.Done()
			consumer.Run(bgCtx)
		}()
	} else {
		publisher = outbox.NewLocalPublisher(cleanup)
	}
	poller := outbox.NewPoller(st, publisher, cfg.OutboxTick, logg)
	wg.Add(1)
	go func() {
		defer wg.Done()
		poller.Run(bgCtx)
	}()

	// Health
	checker := health.NewChecker(logg, cfg.HealthProbeTick,
		health.SQLProbe(db),
		health.RedisProbe(redisClient),
		health.MongoProbe(mongoDB.Client()),
	)
	wg.Add(1)
	go func() {
		defer wg.Done()
		checker.Run(bgCtx)
	}()

	lis, err := net.Listen("tcp", fmt.Sprintf(":%s", cfg.GRPCHealthPort))
	if err != nil {
		fatal(logg, "failed to listen", err)
	}
	grpcServer := health.NewServer(checker)
	go func() {
		logg.Info("health service listening", "port", cfg.GRPCHealthPort)
		if err := grpcServer.Serve(lis); err != nil {
			logg.Error("health server stopped", "error", err)
		}
	}()

	limiter := h.NewRateLimiter(cfg.PaymentRateLimit, cfg.PaymentRateBurst)
	wg.Add(1)
	go func() {
		defer wg.Done()
		ticker := time.NewTicker(5 * time.Minute)
		defer ticker.Stop()
		for {
			select {
			case <-ticker.C:
				limiter.Prune(30 * time.Minute)
			case <-bgCtx.Done():
				return
			}
		}
	}()

	router := h.NewRouter(h.RouterConfig{
		JWTSecret:       cfg.JWTSecret,
		ExposeErrors:    !cfg.IsProduction(),
		RequestTimeout:  cfg.RequestTimeout,
		ProductCacheTTL: cfg.ProductCacheTTL,
		PaymentLimiter:  limiter,
	}, h.Deps{
		Products: products,
		Delivery: products,
		Carts:    carts,
		Payments: payments,
		Webhooks: webhooks,
		Orders:   orderService,
		Hub:      hub,
		Cache:    cache.NewRedisCache(responseClient),
		Ready:    checker.Serving,
		Logger:   logg,
	})

	srv := &http.Server{
		Addr:         ":" + cfg.HTTPPort,
		Handler:      router,
		ReadTimeout:  10 * time.Second,
		WriteTimeout: cfg.RequestTimeout + 5*time.Second,
		IdleTimeout:  60 * time.Second,
	}

	go func() {
		logg.Info("storefront listening", "port", cfg.HTTPPort)
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			fatal(logg, "server error", err)
		}
	}()

	// Graceful shutdown
	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
	<-quit

	logg.Info("shutting down storefront")
	checker.Shutdown()

	shutdownCtx, shutdownCancel := context.WithTimeout(context.Background(), cfg.ShutdownTimeout)
	defer shutdownCancel()

	if err := srv.Shutdown(shutdownCtx); err != nil {
		logg.Error("server forced to shutdown", "error", err)
	}
	hub.Close()
	grpcServer.GracefulStop()
	bgCancel()

	doneChan := make(chan struct{})
	go func() {
		wg.Wait()
		close(doneChan)
	}()

	select {
	case <-doneChan:
		logg.Info("background workers stopped cleanly")
	case <-shutdownCtx.Done():
		logg.Warn("background workers didn't stop in time")
	}

	if consumer != nil {
		consumer.Close()
	}
	if kafkaPub != nil {
		if err := kafkaPub.Close(); err != nil {
			logg.Error("error closing kafka writer", "error", err)
		}
	}
	logg.Info("storefront stopped")
}

func fatal(logg *slog.Logger, msg string, err error) {
	logg.Error(msg, "error", err)
	os.Exit(1)
}
