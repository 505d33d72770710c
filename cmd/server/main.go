package main

import (
	"context"
	"errors"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/redis/go-redis/v9"
	"github.com/sirupsen/logrus"
	"go.opentelemetry.io/contrib/instrumentation/net/http/otelhttp"

	"github.com/ranntharath/ecomerce-backend/internal/bakong"
	"github.com/ranntharath/ecomerce-backend/internal/cache"
	"github.com/ranntharath/ecomerce-backend/internal/cart"
	"github.com/ranntharath/ecomerce-backend/internal/checkout"
	"github.com/ranntharath/ecomerce-backend/internal/config"
	"github.com/ranntharath/ecomerce-backend/internal/events"
	"github.com/ranntharath/ecomerce-backend/internal/inventory"
	"github.com/ranntharath/ecomerce-backend/internal/lock"
	"github.com/ranntharath/ecomerce-backend/internal/repository"
	"github.com/ranntharath/ecomerce-backend/internal/server"
	"github.com/ranntharath/ecomerce-backend/internal/settlement"
)

const shutdownTimeout = 10 * time.Second

func main() {
	log := logrus.New()
	log.SetFormatter(&logrus.JSONFormatter{})

	cfg, err := config.Load()
	if err != nil {
		log.WithError(err).Fatal("failed to load config")
	}
	if level, err := logrus.ParseLevel(cfg.LogLevel); err == nil {
		log.SetLevel(level)
	}

	ctx, cancel := context.WithTimeout(context.Background(), 15*time.Second)
	defer cancel()

	db, err := repository.ConnectMongoDB(ctx, cfg.MongoURI, cfg.MongoDB)
	if err != nil {
		log.WithError(err).Fatal("failed to connect to MongoDB")
	}
	defer func() {
		ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		if err := db.Client().Disconnect(ctx); err != nil {
			log.WithError(err).Warn("failed to disconnect from MongoDB")
		}
	}()

	products := repository.NewMongoProductStore(db)
	carts := repository.NewMongoCartStore(db)
	orders := repository.NewMongoOrderStore(db)
	processed := repository.NewMongoSettlementEventStore(db)

	if err := carts.EnsureIndexes(ctx); err != nil {
		log.WithError(err).Fatal("failed to create cart indexes")
	}
	if err := orders.EnsureIndexes(ctx); err != nil {
		log.WithError(err).Fatal("failed to create order indexes")
	}

	redisClient := redis.NewClient(&redis.Options{
		Addr:     cfg.RedisAddr,
		Password: cfg.RedisPassword,
	})
	if err := redisClient.Ping(ctx).Err(); err != nil {
		log.WithError(err).Fatal("failed to connect to Redis")
	}
	defer redisClient.Close()

	gateway, err := bakong.NewClient(bakong.Config{
		BaseURL:    cfg.Bakong.APIURL,
		MerchantID: cfg.Bakong.MerchantID,
		APIKey:     cfg.Bakong.APIKey,
		SecretKey:  cfg.Bakong.SecretKey,
		Timeout:    cfg.Bakong.Timeout,
	}, log)
	if err != nil {
		log.WithError(err).Fatal("failed to build payment gateway client")
	}

	var publisher events.Publisher = events.NopPublisher{}
	if len(cfg.KafkaBrokers) > 0 {
		kafkaPublisher := events.NewKafkaPublisher(cfg.KafkaBrokers, cfg.KafkaTopic, log)
		defer kafkaPublisher.Close()
		publisher = kafkaPublisher
	} else {
		log.Warn("no Kafka brokers configured, order events will be discarded")
	}

	cartCache := cache.NewRedisCache(redisClient)
	ledger := inventory.NewLedger(products, log)
	locks := lock.NewKeyed()

	cartService := cart.NewService(carts, products, cartCache, log)
	checkoutService := checkout.NewService(carts, products, orders, ledger, cartCache, locks, log)
	reconciler := settlement.NewReconciler(orders, processed, ledger, gateway, publisher, locks, cfg.AppURL, log)

	router := server.NewRouter(server.Deps{
		Cart:           server.NewCartHandler(cartService),
		Orders:         server.NewOrderHandler(checkoutService, orders),
		Payments:       server.NewPaymentHandler(reconciler),
		Products:       server.NewProductHandler(products),
		JWTSecret:      cfg.JWTSecret,
		RequestTimeout: cfg.RequestTimeout,
		Log:            log,
	})

	srv := &http.Server{
		Addr:         ":" + cfg.HTTPPort,
		Handler:      otelhttp.NewHandler(router, "ecommerce-backend"),
		ReadTimeout:  10 * time.Second,
		WriteTimeout: 30 * time.Second,
		IdleTimeout:  60 * time.Second,
	}

	go func() {
		log.WithField("port", cfg.HTTPPort).Info("server starting")
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			log.WithError(err).Fatal("server error")
		}
	}()

	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
	<-quit

	log.Info("shutting down server")
	shutdownCtx, shutdownCancel := context.WithTimeout(context.Background(), shutdownTimeout)
	defer shutdownCancel()

	if err := srv.Shutdown(shutdownCtx); err != nil {
		log.WithError(err).Fatal("server forced to shutdown")
	}
	log.Info("server exited")
}
