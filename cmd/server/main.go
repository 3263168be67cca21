package main

import (
	"context"
	"errors"
	"fmt"
	"log"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"cafe-service/config"
	"cafe-service/internal/api"
	"cafe-service/internal/broker"
	"cafe-service/internal/redisclient"
	"cafe-service/internal/service"
	"cafe-service/internal/store"
	"cafe-service/internal/util"
	"cafe-service/internal/worker"

	"github.com/gin-gonic/gin"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"go.uber.org/zap"
)

func main() {

	cfg := config.Load()

	if err := util.InitLogger(cfg.Server.Env); err != nil {
		log.Fatalf("Failed to initialize logger: %v", err)
	}
	defer util.SyncLogger()

	logger := util.GetLogger()
	logger.Info("Starting cafe service")

	tp, err := util.InitTracer("cafe-service", cfg.Server.Env, cfg.Observ.JaegerEndpoint)
	if err != nil {
		logger.Fatal("Failed to initialize tracer", zap.Error(err))
	}
	defer func() {
		ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		if err := tp.Shutdown(ctx); err != nil {
			logger.Error("Error shutting down tracer", zap.Error(err))
		}
	}()

	db, err := store.NewStore(cfg.Database.URL)
	if err != nil {
		logger.Fatal("Failed to connect to database", zap.Error(err))
	}
	defer db.Close()
	logger.Info("Database connected")

	// Redis only speeds up the catalog and guards double checkouts
	var (
		locker service.Locker
		cache  service.ObjectCache
	)
	redisClient, err := redisclient.NewClient(cfg.Redis.Addr, cfg.Redis.Password, cfg.Redis.DB)
	if err != nil {
		logger.Warn("Redis unavailable; running without catalog cache and checkout locks", zap.Error(err))
	} else {
		defer redisClient.Close()
		locker, cache = redisClient, redisClient
		logger.Info("Redis connected")
	}

	producer := broker.NewProducer(cfg.Kafka.Brokers, cfg.Kafka.TopicEvents)
	defer producer.Close()
	logger.Info("Kafka producer initialized", zap.String("topic", cfg.Kafka.TopicEvents))

	eventPublisher := broker.NewEventPublisher(producer)

	orderService := service.NewOrderService(db, locker, eventPublisher, service.OrderOptions{
		StrictStock:   cfg.Business.StockPolicy == config.StockPolicyStrict,
		LockTTL:       time.Duration(cfg.Business.CheckoutLockSeconds) * time.Second,
		RetryAttempts: cfg.Business.StockRetryAttempts,
	})
	basketService := service.NewBasketService(db)
	shipmentService := service.NewShipmentService(db, eventPublisher)
	catalogService := service.NewCatalogService(db, cache,
		time.Duration(cfg.Business.CatalogCacheSeconds)*time.Second)
	reportService := service.NewReportService(db)
	stockMonitor := service.NewStockMonitor(db, eventPublisher)

	workerCtx, workerCancel := context.WithCancel(context.Background())
	defer workerCancel()

	stockConsumer := broker.NewConsumer(cfg.Kafka.Brokers, cfg.Kafka.TopicEvents, cfg.Kafka.ConsumerGroup)
	stockWorker := worker.NewStockWorker(stockConsumer, stockMonitor)
	go func() {
		if err := stockWorker.Start(workerCtx); err != nil && !errors.Is(err, context.Canceled) {
			logger.Error("Stock worker error", zap.Error(err))
		}
	}()

	if cfg.Server.Env == "production" {
		gin.SetMode(gin.ReleaseMode)
	}

	router := gin.New()
	handler := api.NewHandler(api.Services{
		Orders:    orderService,
		Baskets:   basketService,
		Shipments: shipmentService,
		Catalog:   catalogService,
		Reports:   reportService,
		Readiness: db,
		ErrorLog:  db,
	})
	if err := handler.SetupRoutes(router); err != nil {
		logger.Fatal("Failed to set up routes", zap.Error(err))
	}

	srv := &http.Server{
		Addr:    fmt.Sprintf(":%s", cfg.Server.Port),
		Handler: router,
	}

	metricsSrv := &http.Server{
		Addr:    fmt.Sprintf(":%s", cfg.Observ.PrometheusPort),
		Handler: promhttp.Handler(),
	}

	go func() {
		logger.Info("Starting HTTP server", zap.String("port", cfg.Server.Port))
		if err := srv.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			logger.Fatal("Failed to start server", zap.Error(err))
		}
	}()

	go func() {
		logger.Info("Starting metrics server", zap.String("port", cfg.Observ.PrometheusPort))
		if err := metricsSrv.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			logger.Error("Metrics server stopped", zap.Error(err))
		}
	}()

	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
	<-quit

	logger.Info("Shutting down server")

	shutdownCtx, shutdownCancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer shutdownCancel()

	if err := srv.Shutdown(shutdownCtx); err != nil {
		logger.Error("Server forced to shutdown", zap.Error(err))
	}
	if err := metricsSrv.Shutdown(shutdownCtx); err != nil {
		logger.Error("Metrics server forced to shutdown", zap.Error(err))
	}

	workerCancel()
	if err := stockWorker.Stop(); err != nil {
		logger.Error("Error stopping stock worker", zap.Error(err))
	}

	logger.Info("Server exited")
}
