package main

import (
	"context"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/gin-gonic/gin"

	"github.com/wms-platform/reconciliation-service/api"
	"github.com/wms-platform/reconciliation-service/internal/api/handlers"
	"github.com/wms-platform/reconciliation-service/internal/bootstrap"
	"github.com/wms-platform/reconciliation-service/internal/config"
	"github.com/wms-platform/reconciliation-service/internal/infrastructure/events"
	ingest "github.com/wms-platform/reconciliation-service/internal/infrastructure/kafka"
	"github.com/wms-platform/reconciliation-service/pkg/cloudevents"
	"github.com/wms-platform/reconciliation-service/pkg/contracts/asyncapi"
	"github.com/wms-platform/reconciliation-service/pkg/kafka"
	"github.com/wms-platform/reconciliation-service/pkg/logging"
	"github.com/wms-platform/reconciliation-service/pkg/metrics"
	"github.com/wms-platform/reconciliation-service/pkg/middleware"
	"github.com/wms-platform/reconciliation-service/pkg/outbox"
	"github.com/wms-platform/reconciliation-service/pkg/tracing"
)

const basePath = "/api/v1/reconciliation"

func main() {
	cfg, err := config.Load()
	if err != nil {
		logging.New(logging.DefaultConfig(config.ServiceName)).WithError(err).Error("Failed to load configuration")
		os.Exit(1)
	}

	logConfig := logging.DefaultConfig(config.ServiceName)
	logConfig.Level = logging.LogLevel(cfg.LogLevel)
	logger := logging.New(logConfig)
	logger.SetDefault()

	logger.Info("Starting reconciliation-service API", "store", cfg.StoreBackend)

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	// Initialize OpenTelemetry tracing
	tracerProvider, err := tracing.Initialize(ctx, cfg.Tracing())
	if err != nil {
		logger.WithError(err).Error("Failed to initialize tracing")
		// Continue without tracing
	} else if tracerProvider != nil {
		defer func() {
			shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
			defer cancel()
			if err := tracerProvider.Shutdown(shutdownCtx); err != nil {
				logger.WithError(err).Error("Failed to shutdown tracer")
			}
		}()
		logger.Info("Tracing initialized", "endpoint", cfg.OTLPEndpoint)
	}

	m := metrics.New(metrics.DefaultConfig(config.ServiceName))

	eventFactory := cloudevents.NewEventFactory("/" + config.ServiceName)
	mapper := events.NewMapper(eventFactory, cfg.InventoryTopic)

	var producer kafka.EventPublisher
	if cfg.KafkaEnabled {
		kafkaProducer := kafka.NewProducer(cfg.Kafka())
		defer kafkaProducer.Close()
		producer = kafka.NewInstrumentedProducer(kafkaProducer, m, logger)
		logger.Info("Kafka producer initialized", "brokers", cfg.Brokers())
	}

	backends, err := bootstrap.Build(ctx, cfg, mapper, producer, m, logger)
	if err != nil {
		logger.WithError(err).Error("Failed to initialize storage")
		os.Exit(1)
	}
	defer backends.Close()

	// The API process relays the outbox; workers only write to it
	if backends.Outbox != nil && producer != nil {
		outboxPublisher := outbox.NewPublisher(backends.Outbox, producer, logger, m, outbox.DefaultPublisherConfig())
		if err := outboxPublisher.Start(ctx); err != nil {
			logger.WithError(err).Error("Failed to start outbox publisher")
			os.Exit(1)
		}
		defer outboxPublisher.Stop()
		logger.Info("Outbox publisher started")
	}

	service, err := bootstrap.NewService(cfg, backends, m, logger)
	if err != nil {
		logger.WithError(err).Error("Failed to initialize reconciliation service")
		os.Exit(1)
	}

	if cfg.KafkaEnabled {
		validator, err := asyncapi.NewEventValidatorFromBytes(api.AsyncAPI)
		if err != nil {
			logger.WithError(err).Error("Failed to load AsyncAPI contract")
			os.Exit(1)
		}

		consumer := kafka.NewConsumer(cfg.Kafka(), logger, m)
		defer consumer.Close()
		ingest.NewPurchaseOrderListener(service, validator, logger).Register(consumer, cfg.PurchaseOrdersTopic)

		go func() {
			if err := consumer.Start(ctx); err != nil && ctx.Err() == nil {
				logger.WithError(err).Error("Kafka consumer stopped")
			}
		}()
		logger.Info("Kafka consumer started", "topic", cfg.PurchaseOrdersTopic, "group", cfg.KafkaConsumerGroup)
	}

	router := gin.New()
	middleware.Setup(router, middleware.DefaultConfig(config.ServiceName, logger.Logger))
	router.Use(middleware.MetricsMiddleware(m))
	router.Use(middleware.Tracing(config.ServiceName))

	router.NoRoute(middleware.NoRoute())
	router.NoMethod(middleware.NoMethod())

	router.GET("/health", middleware.HealthCheck(config.ServiceName))
	router.GET("/ready", middleware.ReadinessCheck(config.ServiceName, func() error {
		return backends.Ready(ctx)
	}))
	router.GET("/metrics", middleware.MetricsEndpoint(m))

	handlers.NewReconciliationHandler(service, logger).RegisterRoutes(router.Group(basePath))

	srv := &http.Server{
		Addr:         cfg.ServerAddr,
		Handler:      router,
		ReadTimeout:  10 * time.Second,
		WriteTimeout: 30 * time.Second,
	}

	go func() {
		if err := srv.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			logger.WithError(err).Error("Server error")
			stop()
		}
	}()
	logger.Info("Server started", "addr", cfg.ServerAddr)

	<-ctx.Done()
	logger.Info("Shutting down server...")

	shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()

	if err := srv.Shutdown(shutdownCtx); err != nil {
		logger.WithError(err).Error("Server forced to shutdown")
	}

	logger.Info("Server stopped")
}
