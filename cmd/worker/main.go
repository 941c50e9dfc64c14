package main

import (
	"context"
	"os"
	"os/signal"
	"syscall"
	"time"

	"go.temporal.io/sdk/activity"
	"go.temporal.io/sdk/workflow"

	"github.com/wms-platform/reconciliation-service/internal/activities"
	"github.com/wms-platform/reconciliation-service/internal/bootstrap"
	"github.com/wms-platform/reconciliation-service/internal/config"
	"github.com/wms-platform/reconciliation-service/internal/infrastructure/events"
	"github.com/wms-platform/reconciliation-service/internal/workflows"
	"github.com/wms-platform/reconciliation-service/pkg/cloudevents"
	"github.com/wms-platform/reconciliation-service/pkg/kafka"
	"github.com/wms-platform/reconciliation-service/pkg/logging"
	"github.com/wms-platform/reconciliation-service/pkg/metrics"
	"github.com/wms-platform/reconciliation-service/pkg/temporal"
	"github.com/wms-platform/reconciliation-service/pkg/tracing"
)

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

	logger.Info("Starting reconciliation worker", "taskQueue", cfg.TemporalTaskQueue)

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	tracerProvider, err := tracing.Initialize(ctx, cfg.Tracing())
	if err != nil {
		logger.WithError(err).Error("Failed to initialize tracing")
	} else if tracerProvider != nil {
		defer func() {
			shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
			defer cancel()
			_ = tracerProvider.Shutdown(shutdownCtx)
		}()
	}

	m := metrics.New(metrics.DefaultConfig(config.ServiceName))

	// The file store publishes directly; MongoDB writes to the outbox that
	// the API process relays
	var producer kafka.EventPublisher
	if cfg.KafkaEnabled && cfg.StoreBackend == config.StoreFile {
		kafkaProducer := kafka.NewProducer(cfg.Kafka())
		defer kafkaProducer.Close()
		producer = kafka.NewInstrumentedProducer(kafkaProducer, m, logger)
	}

	mapper := events.NewMapper(cloudevents.NewEventFactory("/"+config.ServiceName), cfg.InventoryTopic)
	backends, err := bootstrap.Build(ctx, cfg, mapper, producer, m, logger)
	if err != nil {
		logger.WithError(err).Error("Failed to initialize storage")
		os.Exit(1)
	}
	defer backends.Close()

	service, err := bootstrap.NewService(cfg, backends, m, logger)
	if err != nil {
		logger.WithError(err).Error("Failed to initialize reconciliation service")
		os.Exit(1)
	}

	temporalClient, err := temporal.NewClient(ctx, cfg.Temporal("reconciliation-worker"))
	if err != nil {
		logger.WithError(err).Error("Failed to connect to Temporal", "host", cfg.TemporalHost)
		os.Exit(1)
	}
	defer temporalClient.Close()
	logger.Info("Connected to Temporal", "host", cfg.TemporalHost, "namespace", cfg.TemporalNamespace)

	w := temporalClient.NewWorker(temporal.DefaultWorkerOptions(cfg.TemporalTaskQueue))

	w.RegisterWorkflowWithOptions(workflows.TransitBackfillWorkflow, workflow.RegisterOptions{
		Name: temporal.WorkflowNames.TransitBackfill,
	})
	logger.Info("Registered workflows", "workflows", []string{temporal.WorkflowNames.TransitBackfill})

	backfillActivities := activities.NewBackfillActivities(service, m)
	w.RegisterActivityWithOptions(backfillActivities.ListUnsyncedPurchaseOrders, activity.RegisterOptions{
		Name: temporal.ActivityNames.ListUnsyncedPurchaseOrders,
	})
	w.RegisterActivityWithOptions(backfillActivities.SyncPurchaseOrder, activity.RegisterOptions{
		Name: temporal.ActivityNames.SyncPurchaseOrder,
	})
	logger.Info("Registered activities", "activities", []string{
		temporal.ActivityNames.ListUnsyncedPurchaseOrders,
		temporal.ActivityNames.SyncPurchaseOrder,
	})

	if err := w.Start(); err != nil {
		logger.WithError(err).Error("Failed to start worker")
		os.Exit(1)
	}
	logger.Info("Worker started", "taskQueue", cfg.TemporalTaskQueue)

	<-ctx.Done()
	logger.Info("Shutting down worker...")

	w.Stop()
	logger.Info("Worker stopped")
}
