// Package bootstrap builds the storage and locking backends selected by
// configuration. The API and worker processes share it.
package bootstrap

import (
	"context"
	"errors"
	"fmt"

	"github.com/redis/go-redis/v9"

	"github.com/wms-platform/reconciliation-service/internal/application"
	"github.com/wms-platform/reconciliation-service/internal/config"
	"github.com/wms-platform/reconciliation-service/internal/domain"
	"github.com/wms-platform/reconciliation-service/internal/infrastructure/events"
	"github.com/wms-platform/reconciliation-service/internal/infrastructure/filestore"
	mongoRepo "github.com/wms-platform/reconciliation-service/internal/infrastructure/mongodb"
	"github.com/wms-platform/reconciliation-service/internal/infrastructure/redislock"
	"github.com/wms-platform/reconciliation-service/pkg/kafka"
	"github.com/wms-platform/reconciliation-service/pkg/logging"
	"github.com/wms-platform/reconciliation-service/pkg/metrics"
	"github.com/wms-platform/reconciliation-service/pkg/mongodb"
	"github.com/wms-platform/reconciliation-service/pkg/outbox"
	"github.com/wms-platform/reconciliation-service/pkg/resilience"
)

// Backends holds the state store and write lock chosen by configuration
type Backends struct {
	Repo   domain.StateRepository
	Locker application.Locker
	// Outbox is set for the MongoDB store only
	Outbox outbox.Repository

	checks  []func(context.Context) error
	closers []func() error
}

// Build connects the configured store and lock. producer may be nil, in
// which case the file store does not publish events.
func Build(ctx context.Context, cfg *config.Config, mapper *events.Mapper, producer kafka.EventPublisher, m *metrics.Metrics, logger *logging.Logger) (*Backends, error) {
	b := &Backends{}

	switch cfg.StoreBackend {
	case config.StoreMongoDB:
		client, err := mongodb.NewClient(ctx, cfg.MongoDB())
		if err != nil {
			return nil, fmt.Errorf("failed to connect to MongoDB: %w", err)
		}
		b.closers = append(b.closers, func() error { return client.Close(context.Background()) })
		b.checks = append(b.checks, client.HealthCheck)
		logger.Info("Connected to MongoDB", "database", cfg.MongoDatabase)

		breaker := resilience.NewCircuitBreaker(resilience.DefaultCircuitBreakerConfig("mongodb"), logger.Logger, m)
		repo := mongoRepo.NewStateRepository(client, mapper, breaker, m, logger)
		if err := repo.EnsureIndexes(ctx); err != nil {
			logger.WithError(err).Warn("Failed to create indexes")
		}
		b.Repo = repo
		b.Outbox = repo.OutboxRepository()

	case config.StoreFile:
		opts := []filestore.Option{filestore.WithMetrics(m)}
		if producer != nil {
			opts = append(opts, filestore.WithEventSink(events.NewDirectPublisher(mapper, producer, logger)))
		}
		b.Repo = filestore.NewStore(cfg.StoreFilePath, logger, opts...)
		logger.Info("Using file store", "path", cfg.StoreFilePath)

	default:
		return nil, fmt.Errorf("unknown store backend %q", cfg.StoreBackend)
	}

	if cfg.RedisAddr != "" {
		client := redis.NewClient(&redis.Options{Addr: cfg.RedisAddr, Password: cfg.RedisPassword})
		b.closers = append(b.closers, client.Close)
		if err := client.Ping(ctx).Err(); err != nil {
			_ = b.Close()
			return nil, fmt.Errorf("failed to connect to Redis at %s: %w", cfg.RedisAddr, err)
		}
		b.checks = append(b.checks, func(ctx context.Context) error { return client.Ping(ctx).Err() })

		lockConfig := redislock.DefaultConfig()
		lockConfig.TTL = cfg.LockTTL
		lockConfig.WaitTimeout = cfg.LockWait
		b.Locker = redislock.NewLocker(client, lockConfig, logger)
		logger.Info("Using Redis write lock", "addr", cfg.RedisAddr, "ttl", cfg.LockTTL)
	} else {
		b.Locker = application.NewLocalLocker()
		logger.Info("Using in-process write lock")
	}

	return b, nil
}

// Ready reports the first failing backend health check
func (b *Backends) Ready(ctx context.Context) error {
	for _, check := range b.checks {
		if err := check(ctx); err != nil {
			return err
		}
	}
	return nil
}

// Close releases backend connections in reverse order of creation
func (b *Backends) Close() error {
	var errs []error
	for i := len(b.closers) - 1; i >= 0; i-- {
		errs = append(errs, b.closers[i]())
	}
	b.closers = nil
	return errors.Join(errs...)
}

// NewService wires the reconciliation service over the backends
func NewService(cfg *config.Config, b *Backends, m *metrics.Metrics, logger *logging.Logger) (*application.ReconciliationService, error) {
	opts, err := cfg.MatchingOptions()
	if err != nil {
		return nil, fmt.Errorf("failed to load matcher options: %w", err)
	}
	matcher := domain.NewProductMatcher(opts)
	logger.Info("Matcher configured", "threshold", matcher.Threshold(), "stopWords", len(opts.StopWords))

	return application.NewReconciliationService(b.Repo, matcher, b.Locker, m, logger), nil
}
