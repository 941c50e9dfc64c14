package activities

import (
	"context"
	"time"

	"go.temporal.io/sdk/activity"
	"go.temporal.io/sdk/temporal"

	"github.com/wms-platform/reconciliation-service/internal/application"
	"github.com/wms-platform/reconciliation-service/pkg/errors"
	"github.com/wms-platform/reconciliation-service/pkg/metrics"
)

// BackfillService is the application surface the backfill activities call
type BackfillService interface {
	ListUnsyncedPurchaseOrders(ctx context.Context, limit int) ([]string, error)
	SyncPurchaseOrder(ctx context.Context, cmd application.SyncPurchaseOrderCommand) (*application.SyncResultDTO, error)
}

// BackfillActivities contains the transit backfill activities
type BackfillActivities struct {
	service BackfillService
	metrics *metrics.Metrics
}

// NewBackfillActivities creates a new BackfillActivities. m may be nil.
func NewBackfillActivities(service BackfillService, m *metrics.Metrics) *BackfillActivities {
	return &BackfillActivities{service: service, metrics: m}
}

// ListUnsyncedPurchaseOrders returns up to limit purchase order ids that have
// no transit records, oldest stored first
func (a *BackfillActivities) ListUnsyncedPurchaseOrders(ctx context.Context, limit int) ([]string, error) {
	start := time.Now()
	logger := activity.GetLogger(ctx)

	ids, err := a.service.ListUnsyncedPurchaseOrders(ctx, limit)
	a.record("ListUnsyncedPurchaseOrders", err == nil, start)
	if err != nil {
		logger.Error("Failed to list unsynced purchase orders", "error", err)
		return nil, toActivityError(err)
	}

	logger.Info("Listed unsynced purchase orders", "count", len(ids), "limit", limit)
	return ids, nil
}

// SyncPurchaseOrder syncs one stored purchase order. It never forces, so a
// retried attempt after a committed sync is a no-op.
func (a *BackfillActivities) SyncPurchaseOrder(ctx context.Context, purchaseOrderID string) (*application.SyncResultDTO, error) {
	start := time.Now()
	logger := activity.GetLogger(ctx)

	result, err := a.service.SyncPurchaseOrder(ctx, application.SyncPurchaseOrderCommand{
		PurchaseOrderID: purchaseOrderID,
		Source:          "backfill",
	})
	a.record("SyncPurchaseOrder", err == nil, start)
	if err != nil {
		logger.Error("Failed to sync purchase order", "purchaseOrderId", purchaseOrderID, "error", err)
		return nil, toActivityError(err)
	}

	logger.Info("Synced purchase order",
		"purchaseOrderId", purchaseOrderID,
		"alreadySynced", result.AlreadySynced,
		"transitCreated", result.TransitCreated,
	)
	return result, nil
}

func (a *BackfillActivities) record(name string, success bool, start time.Time) {
	if a.metrics != nil {
		a.metrics.RecordActivityCompleted(name, success, time.Since(start))
	}
}

// toActivityError marks caller errors as non-retryable so Temporal stops
// retrying them
func toActivityError(err error) error {
	appErr, ok := errors.AsAppError(err)
	if !ok {
		return err
	}
	switch appErr.Code {
	case errors.CodeValidationError:
		return temporal.NewNonRetryableApplicationError(appErr.Message, "ValidationError", err)
	case errors.CodeNotFound:
		return temporal.NewNonRetryableApplicationError(appErr.Message, "NotFoundError", err)
	default:
		return err
	}
}
