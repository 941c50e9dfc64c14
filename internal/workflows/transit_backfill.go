package workflows

import (
	"fmt"

	"go.temporal.io/sdk/workflow"

	"github.com/wms-platform/reconciliation-service/internal/application"
	pkgtemporal "github.com/wms-platform/reconciliation-service/pkg/temporal"
)

// DefaultBackfillBatchSize is how many purchase orders one listing returns
const DefaultBackfillBatchSize = 50

// TransitBackfillInput configures a backfill run
type TransitBackfillInput struct {
	// BatchSize bounds each listing; <= 0 uses DefaultBackfillBatchSize
	BatchSize int `json:"batchSize"`
	// MaxOrders stops the run after this many orders; <= 0 means no cap
	MaxOrders int `json:"maxOrders"`
}

// TransitBackfillResult summarizes a backfill run
type TransitBackfillResult struct {
	Processed       int      `json:"processed"`
	ProductsCreated int      `json:"productsCreated"`
	ProductsMatched int      `json:"productsMatched"`
	TransitCreated  int      `json:"transitCreated"`
	Failed          []string `json:"failed"`
}

// TransitBackfillWorkflow syncs stored purchase orders that never produced
// transit records. Orders are listed in batches and synced one at a time;
// an order that fails is reported and not retried within the run. Orders
// that sync without producing transit stay listed and are skipped.
func TransitBackfillWorkflow(ctx workflow.Context, input TransitBackfillInput) (*TransitBackfillResult, error) {
	logger := workflow.GetLogger(ctx)
	ctx = workflow.WithActivityOptions(ctx, pkgtemporal.DefaultActivityOptions())

	batchSize := input.BatchSize
	if batchSize <= 0 {
		batchSize = DefaultBackfillBatchSize
	}

	logger.Info("Starting transit backfill", "batchSize", batchSize, "maxOrders", input.MaxOrders)

	result := &TransitBackfillResult{Failed: []string{}}
	attempted := make(map[string]bool)

	for input.MaxOrders <= 0 || len(attempted) < input.MaxOrders {
		// Failed orders and orders without transit-producing lines stay
		// unsynced, so widen the listing past everything already attempted
		var ids []string
		err := workflow.ExecuteActivity(ctx, pkgtemporal.ActivityNames.ListUnsyncedPurchaseOrders, batchSize+len(attempted)).Get(ctx, &ids)
		if err != nil {
			return result, fmt.Errorf("failed to list unsynced purchase orders: %w", err)
		}

		fresh := make([]string, 0, len(ids))
		for _, id := range ids {
			if !attempted[id] {
				fresh = append(fresh, id)
			}
		}
		if len(fresh) == 0 {
			break
		}

		for _, id := range fresh {
			if input.MaxOrders > 0 && len(attempted) >= input.MaxOrders {
				break
			}
			attempted[id] = true

			var synced application.SyncResultDTO
			err := workflow.ExecuteActivity(ctx, pkgtemporal.ActivityNames.SyncPurchaseOrder, id).Get(ctx, &synced)
			if err != nil {
				logger.Warn("Purchase order sync failed", "purchaseOrderId", id, "error", err)
				result.Failed = append(result.Failed, id)
				continue
			}

			result.Processed++
			result.ProductsCreated += synced.ProductsCreated
			result.ProductsMatched += synced.ProductsMatched
			result.TransitCreated += synced.TransitCreated
		}
	}

	logger.Info("Transit backfill completed",
		"processed", result.Processed,
		"failed", len(result.Failed),
		"transitCreated", result.TransitCreated,
	)
	return result, nil
}
