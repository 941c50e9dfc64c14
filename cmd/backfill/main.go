// Command backfill starts a transit backfill workflow and waits for its result.
package main

import (
	"context"
	"flag"
	"fmt"
	"os"
	"time"

	"github.com/google/uuid"

	"github.com/wms-platform/reconciliation-service/internal/config"
	"github.com/wms-platform/reconciliation-service/internal/workflows"
	"github.com/wms-platform/reconciliation-service/pkg/logging"
	"github.com/wms-platform/reconciliation-service/pkg/temporal"
)

func main() {
	batchSize := flag.Int("batch-size", workflows.DefaultBackfillBatchSize, "purchase orders listed per batch")
	maxOrders := flag.Int("max-orders", 0, "stop after this many orders (0 = all)")
	wait := flag.Bool("wait", true, "wait for the workflow to finish")
	timeout := flag.Duration("timeout", 30*time.Minute, "how long to wait for the result")
	flag.Parse()

	logger := logging.New(logging.DefaultConfig(config.ServiceName + "-backfill"))

	cfg, err := config.Load()
	if err != nil {
		logger.WithError(err).Error("Failed to load configuration")
		os.Exit(1)
	}

	ctx, cancel := context.WithTimeout(context.Background(), *timeout)
	defer cancel()

	temporalClient, err := temporal.NewClient(ctx, cfg.Temporal("reconciliation-backfill-cli"))
	if err != nil {
		logger.WithError(err).Error("Failed to connect to Temporal", "host", cfg.TemporalHost)
		os.Exit(1)
	}
	defer temporalClient.Close()

	workflowID := fmt.Sprintf("transit-backfill-%s", uuid.NewString())
	run, err := temporalClient.StartWorkflow(ctx, workflowID, temporal.WorkflowNames.TransitBackfill, workflows.TransitBackfillInput{
		BatchSize: *batchSize,
		MaxOrders: *maxOrders,
	})
	if err != nil {
		logger.WithError(err).Error("Failed to start backfill workflow")
		os.Exit(1)
	}
	logger.Info("Started backfill workflow", "workflowId", run.GetID(), "runId", run.GetRunID())

	if !*wait {
		return
	}

	var result workflows.TransitBackfillResult
	if err := run.Get(ctx, &result); err != nil {
		logger.WithError(err).Error("Backfill workflow failed", "workflowId", run.GetID())
		os.Exit(1)
	}

	logger.Info("Backfill completed",
		"processed", result.Processed,
		"productsCreated", result.ProductsCreated,
		"productsMatched", result.ProductsMatched,
		"transitCreated", result.TransitCreated,
		"failed", result.Failed,
	)
	if len(result.Failed) > 0 {
		os.Exit(2)
	}
}
