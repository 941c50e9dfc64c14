package bootstrap

import (
	"context"
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/wms-platform/reconciliation-service/internal/application"
	"github.com/wms-platform/reconciliation-service/internal/config"
	"github.com/wms-platform/reconciliation-service/internal/infrastructure/events"
	"github.com/wms-platform/reconciliation-service/internal/infrastructure/filestore"
	"github.com/wms-platform/reconciliation-service/pkg/cloudevents"
	"github.com/wms-platform/reconciliation-service/pkg/logging"
)

func fileConfig(t *testing.T) *config.Config {
	t.Helper()
	return &config.Config{
		StoreBackend:  config.StoreFile,
		StoreFilePath: filepath.Join(t.TempDir(), "state.json"),
	}
}

func newMapper() *events.Mapper {
	return events.NewMapper(cloudevents.NewEventFactory("/reconciliation-service"), "")
}

func TestBuild_FileStoreWithLocalLock(t *testing.T) {
	cfg := fileConfig(t)

	b, err := Build(context.Background(), cfg, newMapper(), nil, nil, logging.NewNop())
	require.NoError(t, err)
	defer b.Close()

	assert.IsType(t, &filestore.Store{}, b.Repo)
	assert.IsType(t, &application.LocalLocker{}, b.Locker)
	assert.Nil(t, b.Outbox)
	assert.NoError(t, b.Ready(context.Background()))
}

func TestBuild_UnknownBackend(t *testing.T) {
	cfg := &config.Config{StoreBackend: "sqlite"}

	_, err := Build(context.Background(), cfg, newMapper(), nil, nil, logging.NewNop())
	assert.ErrorContains(t, err, "unknown store backend")
}

func TestNewService_UsesMatcherOptions(t *testing.T) {
	cfg := fileConfig(t)
	optsPath := filepath.Join(t.TempDir(), "matching.yaml")
	require.NoError(t, os.WriteFile(optsPath, []byte("threshold: 0.9\n"), 0o600))
	cfg.MatchingConfigPath = optsPath

	logger := logging.NewNop()
	b, err := Build(context.Background(), cfg, newMapper(), nil, nil, logger)
	require.NoError(t, err)
	defer b.Close()

	service, err := NewService(cfg, b, nil, logger)
	require.NoError(t, err)

	ctx := context.Background()
	_, err = service.RecordPurchaseOrder(ctx, application.RecordPurchaseOrderCommand{
		PurchaseOrderID: "po-1",
		SupplierID:      "sup-1",
		Lines: []application.PurchaseOrderLineInput{
			{Description: "Organic Rolled Oats 1kg", Quantity: 2, UnitCostGBP: 1.5},
		},
	})
	require.NoError(t, err)

	// Jaccard 3/4 clears the default threshold but not 0.9
	result, err := service.RecordPurchaseOrder(ctx, application.RecordPurchaseOrderCommand{
		PurchaseOrderID: "po-2",
		SupplierID:      "sup-1",
		Lines: []application.PurchaseOrderLineInput{
			{Description: "Rolled Oats 1kg", Quantity: 1, UnitCostGBP: 1.4},
		},
	})
	require.NoError(t, err)
	assert.Equal(t, 1, result.ProductsCreated)
	assert.Zero(t, result.ProductsMatched)
}

func TestNewService_BadMatcherFile(t *testing.T) {
	cfg := fileConfig(t)
	cfg.MatchingConfigPath = filepath.Join(t.TempDir(), "missing.yaml")

	b, err := Build(context.Background(), cfg, newMapper(), nil, nil, logging.NewNop())
	require.NoError(t, err)
	defer b.Close()

	_, err = NewService(cfg, b, nil, logging.NewNop())
	assert.Error(t, err)
}
