package application

import (
	"context"
	stderrors "errors"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/wms-platform/reconciliation-service/internal/domain"
	"github.com/wms-platform/reconciliation-service/internal/matching"
	"github.com/wms-platform/reconciliation-service/pkg/errors"
	"github.com/wms-platform/reconciliation-service/pkg/logging"
	"github.com/wms-platform/reconciliation-service/pkg/metrics"
)

var errUnexpected = stderrors.New("unexpected")

type fakeStateRepo struct {
	mu         sync.Mutex
	state      *domain.State
	events     []domain.DomainEvent
	persists   int
	loadErr    error
	persistErr error
}

func newFakeStateRepo() *fakeStateRepo {
	return &fakeStateRepo{state: domain.NewState()}
}

func (f *fakeStateRepo) Load(ctx context.Context) (*domain.State, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.loadErr != nil {
		return nil, f.loadErr
	}
	return f.state.Clone(), nil
}

func (f *fakeStateRepo) Persist(ctx context.Context, state *domain.State, events []domain.DomainEvent) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.persistErr != nil {
		return f.persistErr
	}
	f.state = state.Clone()
	f.events = append(f.events, events...)
	f.persists++
	return nil
}

type fakeLocker struct {
	err error
}

func (f *fakeLocker) Lock(ctx context.Context, key string) (func(), error) {
	if f.err != nil {
		return nil, f.err
	}
	return func() {}, nil
}

var fixedNow = time.Date(2026, 5, 4, 10, 0, 0, 0, time.UTC)

func newService(repo domain.StateRepository) *ReconciliationService {
	svc := NewReconciliationService(
		repo,
		domain.NewProductMatcher(matching.DefaultOptions()),
		NewLocalLocker(),
		metrics.New(metrics.DefaultConfig("test")),
		logging.NewNop(),
	)
	svc.clock = func() time.Time { return fixedNow }
	return svc
}

func recordCommand(poID string, lines ...PurchaseOrderLineInput) RecordPurchaseOrderCommand {
	return RecordPurchaseOrderCommand{
		PurchaseOrderID: poID,
		SupplierID:      "sup-1",
		SupplierName:    "Acme Foods",
		Lines:           lines,
	}
}

func assertCode(t *testing.T, err error, code string) {
	t.Helper()
	appErr, ok := errors.AsAppError(err)
	require.True(t, ok, "expected AppError, got %v", err)
	assert.Equal(t, code, appErr.Code)
}

func TestRecordPurchaseOrder_SyncsOnce(t *testing.T) {
	repo := newFakeStateRepo()
	svc := newService(repo)
	ctx := context.Background()

	cmd := recordCommand("po-1",
		PurchaseOrderLineInput{Description: "Basmati Rice 5kg", Quantity: 10, UnitCostGBP: 7.5},
		PurchaseOrderLineInput{Description: "Red Lentils", Quantity: 0, UnitCostGBP: 2},
	)

	res, err := svc.RecordPurchaseOrder(ctx, cmd)
	require.NoError(t, err)
	assert.Equal(t, SyncResultDTO{PurchaseOrderID: "po-1", ProductsCreated: 2, TransitCreated: 1}, *res)

	again, err := svc.RecordPurchaseOrder(ctx, cmd)
	require.NoError(t, err)
	assert.True(t, again.AlreadySynced)
	assert.Zero(t, again.TransitCreated)

	assert.Len(t, repo.state.TransitRecords, 1)
	assert.Len(t, repo.state.Suppliers, 1)
	assert.Len(t, repo.state.PurchaseOrders, 1)
	assert.Len(t, repo.events, 3)
}

func TestRecordPurchaseOrder_Validation(t *testing.T) {
	repo := newFakeStateRepo()
	svc := newService(repo)

	_, err := svc.RecordPurchaseOrder(context.Background(), RecordPurchaseOrderCommand{PurchaseOrderID: "po-1"})
	assertCode(t, err, errors.CodeValidationError)
	assert.ErrorIs(t, err, domain.ErrSupplierIDRequired)
	assert.Zero(t, repo.persists)
}

func TestSyncPurchaseOrder(t *testing.T) {
	repo := newFakeStateRepo()
	svc := newService(repo)
	ctx := context.Background()

	_, err := svc.RecordPurchaseOrder(ctx, recordCommand("po-1", PurchaseOrderLineInput{Description: "Rolled Oats", Quantity: 4, UnitCostGBP: 1}))
	require.NoError(t, err)

	res, err := svc.SyncPurchaseOrder(ctx, SyncPurchaseOrderCommand{PurchaseOrderID: "po-1"})
	require.NoError(t, err)
	assert.True(t, res.AlreadySynced)
	assert.Len(t, repo.state.TransitRecords, 1)

	res, err = svc.SyncPurchaseOrder(ctx, SyncPurchaseOrderCommand{PurchaseOrderID: "po-1", Force: true})
	require.NoError(t, err)
	assert.Equal(t, 1, res.TransitCreated)
	assert.Len(t, repo.state.TransitRecords, 2)

	_, err = svc.SyncPurchaseOrder(ctx, SyncPurchaseOrderCommand{PurchaseOrderID: "missing"})
	assertCode(t, err, errors.CodeNotFound)
}

func TestBackfillTransit(t *testing.T) {
	repo := newFakeStateRepo()
	for _, id := range []string{"po-a", "po-b", "po-c"} {
		_, _, err := repo.state.SavePurchaseOrder(domain.PurchaseOrder{
			ID: id, SupplierID: "sup-1",
			Lines: []domain.PurchaseOrderLine{{Description: "Desiccated Coconut " + id, Quantity: 2, UnitCostGBP: 1.5}},
		}, fixedNow)
		require.NoError(t, err)
	}
	svc := newService(repo)
	ctx := context.Background()

	res, err := svc.BackfillTransit(ctx, BackfillTransitCommand{Limit: 2})
	require.NoError(t, err)
	assert.Equal(t, 2, res.Processed)
	assert.Equal(t, 1, res.Remaining)
	assert.Equal(t, []string{"po-a", "po-b"}, []string{res.Results[0].PurchaseOrderID, res.Results[1].PurchaseOrderID})

	ids, err := svc.ListUnsyncedPurchaseOrders(ctx, 0)
	require.NoError(t, err)
	assert.Equal(t, []string{"po-c"}, ids)

	res, err = svc.BackfillTransit(ctx, BackfillTransitCommand{})
	require.NoError(t, err)
	assert.Equal(t, 1, res.Processed)

	persists := repo.persists
	res, err = svc.BackfillTransit(ctx, BackfillTransitCommand{})
	require.NoError(t, err)
	assert.Zero(t, res.Processed)
	assert.Equal(t, persists, repo.persists)
}

func seedReceivable(t *testing.T, svc *ReconciliationService) string {
	t.Helper()
	_, err := svc.RecordPurchaseOrder(context.Background(), recordCommand("po-1",
		PurchaseOrderLineInput{Description: "Castor Sugar", Quantity: 5, UnitCostGBP: 2},
	))
	require.NoError(t, err)
	snapshot, err := svc.Snapshot(context.Background())
	require.NoError(t, err)
	require.Len(t, snapshot, 1)
	return snapshot[0].Product.ID
}

func TestReceiveStock(t *testing.T) {
	repo := newFakeStateRepo()
	svc := newService(repo)
	ctx := context.Background()
	productID := seedReceivable(t, svc)

	res, err := svc.ReceiveStock(ctx, ReceiveStockCommand{ProductID: productID, Quantity: 7})
	require.NoError(t, err)
	assert.Equal(t, 5.0, res.ReceivedQuantity)
	assert.Equal(t, 2.0, res.UnfulfilledQuantity)
	assert.Equal(t, 2.0, res.AverageCostGBP)
	assert.Len(t, res.AffectedTransitIDs, 1)

	_, err = svc.ReceiveStock(ctx, ReceiveStockCommand{ProductID: productID, Quantity: 1})
	assertCode(t, err, errors.CodeInsufficientTransit)
	assert.ErrorIs(t, err, domain.ErrInsufficientTransit)
}

func TestReceiveStock_ErrorsPersistNothing(t *testing.T) {
	repo := newFakeStateRepo()
	svc := newService(repo)
	ctx := context.Background()
	productID := seedReceivable(t, svc)
	persists := repo.persists

	_, err := svc.ReceiveStock(ctx, ReceiveStockCommand{ProductID: productID, Quantity: -1})
	assertCode(t, err, errors.CodeValidationError)

	_, err = svc.ReceiveStock(ctx, ReceiveStockCommand{ProductID: "missing", Quantity: 1})
	assertCode(t, err, errors.CodeNotFound)

	repo.persistErr = errUnexpected
	_, err = svc.ReceiveStock(ctx, ReceiveStockCommand{ProductID: productID, Quantity: 1})
	assertCode(t, err, errors.CodeInternalError)
	assert.ErrorIs(t, err, errUnexpected)

	assert.Equal(t, persists, repo.persists)
	assert.Equal(t, 5.0, repo.state.TransitRecords[0].RemainingQuantity)
	assert.Empty(t, repo.state.InventoryRecords)
}

func TestAddBarcode(t *testing.T) {
	repo := newFakeStateRepo()
	svc := newService(repo)
	ctx := context.Background()
	productID := seedReceivable(t, svc)

	res, err := svc.AddBarcode(ctx, AddBarcodeCommand{ProductID: productID, Barcode: " 5012345678900 "})
	require.NoError(t, err)
	assert.True(t, res.Added)
	assert.Equal(t, []string{"5012345678900"}, res.Product.Barcodes)

	persists := repo.persists
	res, err = svc.AddBarcode(ctx, AddBarcodeCommand{ProductID: productID, Barcode: "5012345678900"})
	require.NoError(t, err)
	assert.False(t, res.Added)
	assert.Equal(t, persists, repo.persists)

	_, err = svc.AddBarcode(ctx, AddBarcodeCommand{ProductID: productID, Barcode: ""})
	assertCode(t, err, errors.CodeValidationError)
	_, err = svc.AddBarcode(ctx, AddBarcodeCommand{ProductID: "nope", Barcode: "1"})
	assertCode(t, err, errors.CodeNotFound)
}

func TestQueries(t *testing.T) {
	repo := newFakeStateRepo()
	svc := newService(repo)
	ctx := context.Background()
	productID := seedReceivable(t, svc)

	product, err := svc.GetProduct(ctx, productID)
	require.NoError(t, err)
	assert.Equal(t, "Castor Sugar", product.Name)

	transit, err := svc.ListTransit(ctx, productID)
	require.NoError(t, err)
	require.Len(t, transit, 1)
	assert.Equal(t, "in_transit", transit[0].Status)

	orders, err := svc.ListPurchaseOrders(ctx)
	require.NoError(t, err)
	require.Len(t, orders, 1)
	assert.True(t, orders[0].Synced)

	_, err = svc.GetProduct(ctx, "missing")
	assertCode(t, err, errors.CodeNotFound)
	_, err = svc.ListTransit(ctx, "missing")
	assertCode(t, err, errors.CodeNotFound)

	repo.loadErr = errUnexpected
	_, err = svc.Snapshot(ctx)
	assertCode(t, err, errors.CodeInternalError)
}

func TestMutate_LockFailure(t *testing.T) {
	repo := newFakeStateRepo()
	svc := newService(repo)
	svc.locker = &fakeLocker{err: context.DeadlineExceeded}

	_, err := svc.ReceiveStock(context.Background(), ReceiveStockCommand{ProductID: "p", Quantity: 1})
	assertCode(t, err, errors.CodeServiceUnavailable)
	assert.ErrorIs(t, err, context.DeadlineExceeded)
}

func TestLocalLocker(t *testing.T) {
	l := NewLocalLocker()
	unlock, err := l.Lock(context.Background(), "k")
	require.NoError(t, err)

	ctx, cancel := context.WithTimeout(context.Background(), 20*time.Millisecond)
	defer cancel()
	_, err = l.Lock(ctx, "k")
	assert.ErrorIs(t, err, context.DeadlineExceeded)

	other, err := l.Lock(context.Background(), "other")
	require.NoError(t, err)
	other()

	unlock()
	unlock()
	again, err := l.Lock(context.Background(), "k")
	require.NoError(t, err)
	again()
}

func TestReceiveStock_ConcurrentCallsDoNotDoubleConsume(t *testing.T) {
	repo := newFakeStateRepo()
	svc := newService(repo)
	productID := seedReceivable(t, svc)

	var wg sync.WaitGroup
	results := make(chan error, 10)
	for i := 0; i < 10; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			_, err := svc.ReceiveStock(context.Background(), ReceiveStockCommand{ProductID: productID, Quantity: 1})
			results <- err
		}()
	}
	wg.Wait()
	close(results)

	succeeded := 0
	for err := range results {
		if err == nil {
			succeeded++
		}
	}
	assert.Equal(t, 5, succeeded)
	assert.Equal(t, 5.0, repo.state.InventoryRecords[0].QuantityOnHand)
}
