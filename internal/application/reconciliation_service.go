package application

import (
	"context"
	"fmt"
	"net/http"
	"strings"
	"time"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/trace"

	"github.com/wms-platform/reconciliation-service/internal/domain"
	"github.com/wms-platform/reconciliation-service/pkg/errors"
	"github.com/wms-platform/reconciliation-service/pkg/logging"
	"github.com/wms-platform/reconciliation-service/pkg/metrics"
	"github.com/wms-platform/reconciliation-service/pkg/tracing"
)

// StateLockKey is the lock guarding every write to the reconciliation state
const StateLockKey = "reconciliation:state"

// ReconciliationService handles purchase-order sync, receipts and catalog upkeep.
// Every write locks the state, mutates a copy and persists it with its events
// in one step; a failed operation persists nothing.
type ReconciliationService struct {
	repo    domain.StateRepository
	matcher *domain.ProductMatcher
	locker  Locker
	metrics *metrics.Metrics
	logger  *logging.Logger
	tracer  trace.Tracer
	clock   func() time.Time
}

// NewReconciliationService creates a new ReconciliationService. m may be nil.
func NewReconciliationService(
	repo domain.StateRepository,
	matcher *domain.ProductMatcher,
	locker Locker,
	m *metrics.Metrics,
	logger *logging.Logger,
) *ReconciliationService {
	if locker == nil {
		locker = NewLocalLocker()
	}
	return &ReconciliationService{
		repo:    repo,
		matcher: matcher,
		locker:  locker,
		metrics: m,
		logger:  logger.WithComponent("reconciliation-service"),
		tracer:  otel.Tracer("reconciliation-service"),
		clock:   func() time.Time { return time.Now().UTC() },
	}
}

// mutate runs fn against a copy of the current state under the write lock
// and persists the copy when fn reports a change.
func (s *ReconciliationService) mutate(ctx context.Context, operation string, fn func(state *domain.State, now time.Time) (bool, error)) error {
	_, err := tracing.TracedOperation(ctx, s.tracer, "reconciliation."+operation, func(ctx context.Context) (struct{}, error) {
		waitStart := time.Now()
		unlock, err := s.locker.Lock(ctx, StateLockKey)
		if err != nil {
			return struct{}{}, errors.ErrServiceUnavailable("state lock").Wrap(err)
		}
		defer unlock()
		if s.metrics != nil {
			s.metrics.ObserveLockWait(time.Since(waitStart))
		}

		loaded, err := s.repo.Load(ctx)
		if err != nil {
			return struct{}{}, errors.ErrInternal("failed to load reconciliation state").Wrap(err)
		}

		working := loaded.Clone()
		changed, err := fn(working, s.clock())
		if err != nil {
			return struct{}{}, toAppError(err)
		}
		if !changed {
			return struct{}{}, nil
		}

		if err := s.repo.Persist(ctx, working, working.PullEvents()); err != nil {
			return struct{}{}, errors.ErrInternal("failed to persist reconciliation state").Wrap(err)
		}
		return struct{}{}, nil
	}, attribute.String("operation", operation))
	return err
}

func (s *ReconciliationService) load(ctx context.Context) (*domain.State, error) {
	state, err := s.repo.Load(ctx)
	if err != nil {
		s.logger.WithError(err).Error("Failed to load reconciliation state")
		return nil, errors.ErrInternal("failed to load reconciliation state").Wrap(err)
	}
	return state, nil
}

// toAppError maps domain sentinels to API error codes
func toAppError(err error) error {
	switch {
	case errors.IsAppError(err):
		return err
	case domain.IsValidationError(err):
		return errors.ErrValidation(err.Error()).Wrap(err)
	case domain.IsNotFoundError(err):
		return errors.NewAppError(errors.CodeNotFound, err.Error(), http.StatusNotFound).Wrap(err)
	case domain.IsInsufficientTransit(err):
		return errors.NewAppError(errors.CodeInsufficientTransit, err.Error(), http.StatusConflict).Wrap(err)
	default:
		return errors.ErrInternal("").Wrap(err)
	}
}

// RecordPurchaseOrder stores a purchase order and its supplier, then syncs it
// to transit unless it already produced transit records.
func (s *ReconciliationService) RecordPurchaseOrder(ctx context.Context, cmd RecordPurchaseOrderCommand) (*SyncResultDTO, error) {
	var result SyncResultDTO

	err := s.mutate(ctx, "record_purchase_order", func(state *domain.State, now time.Time) (bool, error) {
		if _, err := state.UpsertSupplier(cmd.SupplierID, cmd.SupplierName, now); err != nil {
			return false, err
		}
		po, _, err := state.SavePurchaseOrder(domain.PurchaseOrder{
			ID:         cmd.PurchaseOrderID,
			SupplierID: cmd.SupplierID,
			Reference:  cmd.Reference,
			OrderedAt:  cmd.OrderedAt,
			Lines:      toDomainLines(cmd.Lines),
		}, now)
		if err != nil {
			return false, err
		}

		if state.HasTransitForPurchaseOrder(po.ID) {
			result = ToSyncResultDTO(po.ID, domain.SyncResult{}, true)
			return true, nil
		}
		counts := state.SyncPurchaseOrder(s.matcher, po.SupplierID, po.ID, po.SyncLines(), now)
		result = ToSyncResultDTO(po.ID, counts, false)
		return true, nil
	})
	if err != nil {
		s.logger.WithError(err).Warn("Failed to record purchase order", "purchaseOrderId", cmd.PurchaseOrderID, "supplierId", cmd.SupplierID)
		return nil, err
	}

	s.recordSync(sourceOr(cmd.Source, "api"), result)
	if s.metrics != nil {
		s.metrics.RecordPurchaseOrder(outcome(result))
	}
	s.logger.Info("Recorded purchase order",
		"purchaseOrderId", result.PurchaseOrderID,
		"supplierId", cmd.SupplierID,
		"lines", len(cmd.Lines),
		"alreadySynced", result.AlreadySynced,
		"productsCreated", result.ProductsCreated,
		"productsMatched", result.ProductsMatched,
		"transitCreated", result.TransitCreated,
	)
	return &result, nil
}

// SyncPurchaseOrder syncs a stored purchase order to transit
func (s *ReconciliationService) SyncPurchaseOrder(ctx context.Context, cmd SyncPurchaseOrderCommand) (*SyncResultDTO, error) {
	var result SyncResultDTO

	err := s.mutate(ctx, "sync_purchase_order", func(state *domain.State, now time.Time) (bool, error) {
		po := state.FindPurchaseOrder(cmd.PurchaseOrderID)
		if po == nil {
			return false, fmt.Errorf("%w: %s", domain.ErrPurchaseOrderNotFound, cmd.PurchaseOrderID)
		}
		if !cmd.Force && state.HasTransitForPurchaseOrder(po.ID) {
			result = ToSyncResultDTO(po.ID, domain.SyncResult{}, true)
			return false, nil
		}
		counts := state.SyncPurchaseOrder(s.matcher, po.SupplierID, po.ID, po.SyncLines(), now)
		result = ToSyncResultDTO(po.ID, counts, false)
		return true, nil
	})
	if err != nil {
		s.logger.WithError(err).Warn("Failed to sync purchase order", "purchaseOrderId", cmd.PurchaseOrderID)
		return nil, err
	}

	s.recordSync(sourceOr(cmd.Source, "api"), result)
	s.logger.Info("Synced purchase order",
		"purchaseOrderId", result.PurchaseOrderID,
		"alreadySynced", result.AlreadySynced,
		"productsCreated", result.ProductsCreated,
		"productsMatched", result.ProductsMatched,
		"transitCreated", result.TransitCreated,
	)
	return &result, nil
}

// BackfillTransit syncs every stored purchase order that has no transit
// records yet, oldest stored first
func (s *ReconciliationService) BackfillTransit(ctx context.Context, cmd BackfillTransitCommand) (*BackfillResultDTO, error) {
	result := BackfillResultDTO{Results: []SyncResultDTO{}}

	err := s.mutate(ctx, "backfill_transit", func(state *domain.State, now time.Time) (bool, error) {
		pending := state.UnsyncedPurchaseOrders()
		batch := pending
		if cmd.Limit > 0 && len(batch) > cmd.Limit {
			batch = batch[:cmd.Limit]
		}
		for _, po := range batch {
			counts := state.SyncPurchaseOrder(s.matcher, po.SupplierID, po.ID, po.SyncLines(), now)
			result.Results = append(result.Results, ToSyncResultDTO(po.ID, counts, false))
			result.ProductsCreated += counts.ProductsCreated
			result.ProductsMatched += counts.ProductsMatched
			result.TransitCreated += counts.TransitCreated
		}
		result.Processed = len(batch)
		result.Remaining = len(pending) - len(batch)
		return len(batch) > 0, nil
	})
	if err != nil {
		s.logger.WithError(err).Error("Transit backfill failed")
		return nil, err
	}

	if s.metrics != nil {
		s.metrics.RecordSync("backfill", result.ProductsCreated, result.ProductsMatched, result.TransitCreated)
	}
	s.logger.Info("Transit backfill completed",
		"processed", result.Processed,
		"remaining", result.Remaining,
		"transitCreated", result.TransitCreated,
	)
	return &result, nil
}

// ReceiveStock draws stock out of transit into on-hand inventory
func (s *ReconciliationService) ReceiveStock(ctx context.Context, cmd ReceiveStockCommand) (*ReceiveResultDTO, error) {
	var result *domain.ReceiveResult

	err := s.mutate(ctx, "receive_stock", func(state *domain.State, now time.Time) (bool, error) {
		r, err := state.ReceiveStock(cmd.ProductID, cmd.Quantity, now)
		switch {
		case domain.IsInsufficientTransit(err):
			return false, errors.ErrInsufficientTransit(cmd.ProductID).Wrap(err)
		case err != nil:
			return false, err
		}
		result = r
		return true, nil
	})
	if err != nil {
		if s.metrics != nil {
			s.metrics.RecordReceiptRejected(errors.FromError(err).Code)
		}
		s.logger.WithError(err).Warn("Failed to receive stock", "productId", cmd.ProductID, "quantity", cmd.Quantity)
		return nil, err
	}

	if s.metrics != nil {
		s.metrics.RecordReceipt(result.ReceivedQuantity, result.UnfulfilledQuantity)
	}
	s.logger.Info("Received stock",
		"productId", cmd.ProductID,
		"requested", cmd.Quantity,
		"received", result.ReceivedQuantity,
		"unfulfilled", result.UnfulfilledQuantity,
		"quantityOnHand", result.QuantityOnHand,
		"averageCostGBP", result.AverageCostGBP,
	)
	return ToReceiveResultDTO(result), nil
}

// AddBarcode attaches a barcode to a product. Re-adding a known barcode
// changes and persists nothing.
func (s *ReconciliationService) AddBarcode(ctx context.Context, cmd AddBarcodeCommand) (*BarcodeResultDTO, error) {
	var result BarcodeResultDTO

	err := s.mutate(ctx, "add_barcode", func(state *domain.State, now time.Time) (bool, error) {
		added, err := state.AddBarcode(cmd.ProductID, cmd.Barcode, now)
		if err != nil {
			return false, err
		}
		result = BarcodeResultDTO{Product: ToProductDTO(state.FindProduct(cmd.ProductID)), Added: added}
		return added, nil
	})
	if err != nil {
		s.logger.WithError(err).Warn("Failed to add barcode", "productId", cmd.ProductID)
		return nil, err
	}

	if result.Added {
		if s.metrics != nil {
			s.metrics.RecordBarcodeAdded()
		}
		s.logger.Info("Added barcode", "productId", cmd.ProductID, "barcode", strings.TrimSpace(cmd.Barcode))
	}
	return &result, nil
}

// Snapshot returns one row per product with on-hand and in-transit quantities
func (s *ReconciliationService) Snapshot(ctx context.Context) ([]SnapshotEntryDTO, error) {
	state, err := s.load(ctx)
	if err != nil {
		return nil, err
	}
	return ToSnapshotDTOs(state.Snapshot()), nil
}

// GetProduct returns a product by id
func (s *ReconciliationService) GetProduct(ctx context.Context, productID string) (*ProductDTO, error) {
	state, err := s.load(ctx)
	if err != nil {
		return nil, err
	}
	p := state.FindProduct(productID)
	if p == nil {
		return nil, errors.ErrNotFoundWithID("product", productID)
	}
	dto := ToProductDTO(p)
	return &dto, nil
}

// ListTransit returns a product's transit records, oldest first
func (s *ReconciliationService) ListTransit(ctx context.Context, productID string) ([]TransitDTO, error) {
	state, err := s.load(ctx)
	if err != nil {
		return nil, err
	}
	if state.FindProduct(productID) == nil {
		return nil, errors.ErrNotFoundWithID("product", productID)
	}
	records := state.TransitForProduct(productID, false)
	out := make([]TransitDTO, len(records))
	for i, t := range records {
		out[i] = ToTransitDTO(t)
	}
	return out, nil
}

// ListPurchaseOrders returns stored purchase orders in stored order
func (s *ReconciliationService) ListPurchaseOrders(ctx context.Context) ([]PurchaseOrderDTO, error) {
	state, err := s.load(ctx)
	if err != nil {
		return nil, err
	}
	out := make([]PurchaseOrderDTO, len(state.PurchaseOrders))
	for i, po := range state.PurchaseOrders {
		out[i] = ToPurchaseOrderDTO(po, state.HasTransitForPurchaseOrder(po.ID))
	}
	return out, nil
}

// ListUnsyncedPurchaseOrders returns ids of stored orders without transit records
func (s *ReconciliationService) ListUnsyncedPurchaseOrders(ctx context.Context, limit int) ([]string, error) {
	state, err := s.load(ctx)
	if err != nil {
		return nil, err
	}
	pending := state.UnsyncedPurchaseOrders()
	if limit > 0 && len(pending) > limit {
		pending = pending[:limit]
	}
	ids := make([]string, len(pending))
	for i, po := range pending {
		ids[i] = po.ID
	}
	return ids, nil
}

func (s *ReconciliationService) recordSync(source string, r SyncResultDTO) {
	if s.metrics == nil || r.AlreadySynced {
		return
	}
	s.metrics.RecordSync(source, r.ProductsCreated, r.ProductsMatched, r.TransitCreated)
}

func sourceOr(source, fallback string) string {
	if source == "" {
		return fallback
	}
	return source
}

func outcome(r SyncResultDTO) string {
	if r.AlreadySynced {
		return "already_synced"
	}
	return "synced"
}
