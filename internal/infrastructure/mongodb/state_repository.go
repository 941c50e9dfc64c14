package mongodb

import (
	"context"
	"fmt"
	"time"

	"go.mongodb.org/mongo-driver/bson"
	"go.mongodb.org/mongo-driver/mongo"
	"go.mongodb.org/mongo-driver/mongo/options"

	"github.com/wms-platform/reconciliation-service/internal/domain"
	"github.com/wms-platform/reconciliation-service/internal/infrastructure/events"
	"github.com/wms-platform/reconciliation-service/pkg/logging"
	"github.com/wms-platform/reconciliation-service/pkg/metrics"
	pkgmongo "github.com/wms-platform/reconciliation-service/pkg/mongodb"
	outboxMongo "github.com/wms-platform/reconciliation-service/pkg/outbox/mongodb"
	"github.com/wms-platform/reconciliation-service/pkg/resilience"
)

// Collection names
const (
	CollectionSuppliers      = "suppliers"
	CollectionPurchaseOrders = "purchase_orders"
	CollectionProducts       = "products"
	CollectionInventory      = "inventory_records"
	CollectionTransit        = "transit_records"
	CollectionInvoices       = "invoices"
)

const backend = "mongodb"

// StateRepository stores the reconciliation state as one collection per
// record type. Persist upserts every record and inserts the outbox rows in a
// single transaction.
type StateRepository struct {
	client     *pkgmongo.Client
	outboxRepo *outboxMongo.OutboxRepository
	mapper     *events.Mapper
	breaker    *resilience.CircuitBreaker
	metrics    *metrics.Metrics
	logger     *logging.Logger
}

// NewStateRepository creates a StateRepository. breaker and m may be nil.
func NewStateRepository(
	client *pkgmongo.Client,
	mapper *events.Mapper,
	breaker *resilience.CircuitBreaker,
	m *metrics.Metrics,
	logger *logging.Logger,
) *StateRepository {
	return &StateRepository{
		client:     client,
		outboxRepo: outboxMongo.NewOutboxRepository(client.Database()),
		mapper:     mapper,
		breaker:    breaker,
		metrics:    m,
		logger:     logger.WithComponent("state-repository"),
	}
}

// OutboxRepository returns the outbox sharing this repository's database
func (r *StateRepository) OutboxRepository() *outboxMongo.OutboxRepository {
	return r.outboxRepo
}

// EnsureIndexes creates lookup indexes and the outbox indexes
func (r *StateRepository) EnsureIndexes(ctx context.Context) error {
	byCreation := mongo.IndexModel{Keys: bson.D{{Key: "createdAt", Value: 1}, {Key: "_id", Value: 1}}}

	indexes := map[string][]mongo.IndexModel{
		CollectionProducts: {
			byCreation,
			{Keys: bson.D{{Key: "sku", Value: 1}}},
			{Keys: bson.D{{Key: "supplierSku", Value: 1}}},
			{Keys: bson.D{{Key: "barcodes", Value: 1}}},
		},
		CollectionTransit: {
			byCreation,
			{Keys: bson.D{{Key: "productId", Value: 1}, {Key: "createdAt", Value: 1}}},
			{Keys: bson.D{{Key: "purchaseOrderId", Value: 1}}},
		},
		CollectionPurchaseOrders: {byCreation},
		CollectionSuppliers:      {byCreation},
	}

	for name, models := range indexes {
		if _, err := r.client.Collection(name).Indexes().CreateMany(ctx, models); err != nil {
			return fmt.Errorf("failed to create %s indexes: %w", name, err)
		}
	}
	return r.outboxRepo.EnsureIndexes(ctx)
}

// Load reads every collection inside one snapshot transaction
func (r *StateRepository) Load(ctx context.Context) (*domain.State, error) {
	start := time.Now()
	var state *domain.State

	err := r.client.WithTransaction(ctx, func(sc mongo.SessionContext) error {
		state = domain.NewState()
		return firstErr(
			findAll(sc, r.client.Collection(CollectionSuppliers), &state.Suppliers),
			findAll(sc, r.client.Collection(CollectionPurchaseOrders), &state.PurchaseOrders),
			findAll(sc, r.client.Collection(CollectionProducts), &state.Products),
			findAll(sc, r.client.Collection(CollectionInventory), &state.InventoryRecords),
			findAll(sc, r.client.Collection(CollectionTransit), &state.TransitRecords),
			findAll(sc, r.client.Collection(CollectionInvoices), &state.Invoices),
		)
	})
	r.record("load", err == nil, start)
	if err != nil {
		return nil, fmt.Errorf("failed to load state: %w", err)
	}
	return state, nil
}

// Persist writes the full state and stages events in the outbox atomically
func (r *StateRepository) Persist(ctx context.Context, state *domain.State, domainEvents []domain.DomainEvent) error {
	start := time.Now()

	outboxEvents, err := r.mapper.ToOutboxEvents(ctx, domainEvents)
	if err != nil {
		return fmt.Errorf("failed to map events: %w", err)
	}

	write := func() (interface{}, error) {
		return nil, r.client.WithTransaction(ctx, func(sc mongo.SessionContext) error {
			if err := firstErr(
				replaceAll(sc, r.client.Collection(CollectionSuppliers), state.Suppliers, func(v *domain.Supplier) string { return v.ID }),
				replaceAll(sc, r.client.Collection(CollectionPurchaseOrders), state.PurchaseOrders, func(v *domain.PurchaseOrder) string { return v.ID }),
				replaceAll(sc, r.client.Collection(CollectionProducts), state.Products, func(v *domain.Product) string { return v.ID }),
				replaceAll(sc, r.client.Collection(CollectionInventory), state.InventoryRecords, func(v *domain.InventoryRecord) string { return v.ProductID }),
				replaceAll(sc, r.client.Collection(CollectionTransit), state.TransitRecords, func(v *domain.TransitRecord) string { return v.ID }),
				replaceAll(sc, r.client.Collection(CollectionInvoices), state.Invoices, func(v *domain.Invoice) string { return v.ID }),
			); err != nil {
				return err
			}
			return r.outboxRepo.SaveAll(sc, outboxEvents)
		})
	}

	if r.breaker != nil {
		_, err = r.breaker.Execute(ctx, write)
	} else {
		_, err = write()
	}

	r.record("persist", err == nil, start)
	r.logger.DatabaseQuery(ctx, "state", "persist", time.Since(start), err == nil, int64(len(outboxEvents)))
	if err != nil {
		return fmt.Errorf("failed to persist state: %w", err)
	}
	return nil
}

func (r *StateRepository) record(operation string, success bool, start time.Time) {
	if r.metrics != nil {
		r.metrics.RecordStoreOperation(backend, operation, success, time.Since(start))
	}
}

// firstErr returns the first non-nil error. Arguments are evaluated in
// order, so later steps still run; callers only use it for independent
// steps inside a transaction that aborts as a whole.
func firstErr(errs ...error) error {
	for _, err := range errs {
		if err != nil {
			return err
		}
	}
	return nil
}

func findAll[T any](ctx context.Context, coll *mongo.Collection, out *[]T) error {
	opts := options.Find().SetSort(bson.D{{Key: "createdAt", Value: 1}, {Key: "_id", Value: 1}})
	cursor, err := coll.Find(ctx, bson.M{}, opts)
	if err != nil {
		return fmt.Errorf("failed to query %s: %w", coll.Name(), err)
	}
	defer cursor.Close(ctx)

	items := make([]T, 0)
	if err := cursor.All(ctx, &items); err != nil {
		return fmt.Errorf("failed to decode %s: %w", coll.Name(), err)
	}
	*out = items
	return nil
}

func replaceAll[T any](ctx context.Context, coll *mongo.Collection, docs []T, id func(T) string) error {
	if len(docs) == 0 {
		return nil
	}
	models := make([]mongo.WriteModel, len(docs))
	for i, doc := range docs {
		models[i] = mongo.NewReplaceOneModel().
			SetFilter(bson.M{"_id": id(doc)}).
			SetReplacement(doc).
			SetUpsert(true)
	}
	if _, err := coll.BulkWrite(ctx, models, options.BulkWrite().SetOrdered(false)); err != nil {
		return fmt.Errorf("failed to write %s: %w", coll.Name(), err)
	}
	return nil
}
