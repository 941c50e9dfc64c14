package events

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/wms-platform/reconciliation-service/api"
	"github.com/wms-platform/reconciliation-service/internal/domain"
	"github.com/wms-platform/reconciliation-service/internal/matching"
	"github.com/wms-platform/reconciliation-service/pkg/cloudevents"
	"github.com/wms-platform/reconciliation-service/pkg/contracts/asyncapi"
	"github.com/wms-platform/reconciliation-service/pkg/kafka"
	"github.com/wms-platform/reconciliation-service/pkg/logging"
)

var occurred = time.Date(2026, 2, 2, 8, 30, 0, 0, time.UTC)

func newMapper() *Mapper {
	return NewMapper(cloudevents.NewEventFactory(cloudevents.SourceReconciliation), "")
}

func TestToCloudEvent_TypesMatchDomain(t *testing.T) {
	events := []domain.DomainEvent{
		&domain.ProductCreatedEvent{ProductID: "p-1", Name: "Tahini", CreatedAt: occurred},
		&domain.ProductMatchedEvent{ProductID: "p-1", Kind: domain.MatchFuzzy, Score: 0.75, MatchedAt: occurred},
		&domain.TransitCreatedEvent{TransitID: "t-1", ProductID: "p-1", Quantity: 3, CreatedAt: occurred},
		&domain.StockReceivedEvent{ProductID: "p-1", ReceivedQuantity: 3, ReceivedAt: occurred},
		&domain.BarcodeAddedEvent{ProductID: "p-1", Barcode: "123", AddedAt: occurred},
	}
	expected := []string{
		cloudevents.ProductCreated,
		cloudevents.ProductMatched,
		cloudevents.TransitCreated,
		cloudevents.StockReceived,
		cloudevents.BarcodeAdded,
	}

	m := newMapper()
	for i, e := range events {
		ce, err := m.ToCloudEvent(context.Background(), e)
		require.NoError(t, err)
		assert.Equal(t, expected[i], ce.Type)
		assert.Equal(t, "p-1", ce.Subject)
		assert.Equal(t, occurred, ce.Time)
		assert.Equal(t, cloudevents.SourceReconciliation, ce.Source)
	}
}

func TestToCloudEvent_MatchedPayload(t *testing.T) {
	ce, err := newMapper().ToCloudEvent(context.Background(), &domain.ProductMatchedEvent{ProductID: "p-2", Kind: domain.MatchExact, Score: 1, MatchedAt: occurred})
	require.NoError(t, err)

	var data cloudevents.ProductEventData
	require.NoError(t, ce.DecodeData(&data))
	assert.Equal(t, "exact", data.MatchKind)
	assert.Equal(t, 1.0, data.Score)
}

type unknownEvent struct{}

func (unknownEvent) EventType() string     { return "x" }
func (unknownEvent) AggregateID() string   { return "x" }
func (unknownEvent) OccurredAt() time.Time { return occurred }

func TestToOutboxEvents(t *testing.T) {
	m := newMapper()
	rows, err := m.ToOutboxEvents(context.Background(), []domain.DomainEvent{
		&domain.BarcodeAddedEvent{ProductID: "p-1", Barcode: "1", AddedAt: occurred},
		&domain.BarcodeAddedEvent{ProductID: "p-2", Barcode: "2", AddedAt: occurred},
	})
	require.NoError(t, err)
	require.Len(t, rows, 2)
	assert.Equal(t, "p-1", rows[0].AggregateID)
	assert.Equal(t, kafka.Topics.InventoryEvents, rows[1].Topic)
	assert.Equal(t, AggregateProduct, rows[1].AggregateType)

	_, err = m.ToOutboxEvents(context.Background(), []domain.DomainEvent{unknownEvent{}})
	assert.Error(t, err)
}

type recordingProducer struct {
	failFirst bool
	sent      []*cloudevents.CloudEvent
}

func (r *recordingProducer) PublishEvent(ctx context.Context, topic string, event *cloudevents.CloudEvent) error {
	if r.failFirst {
		r.failFirst = false
		return errors.New("broker down")
	}
	r.sent = append(r.sent, event)
	return nil
}

func TestDirectPublisher_ContinuesAfterFailure(t *testing.T) {
	producer := &recordingProducer{failFirst: true}
	p := NewDirectPublisher(newMapper(), producer, logging.NewNop())

	p.Dispatch(context.Background(), []domain.DomainEvent{
		&domain.BarcodeAddedEvent{ProductID: "p-1", Barcode: "1", AddedAt: occurred},
		unknownEvent{},
		&domain.BarcodeAddedEvent{ProductID: "p-1", Barcode: "2", AddedAt: occurred},
	})

	require.Len(t, producer.sent, 1)
	var data cloudevents.BarcodeAddedData
	require.NoError(t, producer.sent[0].DecodeData(&data))
	assert.Equal(t, "2", data.Barcode)
}

func TestToCloudEvent_PayloadsMatchPublishedContract(t *testing.T) {
	validator, err := asyncapi.NewEventValidatorFromBytes(api.AsyncAPI)
	require.NoError(t, err)

	state := domain.NewState()
	matcher := domain.NewProductMatcher(matching.DefaultOptions())
	state.SyncPurchaseOrder(matcher, "sup-1", "po-1", []domain.SyncLine{
		{Description: "Olive Oil 500ml", SupplierSKU: "OO-500", Quantity: 4, UnitCostGBP: 2.5},
		{Description: "Olive Oil", SupplierSKU: "OO-500", Quantity: 2, UnitCostGBP: 2.4},
	}, occurred)
	productID := state.Products[0].ID
	_, err = state.ReceiveStock(productID, 5, occurred)
	require.NoError(t, err)
	_, err = state.AddBarcode(productID, "5012345678900", occurred)
	require.NoError(t, err)

	pending := state.PullEvents()
	require.NotEmpty(t, pending)

	m := newMapper()
	seen := make(map[string]bool)
	for _, e := range pending {
		ce, err := m.ToCloudEvent(context.Background(), e)
		require.NoError(t, err)
		assert.NoError(t, validator.Validate(ce.Type, ce.Data), ce.Type)
		seen[ce.Type] = true
	}
	assert.True(t, seen[cloudevents.ProductMatched])
	assert.True(t, seen[cloudevents.BarcodeAdded])
}
