package events

import (
	"context"
	"fmt"

	"github.com/wms-platform/reconciliation-service/internal/domain"
	"github.com/wms-platform/reconciliation-service/pkg/cloudevents"
	"github.com/wms-platform/reconciliation-service/pkg/kafka"
	"github.com/wms-platform/reconciliation-service/pkg/logging"
	"github.com/wms-platform/reconciliation-service/pkg/outbox"
)

// AggregateProduct is the outbox aggregate type for every reconciliation event
const AggregateProduct = "Product"

// Mapper converts domain events into CloudEvents
type Mapper struct {
	factory *cloudevents.EventFactory
	topic   string
}

// NewMapper creates a mapper publishing to topic
func NewMapper(factory *cloudevents.EventFactory, topic string) *Mapper {
	if topic == "" {
		topic = kafka.Topics.InventoryEvents
	}
	return &Mapper{factory: factory, topic: topic}
}

// Topic returns the destination topic
func (m *Mapper) Topic() string {
	return m.topic
}

// ToCloudEvent converts one domain event. The CloudEvent time is the time
// the change happened, not the time of mapping.
func (m *Mapper) ToCloudEvent(ctx context.Context, event domain.DomainEvent) (*cloudevents.CloudEvent, error) {
	var data any
	switch e := event.(type) {
	case *domain.ProductCreatedEvent:
		data = cloudevents.ProductEventData{
			ProductID:       e.ProductID,
			Name:            e.Name,
			SKU:             e.SKU,
			SupplierID:      e.SupplierID,
			Description:     e.Description,
			PurchaseOrderID: e.PurchaseOrderID,
			MatchKind:       string(domain.MatchCreated),
		}
	case *domain.ProductMatchedEvent:
		data = cloudevents.ProductEventData{
			ProductID:       e.ProductID,
			Name:            e.Name,
			Description:     e.Description,
			PurchaseOrderID: e.PurchaseOrderID,
			MatchKind:       string(e.Kind),
			Score:           e.Score,
		}
	case *domain.TransitCreatedEvent:
		data = cloudevents.TransitCreatedData{
			TransitID:           e.TransitID,
			ProductID:           e.ProductID,
			PurchaseOrderID:     e.PurchaseOrderID,
			PurchaseOrderLineID: e.PurchaseOrderLineID,
			SupplierID:          e.SupplierID,
			Quantity:            e.Quantity,
			UnitCostGBP:         e.UnitCostGBP,
		}
	case *domain.StockReceivedEvent:
		data = cloudevents.StockReceivedData{
			ProductID:           e.ProductID,
			RequestedQuantity:   e.RequestedQuantity,
			ReceivedQuantity:    e.ReceivedQuantity,
			UnfulfilledQuantity: e.UnfulfilledQuantity,
			QuantityOnHand:      e.QuantityOnHand,
			AverageCostGBP:      e.AverageCostGBP,
			AffectedTransitIDs:  e.AffectedTransitIDs,
		}
	case *domain.BarcodeAddedEvent:
		data = cloudevents.BarcodeAddedData{ProductID: e.ProductID, Barcode: e.Barcode}
	default:
		return nil, fmt.Errorf("unsupported domain event %T", event)
	}

	ce := m.factory.CreateEvent(ctx, event.EventType(), event.AggregateID(), data)
	ce.Time = event.OccurredAt().UTC()
	return ce, nil
}

// ToOutboxEvents converts domain events into outbox rows, preserving order
func (m *Mapper) ToOutboxEvents(ctx context.Context, events []domain.DomainEvent) ([]*outbox.OutboxEvent, error) {
	out := make([]*outbox.OutboxEvent, 0, len(events))
	for _, event := range events {
		ce, err := m.ToCloudEvent(ctx, event)
		if err != nil {
			return nil, err
		}
		row, err := outbox.NewOutboxEventFromCloudEvent(event.AggregateID(), AggregateProduct, m.topic, ce)
		if err != nil {
			return nil, err
		}
		out = append(out, row)
	}
	return out, nil
}

// DirectPublisher publishes domain events straight to Kafka. It backs stores
// without an outbox; delivery is best effort after the state is written.
type DirectPublisher struct {
	mapper   *Mapper
	producer kafka.EventPublisher
	logger   *logging.Logger
}

// NewDirectPublisher creates a DirectPublisher
func NewDirectPublisher(mapper *Mapper, producer kafka.EventPublisher, logger *logging.Logger) *DirectPublisher {
	return &DirectPublisher{mapper: mapper, producer: producer, logger: logger.WithComponent("event-publisher")}
}

// Dispatch publishes events in order. Failures are logged and skipped.
func (p *DirectPublisher) Dispatch(ctx context.Context, events []domain.DomainEvent) {
	for _, event := range events {
		ce, err := p.mapper.ToCloudEvent(ctx, event)
		if err != nil {
			p.logger.WithError(err).Error("Failed to map domain event", "eventType", event.EventType())
			continue
		}
		if err := p.producer.PublishEvent(ctx, p.mapper.Topic(), ce); err != nil {
			p.logger.WithError(err).Error("Failed to publish domain event",
				"eventType", ce.Type,
				"aggregateId", event.AggregateID(),
			)
		}
	}
}
