package kafka

import (
	"context"

	"github.com/wms-platform/reconciliation-service/internal/application"
	"github.com/wms-platform/reconciliation-service/pkg/cloudevents"
	"github.com/wms-platform/reconciliation-service/pkg/contracts/asyncapi"
	"github.com/wms-platform/reconciliation-service/pkg/errors"
	"github.com/wms-platform/reconciliation-service/pkg/kafka"
	"github.com/wms-platform/reconciliation-service/pkg/logging"
)

// PurchaseOrderRecorder stores and syncs an inbound purchase order
type PurchaseOrderRecorder interface {
	RecordPurchaseOrder(ctx context.Context, cmd application.RecordPurchaseOrderCommand) (*application.SyncResultDTO, error)
}

// Subscriber is the part of the Kafka consumer the listener registers with
type Subscriber interface {
	Subscribe(topic string, eventType string, handler kafka.EventHandler)
}

// PurchaseOrderListener turns procurement purchase-order events into
// recorded purchase orders
type PurchaseOrderListener struct {
	recorder  PurchaseOrderRecorder
	validator *asyncapi.EventValidator
	logger    *logging.Logger
}

// NewPurchaseOrderListener creates a listener. A nil validator skips schema checks.
func NewPurchaseOrderListener(recorder PurchaseOrderRecorder, validator *asyncapi.EventValidator, logger *logging.Logger) *PurchaseOrderListener {
	return &PurchaseOrderListener{
		recorder:  recorder,
		validator: validator,
		logger:    logger.WithComponent("purchase-order-listener"),
	}
}

// Register subscribes the listener to topic, or to the default
// purchase-order topic when topic is empty
func (l *PurchaseOrderListener) Register(consumer Subscriber, topic string) {
	if topic == "" {
		topic = kafka.Topics.PurchaseOrders
	}
	consumer.Subscribe(topic, cloudevents.PurchaseOrderSaved, l.Handle)
}

// Handle records one purchase-order event. Payloads that can never succeed
// are logged and acknowledged; everything else is returned for redelivery.
func (l *PurchaseOrderListener) Handle(ctx context.Context, event *cloudevents.CloudEvent) error {
	log := l.logger.WithContext(ctx).WithFields(map[string]any{"eventId": event.ID, "eventType": event.Type})

	if l.validator != nil {
		if err := l.validator.Validate(event.Type, event.Data); err != nil {
			log.WithError(err).Warn("Discarding purchase order event that does not match its schema")
			return nil
		}
	}

	var data cloudevents.PurchaseOrderSavedData
	if err := event.DecodeData(&data); err != nil {
		log.WithError(err).Warn("Discarding undecodable purchase order event")
		return nil
	}

	result, err := l.recorder.RecordPurchaseOrder(ctx, toCommand(data))
	if err != nil {
		if appErr, ok := errors.AsAppError(err); ok && appErr.Code == errors.CodeValidationError {
			log.WithError(err).Warn("Discarding invalid purchase order", "purchaseOrderId", data.PurchaseOrderID)
			return nil
		}
		return err
	}

	log.Info("Recorded purchase order from event",
		"purchaseOrderId", result.PurchaseOrderID,
		"alreadySynced", result.AlreadySynced,
		"transitCreated", result.TransitCreated,
	)
	return nil
}

func toCommand(data cloudevents.PurchaseOrderSavedData) application.RecordPurchaseOrderCommand {
	lines := make([]application.PurchaseOrderLineInput, len(data.Lines))
	for i, l := range data.Lines {
		lines[i] = application.PurchaseOrderLineInput{
			LineID:      l.LineID,
			Description: l.Description,
			SupplierSKU: l.SupplierSKU,
			Quantity:    l.Quantity,
			UnitCostGBP: l.UnitCostGBP,
		}
	}
	return application.RecordPurchaseOrderCommand{
		PurchaseOrderID: data.PurchaseOrderID,
		SupplierID:      data.SupplierID,
		SupplierName:    data.SupplierName,
		Reference:       data.Reference,
		OrderedAt:       data.OrderedAt,
		Lines:           lines,
		Source:          "kafka",
	}
}
