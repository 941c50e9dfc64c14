package kafka

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/segmentio/kafka-go"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/wms-platform/reconciliation-service/pkg/cloudevents"
	"github.com/wms-platform/reconciliation-service/pkg/logging"
	"github.com/wms-platform/reconciliation-service/pkg/metrics"
)

func headerValue(msg kafka.Message, key string) string {
	for _, h := range msg.Headers {
		if h.Key == key {
			return string(h.Value)
		}
	}
	return ""
}

func TestToMessage_SetsCloudEventHeaders(t *testing.T) {
	event := cloudevents.NewEventFactory(cloudevents.SourceReconciliation).
		CreateEvent(context.Background(), cloudevents.StockReceived, "p-1", cloudevents.StockReceivedData{ProductID: "p-1"})
	event.CorrelationID = "corr-9"

	msg, err := toMessage(event)
	require.NoError(t, err)

	assert.Equal(t, "p-1", string(msg.Key))
	assert.Equal(t, cloudevents.StockReceived, headerValue(msg, "ce-type"))
	assert.Equal(t, event.ID, headerValue(msg, "ce-id"))
	assert.Equal(t, "corr-9", headerValue(msg, "ce-correlationid"))
	assert.Empty(t, headerValue(msg, "ce-traceparent"))
}

func TestParseMessage(t *testing.T) {
	t.Run("reads headers into extensions", func(t *testing.T) {
		msg := kafka.Message{
			Value:   []byte(`{"specversion":"1.0","type":"procurement.purchase-order.saved","source":"/procurement-service","id":"e-1","time":"2026-01-01T00:00:00Z","data":{}}`),
			Headers: []kafka.Header{{Key: "ce-correlationid", Value: []byte("corr-1")}},
		}

		event, err := parseMessage(msg)
		require.NoError(t, err)
		assert.Equal(t, cloudevents.PurchaseOrderSaved, event.Type)
		assert.Equal(t, "corr-1", event.CorrelationID)
	})

	t.Run("rejects malformed json", func(t *testing.T) {
		_, err := parseMessage(kafka.Message{Value: []byte(`{not json`)})
		assert.Error(t, err)
	})

	t.Run("rejects missing type", func(t *testing.T) {
		_, err := parseMessage(kafka.Message{Value: []byte(`{"id":"e-2"}`)})
		assert.Error(t, err)
	})
}

func TestConsumer_HandleEventRouting(t *testing.T) {
	c := NewConsumer(DefaultConfig(), logging.NewNop(), nil)

	var got []string
	c.Subscribe(Topics.PurchaseOrders, cloudevents.PurchaseOrderSaved, func(ctx context.Context, e *cloudevents.CloudEvent) error {
		got = append(got, "specific:"+e.ID)
		return nil
	})
	c.Subscribe(Topics.PurchaseOrders, "*", func(ctx context.Context, e *cloudevents.CloudEvent) error {
		got = append(got, "wildcard:"+e.ID)
		return nil
	})

	ctx := context.Background()
	require.NoError(t, c.handleEvent(ctx, Topics.PurchaseOrders, &cloudevents.CloudEvent{ID: "1", Type: cloudevents.PurchaseOrderSaved}))
	require.NoError(t, c.handleEvent(ctx, Topics.PurchaseOrders, &cloudevents.CloudEvent{ID: "2", Type: "procurement.purchase-order.cancelled"}))
	assert.Error(t, c.handleEvent(ctx, "unknown.topic", &cloudevents.CloudEvent{ID: "3"}))

	assert.Equal(t, []string{"specific:1", "wildcard:2"}, got)
}

type fakePublisher struct {
	err    error
	events []*cloudevents.CloudEvent
}

func (f *fakePublisher) PublishEvent(ctx context.Context, topic string, event *cloudevents.CloudEvent) error {
	f.events = append(f.events, event)
	return f.err
}

func TestInstrumentedProducer_PropagatesResult(t *testing.T) {
	m := metrics.New(metrics.DefaultConfig("test"))
	fake := &fakePublisher{}
	p := NewInstrumentedProducer(fake, m, logging.NewNop())

	event := &cloudevents.CloudEvent{ID: "e-1", Type: cloudevents.BarcodeAdded, Time: time.Now()}
	require.NoError(t, p.PublishEvent(context.Background(), Topics.InventoryEvents, event))
	require.Len(t, fake.events, 1)

	fake.err = errors.New("broker down")
	err := p.PublishEvent(context.Background(), Topics.InventoryEvents, event)
	assert.ErrorContains(t, err, "broker down")
}
