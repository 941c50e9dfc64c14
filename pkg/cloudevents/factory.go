package cloudevents

import (
	"context"
	"time"

	"github.com/google/uuid"

	"github.com/wms-platform/reconciliation-service/pkg/logging"
)

// EventFactory creates CloudEvents for a fixed source
type EventFactory struct {
	source string
	now    func() time.Time
}

// NewEventFactory creates a new EventFactory for a specific source
func NewEventFactory(source string) *EventFactory {
	return &EventFactory{source: source, now: time.Now}
}

// CreateEvent builds an event and copies the correlation id from ctx, if any
func (f *EventFactory) CreateEvent(ctx context.Context, eventType, subject string, data any) *CloudEvent {
	event := &CloudEvent{
		SpecVersion:     "1.0",
		Type:            eventType,
		Source:          f.source,
		Subject:         subject,
		ID:              uuid.New().String(),
		Time:            f.now().UTC(),
		DataContentType: "application/json",
		Data:            data,
		Extensions:      make(map[string]any),
	}

	if ctx != nil {
		if id, ok := ctx.Value(logging.CorrelationIDKey).(string); ok {
			event.CorrelationID = id
		}
	}

	return event
}
