package cloudevents

import (
	"context"
	"time"

	"github.com/google/uuid"

	"github.com/wms-platform/allocation-service/pkg/logging"
	"github.com/wms-platform/allocation-service/pkg/tracing"
)

// EventFactory creates CloudEvents for one source
type EventFactory struct {
	source string
	now    func() time.Time
	newID  func() string
}

// NewEventFactory creates a new EventFactory for a specific source
func NewEventFactory(source string) *EventFactory {
	return &EventFactory{
		source: source,
		now:    func() time.Time { return time.Now().UTC() },
		newID:  func() string { return uuid.New().String() },
	}
}

// WithClock overrides the time source, for tests
func (f *EventFactory) WithClock(now func() time.Time) *EventFactory {
	f.now = now
	return f
}

// Source returns the source stamped on created events
func (f *EventFactory) Source() string {
	return f.source
}

// CreateEvent creates an event stamped with the correlation ID and trace
// context found in ctx.
func (f *EventFactory) CreateEvent(ctx context.Context, eventType, subject string, data interface{}) *WMSCloudEvent {
	event := &WMSCloudEvent{
		SpecVersion:     SpecVersion,
		Type:            eventType,
		Source:          f.source,
		Subject:         subject,
		ID:              f.newID(),
		Time:            f.now(),
		DataContentType: JSONContentType,
		Data:            data,
		CorrelationID:   logging.CorrelationIDFromContext(ctx),
	}

	carrier := tracing.MapCarrier{}
	tracing.InjectTraceContext(ctx, carrier)
	event.TraceParent = carrier.Get(ExtTraceParent)
	event.TraceState = carrier.Get(ExtTraceState)

	return event
}

// CreateAllocationEvent creates an allocation event. The subject names the
// allocation so all events about it share a Kafka key.
func (f *EventFactory) CreateAllocationEvent(ctx context.Context, eventType, allocationID, orderID string, data interface{}) *WMSCloudEvent {
	event := f.CreateEvent(ctx, eventType, "allocation/"+allocationID, data)
	event.AllocationID = allocationID
	event.OrderID = orderID
	return event
}
