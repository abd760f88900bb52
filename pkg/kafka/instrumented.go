package kafka

import (
	"context"
	"time"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/trace"

	"github.com/wms-platform/allocation-service/pkg/cloudevents"
	"github.com/wms-platform/allocation-service/pkg/logging"
	"github.com/wms-platform/allocation-service/pkg/metrics"
	"github.com/wms-platform/allocation-service/pkg/resilience"
	"github.com/wms-platform/allocation-service/pkg/tracing"
)

// EventPublisher publishes CloudEvents to a topic
type EventPublisher interface {
	PublishEvent(ctx context.Context, topic string, event *cloudevents.WMSCloudEvent) error
}

// InstrumentedProducer wraps a publisher with a circuit breaker, metrics and tracing
type InstrumentedProducer struct {
	publisher EventPublisher
	breaker   *resilience.CircuitBreaker
	metrics   *metrics.Metrics
	logger    *logging.Logger
	tracer    trace.Tracer
}

// NewInstrumentedProducer creates a new instrumented producer. m may be nil.
func NewInstrumentedProducer(publisher EventPublisher, m *metrics.Metrics, logger *logging.Logger) *InstrumentedProducer {
	if logger == nil {
		logger = logging.Nop()
	}
	cbConfig := resilience.DefaultCircuitBreakerConfig("kafka-producer")
	cbConfig.MaxRequests = 5

	return &InstrumentedProducer{
		publisher: publisher,
		breaker:   resilience.NewCircuitBreaker(cbConfig, logger.Logger, recorderOf(m)),
		metrics:   m,
		logger:    logger,
		tracer:    otel.Tracer("kafka-producer"),
	}
}

// recorderOf avoids handing a typed nil *Metrics to an interface
func recorderOf(m *metrics.Metrics) resilience.StateRecorder {
	if m == nil {
		return nil
	}
	return m
}

// PublishEvent publishes a CloudEvent with metrics and tracing
func (p *InstrumentedProducer) PublishEvent(ctx context.Context, topic string, event *cloudevents.WMSCloudEvent) error {
	start := time.Now()

	ctx, span := p.tracer.Start(ctx, "kafka.publish",
		trace.WithSpanKind(trace.SpanKindProducer),
		trace.WithAttributes(tracing.MessagingSpanAttributes(topic, event.Type)...),
		trace.WithAttributes(attribute.String("messaging.message_id", event.ID)),
	)
	defer span.End()

	if event.AllocationID != "" {
		span.SetAttributes(attribute.String("wms.allocation_id", event.AllocationID))
	}

	// The producer span becomes the parent seen by consumers.
	carrier := tracing.MapCarrier{}
	tracing.InjectTraceContext(ctx, carrier)
	if tp := carrier.Get(cloudevents.ExtTraceParent); tp != "" {
		event.TraceParent = tp
		event.TraceState = carrier.Get(cloudevents.ExtTraceState)
	}

	err := p.breaker.Execute(ctx, func(ctx context.Context) error {
		return p.publisher.PublishEvent(ctx, topic, event)
	})
	duration := time.Since(start)
	success := err == nil

	p.metrics.RecordKafkaPublish(topic, event.Type, success, duration)
	p.logger.KafkaPublish(ctx, topic, event.Type, success, duration)

	if err != nil {
		span.RecordError(err)
		span.SetStatus(codes.Error, err.Error())
		return err
	}
	span.SetStatus(codes.Ok, "")
	return nil
}

// Close closes the underlying publisher when it supports closing
func (p *InstrumentedProducer) Close() error {
	if c, ok := p.publisher.(interface{ Close() error }); ok {
		return c.Close()
	}
	return nil
}
