package mongodb

import (
	"context"
	"errors"
	"time"

	"go.mongodb.org/mongo-driver/mongo"
	"go.mongodb.org/mongo-driver/mongo/options"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/trace"

	"github.com/wms-platform/allocation-service/pkg/logging"
	"github.com/wms-platform/allocation-service/pkg/metrics"
	"github.com/wms-platform/allocation-service/pkg/resilience"
	"github.com/wms-platform/allocation-service/pkg/tracing"
)

// GuardedCollection runs collection operations through a circuit breaker and
// records a span, a metric and a log line for each of them.
//
// mongo.ErrNoDocuments is returned to the caller but counts as a success for
// the breaker.
type GuardedCollection struct {
	collection *mongo.Collection
	name       string
	database   string
	breaker    *resilience.CircuitBreaker
	metrics    *metrics.Metrics
	logger     *logging.Logger
	tracer     trace.Tracer
}

// NewGuardedCollection wraps collection. m may be nil.
func NewGuardedCollection(collection *mongo.Collection, breaker *resilience.CircuitBreaker, m *metrics.Metrics, logger *logging.Logger) *GuardedCollection {
	if logger == nil {
		logger = logging.Nop()
	}
	return &GuardedCollection{
		collection: collection,
		name:       collection.Name(),
		database:   collection.Database().Name(),
		breaker:    breaker,
		metrics:    m,
		logger:     logger,
		tracer:     otel.Tracer("mongodb"),
	}
}

// NewStorageBreaker returns the breaker shared by collections of one database
func NewStorageBreaker(m *metrics.Metrics, logger *logging.Logger) *resilience.CircuitBreaker {
	config := resilience.DefaultCircuitBreakerConfig("mongodb")
	config.MaxRequests = 5

	var recorder resilience.StateRecorder
	if m != nil {
		recorder = m
	}
	if logger == nil {
		logger = logging.Nop()
	}
	return resilience.NewCircuitBreaker(config, logger.Logger, recorder)
}

// Name returns the collection name
func (c *GuardedCollection) Name() string {
	return c.name
}

func (c *GuardedCollection) run(ctx context.Context, operation string, fn func(ctx context.Context) (int64, error)) error {
	start := time.Now()
	ctx, span := c.tracer.Start(ctx, "mongodb."+operation,
		trace.WithSpanKind(trace.SpanKindClient),
		trace.WithAttributes(tracing.DatabaseSpanAttributes(c.database, operation, c.name)...),
	)
	defer span.End()

	var rows int64
	notFound := false
	err := c.breaker.Execute(ctx, func(ctx context.Context) error {
		n, err := fn(ctx)
		rows = n
		if errors.Is(err, mongo.ErrNoDocuments) {
			notFound = true
			return nil
		}
		return err
	})
	if err == nil && notFound {
		err = mongo.ErrNoDocuments
	}

	duration := time.Since(start)
	success := err == nil || notFound
	c.metrics.RecordMongoDBOperation(c.name, operation, success, duration)
	c.logger.DatabaseQuery(ctx, c.name, operation, duration, success, rows)

	if success {
		span.SetStatus(codes.Ok, "")
	} else {
		tracing.RecordError(span, err)
	}
	return err
}

// FindOne decodes the first document matching filter into result
func (c *GuardedCollection) FindOne(ctx context.Context, filter interface{}, result interface{}, opts ...*options.FindOneOptions) error {
	return c.run(ctx, "findOne", func(ctx context.Context) (int64, error) {
		if err := c.collection.FindOne(ctx, filter, opts...).Decode(result); err != nil {
			return 0, err
		}
		return 1, nil
	})
}

// FindAll decodes every document matching filter into results, a pointer to a slice
func (c *GuardedCollection) FindAll(ctx context.Context, filter interface{}, results interface{}, opts ...*options.FindOptions) error {
	return c.run(ctx, "find", func(ctx context.Context) (int64, error) {
		cursor, err := c.collection.Find(ctx, filter, opts...)
		if err != nil {
			return 0, err
		}
		if err := cursor.All(ctx, results); err != nil {
			return 0, err
		}
		return 0, nil
	})
}

// UpdateOne updates a single document
func (c *GuardedCollection) UpdateOne(ctx context.Context, filter interface{}, update interface{}, opts ...*options.UpdateOptions) (*mongo.UpdateResult, error) {
	var result *mongo.UpdateResult
	err := c.run(ctx, "updateOne", func(ctx context.Context) (int64, error) {
		var err error
		result, err = c.collection.UpdateOne(ctx, filter, update, opts...)
		if err != nil {
			return 0, err
		}
		return result.ModifiedCount + result.UpsertedCount, nil
	})
	return result, err
}

// DeleteOne deletes a single document
func (c *GuardedCollection) DeleteOne(ctx context.Context, filter interface{}) (*mongo.DeleteResult, error) {
	var result *mongo.DeleteResult
	err := c.run(ctx, "deleteOne", func(ctx context.Context) (int64, error) {
		var err error
		result, err = c.collection.DeleteOne(ctx, filter)
		if err != nil {
			return 0, err
		}
		return result.DeletedCount, nil
	})
	return result, err
}

// CreateIndexes creates the given indexes
func (c *GuardedCollection) CreateIndexes(ctx context.Context, models []mongo.IndexModel) error {
	return c.run(ctx, "createIndexes", func(ctx context.Context) (int64, error) {
		names, err := c.collection.Indexes().CreateMany(ctx, models)
		return int64(len(names)), err
	})
}
