package application

import (
	"context"
	"fmt"
	"time"

	"github.com/google/uuid"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/trace"

	"github.com/wms-platform/allocation-service/internal/domain"
	"github.com/wms-platform/allocation-service/pkg/cloudevents"
	"github.com/wms-platform/allocation-service/pkg/errors"
	"github.com/wms-platform/allocation-service/pkg/kafka"
	"github.com/wms-platform/allocation-service/pkg/logging"
	"github.com/wms-platform/allocation-service/pkg/metrics"
	"github.com/wms-platform/allocation-service/pkg/tracing"
)

// AllocationApplicationService handles allocation use cases
type AllocationApplicationService struct {
	allocator    *domain.Allocator
	repo         domain.WarehouseStockRepository
	publisher    kafka.EventPublisher
	eventFactory *cloudevents.EventFactory
	metrics      *metrics.Metrics
	logger       *logging.Logger
	tracer       trace.Tracer
	now          func() time.Time
}

// NewAllocationApplicationService creates a new AllocationApplicationService.
//
// repo may be nil, in which case every allocation must carry its own
// inventory. publisher may be nil to skip event publication.
func NewAllocationApplicationService(
	repo domain.WarehouseStockRepository,
	publisher kafka.EventPublisher,
	eventFactory *cloudevents.EventFactory,
	m *metrics.Metrics,
	logger *logging.Logger,
) *AllocationApplicationService {
	if logger == nil {
		logger = logging.Nop()
	}
	if eventFactory == nil {
		eventFactory = cloudevents.NewEventFactory(cloudevents.SourceAllocation)
	}
	return &AllocationApplicationService{
		allocator:    domain.NewAllocator(),
		repo:         repo,
		publisher:    publisher,
		eventFactory: eventFactory,
		metrics:      m,
		logger:       logger,
		tracer:       otel.Tracer("allocation-service"),
		now:          func() time.Time { return time.Now().UTC() },
	}
}

// WithClock overrides the decision timestamp source, for tests
func (s *AllocationApplicationService) WithClock(now func() time.Time) *AllocationApplicationService {
	s.now = now
	return s
}

// Allocate decides which warehouses ship the order in cmd.
//
// An order that cannot be covered is a normal result with Fulfillable false,
// not an error. Errors are returned as *errors.AppError.
func (s *AllocationApplicationService) Allocate(ctx context.Context, cmd AllocateCommand) (*AllocationResultDTO, error) {
	allocationID := cmd.AllocationID
	if allocationID == "" {
		allocationID = uuid.New().String()
	}
	ctx = logging.ContextWithAllocationID(ctx, allocationID)

	ctx, span := s.tracer.Start(ctx, "allocation.allocate",
		trace.WithAttributes(tracing.AllocationSpanAttributes(allocationID, len(cmd.Lines), len(cmd.Warehouses))...),
	)
	defer span.End()

	order, err := ToOrder(cmd.Lines)
	if err != nil {
		tracing.RecordError(span, err)
		return nil, err
	}

	inventory, err := s.sourceInventory(ctx, cmd)
	if err != nil {
		tracing.RecordError(span, err)
		return nil, err
	}
	span.SetAttributes(tracing.InventoryAttributes(inventory.IDs())...)

	start := time.Now()
	decision := s.allocator.Decide(order, inventory)
	duration := time.Since(start)

	result := ToAllocationResultDTO(allocationID, cmd.OrderID, decision, inventory, s.now())

	span.SetAttributes(tracing.AllocationResultAttributes(result.Strategy, result.Fulfillable, len(result.Shipments), result.TotalUnits)...)
	span.SetStatus(codes.Ok, "")
	s.metrics.RecordAllocation(result.Strategy, result.Fulfillable, len(result.Shipments), result.TotalUnits, duration)
	s.logger.AllocationDecided(ctx, allocationID, result.Strategy, result.Fulfillable, len(result.Shipments), result.TotalUnits, duration)

	s.publish(ctx, domain.NewAllocationEvent(allocationID, cmd.OrderID, order, inventory, decision, result.DecidedAt), allocationID, cmd.OrderID)

	return result, nil
}

func (s *AllocationApplicationService) sourceInventory(ctx context.Context, cmd AllocateCommand) (domain.WarehouseInventory, error) {
	if cmd.Warehouses != nil {
		return ToInventory(cmd.Warehouses)
	}
	if s.repo == nil {
		return nil, errors.ErrBadRequest("no warehouse store is configured; supply warehouses with the request")
	}

	stocks, err := s.repo.FindAll(ctx)
	if err != nil {
		s.logger.WithContext(ctx).Error("Failed to load warehouse stock", "error", err)
		return nil, toAppError(fmt.Errorf("failed to load warehouse stock: %w", err))
	}
	s.metrics.SetWarehousesRegistered(len(stocks))

	if len(cmd.WarehouseIDs) == 0 {
		return domain.BuildInventory(stocks), nil
	}

	inventory, err := domain.SelectInventory(stocks, cmd.WarehouseIDs)
	if err != nil {
		return nil, toAppError(err)
	}
	return inventory, nil
}

// publish emits the allocation event. Failures are logged and never change
// the allocation result.
func (s *AllocationApplicationService) publish(ctx context.Context, event domain.DomainEvent, allocationID, orderID string) {
	if s.publisher == nil {
		return
	}

	ce := s.eventFactory.CreateAllocationEvent(ctx, event.EventType(), allocationID, orderID, event)
	if err := s.publisher.PublishEvent(ctx, kafka.Topics.AllocationEvents, ce); err != nil {
		s.logger.WithContext(ctx).Warn("Failed to publish allocation event",
			"eventType", ce.Type,
			"eventId", ce.ID,
			"error", err,
		)
	}
}

// RegisterWarehouseStock stores or replaces the stock snapshot of a warehouse
func (s *AllocationApplicationService) RegisterWarehouseStock(ctx context.Context, cmd RegisterWarehouseStockCommand) (*WarehouseStockDTO, error) {
	if err := s.requireRepo(); err != nil {
		return nil, err
	}

	stock, err := ToStock(cmd.WarehouseID, cmd.Stock)
	if err != nil {
		return nil, err
	}

	ws, err := domain.NewWarehouseStock(cmd.WarehouseID, cmd.Priority, stock)
	if err != nil {
		return nil, toAppError(err)
	}
	ws.UpdatedAt = s.now()

	if err := s.repo.Save(ctx, ws); err != nil {
		s.logger.WithContext(ctx).Error("Failed to save warehouse stock", "warehouseId", cmd.WarehouseID, "error", err)
		return nil, toAppError(fmt.Errorf("failed to save warehouse stock: %w", err))
	}
	s.metrics.RecordWarehouseStockUpdate("upsert")

	s.logger.WithContext(ctx).Info("Registered warehouse stock",
		"warehouseId", ws.WarehouseID,
		"priority", ws.Priority,
		"skus", len(ws.Stock),
		"units", ws.Stock.TotalUnits(),
	)
	return ToWarehouseStockDTO(ws), nil
}

// GetWarehouse returns the stored stock of one warehouse
func (s *AllocationApplicationService) GetWarehouse(ctx context.Context, query GetWarehouseQuery) (*WarehouseStockDTO, error) {
	if err := s.requireRepo(); err != nil {
		return nil, err
	}

	ws, err := s.repo.FindByID(ctx, query.WarehouseID)
	if err != nil {
		s.logger.WithContext(ctx).Error("Failed to get warehouse stock", "warehouseId", query.WarehouseID, "error", err)
		return nil, toAppError(fmt.Errorf("failed to get warehouse stock: %w", err))
	}
	if ws == nil {
		return nil, errors.ErrNotFoundWithID("warehouse", query.WarehouseID)
	}
	return ToWarehouseStockDTO(ws), nil
}

// GetInventorySnapshot returns every stored warehouse in allocation sequence order
func (s *AllocationApplicationService) GetInventorySnapshot(ctx context.Context) (*InventorySnapshotDTO, error) {
	if err := s.requireRepo(); err != nil {
		return nil, err
	}

	stocks, err := s.repo.FindAll(ctx)
	if err != nil {
		s.logger.WithContext(ctx).Error("Failed to list warehouse stock", "error", err)
		return nil, toAppError(fmt.Errorf("failed to list warehouse stock: %w", err))
	}
	s.metrics.SetWarehousesRegistered(len(stocks))

	snapshot := &InventorySnapshotDTO{
		Warehouses: make([]WarehouseStockDTO, 0, len(stocks)),
		Count:      len(stocks),
	}
	for _, ws := range stocks {
		snapshot.Warehouses = append(snapshot.Warehouses, *ToWarehouseStockDTO(ws))
	}
	return snapshot, nil
}

// RemoveWarehouse drops a warehouse from the store
func (s *AllocationApplicationService) RemoveWarehouse(ctx context.Context, cmd RemoveWarehouseCommand) error {
	if err := s.requireRepo(); err != nil {
		return err
	}

	if err := s.repo.Delete(ctx, cmd.WarehouseID); err != nil {
		return toAppError(err)
	}
	s.metrics.RecordWarehouseStockUpdate("delete")

	s.logger.WithContext(ctx).Info("Removed warehouse", "warehouseId", cmd.WarehouseID)
	return nil
}

func (s *AllocationApplicationService) requireRepo() error {
	if s.repo == nil {
		return errors.ErrServiceUnavailable("warehouse stock store")
	}
	return nil
}
