package activities

import (
	"context"
	"fmt"
	"net/http"
	"time"

	"go.opentelemetry.io/otel"
	"go.temporal.io/sdk/activity"
	"go.temporal.io/sdk/temporal"

	"github.com/wms-platform/allocation-service/internal/application"
	"github.com/wms-platform/allocation-service/pkg/errors"
	"github.com/wms-platform/allocation-service/pkg/logging"
	"github.com/wms-platform/allocation-service/pkg/metrics"
	wmstemporal "github.com/wms-platform/allocation-service/pkg/temporal"
	"github.com/wms-platform/allocation-service/pkg/tracing"
)

// Allocator runs one allocation
type Allocator interface {
	Allocate(ctx context.Context, cmd application.AllocateCommand) (*application.AllocationResultDTO, error)
}

// LineInput is a SKU and quantity
type LineInput struct {
	SKU      string `json:"sku"`
	Quantity int64  `json:"quantity"`
}

// WarehouseInput is the stock of one warehouse supplied with the input
type WarehouseInput struct {
	WarehouseID string      `json:"warehouseId"`
	Stock       []LineInput `json:"stock"`
}

// AllocateShipmentInput is the input of AllocateShipment.
//
// A null Warehouses means the stored inventory is used, optionally restricted
// to WarehouseIDs. An empty list is an empty inventory.
type AllocateShipmentInput struct {
	AllocationID string           `json:"allocationId,omitempty"`
	OrderID      string           `json:"orderId,omitempty"`
	Lines        []LineInput      `json:"lines"`
	Warehouses   []WarehouseInput `json:"warehouses"`
	WarehouseIDs []string         `json:"warehouseIds,omitempty"`
}

// AllocateShipmentResult is the outcome of AllocateShipment. An unfulfillable
// order is a result with Fulfillable false, not an error.
type AllocateShipmentResult = application.AllocationResultDTO

// AllocationActivities contains the allocation activities
type AllocationActivities struct {
	allocator Allocator
	metrics   *metrics.Metrics
	logger    *logging.Logger
}

// NewAllocationActivities creates a new AllocationActivities instance
func NewAllocationActivities(allocator Allocator, m *metrics.Metrics, logger *logging.Logger) *AllocationActivities {
	if logger == nil {
		logger = logging.Nop()
	}
	return &AllocationActivities{
		allocator: allocator,
		metrics:   m,
		logger:    logger,
	}
}

// AllocateShipment decides which warehouses ship an order
func (a *AllocationActivities) AllocateShipment(ctx context.Context, input AllocateShipmentInput) (*AllocateShipmentResult, error) {
	info := activity.GetInfo(ctx)
	logger := activity.GetLogger(ctx)
	logger.Info("Allocating shipment", "orderId", input.OrderID, "lines", len(input.Lines))

	activityType := wmstemporal.ActivityNames.AllocateShipment
	ctx = logging.ContextWithCorrelationID(ctx, info.WorkflowExecution.ID)
	a.metrics.RecordActivityStarted(activityType)
	a.logger.ActivityStart(ctx, activityType)
	start := time.Now()

	result, err := tracing.TracedOperation(ctx, otel.Tracer("allocation-activities"), "activity."+activityType,
		func(ctx context.Context) (*AllocateShipmentResult, error) {
			return a.allocator.Allocate(ctx, toCommand(input))
		},
		tracing.ActivitySpanAttributes(activityType, info.ActivityID)...,
	)

	duration := time.Since(start)
	a.metrics.RecordActivityCompleted(activityType, err == nil, duration)
	a.logger.ActivityComplete(ctx, activityType, duration, err == nil)

	if err != nil {
		logger.Error("Allocation failed", "orderId", input.OrderID, "error", err)
		return nil, toActivityError(err)
	}

	logger.Info("Allocation decided",
		"allocationId", result.AllocationID,
		"fulfillable", result.Fulfillable,
		"strategy", result.Strategy,
		"shipments", len(result.Shipments),
	)
	return result, nil
}

func toCommand(input AllocateShipmentInput) application.AllocateCommand {
	cmd := application.AllocateCommand{
		AllocationID: input.AllocationID,
		OrderID:      input.OrderID,
		Lines:        make([]application.OrderLine, len(input.Lines)),
		WarehouseIDs: input.WarehouseIDs,
	}
	for i, l := range input.Lines {
		cmd.Lines[i] = application.OrderLine{SKU: l.SKU, Quantity: l.Quantity}
	}

	if input.Warehouses != nil {
		cmd.Warehouses = make([]application.WarehouseSnapshot, len(input.Warehouses))
		for i, w := range input.Warehouses {
			stock := make([]application.StockLine, len(w.Stock))
			for j, l := range w.Stock {
				stock[j] = application.StockLine{SKU: l.SKU, Quantity: l.Quantity}
			}
			cmd.Warehouses[i] = application.WarehouseSnapshot{WarehouseID: w.WarehouseID, Stock: stock}
		}
	}
	return cmd
}

// toActivityError makes client errors final; everything else is retried
func toActivityError(err error) error {
	appErr, ok := errors.AsAppError(err)
	if !ok {
		return fmt.Errorf("allocation failed: %w", err)
	}

	switch appErr.HTTPStatus {
	case http.StatusBadRequest:
		return temporal.NewNonRetryableApplicationError(appErr.Message, wmstemporal.ErrorTypes.Validation, err, appErr.Details)
	case http.StatusNotFound:
		return temporal.NewNonRetryableApplicationError(appErr.Message, wmstemporal.ErrorTypes.NotFound, err)
	}
	if !appErr.Retryable() {
		return temporal.NewNonRetryableApplicationError(appErr.Message, appErr.Code, err, appErr.Details)
	}
	return temporal.NewApplicationErrorWithCause(appErr.Message, appErr.Code, err)
}
