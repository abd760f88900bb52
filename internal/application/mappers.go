package application

import (
	"context"
	stderrors "errors"
	"fmt"
	"net/http"
	"time"

	"github.com/wms-platform/allocation-service/internal/domain"
	"github.com/wms-platform/allocation-service/pkg/errors"
	"github.com/wms-platform/allocation-service/pkg/resilience"
)

// ToOrder converts request lines into a domain order.
// Negative quantities and repeated SKUs are rejected; zero lines are kept.
func ToOrder(lines []OrderLine) (domain.Order, error) {
	order := make(domain.Order, len(lines))
	fields := make(map[string]string)

	for i, line := range lines {
		key := fmt.Sprintf("lines[%d]", i)
		if line.Quantity < 0 {
			fields[key+".quantity"] = "must be greater than or equal to 0"
			continue
		}
		if _, dup := order[line.SKU]; dup {
			fields[key+".sku"] = "must not repeat " + line.SKU
			continue
		}
		order[line.SKU] = uint64(line.Quantity)
	}
	if len(fields) > 0 {
		return nil, errors.ErrValidationWithFields("invalid order lines", fields)
	}

	if err := order.Validate(); err != nil {
		return nil, toAppError(err)
	}
	return order, nil
}

// ToStock converts stock lines of one warehouse into domain stock
func ToStock(warehouseID string, lines []StockLine) (domain.Stock, error) {
	stock := make(domain.Stock, len(lines))
	fields := make(map[string]string)

	for i, line := range lines {
		key := fmt.Sprintf("stock[%d]", i)
		if line.Quantity < 0 {
			fields[key+".quantity"] = "must be greater than or equal to 0"
			continue
		}
		if _, dup := stock[line.SKU]; dup {
			fields[key+".sku"] = "must not repeat " + line.SKU
			continue
		}
		stock[line.SKU] = uint64(line.Quantity)
	}
	if len(fields) > 0 {
		return nil, errors.ErrValidationWithFields(fmt.Sprintf("invalid stock for warehouse %s", warehouseID), fields)
	}
	return stock, nil
}

// ToInventory converts a supplied snapshot into an inventory, keeping its order
func ToInventory(snapshots []WarehouseSnapshot) (domain.WarehouseInventory, error) {
	inv := make(domain.WarehouseInventory, 0, len(snapshots))
	for _, s := range snapshots {
		stock, err := ToStock(s.WarehouseID, s.Stock)
		if err != nil {
			return nil, err
		}
		inv = append(inv, domain.Warehouse{ID: s.WarehouseID, Stock: stock})
	}

	if err := inv.Validate(); err != nil {
		return nil, toAppError(err)
	}
	return inv, nil
}

// ToLineDTOs flattens counts into lines sorted by SKU, dropping zeros
func ToLineDTOs[M ~map[string]uint64](m M) []LineDTO {
	lines := domain.LinesOf(m)
	out := make([]LineDTO, len(lines))
	for i, l := range lines {
		out[i] = LineDTO{SKU: l.SKU, Quantity: l.Quantity}
	}
	return out
}

// ToAllocationResultDTO renders a decision with shipments in warehouse sequence order
func ToAllocationResultDTO(allocationID, orderID string, decision domain.Decision, inventory domain.WarehouseInventory, at time.Time) *AllocationResultDTO {
	dto := &AllocationResultDTO{
		AllocationID: allocationID,
		OrderID:      orderID,
		Fulfillable:  decision.Fulfilled(),
		Strategy:     string(decision.Strategy),
		Shipments:    []ShipmentDTO{},
		Warehouses:   len(inventory),
		DecidedAt:    at,
	}

	if !dto.Fulfillable {
		if len(decision.Shortfall) > 0 {
			dto.Shortfall = ToLineDTOs(decision.Shortfall)
		}
		return dto
	}

	for _, s := range decision.Plan.Ordered(inventory) {
		dto.Shipments = append(dto.Shipments, ShipmentDTO{
			WarehouseID: s.WarehouseID,
			Items:       ToLineDTOs(s.Items),
		})
	}
	dto.TotalUnits = decision.Plan.TotalUnits()
	return dto
}

// ToWarehouseStockDTO converts a stored snapshot to its response form
func ToWarehouseStockDTO(stock *domain.WarehouseStock) *WarehouseStockDTO {
	if stock == nil {
		return nil
	}
	return &WarehouseStockDTO{
		WarehouseID: stock.WarehouseID,
		Priority:    stock.Priority,
		Stock:       ToLineDTOs(stock.Stock),
		TotalUnits:  stock.Stock.TotalUnits(),
		UpdatedAt:   stock.UpdatedAt,
	}
}

// toAppError maps domain and infrastructure failures onto AppErrors
func toAppError(err error) *errors.AppError {
	if appErr, ok := errors.AsAppError(err); ok {
		return appErr
	}

	switch {
	case stderrors.Is(err, domain.ErrWarehouseNotFound):
		return errors.NewAppError(errors.CodeNotFound, err.Error(), http.StatusNotFound).Wrap(err)
	case stderrors.Is(err, domain.ErrInvalidSKU),
		stderrors.Is(err, domain.ErrInvalidWarehouseID),
		stderrors.Is(err, domain.ErrDuplicateWarehouse),
		stderrors.Is(err, domain.ErrInvalidPriority):
		return errors.ErrValidation(err.Error()).Wrap(err)
	case stderrors.Is(err, resilience.ErrCircuitOpen):
		return errors.ErrServiceUnavailable("warehouse stock store").Wrap(err)
	case stderrors.Is(err, context.DeadlineExceeded):
		return errors.ErrTimeout("allocation").Wrap(err)
	default:
		return errors.ErrInternal("").Wrap(err)
	}
}
