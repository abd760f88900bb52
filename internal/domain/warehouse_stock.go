package domain

import (
	"fmt"
	"sort"
	"strings"
	"time"
)

// WarehouseStock is the stored stock snapshot of one warehouse.
//
// Priority only exists at rest: lower values rank first when the snapshot is
// rebuilt into a WarehouseInventory, where position alone carries priority.
type WarehouseStock struct {
	WarehouseID string
	Priority    int
	Stock       Stock
	UpdatedAt   time.Time
}

// NewWarehouseStock creates a validated warehouse stock snapshot
func NewWarehouseStock(warehouseID string, priority int, stock Stock) (*WarehouseStock, error) {
	if strings.TrimSpace(warehouseID) == "" {
		return nil, fmt.Errorf("%w: warehouse id is required", ErrInvalidWarehouseID)
	}
	if priority < 0 {
		return nil, fmt.Errorf("%w: priority must not be negative, got %d", ErrInvalidPriority, priority)
	}
	for sku := range stock {
		if strings.TrimSpace(sku) == "" {
			return nil, fmt.Errorf("%w: warehouse %s lists a blank sku", ErrInvalidSKU, warehouseID)
		}
	}
	if stock == nil {
		stock = Stock{}
	}

	return &WarehouseStock{
		WarehouseID: warehouseID,
		Priority:    priority,
		Stock:       stock.Clone(),
		UpdatedAt:   time.Now().UTC(),
	}, nil
}

// ToWarehouse converts the snapshot into an inventory entry with its own stock copy
func (s *WarehouseStock) ToWarehouse() Warehouse {
	return Warehouse{ID: s.WarehouseID, Stock: s.Stock.Clone()}
}

// BuildInventory orders stored snapshots by ascending priority, breaking ties by
// warehouse ID, and returns them as an inventory.
func BuildInventory(stocks []*WarehouseStock) WarehouseInventory {
	sorted := make([]*WarehouseStock, 0, len(stocks))
	for _, s := range stocks {
		if s != nil {
			sorted = append(sorted, s)
		}
	}
	sort.SliceStable(sorted, func(i, j int) bool {
		if sorted[i].Priority != sorted[j].Priority {
			return sorted[i].Priority < sorted[j].Priority
		}
		return sorted[i].WarehouseID < sorted[j].WarehouseID
	})

	inv := make(WarehouseInventory, len(sorted))
	for i, s := range sorted {
		inv[i] = s.ToWarehouse()
	}
	return inv
}

// SelectInventory returns the snapshots named by ids, in exactly that order.
// The caller's ordering overrides stored priority.
func SelectInventory(stocks []*WarehouseStock, ids []string) (WarehouseInventory, error) {
	byID := make(map[string]*WarehouseStock, len(stocks))
	for _, s := range stocks {
		if s != nil {
			byID[s.WarehouseID] = s
		}
	}

	inv := make(WarehouseInventory, 0, len(ids))
	seen := make(map[string]struct{}, len(ids))
	for _, id := range ids {
		if _, dup := seen[id]; dup {
			return nil, fmt.Errorf("%w: %s", ErrDuplicateWarehouse, id)
		}
		seen[id] = struct{}{}

		s, ok := byID[id]
		if !ok {
			return nil, fmt.Errorf("%w: %s", ErrWarehouseNotFound, id)
		}
		inv = append(inv, s.ToWarehouse())
	}
	return inv, nil
}
