package domain

import (
	"fmt"
	"strings"
)

// Warehouse is one source of stock in an inventory snapshot
type Warehouse struct {
	ID    string
	Stock Stock
}

// WarehouseInventory is an ordered snapshot of warehouse stock.
//
// Sequence position is the warehouse's cost priority: index 0 is the cheapest,
// most preferred source. The allocator never reorders it, so callers that load
// warehouses from an unordered source must sort them before allocating.
type WarehouseInventory []Warehouse

// Validate checks warehouse IDs are non-blank and unique and every SKU is non-blank
func (inv WarehouseInventory) Validate() error {
	seen := make(map[string]struct{}, len(inv))
	for i, w := range inv {
		if strings.TrimSpace(w.ID) == "" {
			return fmt.Errorf("%w: warehouse at position %d has a blank id", ErrInvalidWarehouseID, i)
		}
		if _, dup := seen[w.ID]; dup {
			return fmt.Errorf("%w: %s", ErrDuplicateWarehouse, w.ID)
		}
		seen[w.ID] = struct{}{}

		for sku := range w.Stock {
			if strings.TrimSpace(sku) == "" {
				return fmt.Errorf("%w: warehouse %s lists a blank sku", ErrInvalidSKU, w.ID)
			}
		}
	}
	return nil
}

// Clone returns a deep copy that shares no maps with the receiver
func (inv WarehouseInventory) Clone() WarehouseInventory {
	if inv == nil {
		return nil
	}
	out := make(WarehouseInventory, len(inv))
	for i, w := range inv {
		out[i] = Warehouse{ID: w.ID, Stock: w.Stock.Clone()}
	}
	return out
}

// IDs returns the warehouse IDs in sequence order
func (inv WarehouseInventory) IDs() []string {
	ids := make([]string, len(inv))
	for i, w := range inv {
		ids[i] = w.ID
	}
	return ids
}

// TotalAvailable returns the units of sku available across every warehouse,
// saturating at MaxUint64
func (inv WarehouseInventory) TotalAvailable(sku string) uint64 {
	var total uint64
	for _, w := range inv {
		total = addUnits(total, w.Stock.Available(sku))
	}
	return total
}
