package domain

import (
	"errors"
	"fmt"
	"math"
	"sort"
	"strings"
)

var (
	ErrInvalidSKU         = errors.New("invalid sku")
	ErrInvalidWarehouseID = errors.New("invalid warehouse id")
	ErrDuplicateWarehouse = errors.New("duplicate warehouse")
	ErrWarehouseNotFound  = errors.New("warehouse not found")
	ErrInvalidPriority    = errors.New("invalid priority")
)

// Order maps a SKU to the number of units requested.
type Order map[string]uint64

// Stock maps a SKU to the number of units available at one warehouse.
// A SKU missing from the map has zero availability.
type Stock map[string]uint64

// Shipment maps a SKU to the number of units drawn from one warehouse.
type Shipment map[string]uint64

// Clone returns an independent copy of the order
func (o Order) Clone() Order {
	return Order(cloneCounts(o))
}

// IsEmpty reports whether the order has no line with a positive quantity
func (o Order) IsEmpty() bool {
	for _, qty := range o {
		if qty > 0 {
			return false
		}
	}
	return true
}

// Outstanding returns the SKUs with a positive requested quantity, sorted.
func (o Order) Outstanding() []string {
	skus := make([]string, 0, len(o))
	for sku, qty := range o {
		if qty > 0 {
			skus = append(skus, sku)
		}
	}
	sort.Strings(skus)
	return skus
}

// TotalUnits returns the number of units requested, saturating at MaxUint64
func (o Order) TotalUnits() uint64 {
	return sumCounts(o)
}

// Validate checks that every SKU key is non-blank
func (o Order) Validate() error {
	for sku := range o {
		if strings.TrimSpace(sku) == "" {
			return fmt.Errorf("%w: order line has a blank sku", ErrInvalidSKU)
		}
	}
	return nil
}

// Available returns the units of sku available, zero when absent
func (s Stock) Available(sku string) uint64 {
	return s[sku]
}

// Covers reports whether the stock alone can satisfy every positive line of the order
func (s Stock) Covers(order Order) bool {
	for sku, qty := range order {
		if qty == 0 {
			continue
		}
		if s.Available(sku) < qty {
			return false
		}
	}
	return true
}

// Clone returns an independent copy of the stock
func (s Stock) Clone() Stock {
	return Stock(cloneCounts(s))
}

// TotalUnits returns the number of units held, saturating at MaxUint64
func (s Stock) TotalUnits() uint64 {
	return sumCounts(s)
}

// Clone returns an independent copy of the shipment
func (s Shipment) Clone() Shipment {
	return Shipment(cloneCounts(s))
}

// TotalUnits returns the number of units in the shipment
func (s Shipment) TotalUnits() uint64 {
	return sumCounts(s)
}

// SKUs returns the SKUs in the shipment, sorted
func (s Shipment) SKUs() []string {
	skus := make([]string, 0, len(s))
	for sku := range s {
		skus = append(skus, sku)
	}
	sort.Strings(skus)
	return skus
}

func cloneCounts[M ~map[string]uint64](m M) map[string]uint64 {
	if m == nil {
		return nil
	}
	out := make(map[string]uint64, len(m))
	for k, v := range m {
		out[k] = v
	}
	return out
}

func sumCounts[M ~map[string]uint64](m M) uint64 {
	var total uint64
	for _, v := range m {
		total = addUnits(total, v)
	}
	return total
}

// addUnits adds unit counts, saturating at MaxUint64
func addUnits(a, b uint64) uint64 {
	if a > math.MaxUint64-b {
		return math.MaxUint64
	}
	return a + b
}
