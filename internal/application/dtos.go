package application

import "time"

// LineDTO is a SKU and unit count in responses
type LineDTO struct {
	SKU      string `json:"sku" yaml:"sku"`
	Quantity uint64 `json:"quantity" yaml:"quantity"`
}

// ShipmentDTO is the part of a plan shipped from one warehouse
type ShipmentDTO struct {
	WarehouseID string    `json:"warehouseId" yaml:"warehouseId"`
	Items       []LineDTO `json:"items" yaml:"items"`
}

// AllocationResultDTO is the outcome of one allocation.
//
// Shipments are listed in warehouse sequence order and are empty unless the
// order is fulfillable. Shortfall is only reported for unfulfillable orders.
type AllocationResultDTO struct {
	AllocationID string        `json:"allocationId" yaml:"allocationId"`
	OrderID      string        `json:"orderId,omitempty" yaml:"orderId,omitempty"`
	Fulfillable  bool          `json:"fulfillable" yaml:"fulfillable"`
	Strategy     string        `json:"strategy" yaml:"strategy"`
	Shipments    []ShipmentDTO `json:"shipments" yaml:"shipments"`
	Shortfall    []LineDTO     `json:"shortfall,omitempty" yaml:"shortfall,omitempty"`
	TotalUnits   uint64        `json:"totalUnits" yaml:"totalUnits"`
	Warehouses   int           `json:"warehousesConsidered" yaml:"warehousesConsidered"`
	DecidedAt    time.Time     `json:"decidedAt" yaml:"decidedAt"`
}

// WarehouseStockDTO represents a stored warehouse stock snapshot
type WarehouseStockDTO struct {
	WarehouseID string    `json:"warehouseId" yaml:"warehouseId"`
	Priority    int       `json:"priority" yaml:"priority"`
	Stock       []LineDTO `json:"stock" yaml:"stock"`
	TotalUnits  uint64    `json:"totalUnits" yaml:"totalUnits"`
	UpdatedAt   time.Time `json:"updatedAt" yaml:"updatedAt"`
}

// InventorySnapshotDTO lists stored warehouses in allocation sequence order
type InventorySnapshotDTO struct {
	Warehouses []WarehouseStockDTO `json:"warehouses" yaml:"warehouses"`
	Count      int                 `json:"count" yaml:"count"`
}
