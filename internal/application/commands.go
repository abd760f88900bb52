package application

// OrderLine is one requested SKU and its quantity
type OrderLine struct {
	SKU      string
	Quantity int64
}

// StockLine is the quantity of a SKU on hand at a warehouse
type StockLine struct {
	SKU      string
	Quantity int64
}

// WarehouseSnapshot is the stock of one warehouse supplied with a request
type WarehouseSnapshot struct {
	WarehouseID string
	Stock       []StockLine
}

// AllocateCommand represents the command to decide which warehouses ship an order.
//
// When Warehouses is non-nil it is the inventory, in the given sequence, and
// the store is not consulted. Otherwise the stored snapshot is used in priority
// order; a non-empty WarehouseIDs then restricts it to those warehouses, in
// exactly that order.
type AllocateCommand struct {
	AllocationID string
	OrderID      string
	Lines        []OrderLine
	Warehouses   []WarehouseSnapshot
	WarehouseIDs []string
}

// RegisterWarehouseStockCommand represents the command to store a warehouse's stock snapshot
type RegisterWarehouseStockCommand struct {
	WarehouseID string
	Priority    int
	Stock       []StockLine
}

// RemoveWarehouseCommand represents the command to drop a warehouse from the store
type RemoveWarehouseCommand struct {
	WarehouseID string
}

// GetWarehouseQuery represents the query to get one warehouse's stored stock
type GetWarehouseQuery struct {
	WarehouseID string
}
