package domain

import "context"

// WarehouseStockRepository stores warehouse stock snapshots
type WarehouseStockRepository interface {
	Save(ctx context.Context, stock *WarehouseStock) error
	FindByID(ctx context.Context, warehouseID string) (*WarehouseStock, error)
	// FindAll returns every snapshot ordered by priority, then warehouse ID
	FindAll(ctx context.Context) ([]*WarehouseStock, error)
	Delete(ctx context.Context, warehouseID string) error
}
