package mongodb

import (
	"context"
	stderrors "errors"
	"fmt"
	"math"
	"time"

	"go.mongodb.org/mongo-driver/bson"
	"go.mongodb.org/mongo-driver/mongo"
	"go.mongodb.org/mongo-driver/mongo/options"

	"github.com/wms-platform/allocation-service/internal/domain"
	"github.com/wms-platform/allocation-service/pkg/logging"
	"github.com/wms-platform/allocation-service/pkg/metrics"
	sharedMongo "github.com/wms-platform/allocation-service/pkg/mongodb"
	"github.com/wms-platform/allocation-service/pkg/resilience"
)

// CollectionName is the collection holding warehouse stock snapshots
const CollectionName = "warehouse_stock"

// stockLineDocument stores one SKU. SKUs are kept as values rather than keys
// because they may contain characters MongoDB field names cannot.
type stockLineDocument struct {
	SKU      string `bson:"sku"`
	Quantity int64  `bson:"quantity"`
}

type warehouseStockDocument struct {
	WarehouseID string              `bson:"warehouseId"`
	Priority    int                 `bson:"priority"`
	Stock       []stockLineDocument `bson:"stock"`
	TotalUnits  int64               `bson:"totalUnits"`
	UpdatedAt   time.Time           `bson:"updatedAt"`
}

// WarehouseStockRepository implements domain.WarehouseStockRepository on MongoDB
type WarehouseStockRepository struct {
	collection *sharedMongo.GuardedCollection
}

// NewWarehouseStockRepository creates the repository. breaker is shared by
// every collection of the database.
func NewWarehouseStockRepository(db *mongo.Database, breaker *resilience.CircuitBreaker, m *metrics.Metrics, logger *logging.Logger) *WarehouseStockRepository {
	return &WarehouseStockRepository{
		collection: sharedMongo.NewGuardedCollection(db.Collection(CollectionName), breaker, m, logger),
	}
}

// EnsureIndexes creates the unique warehouse index and the priority index
func (r *WarehouseStockRepository) EnsureIndexes(ctx context.Context) error {
	indexes := []mongo.IndexModel{
		{Keys: bson.D{{Key: "warehouseId", Value: 1}}, Options: options.Index().SetUnique(true)},
		{Keys: bson.D{{Key: "priority", Value: 1}, {Key: "warehouseId", Value: 1}}},
	}
	return r.collection.CreateIndexes(ctx, indexes)
}

// Save upserts the snapshot of one warehouse
func (r *WarehouseStockRepository) Save(ctx context.Context, stock *domain.WarehouseStock) error {
	doc, err := toDocument(stock)
	if err != nil {
		return err
	}

	filter := bson.M{"warehouseId": doc.WarehouseID}
	update := bson.M{"$set": doc}
	if _, err := r.collection.UpdateOne(ctx, filter, update, options.Update().SetUpsert(true)); err != nil {
		return fmt.Errorf("failed to save warehouse stock %s: %w", stock.WarehouseID, err)
	}
	return nil
}

// FindByID returns the snapshot of a warehouse, or nil when it is not stored
func (r *WarehouseStockRepository) FindByID(ctx context.Context, warehouseID string) (*domain.WarehouseStock, error) {
	var doc warehouseStockDocument
	err := r.collection.FindOne(ctx, bson.M{"warehouseId": warehouseID}, &doc)
	if stderrors.Is(err, mongo.ErrNoDocuments) {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("failed to find warehouse stock %s: %w", warehouseID, err)
	}
	return doc.toDomain(), nil
}

// FindAll returns every snapshot ordered by priority, then warehouse ID
func (r *WarehouseStockRepository) FindAll(ctx context.Context) ([]*domain.WarehouseStock, error) {
	var docs []warehouseStockDocument
	opts := options.Find().SetSort(bson.D{{Key: "priority", Value: 1}, {Key: "warehouseId", Value: 1}})
	if err := r.collection.FindAll(ctx, bson.M{}, &docs, opts); err != nil {
		return nil, fmt.Errorf("failed to list warehouse stock: %w", err)
	}

	stocks := make([]*domain.WarehouseStock, len(docs))
	for i := range docs {
		stocks[i] = docs[i].toDomain()
	}
	return stocks, nil
}

// Delete removes a warehouse; domain.ErrWarehouseNotFound when it is not stored
func (r *WarehouseStockRepository) Delete(ctx context.Context, warehouseID string) error {
	result, err := r.collection.DeleteOne(ctx, bson.M{"warehouseId": warehouseID})
	if err != nil {
		return fmt.Errorf("failed to delete warehouse stock %s: %w", warehouseID, err)
	}
	if result.DeletedCount == 0 {
		return fmt.Errorf("%w: %s", domain.ErrWarehouseNotFound, warehouseID)
	}
	return nil
}

func toDocument(stock *domain.WarehouseStock) (*warehouseStockDocument, error) {
	doc := &warehouseStockDocument{
		WarehouseID: stock.WarehouseID,
		Priority:    stock.Priority,
		Stock:       make([]stockLineDocument, 0, len(stock.Stock)),
		UpdatedAt:   stock.UpdatedAt,
	}

	for _, line := range domain.LinesOf(stock.Stock) {
		if line.Quantity > math.MaxInt64 {
			return nil, fmt.Errorf("warehouse %s: quantity of %s exceeds the storable range", stock.WarehouseID, line.SKU)
		}
		doc.Stock = append(doc.Stock, stockLineDocument{SKU: line.SKU, Quantity: int64(line.Quantity)})
	}

	total := stock.Stock.TotalUnits()
	if total > math.MaxInt64 {
		total = math.MaxInt64
	}
	doc.TotalUnits = int64(total)
	return doc, nil
}

func (d *warehouseStockDocument) toDomain() *domain.WarehouseStock {
	stock := make(domain.Stock, len(d.Stock))
	for _, line := range d.Stock {
		if line.Quantity > 0 {
			stock[line.SKU] = uint64(line.Quantity)
		}
	}
	return &domain.WarehouseStock{
		WarehouseID: d.WarehouseID,
		Priority:    d.Priority,
		Stock:       stock,
		UpdatedAt:   d.UpdatedAt.UTC(),
	}
}
