package domain

// Strategy describes how a decision was reached
type Strategy string

const (
	StrategySingleWarehouse Strategy = "single_warehouse"
	StrategySplit           Strategy = "split"
	StrategyUnfulfillable   Strategy = "unfulfillable"
)

// Decision is the outcome of one allocation.
//
// Plan is nil unless the whole order is covered. Shortfall lists, for an
// unfulfillable order, the units still missing per SKU after every warehouse was
// considered; it is diagnostic only and never shipped.
type Decision struct {
	Plan      ShipmentPlan
	Strategy  Strategy
	Shortfall Order
}

// Fulfilled reports whether the decision carries a plan
func (d Decision) Fulfilled() bool {
	return d.Plan != nil
}

// Allocator decides which warehouses ship an order.
//
// It holds no state and never mutates its inputs, so one Allocator can serve
// concurrent callers.
type Allocator struct{}

// NewAllocator creates a new Allocator
func NewAllocator() *Allocator {
	return &Allocator{}
}

// Allocate returns the shipment plan for order, or false when the order is empty
// or cannot be fully covered by inventory.
func (a *Allocator) Allocate(order Order, inventory WarehouseInventory) (ShipmentPlan, bool) {
	d := a.Decide(order, inventory)
	return d.Plan, d.Fulfilled()
}

// Decide runs the allocation and reports the strategy used.
//
// A single warehouse holding the whole order always wins, and the first such
// warehouse in sequence is chosen. Otherwise warehouses are drained greedily in
// sequence order. Lines with a zero quantity are not outstanding.
func (a *Allocator) Decide(order Order, inventory WarehouseInventory) Decision {
	if order.IsEmpty() {
		return Decision{Strategy: StrategyUnfulfillable}
	}
	outstanding := order.Outstanding()

	if w, ok := firstCovering(order, inventory); ok {
		shipment := make(Shipment, len(outstanding))
		for _, sku := range outstanding {
			shipment[sku] = order[sku]
		}
		return Decision{
			Plan:     ShipmentPlan{w.ID: shipment},
			Strategy: StrategySingleWarehouse,
		}
	}

	// The greedy fill takes every available unit, so it covers the order
	// exactly when the whole inventory does.
	if shortfall := shortfallOf(order, outstanding, inventory); len(shortfall) > 0 {
		return Decision{Strategy: StrategyUnfulfillable, Shortfall: shortfall}
	}

	plan := fillGreedy(order, outstanding, inventory)
	strategy := StrategySplit
	if !plan.IsSplit() {
		// only reachable when an unvalidated inventory repeats a warehouse
		strategy = StrategySingleWarehouse
	}
	return Decision{Plan: plan, Strategy: strategy}
}

func firstCovering(order Order, inventory WarehouseInventory) (Warehouse, bool) {
	for _, w := range inventory {
		if w.Stock.Covers(order) {
			return w, true
		}
	}
	return Warehouse{}, false
}

// shortfallOf returns the units per SKU that no combination of warehouses can supply
func shortfallOf(order Order, outstanding []string, inventory WarehouseInventory) Order {
	var shortfall Order
	for _, sku := range outstanding {
		available := inventory.TotalAvailable(sku)
		if available >= order[sku] {
			continue
		}
		if shortfall == nil {
			shortfall = make(Order)
		}
		shortfall[sku] = order[sku] - available
	}
	return shortfall
}

// fillGreedy works over its own copy of the remaining quantities. Each warehouse
// is visited once and each SKU at most once per warehouse, so warehouse stock is
// read but never decremented. Callers ensure the inventory covers the order.
func fillGreedy(order Order, outstanding []string, inventory WarehouseInventory) ShipmentPlan {
	remaining := make(map[string]uint64, len(outstanding))
	for _, sku := range outstanding {
		remaining[sku] = order[sku]
	}
	open := append([]string(nil), outstanding...)

	plan := make(ShipmentPlan)
	for _, w := range inventory {
		if len(open) == 0 {
			break
		}

		var shipment Shipment
		still := open[:0]
		for _, sku := range open {
			take := min(remaining[sku], w.Stock.Available(sku))
			if take > 0 {
				if shipment == nil {
					shipment = make(Shipment)
				}
				shipment[sku] = take
				remaining[sku] -= take
			}
			if remaining[sku] > 0 {
				still = append(still, sku)
			}
		}
		open = still

		if shipment != nil {
			merge(plan, w.ID, shipment)
		}
	}
	return plan
}

// merge keeps the coverage invariant when an inventory repeats a warehouse ID.
// Validated inventories never do.
func merge(plan ShipmentPlan, warehouseID string, shipment Shipment) {
	existing, ok := plan[warehouseID]
	if !ok {
		plan[warehouseID] = shipment
		return
	}
	for sku, qty := range shipment {
		existing[sku] += qty
	}
}
