package domain

import "sort"

// ShipmentPlan maps a warehouse ID to the units drawn from it.
// Only warehouses contributing at least one unit appear in a plan.
type ShipmentPlan map[string]Shipment

// WarehouseShipment is one entry of a plan rendered in sequence order
type WarehouseShipment struct {
	WarehouseID string
	Items       Shipment
}

// Ordered renders the plan following the warehouse sequence of inventory.
// Warehouses in the plan but missing from inventory are appended sorted by ID.
func (p ShipmentPlan) Ordered(inventory WarehouseInventory) []WarehouseShipment {
	out := make([]WarehouseShipment, 0, len(p))
	placed := make(map[string]struct{}, len(p))

	for _, w := range inventory {
		shipment, ok := p[w.ID]
		if !ok {
			continue
		}
		if _, done := placed[w.ID]; done {
			continue
		}
		placed[w.ID] = struct{}{}
		out = append(out, WarehouseShipment{WarehouseID: w.ID, Items: shipment})
	}

	if len(placed) == len(p) {
		return out
	}

	rest := make([]string, 0, len(p)-len(placed))
	for id := range p {
		if _, done := placed[id]; !done {
			rest = append(rest, id)
		}
	}
	sort.Strings(rest)
	for _, id := range rest {
		out = append(out, WarehouseShipment{WarehouseID: id, Items: p[id]})
	}
	return out
}

// Clone returns a deep copy of the plan
func (p ShipmentPlan) Clone() ShipmentPlan {
	if p == nil {
		return nil
	}
	out := make(ShipmentPlan, len(p))
	for id, s := range p {
		out[id] = s.Clone()
	}
	return out
}

// IsSplit reports whether more than one warehouse ships
func (p ShipmentPlan) IsSplit() bool {
	return len(p) > 1
}

// TotalUnits returns the units shipped across all warehouses, saturating at
// MaxUint64
func (p ShipmentPlan) TotalUnits() uint64 {
	var total uint64
	for _, s := range p {
		total = addUnits(total, s.TotalUnits())
	}
	return total
}
