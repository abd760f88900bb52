package domain

// find returns the first warehouse with the given ID
func find(inv WarehouseInventory, id string) (Warehouse, bool) {
	for _, w := range inv {
		if w.ID == id {
			return w, true
		}
	}
	return Warehouse{}, false
}

// unitsOf returns the units of sku shipped across all warehouses
func unitsOf(p ShipmentPlan, sku string) uint64 {
	var total uint64
	for _, s := range p {
		total = addUnits(total, s[sku])
	}
	return total
}
