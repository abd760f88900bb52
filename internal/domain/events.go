package domain

import "time"

const (
	EventTypeAllocationPlanned       = "wms.allocation.planned"
	EventTypeAllocationUnfulfillable = "wms.allocation.unfulfillable"
)

// DomainEvent is the interface for all domain events
type DomainEvent interface {
	EventType() string
	OccurredAt() time.Time
}

// AllocationLine is a SKU and unit count carried by allocation events
type AllocationLine struct {
	SKU      string `json:"sku"`
	Quantity uint64 `json:"quantity"`
}

// AllocatedShipment is the part of a plan shipped from one warehouse
type AllocatedShipment struct {
	WarehouseID string           `json:"warehouseId"`
	Items       []AllocationLine `json:"items"`
}

// AllocationPlannedEvent is published when an order is fully covered
type AllocationPlannedEvent struct {
	AllocationID string              `json:"allocationId"`
	OrderID      string              `json:"orderId,omitempty"`
	Strategy     Strategy            `json:"strategy"`
	Shipments    []AllocatedShipment `json:"shipments"`
	TotalUnits   uint64              `json:"totalUnits"`
	PlannedAt    time.Time           `json:"plannedAt"`
}

func (e *AllocationPlannedEvent) EventType() string     { return EventTypeAllocationPlanned }
func (e *AllocationPlannedEvent) OccurredAt() time.Time { return e.PlannedAt }

// AllocationUnfulfillableEvent is published when nothing can ship
type AllocationUnfulfillableEvent struct {
	AllocationID string           `json:"allocationId"`
	OrderID      string           `json:"orderId,omitempty"`
	Requested    []AllocationLine `json:"requested"`
	Shortfall    []AllocationLine `json:"shortfall"`
	DecidedAt    time.Time        `json:"decidedAt"`
}

func (e *AllocationUnfulfillableEvent) EventType() string     { return EventTypeAllocationUnfulfillable }
func (e *AllocationUnfulfillableEvent) OccurredAt() time.Time { return e.DecidedAt }

// NewAllocationEvent builds the event describing decision
func NewAllocationEvent(allocationID, orderID string, order Order, inventory WarehouseInventory, decision Decision, at time.Time) DomainEvent {
	if !decision.Fulfilled() {
		return &AllocationUnfulfillableEvent{
			AllocationID: allocationID,
			OrderID:      orderID,
			Requested:    LinesOf(order),
			Shortfall:    LinesOf(decision.Shortfall),
			DecidedAt:    at,
		}
	}

	ordered := decision.Plan.Ordered(inventory)
	shipments := make([]AllocatedShipment, 0, len(ordered))
	for _, s := range ordered {
		shipments = append(shipments, AllocatedShipment{
			WarehouseID: s.WarehouseID,
			Items:       LinesOf(s.Items),
		})
	}

	return &AllocationPlannedEvent{
		AllocationID: allocationID,
		OrderID:      orderID,
		Strategy:     decision.Strategy,
		Shipments:    shipments,
		TotalUnits:   decision.Plan.TotalUnits(),
		PlannedAt:    at,
	}
}

// LinesOf flattens positive counts into lines sorted by SKU
func LinesOf[M ~map[string]uint64](m M) []AllocationLine {
	lines := make([]AllocationLine, 0, len(m))
	for _, sku := range Order(m).Outstanding() {
		lines = append(lines, AllocationLine{SKU: sku, Quantity: m[sku]})
	}
	return lines
}
