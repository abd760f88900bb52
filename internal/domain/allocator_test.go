package domain

import (
	"math"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestAllocator_Allocate(t *testing.T) {
	tests := []struct {
		name      string
		order     Order
		inventory WarehouseInventory
		want      ShipmentPlan
		wantOK    bool
	}{
		{
			name:      "empty order is unfulfillable",
			order:     Order{},
			inventory: WarehouseInventory{{ID: "w1", Stock: Stock{"foo": 1}}},
		},
		{
			name:  "no warehouses is unfulfillable",
			order: Order{"foo": 1},
		},
		{
			name:      "exact match from one warehouse",
			order:     Order{"foo": 1},
			inventory: WarehouseInventory{{ID: "w1", Stock: Stock{"foo": 1}}},
			want:      ShipmentPlan{"w1": {"foo": 1}},
			wantOK:    true,
		},
		{
			name:      "single warehouse with surplus",
			order:     Order{"foo": 1},
			inventory: WarehouseInventory{{ID: "ware1", Stock: Stock{"foo": 2}}},
			want:      ShipmentPlan{"ware1": {"foo": 1}},
			wantOK:    true,
		},
		{
			name:  "zero stock never qualifies a warehouse",
			order: Order{"foo": 10, "bar": 10},
			inventory: WarehouseInventory{
				{ID: "w1", Stock: Stock{"foo": 0}},
				{ID: "w2", Stock: Stock{"foo": 10, "bar": 10}},
			},
			want:   ShipmentPlan{"w2": {"foo": 10, "bar": 10}},
			wantOK: true,
		},
		{
			name:  "greedy fill drains each warehouse in order",
			order: Order{"foo": 3},
			inventory: WarehouseInventory{
				{ID: "w1", Stock: Stock{"foo": 1}},
				{ID: "w2", Stock: Stock{"foo": 1}},
				{ID: "w3", Stock: Stock{"foo": 1}},
			},
			want:   ShipmentPlan{"w1": {"foo": 1}, "w2": {"foo": 1}, "w3": {"foo": 1}},
			wantOK: true,
		},
		{
			name:  "union of warehouses is insufficient",
			order: Order{"foo": 20, "bar": 15},
			inventory: WarehouseInventory{
				{ID: "w1", Stock: Stock{"foo": 5, "bar": 5}},
				{ID: "w2", Stock: Stock{"foo": 10, "bar": 12}},
			},
		},
		{
			name:  "item stocked nowhere",
			order: Order{"foo": 1, "bar": 1, "baz": 1},
			inventory: WarehouseInventory{
				{ID: "ware1", Stock: Stock{"foo": 1, "bar": 1}},
				{ID: "ware2", Stock: Stock{"foo": 1, "bar": 1}},
			},
		},
		{
			name:      "order exceeds the only warehouse",
			order:     Order{"foo": 10},
			inventory: WarehouseInventory{{ID: "ware1", Stock: Stock{"foo": 5}}},
		},
		{
			name:  "first covering warehouse wins over later ones",
			order: Order{"foo": 2},
			inventory: WarehouseInventory{
				{ID: "ware1", Stock: Stock{"foo": 2}},
				{ID: "ware2", Stock: Stock{"foo": 6}},
			},
			want:   ShipmentPlan{"ware1": {"foo": 2}},
			wantOK: true,
		},
		{
			name:  "later warehouse wins when it alone covers the order",
			order: Order{"foo": 10, "bar": 20, "baz": 30},
			inventory: WarehouseInventory{
				{ID: "ware1", Stock: Stock{"foo": 20, "baz": 50}},
				{ID: "ware2", Stock: Stock{"foo": 5, "bar": 10, "baz": 15}},
				{ID: "ware3", Stock: Stock{"foo": 20, "bar": 30, "baz": 29}},
				{ID: "ware4", Stock: Stock{"foo": 15, "bar": 25, "baz": 30}},
			},
			want:   ShipmentPlan{"ware4": {"foo": 10, "bar": 20, "baz": 30}},
			wantOK: true,
		},
		{
			name:  "disjoint warehouses each supply one item",
			order: Order{"foo": 1, "bar": 2, "baz": 3},
			inventory: WarehouseInventory{
				{ID: "ware1", Stock: Stock{"baz": 3}},
				{ID: "ware2", Stock: Stock{"bar": 2}},
				{ID: "ware3", Stock: Stock{"foo": 1}},
			},
			want: ShipmentPlan{
				"ware1": {"baz": 3},
				"ware2": {"bar": 2},
				"ware3": {"foo": 1},
			},
			wantOK: true,
		},
		{
			name:  "every item split across warehouses",
			order: Order{"foo": 2, "bar": 4},
			inventory: WarehouseInventory{
				{ID: "ware1", Stock: Stock{"foo": 1, "bar": 3}},
				{ID: "ware2", Stock: Stock{"foo": 1, "bar": 2}},
			},
			want: ShipmentPlan{
				"ware1": {"foo": 1, "bar": 3},
				"ware2": {"foo": 1, "bar": 1},
			},
			wantOK: true,
		},
		{
			name:  "one item split while others come from one warehouse",
			order: Order{"foo": 10, "bar": 5, "baz": 2},
			inventory: WarehouseInventory{
				{ID: "ware1", Stock: Stock{"bar": 5}},
				{ID: "ware2", Stock: Stock{"foo": 1, "baz": 2}},
				{ID: "ware3", Stock: Stock{"foo": 3, "bar": 25, "baz": 25}},
				{ID: "ware4", Stock: Stock{"foo": 6, "bar": 18, "baz": 22}},
			},
			want: ShipmentPlan{
				"ware1": {"bar": 5},
				"ware2": {"foo": 1, "baz": 2},
				"ware3": {"foo": 3},
				"ware4": {"foo": 6},
			},
			wantOK: true,
		},
		{
			name:  "scan stops once the order is covered",
			order: Order{"foo": 10, "bar": 20, "baz": 30},
			inventory: WarehouseInventory{
				{ID: "ware1", Stock: Stock{"foo": 20, "baz": 5}},
				{ID: "ware2", Stock: Stock{"foo": 5, "bar": 10, "baz": 15}},
				{ID: "ware3", Stock: Stock{"foo": 20, "bar": 30, "baz": 29}},
				{ID: "ware4", Stock: Stock{"foo": 15, "bar": 15, "baz": 30}},
			},
			want: ShipmentPlan{
				"ware1": {"foo": 10, "baz": 5},
				"ware2": {"bar": 10, "baz": 15},
				"ware3": {"bar": 10, "baz": 10},
			},
			wantOK: true,
		},
		{
			name:      "all-zero order behaves as empty",
			order:     Order{"foo": 0},
			inventory: WarehouseInventory{{ID: "w1", Stock: Stock{"foo": 5}}},
		},
		{
			name:  "zero lines are left out of the plan",
			order: Order{"foo": 2, "bar": 0},
			inventory: WarehouseInventory{
				{ID: "w1", Stock: Stock{"foo": 2}},
			},
			want:   ShipmentPlan{"w1": {"foo": 2}},
			wantOK: true,
		},
	}

	allocator := NewAllocator()
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			plan, ok := allocator.Allocate(tt.order, tt.inventory)
			assert.Equal(t, tt.wantOK, ok)
			if !tt.wantOK {
				assert.Nil(t, plan)
				return
			}
			assert.Equal(t, tt.want, plan)
		})
	}
}

func TestAllocator_Decide_Strategy(t *testing.T) {
	allocator := NewAllocator()

	single := allocator.Decide(Order{"foo": 1}, WarehouseInventory{{ID: "w1", Stock: Stock{"foo": 1}}})
	assert.Equal(t, StrategySingleWarehouse, single.Strategy)
	assert.True(t, single.Fulfilled())
	assert.Nil(t, single.Shortfall)

	split := allocator.Decide(Order{"foo": 2}, WarehouseInventory{
		{ID: "w1", Stock: Stock{"foo": 1}},
		{ID: "w2", Stock: Stock{"foo": 1}},
	})
	assert.Equal(t, StrategySplit, split.Strategy)
	assert.True(t, split.Plan.IsSplit())

	empty := allocator.Decide(Order{}, nil)
	assert.Equal(t, StrategyUnfulfillable, empty.Strategy)
	assert.False(t, empty.Fulfilled())
	assert.Empty(t, empty.Shortfall)
}

func TestAllocator_Decide_Shortfall(t *testing.T) {
	allocator := NewAllocator()

	d := allocator.Decide(Order{"foo": 20, "bar": 15, "baz": 1}, WarehouseInventory{
		{ID: "w1", Stock: Stock{"foo": 5, "bar": 5}},
		{ID: "w2", Stock: Stock{"foo": 10, "bar": 12}},
	})

	require.False(t, d.Fulfilled())
	assert.Equal(t, StrategyUnfulfillable, d.Strategy)
	assert.Equal(t, Order{"foo": 5, "baz": 1}, d.Shortfall)
}

func TestAllocator_DoesNotMutateInputs(t *testing.T) {
	order := Order{"foo": 3, "bar": 1}
	inventory := WarehouseInventory{
		{ID: "w1", Stock: Stock{"foo": 1}},
		{ID: "w2", Stock: Stock{"foo": 2, "bar": 1}},
	}
	orderBefore := order.Clone()
	inventoryBefore := inventory.Clone()

	plan, ok := NewAllocator().Allocate(order, inventory)
	require.True(t, ok)

	assert.Equal(t, orderBefore, order)
	assert.Equal(t, inventoryBefore, inventory)

	// The plan owns its maps.
	plan["w1"]["foo"] = 99
	assert.Equal(t, uint64(1), inventory[0].Stock["foo"])
	assert.Equal(t, uint64(3), order["foo"])
}

func TestAllocator_SingleWarehousePlanDoesNotAliasOrder(t *testing.T) {
	order := Order{"foo": 1}
	plan, ok := NewAllocator().Allocate(order, WarehouseInventory{{ID: "w1", Stock: Stock{"foo": 1}}})
	require.True(t, ok)

	plan["w1"]["foo"] = 42
	assert.Equal(t, uint64(1), order["foo"])
}

func TestAllocator_RepeatedCallsAreDeterministic(t *testing.T) {
	order := Order{"foo": 10, "bar": 5, "baz": 2}
	inventory := WarehouseInventory{
		{ID: "ware1", Stock: Stock{"bar": 5}},
		{ID: "ware2", Stock: Stock{"foo": 1, "baz": 2}},
		{ID: "ware3", Stock: Stock{"foo": 3, "bar": 25, "baz": 25}},
		{ID: "ware4", Stock: Stock{"foo": 6, "bar": 18, "baz": 22}},
	}

	allocator := NewAllocator()
	first, ok := allocator.Allocate(order, inventory)
	require.True(t, ok)
	for i := 0; i < 5; i++ {
		again, ok := allocator.Allocate(order, inventory)
		require.True(t, ok)
		assert.Equal(t, first, again)
	}
}

func TestAllocator_LargeQuantities(t *testing.T) {
	const big = uint64(1) << 62
	order := Order{"foo": big + 10}
	inventory := WarehouseInventory{
		{ID: "w1", Stock: Stock{"foo": big}},
		{ID: "w2", Stock: Stock{"foo": big}},
	}

	plan, ok := NewAllocator().Allocate(order, inventory)
	require.True(t, ok)
	assert.Equal(t, ShipmentPlan{"w1": {"foo": big}, "w2": {"foo": 10}}, plan)
}

func TestAllocator_DuplicateWarehouseIDsMerge(t *testing.T) {
	plan, ok := NewAllocator().Allocate(Order{"foo": 3}, WarehouseInventory{
		{ID: "w1", Stock: Stock{"foo": 1}},
		{ID: "w1", Stock: Stock{"foo": 1}},
		{ID: "w2", Stock: Stock{"foo": 1}},
	})
	require.True(t, ok)
	assert.Equal(t, ShipmentPlan{"w1": {"foo": 2}, "w2": {"foo": 1}}, plan)
}

func TestAllocator_Decide_RepeatedWarehouseShipsOnce(t *testing.T) {
	d := NewAllocator().Decide(Order{"foo": 2}, WarehouseInventory{
		{ID: "w1", Stock: Stock{"foo": 1}},
		{ID: "w1", Stock: Stock{"foo": 1}},
	})

	require.True(t, d.Fulfilled())
	assert.Equal(t, ShipmentPlan{"w1": {"foo": 2}}, d.Plan)
	assert.Equal(t, StrategySingleWarehouse, d.Strategy)
}

func TestAllocator_Decide_ShortfallSaturatedInventory(t *testing.T) {
	d := NewAllocator().Decide(Order{"foo": math.MaxUint64, "bar": 2}, WarehouseInventory{
		{ID: "w1", Stock: Stock{"foo": math.MaxUint64 - 1, "bar": 1}},
		{ID: "w2", Stock: Stock{"foo": 1}},
	})

	require.False(t, d.Fulfilled())
	assert.Equal(t, Order{"bar": 1}, d.Shortfall)
}
