package planner

import (
	"testing"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func row(unitID uuid.UUID, fleetNo, customer, orderNo string, weight float64) AssignmentRow {
	return AssignmentRow{
		UnitID:         unitID,
		VehicleID:      unitID,
		FleetNo:        fleetNo,
		Kind:           "rigid",
		CapacityKg:     decimal.NewFromInt(8000),
		CapacityLeftKg: decimal.NewFromInt(4000),
		AssignmentID:   uuid.New(),
		ItemID:         uuid.New(),
		OrderNo:        orderNo,
		CustomerName:   customer,
		WeightKg:       decimal.NewFromFloat(weight),
	}
}

func TestBuildNestedPayload_Grouping(t *testing.T) {
	u1, u2 := uuid.New(), uuid.New()
	rows := []AssignmentRow{
		row(u1, "R-1", "ACME", "ORD-1", 100),
		row(u1, "R-1", "ACME", "ORD-1", 250),
		row(u1, "R-1", "ACME", "ORD-2", 50),
		row(u1, "R-1", "BETA", "ORD-9", 400),
		row(u2, "R-2", "ACME", "ORD-3", 75),
	}

	units := BuildNestedPayload(rows)

	require.Len(t, units, 2)
	assert.Equal(t, u1, units[0].UnitID)
	require.Len(t, units[0].Customers, 2)

	acme := units[0].Customers[0]
	assert.Equal(t, "ACME", acme.CustomerName)
	require.Len(t, acme.Orders, 2)
	assert.Equal(t, "ORD-1", acme.Orders[0].OrderNo)
	assert.Len(t, acme.Orders[0].Items, 2)
	// Order weight is the sum of its items' assigned weights.
	assert.True(t, acme.Orders[0].WeightKg.Equal(decimal.NewFromInt(350)))
	assert.True(t, acme.Orders[1].WeightKg.Equal(decimal.NewFromInt(50)))

	assert.Equal(t, "BETA", units[0].Customers[1].CustomerName)
	require.Len(t, units[1].Customers, 1)
	assert.Equal(t, "ORD-3", units[1].Customers[0].Orders[0].OrderNo)
}

func TestBuildNestedPayload_SameCustomerDifferentRoute(t *testing.T) {
	// The same customer id under different route labels stays two groups.
	u := uuid.New()
	custID := uuid.New()
	r1 := row(u, "R-1", "ACME", "ORD-1", 100)
	r1.CustomerID = &custID
	r1.RouteName = "JHB SOUTH 1"
	r2 := row(u, "R-1", "ACME", "ORD-2", 100)
	r2.CustomerID = &custID
	r2.RouteName = "VAAL 3"

	units := BuildNestedPayload([]AssignmentRow{r1, r2})

	require.Len(t, units, 1)
	assert.Len(t, units[0].Customers, 2)
}

func TestBuildNestedPayload_Empty(t *testing.T) {
	assert.Empty(t, BuildNestedPayload(nil))
}

func TestPayload_RoundTrip(t *testing.T) {
	u1, u2 := uuid.New(), uuid.New()
	rows := []AssignmentRow{
		row(u1, "R-1", "ACME", "ORD-1", 100),
		row(u1, "R-1", "ACME", "ORD-1", 250),
		row(u1, "R-1", "BETA", "ORD-9", 400),
		row(u2, "R-2", "GAMMA", "ORD-3", 75),
		row(u2, "R-2", "ACME", "ORD-4", 20),
	}

	tree := BuildNestedPayload(rows)
	flat := FlattenPayload(tree)
	again := BuildNestedPayload(flat)

	require.Equal(t, tree, again)

	// Tree order flattening preserves every row's identity and weight.
	require.Len(t, flat, len(rows))
	byAssignment := make(map[uuid.UUID]AssignmentRow, len(rows))
	for _, r := range rows {
		byAssignment[r.AssignmentID] = r
	}
	for _, f := range flat {
		orig, ok := byAssignment[f.AssignmentID]
		require.True(t, ok)
		assert.Equal(t, orig.ItemID, f.ItemID)
		assert.True(t, orig.WeightKg.Equal(f.WeightKg))
		assert.Equal(t, orig.OrderNo, f.OrderNo)
		assert.Equal(t, orig.UnitID, f.UnitID)
	}
}
