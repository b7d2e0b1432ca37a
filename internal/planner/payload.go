package planner

import (
	"github.com/google/uuid"
	"github.com/shopspring/decimal"
)

// Flat row and nested tree shapes for the API response. BuildNestedPayload
// and FlattenPayload are exact inverses over trees the builder produces — a
// property the tests lean on for preview/commit payload parity.

// AssignmentRow is one flat (unit, assignment) row as read back from the
// store or synthesized by a preview run.
type AssignmentRow struct {
	UnitID         uuid.UUID
	VehicleID      uuid.UUID
	FleetNo        string
	Kind           string
	DriverName     string
	RouteFamily    string
	CapacityKg     decimal.Decimal
	CapacityLeftKg decimal.Decimal
	AssignmentID   uuid.UUID
	ItemID         uuid.UUID
	OrderNo        string
	CustomerID     *uuid.UUID
	CustomerName   string
	Suburb         string
	RouteName      string
	Description    string
	WeightKg       decimal.Decimal
}

type ItemPayload struct {
	AssignmentID uuid.UUID       `json:"assignment_id"`
	ItemID       uuid.UUID       `json:"item_id"`
	Description  string          `json:"description,omitempty"`
	WeightKg     decimal.Decimal `json:"weight_kg"`
}

type OrderPayload struct {
	OrderNo  string          `json:"order_no"`
	WeightKg decimal.Decimal `json:"weight_kg"`
	Items    []ItemPayload   `json:"items"`
}

type CustomerPayload struct {
	CustomerID   *uuid.UUID     `json:"customer_id,omitempty"`
	CustomerName string         `json:"customer_name"`
	Suburb       string         `json:"suburb,omitempty"`
	RouteName    string         `json:"route,omitempty"`
	Orders       []OrderPayload `json:"orders"`
}

type UnitPayload struct {
	UnitID         uuid.UUID         `json:"unit_id"`
	VehicleID      uuid.UUID         `json:"vehicle_id"`
	FleetNo        string            `json:"fleet_no"`
	Kind           string            `json:"kind"`
	DriverName     string            `json:"driver_name,omitempty"`
	RouteFamily    string            `json:"route_family,omitempty"`
	CapacityKg     decimal.Decimal   `json:"capacity_kg"`
	CapacityLeftKg decimal.Decimal   `json:"capacity_left_kg"`
	Customers      []CustomerPayload `json:"customers"`
}

// customerGroupKey is the composite grouping key: the same customer id can
// validly appear under different route labels, so the route fields are part
// of the identity.
func customerGroupKey(r AssignmentRow) string {
	id := ""
	if r.CustomerID != nil {
		id = r.CustomerID.String()
	}
	return id + "|" + r.CustomerName + "|" + r.Suburb + "|" + r.RouteName
}

// BuildNestedPayload reshapes flat assignment rows into the
// Unit → Customer → Order → Item tree. Pure, total, and order-preserving with
// respect to first appearance of each group key; order-level weight is the
// sum of its items' assigned weights.
func BuildNestedPayload(rows []AssignmentRow) []UnitPayload {
	var units []UnitPayload
	unitIdx := make(map[uuid.UUID]int)
	custIdx := make(map[uuid.UUID]map[string]int)
	orderIdx := make(map[uuid.UUID]map[string]map[string]int)

	for _, r := range rows {
		ui, ok := unitIdx[r.UnitID]
		if !ok {
			ui = len(units)
			unitIdx[r.UnitID] = ui
			custIdx[r.UnitID] = make(map[string]int)
			orderIdx[r.UnitID] = make(map[string]map[string]int)
			units = append(units, UnitPayload{
				UnitID:         r.UnitID,
				VehicleID:      r.VehicleID,
				FleetNo:        r.FleetNo,
				Kind:           r.Kind,
				DriverName:     r.DriverName,
				RouteFamily:    r.RouteFamily,
				CapacityKg:     r.CapacityKg,
				CapacityLeftKg: r.CapacityLeftKg,
			})
		}

		ck := customerGroupKey(r)
		ci, ok := custIdx[r.UnitID][ck]
		if !ok {
			ci = len(units[ui].Customers)
			custIdx[r.UnitID][ck] = ci
			orderIdx[r.UnitID][ck] = make(map[string]int)
			units[ui].Customers = append(units[ui].Customers, CustomerPayload{
				CustomerID:   r.CustomerID,
				CustomerName: r.CustomerName,
				Suburb:       r.Suburb,
				RouteName:    r.RouteName,
			})
		}

		oi, ok := orderIdx[r.UnitID][ck][r.OrderNo]
		if !ok {
			oi = len(units[ui].Customers[ci].Orders)
			orderIdx[r.UnitID][ck][r.OrderNo] = oi
			units[ui].Customers[ci].Orders = append(units[ui].Customers[ci].Orders, OrderPayload{
				OrderNo:  r.OrderNo,
				WeightKg: decimal.Zero,
			})
		}

		order := &units[ui].Customers[ci].Orders[oi]
		order.WeightKg = order.WeightKg.Add(r.WeightKg)
		order.Items = append(order.Items, ItemPayload{
			AssignmentID: r.AssignmentID,
			ItemID:       r.ItemID,
			Description:  r.Description,
			WeightKg:     r.WeightKg,
		})
	}

	return units
}

// FlattenPayload is the inverse projection of BuildNestedPayload back to flat
// rows, in tree order.
func FlattenPayload(units []UnitPayload) []AssignmentRow {
	var rows []AssignmentRow
	for _, u := range units {
		for _, c := range u.Customers {
			for _, o := range c.Orders {
				for _, it := range o.Items {
					rows = append(rows, AssignmentRow{
						UnitID:         u.UnitID,
						VehicleID:      u.VehicleID,
						FleetNo:        u.FleetNo,
						Kind:           u.Kind,
						DriverName:     u.DriverName,
						RouteFamily:    u.RouteFamily,
						CapacityKg:     u.CapacityKg,
						CapacityLeftKg: u.CapacityLeftKg,
						AssignmentID:   it.AssignmentID,
						ItemID:         it.ItemID,
						OrderNo:        o.OrderNo,
						CustomerID:     c.CustomerID,
						CustomerName:   c.CustomerName,
						Suburb:         c.Suburb,
						RouteName:      c.RouteName,
						Description:    it.Description,
						WeightKg:       it.WeightKg,
					})
				}
			}
		}
	}
	return rows
}
