package dto

import (
	"github.com/shopspring/decimal"

	"fleetdispatch/internal/planner"
)

// ─── Request DTOs ────────────────────────────────────────────────────────────

// DispatchRequest drives both preview and commit runs; Commit selects the
// branch. Malformed dates/ids are coerced to defaults by the service, never
// rejected — placement failures are data, not errors.
type DispatchRequest struct {
	DepartureDate string `json:"departure_date"` // default: tomorrow; malformed values coerce, never reject
	CutoffDate    string `json:"cutoff_date"`    // default: today; malformed values coerce, never reject
	BranchID      string `json:"branch_id"`      // uuid, or "all"/empty for every branch
	CustomerID    string `json:"customer_id"`    // uuid, optional
	Commit        bool   `json:"commit"`

	// Per-run overrides of the configured packing knobs.
	CapacityHeadroom      *float64 `json:"capacityHeadroom"      validate:"omitempty,min=0,max=1"`
	LengthBufferMM        *int     `json:"lengthBufferMm"        validate:"omitempty,min=0"`
	IgnoreLengthIfMissing *bool    `json:"ignoreLengthIfMissing"`
	CustomerUnitCap       *int     `json:"customerUnitCap"` // <=0 means unbounded
	VehicleTripCap        *int     `json:"vehicleTripCap"`  // <=0 means unbounded
	RouteAffinitySlop     *float64 `json:"routeAffinitySlop" validate:"omitempty,min=0,max=1"`
}

// IdleUnitsFilter is bound from query string of GET /v1/dispatch/idle-units.
type IdleUnitsFilter struct {
	DepartureDate string `form:"departure_date"`
	CutoffDate    string `form:"cutoff_date"`
	BranchID      string `form:"branch_id"`
	CustomerID    string `form:"customer_id"`
}

// ─── Response DTOs ───────────────────────────────────────────────────────────

// PlanInfo echoes the scope and parameters a run executed with. For preview
// runs the ID is synthetic and nothing is persisted.
type PlanInfo struct {
	ID             string  `json:"id"`
	Committed      bool    `json:"committed"`
	DepartureDate  string  `json:"departure_date"`
	CutoffDate     string  `json:"cutoff_date"`
	BranchID       *string `json:"branch_id,omitempty"`
	CustomerID     *string `json:"customer_id,omitempty"`
	HeadroomPct    float64 `json:"headroom_pct"`
	LengthBufferMM int     `json:"length_buffer_mm"`
}

// UnassignedEntry is one remainder ledger row.
type UnassignedEntry struct {
	ItemID       string          `json:"item_id,omitempty"`
	OrderNo      string          `json:"order_no,omitempty"`
	CustomerName string          `json:"customer_name,omitempty"`
	WeightKg     decimal.Decimal `json:"weight_kg"`
	Reason       string          `json:"reason"`
	Detail       string          `json:"detail,omitempty"`
}

// IdleUnit is a vehicle with no accepted placement in the run's scope.
type IdleUnit struct {
	VehicleID  string          `json:"vehicle_id"`
	FleetNo    string          `json:"fleet_no"`
	Kind       string          `json:"kind"`
	CapacityKg decimal.Decimal `json:"capacity_kg"`
	DriverName string          `json:"driver_name,omitempty"`
}

// DispatchResponse is shared verbatim by preview and commit; the payload
// builder guarantees both shapes are derivable from the same flat rows.
type DispatchResponse struct {
	Plan              PlanInfo              `json:"plan"`
	AssignedUnits     []planner.UnitPayload `json:"assigned_units"`
	Unassigned        []UnassignedEntry     `json:"unassigned"`
	IdleUnitsByBranch map[string][]IdleUnit `json:"idle_units_by_branch,omitempty"`
}
