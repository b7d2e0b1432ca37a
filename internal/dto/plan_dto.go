package dto

// ─── Plan patch DTOs ─────────────────────────────────────────────────────────

// AttachUnitsRequest adds idle vehicles to a committed plan as empty plan
// units. Still subject to the per-vehicle trip cap.
type AttachUnitsRequest struct {
	VehicleIDs []string `json:"vehicle_ids" validate:"required,min=1,dive,uuid"`
}

// MoveItemRequest moves one assignment to another unit of the same plan.
type MoveItemRequest struct {
	AssignmentID string `json:"assignment_id" validate:"required,uuid"`
	ToUnitID     string `json:"to_unit_id"    validate:"required,uuid"`
}

// AttachUnitsResponse reports per-vehicle outcomes; a vehicle at its trip cap
// is skipped, not an error.
type AttachUnitsResponse struct {
	Attached []string          `json:"attached"`
	Skipped  map[string]string `json:"skipped,omitempty"` // vehicle id → reason
}
