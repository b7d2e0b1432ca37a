package model

import (
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
)

// Remainder reasons. Free-text unplaced reasons from the packer are stored in
// PlanRemainder.Detail alongside ReasonUnplaced.
const (
	ReasonUnplaced        = "unplaced"
	ReasonRuleRejected    = "rule_rejected"
	ReasonAlreadyAssigned = "already_assigned"
	ReasonZeroWeight      = "zero_weight"
	ReasonUnitCreation    = "unit_creation_failed"
)

// Plan is one committed scheduling run: a departure date plus the scope and
// packing parameters the run was executed with. Created once per commit and
// never mutated by the packer itself.
type Plan struct {
	ID             uuid.UUID  `gorm:"type:uuid;primaryKey;default:gen_random_uuid()"`
	DepartureDate  time.Time  `gorm:"type:date;index;not null"`
	CutoffDate     time.Time  `gorm:"type:date;not null"`
	BranchID       *uuid.UUID `gorm:"type:uuid;index"`
	CustomerID     *uuid.UUID `gorm:"type:uuid;index"`
	HeadroomPct    float64    `gorm:"not null;default:0"`
	LengthBufferMM int        `gorm:"not null;default:0"`
	CreatedAt      time.Time
	UpdatedAt      time.Time

	Units      []PlanUnit      `gorm:"foreignKey:PlanID"`
	Remainders []PlanRemainder `gorm:"foreignKey:PlanID"`
}

// PlanUnit is a persisted snapshot of a vehicle used by a plan. Created lazily:
// only vehicles that end up carrying at least one committed assignment (or are
// manually attached as idle capacity) get a row.
type PlanUnit struct {
	ID          uuid.UUID       `gorm:"type:uuid;primaryKey;default:gen_random_uuid()"`
	PlanID      uuid.UUID       `gorm:"type:uuid;index;not null"`
	VehicleID   uuid.UUID       `gorm:"type:uuid;index;not null"`
	VehicleKey  string          `gorm:"index;not null"`
	Kind        string          `gorm:"not null"`
	CapacityKg  decimal.Decimal `gorm:"type:decimal(12,3);not null"`
	LengthMM    int             `gorm:"not null;default:0"`
	UsedKg      decimal.Decimal `gorm:"type:decimal(12,3);not null;default:0"`
	RouteFamily string
	CreatedAt   time.Time
	UpdatedAt   time.Time

	Vehicle     *Vehicle     `gorm:"foreignKey:VehicleID"`
	Assignments []Assignment `gorm:"foreignKey:PlanUnitID"`
}

// Assignment links one item to one plan unit with the weight actually applied.
// The unique index on item_id is what makes the at-most-one-assignment
// invariant a store guarantee rather than a best-effort pre-check.
type Assignment struct {
	ID         uuid.UUID       `gorm:"type:uuid;primaryKey;default:gen_random_uuid()"`
	PlanUnitID uuid.UUID       `gorm:"type:uuid;index;not null"`
	ItemID     uuid.UUID       `gorm:"type:uuid;uniqueIndex;not null"`
	WeightKg   decimal.Decimal `gorm:"type:decimal(12,3);not null"`
	CreatedAt  time.Time

	Item *Item `gorm:"foreignKey:ItemID"`
}

// PlanRemainder is the reconciled ledger of everything a run could not place,
// tagged with why. The set is replaced wholesale on each re-run against the
// same plan scope.
type PlanRemainder struct {
	ID        uuid.UUID  `gorm:"type:uuid;primaryKey;default:gen_random_uuid()"`
	PlanID    uuid.UUID  `gorm:"type:uuid;index;not null"`
	ItemID    *uuid.UUID `gorm:"type:uuid;index"`
	Reason    string     `gorm:"not null"`
	Detail    *string
	WeightKg  decimal.Decimal `gorm:"type:decimal(12,3);not null;default:0"`
	CreatedAt time.Time

	Item *Item `gorm:"foreignKey:ItemID"`
}
