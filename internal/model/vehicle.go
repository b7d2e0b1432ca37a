package model

import (
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
)

// Vehicle kinds. A horse+trailer combination is registered as one dispatchable
// unit; both halves keep their own plates for the trip ledger key.
const (
	VehicleRigid        = "rigid"
	VehicleHorseTrailer = "horse+trailer"
)

// Vehicle is a dispatchable unit: a rigid truck or a horse+trailer pair.
type Vehicle struct {
	ID         uuid.UUID       `gorm:"type:uuid;primaryKey;default:gen_random_uuid()"`
	Kind       string          `gorm:"not null;default:'rigid'"`
	FleetNo    string          `gorm:"uniqueIndex;not null"`
	CapacityKg decimal.Decimal `gorm:"type:decimal(12,3);not null"`
	// LengthMM is the usable deck length; nil when the fleet master has no
	// measurement for this unit.
	LengthMM     *int
	BranchID     *uuid.UUID `gorm:"type:uuid;index"`
	Priority     int        `gorm:"not null;default:0"`
	DriverName   *string
	RigidPlate   *string
	HorsePlate   *string
	TrailerPlate *string
	Active       bool `gorm:"not null;default:true"`
	CreatedAt    time.Time
	UpdatedAt    time.Time
}
