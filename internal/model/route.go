package model

import (
	"time"

	"github.com/google/uuid"
)

// Branch is a depot the fleet and backlog are scoped by.
type Branch struct {
	ID        uuid.UUID `gorm:"type:uuid;primaryKey;default:gen_random_uuid()"`
	Name      string    `gorm:"uniqueIndex;not null"`
	CreatedAt time.Time
	UpdatedAt time.Time
}

// Route is delivery-route master data, used to backfill missing route names
// on backlog items.
type Route struct {
	ID        uuid.UUID  `gorm:"type:uuid;primaryKey;default:gen_random_uuid()"`
	BranchID  *uuid.UUID `gorm:"type:uuid;index"`
	Name      string     `gorm:"index;not null"`
	CreatedAt time.Time
	UpdatedAt time.Time
}
