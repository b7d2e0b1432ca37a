package model

import (
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
)

// Item is a single freight line-item pending assignment. Rows are created by
// the order-ingestion pipeline and are read-only to the dispatch engine: an
// item leaves the unassigned pool only by acquiring a persisted Assignment.
type Item struct {
	ID           uuid.UUID `gorm:"type:uuid;primaryKey;default:gen_random_uuid()"`
	OrderNo      string    `gorm:"index;not null"`
	LoadNo       *string
	CustomerID   *uuid.UUID `gorm:"type:uuid;index"`
	CustomerName string     `gorm:"not null"`
	Suburb       string
	WeightKg     decimal.Decimal `gorm:"type:decimal(12,3);not null"`
	Description  *string
	RouteID      *uuid.UUID `gorm:"type:uuid;index"`
	RouteName    string
	BranchID     *uuid.UUID `gorm:"type:uuid;index"`
	OrderDate    time.Time  `gorm:"type:date;index;not null"`
	CreatedAt    time.Time
	UpdatedAt    time.Time

	Route *Route `gorm:"foreignKey:RouteID"`
}
