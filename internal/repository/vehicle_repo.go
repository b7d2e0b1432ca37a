package repository

import (
	"context"

	"fleetdispatch/internal/model"

	"github.com/google/uuid"
	"gorm.io/gorm"
)

// VehicleRepository is the fleet source.
type VehicleRepository interface {
	// ListActive returns active vehicles, optionally scoped to a branch
	// (branch-less vehicles are always included — they float between depots).
	ListActive(ctx context.Context, branchID *uuid.UUID) ([]model.Vehicle, error)
	FindByIDs(ctx context.Context, ids []uuid.UUID) ([]model.Vehicle, error)
}

type vehicleRepo struct{ db *gorm.DB }

func NewVehicleRepository(db *gorm.DB) VehicleRepository { return &vehicleRepo{db: db} }

func (r *vehicleRepo) ListActive(ctx context.Context, branchID *uuid.UUID) ([]model.Vehicle, error) {
	var vehicles []model.Vehicle
	q := r.db.WithContext(ctx).Where("active = true")
	if branchID != nil {
		q = q.Where("branch_id = ? OR branch_id IS NULL", *branchID)
	}
	err := q.Order("priority DESC, fleet_no ASC").Find(&vehicles).Error
	return vehicles, err
}

func (r *vehicleRepo) FindByIDs(ctx context.Context, ids []uuid.UUID) ([]model.Vehicle, error) {
	var vehicles []model.Vehicle
	err := r.db.WithContext(ctx).Where("id IN ?", ids).Find(&vehicles).Error
	return vehicles, err
}
