package repository

import (
	"context"
	"errors"
	"time"

	"fleetdispatch/internal/model"

	"github.com/google/uuid"
	"gorm.io/gorm"
	"gorm.io/gorm/clause"
)

// PlanRepository is the assignment store and trip ledger: plans, plan units,
// assignments, and the remainder bucket. The claim operation is the single
// place the at-most-one-assignment invariant is enforced — it rides on the
// unique index on assignments.item_id, not on best-effort pre-checks.
type PlanRepository interface {
	FindByID(ctx context.Context, id uuid.UUID) (*model.Plan, error)
	// FindByScope finds the existing plan for a departure/branch/customer
	// scope, or nil when none exists. Re-committing a scope reuses its plan
	// row so the remainder bucket is replaced rather than duplicated.
	FindByScope(ctx context.Context, departure time.Time, branchID, customerID *uuid.UUID) (*model.Plan, error)

	CreateTx(tx *gorm.DB, plan *model.Plan) error
	SaveTx(tx *gorm.DB, plan *model.Plan) error
	CreateUnitTx(tx *gorm.DB, unit *model.PlanUnit) error
	FindUnitByID(ctx context.Context, id uuid.UUID) (*model.PlanUnit, error)

	// ClaimAssignmentTx inserts an assignment unless the item already has a
	// live one anywhere in the system. Returns false when the claim lost.
	ClaimAssignmentTx(tx *gorm.DB, a *model.Assignment) (bool, error)
	HasLiveAssignment(ctx context.Context, itemID uuid.UUID) (bool, error)
	FindAssignmentByID(ctx context.Context, id uuid.UUID) (*model.Assignment, error)
	MoveAssignmentTx(tx *gorm.DB, assignmentID, toUnitID uuid.UUID) error

	// TripCountsByDate returns vehicle key → plan units already committed for
	// the departure date, across all plans.
	TripCountsByDate(ctx context.Context, departure time.Time) (map[string]int, error)

	ReplaceRemaindersTx(tx *gorm.DB, planID uuid.UUID, entries []model.PlanRemainder) error

	// RecalcUsedCapacityTx recomputes plan_units.used_kg from the committed
	// assignments — the persisted figure never trusts in-memory totals.
	RecalcUsedCapacityTx(tx *gorm.DB, planID uuid.UUID) error

	DeleteCascadeTx(tx *gorm.DB, planID uuid.UUID) error

	// DB exposes the underlying *gorm.DB so services can open transactions.
	DB() *gorm.DB
}

type planRepo struct{ db *gorm.DB }

func NewPlanRepository(db *gorm.DB) PlanRepository { return &planRepo{db: db} }

func (r *planRepo) FindByID(ctx context.Context, id uuid.UUID) (*model.Plan, error) {
	var plan model.Plan
	err := r.db.WithContext(ctx).
		Preload("Units", func(db *gorm.DB) *gorm.DB { return db.Order("plan_units.created_at ASC") }).
		Preload("Units.Vehicle").
		Preload("Units.Assignments").
		Preload("Units.Assignments.Item").
		Preload("Remainders").
		Preload("Remainders.Item").
		First(&plan, id).Error
	if err != nil {
		return nil, err
	}
	return &plan, nil
}

func (r *planRepo) FindByScope(ctx context.Context, departure time.Time, branchID, customerID *uuid.UUID) (*model.Plan, error) {
	q := r.db.WithContext(ctx).Where("departure_date = ?", departure)
	if branchID != nil {
		q = q.Where("branch_id = ?", *branchID)
	} else {
		q = q.Where("branch_id IS NULL")
	}
	if customerID != nil {
		q = q.Where("customer_id = ?", *customerID)
	} else {
		q = q.Where("customer_id IS NULL")
	}

	var plan model.Plan
	err := q.First(&plan).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return nil, nil
	}
	if err != nil {
		return nil, err
	}
	return &plan, nil
}

func (r *planRepo) CreateTx(tx *gorm.DB, plan *model.Plan) error {
	return tx.Create(plan).Error
}

func (r *planRepo) SaveTx(tx *gorm.DB, plan *model.Plan) error {
	return tx.Save(plan).Error
}

func (r *planRepo) CreateUnitTx(tx *gorm.DB, unit *model.PlanUnit) error {
	return tx.Create(unit).Error
}

func (r *planRepo) FindUnitByID(ctx context.Context, id uuid.UUID) (*model.PlanUnit, error) {
	var unit model.PlanUnit
	err := r.db.WithContext(ctx).Preload("Assignments").First(&unit, id).Error
	if err != nil {
		return nil, err
	}
	return &unit, nil
}

func (r *planRepo) ClaimAssignmentTx(tx *gorm.DB, a *model.Assignment) (bool, error) {
	res := tx.Clauses(clause.OnConflict{
		Columns:   []clause.Column{{Name: "item_id"}},
		DoNothing: true,
	}).Create(a)
	if res.Error != nil {
		return false, res.Error
	}
	return res.RowsAffected == 1, nil
}

func (r *planRepo) HasLiveAssignment(ctx context.Context, itemID uuid.UUID) (bool, error) {
	var count int64
	err := r.db.WithContext(ctx).Model(&model.Assignment{}).
		Where("item_id = ?", itemID).Count(&count).Error
	return count > 0, err
}

func (r *planRepo) FindAssignmentByID(ctx context.Context, id uuid.UUID) (*model.Assignment, error) {
	var a model.Assignment
	err := r.db.WithContext(ctx).Preload("Item").First(&a, id).Error
	if err != nil {
		return nil, err
	}
	return &a, nil
}

func (r *planRepo) MoveAssignmentTx(tx *gorm.DB, assignmentID, toUnitID uuid.UUID) error {
	return tx.Model(&model.Assignment{}).
		Where("id = ?", assignmentID).
		Update("plan_unit_id", toUnitID).Error
}

func (r *planRepo) TripCountsByDate(ctx context.Context, departure time.Time) (map[string]int, error) {
	type row struct {
		VehicleKey string
		Trips      int
	}
	var rows []row
	err := r.db.WithContext(ctx).
		Table("plan_units").
		Select("plan_units.vehicle_key AS vehicle_key, COUNT(*) AS trips").
		Joins("JOIN plans ON plans.id = plan_units.plan_id").
		Where("plans.departure_date = ?", departure).
		Group("plan_units.vehicle_key").
		Scan(&rows).Error
	if err != nil {
		return nil, err
	}
	out := make(map[string]int, len(rows))
	for _, r := range rows {
		out[r.VehicleKey] = r.Trips
	}
	return out, nil
}

func (r *planRepo) ReplaceRemaindersTx(tx *gorm.DB, planID uuid.UUID, entries []model.PlanRemainder) error {
	if err := tx.Where("plan_id = ?", planID).Delete(&model.PlanRemainder{}).Error; err != nil {
		return err
	}
	if len(entries) == 0 {
		return nil
	}
	return tx.Create(&entries).Error
}

func (r *planRepo) RecalcUsedCapacityTx(tx *gorm.DB, planID uuid.UUID) error {
	return tx.Exec(`
		UPDATE plan_units
		   SET used_kg = COALESCE(
		       (SELECT SUM(a.weight_kg) FROM assignments a WHERE a.plan_unit_id = plan_units.id), 0)
		 WHERE plan_id = ?`, planID).Error
}

func (r *planRepo) DeleteCascadeTx(tx *gorm.DB, planID uuid.UUID) error {
	if err := tx.Exec(`
		DELETE FROM assignments
		 WHERE plan_unit_id IN (SELECT id FROM plan_units WHERE plan_id = ?)`, planID).Error; err != nil {
		return err
	}
	if err := tx.Where("plan_id = ?", planID).Delete(&model.PlanUnit{}).Error; err != nil {
		return err
	}
	if err := tx.Where("plan_id = ?", planID).Delete(&model.PlanRemainder{}).Error; err != nil {
		return err
	}
	return tx.Delete(&model.Plan{}, planID).Error
}

func (r *planRepo) DB() *gorm.DB { return r.db }
