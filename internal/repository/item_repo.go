package repository

import (
	"context"
	"time"

	"fleetdispatch/internal/model"

	"github.com/google/uuid"
	"gorm.io/gorm"
)

// ItemRepository is the backlog source: unassigned order line-items scoped by
// cutoff date, branch, and customer. Services depend on this interface, not
// on the concrete GORM implementation.
type ItemRepository interface {
	// ListUnassigned returns items with no live assignment, ordered by order
	// date ascending then weight descending — the arrival order the packer
	// expects. branchID/customerID of nil mean "all".
	ListUnassigned(ctx context.Context, cutoff time.Time, branchID, customerID *uuid.UUID) ([]model.Item, error)
	FindByIDs(ctx context.Context, ids []uuid.UUID) ([]model.Item, error)
}

type itemRepo struct{ db *gorm.DB }

func NewItemRepository(db *gorm.DB) ItemRepository { return &itemRepo{db: db} }

func (r *itemRepo) ListUnassigned(ctx context.Context, cutoff time.Time, branchID, customerID *uuid.UUID) ([]model.Item, error) {
	var items []model.Item
	q := r.db.WithContext(ctx).Model(&model.Item{}).
		Where("order_date <= ?", cutoff).
		Where("NOT EXISTS (SELECT 1 FROM assignments a WHERE a.item_id = items.id)")

	if branchID != nil {
		q = q.Where("branch_id = ?", *branchID)
	}
	if customerID != nil {
		q = q.Where("customer_id = ?", *customerID)
	}

	err := q.Order("order_date ASC, weight_kg DESC").Find(&items).Error
	return items, err
}

func (r *itemRepo) FindByIDs(ctx context.Context, ids []uuid.UUID) ([]model.Item, error) {
	var items []model.Item
	err := r.db.WithContext(ctx).Where("id IN ?", ids).Find(&items).Error
	return items, err
}
