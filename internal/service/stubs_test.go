package service

import (
	"context"
	"errors"
	"time"

	"fleetdispatch/internal/model"
	"fleetdispatch/internal/repository"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
	"gorm.io/gorm"
)

// ── Stubs ─────────────────────────────────────────────────────────────────────

// stubItemRepo serves a fixed backlog, pre-sorted the way the real query is.
type stubItemRepo struct {
	backlog []model.Item
}

func (r *stubItemRepo) ListUnassigned(_ context.Context, cutoff time.Time, branchID, customerID *uuid.UUID) ([]model.Item, error) {
	var out []model.Item
	for _, it := range r.backlog {
		if it.OrderDate.After(cutoff) {
			continue
		}
		if branchID != nil && it.BranchID != nil && *it.BranchID != *branchID {
			continue
		}
		if customerID != nil && (it.CustomerID == nil || *it.CustomerID != *customerID) {
			continue
		}
		out = append(out, it)
	}
	return out, nil
}

func (r *stubItemRepo) FindByIDs(_ context.Context, ids []uuid.UUID) ([]model.Item, error) {
	want := make(map[uuid.UUID]bool, len(ids))
	for _, id := range ids {
		want[id] = true
	}
	var out []model.Item
	for _, it := range r.backlog {
		if want[it.ID] {
			out = append(out, it)
		}
	}
	return out, nil
}

var _ repository.ItemRepository = (*stubItemRepo)(nil)

// stubVehicleRepo serves a fixed fleet.
type stubVehicleRepo struct {
	fleet []model.Vehicle
}

func (r *stubVehicleRepo) ListActive(_ context.Context, branchID *uuid.UUID) ([]model.Vehicle, error) {
	var out []model.Vehicle
	for _, v := range r.fleet {
		if !v.Active {
			continue
		}
		if branchID != nil && v.BranchID != nil && *v.BranchID != *branchID {
			continue
		}
		out = append(out, v)
	}
	return out, nil
}

func (r *stubVehicleRepo) FindByIDs(_ context.Context, ids []uuid.UUID) ([]model.Vehicle, error) {
	want := make(map[uuid.UUID]bool, len(ids))
	for _, id := range ids {
		want[id] = true
	}
	var out []model.Vehicle
	for _, v := range r.fleet {
		if want[v.ID] {
			out = append(out, v)
		}
	}
	return out, nil
}

var _ repository.VehicleRepository = (*stubVehicleRepo)(nil)

type stubRouteRepo struct {
	routes map[string]model.Route
}

func (r *stubRouteRepo) MapByID(_ context.Context) (map[string]model.Route, error) {
	if r.routes == nil {
		return map[string]model.Route{}, nil
	}
	return r.routes, nil
}

var _ repository.RouteRepository = (*stubRouteRepo)(nil)

// stubPlanRepo is an in-memory assignment store and trip ledger. It honours
// the same at-most-one-assignment-per-item guarantee the unique index gives
// the real store.
type stubPlanRepo struct {
	plans       map[uuid.UUID]*model.Plan
	planOrder   []uuid.UUID
	units       map[uuid.UUID]*model.PlanUnit
	unitOrder   map[uuid.UUID][]uuid.UUID // plan id → unit ids in creation order
	assignments map[uuid.UUID]*model.Assignment
	asgOrder    []uuid.UUID             // assignment ids in claim order
	byItem      map[uuid.UUID]uuid.UUID // item id → assignment id
	remainders  map[uuid.UUID][]model.PlanRemainder
	items       map[uuid.UUID]*model.Item    // read-model join for FindByID
	vehicles    map[uuid.UUID]*model.Vehicle // read-model join for FindByID
}

func newStubPlanRepo() *stubPlanRepo {
	return &stubPlanRepo{
		plans:       make(map[uuid.UUID]*model.Plan),
		units:       make(map[uuid.UUID]*model.PlanUnit),
		unitOrder:   make(map[uuid.UUID][]uuid.UUID),
		assignments: make(map[uuid.UUID]*model.Assignment),
		byItem:      make(map[uuid.UUID]uuid.UUID),
		remainders:  make(map[uuid.UUID][]model.PlanRemainder),
		items:       make(map[uuid.UUID]*model.Item),
		vehicles:    make(map[uuid.UUID]*model.Vehicle),
	}
}

func (r *stubPlanRepo) seedItems(items []model.Item) {
	for i := range items {
		it := items[i]
		r.items[it.ID] = &it
	}
}

func (r *stubPlanRepo) seedVehicles(vehicles []model.Vehicle) {
	for i := range vehicles {
		v := vehicles[i]
		r.vehicles[v.ID] = &v
	}
}

func (r *stubPlanRepo) FindByID(_ context.Context, id uuid.UUID) (*model.Plan, error) {
	stored, ok := r.plans[id]
	if !ok {
		return nil, gorm.ErrRecordNotFound
	}
	plan := *stored
	plan.Units = nil
	for _, uid := range r.unitOrder[id] {
		unit := *r.units[uid]
		unit.Vehicle = r.vehicles[unit.VehicleID]
		unit.Assignments = nil
		for _, aid := range r.asgOrder {
			if a := r.assignments[aid]; a != nil && a.PlanUnitID == uid {
				asg := *a
				asg.Item = r.items[asg.ItemID]
				unit.Assignments = append(unit.Assignments, asg)
			}
		}
		plan.Units = append(plan.Units, unit)
	}
	plan.Remainders = append([]model.PlanRemainder(nil), r.remainders[id]...)
	return &plan, nil
}

func (r *stubPlanRepo) FindByScope(_ context.Context, departure time.Time, branchID, customerID *uuid.UUID) (*model.Plan, error) {
	match := func(a, b *uuid.UUID) bool {
		if a == nil || b == nil {
			return a == nil && b == nil
		}
		return *a == *b
	}
	for _, id := range r.planOrder {
		p := r.plans[id]
		if p.DepartureDate.Equal(departure) && match(p.BranchID, branchID) && match(p.CustomerID, customerID) {
			found := *p
			return &found, nil
		}
	}
	return nil, nil
}

func (r *stubPlanRepo) CreateTx(_ *gorm.DB, plan *model.Plan) error {
	if plan.ID == uuid.Nil {
		plan.ID = uuid.New()
	}
	stored := *plan
	r.plans[plan.ID] = &stored
	r.planOrder = append(r.planOrder, plan.ID)
	return nil
}

func (r *stubPlanRepo) SaveTx(_ *gorm.DB, plan *model.Plan) error {
	if _, ok := r.plans[plan.ID]; !ok {
		return errors.New("plan not found")
	}
	stored := *plan
	r.plans[plan.ID] = &stored
	return nil
}

func (r *stubPlanRepo) CreateUnitTx(_ *gorm.DB, unit *model.PlanUnit) error {
	if unit.ID == uuid.Nil {
		unit.ID = uuid.New()
	}
	stored := *unit
	r.units[unit.ID] = &stored
	r.unitOrder[unit.PlanID] = append(r.unitOrder[unit.PlanID], unit.ID)
	return nil
}

func (r *stubPlanRepo) FindUnitByID(_ context.Context, id uuid.UUID) (*model.PlanUnit, error) {
	stored, ok := r.units[id]
	if !ok {
		return nil, gorm.ErrRecordNotFound
	}
	unit := *stored
	unit.Assignments = nil
	for _, aid := range r.asgOrder {
		if a := r.assignments[aid]; a != nil && a.PlanUnitID == id {
			unit.Assignments = append(unit.Assignments, *a)
		}
	}
	return &unit, nil
}

func (r *stubPlanRepo) ClaimAssignmentTx(_ *gorm.DB, a *model.Assignment) (bool, error) {
	if _, taken := r.byItem[a.ItemID]; taken {
		return false, nil
	}
	if a.ID == uuid.Nil {
		a.ID = uuid.New()
	}
	stored := *a
	r.assignments[a.ID] = &stored
	r.asgOrder = append(r.asgOrder, a.ID)
	r.byItem[a.ItemID] = a.ID
	return true, nil
}

func (r *stubPlanRepo) HasLiveAssignment(_ context.Context, itemID uuid.UUID) (bool, error) {
	_, ok := r.byItem[itemID]
	return ok, nil
}

func (r *stubPlanRepo) FindAssignmentByID(_ context.Context, id uuid.UUID) (*model.Assignment, error) {
	stored, ok := r.assignments[id]
	if !ok {
		return nil, gorm.ErrRecordNotFound
	}
	a := *stored
	a.Item = r.items[a.ItemID]
	return &a, nil
}

func (r *stubPlanRepo) MoveAssignmentTx(_ *gorm.DB, assignmentID, toUnitID uuid.UUID) error {
	a, ok := r.assignments[assignmentID]
	if !ok {
		return gorm.ErrRecordNotFound
	}
	a.PlanUnitID = toUnitID
	return nil
}

func (r *stubPlanRepo) TripCountsByDate(_ context.Context, departure time.Time) (map[string]int, error) {
	out := make(map[string]int)
	for _, u := range r.units {
		plan, ok := r.plans[u.PlanID]
		if ok && plan.DepartureDate.Equal(departure) {
			out[u.VehicleKey]++
		}
	}
	return out, nil
}

func (r *stubPlanRepo) ReplaceRemaindersTx(_ *gorm.DB, planID uuid.UUID, entries []model.PlanRemainder) error {
	r.remainders[planID] = append([]model.PlanRemainder(nil), entries...)
	return nil
}

func (r *stubPlanRepo) RecalcUsedCapacityTx(_ *gorm.DB, planID uuid.UUID) error {
	for _, uid := range r.unitOrder[planID] {
		used := decimal.Zero
		for _, a := range r.assignments {
			if a.PlanUnitID == uid {
				used = used.Add(a.WeightKg)
			}
		}
		r.units[uid].UsedKg = used
	}
	return nil
}

func (r *stubPlanRepo) DeleteCascadeTx(_ *gorm.DB, planID uuid.UUID) error {
	for _, uid := range r.unitOrder[planID] {
		for aid, a := range r.assignments {
			if a.PlanUnitID == uid {
				delete(r.byItem, a.ItemID)
				delete(r.assignments, aid)
			}
		}
		delete(r.units, uid)
	}
	delete(r.unitOrder, planID)
	delete(r.remainders, planID)
	delete(r.plans, planID)
	for i, id := range r.planOrder {
		if id == planID {
			r.planOrder = append(r.planOrder[:i], r.planOrder[i+1:]...)
			break
		}
	}
	return nil
}

func (r *stubPlanRepo) DB() *gorm.DB { return nil }

var _ repository.PlanRepository = (*stubPlanRepo)(nil)
