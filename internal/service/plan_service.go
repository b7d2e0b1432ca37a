package service

import (
	"context"
	"errors"
	"fmt"
	"math"
	"os"
	"path/filepath"

	"fleetdispatch/internal/config"
	"fleetdispatch/internal/dto"
	"fleetdispatch/internal/model"
	"fleetdispatch/internal/planner"
	"fleetdispatch/internal/repository"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
	"gorm.io/gorm"
)

var (
	ErrPlanNotFound        = errors.New("plan not found")
	ErrAssignmentNotInPlan = errors.New("assignment does not belong to this plan")
	ErrUnitNotInPlan       = errors.New("target unit does not belong to this plan")
	ErrUnitOverCapacity    = errors.New("move exceeds the target unit's capacity")
)

// PlanService patches committed plans: fetch, attach idle units, move items
// between units, roll back. These are the operator's manual corrections on
// top of a committed run.
type PlanService interface {
	Get(ctx context.Context, planID uuid.UUID) (*dto.DispatchResponse, error)
	AttachUnits(ctx context.Context, planID uuid.UUID, req dto.AttachUnitsRequest) (*dto.AttachUnitsResponse, error)
	MoveItem(ctx context.Context, planID uuid.UUID, req dto.MoveItemRequest) error
	Rollback(ctx context.Context, planID uuid.UUID) error
	// ManifestPath returns the rendered manifest file for a plan, or an error
	// when the worker has not produced one yet.
	ManifestPath(planID uuid.UUID) (string, error)
}

type planService struct {
	plans repository.PlanRepository
	fleet repository.VehicleRepository
	cfg   *config.Config
}

func NewPlanService(plans repository.PlanRepository, fleet repository.VehicleRepository, cfg *config.Config) PlanService {
	return &planService{plans: plans, fleet: fleet, cfg: cfg}
}

func (s *planService) Get(ctx context.Context, planID uuid.UUID) (*dto.DispatchResponse, error) {
	plan, err := s.plans.FindByID(ctx, planID)
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, ErrPlanNotFound
		}
		return nil, err
	}

	info := dto.PlanInfo{
		ID:             plan.ID.String(),
		Committed:      true,
		DepartureDate:  plan.DepartureDate.Format("2006-01-02"),
		CutoffDate:     plan.CutoffDate.Format("2006-01-02"),
		HeadroomPct:    plan.HeadroomPct,
		LengthBufferMM: plan.LengthBufferMM,
	}
	if plan.BranchID != nil {
		b := plan.BranchID.String()
		info.BranchID = &b
	}
	if plan.CustomerID != nil {
		c := plan.CustomerID.String()
		info.CustomerID = &c
	}

	return &dto.DispatchResponse{
		Plan:          info,
		AssignedUnits: planner.BuildNestedPayload(rowsFromPlan(plan, plan.HeadroomPct)),
		Unassigned:    entriesFromRemainders(plan.Remainders),
	}, nil
}

// AttachUnits adds idle vehicles as empty plan units. Vehicles at their trip
// cap or already present in the plan are skipped with a reason, not failed.
func (s *planService) AttachUnits(ctx context.Context, planID uuid.UUID, req dto.AttachUnitsRequest) (*dto.AttachUnitsResponse, error) {
	plan, err := s.plans.FindByID(ctx, planID)
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, ErrPlanNotFound
		}
		return nil, err
	}

	ids := make([]uuid.UUID, 0, len(req.VehicleIDs))
	for _, raw := range req.VehicleIDs {
		if id, err := uuid.Parse(raw); err == nil {
			ids = append(ids, id)
		}
	}
	vehicles, err := s.fleet.FindByIDs(ctx, ids)
	if err != nil {
		return nil, fmt.Errorf("load vehicles: %w", err)
	}

	inPlan := make(map[uuid.UUID]bool, len(plan.Units))
	for _, u := range plan.Units {
		inPlan[u.VehicleID] = true
	}

	live, err := s.plans.TripCountsByDate(ctx, plan.DepartureDate)
	if err != nil {
		return nil, fmt.Errorf("load trip ledger: %w", err)
	}

	resp := &dto.AttachUnitsResponse{Skipped: make(map[string]string)}
	txErr := runTx(ctx, s.plans.DB(), func(tx *gorm.DB) error {
		for i := range vehicles {
			v := &vehicles[i]
			if inPlan[v.ID] {
				resp.Skipped[v.ID.String()] = "already attached to this plan"
				continue
			}
			key := planner.VehicleKey(v)
			if s.cfg.VehicleTripCap > 0 && live[key] >= s.cfg.VehicleTripCap {
				resp.Skipped[v.ID.String()] = fmt.Sprintf("vehicle %s is at its trip cap for %s", key, plan.DepartureDate.Format("2006-01-02"))
				continue
			}

			lengthMM := 0
			if v.LengthMM != nil {
				lengthMM = *v.LengthMM
			}
			unit := &model.PlanUnit{
				PlanID:     plan.ID,
				VehicleID:  v.ID,
				VehicleKey: key,
				Kind:       v.Kind,
				CapacityKg: v.CapacityKg,
				LengthMM:   lengthMM,
			}
			if err := s.plans.CreateUnitTx(tx, unit); err != nil {
				return fmt.Errorf("attach unit: %w", err)
			}
			live[key]++
			resp.Attached = append(resp.Attached, unit.ID.String())
		}
		return nil
	})
	if txErr != nil {
		return nil, txErr
	}
	if len(resp.Skipped) == 0 {
		resp.Skipped = nil
	}
	return resp, nil
}

// MoveItem reassigns one item to another unit of the same plan. The manual
// move deliberately bypasses the route family lock — the operator is
// overriding — but never the raw capacity of the target unit.
func (s *planService) MoveItem(ctx context.Context, planID uuid.UUID, req dto.MoveItemRequest) error {
	assignmentID, err := uuid.Parse(req.AssignmentID)
	if err != nil {
		return fmt.Errorf("invalid assignment id: %w", err)
	}
	toUnitID, err := uuid.Parse(req.ToUnitID)
	if err != nil {
		return fmt.Errorf("invalid unit id: %w", err)
	}

	assignment, err := s.plans.FindAssignmentByID(ctx, assignmentID)
	if err != nil {
		return ErrAssignmentNotInPlan
	}
	fromUnit, err := s.plans.FindUnitByID(ctx, assignment.PlanUnitID)
	if err != nil || fromUnit.PlanID != planID {
		return ErrAssignmentNotInPlan
	}
	toUnit, err := s.plans.FindUnitByID(ctx, toUnitID)
	if err != nil || toUnit.PlanID != planID {
		return ErrUnitNotInPlan
	}

	used := decimal.Zero
	for _, a := range toUnit.Assignments {
		used = used.Add(a.WeightKg)
	}
	if used.Add(assignment.WeightKg).GreaterThan(toUnit.CapacityKg) {
		return ErrUnitOverCapacity
	}

	return runTx(ctx, s.plans.DB(), func(tx *gorm.DB) error {
		if err := s.plans.MoveAssignmentTx(tx, assignmentID, toUnitID); err != nil {
			return fmt.Errorf("move assignment: %w", err)
		}
		return s.plans.RecalcUsedCapacityTx(tx, planID)
	})
}

// Rollback deletes the plan with everything under it; the items return to
// the unassigned backlog by construction.
func (s *planService) Rollback(ctx context.Context, planID uuid.UUID) error {
	if _, err := s.plans.FindByID(ctx, planID); err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return ErrPlanNotFound
		}
		return err
	}
	return runTx(ctx, s.plans.DB(), func(tx *gorm.DB) error {
		return s.plans.DeleteCascadeTx(tx, planID)
	})
}

func (s *planService) ManifestPath(planID uuid.UUID) (string, error) {
	path := filepath.Join(s.cfg.PDFStoragePath, fmt.Sprintf("manifest_%s.pdf", planID))
	if _, err := os.Stat(path); err != nil {
		return "", err
	}
	return path, nil
}

// ── Shared projections ───────────────────────────────────────────────────────

// rowsFromPlan projects a loaded plan into the flat rows the nested payload
// builder consumes. capacity_left re-applies the run's headroom to the raw
// capacity before subtracting persisted usage.
func rowsFromPlan(plan *model.Plan, headroom float64) []planner.AssignmentRow {
	var rows []planner.AssignmentRow
	for i := range plan.Units {
		u := &plan.Units[i]
		capKg, _ := u.CapacityKg.Float64()
		effective := decimal.NewFromFloat(math.Round(capKg * (1 + headroom)))
		capLeft := effective.Sub(u.UsedKg)

		fleetNo, driver := "", ""
		if u.Vehicle != nil {
			fleetNo = u.Vehicle.FleetNo
			if u.Vehicle.DriverName != nil {
				driver = *u.Vehicle.DriverName
			}
		}

		for j := range u.Assignments {
			a := &u.Assignments[j]
			row := planner.AssignmentRow{
				UnitID:         u.ID,
				VehicleID:      u.VehicleID,
				FleetNo:        fleetNo,
				Kind:           u.Kind,
				DriverName:     driver,
				RouteFamily:    u.RouteFamily,
				CapacityKg:     u.CapacityKg,
				CapacityLeftKg: capLeft,
				AssignmentID:   a.ID,
				ItemID:         a.ItemID,
				WeightKg:       a.WeightKg,
			}
			if a.Item != nil {
				row.OrderNo = a.Item.OrderNo
				row.CustomerID = a.Item.CustomerID
				row.CustomerName = a.Item.CustomerName
				row.Suburb = a.Item.Suburb
				row.RouteName = a.Item.RouteName
				if a.Item.Description != nil {
					row.Description = *a.Item.Description
				}
			}
			rows = append(rows, row)
		}
	}
	return rows
}

func entriesFromRemainders(remainders []model.PlanRemainder) []dto.UnassignedEntry {
	entries := make([]dto.UnassignedEntry, 0, len(remainders))
	for i := range remainders {
		r := &remainders[i]
		e := dto.UnassignedEntry{
			WeightKg: r.WeightKg,
			Reason:   r.Reason,
		}
		if r.ItemID != nil {
			e.ItemID = r.ItemID.String()
		}
		if r.Detail != nil {
			e.Detail = *r.Detail
		}
		if r.Item != nil {
			e.OrderNo = r.Item.OrderNo
			e.CustomerName = r.Item.CustomerName
		}
		entries = append(entries, e)
	}
	return entries
}
