package service

import (
	"context"
	"errors"
	"fmt"
	"time"

	"fleetdispatch/internal/config"
	"fleetdispatch/internal/dto"
	"fleetdispatch/internal/model"
	"fleetdispatch/internal/planner"
	"fleetdispatch/internal/repository"
	"fleetdispatch/internal/worker"

	"github.com/google/uuid"
	"github.com/redis/go-redis/v9"
	"github.com/rs/zerolog/log"
	"github.com/shopspring/decimal"
	"gorm.io/gorm"
)

// ErrCommitInProgress is returned when another commit already holds the
// per-departure-date lock.
var ErrCommitInProgress = errors.New("another commit is in progress for this departure date")

type DispatchService interface {
	// Run executes one preview or commit run. Preview and commit share every
	// step up to persistence; only the persistence branch differs.
	Run(ctx context.Context, req dto.DispatchRequest) (*dto.DispatchResponse, error)
	// IdleUnits returns, per branch, the vehicles a preview run would leave
	// without a single accepted placement.
	IdleUnits(ctx context.Context, filter dto.IdleUnitsFilter) (map[string][]dto.IdleUnit, error)
}

type dispatchService struct {
	items      repository.ItemRepository
	fleet      repository.VehicleRepository
	routes     repository.RouteRepository
	plans      repository.PlanRepository
	cfg        *config.Config
	rdb        *redis.Client      // nil in unit tests: commit lock is skipped
	dispatcher *worker.Dispatcher // nil in unit tests: no manifest job
}

func NewDispatchService(
	items repository.ItemRepository,
	fleet repository.VehicleRepository,
	routes repository.RouteRepository,
	plans repository.PlanRepository,
	cfg *config.Config,
	rdb *redis.Client,
	dispatcher *worker.Dispatcher,
) DispatchService {
	return &dispatchService{
		items:      items,
		fleet:      fleet,
		routes:     routes,
		plans:      plans,
		cfg:        cfg,
		rdb:        rdb,
		dispatcher: dispatcher,
	}
}

// runTx executes fn inside a GORM transaction when db is available,
// or calls fn(nil) directly when db is nil (unit test mode).
func runTx(ctx context.Context, db *gorm.DB, fn func(tx *gorm.DB) error) error {
	if db == nil {
		return fn(nil)
	}
	return db.WithContext(ctx).Transaction(fn)
}

// runParams is the fully-coerced form of a DispatchRequest. Malformed dates
// and ids never reject a run; they fall back to defaults.
type runParams struct {
	departure  time.Time
	cutoff     time.Time
	branchID   *uuid.UUID
	customerID *uuid.UUID
	pack       planner.Config
}

func (s *dispatchService) resolveParams(req dto.DispatchRequest) runParams {
	// Defaults follow the server-local calendar day, not UTC midnight.
	now := time.Now()
	today := time.Date(now.Year(), now.Month(), now.Day(), 0, 0, 0, 0, now.Location())

	p := runParams{
		departure: today.AddDate(0, 0, 1),
		cutoff:    today,
		pack: planner.Config{
			Headroom:              s.cfg.CapacityHeadroom,
			LengthBufferMM:        s.cfg.LengthBufferMM,
			IgnoreLengthIfMissing: s.cfg.IgnoreLengthMissing,
			CustomerUnitCap:       s.cfg.CustomerUnitCap,
			VehicleTripCap:        s.cfg.VehicleTripCap,
		},
	}

	if t, err := time.Parse("2006-01-02", req.DepartureDate); err == nil {
		p.departure = t
	}
	if t, err := time.Parse("2006-01-02", req.CutoffDate); err == nil {
		p.cutoff = t
	}
	if req.BranchID != "" && req.BranchID != "all" {
		if id, err := uuid.Parse(req.BranchID); err == nil {
			p.branchID = &id
		}
	}
	if req.CustomerID != "" {
		if id, err := uuid.Parse(req.CustomerID); err == nil {
			p.customerID = &id
		}
	}

	if req.CapacityHeadroom != nil {
		p.pack.Headroom = *req.CapacityHeadroom
	}
	if req.LengthBufferMM != nil {
		p.pack.LengthBufferMM = *req.LengthBufferMM
	}
	if req.IgnoreLengthIfMissing != nil {
		p.pack.IgnoreLengthIfMissing = *req.IgnoreLengthIfMissing
	}
	if req.CustomerUnitCap != nil {
		p.pack.CustomerUnitCap = *req.CustomerUnitCap
	}
	if req.VehicleTripCap != nil {
		p.pack.VehicleTripCap = *req.VehicleTripCap
	}
	if req.RouteAffinitySlop != nil {
		p.pack.AffinitySlop = *req.RouteAffinitySlop
	}

	return p
}

func (s *dispatchService) Run(ctx context.Context, req dto.DispatchRequest) (*dto.DispatchResponse, error) {
	p := s.resolveParams(req)

	// COLLECTING
	backlog, err := s.items.ListUnassigned(ctx, p.cutoff, p.branchID, p.customerID)
	if err != nil {
		return nil, fmt.Errorf("load backlog: %w", err)
	}
	vehicles, err := s.fleet.ListActive(ctx, p.branchID)
	if err != nil {
		return nil, fmt.Errorf("load fleet: %w", err)
	}
	routes, err := s.routes.MapByID(ctx)
	if err != nil {
		return nil, fmt.Errorf("load routes: %w", err)
	}

	// PACKING — pure in-memory from here until persistence.
	items := planner.BuildPackItems(backlog, routes, p.pack)
	units := planner.NormalizeUnits(vehicles, p.pack)
	pctx := planner.Pack(items, units, p.pack)

	// ENFORCING
	tripSnapshot, err := s.plans.TripCountsByDate(ctx, p.departure)
	if err != nil {
		return nil, fmt.Errorf("load trip ledger: %w", err)
	}
	accepted, rejected := planner.EnforceRules(pctx, p.pack, tripSnapshot)

	log.Info().
		Bool("commit", req.Commit).
		Str("departure", p.departure.Format("2006-01-02")).
		Int("backlog", len(items)).
		Int("fleet", len(units)).
		Int("placed", len(accepted)).
		Int("rejected", len(rejected)).
		Int("unplaced", len(pctx.Unplaced)).
		Msg("dispatch run packed")

	var resp *dto.DispatchResponse
	if req.Commit {
		resp, err = s.commit(ctx, p, pctx, accepted, rejected, vehicles, tripSnapshot)
	} else {
		resp, err = s.preview(p, pctx, accepted, rejected, vehicles)
	}
	if err != nil {
		return nil, err
	}
	return resp, nil
}

// ── PREVIEW_RENDER ───────────────────────────────────────────────────────────

// preview synthesizes ephemeral identifiers and performs no writes.
func (s *dispatchService) preview(
	p runParams,
	pctx *planner.PackingContext,
	accepted []planner.Placement,
	rejected []planner.RuleReject,
	vehicles []model.Vehicle,
) (*dto.DispatchResponse, error) {
	unitIDs := make(map[int]uuid.UUID)
	var rows []planner.AssignmentRow
	for _, pl := range accepted {
		u := pctx.Units[pl.UnitIdx]
		st := pctx.States[pl.UnitIdx]
		uid, ok := unitIDs[pl.UnitIdx]
		if !ok {
			uid = uuid.New()
			unitIDs[pl.UnitIdx] = uid
		}
		rows = append(rows, planner.AssignmentRow{
			UnitID:         uid,
			VehicleID:      u.VehicleID,
			FleetNo:        u.FleetNo,
			Kind:           u.Kind,
			DriverName:     u.DriverName,
			RouteFamily:    st.Family,
			CapacityKg:     decimal.NewFromFloat(u.CapacityKg),
			CapacityLeftKg: decimal.NewFromFloat(st.CapacityLeftKg),
			AssignmentID:   uuid.New(),
			ItemID:         pl.Item.ID,
			OrderNo:        pl.Item.OrderNo,
			CustomerID:     pl.Item.CustomerID,
			CustomerName:   pl.Item.CustomerName,
			Suburb:         pl.Item.Suburb,
			RouteName:      pl.Item.RouteName,
			Description:    pl.Item.Description,
			WeightKg:       decimal.NewFromFloat(pl.WeightKg),
		})
	}

	return &dto.DispatchResponse{
		Plan:              s.planInfo(uuid.New(), false, p),
		AssignedUnits:     planner.BuildNestedPayload(rows),
		Unassigned:        bucketEntries(pctx.Unplaced, rejected, nil),
		IdleUnitsByBranch: idleByBranch(pctx, accepted, vehicles),
	}, nil
}

// ── COMMITTING ───────────────────────────────────────────────────────────────

// commit persists accepted placements. Steps, in order: claim-dedupe against
// every live assignment in the system, drop zero-weight rows, create plan
// units lazily under the live trip counter, insert assignments, recompute
// used capacity from the committed ground truth, replace the remainder
// bucket. A persistence error aborts the run; partial writes flushed before
// the error are rolled back by the surrounding transaction.
func (s *dispatchService) commit(
	ctx context.Context,
	p runParams,
	pctx *planner.PackingContext,
	accepted []planner.Placement,
	rejected []planner.RuleReject,
	vehicles []model.Vehicle,
	tripSnapshot map[string]int,
) (*dto.DispatchResponse, error) {
	unlock, err := s.acquireCommitLock(ctx, p.departure)
	if err != nil {
		return nil, err
	}
	defer unlock()

	existing, err := s.plans.FindByScope(ctx, p.departure, p.branchID, p.customerID)
	if err != nil {
		return nil, fmt.Errorf("find plan by scope: %w", err)
	}

	plan := existing
	if plan == nil {
		plan = &model.Plan{
			DepartureDate: p.departure,
			CutoffDate:    p.cutoff,
			BranchID:      p.branchID,
			CustomerID:    p.customerID,
		}
	}
	// A reused plan takes the new run's parameters, cutoff included, so the
	// persisted row always matches the response's plan info.
	plan.CutoffDate = p.cutoff
	plan.HeadroomPct = p.pack.Headroom
	plan.LengthBufferMM = p.pack.LengthBufferMM

	var drops []commitDrop

	txErr := runTx(ctx, s.plans.DB(), func(tx *gorm.DB) error {
		if existing == nil {
			if err := s.plans.CreateTx(tx, plan); err != nil {
				return fmt.Errorf("create plan: %w", err)
			}
		} else if err := s.plans.SaveTx(tx, plan); err != nil {
			return fmt.Errorf("update plan: %w", err)
		}

		// 1–2. Dedupe against live assignments, drop zero-weight rows.
		var survivors []planner.Placement
		for _, pl := range accepted {
			dup, err := s.plans.HasLiveAssignment(ctx, pl.Item.ID)
			if err != nil {
				return fmt.Errorf("existence check: %w", err)
			}
			if dup {
				drops = append(drops, commitDrop{pl, model.ReasonAlreadyAssigned, "item already has a live assignment"})
				continue
			}
			if pl.WeightKg <= 0 {
				drops = append(drops, commitDrop{pl, model.ReasonZeroWeight, "zero or negative weight"})
				continue
			}
			survivors = append(survivors, pl)
		}

		// 3–4. Lazy plan units under the live trip counter, then claims.
		// The counter is incremented the moment a unit is persisted so two
		// units of the same physical vehicle cannot both take the last slot.
		live := make(map[string]int, len(tripSnapshot))
		for k, v := range tripSnapshot {
			live[k] = v
		}

		byUnit := make(map[int][]planner.Placement)
		var unitOrder []int
		for _, pl := range survivors {
			if _, seen := byUnit[pl.UnitIdx]; !seen {
				unitOrder = append(unitOrder, pl.UnitIdx)
			}
			byUnit[pl.UnitIdx] = append(byUnit[pl.UnitIdx], pl)
		}

		for _, idx := range unitOrder {
			u := pctx.Units[idx]
			st := pctx.States[idx]

			if p.pack.VehicleTripCap > 0 && live[u.VehicleKey] >= p.pack.VehicleTripCap {
				for _, pl := range byUnit[idx] {
					drops = append(drops, commitDrop{pl, model.ReasonUnitCreation,
						fmt.Sprintf("vehicle %s reached its trip cap during commit", u.VehicleKey)})
				}
				continue
			}

			unit := &model.PlanUnit{
				PlanID:      plan.ID,
				VehicleID:   u.VehicleID,
				VehicleKey:  u.VehicleKey,
				Kind:        u.Kind,
				CapacityKg:  decimal.NewFromFloat(u.CapacityKg),
				LengthMM:    u.LengthMM,
				RouteFamily: st.Family,
			}
			if err := s.plans.CreateUnitTx(tx, unit); err != nil {
				return fmt.Errorf("create plan unit: %w", err)
			}
			live[u.VehicleKey]++

			for _, pl := range byUnit[idx] {
				claimed, err := s.plans.ClaimAssignmentTx(tx, &model.Assignment{
					PlanUnitID: unit.ID,
					ItemID:     pl.Item.ID,
					WeightKg:   decimal.NewFromFloat(pl.WeightKg),
				})
				if err != nil {
					return fmt.Errorf("claim assignment: %w", err)
				}
				if !claimed {
					drops = append(drops, commitDrop{pl, model.ReasonAlreadyAssigned, "assignment claim lost to a concurrent commit"})
				}
			}
		}

		// 5. Persisted used capacity comes from the committed assignments,
		// never from in-memory running totals.
		if err := s.plans.RecalcUsedCapacityTx(tx, plan.ID); err != nil {
			return fmt.Errorf("recompute used capacity: %w", err)
		}

		remainders := remainderRows(plan.ID, pctx.Unplaced, rejected, drops)
		if err := s.plans.ReplaceRemaindersTx(tx, plan.ID, remainders); err != nil {
			return fmt.Errorf("replace remainder bucket: %w", err)
		}
		return nil
	})
	if txErr != nil {
		return nil, txErr
	}

	// Post-commit manifest rendering is best-effort, fire and forget.
	if s.dispatcher != nil {
		_ = s.dispatcher.EnqueueManifest(ctx, worker.ManifestJob{PlanID: plan.ID.String()})
	}

	rows, err := s.persistedRows(ctx, plan.ID, p.pack.Headroom)
	if err != nil {
		return nil, fmt.Errorf("load committed plan: %w", err)
	}

	return &dto.DispatchResponse{
		Plan:              s.planInfo(plan.ID, true, p),
		AssignedUnits:     planner.BuildNestedPayload(rows),
		Unassigned:        bucketEntries(pctx.Unplaced, rejected, drops),
		IdleUnitsByBranch: idleByBranch(pctx, accepted, vehicles),
	}, nil
}

// acquireCommitLock serializes commits per departure date through Redis.
// Preview runs never take it. Without Redis (unit tests) it is a no-op.
func (s *dispatchService) acquireCommitLock(ctx context.Context, departure time.Time) (func(), error) {
	if s.rdb == nil {
		return func() {}, nil
	}
	key := "dispatch:commit-lock:" + departure.Format("2006-01-02")
	token := uuid.NewString()
	ttl := time.Duration(s.cfg.CommitLockTTLSeconds) * time.Second

	ok, err := s.rdb.SetNX(ctx, key, token, ttl).Result()
	if err != nil {
		return nil, fmt.Errorf("commit lock: %w", err)
	}
	if !ok {
		return nil, ErrCommitInProgress
	}
	return func() {
		// Release only our own token; an expired lock may have been re-taken.
		val, err := s.rdb.Get(context.Background(), key).Result()
		if err == nil && val == token {
			_ = s.rdb.Del(context.Background(), key).Err()
		}
	}, nil
}

// persistedRows reads the committed plan back and projects it to flat rows.
// capacity_left is derived from the same headroom the run packed with.
func (s *dispatchService) persistedRows(ctx context.Context, planID uuid.UUID, headroom float64) ([]planner.AssignmentRow, error) {
	plan, err := s.plans.FindByID(ctx, planID)
	if err != nil {
		return nil, err
	}
	return rowsFromPlan(plan, headroom), nil
}

// ── Bucket & idle helpers ────────────────────────────────────────────────────

type commitDrop struct {
	placement planner.Placement
	reason    string
	detail    string
}

func bucketEntries(unplaced []planner.Unplaced, rejected []planner.RuleReject, drops []commitDrop) []dto.UnassignedEntry {
	entries := make([]dto.UnassignedEntry, 0, len(unplaced)+len(rejected)+len(drops))
	for _, u := range unplaced {
		entries = append(entries, dto.UnassignedEntry{
			ItemID:       u.Item.ID.String(),
			OrderNo:      u.Item.OrderNo,
			CustomerName: u.Item.CustomerName,
			WeightKg:     decimal.NewFromFloat(u.Item.WeightKg),
			Reason:       model.ReasonUnplaced,
			Detail:       u.Reason,
		})
	}
	for _, r := range rejected {
		entries = append(entries, dto.UnassignedEntry{
			ItemID:       r.Placement.Item.ID.String(),
			OrderNo:      r.Placement.Item.OrderNo,
			CustomerName: r.Placement.Item.CustomerName,
			WeightKg:     decimal.NewFromFloat(r.Placement.WeightKg),
			Reason:       model.ReasonRuleRejected,
			Detail:       r.Detail,
		})
	}
	for _, d := range drops {
		entries = append(entries, dto.UnassignedEntry{
			ItemID:       d.placement.Item.ID.String(),
			OrderNo:      d.placement.Item.OrderNo,
			CustomerName: d.placement.Item.CustomerName,
			WeightKg:     decimal.NewFromFloat(d.placement.WeightKg),
			Reason:       d.reason,
			Detail:       d.detail,
		})
	}
	return entries
}

func remainderRows(planID uuid.UUID, unplaced []planner.Unplaced, rejected []planner.RuleReject, drops []commitDrop) []model.PlanRemainder {
	rows := make([]model.PlanRemainder, 0, len(unplaced)+len(rejected)+len(drops))
	add := func(itemID uuid.UUID, weight float64, reason, detail string) {
		id := itemID
		d := detail
		rows = append(rows, model.PlanRemainder{
			PlanID:   planID,
			ItemID:   &id,
			Reason:   reason,
			Detail:   &d,
			WeightKg: decimal.NewFromFloat(weight),
		})
	}
	for _, u := range unplaced {
		add(u.Item.ID, u.Item.WeightKg, model.ReasonUnplaced, u.Reason)
	}
	for _, r := range rejected {
		add(r.Placement.Item.ID, r.Placement.WeightKg, model.ReasonRuleRejected, r.Detail)
	}
	for _, d := range drops {
		add(d.placement.Item.ID, d.placement.WeightKg, d.reason, d.detail)
	}
	return rows
}

// idleByBranch is the complement of the used unit set, grouped by branch id
// ("unbranched" for floating vehicles).
func idleByBranch(pctx *planner.PackingContext, accepted []planner.Placement, vehicles []model.Vehicle) map[string][]dto.IdleUnit {
	used := make(map[uuid.UUID]bool, len(accepted))
	for _, pl := range accepted {
		used[pctx.Units[pl.UnitIdx].VehicleID] = true
	}

	out := make(map[string][]dto.IdleUnit)
	for i := range vehicles {
		v := &vehicles[i]
		if used[v.ID] {
			continue
		}
		branch := "unbranched"
		if v.BranchID != nil {
			branch = v.BranchID.String()
		}
		driver := ""
		if v.DriverName != nil {
			driver = *v.DriverName
		}
		out[branch] = append(out[branch], dto.IdleUnit{
			VehicleID:  v.ID.String(),
			FleetNo:    v.FleetNo,
			Kind:       v.Kind,
			CapacityKg: v.CapacityKg,
			DriverName: driver,
		})
	}
	return out
}

func (s *dispatchService) planInfo(id uuid.UUID, committed bool, p runParams) dto.PlanInfo {
	info := dto.PlanInfo{
		ID:             id.String(),
		Committed:      committed,
		DepartureDate:  p.departure.Format("2006-01-02"),
		CutoffDate:     p.cutoff.Format("2006-01-02"),
		HeadroomPct:    p.pack.Headroom,
		LengthBufferMM: p.pack.LengthBufferMM,
	}
	if p.branchID != nil {
		b := p.branchID.String()
		info.BranchID = &b
	}
	if p.customerID != nil {
		c := p.customerID.String()
		info.CustomerID = &c
	}
	return info
}

// IdleUnits runs the pure pipeline (no persistence in either branch) and
// returns only the idle complement.
func (s *dispatchService) IdleUnits(ctx context.Context, filter dto.IdleUnitsFilter) (map[string][]dto.IdleUnit, error) {
	resp, err := s.Run(ctx, dto.DispatchRequest{
		DepartureDate: filter.DepartureDate,
		CutoffDate:    filter.CutoffDate,
		BranchID:      filter.BranchID,
		CustomerID:    filter.CustomerID,
		Commit:        false,
	})
	if err != nil {
		return nil, err
	}
	return resp.IdleUnitsByBranch, nil
}
