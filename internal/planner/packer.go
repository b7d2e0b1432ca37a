package planner

import (
	"fmt"
	"sort"
)

// Scoring weights for the fit score. Length dominates: a tight deck fit
// matters more than a tight mass fit when long product is on the backlog.
const (
	fitWeightCapacity = 0.15
	fitWeightLength   = 0.85
)

// Pack assigns items to units with a constrained best-fit heuristic. Items
// are taken in arrival order (the backlog source pre-sorts by order date
// ascending, then weight descending). The candidate pool for an item is every
// unit that matches its branch, satisfies its length requirement, has enough
// remaining capacity, and — once a unit has accepted its first item — shares
// its route family.
//
// Greedy and deterministic, not globally optimal: family continuity is the
// dominant soft signal, so a unit that starts carrying one macro-route keeps
// carrying only that route.
func Pack(items []PackItem, units []PackUnit, cfg Config) *PackingContext {
	ctx := &PackingContext{
		Units:  units,
		States: make([]UnitRunState, len(units)),
	}
	for i := range units {
		ctx.States[i] = UnitRunState{
			CapacityLeftKg: units[i].CapacityLeftKg,
			FamilyCounts:   make(map[string]int),
		}
	}

	for _, item := range items {
		// Zero-weight rows are never placeable and never failures either;
		// they are simply excluded from the run.
		if item.WeightKg <= 0 {
			continue
		}

		pool, reason := candidatePool(ctx, item)
		if len(pool) == 0 {
			ctx.Unplaced = append(ctx.Unplaced, Unplaced{Item: item, Reason: reason})
			continue
		}

		best := pickBest(ctx, item, pool, cfg)
		place(ctx, item, best)
	}

	return ctx
}

// candidatePool filters units for one item and, when the pool comes up empty,
// composes a reason naming what disqualified the fleet.
func candidatePool(ctx *PackingContext, item PackItem) ([]int, string) {
	var pool []int
	var branchMiss, lengthMiss, capMiss, familyMiss int

	for i := range ctx.Units {
		u := &ctx.Units[i]
		st := &ctx.States[i]

		if item.BranchID != nil && u.BranchID != nil && *item.BranchID != *u.BranchID {
			branchMiss++
			continue
		}
		if item.NeededLenMM > 0 && u.LengthMM > 0 && item.NeededLenMM > u.LengthMM {
			lengthMiss++
			continue
		}
		if st.CapacityLeftKg < item.WeightKg {
			capMiss++
			continue
		}
		// Family lock: the first item's family claims the unit for the rest
		// of the run. Empty families are permissive on both sides.
		if st.AssignedCount > 0 && st.Family != "" && item.Family != "" && st.Family != item.Family {
			familyMiss++
			continue
		}
		pool = append(pool, i)
	}

	if len(pool) > 0 {
		return pool, ""
	}
	return nil, fmt.Sprintf(
		"no unit available (weight %.0fkg, length %dmm, family %q): %d branch mismatch, %d too short, %d over capacity, %d family locked",
		item.WeightKg, item.NeededLenMM, item.Family,
		branchMiss, lengthMiss, capMiss, familyMiss,
	)
}

// pickBest ranks the candidate pool and returns the winning unit index.
// Ordering: family affinity desc, fit score asc, raw leftover capacity asc,
// priority desc, then pool order for determinism.
func pickBest(ctx *PackingContext, item PackItem, pool []int, cfg Config) int {
	type scored struct {
		idx      int
		affinity float64
		fit      float64
		leftover float64
		priority int
	}

	scores := make([]scored, 0, len(pool))
	for _, i := range pool {
		u := &ctx.Units[i]
		st := &ctx.States[i]

		affinity := 0.0
		if st.AssignedCount > 0 && item.Family != "" {
			affinity = float64(st.FamilyCounts[item.Family]) / float64(st.AssignedCount)
		}

		capRatio := 0.0
		if u.CapacityLeftKg > 0 {
			capRatio = (st.CapacityLeftKg - item.WeightKg) / u.CapacityLeftKg
		}
		lenRatio := 1.0
		if u.LengthMM > 0 && item.NeededLenMM > 0 {
			lenRatio = float64(u.LengthMM-item.NeededLenMM) / float64(u.LengthMM)
		}
		fit := fitWeightCapacity*capRatio + fitWeightLength*lenRatio

		scores = append(scores, scored{
			idx:      i,
			affinity: affinity,
			fit:      fit,
			leftover: st.CapacityLeftKg - item.WeightKg,
			priority: u.Priority,
		})
	}

	sort.SliceStable(scores, func(a, b int) bool {
		sa, sb := scores[a], scores[b]
		if diff := sa.affinity - sb.affinity; diff > cfg.AffinitySlop || diff < -cfg.AffinitySlop {
			return sa.affinity > sb.affinity
		}
		if sa.fit != sb.fit {
			return sa.fit < sb.fit
		}
		if sa.leftover != sb.leftover {
			return sa.leftover < sb.leftover
		}
		return sa.priority > sb.priority
	})

	return scores[0].idx
}

// place records a placement and updates the chosen unit's run state. This is
// the only function in the run that spends capacity.
func place(ctx *PackingContext, item PackItem, unitIdx int) {
	st := &ctx.States[unitIdx]
	st.CapacityLeftKg -= item.WeightKg
	st.AssignedCount++
	st.FamilyCounts[item.Family]++
	if st.Family == "" && item.Family != "" {
		st.Family = item.Family
	}

	ctx.Placements = append(ctx.Placements, Placement{
		UnitIdx:  unitIdx,
		Item:     item,
		WeightKg: item.WeightKg,
	})
}
