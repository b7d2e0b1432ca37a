// Package planner implements the in-memory dispatch packing core: route
// family classification, unit normalization, the constrained best-fit packer,
// the hard rule enforcer, and the nested response payload builder. Everything
// in this package is pure — no I/O, no shared state between runs. Callers
// thread a PackingContext through explicitly.
package planner

import (
	"time"

	"github.com/google/uuid"
)

// Config enumerates every packing knob. "Disabled" caps are expressed as a
// non-positive value, never as a separate code path.
type Config struct {
	Headroom              float64 // fractional capacity overcommit during packing
	LengthBufferMM        int     // added to every parsed item length
	IgnoreLengthIfMissing bool    // unparseable length satisfies any unit
	CustomerUnitCap       int     // max distinct units per customer per run; <=0 unbounded
	VehicleTripCap        int     // max plan units per vehicle per departure date; <=0 unbounded
	AffinitySlop          float64 // affinity scores within this delta rank as equal
}

// PackItem is the working view of a backlog item: raw row plus the derived
// requirements the packer filters and scores on.
type PackItem struct {
	ID           uuid.UUID
	OrderNo      string
	LoadNo       string
	CustomerID   *uuid.UUID
	CustomerName string
	Suburb       string
	WeightKg     float64
	Description  string
	RouteName    string
	BranchID     *uuid.UUID
	OrderDate    time.Time

	// Derived by BuildPackItems.
	Family       string
	NeededLenMM  int  // includes the length buffer; 0 = no length requirement
	LengthParsed bool // false when the description yielded nothing
}

// PackUnit is a normalized dispatchable unit. CapacityLeftKg starts at the
// headroom-adjusted capacity and is the only capacity figure downstream code
// consults; the raw CapacityKg survives for commit-time bookkeeping.
type PackUnit struct {
	VehicleID  uuid.UUID
	VehicleKey string
	Kind       string
	FleetNo    string
	CapacityKg float64
	// CapacityLeftKg is the initial effective capacity. Per-run consumption
	// is tracked on UnitRunState, not here.
	CapacityLeftKg float64
	LengthMM       int // 0 = no length data
	BranchID       *uuid.UUID
	Priority       int
	DriverName     string
}

// UnitRunState is the per-unit mutable state for one packing run. Only the
// packer mutates it; the enforcer reads it at most.
type UnitRunState struct {
	CapacityLeftKg float64
	AssignedCount  int
	Family         string         // first non-empty family placed; locks the unit
	FamilyCounts   map[string]int // family → items carried, drives affinity scoring
}

// Placement is an ephemeral item→unit pairing produced by the packer.
type Placement struct {
	UnitIdx  int
	Item     PackItem
	WeightKg float64
}

// Unplaced records an item no unit could take, with a descriptive reason.
type Unplaced struct {
	Item   PackItem
	Reason string
}

// RuleReject is a placement the enforcer vetoed. Detail explains which rule
// fired; the persisted bucket reason is always rule_rejected.
type RuleReject struct {
	Placement Placement
	Detail    string
}

// PackingContext owns the state of one packing run. It is created by Pack and
// passed by value reference through enforcement and commit — never shared
// between concurrent runs.
type PackingContext struct {
	Units      []PackUnit
	States     []UnitRunState
	Placements []Placement
	Unplaced   []Unplaced
}

// UsedUnitIdxs returns the indices of units holding at least one placement,
// in first-use order.
func (c *PackingContext) UsedUnitIdxs() []int {
	seen := make(map[int]bool, len(c.Units))
	var idxs []int
	for _, p := range c.Placements {
		if !seen[p.UnitIdx] {
			seen[p.UnitIdx] = true
			idxs = append(idxs, p.UnitIdx)
		}
	}
	return idxs
}
