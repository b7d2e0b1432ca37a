package planner

import (
	"fmt"
	"strings"
)

// EnforceRules re-validates the full placement list against the hard business
// rules the packer only soft-applies. It is the authoritative check: it
// re-derives the per-unit family lock from scratch (first family seen wins)
// so a packer bug can never smuggle a mixed-family unit into a commit.
//
// tripSnapshot maps vehicle key → trips already committed for the departure
// date across all plans. The enforcer never mutates run state or capacity;
// violations become RuleRejects and everything else passes through unchanged.
func EnforceRules(ctx *PackingContext, cfg Config, tripSnapshot map[string]int) (accepted []Placement, rejected []RuleReject) {
	unitFamily := make(map[int]string, len(ctx.Units))
	customerUnits := make(map[string]map[int]bool)

	for _, p := range ctx.Placements {
		// Family lock, re-derived order-independently of packer internals.
		if p.Item.Family != "" {
			locked, ok := unitFamily[p.UnitIdx]
			if !ok {
				unitFamily[p.UnitIdx] = p.Item.Family
			} else if locked != p.Item.Family {
				rejected = append(rejected, RuleReject{
					Placement: p,
					Detail:    fmt.Sprintf("route family %q conflicts with unit family %q", p.Item.Family, locked),
				})
				continue
			}
		}

		// Per-customer unit cap.
		custKey := customerKey(p.Item)
		units := customerUnits[custKey]
		if units == nil {
			units = make(map[int]bool)
			customerUnits[custKey] = units
		}
		if cfg.CustomerUnitCap > 0 && !units[p.UnitIdx] && len(units) >= cfg.CustomerUnitCap {
			rejected = append(rejected, RuleReject{
				Placement: p,
				Detail:    fmt.Sprintf("customer %s already occupies %d units (cap %d)", p.Item.CustomerName, len(units), cfg.CustomerUnitCap),
			})
			continue
		}

		// Per-vehicle trip cap against the committed ground truth. Adding
		// this run's unit counts as one more trip for the vehicle.
		key := ctx.Units[p.UnitIdx].VehicleKey
		if cfg.VehicleTripCap > 0 && tripSnapshot[key] >= cfg.VehicleTripCap {
			rejected = append(rejected, RuleReject{
				Placement: p,
				Detail:    fmt.Sprintf("vehicle %s already has %d trips for the date (cap %d)", key, tripSnapshot[key], cfg.VehicleTripCap),
			})
			continue
		}

		units[p.UnitIdx] = true
		accepted = append(accepted, p)
	}

	return accepted, rejected
}

// customerKey identifies a customer for the unit cap: the customer id when
// present, otherwise a key derived from the normalized name.
func customerKey(item PackItem) string {
	if item.CustomerID != nil {
		return item.CustomerID.String()
	}
	return "name:" + strings.ToUpper(strings.Join(strings.Fields(item.CustomerName), " "))
}
