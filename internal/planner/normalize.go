package planner

import (
	"fmt"
	"math"

	"fleetdispatch/internal/model"
)

// VehicleKey derives the trip-ledger key for a vehicle. Rigid units key on
// their single plate, combos on the plate pair, so the same physical vehicle
// maps to the same key across plans and runs. Fleet number is the fallback
// when a plate is not captured.
func VehicleKey(v *model.Vehicle) string {
	if v.Kind == model.VehicleHorseTrailer {
		horse := v.FleetNo
		if v.HorsePlate != nil && *v.HorsePlate != "" {
			horse = *v.HorsePlate
		}
		trailer := v.FleetNo
		if v.TrailerPlate != nil && *v.TrailerPlate != "" {
			trailer = *v.TrailerPlate
		}
		return fmt.Sprintf("horse:%s|trailer:%s", horse, trailer)
	}
	plate := v.FleetNo
	if v.RigidPlate != nil && *v.RigidPlate != "" {
		plate = *v.RigidPlate
	}
	return "rigid:" + plate
}

// NormalizeUnits converts raw vehicle rows into the packing unit model. This
// is the only place headroom is applied; every downstream capacity check uses
// CapacityLeftKg, never the raw column.
func NormalizeUnits(vehicles []model.Vehicle, cfg Config) []PackUnit {
	units := make([]PackUnit, 0, len(vehicles))
	for i := range vehicles {
		v := &vehicles[i]
		capKg, _ := v.CapacityKg.Float64()
		lengthMM := 0
		if v.LengthMM != nil && *v.LengthMM > 0 {
			lengthMM = *v.LengthMM
		}
		driver := ""
		if v.DriverName != nil {
			driver = *v.DriverName
		}
		kind := v.Kind
		if kind == "" {
			kind = model.VehicleRigid
		}
		units = append(units, PackUnit{
			VehicleID:      v.ID,
			VehicleKey:     VehicleKey(v),
			Kind:           kind,
			FleetNo:        v.FleetNo,
			CapacityKg:     capKg,
			CapacityLeftKg: math.Round(capKg * (1 + cfg.Headroom)),
			LengthMM:       lengthMM,
			BranchID:       v.BranchID,
			Priority:       v.Priority,
			DriverName:     driver,
		})
	}
	return units
}

// BuildPackItems derives per-item packing requirements: route family, needed
// weight, and needed length (length buffer already folded in). Items whose
// route name is blank are backfilled from the route master before
// classification.
func BuildPackItems(items []model.Item, routes map[string]model.Route, cfg Config) []PackItem {
	out := make([]PackItem, 0, len(items))
	for i := range items {
		it := &items[i]

		routeName := it.RouteName
		branchID := it.BranchID
		if it.RouteID != nil {
			if r, ok := routes[it.RouteID.String()]; ok {
				if routeName == "" {
					routeName = r.Name
				}
				if branchID == nil {
					branchID = r.BranchID
				}
			}
		}

		weight, _ := it.WeightKg.Float64()
		desc := ""
		if it.Description != nil {
			desc = *it.Description
		}
		loadNo := ""
		if it.LoadNo != nil {
			loadNo = *it.LoadNo
		}

		parsed := ParseLengthMM(desc)
		needLen := 0
		if parsed > 0 {
			needLen = parsed + cfg.LengthBufferMM
		} else if !cfg.IgnoreLengthIfMissing {
			// No parse and no permission to ignore: require at least the buffer.
			needLen = cfg.LengthBufferMM
		}

		family := RouteFamily(routeName)
		if family == "" {
			family = RouteFamily(it.Suburb)
		}

		out = append(out, PackItem{
			ID:           it.ID,
			OrderNo:      it.OrderNo,
			LoadNo:       loadNo,
			CustomerID:   it.CustomerID,
			CustomerName: it.CustomerName,
			Suburb:       it.Suburb,
			WeightKg:     weight,
			Description:  desc,
			RouteName:    routeName,
			BranchID:     branchID,
			OrderDate:    it.OrderDate,
			Family:       family,
			NeededLenMM:  needLen,
			LengthParsed: parsed > 0,
		})
	}
	return out
}
