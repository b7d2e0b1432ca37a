package planner

import (
	"testing"

	"fleetdispatch/internal/model"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func strptr(s string) *string { return &s }
func intptr(v int) *int       { return &v }

func TestVehicleKey_Rigid(t *testing.T) {
	v := &model.Vehicle{Kind: model.VehicleRigid, FleetNo: "R-101", RigidPlate: strptr("JX 42 HG GP")}
	assert.Equal(t, "rigid:JX 42 HG GP", VehicleKey(v))
}

func TestVehicleKey_RigidFleetNoFallback(t *testing.T) {
	v := &model.Vehicle{Kind: model.VehicleRigid, FleetNo: "R-101"}
	assert.Equal(t, "rigid:R-101", VehicleKey(v))
}

func TestVehicleKey_HorseTrailer(t *testing.T) {
	v := &model.Vehicle{
		Kind:         model.VehicleHorseTrailer,
		FleetNo:      "H-201",
		HorsePlate:   strptr("HN 11 PD GP"),
		TrailerPlate: strptr("TR 73 WA GP"),
	}
	assert.Equal(t, "horse:HN 11 PD GP|trailer:TR 73 WA GP", VehicleKey(v))
}

func TestVehicleKey_HorseTrailerPartialPlates(t *testing.T) {
	v := &model.Vehicle{Kind: model.VehicleHorseTrailer, FleetNo: "H-202", HorsePlate: strptr("HV 28 LM GP")}
	assert.Equal(t, "horse:HV 28 LM GP|trailer:H-202", VehicleKey(v))
}

func TestNormalizeUnits_HeadroomAppliedOnce(t *testing.T) {
	vehicles := []model.Vehicle{{
		ID:         uuid.New(),
		Kind:       model.VehicleRigid,
		FleetNo:    "R-101",
		CapacityKg: decimal.NewFromInt(8000),
		LengthMM:   intptr(7200),
		Priority:   3,
	}}

	units := NormalizeUnits(vehicles, Config{Headroom: 0.10})

	require.Len(t, units, 1)
	assert.Equal(t, 8000.0, units[0].CapacityKg, "raw capacity survives for commit bookkeeping")
	assert.Equal(t, 8800.0, units[0].CapacityLeftKg)
	assert.Equal(t, 7200, units[0].LengthMM)
	assert.Equal(t, 3, units[0].Priority)
}

func TestNormalizeUnits_Defaults(t *testing.T) {
	vehicles := []model.Vehicle{{
		ID:         uuid.New(),
		FleetNo:    "R-9",
		CapacityKg: decimal.NewFromInt(1000),
	}}

	units := NormalizeUnits(vehicles, Config{})

	require.Len(t, units, 1)
	assert.Equal(t, model.VehicleRigid, units[0].Kind)
	assert.Equal(t, 0, units[0].LengthMM)
	assert.Equal(t, "", units[0].DriverName)
}

func TestBuildPackItems_RouteBackfillAndFamily(t *testing.T) {
	routeID := uuid.New()
	branchID := uuid.New()
	routes := map[string]model.Route{
		routeID.String(): {ID: routeID, Name: "JHB SOUTH 2", BranchID: &branchID},
	}
	items := []model.Item{{
		ID:           uuid.New(),
		OrderNo:      "ORD-1",
		CustomerName: "ACME",
		WeightKg:     decimal.NewFromInt(500),
		RouteID:      &routeID, // RouteName blank, backfilled from master
	}}

	out := BuildPackItems(items, routes, Config{LengthBufferMM: 600, IgnoreLengthIfMissing: true})

	require.Len(t, out, 1)
	assert.Equal(t, "JHB SOUTH 2", out[0].RouteName)
	assert.Equal(t, "JHB SOUTH", out[0].Family)
	require.NotNil(t, out[0].BranchID)
	assert.Equal(t, branchID, *out[0].BranchID)
}

func TestBuildPackItems_SuburbFallbackFamily(t *testing.T) {
	items := []model.Item{{
		ID:           uuid.New(),
		OrderNo:      "ORD-1",
		CustomerName: "ACME",
		Suburb:       "Boksburg",
		WeightKg:     decimal.NewFromInt(100),
	}}

	out := BuildPackItems(items, nil, Config{IgnoreLengthIfMissing: true})
	require.Len(t, out, 1)
	assert.Equal(t, "EAST RAND", out[0].Family)
}

func TestBuildPackItems_LengthBuffer(t *testing.T) {
	items := []model.Item{{
		ID:           uuid.New(),
		OrderNo:      "ORD-1",
		CustomerName: "ACME",
		WeightKg:     decimal.NewFromInt(100),
		Description:  strptr("13M LENGTHS"),
	}}

	out := BuildPackItems(items, nil, Config{LengthBufferMM: 600, IgnoreLengthIfMissing: true})
	require.Len(t, out, 1)
	assert.True(t, out[0].LengthParsed)
	assert.Equal(t, 13600, out[0].NeededLenMM)
}

func TestBuildPackItems_MissingLength(t *testing.T) {
	items := []model.Item{{
		ID:           uuid.New(),
		OrderNo:      "ORD-1",
		CustomerName: "ACME",
		WeightKg:     decimal.NewFromInt(100),
	}}

	ignored := BuildPackItems(items, nil, Config{LengthBufferMM: 600, IgnoreLengthIfMissing: true})
	require.Len(t, ignored, 1)
	assert.False(t, ignored[0].LengthParsed)
	assert.Equal(t, 0, ignored[0].NeededLenMM, "no requirement when missing lengths are ignored")

	strict := BuildPackItems(items, nil, Config{LengthBufferMM: 600, IgnoreLengthIfMissing: false})
	assert.Equal(t, 600, strict[0].NeededLenMM, "buffer still applies in strict mode")
}
