//go:build integration

package e2e

// End-to-end integration tests using real Postgres + Redis via testcontainers.
// Run with: go test -tags integration ./tests/e2e/... -v
//
// These tests:
//   T-E2E-1: Preview then commit cycle (preview persists nothing, commit does)
//   T-E2E-2: Re-committing the same scope reuses the plan
//   T-E2E-3: Manual move between units, then rollback frees the items
//   T-E2E-4: Idle units endpoint returns the unused complement

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"fleetdispatch/internal/config"
	"fleetdispatch/internal/infra"
	"fleetdispatch/internal/model"
	"fleetdispatch/internal/router"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/testcontainers/testcontainers-go"
	tcPostgres "github.com/testcontainers/testcontainers-go/modules/postgres"
	tcRedis "github.com/testcontainers/testcontainers-go/modules/redis"
	"gorm.io/gorm"
)

// ── Helpers ──────────────────────────────────────────────────────────────────

func jsonBody(t *testing.T, v any) *bytes.Buffer {
	t.Helper()
	b, err := json.Marshal(v)
	require.NoError(t, err)
	return bytes.NewBuffer(b)
}

func do(t *testing.T, srv *httptest.Server, method, path string, body *bytes.Buffer) *http.Response {
	t.Helper()
	var req *http.Request
	var err error
	if body != nil {
		req, err = http.NewRequest(method, srv.URL+path, body)
	} else {
		req, err = http.NewRequest(method, srv.URL+path, nil)
	}
	require.NoError(t, err)
	req.Header.Set("Content-Type", "application/json")
	resp, err := srv.Client().Do(req)
	require.NoError(t, err)
	return resp
}

func decodeJSON(t *testing.T, resp *http.Response, dest any) {
	t.Helper()
	defer resp.Body.Close()
	require.NoError(t, json.NewDecoder(resp.Body).Decode(dest))
}

// dispatchResp mirrors the wire shape of a dispatch run, decoded only as far
// as the tests need.
type dispatchResp struct {
	Plan struct {
		ID        string `json:"id"`
		Committed bool   `json:"committed"`
	} `json:"plan"`
	AssignedUnits []struct {
		UnitID      string `json:"unit_id"`
		FleetNo     string `json:"fleet_no"`
		RouteFamily string `json:"route_family"`
		Customers   []struct {
			CustomerName string `json:"customer_name"`
			Orders       []struct {
				OrderNo string `json:"order_no"`
				Items   []struct {
					AssignmentID string `json:"assignment_id"`
					ItemID       string `json:"item_id"`
				} `json:"items"`
			} `json:"orders"`
		} `json:"customers"`
	} `json:"assigned_units"`
	Unassigned []struct {
		Reason string `json:"reason"`
	} `json:"unassigned"`
}

// ── Test Suite Setup ─────────────────────────────────────────────────────────

type testEnv struct {
	server *httptest.Server
	db     *gorm.DB
}

func setupTestEnv(t *testing.T) *testEnv {
	t.Helper()
	ctx := context.Background()

	// Start Postgres container
	pgC, err := tcPostgres.RunContainer(ctx,
		testcontainers.WithImage("postgres:15-alpine"),
		tcPostgres.WithDatabase("fleetdispatch_test"),
		tcPostgres.WithUsername("fleetdispatch"),
		tcPostgres.WithPassword("fleetdispatch"),
		tcPostgres.BasicWaitStrategies(),
	)
	require.NoError(t, err)
	t.Cleanup(func() { _ = pgC.Terminate(ctx) })

	pgURL, err := pgC.ConnectionString(ctx, "sslmode=disable")
	require.NoError(t, err)

	// Start Redis container
	rdC, err := tcRedis.RunContainer(ctx,
		testcontainers.WithImage("redis:7-alpine"),
	)
	require.NoError(t, err)
	t.Cleanup(func() { _ = rdC.Terminate(ctx) })

	rdURL, err := rdC.ConnectionString(ctx)
	require.NoError(t, err)

	cfg := &config.Config{
		Port:                 8000,
		Env:                  "test",
		DatabaseURL:          pgURL,
		RedisURL:             rdURL,
		CapacityHeadroom:     0,
		LengthBufferMM:       600,
		IgnoreLengthMissing:  true,
		CustomerUnitCap:      2,
		VehicleTripCap:       2,
		CommitLockTTLSeconds: 120,
		WorkerPoolSize:       1,
		PDFStoragePath:       t.TempDir(),
	}

	db, err := infra.NewDatabase(cfg.DatabaseURL)
	require.NoError(t, err)

	rdb, err := infra.NewRedis(cfg.RedisURL)
	require.NoError(t, err)

	r := router.New(cfg, db, rdb)
	srv := httptest.NewServer(r)
	t.Cleanup(srv.Close)

	return &testEnv{server: srv, db: db}
}

func (e *testEnv) seedVehicle(t *testing.T, fleetNo string, capKg float64) *model.Vehicle {
	t.Helper()
	plate := "PL " + fleetNo + " GP"
	v := &model.Vehicle{
		Kind:       model.VehicleRigid,
		FleetNo:    fleetNo,
		CapacityKg: decimal.NewFromFloat(capKg),
		RigidPlate: &plate,
		Active:     true,
	}
	require.NoError(t, e.db.Create(v).Error)
	return v
}

func (e *testEnv) seedItem(t *testing.T, orderNo, customer, route string, weight float64) *model.Item {
	t.Helper()
	it := &model.Item{
		OrderNo:      orderNo,
		CustomerName: customer,
		RouteName:    route,
		WeightKg:     decimal.NewFromFloat(weight),
		OrderDate:    time.Date(2026, 9, 8, 0, 0, 0, 0, time.UTC),
	}
	require.NoError(t, e.db.Create(it).Error)
	return it
}

func runBody(commit bool) map[string]any {
	return map[string]any{
		"departure_date": "2026-09-15",
		"cutoff_date":    "2026-09-10",
		"commit":         commit,
	}
}

// ── Tests ────────────────────────────────────────────────────────────────────

func TestE2E_PreviewThenCommit(t *testing.T) {
	env := setupTestEnv(t)
	env.seedVehicle(t, "R-1", 1000)
	env.seedItem(t, "ORD-1", "Acme Steel", "JHB SOUTH 1", 500)

	// Preview: 200, nothing persisted.
	resp := do(t, env.server, "POST", "/v1/dispatch", jsonBody(t, runBody(false)))
	require.Equal(t, http.StatusOK, resp.StatusCode)
	var preview dispatchResp
	decodeJSON(t, resp, &preview)
	assert.False(t, preview.Plan.Committed)
	require.Len(t, preview.AssignedUnits, 1)
	assert.Equal(t, "R-1", preview.AssignedUnits[0].FleetNo)
	assert.Equal(t, "JHB SOUTH", preview.AssignedUnits[0].RouteFamily)

	// The synthetic preview plan id does not exist.
	resp = do(t, env.server, "GET", "/v1/plans/"+preview.Plan.ID, nil)
	assert.Equal(t, http.StatusNotFound, resp.StatusCode)
	resp.Body.Close()

	// Commit: 201, plan retrievable.
	resp = do(t, env.server, "POST", "/v1/dispatch", jsonBody(t, runBody(true)))
	require.Equal(t, http.StatusCreated, resp.StatusCode)
	var commit dispatchResp
	decodeJSON(t, resp, &commit)
	assert.True(t, commit.Plan.Committed)
	require.Len(t, commit.AssignedUnits, 1)

	resp = do(t, env.server, "GET", "/v1/plans/"+commit.Plan.ID, nil)
	require.Equal(t, http.StatusOK, resp.StatusCode)
	var fetched dispatchResp
	decodeJSON(t, resp, &fetched)
	assert.Equal(t, commit.Plan.ID, fetched.Plan.ID)
	require.Len(t, fetched.AssignedUnits, 1)
	assert.Equal(t, "ORD-1", fetched.AssignedUnits[0].Customers[0].Orders[0].OrderNo)

	// No manifest rendered yet (no worker pool in this harness).
	resp = do(t, env.server, "GET", "/v1/plans/"+commit.Plan.ID+"/manifest", nil)
	assert.Equal(t, http.StatusNotFound, resp.StatusCode)
	resp.Body.Close()
}

func TestE2E_RecommitReusesPlan(t *testing.T) {
	env := setupTestEnv(t)
	env.seedVehicle(t, "R-1", 1000)
	env.seedItem(t, "ORD-1", "Acme Steel", "JHB SOUTH 1", 500)

	resp := do(t, env.server, "POST", "/v1/dispatch", jsonBody(t, runBody(true)))
	require.Equal(t, http.StatusCreated, resp.StatusCode)
	var first dispatchResp
	decodeJSON(t, resp, &first)

	resp = do(t, env.server, "POST", "/v1/dispatch", jsonBody(t, runBody(true)))
	require.Equal(t, http.StatusCreated, resp.StatusCode)
	var second dispatchResp
	decodeJSON(t, resp, &second)

	assert.Equal(t, first.Plan.ID, second.Plan.ID)

	// The already-placed item was deduped, not double-assigned.
	var count int64
	require.NoError(t, env.db.Model(&model.Assignment{}).Count(&count).Error)
	assert.EqualValues(t, 1, count)
}

func TestE2E_MoveItemAndRollback(t *testing.T) {
	env := setupTestEnv(t)
	env.seedVehicle(t, "R-1", 1000)
	env.seedVehicle(t, "R-2", 1000)
	env.seedItem(t, "ORD-1", "Acme Steel", "JHB SOUTH 1", 500)
	env.seedItem(t, "ORD-2", "Beta Mills", "VAAL 1", 300)

	resp := do(t, env.server, "POST", "/v1/dispatch", jsonBody(t, runBody(true)))
	require.Equal(t, http.StatusCreated, resp.StatusCode)
	var commit dispatchResp
	decodeJSON(t, resp, &commit)
	require.Len(t, commit.AssignedUnits, 2)

	// Move the first unit's item onto the second unit.
	assignmentID := commit.AssignedUnits[0].Customers[0].Orders[0].Items[0].AssignmentID
	targetUnit := commit.AssignedUnits[1].UnitID
	resp = do(t, env.server, "POST", fmt.Sprintf("/v1/plans/%s/move-item", commit.Plan.ID),
		jsonBody(t, map[string]string{"assignment_id": assignmentID, "to_unit_id": targetUnit}))
	require.Equal(t, http.StatusNoContent, resp.StatusCode)
	resp.Body.Close()

	resp = do(t, env.server, "GET", "/v1/plans/"+commit.Plan.ID, nil)
	require.Equal(t, http.StatusOK, resp.StatusCode)
	var after dispatchResp
	decodeJSON(t, resp, &after)
	var total int
	for _, u := range after.AssignedUnits {
		for _, c := range u.Customers {
			for _, o := range c.Orders {
				total += len(o.Items)
			}
		}
	}
	assert.Equal(t, 2, total)

	// Rollback deletes the plan and frees the items.
	resp = do(t, env.server, "DELETE", "/v1/plans/"+commit.Plan.ID, nil)
	require.Equal(t, http.StatusNoContent, resp.StatusCode)
	resp.Body.Close()

	resp = do(t, env.server, "GET", "/v1/plans/"+commit.Plan.ID, nil)
	assert.Equal(t, http.StatusNotFound, resp.StatusCode)
	resp.Body.Close()

	var count int64
	require.NoError(t, env.db.Model(&model.Assignment{}).Count(&count).Error)
	assert.Zero(t, count)
}

func TestE2E_IdleUnits(t *testing.T) {
	env := setupTestEnv(t)
	env.seedVehicle(t, "R-1", 1000)
	idle := env.seedVehicle(t, "R-2", 500)
	env.seedItem(t, "ORD-1", "Acme Steel", "JHB SOUTH 1", 900)

	resp := do(t, env.server, "GET",
		"/v1/dispatch/idle-units?departure_date=2026-09-15&cutoff_date=2026-09-10", nil)
	require.Equal(t, http.StatusOK, resp.StatusCode)

	var body struct {
		IdleUnitsByBranch map[string][]struct {
			VehicleID string `json:"vehicle_id"`
			FleetNo   string `json:"fleet_no"`
		} `json:"idle_units_by_branch"`
	}
	decodeJSON(t, resp, &body)

	require.Len(t, body.IdleUnitsByBranch["unbranched"], 1)
	assert.Equal(t, idle.ID.String(), body.IdleUnitsByBranch["unbranched"][0].VehicleID)
}
