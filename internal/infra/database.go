package infra

import (
	"fmt"

	"fleetdispatch/internal/model"

	"gorm.io/driver/postgres"
	"gorm.io/gorm"
	"gorm.io/gorm/logger"
)

// NewDatabase establishes a GORM connection backed by pgx, runs AutoMigrate to
// create / update all tables, then applies the idempotent SQL patches that GORM
// cannot express (extensions, covering indexes for the hot dispatch queries).
func NewDatabase(dsn string) (*gorm.DB, error) {
	db, err := gorm.Open(postgres.Open(dsn), &gorm.Config{
		Logger: logger.Default.LogMode(logger.Silent),
	})
	if err != nil {
		return nil, err
	}

	sqlDB, err := db.DB()
	if err != nil {
		return nil, err
	}
	sqlDB.SetMaxOpenConns(25)
	sqlDB.SetMaxIdleConns(5)

	// gen_random_uuid() defaults on the uuid primary keys need pgcrypto.
	// Must exist before AutoMigrate creates any table.
	if err := db.Exec(`CREATE EXTENSION IF NOT EXISTS pgcrypto`).Error; err != nil {
		return nil, fmt.Errorf("pgcrypto extension: %w", err)
	}

	if err := RunMigrations(db); err != nil {
		return nil, err
	}

	return db, nil
}

// RunMigrations creates / updates the schema. Also used by integration tests
// against a throwaway container.
func RunMigrations(db *gorm.DB) error {
	if err := db.AutoMigrate(
		&model.Branch{},
		&model.Route{},
		&model.Item{},
		&model.Vehicle{},
		&model.Plan{},
		&model.PlanUnit{},
		&model.Assignment{},
		&model.PlanRemainder{},
	); err != nil {
		return fmt.Errorf("AutoMigrate: %w", err)
	}
	return applySchemaPatches(db)
}

// applySchemaPatches runs idempotent DDL that AutoMigrate cannot fully handle.
// Each statement uses IF NOT EXISTS semantics so re-running on an already
// patched DB is safe.
func applySchemaPatches(db *gorm.DB) error {
	patches := []string{
		// Candidate item scan: order_date cutoff filter plus the NOT EXISTS
		// anti-join against assignments.
		`CREATE INDEX IF NOT EXISTS idx_items_order_date ON items (order_date)`,
		// Trip count query groups committed units by vehicle key per departure date.
		`CREATE INDEX IF NOT EXISTS idx_plan_units_vehicle_key ON plan_units (vehicle_key)`,
		`CREATE INDEX IF NOT EXISTS idx_plans_departure_date ON plans (departure_date)`,
		// Plan scope lookup for re-runs. Nullable branch / customer columns
		// participate, so COALESCE into sentinel text.
		`CREATE INDEX IF NOT EXISTS idx_plans_scope
		    ON plans (departure_date, cutoff_date, COALESCE(branch_id::text, ''), COALESCE(customer_id::text, ''))`,
	}

	for _, sql := range patches {
		if err := db.Exec(sql).Error; err != nil {
			return fmt.Errorf("patch %q: %w", sql[:min(len(sql), 60)], err)
		}
	}
	return nil
}
