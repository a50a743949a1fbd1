package db

import (
	"fmt"

	"gorm.io/gorm"
)

var migrationStatements = []string{
	`CREATE TABLE IF NOT EXISTS parking_sessions (
		id              BIGSERIAL PRIMARY KEY,
		vehicle_number  TEXT NOT NULL,
		is_ev           BOOLEAN NOT NULL DEFAULT FALSE,
		slot_number     TEXT NOT NULL,
		entry_time      TIMESTAMPTZ NOT NULL,
		exit_time       TIMESTAMPTZ,
		created_at      TIMESTAMPTZ NOT NULL DEFAULT now()
	);`,
	// The two partial unique indexes carry the occupancy invariants: at most
	// one active session per slot and per vehicle. ReserveIfFree relies on
	// them to make the insert the single atomic arbiter.
	`CREATE UNIQUE INDEX IF NOT EXISTS ux_sessions_active_slot
		ON parking_sessions(slot_number) WHERE exit_time IS NULL;`,
	`CREATE UNIQUE INDEX IF NOT EXISTS ux_sessions_active_vehicle
		ON parking_sessions(vehicle_number) WHERE exit_time IS NULL;`,
	`CREATE INDEX IF NOT EXISTS idx_sessions_vehicle ON parking_sessions(vehicle_number);`,
	`CREATE INDEX IF NOT EXISTS idx_sessions_entry_time ON parking_sessions(entry_time);`,
	`CREATE TABLE IF NOT EXISTS gate_events (
		id                  BIGSERIAL PRIMARY KEY,
		event_id            TEXT NOT NULL,
		station_id          TEXT NOT NULL,
		direction           TEXT NOT NULL,
		plate_text          TEXT NOT NULL,
		is_ev               BOOLEAN NOT NULL DEFAULT FALSE,
		used_valid_majority BOOLEAN NOT NULL DEFAULT FALSE,
		candidates          JSONB,
		outcome             TEXT NOT NULL,
		slot_number         TEXT,
		event_time          TIMESTAMPTZ NOT NULL,
		created_at          TIMESTAMPTZ NOT NULL DEFAULT now()
	);`,
	`CREATE UNIQUE INDEX IF NOT EXISTS ux_gate_events_event_id ON gate_events(event_id);`,
	`CREATE INDEX IF NOT EXISTS idx_gate_events_event_time ON gate_events(event_time);`,
}

func runMigrations(db *gorm.DB) error {
	for i, stmt := range migrationStatements {
		if err := db.Exec(stmt).Error; err != nil {
			return fmt.Errorf("migration %d failed: %w", i+1, err)
		}
	}
	return nil
}
