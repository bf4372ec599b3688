// ABOUTME: Database schema definitions and migrations
// ABOUTME: Handles SQLite table creation for time entries and sync bookkeeping
package db

import (
	"database/sql"
)

const schema = `
CREATE TABLE IF NOT EXISTS time_entries (
	id TEXT PRIMARY KEY,
	user_id TEXT NOT NULL,
	user_name TEXT,
	organization_id TEXT,
	case_id TEXT,
	project_name TEXT,
	description TEXT,
	clock_in DATETIME NOT NULL,
	clock_out DATETIME,
	created_at DATETIME NOT NULL,
	CHECK (clock_out IS NULL OR clock_out >= clock_in)
);

CREATE INDEX IF NOT EXISTS idx_time_entries_clock_in ON time_entries(clock_in, id);
CREATE INDEX IF NOT EXISTS idx_time_entries_user ON time_entries(user_id, clock_in);
CREATE INDEX IF NOT EXISTS idx_time_entries_org ON time_entries(organization_id);
CREATE INDEX IF NOT EXISTS idx_time_entries_case ON time_entries(case_id);
CREATE UNIQUE INDEX IF NOT EXISTS idx_time_entries_open ON time_entries(user_id) WHERE clock_out IS NULL;

CREATE TABLE IF NOT EXISTS sync_state (
	service TEXT PRIMARY KEY,
	last_sync_time DATETIME,
	last_sync_token TEXT,
	status TEXT CHECK(status IN ('idle', 'syncing', 'error')),
	error_message TEXT,
	created_at DATETIME NOT NULL DEFAULT CURRENT_TIMESTAMP,
	updated_at DATETIME NOT NULL DEFAULT CURRENT_TIMESTAMP
);

CREATE TABLE IF NOT EXISTS sync_log (
	id TEXT PRIMARY KEY,
	source_service TEXT NOT NULL,
	source_id TEXT NOT NULL,
	entity_type TEXT NOT NULL,
	entity_id TEXT NOT NULL,
	imported_at DATETIME NOT NULL DEFAULT CURRENT_TIMESTAMP,
	metadata TEXT,
	UNIQUE(source_service, source_id)
);

CREATE INDEX IF NOT EXISTS idx_sync_log_source ON sync_log(source_service, source_id);
CREATE INDEX IF NOT EXISTS idx_sync_log_entity ON sync_log(entity_type, entity_id);
`

func InitSchema(db *sql.DB) error {
	_, err := db.Exec(schema)
	return err
}
