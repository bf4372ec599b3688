// ABOUTME: Sync bookkeeping for external importers such as the calendar importer
// ABOUTME: Stores per-service status and incremental tokens, plus a log of imported items
package db

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"time"
)

// Sync statuses.
const (
	SyncIdle    = "idle"
	SyncRunning = "syncing"
	SyncError   = "error"
)

// SyncState is the bookkeeping row for one external service.
type SyncState struct {
	Service      string
	LastSyncTime *time.Time
	Token        string
	Status       string
	ErrorMessage string
	UpdatedAt    time.Time
}

const syncStateColumns = `service, last_sync_time, last_sync_token, status, error_message, updated_at`

func scanSyncState(row interface{ Scan(...interface{}) error }) (*SyncState, error) {
	var state SyncState
	var lastSync sql.NullTime
	var token, status, errMsg sql.NullString

	if err := row.Scan(&state.Service, &lastSync, &token, &status, &errMsg, &state.UpdatedAt); err != nil {
		return nil, err
	}
	if lastSync.Valid {
		t := lastSync.Time
		state.LastSyncTime = &t
	}
	state.Token = token.String
	state.Status = status.String
	state.ErrorMessage = errMsg.String
	return &state, nil
}

// GetSyncState returns the state for service, or nil if it has never synced.
func GetSyncState(ctx context.Context, db *sql.DB, service string) (*SyncState, error) {
	row := db.QueryRowContext(ctx, `SELECT `+syncStateColumns+` FROM sync_state WHERE service = ?`, service)
	state, err := scanSyncState(row)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("failed to get sync state: %w", err)
	}
	return state, nil
}

// ListSyncStates returns every service's state ordered by name.
func ListSyncStates(ctx context.Context, db *sql.DB) ([]SyncState, error) {
	rows, err := db.QueryContext(ctx, `SELECT `+syncStateColumns+` FROM sync_state ORDER BY service`)
	if err != nil {
		return nil, fmt.Errorf("failed to query sync states: %w", err)
	}
	defer func() { _ = rows.Close() }()

	var states []SyncState
	for rows.Next() {
		state, err := scanSyncState(rows)
		if err != nil {
			return nil, fmt.Errorf("failed to scan sync state: %w", err)
		}
		states = append(states, *state)
	}
	return states, rows.Err()
}

// UpdateSyncStatus records a status change. errMsg is cleared when empty.
func UpdateSyncStatus(ctx context.Context, db *sql.DB, service, status, errMsg string) error {
	var msg sql.NullString
	if errMsg != "" {
		msg = sql.NullString{String: errMsg, Valid: true}
	}

	_, err := db.ExecContext(ctx, `
		INSERT INTO sync_state (service, status, error_message, created_at, updated_at)
		VALUES (?, ?, ?, CURRENT_TIMESTAMP, CURRENT_TIMESTAMP)
		ON CONFLICT(service) DO UPDATE SET
			status = excluded.status,
			error_message = excluded.error_message,
			updated_at = CURRENT_TIMESTAMP
	`, service, status, msg)
	if err != nil {
		return fmt.Errorf("failed to update sync status: %w", err)
	}
	return nil
}

// UpdateSyncToken stores the incremental token after a successful run and
// marks the service idle. An empty token clears it, forcing a full sync next time.
func UpdateSyncToken(ctx context.Context, db *sql.DB, service, token string) error {
	var tok sql.NullString
	if token != "" {
		tok = sql.NullString{String: token, Valid: true}
	}

	_, err := db.ExecContext(ctx, `
		INSERT INTO sync_state (service, last_sync_time, last_sync_token, status, created_at, updated_at)
		VALUES (?, CURRENT_TIMESTAMP, ?, 'idle', CURRENT_TIMESTAMP, CURRENT_TIMESTAMP)
		ON CONFLICT(service) DO UPDATE SET
			last_sync_time = CURRENT_TIMESTAMP,
			last_sync_token = excluded.last_sync_token,
			status = 'idle',
			error_message = NULL,
			updated_at = CURRENT_TIMESTAMP
	`, service, tok)
	if err != nil {
		return fmt.Errorf("failed to update sync token: %w", err)
	}
	return nil
}

// SyncLogExists reports whether sourceID from sourceService was already applied.
func SyncLogExists(ctx context.Context, db *sql.DB, sourceService, sourceID string) (bool, error) {
	var count int
	err := db.QueryRowContext(ctx, `
		SELECT COUNT(*) FROM sync_log WHERE source_service = ? AND source_id = ?
	`, sourceService, sourceID).Scan(&count)
	if err != nil {
		return false, fmt.Errorf("failed to check sync log: %w", err)
	}
	return count > 0, nil
}

// SyncLogEntry records one imported item and what it changed.
type SyncLogEntry struct {
	ID            string
	SourceService string
	SourceID      string
	EntityType    string
	EntityID      string
	Metadata      string
}

// CreateSyncLog records an applied item. Re-recording the same source item is a no-op.
func CreateSyncLog(ctx context.Context, db *sql.DB, e SyncLogEntry) error {
	_, err := db.ExecContext(ctx, `
		INSERT INTO sync_log (id, source_service, source_id, entity_type, entity_id, imported_at, metadata)
		VALUES (?, ?, ?, ?, ?, CURRENT_TIMESTAMP, ?)
		ON CONFLICT(source_service, source_id) DO NOTHING
	`, e.ID, e.SourceService, e.SourceID, e.EntityType, e.EntityID, e.Metadata)
	if err != nil {
		return fmt.Errorf("failed to create sync log: %w", err)
	}
	return nil
}
