// ABOUTME: Time entry CRUD and keyset-paged listing for timesheet reports
// ABOUTME: Entries are ordered by (clock_in, id) so pages are stable under inserts
package db

import (
	"context"
	"crypto/rand"
	"database/sql"
	"errors"
	"fmt"
	"strings"
	"sync"
	"time"

	"github.com/harperreed/fitout/models"
	"github.com/mattn/go-sqlite3"
	"github.com/oklog/ulid/v2"
)

var (
	ErrTimeEntryNotFound = errors.New("time entry not found")
	ErrAlreadyClockedIn  = errors.New("user already has an open time entry")
	ErrInvalidTimeEntry  = errors.New("invalid time entry")
)

var (
	entropyMu sync.Mutex
	entropy   = ulid.Monotonic(rand.Reader, 0)
)

func newEntryID(at time.Time) string {
	entropyMu.Lock()
	defer entropyMu.Unlock()
	return ulid.MustNew(ulid.Timestamp(at), entropy).String()
}

// dbTime stores times in UTC at second precision so text ordering matches time ordering.
func dbTime(t time.Time) time.Time {
	return t.UTC().Truncate(time.Second)
}

// CreateTimeEntry inserts an entry, assigning an id and created_at when unset.
// A user may hold at most one open entry; idx_time_entries_open enforces it
// when two clock-ins race past the lookup.
func CreateTimeEntry(ctx context.Context, db *sql.DB, e *models.TimeEntry) error {
	if strings.TrimSpace(e.UserID) == "" {
		return fmt.Errorf("%w: user id is required", ErrInvalidTimeEntry)
	}
	if e.ClockIn.IsZero() {
		return fmt.Errorf("%w: clock-in time is required", ErrInvalidTimeEntry)
	}
	if e.ClockOut != nil && e.ClockOut.Before(e.ClockIn) {
		return fmt.Errorf("%w: clock-out before clock-in", ErrInvalidTimeEntry)
	}

	if e.ClockOut == nil {
		open, err := FindOpenTimeEntry(ctx, db, e.UserID)
		if err != nil {
			return err
		}
		if open != nil {
			return fmt.Errorf("%w: %s", ErrAlreadyClockedIn, open.ID)
		}
	}

	if e.CreatedAt.IsZero() {
		e.CreatedAt = time.Now().UTC()
	}
	if e.ID == "" {
		e.ID = newEntryID(e.ClockIn)
	}
	e.ClockIn = dbTime(e.ClockIn)
	var clockOut interface{}
	if e.ClockOut != nil {
		out := dbTime(*e.ClockOut)
		e.ClockOut = &out
		clockOut = out
	}

	_, err := db.ExecContext(ctx, `
		INSERT INTO time_entries (id, user_id, user_name, organization_id, case_id, project_name, description, clock_in, clock_out, created_at)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?)
	`, e.ID, e.UserID, e.UserName, e.OrganizationID, e.CaseID, e.ProjectName, e.Description, e.ClockIn, clockOut, dbTime(e.CreatedAt))
	if isOpenEntryConflict(err) {
		return fmt.Errorf("%w: %s", ErrAlreadyClockedIn, e.UserID)
	}
	if err != nil {
		return fmt.Errorf("failed to create time entry: %w", err)
	}
	return nil
}

func isOpenEntryConflict(err error) bool {
	var sqliteErr sqlite3.Error
	if !errors.As(err, &sqliteErr) {
		return false
	}
	return sqliteErr.ExtendedCode == sqlite3.ErrConstraintUnique &&
		strings.Contains(sqliteErr.Error(), "time_entries.user_id")
}

const timeEntryColumns = `id, user_id, user_name, organization_id, case_id, project_name, description, clock_in, clock_out, created_at`

func scanTimeEntry(row interface{ Scan(...interface{}) error }) (*models.TimeEntry, error) {
	var e models.TimeEntry
	var userName, orgID, caseID, project, desc sql.NullString
	var clockOut sql.NullTime

	err := row.Scan(&e.ID, &e.UserID, &userName, &orgID, &caseID, &project, &desc, &e.ClockIn, &clockOut, &e.CreatedAt)
	if err != nil {
		return nil, err
	}
	e.UserName = userName.String
	e.OrganizationID = orgID.String
	e.CaseID = caseID.String
	e.ProjectName = project.String
	e.Description = desc.String
	if clockOut.Valid {
		t := clockOut.Time
		e.ClockOut = &t
	}
	return &e, nil
}

// GetTimeEntry returns one entry by id.
func GetTimeEntry(ctx context.Context, db *sql.DB, id string) (*models.TimeEntry, error) {
	row := db.QueryRowContext(ctx, `SELECT `+timeEntryColumns+` FROM time_entries WHERE id = ?`, id)
	e, err := scanTimeEntry(row)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, fmt.Errorf("%w: %s", ErrTimeEntryNotFound, id)
	}
	if err != nil {
		return nil, fmt.Errorf("failed to get time entry: %w", err)
	}
	return e, nil
}

// FindOpenTimeEntry returns the user's running entry, or nil.
func FindOpenTimeEntry(ctx context.Context, db *sql.DB, userID string) (*models.TimeEntry, error) {
	row := db.QueryRowContext(ctx, `
		SELECT `+timeEntryColumns+` FROM time_entries
		WHERE user_id = ? AND clock_out IS NULL
		ORDER BY clock_in DESC LIMIT 1
	`, userID)
	e, err := scanTimeEntry(row)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("failed to find open time entry: %w", err)
	}
	return e, nil
}

// StopTimeEntry clocks out an open entry.
func StopTimeEntry(ctx context.Context, db *sql.DB, id string, at time.Time) (*models.TimeEntry, error) {
	e, err := GetTimeEntry(ctx, db, id)
	if err != nil {
		return nil, err
	}
	if !e.IsOpen() {
		return nil, fmt.Errorf("%w: entry %s is already closed", ErrInvalidTimeEntry, id)
	}
	out := dbTime(at)
	if out.Before(e.ClockIn) {
		return nil, fmt.Errorf("%w: clock-out before clock-in", ErrInvalidTimeEntry)
	}

	if _, err := db.ExecContext(ctx, `UPDATE time_entries SET clock_out = ? WHERE id = ?`, out, id); err != nil {
		return nil, fmt.Errorf("failed to stop time entry: %w", err)
	}
	e.ClockOut = &out
	return e, nil
}

// Cursor marks the position after the last entry of a page.
type Cursor struct {
	ClockIn time.Time
	ID      string
}

// IsZero reports whether the cursor points at the start.
func (c Cursor) IsZero() bool {
	return c.ID == ""
}

// ListTimeEntries returns up to limit entries matching f that sort after
// cursor, and the cursor for the next page. A zero next cursor means the
// listing is complete.
func ListTimeEntries(ctx context.Context, db *sql.DB, f models.TimeEntryFilter, cursor Cursor, limit int) ([]models.TimeEntry, Cursor, error) {
	if limit <= 0 {
		limit = 500
	}

	var where []string
	var args []interface{}
	if !f.From.IsZero() {
		where = append(where, "clock_in >= ?")
		args = append(args, dbTime(f.From))
	}
	if !f.To.IsZero() {
		where = append(where, "clock_in < ?")
		args = append(args, dbTime(f.To))
	}
	if f.UserID != "" {
		where = append(where, "user_id = ?")
		args = append(args, f.UserID)
	}
	if f.OrganizationID != "" {
		where = append(where, "organization_id = ?")
		args = append(args, f.OrganizationID)
	}
	if f.CaseID != "" {
		where = append(where, "case_id = ?")
		args = append(args, f.CaseID)
	}
	if !cursor.IsZero() {
		where = append(where, "(clock_in > ? OR (clock_in = ? AND id > ?))")
		c := dbTime(cursor.ClockIn)
		args = append(args, c, c, cursor.ID)
	}

	query := `SELECT ` + timeEntryColumns + ` FROM time_entries`
	if len(where) > 0 {
		query += " WHERE " + strings.Join(where, " AND ")
	}
	query += " ORDER BY clock_in, id LIMIT ?"
	// Fetch one extra row to learn whether another page exists.
	args = append(args, limit+1)

	rows, err := db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, Cursor{}, fmt.Errorf("failed to list time entries: %w", err)
	}
	defer func() { _ = rows.Close() }()

	var entries []models.TimeEntry
	for rows.Next() {
		e, err := scanTimeEntry(rows)
		if err != nil {
			return nil, Cursor{}, fmt.Errorf("failed to scan time entry: %w", err)
		}
		entries = append(entries, *e)
	}
	if err := rows.Err(); err != nil {
		return nil, Cursor{}, err
	}

	if len(entries) <= limit {
		return entries, Cursor{}, nil
	}
	entries = entries[:limit]
	last := entries[len(entries)-1]
	return entries, Cursor{ClockIn: last.ClockIn, ID: last.ID}, nil
}
