// ABOUTME: Time entry records used by timesheet reporting
// ABOUTME: Defines TimeEntry and the scope filter for paged exports
package models

import "time"

type TimeEntry struct {
	ID             string     `json:"id"`
	UserID         string     `json:"user_id"`
	UserName       string     `json:"user_name,omitempty"`
	OrganizationID string     `json:"organization_id,omitempty"`
	CaseID         string     `json:"case_id,omitempty"`
	ProjectName    string     `json:"project_name,omitempty"`
	Description    string     `json:"description,omitempty"`
	ClockIn        time.Time  `json:"clock_in"`
	ClockOut       *time.Time `json:"clock_out,omitempty"`
	CreatedAt      time.Time  `json:"created_at"`
}

// Duration returns the tracked duration, zero for a running entry.
func (e *TimeEntry) Duration() time.Duration {
	if e.ClockOut == nil || e.ClockOut.Before(e.ClockIn) {
		return 0
	}
	return e.ClockOut.Sub(e.ClockIn)
}

// IsOpen reports whether the entry has not been clocked out yet.
func (e *TimeEntry) IsOpen() bool {
	return e.ClockOut == nil
}

// TimeEntryFilter scopes a time-entry query to [From, To) and optional owners.
// Zero values mean "no constraint".
type TimeEntryFilter struct {
	From           time.Time
	To             time.Time
	UserID         string
	OrganizationID string
	CaseID         string
}
