// ABOUTME: Report service that pages time entries out of SQLite and renders exports
// ABOUTME: Maps report kinds to their aggregation and spreadsheet writer
package reports

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"io"
	"time"

	"github.com/harperreed/fitout/db"
	"github.com/harperreed/fitout/models"
)

// Kind names an export.
type Kind string

const (
	KindTimesheet Kind = "timesheet"
	KindOvertime  Kind = "overtime"
	KindUntracked Kind = "untracked"
	KindProjects  Kind = "projects"
)

var ErrUnknownKind = errors.New("unknown report kind")

// Kinds lists every export.
func Kinds() []Kind {
	return []Kind{KindTimesheet, KindOvertime, KindUntracked, KindProjects}
}

// ParseKind validates a report name.
func ParseKind(s string) (Kind, error) {
	for _, k := range Kinds() {
		if string(k) == s {
			return k, nil
		}
	}
	return "", fmt.Errorf("%w: %q", ErrUnknownKind, s)
}

const DefaultPageSize = 500

// Service produces reports from the time-entry table.
type Service struct {
	db       *sql.DB
	pageSize int
	loc      *time.Location
}

type Option func(*Service)

func WithPageSize(n int) Option {
	return func(s *Service) { s.pageSize = n }
}

// WithLocation sets the zone used to bucket entries into days.
func WithLocation(loc *time.Location) Option {
	return func(s *Service) { s.loc = loc }
}

func NewService(database *sql.DB, opts ...Option) *Service {
	s := &Service{db: database, pageSize: DefaultPageSize, loc: time.UTC}
	for _, opt := range opts {
		opt(s)
	}
	if s.loc == nil {
		s.loc = time.UTC
	}
	return s
}

// Location returns the zone days are bucketed in.
func (s *Service) Location() *time.Location {
	return s.loc
}

// Entries pages through every entry matching f.
func (s *Service) Entries(ctx context.Context, f models.TimeEntryFilter) ([]models.TimeEntry, error) {
	var all []models.TimeEntry
	cursor := db.Cursor{}
	for {
		if err := ctx.Err(); err != nil {
			return nil, err
		}
		page, next, err := db.ListTimeEntries(ctx, s.db, f, cursor, s.pageSize)
		if err != nil {
			return nil, err
		}
		all = append(all, page...)
		if next.IsZero() {
			return all, nil
		}
		cursor = next
	}
}

// Write renders the report kind for f as an xlsx workbook.
func (s *Service) Write(ctx context.Context, kind Kind, f models.TimeEntryFilter, w io.Writer) error {
	entries, err := s.Entries(ctx, f)
	if err != nil {
		return err
	}

	switch kind {
	case KindTimesheet:
		return ExportTimesheet(w, entries, s.loc)
	case KindOvertime:
		return ExportOvertime(w, Overtime(DailyTotals(entries, s.loc)))
	case KindUntracked:
		sessions := DeriveSessions(entries, s.loc)
		return ExportUntracked(w, sessions, UntrackedGaps(sessions), s.loc)
	case KindProjects:
		return ExportProjects(w, ProjectTotals(entries))
	}
	return fmt.Errorf("%w: %q", ErrUnknownKind, kind)
}

// Summary is a compact overview of a time range.
type Summary struct {
	From           *time.Time     `json:"from,omitempty"`
	To             *time.Time     `json:"to,omitempty"`
	Entries        int            `json:"entries"`
	OpenEntries    int            `json:"open_entries"`
	People         int            `json:"people"`
	TotalHours     float64        `json:"total_hours"`
	OvertimeHours  float64        `json:"overtime_hours"`
	WeightedHours  float64        `json:"weighted_overtime_hours"`
	UntrackedHours float64        `json:"untracked_hours"`
	Projects       []ProjectTotal `json:"projects"`
}

// Summarize aggregates every entry matching f.
func (s *Service) Summarize(ctx context.Context, f models.TimeEntryFilter) (*Summary, error) {
	entries, err := s.Entries(ctx, f)
	if err != nil {
		return nil, err
	}

	sum := &Summary{Entries: len(entries), Projects: ProjectTotals(entries)}
	if !f.From.IsZero() {
		sum.From = &f.From
	}
	if !f.To.IsZero() {
		sum.To = &f.To
	}
	people := make(map[string]struct{})
	for _, e := range entries {
		people[e.UserID] = struct{}{}
		if e.IsOpen() {
			sum.OpenEntries++
			continue
		}
		sum.TotalHours += e.Duration().Hours()
	}
	sum.People = len(people)

	for _, r := range Overtime(DailyTotals(entries, s.loc)) {
		sum.OvertimeHours += r.OvertimeHours
		sum.WeightedHours += r.WeightedHours
	}
	for _, g := range UntrackedGaps(DeriveSessions(entries, s.loc)) {
		sum.UntrackedHours += g.Duration().Hours()
	}

	sum.TotalHours = round2(sum.TotalHours)
	sum.OvertimeHours = round2(sum.OvertimeHours)
	sum.WeightedHours = round2(sum.WeightedHours)
	sum.UntrackedHours = round2(sum.UntrackedHours)
	return sum, nil
}
