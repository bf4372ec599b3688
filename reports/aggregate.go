// ABOUTME: Pure timesheet aggregations: daily totals, overtime, sessions and untracked gaps
// ABOUTME: Open (running) entries are skipped; days are bucketed in the report's location
package reports

import (
	"sort"
	"time"

	"github.com/harperreed/fitout/models"
)

const (
	// RegularHoursPerDay is the daily threshold above which hours count as overtime.
	RegularHoursPerDay = 8.0

	OvertimeMultiplier = 1.5

	// UntrackedThreshold is the shortest gap between sessions reported as untracked.
	UntrackedThreshold = 15 * time.Minute

	dayLayout = "2006-01-02"
)

type DailyTotal struct {
	UserID   string
	UserName string
	Day      string
	Hours    float64
	Entries  int
}

type OvertimeRow struct {
	DailyTotal
	RegularHours  float64
	OvertimeHours float64
	WeightedHours float64
}

// Session is a run of overlapping or touching entries for one user on one day.
type Session struct {
	UserID   string
	UserName string
	Day      string
	Start    time.Time
	End      time.Time
	Entries  int
}

func (s Session) Duration() time.Duration {
	return s.End.Sub(s.Start)
}

// Gap is untracked time between two sessions.
type Gap struct {
	UserID   string
	UserName string
	Day      string
	Start    time.Time
	End      time.Time
}

func (g Gap) Duration() time.Duration {
	return g.End.Sub(g.Start)
}

type ProjectTotal struct {
	CaseID      string  `json:"case_id"`
	ProjectName string  `json:"project_name,omitempty"`
	Hours       float64 `json:"hours"`
	Entries     int     `json:"entries"`
	Users       int     `json:"people"`
}

func closed(entries []models.TimeEntry) []models.TimeEntry {
	out := make([]models.TimeEntry, 0, len(entries))
	for _, e := range entries {
		if !e.IsOpen() {
			out = append(out, e)
		}
	}
	return out
}

func dayOf(t time.Time, loc *time.Location) string {
	if loc == nil {
		loc = time.UTC
	}
	return t.In(loc).Format(dayLayout)
}

// DailyTotals sums closed entries per user per clock-in day, ordered by user then day.
func DailyTotals(entries []models.TimeEntry, loc *time.Location) []DailyTotal {
	type key struct{ user, day string }
	byKey := make(map[key]*DailyTotal)
	for _, e := range closed(entries) {
		k := key{e.UserID, dayOf(e.ClockIn, loc)}
		dt, ok := byKey[k]
		if !ok {
			dt = &DailyTotal{UserID: e.UserID, UserName: e.UserName, Day: k.day}
			byKey[k] = dt
		}
		if dt.UserName == "" {
			dt.UserName = e.UserName
		}
		dt.Hours += e.Duration().Hours()
		dt.Entries++
	}

	out := make([]DailyTotal, 0, len(byKey))
	for _, dt := range byKey {
		out = append(out, *dt)
	}
	sort.Slice(out, func(i, j int) bool {
		if out[i].UserID != out[j].UserID {
			return out[i].UserID < out[j].UserID
		}
		return out[i].Day < out[j].Day
	})
	return out
}

// Overtime splits each daily total into regular and overtime hours.
func Overtime(totals []DailyTotal) []OvertimeRow {
	out := make([]OvertimeRow, 0, len(totals))
	for _, dt := range totals {
		regular := dt.Hours
		extra := 0.0
		if dt.Hours > RegularHoursPerDay {
			regular = RegularHoursPerDay
			extra = dt.Hours - RegularHoursPerDay
		}
		out = append(out, OvertimeRow{
			DailyTotal:    dt,
			RegularHours:  regular,
			OvertimeHours: extra,
			WeightedHours: extra * OvertimeMultiplier,
		})
	}
	return out
}

// DeriveSessions merges each user's closed entries per day into sessions. An
// entry starting at or before the previous session's end extends it.
func DeriveSessions(entries []models.TimeEntry, loc *time.Location) []Session {
	sorted := closed(entries)
	sort.Slice(sorted, func(i, j int) bool {
		if sorted[i].UserID != sorted[j].UserID {
			return sorted[i].UserID < sorted[j].UserID
		}
		if !sorted[i].ClockIn.Equal(sorted[j].ClockIn) {
			return sorted[i].ClockIn.Before(sorted[j].ClockIn)
		}
		return sorted[i].ID < sorted[j].ID
	})

	var out []Session
	for _, e := range sorted {
		day := dayOf(e.ClockIn, loc)
		end := *e.ClockOut
		if n := len(out); n > 0 {
			last := &out[n-1]
			if last.UserID == e.UserID && last.Day == day && !e.ClockIn.After(last.End) {
				if end.After(last.End) {
					last.End = end
				}
				last.Entries++
				continue
			}
		}
		out = append(out, Session{
			UserID:   e.UserID,
			UserName: e.UserName,
			Day:      day,
			Start:    e.ClockIn,
			End:      end,
			Entries:  1,
		})
	}
	return out
}

// UntrackedGaps returns gaps longer than UntrackedThreshold between consecutive
// sessions of the same user on the same day. Sessions must be in DeriveSessions order.
func UntrackedGaps(sessions []Session) []Gap {
	var out []Gap
	for i := 1; i < len(sessions); i++ {
		prev, cur := sessions[i-1], sessions[i]
		if prev.UserID != cur.UserID || prev.Day != cur.Day {
			continue
		}
		if cur.Start.Sub(prev.End) > UntrackedThreshold {
			out = append(out, Gap{
				UserID:   cur.UserID,
				UserName: cur.UserName,
				Day:      cur.Day,
				Start:    prev.End,
				End:      cur.Start,
			})
		}
	}
	return out
}

// ProjectTotals sums closed entries per case, most hours first.
func ProjectTotals(entries []models.TimeEntry) []ProjectTotal {
	byCase := make(map[string]*ProjectTotal)
	users := make(map[string]map[string]struct{})
	for _, e := range closed(entries) {
		pt, ok := byCase[e.CaseID]
		if !ok {
			pt = &ProjectTotal{CaseID: e.CaseID, ProjectName: e.ProjectName}
			byCase[e.CaseID] = pt
			users[e.CaseID] = make(map[string]struct{})
		}
		if pt.ProjectName == "" {
			pt.ProjectName = e.ProjectName
		}
		pt.Hours += e.Duration().Hours()
		pt.Entries++
		users[e.CaseID][e.UserID] = struct{}{}
	}

	out := make([]ProjectTotal, 0, len(byCase))
	for id, pt := range byCase {
		pt.Users = len(users[id])
		out = append(out, *pt)
	}
	sort.Slice(out, func(i, j int) bool {
		if out[i].Hours != out[j].Hours {
			return out[i].Hours > out[j].Hours
		}
		return out[i].CaseID < out[j].CaseID
	})
	return out
}
