// ABOUTME: Calendar event matching for lead-journey milestones
// ABOUTME: Finds the [case:<id>] tag in an event and classifies it as a site visit or call
package sync

import (
	"regexp"
	"strings"
	"time"

	"github.com/harperreed/fitout/portal"
	"google.golang.org/api/calendar/v3"
)

var caseTag = regexp.MustCompile(`\[case:\s*([A-Za-z0-9_\-]+)\s*\]`)

// CaseTag returns the case id tagged in the event summary or description.
func CaseTag(event *calendar.Event) (string, bool) {
	for _, text := range []string{event.Summary, event.Description} {
		if m := caseTag.FindStringSubmatch(text); m != nil {
			return m[1], true
		}
	}
	return "", false
}

// Milestone maps an event title to the lead milestone it completes.
// "site visit" is checked first so "site visit call-back" is a visit.
func Milestone(summary string) (string, bool) {
	title := strings.ToLower(caseTag.ReplaceAllString(summary, ""))
	switch {
	case strings.Contains(title, "site visit"):
		return portal.LeadSiteVisitCompleted, true
	case strings.Contains(title, "call"):
		return portal.LeadCallInitiated, true
	default:
		return "", false
	}
}

// EventEnd returns when the event finished. All-day events end at the start
// of their exclusive end date in loc.
func EventEnd(event *calendar.Event, loc *time.Location) (time.Time, bool) {
	for _, dt := range []*calendar.EventDateTime{event.End, event.Start} {
		if dt == nil {
			continue
		}
		if dt.DateTime != "" {
			if t, err := time.Parse(time.RFC3339, dt.DateTime); err == nil {
				return t, true
			}
		}
		if dt.Date != "" {
			if t, err := time.ParseInLocation("2006-01-02", dt.Date, loc); err == nil {
				return t, true
			}
		}
	}
	return time.Time{}, false
}

// shouldSkipEvent determines if an event should be skipped during import.
// Returns (true, reason) if the event should be skipped, (false, "") otherwise.
func shouldSkipEvent(event *calendar.Event) (bool, string) {
	if event == nil {
		return true, "nil event"
	}
	if event.Status == "cancelled" {
		return true, "cancelled"
	}
	for _, attendee := range event.Attendees {
		if attendee.Self && attendee.ResponseStatus == "declined" {
			return true, "declined"
		}
	}
	if _, ok := CaseTag(event); !ok {
		return true, "untagged"
	}
	if _, ok := Milestone(event.Summary); !ok {
		return true, "unclassified"
	}
	return false, ""
}
