// ABOUTME: Calendar API client setup for Google Calendar integration
// ABOUTME: Creates an authenticated Calendar service and wraps event listing behind EventLister
package sync

import (
	"context"
	"fmt"
	"time"

	"golang.org/x/oauth2"
	"google.golang.org/api/calendar/v3"
	"google.golang.org/api/option"
)

const maxResults = 250 // Google Calendar API max per page

// ListOptions selects one page of events. SyncToken and TimeMin are mutually
// exclusive; SyncToken wins when both are set.
type ListOptions struct {
	SyncToken string
	TimeMin   time.Time
	PageToken string
}

// EventLister fetches one page of calendar events.
type EventLister interface {
	ListEvents(ctx context.Context, opts ListOptions) (*calendar.Events, error)
}

// NewCalendarClient creates a Google Calendar API service from an OAuth token.
func NewCalendarClient(ctx context.Context, token *oauth2.Token) (*calendar.Service, error) {
	if token == nil {
		return nil, fmt.Errorf("token cannot be nil")
	}

	client := NewOAuthConfig().Client(ctx, token)

	service, err := calendar.NewService(ctx, option.WithHTTPClient(client))
	if err != nil {
		return nil, fmt.Errorf("failed to create calendar service: %w", err)
	}
	return service, nil
}

// CalendarEvents lists events from one calendar of a Calendar service.
type CalendarEvents struct {
	Service    *calendar.Service
	CalendarID string
}

func NewCalendarEvents(service *calendar.Service, calendarID string) *CalendarEvents {
	if calendarID == "" {
		calendarID = "primary"
	}
	return &CalendarEvents{Service: service, CalendarID: calendarID}
}

func (c *CalendarEvents) ListEvents(ctx context.Context, opts ListOptions) (*calendar.Events, error) {
	call := c.Service.Events.List(c.CalendarID).
		Context(ctx).
		MaxResults(maxResults).
		SingleEvents(true)

	// The API rejects orderBy and timeMin together with a sync token.
	if opts.SyncToken != "" {
		call = call.SyncToken(opts.SyncToken)
	} else {
		call = call.OrderBy("startTime")
		if !opts.TimeMin.IsZero() {
			call = call.TimeMin(opts.TimeMin.Format(time.RFC3339))
		}
	}
	if opts.PageToken != "" {
		call = call.PageToken(opts.PageToken)
	}
	return call.Do()
}
