// ABOUTME: Calendar event importer that marks lead-journey milestones on cases
// ABOUTME: Handles pagination, sync tokens, 410 fallback, and per-event dedup via sync_log
package sync

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"net/http"
	"time"

	"github.com/charmbracelet/log"
	"github.com/google/uuid"
	"google.golang.org/api/calendar/v3"
	"google.golang.org/api/googleapi"

	"github.com/harperreed/fitout/cases"
	"github.com/harperreed/fitout/db"
	"github.com/harperreed/fitout/docstore"
)

const (
	calendarService = "calendar"

	// DefaultLookback bounds the first full sync.
	DefaultLookback = 6 * 30 * 24 * time.Hour
)

// ImportResult counts what one run did.
type ImportResult struct {
	Fetched    int
	Marked     int
	AlreadySet int
	Skipped    map[string]int
}

// Importer reads calendar events and records site visits and calls on the
// tagged cases.
type Importer struct {
	db       *sql.DB
	store    docstore.Writer
	events   EventLister
	logger   *log.Logger
	now      func() time.Time
	loc      *time.Location
	lookback time.Duration
}

type ImporterOption func(*Importer)

func WithImporterLogger(l *log.Logger) ImporterOption {
	return func(i *Importer) { i.logger = l }
}

func WithImporterClock(now func() time.Time) ImporterOption {
	return func(i *Importer) { i.now = now }
}

// WithImporterLocation sets the zone used for all-day events.
func WithImporterLocation(loc *time.Location) ImporterOption {
	return func(i *Importer) { i.loc = loc }
}

func WithLookback(d time.Duration) ImporterOption {
	return func(i *Importer) { i.lookback = d }
}

func NewImporter(database *sql.DB, store docstore.Writer, events EventLister, opts ...ImporterOption) *Importer {
	i := &Importer{
		db:       database,
		store:    store,
		events:   events,
		logger:   log.Default(),
		now:      time.Now,
		loc:      time.Local,
		lookback: DefaultLookback,
	}
	for _, opt := range opts {
		opt(i)
	}
	return i
}

func isGone(err error) bool {
	var apiErr *googleapi.Error
	return errors.As(err, &apiErr) && apiErr.Code == http.StatusGone
}

// fail records the error on the sync state before returning it.
func (i *Importer) fail(ctx context.Context, err error) error {
	if uerr := db.UpdateSyncStatus(ctx, i.db, calendarService, db.SyncError, err.Error()); uerr != nil {
		i.logger.Warn("failed to record sync error", "err", uerr)
	}
	return err
}

// ImportSiteVisits runs one sync. initial ignores any stored sync token and
// re-reads the lookback window.
func (i *Importer) ImportSiteVisits(ctx context.Context, initial bool) (*ImportResult, error) {
	if err := db.UpdateSyncStatus(ctx, i.db, calendarService, db.SyncRunning, ""); err != nil {
		return nil, fmt.Errorf("failed to update sync status: %w", err)
	}

	state, err := db.GetSyncState(ctx, i.db, calendarService)
	if err != nil {
		return nil, i.fail(ctx, fmt.Errorf("failed to get sync state: %w", err))
	}

	opts := ListOptions{TimeMin: i.now().Add(-i.lookback)}
	switch {
	case initial:
		i.logger.Info("initial calendar sync", "since", opts.TimeMin.Format("2006-01-02"))
	case state != nil && state.Token != "":
		opts = ListOptions{SyncToken: state.Token}
		i.logger.Info("incremental calendar sync")
	default:
		i.logger.Info("no previous calendar sync, fetching lookback window", "since", opts.TimeMin.Format("2006-01-02"))
	}

	result := &ImportResult{Skipped: make(map[string]int)}
	for page := 1; ; page++ {
		events, err := i.events.ListEvents(ctx, opts)
		if err != nil && isGone(err) && opts.SyncToken != "" {
			// Stored token expired: restart from the last successful sync.
			fallback := i.now().Add(-i.lookback)
			if state != nil && state.LastSyncTime != nil {
				fallback = *state.LastSyncTime
			}
			i.logger.Warn("sync token invalid, falling back to time-based sync", "since", fallback)
			opts = ListOptions{TimeMin: fallback}
			page = 0
			continue
		}
		if err != nil {
			return nil, i.fail(ctx, fmt.Errorf("failed to fetch calendar events: %w", err))
		}

		result.Fetched += len(events.Items)
		i.logger.Debug("fetched calendar page", "page", page, "events", len(events.Items))

		for _, event := range events.Items {
			if err := i.applyEvent(ctx, event, result); err != nil {
				return nil, i.fail(ctx, err)
			}
		}

		if events.NextPageToken == "" {
			if err := db.UpdateSyncToken(ctx, i.db, calendarService, events.NextSyncToken); err != nil {
				return nil, i.fail(ctx, err)
			}
			break
		}
		opts.PageToken = events.NextPageToken
	}

	i.logger.Info("calendar sync complete",
		"fetched", result.Fetched, "marked", result.Marked, "already_set", result.AlreadySet)
	return result, nil
}

func (i *Importer) applyEvent(ctx context.Context, event *calendar.Event, result *ImportResult) error {
	if skip, reason := shouldSkipEvent(event); skip {
		result.Skipped[reason]++
		return nil
	}

	caseID, _ := CaseTag(event)
	key, _ := Milestone(event.Summary)
	at, ok := EventEnd(event, i.loc)
	if !ok {
		result.Skipped["missing time"]++
		return nil
	}
	if at.After(i.now()) {
		result.Skipped["upcoming"]++
		return nil
	}

	seen, err := db.SyncLogExists(ctx, i.db, calendarService, event.Id)
	if err != nil {
		return err
	}
	if seen {
		result.Skipped["already imported"]++
		return nil
	}

	raw, err := cases.GetCase(ctx, i.store, caseID)
	if errors.Is(err, cases.ErrCaseNotFound) {
		i.logger.Warn("calendar event tags unknown case", "case", caseID, "event", event.Id)
		result.Skipped["unknown case"]++
		return nil
	}
	if err != nil {
		return fmt.Errorf("failed to load case %s: %w", caseID, err)
	}

	if raw.LeadJourney[key].IsSet() {
		result.AlreadySet++
	} else {
		if err := cases.MarkLeadMilestone(ctx, i.store, caseID, key, at); err != nil {
			return fmt.Errorf("failed to mark %s on %s: %w", key, caseID, err)
		}
		result.Marked++
		i.logger.Info("marked lead milestone", "case", caseID, "milestone", key, "at", at.Format(time.RFC3339))
	}

	return db.CreateSyncLog(ctx, i.db, db.SyncLogEntry{
		ID:            uuid.New().String(),
		SourceService: calendarService,
		SourceID:      event.Id,
		EntityType:    "case",
		EntityID:      caseID,
		Metadata:      key,
	})
}
