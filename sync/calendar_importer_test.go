// ABOUTME: Tests for the calendar importer, event matching, and token storage
// ABOUTME: Drives the importer with a scripted EventLister against temp Badger and SQLite stores
package sync

import (
	"context"
	"database/sql"
	"errors"
	"io"
	"path/filepath"
	"testing"
	"time"

	"github.com/charmbracelet/log"
	"github.com/harperreed/fitout/cases"
	"github.com/harperreed/fitout/db"
	"github.com/harperreed/fitout/docstore"
	"github.com/harperreed/fitout/portal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"golang.org/x/oauth2"
	"google.golang.org/api/calendar/v3"
	"google.golang.org/api/googleapi"
)

var syncNow = time.Date(2025, 3, 10, 12, 0, 0, 0, time.UTC)

type fakeLister struct {
	pages map[string]*calendar.Events // keyed by page token
	gone  bool                        // reject sync tokens with 410
	calls []ListOptions
}

func (f *fakeLister) ListEvents(_ context.Context, opts ListOptions) (*calendar.Events, error) {
	f.calls = append(f.calls, opts)
	if f.gone && opts.SyncToken != "" {
		return nil, &googleapi.Error{Code: 410, Message: "Sync token is no longer valid"}
	}
	page, ok := f.pages[opts.PageToken]
	if !ok {
		return nil, errors.New("unexpected page token " + opts.PageToken)
	}
	return page, nil
}

func timed(id, summary string, end time.Time) *calendar.Event {
	return &calendar.Event{
		Id:      id,
		Summary: summary,
		Status:  "confirmed",
		Start:   &calendar.EventDateTime{DateTime: end.Add(-time.Hour).Format(time.RFC3339)},
		End:     &calendar.EventDateTime{DateTime: end.Format(time.RFC3339)},
	}
}

func setupImporter(t *testing.T, lister EventLister) (*Importer, *sql.DB, *docstore.Client) {
	t.Helper()
	ctx := context.Background()

	store := docstore.NewTestClient(t)
	_, err := cases.ImportCase(ctx, store, []byte(`{"id":"c1","projectName":"Whitefield"}`))
	require.NoError(t, err)
	_, err = cases.ImportCase(ctx, store, []byte(`{"id":"c2","projectName":"Indiranagar","leadJourney":{"callInitiated":"2025-01-05T10:00:00Z"}}`))
	require.NoError(t, err)

	database, err := db.OpenDatabase(filepath.Join(t.TempDir(), "sync.db"))
	require.NoError(t, err)
	t.Cleanup(func() { _ = database.Close() })

	imp := NewImporter(database, store, lister,
		WithImporterClock(func() time.Time { return syncNow }),
		WithImporterLocation(time.UTC),
		WithImporterLogger(log.New(io.Discard)),
	)
	return imp, database, store
}

func TestImportSiteVisits(t *testing.T) {
	visitEnd := time.Date(2025, 3, 1, 11, 0, 0, 0, time.UTC)
	lister := &fakeLister{pages: map[string]*calendar.Events{
		"": {
			Items: []*calendar.Event{
				timed("e1", "Site visit [case:c1]", visitEnd),
				timed("e2", "Intro call [case:c2]", visitEnd),
				timed("e3", "Team lunch", visitEnd),
			},
			NextPageToken: "p2",
		},
		"p2": {
			Items: []*calendar.Event{
				timed("e4", "Design review [case:c1]", visitEnd),
				timed("e5", "Call with client [case:c9]", visitEnd),
				timed("e6", "Site visit [case:c2]", syncNow.Add(48*time.Hour)),
				{Id: "e7", Summary: "Site visit [case:c1]", Status: "cancelled"},
			},
			NextSyncToken: "tok-1",
		},
	}}
	imp, database, store := setupImporter(t, lister)
	ctx := context.Background()

	result, err := imp.ImportSiteVisits(ctx, false)
	require.NoError(t, err)

	assert.Equal(t, 7, result.Fetched)
	assert.Equal(t, 1, result.Marked)
	assert.Equal(t, 1, result.AlreadySet)
	assert.Equal(t, map[string]int{
		"untagged":     1,
		"unclassified": 1,
		"unknown case": 1,
		"upcoming":     1,
		"cancelled":    1,
	}, result.Skipped)

	raw, err := cases.GetCase(ctx, store, "c1")
	require.NoError(t, err)
	got, ok := raw.LeadJourney[portal.LeadSiteVisitCompleted].Time()
	require.True(t, ok)
	assert.True(t, got.Equal(visitEnd))

	// c2's existing call is left alone.
	raw, err = cases.GetCase(ctx, store, "c2")
	require.NoError(t, err)
	got, _ = raw.LeadJourney[portal.LeadCallInitiated].Time()
	assert.Equal(t, 5, got.Day())

	state, err := db.GetSyncState(ctx, database, calendarService)
	require.NoError(t, err)
	assert.Equal(t, "tok-1", state.Token)
	assert.Equal(t, db.SyncIdle, state.Status)

	seen, err := db.SyncLogExists(ctx, database, calendarService, "e1")
	require.NoError(t, err)
	assert.True(t, seen)

	// The second run uses the token and skips already-imported events.
	result, err = imp.ImportSiteVisits(ctx, false)
	require.NoError(t, err)
	assert.Equal(t, "tok-1", lister.calls[2].SyncToken)
	assert.Equal(t, 0, result.Marked)
	assert.Equal(t, 2, result.Skipped["already imported"])
}

func TestImportSiteVisits_TokenExpired(t *testing.T) {
	lister := &fakeLister{pages: map[string]*calendar.Events{
		"": {Items: []*calendar.Event{timed("e1", "Site visit [case:c1]", syncNow.Add(-time.Hour))}, NextSyncToken: "tok-2"},
	}}
	imp, database, _ := setupImporter(t, lister)
	ctx := context.Background()
	require.NoError(t, db.UpdateSyncToken(ctx, database, calendarService, "stale"))

	lister.gone = true
	result, err := imp.ImportSiteVisits(ctx, false)
	require.NoError(t, err)
	assert.Equal(t, 1, result.Marked)

	require.Len(t, lister.calls, 2)
	assert.Equal(t, "stale", lister.calls[0].SyncToken)
	assert.Empty(t, lister.calls[1].SyncToken)
	assert.False(t, lister.calls[1].TimeMin.IsZero())

	state, err := db.GetSyncState(ctx, database, calendarService)
	require.NoError(t, err)
	assert.Equal(t, "tok-2", state.Token)
}

func TestImportSiteVisits_Initial(t *testing.T) {
	lister := &fakeLister{pages: map[string]*calendar.Events{"": {}}}
	imp, database, _ := setupImporter(t, lister)
	ctx := context.Background()
	require.NoError(t, db.UpdateSyncToken(ctx, database, calendarService, "tok"))

	_, err := imp.ImportSiteVisits(ctx, true)
	require.NoError(t, err)
	require.Len(t, lister.calls, 1)
	assert.Empty(t, lister.calls[0].SyncToken)
	assert.Equal(t, syncNow.Add(-DefaultLookback), lister.calls[0].TimeMin)
}

func TestImportSiteVisits_FetchErrorRecorded(t *testing.T) {
	lister := &fakeLister{pages: map[string]*calendar.Events{}}
	imp, database, _ := setupImporter(t, lister)
	ctx := context.Background()

	_, err := imp.ImportSiteVisits(ctx, false)
	require.Error(t, err)

	state, err := db.GetSyncState(ctx, database, calendarService)
	require.NoError(t, err)
	assert.Equal(t, db.SyncError, state.Status)
	assert.Contains(t, state.ErrorMessage, "unexpected page token")
}

func TestCaseTagAndMilestone(t *testing.T) {
	tests := []struct {
		name      string
		event     *calendar.Event
		wantCase  string
		wantKey   string
		wantMatch bool
	}{
		{"visit in summary", &calendar.Event{Summary: "Site Visit [case:c1]"}, "c1", portal.LeadSiteVisitCompleted, true},
		{"tag in description", &calendar.Event{Summary: "Discovery call", Description: "notes [case: abc-12]"}, "abc-12", portal.LeadCallInitiated, true},
		{"visit beats call", &calendar.Event{Summary: "Site visit and call [case:c1]"}, "c1", portal.LeadSiteVisitCompleted, true},
		{"untagged", &calendar.Event{Summary: "Site visit"}, "", portal.LeadSiteVisitCompleted, false},
		{"other meeting", &calendar.Event{Summary: "Design review [case:c1]"}, "c1", "", true},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			id, ok := CaseTag(tt.event)
			assert.Equal(t, tt.wantMatch, ok)
			assert.Equal(t, tt.wantCase, id)
			key, _ := Milestone(tt.event.Summary)
			assert.Equal(t, tt.wantKey, key)
		})
	}
}

func TestEventEnd(t *testing.T) {
	ist := time.FixedZone("IST", 5*3600+1800)

	at, ok := EventEnd(&calendar.Event{End: &calendar.EventDateTime{DateTime: "2025-03-01T11:00:00+05:30"}}, time.UTC)
	require.True(t, ok)
	assert.Equal(t, time.Date(2025, 3, 1, 5, 30, 0, 0, time.UTC), at.UTC())

	at, ok = EventEnd(&calendar.Event{End: &calendar.EventDateTime{Date: "2025-03-02"}}, ist)
	require.True(t, ok)
	assert.Equal(t, time.Date(2025, 3, 2, 0, 0, 0, 0, ist), at)

	at, ok = EventEnd(&calendar.Event{Start: &calendar.EventDateTime{DateTime: "2025-03-01T09:00:00Z"}}, time.UTC)
	require.True(t, ok)
	assert.Equal(t, 9, at.Hour())

	_, ok = EventEnd(&calendar.Event{}, time.UTC)
	assert.False(t, ok)
}

func TestTokenStorage(t *testing.T) {
	path := filepath.Join(t.TempDir(), "creds", "token.json")
	token := &oauth2.Token{AccessToken: "access", RefreshToken: "refresh", TokenType: "Bearer"}

	require.NoError(t, SaveTokenTo(path, token))
	loaded, err := LoadTokenFrom(path)
	require.NoError(t, err)
	assert.Equal(t, "access", loaded.AccessToken)
	assert.Equal(t, "refresh", loaded.RefreshToken)

	_, err = LoadTokenFrom(filepath.Join(t.TempDir(), "missing.json"))
	assert.Error(t, err)
}

func TestOAuthConfig(t *testing.T) {
	t.Setenv("GOOGLE_CLIENT_ID", "")
	t.Setenv("GOOGLE_CLIENT_SECRET", "")
	_, err := ConfiguredOAuth()
	assert.ErrorIs(t, err, ErrNotConfigured)

	t.Setenv("GOOGLE_CLIENT_ID", "id")
	t.Setenv("GOOGLE_CLIENT_SECRET", "secret")
	config, err := ConfiguredOAuth()
	require.NoError(t, err)
	assert.Equal(t, []string{CalendarScope}, config.Scopes)
	assert.Equal(t, RedirectURL, config.RedirectURL)
}
