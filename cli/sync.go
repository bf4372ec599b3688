// ABOUTME: Google Calendar sync CLI commands
// ABOUTME: Handles OAuth setup, site-visit imports, and sync status
package cli

import (
	"context"
	"crypto/rand"
	"encoding/hex"
	"errors"
	"fmt"
	"net/http"
	"net/url"
	"os/exec"
	"runtime"
	"text/tabwriter"
	"time"

	"github.com/harperreed/fitout/db"
	"github.com/harperreed/fitout/sync"
	"golang.org/x/oauth2"
)

// SyncInitCommand runs the OAuth flow and stores the token.
func SyncInitCommand(ctx context.Context, env *Env, args []string) error {
	fs := env.newFlagSet("sync init")
	noBrowser := fs.Bool("no-browser", false, "Print the URL instead of opening a browser")
	if err := fs.Parse(args); err != nil {
		return err
	}

	config, err := sync.ConfiguredOAuth()
	if err != nil {
		return err
	}
	redirect, err := url.Parse(config.RedirectURL)
	if err != nil {
		return fmt.Errorf("invalid redirect URL: %w", err)
	}

	stateBytes := make([]byte, 16)
	if _, err := rand.Read(stateBytes); err != nil {
		return fmt.Errorf("failed to generate OAuth state: %w", err)
	}
	state := hex.EncodeToString(stateBytes)

	// Start local server for OAuth callback
	callbackChan := make(chan *oauth2.Token, 1)
	errChan := make(chan error, 1)

	mux := http.NewServeMux()
	mux.HandleFunc(redirect.Path, func(w http.ResponseWriter, r *http.Request) {
		if r.URL.Query().Get("state") != state {
			http.Error(w, "state mismatch", http.StatusBadRequest)
			errChan <- errors.New("OAuth state mismatch")
			return
		}
		code := r.URL.Query().Get("code")
		if code == "" {
			http.Error(w, "missing code", http.StatusBadRequest)
			errChan <- fmt.Errorf("no authorization code received")
			return
		}

		token, err := config.Exchange(ctx, code)
		if err != nil {
			http.Error(w, "exchange failed", http.StatusInternalServerError)
			errChan <- fmt.Errorf("failed to exchange code: %w", err)
			return
		}

		callbackChan <- token
		_, _ = fmt.Fprintf(w, "Authorization successful! You can close this window.")
	})

	server := &http.Server{Addr: redirect.Host, Handler: mux, ReadHeaderTimeout: 10 * time.Second}
	go func() {
		if err := server.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			errChan <- err
		}
	}()
	defer func() { _ = server.Shutdown(context.Background()) }()

	authURL := config.AuthCodeURL(state, oauth2.AccessTypeOffline)
	out := env.out()
	_, _ = fmt.Fprintln(out, "Opening browser for Google OAuth...")
	_, _ = fmt.Fprintf(out, "\nIf browser doesn't open, visit this URL:\n%s\n\n", authURL)
	if !*noBrowser {
		_ = openBrowser(authURL)
	}

	select {
	case token := <-callbackChan:
		if err := sync.SaveToken(token); err != nil {
			return fmt.Errorf("failed to save token: %w", err)
		}
		_, _ = fmt.Fprintf(out, "\n✓ Authenticated successfully\n")
		_, _ = fmt.Fprintf(out, "✓ Tokens saved to %s\n\n", sync.TokenPath())
		_, _ = fmt.Fprintln(out, "Ready to sync! Run 'fitout sync calendar --initial' to import site visits.")
		return nil
	case err := <-errChan:
		return fmt.Errorf("OAuth flow failed: %w", err)
	case <-ctx.Done():
		return ctx.Err()
	}
}

// NewCalendarImporter builds an importer from the stored OAuth token.
func NewCalendarImporter(ctx context.Context, env *Env, calendarID string) (*sync.Importer, error) {
	if err := env.requireDB(); err != nil {
		return nil, err
	}
	token, err := sync.LoadToken()
	if err != nil {
		return nil, fmt.Errorf("no authentication token found. Run 'fitout sync init' first: %w", err)
	}
	service, err := sync.NewCalendarClient(ctx, token)
	if err != nil {
		return nil, err
	}
	return sync.NewImporter(env.DB, env.Store, sync.NewCalendarEvents(service, calendarID),
		sync.WithImporterLogger(env.logger()),
		sync.WithImporterLocation(env.location()),
	), nil
}

// SyncCalendarCommand imports site visits and calls from Google Calendar.
func SyncCalendarCommand(ctx context.Context, env *Env, args []string) error {
	fs := env.newFlagSet("sync calendar")
	initial := fs.Bool("initial", false, "Full import of the lookback window, ignoring the stored sync token")
	calendarID := fs.String("calendar", "primary", "Calendar ID")
	if err := fs.Parse(args); err != nil {
		return err
	}

	importer, err := NewCalendarImporter(ctx, env, *calendarID)
	if err != nil {
		return err
	}
	result, err := importer.ImportSiteVisits(ctx, *initial)
	if err != nil {
		return fmt.Errorf("calendar sync failed: %w", err)
	}

	out := env.out()
	_, _ = fmt.Fprintf(out, "✓ Fetched %d event(s)\n", result.Fetched)
	_, _ = fmt.Fprintf(out, "  Marked: %d\n", result.Marked)
	_, _ = fmt.Fprintf(out, "  Already set: %d\n", result.AlreadySet)
	for reason, n := range result.Skipped {
		_, _ = fmt.Fprintf(out, "  Skipped (%s): %d\n", reason, n)
	}
	return nil
}

// SyncStatusCommand prints the bookkeeping row of every importer.
func SyncStatusCommand(ctx context.Context, env *Env, args []string) error {
	if err := env.requireDB(); err != nil {
		return err
	}
	fs := env.newFlagSet("sync status")
	if err := fs.Parse(args); err != nil {
		return err
	}

	states, err := db.ListSyncStates(ctx, env.DB)
	if err != nil {
		return err
	}
	if len(states) == 0 {
		_, err = fmt.Fprintln(env.out(), "Nothing has synced yet")
		return err
	}

	w := tabwriter.NewWriter(env.out(), 0, 0, 2, ' ', 0)
	_, _ = fmt.Fprintln(w, "SERVICE\tSTATUS\tLAST SYNC\tERROR")
	for _, s := range states {
		last := "never"
		if s.LastSyncTime != nil {
			last = s.LastSyncTime.In(env.location()).Format("2006-01-02 15:04")
		}
		errMsg := s.ErrorMessage
		if errMsg == "" {
			errMsg = "-"
		}
		_, _ = fmt.Fprintf(w, "%s\t%s\t%s\t%s\n", s.Service, s.Status, last, errMsg)
	}
	return w.Flush()
}

// openBrowser attempts to open URL in default browser
func openBrowser(target string) error {
	var cmd string
	var args []string

	switch runtime.GOOS {
	case "darwin":
		cmd = "open"
		args = []string{target}
	case "windows":
		cmd = "cmd"
		args = []string{"/c", "start", target}
	default:
		cmd = "xdg-open"
		args = []string{target}
	}

	return exec.Command(cmd, args...).Start()
}
