// ABOUTME: OAuth configuration and token management for Google APIs
// ABOUTME: Handles OAuth flow, token storage at XDG paths, and auto-refresh
package sync

import (
	"encoding/json"
	"errors"
	"fmt"
	"os"
	"path/filepath"

	"github.com/adrg/xdg"
	"golang.org/x/oauth2"
	"golang.org/x/oauth2/google"
)

// CalendarScope is the only Google scope fitout asks for.
const CalendarScope = "https://www.googleapis.com/auth/calendar.readonly"

// RedirectURL is where the local callback server listens during `sync init`.
const RedirectURL = "http://localhost:8080/oauth/callback"

// ErrNotConfigured means GOOGLE_CLIENT_ID or GOOGLE_CLIENT_SECRET is missing.
var ErrNotConfigured = errors.New("google OAuth credentials not configured. Set GOOGLE_CLIENT_ID and GOOGLE_CLIENT_SECRET environment variables")

// NewOAuthConfig creates OAuth2 config for Google APIs. Credentials come
// from GOOGLE_CLIENT_ID and GOOGLE_CLIENT_SECRET.
func NewOAuthConfig() *oauth2.Config {
	return &oauth2.Config{
		ClientID:     os.Getenv("GOOGLE_CLIENT_ID"),
		ClientSecret: os.Getenv("GOOGLE_CLIENT_SECRET"),
		RedirectURL:  RedirectURL,
		Scopes:       []string{CalendarScope},
		Endpoint:     google.Endpoint,
	}
}

// ConfiguredOAuth returns the OAuth config, or ErrNotConfigured.
func ConfiguredOAuth() (*oauth2.Config, error) {
	config := NewOAuthConfig()
	if config.ClientID == "" || config.ClientSecret == "" {
		return nil, ErrNotConfigured
	}
	return config, nil
}

// TokenPath returns XDG-compliant path for storing OAuth tokens.
func TokenPath() string {
	return filepath.Join(xdg.DataHome, "fitout", "google-credentials.json")
}

// SaveToken saves the OAuth token to TokenPath.
func SaveToken(token *oauth2.Token) error {
	return SaveTokenTo(TokenPath(), token)
}

// SaveTokenTo writes token to path with owner-only permissions.
func SaveTokenTo(path string, token *oauth2.Token) error {
	if err := os.MkdirAll(filepath.Dir(path), 0700); err != nil {
		return fmt.Errorf("failed to create token directory: %w", err)
	}

	f, err := os.OpenFile(path, os.O_RDWR|os.O_CREATE|os.O_TRUNC, 0600)
	if err != nil {
		return fmt.Errorf("failed to create token file: %w", err)
	}
	defer func() { _ = f.Close() }()

	if err := json.NewEncoder(f).Encode(token); err != nil {
		return fmt.Errorf("failed to encode token: %w", err)
	}
	return nil
}

// LoadToken loads the OAuth token from TokenPath.
func LoadToken() (*oauth2.Token, error) {
	return LoadTokenFrom(TokenPath())
}

func LoadTokenFrom(path string) (*oauth2.Token, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, fmt.Errorf("failed to open token file: %w", err)
	}
	defer func() { _ = f.Close() }()

	var token oauth2.Token
	if err := json.NewDecoder(f).Decode(&token); err != nil {
		return nil, fmt.Errorf("failed to decode token: %w", err)
	}
	return &token, nil
}
