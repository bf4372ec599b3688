// ABOUTME: Application configuration with XDG file, .env, and environment layers
// ABOUTME: Resolves store backend, database path, time zone, locale, and logging settings
package config

import (
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/adrg/xdg"
	"github.com/caarlos0/env/v11"
	"github.com/charmbracelet/log"
	"github.com/harperreed/fitout/docstore"
	"github.com/joho/godotenv"
	"golang.org/x/text/language"
)

const appDir = "fitout"

// Duration reads "30s" style values from both JSON and the environment.
type Duration struct {
	time.Duration
}

func (d Duration) MarshalText() ([]byte, error) {
	return []byte(d.String()), nil
}

func (d *Duration) UnmarshalText(text []byte) error {
	parsed, err := time.ParseDuration(string(text))
	if err != nil {
		return err
	}
	d.Duration = parsed
	return nil
}

// Config holds every setting. Later layers override earlier ones: defaults,
// then the JSON file, then .env, then the process environment.
type Config struct {
	Backend      string   `json:"backend" env:"FITOUT_BACKEND"`
	DataDir      string   `json:"data_dir" env:"FITOUT_DATA_DIR"`
	CharmHost    string   `json:"charm_host" env:"FITOUT_CHARM_HOST"`
	AutoSync     bool     `json:"auto_sync" env:"FITOUT_AUTO_SYNC"`
	SyncInterval Duration `json:"sync_interval" env:"FITOUT_SYNC_INTERVAL"`
	DatabasePath string   `json:"database_path" env:"FITOUT_DB_PATH"`
	TimeZone     string   `json:"timezone" env:"FITOUT_TZ"`
	Locale       string   `json:"locale" env:"FITOUT_LOCALE"`
	WebAddr      string   `json:"web_addr" env:"FITOUT_WEB_ADDR"`
	LogLevel     string   `json:"log_level" env:"FITOUT_LOG_LEVEL"`
}

// Dir returns the XDG config directory for fitout.
func Dir() string {
	return filepath.Join(xdg.ConfigHome, appDir)
}

// Path returns the default config file location.
func Path() string {
	return filepath.Join(Dir(), "config.json")
}

// Defaults returns the configuration used when nothing is set.
func Defaults() *Config {
	dataDir := filepath.Join(xdg.DataHome, appDir)
	return &Config{
		Backend:      docstore.BackendCharm,
		DataDir:      dataDir,
		CharmHost:    docstore.DefaultCharmHost,
		AutoSync:     true,
		SyncInterval: Duration{docstore.DefaultSyncInterval},
		DatabasePath: filepath.Join(dataDir, "fitout.db"),
		TimeZone:     "Local",
		Locale:       "en-IN",
		WebAddr:      "127.0.0.1:8080",
		LogLevel:     "info",
	}
}

// Load reads the default config file and ./.env.
func Load() (*Config, error) {
	return LoadFrom(Path(), ".env")
}

// LoadFrom layers the JSON file at path and the dotenv file over the
// defaults, then applies the environment. Missing files are skipped.
func LoadFrom(path, dotenvPath string) (*Config, error) {
	cfg := Defaults()

	f, err := os.Open(path)
	switch {
	case err == nil:
		defer func() { _ = f.Close() }()
		if err := json.NewDecoder(f).Decode(cfg); err != nil {
			return nil, fmt.Errorf("failed to decode config %s: %w", path, err)
		}
	case !errors.Is(err, os.ErrNotExist):
		return nil, fmt.Errorf("failed to open config file: %w", err)
	}

	if dotenvPath != "" {
		// godotenv never overrides variables already present in the environment.
		if err := godotenv.Load(dotenvPath); err != nil && !errors.Is(err, os.ErrNotExist) {
			return nil, fmt.Errorf("failed to load %s: %w", dotenvPath, err)
		}
	}

	if err := env.Parse(cfg); err != nil {
		return nil, fmt.Errorf("failed to parse environment: %w", err)
	}

	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return cfg, nil
}

// Save writes cfg as indented JSON, creating the directory if needed.
func (c *Config) Save(path string) error {
	if err := os.MkdirAll(filepath.Dir(path), 0750); err != nil {
		return fmt.Errorf("failed to create config directory: %w", err)
	}
	data, err := json.MarshalIndent(c, "", "  ")
	if err != nil {
		return fmt.Errorf("failed to encode config: %w", err)
	}
	if err := os.WriteFile(path, append(data, '\n'), 0600); err != nil {
		return fmt.Errorf("failed to write config: %w", err)
	}
	return nil
}

// Validate checks values that would otherwise fail later and far from here.
func (c *Config) Validate() error {
	switch c.Backend {
	case docstore.BackendCharm, docstore.BackendLocal, docstore.BackendDisabled:
	default:
		return fmt.Errorf("invalid backend %q (valid: charm, local, disabled)", c.Backend)
	}
	if _, err := c.Location(); err != nil {
		return err
	}
	if _, err := language.Parse(c.Locale); err != nil {
		return fmt.Errorf("invalid locale %q: %w", c.Locale, err)
	}
	if _, err := log.ParseLevel(c.LogLevel); err != nil {
		return fmt.Errorf("invalid log level %q: %w", c.LogLevel, err)
	}
	if c.SyncInterval.Duration < 0 {
		return fmt.Errorf("sync interval cannot be negative")
	}
	return nil
}

// Location resolves TimeZone. "Local" and "" mean the system zone.
func (c *Config) Location() (*time.Location, error) {
	if c.TimeZone == "" || strings.EqualFold(c.TimeZone, "local") {
		return time.Local, nil
	}
	loc, err := time.LoadLocation(c.TimeZone)
	if err != nil {
		return nil, fmt.Errorf("invalid timezone %q: %w", c.TimeZone, err)
	}
	return loc, nil
}

// Language returns the locale tag, falling back to English.
func (c *Config) Language() language.Tag {
	tag, err := language.Parse(c.Locale)
	if err != nil {
		return language.English
	}
	return tag
}

// NewLogger builds a logger at the configured level.
func (c *Config) NewLogger(w io.Writer) *log.Logger {
	level, err := log.ParseLevel(c.LogLevel)
	if err != nil {
		level = log.InfoLevel
	}
	return log.NewWithOptions(w, log.Options{
		Level:           level,
		ReportTimestamp: true,
		Prefix:          "fitout",
	})
}

// DocstoreOptions maps the store settings onto docstore.Options.
func (c *Config) DocstoreOptions(logger *log.Logger) docstore.Options {
	return docstore.Options{
		Backend:      c.Backend,
		DataDir:      c.DataDir,
		Host:         c.CharmHost,
		AutoSync:     c.AutoSync,
		SyncInterval: c.SyncInterval.Duration,
		Logger:       logger,
	}
}
