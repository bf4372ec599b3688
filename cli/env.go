// ABOUTME: Shared dependencies and helpers for CLI commands
// ABOUTME: Env carries the store, database, reports service, and output writer
package cli

import (
	"database/sql"
	"errors"
	"flag"
	"fmt"
	"io"
	"os"
	"time"

	"github.com/charmbracelet/log"
	"github.com/harperreed/fitout/config"
	"github.com/harperreed/fitout/docstore"
	"github.com/harperreed/fitout/reports"
	"golang.org/x/text/language"
)

// Env holds what commands need. DB and Reports are nil for commands that
// only touch the document store.
type Env struct {
	Config  *config.Config
	Store   docstore.Store
	DB      *sql.DB
	Reports *reports.Service
	Logger  *log.Logger
	Out     io.Writer
	In      io.Reader
	Now     func() time.Time
	Version string
}

func (e *Env) out() io.Writer {
	if e.Out == nil {
		return os.Stdout
	}
	return e.Out
}

func (e *Env) in() io.Reader {
	if e.In == nil {
		return os.Stdin
	}
	return e.In
}

func (e *Env) now() time.Time {
	if e.Now == nil {
		return time.Now()
	}
	return e.Now()
}

func (e *Env) logger() *log.Logger {
	if e.Logger == nil {
		return log.Default()
	}
	return e.Logger
}

func (e *Env) language() language.Tag {
	if e.Config == nil {
		return language.English
	}
	return e.Config.Language()
}

func (e *Env) location() *time.Location {
	if e.Reports != nil {
		return e.Reports.Location()
	}
	if e.Config != nil {
		if loc, err := e.Config.Location(); err == nil {
			return loc
		}
	}
	return time.Local
}

func (e *Env) requireDB() error {
	if e.DB == nil || e.Reports == nil {
		return errors.New("timesheet database is not open")
	}
	return nil
}

// newFlagSet returns a flag set that reports errors instead of exiting, so
// commands stay testable.
func (e *Env) newFlagSet(name string) *flag.FlagSet {
	fs := flag.NewFlagSet(name, flag.ContinueOnError)
	fs.SetOutput(e.out())
	return fs
}

// parseWhen reads an optional RFC3339 timestamp or date. Empty means now.
func (e *Env) parseWhen(value string) (time.Time, error) {
	if value == "" {
		return e.now(), nil
	}
	if t, err := time.Parse(time.RFC3339, value); err == nil {
		return t, nil
	}
	t, err := time.ParseInLocation("2006-01-02", value, e.location())
	if err != nil {
		return time.Time{}, fmt.Errorf("invalid time %q (use RFC3339 or YYYY-MM-DD)", value)
	}
	return t, nil
}

// caseArg returns the single positional case id.
func caseArg(fs *flag.FlagSet, usage string) (string, error) {
	if fs.NArg() < 1 {
		return "", fmt.Errorf("usage: %s", usage)
	}
	return fs.Arg(0), nil
}
