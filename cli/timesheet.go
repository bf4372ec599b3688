// ABOUTME: Timesheet CLI commands
// ABOUTME: Clock in and out, list entries, and export xlsx reports
package cli

import (
	"context"
	"flag"
	"fmt"
	"os"
	"strings"
	"text/tabwriter"
	"time"

	"github.com/harperreed/fitout/db"
	"github.com/harperreed/fitout/models"
	"github.com/harperreed/fitout/reports"
)

// TimesheetAddCommand clocks a user in.
func TimesheetAddCommand(ctx context.Context, env *Env, args []string) error {
	if err := env.requireDB(); err != nil {
		return err
	}
	fs := env.newFlagSet("timesheet add")
	user := fs.String("user", "", "User ID (required)")
	name := fs.String("name", "", "User display name")
	org := fs.String("org", "", "Organization ID")
	caseID := fs.String("case", "", "Case the work is for")
	project := fs.String("project", "", "Project name shown in reports")
	desc := fs.String("desc", "", "What is being worked on")
	at := fs.String("at", "", "Clock-in time (default: now)")
	if err := fs.Parse(args); err != nil {
		return err
	}
	if *user == "" {
		return fmt.Errorf("--user is required")
	}

	when, err := env.parseWhen(*at)
	if err != nil {
		return err
	}
	entry := &models.TimeEntry{
		UserID:         *user,
		UserName:       *name,
		OrganizationID: *org,
		CaseID:         *caseID,
		ProjectName:    *project,
		Description:    *desc,
		ClockIn:        when,
	}
	if err := db.CreateTimeEntry(ctx, env.DB, entry); err != nil {
		return err
	}

	_, err = fmt.Fprintf(env.out(), "✓ Clocked in %s at %s (ID: %s)\n",
		*user, entry.ClockIn.In(env.location()).Format("15:04"), entry.ID)
	return err
}

// TimesheetStopCommand clocks a user out of their open entry.
func TimesheetStopCommand(ctx context.Context, env *Env, args []string) error {
	if err := env.requireDB(); err != nil {
		return err
	}
	fs := env.newFlagSet("timesheet stop")
	user := fs.String("user", "", "User ID (required)")
	at := fs.String("at", "", "Clock-out time (default: now)")
	if err := fs.Parse(args); err != nil {
		return err
	}
	if *user == "" {
		return fmt.Errorf("--user is required")
	}

	when, err := env.parseWhen(*at)
	if err != nil {
		return err
	}
	open, err := db.FindOpenTimeEntry(ctx, env.DB, *user)
	if err != nil {
		return err
	}
	if open == nil {
		return fmt.Errorf("user %s is not clocked in", *user)
	}
	stopped, err := db.StopTimeEntry(ctx, env.DB, open.ID, when)
	if err != nil {
		return err
	}

	_, err = fmt.Fprintf(env.out(), "✓ Clocked out %s after %.2fh\n", *user, stopped.Duration().Hours())
	return err
}

// filterFlags registers the shared range and owner flags on fs and returns
// a function that builds the filter once fs is parsed.
func filterFlags(fs *flag.FlagSet, loc *time.Location) func() (models.TimeEntryFilter, error) {
	from := fs.String("from", "", "Range start, inclusive (YYYY-MM-DD)")
	to := fs.String("to", "", "Range end, exclusive (YYYY-MM-DD)")
	user := fs.String("user", "", "Only this user")
	org := fs.String("org", "", "Only this organization")
	caseID := fs.String("case", "", "Only this case")

	return func() (models.TimeEntryFilter, error) {
		f := models.TimeEntryFilter{UserID: *user, OrganizationID: *org, CaseID: *caseID}
		var err error
		if f.From, err = parseDay("from", *from, loc); err != nil {
			return f, err
		}
		if f.To, err = parseDay("to", *to, loc); err != nil {
			return f, err
		}
		return f, nil
	}
}

// TimesheetListCommand prints entries in a range.
func TimesheetListCommand(ctx context.Context, env *Env, args []string) error {
	if err := env.requireDB(); err != nil {
		return err
	}
	fs := env.newFlagSet("timesheet list")
	buildFilter := filterFlags(fs, env.location())
	if err := fs.Parse(args); err != nil {
		return err
	}
	f, err := buildFilter()
	if err != nil {
		return err
	}

	entries, err := env.Reports.Entries(ctx, f)
	if err != nil {
		return err
	}
	if len(entries) == 0 {
		_, err = fmt.Fprintln(env.out(), "No time entries found")
		return err
	}

	loc := env.location()
	w := tabwriter.NewWriter(env.out(), 0, 0, 2, ' ', 0)
	_, _ = fmt.Fprintln(w, "DATE\tUSER\tPROJECT\tIN\tOUT\tHOURS")
	_, _ = fmt.Fprintln(w, "----\t----\t-------\t--\t---\t-----")

	var total float64
	for _, e := range entries {
		user := e.UserName
		if user == "" {
			user = e.UserID
		}
		project := e.ProjectName
		if project == "" {
			project = e.CaseID
		}
		out := "running"
		if e.ClockOut != nil {
			out = e.ClockOut.In(loc).Format("15:04")
		}
		hours := e.Duration().Hours()
		total += hours
		_, _ = fmt.Fprintf(w, "%s\t%s\t%s\t%s\t%s\t%.2f\n",
			e.ClockIn.In(loc).Format("2006-01-02"), user, project,
			e.ClockIn.In(loc).Format("15:04"), out, hours)
	}
	_ = w.Flush()

	_, err = fmt.Fprintf(env.out(), "\nTotal: %d entr(ies), %.2fh\n", len(entries), total)
	return err
}

// TimesheetExportCommand writes an xlsx report.
func TimesheetExportCommand(ctx context.Context, env *Env, args []string) error {
	if err := env.requireDB(); err != nil {
		return err
	}
	kinds := make([]string, 0, len(reports.Kinds()))
	for _, k := range reports.Kinds() {
		kinds = append(kinds, string(k))
	}

	fs := env.newFlagSet("timesheet export")
	kindFlag := fs.String("kind", string(reports.KindTimesheet), "Report ("+strings.Join(kinds, ", ")+")")
	output := fs.String("output", "", "Output file (default: <kind>-<date>.xlsx)")
	buildFilter := filterFlags(fs, env.location())
	if err := fs.Parse(args); err != nil {
		return err
	}

	kind, err := reports.ParseKind(*kindFlag)
	if err != nil {
		return err
	}
	f, err := buildFilter()
	if err != nil {
		return err
	}

	path := *output
	if path == "" {
		path = fmt.Sprintf("%s-%s.xlsx", kind, env.now().Format("20060102"))
	}
	file, err := os.Create(path)
	if err != nil {
		return fmt.Errorf("failed to create %s: %w", path, err)
	}
	if err := env.Reports.Write(ctx, kind, f, file); err != nil {
		_ = file.Close()
		return err
	}
	if err := file.Close(); err != nil {
		return err
	}

	_, err = fmt.Fprintf(env.out(), "✓ %s report written to %s\n", kind, path)
	return err
}

func parseDay(name, value string, loc *time.Location) (time.Time, error) {
	if value == "" {
		return time.Time{}, nil
	}
	t, err := time.ParseInLocation("2006-01-02", value, loc)
	if err != nil {
		return time.Time{}, fmt.Errorf("invalid --%s %q (use YYYY-MM-DD)", name, value)
	}
	return t, nil
}
