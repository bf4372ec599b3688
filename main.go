// ABOUTME: Entry point for the fitout CLI, MCP server, web portal, and TUI
// ABOUTME: Loads config, opens the document store and database, then routes to commands
package main

import (
	"context"
	"flag"
	"fmt"
	"io"
	"os"
	"os/signal"
	"syscall"

	"github.com/charmbracelet/log"
	"github.com/harperreed/fitout/cli"
	"github.com/harperreed/fitout/config"
	"github.com/harperreed/fitout/db"
	"github.com/harperreed/fitout/docstore"
	"github.com/harperreed/fitout/portal"
	"github.com/harperreed/fitout/reports"
	"github.com/harperreed/fitout/sync"
	"github.com/harperreed/fitout/tui"
)

const version = "0.2.0"

type command func(ctx context.Context, env *cli.Env, args []string) error

// Subcommand tables. Commands listed in needsDB get the SQLite database.
var (
	portalCommands = map[string]command{
		"show":     cli.PortalShowCommand,
		"watch":    cli.PortalWatchCommand,
		"timeline": cli.PortalTimelineCommand,
		"graph":    cli.PortalGraphCommand,
	}
	caseCommands = map[string]command{
		"list":        cli.CaseListCommand,
		"import":      cli.CaseImportCommand,
		"chat":        cli.CaseChatCommand,
		"log":         cli.CaseLogCommand,
		"installment": cli.CaseInstallmentCommand,
		"approval":    cli.CaseApprovalCommand,
		"lead":        cli.CaseLeadCommand,
		"phase":       cli.CasePhaseCommand,
	}
	timesheetCommands = map[string]command{
		"add":    cli.TimesheetAddCommand,
		"stop":   cli.TimesheetStopCommand,
		"list":   cli.TimesheetListCommand,
		"export": cli.TimesheetExportCommand,
	}
	syncCommands = map[string]command{
		"init":     cli.SyncInitCommand,
		"calendar": cli.SyncCalendarCommand,
		"status":   cli.SyncStatusCommand,
	}
	groups = map[string]map[string]command{
		"portal":    portalCommands,
		"case":      caseCommands,
		"timesheet": timesheetCommands,
		"sync":      syncCommands,
	}
	needsDB = map[string]bool{
		"timesheet": true,
		"sync":      true,
		"serve":     true,
		"tui":       true,
		"mcp":       true,
	}
)

func main() {
	// Global flags
	showVersion := flag.Bool("version", false, "Show version and exit")
	configPath := flag.String("config", config.Path(), "Config file path")
	dbPath := flag.String("db-path", "", "Database path (default: ~/.local/share/fitout/fitout.db)")

	// Parse global flags but don't fail on unknown (for subcommands)
	_ = flag.CommandLine.Parse(os.Args[1:])

	if *showVersion {
		fmt.Printf("fitout version %s\n", version)
		os.Exit(0)
	}

	args := flag.Args()
	if len(args) == 0 {
		printUsage()
		os.Exit(0)
	}

	cfg, err := config.LoadFrom(*configPath, ".env")
	if err != nil {
		fmt.Fprintf(os.Stderr, "Error: %v\n", err)
		os.Exit(1)
	}
	if *dbPath != "" {
		cfg.DatabasePath = *dbPath
	}

	logger := cfg.NewLogger(os.Stderr)
	log.SetDefault(logger)

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	if err := run(ctx, cfg, logger, args); err != nil {
		stop()
		logger.Fatal("command failed", "err", err)
	}
}

func run(ctx context.Context, cfg *config.Config, logger *log.Logger, args []string) error {
	name := args[0]
	rest := args[1:]

	var cmd command
	if group, ok := groups[name]; ok {
		if len(rest) == 0 {
			printUsage()
			return fmt.Errorf("%s requires a subcommand", name)
		}
		cmd, ok = group[rest[0]]
		if !ok {
			printUsage()
			return fmt.Errorf("unknown %s command: %s", name, rest[0])
		}
		rest = rest[1:]
	}

	switch name {
	case "portal", "case", "timesheet", "sync":
	case "dashboard":
		cmd = cli.DashboardCommand
	case "serve":
		cmd = cli.ServeCommand
	case "mcp":
		cmd = func(ctx context.Context, env *cli.Env, _ []string) error {
			return cli.MCPCommand(ctx, env)
		}
	case "tui":
		cmd = runTUI
	case "help":
		printUsage()
		return nil
	default:
		printUsage()
		return fmt.Errorf("unknown command: %s", name)
	}

	store, err := docstore.Open(cfg.DocstoreOptions(logger))
	if err != nil {
		return fmt.Errorf("failed to open document store: %w", err)
	}
	defer func() { _ = store.Close() }()

	env := &cli.Env{
		Config:  cfg,
		Store:   store,
		Logger:  logger,
		Version: version,
	}

	if needsDB[name] {
		database, err := db.OpenDatabase(cfg.DatabasePath)
		if err != nil {
			return fmt.Errorf("failed to open database: %w", err)
		}
		defer func() { _ = database.Close() }()
		logger.Debug("database opened", "path", cfg.DatabasePath)

		loc, err := cfg.Location()
		if err != nil {
			return err
		}
		env.DB = database
		env.Reports = reports.NewService(database, reports.WithLocation(loc))
	}

	return cmd(ctx, env, rest)
}

func runTUI(ctx context.Context, env *cli.Env, _ []string) error {
	opts := tui.Options{
		DB:       env.DB,
		Language: env.Config.Language(),
	}
	// The sync tab only offers an import once OAuth is set up.
	if _, err := sync.LoadToken(); err == nil {
		opts.CalendarSync = func(ctx context.Context) (*sync.ImportResult, error) {
			importer, err := cli.NewCalendarImporter(ctx, env, "primary")
			if err != nil {
				return nil, err
			}
			return importer.ImportSiteVisits(ctx, false)
		}
	}

	// The TUI owns the terminal; keep log lines out of the alt screen.
	return tui.Run(ctx, env.Store, opts, portal.WithLogger(log.New(io.Discard)))
}

func printUsage() {
	fmt.Printf(`fitout v%s - Interior fit-out project portal

USAGE:
  fitout [global flags] <command> [subcommand] [flags]

GLOBAL FLAGS:
  --version              Show version and exit
  --config <path>        Config file (default: ~/.config/fitout/config.json)
  --db-path <path>       Database path (default: ~/.local/share/fitout/fitout.db)

COMMANDS:
  portal                 Client project view of a case
  case                   Update case documents
  timesheet              Crew time entries and reports
  dashboard              Portfolio overview across all cases
  serve                  Run the web portal
  tui                    Interactive terminal portal
  mcp                    Start MCP server for Claude Desktop
  sync                   Google Calendar import

PORTAL COMMANDS:
  fitout portal show <case-id>       Print the project summary
    --json                             Print the project as JSON
  fitout portal watch <case-id>      Re-render on every change until interrupted
  fitout portal timeline <case-id>   Gantt chart of the execution plan
    --width <n>                        Bar width (default: 40)
  fitout portal graph <case-id>      Stage graph
    --format <dot|svg>                 Output format (default: dot)
    --output <file>                    Output file (default: stdout)

CASE COMMANDS:
  fitout case list                   List cases
    --query <text>                     Filter by project or client name
  fitout case import <file|->        Create or replace a case from JSON
  fitout case chat [flags] <case-id> <message>
    --sender <name>                    Sender name (required)
    --role <role>                      Sender role (default: designer)
    --attach <urls>                    Comma-separated attachment URLs
  fitout case log [flags] <case-id> <description>
    --percent <n>                      Completion percent
    --crew <n>                         Manpower count
    --photos <urls>                    Comma-separated photo URLs
    --blocker <text>                   Blocking issue
  fitout case installment [flags] <case-id> <installment-id>
    --status <status>                  Paid, Pending, ...
    --amount <n>                       Amount
    --due <date>                       Due date (YYYY-MM-DD)
  fitout case approval [flags] <case-id> <approval-id> <approved|rejected>
    --by <name>                        Responder
    --comment <text>                   Comment
  fitout case lead [--at <time>] <case-id> <milestone>
  fitout case phase [--percent <n>] <case-id> <stage-id> <status>

TIMESHEET COMMANDS:
  fitout timesheet add [flags]       Clock in
  fitout timesheet stop [flags]      Clock out
  fitout timesheet list [flags]      List entries
    --from <date> --to <date>          Date range
  fitout timesheet export [flags]    Write an xlsx report
    --kind <timesheet|overtime|untracked|projects>
    --output <file>                    Output file (default: <kind>-<date>.xlsx)

SERVE:
  fitout serve                       Web portal at http://127.0.0.1:8080
    --addr <host:port>                 Listen address
    --calendar-interval <duration>     Also import calendar events this often

SYNC COMMANDS:
  fitout sync init                   Authorize Google Calendar access
  fitout sync calendar               Import site visits and calls
    --initial                          Full import, ignoring the sync token
  fitout sync status                 Show importer status

EXAMPLES:
  # Import a case and follow it live
  fitout case import whitefield.json
  fitout portal watch c1

  # Mark a payment received
  fitout case installment --status Paid c1 i2

  # Export last month's overtime
  fitout timesheet export --kind overtime --from 2025-02-01 --to 2025-03-01 --output ot.xlsx

`, version)
}
