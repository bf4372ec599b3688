// ABOUTME: Client portal CLI commands
// ABOUTME: Shows, watches, and charts the client view of a case
package cli

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"os"
	"strings"

	"github.com/goccy/go-graphviz"
	"github.com/harperreed/fitout/cases"
	"github.com/harperreed/fitout/portal"
	"github.com/harperreed/fitout/viz"
	"golang.org/x/term"
)

// PortalShowCommand prints the client project for one case.
func PortalShowCommand(ctx context.Context, env *Env, args []string) error {
	fs := env.newFlagSet("portal show")
	asJSON := fs.Bool("json", false, "Print the projection as JSON")
	if err := fs.Parse(args); err != nil {
		return err
	}
	caseID, err := caseArg(fs, "fitout portal show [--json] <case-id>")
	if err != nil {
		return err
	}

	raw, err := cases.GetCase(ctx, env.Store, caseID)
	if err != nil {
		return err
	}
	p := portal.RawCaseToClientProject(raw, env.now())

	if *asJSON {
		enc := json.NewEncoder(env.out())
		enc.SetIndent("", "  ")
		return enc.Encode(p)
	}
	_, err = fmt.Fprint(env.out(), viz.RenderPortalSummary(p, env.language()))
	return err
}

// isTerminal reports whether w is an interactive terminal.
func isTerminal(w io.Writer) bool {
	f, ok := w.(*os.File)
	return ok && term.IsTerminal(int(f.Fd()))
}

// PortalWatchCommand follows a case until ctx is cancelled. On a terminal
// the summary is redrawn in place; otherwise every state is written as one
// JSON line.
func PortalWatchCommand(ctx context.Context, env *Env, args []string) error {
	fs := env.newFlagSet("portal watch")
	asJSON := fs.Bool("json", false, "Emit JSON lines even on a terminal")
	if err := fs.Parse(args); err != nil {
		return err
	}
	caseID, err := caseArg(fs, "fitout portal watch [--json] <case-id>")
	if err != nil {
		return err
	}

	out := env.out()
	redraw := !*asJSON && isTerminal(out)
	tag := env.language()

	watcher := portal.NewWatcher(env.Store, portal.WithLogger(env.logger()), portal.WithClock(env.now))
	defer watcher.Close()

	states := make(chan portal.State, 16)
	stop := watcher.OnChange(func(st portal.State) {
		select {
		case states <- st:
		case <-ctx.Done():
		}
	})
	defer stop()

	watcher.Watch(caseID)

	for {
		select {
		case <-ctx.Done():
			return nil
		case st := <-states:
			if redraw {
				// Clear screen and home the cursor.
				_, _ = fmt.Fprint(out, "\033[H\033[2J")
				switch {
				case st.Loading:
					_, _ = fmt.Fprintln(out, "Loading...")
				case st.Project != nil:
					_, _ = fmt.Fprint(out, viz.RenderPortalSummary(st.Project, tag))
				}
				if st.Error != "" {
					_, _ = fmt.Fprintf(out, "\nError: %s\n", st.Error)
				}
			} else {
				data, err := json.Marshal(st)
				if err != nil {
					return fmt.Errorf("failed to encode state: %w", err)
				}
				if _, err := fmt.Fprintln(out, string(data)); err != nil {
					return err
				}
			}

			if !st.Loading && st.Project == nil && st.Error == portal.ErrProjectNotFound.Error() {
				return fmt.Errorf("case %s: %w", caseID, cases.ErrCaseNotFound)
			}
		}
	}
}

// PortalTimelineCommand prints the stage Gantt chart.
func PortalTimelineCommand(ctx context.Context, env *Env, args []string) error {
	fs := env.newFlagSet("portal timeline")
	width := fs.Int("width", 40, "Chart width in columns")
	if err := fs.Parse(args); err != nil {
		return err
	}
	caseID, err := caseArg(fs, "fitout portal timeline [--width n] <case-id>")
	if err != nil {
		return err
	}

	raw, err := cases.GetCase(ctx, env.Store, caseID)
	if err != nil {
		return err
	}
	p := portal.RawCaseToClientProject(raw, env.now())

	out := env.out()
	_, _ = fmt.Fprintf(out, "%s\n", p.ProjectName)
	if p.StartDate != nil && p.EndDate != nil {
		_, _ = fmt.Fprintf(out, "%s → %s\n", p.StartDate.Format("02 Jan 2006"), p.EndDate.Format("02 Jan 2006"))
	}
	if len(p.Stages) == 0 {
		_, err = fmt.Fprintln(out, "No stages planned")
		return err
	}
	_, err = fmt.Fprint(out, viz.RenderGantt(p, *width))
	return err
}

// PortalGraphCommand renders the stage timeline with GraphViz.
func PortalGraphCommand(ctx context.Context, env *Env, args []string) error {
	fs := env.newFlagSet("portal graph")
	format := fs.String("format", "dot", "Output format (dot, svg)")
	output := fs.String("output", "", "Output file (default: stdout)")
	if err := fs.Parse(args); err != nil {
		return err
	}
	caseID, err := caseArg(fs, "fitout portal graph [--format dot|svg] [--output file] <case-id>")
	if err != nil {
		return err
	}

	var gvFormat graphviz.Format
	switch strings.ToLower(*format) {
	case "dot":
		gvFormat = graphviz.XDOT
	case "svg":
		gvFormat = graphviz.SVG
	default:
		return fmt.Errorf("unknown format %q (use dot or svg)", *format)
	}

	raw, err := cases.GetCase(ctx, env.Store, caseID)
	if err != nil {
		return err
	}
	data, err := viz.GenerateTimelineGraph(ctx, portal.RawCaseToClientProject(raw, env.now()), gvFormat)
	if err != nil {
		return err
	}

	if *output == "" {
		_, err = env.out().Write(data)
		return err
	}
	if err := os.WriteFile(*output, data, 0644); err != nil {
		return fmt.Errorf("failed to write output file: %w", err)
	}
	_, _ = fmt.Fprintf(env.out(), "Graph written to %s\n", *output)
	return nil
}
