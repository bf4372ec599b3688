// ABOUTME: Portfolio dashboard CLI command
// ABOUTME: Prints pipeline, collections, overdue installments, and stale sites
package cli

import (
	"context"
	"fmt"

	"github.com/harperreed/fitout/cases"
	"github.com/harperreed/fitout/models"
	"github.com/harperreed/fitout/portal"
	"github.com/harperreed/fitout/viz"
)

// DashboardCommand renders the portfolio dashboard for every case.
func DashboardCommand(ctx context.Context, env *Env, args []string) error {
	fs := env.newFlagSet("dashboard")
	if err := fs.Parse(args); err != nil {
		return err
	}

	all, err := cases.ListCases(ctx, env.Store)
	if err != nil {
		return fmt.Errorf("failed to list cases: %w", err)
	}

	now := env.now()
	projects := make([]*models.ClientProject, 0, len(all))
	for _, raw := range all {
		projects = append(projects, portal.RawCaseToClientProject(raw, now))
	}

	stats := viz.GenerateDashboardStats(projects, now)
	_, err = fmt.Fprint(env.out(), viz.RenderDashboard(stats, env.language()))
	return err
}
