// ABOUTME: Portal MCP tool handlers
// ABOUTME: Implements get_client_project, list_cases, and get_project_timeline tools
package handlers

import (
	"context"
	"fmt"
	"strings"
	"time"

	"github.com/goccy/go-graphviz"
	"github.com/harperreed/fitout/cases"
	"github.com/harperreed/fitout/docstore"
	"github.com/harperreed/fitout/portal"
	"github.com/harperreed/fitout/viz"
	"github.com/modelcontextprotocol/go-sdk/mcp"
)

type PortalHandlers struct {
	store docstore.Store
	now   func() time.Time
}

func NewPortalHandlers(store docstore.Store, now func() time.Time) *PortalHandlers {
	if now == nil {
		now = time.Now
	}
	return &PortalHandlers{store: store, now: now}
}

type GetClientProjectInput struct {
	CaseID string `json:"case_id" jsonschema:"Case ID (required)"`
}

// GetClientProject returns the client projection of one case. The output is
// the projection itself, so no schema is advertised.
func (h *PortalHandlers) GetClientProject(ctx context.Context, request *mcp.CallToolRequest, input GetClientProjectInput) (*mcp.CallToolResult, any, error) {
	if input.CaseID == "" {
		return nil, nil, fmt.Errorf("case_id is required")
	}

	raw, err := cases.GetCase(ctx, h.store, input.CaseID)
	if err != nil {
		return nil, nil, fmt.Errorf("failed to load case: %w", err)
	}

	return nil, portal.RawCaseToClientProject(raw, h.now()), nil
}

type ListCasesInput struct {
	Query string `json:"query,omitempty" jsonschema:"Case-insensitive filter on client or project name"`
	Limit int    `json:"limit,omitempty" jsonschema:"Maximum results (default 50)"`
}

type CaseSummary struct {
	ID                       string  `json:"id"`
	ClientName               string  `json:"client_name"`
	ProjectName              string  `json:"project_name"`
	TotalBudget              float64 `json:"total_budget"`
	TotalPaid                float64 `json:"total_paid"`
	BudgetUtilizationPercent int     `json:"budget_utilization_percent"`
	CurrentStageID           int     `json:"current_stage_id"`
	DaysRemaining            int     `json:"days_remaining"`
}

type ListCasesOutput struct {
	Cases []CaseSummary `json:"cases"`
}

func (h *PortalHandlers) ListCases(ctx context.Context, request *mcp.CallToolRequest, input ListCasesInput) (*mcp.CallToolResult, ListCasesOutput, error) {
	limit := input.Limit
	if limit <= 0 {
		limit = 50
	}

	all, err := cases.ListCases(ctx, h.store)
	if err != nil {
		return nil, ListCasesOutput{}, fmt.Errorf("failed to list cases: %w", err)
	}

	now := h.now()
	out := ListCasesOutput{Cases: []CaseSummary{}}
	for _, raw := range all {
		if !matchesQuery(input.Query, raw.ClientName, raw.DisplayName()) {
			continue
		}
		p := portal.RawCaseToClientProject(raw, now)
		out.Cases = append(out.Cases, CaseSummary{
			ID:                       p.ID,
			ClientName:               p.ClientName,
			ProjectName:              p.ProjectName,
			TotalBudget:              p.TotalBudget,
			TotalPaid:                p.TotalPaid,
			BudgetUtilizationPercent: p.BudgetUtilizationPercent,
			CurrentStageID:           p.CurrentStageID,
			DaysRemaining:            p.DaysRemaining,
		})
		if len(out.Cases) >= limit {
			break
		}
	}
	return nil, out, nil
}

func matchesQuery(query string, fields ...string) bool {
	query = strings.ToLower(strings.TrimSpace(query))
	if query == "" {
		return true
	}
	for _, f := range fields {
		if strings.Contains(strings.ToLower(f), query) {
			return true
		}
	}
	return false
}

type GetProjectTimelineInput struct {
	CaseID string `json:"case_id" jsonschema:"Case ID (required)"`
}

type GetProjectTimelineOutput struct {
	CaseID    string `json:"case_id"`
	DOTSource string `json:"dot_source"`
	Gantt     string `json:"gantt"`
	NodeCount int    `json:"node_count"`
}

func (h *PortalHandlers) GetProjectTimeline(ctx context.Context, request *mcp.CallToolRequest, input GetProjectTimelineInput) (*mcp.CallToolResult, GetProjectTimelineOutput, error) {
	if input.CaseID == "" {
		return nil, GetProjectTimelineOutput{}, fmt.Errorf("case_id is required")
	}

	raw, err := cases.GetCase(ctx, h.store, input.CaseID)
	if err != nil {
		return nil, GetProjectTimelineOutput{}, fmt.Errorf("failed to load case: %w", err)
	}
	p := portal.RawCaseToClientProject(raw, h.now())

	dot, err := viz.GenerateTimelineGraph(ctx, p, graphviz.XDOT)
	if err != nil {
		return nil, GetProjectTimelineOutput{}, fmt.Errorf("failed to generate timeline: %w", err)
	}

	return nil, GetProjectTimelineOutput{
		CaseID:    p.ID,
		DOTSource: string(dot),
		Gantt:     viz.RenderGantt(p, 40),
		NodeCount: len(p.Stages),
	}, nil
}
