// ABOUTME: MCP resource handlers for exposing portal data
// ABOUTME: Provides read-only access to cases and client projections via URI
package handlers

import (
	"context"
	"encoding/json"
	"fmt"
	"strings"
	"time"

	"github.com/harperreed/fitout/cases"
	"github.com/harperreed/fitout/docstore"
	"github.com/harperreed/fitout/portal"
	"github.com/modelcontextprotocol/go-sdk/mcp"
)

const resourceScheme = "fitout://"

type ResourceHandlers struct {
	store docstore.Store
	now   func() time.Time
}

func NewResourceHandlers(store docstore.Store, now func() time.Time) *ResourceHandlers {
	if now == nil {
		now = time.Now
	}
	return &ResourceHandlers{store: store, now: now}
}

// CaseListResource describes fitout://cases.
func CaseListResource() *mcp.Resource {
	return &mcp.Resource{
		Name:        "case_list",
		Title:       "Cases",
		Description: "Every case with its client and project name",
		MIMEType:    "application/json",
		URI:         resourceScheme + "cases",
	}
}

// ProjectResourceTemplate describes fitout://cases/{case_id}/project.
func ProjectResourceTemplate() *mcp.ResourceTemplate {
	return &mcp.ResourceTemplate{
		Name:        "client_project",
		Title:       "Client Project",
		Description: "Client portal view of one case. URI format: fitout://cases/{case_id}/project",
		MIMEType:    "application/json",
		URITemplate: resourceScheme + "cases/{case_id}/project",
	}
}

// ReadResource handles resource read requests
func (h *ResourceHandlers) ReadResource(ctx context.Context, request *mcp.ReadResourceRequest) (*mcp.ReadResourceResult, error) {
	uri := request.Params.URI
	if !strings.HasPrefix(uri, resourceScheme) {
		return nil, fmt.Errorf("invalid URI scheme: expected %s", resourceScheme)
	}

	parts := strings.Split(strings.TrimPrefix(uri, resourceScheme), "/")
	switch {
	case len(parts) == 1 && parts[0] == "cases":
		return h.readAllCases(ctx, uri)
	case len(parts) == 3 && parts[0] == "cases" && parts[2] == "project":
		return h.readProject(ctx, uri, parts[1])
	default:
		return nil, mcp.ResourceNotFoundError(uri)
	}
}

type caseListing struct {
	ID          string `json:"id"`
	ClientName  string `json:"client_name"`
	ProjectName string `json:"project_name"`
}

func (h *ResourceHandlers) readAllCases(ctx context.Context, uri string) (*mcp.ReadResourceResult, error) {
	all, err := cases.ListCases(ctx, h.store)
	if err != nil {
		return nil, fmt.Errorf("failed to fetch cases: %w", err)
	}

	listing := make([]caseListing, 0, len(all))
	for _, c := range all {
		listing = append(listing, caseListing{ID: c.ID, ClientName: c.ClientName, ProjectName: c.DisplayName()})
	}
	return jsonResource(uri, listing)
}

func (h *ResourceHandlers) readProject(ctx context.Context, uri, caseID string) (*mcp.ReadResourceResult, error) {
	raw, err := cases.GetCase(ctx, h.store, caseID)
	if err != nil {
		return nil, fmt.Errorf("failed to fetch case: %w", err)
	}
	return jsonResource(uri, portal.RawCaseToClientProject(raw, h.now()))
}

func jsonResource(uri string, v interface{}) (*mcp.ReadResourceResult, error) {
	data, err := json.MarshalIndent(v, "", "  ")
	if err != nil {
		return nil, fmt.Errorf("failed to marshal resource: %w", err)
	}

	return &mcp.ReadResourceResult{Contents: []*mcp.ResourceContents{
		{
			URI:      uri,
			MIMEType: "application/json",
			Text:     string(data),
		},
	}}, nil
}
