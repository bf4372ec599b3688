// ABOUTME: Graphviz rendering of a project's stage timeline
// ABOUTME: Draws stages as a left-to-right chain colored by status
package viz

import (
	"bytes"
	"context"
	"fmt"

	"github.com/goccy/go-graphviz"
	"github.com/goccy/go-graphviz/cgraph"
	"github.com/harperreed/fitout/models"
)

const dateLabel = "02 Jan"

func stageColor(status string) string {
	switch status {
	case models.StageCompleted:
		return "palegreen"
	case models.StageInProgress:
		return "gold"
	default:
		return "lightgrey"
	}
}

// GenerateTimelineGraph renders the stages of p as DOT (graphviz.XDOT) or
// SVG (graphviz.SVG).
func GenerateTimelineGraph(ctx context.Context, p *models.ClientProject, format graphviz.Format) ([]byte, error) {
	gv, err := graphviz.New(ctx)
	if err != nil {
		return nil, fmt.Errorf("failed to create graphviz instance: %w", err)
	}
	defer gv.Close()

	graph, err := gv.Graph()
	if err != nil {
		return nil, fmt.Errorf("failed to create graph: %w", err)
	}
	defer graph.Close()

	graph.SetRankDir(cgraph.LRRank)
	graph.SetLabel(fmt.Sprintf("%s (%d%% paid)", p.ProjectName, p.BudgetUtilizationPercent))

	var prev *cgraph.Node
	for _, s := range p.Stages {
		node, err := graph.CreateNodeByName(fmt.Sprintf("stage%d", s.ID))
		if err != nil {
			return nil, fmt.Errorf("failed to create node: %w", err)
		}

		label := fmt.Sprintf("%d. %s\n%.0f%%", s.ID, s.Name, s.CompletionPercent)
		if s.StartDate != nil && s.EndDate != nil {
			label += fmt.Sprintf("\n%s - %s", s.StartDate.Format(dateLabel), s.EndDate.Format(dateLabel))
		}
		node.SetLabel(label)
		node.SetShape("box")
		node.SetStyle("filled")
		node.SetFillColor(stageColor(s.Status))
		if s.ID == p.CurrentStageID {
			node.SetPenWidth(3)
		}

		if prev != nil {
			if _, err := graph.CreateEdgeByName("", prev, node); err != nil {
				return nil, fmt.Errorf("failed to create edge: %w", err)
			}
		}
		prev = node
	}

	var buf bytes.Buffer
	if err := gv.Render(ctx, graph, format, &buf); err != nil {
		return nil, fmt.Errorf("failed to render graph: %w", err)
	}
	return buf.Bytes(), nil
}
