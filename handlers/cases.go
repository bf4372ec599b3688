// ABOUTME: Case write MCP tool handlers
// ABOUTME: Implements chat, daily log, installment, approval, lead milestone, and phase tools
package handlers

import (
	"context"
	"fmt"
	"strings"
	"time"

	"github.com/harperreed/fitout/cases"
	"github.com/harperreed/fitout/docstore"
	"github.com/modelcontextprotocol/go-sdk/mcp"
)

type CaseHandlers struct {
	store docstore.Store
}

func NewCaseHandlers(store docstore.Store) *CaseHandlers {
	return &CaseHandlers{store: store}
}

// parseOptionalTime accepts RFC3339 or a bare date. Empty input gives the zero
// time, which the cases package replaces with now.
func parseOptionalTime(field, value string) (time.Time, error) {
	if value == "" {
		return time.Time{}, nil
	}
	if t, err := time.Parse(time.RFC3339, value); err == nil {
		return t, nil
	}
	t, err := time.Parse("2006-01-02", value)
	if err != nil {
		return time.Time{}, fmt.Errorf("invalid %s format (use ISO 8601/RFC3339): %w", field, err)
	}
	return t, nil
}

type SendChatMessageInput struct {
	CaseID      string   `json:"case_id" jsonschema:"Case ID (required)"`
	SenderName  string   `json:"sender_name" jsonschema:"Display name of the sender (required)"`
	SenderID    string   `json:"sender_id,omitempty" jsonschema:"User ID of the sender"`
	Role        string   `json:"role,omitempty" jsonschema:"Sender role, e.g. client or project_manager"`
	Message     string   `json:"message" jsonschema:"Message text"`
	Type        string   `json:"type,omitempty" jsonschema:"Message type (default text)"`
	Attachments []string `json:"attachments,omitempty" jsonschema:"Attachment URLs"`
}

type ChatMessageOutput struct {
	ID        string `json:"id"`
	CaseID    string `json:"case_id"`
	Timestamp string `json:"timestamp"`
}

func (h *CaseHandlers) SendChatMessage(ctx context.Context, request *mcp.CallToolRequest, input SendChatMessageInput) (*mcp.CallToolResult, ChatMessageOutput, error) {
	if input.CaseID == "" {
		return nil, ChatMessageOutput{}, fmt.Errorf("case_id is required")
	}

	msg, err := cases.SendChatMessage(ctx, h.store, input.CaseID, cases.ChatInput{
		SenderID:    input.SenderID,
		SenderName:  input.SenderName,
		Role:        input.Role,
		Message:     input.Message,
		Type:        input.Type,
		Attachments: input.Attachments,
	})
	if err != nil {
		return nil, ChatMessageOutput{}, fmt.Errorf("failed to send message: %w", err)
	}

	ts, _ := msg.Timestamp.Time()
	return nil, ChatMessageOutput{
		ID:        msg.ID,
		CaseID:    input.CaseID,
		Timestamp: ts.Format(time.RFC3339),
	}, nil
}

type AppendDailyLogInput struct {
	CaseID            string   `json:"case_id" jsonschema:"Case ID (required)"`
	Date              string   `json:"date,omitempty" jsonschema:"Report date (YYYY-MM-DD or RFC3339, default now)"`
	WorkDescription   string   `json:"work_description" jsonschema:"Work carried out (required)"`
	CompletionPercent float64  `json:"completion_percent,omitempty" jsonschema:"Overall completion, 0-100"`
	ManpowerCount     int      `json:"manpower_count,omitempty" jsonschema:"Workers on site"`
	Photos            []string `json:"photos,omitempty" jsonschema:"Photo URLs"`
	Blocker           string   `json:"blocker,omitempty" jsonschema:"Anything blocking progress"`
	CreatedBy         string   `json:"created_by,omitempty" jsonschema:"Author of the report"`
}

type DailyLogOutput struct {
	ID     string `json:"id"`
	CaseID string `json:"case_id"`
}

func (h *CaseHandlers) AppendDailyLog(ctx context.Context, request *mcp.CallToolRequest, input AppendDailyLogInput) (*mcp.CallToolResult, DailyLogOutput, error) {
	if input.CaseID == "" {
		return nil, DailyLogOutput{}, fmt.Errorf("case_id is required")
	}
	date, err := parseOptionalTime("date", input.Date)
	if err != nil {
		return nil, DailyLogOutput{}, err
	}

	entry, err := cases.AppendDailyLog(ctx, h.store, input.CaseID, cases.DailyLogInput{
		Date:              date,
		WorkDescription:   input.WorkDescription,
		CompletionPercent: input.CompletionPercent,
		ManpowerCount:     input.ManpowerCount,
		Photos:            input.Photos,
		Blocker:           input.Blocker,
		CreatedBy:         input.CreatedBy,
	})
	if err != nil {
		return nil, DailyLogOutput{}, fmt.Errorf("failed to append daily log: %w", err)
	}
	return nil, DailyLogOutput{ID: entry.ID, CaseID: input.CaseID}, nil
}

type UpdateInstallmentInput struct {
	CaseID        string   `json:"case_id" jsonschema:"Case ID (required)"`
	InstallmentID string   `json:"installment_id" jsonschema:"Installment ID (required)"`
	Status        string   `json:"status,omitempty" jsonschema:"New status: Pending, Paid, or Overdue"`
	Amount        *float64 `json:"amount,omitempty" jsonschema:"New amount"`
	MilestoneName string   `json:"milestone_name,omitempty" jsonschema:"New milestone name"`
	DueDate       string   `json:"due_date,omitempty" jsonschema:"New due date (YYYY-MM-DD or RFC3339)"`
	PaidAt        string   `json:"paid_at,omitempty" jsonschema:"Payment time when marking Paid (default now)"`
}

type UpdateOutput struct {
	CaseID  string `json:"case_id"`
	Updated string `json:"updated"`
}

func (h *CaseHandlers) UpdateInstallment(ctx context.Context, request *mcp.CallToolRequest, input UpdateInstallmentInput) (*mcp.CallToolResult, UpdateOutput, error) {
	if input.CaseID == "" || input.InstallmentID == "" {
		return nil, UpdateOutput{}, fmt.Errorf("case_id and installment_id are required")
	}

	var patch cases.InstallmentPatch
	if input.Status != "" {
		patch.Status = &input.Status
	}
	patch.Amount = input.Amount
	if input.MilestoneName != "" {
		patch.MilestoneName = &input.MilestoneName
	}
	if input.DueDate != "" {
		due, err := parseOptionalTime("due_date", input.DueDate)
		if err != nil {
			return nil, UpdateOutput{}, err
		}
		patch.DueDate = &due
	}
	paidAt, err := parseOptionalTime("paid_at", input.PaidAt)
	if err != nil {
		return nil, UpdateOutput{}, err
	}
	patch.PaidAt = paidAt

	if err := cases.UpdateInstallment(ctx, h.store, input.CaseID, input.InstallmentID, patch); err != nil {
		return nil, UpdateOutput{}, fmt.Errorf("failed to update installment: %w", err)
	}
	return nil, UpdateOutput{CaseID: input.CaseID, Updated: input.InstallmentID}, nil
}

type RespondToApprovalInput struct {
	CaseID      string `json:"case_id" jsonschema:"Case ID (required)"`
	ApprovalID  string `json:"approval_id" jsonschema:"Approval ID (required)"`
	Decision    string `json:"decision" jsonschema:"approved or rejected (required)"`
	RespondedBy string `json:"responded_by,omitempty" jsonschema:"Who made the decision"`
	Comment     string `json:"comment,omitempty" jsonschema:"Optional comment"`
}

func (h *CaseHandlers) RespondToApproval(ctx context.Context, request *mcp.CallToolRequest, input RespondToApprovalInput) (*mcp.CallToolResult, UpdateOutput, error) {
	if input.CaseID == "" || input.ApprovalID == "" {
		return nil, UpdateOutput{}, fmt.Errorf("case_id and approval_id are required")
	}

	err := cases.RespondToApproval(ctx, h.store, input.CaseID, input.ApprovalID, cases.ApprovalResponse{
		Decision:    strings.ToLower(input.Decision),
		RespondedBy: input.RespondedBy,
		Comment:     input.Comment,
	})
	if err != nil {
		return nil, UpdateOutput{}, fmt.Errorf("failed to record decision: %w", err)
	}
	return nil, UpdateOutput{CaseID: input.CaseID, Updated: input.ApprovalID}, nil
}

type MarkLeadMilestoneInput struct {
	CaseID    string `json:"case_id" jsonschema:"Case ID (required)"`
	Milestone string `json:"milestone" jsonschema:"callInitiated, siteVisitCompleted, designPresented, quotationShared, or bookingConfirmed"`
	At        string `json:"at,omitempty" jsonschema:"When it happened (default now)"`
}

func (h *CaseHandlers) MarkLeadMilestone(ctx context.Context, request *mcp.CallToolRequest, input MarkLeadMilestoneInput) (*mcp.CallToolResult, UpdateOutput, error) {
	if input.CaseID == "" {
		return nil, UpdateOutput{}, fmt.Errorf("case_id is required")
	}
	at, err := parseOptionalTime("at", input.At)
	if err != nil {
		return nil, UpdateOutput{}, err
	}

	if err := cases.MarkLeadMilestone(ctx, h.store, input.CaseID, input.Milestone, at); err != nil {
		return nil, UpdateOutput{}, fmt.Errorf("failed to mark milestone: %w", err)
	}
	return nil, UpdateOutput{CaseID: input.CaseID, Updated: input.Milestone}, nil
}

type UpdatePhaseInput struct {
	CaseID            string   `json:"case_id" jsonschema:"Case ID (required)"`
	StageID           int      `json:"stage_id" jsonschema:"Stage number as shown in the portal, starting at 1"`
	Status            string   `json:"status" jsonschema:"pending, in_progress, delayed, or completed"`
	CompletionPercent *float64 `json:"completion_percent,omitempty" jsonschema:"Phase completion, 0-100"`
}

func (h *CaseHandlers) UpdatePhase(ctx context.Context, request *mcp.CallToolRequest, input UpdatePhaseInput) (*mcp.CallToolResult, UpdateOutput, error) {
	if input.CaseID == "" {
		return nil, UpdateOutput{}, fmt.Errorf("case_id is required")
	}

	err := cases.UpdatePhaseStatus(ctx, h.store, input.CaseID, input.StageID, cases.PhasePatch{
		Status:            input.Status,
		CompletionPercent: input.CompletionPercent,
	})
	if err != nil {
		return nil, UpdateOutput{}, fmt.Errorf("failed to update phase: %w", err)
	}
	return nil, UpdateOutput{CaseID: input.CaseID, Updated: fmt.Sprintf("stage %d", input.StageID)}, nil
}
