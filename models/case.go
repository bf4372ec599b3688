// ABOUTME: Versioned input schema for case documents in the cases collection
// ABOUTME: Mirrors the backend-owned record; only fields the portal reads or writes are declared
package models

import "encoding/json"

// CurrentSchemaVersion is the newest case document layout this module understands.
// Version 0 is the legacy, unversioned layout; its fields are identical.
const CurrentSchemaVersion = 1

// CollectionCases is the document store collection holding case records.
const CollectionCases = "cases"

// Installment statuses as written by the finance team.
const (
	InstallmentPending = "Pending"
	InstallmentPaid    = "Paid"
	InstallmentOverdue = "Overdue"
)

// Phase statuses in the execution plan.
const (
	PhasePending    = "pending"
	PhaseInProgress = "in_progress"
	PhaseDelayed    = "delayed"
	PhaseCompleted  = "completed"
)

// Approval statuses.
const (
	ApprovalPending  = "pending"
	ApprovalApproved = "approved"
	ApprovalRejected = "rejected"
)

// RawCase is a case document as stored.
type RawCase struct {
	SchemaVersion int                  `json:"schemaVersion,omitempty"`
	ID            string               `json:"id"`
	ClientName    string               `json:"clientName,omitempty"`
	ProjectName   string               `json:"projectName,omitempty"`
	Title         string               `json:"title,omitempty"`
	Financial     RawFinancial         `json:"financial"`
	ExecutionPlan RawExecutionPlan     `json:"executionPlan"`
	LeadJourney   map[string]Timestamp `json:"leadJourney,omitempty"`
	DailyLogs     []RawDailyLog        `json:"dailyLogs,omitempty"`
	Chat          []RawChatMessage     `json:"chat,omitempty"`
	Approvals     []RawApproval        `json:"approvals,omitempty"`
	Health        RawHealth            `json:"health"`
	CreatedAt     Timestamp            `json:"createdAt"`
	UpdatedAt     Timestamp            `json:"updatedAt"`
}

// DisplayName returns projectName, falling back to title.
func (c *RawCase) DisplayName() string {
	if c.ProjectName != "" {
		return c.ProjectName
	}
	return c.Title
}

type RawFinancial struct {
	TotalBudget         Number           `json:"totalBudget"`
	InstallmentSchedule []RawInstallment `json:"installmentSchedule,omitempty"`
}

type RawInstallment struct {
	ID            string    `json:"id"`
	MilestoneName string    `json:"milestoneName"`
	Percentage    Number    `json:"percentage"`
	Amount        Number    `json:"amount"`
	Status        string    `json:"status"`
	DueDate       Timestamp `json:"dueDate"`
	PaidAt        Timestamp `json:"paidAt"`
}

type RawExecutionPlan struct {
	StartDate Timestamp  `json:"startDate"`
	EndDate   Timestamp  `json:"endDate"`
	Phases    []RawPhase `json:"phases,omitempty"`
}

type RawPhase struct {
	Name              string    `json:"name"`
	StartDate         Timestamp `json:"startDate"`
	EndDate           Timestamp `json:"endDate"`
	Status            string    `json:"status"`
	CompletionPercent Number    `json:"completionPercent"`
}

type RawDailyLog struct {
	ID                string    `json:"id"`
	Date              Timestamp `json:"date"`
	WorkDescription   string    `json:"workDescription"`
	CompletionPercent Number    `json:"completionPercent"`
	ManpowerCount     Number    `json:"manpowerCount"`
	Photos            []string  `json:"photos,omitempty"`
	Blocker           string    `json:"blocker,omitempty"`
	CreatedBy         string    `json:"createdBy,omitempty"`
}

type RawChatMessage struct {
	ID          string    `json:"id"`
	SenderID    string    `json:"senderId"`
	SenderName  string    `json:"senderName"`
	Role        string    `json:"role"`
	Message     string    `json:"message"`
	Type        string    `json:"type"`
	Timestamp   Timestamp `json:"timestamp"`
	Attachments []string  `json:"attachments,omitempty"`
}

type RawApproval struct {
	ID          string          `json:"id"`
	Type        string          `json:"type"`
	Status      string          `json:"status"`
	Payload     json.RawMessage `json:"payload,omitempty"`
	CreatedAt   Timestamp       `json:"createdAt"`
	RespondedAt Timestamp       `json:"respondedAt"`
	RespondedBy string          `json:"respondedBy,omitempty"`
	Comment     string          `json:"comment,omitempty"`
}

type RawHealth struct {
	Status               string         `json:"status,omitempty"`
	RiskLevel            string         `json:"riskLevel,omitempty"`
	CompletionPercentage Number         `json:"completionPercentage"`
	DaysRemaining        OptionalNumber `json:"daysRemaining"`
}
