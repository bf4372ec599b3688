// ABOUTME: Client-facing project projection derived from a case record
// ABOUTME: Plain read-only shapes consumed by the portal surfaces
package models

import (
	"encoding/json"
	"time"
)

// Journey stage statuses as shown to clients.
const (
	StageCompleted  = "completed"
	StageInProgress = "in-progress"
	StageLocked     = "locked"
)

// Client request statuses.
const (
	RequestOpen       = "open"
	RequestResolved   = "resolved"
	RequestInProgress = "in-progress"
)

// ClientProject is the denormalized view of one case. It has no identity of
// its own and is rebuilt from scratch on every source change.
type ClientProject struct {
	ID          string     `json:"id"`
	ClientName  string     `json:"clientName"`
	ProjectName string     `json:"projectName"`
	StartDate   *time.Time `json:"startDate,omitempty"`
	EndDate     *time.Time `json:"expectedEndDate,omitempty"`

	PaymentMilestones []PaymentMilestone      `json:"paymentMilestones"`
	Stages            []JourneyStage          `json:"stages"`
	LeadJourneySteps  []LeadJourneyStep       `json:"leadJourneySteps"`
	DailyUpdates      []ClientDailyUpdateItem `json:"dailyUpdates"`
	Messages          []ClientMessage         `json:"messages"`
	Requests          []ClientRequest         `json:"requests"`
	Health            ProjectHealth           `json:"health"`

	TotalPaid                float64 `json:"totalPaid"`
	TotalBudget              float64 `json:"totalBudget"`
	BudgetUtilizationPercent int     `json:"budgetUtilizationPercent"`
	DaysRemaining            int     `json:"daysRemaining"`
	TotalDurationDays        int     `json:"totalDurationDays"`
	DaysCompleted            int     `json:"daysCompleted"`
	CurrentStageID           int     `json:"currentStageId"`
}

type PaymentMilestone struct {
	ID         string     `json:"id"`
	Name       string     `json:"name"`
	Percentage float64    `json:"percentage"`
	Amount     float64    `json:"amount"`
	Status     string     `json:"status"`
	DueDate    *time.Time `json:"dueDate,omitempty"`
	PaidAt     *time.Time `json:"paidAt,omitempty"`
	IsPaid     bool       `json:"isPaid"`
	IsUnlocked bool       `json:"isUnlocked"`
}

type JourneyStage struct {
	ID                int        `json:"id"`
	Name              string     `json:"name"`
	Status            string     `json:"status"`
	StartDate         *time.Time `json:"startDate,omitempty"`
	EndDate           *time.Time `json:"endDate,omitempty"`
	CompletionPercent float64    `json:"completionPercent"`
	ResponsibleRole   string     `json:"responsibleRole"`
}

// LeadJourneyStep is a reached lead milestone. CompletedAt is nil when the
// stored value is present but not a usable date.
type LeadJourneyStep struct {
	Key         string     `json:"key"`
	Label       string     `json:"label"`
	Status      string     `json:"status"`
	CompletedAt *time.Time `json:"completedAt,omitempty"`
}

type ClientDailyUpdateItem struct {
	ID                string     `json:"id"`
	Date              *time.Time `json:"date,omitempty"`
	WorkDescription   string     `json:"workDescription"`
	CompletionPercent float64    `json:"completionPercent"`
	ManpowerCount     int        `json:"manpowerCount"`
	Photos            []string   `json:"photos"`
	Blocker           string     `json:"blocker,omitempty"`
}

type ClientMessage struct {
	ID          string    `json:"id"`
	SenderID    string    `json:"senderId"`
	SenderName  string    `json:"senderName"`
	Role        string    `json:"role"`
	Message     string    `json:"message"`
	Type        string    `json:"type"`
	Timestamp   time.Time `json:"timestamp"`
	Attachments []string  `json:"attachments"`
}

type ClientRequest struct {
	ID           string           `json:"id"`
	Type         string           `json:"type"`
	Status       string           `json:"status"`
	Payload      json.RawMessage  `json:"payload,omitempty"`
	CreatedAt    *time.Time       `json:"createdAt,omitempty"`
	Conversation []RequestMessage `json:"conversation"`
}

// RequestMessage is one entry in a request's conversation thread.
type RequestMessage struct {
	SenderName string    `json:"senderName"`
	Message    string    `json:"message"`
	Timestamp  time.Time `json:"timestamp"`
}

type ProjectHealth struct {
	Status               string  `json:"status"`
	RiskLevel            string  `json:"riskLevel"`
	CompletionPercentage float64 `json:"completionPercentage"`
}
