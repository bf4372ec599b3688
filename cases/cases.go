// ABOUTME: Write-path helpers for case documents: chat, daily logs, payments, approvals
// ABOUTME: Each helper performs one store call; subscribers see the result through their stream
package cases

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"sort"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/harperreed/fitout/docstore"
	"github.com/harperreed/fitout/models"
	"github.com/harperreed/fitout/portal"
)

var (
	ErrCaseNotFound        = errors.New("case not found")
	ErrInstallmentNotFound = errors.New("installment not found")
	ErrApprovalNotFound    = errors.New("approval not found")
	ErrPhaseNotFound       = errors.New("phase not found")
	ErrInvalidInput        = errors.New("invalid input")
)

// Lister lists whole collections.
type Lister interface {
	List(ctx context.Context, collection string) ([]docstore.Snapshot, error)
}

func invalid(format string, args ...interface{}) error {
	return fmt.Errorf("%w: %s", ErrInvalidInput, fmt.Sprintf(format, args...))
}

func storeErr(caseID string, err error) error {
	if errors.Is(err, docstore.ErrNotFound) {
		return fmt.Errorf("%w: %s", ErrCaseNotFound, caseID)
	}
	return err
}

func stamp(at time.Time) time.Time {
	if at.IsZero() {
		return time.Now().UTC()
	}
	return at.UTC()
}

func isoString(t time.Time) string {
	return t.UTC().Format(time.RFC3339Nano)
}

// GetCase reads and decodes one case.
func GetCase(ctx context.Context, w docstore.Writer, caseID string) (*models.RawCase, error) {
	if caseID == "" {
		return nil, invalid("case id is required")
	}
	snap, err := w.Get(ctx, models.CollectionCases, caseID)
	if err != nil {
		return nil, err
	}
	if !snap.Exists {
		return nil, fmt.Errorf("%w: %s", ErrCaseNotFound, caseID)
	}
	return portal.DecodeCase(snap.Data)
}

// ListCases returns every decodable case ordered by id. Documents that fail
// to decode are skipped.
func ListCases(ctx context.Context, l Lister) ([]*models.RawCase, error) {
	snaps, err := l.List(ctx, models.CollectionCases)
	if err != nil {
		return nil, err
	}
	out := make([]*models.RawCase, 0, len(snaps))
	for _, s := range snaps {
		raw, err := portal.DecodeCase(s.Data)
		if err != nil {
			continue
		}
		if raw.ID == "" {
			raw.ID = s.ID
		}
		out = append(out, raw)
	}
	sort.Slice(out, func(i, j int) bool { return out[i].ID < out[j].ID })
	return out, nil
}

// ImportCase validates a case document and stores it under its id. Documents
// without a schemaVersion are stamped with the current one.
func ImportCase(ctx context.Context, w docstore.Writer, data []byte) (*models.RawCase, error) {
	raw, err := portal.DecodeCase(data)
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrInvalidInput, err)
	}
	if strings.TrimSpace(raw.ID) == "" {
		return nil, invalid("case id is required")
	}

	var doc map[string]interface{}
	if err := json.Unmarshal(data, &doc); err != nil {
		return nil, fmt.Errorf("%w: %v", ErrInvalidInput, err)
	}
	if _, ok := doc["schemaVersion"]; !ok {
		doc["schemaVersion"] = models.CurrentSchemaVersion
		raw.SchemaVersion = models.CurrentSchemaVersion
	}

	if err := w.Set(ctx, models.CollectionCases, raw.ID, doc); err != nil {
		return nil, err
	}
	return raw, nil
}

// ChatInput is a new chat message.
type ChatInput struct {
	SenderID    string
	SenderName  string
	Role        string
	Message     string
	Type        string
	Attachments []string
	At          time.Time
}

// SendChatMessage appends a message to the case chat.
func SendChatMessage(ctx context.Context, w docstore.Writer, caseID string, in ChatInput) (*models.RawChatMessage, error) {
	if strings.TrimSpace(in.SenderName) == "" {
		return nil, invalid("sender name is required")
	}
	if strings.TrimSpace(in.Message) == "" && len(in.Attachments) == 0 {
		return nil, invalid("message or attachment is required")
	}
	msgType := in.Type
	if msgType == "" {
		msgType = "text"
	}

	msg := &models.RawChatMessage{
		ID:          uuid.New().String(),
		SenderID:    in.SenderID,
		SenderName:  in.SenderName,
		Role:        in.Role,
		Message:     in.Message,
		Type:        msgType,
		Timestamp:   models.NewTimestamp(stamp(in.At)),
		Attachments: in.Attachments,
	}
	if err := w.Append(ctx, models.CollectionCases, caseID, "chat", msg); err != nil {
		return nil, storeErr(caseID, err)
	}
	return msg, nil
}

// DailyLogInput is one site progress report.
type DailyLogInput struct {
	Date              time.Time
	WorkDescription   string
	CompletionPercent float64
	ManpowerCount     int
	Photos            []string
	Blocker           string
	CreatedBy         string
}

// AppendDailyLog appends a progress report to the case.
func AppendDailyLog(ctx context.Context, w docstore.Writer, caseID string, in DailyLogInput) (*models.RawDailyLog, error) {
	if strings.TrimSpace(in.WorkDescription) == "" {
		return nil, invalid("work description is required")
	}
	if in.CompletionPercent < 0 || in.CompletionPercent > 100 {
		return nil, invalid("completion percent %.1f outside 0-100", in.CompletionPercent)
	}
	if in.ManpowerCount < 0 {
		return nil, invalid("manpower count cannot be negative")
	}

	entry := &models.RawDailyLog{
		ID:                uuid.New().String(),
		Date:              models.NewTimestamp(stamp(in.Date)),
		WorkDescription:   in.WorkDescription,
		CompletionPercent: models.Number(in.CompletionPercent),
		ManpowerCount:     models.Number(in.ManpowerCount),
		Photos:            in.Photos,
		Blocker:           in.Blocker,
		CreatedBy:         in.CreatedBy,
	}
	if err := w.Append(ctx, models.CollectionCases, caseID, "dailyLogs", entry); err != nil {
		return nil, storeErr(caseID, err)
	}
	return entry, nil
}

// MarkLeadMilestone records when a known lead-journey milestone happened.
func MarkLeadMilestone(ctx context.Context, w docstore.Writer, caseID, key string, at time.Time) error {
	if !portal.IsLeadMilestone(key) {
		return invalid("unknown lead milestone %q", key)
	}
	if err := w.Update(ctx, models.CollectionCases, caseID, "leadJourney."+key, isoString(stamp(at))); err != nil {
		return storeErr(caseID, err)
	}
	return nil
}
