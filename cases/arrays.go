// ABOUTME: Array-element edits on case documents: installments, approvals and phases
// ABOUTME: Reads the case, patches one element and writes the whole array back
package cases

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"github.com/harperreed/fitout/docstore"
	"github.com/harperreed/fitout/models"
)

func loadDoc(ctx context.Context, w docstore.Writer, caseID string) (map[string]interface{}, error) {
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
	var doc map[string]interface{}
	if err := json.Unmarshal(snap.Data, &doc); err != nil {
		return nil, fmt.Errorf("failed to decode case %s: %w", caseID, err)
	}
	return doc, nil
}

func arrayAt(doc map[string]interface{}, keys ...string) []interface{} {
	var cur interface{} = doc
	for _, k := range keys {
		m, ok := cur.(map[string]interface{})
		if !ok {
			return nil
		}
		cur = m[k]
	}
	arr, _ := cur.([]interface{})
	return arr
}

func findByID(arr []interface{}, id string) map[string]interface{} {
	for _, e := range arr {
		m, ok := e.(map[string]interface{})
		if ok && m["id"] == id {
			return m
		}
	}
	return nil
}

// InstallmentPatch lists the installment fields to change. Nil fields are left alone.
type InstallmentPatch struct {
	Status        *string
	Amount        *float64
	MilestoneName *string
	DueDate       *time.Time
	PaidAt        time.Time
}

// UpdateInstallment edits one entry of financial.installmentSchedule. Marking
// an installment Paid stamps paidAt when it has none; any other status clears it.
func UpdateInstallment(ctx context.Context, w docstore.Writer, caseID, installmentID string, patch InstallmentPatch) error {
	if patch.Status != nil {
		switch *patch.Status {
		case models.InstallmentPending, models.InstallmentPaid, models.InstallmentOverdue:
		default:
			return invalid("unknown installment status %q", *patch.Status)
		}
	}
	if patch.Amount != nil && *patch.Amount < 0 {
		return invalid("amount cannot be negative")
	}

	doc, err := loadDoc(ctx, w, caseID)
	if err != nil {
		return err
	}
	schedule := arrayAt(doc, "financial", "installmentSchedule")
	inst := findByID(schedule, installmentID)
	if inst == nil {
		return fmt.Errorf("%w: %s", ErrInstallmentNotFound, installmentID)
	}

	if patch.Amount != nil {
		inst["amount"] = *patch.Amount
	}
	if patch.MilestoneName != nil {
		inst["milestoneName"] = *patch.MilestoneName
	}
	if patch.DueDate != nil {
		inst["dueDate"] = isoString(*patch.DueDate)
	}
	if patch.Status != nil {
		inst["status"] = *patch.Status
		if *patch.Status == models.InstallmentPaid {
			var existing models.Timestamp
			if raw, err := json.Marshal(inst["paidAt"]); err == nil {
				_ = existing.UnmarshalJSON(raw)
			}
			if !existing.IsSet() {
				inst["paidAt"] = isoString(stamp(patch.PaidAt))
			}
		} else {
			delete(inst, "paidAt")
		}
	}

	if err := w.Update(ctx, models.CollectionCases, caseID, "financial.installmentSchedule", schedule); err != nil {
		return storeErr(caseID, err)
	}
	return nil
}

// ApprovalResponse is a client's decision on a pending approval.
type ApprovalResponse struct {
	Decision    string
	RespondedBy string
	Comment     string
	At          time.Time
}

// RespondToApproval records a decision on one approval request.
func RespondToApproval(ctx context.Context, w docstore.Writer, caseID, approvalID string, resp ApprovalResponse) error {
	switch resp.Decision {
	case models.ApprovalApproved, models.ApprovalRejected:
	default:
		return invalid("decision must be %q or %q", models.ApprovalApproved, models.ApprovalRejected)
	}

	doc, err := loadDoc(ctx, w, caseID)
	if err != nil {
		return err
	}
	approvals := arrayAt(doc, "approvals")
	a := findByID(approvals, approvalID)
	if a == nil {
		return fmt.Errorf("%w: %s", ErrApprovalNotFound, approvalID)
	}

	a["status"] = resp.Decision
	a["respondedAt"] = isoString(stamp(resp.At))
	if resp.RespondedBy != "" {
		a["respondedBy"] = resp.RespondedBy
	}
	if resp.Comment != "" {
		a["comment"] = resp.Comment
	}

	if err := w.Update(ctx, models.CollectionCases, caseID, "approvals", approvals); err != nil {
		return storeErr(caseID, err)
	}
	return nil
}

// PhasePatch changes a phase's status and optionally its completion.
type PhasePatch struct {
	Status            string
	CompletionPercent *float64
}

// UpdatePhaseStatus edits the phase shown as stage stageID (1-based position
// in executionPlan.phases). Completing a phase without a percentage sets it to 100.
func UpdatePhaseStatus(ctx context.Context, w docstore.Writer, caseID string, stageID int, patch PhasePatch) error {
	switch patch.Status {
	case models.PhasePending, models.PhaseInProgress, models.PhaseDelayed, models.PhaseCompleted:
	default:
		return invalid("unknown phase status %q", patch.Status)
	}
	if p := patch.CompletionPercent; p != nil && (*p < 0 || *p > 100) {
		return invalid("completion percent %.1f outside 0-100", *p)
	}

	doc, err := loadDoc(ctx, w, caseID)
	if err != nil {
		return err
	}
	phases := arrayAt(doc, "executionPlan", "phases")
	if stageID < 1 || stageID > len(phases) {
		return fmt.Errorf("%w: stage %d", ErrPhaseNotFound, stageID)
	}
	phase, ok := phases[stageID-1].(map[string]interface{})
	if !ok {
		return fmt.Errorf("%w: stage %d", ErrPhaseNotFound, stageID)
	}

	phase["status"] = patch.Status
	switch {
	case patch.CompletionPercent != nil:
		phase["completionPercent"] = *patch.CompletionPercent
	case patch.Status == models.PhaseCompleted:
		phase["completionPercent"] = 100
	}

	if err := w.Update(ctx, models.CollectionCases, caseID, "executionPlan.phases", phases); err != nil {
		return storeErr(caseID, err)
	}
	return nil
}
