// ABOUTME: Case CLI commands
// ABOUTME: Import, list, and update case documents from the command line
package cli

import (
	"context"
	"fmt"
	"io"
	"os"
	"strconv"
	"strings"
	"text/tabwriter"

	"github.com/harperreed/fitout/cases"
	"github.com/harperreed/fitout/portal"
	"golang.org/x/text/message"
)

// CaseListCommand lists cases with their payment and stage progress.
func CaseListCommand(ctx context.Context, env *Env, args []string) error {
	fs := env.newFlagSet("case list")
	query := fs.String("query", "", "Filter by id, project, or client name")
	if err := fs.Parse(args); err != nil {
		return err
	}

	all, err := cases.ListCases(ctx, env.Store)
	if err != nil {
		return fmt.Errorf("failed to list cases: %w", err)
	}

	q := strings.ToLower(strings.TrimSpace(*query))
	pr := message.NewPrinter(env.language())
	now := env.now()

	w := tabwriter.NewWriter(env.out(), 0, 0, 2, ' ', 0)
	_, _ = fmt.Fprintln(w, "ID\tPROJECT\tCLIENT\tPAID\tBUDGET\tSTAGE\tDAYS LEFT")
	_, _ = fmt.Fprintln(w, "--\t-------\t------\t----\t------\t-----\t---------")

	shown := 0
	for _, raw := range all {
		if q != "" && !strings.Contains(strings.ToLower(raw.ID+" "+raw.ProjectName+" "+raw.ClientName), q) {
			continue
		}
		p := portal.RawCaseToClientProject(raw, now)
		stage := "-"
		if len(p.Stages) > 0 {
			stage = fmt.Sprintf("%d/%d", p.CurrentStageID, len(p.Stages))
		}
		_, _ = fmt.Fprintf(w, "%s\t%s\t%s\t%d%%\t%s\t%s\t%d\n",
			p.ID, p.ProjectName, p.ClientName, p.BudgetUtilizationPercent,
			pr.Sprintf("%.0f", p.TotalBudget), stage, p.DaysRemaining)
		shown++
	}
	_ = w.Flush()

	_, err = fmt.Fprintf(env.out(), "\nTotal: %d case(s)\n", shown)
	return err
}

// CaseImportCommand stores a case document read from a file or stdin ("-").
func CaseImportCommand(ctx context.Context, env *Env, args []string) error {
	fs := env.newFlagSet("case import")
	if err := fs.Parse(args); err != nil {
		return err
	}
	if fs.NArg() < 1 {
		return fmt.Errorf("usage: fitout case import <file.json|->")
	}

	var (
		data []byte
		err  error
	)
	if fs.Arg(0) == "-" {
		data, err = io.ReadAll(env.in())
	} else {
		data, err = os.ReadFile(fs.Arg(0))
	}
	if err != nil {
		return fmt.Errorf("failed to read case: %w", err)
	}

	raw, err := cases.ImportCase(ctx, env.Store, data)
	if err != nil {
		return err
	}
	_, err = fmt.Fprintf(env.out(), "✓ Case imported: %s (ID: %s)\n", raw.DisplayName(), raw.ID)
	return err
}

// CaseChatCommand posts a chat message.
func CaseChatCommand(ctx context.Context, env *Env, args []string) error {
	fs := env.newFlagSet("case chat")
	sender := fs.String("sender", "", "Sender display name (required)")
	senderID := fs.String("sender-id", "", "Sender user ID")
	role := fs.String("role", "designer", "Sender role")
	msgType := fs.String("type", "text", "Message type")
	attach := fs.String("attach", "", "Comma-separated attachment URLs")
	if err := fs.Parse(args); err != nil {
		return err
	}
	if fs.NArg() < 2 {
		return fmt.Errorf("usage: fitout case chat --sender <name> <case-id> <message>")
	}

	msg, err := cases.SendChatMessage(ctx, env.Store, fs.Arg(0), cases.ChatInput{
		SenderID:    *senderID,
		SenderName:  *sender,
		Role:        *role,
		Message:     strings.Join(fs.Args()[1:], " "),
		Type:        *msgType,
		Attachments: splitList(*attach),
		At:          env.now(),
	})
	if err != nil {
		return err
	}
	_, err = fmt.Fprintf(env.out(), "✓ Message sent (ID: %s)\n", msg.ID)
	return err
}

// CaseLogCommand records a daily site log.
func CaseLogCommand(ctx context.Context, env *Env, args []string) error {
	fs := env.newFlagSet("case log")
	date := fs.String("date", "", "Log date (default: today)")
	percent := fs.Float64("percent", 0, "Completion percent for the day")
	crew := fs.Int("crew", 0, "Manpower count on site")
	photos := fs.String("photos", "", "Comma-separated photo URLs")
	blocker := fs.String("blocker", "", "Blocking issue, if any")
	by := fs.String("by", "", "Who filed the report")
	if err := fs.Parse(args); err != nil {
		return err
	}
	if fs.NArg() < 2 {
		return fmt.Errorf("usage: fitout case log [flags] <case-id> <work description>")
	}

	at, err := env.parseWhen(*date)
	if err != nil {
		return err
	}
	entry, err := cases.AppendDailyLog(ctx, env.Store, fs.Arg(0), cases.DailyLogInput{
		Date:              at,
		WorkDescription:   strings.Join(fs.Args()[1:], " "),
		CompletionPercent: *percent,
		ManpowerCount:     *crew,
		Photos:            splitList(*photos),
		Blocker:           *blocker,
		CreatedBy:         *by,
	})
	if err != nil {
		return err
	}
	_, err = fmt.Fprintf(env.out(), "✓ Daily log added (ID: %s)\n", entry.ID)
	return err
}

// CaseInstallmentCommand edits a payment installment. Only flags that are
// set are changed.
func CaseInstallmentCommand(ctx context.Context, env *Env, args []string) error {
	fs := env.newFlagSet("case installment")
	status := fs.String("status", "", "Status (Pending, Paid, Overdue)")
	amount := fs.String("amount", "", "New amount")
	name := fs.String("name", "", "New milestone name")
	due := fs.String("due", "", "New due date")
	paidAt := fs.String("paid-at", "", "Payment time when marking Paid (default: now)")
	if err := fs.Parse(args); err != nil {
		return err
	}
	if fs.NArg() < 2 {
		return fmt.Errorf("usage: fitout case installment [flags] <case-id> <installment-id>")
	}

	var patch cases.InstallmentPatch
	if *status != "" {
		patch.Status = status
	}
	if *amount != "" {
		v, err := strconv.ParseFloat(*amount, 64)
		if err != nil {
			return fmt.Errorf("invalid --amount: %w", err)
		}
		patch.Amount = &v
	}
	if *name != "" {
		patch.MilestoneName = name
	}
	if *due != "" {
		t, err := env.parseWhen(*due)
		if err != nil {
			return err
		}
		patch.DueDate = &t
	}
	at, err := env.parseWhen(*paidAt)
	if err != nil {
		return err
	}
	patch.PaidAt = at

	if err := cases.UpdateInstallment(ctx, env.Store, fs.Arg(0), fs.Arg(1), patch); err != nil {
		return err
	}
	_, err = fmt.Fprintf(env.out(), "✓ Installment %s updated\n", fs.Arg(1))
	return err
}

// CaseApprovalCommand approves or rejects a client request.
func CaseApprovalCommand(ctx context.Context, env *Env, args []string) error {
	fs := env.newFlagSet("case approval")
	by := fs.String("by", "", "Who responded")
	comment := fs.String("comment", "", "Response comment")
	if err := fs.Parse(args); err != nil {
		return err
	}
	if fs.NArg() < 3 {
		return fmt.Errorf("usage: fitout case approval [flags] <case-id> <approval-id> <approved|rejected>")
	}

	err := cases.RespondToApproval(ctx, env.Store, fs.Arg(0), fs.Arg(1), cases.ApprovalResponse{
		Decision:    strings.ToLower(fs.Arg(2)),
		RespondedBy: *by,
		Comment:     *comment,
		At:          env.now(),
	})
	if err != nil {
		return err
	}
	_, err = fmt.Fprintf(env.out(), "✓ Approval %s %s\n", fs.Arg(1), strings.ToLower(fs.Arg(2)))
	return err
}

// CaseLeadCommand records a lead-journey milestone.
func CaseLeadCommand(ctx context.Context, env *Env, args []string) error {
	fs := env.newFlagSet("case lead")
	when := fs.String("at", "", "When it happened (default: now)")
	if err := fs.Parse(args); err != nil {
		return err
	}
	if fs.NArg() < 2 {
		keys := make([]string, 0, len(portal.LeadMilestones()))
		for _, m := range portal.LeadMilestones() {
			keys = append(keys, m.Key)
		}
		return fmt.Errorf("usage: fitout case lead [--at time] <case-id> <%s>", strings.Join(keys, "|"))
	}

	at, err := env.parseWhen(*when)
	if err != nil {
		return err
	}
	if err := cases.MarkLeadMilestone(ctx, env.Store, fs.Arg(0), fs.Arg(1), at); err != nil {
		return err
	}
	_, err = fmt.Fprintf(env.out(), "✓ %s recorded at %s\n", fs.Arg(1), at.Format("02 Jan 2006 15:04"))
	return err
}

// CasePhaseCommand changes an execution phase's status.
func CasePhaseCommand(ctx context.Context, env *Env, args []string) error {
	fs := env.newFlagSet("case phase")
	percent := fs.String("percent", "", "Completion percent")
	if err := fs.Parse(args); err != nil {
		return err
	}
	if fs.NArg() < 3 {
		return fmt.Errorf("usage: fitout case phase [--percent n] <case-id> <stage-id> <pending|in_progress|delayed|completed>")
	}

	stageID, err := strconv.Atoi(fs.Arg(1))
	if err != nil {
		return fmt.Errorf("invalid stage id %q", fs.Arg(1))
	}
	patch := cases.PhasePatch{Status: fs.Arg(2)}
	if *percent != "" {
		v, err := strconv.ParseFloat(*percent, 64)
		if err != nil {
			return fmt.Errorf("invalid --percent: %w", err)
		}
		patch.CompletionPercent = &v
	}

	if err := cases.UpdatePhaseStatus(ctx, env.Store, fs.Arg(0), stageID, patch); err != nil {
		return err
	}
	_, err = fmt.Fprintf(env.out(), "✓ Stage %d set to %s\n", stageID, fs.Arg(2))
	return err
}

func splitList(s string) []string {
	if strings.TrimSpace(s) == "" {
		return nil
	}
	var out []string
	for _, part := range strings.Split(s, ",") {
		if part = strings.TrimSpace(part); part != "" {
			out = append(out, part)
		}
	}
	return out
}
