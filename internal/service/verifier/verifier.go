// Package verifier implements the pre-send re-qualification ladder
// (spec.md §4.4): every row due to send within the verification window is
// re-checked against the conditions that may have changed since the
// planner scheduled it, failing closed on the first negative result.
package verifier

import (
	"context"
	"fmt"
	"strings"
	"time"

	"github.com/isg-automation/scheduler/internal/domain"
	"github.com/isg-automation/scheduler/pkg/logger"
)

// Deps are the read surfaces the verifier checks against.
type Deps struct {
	ScheduledEmails domain.ScheduledEmailRepository
	Automations     domain.AutomationRepository
	Accounts        domain.AccountRepository
	Policies        domain.PolicyRepository
	Unsubscribes    domain.UnsubscribeRepository
	EmailLogs       domain.EmailLogRepository
	Logger          logger.Logger

	// Window is how far into the future listDueForVerification looks,
	// default 24h.
	Window time.Duration
	// DedupWindow is the template-level re-send dedup lookback, default 7 days.
	DedupWindow time.Duration
	// Limit caps rows processed per run.
	Limit int
}

func (d Deps) window() time.Duration {
	if d.Window > 0 {
		return d.Window
	}
	return 24 * time.Hour
}

func (d Deps) dedupWindow() time.Duration {
	if d.DedupWindow > 0 {
		return d.DedupWindow
	}
	return 7 * 24 * time.Hour
}

func (d Deps) limit() int {
	if d.Limit > 0 {
		return d.Limit
	}
	return 500
}

// Result summarizes one verification run.
type Result struct {
	Verified  int
	Cancelled int
	Errors    []error
}

// Run implements §4.4: pull every row due for verification and evaluate
// the 7-step ladder, transitioning each to either requires_verification
// = false (pass) or Cancelled (fail).
func Run(ctx context.Context, now time.Time, deps Deps) (*Result, error) {
	rows, err := deps.ScheduledEmails.ListDueForVerification(ctx, now, deps.window(), deps.limit())
	if err != nil {
		return nil, fmt.Errorf("verifier: listing due rows: %w", err)
	}

	result := &Result{}
	for _, row := range rows {
		reason, err := verifyOne(ctx, row, deps)
		if err != nil {
			result.Errors = append(result.Errors, fmt.Errorf("verifier: row %s: %w", row.ID, err))
			continue
		}
		if reason == "" {
			if err := deps.ScheduledEmails.MarkVerified(ctx, row.ID); err != nil {
				result.Errors = append(result.Errors, fmt.Errorf("verifier: marking %s verified: %w", row.ID, err))
				continue
			}
			result.Verified++
			continue
		}
		if err := deps.ScheduledEmails.Cancel(ctx, row.ID, reason); err != nil {
			result.Errors = append(result.Errors, fmt.Errorf("verifier: cancelling %s: %w", row.ID, err))
			continue
		}
		result.Cancelled++
	}
	return result, nil
}

// verifyOne runs the 7-step ladder against one row, returning a non-empty
// cancellation reason on the first failing step, or "" if every step
// passes.
func verifyOne(ctx context.Context, row *domain.ScheduledEmail, deps Deps) (string, error) {
	if row.AutomationID != nil {
		automation, err := deps.Automations.GetByID(ctx, *row.AutomationID)
		if err != nil {
			if isNotFound(err) {
				return "automation no longer exists", nil
			}
			return "", err
		}
		if !automation.IsActive() {
			return "automation is no longer active", nil
		}
	}

	account, err := deps.Accounts.GetByID(ctx, row.OwnerID, row.AccountID)
	if err != nil {
		if isNotFound(err) {
			return "account no longer exists", nil
		}
		return "", err
	}
	if account.OptedOut {
		return "account has opted out", nil
	}
	if account.EmailValidationState != domain.EmailValidationValid {
		return "account email validation status is not valid", nil
	}

	toEmail := row.ToEmail
	if toEmail == "" || !strings.Contains(toEmail, "@") {
		return "recipient email is missing or malformed", nil
	}

	unsubscribed, err := deps.Unsubscribes.Exists(ctx, toEmail)
	if err != nil {
		return "", err
	}
	if unsubscribed {
		return "recipient has unsubscribed", nil
	}

	if row.TriggerField == string(domain.FieldPolicyExpiration) || row.TriggerField == string(domain.FieldPolicyEffective) {
		stillQualifies, err := policyStillQualifies(ctx, row, deps)
		if err != nil {
			return "", err
		}
		if !stillQualifies {
			return "triggering policy no longer qualifies", nil
		}
	}

	recentlySent, err := deps.EmailLogs.ExistsRecentForTemplate(ctx, row.TemplateID, toEmail, deps.dedupWindow())
	if err != nil {
		return "", err
	}
	if recentlySent {
		return "recipient was already sent this template recently", nil
	}

	return "", nil
}

// policyStillQualifies implements step 6: the account must still carry an
// Active policy whose matching date field equals the row's
// qualification_value (the ISO date captured at plan time).
func policyStillQualifies(ctx context.Context, row *domain.ScheduledEmail, deps Deps) (bool, error) {
	policies, err := deps.Policies.ListByAccount(ctx, row.OwnerID, row.AccountID)
	if err != nil {
		return false, err
	}
	for _, p := range policies {
		if !p.IsActive() {
			continue
		}
		var field time.Time
		switch row.TriggerField {
		case string(domain.FieldPolicyExpiration):
			field = p.ExpirationDate
		case string(domain.FieldPolicyEffective):
			field = p.EffectiveDate
		default:
			continue
		}
		if field.Format("2006-01-02") == row.QualificationValue {
			return true, nil
		}
	}
	return false, nil
}

func isNotFound(err error) bool {
	switch err.(type) {
	case *domain.ErrAccountNotFound, *domain.ErrPolicyNotFound, *domain.ErrNotFound, *domain.ErrAutomationNotFound:
		return true
	}
	return false
}
