// Package sender implements the dispatch ladder (spec.md §4.5): claim a
// ready row, re-check the preconditions the verifier already checked
// once (they can still have changed since), compose the final message,
// and hand it to the configured domain.EmailProvider.
package sender

import (
	"context"
	"fmt"
	"time"

	"github.com/google/uuid"

	"github.com/isg-automation/scheduler/internal/archive"
	"github.com/isg-automation/scheduler/internal/domain"
	"github.com/isg-automation/scheduler/internal/service/emailprovider"
	"github.com/isg-automation/scheduler/pkg/emailerror"
	"github.com/isg-automation/scheduler/pkg/logger"
	"github.com/isg-automation/scheduler/pkg/notifuse_mjml"
)

// Deps are the collaborators one sender Run needs.
type Deps struct {
	ScheduledEmails domain.ScheduledEmailRepository
	Templates       domain.TemplateRepository
	Accounts        domain.AccountRepository
	Policies        domain.PolicyRepository
	Automations     domain.AutomationRepository
	UserSettings    domain.UserSettingsRepository
	SenderDomains   domain.SenderDomainRepository
	Unsubscribes    domain.UnsubscribeRepository
	EmailLogs       domain.EmailLogRepository
	ActivityLog     domain.ActivityLogRepository
	// MassEmailBatches is optional; a row with BatchID set has its
	// batch's sent count incremented on successful dispatch.
	MassEmailBatches domain.MassEmailBatchRepository
	Provider         domain.EmailProvider
	ProviderKind    domain.ProviderKind
	Classifier      *emailerror.Classifier
	Logger          logger.Logger
	// Archiver writes a terminal row's JSON snapshot to S3, nil to disable.
	Archiver *archive.Archiver

	ReplyDomain       string
	UnsubscribeURL    string
	StarRatingBaseURL string

	// MaxPerRun caps how many rows one Run claims, default 200 (spec.md
	// §5 MAX_EMAILS_PER_RUN).
	MaxPerRun int
	// DedupWindow is the template-level re-send lookback for the step-2
	// recheck, default 7 days.
	DedupWindow time.Duration
}

func (d Deps) maxPerRun() int {
	if d.MaxPerRun > 0 {
		return d.MaxPerRun
	}
	return 200
}

func (d Deps) dedupWindow() time.Duration {
	if d.DedupWindow > 0 {
		return d.DedupWindow
	}
	return 7 * 24 * time.Hour
}

func (d Deps) classifier() *emailerror.Classifier {
	if d.Classifier != nil {
		return d.Classifier
	}
	return emailerror.NewClassifier()
}

// Result summarizes one sender Run.
type Result struct {
	Sent   int
	Failed int
	Errors []error
}

// Run claims and dispatches up to MaxPerRun ready rows, per spec.md §4.5.
func Run(ctx context.Context, now time.Time, deps Deps) (*Result, error) {
	limit := deps.maxPerRun()
	candidates, err := deps.ScheduledEmails.ListReadyToSend(ctx, now, limit)
	if err != nil {
		return nil, fmt.Errorf("sender: listing ready rows: %w", err)
	}

	result := &Result{}
	for _, candidate := range candidates {
		if result.Sent+result.Failed >= limit {
			break
		}
		sent, claimed, err := claimAndSend(ctx, candidate.ID, now, deps)
		if err != nil {
			result.Errors = append(result.Errors, fmt.Errorf("sender: row %s: %w", candidate.ID, err))
			continue
		}
		if !claimed {
			// Lost the race to another worker; §7 "Concurrent claim lost"
			// — not an error, just skip.
			continue
		}
		if sent {
			result.Sent++
		} else {
			result.Failed++
		}
	}
	return result, nil
}

// SendNow claims and dispatches exactly one row regardless of its
// scheduled_for time, the "send this specific row now" RPC action §6
// describes for the operator-facing "Send Now" gesture. Returns false,
// false, nil if the row was not in a claimable (Pending) state.
func SendNow(ctx context.Context, scheduledEmailID string, now time.Time, deps Deps) (sent bool, claimed bool, err error) {
	return claimAndSend(ctx, scheduledEmailID, now, deps)
}

func claimAndSend(ctx context.Context, id string, now time.Time, deps Deps) (sent bool, claimed bool, err error) {
	row, claimed, err := deps.ScheduledEmails.Claim(ctx, id, now)
	if err != nil {
		return false, false, fmt.Errorf("claiming %s: %w", id, err)
	}
	if !claimed {
		return false, false, nil
	}
	sent, err = sendOne(ctx, row, now, deps)
	return sent, true, err
}

// sendOne runs the full dispatch ladder for one claimed row. The bool
// return is true when the message was actually handed to the provider
// and marked Sent; false covers every disqualified-or-failed outcome,
// all of which are terminal and not errors in themselves.
func sendOne(ctx context.Context, row *domain.ScheduledEmail, now time.Time, deps Deps) (bool, error) {
	// Step 1: re-check unsubscribe/opt-out/validation — the verifier
	// already passed this row once, but time has elapsed since.
	account, err := deps.Accounts.GetByID(ctx, row.OwnerID, row.AccountID)
	if err != nil {
		return false, cancelRow(ctx, row, deps, "account no longer exists")
	}
	if account.OptedOut || account.EmailValidationState != domain.EmailValidationValid {
		return false, cancelRow(ctx, row, deps, "account is no longer sendable")
	}
	unsubscribed, err := deps.Unsubscribes.Exists(ctx, row.ToEmail)
	if err != nil {
		return false, err
	}
	if unsubscribed {
		return false, cancelRow(ctx, row, deps, "recipient has unsubscribed")
	}

	// Step 2: re-check template-level dedup.
	recentlySent, err := deps.EmailLogs.ExistsRecentForTemplate(ctx, row.TemplateID, row.ToEmail, deps.dedupWindow())
	if err != nil {
		return false, err
	}
	if recentlySent {
		return false, cancelRow(ctx, row, deps, "recipient was already sent this template recently")
	}

	tpl, err := deps.Templates.GetByID(ctx, row.TemplateID)
	if err != nil {
		return false, deps.ScheduledEmails.MarkFailed(ctx, row.ID, fmt.Sprintf("template %s no longer resolves: %v", row.TemplateID, err))
	}

	settings, err := deps.UserSettings.GetByOwnerID(ctx, row.OwnerID)
	if err != nil {
		if _, ok := err.(*domain.ErrUserSettingsNotFound); !ok {
			return false, err
		}
		settings = nil
	}

	policy := policyForRow(ctx, row, deps)
	automation := automationForRow(ctx, row, deps)

	mergeData := domain.BuildTemplateData(account, policy, automation, settings, deps.UnsubscribeURL)
	if err := tpl.Compile(mergeData, notifuse_mjml.TrackingSettings{}); err != nil {
		return false, deps.ScheduledEmails.MarkFailed(ctx, row.ID, fmt.Sprintf("compiling template: %v", err))
	}

	emailLogID := uuid.NewString()
	fields := mergeFields(account, row.QualificationValue, deps.StarRatingBaseURL, row.ID)

	subject := applyMergeFields(tpl.Subject, fields)
	renderedHTML, err := applyLiquid(applyMergeFields(tpl.BodyHTML, fields), account)
	if err != nil {
		return false, deps.ScheduledEmails.MarkFailed(ctx, row.ID, fmt.Sprintf("rendering body: %v", err))
	}
	bodyText := applyMergeFields(tpl.BodyText, fields)

	link := unsubscribeLink(deps.UnsubscribeURL, row.ID, account.Email)
	bodyHTML := composeBody(renderedHTML, settings, link)

	messageID := fmt.Sprintf("<isg-%s-%d@%s>", emailLogID, now.UnixMilli(), fromDomain(tpl.FromEmail))
	replyTo, useTrackingReplyTo := resolveReplyTo(ctx, row.OwnerID, tpl.FromEmail, emailLogID, deps)

	emailLog := &domain.EmailLog{
		ID:                 emailLogID,
		OwnerID:            row.OwnerID,
		ScheduledEmailID:   row.ID,
		AccountID:          row.AccountID,
		TemplateID:         row.TemplateID,
		ToEmail:            row.ToEmail,
		Subject:            subject,
		BodyHTML:           bodyHTML,
		MessageID:          messageID,
		ReplyTo:            replyTo,
		UseTrackingReplyTo: useTrackingReplyTo,
		Status:             domain.EmailLogQueued,
		CreatedAt:          now,
		UpdatedAt:          now,
	}
	if err := deps.EmailLogs.Create(ctx, emailLog); err != nil {
		return false, fmt.Errorf("creating email log: %w", err)
	}

	automationID := ""
	if row.AutomationID != nil {
		automationID = *row.AutomationID
	}
	dispatchCtx := emailprovider.WithCustomArgs(ctx, emailprovider.CustomArgs{
		ScheduledEmailID: row.ID,
		AutomationID:     automationID,
		AccountID:        row.AccountID,
		OwnerID:          row.OwnerID,
		EmailLogID:       emailLog.ID,
	})
	dispatchCtx = emailprovider.WithCategories(dispatchCtx, []string{"automation"})

	out := domain.OutboundEmail{
		ToEmail:   account.Email,
		ToName:    account.FullName(),
		FromEmail: tpl.FromEmail,
		FromName:  tpl.FromName,
		ReplyTo:   replyTo,
		Subject:   subject,
		BodyHTML:  bodyHTML,
		BodyText:  bodyText,
		MessageID: messageID,
	}

	sendResult, sendErr := deps.Provider.Send(dispatchCtx, out)
	if sendErr != nil {
		return false, handleSendFailure(ctx, row, emailLog, sendErr, deps, now)
	}

	if sendResult.ProviderMessageID != "" {
		emailLog.SendGridMessageID = sendResult.ProviderMessageID
	}
	if err := deps.EmailLogs.UpdateStatus(ctx, emailLog.ID, domain.EmailLogSent, now); err != nil {
		return false, fmt.Errorf("marking email log sent: %w", err)
	}
	if err := deps.ScheduledEmails.MarkSent(ctx, row.ID, emailLog.ID); err != nil {
		return false, fmt.Errorf("marking scheduled email sent: %w", err)
	}
	_ = deps.ActivityLog.RecordEvent(ctx, row.OwnerID, row.AccountID, domain.ActivityEmailSent, "sent template "+row.TemplateID)
	if row.BatchID != nil && deps.MassEmailBatches != nil {
		if err := deps.MassEmailBatches.IncrementSentCount(ctx, *row.BatchID); err != nil {
			deps.Logger.WithError(err).Warn("incrementing mass-email batch sent count failed")
		}
	}
	if err := deps.Archiver.ArchiveTerminalRow(ctx, row, emailLog); err != nil {
		deps.Logger.WithError(err).Warn("archiving sent row failed")
	}
	return true, nil
}

// handleSendFailure implements §4.5 steps 9-10: an error classified as
// non-retryable (recipient-side or provider-side) fails the row now; a
// retryable or unclassified error goes through the attempts-budget retry
// decision.
func handleSendFailure(ctx context.Context, row *domain.ScheduledEmail, emailLog *domain.EmailLog, sendErr error, deps Deps, now time.Time) error {
	_ = deps.EmailLogs.UpdateStatus(ctx, emailLog.ID, domain.EmailLogFailed, now)
	_ = deps.ActivityLog.RecordEvent(ctx, row.OwnerID, row.AccountID, domain.ActivityEmailFailed, sendErr.Error())

	classified := deps.classifier().Classify(string(deps.ProviderKind), sendErr, 0)
	if classified != nil && !classified.Retryable {
		if err := deps.ScheduledEmails.MarkFailed(ctx, row.ID, sendErr.Error()); err != nil {
			return err
		}
		if err := deps.Archiver.ArchiveTerminalRow(ctx, row, emailLog); err != nil {
			deps.Logger.WithError(err).Warn("archiving failed row failed")
		}
		return nil
	}
	return deps.ScheduledEmails.MarkFailedOrRetry(ctx, row.ID, sendErr)
}

// cancelRow implements the precondition-no-longer-holds disposition
// (§7): cancel, don't error, don't retry.
func cancelRow(ctx context.Context, row *domain.ScheduledEmail, deps Deps, reason string) error {
	_ = deps.ActivityLog.RecordEvent(ctx, row.OwnerID, row.AccountID, domain.ActivityRowCancelled, reason)
	return deps.ScheduledEmails.Cancel(ctx, row.ID, reason)
}

// policyForRow loads the triggering policy for a date-based row's merge
// data, matching the verifier's policyStillQualifies lookup; returns nil
// for immediate (non-policy-triggered) rows or on any lookup error,
// since the policy block is cosmetic in the merge data, not load-bearing.
func policyForRow(ctx context.Context, row *domain.ScheduledEmail, deps Deps) *domain.Policy {
	if row.TriggerField != string(domain.FieldPolicyExpiration) && row.TriggerField != string(domain.FieldPolicyEffective) {
		return nil
	}
	policies, err := deps.Policies.ListByAccount(ctx, row.OwnerID, row.AccountID)
	if err != nil {
		return nil
	}
	for _, p := range policies {
		var field time.Time
		switch row.TriggerField {
		case string(domain.FieldPolicyExpiration):
			field = p.ExpirationDate
		case string(domain.FieldPolicyEffective):
			field = p.EffectiveDate
		}
		if field.Format("2006-01-02") == row.QualificationValue {
			return p
		}
	}
	return nil
}

func automationForRow(ctx context.Context, row *domain.ScheduledEmail, deps Deps) *domain.Automation {
	if row.AutomationID == nil {
		return nil
	}
	automation, err := deps.Automations.GetByID(ctx, *row.AutomationID)
	if err != nil {
		return nil
	}
	return automation
}

// resolveReplyTo implements the tracking reply-to decision: default to
// the template's from-address, switching to a reply-{emailLogId}@
// address only when the owner has a verified sender domain with inbound
// parsing wired up (GLOSSARY "Tracking Reply-To").
func resolveReplyTo(ctx context.Context, ownerID, fromEmail, emailLogID string, deps Deps) (string, bool) {
	if deps.ReplyDomain == "" || deps.SenderDomains == nil {
		return fromEmail, false
	}
	senderDomain, err := deps.SenderDomains.GetByOwnerID(ctx, ownerID)
	if err != nil || !senderDomain.SupportsTrackingReplyTo() {
		return fromEmail, false
	}
	return fmt.Sprintf("reply-%s@%s", emailLogID, deps.ReplyDomain), true
}
