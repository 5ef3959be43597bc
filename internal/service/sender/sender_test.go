package sender

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/stretchr/testify/require"

	"github.com/isg-automation/scheduler/internal/domain"
	"github.com/isg-automation/scheduler/pkg/emailerror"
)

type fakeScheduledEmails struct {
	ready     []*domain.ScheduledEmail
	claimed   map[string]bool
	sent      map[string]string
	failed    map[string]string
	retried   map[string]string
	cancelled map[string]string
}

func (f *fakeScheduledEmails) InsertBatch(ctx context.Context, rows []*domain.ScheduledEmail) ([]*domain.ScheduledEmail, error) {
	return rows, nil
}
func (f *fakeScheduledEmails) ListDueForVerification(ctx context.Context, now time.Time, window time.Duration, limit int) ([]*domain.ScheduledEmail, error) {
	return nil, nil
}
func (f *fakeScheduledEmails) ListReadyToSend(ctx context.Context, now time.Time, limit int) ([]*domain.ScheduledEmail, error) {
	return f.ready, nil
}
func (f *fakeScheduledEmails) Claim(ctx context.Context, id string, now time.Time) (*domain.ScheduledEmail, bool, error) {
	if f.claimed == nil {
		f.claimed = map[string]bool{}
	}
	if f.claimed[id] {
		return nil, false, nil
	}
	f.claimed[id] = true
	for _, r := range f.ready {
		if r.ID == id {
			return r, true, nil
		}
	}
	return nil, false, nil
}
func (f *fakeScheduledEmails) MarkVerified(ctx context.Context, id string) error { return nil }
func (f *fakeScheduledEmails) Cancel(ctx context.Context, id, reason string) error {
	if f.cancelled == nil {
		f.cancelled = map[string]string{}
	}
	f.cancelled[id] = reason
	return nil
}
func (f *fakeScheduledEmails) MarkSent(ctx context.Context, id, logID string) error {
	if f.sent == nil {
		f.sent = map[string]string{}
	}
	f.sent[id] = logID
	return nil
}
func (f *fakeScheduledEmails) MarkFailedOrRetry(ctx context.Context, id string, sendErr error) error {
	if f.retried == nil {
		f.retried = map[string]string{}
	}
	f.retried[id] = sendErr.Error()
	return nil
}
func (f *fakeScheduledEmails) MarkFailed(ctx context.Context, id, reason string) error {
	if f.failed == nil {
		f.failed = map[string]string{}
	}
	f.failed[id] = reason
	return nil
}
func (f *fakeScheduledEmails) CancelPendingForAutomation(ctx context.Context, automationID, reason string) (int, error) {
	return 0, nil
}
func (f *fakeScheduledEmails) ExistingKeys(ctx context.Context, automationID string, keys []domain.DedupKey) (map[domain.DedupKey]bool, error) {
	return nil, nil
}
func (f *fakeScheduledEmails) ListStuckProcessing(ctx context.Context, threshold time.Duration, limit int) ([]*domain.ScheduledEmail, error) {
	return nil, nil
}
func (f *fakeScheduledEmails) ResetToPending(ctx context.Context, id string) error { return nil }

type fakeTemplates struct{ byID map[string]*domain.Template }

func (f *fakeTemplates) GetByID(ctx context.Context, id string) (*domain.Template, error) {
	if t, ok := f.byID[id]; ok {
		return t, nil
	}
	return nil, &domain.ErrTemplateNotFound{ID: id}
}
func (f *fakeTemplates) GetByDefaultKey(ctx context.Context, ownerID, key string) (*domain.Template, error) {
	return nil, &domain.ErrTemplateNotFound{ID: key}
}
func (f *fakeTemplates) Create(ctx context.Context, t *domain.Template) error { return nil }
func (f *fakeTemplates) Update(ctx context.Context, t *domain.Template) error { return nil }

type fakeAccounts struct{ byID map[string]*domain.Account }

func (f *fakeAccounts) GetByID(ctx context.Context, ownerID, id string) (*domain.Account, error) {
	if a, ok := f.byID[id]; ok {
		return a, nil
	}
	return nil, &domain.ErrAccountNotFound{ID: id}
}
func (f *fakeAccounts) ListCandidates(ctx context.Context, ownerID string, offset, limit int) ([]*domain.Account, error) {
	return nil, nil
}
func (f *fakeAccounts) CountCandidates(ctx context.Context, ownerID string) (int, error) { return 0, nil }
func (f *fakeAccounts) Create(ctx context.Context, a *domain.Account) error              { return nil }
func (f *fakeAccounts) Update(ctx context.Context, a *domain.Account) error              { return nil }

type fakePolicies struct{ byAccount map[string][]*domain.Policy }

func (f *fakePolicies) GetByID(ctx context.Context, ownerID, id string) (*domain.Policy, error) {
	return nil, &domain.ErrPolicyNotFound{ID: id}
}
func (f *fakePolicies) ListByAccount(ctx context.Context, ownerID, accountID string) ([]*domain.Policy, error) {
	return f.byAccount[accountID], nil
}
func (f *fakePolicies) ListActiveExpiringBefore(ctx context.Context, ownerID string, cutoff time.Time, offset, limit int) ([]*domain.Policy, error) {
	return nil, nil
}
func (f *fakePolicies) Create(ctx context.Context, p *domain.Policy) error { return nil }
func (f *fakePolicies) Update(ctx context.Context, p *domain.Policy) error { return nil }

type fakeAutomations struct{ byID map[string]*domain.Automation }

func (f *fakeAutomations) GetByID(ctx context.Context, id string) (*domain.Automation, error) {
	if a, ok := f.byID[id]; ok {
		return a, nil
	}
	return nil, &domain.ErrAutomationNotFound{ID: id}
}
func (f *fakeAutomations) ListActive(ctx context.Context, offset, limit int) ([]*domain.Automation, error) {
	return nil, nil
}
func (f *fakeAutomations) CountActive(ctx context.Context) (int, error)          { return 0, nil }
func (f *fakeAutomations) Create(ctx context.Context, a *domain.Automation) error { return nil }
func (f *fakeAutomations) Update(ctx context.Context, a *domain.Automation) error { return nil }
func (f *fakeAutomations) UpdateStatus(ctx context.Context, id string, status domain.AutomationStatus) error {
	return nil
}

type fakeUserSettings struct{ byOwner map[string]*domain.UserSettings }

func (f *fakeUserSettings) GetByOwnerID(ctx context.Context, ownerID string) (*domain.UserSettings, error) {
	if s, ok := f.byOwner[ownerID]; ok {
		return s, nil
	}
	return nil, &domain.ErrUserSettingsNotFound{OwnerID: ownerID}
}
func (f *fakeUserSettings) Upsert(ctx context.Context, s *domain.UserSettings) error { return nil }

type fakeSenderDomains struct{ byOwner map[string]*domain.SenderDomain }

func (f *fakeSenderDomains) GetByOwnerID(ctx context.Context, ownerID string) (*domain.SenderDomain, error) {
	if d, ok := f.byOwner[ownerID]; ok {
		return d, nil
	}
	return nil, &domain.ErrSenderDomainNotFound{OwnerID: ownerID}
}

type fakeUnsubscribes struct{ set map[string]bool }

func (f *fakeUnsubscribes) Exists(ctx context.Context, email string) (bool, error) {
	return f.set[domain.NormalizeEmail(email)], nil
}
func (f *fakeUnsubscribes) Add(ctx context.Context, email, reason string) error { return nil }

type fakeEmailLogs struct {
	recentlySent bool
	created      []*domain.EmailLog
	statuses     map[string]domain.EmailLogStatus
}

func (f *fakeEmailLogs) Create(ctx context.Context, log *domain.EmailLog) error {
	f.created = append(f.created, log)
	return nil
}
func (f *fakeEmailLogs) UpdateStatus(ctx context.Context, id string, status domain.EmailLogStatus, at time.Time) error {
	if f.statuses == nil {
		f.statuses = map[string]domain.EmailLogStatus{}
	}
	f.statuses[id] = status
	return nil
}
func (f *fakeEmailLogs) IncrementOpen(ctx context.Context, id string) error  { return nil }
func (f *fakeEmailLogs) IncrementClick(ctx context.Context, id string) error { return nil }
func (f *fakeEmailLogs) IncrementReply(ctx context.Context, id string) error { return nil }
func (f *fakeEmailLogs) ExistsRecentForTemplate(ctx context.Context, templateID, toEmail string, window time.Duration) (bool, error) {
	return f.recentlySent, nil
}
func (f *fakeEmailLogs) LastEngagedAt(ctx context.Context, ownerID string, accountIDs []string) (map[string]time.Time, error) {
	return nil, nil
}
func (f *fakeEmailLogs) GetBySendGridMessageID(ctx context.Context, id string) (*domain.EmailLog, error) {
	return nil, domain.NewErrNotFound("email_log", id)
}
func (f *fakeEmailLogs) GetByMessageID(ctx context.Context, id string) (*domain.EmailLog, error) {
	return nil, domain.NewErrNotFound("email_log", id)
}

type fakeActivityLog struct{ events []string }

func (f *fakeActivityLog) RecordEvent(ctx context.Context, ownerID, accountID string, kind domain.ActivityEventKind, detail string) error {
	f.events = append(f.events, string(kind))
	return nil
}

type fakeProvider struct {
	err    error
	result domain.SendResult
	sent   []domain.OutboundEmail
}

func (f *fakeProvider) Send(ctx context.Context, email domain.OutboundEmail) (domain.SendResult, error) {
	f.sent = append(f.sent, email)
	if f.err != nil {
		return domain.SendResult{}, f.err
	}
	return f.result, nil
}

func baseRow() *domain.ScheduledEmail {
	automationID := "auto-1"
	return &domain.ScheduledEmail{
		ID: "row-1", OwnerID: "owner-1", AutomationID: &automationID, AccountID: "acct-1",
		TemplateID: "tpl-1", ToEmail: "jane@example.com", TriggerField: domain.TriggerFieldActivation,
		QualificationValue: domain.ImmediateQualificationValue, Status: domain.ScheduledEmailPending,
		MaxAttempts: 3, Attempts: 1,
	}
}

func baseTemplate() *domain.Template {
	return &domain.Template{
		ID: "tpl-1", Subject: "Hi {{first_name}}", BodyHTML: "<p>Hello {{full_name}}</p>",
		BodyText: "Hello {{full_name}}", FromEmail: "agency@isg.example", FromName: "ISG Agency",
	}
}

func baseDeps(scheduled *fakeScheduledEmails, provider *fakeProvider, emailLogs *fakeEmailLogs) Deps {
	account := &domain.Account{ID: "acct-1", OwnerID: "owner-1", FirstName: "Jane", LastName: "Doe", Email: "jane@example.com", EmailValidationState: domain.EmailValidationValid}
	return Deps{
		ScheduledEmails: scheduled,
		Templates:       &fakeTemplates{byID: map[string]*domain.Template{"tpl-1": baseTemplate()}},
		Accounts:        &fakeAccounts{byID: map[string]*domain.Account{"acct-1": account}},
		Policies:        &fakePolicies{},
		Automations:     &fakeAutomations{byID: map[string]*domain.Automation{"auto-1": {ID: "auto-1", Status: domain.AutomationStatusActive}}},
		UserSettings:    &fakeUserSettings{byOwner: map[string]*domain.UserSettings{}},
		SenderDomains:   &fakeSenderDomains{byOwner: map[string]*domain.SenderDomain{}},
		Unsubscribes:    &fakeUnsubscribes{set: map[string]bool{}},
		EmailLogs:       emailLogs,
		ActivityLog:     &fakeActivityLog{},
		Provider:        provider,
		ProviderKind:    domain.ProviderSendGrid,
		Classifier:      emailerror.NewClassifier(),
		UnsubscribeURL:  "https://app.example.com/unsubscribe",
	}
}

func TestRunSendsReadyRow(t *testing.T) {
	row := baseRow()
	scheduled := &fakeScheduledEmails{ready: []*domain.ScheduledEmail{row}}
	provider := &fakeProvider{result: domain.SendResult{ProviderMessageID: "sg-123"}}
	emailLogs := &fakeEmailLogs{}
	deps := baseDeps(scheduled, provider, emailLogs)

	result, err := Run(context.Background(), time.Now(), deps)
	require.NoError(t, err)
	require.Equal(t, 1, result.Sent)
	require.Equal(t, 0, result.Failed)
	require.Contains(t, scheduled.sent, "row-1")
	require.Len(t, provider.sent, 1)
	require.Equal(t, "Hi Jane", provider.sent[0].Subject)
	require.Contains(t, provider.sent[0].BodyHTML, "Hello Jane Doe")
	require.Contains(t, provider.sent[0].BodyHTML, "Unsubscribe")
}

func TestRunCancelsWhenRecipientUnsubscribed(t *testing.T) {
	row := baseRow()
	scheduled := &fakeScheduledEmails{ready: []*domain.ScheduledEmail{row}}
	provider := &fakeProvider{}
	deps := baseDeps(scheduled, provider, &fakeEmailLogs{})
	deps.Unsubscribes = &fakeUnsubscribes{set: map[string]bool{"jane@example.com": true}}

	result, err := Run(context.Background(), time.Now(), deps)
	require.NoError(t, err)
	require.Equal(t, 0, result.Sent)
	require.Equal(t, "recipient has unsubscribed", scheduled.cancelled["row-1"])
	require.Empty(t, provider.sent)
}

func TestRunSkipsRowLostToConcurrentClaim(t *testing.T) {
	row := baseRow()
	scheduled := &fakeScheduledEmails{ready: []*domain.ScheduledEmail{row}, claimed: map[string]bool{"row-1": true}}
	provider := &fakeProvider{}
	deps := baseDeps(scheduled, provider, &fakeEmailLogs{})

	result, err := Run(context.Background(), time.Now(), deps)
	require.NoError(t, err)
	require.Equal(t, 0, result.Sent)
	require.Equal(t, 0, result.Failed)
	require.Empty(t, result.Errors)
}

func TestRunMarksFailedOnNonRetryableProviderError(t *testing.T) {
	row := baseRow()
	scheduled := &fakeScheduledEmails{ready: []*domain.ScheduledEmail{row}}
	provider := &fakeProvider{err: errors.New("550 invalid recipient mailbox")}
	deps := baseDeps(scheduled, provider, &fakeEmailLogs{})

	result, err := Run(context.Background(), time.Now(), deps)
	require.NoError(t, err)
	require.Equal(t, 1, result.Failed)
	require.Contains(t, scheduled.failed, "row-1")
}

func TestRunRetriesOnProviderSideError(t *testing.T) {
	row := baseRow()
	scheduled := &fakeScheduledEmails{ready: []*domain.ScheduledEmail{row}}
	provider := &fakeProvider{err: errors.New("503 service unavailable, rate limited")}
	deps := baseDeps(scheduled, provider, &fakeEmailLogs{})

	result, err := Run(context.Background(), time.Now(), deps)
	require.NoError(t, err)
	require.Equal(t, 1, result.Failed)
	require.Contains(t, scheduled.retried, "row-1")
}

func TestRunUsesTrackingReplyToWhenSenderDomainEligible(t *testing.T) {
	row := baseRow()
	scheduled := &fakeScheduledEmails{ready: []*domain.ScheduledEmail{row}}
	provider := &fakeProvider{}
	deps := baseDeps(scheduled, provider, &fakeEmailLogs{})
	deps.ReplyDomain = "reply.isg.example"
	deps.SenderDomains = &fakeSenderDomains{byOwner: map[string]*domain.SenderDomain{
		"owner-1": {ID: "sd-1", OwnerID: "owner-1", Domain: "isg.example", Verified: true, InboundParseEnabled: true, InboundSubdomain: "reply"},
	}}

	result, err := Run(context.Background(), time.Now(), deps)
	require.NoError(t, err)
	require.Equal(t, 1, result.Sent)
	require.Contains(t, provider.sent[0].ReplyTo, "@reply.isg.example")
}
