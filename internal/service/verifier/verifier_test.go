package verifier

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/require"

	"github.com/isg-automation/scheduler/internal/domain"
)

type fakeScheduledEmails struct {
	due       []*domain.ScheduledEmail
	verified  []string
	cancelled map[string]string
}

func (f *fakeScheduledEmails) InsertBatch(ctx context.Context, rows []*domain.ScheduledEmail) ([]*domain.ScheduledEmail, error) {
	return rows, nil
}
func (f *fakeScheduledEmails) ListDueForVerification(ctx context.Context, now time.Time, window time.Duration, limit int) ([]*domain.ScheduledEmail, error) {
	return f.due, nil
}
func (f *fakeScheduledEmails) ListReadyToSend(ctx context.Context, now time.Time, limit int) ([]*domain.ScheduledEmail, error) {
	return nil, nil
}
func (f *fakeScheduledEmails) Claim(ctx context.Context, id string, now time.Time) (*domain.ScheduledEmail, bool, error) {
	return nil, false, nil
}
func (f *fakeScheduledEmails) MarkVerified(ctx context.Context, id string) error {
	f.verified = append(f.verified, id)
	return nil
}
func (f *fakeScheduledEmails) Cancel(ctx context.Context, id, reason string) error {
	if f.cancelled == nil {
		f.cancelled = map[string]string{}
	}
	f.cancelled[id] = reason
	return nil
}
func (f *fakeScheduledEmails) MarkSent(ctx context.Context, id, logID string) error { return nil }
func (f *fakeScheduledEmails) MarkFailedOrRetry(ctx context.Context, id string, sendErr error) error {
	return nil
}
func (f *fakeScheduledEmails) MarkFailed(ctx context.Context, id, reason string) error { return nil }
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

type fakeUnsubscribes struct{ set map[string]bool }

func (f *fakeUnsubscribes) Exists(ctx context.Context, email string) (bool, error) {
	return f.set[domain.NormalizeEmail(email)], nil
}
func (f *fakeUnsubscribes) Add(ctx context.Context, email, reason string) error { return nil }

type fakeEmailLogs struct{ recentlySent bool }

func (f *fakeEmailLogs) Create(ctx context.Context, log *domain.EmailLog) error { return nil }
func (f *fakeEmailLogs) UpdateStatus(ctx context.Context, id string, status domain.EmailLogStatus, at time.Time) error {
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

func baseRow() *domain.ScheduledEmail {
	automationID := "auto-1"
	return &domain.ScheduledEmail{
		ID: "row-1", OwnerID: "owner-1", AutomationID: &automationID, AccountID: "acct-1",
		TemplateID: "tpl-1", ToEmail: "jane@example.com", TriggerField: domain.TriggerFieldActivation,
		QualificationValue: domain.ImmediateQualificationValue, Status: domain.ScheduledEmailPending,
		RequiresVerification: true,
	}
}

func baseDeps(scheduled *fakeScheduledEmails) Deps {
	automation := &domain.Automation{ID: "auto-1", Status: domain.AutomationStatusActive}
	account := &domain.Account{ID: "acct-1", OwnerID: "owner-1", Email: "jane@example.com", EmailValidationState: domain.EmailValidationValid}
	return Deps{
		ScheduledEmails: scheduled,
		Automations:     &fakeAutomations{byID: map[string]*domain.Automation{"auto-1": automation}},
		Accounts:        &fakeAccounts{byID: map[string]*domain.Account{"acct-1": account}},
		Policies:        &fakePolicies{},
		Unsubscribes:    &fakeUnsubscribes{set: map[string]bool{}},
		EmailLogs:       &fakeEmailLogs{},
	}
}

func TestRunVerifiesPassingRow(t *testing.T) {
	row := baseRow()
	scheduled := &fakeScheduledEmails{due: []*domain.ScheduledEmail{row}}
	deps := baseDeps(scheduled)

	result, err := Run(context.Background(), time.Now(), deps)
	require.NoError(t, err)
	require.Equal(t, 1, result.Verified)
	require.Equal(t, 0, result.Cancelled)
	require.Contains(t, scheduled.verified, "row-1")
}

func TestRunCancelsWhenAccountOptedOut(t *testing.T) {
	row := baseRow()
	scheduled := &fakeScheduledEmails{due: []*domain.ScheduledEmail{row}}
	deps := baseDeps(scheduled)
	deps.Accounts = &fakeAccounts{byID: map[string]*domain.Account{
		"acct-1": {ID: "acct-1", OwnerID: "owner-1", Email: "jane@example.com", OptedOut: true, EmailValidationState: domain.EmailValidationValid},
	}}

	result, err := Run(context.Background(), time.Now(), deps)
	require.NoError(t, err)
	require.Equal(t, 0, result.Verified)
	require.Equal(t, 1, result.Cancelled)
	require.Equal(t, "account has opted out", scheduled.cancelled["row-1"])
}

func TestRunCancelsWhenUnsubscribed(t *testing.T) {
	row := baseRow()
	scheduled := &fakeScheduledEmails{due: []*domain.ScheduledEmail{row}}
	deps := baseDeps(scheduled)
	deps.Unsubscribes = &fakeUnsubscribes{set: map[string]bool{"jane@example.com": true}}

	result, err := Run(context.Background(), time.Now(), deps)
	require.NoError(t, err)
	require.Equal(t, 1, result.Cancelled)
	require.Equal(t, "recipient has unsubscribed", scheduled.cancelled["row-1"])
}

func TestRunCancelsWhenRecentlySentSameTemplate(t *testing.T) {
	row := baseRow()
	scheduled := &fakeScheduledEmails{due: []*domain.ScheduledEmail{row}}
	deps := baseDeps(scheduled)
	deps.EmailLogs = &fakeEmailLogs{recentlySent: true}

	result, err := Run(context.Background(), time.Now(), deps)
	require.NoError(t, err)
	require.Equal(t, 1, result.Cancelled)
	require.Equal(t, "recipient was already sent this template recently", scheduled.cancelled["row-1"])
}

func TestRunCancelsWhenPolicyNoLongerQualifies(t *testing.T) {
	row := baseRow()
	row.TriggerField = string(domain.FieldPolicyExpiration)
	row.QualificationValue = "2026-08-15"
	scheduled := &fakeScheduledEmails{due: []*domain.ScheduledEmail{row}}
	deps := baseDeps(scheduled)
	deps.Policies = &fakePolicies{byAccount: map[string][]*domain.Policy{
		"acct-1": {{ID: "pol-1", Status: domain.PolicyStatusExpired, ExpirationDate: mustParseDate("2026-08-15")}},
	}}

	result, err := Run(context.Background(), time.Now(), deps)
	require.NoError(t, err)
	require.Equal(t, 1, result.Cancelled)
	require.Equal(t, "triggering policy no longer qualifies", scheduled.cancelled["row-1"])
}

func mustParseDate(s string) time.Time {
	d, err := time.Parse("2006-01-02", s)
	if err != nil {
		panic(err)
	}
	return d
}
