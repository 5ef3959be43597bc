package reactor

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/require"

	"github.com/isg-automation/scheduler/internal/domain"
	"github.com/isg-automation/scheduler/internal/service/filtereval"
	"github.com/isg-automation/scheduler/pkg/tzconv"
)

type fakeAutomations struct {
	byID   map[string]*domain.Automation
	active []*domain.Automation
}

func (f *fakeAutomations) GetByID(ctx context.Context, id string) (*domain.Automation, error) {
	if a, ok := f.byID[id]; ok {
		return a, nil
	}
	return nil, &domain.ErrAutomationNotFound{ID: id}
}
func (f *fakeAutomations) ListActive(ctx context.Context, offset, limit int) ([]*domain.Automation, error) {
	return f.active, nil
}
func (f *fakeAutomations) CountActive(ctx context.Context) (int, error)          { return len(f.active), nil }
func (f *fakeAutomations) Create(ctx context.Context, a *domain.Automation) error { return nil }
func (f *fakeAutomations) Update(ctx context.Context, a *domain.Automation) error { return nil }
func (f *fakeAutomations) UpdateStatus(ctx context.Context, id string, status domain.AutomationStatus) error {
	if a, ok := f.byID[id]; ok {
		a.Status = status
	}
	return nil
}

type fakeAccounts struct {
	byID       map[string]*domain.Account
	candidates []*domain.Account
}

func (f *fakeAccounts) GetByID(ctx context.Context, ownerID, id string) (*domain.Account, error) {
	if a, ok := f.byID[id]; ok {
		return a, nil
	}
	return nil, &domain.ErrAccountNotFound{ID: id}
}
func (f *fakeAccounts) ListCandidates(ctx context.Context, ownerID string, offset, limit int) ([]*domain.Account, error) {
	if offset >= len(f.candidates) {
		return nil, nil
	}
	end := offset + limit
	if end > len(f.candidates) {
		end = len(f.candidates)
	}
	return f.candidates[offset:end], nil
}
func (f *fakeAccounts) CountCandidates(ctx context.Context, ownerID string) (int, error) {
	return len(f.candidates), nil
}
func (f *fakeAccounts) Create(ctx context.Context, a *domain.Account) error { return nil }
func (f *fakeAccounts) Update(ctx context.Context, a *domain.Account) error { return nil }

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

type fakeTemplates struct{ byID map[string]*domain.Template }

func (f *fakeTemplates) GetByID(ctx context.Context, id string) (*domain.Template, error) {
	if t, ok := f.byID[id]; ok {
		return t, nil
	}
	return nil, &domain.ErrTemplateNotFound{ID: id}
}
func (f *fakeTemplates) GetByDefaultKey(ctx context.Context, ownerID, key string) (*domain.Template, error) {
	for _, t := range f.byID {
		if t.DefaultKey == key {
			return t, nil
		}
	}
	return nil, &domain.ErrTemplateNotFound{ID: key}
}
func (f *fakeTemplates) Create(ctx context.Context, t *domain.Template) error { return nil }
func (f *fakeTemplates) Update(ctx context.Context, t *domain.Template) error { return nil }

type fakeScheduledEmails struct {
	inserted  []*domain.ScheduledEmail
	stuck     []*domain.ScheduledEmail
	reset     []string
	cancelled map[string]string
}

func (f *fakeScheduledEmails) InsertBatch(ctx context.Context, rows []*domain.ScheduledEmail) ([]*domain.ScheduledEmail, error) {
	f.inserted = append(f.inserted, rows...)
	return rows, nil
}
func (f *fakeScheduledEmails) ListDueForVerification(ctx context.Context, now time.Time, window time.Duration, limit int) ([]*domain.ScheduledEmail, error) {
	return nil, nil
}
func (f *fakeScheduledEmails) ListReadyToSend(ctx context.Context, now time.Time, limit int) ([]*domain.ScheduledEmail, error) {
	return nil, nil
}
func (f *fakeScheduledEmails) Claim(ctx context.Context, id string, now time.Time) (*domain.ScheduledEmail, bool, error) {
	return nil, false, nil
}
func (f *fakeScheduledEmails) MarkVerified(ctx context.Context, id string) error { return nil }
func (f *fakeScheduledEmails) Cancel(ctx context.Context, id, reason string) error {
	return nil
}
func (f *fakeScheduledEmails) MarkSent(ctx context.Context, id, logID string) error { return nil }
func (f *fakeScheduledEmails) MarkFailedOrRetry(ctx context.Context, id string, sendErr error) error {
	return nil
}
func (f *fakeScheduledEmails) MarkFailed(ctx context.Context, id, reason string) error { return nil }
func (f *fakeScheduledEmails) CancelPendingForAutomation(ctx context.Context, automationID, reason string) (int, error) {
	if f.cancelled == nil {
		f.cancelled = map[string]string{}
	}
	f.cancelled[automationID] = reason
	return 2, nil
}
func (f *fakeScheduledEmails) ExistingKeys(ctx context.Context, automationID string, keys []domain.DedupKey) (map[domain.DedupKey]bool, error) {
	return nil, nil
}
func (f *fakeScheduledEmails) ListStuckProcessing(ctx context.Context, threshold time.Duration, limit int) ([]*domain.ScheduledEmail, error) {
	return f.stuck, nil
}
func (f *fakeScheduledEmails) ResetToPending(ctx context.Context, id string) error {
	f.reset = append(f.reset, id)
	return nil
}

type fakeEmailLogs struct{}

func (f *fakeEmailLogs) Create(ctx context.Context, log *domain.EmailLog) error { return nil }
func (f *fakeEmailLogs) UpdateStatus(ctx context.Context, id string, status domain.EmailLogStatus, at time.Time) error {
	return nil
}
func (f *fakeEmailLogs) IncrementOpen(ctx context.Context, id string) error  { return nil }
func (f *fakeEmailLogs) IncrementClick(ctx context.Context, id string) error { return nil }
func (f *fakeEmailLogs) IncrementReply(ctx context.Context, id string) error { return nil }
func (f *fakeEmailLogs) ExistsRecentForTemplate(ctx context.Context, templateID, toEmail string, window time.Duration) (bool, error) {
	return false, nil
}
func (f *fakeEmailLogs) LastEngagedAt(ctx context.Context, ownerID string, accountIDs []string) (map[string]time.Time, error) {
	return map[string]time.Time{}, nil
}
func (f *fakeEmailLogs) GetBySendGridMessageID(ctx context.Context, id string) (*domain.EmailLog, error) {
	return nil, domain.NewErrNotFound("email_log", id)
}
func (f *fakeEmailLogs) GetByMessageID(ctx context.Context, id string) (*domain.EmailLog, error) {
	return nil, domain.NewErrNotFound("email_log", id)
}

type fakeActivityLog struct{ events []domain.ActivityEventKind }

func (f *fakeActivityLog) RecordEvent(ctx context.Context, ownerID, accountID string, kind domain.ActivityEventKind, detail string) error {
	f.events = append(f.events, kind)
	return nil
}

func testAutomation(id string, filter domain.Filter) *domain.Automation {
	return &domain.Automation{
		ID: id, Status: domain.AutomationStatusActive, SendTime: "09:00", Timezone: "UTC",
		Filter: filter,
		Nodes: domain.NodeList{
			{ID: "n1", Type: domain.NodeSendEmail, Template: "tpl-1"},
		},
	}
}

func baseDeps(automations *fakeAutomations, accounts *fakeAccounts, scheduled *fakeScheduledEmails) Deps {
	return Deps{
		Automations:     automations,
		Accounts:        accounts,
		Policies:        &fakePolicies{},
		Templates:       &fakeTemplates{byID: map[string]*domain.Template{"tpl-1": {ID: "tpl-1", Subject: "hi", FromEmail: "a@b.com"}}},
		ScheduledEmails: scheduled,
		ActivityLog:     &fakeActivityLog{},
		FilterDeps:      filtereval.Deps{Policies: &fakePolicies{}, EmailLogs: &fakeEmailLogs{}},
		TZConv:          tzconv.ForMode("real"),
	}
}

func TestRefreshSchedulesMatchingAccounts(t *testing.T) {
	account := &domain.Account{ID: "acct-1", OwnerID: "owner-1", Email: "a@example.com", EmailValidationState: domain.EmailValidationValid}
	automation := testAutomation("auto-1", domain.Filter{})
	automations := &fakeAutomations{byID: map[string]*domain.Automation{"auto-1": automation}, active: []*domain.Automation{automation}}
	accounts := &fakeAccounts{byID: map[string]*domain.Account{"acct-1": account}, candidates: []*domain.Account{account}}
	scheduled := &fakeScheduledEmails{}
	deps := baseDeps(automations, accounts, scheduled)

	result, err := Refresh(context.Background(), automation, time.Now(), 0, deps)
	require.NoError(t, err)
	require.Equal(t, 1, result.NewScheduled)
	require.False(t, result.HasMore)
}

func TestRefreshReportsHasMoreWhenPageIsFull(t *testing.T) {
	account := &domain.Account{ID: "acct-1", OwnerID: "owner-1", Email: "a@example.com", EmailValidationState: domain.EmailValidationValid}
	automation := testAutomation("auto-1", domain.Filter{})
	automations := &fakeAutomations{byID: map[string]*domain.Automation{"auto-1": automation}, active: []*domain.Automation{automation}}
	accounts := &fakeAccounts{byID: map[string]*domain.Account{"acct-1": account}, candidates: []*domain.Account{account}}
	scheduled := &fakeScheduledEmails{}
	deps := baseDeps(automations, accounts, scheduled)
	deps.MaxAccountsPerRefresh = 1

	result, err := Refresh(context.Background(), automation, time.Now(), 0, deps)
	require.NoError(t, err)
	require.True(t, result.HasMore)
	require.Equal(t, 1, result.NextOffset)
}

func TestActivateTransitionsStatusAndRecordsEvent(t *testing.T) {
	automation := testAutomation("auto-1", domain.Filter{})
	automation.Status = domain.AutomationStatusDraft
	automations := &fakeAutomations{byID: map[string]*domain.Automation{"auto-1": automation}}
	deps := baseDeps(automations, &fakeAccounts{}, &fakeScheduledEmails{})

	err := Activate(context.Background(), "auto-1", deps)
	require.NoError(t, err)
	require.Equal(t, domain.AutomationStatusActive, automation.Status)
}

func TestDeactivateCancelsPendingRows(t *testing.T) {
	automation := testAutomation("auto-1", domain.Filter{})
	automations := &fakeAutomations{byID: map[string]*domain.Automation{"auto-1": automation}}
	scheduled := &fakeScheduledEmails{}
	deps := baseDeps(automations, &fakeAccounts{}, scheduled)

	cancelled, err := Deactivate(context.Background(), "auto-1", "paused by operator", deps)
	require.NoError(t, err)
	require.Equal(t, 2, cancelled)
	require.Equal(t, domain.AutomationStatusPaused, automation.Status)
	require.Equal(t, "paused by operator", scheduled.cancelled["auto-1"])
}

func TestReapStuckResetsRowsPastThreshold(t *testing.T) {
	stuck := []*domain.ScheduledEmail{{ID: "row-1"}, {ID: "row-2"}}
	scheduled := &fakeScheduledEmails{stuck: stuck}
	deps := baseDeps(&fakeAutomations{}, &fakeAccounts{}, scheduled)

	reaped, err := ReapStuck(context.Background(), time.Now(), deps)
	require.NoError(t, err)
	require.Equal(t, 2, reaped)
	require.ElementsMatch(t, []string{"row-1", "row-2"}, scheduled.reset)
}

func TestOnAccountCreatedPlansAgainstActiveAutomations(t *testing.T) {
	account := &domain.Account{ID: "acct-1", OwnerID: "owner-1", Email: "a@example.com", EmailValidationState: domain.EmailValidationValid}
	automation := testAutomation("auto-1", domain.Filter{})
	ownerID := "owner-1"
	automation.OwnerID = &ownerID
	automations := &fakeAutomations{byID: map[string]*domain.Automation{"auto-1": automation}, active: []*domain.Automation{automation}}
	accounts := &fakeAccounts{byID: map[string]*domain.Account{"acct-1": account}}
	scheduled := &fakeScheduledEmails{}
	deps := baseDeps(automations, accounts, scheduled)

	result, err := OnAccountCreated(context.Background(), "owner-1", "acct-1", time.Now(), deps)
	require.NoError(t, err)
	require.Equal(t, 1, result.NewScheduled)
}
