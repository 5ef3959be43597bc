package planner

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/require"

	"github.com/isg-automation/scheduler/internal/domain"
	"github.com/isg-automation/scheduler/internal/service/filtereval"
	"github.com/isg-automation/scheduler/pkg/logger"
	"github.com/isg-automation/scheduler/pkg/tzconv"
)

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

type fakeScheduledEmails struct {
	inserted []*domain.ScheduledEmail
	existing map[domain.DedupKey]bool
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
func (f *fakeScheduledEmails) MarkVerified(ctx context.Context, id string) error   { return nil }
func (f *fakeScheduledEmails) Cancel(ctx context.Context, id, reason string) error { return nil }
func (f *fakeScheduledEmails) MarkSent(ctx context.Context, id, logID string) error { return nil }
func (f *fakeScheduledEmails) MarkFailedOrRetry(ctx context.Context, id string, sendErr error) error {
	return nil
}
func (f *fakeScheduledEmails) MarkFailed(ctx context.Context, id, reason string) error { return nil }
func (f *fakeScheduledEmails) CancelPendingForAutomation(ctx context.Context, automationID, reason string) (int, error) {
	return 0, nil
}
func (f *fakeScheduledEmails) ExistingKeys(ctx context.Context, automationID string, keys []domain.DedupKey) (map[domain.DedupKey]bool, error) {
	if f.existing == nil {
		return map[domain.DedupKey]bool{}, nil
	}
	return f.existing, nil
}
func (f *fakeScheduledEmails) ListStuckProcessing(ctx context.Context, threshold time.Duration, limit int) ([]*domain.ScheduledEmail, error) {
	return nil, nil
}
func (f *fakeScheduledEmails) ResetToPending(ctx context.Context, id string) error { return nil }

func testAutomation(sendTime string, filter domain.Filter, nodes domain.NodeList) *domain.Automation {
	return &domain.Automation{
		ID:       "auto-1",
		Name:     "test automation",
		Status:   domain.AutomationStatusActive,
		SendTime: sendTime,
		Timezone: "UTC",
		Filter:   filter,
		Nodes:    nodes,
	}
}

func testDeps(accounts map[string]*domain.Account, policies map[string][]*domain.Policy, templates map[string]*domain.Template, scheduled *fakeScheduledEmails) Deps {
	return Deps{
		Accounts:        &fakeAccounts{byID: accounts},
		Policies:        &fakePolicies{byAccount: policies},
		Templates:       &fakeTemplates{byID: templates},
		ScheduledEmails: scheduled,
		FilterDeps: filtereval.Deps{
			Policies:  &fakePolicies{byAccount: policies},
			EmailLogs: &fakeEmailLogs{},
		},
		TZConv: tzconv.ForMode("real"),
		Logger: logger.NewNopLogger(),
	}
}

func TestPlanImmediateSchedulesTodayForMatchingAccounts(t *testing.T) {
	now := time.Date(2026, 7, 30, 8, 0, 0, 0, time.UTC)
	account := &domain.Account{
		ID: "acct-1", OwnerID: "owner-1", Email: "jane@example.com",
		EmailValidationState: domain.EmailValidationValid, CreatedAt: now.AddDate(0, 0, -10),
	}
	tpl := &domain.Template{ID: "tpl-1", Subject: "Hi"}
	nodes := domain.NodeList{
		{ID: "n1", Type: domain.NodeSendEmail, Template: "tpl-1"},
	}
	automation := testAutomation("23:00", domain.Filter{}, nodes)

	scheduled := &fakeScheduledEmails{}
	deps := testDeps(map[string]*domain.Account{account.ID: account}, nil, map[string]*domain.Template{tpl.ID: tpl}, scheduled)

	result, err := Plan(context.Background(), "owner-1", automation, []*domain.Account{account}, now, deps)
	require.NoError(t, err)
	require.Empty(t, result.Errors)
	require.Len(t, scheduled.inserted, 1)
	require.Equal(t, domain.ImmediateQualificationValue, scheduled.inserted[0].QualificationValue)
	require.True(t, scheduled.inserted[0].ScheduledFor.After(now))
}

func TestPlanSkipsUnsendableAccounts(t *testing.T) {
	now := time.Date(2026, 7, 30, 8, 0, 0, 0, time.UTC)
	account := &domain.Account{
		ID: "acct-1", OwnerID: "owner-1", Email: "jane@example.com",
		EmailValidationState: domain.EmailValidationInvalid,
	}
	tpl := &domain.Template{ID: "tpl-1", Subject: "Hi"}
	nodes := domain.NodeList{{ID: "n1", Type: domain.NodeSendEmail, Template: "tpl-1"}}
	automation := testAutomation("12:00", domain.Filter{}, nodes)

	scheduled := &fakeScheduledEmails{}
	deps := testDeps(map[string]*domain.Account{account.ID: account}, nil, map[string]*domain.Template{tpl.ID: tpl}, scheduled)

	result, err := Plan(context.Background(), "owner-1", automation, []*domain.Account{account}, now, deps)
	require.NoError(t, err)
	require.Empty(t, result.Errors)
	require.Empty(t, scheduled.inserted)
}

func TestPlanDateTriggeredUsesPolicyExpiration(t *testing.T) {
	now := time.Date(2026, 7, 30, 8, 0, 0, 0, time.UTC)
	account := &domain.Account{
		ID: "acct-1", OwnerID: "owner-1", Email: "jane@example.com",
		EmailValidationState: domain.EmailValidationValid,
	}
	policy := &domain.Policy{
		ID: "pol-1", AccountID: "acct-1", OwnerID: "owner-1", LOB: "auto",
		Status:         domain.PolicyStatusActive,
		EffectiveDate:  now.AddDate(0, -6, 0),
		ExpirationDate: now.AddDate(0, 0, 45),
	}
	tpl := &domain.Template{ID: "tpl-1", Subject: "Renew"}
	nodes := domain.NodeList{{ID: "n1", Type: domain.NodeSendEmail, Template: "tpl-1"}}
	filter := domain.Filter{Groups: []domain.Group{{Rules: []domain.Rule{
		{Field: domain.FieldPolicyExpiration, Operator: domain.OpInNextDays, Value: "30"},
	}}}}
	automation := testAutomation("09:00", filter, nodes)

	scheduled := &fakeScheduledEmails{}
	deps := testDeps(
		map[string]*domain.Account{account.ID: account},
		map[string][]*domain.Policy{account.ID: {policy}},
		map[string]*domain.Template{tpl.ID: tpl},
		scheduled,
	)

	result, err := Plan(context.Background(), "owner-1", automation, []*domain.Account{account}, now, deps)
	require.NoError(t, err)
	require.Empty(t, result.Errors)
	require.Len(t, scheduled.inserted, 1)
	row := scheduled.inserted[0]
	require.Equal(t, policy.ExpirationDate.Format("2006-01-02"), row.QualificationValue)
	require.Equal(t, string(domain.FieldPolicyExpiration), row.TriggerField)
}

func TestPlanDropsRowsBeyondHorizon(t *testing.T) {
	now := time.Date(2026, 7, 30, 8, 0, 0, 0, time.UTC)
	account := &domain.Account{
		ID: "acct-1", OwnerID: "owner-1", Email: "jane@example.com",
		EmailValidationState: domain.EmailValidationValid,
	}
	policy := &domain.Policy{
		ID: "pol-1", AccountID: "acct-1", OwnerID: "owner-1", LOB: "auto",
		Status:         domain.PolicyStatusActive,
		EffectiveDate:  now.AddDate(-1, 0, 0),
		ExpirationDate: now.AddDate(2, 0, 0), // 2 years out, beyond horizon
	}
	tpl := &domain.Template{ID: "tpl-1", Subject: "Renew"}
	nodes := domain.NodeList{{ID: "n1", Type: domain.NodeSendEmail, Template: "tpl-1"}}
	filter := domain.Filter{Groups: []domain.Group{{Rules: []domain.Rule{
		{Field: domain.FieldPolicyExpiration, Operator: domain.OpInNextDays, Value: "30"},
	}}}}
	automation := testAutomation("09:00", filter, nodes)

	scheduled := &fakeScheduledEmails{}
	deps := testDeps(
		map[string]*domain.Account{account.ID: account},
		map[string][]*domain.Policy{account.ID: {policy}},
		map[string]*domain.Template{tpl.ID: tpl},
		scheduled,
	)

	result, err := Plan(context.Background(), "owner-1", automation, []*domain.Account{account}, now, deps)
	require.NoError(t, err)
	require.Empty(t, result.Errors)
	require.Empty(t, scheduled.inserted)
}

func TestPlanAbortsWhenTemplateUnresolvable(t *testing.T) {
	now := time.Date(2026, 7, 30, 8, 0, 0, 0, time.UTC)
	account := &domain.Account{
		ID: "acct-1", OwnerID: "owner-1", Email: "jane@example.com",
		EmailValidationState: domain.EmailValidationValid,
	}
	nodes := domain.NodeList{{ID: "n1", Type: domain.NodeSendEmail, TemplateKey: "missing_key"}}
	automation := testAutomation("09:00", domain.Filter{}, nodes)

	scheduled := &fakeScheduledEmails{}
	deps := testDeps(map[string]*domain.Account{account.ID: account}, nil, map[string]*domain.Template{}, scheduled)

	_, err := Plan(context.Background(), "owner-1", automation, []*domain.Account{account}, now, deps)
	require.Error(t, err)
	require.Empty(t, scheduled.inserted)
}

func TestPlanRespectsExistingDedupKeys(t *testing.T) {
	now := time.Date(2026, 7, 30, 8, 0, 0, 0, time.UTC)
	account := &domain.Account{
		ID: "acct-1", OwnerID: "owner-1", Email: "jane@example.com",
		EmailValidationState: domain.EmailValidationValid, CreatedAt: now.AddDate(0, 0, -10),
	}
	tpl := &domain.Template{ID: "tpl-1", Subject: "Hi"}
	nodes := domain.NodeList{{ID: "n1", Type: domain.NodeSendEmail, Template: "tpl-1"}}
	automation := testAutomation("23:00", domain.Filter{}, nodes)

	scheduled := &fakeScheduledEmails{existing: map[domain.DedupKey]bool{
		{AutomationID: "auto-1", AccountID: "acct-1", TemplateID: "tpl-1", QualificationValue: domain.ImmediateQualificationValue}: true,
	}}
	deps := testDeps(map[string]*domain.Account{account.ID: account}, nil, map[string]*domain.Template{tpl.ID: tpl}, scheduled)

	result, err := Plan(context.Background(), "owner-1", automation, []*domain.Account{account}, now, deps)
	require.NoError(t, err)
	require.Empty(t, result.Errors)
	require.Empty(t, scheduled.inserted)
	require.Equal(t, 0, result.NewScheduled)
}
