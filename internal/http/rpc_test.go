package http

import (
	"bytes"
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/stretchr/testify/require"

	"github.com/isg-automation/scheduler/internal/domain"
	"github.com/isg-automation/scheduler/internal/service/reactor"
	"github.com/isg-automation/scheduler/internal/service/sender"
	"github.com/isg-automation/scheduler/internal/service/verifier"
)

type rpcFakeAutomations struct {
	byID map[string]*domain.Automation
}

func (f *rpcFakeAutomations) GetByID(ctx context.Context, id string) (*domain.Automation, error) {
	if a, ok := f.byID[id]; ok {
		return a, nil
	}
	return nil, &domain.ErrAutomationNotFound{ID: id}
}
func (f *rpcFakeAutomations) ListActive(ctx context.Context, offset, limit int) ([]*domain.Automation, error) {
	return nil, nil
}
func (f *rpcFakeAutomations) CountActive(ctx context.Context) (int, error) { return 0, nil }
func (f *rpcFakeAutomations) Create(ctx context.Context, a *domain.Automation) error { return nil }
func (f *rpcFakeAutomations) Update(ctx context.Context, a *domain.Automation) error { return nil }
func (f *rpcFakeAutomations) UpdateStatus(ctx context.Context, id string, status domain.AutomationStatus) error {
	if a, ok := f.byID[id]; ok {
		a.Status = status
	}
	return nil
}

type rpcFakeActivityLog struct{ events int }

func (f *rpcFakeActivityLog) RecordEvent(ctx context.Context, ownerID, accountID string, kind domain.ActivityEventKind, detail string) error {
	f.events++
	return nil
}

type rpcFakeScheduledEmails struct {
	ready   []*domain.ScheduledEmail
	claimed map[string]bool
}

func (f *rpcFakeScheduledEmails) InsertBatch(ctx context.Context, rows []*domain.ScheduledEmail) ([]*domain.ScheduledEmail, error) {
	return rows, nil
}
func (f *rpcFakeScheduledEmails) ListDueForVerification(ctx context.Context, now time.Time, window time.Duration, limit int) ([]*domain.ScheduledEmail, error) {
	return nil, nil
}
func (f *rpcFakeScheduledEmails) ListReadyToSend(ctx context.Context, now time.Time, limit int) ([]*domain.ScheduledEmail, error) {
	return f.ready, nil
}
func (f *rpcFakeScheduledEmails) Claim(ctx context.Context, id string, now time.Time) (*domain.ScheduledEmail, bool, error) {
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
func (f *rpcFakeScheduledEmails) MarkVerified(ctx context.Context, id string) error { return nil }
func (f *rpcFakeScheduledEmails) Cancel(ctx context.Context, id, reason string) error { return nil }
func (f *rpcFakeScheduledEmails) MarkSent(ctx context.Context, id, logID string) error { return nil }
func (f *rpcFakeScheduledEmails) MarkFailedOrRetry(ctx context.Context, id string, sendErr error) error {
	return nil
}
func (f *rpcFakeScheduledEmails) MarkFailed(ctx context.Context, id, reason string) error { return nil }
func (f *rpcFakeScheduledEmails) CancelPendingForAutomation(ctx context.Context, automationID, reason string) (int, error) {
	return 0, nil
}
func (f *rpcFakeScheduledEmails) ExistingKeys(ctx context.Context, automationID string, keys []domain.DedupKey) (map[domain.DedupKey]bool, error) {
	return nil, nil
}
func (f *rpcFakeScheduledEmails) ListStuckProcessing(ctx context.Context, threshold time.Duration, limit int) ([]*domain.ScheduledEmail, error) {
	return nil, nil
}
func (f *rpcFakeScheduledEmails) ResetToPending(ctx context.Context, id string) error { return nil }

func baseRPCDeps() RPCDeps {
	fixedNow := func() time.Time { return time.Date(2026, 7, 30, 12, 0, 0, 0, time.UTC) }
	scheduled := &rpcFakeScheduledEmails{}
	automations := &rpcFakeAutomations{byID: map[string]*domain.Automation{}}
	return RPCDeps{
		ReactorDeps: reactor.Deps{
			Automations:     automations,
			ScheduledEmails: scheduled,
			ActivityLog:     &rpcFakeActivityLog{},
		},
		VerifierDeps: verifier.Deps{ScheduledEmails: scheduled},
		SenderDeps:   sender.Deps{ScheduledEmails: scheduled},
		Automations:  automations,
		Now:          fixedNow,
	}
}

func postRPC(t *testing.T, deps RPCDeps, body interface{}) *httptest.ResponseRecorder {
	t.Helper()
	var reader *bytes.Reader
	if body == nil {
		reader = bytes.NewReader(nil)
	} else {
		b, err := json.Marshal(body)
		require.NoError(t, err)
		reader = bytes.NewReader(b)
	}
	req := httptest.NewRequest(http.MethodPost, "/api/automations.process", reader)
	req.ContentLength = int64(reader.Len())
	w := httptest.NewRecorder()
	handleRPC(w, req, deps)
	return w
}

func TestHandleRPCRejectsNonPost(t *testing.T) {
	w := httptest.NewRecorder()
	req := httptest.NewRequest(http.MethodGet, "/api/automations.process", nil)
	handleRPC(w, req, baseRPCDeps())
	require.Equal(t, http.StatusMethodNotAllowed, w.Code)
}

func TestHandleRPCDefaultsToDaily(t *testing.T) {
	w := postRPC(t, baseRPCDeps(), nil)
	require.Equal(t, http.StatusOK, w.Code)

	var resp rpcResponse
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &resp))
	require.Equal(t, "daily", resp.Action)
}

func TestHandleRPCProcessIsDailySynonym(t *testing.T) {
	w := postRPC(t, baseRPCDeps(), map[string]string{"action": "process"})
	require.Equal(t, http.StatusOK, w.Code)

	var resp rpcResponse
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &resp))
	require.Equal(t, "process", resp.Action)
}

func TestHandleRPCVerify(t *testing.T) {
	w := postRPC(t, baseRPCDeps(), map[string]string{"action": "verify"})
	require.Equal(t, http.StatusOK, w.Code)
}

func TestHandleRPCSendBatch(t *testing.T) {
	w := postRPC(t, baseRPCDeps(), map[string]string{"action": "send"})
	require.Equal(t, http.StatusOK, w.Code)

	var resp rpcResponse
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &resp))
	require.Equal(t, 0, resp.Sent)
}

func TestHandleRPCSendNowRequiresAdminToken(t *testing.T) {
	deps := baseRPCDeps()
	deps.AdminTokenSecret = "topsecret"
	w := postRPC(t, deps, map[string]string{"action": "send", "scheduledEmailId": "row-1"})
	require.Equal(t, http.StatusUnauthorized, w.Code)
}

func TestHandleRPCSendNowWithValidTokenButUnclaimableRow(t *testing.T) {
	deps := baseRPCDeps()
	deps.AdminTokenSecret = "topsecret"
	token, err := IssueAdminToken(deps.AdminTokenSecret, "row-1", time.Minute)
	require.NoError(t, err)

	var reader *bytes.Reader
	b, _ := json.Marshal(map[string]string{"action": "send", "scheduledEmailId": "row-1"})
	reader = bytes.NewReader(b)
	req := httptest.NewRequest(http.MethodPost, "/api/automations.process", reader)
	req.ContentLength = int64(reader.Len())
	req.Header.Set("Authorization", "Bearer "+token)
	w := httptest.NewRecorder()
	handleRPC(w, req, deps)

	// row-1 isn't in the ready set, so Claim reports it unclaimable.
	require.Equal(t, http.StatusConflict, w.Code)
}

func TestHandleRPCActivateRequiresAutomationID(t *testing.T) {
	w := postRPC(t, baseRPCDeps(), map[string]string{"action": "activate"})
	require.Equal(t, http.StatusBadRequest, w.Code)
}

func TestHandleRPCActivateTransitionsStatus(t *testing.T) {
	deps := baseRPCDeps()
	automation := &domain.Automation{ID: "auto-1", Status: domain.AutomationStatusDraft}
	deps.Automations.(*rpcFakeAutomations).byID["auto-1"] = automation
	deps.ReactorDeps.Automations = deps.Automations

	w := postRPC(t, deps, map[string]string{"action": "activate", "automationId": "auto-1"})
	require.Equal(t, http.StatusOK, w.Code)
	require.Equal(t, domain.AutomationStatusActive, automation.Status)
}

func TestHandleRPCUnknownAction(t *testing.T) {
	w := postRPC(t, baseRPCDeps(), map[string]string{"action": "bogus"})
	require.Equal(t, http.StatusBadRequest, w.Code)
}

func TestHandleRPCInvalidBody(t *testing.T) {
	req := httptest.NewRequest(http.MethodPost, "/api/automations.process", bytes.NewReader([]byte("{not json")))
	req.ContentLength = 9
	w := httptest.NewRecorder()
	handleRPC(w, req, baseRPCDeps())
	require.Equal(t, http.StatusBadRequest, w.Code)
}
