package http

import (
	"bytes"
	"context"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/stretchr/testify/require"

	"github.com/isg-automation/scheduler/internal/domain"
	"github.com/isg-automation/scheduler/internal/service/webhookevent"
)

type webhookFakeEmailLogs struct {
	byMessageID map[string]*domain.EmailLog
	updated     map[string]domain.EmailLogStatus
}

func (f *webhookFakeEmailLogs) Create(ctx context.Context, log *domain.EmailLog) error { return nil }
func (f *webhookFakeEmailLogs) UpdateStatus(ctx context.Context, id string, status domain.EmailLogStatus, at time.Time) error {
	if f.updated == nil {
		f.updated = map[string]domain.EmailLogStatus{}
	}
	f.updated[id] = status
	return nil
}
func (f *webhookFakeEmailLogs) IncrementOpen(ctx context.Context, id string) error  { return nil }
func (f *webhookFakeEmailLogs) IncrementClick(ctx context.Context, id string) error { return nil }
func (f *webhookFakeEmailLogs) IncrementReply(ctx context.Context, id string) error { return nil }
func (f *webhookFakeEmailLogs) ExistsRecentForTemplate(ctx context.Context, templateID, toEmail string, window time.Duration) (bool, error) {
	return false, nil
}
func (f *webhookFakeEmailLogs) LastEngagedAt(ctx context.Context, ownerID string, accountIDs []string) (map[string]time.Time, error) {
	return nil, nil
}
func (f *webhookFakeEmailLogs) GetBySendGridMessageID(ctx context.Context, messageID string) (*domain.EmailLog, error) {
	return nil, nil
}
func (f *webhookFakeEmailLogs) GetByMessageID(ctx context.Context, messageID string) (*domain.EmailLog, error) {
	if log, ok := f.byMessageID[messageID]; ok {
		return log, nil
	}
	return nil, nil
}

func TestHandleWebhookRejectsNonPost(t *testing.T) {
	req := httptest.NewRequest(http.MethodGet, "/api/webhooks.email", nil)
	w := httptest.NewRecorder()
	handleWebhook(w, req, WebhookDeps{})
	require.Equal(t, http.StatusMethodNotAllowed, w.Code)
}

func TestHandleWebhookRejectsMissingSignatureWhenSecretConfigured(t *testing.T) {
	req := httptest.NewRequest(http.MethodPost, "/api/webhooks.email", bytes.NewReader([]byte(`[]`)))
	w := httptest.NewRecorder()
	handleWebhook(w, req, WebhookDeps{SigningSecret: "whsec_test"})
	require.Equal(t, http.StatusUnauthorized, w.Code)
}

func TestHandleWebhookIngestsWhenSigningDisabled(t *testing.T) {
	logs := &webhookFakeEmailLogs{byMessageID: map[string]*domain.EmailLog{
		"msg-1": {ID: "log-1"},
	}}
	body := `[{"event":"delivered","smtp-id":"msg-1"}]`
	req := httptest.NewRequest(http.MethodPost, "/api/webhooks.email", bytes.NewReader([]byte(body)))
	w := httptest.NewRecorder()
	handleWebhook(w, req, WebhookDeps{Ingest: webhookevent.Deps{EmailLogs: logs}})

	require.Equal(t, http.StatusNoContent, w.Code)
	require.Equal(t, domain.EmailLogDelivered, logs.updated["log-1"])
}

func TestHandleWebhookRejectsMalformedBody(t *testing.T) {
	req := httptest.NewRequest(http.MethodPost, "/api/webhooks.email", bytes.NewReader([]byte(`not json`)))
	w := httptest.NewRecorder()
	handleWebhook(w, req, WebhookDeps{Ingest: webhookevent.Deps{EmailLogs: &webhookFakeEmailLogs{}}})
	require.Equal(t, http.StatusBadRequest, w.Code)
}
