package http

import (
	"io"
	"net/http"

	webhooks "github.com/standard-webhooks/standard-webhooks/libraries/go"

	"github.com/isg-automation/scheduler/internal/service/webhookevent"
	"github.com/isg-automation/scheduler/pkg/logger"
)

// WebhookDeps are the collaborators the /api/webhooks.email route needs.
type WebhookDeps struct {
	Ingest webhookevent.Deps

	SigningSecret string
	Logger        logger.Logger
}

// RegisterWebhookRoutes wires the inbound delivery-webhook route onto mux.
func RegisterWebhookRoutes(mux *http.ServeMux, deps WebhookDeps) {
	mux.HandleFunc("/api/webhooks.email", func(w http.ResponseWriter, r *http.Request) {
		handleWebhook(w, r, deps)
	})
}

func handleWebhook(w http.ResponseWriter, r *http.Request, deps WebhookDeps) {
	if r.Method != http.MethodPost {
		http.Error(w, "method not allowed", http.StatusMethodNotAllowed)
		return
	}

	body, err := io.ReadAll(r.Body)
	if err != nil {
		http.Error(w, "reading body: "+err.Error(), http.StatusBadRequest)
		return
	}

	if deps.SigningSecret != "" {
		if err := verifyWebhookSignature(deps.SigningSecret, body, r.Header); err != nil {
			if deps.Logger != nil {
				deps.Logger.WithError(err).Warn("rejecting webhook with invalid signature")
			}
			http.Error(w, "invalid signature", http.StatusUnauthorized)
			return
		}
	}

	result, err := webhookevent.Ingest(r.Context(), body, deps.Ingest)
	if err != nil {
		http.Error(w, err.Error(), http.StatusBadRequest)
		return
	}
	if deps.Logger != nil {
		deps.Logger.WithFields(map[string]interface{}{
			"processed": result.Processed,
			"skipped":   result.Skipped,
			"errors":    len(result.Errors),
		}).Info("ingested delivery webhook")
	}

	w.WriteHeader(http.StatusNoContent)
}

// verifyWebhookSignature checks the inbound request against the
// Standard Webhooks signature scheme (webhook-id/webhook-timestamp/
// webhook-signature headers), the scheme the configured
// Webhook.SigningSecret is provisioned for.
func verifyWebhookSignature(secret string, body []byte, header http.Header) error {
	wh, err := webhooks.NewWebhook(secret)
	if err != nil {
		return err
	}
	return wh.Verify(body, header)
}
