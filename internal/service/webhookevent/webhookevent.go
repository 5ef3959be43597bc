// Package webhookevent ingests inbound delivery-webhook payloads and
// updates email_logs accordingly. §6 says the core "only consumes
// [webhooks] by reading email_logs status during dedup" — this is the
// ingestion path that keeps that table current, grounded on the
// teacher's SendGridService.RegisterWebhooks/webhook-settings handling of
// the same SendGrid event-array shape.
package webhookevent

import (
	"context"
	"fmt"
	"time"

	"github.com/tidwall/gjson"
	"github.com/tidwall/sjson"

	"github.com/isg-automation/scheduler/internal/domain"
	"github.com/isg-automation/scheduler/pkg/logger"
)

// Deps are the collaborators one Ingest call needs.
type Deps struct {
	EmailLogs domain.EmailLogRepository
	Logger    logger.Logger
}

// Result summarizes one ingestion call.
type Result struct {
	Processed int
	Skipped   int
	Errors    []error
}

// eventKindToStatus maps a SendGrid event-webhook "event" field to the
// email_logs status it drives, following the teacher's webhook-settings
// event vocabulary (delivered/open/click/bounce/dropped).
var eventKindToStatus = map[string]domain.EmailLogStatus{
	"delivered": domain.EmailLogDelivered,
	"open":      domain.EmailLogOpened,
	"click":     domain.EmailLogClicked,
	"bounce":    domain.EmailLogBounced,
	"dropped":   domain.EmailLogBounced,
}

// Ingest parses a SendGrid-shaped event-array JSON body (the wire format
// SendGrid's event webhook posts) and applies each event to its matching
// email_logs row, resolved by sg_message_id first and falling back to the
// custom Message-ID header this system stamps on every outbound send.
func Ingest(ctx context.Context, body []byte, deps Deps) (*Result, error) {
	if !gjson.ValidBytes(body) {
		return nil, fmt.Errorf("webhookevent: invalid JSON body")
	}

	result := &Result{}
	events := gjson.ParseBytes(body)
	if !events.IsArray() {
		return nil, fmt.Errorf("webhookevent: expected a JSON array of events")
	}

	events.ForEach(func(_, event gjson.Result) bool {
		if err := applyEvent(ctx, event, deps); err != nil {
			if err == errSkipped {
				result.Skipped++
			} else {
				result.Errors = append(result.Errors, err)
			}
			return true
		}
		result.Processed++
		return true
	})
	return result, nil
}

var errSkipped = fmt.Errorf("webhookevent: skipped")

func applyEvent(ctx context.Context, event gjson.Result, deps Deps) error {
	kind := event.Get("event").String()
	status, ok := eventKindToStatus[kind]
	if !ok {
		return errSkipped
	}

	log, err := resolveLog(ctx, event, deps)
	if err != nil {
		if deps.Logger != nil {
			deps.Logger.WithField("event", redactEvent(event.Raw)).Warn("dropping webhook event with no matching email log")
		}
		return errSkipped
	}

	at := time.Now().UTC()
	if ts := event.Get("timestamp").Int(); ts > 0 {
		at = time.Unix(ts, 0).UTC()
	}

	switch status {
	case domain.EmailLogOpened:
		if err := deps.EmailLogs.IncrementOpen(ctx, log.ID); err != nil {
			return fmt.Errorf("webhookevent: incrementing open count for %s: %w", log.ID, err)
		}
	case domain.EmailLogClicked:
		if err := deps.EmailLogs.IncrementClick(ctx, log.ID); err != nil {
			return fmt.Errorf("webhookevent: incrementing click count for %s: %w", log.ID, err)
		}
	}

	if err := deps.EmailLogs.UpdateStatus(ctx, log.ID, status, at); err != nil {
		return fmt.Errorf("webhookevent: updating status for %s: %w", log.ID, err)
	}
	return nil
}

// redactEvent strips the recipient address before an unresolved event goes
// into the log line, so the drop reason is debuggable without leaking PII.
func redactEvent(raw string) string {
	redacted, err := sjson.Delete(raw, "email")
	if err != nil {
		return raw
	}
	return redacted
}

func resolveLog(ctx context.Context, event gjson.Result, deps Deps) (*domain.EmailLog, error) {
	if sgID := event.Get("sg_message_id").String(); sgID != "" {
		if log, err := deps.EmailLogs.GetBySendGridMessageID(ctx, sgID); err == nil {
			return log, nil
		}
	}
	if messageID := event.Get("smtp-id").String(); messageID != "" {
		if log, err := deps.EmailLogs.GetByMessageID(ctx, messageID); err == nil {
			return log, nil
		}
	}
	return nil, fmt.Errorf("webhookevent: no matching email log")
}
