// Package emailprovider holds the concrete domain.EmailProvider
// implementations this service can dispatch through: SendGrid, SES, and
// SMTP, selected at startup by config.Config's EmailProvider setting.
package emailprovider

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"

	"github.com/isg-automation/scheduler/internal/domain"
	"github.com/isg-automation/scheduler/pkg/logger"
)

const sendgridAPIBaseURL = "https://api.sendgrid.com"

// SendGrid implements domain.EmailProvider over SendGrid's v3 mail-send
// API, following the request-building shape of the teacher's
// SendGridService.SendEmail.
type SendGrid struct {
	httpClient domain.HTTPClient
	apiKey     string
	logger     logger.Logger
}

// NewSendGrid builds a SendGrid-backed EmailProvider.
func NewSendGrid(httpClient domain.HTTPClient, apiKey string, log logger.Logger) *SendGrid {
	return &SendGrid{httpClient: httpClient, apiKey: apiKey, logger: log}
}

type sgEmailAddress struct {
	Email string `json:"email"`
	Name  string `json:"name,omitempty"`
}

type sgPersonalization struct {
	To         []sgEmailAddress  `json:"to"`
	CustomArgs map[string]string `json:"custom_args,omitempty"`
}

type sgContent struct {
	Type  string `json:"type"`
	Value string `json:"value"`
}

type sgTrackingSetting struct {
	Enable bool `json:"enable"`
}

type sgTrackingSettings struct {
	ClickTracking        sgTrackingSetting `json:"click_tracking"`
	OpenTracking         sgTrackingSetting `json:"open_tracking"`
	SubscriptionTracking sgTrackingSetting `json:"subscription_tracking"`
}

type sgMailSendRequest struct {
	Personalizations []sgPersonalization `json:"personalizations"`
	From             sgEmailAddress      `json:"from"`
	ReplyTo          *sgEmailAddress     `json:"reply_to,omitempty"`
	Subject          string              `json:"subject"`
	Content          []sgContent         `json:"content"`
	Headers          map[string]string   `json:"headers,omitempty"`
	TrackingSettings sgTrackingSettings  `json:"tracking_settings"`
	Categories       []string            `json:"categories,omitempty"`
}

// CustomArgs names the personalization-level custom args spec.md §4.5
// step 7 requires, threaded through by the sender.
type CustomArgs struct {
	ScheduledEmailID string
	AutomationID     string
	AccountID        string
	OwnerID          string
	EmailLogID       string
}

// contextKey is the context key type the sender uses to pass categories and
// custom args through to Send without widening the domain.EmailProvider
// interface for a SendGrid-only concern.
type contextKey string

const (
	customArgsContextKey contextKey = "sendgrid_custom_args"
	categoriesContextKey contextKey = "sendgrid_categories"
)

// WithCustomArgs attaches the per-send personalization custom args to ctx.
func WithCustomArgs(ctx context.Context, args CustomArgs) context.Context {
	return context.WithValue(ctx, customArgsContextKey, args)
}

// WithCategories attaches the SendGrid categories to ctx.
func WithCategories(ctx context.Context, categories []string) context.Context {
	return context.WithValue(ctx, categoriesContextKey, categories)
}

// Send implements domain.EmailProvider.
func (s *SendGrid) Send(ctx context.Context, email domain.OutboundEmail) (domain.SendResult, error) {
	personalization := sgPersonalization{
		To: []sgEmailAddress{{Email: email.ToEmail, Name: email.ToName}},
	}
	if args, ok := ctx.Value(customArgsContextKey).(CustomArgs); ok {
		personalization.CustomArgs = map[string]string{
			"scheduled_email_id": args.ScheduledEmailID,
			"automation_id":      args.AutomationID,
			"account_id":         args.AccountID,
			"owner_id":           args.OwnerID,
			"email_log_id":       args.EmailLogID,
		}
	}

	mailReq := sgMailSendRequest{
		Personalizations: []sgPersonalization{personalization},
		From:             sgEmailAddress{Email: email.FromEmail, Name: email.FromName},
		Subject:          email.Subject,
		Content: []sgContent{
			{Type: "text/plain", Value: email.BodyText},
			{Type: "text/html", Value: email.BodyHTML},
		},
		TrackingSettings: sgTrackingSettings{
			ClickTracking:        sgTrackingSetting{Enable: true},
			OpenTracking:         sgTrackingSetting{Enable: true},
			SubscriptionTracking: sgTrackingSetting{Enable: false},
		},
	}
	if email.ReplyTo != "" {
		mailReq.ReplyTo = &sgEmailAddress{Email: email.ReplyTo}
	}
	if email.MessageID != "" {
		mailReq.Headers = map[string]string{"Message-ID": email.MessageID}
	}
	if categories, ok := ctx.Value(categoriesContextKey).([]string); ok {
		mailReq.Categories = categories
	}

	jsonData, err := json.Marshal(mailReq)
	if err != nil {
		return domain.SendResult{}, fmt.Errorf("failed to marshal email request: %w", err)
	}

	apiURL := fmt.Sprintf("%s/v3/mail/send", sendgridAPIBaseURL)
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, apiURL, bytes.NewBuffer(jsonData))
	if err != nil {
		return domain.SendResult{}, fmt.Errorf("failed to create request: %w", err)
	}
	req.Header.Set("Authorization", fmt.Sprintf("Bearer %s", s.apiKey))
	req.Header.Set("Content-Type", "application/json")

	resp, err := s.httpClient.Do(req)
	if err != nil {
		s.logger.WithError(err).Error("sendgrid request failed")
		return domain.SendResult{}, fmt.Errorf("failed to execute request: %w", err)
	}
	defer func() { _ = resp.Body.Close() }()

	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		body, _ := io.ReadAll(resp.Body)
		s.logger.WithField("status", resp.StatusCode).WithField("body", string(body)).Error("sendgrid returned non-2xx")
		return domain.SendResult{}, fmt.Errorf("sendgrid API returned status %d: %s", resp.StatusCode, string(body))
	}

	messageID := resp.Header.Get("X-Message-Id")
	if messageID == "" {
		messageID = email.MessageID
	}
	return domain.SendResult{ProviderMessageID: messageID}, nil
}
