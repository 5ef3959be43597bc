package domain

import (
	"context"
	"database/sql/driver"
	"fmt"
	"net/url"
	"time"

	"github.com/asaskevich/govalidator"

	"github.com/isg-automation/scheduler/pkg/notifuse_mjml"
)

//go:generate mockgen -destination mocks/mock_template_repository.go -package mocks github.com/isg-automation/scheduler/internal/domain TemplateRepository

// Template is an "Email template" per spec.md §3: identifier, owner,
// optional default_key for system templates that fan out to every owner,
// subject, compiled body, from-identity.
type Template struct {
	ID             string                `json:"id" valid:"required,uuid"`
	OwnerID        string                `json:"owner_id,omitempty"` // "" for a system template
	DefaultKey     string                `json:"default_key,omitempty"`
	Subject        string                `json:"subject" valid:"required"`
	VisualEditorTree notifuse_mjml.EmailBlock `json:"visual_editor_tree,omitempty"`
	BodyHTML       string                `json:"body_html"`
	BodyText       string                `json:"body_text,omitempty"`
	FromEmail      string                `json:"from_email" valid:"required,email"`
	FromName       string                `json:"from_name,omitempty"`
	CreatedAt      time.Time             `json:"created_at"`
	UpdatedAt      time.Time             `json:"updated_at"`
}

// Validate enforces struct-tag rules. BodyHTML is not required at
// validation time — it is populated by Compile.
func (t *Template) Validate() error {
	if _, err := govalidator.ValidateStruct(t); err != nil {
		return fmt.Errorf("invalid template: %w", err)
	}
	return nil
}

// IsSystemDefault reports whether the template is a system template
// resolved by DefaultKey rather than a literal per-owner template.
func (t *Template) IsSystemDefault() bool {
	return t.OwnerID == "" && t.DefaultKey != ""
}

// Compile renders BodyHTML from VisualEditorTree using the given merge
// field data and tracking settings, following
// pkg/notifuse_mjml.CompileTemplate. If VisualEditorTree is nil (a
// template authored as raw HTML rather than through the visual editor),
// Compile is a no-op and BodyHTML is used as-is.
func (t *Template) Compile(mergeData MapOfAny, tracking notifuse_mjml.TrackingSettings) error {
	if t.VisualEditorTree == nil {
		return nil
	}
	resp, err := notifuse_mjml.CompileTemplate(notifuse_mjml.CompileTemplateRequest{
		VisualEditorTree: t.VisualEditorTree,
		TemplateData:     mergeData,
		TrackingSettings: tracking,
	})
	if err != nil {
		return fmt.Errorf("compile template %s: %w", t.ID, err)
	}
	if resp.HTML != nil {
		t.BodyHTML = *resp.HTML
	}
	return nil
}

type dbTemplate struct {
	ID               string
	OwnerID          string
	DefaultKey       string
	Subject          string
	VisualEditorTree []byte
	BodyHTML         string
	BodyText         string
	FromEmail        string
	FromName         string
	CreatedAt        time.Time
	UpdatedAt        time.Time
}

// ScanTemplate scans one row into a Template.
func ScanTemplate(scanner interface{ Scan(dest ...interface{}) error }) (*Template, error) {
	var d dbTemplate
	if err := scanner.Scan(
		&d.ID, &d.OwnerID, &d.DefaultKey, &d.Subject, &d.VisualEditorTree,
		&d.BodyHTML, &d.BodyText, &d.FromEmail, &d.FromName, &d.CreatedAt, &d.UpdatedAt,
	); err != nil {
		return nil, err
	}
	t := &Template{
		ID: d.ID, OwnerID: d.OwnerID, DefaultKey: d.DefaultKey, Subject: d.Subject,
		BodyHTML: d.BodyHTML, BodyText: d.BodyText, FromEmail: d.FromEmail, FromName: d.FromName,
		CreatedAt: d.CreatedAt, UpdatedAt: d.UpdatedAt,
	}
	if len(d.VisualEditorTree) > 0 {
		tree, err := notifuse_mjml.UnmarshalEmailBlock(d.VisualEditorTree)
		if err != nil {
			return nil, fmt.Errorf("decode visual_editor_tree for template %s: %w", d.ID, err)
		}
		t.VisualEditorTree = tree
	}
	return t, nil
}

// VisualEditorTreeValue marshals VisualEditorTree (nil-safe) for the
// repository's INSERT/UPDATE statements, since driver.Valuer cannot be
// implemented directly on an interface-typed struct field.
func (t Template) VisualEditorTreeValue() (driver.Value, error) {
	if t.VisualEditorTree == nil {
		return nil, nil
	}
	return notifuse_mjml.MarshalEmailBlock(t.VisualEditorTree)
}

// TemplateRepository is the read surface the planner (C2) and sender
// (C5) use to resolve literal and key-based template references.
type TemplateRepository interface {
	GetByID(ctx context.Context, id string) (*Template, error)
	// GetByDefaultKey resolves a send_email node's templateKey against the
	// owner's templates only; system templates (ownerID == "") are not
	// searched.
	GetByDefaultKey(ctx context.Context, ownerID, defaultKey string) (*Template, error)
	Create(ctx context.Context, t *Template) error
	Update(ctx context.Context, t *Template) error
}

// ErrTemplateNotFound is returned by TemplateRepository lookups.
type ErrTemplateNotFound struct{ ID string }

func (e *ErrTemplateNotFound) Error() string { return fmt.Sprintf("template %q not found", e.ID) }

// MapOfAny is the merge-field data bag passed into template compilation
// and Liquid substitution, following the teacher's MapOfAny alias.
type MapOfAny map[string]interface{}

// BuildTemplateData assembles the merge-field map for one scheduled
// send, following the teacher's BuildTemplateData shape (contact/list/
// tracking fields) generalized to account/policy/automation fields. The
// unsubscribe URL is the base URL plus an email= query parameter
// carrying the recipient; it carries no signature or token.
func BuildTemplateData(account *Account, policy *Policy, automation *Automation, settings *UserSettings, unsubscribeBaseURL string) MapOfAny {
	data := MapOfAny{
		"account": MapOfAny{
			"id":           account.ID,
			"first_name":   account.FirstName,
			"last_name":    account.LastName,
			"full_name":    account.FullName(),
			"email":        account.Email,
			"city":         account.City,
			"state":        account.State,
			"postal_code":  account.PostalCode,
			"company_name": account.CompanyName,
		},
	}
	if policy != nil {
		data["policy"] = MapOfAny{
			"id":              policy.ID,
			"lob":             policy.LOB,
			"status":          string(policy.Status),
			"term_label":      policy.TermLabel,
			"effective_date":  policy.EffectiveDate.Format("2006-01-02"),
			"expiration_date": policy.ExpirationDate.Format("2006-01-02"),
		}
	}
	if settings != nil {
		data["agency"] = MapOfAny{
			"from_name":        settings.FromName,
			"reply_to_email":   settings.ReplyToEmail,
			"signature_html":   settings.SignatureHTML,
			"agency_name":      settings.AgencyName,
			"agency_address":   settings.AgencyAddress,
			"agency_phone":     settings.AgencyPhone,
			"agency_website":   settings.AgencyWebsite,
			"google_review_url": settings.GoogleReviewURL,
		}
	}
	if automation != nil {
		data["automation"] = MapOfAny{
			"id":   automation.ID,
			"name": automation.Name,
		}
	}
	data["unsubscribe_url"] = GenerateUnsubscribeURL(unsubscribeBaseURL, account.Email)
	return data
}

// GenerateUnsubscribeURL builds the per-recipient unsubscribe link
// embedded in every marketing email's footer, following the teacher's
// GenerateEmailRedirectionEndpoint idiom of building a url.Values query
// string against a configured base endpoint.
func GenerateUnsubscribeURL(baseURL, email string) string {
	q := url.Values{}
	q.Set("email", email)
	if baseURL == "" {
		return "/unsubscribe?" + q.Encode()
	}
	sep := "?"
	if len(baseURL) > 0 && baseURL[len(baseURL)-1] != '?' {
		if containsQuery(baseURL) {
			sep = "&"
		}
	}
	return baseURL + sep + q.Encode()
}

func containsQuery(u string) bool {
	for i := 0; i < len(u); i++ {
		if u[i] == '?' {
			return true
		}
	}
	return false
}
