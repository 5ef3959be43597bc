package domain

import (
	"context"
	"fmt"
)

// SenderDomain is an owner-owned verified sending domain (spec.md §3),
// used to decide whether a tracking reply-to may be injected (GLOSSARY
// "Tracking Reply-To": "used only when the owner has an active
// inbox-ingestion OAuth connection").
type SenderDomain struct {
	ID                  string `json:"id"`
	OwnerID             string `json:"owner_id"`
	Domain              string `json:"domain"`
	Verified            bool   `json:"verified"`
	InboundParseEnabled bool   `json:"inbound_parse_enabled"`
	InboundSubdomain    string `json:"inbound_subdomain,omitempty"`
}

// SupportsTrackingReplyTo reports whether this domain is eligible to
// back a tracking reply-to address: verified, inbound parsing enabled,
// and a subdomain configured to receive it.
func (d *SenderDomain) SupportsTrackingReplyTo() bool {
	return d.Verified && d.InboundParseEnabled && d.InboundSubdomain != ""
}

// SenderDomainRepository is the read surface C5 uses to decide reply-to
// routing.
type SenderDomainRepository interface {
	GetByOwnerID(ctx context.Context, ownerID string) (*SenderDomain, error)
}

// ErrSenderDomainNotFound is returned when an owner has no sender domain
// configured; callers should treat this as "no tracking reply-to
// available" rather than an error condition in most call sites.
type ErrSenderDomainNotFound struct{ OwnerID string }

func (e *ErrSenderDomainNotFound) Error() string {
	return fmt.Sprintf("sender domain for owner %q not found", e.OwnerID)
}
