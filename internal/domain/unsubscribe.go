package domain

import (
	"context"
	"strings"
	"time"
)

// Unsubscribe is a global, case-insensitive hard stop on sending to an
// email address (spec.md §3: "any match is a hard stop at send time").
type Unsubscribe struct {
	Email     string    `json:"email"`
	Reason    string    `json:"reason,omitempty"`
	CreatedAt time.Time `json:"created_at"`
}

// NormalizeEmail lowercases and trims an address for unsubscribe
// comparisons, per §3's "case-insensitive" requirement.
func NormalizeEmail(email string) string {
	return strings.ToLower(strings.TrimSpace(email))
}

// UnsubscribeRepository is consulted by the verifier (C4 step 5) and the
// sender's pre-dispatch check (scenario 6 in §8: "if somehow missed, the
// sender's pre-dispatch check cancels it").
type UnsubscribeRepository interface {
	Exists(ctx context.Context, email string) (bool, error)
	Add(ctx context.Context, email, reason string) error
}
