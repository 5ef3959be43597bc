package http

import (
	"fmt"
	"time"

	"github.com/golang-jwt/jwt/v5"
)

// adminTokenClaims is the short-lived "Send Now" admin token's payload —
// §6's one bit of access control on an otherwise unauthenticated internal
// RPC surface.
type adminTokenClaims struct {
	jwt.RegisteredClaims
	ScheduledEmailID string `json:"scheduled_email_id,omitempty"`
}

// IssueAdminToken signs a short-lived token authorizing one "send_now"
// call against scheduledEmailID.
func IssueAdminToken(secret, scheduledEmailID string, ttl time.Duration) (string, error) {
	claims := adminTokenClaims{
		RegisteredClaims: jwt.RegisteredClaims{
			ExpiresAt: jwt.NewNumericDate(time.Now().Add(ttl)),
			IssuedAt:  jwt.NewNumericDate(time.Now()),
		},
		ScheduledEmailID: scheduledEmailID,
	}
	token := jwt.NewWithClaims(jwt.SigningMethodHS256, claims)
	return token.SignedString([]byte(secret))
}

// verifyAdminToken validates tokenString against secret and, if
// scheduledEmailID is non-empty, that the token was issued for that
// specific row.
func verifyAdminToken(secret, tokenString, scheduledEmailID string) error {
	var claims adminTokenClaims
	token, err := jwt.ParseWithClaims(tokenString, &claims, func(t *jwt.Token) (interface{}, error) {
		if _, ok := t.Method.(*jwt.SigningMethodHMAC); !ok {
			return nil, fmt.Errorf("unexpected signing method %v", t.Header["alg"])
		}
		return []byte(secret), nil
	})
	if err != nil {
		return fmt.Errorf("invalid admin token: %w", err)
	}
	if !token.Valid {
		return fmt.Errorf("invalid admin token")
	}
	if scheduledEmailID != "" && claims.ScheduledEmailID != scheduledEmailID {
		return fmt.Errorf("admin token does not authorize scheduled email %s", scheduledEmailID)
	}
	return nil
}
