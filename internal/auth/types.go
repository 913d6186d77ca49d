package auth

import (
	"time"

	"ticketdesk.org/internal/access"
)

// Identity is a provisioned account as stored in the repository.
type Identity struct {
	ID    int64
	Email string
	Role  access.Role
}

// Session is the authenticated state carried inside a signed token. It is
// never persisted server-side; the role and id reflect the identity at
// issuance time.
type Session struct {
	UserID    int64
	Email     string
	Role      access.Role
	IssuedAt  time.Time
	ExpiresAt time.Time

	// TokenID is the token's jti claim. It stays stable across renewals so
	// per-session derivations (the anti-forgery token) survive the sliding
	// window.
	TokenID string
}
