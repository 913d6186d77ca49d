package auth

import (
	"errors"
	"fmt"
	"strconv"
	"strings"
	"time"

	"github.com/golang-jwt/jwt/v5"
	"github.com/google/uuid"

	"ticketdesk.org/internal/access"
)

const (
	issuerName = "ticketdesk"

	// SessionTTL is the sliding validity window of a session token.
	SessionTTL = 8 * time.Hour
)

// SessionClaims is the JWT payload of a session token.
type SessionClaims struct {
	Email string `json:"email"`
	Role  string `json:"role"`
	jwt.RegisteredClaims
}

// Issuer mints and validates signed session tokens. Tokens are HS256-signed
// and self-contained; there is no server-side session store and no
// revocation list, so a leaked token stays valid until expiry.
type Issuer struct {
	secret []byte
	ttl    time.Duration
	now    func() time.Time
}

// IssuerOption configures Issuer behavior.
type IssuerOption func(*Issuer)

// WithSessionTTL overrides the session validity window.
func WithSessionTTL(ttl time.Duration) IssuerOption {
	return func(i *Issuer) {
		if ttl > 0 {
			i.ttl = ttl
		}
	}
}

// WithClock overrides the time source (useful for tests).
func WithClock(fn func() time.Time) IssuerOption {
	return func(i *Issuer) {
		if fn != nil {
			i.now = fn
		}
	}
}

// NewIssuer constructs an Issuer with the given signing secret.
func NewIssuer(secret []byte, opts ...IssuerOption) (*Issuer, error) {
	if len(secret) == 0 {
		return nil, errors.New("auth: signing secret is required")
	}
	i := &Issuer{
		secret: secret,
		ttl:    SessionTTL,
		now:    time.Now,
	}
	for _, opt := range opts {
		opt(i)
	}
	return i, nil
}

// Issue mints a session token for a verified identity. The claims are a
// snapshot: later role or email edits do not propagate into live sessions.
func (i *Issuer) Issue(identity Identity) (string, Session, error) {
	if identity.ID <= 0 {
		return "", Session{}, fmt.Errorf("auth: identity id %d is not issuable", identity.ID)
	}
	now := i.now().UTC()
	session := Session{
		UserID:    identity.ID,
		Email:     identity.Email,
		Role:      identity.Role,
		IssuedAt:  now,
		ExpiresAt: now.Add(i.ttl),
		TokenID:   uuid.NewString(),
	}
	token, err := i.sign(session)
	if err != nil {
		return "", Session{}, err
	}
	return token, session, nil
}

// Validate verifies the token signature and claims. Expired tokens report
// ErrTokenExpired; every other defect reports ErrTokenMalformed.
func (i *Issuer) Validate(token string) (Session, error) {
	token = strings.TrimSpace(token)
	if token == "" {
		return Session{}, ErrTokenMalformed
	}

	parser := jwt.NewParser(
		jwt.WithValidMethods([]string{jwt.SigningMethodHS256.Alg()}),
		jwt.WithTimeFunc(func() time.Time { return i.now().UTC() }),
		jwt.WithIssuer(issuerName),
	)
	parsed, err := parser.ParseWithClaims(token, &SessionClaims{}, func(t *jwt.Token) (any, error) {
		return i.secret, nil
	})
	if err != nil {
		if errors.Is(err, jwt.ErrTokenExpired) {
			return Session{}, ErrTokenExpired
		}
		return Session{}, ErrTokenMalformed
	}
	claims, ok := parsed.Claims.(*SessionClaims)
	if !ok || !parsed.Valid {
		return Session{}, ErrTokenMalformed
	}

	userID, err := strconv.ParseInt(claims.Subject, 10, 64)
	if err != nil || userID <= 0 {
		return Session{}, ErrTokenMalformed
	}
	if claims.IssuedAt == nil || claims.ExpiresAt == nil || claims.ID == "" {
		return Session{}, ErrTokenMalformed
	}

	return Session{
		UserID:    userID,
		Email:     claims.Email,
		Role:      access.ParseRole(claims.Role),
		IssuedAt:  claims.IssuedAt.Time,
		ExpiresAt: claims.ExpiresAt.Time,
		TokenID:   claims.ID,
	}, nil
}

// Renew extends a validated session's window to now+ttl and re-signs it.
// The token id is preserved so session-bound derivations keep working.
func (i *Issuer) Renew(session Session) (string, Session, error) {
	if session.UserID <= 0 || session.TokenID == "" {
		return "", Session{}, ErrTokenMalformed
	}
	now := i.now().UTC()
	session.IssuedAt = now
	session.ExpiresAt = now.Add(i.ttl)
	token, err := i.sign(session)
	if err != nil {
		return "", Session{}, err
	}
	return token, session, nil
}

func (i *Issuer) sign(session Session) (string, error) {
	claims := SessionClaims{
		Email: session.Email,
		Role:  string(session.Role),
		RegisteredClaims: jwt.RegisteredClaims{
			Issuer:    issuerName,
			Subject:   strconv.FormatInt(session.UserID, 10),
			IssuedAt:  jwt.NewNumericDate(session.IssuedAt),
			ExpiresAt: jwt.NewNumericDate(session.ExpiresAt),
			ID:        session.TokenID,
		},
	}
	token := jwt.NewWithClaims(jwt.SigningMethodHS256, claims)
	signed, err := token.SignedString(i.secret)
	if err != nil {
		return "", fmt.Errorf("sign token: %w", err)
	}
	return signed, nil
}
