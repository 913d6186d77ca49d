package auth

import (
	"context"
	"errors"
	"strings"
	"sync"
	"time"

	"github.com/google/uuid"

	"ticketdesk.org/internal/quota"
)

// Defaults match the login throttle policy: two attempts per origin per
// minute, no queueing.
const (
	DefaultLoginLimit  = 2
	DefaultLoginWindow = time.Minute
)

// CredentialStore resolves identities for authentication.
type CredentialStore interface {
	// FindByEmail returns the identity and its stored password digest.
	// A missing account reports ErrNotFound.
	FindByEmail(ctx context.Context, email string) (Identity, string, error)
}

// ChallengeVerifier is the external bot-challenge oracle.
type ChallengeVerifier interface {
	Verify(ctx context.Context, token, remoteIP string) (bool, error)
}

// Gate orders the login checks: quota first, then the bot challenge, then
// credentials, then token issuance. Each step short-circuits, and the quota
// charge lands before the outcome is known.
type Gate struct {
	quota     *quota.Ledger
	limit     int
	window    time.Duration
	creds     CredentialStore
	challenge ChallengeVerifier
	issuer    *Issuer

	dummyOnce sync.Once
	dummyHash string
}

// GateOption configures Gate behavior.
type GateOption func(*Gate)

// WithLoginQuota overrides the per-origin attempt budget.
func WithLoginQuota(limit int, window time.Duration) GateOption {
	return func(g *Gate) {
		if limit > 0 {
			g.limit = limit
		}
		if window > 0 {
			g.window = window
		}
	}
}

// NewGate constructs the login gate.
func NewGate(ledger *quota.Ledger, creds CredentialStore, challenge ChallengeVerifier, issuer *Issuer, opts ...GateOption) (*Gate, error) {
	if ledger == nil || creds == nil || challenge == nil || issuer == nil {
		return nil, errors.New("auth: gate requires ledger, credential store, challenge verifier and issuer")
	}
	g := &Gate{
		quota:     ledger,
		limit:     DefaultLoginLimit,
		window:    DefaultLoginWindow,
		creds:     creds,
		challenge: challenge,
		issuer:    issuer,
	}
	for _, opt := range opts {
		opt(g)
	}
	return g, nil
}

// Authenticate runs the full login sequence for one attempt and returns the
// signed session token on success.
//
// The quota consultation happens before any credential work: a throttled
// origin learns nothing about whether the email exists, and a denied
// attempt still costs quota.
func (g *Gate) Authenticate(ctx context.Context, email, password, challengeToken, clientOrigin string) (string, Session, error) {
	decision := g.quota.TryConsume(clientOrigin, g.limit, g.window)
	if !decision.Allowed {
		return "", Session{}, &RateLimitError{RetryAfter: decision.RetryAfter}
	}

	ok, err := g.challenge.Verify(ctx, challengeToken, originAddr(clientOrigin))
	if err != nil || !ok {
		return "", Session{}, ErrChallengeFailed
	}

	email = strings.TrimSpace(strings.ToLower(email))
	identity, storedHash, err := g.creds.FindByEmail(ctx, email)
	if err != nil {
		// Burn a hash verification anyway so a missing account costs the
		// same time as a wrong password.
		VerifyPassword(g.decoyHash(), password)
		return "", Session{}, ErrInvalidCredentials
	}
	if !VerifyPassword(storedHash, password) {
		return "", Session{}, ErrInvalidCredentials
	}

	token, session, err := g.issuer.Issue(identity)
	if err != nil {
		return "", Session{}, err
	}
	return token, session, nil
}

func (g *Gate) decoyHash() string {
	g.dummyOnce.Do(func() {
		hash, err := HashPassword(uuid.NewString())
		if err == nil {
			g.dummyHash = hash
		}
	})
	return g.dummyHash
}

// originAddr strips the partition prefix ("ip:1.2.3.4" -> "1.2.3.4") for
// collaborators that want the bare address.
func originAddr(origin string) string {
	if addr, ok := strings.CutPrefix(origin, "ip:"); ok {
		return addr
	}
	return origin
}
