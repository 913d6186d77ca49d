package auth

import (
	"errors"
	"sync"
	"testing"
	"time"

	"ticketdesk.org/internal/access"
)

var testSecret = []byte("session-test-secret")

func testClock(start time.Time) (func() time.Time, func(time.Duration)) {
	var mu sync.Mutex
	now := start
	return func() time.Time {
			mu.Lock()
			defer mu.Unlock()
			return now
		}, func(d time.Duration) {
			mu.Lock()
			defer mu.Unlock()
			now = now.Add(d)
		}
}

func TestIssueValidateRoundTrip(t *testing.T) {
	issuer, err := NewIssuer(testSecret)
	if err != nil {
		t.Fatalf("NewIssuer: %v", err)
	}

	identity := Identity{ID: 42, Email: "agent@example.com", Role: access.RoleAgent}
	token, issued, err := issuer.Issue(identity)
	if err != nil {
		t.Fatalf("Issue: %v", err)
	}

	session, err := issuer.Validate(token)
	if err != nil {
		t.Fatalf("Validate: %v", err)
	}
	if session.UserID != 42 || session.Email != "agent@example.com" || session.Role != access.RoleAgent {
		t.Fatalf("claims changed in round trip: %+v", session)
	}
	if session.TokenID != issued.TokenID {
		t.Fatalf("jti changed: %q vs %q", session.TokenID, issued.TokenID)
	}
	if ttl := session.ExpiresAt.Sub(session.IssuedAt); ttl != SessionTTL {
		t.Fatalf("window is %v, want %v", ttl, SessionTTL)
	}
}

func TestTamperedTokenIsMalformed(t *testing.T) {
	issuer, err := NewIssuer(testSecret)
	if err != nil {
		t.Fatalf("NewIssuer: %v", err)
	}
	token, _, err := issuer.Issue(Identity{ID: 7, Email: "u@example.com", Role: access.RoleCustomer})
	if err != nil {
		t.Fatalf("Issue: %v", err)
	}

	raw := []byte(token)
	for i := 0; i < len(raw)-1; i++ {
		mutated := make([]byte, len(raw))
		copy(mutated, raw)
		mutated[i] ^= 0x01

		_, err := issuer.Validate(string(mutated))
		if err == nil {
			t.Fatalf("flipped byte %d still validated", i)
		}
		if !errors.Is(err, ErrTokenMalformed) {
			t.Fatalf("flipped byte %d: got %v, want ErrTokenMalformed", i, err)
		}
	}
}

func TestExpiredIsDistinctFromMalformed(t *testing.T) {
	clock, advance := testClock(time.Unix(1_700_000_000, 0))
	issuer, err := NewIssuer(testSecret, WithClock(clock))
	if err != nil {
		t.Fatalf("NewIssuer: %v", err)
	}
	token, _, err := issuer.Issue(Identity{ID: 7, Email: "u@example.com", Role: access.RoleCustomer})
	if err != nil {
		t.Fatalf("Issue: %v", err)
	}

	advance(SessionTTL + time.Minute)
	if _, err := issuer.Validate(token); !errors.Is(err, ErrTokenExpired) {
		t.Fatalf("got %v, want ErrTokenExpired", err)
	}
	if _, err := issuer.Validate("not-a-token"); !errors.Is(err, ErrTokenMalformed) {
		t.Fatalf("got %v, want ErrTokenMalformed", err)
	}
	if _, err := issuer.Validate(""); !errors.Is(err, ErrTokenMalformed) {
		t.Fatalf("empty token: got %v, want ErrTokenMalformed", err)
	}
}

func TestRenewSlidesTheWindow(t *testing.T) {
	clock, advance := testClock(time.Unix(1_700_000_000, 0))
	issuer, err := NewIssuer(testSecret, WithClock(clock))
	if err != nil {
		t.Fatalf("NewIssuer: %v", err)
	}
	token, session, err := issuer.Issue(Identity{ID: 7, Email: "u@example.com", Role: access.RoleCustomer})
	if err != nil {
		t.Fatalf("Issue: %v", err)
	}

	// Seven hours in, the original token is one hour from expiry; renewal
	// pushes the horizon back out to a full window.
	advance(7 * time.Hour)
	validated, err := issuer.Validate(token)
	if err != nil {
		t.Fatalf("Validate before expiry: %v", err)
	}
	renewedToken, renewed, err := issuer.Renew(validated)
	if err != nil {
		t.Fatalf("Renew: %v", err)
	}
	if renewed.TokenID != session.TokenID {
		t.Fatal("renewal must preserve the token id")
	}
	if want := clock().UTC().Add(SessionTTL); !renewed.ExpiresAt.Equal(want) {
		t.Fatalf("renewed expiry %v, want %v", renewed.ExpiresAt, want)
	}

	// Another seven hours: the original token is dead, the renewed one lives.
	advance(7 * time.Hour)
	if _, err := issuer.Validate(token); !errors.Is(err, ErrTokenExpired) {
		t.Fatalf("stale token: got %v, want ErrTokenExpired", err)
	}
	if _, err := issuer.Validate(renewedToken); err != nil {
		t.Fatalf("renewed token rejected: %v", err)
	}
}

func TestIssuerRejectsForeignSignature(t *testing.T) {
	a, _ := NewIssuer([]byte("secret-a"))
	b, _ := NewIssuer([]byte("secret-b"))

	token, _, err := a.Issue(Identity{ID: 7, Email: "u@example.com", Role: access.RoleCustomer})
	if err != nil {
		t.Fatalf("Issue: %v", err)
	}
	if _, err := b.Validate(token); !errors.Is(err, ErrTokenMalformed) {
		t.Fatalf("cross-secret token: got %v, want ErrTokenMalformed", err)
	}
}
