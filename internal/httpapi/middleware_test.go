package httpapi

import (
	"net/http"
	"net/http/httptest"
	"testing"

	"ticketdesk.org/internal/quota"
)

func TestPartitionKeyNormalizesOrigins(t *testing.T) {
	cases := []struct {
		remote    string
		forwarded string
		want      string
	}{
		{remote: "203.0.113.7:5123", want: "ip:203.0.113.7"},
		// Forwarding headers are client-controlled and never move an
		// attempt into another partition.
		{remote: "203.0.113.7:5123", forwarded: "198.51.100.4, 10.0.0.1", want: "ip:203.0.113.7"},
		// IPv4-mapped IPv6 collapses to the dotted form.
		{remote: "[::ffff:203.0.113.7]:443", want: "ip:203.0.113.7"},
		{remote: "[2001:db8::1]:443", want: "ip:2001:db8::1"},
		{remote: "not-an-address", want: quota.FallbackKey},
		{remote: "", want: quota.FallbackKey},
	}

	for _, tc := range cases {
		r := httptest.NewRequest(http.MethodPost, "/auth/login", nil)
		r.RemoteAddr = tc.remote
		if tc.forwarded != "" {
			r.Header.Set("X-Forwarded-For", tc.forwarded)
		}
		if got := partitionKey(r); got != tc.want {
			t.Errorf("remote %q fwd %q: got %q, want %q", tc.remote, tc.forwarded, got, tc.want)
		}
	}
}

func TestSanitizeReturnPath(t *testing.T) {
	cases := map[string]string{
		"":                      "/tickets/my",
		"   ":                   "/tickets/my",
		"https://evil.example/": "/tickets/my",
		"//evil.example":        "/tickets/my",
		"/\\evil.example":       "/tickets/my",
		"/x\r\nSet-Cookie: a=b": "/tickets/my",
		"/tickets/7":            "/tickets/7",
		"/kanban/pins":          "/kanban/pins",
	}
	for in, want := range cases {
		if got := sanitizeReturnPath(in); got != want {
			t.Errorf("sanitizeReturnPath(%q) = %q, want %q", in, got, want)
		}
	}
}

func TestRateLimiterThrottlesByConnection(t *testing.T) {
	l := NewRateLimiter(1, 1)
	defer l.Close()

	h := l.Wrap(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusOK)
	}))

	send := func(forwarded string) int {
		r := httptest.NewRequest(http.MethodGet, "/tickets/my", nil)
		r.RemoteAddr = "203.0.113.7:5123"
		if forwarded != "" {
			r.Header.Set("X-Forwarded-For", forwarded)
		}
		rr := httptest.NewRecorder()
		h.ServeHTTP(rr, r)
		return rr.Code
	}

	if code := send(""); code != http.StatusOK {
		t.Fatalf("first request: status %d", code)
	}
	// Burst exhausted; a rotated forwarding header does not open a new
	// bucket.
	if code := send("198.51.100.4"); code != http.StatusTooManyRequests {
		t.Fatalf("second request: status %d, want 429", code)
	}

	// Close is idempotent and stops the sweeper.
	l.Close()
	l.Close()
}

func TestSecurityHeadersApplied(t *testing.T) {
	h := SecurityHeaders(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusOK)
	}))
	rr := httptest.NewRecorder()
	h.ServeHTTP(rr, httptest.NewRequest(http.MethodGet, "/", nil))

	if got := rr.Header().Get("X-Content-Type-Options"); got != "nosniff" {
		t.Errorf("X-Content-Type-Options = %q", got)
	}
	if got := rr.Header().Get("X-Frame-Options"); got == "" {
		t.Error("X-Frame-Options missing")
	}
}
