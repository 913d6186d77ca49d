package httpapi

import (
	"errors"
	"net/http"
	"strings"
	"time"

	"ticketdesk.org/internal/auth"
)

const sessionCookieName = "ticketdesk_session"

var publicPaths = []string{
	"/auth/login",
	"/metrics",
	"/healthz",
	"/readyz",
	"/v1/info",
	"/",
}

// withSession validates the session cookie on every non-public route and
// slides the expiry window forward: each successful validation renews the
// token and re-sets the cookie.
func (a *API) withSession(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if isPublicPath(r.URL.Path) {
			next.ServeHTTP(w, r)
			return
		}

		cookie, err := r.Cookie(sessionCookieName)
		if err != nil {
			writeError(w, r, http.StatusUnauthorized, "authentication required")
			return
		}

		session, err := a.issuer.Validate(cookie.Value)
		if err != nil {
			clearSessionCookie(w)
			switch {
			case errors.Is(err, auth.ErrTokenExpired):
				writeError(w, r, http.StatusUnauthorized, "session expired, please sign in again")
			default:
				writeError(w, r, http.StatusUnauthorized, "authentication required")
			}
			return
		}

		refreshed, renewed, err := a.issuer.Renew(session)
		if err != nil {
			writeError(w, r, http.StatusUnauthorized, "authentication required")
			return
		}
		setSessionCookie(w, refreshed, renewed.ExpiresAt)

		ctx := auth.ContextWithSession(r.Context(), renewed)
		next.ServeHTTP(w, r.WithContext(ctx))
	})
}

// sessionFrom returns the authenticated session or writes a 401.
func sessionFrom(w http.ResponseWriter, r *http.Request) (auth.Session, bool) {
	session, ok := auth.SessionFromContext(r.Context())
	if !ok {
		writeError(w, r, http.StatusUnauthorized, "authentication required")
		return auth.Session{}, false
	}
	return session, true
}

func setSessionCookie(w http.ResponseWriter, token string, expires time.Time) {
	http.SetCookie(w, &http.Cookie{
		Name:     sessionCookieName,
		Value:    token,
		Path:     "/",
		Expires:  expires,
		HttpOnly: true,
		SameSite: http.SameSiteLaxMode,
	})
}

func clearSessionCookie(w http.ResponseWriter) {
	http.SetCookie(w, &http.Cookie{
		Name:     sessionCookieName,
		Value:    "",
		Path:     "/",
		MaxAge:   -1,
		HttpOnly: true,
		SameSite: http.SameSiteLaxMode,
	})
}

func isPublicPath(path string) bool {
	for _, p := range publicPaths {
		if path == p {
			return true
		}
	}
	return false
}

// sanitizeReturnPath accepts only origin-relative paths; anything absolute
// or scheme-relative is replaced with the default landing path.
func sanitizeReturnPath(raw string) string {
	raw = strings.TrimSpace(raw)
	if raw == "" {
		return "/tickets/my"
	}
	if !strings.HasPrefix(raw, "/") || strings.HasPrefix(raw, "//") || strings.HasPrefix(raw, "/\\") {
		return "/tickets/my"
	}
	if strings.ContainsAny(raw, "\r\n") {
		return "/tickets/my"
	}
	return raw
}
