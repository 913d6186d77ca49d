package httpapi

import (
	"errors"
	"net/http"

	"ticketdesk.org/internal/auth"
	"ticketdesk.org/internal/obs"
)

type loginResponse struct {
	UserID     int64  `json:"user_id"`
	Email      string `json:"email"`
	Role       string `json:"role"`
	CSRFToken  string `json:"csrf_token"`
	RedirectTo string `json:"redirect_to"`
}

// handleLogin runs the login gate for one attempt. The form carries the
// credentials and the bot-challenge token; the quota partition is the
// caller's normalized IPv4.
func (a *API) handleLogin(w http.ResponseWriter, r *http.Request) {
	if err := r.ParseForm(); err != nil {
		writeError(w, r, http.StatusBadRequest, "invalid form data")
		return
	}

	email := r.PostFormValue("email")
	password := r.PostFormValue("password")
	challengeToken := r.PostFormValue("challenge_token")
	if challengeToken == "" {
		challengeToken = r.PostFormValue("g-recaptcha-response")
	}

	token, session, err := a.gate.Authenticate(r.Context(), email, password, challengeToken, partitionKey(r))
	if err != nil {
		obs.ObserveLogin(loginOutcome(err))
		writeDomainError(w, r, err)
		return
	}
	obs.ObserveLogin("success")

	setSessionCookie(w, token, session.ExpiresAt)
	writeJSON(w, http.StatusOK, loginResponse{
		UserID:     session.UserID,
		Email:      session.Email,
		Role:       string(session.Role),
		CSRFToken:  a.csrf.tokenFor(session),
		RedirectTo: sanitizeReturnPath(r.URL.Query().Get("returnUrl")),
	})
}

// handleLogout discards the session client-side. The token itself stays
// valid until natural expiry; there is no server-side revocation.
func (a *API) handleLogout(w http.ResponseWriter, r *http.Request) {
	if _, ok := sessionFrom(w, r); !ok {
		return
	}
	clearSessionCookie(w)
	writeJSON(w, http.StatusOK, map[string]any{
		"status":      "signed_out",
		"redirect_to": "/auth/login",
	})
}

func loginOutcome(err error) string {
	switch {
	case errors.Is(err, auth.ErrRateLimited):
		return "rate_limited"
	case errors.Is(err, auth.ErrChallengeFailed):
		return "challenge_failed"
	case errors.Is(err, auth.ErrInvalidCredentials):
		return "invalid_credentials"
	default:
		return "error"
	}
}
