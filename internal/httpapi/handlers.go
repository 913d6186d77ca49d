package httpapi

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"time"

	"ticketdesk.org/internal/auth"
	"ticketdesk.org/internal/obs"
	"ticketdesk.org/internal/ticket"
)

// ReadyProbe is a readiness check (e.g. DB ping).
type ReadyProbe struct {
	DB *sql.DB
}

func (rp ReadyProbe) Check(ctx context.Context) error {
	if rp.DB == nil {
		return nil
	}
	return rp.DB.PingContext(ctx)
}

// API is the HTTP layer.
type API struct {
	mux        *http.ServeMux
	readyProbe ReadyProbe
	version    string

	gate      *auth.Gate
	issuer    *auth.Issuer
	guard     *ticket.Service
	directory *auth.Directory
	csrf      *csrfGuard
}

// Config carries the collaborators the API wires together.
type Config struct {
	ReadyProbe ReadyProbe
	Version    string

	Gate      *auth.Gate
	Issuer    *auth.Issuer
	Guard     *ticket.Service
	Directory *auth.Directory

	// CSRFSecret keys the per-session anti-forgery token derivation.
	CSRFSecret []byte
}

func New(cfg Config) (*API, error) {
	if cfg.Gate == nil || cfg.Issuer == nil || cfg.Guard == nil || cfg.Directory == nil {
		return nil, errors.New("httpapi: gate, issuer, guard and directory are required")
	}
	if len(cfg.CSRFSecret) == 0 {
		return nil, errors.New("httpapi: csrf secret is required")
	}
	a := &API{
		mux:        http.NewServeMux(),
		readyProbe: cfg.ReadyProbe,
		version:    cfg.Version,
		gate:       cfg.Gate,
		issuer:     cfg.Issuer,
		guard:      cfg.Guard,
		directory:  cfg.Directory,
		csrf:       &csrfGuard{secret: cfg.CSRFSecret},
	}

	// health/ready/info
	a.mux.HandleFunc("GET /healthz", a.Healthz)
	a.mux.HandleFunc("GET /readyz", a.Ready)
	a.mux.HandleFunc("GET /v1/info", a.Info)

	// Prometheus metrics
	a.mux.Handle("GET /metrics", obs.Handler())

	// auth
	a.mux.HandleFunc("POST /auth/login", a.handleLogin)
	a.mux.HandleFunc("POST /auth/logout", a.handleLogout)

	// tickets
	a.mux.HandleFunc("GET /tickets", a.handleTicketIndex)
	a.mux.HandleFunc("GET /tickets/my", a.handleMyTickets)
	a.mux.HandleFunc("POST /tickets", a.handleTicketCreate)
	a.mux.HandleFunc("GET /tickets/{id}", a.handleTicketGet)
	a.mux.HandleFunc("PUT /tickets/{id}", a.handleTicketUpdate)
	a.mux.HandleFunc("DELETE /tickets/{id}", a.handleTicketDelete)

	// comments
	a.mux.HandleFunc("POST /tickets/{id}/comments", a.handleCommentAdd)
	a.mux.HandleFunc("PUT /comments/{id}", a.handleCommentEdit)
	a.mux.HandleFunc("DELETE /comments/{id}", a.handleCommentDelete)

	// kanban pins
	a.mux.HandleFunc("GET /kanban/pins", a.handlePinList)
	a.mux.HandleFunc("POST /kanban/pins", a.handlePinAdd)
	a.mux.HandleFunc("PUT /kanban/pins", a.handlePinSave)
	a.mux.HandleFunc("DELETE /kanban/pins/{ticketId}", a.handlePinRemove)

	// user administration
	a.mux.HandleFunc("GET /users", a.handleUserList)
	a.mux.HandleFunc("POST /users", a.handleUserCreate)
	a.mux.HandleFunc("GET /users/{id}", a.handleUserGet)
	a.mux.HandleFunc("PUT /users/{id}", a.handleUserUpdate)
	a.mux.HandleFunc("DELETE /users/{id}", a.handleUserDelete)

	a.mux.HandleFunc("/", func(w http.ResponseWriter, r *http.Request) {
		http.NotFound(w, r)
	})

	return a, nil
}

// Handler returns the full middleware chain around the mux.
func (a *API) Handler() http.Handler {
	h := a.withSession(a.withCSRF(a.mux))
	h = MaxBodyBytes(h, 1<<20)
	h = SecurityHeaders(h)
	h = LoggingJSON(h)
	h = RequestID(h)
	return obs.Instrument(h)
}

// --- Handlers ---

func (a *API) Healthz(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, map[string]any{
		"status":  "ok",
		"service": "ticketdesk-api",
		"version": a.version,
	})
}

func (a *API) Ready(w http.ResponseWriter, r *http.Request) {
	if err := a.readyProbe.Check(r.Context()); err != nil {
		writeJSON(w, http.StatusServiceUnavailable, map[string]any{
			"status": "not_ready",
			"error":  err.Error(),
		})
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{
		"status": "ready",
	})
}

func (a *API) Info(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, map[string]any{
		"name":    "ticketdesk-api",
		"time":    time.Now().UTC().Format(time.RFC3339),
		"version": a.version,
	})
}

// --- helpers ---

func writeJSON(w http.ResponseWriter, code int, v any) {
	w.Header().Set("Content-Type", "application/json; charset=utf-8")
	w.WriteHeader(code)
	_ = json.NewEncoder(w).Encode(v)
}

func writeError(w http.ResponseWriter, r *http.Request, code int, msg string) {
	writeJSON(w, code, map[string]any{
		"error":      msg,
		"request_id": requestIDFrom(r.Context()),
	})
}

// writeDomainError translates the error taxonomy at the boundary; nothing
// propagates as an unhandled fault.
func writeDomainError(w http.ResponseWriter, r *http.Request, err error) {
	var rle *auth.RateLimitError
	switch {
	case errors.As(err, &rle):
		retry := int(rle.RetryAfter.Round(time.Second).Seconds())
		if retry < 1 {
			retry = 1
		}
		w.Header().Set("Retry-After", fmt.Sprintf("%d", retry))
		writeError(w, r, http.StatusServiceUnavailable,
			fmt.Sprintf("too many login attempts, please try again in %d seconds", retry))
	case errors.Is(err, auth.ErrRateLimited):
		writeError(w, r, http.StatusServiceUnavailable, "too many login attempts, please try again later")
	case errors.Is(err, auth.ErrChallengeFailed):
		writeError(w, r, http.StatusBadRequest, "please complete the verification challenge")
	case errors.Is(err, auth.ErrInvalidCredentials):
		writeError(w, r, http.StatusUnauthorized, "invalid email or password")
	case errors.Is(err, auth.ErrTokenExpired), errors.Is(err, auth.ErrTokenMalformed):
		writeError(w, r, http.StatusUnauthorized, "authentication required")
	case errors.Is(err, auth.ErrAlreadyExists):
		writeError(w, r, http.StatusUnprocessableEntity, "email is already in use")
	case errors.Is(err, auth.ErrInvalidInput), errors.Is(err, ticket.ErrInvalidInput):
		writeError(w, r, http.StatusUnprocessableEntity, err.Error())
	case errors.Is(err, ticket.ErrForbidden):
		writeError(w, r, http.StatusForbidden, "forbidden")
	case errors.Is(err, ticket.ErrNotFound), errors.Is(err, auth.ErrNotFound):
		writeError(w, r, http.StatusNotFound, "not found")
	default:
		writeError(w, r, http.StatusInternalServerError, "internal error")
	}
}

func decodeJSON(w http.ResponseWriter, r *http.Request, v any) error {
	dec := json.NewDecoder(r.Body)
	dec.DisallowUnknownFields()
	if err := dec.Decode(v); err != nil {
		return fmt.Errorf("invalid request body: %w", err)
	}
	return nil
}
