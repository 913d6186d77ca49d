package httpapi

import (
	"net/http"

	"ticketdesk.org/internal/access"
	"ticketdesk.org/internal/auth"
)

type userCreateRequest struct {
	Email    string `json:"email"`
	Password string `json:"password"`
	Role     string `json:"role"`
}

type userUpdateRequest struct {
	Email    *string `json:"email"`
	Password *string `json:"password"`
	Role     *string `json:"role"`
}

type userResponse struct {
	ID    int64  `json:"id"`
	Email string `json:"email"`
	Role  string `json:"role"`
}

func toUserResponse(id auth.Identity) userResponse {
	return userResponse{ID: id.ID, Email: id.Email, Role: string(id.Role)}
}

// adminOnly gates the account directory. User administration is never
// implied by ownership or assignment.
func (a *API) adminOnly(w http.ResponseWriter, r *http.Request) (auth.Session, bool) {
	session, ok := sessionFrom(w, r)
	if !ok {
		return auth.Session{}, false
	}
	if session.Role != access.RoleAdmin {
		writeError(w, r, http.StatusForbidden, "forbidden")
		return auth.Session{}, false
	}
	return session, true
}

func (a *API) handleUserList(w http.ResponseWriter, r *http.Request) {
	if _, ok := a.adminOnly(w, r); !ok {
		return
	}
	ids, err := a.directory.ListUsers(r.Context())
	if err != nil {
		writeDomainError(w, r, err)
		return
	}
	users := make([]userResponse, 0, len(ids))
	for _, id := range ids {
		users = append(users, toUserResponse(id))
	}
	writeJSON(w, http.StatusOK, map[string]any{"users": users})
}

func (a *API) handleUserCreate(w http.ResponseWriter, r *http.Request) {
	if _, ok := a.adminOnly(w, r); !ok {
		return
	}
	var req userCreateRequest
	if err := decodeJSON(w, r, &req); err != nil {
		writeError(w, r, http.StatusBadRequest, err.Error())
		return
	}
	id, err := a.directory.CreateUser(r.Context(), req.Email, req.Password, req.Role)
	if err != nil {
		writeDomainError(w, r, err)
		return
	}
	writeJSON(w, http.StatusCreated, toUserResponse(id))
}

func (a *API) handleUserGet(w http.ResponseWriter, r *http.Request) {
	if _, ok := a.adminOnly(w, r); !ok {
		return
	}
	userID, ok := pathID(r, "id")
	if !ok {
		writeError(w, r, http.StatusNotFound, "not found")
		return
	}
	id, err := a.directory.GetUser(r.Context(), userID)
	if err != nil {
		writeDomainError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, toUserResponse(id))
}

func (a *API) handleUserUpdate(w http.ResponseWriter, r *http.Request) {
	if _, ok := a.adminOnly(w, r); !ok {
		return
	}
	userID, ok := pathID(r, "id")
	if !ok {
		writeError(w, r, http.StatusNotFound, "not found")
		return
	}
	var req userUpdateRequest
	if err := decodeJSON(w, r, &req); err != nil {
		writeError(w, r, http.StatusBadRequest, err.Error())
		return
	}
	upd := auth.IdentityUpdate{Email: req.Email, Password: req.Password}
	if req.Role != nil {
		role := access.Role(*req.Role)
		upd.Role = &role
	}
	id, err := a.directory.UpdateUser(r.Context(), userID, upd)
	if err != nil {
		writeDomainError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, toUserResponse(id))
}

func (a *API) handleUserDelete(w http.ResponseWriter, r *http.Request) {
	if _, ok := a.adminOnly(w, r); !ok {
		return
	}
	userID, ok := pathID(r, "id")
	if !ok {
		writeError(w, r, http.StatusNotFound, "not found")
		return
	}
	if err := a.directory.DeleteUser(r.Context(), userID); err != nil {
		writeDomainError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{"status": "deleted"})
}
