package httpapi

import (
	"net/http"
	"strconv"

	"ticketdesk.org/internal/ticket"
)

type ticketRequest struct {
	Title        string `json:"title"`
	Description  string `json:"description"`
	Status       string `json:"status"`
	AssignedToID int64  `json:"assigned_to_id"`
}

type commentRequest struct {
	Text string `json:"text"`
}

func pathID(r *http.Request, name string) (int64, bool) {
	id, err := strconv.ParseInt(r.PathValue(name), 10, 64)
	return id, err == nil && id > 0
}

// handleTicketIndex is the administrative index over every ticket.
func (a *API) handleTicketIndex(w http.ResponseWriter, r *http.Request) {
	session, ok := sessionFrom(w, r)
	if !ok {
		return
	}
	tickets, err := a.guard.ListAll(r.Context(), session)
	if err != nil {
		writeDomainError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{"tickets": tickets})
}

func (a *API) handleMyTickets(w http.ResponseWriter, r *http.Request) {
	session, ok := sessionFrom(w, r)
	if !ok {
		return
	}
	tickets, err := a.guard.ListMine(r.Context(), session)
	if err != nil {
		writeDomainError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{"tickets": tickets})
}

func (a *API) handleTicketGet(w http.ResponseWriter, r *http.Request) {
	session, ok := sessionFrom(w, r)
	if !ok {
		return
	}
	id, ok := pathID(r, "id")
	if !ok {
		writeError(w, r, http.StatusNotFound, "not found")
		return
	}
	t, comments, err := a.guard.Get(r.Context(), session, id)
	if err != nil {
		writeDomainError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{"ticket": t, "comments": comments})
}

func (a *API) handleTicketCreate(w http.ResponseWriter, r *http.Request) {
	session, ok := sessionFrom(w, r)
	if !ok {
		return
	}
	var req ticketRequest
	if err := decodeJSON(w, r, &req); err != nil {
		writeError(w, r, http.StatusBadRequest, err.Error())
		return
	}
	t, err := a.guard.Create(r.Context(), session, ticket.CreateTicket{
		Title:        req.Title,
		Description:  req.Description,
		Status:       ticket.Status(req.Status),
		AssignedToID: req.AssignedToID,
	})
	if err != nil {
		writeDomainError(w, r, err)
		return
	}
	writeJSON(w, http.StatusCreated, map[string]any{"ticket": t})
}

func (a *API) handleTicketUpdate(w http.ResponseWriter, r *http.Request) {
	session, ok := sessionFrom(w, r)
	if !ok {
		return
	}
	id, ok := pathID(r, "id")
	if !ok {
		writeError(w, r, http.StatusNotFound, "not found")
		return
	}
	var req ticketRequest
	if err := decodeJSON(w, r, &req); err != nil {
		writeError(w, r, http.StatusBadRequest, err.Error())
		return
	}
	t, err := a.guard.Update(r.Context(), session, id, ticket.UpdateTicket{
		Title:        req.Title,
		Description:  req.Description,
		Status:       ticket.Status(req.Status),
		AssignedToID: req.AssignedToID,
	})
	if err != nil {
		writeDomainError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{"ticket": t})
}

func (a *API) handleTicketDelete(w http.ResponseWriter, r *http.Request) {
	session, ok := sessionFrom(w, r)
	if !ok {
		return
	}
	id, ok := pathID(r, "id")
	if !ok {
		writeError(w, r, http.StatusNotFound, "not found")
		return
	}
	if err := a.guard.Delete(r.Context(), session, id); err != nil {
		writeDomainError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{"status": "deleted"})
}

func (a *API) handleCommentAdd(w http.ResponseWriter, r *http.Request) {
	session, ok := sessionFrom(w, r)
	if !ok {
		return
	}
	ticketID, ok := pathID(r, "id")
	if !ok {
		writeError(w, r, http.StatusNotFound, "not found")
		return
	}
	var req commentRequest
	if err := decodeJSON(w, r, &req); err != nil {
		writeError(w, r, http.StatusBadRequest, err.Error())
		return
	}
	c, err := a.guard.AddComment(r.Context(), session, ticketID, req.Text)
	if err != nil {
		writeDomainError(w, r, err)
		return
	}
	writeJSON(w, http.StatusCreated, map[string]any{"comment": c})
}

func (a *API) handleCommentEdit(w http.ResponseWriter, r *http.Request) {
	session, ok := sessionFrom(w, r)
	if !ok {
		return
	}
	id, ok := pathID(r, "id")
	if !ok {
		writeError(w, r, http.StatusNotFound, "not found")
		return
	}
	var req commentRequest
	if err := decodeJSON(w, r, &req); err != nil {
		writeError(w, r, http.StatusBadRequest, err.Error())
		return
	}
	c, err := a.guard.EditComment(r.Context(), session, id, req.Text)
	if err != nil {
		writeDomainError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{"comment": c})
}

func (a *API) handleCommentDelete(w http.ResponseWriter, r *http.Request) {
	session, ok := sessionFrom(w, r)
	if !ok {
		return
	}
	id, ok := pathID(r, "id")
	if !ok {
		writeError(w, r, http.StatusNotFound, "not found")
		return
	}
	if err := a.guard.DeleteComment(r.Context(), session, id); err != nil {
		writeDomainError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{"status": "deleted"})
}
