package httpapi

import "net/http"

type pinRequest struct {
	TicketID int64 `json:"ticket_id"`
}

type pinSaveRequest struct {
	TicketIDs []int64 `json:"ticket_ids"`
}

func (a *API) handlePinList(w http.ResponseWriter, r *http.Request) {
	session, ok := sessionFrom(w, r)
	if !ok {
		return
	}
	pins, err := a.guard.Pins(r.Context(), session)
	if err != nil {
		writeDomainError(w, r, err)
		return
	}
	if pins == nil {
		pins = []int64{}
	}
	writeJSON(w, http.StatusOK, map[string]any{"ticket_ids": pins})
}

func (a *API) handlePinAdd(w http.ResponseWriter, r *http.Request) {
	session, ok := sessionFrom(w, r)
	if !ok {
		return
	}
	var req pinRequest
	if err := decodeJSON(w, r, &req); err != nil {
		writeError(w, r, http.StatusBadRequest, err.Error())
		return
	}
	if err := a.guard.AddPin(r.Context(), session, req.TicketID); err != nil {
		writeDomainError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{"status": "pinned"})
}

func (a *API) handlePinRemove(w http.ResponseWriter, r *http.Request) {
	session, ok := sessionFrom(w, r)
	if !ok {
		return
	}
	ticketID, ok := pathID(r, "ticketId")
	if !ok {
		writeError(w, r, http.StatusNotFound, "not found")
		return
	}
	if err := a.guard.RemovePin(r.Context(), session, ticketID); err != nil {
		writeDomainError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{"status": "unpinned"})
}

// handlePinSave reconciles the board to exactly the submitted set.
func (a *API) handlePinSave(w http.ResponseWriter, r *http.Request) {
	session, ok := sessionFrom(w, r)
	if !ok {
		return
	}
	var req pinSaveRequest
	if err := decodeJSON(w, r, &req); err != nil {
		writeError(w, r, http.StatusBadRequest, err.Error())
		return
	}
	if err := a.guard.SavePins(r.Context(), session, req.TicketIDs); err != nil {
		writeDomainError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{"status": "saved"})
}
