package handlers

import (
	"net/http"

	"github.com/alchemorsel/recipe-studio/internal/domain/chat"
)

// AskRequest is the body of POST /chat/{sessionID}/messages.
type AskRequest struct {
	Question string `json:"question" validate:"required,notblank,max=2000"`
}

// AskResponse carries the reply appended to the transcript.
type AskResponse struct {
	Message chat.Message `json:"message"`
}

// OpenChat handles POST /recipes/{id}/chat
func (h *Handlers) OpenChat(w http.ResponseWriter, r *http.Request) {
	id, err := pathID(r, "id")
	if err != nil {
		h.writeError(w, r, err)
		return
	}

	session, err := h.chat.Open(r.Context(), id)
	if err != nil {
		h.writeError(w, r, err)
		return
	}
	h.writeJSON(w, http.StatusCreated, session)
}

// AskChat handles POST /chat/{sessionID}/messages
func (h *Handlers) AskChat(w http.ResponseWriter, r *http.Request) {
	id, err := pathID(r, "sessionID")
	if err != nil {
		h.writeError(w, r, err)
		return
	}
	var req AskRequest
	if err := h.decode(r, &req, false); err != nil {
		h.writeError(w, r, err)
		return
	}

	reply, err := h.chat.Ask(r.Context(), id, req.Question)
	if err != nil {
		h.writeError(w, r, err)
		return
	}
	h.writeJSON(w, http.StatusOK, AskResponse{Message: *reply})
}

// ChatTranscript handles GET /chat/{sessionID}
func (h *Handlers) ChatTranscript(w http.ResponseWriter, r *http.Request) {
	id, err := pathID(r, "sessionID")
	if err != nil {
		h.writeError(w, r, err)
		return
	}

	session, err := h.chat.Transcript(r.Context(), id)
	if err != nil {
		h.writeError(w, r, err)
		return
	}
	h.writeJSON(w, http.StatusOK, session)
}

// CloseChat handles DELETE /chat/{sessionID}
func (h *Handlers) CloseChat(w http.ResponseWriter, r *http.Request) {
	id, err := pathID(r, "sessionID")
	if err != nil {
		h.writeError(w, r, err)
		return
	}

	if err := h.chat.Close(r.Context(), id); err != nil {
		h.writeError(w, r, err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}
