package handlers

import (
	"net/http"

	"github.com/alchemorsel/recipe-studio/internal/infrastructure/http/middleware"
	"github.com/alchemorsel/recipe-studio/internal/ports/inbound"
	apperrors "github.com/alchemorsel/recipe-studio/pkg/errors"
)

// DetectIngredients handles POST /ingredients/detect
func (h *Handlers) DetectIngredients(w http.ResponseWriter, r *http.Request) {
	var req inbound.DetectIngredientsRequest
	if err := h.decode(r, &req, false); err != nil {
		h.writeError(w, r, err)
		return
	}

	detected, err := h.gateway.DetectIngredients(r.Context(), req)
	if err != nil {
		h.writeError(w, r, err)
		return
	}
	h.writeJSON(w, http.StatusOK, detected)
}

// Challenge handles GET /challenge
func (h *Handlers) Challenge(w http.ResponseWriter, r *http.Request) {
	challenge, err := h.gateway.GenerateChallenge(r.Context())
	if err != nil {
		h.writeError(w, r, err)
		return
	}
	h.writeJSON(w, http.StatusOK, challenge)
}

// Logout handles POST /session/logout
func (h *Handlers) Logout(w http.ResponseWriter, r *http.Request) {
	claims, ok := middleware.ClaimsFromContext(r.Context())
	if !ok {
		h.writeError(w, r, apperrors.NewAuthFailure())
		return
	}
	if err := h.sessions.SignOut(r.Context(), claims); err != nil {
		h.writeError(w, r, apperrors.NewServiceUnavailableError("Failed to sign out").WithCause(err))
		return
	}
	w.WriteHeader(http.StatusNoContent)
}
