package handlers

import (
	"net/http"

	"github.com/alchemorsel/recipe-studio/internal/domain/generation"
	"github.com/alchemorsel/recipe-studio/internal/domain/user"
	"github.com/alchemorsel/recipe-studio/internal/ports/inbound"
)

// GenerateRequest is the body of POST /recipes/generate.
type GenerateRequest struct {
	inbound.RecipeTextRequest
	SkipNutrition bool `json:"skipNutrition,omitempty"`
	SkipImage     bool `json:"skipImage,omitempty"`
	Await         bool `json:"await,omitempty"`
}

// GenerateResponse reports the run and the recipe as it stood on return.
type GenerateResponse struct {
	Run    generation.View    `json:"run"`
	Recipe *inbound.RecipeDTO `json:"recipe"`
}

// SnapshotResponse is the result of a refresh.
type SnapshotResponse struct {
	Recipes     []*inbound.RecipeDTO `json:"recipes"`
	Preferences *user.Preferences    `json:"preferences"`
}

// Generate handles POST /recipes/generate
func (h *Handlers) Generate(w http.ResponseWriter, r *http.Request) {
	var req GenerateRequest
	if err := h.decode(r, &req, false); err != nil {
		h.writeError(w, r, err)
		return
	}

	result, err := h.orchestrator.Generate(r.Context(), inbound.GenerateCommand{
		Request: req.RecipeTextRequest,
		EnrichOptions: inbound.EnrichOptions{
			SkipNutrition: req.SkipNutrition,
			SkipImage:     req.SkipImage,
			Await:         req.Await,
		},
	})
	if err != nil {
		h.writeError(w, r, err)
		return
	}

	h.writeJSON(w, http.StatusCreated, GenerateResponse{Run: result.Run, Recipe: inbound.ToRecipeDTO(result.Recipe)})
}

// Reenrich handles POST /recipes/{id}/enrich
func (h *Handlers) Reenrich(w http.ResponseWriter, r *http.Request) {
	id, err := pathID(r, "id")
	if err != nil {
		h.writeError(w, r, err)
		return
	}
	var opts inbound.EnrichOptions
	if err := h.decode(r, &opts, true); err != nil {
		h.writeError(w, r, err)
		return
	}

	result, err := h.orchestrator.Reenrich(r.Context(), id, opts)
	if err != nil {
		h.writeError(w, r, err)
		return
	}

	h.writeJSON(w, http.StatusAccepted, GenerateResponse{Run: result.Run, Recipe: inbound.ToRecipeDTO(result.Recipe)})
}

// RunStatus handles GET /runs/{runID}
func (h *Handlers) RunStatus(w http.ResponseWriter, r *http.Request) {
	id, err := pathID(r, "runID")
	if err != nil {
		h.writeError(w, r, err)
		return
	}

	view, err := h.orchestrator.Status(r.Context(), id)
	if err != nil {
		h.writeError(w, r, err)
		return
	}
	h.writeJSON(w, http.StatusOK, view)
}

// ListRecipes handles GET /recipes
func (h *Handlers) ListRecipes(w http.ResponseWriter, r *http.Request) {
	recipes, err := h.store.History(r.Context())
	if err != nil {
		h.writeError(w, r, err)
		return
	}
	h.writeJSON(w, http.StatusOK, inbound.ToRecipeDTOs(recipes))
}

// ListFavorites handles GET /recipes/favorites
func (h *Handlers) ListFavorites(w http.ResponseWriter, r *http.Request) {
	recipes, err := h.store.Favorites(r.Context())
	if err != nil {
		h.writeError(w, r, err)
		return
	}
	h.writeJSON(w, http.StatusOK, inbound.ToRecipeDTOs(recipes))
}

// Refresh handles POST /recipes/refresh
func (h *Handlers) Refresh(w http.ResponseWriter, r *http.Request) {
	snapshot, err := h.store.FetchAll(r.Context())
	if err != nil {
		h.writeError(w, r, err)
		return
	}
	h.writeJSON(w, http.StatusOK, SnapshotResponse{
		Recipes:     inbound.ToRecipeDTOs(snapshot.Recipes),
		Preferences: snapshot.Preferences,
	})
}

// GetRecipe handles GET /recipes/{id}
func (h *Handlers) GetRecipe(w http.ResponseWriter, r *http.Request) {
	id, err := pathID(r, "id")
	if err != nil {
		h.writeError(w, r, err)
		return
	}

	found, err := h.store.Get(r.Context(), id)
	if err != nil {
		h.writeError(w, r, err)
		return
	}
	h.writeJSON(w, http.StatusOK, inbound.ToRecipeDTO(found))
}

// ToggleFavorite handles POST /recipes/{id}/favorite
func (h *Handlers) ToggleFavorite(w http.ResponseWriter, r *http.Request) {
	id, err := pathID(r, "id")
	if err != nil {
		h.writeError(w, r, err)
		return
	}

	updated, err := h.store.ToggleFavorite(r.Context(), id)
	if err != nil {
		h.writeError(w, r, err)
		return
	}
	h.writeJSON(w, http.StatusOK, inbound.ToRecipeDTO(updated))
}

// RemoveRecipe handles DELETE /recipes/{id}
func (h *Handlers) RemoveRecipe(w http.ResponseWriter, r *http.Request) {
	id, err := pathID(r, "id")
	if err != nil {
		h.writeError(w, r, err)
		return
	}

	if err := h.store.Remove(r.Context(), id); err != nil {
		h.writeError(w, r, err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

// GetPreferences handles GET /preferences
func (h *Handlers) GetPreferences(w http.ResponseWriter, r *http.Request) {
	prefs, err := h.store.Preferences(r.Context())
	if err != nil {
		h.writeError(w, r, err)
		return
	}
	if prefs == nil {
		prefs = &user.Preferences{}
	}
	h.writeJSON(w, http.StatusOK, prefs)
}

// SavePreferences handles PUT /preferences
func (h *Handlers) SavePreferences(w http.ResponseWriter, r *http.Request) {
	var cmd inbound.SavePreferencesCommand
	if err := h.decode(r, &cmd, false); err != nil {
		h.writeError(w, r, err)
		return
	}

	prefs, err := h.store.SavePreferences(r.Context(), cmd)
	if err != nil {
		h.writeError(w, r, err)
		return
	}
	h.writeJSON(w, http.StatusOK, prefs)
}
