// Package handlers provides HTTP handlers for the REST API
package handlers

import (
	"context"
	"encoding/json"
	"errors"
	"io"
	"net/http"
	"time"

	"github.com/alchemorsel/recipe-studio/internal/infrastructure/http/response"
	"github.com/alchemorsel/recipe-studio/internal/infrastructure/security"
	"github.com/alchemorsel/recipe-studio/internal/ports/inbound"
	"github.com/alchemorsel/recipe-studio/internal/ports/outbound"
	apperrors "github.com/alchemorsel/recipe-studio/pkg/errors"
	"github.com/alchemorsel/recipe-studio/pkg/validation"
	"github.com/go-chi/chi/v5"
	"github.com/google/uuid"
	"github.com/gorilla/websocket"
	"go.uber.org/zap"
)

const maxBodyBytes = 12 << 20

// SignOuter revokes the token of the current request.
type SignOuter interface {
	SignOut(ctx context.Context, claims *security.Claims) error
}

// Config tunes the websocket endpoints.
type Config struct {
	AllowedOrigins []string
	PingInterval   time.Duration
}

// Handlers serves the recipe, generation, chat and session endpoints.
type Handlers struct {
	store        inbound.RecipeStore
	orchestrator inbound.GenerationOrchestrator
	gateway      inbound.GenerationGateway
	chat         inbound.ChatService
	sessions     SignOuter
	bus          outbound.MessageBus
	validate     *validation.Validator
	upgrader     websocket.Upgrader
	pingInterval time.Duration
	logger       *zap.Logger
}

// New creates the API handlers
func New(
	store inbound.RecipeStore,
	orchestrator inbound.GenerationOrchestrator,
	gateway inbound.GenerationGateway,
	chat inbound.ChatService,
	sessions SignOuter,
	bus outbound.MessageBus,
	config Config,
	logger *zap.Logger,
) *Handlers {
	if config.PingInterval <= 0 {
		config.PingInterval = 30 * time.Second
	}
	return &Handlers{
		store:        store,
		orchestrator: orchestrator,
		gateway:      gateway,
		chat:         chat,
		sessions:     sessions,
		bus:          bus,
		validate:     validation.New(),
		upgrader: websocket.Upgrader{
			ReadBufferSize:  1024,
			WriteBufferSize: 1024,
			CheckOrigin:     originChecker(config.AllowedOrigins),
		},
		pingInterval: config.PingInterval,
		logger:       logger.Named("http"),
	}
}

// Routes registers the authenticated endpoints on r.
func (h *Handlers) Routes(r chi.Router, generateLimit func(http.Handler) http.Handler) {
	r.Route("/recipes", func(r chi.Router) {
		r.Get("/", h.ListRecipes)
		r.Get("/favorites", h.ListFavorites)
		r.Post("/refresh", h.Refresh)
		r.With(generateLimit).Post("/generate", h.Generate)

		r.Route("/{id}", func(r chi.Router) {
			r.Get("/", h.GetRecipe)
			r.Delete("/", h.RemoveRecipe)
			r.Post("/favorite", h.ToggleFavorite)
			r.With(generateLimit).Post("/enrich", h.Reenrich)
			r.Post("/chat", h.OpenChat)
		})
	})

	r.Get("/runs/{runID}", h.RunStatus)

	r.Route("/preferences", func(r chi.Router) {
		r.Get("/", h.GetPreferences)
		r.Put("/", h.SavePreferences)
	})

	r.With(generateLimit).Post("/ingredients/detect", h.DetectIngredients)
	r.With(generateLimit).Get("/challenge", h.Challenge)

	r.Route("/chat/{sessionID}", func(r chi.Router) {
		r.Get("/", h.ChatTranscript)
		r.Delete("/", h.CloseChat)
		r.Post("/messages", h.AskChat)
	})

	r.Get("/ws/recipes/{id}/chat", h.ChatSocket)
	r.Get("/ws/recipes/updates", h.ChangeFeed)

	r.Post("/session/logout", h.Logout)
}

func (h *Handlers) writeJSON(w http.ResponseWriter, status int, data interface{}) {
	response.JSON(w, h.logger, status, data)
}

func (h *Handlers) writeError(w http.ResponseWriter, r *http.Request, err error) {
	response.Error(w, r, h.logger, err)
}

// decode reads a JSON body into dst and validates it. An empty body leaves
// dst untouched when allowEmpty is set.
func (h *Handlers) decode(r *http.Request, dst interface{}, allowEmpty bool) error {
	dec := json.NewDecoder(io.LimitReader(r.Body, maxBodyBytes))
	dec.DisallowUnknownFields()
	if err := dec.Decode(dst); err != nil {
		if errors.Is(err, io.EOF) && allowEmpty {
			return nil
		}
		return apperrors.NewBadRequestError("Invalid JSON body").WithCause(err)
	}
	return h.validate.Struct(dst)
}

func pathID(r *http.Request, name string) (uuid.UUID, error) {
	id, err := uuid.Parse(chi.URLParam(r, name))
	if err != nil {
		return uuid.Nil, apperrors.NewValidationFailure(name, "must be a UUID")
	}
	return id, nil
}

func originChecker(allowed []string) func(r *http.Request) bool {
	set := make(map[string]bool, len(allowed))
	for _, o := range allowed {
		set[o] = true
	}
	return func(r *http.Request) bool {
		origin := r.Header.Get("Origin")
		return origin == "" || set["*"] || set[origin]
	}
}
