// Package store keeps each owner's recipes in memory, synchronized with the
// remote repository. Every mutation is written remotely first and applied
// to memory only after the remote write succeeded.
package store

import (
	"context"
	"encoding/json"
	"errors"
	"sync"
	"time"

	"github.com/alchemorsel/recipe-studio/internal/domain/recipe"
	"github.com/alchemorsel/recipe-studio/internal/domain/shared"
	"github.com/alchemorsel/recipe-studio/internal/domain/user"
	"github.com/alchemorsel/recipe-studio/internal/infrastructure/monitoring"
	"github.com/alchemorsel/recipe-studio/internal/ports/inbound"
	"github.com/alchemorsel/recipe-studio/internal/ports/outbound"
	apperrors "github.com/alchemorsel/recipe-studio/pkg/errors"
	"github.com/alchemorsel/recipe-studio/pkg/validation"
	"github.com/google/uuid"
	"go.uber.org/zap"
	"golang.org/x/sync/singleflight"
)

// TopicPrefix prefixes the per-owner change feed topic.
const TopicPrefix = "recipes."

// Topic returns the change feed topic of owner.
func Topic(owner uuid.UUID) string {
	return TopicPrefix + owner.String()
}

// loadTimeout bounds a shared load, which runs detached from the callers
// waiting on it.
const loadTimeout = 30 * time.Second

// collection is the in-memory state of one owner.
type collection struct {
	// writeMu serializes mutations so that the remote write and the memory
	// update happen as one step relative to other writers.
	writeMu sync.Mutex

	mu      sync.RWMutex
	loaded  bool
	recipes []*recipe.Recipe // newest first
	prefs   *user.Preferences
}

func (c *collection) find(id uuid.UUID) *recipe.Recipe {
	for _, r := range c.recipes {
		if r.ID() == id {
			return r
		}
	}
	return nil
}

func (c *collection) replace(updated *recipe.Recipe) {
	for i, r := range c.recipes {
		if r.ID() == updated.ID() {
			c.recipes[i] = updated
			return
		}
	}
}

// Service implements inbound.RecipeStore.
type Service struct {
	recipes  outbound.RecipeRepository
	prefs    outbound.PreferencesRepository
	identity outbound.IdentityProvider
	bus      outbound.MessageBus
	metrics  *monitoring.Metrics
	validate *validation.Validator
	logger   *zap.Logger

	mu     sync.Mutex
	owners map[uuid.UUID]*collection
	// signedOut holds owners whose collection was dropped on sign-out.
	// Their writes still reach the repository but are not cached again
	// until the next sign-in.
	signedOut map[uuid.UUID]struct{}
	loads     singleflight.Group

	unsubscribe func()
}

// NewService creates a new recipe store
func NewService(
	recipes outbound.RecipeRepository,
	prefs outbound.PreferencesRepository,
	identity outbound.IdentityProvider,
	bus outbound.MessageBus,
	metrics *monitoring.Metrics,
	logger *zap.Logger,
) *Service {
	return &Service{
		recipes:  recipes,
		prefs:    prefs,
		identity: identity,
		bus:      bus,
		metrics:  metrics,
		validate: validation.New(),
		logger:   logger.Named("recipe-store"),
		owners:    make(map[uuid.UUID]*collection),
		signedOut: make(map[uuid.UUID]struct{}),
	}
}

var _ inbound.RecipeStore = (*Service)(nil)

// Start subscribes to identity changes. A sign-in loads the owner's
// collection in the background and a sign-out drops it.
func (s *Service) Start(context.Context) error {
	s.unsubscribe = s.identity.OnAuthChange(s.handleAuthChange)
	return nil
}

// Stop ends the identity subscription.
func (s *Service) Stop(context.Context) error {
	if s.unsubscribe != nil {
		s.unsubscribe()
	}
	return nil
}

func (s *Service) handleAuthChange(event outbound.AuthEvent) {
	switch event.Type {
	case outbound.AuthSignedIn:
		s.mu.Lock()
		delete(s.signedOut, event.UserID)
		s.mu.Unlock()
		go func() {
			ctx, cancel := context.WithTimeout(context.Background(), loadTimeout)
			defer cancel()
			if _, err := s.load(ctx, event.UserID); err != nil {
				s.logger.Warn("Failed to load recipes after sign-in",
					zap.String("owner_id", event.UserID.String()),
					zap.Error(err),
				)
			}
		}()
	case outbound.AuthSignedOut:
		s.mu.Lock()
		delete(s.owners, event.UserID)
		s.signedOut[event.UserID] = struct{}{}
		s.mu.Unlock()
		s.loads.Forget(event.UserID.String())
		s.logger.Debug("Cleared recipes after sign-out", zap.String("owner_id", event.UserID.String()))
	}
}

// FetchAll reloads the owner's recipes and preferences from the remote
// store. Memory is replaced only when both loads succeed.
func (s *Service) FetchAll(ctx context.Context) (*inbound.StoreSnapshot, error) {
	owner, ok := s.identity.CurrentUser(ctx)
	if !ok {
		return &inbound.StoreSnapshot{Recipes: []*recipe.Recipe{}}, nil
	}

	col, err := s.load(ctx, owner)
	if err != nil {
		return nil, err
	}

	col.mu.RLock()
	defer col.mu.RUnlock()
	return &inbound.StoreSnapshot{
		Recipes:     cloneAll(col.recipes),
		Preferences: col.prefs.Clone(),
	}, nil
}

// load fetches owner's state and installs it. Concurrent loads for one
// owner share a single remote round trip, which runs detached from every
// caller so that one caller going away does not fail the others.
func (s *Service) load(ctx context.Context, owner uuid.UUID) (*collection, error) {
	results := s.loads.DoChan(owner.String(), func() (interface{}, error) {
		lctx, cancel := context.WithTimeout(context.WithoutCancel(ctx), loadTimeout)
		defer cancel()

		col := s.collection(owner)
		col.writeMu.Lock()
		defer col.writeMu.Unlock()

		list, err := s.recipes.ListByOwner(lctx, owner)
		if err != nil {
			return nil, apperrors.NewPersistenceFailure("list recipes", err)
		}
		prefs, err := s.prefs.Get(lctx, owner)
		if err != nil {
			return nil, apperrors.NewPersistenceFailure("get preferences", err)
		}

		col.mu.Lock()
		col.recipes = recipe.History(list)
		col.prefs = prefs
		col.loaded = true
		col.mu.Unlock()

		s.logger.Debug("Loaded recipes",
			zap.String("owner_id", owner.String()),
			zap.Int("count", len(list)),
		)
		return col, nil
	})

	select {
	case res := <-results:
		s.metrics.ObserveStoreOp("fetch_all", res.Err)
		if res.Err != nil {
			return nil, res.Err
		}
		return res.Val.(*collection), nil
	case <-ctx.Done():
		err := apperrors.NewPersistenceFailure("list recipes", ctx.Err())
		s.metrics.ObserveStoreOp("fetch_all", err)
		return nil, err
	}
}

// collection returns the owner's cached collection. A signed-out owner
// gets a fresh one that is not kept.
func (s *Service) collection(owner uuid.UUID) *collection {
	s.mu.Lock()
	defer s.mu.Unlock()
	col, ok := s.owners[owner]
	if !ok {
		col = &collection{}
		if _, out := s.signedOut[owner]; !out {
			s.owners[owner] = col
		}
	}
	return col
}

// loaded returns the owner's collection, fetching it first if needed.
func (s *Service) loaded(ctx context.Context, owner uuid.UUID) (*collection, error) {
	col := s.collection(owner)
	col.mu.RLock()
	ready := col.loaded
	col.mu.RUnlock()
	if ready {
		return col, nil
	}
	return s.load(ctx, owner)
}

func (s *Service) owner(ctx context.Context) (uuid.UUID, error) {
	owner, ok := s.identity.CurrentUser(ctx)
	if !ok {
		return uuid.Nil, apperrors.NewAuthFailure()
	}
	return owner, nil
}

// Save inserts a new recipe remotely and then puts it at the front of the
// owner's collection.
func (s *Service) Save(ctx context.Context, cmd inbound.SaveRecipeCommand) (r *recipe.Recipe, err error) {
	defer func() { s.metrics.ObserveStoreOp("save", err) }()

	owner, err := s.owner(ctx)
	if err != nil {
		return nil, err
	}
	draft, err := recipe.NewDraft(owner, cmd.Core, cmd.UserInput, cmd.Nutrition)
	if err != nil {
		return nil, domainValidation(err)
	}

	col := s.collection(owner)
	col.writeMu.Lock()
	defer col.writeMu.Unlock()

	saved, err := s.recipes.Create(ctx, draft)
	if err != nil {
		return nil, apperrors.NewPersistenceFailure("save recipe", err)
	}

	saved.MarkSaved()

	col.mu.Lock()
	if col.loaded {
		kept := make([]*recipe.Recipe, 0, len(col.recipes)+1)
		kept = append(kept, saved)
		for _, existing := range col.recipes {
			if existing.ID() != saved.ID() {
				kept = append(kept, existing)
			}
		}
		col.recipes = kept
	}
	col.mu.Unlock()

	s.publish(ctx, owner, saved)

	s.logger.Info("Recipe saved",
		zap.String("recipe_id", saved.ID().String()),
		zap.String("owner_id", owner.String()),
	)
	return saved.Clone(), nil
}

// ToggleFavorite flips the favorite flag of a recipe.
func (s *Service) ToggleFavorite(ctx context.Context, id uuid.UUID) (*recipe.Recipe, error) {
	var next bool
	return s.mutate(ctx, "toggle_favorite", id,
		func(ctx context.Context, owner uuid.UUID, current *recipe.Recipe) error {
			next = !current.IsFavorite()
			return s.recipes.UpdateFavorite(ctx, id, owner, next)
		},
		func(r *recipe.Recipe) { r.SetFavorite(next) },
	)
}

// UpdateImage attaches an image URL. A later call overwrites an earlier one.
func (s *Service) UpdateImage(ctx context.Context, id uuid.UUID, imageURL string) (*recipe.Recipe, error) {
	if imageURL == "" {
		return nil, apperrors.NewValidationFailure("imageUrl", "imageUrl is required")
	}
	return s.mutate(ctx, "update_image", id,
		func(ctx context.Context, owner uuid.UUID, _ *recipe.Recipe) error {
			return s.recipes.UpdateImage(ctx, id, owner, imageURL)
		},
		func(r *recipe.Recipe) { r.AttachImage(imageURL) },
	)
}

// UpdateNutrition attaches a nutrition estimate. A later call overwrites an
// earlier one.
func (s *Service) UpdateNutrition(ctx context.Context, id uuid.UUID, info recipe.NutritionInfo) (*recipe.Recipe, error) {
	info = info.WithDefaults()
	return s.mutate(ctx, "update_nutrition", id,
		func(ctx context.Context, owner uuid.UUID, _ *recipe.Recipe) error {
			return s.recipes.UpdateNutrition(ctx, id, owner, info)
		},
		func(r *recipe.Recipe) { r.AttachNutrition(info) },
	)
}

// Remove deletes a recipe remotely and then drops it from memory.
func (s *Service) Remove(ctx context.Context, id uuid.UUID) (err error) {
	defer func() { s.metrics.ObserveStoreOp("remove", err) }()

	owner, err := s.owner(ctx)
	if err != nil {
		return err
	}
	col, err := s.loaded(ctx, owner)
	if err != nil {
		return err
	}

	col.writeMu.Lock()
	defer col.writeMu.Unlock()

	col.mu.RLock()
	current := col.find(id)
	col.mu.RUnlock()
	if current == nil {
		return apperrors.NewRecipeNotFoundError(id.String())
	}

	if err := s.recipes.Delete(ctx, id, owner); err != nil {
		return remoteError("remove recipe", id, err)
	}

	col.mu.Lock()
	kept := col.recipes[:0:0]
	for _, r := range col.recipes {
		if r.ID() != id {
			kept = append(kept, r)
		}
	}
	col.recipes = kept
	col.mu.Unlock()

	removed := current.Clone()
	removed.MarkRemoved()
	s.publish(ctx, owner, removed)

	s.logger.Info("Recipe removed",
		zap.String("recipe_id", id.String()),
		zap.String("owner_id", owner.String()),
	)
	return nil
}

// mutate applies a single-field change: remote first, then memory.
func (s *Service) mutate(
	ctx context.Context,
	op string,
	id uuid.UUID,
	remote func(ctx context.Context, owner uuid.UUID, current *recipe.Recipe) error,
	apply func(r *recipe.Recipe),
) (r *recipe.Recipe, err error) {
	defer func() { s.metrics.ObserveStoreOp(op, err) }()

	owner, err := s.owner(ctx)
	if err != nil {
		return nil, err
	}
	col, err := s.loaded(ctx, owner)
	if err != nil {
		return nil, err
	}

	col.writeMu.Lock()
	defer col.writeMu.Unlock()

	col.mu.RLock()
	current := col.find(id)
	col.mu.RUnlock()
	if current == nil {
		return nil, apperrors.NewRecipeNotFoundError(id.String())
	}

	if err := remote(ctx, owner, current); err != nil {
		return nil, remoteError(op, id, err)
	}

	updated := current.Clone()
	apply(updated)

	col.mu.Lock()
	col.replace(updated)
	col.mu.Unlock()

	s.publish(ctx, owner, updated)
	return updated.Clone(), nil
}

// Get returns one of the owner's recipes.
func (s *Service) Get(ctx context.Context, id uuid.UUID) (*recipe.Recipe, error) {
	owner, err := s.owner(ctx)
	if err != nil {
		return nil, err
	}
	col, err := s.loaded(ctx, owner)
	if err != nil {
		return nil, err
	}

	col.mu.RLock()
	defer col.mu.RUnlock()
	r := col.find(id)
	if r == nil {
		return nil, apperrors.NewRecipeNotFoundError(id.String())
	}
	return r.Clone(), nil
}

// History returns all of the owner's recipes, newest first.
func (s *Service) History(ctx context.Context) ([]*recipe.Recipe, error) {
	return s.view(ctx, recipe.History)
}

// Favorites returns the owner's favorite recipes, newest first.
func (s *Service) Favorites(ctx context.Context) ([]*recipe.Recipe, error) {
	return s.view(ctx, recipe.Favorites)
}

func (s *Service) view(ctx context.Context, derive func([]*recipe.Recipe) []*recipe.Recipe) ([]*recipe.Recipe, error) {
	owner, ok := s.identity.CurrentUser(ctx)
	if !ok {
		return []*recipe.Recipe{}, nil
	}
	col, err := s.loaded(ctx, owner)
	if err != nil {
		return nil, err
	}

	col.mu.RLock()
	defer col.mu.RUnlock()
	return cloneAll(derive(col.recipes)), nil
}

// Preferences returns the owner's saved preferences. An owner without
// saved preferences gets an empty record.
func (s *Service) Preferences(ctx context.Context) (*user.Preferences, error) {
	owner, err := s.owner(ctx)
	if err != nil {
		return nil, err
	}
	col, err := s.loaded(ctx, owner)
	if err != nil {
		return nil, err
	}

	col.mu.RLock()
	defer col.mu.RUnlock()
	if col.prefs == nil {
		return &user.Preferences{OwnerID: owner}, nil
	}
	return col.prefs.Clone(), nil
}

// SavePreferences replaces the owner's preferences.
func (s *Service) SavePreferences(ctx context.Context, cmd inbound.SavePreferencesCommand) (p *user.Preferences, err error) {
	defer func() { s.metrics.ObserveStoreOp("save_preferences", err) }()

	owner, err := s.owner(ctx)
	if err != nil {
		return nil, err
	}
	if err := s.validate.Struct(cmd); err != nil {
		return nil, err
	}
	prefs, err := user.NewPreferences(owner, cmd.Cuisine, cmd.MealType, cmd.DietaryRestrictions, cmd.Language)
	if err != nil {
		return nil, domainValidation(err)
	}

	col := s.collection(owner)
	col.writeMu.Lock()
	defer col.writeMu.Unlock()

	if err := s.prefs.Upsert(ctx, prefs); err != nil {
		return nil, apperrors.NewPersistenceFailure("save preferences", err)
	}

	col.mu.Lock()
	col.prefs = prefs
	col.mu.Unlock()
	return prefs.Clone(), nil
}

// publish sends the recipe's pending events to the owner's change feed.
// Delivery failures are logged and do not fail the mutation.
func (s *Service) publish(ctx context.Context, owner uuid.UUID, r *recipe.Recipe) {
	events := r.Events()
	if s.bus == nil || len(events) == 0 {
		return
	}

	dto := inbound.ToRecipeDTO(r)
	for _, event := range events {
		change := inbound.RecipeChange{Type: event.EventName(), RecipeID: r.ID()}
		if event.EventName() != recipe.EventRecipeRemoved {
			change.Recipe = dto
		}
		if err := s.publishEvent(ctx, owner, event, change); err != nil {
			s.logger.Warn("Failed to publish recipe change",
				zap.String("event", event.EventName()),
				zap.String("recipe_id", r.ID().String()),
				zap.Error(err),
			)
		}
	}
}

func (s *Service) publishEvent(ctx context.Context, owner uuid.UUID, event shared.DomainEvent, change inbound.RecipeChange) error {
	payload, err := json.Marshal(change)
	if err != nil {
		return err
	}
	return s.bus.Publish(ctx, Topic(owner), outbound.Message{
		ID:        uuid.NewString(),
		Type:      event.EventName(),
		Payload:   payload,
		Metadata:  map[string]string{"owner_id": owner.String()},
		Timestamp: event.OccurredAt(),
	})
}

func remoteError(op string, id uuid.UUID, err error) error {
	if errors.Is(err, recipe.ErrRecipeNotFound) {
		return apperrors.NewRecipeNotFoundError(id.String())
	}
	return apperrors.NewPersistenceFailure(op, err)
}

func domainValidation(err error) error {
	switch {
	case errors.Is(err, recipe.ErrEmptyTitle):
		return apperrors.NewValidationFailure("title", err.Error())
	case errors.Is(err, recipe.ErrNoIngredients):
		return apperrors.NewValidationFailure("ingredients", err.Error())
	case errors.Is(err, recipe.ErrNoInstructions):
		return apperrors.NewValidationFailure("instructions", err.Error())
	case errors.Is(err, recipe.ErrMissingOwner), errors.Is(err, user.ErrMissingOwner):
		return apperrors.NewAuthFailure()
	default:
		return apperrors.NewValidationFailure("", err.Error())
	}
}

func cloneAll(in []*recipe.Recipe) []*recipe.Recipe {
	out := make([]*recipe.Recipe, 0, len(in))
	for _, r := range in {
		out = append(out, r.Clone())
	}
	return out
}
