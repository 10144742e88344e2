package recipe

import (
	"time"

	"github.com/google/uuid"
)

// Event names
const (
	EventRecipeSaved             = "recipe.saved"
	EventRecipeFavoriteToggled   = "recipe.favorite.toggled"
	EventRecipeImageAttached     = "recipe.image.attached"
	EventRecipeNutritionAttached = "recipe.nutrition.attached"
	EventRecipeRemoved           = "recipe.removed"
)

// RecipeSavedEvent is raised once the recipe has a durable identity
type RecipeSavedEvent struct {
	RecipeID uuid.UUID
	OwnerID  uuid.UUID
	Title    string
	SavedAt  time.Time
}

func (e RecipeSavedEvent) EventName() string { return EventRecipeSaved }
func (e RecipeSavedEvent) OccurredAt() time.Time { return e.SavedAt }
func (e RecipeSavedEvent) AggregateID() uuid.UUID { return e.RecipeID }

// RecipeFavoriteToggledEvent is raised when the favorite flag changes
type RecipeFavoriteToggledEvent struct {
	RecipeID   uuid.UUID
	IsFavorite bool
	ToggledAt  time.Time
}

func (e RecipeFavoriteToggledEvent) EventName() string { return EventRecipeFavoriteToggled }
func (e RecipeFavoriteToggledEvent) OccurredAt() time.Time { return e.ToggledAt }
func (e RecipeFavoriteToggledEvent) AggregateID() uuid.UUID { return e.RecipeID }

// RecipeImageAttachedEvent is raised when an image URL is attached
type RecipeImageAttachedEvent struct {
	RecipeID   uuid.UUID
	ImageURL   string
	AttachedAt time.Time
}

func (e RecipeImageAttachedEvent) EventName() string { return EventRecipeImageAttached }
func (e RecipeImageAttachedEvent) OccurredAt() time.Time { return e.AttachedAt }
func (e RecipeImageAttachedEvent) AggregateID() uuid.UUID { return e.RecipeID }

// RecipeNutritionAttachedEvent is raised when a nutrition estimate is attached
type RecipeNutritionAttachedEvent struct {
	RecipeID   uuid.UUID
	AttachedAt time.Time
}

func (e RecipeNutritionAttachedEvent) EventName() string { return EventRecipeNutritionAttached }
func (e RecipeNutritionAttachedEvent) OccurredAt() time.Time { return e.AttachedAt }
func (e RecipeNutritionAttachedEvent) AggregateID() uuid.UUID { return e.RecipeID }

// RecipeRemovedEvent is raised after the recipe is deleted
type RecipeRemovedEvent struct {
	RecipeID  uuid.UUID
	OwnerID   uuid.UUID
	RemovedAt time.Time
}

func (e RecipeRemovedEvent) EventName() string { return EventRecipeRemoved }
func (e RecipeRemovedEvent) OccurredAt() time.Time { return e.RemovedAt }
func (e RecipeRemovedEvent) AggregateID() uuid.UUID { return e.RecipeID }
